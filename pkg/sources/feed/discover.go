package feed

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var feedLinkTypes = map[string]struct{}{
	"application/rss+xml":  {},
	"application/atom+xml": {},
	"application/xml":      {},
	"text/xml":             {},
}

// DiscoverFeedURLs returns the feeds a web page advertises through
// <link rel="alternate">, in document order and resolved against pageURL.
func DiscoverFeedURLs(html, pageURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url %q: %w", pageURL, err)
	}

	var (
		out  []string
		seen = map[string]struct{}{}
	)
	doc.Find("link[rel~='alternate'][href]").Each(func(_ int, link *goquery.Selection) {
		typ := strings.ToLower(strings.TrimSpace(link.AttrOr("type", "")))
		if _, ok := feedLinkTypes[typ]; !ok {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(link.AttrOr("href", "")))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	})
	return out, nil
}
