package content

import (
	"errors"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	errEmptyHTML         = errors.New("empty HTML content")
	errNoTranscriptLink  = errors.New("no transcript link found in HTML")
	errFailedToParseHTML = errors.New("failed to parse HTML for transcript link")
)

// Link priorities, best first.
const (
	rankTextDocument = iota // anchor mentions transcript and points at a .txt
	rankDocument            // points at a .txt
	rankMention             // anchor mentions transcript
	rankNone
)

// FindTranscriptURL returns the link on an episode page most likely to be a
// plain-text transcript, resolved against pageURL. Among equally ranked
// links the first one wins.
func FindTranscriptURL(html, pageURL string) (string, error) {
	html = strings.TrimSpace(html)
	if html == "" {
		return "", errEmptyHTML
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", errors.Join(errFailedToParseHTML, err)
	}

	best, bestRank := "", rankNone
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" {
			return
		}
		if rank := rankLink(href, sel.Text()); rank < bestRank {
			best, bestRank = href, rank
		}
	})

	if bestRank == rankNone {
		return "", errNoTranscriptLink
	}
	return resolve(pageURL, best), nil
}

func rankLink(href, text string) int {
	doc := isTextDocument(href)
	mention := strings.Contains(strings.ToLower(text), "transcript")
	switch {
	case doc && mention:
		return rankTextDocument
	case doc:
		return rankDocument
	case mention:
		return rankMention
	default:
		return rankNone
	}
}

func isTextDocument(href string) bool {
	p := href
	if parsed, err := url.Parse(href); err == nil {
		p = parsed.Path
	}
	return strings.EqualFold(path.Ext(p), ".txt")
}

func resolve(base, href string) string {
	b, err := url.Parse(base)
	if err != nil || base == "" {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}
