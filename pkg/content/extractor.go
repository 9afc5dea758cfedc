// Package content pulls readable text, titles and transcript links out of
// episode web pages.
package content

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

var errNoTitle = errors.New("title not found in HTML")

// Page is the useful part of an episode page.
type Page struct {
	Title         string
	Text          string
	TranscriptURL string
}

// ParsePage extracts title, readable text and transcript link from html.
// Parts that cannot be found are left empty.
func ParsePage(html, pageURL string) (Page, error) {
	if strings.TrimSpace(html) == "" {
		return Page{}, errEmptyHTML
	}

	var page Page
	base, _ := url.Parse(pageURL)

	if text, err := ExtractText(html, base); err == nil {
		page.Text = text
	}
	if title, err := ExtractTitle(html); err == nil {
		page.Title = title
	}
	if link, err := FindTranscriptURL(html, pageURL); err == nil {
		page.TranscriptURL = link
	}
	return page, nil
}

// ExtractText extracts the main article text from HTML content
func ExtractText(html string, base *url.URL) (string, error) {
	article, err := readability.FromReader(strings.NewReader(html), base)
	if err != nil {
		return "", fmt.Errorf("failed to extract text: %w", err)
	}
	return strings.Join(strings.Fields(article.TextContent), " "), nil
}

// ExtractTitle tries readability first, then <title>, <h1> and og:title.
func ExtractTitle(html string) (string, error) {
	if article, err := readability.FromReader(strings.NewReader(html), nil); err == nil {
		if title := strings.TrimSpace(article.Title); title != "" {
			return title, nil
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	for _, sel := range []string{"title", "h1"} {
		if title := strings.TrimSpace(doc.Find(sel).First().Text()); title != "" {
			return title, nil
		}
	}
	if title, ok := doc.Find("meta[property='og:title']").Attr("content"); ok && strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title), nil
	}
	return "", errNoTitle
}
