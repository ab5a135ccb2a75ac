// Package parser extracts outbound links and referenced assets from HTML
// documents so the crawler can expand its frontier and track media files.
package parser

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/sitemd/sitemd/internal/urlutil"
)

// LinkSet holds what a single page contributes to the crawl.
type LinkSet struct {
	Links  []string // normalized anchor targets, in document order, deduplicated
	Assets []string // normalized img/source URLs referenced by the page
}

// LinkExtractor parses HTML and resolves references against a base URL.
type LinkExtractor struct{}

// NewLinkExtractor creates a link extractor.
func NewLinkExtractor() *LinkExtractor {
	return &LinkExtractor{}
}

// Extract parses htmlContent and returns the page's outbound links and
// asset references, resolved against baseURL and normalized. Fragment-only,
// javascript:, mailto:, tel: and data: references are skipped, as is
// anything that does not resolve to http or https.
func (e *LinkExtractor) Extract(baseURL string, htmlContent []byte) (*LinkSet, error) {
	doc, err := html.Parse(bytes.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	set := &LinkSet{}
	seen := make(map[string]bool)
	seenAssets := make(map[string]bool)

	var traverse func(n *html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "a":
				if href := attr(n, "href"); isFollowable(href) {
					if normalized, err := urlutil.NormalizeRef(baseURL, href); err == nil && !seen[normalized] {
						seen[normalized] = true
						set.Links = append(set.Links, normalized)
					}
				}
			case "img", "source":
				if src := attr(n, "src"); isFollowable(src) {
					if normalized, err := urlutil.NormalizeRef(baseURL, src); err == nil && !seenAssets[normalized] {
						seenAssets[normalized] = true
						set.Assets = append(set.Assets, normalized)
					}
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)

	return set, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

// isFollowable rejects empty, fragment-only, and non-navigational references
// before URL resolution.
func isFollowable(href string) bool {
	if href == "" || strings.HasPrefix(href, "#") {
		return false
	}
	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	return true
}
