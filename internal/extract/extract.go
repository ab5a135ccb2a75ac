// Package extract pulls the readable content out of an HTML page. It
// locates the main content region, strips navigation chrome, and collects
// the metadata that ends up in the exported document's front matter.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sitemd/sitemd/internal/urlutil"
)

// Content is the extracted portion of a page.
type Content struct {
	URL         string
	Title       string
	Description string
	Canonical   string
	Language    string
	HTML        string // inner HTML of the main content region
}

// containerSelectors are tried in order when locating the main content
// region. The first match wins; the body is the fallback.
var containerSelectors = []string{
	"main",
	"article",
	"[role=main]",
	"#content",
	"#main",
	".content",
	".main-content",
}

// chromeSelectors are removed from the chosen region before conversion.
var chromeSelectors = []string{
	"script",
	"style",
	"noscript",
	"iframe",
	"nav",
	"header",
	"footer",
	"aside",
	".sidebar",
	".breadcrumb",
	".breadcrumbs",
	".pagination",
	".edit-page",
	"[aria-hidden=true]",
}

// Extractor extracts content and metadata from HTML documents.
type Extractor struct{}

// NewExtractor creates a content extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract parses body and returns the page's main content and metadata.
// pageURL is recorded on the result and used for front matter.
func (e *Extractor) Extract(pageURL string, body []byte) (*Content, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	content := &Content{
		URL:      pageURL,
		Title:    title(doc),
		Language: language(doc),
	}

	if href := strings.TrimSpace(doc.Find(`link[rel="canonical"]`).First().AttrOr("href", "")); href != "" {
		if canonical, err := urlutil.NormalizeRef(pageURL, href); err == nil {
			content.Canonical = canonical
		}
	}

	region := mainRegion(doc)
	region.Find(strings.Join(chromeSelectors, ", ")).Remove()

	content.Description = description(doc, region)

	inner, err := region.Html()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize content: %w", err)
	}
	content.HTML = strings.TrimSpace(inner)

	return content, nil
}

// title resolves the page title from <title>, falling back to the first
// h1 and then the og:title property.
func title(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return collapseSpace(t)
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return collapseSpace(h1)
	}
	if og := strings.TrimSpace(doc.Find(`meta[property="og:title"]`).First().AttrOr("content", "")); og != "" {
		return collapseSpace(og)
	}
	return "Untitled"
}

// description resolves the page description from the meta description,
// falling back to og:description and then the first substantial paragraph
// of the content region, truncated to 200 runes.
func description(doc *goquery.Document, region *goquery.Selection) string {
	if d := metaContent(doc, "description"); d != "" {
		return truncate(d, 200)
	}
	if og := strings.TrimSpace(doc.Find(`meta[property="og:description"]`).First().AttrOr("content", "")); og != "" {
		return truncate(og, 200)
	}

	var fallback string
	region.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		text := collapseSpace(p.Text())
		if len(text) >= 40 {
			fallback = text
			return false
		}
		return true
	})
	return truncate(fallback, 200)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func metaContent(doc *goquery.Document, name string) string {
	sel := fmt.Sprintf(`meta[name=%q]`, name)
	return strings.TrimSpace(doc.Find(sel).First().AttrOr("content", ""))
}

func language(doc *goquery.Document) string {
	if lang := strings.TrimSpace(doc.Find("html").First().AttrOr("lang", "")); lang != "" {
		return lang
	}
	return ""
}

func mainRegion(doc *goquery.Document) *goquery.Selection {
	for _, sel := range containerSelectors {
		if region := doc.Find(sel).First(); region.Length() > 0 {
			return region
		}
	}
	return doc.Find("body").First()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
