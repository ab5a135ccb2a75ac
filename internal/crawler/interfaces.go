package crawler

import (
	"context"

	"github.com/sitemd/sitemd/internal/extract"
	"github.com/sitemd/sitemd/internal/parser"
)

// Fetcher retrieves a URL's content. Implementations include the plain
// HTTP client and the headless renderer.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchResult, error)
}

// Extractor pulls the readable content and metadata out of a page.
type Extractor interface {
	Extract(pageURL string, body []byte) (*extract.Content, error)
}

// LinkExtractor finds outbound links and asset references in a page.
type LinkExtractor interface {
	Extract(baseURL string, body []byte) (*parser.LinkSet, error)
}
