// Package convert turns extracted page content into Markdown documents
// with YAML front matter.
package convert

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"gopkg.in/yaml.v3"

	"github.com/sitemd/sitemd/internal/extract"
)

// frontMatter is serialized at the top of every exported document.
// Field order matters for readable output.
type frontMatter struct {
	Title       string `yaml:"title"`
	URL         string `yaml:"url"`
	Description string `yaml:"description,omitempty"`
	Canonical   string `yaml:"canonical,omitempty"`
	Language    string `yaml:"language,omitempty"`
	FetchedAt   string `yaml:"fetched_at"`
}

// Result is a converted document. ContentHash covers only the Markdown
// body, not the front matter, so re-fetching unchanged content yields the
// same hash even though the fetch timestamp differs.
type Result struct {
	Document    string
	ContentHash string
}

// Converter renders extracted content as Markdown.
type Converter struct {
	now func() time.Time
}

// NewConverter creates a converter.
func NewConverter() *Converter {
	return &Converter{now: time.Now}
}

var excessBlankLines = regexp.MustCompile(`\n{3,}`)

// Convert produces the full document: YAML front matter followed by the
// Markdown rendering of the content region.
func (c *Converter) Convert(content *extract.Content) (*Result, error) {
	body, err := htmltomarkdown.ConvertString(content.HTML)
	if err != nil {
		return nil, fmt.Errorf("markdown conversion failed: %w", err)
	}

	body = excessBlankLines.ReplaceAllString(body, "\n\n")
	body = strings.TrimSpace(body)

	fm := frontMatter{
		Title:       content.Title,
		URL:         content.URL,
		Description: content.Description,
		Language:    content.Language,
		FetchedAt:   c.now().UTC().Format(time.RFC3339),
	}
	if content.Canonical != "" && content.Canonical != content.URL {
		fm.Canonical = content.Canonical
	}

	header, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("front matter encoding failed: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	sb.Write(header)
	sb.WriteString("---\n\n")
	sb.WriteString(body)
	sb.WriteString("\n")

	return &Result{
		Document:    sb.String(),
		ContentHash: Hash(body),
	}, nil
}

// Hash returns a stable fingerprint of a Markdown body, used by the
// manifest to detect content changes between crawls.
func Hash(body string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(body))
	return fmt.Sprintf("%016x", h.Sum64())
}
