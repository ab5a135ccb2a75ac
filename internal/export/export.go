// Package export writes converted documents to the output directory,
// mirroring the site's URL structure on disk.
package export

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// maxCollisionSuffix bounds the numbered-suffix search before falling
// back to a timestamped name.
const maxCollisionSuffix = 1000

// Writer maps URLs to file paths under a root directory and writes
// documents there.
type Writer struct {
	root string

	// written tracks paths claimed during this run so concurrent pages
	// that map to the same file get distinct names.
	mu      sync.Mutex
	written map[string]bool
}

// NewWriter creates a writer rooted at dir, creating it if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Writer{
		root:    dir,
		written: make(map[string]bool),
	}, nil
}

// Root returns the output directory.
func (w *Writer) Root() string {
	return w.root
}

// Write stores document at the path derived from pageURL and returns the
// path relative to the output root.
func (w *Writer) Write(pageURL, document string) (string, error) {
	relPath, err := w.claim(pageURL)
	if err != nil {
		return "", err
	}

	fullPath := filepath.Join(w.root, relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", relPath, err)
	}
	if err := os.WriteFile(fullPath, []byte(document), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", relPath, err)
	}

	return relPath, nil
}

// WriteRaw stores content at relPath under the root, for artifacts that
// are not derived from a page URL.
func (w *Writer) WriteRaw(relPath, content string) error {
	fullPath := filepath.Join(w.root, relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", relPath, err)
	}
	return os.WriteFile(fullPath, []byte(content), 0644)
}

// claim picks a free relative path for pageURL, appending _2, _3, ...
// when a previous page in this run already took the natural name.
func (w *Writer) claim(pageURL string) (string, error) {
	base, err := PathFor(pageURL)
	if err != nil {
		return "", err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.written[base] {
		w.written[base] = true
		return base, nil
	}

	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for i := 2; i <= maxCollisionSuffix; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if !w.written[candidate] {
			w.written[candidate] = true
			return candidate, nil
		}
	}

	candidate := fmt.Sprintf("%s_%d%s", stem, time.Now().UnixNano(), ext)
	w.written[candidate] = true
	return candidate, nil
}

var unsafePathChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// PathFor maps a URL to a relative Markdown file path: the host becomes
// the top-level directory and the URL path becomes nested directories,
// with the last segment as the file name. A trailing slash or empty path
// maps to index.md.
func PathFor(pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("unmappable URL %q: %w", pageURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("unmappable URL %q: no host", pageURL)
	}

	parts := []string{sanitizeSegment(u.Host)}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		clean := sanitizeSegment(seg)
		if i == len(segments)-1 {
			clean = strings.TrimSuffix(clean, ".html")
			clean = strings.TrimSuffix(clean, ".htm")
			clean = strings.TrimSuffix(clean, ".php")
		}
		parts = append(parts, clean)
	}

	if len(parts) == 1 || strings.HasSuffix(u.Path, "/") {
		parts = append(parts, "index")
	}

	// A query string distinguishes otherwise identical paths.
	if u.RawQuery != "" {
		last := len(parts) - 1
		parts[last] = parts[last] + "_" + sanitizeSegment(u.RawQuery)
	}

	return filepath.Join(parts...) + ".md", nil
}

func sanitizeSegment(seg string) string {
	seg = unsafePathChars.ReplaceAllString(seg, "_")
	// Dot-only names would escape or hide in the directory tree.
	trimmed := strings.Trim(seg, ".")
	if trimmed == "" {
		return "_"
	}
	return seg
}
