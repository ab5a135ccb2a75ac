package crawler

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/sitemd/sitemd/internal/urlutil"
)

// DiscoveryConfig bounds the discovery phase.
type DiscoveryConfig struct {
	MaxPages      int // 0 = unlimited
	MaxDepth      int
	Concurrency   int
	SitemapFirst  bool
	BFSEnabled    bool
	RespectRobots bool // skip disallowed URLs during traversal
}

// Discovery finds candidate URLs from sitemaps and breadth-first link
// traversal, bounded by the page budget and depth limit.
type Discovery struct {
	fetcher Fetcher
	links   LinkExtractor
	robots  *RobotsManager
	scope   *urlutil.Scope
	cfg     DiscoveryConfig
}

// NewDiscovery creates a discovery engine. robots supplies sitemap hints
// from robots.txt and, when RespectRobots is set, allow/deny decisions
// during traversal.
func NewDiscovery(fetcher Fetcher, links LinkExtractor, robots *RobotsManager, scope *urlutil.Scope, cfg DiscoveryConfig) *Discovery {
	return &Discovery{
		fetcher: fetcher,
		links:   links,
		robots:  robots,
		scope:   scope,
		cfg:     cfg,
	}
}

// Discover returns the candidate URL set for the given seeds, sorted for
// reproducibility. Individual sitemap or page failures are logged and
// skipped; discovery itself never fails.
func (d *Discovery) Discover(ctx context.Context, seeds []string) []string {
	discovered := make(map[string]bool)

	var normalized []string
	for _, seed := range seeds {
		n, err := urlutil.Normalize(seed)
		if err != nil {
			slog.Warn("Skipping invalid seed URL", "url", seed, "error", err)
			continue
		}
		if d.scope.Contains(n) {
			discovered[n] = true
			normalized = append(normalized, n)
		}
	}

	if d.cfg.SitemapFirst {
		d.discoverFromSitemaps(ctx, normalized, discovered)
	}

	if d.cfg.BFSEnabled && !d.budgetReached(discovered) {
		d.discoverByTraversal(ctx, normalized, discovered)
	}

	result := make([]string, 0, len(discovered))
	for u := range discovered {
		result = append(result, u)
	}
	sort.Strings(result)
	return result
}

func (d *Discovery) budgetReached(discovered map[string]bool) bool {
	return d.cfg.MaxPages > 0 && len(discovered) >= d.cfg.MaxPages
}

// discoverFromSitemaps probes the well-known sitemap locations and any
// robots.txt Sitemap directives for each seed origin, then walks sitemap
// indices recursively.
func (d *Discovery) discoverFromSitemaps(ctx context.Context, seeds []string, discovered map[string]bool) {
	visitedSitemaps := make(map[string]bool)
	origins := make(map[string]bool)

	for _, seed := range seeds {
		origin, err := urlutil.Origin(seed)
		if err != nil || origins[origin] {
			continue
		}
		origins[origin] = true

		candidates := []string{
			origin + "/sitemap.xml",
			origin + "/sitemap_index.xml",
		}
		if d.robots != nil {
			candidates = append(candidates, d.robots.Sitemaps(ctx, origin)...)
		}

		for _, sitemapURL := range candidates {
			d.walkSitemap(ctx, sitemapURL, visitedSitemaps, discovered)
		}
	}
}

// walkSitemap fetches one sitemap document and either collects its page
// URLs or recurses into child sitemaps. Self-referencing indices are
// broken by the visited set.
func (d *Discovery) walkSitemap(ctx context.Context, sitemapURL string, visited, discovered map[string]bool) {
	if visited[sitemapURL] || d.budgetReached(discovered) {
		return
	}
	visited[sitemapURL] = true

	result, err := d.fetcher.Fetch(ctx, sitemapURL)
	if err != nil || result.StatusCode != 200 {
		slog.Debug("Sitemap not available", "url", sitemapURL, "error", err)
		return
	}

	doc, err := ParseSitemap(result.Body)
	if err != nil {
		slog.Debug("Skipping malformed sitemap", "url", sitemapURL, "error", err)
		return
	}

	for _, child := range doc.ChildSitemaps {
		d.walkSitemap(ctx, child, visited, discovered)
	}

	added := 0
	for _, pageURL := range doc.PageURLs {
		if d.budgetReached(discovered) {
			break
		}
		n, err := urlutil.Normalize(pageURL)
		if err != nil || !d.scope.Contains(n) {
			continue
		}
		if !discovered[n] {
			discovered[n] = true
			added++
		}
	}

	slog.Info("Parsed sitemap", "url", sitemapURL, "urls", added, "children", len(doc.ChildSitemaps))
}

// discoverByTraversal expands the seed set breadth-first, one level at a
// time, fetching each level's pages concurrently.
func (d *Discovery) discoverByTraversal(ctx context.Context, seeds []string, discovered map[string]bool) {
	fetched := make(map[string]bool)
	level := seeds

	for depth := 1; depth <= d.cfg.MaxDepth && len(level) > 0; depth++ {
		if d.budgetReached(discovered) {
			return
		}

		var mu sync.Mutex
		var next []string
		var wg sync.WaitGroup
		gate := make(chan struct{}, d.cfg.Concurrency)

		for _, pageURL := range level {
			if fetched[pageURL] {
				continue
			}
			fetched[pageURL] = true

			if d.cfg.RespectRobots && d.robots != nil && !d.robots.CanFetch(ctx, pageURL) {
				continue
			}

			wg.Add(1)
			gate <- struct{}{}
			go func(pageURL string) {
				defer wg.Done()
				defer func() { <-gate }()

				links := d.extractLinks(ctx, pageURL)

				mu.Lock()
				defer mu.Unlock()
				for _, link := range links {
					if d.budgetReached(discovered) {
						return
					}
					if !discovered[link] {
						discovered[link] = true
						next = append(next, link)
					}
				}
			}(pageURL)
		}

		wg.Wait()
		sort.Strings(next)
		level = next

		slog.Debug("Traversal level complete", "depth", depth, "new_urls", len(next), "total", len(discovered))
	}
}

// extractLinks fetches one page and returns its in-scope outbound links.
// Failures are logged and yield an empty slice.
func (d *Discovery) extractLinks(ctx context.Context, pageURL string) []string {
	result, err := d.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		slog.Debug("Traversal fetch failed", "url", pageURL, "error", err)
		return nil
	}
	if result.StatusCode != 200 || !isHTML(result.ContentType) {
		return nil
	}

	set, err := d.links.Extract(result.FinalURL, result.Body)
	if err != nil {
		slog.Debug("Traversal parse failed", "url", pageURL, "error", err)
		return nil
	}

	var links []string
	for _, link := range set.Links {
		if d.scope.Contains(link) {
			links = append(links, link)
		}
	}
	return links
}

func isHTML(contentType string) bool {
	return strings.Contains(contentType, "text/html") ||
		strings.Contains(contentType, "application/xhtml+xml")
}
