// Package crawler implements the crawl pipeline: URL discovery, a
// prioritized frontier, politeness-aware concurrent fetching, and
// handoff to the extraction and export collaborators.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sitemd/sitemd/internal/config"
	"github.com/sitemd/sitemd/internal/convert"
	"github.com/sitemd/sitemd/internal/export"
	"github.com/sitemd/sitemd/internal/extract"
	"github.com/sitemd/sitemd/internal/manifest"
	"github.com/sitemd/sitemd/internal/parser"
	"github.com/sitemd/sitemd/internal/report"
	"github.com/sitemd/sitemd/internal/urlutil"
)

// ManifestName is the manifest database file under the output directory.
const ManifestName = "manifest.db"

// SummaryName is the crawl summary file under the output directory.
const SummaryName = "README.md"

// Crawler drives a full crawl from seed URLs to exported Markdown.
type Crawler struct {
	cfg   *config.Config
	scope *urlutil.Scope

	httpClient *HTTPClient
	fetcher    Fetcher
	renderer   *RenderFetcher
	robots     *RobotsManager
	limiter    *RateLimiter
	frontier   *Frontier
	discovery  *Discovery
	links      LinkExtractor
	extractor  Extractor
	converter  *convert.Converter
	writer     *export.Writer
	manifest   *manifest.Manifest

	stats   Stats
	state   atomic.Int32
	stopped atomic.Bool
}

// New wires a crawler from configuration. The output directory and
// manifest are created eagerly so setup failures surface before any
// network traffic.
func New(cfg *config.Config) (*Crawler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	scope, err := urlutil.NewScope(cfg.StartURLs[0], cfg.Scope.AllowSubdomains, cfg.Scope.Include, cfg.Scope.Exclude)
	if err != nil {
		return nil, fmt.Errorf("invalid scope: %w", err)
	}

	writer, err := export.NewWriter(cfg.Output.Directory)
	if err != nil {
		return nil, err
	}

	man, err := manifest.Open(filepath.Join(cfg.Output.Directory, ManifestName))
	if err != nil {
		return nil, err
	}

	httpClient := NewHTTPClient(cfg.Fetch.UserAgent, cfg.Fetch.Timeout)

	// The manager is created even when enforcement is off: discovery still
	// reads Sitemap directives out of robots.txt.
	robotsManager := NewRobotsManager(cfg.Fetch.UserAgent, cfg.Fetch.Timeout, cfg.Fetch.StrictRobots)
	var robots *RobotsManager
	if cfg.Fetch.RespectRobots {
		robots = robotsManager
	}

	c := &Crawler{
		cfg:        cfg,
		scope:      scope,
		httpClient: httpClient,
		fetcher:    httpClient,
		robots:     robots,
		limiter:    NewRateLimiter(cfg.Delay()),
		frontier:   NewFrontier(),
		links:      parser.NewLinkExtractor(),
		extractor:  extract.NewExtractor(),
		converter:  convert.NewConverter(),
		writer:     writer,
		manifest:   man,
	}

	if cfg.Render.Enabled {
		c.renderer = NewRenderFetcher(cfg.Fetch.UserAgent, cfg.Render.WaitFor,
			cfg.Render.Timeout, cfg.Fetch.Concurrency, httpClient)
		c.fetcher = c.renderer
	}

	c.discovery = NewDiscovery(httpClient, c.links, robotsManager, scope, DiscoveryConfig{
		MaxPages:      cfg.Limits.MaxPages,
		MaxDepth:      cfg.Limits.MaxDepth,
		Concurrency:   cfg.Fetch.Concurrency,
		SitemapFirst:  cfg.Discovery.SitemapFirst,
		BFSEnabled:    cfg.Discovery.BFSEnabled,
		RespectRobots: cfg.Fetch.RespectRobots,
	})

	return c, nil
}

// State returns the current lifecycle phase.
func (c *Crawler) State() State {
	return State(c.state.Load())
}

// Stop requests a cooperative shutdown. In-flight fetches finish; no new
// URLs are dispatched.
func (c *Crawler) Stop() {
	c.stopped.Store(true)
}

// Close releases the crawler's resources. Safe to call after a failed
// Run.
func (c *Crawler) Close() error {
	if c.renderer != nil {
		c.renderer.Close()
	}
	c.httpClient.Close()
	return c.manifest.Close()
}

// Preview runs discovery only and returns the candidate URL list without
// fetching or exporting anything.
func (c *Crawler) Preview(ctx context.Context) []string {
	c.state.Store(int32(StateDiscovering))
	urls := c.discovery.Discover(ctx, c.cfg.StartURLs)
	c.state.Store(int32(StateDone))
	return urls
}

// Run executes the full crawl and returns the final counters.
func (c *Crawler) Run(ctx context.Context) (*StatsSnapshot, error) {
	c.stats.StartTime = time.Now()

	sessionID, err := c.manifest.StartSession(c.cfg.Hash())
	if err != nil {
		c.state.Store(int32(StateFailed))
		return nil, err
	}

	c.state.Store(int32(StateDiscovering))
	slog.Info("Discovery started", "seeds", len(c.cfg.StartURLs))

	discovered := c.discovery.Discover(ctx, c.cfg.StartURLs)
	c.frontier.AddURLs(discovered)
	slog.Info("Discovery complete", "urls", len(discovered))

	c.state.Store(int32(StateFetching))
	c.fetchLoop(ctx)

	c.state.Store(int32(StateFinalizing))
	c.stats.EndTime = time.Now()

	if err := c.finalize(sessionID); err != nil {
		c.state.Store(int32(StateFailed))
		return nil, err
	}

	snapshot := c.stats.Snapshot()
	if snapshot.PagesCrawled == 0 && snapshot.PagesCached == 0 && snapshot.PagesFailed > 0 {
		c.state.Store(int32(StateFailed))
		return &snapshot, fmt.Errorf("all %d pages failed", snapshot.PagesFailed)
	}

	c.state.Store(int32(StateDone))
	return &snapshot, nil
}

// fetchLoop drains the frontier with bounded concurrency until the queue
// empties, the page budget is spent, or the crawl is stopped.
func (c *Crawler) fetchLoop(ctx context.Context) {
	gate := make(chan struct{}, c.cfg.Fetch.Concurrency)
	var wg sync.WaitGroup

	dispatched := 0
	for {
		if c.stopped.Load() || ctx.Err() != nil {
			break
		}
		if c.cfg.Limits.MaxPages > 0 && dispatched >= c.cfg.Limits.MaxPages {
			break
		}

		pageURL, ok := c.frontier.Next()
		if !ok {
			break
		}
		dispatched++

		wg.Add(1)
		gate <- struct{}{}
		go func(pageURL string) {
			defer wg.Done()
			defer func() { <-gate }()
			c.processURL(ctx, pageURL)
		}(pageURL)
	}

	wg.Wait()
}

// processURL runs one URL through the pipeline. Failures are recorded
// and isolated; they never abort the crawl.
func (c *Crawler) processURL(ctx context.Context, pageURL string) {
	if c.robots != nil {
		if !c.robots.CanFetch(ctx, pageURL) {
			slog.Debug("Disallowed by robots.txt", "url", pageURL)
			c.recordSkip(pageURL, "robots.txt disallows")
			return
		}
		if delay := c.robots.CrawlDelay(ctx, pageURL); delay > 0 {
			if u, err := url.Parse(pageURL); err == nil {
				c.limiter.SetHostDelay(u.Host, delay)
			}
		}
	}

	if c.cfg.Incremental.Enabled && c.isUpToDate(ctx, pageURL) {
		slog.Debug("Up to date, skipping", "url", pageURL)
		c.stats.AddCached()
		return
	}

	if err := c.limiter.Wait(ctx, pageURL); err != nil {
		c.recordFailure(pageURL, 0, err)
		return
	}

	result, err := c.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		c.recordFailure(pageURL, 0, err)
		return
	}
	if result.StatusCode >= 400 {
		c.recordFailure(pageURL, result.StatusCode, fmt.Errorf("status %d", result.StatusCode))
		return
	}
	if len(result.Body) == 0 {
		c.recordFailure(pageURL, result.StatusCode, fmt.Errorf("empty response body"))
		return
	}
	if !result.Rendered && !isHTML(result.ContentType) {
		c.recordSkip(pageURL, "unsupported content type "+result.ContentType)
		return
	}

	content, err := c.extractor.Extract(pageURL, result.Body)
	if err != nil {
		c.recordFailure(pageURL, result.StatusCode, fmt.Errorf("extraction: %w", err))
		return
	}

	converted, err := c.converter.Convert(content)
	if err != nil {
		c.recordFailure(pageURL, result.StatusCode, fmt.Errorf("conversion: %w", err))
		return
	}

	relPath, err := c.writer.Write(pageURL, converted.Document)
	if err != nil {
		c.recordFailure(pageURL, result.StatusCode, fmt.Errorf("export: %w", err))
		return
	}

	rec := manifest.PageRecord{
		URL:          pageURL,
		Title:        content.Title,
		Canonical:    content.Canonical,
		Status:       manifest.StatusSuccess,
		StatusCode:   result.StatusCode,
		ETag:         result.ETag(),
		LastModified: result.LastModified(),
		ContentHash:  converted.ContentHash,
		OutputPath:   relPath,
		ContentType:  result.ContentType,
		SizeBytes:    int64(len(converted.Document)),
		FetchedAt:    time.Now().UTC(),
	}
	if err := c.manifest.UpdatePage(rec); err != nil {
		slog.Error("Manifest update failed", "url", pageURL, "error", err)
	}

	// Asset rows reference the page row, so the page upsert goes first.
	c.recordAssets(pageURL, result)

	c.stats.AddCrawled(int64(len(converted.Document)))
	slog.Info("Exported page", "url", pageURL, "path", relPath, "bytes", len(converted.Document))
}

// isUpToDate probes the URL's current validators and compares them with
// the manifest. Any error degrades to re-crawling the page.
func (c *Crawler) isUpToDate(ctx context.Context, pageURL string) bool {
	validators, err := c.httpClient.Head(ctx, pageURL)
	if err != nil {
		slog.Debug("Validator probe failed, re-crawling", "url", pageURL, "error", err)
		return false
	}

	upToDate, err := c.manifest.IsUpToDate(pageURL, validators.ETag, validators.LastModified, "")
	if err != nil {
		slog.Warn("Manifest freshness check failed, re-crawling", "url", pageURL, "error", err)
		return false
	}
	return upToDate
}

// recordAssets registers in-scope asset references found on the page.
func (c *Crawler) recordAssets(pageURL string, result *FetchResult) {
	set, err := c.links.Extract(result.FinalURL, result.Body)
	if err != nil {
		return
	}

	count := 0
	for _, asset := range set.Assets {
		if err := c.manifest.RecordAsset(asset, pageURL); err != nil {
			slog.Debug("Asset record failed", "url", asset, "error", err)
			continue
		}
		count++
	}
	if count > 0 {
		c.stats.AddAssets(count)
	}
}

func (c *Crawler) recordFailure(pageURL string, statusCode int, cause error) {
	slog.Warn("Page failed", "url", pageURL, "status", statusCode, "error", cause)
	c.frontier.MarkFailed(pageURL)
	c.stats.AddFailed()

	rec := manifest.PageRecord{
		URL:        pageURL,
		Status:     manifest.StatusFailed,
		StatusCode: statusCode,
		FetchedAt:  time.Now().UTC(),
		Error:      cause.Error(),
	}
	if err := c.manifest.UpdatePage(rec); err != nil {
		slog.Error("Manifest update failed", "url", pageURL, "error", err)
	}
}

func (c *Crawler) recordSkip(pageURL, reason string) {
	c.stats.AddSkipped()

	rec := manifest.PageRecord{
		URL:       pageURL,
		Status:    manifest.StatusSkipped,
		FetchedAt: time.Now().UTC(),
		Error:     reason,
	}
	if err := c.manifest.UpdatePage(rec); err != nil {
		slog.Error("Manifest update failed", "url", pageURL, "error", err)
	}
}

// finalize writes the summary artifact and closes out the session row.
func (c *Crawler) finalize(sessionID string) error {
	snapshot := c.stats.Snapshot()

	status := "completed"
	if c.stopped.Load() {
		status = "stopped"
	}

	err := c.manifest.FinishSession(sessionID, status, manifest.SessionCounts{
		PagesCrawled: snapshot.PagesCrawled,
		PagesCached:  snapshot.PagesCached,
		PagesFailed:  snapshot.PagesFailed,
		PagesSkipped: snapshot.PagesSkipped,
		AssetsSeen:   snapshot.AssetsSeen,
		TotalBytes:   snapshot.TotalBytes,
	})
	if err != nil {
		return err
	}

	summary := &report.Summary{
		SessionID:    sessionID,
		StartURLs:    c.cfg.StartURLs,
		StartTime:    c.stats.StartTime,
		EndTime:      c.stats.EndTime,
		PagesCrawled: snapshot.PagesCrawled,
		PagesCached:  snapshot.PagesCached,
		PagesFailed:  snapshot.PagesFailed,
		PagesSkipped: snapshot.PagesSkipped,
		AssetsSeen:   snapshot.AssetsSeen,
		TotalBytes:   snapshot.TotalBytes,
		OutputDir:    c.writer.Root(),
		Incremental:  c.cfg.Incremental.Enabled,
		RenderUsed:   c.cfg.Render.Enabled,
		MaxPages:     c.cfg.Limits.MaxPages,
		MaxDepth:     c.cfg.Limits.MaxDepth,
	}

	var sb strings.Builder
	if err := report.Write(&sb, summary); err != nil {
		return err
	}
	return c.writer.WriteRaw(SummaryName, sb.String())
}
