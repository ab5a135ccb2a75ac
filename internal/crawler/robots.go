package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// robotsRecord is the cached verdict source for one origin. A nil data
// field means everything is allowed.
type robotsRecord struct {
	data     *robotstxt.RobotsData
	sitemaps []string
}

// RobotsManager fetches and caches robots.txt per origin. Fetch failures
// fail open unless strict mode is set, in which case the origin is
// denied entirely.
type RobotsManager struct {
	client    *http.Client
	userAgent string
	strict    bool

	mu    sync.Mutex
	cache map[string]*robotsRecord
}

// NewRobotsManager creates a robots manager.
func NewRobotsManager(userAgent string, timeout time.Duration, strict bool) *RobotsManager {
	return &RobotsManager{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		strict:    strict,
		cache:     make(map[string]*robotsRecord),
	}
}

// CanFetch reports whether rawURL may be crawled under its origin's
// robots.txt.
func (r *RobotsManager) CanFetch(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	rec := r.record(ctx, u.Scheme+"://"+u.Host)
	if rec.data == nil {
		return true
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return rec.data.FindGroup(r.userAgent).Test(path)
}

// CrawlDelay returns the robots.txt crawl delay for the origin serving
// rawURL, or zero when none is declared.
func (r *RobotsManager) CrawlDelay(ctx context.Context, rawURL string) time.Duration {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}

	rec := r.record(ctx, u.Scheme+"://"+u.Host)
	if rec.data == nil {
		return 0
	}
	return rec.data.FindGroup(r.userAgent).CrawlDelay
}

// Sitemaps returns the sitemap URLs the origin's robots.txt declares.
func (r *RobotsManager) Sitemaps(ctx context.Context, origin string) []string {
	return r.record(ctx, origin).sitemaps
}

// record returns the cached robots data for an origin, fetching it on
// first use.
func (r *RobotsManager) record(ctx context.Context, origin string) *robotsRecord {
	r.mu.Lock()
	if rec, ok := r.cache[origin]; ok {
		r.mu.Unlock()
		return rec
	}
	r.mu.Unlock()

	rec := r.fetch(ctx, origin)

	r.mu.Lock()
	// First fetch wins when two goroutines race for the same origin.
	if cached, ok := r.cache[origin]; ok {
		rec = cached
	} else {
		r.cache[origin] = rec
	}
	r.mu.Unlock()

	return rec
}

func (r *RobotsManager) fetch(ctx context.Context, origin string) *robotsRecord {
	robotsURL := origin + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return r.failureRecord(robotsURL, err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return r.failureRecord(robotsURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return r.failureRecord(robotsURL, err)
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return r.failureRecord(robotsURL, err)
	}

	slog.Debug("Loaded robots.txt",
		"url", robotsURL,
		"status", resp.StatusCode,
		"sitemaps", len(data.Sitemaps))

	return &robotsRecord{data: data, sitemaps: data.Sitemaps}
}

// failureRecord maps a fetch failure to a verdict source: permissive by
// default, deny-all in strict mode.
func (r *RobotsManager) failureRecord(robotsURL string, err error) *robotsRecord {
	slog.Warn("Failed to load robots.txt", "url", robotsURL, "error", err)

	if r.strict {
		return &robotsRecord{data: denyAll()}
	}
	return &robotsRecord{}
}

func denyAll() *robotstxt.RobotsData {
	data, err := robotstxt.FromString("User-agent: *\nDisallow: /\n")
	if err != nil {
		// The literal above always parses.
		panic(fmt.Sprintf("robots deny-all parse: %v", err))
	}
	return data
}
