package crawler

import (
	"net/http"
	"sync"
	"time"
)

// FetchResult is the outcome of retrieving one URL, whether over plain
// HTTP or through the headless renderer.
type FetchResult struct {
	StatusCode  int
	Body        []byte
	Headers     http.Header
	ContentType string
	FinalURL    string // after following redirects
	Rendered    bool   // true when the body came from the headless browser
}

// ETag returns the response ETag header, if any.
func (r *FetchResult) ETag() string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get("ETag")
}

// LastModified returns the raw Last-Modified header, if any.
func (r *FetchResult) LastModified() string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get("Last-Modified")
}

// Validators are the freshness headers obtained from a HEAD probe.
type Validators struct {
	ETag         string
	LastModified string
}

// Stats tracks crawl counters. All mutators are safe for concurrent use.
type Stats struct {
	mu sync.Mutex

	PagesCrawled int
	PagesCached  int
	PagesFailed  int
	PagesSkipped int
	AssetsSeen   int
	TotalBytes   int64
	StartTime    time.Time
	EndTime      time.Time
}

// AddCrawled records one exported page and its size.
func (s *Stats) AddCrawled(bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PagesCrawled++
	s.TotalBytes += bytes
}

// AddCached records one page skipped as up to date.
func (s *Stats) AddCached() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PagesCached++
}

// AddFailed records one page that could not be exported.
func (s *Stats) AddFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PagesFailed++
}

// AddSkipped records one page passed over by policy, such as a robots
// disallow or an unsupported content type.
func (s *Stats) AddSkipped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PagesSkipped++
}

// AddAssets records n asset references.
func (s *Stats) AddAssets(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AssetsSeen += n
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	PagesCrawled int
	PagesCached  int
	PagesFailed  int
	PagesSkipped int
	AssetsSeen   int
	TotalBytes   int64
	StartTime    time.Time
	EndTime      time.Time
}

// Snapshot returns a copy of the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsSnapshot{
		PagesCrawled: s.PagesCrawled,
		PagesCached:  s.PagesCached,
		PagesFailed:  s.PagesFailed,
		PagesSkipped: s.PagesSkipped,
		AssetsSeen:   s.AssetsSeen,
		TotalBytes:   s.TotalBytes,
		StartTime:    s.StartTime,
		EndTime:      s.EndTime,
	}
}

// Total returns how many pages reached a terminal state.
func (s *Stats) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PagesCrawled + s.PagesCached + s.PagesFailed + s.PagesSkipped
}

// State is the crawl lifecycle phase.
type State int32

const (
	StateIdle State = iota
	StateDiscovering
	StateFetching
	StateFinalizing
	StateDone
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDiscovering:
		return "discovering"
	case StateFetching:
		return "fetching"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
