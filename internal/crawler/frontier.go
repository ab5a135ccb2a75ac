package crawler

import (
	"container/heap"
	"net/url"
	"strings"
	"sync"

	"github.com/sitemd/sitemd/internal/urlutil"
)

// Priority weights. Lower values are fetched first.
const (
	priorityRoot    = 10
	priorityDocs    = 20
	priorityAPI     = 30
	priorityBlog    = 80
	priorityDefault = 100
	priorityAsset   = 200

	depthWeight    = 5
	depthWeightCap = 50
	queryPenalty   = 10
)

var docSegments = map[string]bool{
	"doc": true, "docs": true, "documentation": true,
	"guide": true, "guides": true,
	"help": true, "manual": true,
	"tutorial": true, "tutorials": true,
	"getting-started": true,
}

var apiSegments = map[string]bool{
	"api": true, "apis": true, "reference": true,
}

var blogSegments = map[string]bool{
	"blog": true, "news": true, "press": true, "changelog": true,
}

// Priority scores a URL by its shape. Documentation-like paths rank ahead
// of blog posts and asset files; deeper paths and query strings rank
// later within their class.
func Priority(rawURL string) int {
	u, err := url.Parse(rawURL)
	if err != nil {
		return priorityDefault
	}

	base := priorityDefault
	segments := splitPath(u.Path)

	switch {
	case len(segments) == 0:
		base = priorityRoot
	case !urlutil.IsContentURL(rawURL):
		base = priorityAsset
	default:
		for _, seg := range segments {
			if docSegments[seg] {
				base = priorityDocs
				break
			}
			if apiSegments[seg] {
				base = priorityAPI
				break
			}
			if blogSegments[seg] {
				base = priorityBlog
				break
			}
		}
	}

	depth := len(segments) * depthWeight
	if depth > depthWeightCap {
		depth = depthWeightCap
	}
	score := base + depth

	if u.RawQuery != "" {
		score += queryPenalty
	}
	return score
}

func splitPath(path string) []string {
	var segments []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segments = append(segments, strings.ToLower(seg))
		}
	}
	return segments
}

type frontierItem struct {
	url      string
	priority int
	seq      uint64 // insertion order, breaks priority ties
}

type itemHeap []*frontierItem

func (h itemHeap) Len() int { return len(h) }
func (h itemHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h itemHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *itemHeap) Push(x any)        { *h = append(*h, x.(*frontierItem)) }
func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// FrontierStats is a snapshot of the queue counters.
type FrontierStats struct {
	Queued    int
	Processed int
	Failed    int
	Total     int
}

// Frontier is the priority queue of URLs waiting to be fetched. A URL is
// accepted at most once for the lifetime of the frontier: once dequeued
// it counts as processed and is never handed out again, even when re-added.
type Frontier struct {
	mu        sync.Mutex
	heap      itemHeap
	seen      map[string]bool
	dequeued  map[string]bool
	processed int
	failed    int
	seq       uint64
}

// NewFrontier creates an empty frontier.
func NewFrontier() *Frontier {
	f := &Frontier{
		seen:     make(map[string]bool),
		dequeued: make(map[string]bool),
	}
	heap.Init(&f.heap)
	return f
}

// Add queues a URL at its computed priority. It returns false when the
// URL was already seen.
func (f *Frontier) Add(url string) bool {
	return f.AddWithPriority(url, Priority(url))
}

// AddURLs queues each URL at its computed priority and returns how many
// were new.
func (f *Frontier) AddURLs(urls []string) int {
	added := 0
	for _, u := range urls {
		if f.Add(u) {
			added++
		}
	}
	return added
}

// AddWithPriority queues a URL at an explicit priority.
func (f *Frontier) AddWithPriority(url string, priority int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.seen[url] {
		return false
	}
	f.seen[url] = true

	f.seq++
	heap.Push(&f.heap, &frontierItem{url: url, priority: priority, seq: f.seq})
	return true
}

// Next pops the most urgent URL and marks it processed before returning,
// so concurrent drainers never see the same URL twice. The second return
// is false when the frontier is empty.
func (f *Frontier) Next() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.heap.Len() == 0 {
		return "", false
	}
	item := heap.Pop(&f.heap).(*frontierItem)
	f.dequeued[item.url] = true
	f.processed++
	return item.url, true
}

// NextBatch pops up to n URLs in priority order. It returns fewer when
// the queue drains first, and never blocks for new insertions.
func (f *Frontier) NextBatch(n int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var batch []string
	for len(batch) < n && f.heap.Len() > 0 {
		item := heap.Pop(&f.heap).(*frontierItem)
		f.dequeued[item.url] = true
		f.processed++
		batch = append(batch, item.url)
	}
	return batch
}

// MarkFailed reclassifies one dequeued URL as failed. URLs that were
// never handed out, or were already marked, are ignored so the counters
// cannot be skewed.
func (f *Frontier) MarkFailed(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.dequeued[url] {
		return
	}
	delete(f.dequeued, url)
	f.processed--
	f.failed++
}

// Stats returns the current queue counters.
func (f *Frontier) Stats() FrontierStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FrontierStats{
		Queued:    f.heap.Len(),
		Processed: f.processed,
		Failed:    f.failed,
		Total:     len(f.seen),
	}
}

// Len returns the number of queued URLs.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heap.Len()
}

// Seen reports whether the URL was ever added.
func (f *Frontier) Seen(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[url]
}
