package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sitemd/sitemd/internal/config"
	"github.com/sitemd/sitemd/internal/manifest"
)

// testSite serves a small three-page site with a sitemap.
func testSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var serverURL string

	page := func(title, body string, links ...string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Header().Set("ETag", fmt.Sprintf("%q", title))
			fmt.Fprintf(w, "<html><head><title>%s</title></head><body><main><h1>%s</h1><p>%s</p>", title, title, body)
			fmt.Fprintf(w, `<img src="/img/%s.png" alt="">`, strings.ToLower(title))
			for _, l := range links {
				fmt.Fprintf(w, `<a href="%s">more</a>`, l)
			}
			fmt.Fprint(w, "</main></body></html>")
		}
	}

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
	<url><loc>%s/</loc></url>
	<url><loc>%s/docs/intro</loc></url>
	<url><loc>%s/about</loc></url>
</urlset>`, serverURL, serverURL, serverURL)
	})
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /secret\n"))
	})
	mux.HandleFunc("/", page("Home", "Welcome home."))
	mux.HandleFunc("/docs/intro", page("Intro", "Getting started."))
	mux.HandleFunc("/about", page("About", "Who we are."))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	serverURL = server.URL
	return server
}

func testConfig(serverURL, outputDir string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.StartURLs = []string{serverURL + "/"}
	cfg.Fetch.Concurrency = 2
	cfg.Output.Directory = outputDir
	cfg.Discovery.SitemapFirst = true
	cfg.Discovery.BFSEnabled = false
	return cfg
}

func runCrawl(t *testing.T, cfg *config.Config) *StatsSnapshot {
	t.Helper()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = c.Close() }()

	// Shrink retry backoff for test speed.
	c.httpClient.retryBaseDelay = time.Millisecond
	c.httpClient.jitterMin = 0
	c.httpClient.jitterMax = time.Millisecond

	stats, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if c.State() != StateDone {
		t.Errorf("State = %v, want done", c.State())
	}
	return stats
}

func TestCrawlEndToEnd(t *testing.T) {
	server := testSite(t)
	outDir := t.TempDir()

	stats := runCrawl(t, testConfig(server.URL, outDir))

	if stats.PagesCrawled != 3 {
		t.Errorf("PagesCrawled = %d, want 3", stats.PagesCrawled)
	}
	if stats.PagesFailed != 0 {
		t.Errorf("PagesFailed = %d, want 0", stats.PagesFailed)
	}

	host := strings.TrimPrefix(server.URL, "http://")
	hostDir := strings.ReplaceAll(host, ":", "_")

	for _, rel := range []string{
		filepath.Join(hostDir, "index.md"),
		filepath.Join(hostDir, "docs", "intro.md"),
		filepath.Join(hostDir, "about.md"),
		"README.md",
		ManifestName,
	} {
		if _, err := os.Stat(filepath.Join(outDir, rel)); err != nil {
			t.Errorf("Expected output file %s: %v", rel, err)
		}
	}

	content, err := os.ReadFile(filepath.Join(outDir, hostDir, "docs", "intro.md"))
	if err != nil {
		t.Fatalf("Failed to read exported page: %v", err)
	}
	for _, want := range []string{"title: Intro", "# Intro", "Getting started."} {
		if !strings.Contains(string(content), want) {
			t.Errorf("Exported page missing %q:\n%s", want, content)
		}
	}

	summary, err := os.ReadFile(filepath.Join(outDir, "README.md"))
	if err != nil {
		t.Fatalf("Failed to read summary: %v", err)
	}
	if !strings.Contains(string(summary), "# Crawl Summary") {
		t.Errorf("Summary missing header:\n%s", summary)
	}
}

func TestCrawlRecordsManifest(t *testing.T) {
	server := testSite(t)
	outDir := t.TempDir()

	runCrawl(t, testConfig(server.URL, outDir))

	m, err := manifest.Open(filepath.Join(outDir, ManifestName))
	if err != nil {
		t.Fatalf("Open manifest failed: %v", err)
	}
	defer func() { _ = m.Close() }()

	counts, err := m.PageCounts()
	if err != nil {
		t.Fatalf("PageCounts failed: %v", err)
	}
	if counts[manifest.StatusSuccess] != 3 {
		t.Errorf("Manifest success count = %d, want 3", counts[manifest.StatusSuccess])
	}

	rec, err := m.GetPage(server.URL + "/docs/intro")
	if err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}
	if rec == nil {
		t.Fatal("No manifest record for crawled page")
	}
	if rec.ETag != `"Intro"` {
		t.Errorf("Recorded ETag = %q", rec.ETag)
	}
	if rec.Title != "Intro" {
		t.Errorf("Recorded title = %q", rec.Title)
	}
	if rec.OutputPath == "" || rec.ContentHash == "" {
		t.Errorf("Record incomplete: %+v", rec)
	}
}

func TestCrawlRecordsAssets(t *testing.T) {
	server := testSite(t)
	outDir := t.TempDir()

	stats := runCrawl(t, testConfig(server.URL, outDir))

	// One image per page.
	if stats.AssetsSeen != 3 {
		t.Errorf("AssetsSeen = %d, want 3", stats.AssetsSeen)
	}

	m, err := manifest.Open(filepath.Join(outDir, ManifestName))
	if err != nil {
		t.Fatalf("Open manifest failed: %v", err)
	}
	defer func() { _ = m.Close() }()

	count, err := m.AssetCount()
	if err != nil {
		t.Fatalf("AssetCount failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Manifest asset count = %d, want 3", count)
	}
}

func TestCrawlIncrementalSkipsUnchanged(t *testing.T) {
	server := testSite(t)
	outDir := t.TempDir()

	cfg := testConfig(server.URL, outDir)
	first := runCrawl(t, cfg)
	if first.PagesCrawled != 3 {
		t.Fatalf("First run crawled %d pages", first.PagesCrawled)
	}

	cfg.Incremental.Enabled = true
	second := runCrawl(t, cfg)

	if second.PagesCached != 3 {
		t.Errorf("Second run PagesCached = %d, want 3", second.PagesCached)
	}
	if second.PagesCrawled != 0 {
		t.Errorf("Second run PagesCrawled = %d, want 0", second.PagesCrawled)
	}
}

func TestCrawlRespectsRobots(t *testing.T) {
	mux := http.NewServeMux()
	var serverURL string

	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	})
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
	<url><loc>%s/</loc></url>
	<url><loc>%s/private</loc></url>
</urlset>`, serverURL, serverURL)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><main><p>public</p></main></body></html>"))
	})
	var privateHits int
	mux.HandleFunc("/private", func(w http.ResponseWriter, r *http.Request) {
		privateHits++
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>secret</body></html>"))
	})

	server := httptest.NewServer(mux)
	defer server.Close()
	serverURL = server.URL

	stats := runCrawl(t, testConfig(server.URL, t.TempDir()))

	if privateHits != 0 {
		t.Errorf("Disallowed page fetched %d times", privateHits)
	}
	if stats.PagesCrawled != 1 {
		t.Errorf("PagesCrawled = %d, want 1", stats.PagesCrawled)
	}
	if stats.PagesFailed != 0 {
		t.Errorf("PagesFailed = %d, want 0 (robots skip is not a failure)", stats.PagesFailed)
	}
	if stats.PagesSkipped != 1 {
		t.Errorf("PagesSkipped = %d, want 1", stats.PagesSkipped)
	}
}

func TestCrawlCountsContentTypeSkips(t *testing.T) {
	mux := http.NewServeMux()
	var serverURL string

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
	<url><loc>%s/</loc></url>
	<url><loc>%s/api/data</loc></url>
</urlset>`, serverURL, serverURL)
	})
	mux.HandleFunc("/api/data", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><main><p>page</p></main></body></html>"))
	})

	server := httptest.NewServer(mux)
	defer server.Close()
	serverURL = server.URL

	stats := runCrawl(t, testConfig(server.URL, t.TempDir()))

	if stats.PagesCrawled != 1 {
		t.Errorf("PagesCrawled = %d, want 1", stats.PagesCrawled)
	}
	if stats.PagesSkipped != 1 {
		t.Errorf("PagesSkipped = %d, want 1", stats.PagesSkipped)
	}
	if stats.PagesFailed != 0 {
		t.Errorf("PagesFailed = %d, want 0", stats.PagesFailed)
	}
}

func TestCrawlMaxPagesBudget(t *testing.T) {
	mux := http.NewServeMux()
	var serverURL string

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
		for i := 0; i < 20; i++ {
			fmt.Fprintf(w, "<url><loc>%s/page-%02d</loc></url>", serverURL, i)
		}
		fmt.Fprint(w, `</urlset>`)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body><main><p>page</p></main></body></html>")
	})

	server := httptest.NewServer(mux)
	defer server.Close()
	serverURL = server.URL

	cfg := testConfig(server.URL, t.TempDir())
	cfg.Limits.MaxPages = 5
	stats := runCrawl(t, cfg)

	if total := stats.PagesCrawled + stats.PagesFailed; total > 5 {
		t.Errorf("Budget exceeded: %d pages processed", total)
	}
}

func TestCrawlFailuresAreIsolated(t *testing.T) {
	mux := http.NewServeMux()
	var serverURL string

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
	<url><loc>%s/good</loc></url>
	<url><loc>%s/broken</loc></url>
</urlset>`, serverURL, serverURL)
	})
	mux.HandleFunc("/good", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body><main><p>fine</p></main></body></html>")
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	server := httptest.NewServer(mux)
	defer server.Close()
	serverURL = server.URL

	stats := runCrawl(t, testConfig(server.URL, t.TempDir()))

	if stats.PagesCrawled != 1 {
		t.Errorf("PagesCrawled = %d, want 1", stats.PagesCrawled)
	}
	// Seed and /broken both 404.
	if stats.PagesFailed != 2 {
		t.Errorf("PagesFailed = %d, want 2", stats.PagesFailed)
	}
}

func TestPreview(t *testing.T) {
	server := testSite(t)

	c, err := New(testConfig(server.URL, t.TempDir()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = c.Close() }()

	urls := c.Preview(context.Background())
	if len(urls) != 3 {
		t.Errorf("Preview = %v, want 3 URLs", urls)
	}
	if c.State() != StateDone {
		t.Errorf("State = %v, want done", c.State())
	}

	// Preview must not export anything.
	entries, err := os.ReadDir(c.writer.Root())
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		if e.Name() != ManifestName && !strings.HasPrefix(e.Name(), ManifestName) {
			t.Errorf("Preview created %s", e.Name())
		}
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	// No start URLs.
	if _, err := New(cfg); err == nil {
		t.Error("New accepted a config without start URLs")
	}
}
