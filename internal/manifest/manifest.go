// Package manifest persists crawl state in a SQLite database under the
// output directory. It records per-page fetch results and validators so
// incremental crawls can skip pages that have not changed.
package manifest

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	// SQLite database driver (CGO-free)
	_ "modernc.org/sqlite"
)

// Page statuses stored in the manifest.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// PageRecord is one page's entry in the manifest.
type PageRecord struct {
	URL          string
	Title        string
	Canonical    string
	Status       string
	StatusCode   int
	ETag         string
	LastModified string
	ContentHash  string
	OutputPath   string
	ContentType  string
	SizeBytes    int64
	FetchedAt    time.Time
	Error        string
}

// SessionCounts are the totals recorded when a crawl session finishes.
type SessionCounts struct {
	PagesCrawled int
	PagesCached  int
	PagesFailed  int
	PagesSkipped int
	AssetsSeen   int
	TotalBytes   int64
}

// Manifest is a SQLite-backed page manifest.
type Manifest struct {
	db *sql.DB
}

// Open opens or creates the manifest database at path.
func Open(path string) (*Manifest, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}

	// Single connection prevents lock conflicts under concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	m := &Manifest{db: db}
	if err := m.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize manifest schema: %w", err)
	}

	return m, nil
}

func (m *Manifest) initSchema() error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 30000",
	}

	for _, pragma := range pragmas {
		if _, err := m.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}

	if _, err := m.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (m *Manifest) Close() error {
	return m.db.Close()
}

// UpdatePage upserts a page record keyed by URL.
func (m *Manifest) UpdatePage(rec PageRecord) error {
	_, err := m.db.Exec(`
		INSERT INTO pages (url, title, canonical_url, status, status_code, etag, last_modified,
		                   content_hash, output_path, content_type, size_bytes, fetched_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			title         = excluded.title,
			canonical_url = excluded.canonical_url,
			status        = excluded.status,
			status_code   = excluded.status_code,
			etag          = excluded.etag,
			last_modified = excluded.last_modified,
			content_hash  = excluded.content_hash,
			output_path   = excluded.output_path,
			content_type  = excluded.content_type,
			size_bytes    = excluded.size_bytes,
			fetched_at    = excluded.fetched_at,
			error         = excluded.error
	`, rec.URL, rec.Title, rec.Canonical, rec.Status, rec.StatusCode, rec.ETag,
		rec.LastModified, rec.ContentHash, rec.OutputPath, rec.ContentType,
		rec.SizeBytes, rec.FetchedAt, rec.Error)
	if err != nil {
		return fmt.Errorf("failed to upsert page %s: %w", rec.URL, err)
	}
	return nil
}

// GetPage returns the stored record for url, or nil when none exists.
func (m *Manifest) GetPage(url string) (*PageRecord, error) {
	var rec PageRecord
	var fetchedAt sql.NullTime

	err := m.db.QueryRow(`
		SELECT url, title, canonical_url, status, status_code, etag, last_modified,
		       content_hash, output_path, content_type, size_bytes, fetched_at, error
		FROM pages WHERE url = ?
	`, url).Scan(&rec.URL, &rec.Title, &rec.Canonical, &rec.Status, &rec.StatusCode,
		&rec.ETag, &rec.LastModified, &rec.ContentHash, &rec.OutputPath,
		&rec.ContentType, &rec.SizeBytes, &fetchedAt, &rec.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load page %s: %w", url, err)
	}

	if fetchedAt.Valid {
		rec.FetchedAt = fetchedAt.Time
	}
	return &rec, nil
}

// IsUpToDate reports whether the stored record for url matches the given
// current validators. Comparison prefers ETag, then Last-Modified, then
// the content hash; a page with no successful record is never up to date,
// and a record with no comparable validator is treated as stale.
func (m *Manifest) IsUpToDate(url, etag, lastModified, contentHash string) (bool, error) {
	rec, err := m.GetPage(url)
	if err != nil {
		return false, err
	}
	if rec == nil || rec.Status != StatusSuccess {
		return false, nil
	}

	if rec.ETag != "" && etag != "" {
		return rec.ETag == etag, nil
	}
	if rec.LastModified != "" && lastModified != "" {
		return rec.LastModified == lastModified, nil
	}
	if rec.ContentHash != "" && contentHash != "" {
		return rec.ContentHash == contentHash, nil
	}
	return false, nil
}

// RecordAsset registers an asset reference discovered on pageURL.
// Repeated sightings keep the first record.
func (m *Manifest) RecordAsset(url, pageURL string) error {
	_, err := m.db.Exec(`
		INSERT OR IGNORE INTO assets (url, page_url, discovered_at)
		VALUES (?, ?, ?)
	`, url, pageURL, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record asset %s: %w", url, err)
	}
	return nil
}

// StartSession creates a new crawl session and returns its ID.
func (m *Manifest) StartSession(configHash string) (string, error) {
	id := uuid.NewString()
	_, err := m.db.Exec(`
		INSERT INTO crawl_sessions (id, started_at, status, config_hash)
		VALUES (?, ?, 'running', ?)
	`, id, time.Now().UTC(), configHash)
	if err != nil {
		return "", fmt.Errorf("failed to start session: %w", err)
	}
	return id, nil
}

// FinishSession records the final counters and status for a session.
func (m *Manifest) FinishSession(id, status string, counts SessionCounts) error {
	_, err := m.db.Exec(`
		UPDATE crawl_sessions
		SET finished_at = ?, status = ?, pages_crawled = ?, pages_cached = ?,
		    pages_failed = ?, pages_skipped = ?, assets_seen = ?, total_bytes = ?
		WHERE id = ?
	`, time.Now().UTC(), status, counts.PagesCrawled, counts.PagesCached,
		counts.PagesFailed, counts.PagesSkipped, counts.AssetsSeen, counts.TotalBytes, id)
	if err != nil {
		return fmt.Errorf("failed to finish session %s: %w", id, err)
	}
	return nil
}

// PageCounts returns the number of pages per status.
func (m *Manifest) PageCounts() (map[string]int, error) {
	rows, err := m.db.Query(`SELECT status, COUNT(*) FROM pages GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count pages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// AssetCount returns the total number of recorded assets.
func (m *Manifest) AssetCount() (int, error) {
	var n int
	err := m.db.QueryRow(`SELECT COUNT(*) FROM assets`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count assets: %w", err)
	}
	return n, nil
}
