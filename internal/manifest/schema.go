package manifest

// schemaSQL defines the manifest tables. The manifest lives in the crawl
// output directory and is keyed by URL so repeat crawls upsert in place.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS pages (
    url           TEXT PRIMARY KEY,
    title         TEXT,
    canonical_url TEXT,
    status        TEXT NOT NULL,
    status_code   INTEGER,
    etag          TEXT,
    last_modified TEXT,
    content_hash  TEXT,
    output_path   TEXT,
    content_type  TEXT,
    size_bytes    INTEGER DEFAULT 0,
    fetched_at    TIMESTAMP,
    error         TEXT
);

CREATE INDEX IF NOT EXISTS idx_pages_status ON pages(status);

CREATE TABLE IF NOT EXISTS assets (
    url           TEXT PRIMARY KEY,
    page_url      TEXT NOT NULL,
    discovered_at TIMESTAMP,
    FOREIGN KEY (page_url) REFERENCES pages(url)
);

CREATE INDEX IF NOT EXISTS idx_assets_page_url ON assets(page_url);

CREATE TABLE IF NOT EXISTS crawl_sessions (
    id            TEXT PRIMARY KEY,
    started_at    TIMESTAMP NOT NULL,
    finished_at   TIMESTAMP,
    status        TEXT NOT NULL,
    config_hash   TEXT,
    pages_crawled INTEGER DEFAULT 0,
    pages_cached  INTEGER DEFAULT 0,
    pages_failed  INTEGER DEFAULT 0,
    pages_skipped INTEGER DEFAULT 0,
    assets_seen   INTEGER DEFAULT 0,
    total_bytes   INTEGER DEFAULT 0
);
`
