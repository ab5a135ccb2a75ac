// Package config provides configuration management for the crawler.
// It defines the recognized option surface, default values, and validation.
package config

import (
	"crypto/sha256"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// ScopeConfig bounds which discovered URLs belong to the crawl.
type ScopeConfig struct {
	AllowSubdomains bool     `mapstructure:"allow_subdomains" yaml:"allow_subdomains"` // Treat subdomains of the seed's registrable domain as in-scope
	Include         []string `mapstructure:"include" yaml:"include"`                   // Regex patterns a URL must match (when non-empty)
	Exclude         []string `mapstructure:"exclude" yaml:"exclude"`                   // Regex patterns that reject a URL
}

// LimitsConfig caps the crawl size.
type LimitsConfig struct {
	MaxPages int `mapstructure:"max_pages" yaml:"max_pages"` // Stop after N pages (0=unlimited)
	MaxDepth int `mapstructure:"max_depth" yaml:"max_depth"` // BFS link-traversal depth
}

// FetchConfig controls the HTTP fetch path and politeness.
type FetchConfig struct {
	Concurrency   int           `mapstructure:"concurrency" yaml:"concurrency"`       // Number of simultaneous in-flight fetches
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`               // Per-request timeout
	RespectRobots bool          `mapstructure:"respect_robots" yaml:"respect_robots"` // Honor robots.txt rules
	StrictRobots  bool          `mapstructure:"strict_robots" yaml:"strict_robots"`   // Deny on robots fetch errors instead of failing open
	UserAgent     string        `mapstructure:"user_agent" yaml:"user_agent"`         // HTTP User-Agent header
	DelaySeconds  float64       `mapstructure:"delay_seconds" yaml:"delay_seconds"`   // Inter-request delay per domain
}

// DiscoveryConfig selects URL discovery strategies.
type DiscoveryConfig struct {
	SitemapFirst bool `mapstructure:"sitemap_first" yaml:"sitemap_first"` // Probe sitemaps before link traversal
	BFSEnabled   bool `mapstructure:"bfs_enabled" yaml:"bfs_enabled"`     // Breadth-first link traversal
}

// IncrementalConfig enables manifest-based freshness skipping.
type IncrementalConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// RenderConfig controls the headless-browser fetcher.
type RenderConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	WaitFor string        `mapstructure:"wait_for" yaml:"wait_for"` // CSS selector to wait for before capture
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// OutputConfig locates the export directory.
type OutputConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level   string `mapstructure:"level" yaml:"level"`     // debug, info, warn, error
	File    string `mapstructure:"file" yaml:"file"`       // Log file path (optional)
	Console bool   `mapstructure:"console" yaml:"console"` // Also log to stderr
}

// Config is the full crawler configuration.
type Config struct {
	StartURLs   []string          `mapstructure:"start_urls" yaml:"start_urls"`
	Scope       ScopeConfig       `mapstructure:"scope" yaml:"scope"`
	Limits      LimitsConfig      `mapstructure:"limits" yaml:"limits"`
	Fetch       FetchConfig       `mapstructure:"fetch" yaml:"fetch"`
	Discovery   DiscoveryConfig   `mapstructure:"discovery" yaml:"discovery"`
	Incremental IncrementalConfig `mapstructure:"incremental" yaml:"incremental"`
	Render      RenderConfig      `mapstructure:"render" yaml:"render"`
	Output      OutputConfig      `mapstructure:"output" yaml:"output"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Limits: LimitsConfig{
			MaxPages: 1000,
			MaxDepth: 5,
		},
		Fetch: FetchConfig{
			Concurrency:   8,
			Timeout:       20 * time.Second,
			RespectRobots: true,
			UserAgent:     "sitemd/1.0 (+https://github.com/sitemd/sitemd)",
		},
		Discovery: DiscoveryConfig{
			SitemapFirst: true,
			BFSEnabled:   true,
		},
		Render: RenderConfig{
			Timeout: 15 * time.Second,
		},
		Output: OutputConfig{
			Directory: "./export",
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if len(c.StartURLs) == 0 {
		return ErrNoStartURLs
	}
	if c.Fetch.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.Fetch.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Limits.MaxDepth < 1 {
		return ErrInvalidMaxDepth
	}
	if c.Limits.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if c.Fetch.DelaySeconds < 0 {
		return ErrInvalidDelay
	}
	if c.Output.Directory == "" {
		return ErrEmptyOutputDir
	}
	if c.Render.Enabled && c.Render.Timeout <= 0 {
		return ErrInvalidRenderTimeout
	}
	return nil
}

// Delay returns the inter-request delay as a duration.
func (c *Config) Delay() time.Duration {
	return time.Duration(c.Fetch.DelaySeconds * float64(time.Second))
}

// Hash returns a stable digest of the configuration. It is recorded per
// crawl session so later runs can tell whether settings changed.
func (c *Config) Hash() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%x", sha256.Sum256(data))
}
