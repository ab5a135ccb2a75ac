package config

import "errors"

var (
	// ErrNoStartURLs is returned when no start URLs are provided
	ErrNoStartURLs = errors.New("no start URLs provided")
	// ErrInvalidConcurrency is returned when concurrency is not greater than 0
	ErrInvalidConcurrency = errors.New("fetch.concurrency must be greater than 0")
	// ErrInvalidTimeout is returned when the fetch timeout is not greater than 0
	ErrInvalidTimeout = errors.New("fetch.timeout must be greater than 0")
	// ErrInvalidMaxDepth is returned when max_depth is less than 1
	ErrInvalidMaxDepth = errors.New("limits.max_depth must be at least 1")
	// ErrInvalidMaxPages is returned when max_pages is negative
	ErrInvalidMaxPages = errors.New("limits.max_pages cannot be negative")
	// ErrInvalidDelay is returned when the inter-request delay is negative
	ErrInvalidDelay = errors.New("fetch.delay_seconds cannot be negative")
	// ErrEmptyOutputDir is returned when the output directory is empty
	ErrEmptyOutputDir = errors.New("output.directory cannot be empty")
	// ErrInvalidRenderTimeout is returned when rendering is enabled with a non-positive timeout
	ErrInvalidRenderTimeout = errors.New("render.timeout must be greater than 0 when rendering is enabled")
)
