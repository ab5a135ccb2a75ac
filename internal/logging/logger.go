// Package logging sets up structured JSON logging for the crawler,
// with optional size-rotated file output alongside the console.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/sitemd/sitemd/internal/config"
)

// Options controls logger construction.
type Options struct {
	Level      slog.Level
	FilePath   string
	MaxSize    int64 // bytes before rotation
	MaxBackups int
	Console    bool
}

// DefaultOptions returns the default logging options.
func DefaultOptions() Options {
	return Options{
		Level:      slog.LevelInfo,
		MaxSize:    100 * 1024 * 1024,
		MaxBackups: 5,
		Console:    true,
	}
}

// FromConfig derives logging options from the crawler configuration.
func FromConfig(cfg config.LoggingConfig) Options {
	opts := DefaultOptions()
	opts.Level = ParseLevel(cfg.Level)
	opts.FilePath = cfg.File
	opts.Console = cfg.Console
	return opts
}

// ParseLevel converts a string log level to slog.Level.
// Unrecognized values fall back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a logger with the given options. Console output goes
// to stderr so piped program output stays clean.
func NewLogger(opts Options) (*slog.Logger, error) {
	var writers []io.Writer

	if opts.Console {
		writers = append(writers, os.Stderr)
	}

	if opts.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0755); err != nil {
			return nil, err
		}

		fileWriter, err := NewRotatingFileWriter(opts.FilePath, opts.MaxSize, opts.MaxBackups)
		if err != nil {
			return nil, err
		}
		writers = append(writers, fileWriter)
	}

	if len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	var writer io.Writer
	if len(writers) == 1 {
		writer = writers[0]
	} else {
		writer = io.MultiWriter(writers...)
	}

	handler := slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level: opts.Level,
	})

	return slog.New(handler), nil
}

// SetDefault creates a logger from the options and installs it as the
// process-wide default.
func SetDefault(opts Options) error {
	logger, err := NewLogger(opts)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}
