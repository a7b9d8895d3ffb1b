// Package logging provides a slog.Logger factory used by all treemirror apps.
//
// Log format is controlled by the LOG_FORMAT environment variable:
//
//	LOG_FORMAT=json    structured JSON, suitable for log aggregators (default)
//	LOG_FORMAT=text    human-readable key=value pairs, for local development
//
// Log level is controlled by LOG_LEVEL (debug, info, warn, error; default info).
// When LOG_FILE is set, every record is also appended to that file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config selects the handler, level and optional file sink for a logger.
type Config struct {
	Level  string
	Format string
	File   string
}

// ConfigFromEnv reads LOG_LEVEL, LOG_FORMAT and LOG_FILE.
func ConfigFromEnv() Config {
	return Config{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
		File:   os.Getenv("LOG_FILE"),
	}
}

// New returns a logger configured from environment variables. A LOG_FILE that
// cannot be opened is reported on the returned logger and otherwise ignored.
func New() *slog.Logger {
	log, _, err := Build(ConfigFromEnv(), os.Stdout)
	if err != nil {
		log.Warn("log file unavailable, logging to stdout only", "error", err)
	}
	return log
}

// Build returns a logger writing to out and, when cfg.File is set, to that file
// as well. The returned closer releases the file; it is a no-op otherwise. On a
// file error the logger is still usable and writes to out only.
func Build(cfg Config, out io.Writer) (*slog.Logger, io.Closer, error) {
	var (
		w      = out
		closer io.Closer = nopCloser{}
		err    error
	)
	if cfg.File != "" {
		f, openErr := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if openErr != nil {
			err = fmt.Errorf("open log file %s: %w", cfg.File, openErr)
		} else {
			w = io.MultiWriter(out, f)
			closer = f
		}
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text", "console":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler), closer, err
}

// Discard returns a logger that drops every record. Used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
