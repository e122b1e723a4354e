// Package logging provides the shared slog logger. Output goes to stderr so
// log lines never interleave with streamed completion text on stdout.
//
// Behaviour is environment-driven:
//   - WREN_LOG_FORMAT: "json" (default) or "text"
//   - WREN_LOG_LEVEL: debug|info|warn|error
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu     sync.Mutex
	shared *slog.Logger
)

// Logger returns the process-wide logger, built on first use.
func Logger() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if shared == nil {
		shared = build(os.Stderr)
	}
	return shared
}

// SetLogger overrides the global logger; mainly useful for tests.
func SetLogger(l *slog.Logger) {
	if l == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	shared = l
}

// WithComponent attaches a component field to the shared logger.
func WithComponent(component string) *slog.Logger {
	return Logger().With("component", component)
}

func build(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(os.Getenv("WREN_LOG_LEVEL"))}
	var handler slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.EqualFold(os.Getenv("WREN_LOG_FORMAT"), "text") {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With("service", "wren")
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
