// Package logging provides the structured logger the whole service logs
// through: slog with a JSON handler on stdout.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger so call sites depend on this package, not slog.
type Logger struct {
	*slog.Logger
}

// New creates a logger at the given level; unknown levels fall back to info.
func New(level string) *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return &Logger{Logger: slog.New(handler)}
}

// Default returns an info-level logger.
func Default() *Logger {
	return New("info")
}

// With returns a child logger that carries the supplied key/value attributes
// on every record. Used to scope a logger to one automation job or one
// portal location.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
