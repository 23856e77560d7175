package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New builds the process logger from a level name ("debug", "info",
// "warn", "error") and a format ("text" or "json"). Unknown levels fall
// back to info. Output goes to stderr so stdout stays clean for CLI
// output and shell pipelines.
func New(level, format string) *slog.Logger {
	return NewWithWriter(level, format, os.Stderr)
}

// NewWithWriter is New with an explicit destination, for tests.
func NewWithWriter(level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: Level(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Level maps a level name to its slog.Level, defaulting to info.
func Level(s string) slog.Level {
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
