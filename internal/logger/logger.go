package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var defaultLogger *slog.Logger

// Init initializes the global logger with text output on stderr.
// An empty level falls back to LOG_LEVEL. Stdout is left for the
// command's own output.
func Init(level string) {
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	InitWriter(os.Stderr, level)
}

// InitWriter is Init with an explicit destination
func InitWriter(w io.Writer, level string) {
	lvl := parseLevel(level)

	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}

	handler := slog.NewTextHandler(w, opts)
	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// parseLevel converts string to slog.Level
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// Default returns the configured default logger
func Default() *slog.Logger {
	if defaultLogger == nil {
		Init("")
	}
	return defaultLogger
}
