package logger

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type contextKey string

const (
	runIDKey  contextKey = "run_id"
	loggerKey contextKey = "logger"
)

// NewRunID creates a unique id for one conversion run
func NewRunID() string {
	return uuid.NewString()
}

// WithRunID adds a run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext extracts the run ID from context
func RunIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// WithLogger stores a logger instance in context
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns a logger from context, or the default logger.
// The returned logger always includes the run ID if present.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}

	l := Default()
	if runID := RunIDFromContext(ctx); runID != "" {
		l = l.With("run_id", runID)
	}
	return l
}

// Ctx is a convenience alias for FromContext
func Ctx(ctx context.Context) *slog.Logger {
	return FromContext(ctx)
}
