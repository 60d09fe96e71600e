// Package logging configures the process-wide structured logger and
// threads request-scoped loggers through contexts. Every component of the
// hub logs through [log/slog]; this package owns handler construction so
// the CLI, the server, and the stores all emit the same shape.
//
// Output goes to stderr. LOG_FORMAT=text switches the JSON handler to the
// human-readable one for local work; LOG_LEVEL (debug, info, warn, error)
// sets the minimum severity.
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// loggerKey is the private context key under which request-scoped
// loggers travel.
type loggerKey struct{}

// New builds the process logger from the environment. JSON unless
// LOG_FORMAT=text, info level unless LOG_LEVEL says otherwise.
func New() *slog.Logger {
	opts := &slog.HandlerOptions{Level: levelFromEnv()}
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "text") {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// WithLogger stores logger in the context, typically after tagging it
// with request-scoped attributes.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext retrieves the logger placed by [WithLogger], falling back
// to [slog.Default] so call sites never nil-check.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
