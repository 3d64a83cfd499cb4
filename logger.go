package joingo

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with joingo-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithIndex adds an index name field to the logger.
func (l *Logger) WithIndex(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("index", name),
	}
}

// LogJoin logs a completed join execution. The engines collect per-execution
// counters into an immutable stats value and never log from their loops;
// this is the one place an execution reaches the log.
func (l *Logger) LogJoin(ctx context.Context, join, mode string, fromSize, matched int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "join failed",
			"join", join,
			"mode", mode,
			"elapsed", elapsed,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "join completed",
			"join", join,
			"mode", mode,
			"from_size", fromSize,
			"matched", matched,
			"elapsed", elapsed,
		)
	}
}

// LogResolve logs a cross-index resolution.
func (l *Logger) LogResolve(ctx context.Context, ref string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "index resolution failed",
			"ref", ref,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "index resolved",
			"ref", ref,
		)
	}
}

// LogWarm logs a completed index warm. The joiner never warms indexes
// itself; wire this into a registry warm observer:
//
//	reg := registry.New(registry.WithWarmObserver(
//		func(name string, version uint64, bytes int64, elapsed time.Duration) {
//			logger.LogWarm(context.Background(), name, version, bytes, elapsed)
//		},
//	))
func (l *Logger) LogWarm(ctx context.Context, name string, version uint64, bytes int64, elapsed time.Duration) {
	l.InfoContext(ctx, "index warmed",
		"index", name,
		"version", version,
		"bytes", bytes,
		"elapsed", elapsed,
	)
}
