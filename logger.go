package vecrag

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with vecrag-specific context.
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
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithK adds a k (neighbor count) field to the logger.
func (l *Logger) WithK(k int) *Logger {
	return &Logger{
		Logger: l.Logger.With("k", k),
	}
}

// WithDimension adds a dimension field to the logger.
func (l *Logger) WithDimension(dim int) *Logger {
	return &Logger{
		Logger: l.Logger.With("dimension", dim),
	}
}

// WithSource adds the source location to the logger.
func (l *Logger) WithSource(source string) *Logger {
	return &Logger{
		Logger: l.Logger.With("source", source),
	}
}

// LogBatch logs the outcome of one vectorization run.
func (l *Logger) LogBatch(ctx context.Context, chunks, vectors int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "vectorization failed",
			"chunks", chunks,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "vectorization completed",
		"chunks", chunks,
		"vectors", vectors,
		"duration", duration,
	)
}

// LogBatchSplit logs a failed batch being split into single chunks.
func (l *Logger) LogBatchSplit(ctx context.Context, size int) {
	l.DebugContext(ctx, "batch split after transient failure",
		"size", size,
	)
}

// LogBuild logs an index build.
func (l *Logger) LogBuild(ctx context.Context, dir string, vectors int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "index build failed",
			"dir", dir,
			"vectors", vectors,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "index built",
		"dir", dir,
		"vectors", vectors,
	)
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, k, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"k", k,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "search completed",
		"k", k,
		"results", resultsFound,
	)
}

// LogLoad logs opening a persisted index.
func (l *Logger) LogLoad(ctx context.Context, dir string, vectors int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "index load failed",
			"dir", dir,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "index loaded",
		"dir", dir,
		"vectors", vectors,
	)
}
