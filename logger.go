package recogo

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/recogo/model"
)

// Logger wraps slog.Logger with recogo-specific context.
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

// WithCallID adds a call ID field to the logger (useful for correlating one
// detection call's log lines).
func (l *Logger) WithCallID(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("call_id", id),
	}
}

// WithClusters adds a cluster count field to the logger.
func (l *Logger) WithClusters(n int) *Logger {
	return &Logger{
		Logger: l.Logger.With("clusters", n),
	}
}

// WithObjectID adds an object ID field to the logger.
func (l *Logger) WithObjectID(id model.ObjectID) *Logger {
	return &Logger{
		Logger: l.Logger.With("object_id", uint32(id)),
	}
}

// LogDetect logs the outcome of one detection call.
func (l *Logger) LogDetect(ctx context.Context, callID string, clusters, detections int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "detection failed",
			"call_id", callID,
			"clusters", clusters,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "detection completed",
			"call_id", callID,
			"clusters", clusters,
			"detections", detections,
		)
	}
}

// LogFits logs the fit fan-out of one detection call.
func (l *Logger) LogFits(ctx context.Context, callID string, calls, failed int) {
	if failed > 0 {
		l.WarnContext(ctx, "fitting completed with failures",
			"call_id", callID,
			"fit_calls", calls,
			"failed", failed,
		)
	} else {
		l.DebugContext(ctx, "fitting completed",
			"call_id", callID,
			"fit_calls", calls,
		)
	}
}

// LogMerge logs the merge pass of one detection call.
func (l *Logger) LogMerge(ctx context.Context, callID string, merges int) {
	l.DebugContext(ctx, "merge pass completed",
		"call_id", callID,
		"merges", merges,
	)
}

// LogLibrary logs a model library save or load.
func (l *Logger) LogLibrary(ctx context.Context, op, snapshotID string, objects int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "library operation failed",
			"op", op,
			"snapshot_id", snapshotID,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "library operation completed",
			"op", op,
			"snapshot_id", snapshotID,
			"objects", objects,
		)
	}
}
