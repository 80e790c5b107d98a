// Package logging wires structured, context-carried logging on top of
// log/slog: JSON in daemon mode, text for the CLI, with doc/project/job/
// stage fields threaded through context.Context the way a request id
// would be.
package logging

import (
	"context"
	"log/slog"
	"os"
)

// LogContext holds structured logging fields carried on a context.Context.
type LogContext struct {
	UserID    string
	DocID     string
	ProjectID string
	JobID     string
	Stage     string
	TraceID   string
}

type logContextKeyType string

const logContextKey logContextKeyType = "vdocs-log-context"

func WithUserID(ctx context.Context, v string) context.Context    { return with(ctx, func(lc *LogContext) { lc.UserID = v }) }
func WithDocID(ctx context.Context, v string) context.Context     { return with(ctx, func(lc *LogContext) { lc.DocID = v }) }
func WithProjectID(ctx context.Context, v string) context.Context { return with(ctx, func(lc *LogContext) { lc.ProjectID = v }) }
func WithJobID(ctx context.Context, v string) context.Context     { return with(ctx, func(lc *LogContext) { lc.JobID = v }) }
func WithStage(ctx context.Context, v string) context.Context     { return with(ctx, func(lc *LogContext) { lc.Stage = v }) }
func WithTraceID(ctx context.Context, v string) context.Context   { return with(ctx, func(lc *LogContext) { lc.TraceID = v }) }

func with(ctx context.Context, mutate func(*LogContext)) context.Context {
	lc := extract(ctx)
	mutate(&lc)
	return context.WithValue(ctx, logContextKey, lc)
}

func extract(ctx context.Context) LogContext {
	if lc, ok := ctx.Value(logContextKey).(LogContext); ok {
		return lc
	}
	return LogContext{}
}

// GetContext returns the structured log context carried on ctx.
func GetContext(ctx context.Context) LogContext {
	return extract(ctx)
}

func attrs(ctx context.Context) []slog.Attr {
	lc := extract(ctx)
	var a []slog.Attr
	if lc.UserID != "" {
		a = append(a, slog.String("user_id", lc.UserID))
	}
	if lc.DocID != "" {
		a = append(a, slog.String("doc_id", lc.DocID))
	}
	if lc.ProjectID != "" {
		a = append(a, slog.String("project_id", lc.ProjectID))
	}
	if lc.JobID != "" {
		a = append(a, slog.String("job_id", lc.JobID))
	}
	if lc.Stage != "" {
		a = append(a, slog.String("stage", lc.Stage))
	}
	if lc.TraceID != "" {
		a = append(a, slog.String("trace_id", lc.TraceID))
	}
	return a
}

func InfoContext(ctx context.Context, msg string, extra ...slog.Attr) {
	slog.LogAttrs(ctx, slog.LevelInfo, msg, append(attrs(ctx), extra...)...)
}

func WarnContext(ctx context.Context, msg string, extra ...slog.Attr) {
	slog.LogAttrs(ctx, slog.LevelWarn, msg, append(attrs(ctx), extra...)...)
}

func ErrorContext(ctx context.Context, msg string, extra ...slog.Attr) {
	slog.LogAttrs(ctx, slog.LevelError, msg, append(attrs(ctx), extra...)...)
}

func DebugContext(ctx context.Context, msg string, extra ...slog.Attr) {
	slog.LogAttrs(ctx, slog.LevelDebug, msg, append(attrs(ctx), extra...)...)
}

// Setup installs the process-wide default logger. json=true selects the
// JSON handler (daemon mode); otherwise a text handler is used (CLI mode).
func Setup(json bool, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
