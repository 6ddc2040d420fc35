package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey   contextKey = "logger"
	runIDKey    contextKey = "run_id"
	familyIDKey contextKey = "family_id"
	feedIDKey   contextKey = "feed_id"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from context, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRunID tags a detection or sync run
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// WithFamilyID tags work done for one variation family
func WithFamilyID(ctx context.Context, familyID string) context.Context {
	return context.WithValue(ctx, familyIDKey, familyID)
}

// WithFeedID tags work done for one feed submission
func WithFeedID(ctx context.Context, feedID string) context.Context {
	return context.WithValue(ctx, feedIDKey, feedID)
}

func stringValue(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// GetRunID returns the run id carried by ctx
func GetRunID(ctx context.Context) string { return stringValue(ctx, runIDKey) }

// GetFamilyID returns the family id carried by ctx
func GetFamilyID(ctx context.Context) string { return stringValue(ctx, familyIDKey) }

// GetFeedID returns the feed id carried by ctx
func GetFeedID(ctx context.Context) string { return stringValue(ctx, feedIDKey) }

// =============================================================================
// Trace Correlation
// =============================================================================

// GetTraceID extracts the trace ID from the context's span, or ""
func GetTraceID(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.TraceID().String()
}

// GetSpanID extracts the span ID from the context's span, or ""
func GetSpanID(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.SpanID().String()
}

// Ctx enriches logger with trace ids and the pipeline identifiers carried by ctx.
//
// Usage: logger.Ctx(ctx, s.logger).Warn("fetch failed", zap.Error(err))
func Ctx(ctx context.Context, logger *zap.Logger) *zap.Logger {
	if logger == nil {
		logger = FromContext(ctx)
	}

	var fields []zap.Field
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		fields = append(fields,
			zap.String("trace_id", spanCtx.TraceID().String()),
			zap.String("span_id", spanCtx.SpanID().String()),
		)
	}
	if v := GetRunID(ctx); v != "" {
		fields = append(fields, zap.String("run_id", v))
	}
	if v := GetFamilyID(ctx); v != "" {
		fields = append(fields, zap.String("family_id", v))
	}
	if v := GetFeedID(ctx); v != "" {
		fields = append(fields, zap.String("feed_id", v))
	}

	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}

// L returns the context's logger enriched with trace and pipeline fields
func L(ctx context.Context) *zap.Logger {
	return Ctx(ctx, FromContext(ctx))
}
