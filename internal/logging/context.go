package logging

import (
	"context"
)

type contextKey int

const (
	loggerKey contextKey = iota
	requestIDKey
)

// WithLogger stores a request-scoped logger in ctx
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger stored in ctx, or fallback when there is
// none. A nil fallback means the global logger.
func FromContext(ctx context.Context, fallback *Logger) *Logger {
	if logger, ok := ctx.Value(loggerKey).(*Logger); ok {
		return logger
	}
	if fallback != nil {
		return fallback
	}
	return global
}

// WithRequestID stores the request ID in ctx
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the request ID stored in ctx, if any
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
