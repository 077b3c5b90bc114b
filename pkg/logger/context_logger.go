package logger

import (
	"context"

	"go.uber.org/zap"
)

type contextKey string

const (
	traceIDKey   contextKey = "trace_id"
	requestIDKey contextKey = "request_id"
	userIDKey    contextKey = "caller_id"
	clientIDKey  contextKey = "client_id"
)

var contextKeys = []contextKey{traceIDKey, requestIDKey, userIDKey, clientIDKey}

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// WithUserID records the authenticated caller. It is logged as caller_id so
// it never collides with the user_id of the user a request targets.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// WithClientID records the stream channel a session runs on.
func WithClientID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, clientIDKey, id)
}

// ContextLogger enriches entries with the ids stored in a context by the
// request middlewares and the stream sessions.
type ContextLogger struct {
	base *zap.SugaredLogger
}

func NewContextLogger(base *zap.SugaredLogger) *ContextLogger {
	if base == nil {
		base = zap.NewNop().Sugar()
	}
	return &ContextLogger{base: base}
}

// For returns the base logger with the context ids attached.
func (cl *ContextLogger) For(ctx context.Context) *zap.SugaredLogger {
	if ctx == nil {
		return cl.base
	}
	var fields []interface{}
	for _, key := range contextKeys {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			fields = append(fields, string(key), v)
		}
	}
	if len(fields) == 0 {
		return cl.base
	}
	return cl.base.With(fields...)
}

// Base returns the logger without context fields.
func (cl *ContextLogger) Base() *zap.SugaredLogger {
	return cl.base
}
