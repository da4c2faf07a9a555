package logger

import "context"

type contextKey string

const TraceIDKey contextKey = "trace_id"
const ScopeKeyKey contextKey = "scope_key"

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}

func GetTraceID(ctx context.Context) string {
	if id, ok := ctx.Value(TraceIDKey).(string); ok {
		return id
	}
	return ""
}

func WithScopeKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, ScopeKeyKey, key)
}

func GetScopeKey(ctx context.Context) string {
	if key, ok := ctx.Value(ScopeKeyKey).(string); ok {
		return key
	}
	return ""
}
