package httpcore

import (
	"context"
	"time"
)

// Context keys.
type ctxKey string

const (
	ctxKeyRequest   ctxKey = "request"
	ctxKeyRequestID ctxKey = "request_id"
	ctxKeyStartTime ctxKey = "start_time"
	ctxKeyRoute     ctxKey = "route"
)

// ContextWithRequest binds the in-flight request to the context. The
// dispatch loop establishes this immediately before the terminal
// handler runs so downstream collaborators can retrieve the current
// request without explicit passing.
func ContextWithRequest(ctx context.Context, req *Request) context.Context {
	return context.WithValue(ctx, ctxKeyRequest, req)
}

// RequestFromContext extracts the in-flight request from context.
func RequestFromContext(ctx context.Context) *Request {
	if v, ok := ctx.Value(ctxKeyRequest).(*Request); ok {
		return v
	}
	return nil
}

// ContextWithRequestID adds a request ID to the context.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return v
	}
	return ""
}

// ContextWithStartTime adds the dispatch start time to the context.
func ContextWithStartTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ctxKeyStartTime, t)
}

// StartTimeFromContext extracts the dispatch start time from context.
func StartTimeFromContext(ctx context.Context) time.Time {
	if v, ok := ctx.Value(ctxKeyStartTime).(time.Time); ok {
		return v
	}
	return time.Time{}
}

// ContextWithRoute adds the matched route key to the context.
func ContextWithRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, ctxKeyRoute, route)
}

// RouteFromContext extracts the matched route key from context.
func RouteFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyRoute).(string); ok {
		return v
	}
	return ""
}
