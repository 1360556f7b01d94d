// Package filters provides stock filters for common cross-cutting
// concerns: request IDs, structured access logging, rate limiting, and
// body size limits. Each constructor returns an httpcore.Filter ready
// to register on a router.
package filters

import (
	"context"

	"github.com/google/uuid"

	"github.com/vireo-web/vireo/pkg/httpcore"
)

// RequestIDHeader is the header carrying the request correlation ID.
const RequestIDHeader = "X-Request-Id"

// RequestID propagates an inbound request ID, generating one when the
// client sent none. The ID is set on the response and stored in the
// context for downstream loggers.
func RequestID() httpcore.Filter {
	return func(ctx context.Context, req *httpcore.Request, res *httpcore.Response, next httpcore.Next) (any, error) {
		id := req.Headers.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			req.Headers.Set(RequestIDHeader, id)
		}
		res.SetHeader(RequestIDHeader, id)
		return next(httpcore.ContextWithRequestID(ctx, id))
	}
}
