package filters

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/vireo-web/vireo/pkg/httpcore"
	"github.com/vireo-web/vireo/pkg/httperr"
)

// RateLimit enforces a global token-bucket limit across all requests
// passing through the filter. Requests beyond the bucket are rejected
// with 429 rather than queued.
func RateLimit(rps float64, burst int) httpcore.Filter {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(ctx context.Context, req *httpcore.Request, res *httpcore.Response, next httpcore.Next) (any, error) {
		if !limiter.Allow() {
			return nil, httperr.TooManyRequests("rate limit exceeded")
		}
		return next(ctx)
	}
}
