package filters

import (
	"context"
	"time"

	"github.com/vireo-web/vireo/pkg/httpcore"
	"github.com/vireo-web/vireo/pkg/observability"
)

// AccessLog logs one structured line per dispatched request with the
// method, path, status, duration, and correlation ID when present.
func AccessLog(logger observability.Logger) httpcore.Filter {
	return func(ctx context.Context, req *httpcore.Request, res *httpcore.Response, next httpcore.Next) (any, error) {
		start := time.Now()
		result, err := next(ctx)
		duration := time.Since(start)

		fields := []observability.Field{
			observability.String("method", req.Method),
			observability.String("path", req.Path),
			observability.Int("status", res.Status),
			observability.Duration("duration", duration),
		}
		if id := httpcore.RequestIDFromContext(ctx); id != "" {
			fields = append(fields, observability.String("request_id", id))
		}
		if err != nil {
			fields = append(fields, observability.Error(err))
			logger.Warn("request completed with error", fields...)
		} else {
			logger.Info("request completed", fields...)
		}

		return result, err
	}
}
