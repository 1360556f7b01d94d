package filters

import (
	"context"
	"io"
	"strconv"

	"github.com/vireo-web/vireo/pkg/httpcore"
	"github.com/vireo-web/vireo/pkg/httperr"
)

// BodyLimit rejects requests whose body exceeds maxBytes. A declared
// Content-Length above the limit fails fast; chunked bodies are capped
// while streaming and fail once the limit is crossed.
func BodyLimit(maxBytes int64) httpcore.Filter {
	return func(ctx context.Context, req *httpcore.Request, res *httpcore.Response, next httpcore.Next) (any, error) {
		if cl := req.Headers.Get("Content-Length"); cl != "" {
			if length, err := strconv.ParseInt(cl, 10, 64); err == nil && length > maxBytes {
				return nil, httperr.PayloadTooLarge("request body exceeds limit")
			}
		}
		req.WrapStream(func(rc io.ReadCloser) io.ReadCloser {
			return &limitedReadCloser{reader: rc, remaining: maxBytes}
		})
		return next(ctx)
	}
}

type limitedReadCloser struct {
	reader    io.ReadCloser
	remaining int64
}

func (l *limitedReadCloser) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, httperr.PayloadTooLarge("request body exceeds limit")
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.reader.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, httperr.PayloadTooLarge("request body exceeds limit")
	}
	return n, err
}

func (l *limitedReadCloser) Close() error {
	return l.reader.Close()
}
