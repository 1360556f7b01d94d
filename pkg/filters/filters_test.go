package filters

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vireo-web/vireo/pkg/httpcore"
	"github.com/vireo-web/vireo/pkg/httperr"
	"github.com/vireo-web/vireo/pkg/observability"
)

type recordingLogger struct {
	observability.Logger
	mu       sync.Mutex
	messages []string
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{Logger: observability.NopLogger()}
}

func (l *recordingLogger) record(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

func (l *recordingLogger) Info(msg string, _ ...observability.Field) { l.record(msg) }
func (l *recordingLogger) Warn(msg string, _ ...observability.Field) { l.record(msg) }

func (l *recordingLogger) recorded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.messages...)
}

func runFilter(t *testing.T, f httpcore.Filter, req *httpcore.Request, next httpcore.Next) (any, error) {
	t.Helper()
	if next == nil {
		next = func(ctx context.Context) (any, error) { return "ok", nil }
	}
	return f(context.Background(), req, httpcore.NewResponse(), next)
}

func TestRequestIDGeneratesWhenMissing(t *testing.T) {
	t.Parallel()

	req := httpcore.NewRequest("GET", "/x")
	res := httpcore.NewResponse()

	var ctxID string
	_, err := RequestID()(context.Background(), req, res, func(ctx context.Context) (any, error) {
		ctxID = httpcore.RequestIDFromContext(ctx)
		return nil, nil
	})
	require.NoError(t, err)

	assert.NotEmpty(t, ctxID)
	assert.Equal(t, ctxID, res.Headers.Get(RequestIDHeader))
	assert.Equal(t, ctxID, req.Headers.Get(RequestIDHeader))
}

func TestRequestIDPropagatesInbound(t *testing.T) {
	t.Parallel()

	req := httpcore.NewRequest("GET", "/x")
	req.Headers.Set(RequestIDHeader, "client-id-1")
	res := httpcore.NewResponse()

	var ctxID string
	_, err := RequestID()(context.Background(), req, res, func(ctx context.Context) (any, error) {
		ctxID = httpcore.RequestIDFromContext(ctx)
		return nil, nil
	})
	require.NoError(t, err)

	assert.Equal(t, "client-id-1", ctxID)
	assert.Equal(t, "client-id-1", res.Headers.Get(RequestIDHeader))
}

func TestAccessLog(t *testing.T) {
	t.Parallel()

	logger := newRecordingLogger()
	req := httpcore.NewRequest("GET", "/x")

	_, err := runFilter(t, AccessLog(logger), req, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"request completed"}, logger.recorded())

	_, err = runFilter(t, AccessLog(logger), req, func(ctx context.Context) (any, error) {
		return nil, httperr.BadRequest("nope")
	})
	require.Error(t, err)
	assert.Equal(t, []string{"request completed", "request completed with error"}, logger.recorded())
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	limit := RateLimit(1, 1)
	req := httpcore.NewRequest("GET", "/x")

	_, err := runFilter(t, limit, req, nil)
	require.NoError(t, err)

	_, err = runFilter(t, limit, req, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, httperr.ErrRateLimited)
}

func TestBodyLimitRejectsDeclaredLength(t *testing.T) {
	t.Parallel()

	req := httpcore.NewRequest("POST", "/x")
	req.Headers.Set("Content-Length", "2048")
	req.SetStream(io.NopCloser(strings.NewReader("irrelevant")))

	nextRan := false
	_, err := runFilter(t, BodyLimit(1024), req, func(ctx context.Context) (any, error) {
		nextRan = true
		return nil, nil
	})

	require.Error(t, err)
	assert.False(t, nextRan)
}

func TestBodyLimitCapsStreamingBody(t *testing.T) {
	t.Parallel()

	req := httpcore.NewRequest("POST", "/x")
	req.SetStream(io.NopCloser(strings.NewReader(strings.Repeat("a", 100))))

	var readErr error
	_, err := runFilter(t, BodyLimit(10), req, func(ctx context.Context) (any, error) {
		_, readErr = req.RawBody()
		return nil, nil
	})

	require.NoError(t, err)
	require.Error(t, readErr)
	assert.ErrorIs(t, readErr, httperr.ErrPayloadTooLarge)
}

func TestBodyLimitAllowsSmallBody(t *testing.T) {
	t.Parallel()

	req := httpcore.NewRequest("POST", "/x")
	req.Headers.Set("Content-Length", "5")
	req.SetStream(io.NopCloser(strings.NewReader("hello")))

	_, err := runFilter(t, BodyLimit(1024), req, nil)
	require.NoError(t, err)

	raw, err := req.RawBody()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(raw))
}
