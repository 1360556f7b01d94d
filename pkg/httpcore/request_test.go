package httpcore

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestBodyJSON(t *testing.T) {
	t.Parallel()

	req := NewRequest("POST", "/users")
	req.Headers.Set("Content-Type", "application/json")
	req.SetStream(io.NopCloser(strings.NewReader(`{"name":"alice","age":30}`)))

	body := req.Body()
	parsed, ok := body.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alice", parsed["name"])
	assert.Equal(t, float64(30), parsed["age"])
}

func TestRequestBodyMalformedJSONFallsBackToString(t *testing.T) {
	t.Parallel()

	req := NewRequest("POST", "/users")
	req.Headers.Set("Content-Type", "application/json")
	req.SetStream(io.NopCloser(strings.NewReader(`{"broken`)))

	assert.Equal(t, `{"broken`, req.Body())
}

func TestRequestBodyParsedAtMostOnce(t *testing.T) {
	t.Parallel()

	reads := 0
	stream := io.NopCloser(readerFunc(func(p []byte) (int, error) {
		reads++
		if reads > 1 {
			t.Fatal("stream read more than once")
		}
		return copy(p, `{"a":1}`), io.EOF
	}))

	req := NewRequest("POST", "/x")
	req.Headers.Set("Content-Type", "application/json")
	req.SetStream(stream)

	first := req.Body()
	second := req.Body()
	assert.Equal(t, first, second)

	// RawBody after parsing returns the cached bytes.
	raw, err := req.RawBody()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(raw))
}

type readerFunc func(p []byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }

func TestRequestBodyEmpty(t *testing.T) {
	t.Parallel()

	req := NewRequest("GET", "/x")
	assert.Nil(t, req.Body())

	raw, err := req.RawBody()
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestRequestBodyURLEncodedForm(t *testing.T) {
	t.Parallel()

	req := NewRequest("POST", "/form")
	req.Headers.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetStream(io.NopCloser(strings.NewReader("a=1&b=2&b=3")))

	form, ok := req.Body().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "1", form["a"])
	assert.Equal(t, []string{"2", "3"}, form["b"])
}

func TestRequestBodyMultipart(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("name", "alice"))
	part, err := writer.CreateFormFile("upload", "data.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("file-content"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := NewRequest("POST", "/upload")
	req.Headers.Set("Content-Type", writer.FormDataContentType())
	req.SetStream(io.NopCloser(&buf))

	fields, ok := req.Body().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alice", fields["name"])

	files := req.Files()
	require.Len(t, files, 1)
	assert.Equal(t, "upload", files[0].Field)
	assert.Equal(t, "data.txt", files[0].Filename)
	assert.Equal(t, "file-content", string(files[0].Data))
}

func TestRequestBodyMultipartFailureAbsorbed(t *testing.T) {
	t.Parallel()

	req := NewRequest("POST", "/upload")
	req.Headers.Set("Content-Type", "multipart/form-data; boundary=xyz")
	req.SetStream(io.NopCloser(strings.NewReader("not multipart at all")))

	assert.Nil(t, req.Body())
	assert.Empty(t, req.Files())
}

func TestRequestStreamBeforeParse(t *testing.T) {
	t.Parallel()

	req := NewRequest("POST", "/x")
	req.SetStream(io.NopCloser(strings.NewReader("payload")))

	data, err := io.ReadAll(req.Stream())
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestRequestStreamAfterParseReplaysCachedBytes(t *testing.T) {
	t.Parallel()

	req := NewRequest("POST", "/x")
	req.SetStream(io.NopCloser(strings.NewReader("payload")))

	_, err := req.RawBody()
	require.NoError(t, err)

	data, err := io.ReadAll(req.Stream())
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestRequestParam(t *testing.T) {
	t.Parallel()

	req := NewRequest("GET", "/users/42")
	req.Params["id"] = "42"
	assert.Equal(t, "42", req.Param("id"))
	assert.Empty(t, req.Param("missing"))
}

func TestContextAccessors(t *testing.T) {
	t.Parallel()

	req := NewRequest("GET", "/x")
	now := time.Now()

	ctx := context.Background()
	ctx = ContextWithRequest(ctx, req)
	ctx = ContextWithRequestID(ctx, "req-1")
	ctx = ContextWithStartTime(ctx, now)
	ctx = ContextWithRoute(ctx, "GET /x")

	assert.Equal(t, req, RequestFromContext(ctx))
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, now, StartTimeFromContext(ctx))
	assert.Equal(t, "GET /x", RouteFromContext(ctx))

	empty := context.Background()
	assert.Nil(t, RequestFromContext(empty))
	assert.Empty(t, RequestIDFromContext(empty))
	assert.True(t, StartTimeFromContext(empty).IsZero())
	assert.Empty(t, RouteFromContext(empty))
}
