package httpcore

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Response is the normalized representation of an outbound response.
//
// Completed is a terminal marker: once a filter or handler observes
// Completed=true, no further link in the chain may alter the response
// and the chain must short-circuit. Stream is set only for proxied
// upstream bodies, which are relayed verbatim without buffering.
type Response struct {
	Status    int
	Headers   http.Header
	Data      any
	Completed bool
	Stream    io.ReadCloser
}

// NewResponse creates an empty, uncompleted response.
func NewResponse() *Response {
	return &Response{Headers: make(http.Header)}
}

// Complete sets the payload and marks the response terminal.
func (r *Response) Complete(data any) *Response {
	r.Data = data
	r.Completed = true
	return r
}

// SetStatus sets the response status.
func (r *Response) SetStatus(status int) *Response {
	r.Status = status
	return r
}

// SetHeader sets a response header.
func (r *Response) SetHeader(key, value string) *Response {
	if r.Headers == nil {
		r.Headers = make(http.Header)
	}
	r.Headers.Set(key, value)
	return r
}

// EncodeData serializes a response payload for the given media type.
// JSON serialization is the default for any defined value; byte slices
// and strings pass through untouched, and non-JSON media types are
// stringified.
func EncodeData(data any, contentType string) ([]byte, error) {
	if data == nil {
		return nil, nil
	}

	switch v := data.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}

	if contentType == "" || strings.Contains(contentType, "json") {
		return json.Marshal(data)
	}
	return []byte(fmt.Sprint(data)), nil
}

// PlatformResponse marks an engine-native response value. A filter or
// handler returning a PlatformResponse bypasses all further chain
// processing and normalization; the server adapter emits it as-is.
type PlatformResponse interface {
	EngineResponse()
}
