// Package httpcore defines the normalized, engine-agnostic request and
// response model the routing core operates on. Server adapters translate
// their platform's native objects into this model and back; no other
// component may reference a concrete HTTP engine's types.
package httpcore

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

// File is one uploaded part of a multipart request, buffered at parse
// time.
type File struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// Request is the normalized representation of an inbound HTTP request.
//
// Body access is lazy: the underlying byte stream is consumed at most
// once, on the first RawBody or Body call, and cached afterwards. The
// owning server adapter creates one Request per inbound request; filters
// and handlers may mutate only Params and the cached body state.
type Request struct {
	Method      string
	Path        string
	Headers     http.Header
	Query       url.Values
	QueryString string
	Params      map[string]string
	Host        string
	RemoteAddr  string

	stream io.ReadCloser

	rawRead  bool
	rawBytes []byte
	rawErr   error

	parsed bool
	body   any
	files  []*File
}

// NewRequest creates a normalized request for the given method and path.
func NewRequest(method, path string) *Request {
	return &Request{
		Method:  strings.ToUpper(method),
		Path:    path,
		Headers: make(http.Header),
		Query:   make(url.Values),
		Params:  make(map[string]string),
	}
}

// SetStream attaches the raw, unread body stream. Must be called before
// any body access.
func (r *Request) SetStream(rc io.ReadCloser) {
	r.stream = rc
}

// WrapStream replaces the unread body stream with a transformation of
// it, typically a limiting or decoding wrapper. No-op once the body has
// been consumed or when there is no body.
func (r *Request) WrapStream(wrap func(io.ReadCloser) io.ReadCloser) {
	if r.rawRead || r.stream == nil {
		return
	}
	r.stream = wrap(r.stream)
}

// RawBody reads and caches the raw body bytes. The underlying stream is
// consumed at most once; subsequent calls return the cached bytes.
func (r *Request) RawBody() ([]byte, error) {
	if r.rawRead {
		return r.rawBytes, r.rawErr
	}
	r.rawRead = true

	if r.stream == nil {
		return nil, nil
	}
	defer func() { _ = r.stream.Close() }()

	r.rawBytes, r.rawErr = io.ReadAll(r.stream)
	return r.rawBytes, r.rawErr
}

// Stream returns a reader over the request body suitable for streaming
// forwarding. If the body has not been consumed yet, the live stream is
// returned and the caller takes ownership; otherwise a reader over the
// cached bytes is returned.
func (r *Request) Stream() io.Reader {
	if !r.rawRead {
		r.rawRead = true
		if r.stream == nil {
			return nil
		}
		return r.stream
	}
	if len(r.rawBytes) == 0 {
		return nil
	}
	return bytes.NewReader(r.rawBytes)
}

// Body returns the parsed request body. Parsing happens once, on first
// access, guarded by an internal flag:
//
//   - JSON bodies decode into generic values; a malformed JSON body
//     falls back to the raw string rather than erroring.
//   - multipart/form-data bodies decode into a map of field values,
//     with file parts available via Files; parse failures are absorbed
//     and leave the body nil.
//   - urlencoded forms decode into a map of values.
//   - anything else is returned as a raw string.
func (r *Request) Body() any {
	if r.parsed {
		return r.body
	}
	r.parsed = true

	raw, err := r.RawBody()
	if err != nil || len(raw) == 0 {
		return nil
	}

	mediaType, params, _ := mime.ParseMediaType(r.Headers.Get("Content-Type"))
	switch {
	case mediaType == "multipart/form-data":
		r.parseMultipart(raw, params["boundary"])
	case mediaType == "application/x-www-form-urlencoded":
		if values, err := url.ParseQuery(string(raw)); err == nil {
			form := make(map[string]any, len(values))
			for key, vals := range values {
				if len(vals) == 1 {
					form[key] = vals[0]
				} else {
					form[key] = vals
				}
			}
			r.body = form
		} else {
			r.body = string(raw)
		}
	case mediaType == "" || mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		var parsed any
		if err := json.Unmarshal(raw, &parsed); err == nil {
			r.body = parsed
		} else {
			// Malformed JSON falls back to the raw string.
			r.body = string(raw)
		}
	default:
		r.body = string(raw)
	}

	return r.body
}

// parseMultipart decodes a buffered multipart body. Failures are
// absorbed, leaving the body nil.
func (r *Request) parseMultipart(raw []byte, boundary string) {
	if boundary == "" {
		return
	}

	reader := multipart.NewReader(bytes.NewReader(raw), boundary)
	fields := make(map[string]any)
	var files []*File

	for {
		part, err := reader.NextPart()
		if err != nil {
			if err != io.EOF {
				return
			}
			break
		}

		data, err := io.ReadAll(part)
		if err != nil {
			return
		}

		if part.FileName() != "" {
			files = append(files, &File{
				Field:       part.FormName(),
				Filename:    part.FileName(),
				ContentType: part.Header.Get("Content-Type"),
				Data:        data,
			})
			continue
		}
		fields[part.FormName()] = string(data)
	}

	r.body = fields
	r.files = files
}

// Files returns the uploaded files of a multipart request, parsing the
// body first if needed.
func (r *Request) Files() []*File {
	r.Body()
	return r.files
}

// Param returns a bound path parameter value.
func (r *Request) Param(name string) string {
	return r.Params[name]
}
