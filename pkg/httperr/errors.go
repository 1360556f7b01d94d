// Package httperr defines the error taxonomy used across the framework.
//
// # Error Conventions
//
// This project follows a standardized error pattern across all packages:
//
//   - Sentinel errors (errors.New) for well-known, stable conditions
//     that callers check with errors.Is(). Example: ErrNotFound.
//   - Structured error types for context-rich errors that carry
//     additional fields (e.g., ConfigError, ProxyError). Each type
//     implements Error(), Unwrap() (if wrapping), and Is().
//   - fmt.Errorf with %w for ad-hoc wrapping that adds context to an
//     existing error without introducing a new type.
//
// Errors raised while a routing table is built are always ConfigError
// and are fatal: they must never be deferred to request time. Errors
// raised while a request is in flight are converted into a normalized
// JSON error body by the configured error handler.
package httperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Common sentinel errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrBadRequest      = errors.New("bad request")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrBadGateway      = errors.New("bad gateway")
	ErrConfigInvalid   = errors.New("invalid configuration")
)

// HTTPError is an error that belongs to the HTTP domain: it carries an
// explicit status code, an optional machine-readable code, and the
// method/path that triggered it. HTTP-domain errors flow through the
// same error handler as generic failures but are expected conditions
// and are not logged as errors.
type HTTPError struct {
	Status  int
	Code    string
	Method  string
	Path    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Method != "" || e.Path != "" {
		return fmt.Sprintf("%d %s: %s %s: %s", e.Status, e.Code, e.Method, e.Path, e.Message)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *HTTPError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *HTTPError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrBadRequest:
		return e.Status == http.StatusBadRequest
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	case ErrPayloadTooLarge:
		return e.Status == http.StatusRequestEntityTooLarge
	}
	_, ok := target.(*HTTPError)
	return ok || errors.Is(e.Cause, target)
}

// At attaches the triggering method and path and returns the error.
func (e *HTTPError) At(method, path string) *HTTPError {
	e.Method = method
	e.Path = path
	return e
}

// New creates an HTTPError with an explicit status and code.
func New(status int, code, message string) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message}
}

// NotFound creates a 404 error for the given method and path.
func NotFound(method, path string) *HTTPError {
	return &HTTPError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Method:  method,
		Path:    path,
		Message: fmt.Sprintf("no route found for %s %s", method, path),
	}
}

// BadRequest creates a 400 error.
func BadRequest(message string) *HTTPError {
	return &HTTPError{Status: http.StatusBadRequest, Code: "BAD_REQUEST", Message: message}
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *HTTPError {
	return &HTTPError{Status: http.StatusUnauthorized, Code: "UNAUTHORIZED", Message: message}
}

// TooManyRequests creates a 429 error.
func TooManyRequests(message string) *HTTPError {
	return &HTTPError{Status: http.StatusTooManyRequests, Code: "TOO_MANY_REQUESTS", Message: message}
}

// PayloadTooLarge creates a 413 error.
func PayloadTooLarge(message string) *HTTPError {
	return &HTTPError{Status: http.StatusRequestEntityTooLarge, Code: "PAYLOAD_TOO_LARGE", Message: message}
}

// ConfigError represents a configuration-related error. Configuration
// errors are fatal at build time.
type ConfigError struct {
	Field   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error at %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *ConfigError) Is(target error) bool {
	if target == ErrConfigInvalid {
		return true
	}
	_, ok := target.(*ConfigError)
	return ok || errors.Is(e.Cause, target)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// ProxyError represents an upstream transport failure. Proxy errors
// always surface as 502 Bad Gateway and are always logged since they
// indicate an infrastructure problem.
type ProxyError struct {
	Target  string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ProxyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("proxy to %s failed: %s: %v", e.Target, e.Message, e.Cause)
	}
	return fmt.Sprintf("proxy to %s failed: %s", e.Target, e.Message)
}

// Unwrap returns the underlying error.
func (e *ProxyError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *ProxyError) Is(target error) bool {
	if target == ErrBadGateway {
		return true
	}
	_, ok := target.(*ProxyError)
	return ok || errors.Is(e.Cause, target)
}

// NewProxyError creates a new ProxyError.
func NewProxyError(target, message string, cause error) *ProxyError {
	return &ProxyError{Target: target, Message: message, Cause: cause}
}

// Body is the normalized JSON error body emitted for every
// request-time failure.
type Body struct {
	Timestamp string `json:"timestamp"`
	Code      string `json:"code"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	Message   string `json:"message"`
}

// Advise converts any error into the normalized error body and the
// status it should be served with. HTTP-domain errors keep their
// declared status and code; proxy errors map to 502; everything else
// becomes a generic 500.
func Advise(err error, method, path string) (*Body, int) {
	now := time.Now().UTC().Format(time.RFC3339)

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		m, p := httpErr.Method, httpErr.Path
		if m == "" {
			m = method
		}
		if p == "" {
			p = path
		}
		return &Body{
			Timestamp: now,
			Code:      httpErr.Code,
			Method:    m,
			Path:      p,
			Message:   httpErr.Message,
		}, httpErr.Status
	}

	var proxyErr *ProxyError
	if errors.As(err, &proxyErr) {
		return &Body{
			Timestamp: now,
			Code:      "BAD_GATEWAY",
			Method:    method,
			Path:      path,
			Message:   proxyErr.Error(),
		}, http.StatusBadGateway
	}

	return &Body{
		Timestamp: now,
		Code:      "INTERNAL_ERROR",
		Method:    method,
		Path:      path,
		Message:   err.Error(),
	}, http.StatusInternalServerError
}

// IsExpected reports whether the error is a recognized HTTP-domain
// error, i.e. an expected 4xx condition whose logging should be
// suppressed.
func IsExpected(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.Status < http.StatusInternalServerError
}
