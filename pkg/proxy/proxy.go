// Package proxy streams requests to upstream targets on behalf of
// routed handlers.
package proxy

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/vireo-web/vireo/pkg/httpcore"
	"github.com/vireo-web/vireo/pkg/httperr"
	"github.com/vireo-web/vireo/pkg/metrics"
	"github.com/vireo-web/vireo/pkg/observability"
)

// hopHeaders are hop-by-hop headers that must not be forwarded.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Directive instructs the dispatch loop to stream the request to an
// upstream URL instead of running further local logic. It is created by
// a handler (or resolved from route configuration), consumed in the
// same request cycle, and never persisted.
type Directive struct {
	TargetURL string
	Headers   map[string]string
	Method    string

	// SkipBody and SkipQuery opt out of forwarding; the zero value
	// forwards both.
	SkipBody  bool
	SkipQuery bool

	ExcludeHeaders []string
}

// To creates a directive for the given target. Body and query
// forwarding are on by default.
func To(target string) *Directive {
	return &Directive{TargetURL: target}
}

// WithMethod overrides the outbound method.
func (d *Directive) WithMethod(method string) *Directive {
	d.Method = strings.ToUpper(method)
	return d
}

// WithHeader overlays one outbound header.
func (d *Directive) WithHeader(key, value string) *Directive {
	if d.Headers == nil {
		d.Headers = make(map[string]string)
	}
	d.Headers[key] = value
	return d
}

// Excluding drops the named inbound headers from the outbound request.
// The host header is always excluded regardless of configuration.
func (d *Directive) Excluding(headers ...string) *Directive {
	d.ExcludeHeaders = append(d.ExcludeHeaders, headers...)
	return d
}

// WithoutBody disables body forwarding.
func (d *Directive) WithoutBody() *Directive {
	d.SkipBody = true
	return d
}

// WithoutQuery disables query string forwarding.
func (d *Directive) WithoutQuery() *Directive {
	d.SkipQuery = true
	return d
}

// Resolver resolves a proxy target lazily, covering deferred and
// promise-like configuration forms.
type Resolver interface {
	Resolve(ctx context.Context) (string, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context) (string, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(ctx context.Context) (string, error) {
	return f(ctx)
}

// Store resolves proxy targets keyed by handler name. An empty result
// with a nil error means no target is configured for that handler and
// the terminal handler runs normally.
type Store interface {
	Get(ctx context.Context, handlerName string) (string, error)
}

// Engine resolves proxy targets and forwards requests with streaming
// bodies.
type Engine struct {
	client  *http.Client
	logger  observability.Logger
	breaker *gobreaker.CircuitBreaker
}

// Option is a functional option for configuring the engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(logger observability.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithHTTPClient sets the client used for upstream calls. The default
// client has no overall timeout so large streamed responses are not cut
// off mid-transfer.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Engine) {
		e.client = client
	}
}

// WithTransport sets the transport of the engine's client.
func WithTransport(transport http.RoundTripper) Option {
	return func(e *Engine) {
		e.client.Transport = transport
	}
}

// WithBreaker wraps upstream calls in a circuit breaker. When the
// breaker is open, calls fail fast as Bad Gateway.
func WithBreaker(settings gobreaker.Settings) Option {
	return func(e *Engine) {
		e.breaker = gobreaker.NewCircuitBreaker(settings)
	}
}

// NewEngine creates a proxy engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		client: &http.Client{},
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ResolveTarget resolves a route-level proxy configuration to a target
// URL. Accepted forms: a literal URL string, *url.URL, a zero-argument
// resolver function, a Resolver, or a Store keyed by handler name. A
// false return with nil error means proxying is not configured for this
// route and the terminal handler should run.
func (e *Engine) ResolveTarget(ctx context.Context, cfg any, handlerName string) (string, bool, error) {
	switch v := cfg.(type) {
	case nil:
		return "", false, nil
	case string:
		return v, v != "", nil
	case *url.URL:
		return v.String(), true, nil
	case func() string:
		target := v()
		return target, target != "", nil
	case func() (string, error):
		target, err := v()
		if err != nil {
			return "", false, httperr.NewProxyError("", "target resolution failed", err)
		}
		return target, target != "", nil
	case Resolver:
		target, err := v.Resolve(ctx)
		if err != nil {
			return "", false, httperr.NewProxyError("", "target resolution failed", err)
		}
		return target, target != "", nil
	case Store:
		target, err := v.Get(ctx, handlerName)
		if err != nil {
			return "", false, httperr.NewProxyError("", "target store lookup failed", err)
		}
		return target, target != "", nil
	default:
		return "", false, httperr.NewConfigError("proxy", "unsupported proxy target configuration type")
	}
}

// ValidateConfig rejects unsupported proxy configuration forms at build
// time.
func ValidateConfig(cfg any) error {
	switch cfg.(type) {
	case nil, string, *url.URL, func() string, func() (string, error), Resolver, Store:
		return nil
	default:
		return httperr.NewConfigError("proxy", "unsupported proxy target configuration type")
	}
}

// Forward streams the request to the directive's target and maps the
// upstream response back verbatim. The request body is forwarded as a
// stream and the upstream body is returned as a stream; neither side is
// buffered in memory.
func (e *Engine) Forward(ctx context.Context, req *httpcore.Request, d *Directive) (*httpcore.Response, error) {
	method := d.Method
	if method == "" {
		method = req.Method
	}
	method = strings.ToUpper(method)

	outURL := d.TargetURL
	if !d.SkipQuery && req.QueryString != "" {
		sep := "?"
		if strings.Contains(outURL, "?") {
			sep = "&"
		}
		outURL += sep + req.QueryString
	}

	var body io.Reader
	if !d.SkipBody && bodyAllowed(method) {
		body = req.Stream()
	}

	outReq, err := http.NewRequestWithContext(ctx, method, outURL, body)
	if err != nil {
		return nil, httperr.NewProxyError(d.TargetURL, "invalid target URL", err)
	}

	e.buildHeaders(outReq, req, d)

	start := time.Now()
	resp, err := e.do(outReq)
	metrics.Get().UpstreamDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Get().ProxyErrorsTotal.WithLabelValues(errorType(err)).Inc()
		e.logger.Error("upstream request failed",
			observability.String("target", d.TargetURL),
			observability.String("method", method),
			observability.Error(err),
		)
		return nil, httperr.NewProxyError(d.TargetURL, "upstream request failed", err)
	}

	return &httpcore.Response{
		Status:    resp.StatusCode,
		Headers:   resp.Header.Clone(),
		Stream:    resp.Body,
		Completed: true,
	}, nil
}

// do issues the upstream call, through the breaker when configured.
func (e *Engine) do(req *http.Request) (*http.Response, error) {
	if e.breaker == nil {
		return e.client.Do(req)
	}
	result, err := e.breaker.Execute(func() (any, error) {
		return e.client.Do(req) //nolint:bodyclose // ownership passes to the caller
	})
	if err != nil {
		return nil, err
	}
	return result.(*http.Response), nil
}

// buildHeaders copies inbound headers onto the outbound request, minus
// host (always), hop-by-hop headers, and any configured exclusions,
// then overlays directive headers and the X-Forwarded pair.
func (e *Engine) buildHeaders(out *http.Request, req *httpcore.Request, d *Directive) {
	excluded := make(map[string]bool, len(d.ExcludeHeaders)+1)
	excluded["host"] = true
	for _, h := range d.ExcludeHeaders {
		excluded[strings.ToLower(h)] = true
	}
	for _, h := range hopHeaders {
		excluded[strings.ToLower(h)] = true
	}

	for key, values := range req.Headers {
		if excluded[strings.ToLower(key)] {
			continue
		}
		for _, value := range values {
			out.Header.Add(key, value)
		}
	}

	for key, value := range d.Headers {
		out.Header.Set(key, value)
	}

	out.Header.Set("X-Forwarded-Path", req.Path)
	out.Header.Set("X-Forwarded-Host", req.Host)
}

// bodyAllowed reports whether the method carries a request body when
// proxied.
func bodyAllowed(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// errorType classifies an upstream error for metrics labels.
func errorType(err error) string {
	switch {
	case err == nil:
		return "none"
	case err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests:
		return "circuit_open"
	case strings.Contains(err.Error(), "context deadline exceeded"):
		return "timeout"
	default:
		return "transport"
	}
}
