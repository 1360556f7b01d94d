// Package chain executes the filter chain for a matched route: filters
// in order, then the terminal handler or proxy directive, then response
// normalization. A completed response short-circuits every remaining
// link.
package chain

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/vireo-web/vireo/pkg/httpcore"
	"github.com/vireo-web/vireo/pkg/httperr"
	"github.com/vireo-web/vireo/pkg/observability"
	"github.com/vireo-web/vireo/pkg/proxy"
)

// Dispatch carries everything the executor needs to serve one matched
// route: the resolved filter chain, the terminal handler, and the
// route-level response defaults.
type Dispatch struct {
	Filters        []httpcore.Filter
	Handler        httpcore.Handler
	HandlerName    string
	Proxy          any
	Produces       string
	DefaultStatus  int
	DefaultHeaders map[string]string
	ErrorHandler   httpcore.ErrorHandler
	RouteKey       string
}

// Executor runs dispatches. It is safe for concurrent use; all
// per-request state lives in the Dispatch arguments.
type Executor struct {
	logger       observability.Logger
	errorHandler httpcore.ErrorHandler
	engine       *proxy.Engine
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the executor logger.
func WithLogger(logger observability.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithErrorHandler sets the fallback error handler used when a route
// carries none of its own.
func WithErrorHandler(handler httpcore.ErrorHandler) Option {
	return func(e *Executor) {
		e.errorHandler = handler
	}
}

// WithProxyEngine sets the engine used for proxy directives and
// route-level proxy targets.
func WithProxyEngine(engine *proxy.Engine) Option {
	return func(e *Executor) {
		e.engine = engine
	}
}

// NewExecutor creates a chain executor.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.engine == nil {
		e.engine = proxy.NewEngine(proxy.WithLogger(e.logger))
	}
	return e
}

// Dispatch runs the chain for one request. The return value is either
// the normalized *httpcore.Response or a PlatformResponse the handler
// produced, which bypasses normalization entirely. Panics anywhere in
// the chain are contained here and served as internal errors.
func (e *Executor) Dispatch(ctx context.Context, req *httpcore.Request, res *httpcore.Response, d *Dispatch) (out any) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("request handler panicked",
				observability.String("route", d.RouteKey),
				observability.Any("panic", r),
				observability.String("stack", string(debug.Stack())),
			)
			out = e.handleError(ctx, req, d, fmt.Errorf("handler panic: %v", r))
		}
	}()

	result, err := e.step(ctx, req, res, d, 0)
	if err != nil {
		return e.handleError(ctx, req, d, err)
	}

	switch v := result.(type) {
	case nil:
	case httpcore.PlatformResponse:
		return v
	case *proxy.Directive:
		upstream, ferr := e.engine.Forward(ctx, req, v)
		if ferr != nil {
			return e.handleError(ctx, req, d, ferr)
		}
		res = upstream
	case *httpcore.Response:
		res = v
	default:
		if !res.Completed {
			res.Complete(v)
		}
	}

	e.finalize(res, d)
	return res
}

// step runs chain link i. Filters receive a next closure resuming at
// i+1; past the last filter the terminal route action runs. Every link
// observes the completed marker before doing anything.
func (e *Executor) step(ctx context.Context, req *httpcore.Request, res *httpcore.Response, d *Dispatch, i int) (any, error) {
	if res.Completed {
		return nil, nil
	}

	if i < len(d.Filters) {
		next := func(nextCtx context.Context) (any, error) {
			return e.step(nextCtx, req, res, d, i+1)
		}
		return d.Filters[i](ctx, req, res, next)
	}

	ctx = httpcore.ContextWithRequest(ctx, req)
	ctx = httpcore.ContextWithRoute(ctx, d.RouteKey)

	if d.Proxy != nil {
		target, ok, err := e.engine.ResolveTarget(ctx, d.Proxy, e.handlerName(d))
		if err != nil {
			return nil, err
		}
		if ok {
			return e.engine.Forward(ctx, req, proxy.To(target))
		}
	}

	if d.Handler == nil {
		return nil, httperr.NotFound(req.Method, req.Path)
	}
	return d.Handler(ctx, req, res)
}

// finalize applies the route's response defaults. Values the chain set
// explicitly always win; defaults only fill what is still blank. A
// streamed upstream response passes through verbatim.
func (e *Executor) finalize(res *httpcore.Response, d *Dispatch) {
	if res.Stream != nil {
		return
	}

	if res.Status == 0 {
		if d.DefaultStatus != 0 {
			res.Status = d.DefaultStatus
		} else {
			res.Status = 200
		}
	}

	for key, value := range d.DefaultHeaders {
		if res.Headers.Get(key) == "" {
			res.Headers.Set(key, value)
		}
	}

	if res.Headers.Get("Content-Type") == "" {
		contentType := d.Produces
		if contentType == "" {
			contentType = "application/json"
		}
		res.Headers.Set("Content-Type", contentType)
	}
}

func (e *Executor) handleError(ctx context.Context, req *httpcore.Request, d *Dispatch, err error) *httpcore.Response {
	if httperr.IsExpected(err) {
		e.logger.Debug("request rejected",
			observability.String("route", d.RouteKey),
			observability.Error(err),
		)
	} else {
		e.logger.Error("request failed",
			observability.String("route", d.RouteKey),
			observability.Error(err),
		)
	}

	handler := d.ErrorHandler
	if handler == nil {
		handler = e.errorHandler
	}
	if handler != nil {
		if res := handler(ctx, err, req); res != nil {
			e.finalize(res, d)
			return res
		}
	}
	return DefaultErrorHandler(ctx, err, req)
}

func (e *Executor) handlerName(d *Dispatch) string {
	if d.HandlerName != "" {
		return d.HandlerName
	}
	return d.RouteKey
}

// DefaultErrorHandler serves the normalized JSON error body for any
// request-time failure.
func DefaultErrorHandler(_ context.Context, err error, req *httpcore.Request) *httpcore.Response {
	method, path := "", ""
	if req != nil {
		method, path = req.Method, req.Path
	}
	body, status := httperr.Advise(err, method, path)
	res := httpcore.NewResponse().
		SetStatus(status).
		SetHeader("Content-Type", "application/json")
	res.Complete(body)
	return res
}
