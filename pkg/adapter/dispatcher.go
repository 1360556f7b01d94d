// Package adapter binds a router tree to a concrete HTTP server. The
// Dispatcher is the engine-independent core: it translates inbound
// requests, answers CORS preflights, matches routes in registration
// order, runs the filter chain, and writes the normalized response.
// NetHTTPAdapter and GinAdapter wrap it in a managed server lifecycle.
package adapter

import (
	"io"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/vireo-web/vireo/pkg/chain"
	"github.com/vireo-web/vireo/pkg/httpcore"
	"github.com/vireo-web/vireo/pkg/httperr"
	"github.com/vireo-web/vireo/pkg/metrics"
	"github.com/vireo-web/vireo/pkg/observability"
	"github.com/vireo-web/vireo/pkg/proxy"
	"github.com/vireo-web/vireo/pkg/router"
)

// Dispatcher is an http.Handler serving a flattened router tree. Build
// it after the start event has fired so asynchronously mounted
// sub-routers are included.
type Dispatcher struct {
	routes     []*router.FlatRoute
	corsMounts []*router.CORSMount
	executor   *chain.Executor
	engine     *proxy.Engine
	fallback   httpcore.ErrorHandler
	logger     observability.Logger
	bus        *router.Bus
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the dispatcher logger.
func WithDispatcherLogger(logger observability.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithProxyEngine sets the proxy engine used for route-level targets
// and handler directives.
func WithProxyEngine(engine *proxy.Engine) DispatcherOption {
	return func(d *Dispatcher) {
		d.engine = engine
	}
}

// NewDispatcher flattens the router tree into an ordered dispatch list.
// Route order is registration order; the first matching route wins.
func NewDispatcher(root *router.Group, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		logger:   observability.NopLogger(),
		fallback: root.ErrorHandler(),
		bus:      root.Bus(),
	}
	for _, opt := range opts {
		opt(d)
	}
	execOpts := []chain.Option{chain.WithLogger(d.logger)}
	if d.engine != nil {
		execOpts = append(execOpts, chain.WithProxyEngine(d.engine))
	}
	d.executor = chain.NewExecutor(execOpts...)
	d.routes = root.AllRoutes("/")
	d.corsMounts = root.CORSMounts("/")
	return d
}

// Routes returns the ordered dispatch list.
func (d *Dispatcher) Routes() []*router.FlatRoute {
	return d.routes
}

// ServeHTTP implements http.Handler.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	m := metrics.Get()
	m.RequestsInFlight.Inc()
	defer m.RequestsInFlight.Dec()

	req := translateRequest(r)

	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("dispatch panicked",
				observability.String("method", req.Method),
				observability.String("path", req.Path),
				observability.Any("panic", rec),
				observability.String("stack", string(debug.Stack())),
			)
			d.bus.Emit(router.EventCrashed, rec)
			http.Error(w, `{"code":"INTERNAL_ERROR"}`, http.StatusInternalServerError)
		}
	}()

	d.bus.Emit(router.EventRequest, req)

	if r.Method == http.MethodOptions {
		if mount := d.matchCORS(req.Path); mount != nil {
			res := httpcore.NewResponse().SetStatus(http.StatusNoContent)
			mount.Policy.Apply(res.Headers)
			d.writeResponse(w, res)
			d.bus.Emit(router.EventResponse, req, res)
			d.observe(req.Method, res.Status, start)
			return
		}
	}

	flat := d.match(req)
	if flat == nil {
		res := d.notFound(r, req)
		d.writeResponse(w, res)
		d.bus.Emit(router.EventResponse, req, res)
		d.observe(req.Method, res.Status, start)
		return
	}

	ctx := httpcore.ContextWithStartTime(r.Context(), start)
	res := httpcore.NewResponse()

	out := d.executor.Dispatch(ctx, req, res, &chain.Dispatch{
		Filters:        flat.Filters,
		Handler:        flat.Route.Handler,
		HandlerName:    flat.Route.Name,
		Proxy:          flat.Route.Options.Proxy,
		Produces:       flat.Route.Options.Produces,
		DefaultStatus:  flat.Route.Options.Status,
		DefaultHeaders: flat.Route.Options.Headers,
		ErrorHandler:   flat.ErrorHandler,
		RouteKey:       flat.Route.Key(),
	})

	switch v := out.(type) {
	case *httpcore.Response:
		d.writeResponse(w, v)
		d.bus.Emit(router.EventResponse, req, v)
		d.observe(req.Method, v.Status, start)
	case *Native:
		v.write(w)
		d.bus.Emit(router.EventResponse, req, v)
		d.observe(req.Method, v.Status, start)
	default:
		// An engine-native value from a foreign adapter cannot be
		// written by this one.
		d.logger.Error("unsupported platform response",
			observability.String("route", flat.Route.Key()),
		)
		http.Error(w, `{"code":"INTERNAL_ERROR"}`, http.StatusInternalServerError)
		d.observe(req.Method, http.StatusInternalServerError, start)
	}
}

// match finds the first registered route whose method and pattern
// accept the request, binding path parameters on success.
func (d *Dispatcher) match(req *httpcore.Request) *router.FlatRoute {
	for _, flat := range d.routes {
		if flat.Method != "*" && flat.Method != req.Method {
			continue
		}
		if ok, params := router.Match(flat.Pattern, req.Path); ok {
			req.Params = params
			return flat
		}
	}
	return nil
}

// matchCORS finds the most specific CORS mount covering the path.
func (d *Dispatcher) matchCORS(path string) *router.CORSMount {
	var best *router.CORSMount
	for _, mount := range d.corsMounts {
		if !mount.Matches(path) {
			continue
		}
		if best == nil || len(mount.Prefix) > len(best.Prefix) {
			best = mount
		}
	}
	return best
}

func (d *Dispatcher) notFound(r *http.Request, req *httpcore.Request) *httpcore.Response {
	err := httperr.NotFound(req.Method, req.Path)
	if d.fallback != nil {
		if res := d.fallback(r.Context(), err, req); res != nil {
			if res.Status == 0 {
				res.Status = http.StatusNotFound
			}
			return res
		}
	}
	return chain.DefaultErrorHandler(r.Context(), err, req)
}

func (d *Dispatcher) observe(method string, status int, start time.Time) {
	m := metrics.Get()
	m.RequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

// translateRequest maps an inbound http.Request to the normalized
// model. The body is attached as an unread stream; nothing is buffered
// until a handler asks for it.
func translateRequest(r *http.Request) *httpcore.Request {
	req := httpcore.NewRequest(r.Method, r.URL.Path)
	req.Headers = r.Header.Clone()
	req.Query = r.URL.Query()
	req.QueryString = r.URL.RawQuery
	req.Host = r.Host
	req.RemoteAddr = r.RemoteAddr
	if r.Body != nil && r.Body != http.NoBody {
		req.SetStream(r.Body)
	}
	return req
}

// writeResponse emits a normalized response. Streaming bodies are
// copied through with periodic flushes; data payloads are serialized
// per the response content type.
func (d *Dispatcher) writeResponse(w http.ResponseWriter, res *httpcore.Response) {
	header := w.Header()
	for key, values := range res.Headers {
		for _, value := range values {
			header.Add(key, value)
		}
	}

	status := res.Status
	if status == 0 {
		status = http.StatusOK
	}

	if res.Stream != nil {
		w.WriteHeader(status)
		defer func() { _ = res.Stream.Close() }()
		flusher, _ := w.(http.Flusher)
		buf := make([]byte, 32*1024)
		for {
			n, err := res.Stream.Read(buf)
			if n > 0 {
				if _, werr := w.Write(buf[:n]); werr != nil {
					return
				}
				if flusher != nil {
					flusher.Flush()
				}
			}
			if err != nil {
				if err != io.EOF {
					d.logger.Warn("upstream stream aborted", observability.Error(err))
				}
				return
			}
		}
	}

	if res.Data == nil {
		w.WriteHeader(status)
		return
	}

	payload, err := httpcore.EncodeData(res.Data, res.Headers.Get("Content-Type"))
	if err != nil {
		d.logger.Error("failed to encode response payload", observability.Error(err))
		http.Error(w, `{"code":"INTERNAL_ERROR"}`, http.StatusInternalServerError)
		return
	}

	header.Set("Content-Length", strconv.Itoa(len(payload)))
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

// Native is an engine-level response that bypasses normalization: the
// dispatcher writes its status, headers, and body verbatim.
type Native struct {
	Status int
	Header http.Header
	Body   []byte
}

// EngineResponse marks Native as a platform response.
func (*Native) EngineResponse() {}

func (n *Native) write(w http.ResponseWriter) {
	for key, values := range n.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	status := n.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(n.Body)
}
