package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/vireo-web/vireo/pkg/observability"
	"github.com/vireo-web/vireo/pkg/router"
)

// NetHTTPAdapter serves a router tree on the standard net/http server.
type NetHTTPAdapter struct {
	root    *router.Group
	opts    *options
	server  *http.Server
	running atomic.Bool

	mu       sync.Mutex
	listener net.Listener
}

// NewNetHTTP creates a net/http server adapter for the router tree.
func NewNetHTTP(root *router.Group, opts ...Option) *NetHTTPAdapter {
	return &NetHTTPAdapter{
		root: root,
		opts: newOptions(opts...),
	}
}

// Start emits the start event, builds the dispatch list, binds the
// listener, and begins serving in the background. The start event runs
// before the dispatch list is built so asynchronously mounted
// sub-routers are included; the started event fires once the listener
// is accepting.
func (a *NetHTTPAdapter) Start(ctx context.Context, host string, port int) error {
	if !a.running.CompareAndSwap(false, true) {
		return errors.New("server already running")
	}

	a.root.Emit(router.EventStart)

	dispatcher := NewDispatcher(a.root,
		WithDispatcherLogger(a.opts.logger),
		WithProxyEngine(a.opts.engine),
	)

	cfg := a.opts.cfg
	a.server = &http.Server{
		Handler:           dispatcher,
		ReadTimeout:       cfg.ReadTimeout.Duration(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout.Duration(),
		WriteTimeout:      cfg.WriteTimeout.Duration(),
		IdleTimeout:       cfg.IdleTimeout.Duration(),
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		a.running.Store(false)
		return fmt.Errorf("failed to bind %s:%d: %w", host, port, err)
	}

	a.mu.Lock()
	a.listener = listener
	a.mu.Unlock()

	a.opts.logger.Info("server listening",
		observability.String("addr", listener.Addr().String()),
		observability.Int("routes", len(dispatcher.Routes())),
	)

	go func() {
		if serveErr := a.server.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			a.opts.logger.Error("server terminated", observability.Error(serveErr))
			a.root.Emit(router.EventCrashed, serveErr)
		}
	}()

	a.root.Emit(router.EventStarted)

	return nil
}

// Stop drains in-flight requests within the configured shutdown
// timeout and closes the listener.
func (a *NetHTTPAdapter) Stop(ctx context.Context) error {
	if !a.running.CompareAndSwap(true, false) {
		return nil
	}

	a.root.Emit(router.EventStop)

	shutdownCtx, cancel := context.WithTimeout(ctx, a.opts.cfg.ShutdownTimeout.Duration())
	defer cancel()

	err := a.server.Shutdown(shutdownCtx)

	a.opts.logger.Info("server stopped")
	a.root.Emit(router.EventStopped)

	return err
}

// Addr returns the bound listener address.
func (a *NetHTTPAdapter) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}
