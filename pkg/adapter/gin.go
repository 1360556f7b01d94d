package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/vireo-web/vireo/pkg/observability"
	"github.com/vireo-web/vireo/pkg/router"
)

// ginModeOnce ensures gin.SetMode is only called once to avoid race conditions.
var ginModeOnce sync.Once

// GinAdapter serves a router tree through a gin engine. The dispatch
// list is embedded as the engine's NoRoute handler so route matching
// keeps registration order; gin middleware and natively registered gin
// routes take precedence over the tree.
type GinAdapter struct {
	root    *router.Group
	opts    *options
	engine  *gin.Engine
	server  *http.Server
	running atomic.Bool

	mu       sync.Mutex
	listener net.Listener
}

// NewGin creates a gin server adapter for the router tree.
func NewGin(root *router.Group, opts ...Option) *GinAdapter {
	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})
	return &GinAdapter{
		root:   root,
		opts:   newOptions(opts...),
		engine: gin.New(),
	}
}

// Engine exposes the underlying gin engine for native middleware or
// route registration before Start.
func (a *GinAdapter) Engine() *gin.Engine {
	return a.engine
}

// Start emits the start event, embeds the dispatcher into the gin
// engine, binds the listener, and begins serving in the background.
func (a *GinAdapter) Start(ctx context.Context, host string, port int) error {
	if !a.running.CompareAndSwap(false, true) {
		return errors.New("server already running")
	}

	a.root.Emit(router.EventStart)

	dispatcher := NewDispatcher(a.root,
		WithDispatcherLogger(a.opts.logger),
		WithProxyEngine(a.opts.engine),
	)
	a.engine.NoRoute(func(c *gin.Context) {
		dispatcher.ServeHTTP(c.Writer, c.Request)
	})

	cfg := a.opts.cfg
	a.server = &http.Server{
		Handler:           a.engine,
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

	a.opts.logger.Info("gin server listening",
		observability.String("addr", listener.Addr().String()),
		observability.Int("routes", len(dispatcher.Routes())),
	)

	go func() {
		if serveErr := a.server.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			a.opts.logger.Error("gin server terminated", observability.Error(serveErr))
			a.root.Emit(router.EventCrashed, serveErr)
		}
	}()

	a.root.Emit(router.EventStarted)

	return nil
}

// Stop drains in-flight requests within the configured shutdown
// timeout and closes the listener.
func (a *GinAdapter) Stop(ctx context.Context) error {
	if !a.running.CompareAndSwap(true, false) {
		return nil
	}

	a.root.Emit(router.EventStop)

	shutdownCtx, cancel := context.WithTimeout(ctx, a.opts.cfg.ShutdownTimeout.Duration())
	defer cancel()

	err := a.server.Shutdown(shutdownCtx)

	a.opts.logger.Info("gin server stopped")
	a.root.Emit(router.EventStopped)

	return err
}

// Addr returns the bound listener address.
func (a *GinAdapter) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}
