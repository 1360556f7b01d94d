package adapter

import (
	"context"

	"github.com/vireo-web/vireo/pkg/config"
	"github.com/vireo-web/vireo/pkg/observability"
	"github.com/vireo-web/vireo/pkg/proxy"
)

// ServerAdapter is a pluggable HTTP engine binding. Adapters own the
// server lifecycle; routing semantics are identical across engines
// because every adapter dispatches through the same core.
type ServerAdapter interface {
	// Start binds the listener and begins serving. It returns once the
	// listener is accepting; serving continues in the background.
	Start(ctx context.Context, host string, port int) error

	// Stop drains in-flight requests and shuts the server down.
	Stop(ctx context.Context) error

	// Addr returns the bound listener address, valid after Start.
	Addr() string
}

// Option configures a server adapter.
type Option func(*options)

type options struct {
	logger observability.Logger
	cfg    config.ServerConfig
	engine *proxy.Engine
}

func newOptions(opts ...Option) *options {
	o := &options{
		logger: observability.NopLogger(),
		cfg:    config.DefaultServerConfig(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the adapter logger.
func WithLogger(logger observability.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithServerConfig sets the listener timeouts and limits.
func WithServerConfig(cfg config.ServerConfig) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithProxy sets the proxy engine used for route-level targets and
// handler directives.
func WithProxy(engine *proxy.Engine) Option {
	return func(o *options) {
		o.engine = engine
	}
}
