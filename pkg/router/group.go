package router

import (
	"strings"

	"github.com/vireo-web/vireo/pkg/httpcore"
	"github.com/vireo-web/vireo/pkg/httperr"
	"github.com/vireo-web/vireo/pkg/observability"
)

// SubFactory produces a fresh sub-router instance for one mount.
// Constructor arguments are captured in the closure, so every mount
// gets an independent instance with no shared state.
type SubFactory func() *Group

// scopedFilter applies only immediately before the named sub-routers.
type scopedFilter struct {
	filter  httpcore.Filter
	targets map[string]bool
}

type mount struct {
	prefix string
	sub    *Group
}

// Group aggregates routes, sub-groups, filters, and a CORS policy for
// one logical routing unit.
//
// A group moves through three states: unconfigured, configuring
// (filters snapshotted), and configured (routes fixed; mounts and
// explicit Route calls still permitted). Filter registration is closed
// once the group configures, which happens on the first route
// registration or an explicit Configure call: Guard and With calls made
// afterwards affect only chains built from that point onward, never
// chains already snapshotted. Once any request has been dispatched, no
// structural change is safe without a fresh instance; this constraint
// is documented, not enforced.
type Group struct {
	name         string
	logger       observability.Logger
	bus          *Bus
	cors         *CORSPolicy
	errorHandler httpcore.ErrorHandler

	wildcard []httpcore.Filter
	scoped   []scopedFilter

	configured bool
	snapshot   []httpcore.Filter
	inherited  []httpcore.Filter

	routes    []*Route
	routeKeys map[string]bool
	mounts    []*mount
}

// GroupOption configures a Group.
type GroupOption func(*Group)

// WithGroupLogger sets the group's logger.
func WithGroupLogger(logger observability.Logger) GroupOption {
	return func(g *Group) {
		g.logger = logger
	}
}

// WithErrorHandler sets the error handler for this scope. Sub-groups
// without their own handler inherit it at mount time.
func WithErrorHandler(handler httpcore.ErrorHandler) GroupOption {
	return func(g *Group) {
		g.errorHandler = handler
	}
}

// New creates a named, unconfigured group.
func New(name string, opts ...GroupOption) *Group {
	g := &Group{
		name:      name,
		logger:    observability.NopLogger(),
		routeKeys: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.bus = NewBus(g.logger)
	return g
}

// FromTable creates a group preloaded with the routes of a built table.
func FromTable(name string, table *Table, opts ...GroupOption) *Group {
	g := New(name, opts...)
	g.Configure()
	for _, route := range table.Routes() {
		g.addRoute(route)
	}
	return g
}

// Name returns the group name, the key used by With targeting.
func (g *Group) Name() string {
	return g.name
}

// Bus returns the group's lifecycle event bus.
func (g *Group) Bus() *Bus {
	return g.bus
}

// ErrorHandler returns the scope's error handler, nil if unset.
func (g *Group) ErrorHandler() httpcore.ErrorHandler {
	return g.errorHandler
}

// Configure closes filter registration for this group and snapshots the
// wildcard filter chain. Called implicitly by the first route
// registration or mount.
func (g *Group) Configure() *Group {
	if g.configured {
		return g
	}
	g.configured = true
	g.snapshot = make([]httpcore.Filter, len(g.wildcard))
	copy(g.snapshot, g.wildcard)
	return g
}

// Guard registers a wildcard filter applying to every route in this
// scope. Registrations after the group has configured affect only
// chains built from that point onward.
func (g *Group) Guard(filter httpcore.Filter) *Group {
	g.wildcard = append(g.wildcard, filter)
	if g.configured {
		g.snapshot = append(g.snapshot, filter)
	}
	return g
}

// With registers a filter that runs only immediately before the named
// sub-routers when they are mounted. Wildcard filters always run before
// scope-specific ones; within each kind, registration order is kept.
func (g *Group) With(filter httpcore.Filter, subRouters ...string) *Group {
	targets := make(map[string]bool, len(subRouters))
	for _, name := range subRouters {
		targets[name] = true
	}
	g.scoped = append(g.scoped, scopedFilter{filter: filter, targets: targets})
	return g
}

// CORS sets the scope's CORS policy. Accepts the '*' shorthand or a
// CORSPolicy. An invalid value is a build-time configuration error.
func (g *Group) CORS(policy any) *Group {
	parsed, err := ParseCORS(policy)
	if err != nil {
		panic(err)
	}
	g.cors = parsed
	return g
}

// SetErrorHandler overrides the error handler for this scope.
func (g *Group) SetErrorHandler(handler httpcore.ErrorHandler) *Group {
	g.errorHandler = handler
	return g
}

// Route registers one route. The first call configures the group.
// Duplicate (method, normalized path) registration is a build-time
// fatal error.
func (g *Group) Route(method, path string, handler httpcore.Handler, opts *Options) *Group {
	g.Configure()

	route := &Route{
		Method:  strings.ToUpper(method),
		Path:    JoinPaths(path),
		Handler: handler,
	}
	if opts != nil {
		route.Options = *opts
		route.Name = opts.Name
	}
	if route.Name == "" {
		route.Name = route.Key()
	}
	if route.Handler == nil && route.Options.Proxy == nil {
		panic(httperr.NewConfigError(route.Key(), "route has no resolvable handler"))
	}
	g.addRoute(route)
	return g
}

func (g *Group) addRoute(route *Route) {
	key := route.Key()
	if g.routeKeys[key] {
		panic(httperr.NewConfigError(key, "duplicate route key"))
	}
	g.routeKeys[key] = true
	g.routes = append(g.routes, route)
}

// Get registers a GET route.
func (g *Group) Get(path string, handler httpcore.Handler, opts ...*Options) *Group {
	return g.Route("GET", path, handler, firstOption(opts))
}

// Post registers a POST route.
func (g *Group) Post(path string, handler httpcore.Handler, opts ...*Options) *Group {
	return g.Route("POST", path, handler, firstOption(opts))
}

// Put registers a PUT route.
func (g *Group) Put(path string, handler httpcore.Handler, opts ...*Options) *Group {
	return g.Route("PUT", path, handler, firstOption(opts))
}

// Patch registers a PATCH route.
func (g *Group) Patch(path string, handler httpcore.Handler, opts ...*Options) *Group {
	return g.Route("PATCH", path, handler, firstOption(opts))
}

// Delete registers a DELETE route.
func (g *Group) Delete(path string, handler httpcore.Handler, opts ...*Options) *Group {
	return g.Route("DELETE", path, handler, firstOption(opts))
}

// Request registers a route matching any HTTP method.
func (g *Group) Request(path string, handler httpcore.Handler, opts ...*Options) *Group {
	return g.Route("*", path, handler, firstOption(opts))
}

func firstOption(opts []*Options) *Options {
	if len(opts) > 0 {
		return opts[0]
	}
	return nil
}

// Use instantiates a sub-router via its factory and mounts it at the
// given prefix. The parent's wildcard filter snapshot, followed by any
// With filters targeting the sub-router's name, is propagated into the
// sub-router's configuration. A sub-router declaring its own CORS
// policy answers preflights under its mount prefix independent of the
// parent's policy.
func (g *Group) Use(prefix string, factory SubFactory) *Group {
	g.Configure()

	sub := factory()

	inherited := make([]httpcore.Filter, 0, len(g.inherited)+len(g.snapshot)+len(g.scoped))
	inherited = append(inherited, g.inherited...)
	inherited = append(inherited, g.snapshot...)
	for _, sf := range g.scoped {
		if sf.targets[sub.name] {
			inherited = append(inherited, sf.filter)
		}
	}
	sub.inherited = inherited
	sub.Configure()

	if sub.errorHandler == nil {
		sub.errorHandler = g.errorHandler
	}

	g.mounts = append(g.mounts, &mount{prefix: JoinPaths(prefix), sub: sub})

	g.logger.Info("sub-router mounted",
		observability.String("router", sub.name),
		observability.String("prefix", JoinPaths(prefix)),
	)
	return g
}

// UseAsync mounts a sub-router lazily: the factory is resolved when the
// start lifecycle event fires, supporting deferred module loading.
func (g *Group) UseAsync(prefix string, factory SubFactory) *Group {
	g.bus.On(EventStart, func(...any) {
		g.Use(prefix, factory)
	})
	return g
}

// On subscribes a handler to a lifecycle event.
func (g *Group) On(event string, handler EventHandler) *Group {
	g.bus.On(event, handler)
	return g
}

// Emit delivers a lifecycle event to subscribed handlers.
func (g *Group) Emit(event string, args ...any) {
	g.bus.Emit(event, args...)
}

// FlatRoute is one dispatch-ready entry of a flattened router tree.
type FlatRoute struct {
	Method       string
	Pattern      string
	Route        *Route
	Filters      []httpcore.Filter
	ErrorHandler httpcore.ErrorHandler
	CORS         *CORSPolicy
}

// AllRoutes recursively flattens this group and all mounted sub-groups,
// concatenating and normalizing prefixes. The result preserves
// registration order: own routes first, then each mount in order. The
// server adapter uses it to build a single dispatch list.
func (g *Group) AllRoutes(prefix string) []*FlatRoute {
	g.Configure()

	filters := make([]httpcore.Filter, 0, len(g.inherited)+len(g.snapshot))
	filters = append(filters, g.inherited...)
	filters = append(filters, g.snapshot...)

	flat := make([]*FlatRoute, 0, len(g.routes))
	for _, route := range g.routes {
		flat = append(flat, &FlatRoute{
			Method:       route.Method,
			Pattern:      JoinPaths(prefix, route.Path),
			Route:        route,
			Filters:      filters,
			ErrorHandler: g.errorHandler,
			CORS:         g.cors,
		})
	}
	for _, m := range g.mounts {
		flat = append(flat, m.sub.AllRoutes(JoinPaths(prefix, m.prefix))...)
	}
	return flat
}

// CORSMounts collects every CORS policy in the tree with its normalized
// mount prefix, for preflight handling.
func (g *Group) CORSMounts(prefix string) []*CORSMount {
	var mounts []*CORSMount
	if g.cors != nil {
		mounts = append(mounts, &CORSMount{Prefix: JoinPaths(prefix), Policy: g.cors})
	}
	for _, m := range g.mounts {
		mounts = append(mounts, m.sub.CORSMounts(JoinPaths(prefix, m.prefix))...)
	}
	return mounts
}
