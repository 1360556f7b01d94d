package router

import (
	"fmt"
	"strings"

	"github.com/vireo-web/vireo/pkg/httpcore"
	"github.com/vireo-web/vireo/pkg/httperr"
	"github.com/vireo-web/vireo/pkg/observability"
)

// Options carries the per-route options of a route descriptor.
type Options struct {
	// Name is the handler name, used as the key for store-resolved
	// proxy targets. Defaults to the route key when empty.
	Name string

	Consumes string
	Produces string
	Status   int
	Headers  map[string]string

	// Proxy is the per-route proxy configuration: a literal URL string,
	// a resolver, or a store keyed by the handler name. See pkg/proxy.
	Proxy any
}

// RouteDecl is one route declaration supplied by a controller.
type RouteDecl struct {
	Method  string
	Path    string
	Handler httpcore.Handler
	Options Options
}

// ControllerDescriptor is the realized metadata of one controller:
// base path, optional controller-wide proxy, profile set, and route
// declarations. Built once and immutable thereafter.
type ControllerDescriptor struct {
	Name     string
	BasePath string
	Proxy    any
	Profiles []string
	Routes   []RouteDecl
}

// ModuleDescriptor is the realized metadata of one module.
type ModuleDescriptor struct {
	Name        string
	Controllers []ControllerDescriptor
	Providers   []any
	Imports     []*ModuleDescriptor
	Profiles    []string
}

// Route is a normalized route descriptor in a routing table.
type Route struct {
	Method     string
	Path       string
	Name       string
	Handler    httpcore.Handler
	Options    Options
	Controller *ControllerDescriptor
}

// Key returns the unique "{METHOD} {path}" routing key.
func (r *Route) Key() string {
	return r.Method + " " + r.Path
}

// Table is an ordered routing table keyed by "{METHOD} {path}".
// Duplicate keys are a build-time fatal error.
type Table struct {
	keys    map[string]*Route
	ordered []*Route
}

// NewTable creates an empty routing table.
func NewTable() *Table {
	return &Table{keys: make(map[string]*Route)}
}

// Add inserts a route, failing on a duplicate key or missing handler.
func (t *Table) Add(route *Route) error {
	if route.Handler == nil && route.Options.Proxy == nil &&
		(route.Controller == nil || route.Controller.Proxy == nil) {
		return httperr.NewConfigError(route.Key(), "route has no resolvable handler")
	}

	key := route.Key()
	if _, exists := t.keys[key]; exists {
		return httperr.NewConfigError(key, "duplicate route key")
	}

	t.keys[key] = route
	t.ordered = append(t.ordered, route)
	return nil
}

// Routes returns all routes in registration order.
func (t *Table) Routes() []*Route {
	routes := make([]*Route, len(t.ordered))
	copy(routes, t.ordered)
	return routes
}

// Lookup returns the route registered under the exact method and path.
func (t *Table) Lookup(method, path string) (*Route, bool) {
	route, ok := t.keys[strings.ToUpper(method)+" "+JoinPaths(path)]
	return route, ok
}

// Len returns the number of routes in the table.
func (t *Table) Len() int {
	return len(t.ordered)
}

// TableOption configures table construction.
type TableOption func(*tableBuilder)

type tableBuilder struct {
	logger observability.Logger
	bus    *Bus
}

// WithTableLogger sets the logger used for per-controller events.
func WithTableLogger(logger observability.Logger) TableOption {
	return func(b *tableBuilder) {
		b.logger = logger
	}
}

// WithTableBus sets the event bus receiving one EventController per
// controller processed.
func WithTableBus(bus *Bus) TableOption {
	return func(b *tableBuilder) {
		b.bus = bus
	}
}

// BuildTable flattens a module descriptor tree into a routing table.
//
// Controllers and modules whose profile set is non-empty and disjoint
// from the active profile set are excluded entirely. All configuration
// errors (duplicate keys, missing handlers, a handler-level proxy
// combined with a controller-level one) are raised here and never
// deferred to request time.
func BuildTable(mod *ModuleDescriptor, activeProfiles []string, opts ...TableOption) (*Table, error) {
	b := &tableBuilder{logger: observability.NopLogger()}
	for _, opt := range opts {
		opt(b)
	}

	table := NewTable()
	if err := b.addModule(table, mod, activeProfiles); err != nil {
		return nil, err
	}
	return table, nil
}

func (b *tableBuilder) addModule(table *Table, mod *ModuleDescriptor, active []string) error {
	if mod == nil {
		return nil
	}
	if excludedByProfiles(mod.Profiles, active) {
		b.logger.Debug("module excluded by profiles",
			observability.String("module", mod.Name),
			observability.Strings("profiles", mod.Profiles),
		)
		return nil
	}

	for _, imported := range mod.Imports {
		if err := b.addModule(table, imported, active); err != nil {
			return err
		}
	}

	for i := range mod.Controllers {
		if err := b.addController(table, &mod.Controllers[i], active); err != nil {
			return err
		}
	}
	return nil
}

func (b *tableBuilder) addController(table *Table, ctrl *ControllerDescriptor, active []string) error {
	if excludedByProfiles(ctrl.Profiles, active) {
		b.logger.Debug("controller excluded by profiles",
			observability.String("controller", ctrl.Name),
			observability.Strings("profiles", ctrl.Profiles),
		)
		return nil
	}

	for _, decl := range ctrl.Routes {
		if ctrl.Proxy != nil && decl.Options.Proxy != nil {
			return httperr.NewConfigError(
				fmt.Sprintf("%s %s", ctrl.Name, decl.Path),
				"handler-level proxy cannot be combined with a controller-level proxy",
			)
		}

		route := &Route{
			Method:     strings.ToUpper(decl.Method),
			Path:       JoinPaths(ctrl.BasePath, decl.Path),
			Name:       decl.Options.Name,
			Handler:    decl.Handler,
			Options:    decl.Options,
			Controller: ctrl,
		}
		if route.Name == "" {
			route.Name = route.Key()
		}
		if route.Options.Proxy == nil {
			route.Options.Proxy = ctrl.Proxy
		}
		if err := table.Add(route); err != nil {
			return err
		}
	}

	b.logger.Info("controller configured",
		observability.String("controller", ctrl.Name),
		observability.String("base_path", ctrl.BasePath),
		observability.Int("routes", len(ctrl.Routes)),
	)
	if b.bus != nil {
		b.bus.Emit(EventController, ctrl.Name)
	}
	return nil
}

// excludedByProfiles reports whether a non-empty profile set is
// disjoint from the active set.
func excludedByProfiles(profiles, active []string) bool {
	if len(profiles) == 0 {
		return false
	}
	for _, p := range profiles {
		for _, a := range active {
			if p == a {
				return false
			}
		}
	}
	return true
}
