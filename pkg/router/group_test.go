package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vireo-web/vireo/pkg/httpcore"
	"github.com/vireo-web/vireo/pkg/httperr"
)

func namedFilter(order *[]string, name string) httpcore.Filter {
	return func(ctx context.Context, req *httpcore.Request, res *httpcore.Response, next httpcore.Next) (any, error) {
		*order = append(*order, name)
		return next(ctx)
	}
}

func TestGroupRouteRegistration(t *testing.T) {
	t.Parallel()

	g := New("app")
	g.Get("/users", okHandler).
		Post("/users", okHandler).
		Get("/users/:id", okHandler)

	flat := g.AllRoutes("")
	require.Len(t, flat, 3)
	assert.Equal(t, "GET", flat[0].Method)
	assert.Equal(t, "/users", flat[0].Pattern)
	assert.Equal(t, "/users/:id", flat[2].Pattern)
}

func TestGroupDuplicateRoutePanics(t *testing.T) {
	t.Parallel()

	g := New("app")
	g.Get("/users", okHandler)

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.ErrorIs(t, err, httperr.ErrConfigInvalid)
	}()
	g.Get("//users/", okHandler)
}

func TestGroupNilHandlerRoutePanics(t *testing.T) {
	t.Parallel()

	g := New("app")

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.ErrorIs(t, err, httperr.ErrConfigInvalid)
		assert.Contains(t, err.Error(), "no resolvable handler")
	}()
	g.Get("/broken", nil)
}

func TestGroupNilHandlerWithProxyAllowed(t *testing.T) {
	t.Parallel()

	g := New("app")
	g.Get("/proxied", nil, &Options{Proxy: "http://upstream"})

	flat := g.AllRoutes("")
	require.Len(t, flat, 1)
	assert.Equal(t, "http://upstream", flat[0].Route.Options.Proxy)
}

func TestGroupRequestVerbMatchesAnyMethod(t *testing.T) {
	t.Parallel()

	g := New("app")
	g.Request("/any", okHandler)

	flat := g.AllRoutes("")
	require.Len(t, flat, 1)
	assert.Equal(t, "*", flat[0].Method)
}

func TestGroupSubMountPrefixes(t *testing.T) {
	t.Parallel()

	users := func() *Group {
		g := New("UsersGroup")
		g.Get("/:id", okHandler)
		return g
	}

	root := New("app")
	root.Use("/api/v1/users", users)

	flat := root.AllRoutes("")
	require.Len(t, flat, 1)
	assert.Equal(t, "/api/v1/users/:id", flat[0].Pattern)
}

func TestGroupFilterOrderWildcardBeforeScoped(t *testing.T) {
	t.Parallel()

	var order []string

	sub := func() *Group {
		g := New("SubGroup")
		g.Guard(namedFilter(&order, "sub-wildcard"))
		g.Get("/x", okHandler)
		return g
	}

	root := New("app")
	root.Guard(namedFilter(&order, "root-wildcard-1"))
	root.Guard(namedFilter(&order, "root-wildcard-2"))
	root.With(namedFilter(&order, "root-scoped"), "SubGroup")
	root.Use("/sub", sub)

	flat := root.AllRoutes("")
	require.Len(t, flat, 1)
	require.Len(t, flat[0].Filters, 4)

	ctx := context.Background()
	req := httpcore.NewRequest("GET", "/sub/x")
	res := httpcore.NewResponse()
	var run func(i int) (any, error)
	run = func(i int) (any, error) {
		if i >= len(flat[0].Filters) {
			return nil, nil
		}
		return flat[0].Filters[i](ctx, req, res, func(ctx context.Context) (any, error) {
			return run(i + 1)
		})
	}
	_, err := run(0)
	require.NoError(t, err)

	assert.Equal(t, []string{"root-wildcard-1", "root-wildcard-2", "root-scoped", "sub-wildcard"}, order)
}

func TestGroupScopedFilterSkippedForOtherSubRouters(t *testing.T) {
	t.Parallel()

	var order []string

	other := func() *Group {
		g := New("OtherGroup")
		g.Get("/y", okHandler)
		return g
	}

	root := New("app")
	root.With(namedFilter(&order, "only-for-sub"), "SubGroup")
	root.Use("/other", other)

	flat := root.AllRoutes("")
	require.Len(t, flat, 1)
	assert.Empty(t, flat[0].Filters)
}

func TestGroupFilterSnapshotClosesAtConfigure(t *testing.T) {
	t.Parallel()

	var order []string

	sub := func() *Group {
		g := New("Early")
		g.Get("/x", okHandler)
		return g
	}

	root := New("app")
	root.Guard(namedFilter(&order, "before-configure"))
	root.Use("/early", sub)

	// Registered after the sub-router was mounted: must not appear in
	// the already-built inherited chain.
	root.Guard(namedFilter(&order, "after-mount"))

	flat := root.AllRoutes("")
	require.Len(t, flat, 1)
	assert.Len(t, flat[0].Filters, 1)

	late := func() *Group {
		g := New("Late")
		g.Get("/y", okHandler)
		return g
	}
	root.Use("/late", late)

	flat = root.AllRoutes("")
	require.Len(t, flat, 2)
	// The earlier mount keeps its one-filter chain; the later mount
	// inherits both guards.
	assert.Len(t, flat[0].Filters, 1)
	assert.Len(t, flat[1].Filters, 2)
}

func TestGroupUseAsyncResolvesOnStart(t *testing.T) {
	t.Parallel()

	deferred := func() *Group {
		g := New("Deferred")
		g.Get("/lazy", okHandler)
		return g
	}

	root := New("app")
	root.Get("/eager", okHandler)
	root.UseAsync("/mods", deferred)

	assert.Len(t, root.AllRoutes(""), 1)

	root.Emit(EventStart)

	flat := root.AllRoutes("")
	require.Len(t, flat, 2)
	assert.Equal(t, "/mods/lazy", flat[1].Pattern)
}

func TestGroupCORSMounts(t *testing.T) {
	t.Parallel()

	sub := func() *Group {
		g := New("Admin")
		g.CORS(&CORSPolicy{AllowedOrigins: []string{"https://admin.example.com"}})
		g.Get("/panel", okHandler)
		return g
	}

	root := New("app")
	root.CORS("*")
	root.Use("/admin", sub)

	mounts := root.CORSMounts("")
	require.Len(t, mounts, 2)
	assert.Equal(t, "/", mounts[0].Prefix)
	assert.Equal(t, []string{"*"}, mounts[0].Policy.AllowedOrigins)
	assert.Equal(t, "/admin", mounts[1].Prefix)
	assert.Equal(t, []string{"https://admin.example.com"}, mounts[1].Policy.AllowedOrigins)
}

func TestGroupCORSInvalidShorthandPanics(t *testing.T) {
	t.Parallel()

	g := New("app")
	assert.Panics(t, func() { g.CORS("??") })
}

func TestGroupErrorHandlerInheritance(t *testing.T) {
	t.Parallel()

	custom := func(ctx context.Context, err error, req *httpcore.Request) *httpcore.Response {
		return httpcore.NewResponse().SetStatus(418).Complete("teapot")
	}

	sub := func() *Group {
		g := New("Sub")
		g.Get("/x", okHandler)
		return g
	}

	root := New("app", WithErrorHandler(custom))
	root.Use("/sub", sub)

	flat := root.AllRoutes("")
	require.Len(t, flat, 1)
	require.NotNil(t, flat[0].ErrorHandler)
	res := flat[0].ErrorHandler(context.Background(), assert.AnError, httpcore.NewRequest("GET", "/sub/x"))
	assert.Equal(t, 418, res.Status)
}

func TestGroupEventsDoNotPropagateHandlerPanics(t *testing.T) {
	t.Parallel()

	g := New("app")
	var called bool
	g.On(EventStarted, func(...any) { panic("boom") })
	g.On(EventStarted, func(...any) { called = true })

	assert.NotPanics(t, func() { g.Emit(EventStarted) })
	assert.True(t, called)
}

func TestFromTable(t *testing.T) {
	t.Parallel()

	mod := &ModuleDescriptor{
		Controllers: []ControllerDescriptor{
			{
				Name:     "Users",
				BasePath: "/users",
				Routes: []RouteDecl{
					{Method: "GET", Path: "/:id", Handler: okHandler},
				},
			},
		},
	}
	table, err := BuildTable(mod, nil)
	require.NoError(t, err)

	g := FromTable("app", table)
	flat := g.AllRoutes("")
	require.Len(t, flat, 1)
	assert.Equal(t, "/users/:id", flat[0].Pattern)
}
