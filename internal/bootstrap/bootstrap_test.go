package bootstrap

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avaroute/internal/cache"
	"github.com/vyrodovalexey/avaroute/internal/config"
	"github.com/vyrodovalexey/avaroute/internal/observability"
	"github.com/vyrodovalexey/avaroute/internal/registry"
	"github.com/vyrodovalexey/avaroute/internal/router"
)

type trace struct {
	mu     sync.Mutex
	events []string
}

func (tr *trace) add(event string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.events = append(tr.events, event)
}

func (tr *trace) get() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.events...)
}

func testClasses(tr *trace) []*registry.Class {
	return []*registry.Class{
		{
			Name: "Widgets",
			Methods: map[string]registry.MethodFunc{
				"show": func(_ context.Context, _ any, call *router.Call) error {
					tr.add("show " + call.Params["id"] + " " + call.Data["section"].(string))
					return nil
				},
				"hidden": func(context.Context, any, *router.Call) error {
					return router.ErrNotFound
				},
			},
			Statics: map[string]router.HookFunc{
				"audit": func(_ context.Context, call *router.Call, _ error) error {
					tr.add("audit " + call.Method())
					return nil
				},
			},
		},
		{
			Name: "Errors",
			Methods: map[string]registry.MethodFunc{
				"notFound": func(context.Context, any, *router.Call) error {
					tr.add("not found")
					return nil
				},
			},
		},
		{
			Name:    "Posts",
			Methods: map[string]registry.MethodFunc{"show": func(context.Context, any, *router.Call) error { return nil }},
		},
	}
}

func testConfig() *config.Config {
	cfg := &config.Config{
		Router: config.RouterConfig{
			Tokens:    map[string]string{"ajax": "[x-requested-with=XMLHttpRequest]"},
			Fallbacks: config.FallbacksConfig{NotFound: "Errors::notFound"},
		},
		Routes: []config.RouteConfig{
			{Map: "get /widgets/:id", Callback: "Widgets::show", Data: map[string]any{"section": "catalog"}},
			{Map: "ajax /widgets/:id/hidden", Callback: "Widgets::hidden"},
			{Map: "/posts/:title", Callback: "Posts::show"},
		},
		Aliases: map[string]string{"post": "Posts::show title"},
		Hooks: []config.HookConfig{
			{Stage: "before", Pattern: "Widgets::*", Targets: []string{"Widgets::audit"}},
		},
		Authorize: []string{"Widgets", "Errors", "Posts"},
		ParamFormatters: []config.ParamFormatterConfig{
			{Class: "Posts", Param: "title", Format: config.FormatUpper},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestBuild(t *testing.T) {
	t.Parallel()

	tr := &trace{}
	snapshot, err := Build(testConfig(), WithClasses(testClasses(tr)...))
	require.NoError(t, err)
	defer func() { _ = snapshot.Close() }()

	r := snapshot.Router
	assert.Equal(t, 3, r.Len())

	outcome, err := r.Serve(context.Background(), router.Request{
		Path:    "/widgets/7",
		Headers: map[string]string{"request-method": "GET"},
	})
	require.NoError(t, err)
	assert.Equal(t, router.StatusDispatched, outcome.Status)
	assert.Equal(t, "Widgets::show", outcome.Identity)
	assert.Equal(t, []string{"audit show", "show 7 catalog"}, tr.get())

	link, err := r.Link(context.Background(), "post", "MiXed")
	require.NoError(t, err)
	assert.Equal(t, "/posts/MIXED", link)
}

func TestBuild_TokensAndFallbacks(t *testing.T) {
	t.Parallel()

	tr := &trace{}
	snapshot, err := Build(testConfig(), WithClasses(testClasses(tr)...))
	require.NoError(t, err)

	outcome, err := snapshot.Router.Serve(context.Background(), router.Request{
		Path:    "/widgets/7/hidden",
		Headers: map[string]string{"X-Requested-With": "XMLHttpRequest"},
	})
	require.NoError(t, err)
	assert.Equal(t, router.StatusNotFound, outcome.Status)
	assert.True(t, outcome.Handled)
	assert.Equal(t, "Errors::notFound", outcome.Identity)
	assert.Equal(t, []string{"audit hidden", "not found"}, tr.get())
}

func TestBuild_Unauthorized(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Authorize = []string{"Errors"}

	snapshot, err := Build(cfg, WithClasses(testClasses(&trace{})...))
	require.NoError(t, err)

	assert.False(t, snapshot.Router.Check(router.Request{
		Path:    "/widgets/7",
		Headers: map[string]string{"request-method": "get"},
	}))
}

func TestBuild_RouterOptions(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Router.Delimiter = "_"
	cfg.Router.LegacyNamespacing = true
	cfg.Router.CallbackParams.Method = "action"
	cfg.Router.CanonicalRedirect = config.RedirectPermanent
	disabled := false
	cfg.Router.TrailingSlashRedirect = &disabled
	cfg.Routes = []config.RouteConfig{{Map: "/:namespace/:class/:action"}}

	snapshot, err := Build(cfg)
	require.NoError(t, err)
	r := snapshot.Router

	assert.Equal(t, "_", r.Separator())
	assert.Equal(t, "_", r.Inflector().Delimiter())
	assert.Equal(t, "_", cfg.Router.Delimiter)

	link, err := r.Link(context.Background(), "Admin_UserTools::showAll")
	require.NoError(t, err)
	assert.Equal(t, "/admin/user_tools/show_all", link)

	res, _ := r.Resolve(router.Request{Path: "/admin/user_tools/show_all/"}, 0)
	require.NotNil(t, res, "trailing slash is served when redirects are disabled")
	assert.Equal(t, "Admin_UserTools::showAll", res.Identity)
}

func TestBuild_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		opts    []Option
		wantErr string
	}{
		{
			name:    "route",
			mutate:  func(c *config.Config) { c.Routes = append(c.Routes, config.RouteConfig{Map: "bogus /x"}) },
			wantErr: "routes[3]",
		},
		{
			name: "hook",
			mutate: func(c *config.Config) {
				c.Hooks = []config.HookConfig{{Stage: "sometime", Pattern: "*", Targets: []string{"A::b"}}}
			},
			wantErr: "hooks[0]",
		},
		{
			name: "param formatter",
			mutate: func(c *config.Config) {
				c.ParamFormatters = []config.ParamFormatterConfig{{Class: "*", Param: "id", Format: "rot13"}}
			},
			wantErr: "paramFormatters[0]",
		},
		{
			name:    "class",
			opts:    []Option{WithClasses(&registry.Class{Name: "Bad-Class"})},
			wantErr: "invalid class",
		},
		{
			name: "cache",
			mutate: func(c *config.Config) {
				c.LinkCache = &config.LinkCacheConfig{Enabled: true, Type: "memcached"}
			},
			wantErr: "link cache",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := testConfig()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			_, err := Build(cfg, tt.opts...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := Build(nil)
	require.Error(t, err)
}

func TestBuild_LinkCache(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.LinkCache = &config.LinkCacheConfig{Enabled: true}
	cfg.ApplyDefaults()

	var built cache.Config
	snapshot, err := Build(cfg, func(b *builder) {
		b.cacheLoader = func(cc cache.Config, logger observability.Logger) (cache.Cache, error) {
			built = cc
			return cache.New(cc, logger)
		}
	})
	require.NoError(t, err)
	defer func() { _ = snapshot.Close() }()

	assert.Equal(t, config.CacheTypeMemory, built.Type)
	assert.Equal(t, config.DefaultLinkCacheTTL, built.TTL)

	for i := 0; i < 2; i++ {
		link, err := snapshot.Router.Link(context.Background(), "post", "x")
		require.NoError(t, err)
		assert.Equal(t, "/posts/X", link)
	}
}

func TestBuild_HandlerFuncAndHookFunc(t *testing.T) {
	t.Parallel()

	tr := &trace{}
	cfg := testConfig()
	cfg.Hooks = append(cfg.Hooks, config.HookConfig{Stage: "finish", Pattern: "ping", Targets: []string{"count"}})

	snapshot, err := Build(cfg,
		WithHandlerFunc("/ping", "ping", func(context.Context, *router.Call) error {
			tr.add("ping")
			return nil
		}),
		WithHookFunc("count", func(context.Context, *router.Call, error) error {
			tr.add("count")
			return nil
		}),
	)
	require.NoError(t, err)

	outcome, err := snapshot.Router.Serve(context.Background(), router.Request{Path: "/ping"})
	require.NoError(t, err)
	assert.Equal(t, "ping", outcome.Identity)
	assert.Equal(t, []string{"ping", "count"}, tr.get())
}

func TestBuild_ClassLoader(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Routes = []config.RouteConfig{{Map: "/:class/:method"}}
	cfg.Authorize = []string{"*"}

	snapshot, err := Build(cfg, WithClassLoader(func(name string) (*registry.Class, bool) {
		if !strings.HasPrefix(name, "Echo") {
			return nil, false
		}
		return &registry.Class{Fallback: func(_ context.Context, _ any, call *router.Call) error {
			call.Data["echo"] = call.Identity
			return nil
		}}, true
	}))
	require.NoError(t, err)

	outcome, err := snapshot.Router.Serve(context.Background(), router.Request{Path: "/echo-test/run"})
	require.NoError(t, err)
	assert.Equal(t, "EchoTest::run", outcome.Data["echo"])

	outcome, err = snapshot.Router.Serve(context.Background(), router.Request{Path: "/other/run"})
	require.NoError(t, err)
	assert.Equal(t, router.StatusNotFound, outcome.Status)
}

func TestParamFormatter(t *testing.T) {
	t.Parallel()

	snapshot, err := Build(testConfig())
	require.NoError(t, err)
	inflector := snapshot.Router.Inflector()

	tests := []struct {
		format string
		max    int
		input  string
		want   string
	}{
		{format: config.FormatSlug, input: "Hello World", want: "hello-world"},
		{format: config.FormatQuery, input: "a b&c", want: "a+b%26c"},
		{format: config.FormatPath, input: "a b/c", want: "a%20b%2Fc"},
		{format: config.FormatLower, input: "AbC", want: "abc"},
		{format: config.FormatUpper, input: "AbC", want: "ABC"},
		{format: config.FormatRaw, input: "a b/c", want: "a b/c"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			t.Parallel()

			fn, err := paramFormatter(inflector, config.ParamFormatterConfig{Format: tt.format, MaxLength: tt.max})
			require.NoError(t, err)
			assert.Equal(t, tt.want, fn(tt.input))
		})
	}

	_, err = paramFormatter(inflector, config.ParamFormatterConfig{Format: "other"})
	require.Error(t, err)
}

func TestHolder(t *testing.T) {
	t.Parallel()

	tr := &trace{}
	h, err := NewHolder(testConfig(), observability.NopLogger(), WithClasses(testClasses(tr)...))
	require.NoError(t, err)
	defer func() { _ = h.Close() }()

	first := h.Router()
	assert.Equal(t, 3, first.Len())

	next := testConfig()
	next.Routes = next.Routes[:1]
	require.NoError(t, h.Check(next))
	require.NoError(t, h.Reload(next))
	assert.NotSame(t, first, h.Router())
	assert.Equal(t, 1, h.Router().Len())
	assert.Same(t, next, h.Snapshot().Config)

	broken := testConfig()
	broken.Routes = append(broken.Routes, config.RouteConfig{Map: "bogus /x"})
	err = h.Reload(broken)
	require.Error(t, err)
	assert.Equal(t, 1, h.Router().Len(), "failed reload keeps the active router")
	require.Error(t, h.Check(broken))

	var regErr *router.RegistrationError
	assert.True(t, errors.As(err, &regErr))
}
