package bootstrap

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/vyrodovalexey/avaroute/internal/cache"
	"github.com/vyrodovalexey/avaroute/internal/config"
	"github.com/vyrodovalexey/avaroute/internal/inflect"
	"github.com/vyrodovalexey/avaroute/internal/observability"
	"github.com/vyrodovalexey/avaroute/internal/pattern"
	"github.com/vyrodovalexey/avaroute/internal/registry"
	"github.com/vyrodovalexey/avaroute/internal/router"
)

// Snapshot is a router built from one configuration.
type Snapshot struct {
	Config   *config.Config
	Router   *router.Router
	Registry *registry.Registry
	Cache    cache.Cache
}

// Close releases the link cache.
func (s *Snapshot) Close() error {
	if s == nil || s.Cache == nil {
		return nil
	}
	return s.Cache.Close()
}

// Option configures Build.
type Option func(*builder)

type builder struct {
	logger      observability.Logger
	classes     []*registry.Class
	loader      registry.Loader
	hookFuncs   map[string]router.HookFunc
	handlers    []namedHandler
	routeOpts   []router.Option
	cacheLoader func(cache.Config, observability.Logger) (cache.Cache, error)
}

type namedHandler struct {
	routeMap string
	name     string
	fn       router.HandlerFunc
}

// WithLogger sets the logger passed to the router, registry and cache.
func WithLogger(logger observability.Logger) Option {
	return func(b *builder) {
		b.logger = logger
	}
}

// WithClasses registers handler classes in every built registry.
func WithClasses(classes ...*registry.Class) Option {
	return func(b *builder) {
		b.classes = append(b.classes, classes...)
	}
}

// WithClassLoader sets the loader consulted for classes not registered.
func WithClassLoader(loader registry.Loader) Option {
	return func(b *builder) {
		b.loader = loader
	}
}

// WithHookFunc makes fn available to hooks as the target name.
func WithHookFunc(name string, fn router.HookFunc) Option {
	return func(b *builder) {
		b.hookFuncs[name] = fn
	}
}

// WithHandlerFunc adds a closure route ahead of the configured routes.
func WithHandlerFunc(routeMap, name string, fn router.HandlerFunc) Option {
	return func(b *builder) {
		b.handlers = append(b.handlers, namedHandler{routeMap: routeMap, name: name, fn: fn})
	}
}

// WithRouterOptions appends router options applied after the configured ones.
func WithRouterOptions(opts ...router.Option) Option {
	return func(b *builder) {
		b.routeOpts = append(b.routeOpts, opts...)
	}
}

// Build creates a Snapshot from cfg. cfg must have defaults applied.
func Build(cfg *config.Config, opts ...Option) (*Snapshot, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: nil configuration")
	}

	b := &builder{
		logger:      observability.NopLogger(),
		hookFuncs:   make(map[string]router.HookFunc),
		cacheLoader: cache.New,
	}
	for _, opt := range opts {
		opt(b)
	}

	linkCache, err := b.linkCache(cfg.LinkCache)
	if err != nil {
		return nil, err
	}

	snapshot, err := b.build(cfg, linkCache)
	if err != nil {
		_ = linkCache.Close()
		return nil, err
	}
	return snapshot, nil
}

func (b *builder) build(cfg *config.Config, linkCache cache.Cache) (*Snapshot, error) {
	rc := &cfg.Router
	inflector := inflect.New(rc.Delimiter)

	separator := pattern.DefaultSeparator
	switch {
	case rc.LegacyNamespacing:
		separator = pattern.LegacySeparator
	case rc.Separator != "":
		separator = rc.Separator
	}

	reg := registry.New(
		registry.WithSeparator(separator),
		registry.WithLoader(b.loader),
		registry.WithLogger(b.logger),
	)
	for _, class := range b.classes {
		if err := reg.Register(class); err != nil {
			return nil, err
		}
	}
	for name, fn := range b.hookFuncs {
		reg.RegisterFunc(name, fn)
	}
	reg.Authorize(cfg.Authorize...)

	opts := []router.Option{
		router.WithRegistry(reg),
		router.WithLogger(b.logger),
		router.WithInflector(inflector),
		router.WithCallbackParamName(router.SegmentNamespace, rc.CallbackParams.Namespace),
		router.WithCallbackParamName(router.SegmentClass, rc.CallbackParams.Class),
		router.WithCallbackParamName(router.SegmentMethod, rc.CallbackParams.Method),
	}
	if rc.LegacyNamespacing {
		opts = append(opts, router.WithLegacyNamespacing())
	} else {
		opts = append(opts, router.WithSeparator(separator))
	}
	if !rc.RedirectsTrailingSlash() {
		opts = append(opts, router.WithoutTrailingSlashRedirect())
	}
	switch rc.CanonicalRedirect {
	case config.RedirectTemporary:
		opts = append(opts, router.WithCanonicalRedirect(false))
	case config.RedirectPermanent:
		opts = append(opts, router.WithCanonicalRedirect(true))
	}
	if cfg.LinkCache != nil && cfg.LinkCache.Enabled {
		opts = append(opts, router.WithLinkCache(linkCache, cfg.LinkCache.TTL.Duration()))
	}
	opts = append(opts, b.routeOpts...)

	r := router.New(opts...)

	for token, conditions := range rc.Tokens {
		r.AddToken(token, conditions)
	}

	for _, h := range b.handlers {
		if err := r.AddFunc(h.routeMap, h.name, h.fn); err != nil {
			return nil, fmt.Errorf("handler %q: %w", h.name, err)
		}
	}

	for i, route := range cfg.Routes {
		var routeOpts []router.RouteOption
		if len(route.Data) > 0 {
			routeOpts = append(routeOpts, router.WithData(route.Data))
		}
		if err := r.Add(route.Map, route.Callback, routeOpts...); err != nil {
			return nil, fmt.Errorf("routes[%d]: %w", i, err)
		}
	}

	for alias, key := range cfg.Aliases {
		r.Alias(alias, key)
	}

	if rc.Fallbacks.NotFound != "" {
		r.SetNotFound(rc.Fallbacks.NotFound)
	}
	if rc.Fallbacks.Forbidden != "" {
		r.SetForbidden(rc.Fallbacks.Forbidden)
	}
	if rc.Fallbacks.NotAuthorized != "" {
		r.SetNotAuthorized(rc.Fallbacks.NotAuthorized)
	}

	for i, hook := range cfg.Hooks {
		if err := r.Hook(hook.Stage, hook.Pattern, hook.Targets...); err != nil {
			return nil, fmt.Errorf("hooks[%d]: %w", i, err)
		}
	}

	for i, pf := range cfg.ParamFormatters {
		fn, err := paramFormatter(inflector, pf)
		if err != nil {
			return nil, fmt.Errorf("paramFormatters[%d]: %w", i, err)
		}
		r.SetParamFormatter(pf.Class, pf.Param, fn)
	}

	b.logger.Info("router built",
		observability.Int("routes", r.Len()),
		observability.Int("hooks", len(cfg.Hooks)),
		observability.String("separator", separator),
		observability.Bool("link_cache", cfg.LinkCache != nil && cfg.LinkCache.Enabled),
	)

	return &Snapshot{Config: cfg, Router: r, Registry: reg, Cache: linkCache}, nil
}

func (b *builder) linkCache(lc *config.LinkCacheConfig) (cache.Cache, error) {
	if lc == nil || !lc.Enabled {
		return cache.Disabled(), nil
	}

	cc := cache.Config{
		Type:       lc.Type,
		TTL:        lc.TTL.Duration(),
		MaxEntries: lc.MaxEntries,
	}
	if lc.Redis != nil {
		cc.Redis = cache.RedisConfig{
			URL:              lc.Redis.URL,
			MasterName:       lc.Redis.MasterName,
			SentinelAddrs:    lc.Redis.SentinelAddrs,
			SentinelPassword: lc.Redis.SentinelPassword,
			Password:         lc.Redis.Password,
			DB:               lc.Redis.DB,
			KeyPrefix:        lc.Redis.KeyPrefix,
			PoolSize:         lc.Redis.PoolSize,
			ConnectTimeout:   lc.Redis.ConnectTimeout.Duration(),
			ReadTimeout:      lc.Redis.ReadTimeout.Duration(),
			WriteTimeout:     lc.Redis.WriteTimeout.Duration(),
			TTLJitter:        lc.Redis.TTLJitter,
			HashKeys:         lc.Redis.HashKeys,
			BreakerThreshold: lc.Redis.BreakerThreshold,
			BreakerTimeout:   lc.Redis.BreakerTimeout.Duration(),
		}
	}

	c, err := b.cacheLoader(cc, b.logger)
	if err != nil {
		return nil, fmt.Errorf("link cache: %w", err)
	}
	cache.GetCacheMetrics().Init()
	return c, nil
}

func paramFormatter(inflector *inflect.Inflector, pf config.ParamFormatterConfig) (router.ParamFormatter, error) {
	switch pf.Format {
	case config.FormatSlug:
		maxLength := pf.MaxLength
		return func(s string) string { return inflector.MakeURLFriendly(s, maxLength) }, nil
	case config.FormatQuery:
		return url.QueryEscape, nil
	case config.FormatPath:
		return url.PathEscape, nil
	case config.FormatLower:
		return strings.ToLower, nil
	case config.FormatUpper:
		return strings.ToUpper, nil
	case config.FormatRaw:
		return func(s string) string { return s }, nil
	default:
		return nil, fmt.Errorf("unknown format %q", pf.Format)
	}
}
