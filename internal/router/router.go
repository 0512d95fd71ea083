package router

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/avaroute/internal/cache"
	"github.com/vyrodovalexey/avaroute/internal/inflect"
	"github.com/vyrodovalexey/avaroute/internal/observability"
	"github.com/vyrodovalexey/avaroute/internal/pattern"
)

const tracerName = "github.com/vyrodovalexey/avaroute/internal/router"

// Segment identifies a part of a handler identity.
type Segment int

// Identity segments.
const (
	SegmentNamespace Segment = iota
	SegmentClass
	SegmentMethod
)

// String returns the default parameter name of the segment.
func (s Segment) String() string {
	switch s {
	case SegmentNamespace:
		return "namespace"
	case SegmentClass:
		return "class"
	case SegmentMethod:
		return "method"
	default:
		return fmt.Sprintf("segment(%d)", int(s))
	}
}

// ParamFormatter converts a parameter value into its URL form.
type ParamFormatter func(value string) string

// HandleID identifies a closure stored by AddFunc.
type HandleID int

var closureNameRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// Router owns a route table, global hooks and the configuration used to
// resolve, dispatch and link. It is safe for concurrent use; registration
// is expected to happen before serving.
type Router struct {
	mu sync.RWMutex

	routes  []*Route
	hooks   []*Hook
	aliases map[string]string
	tokens  map[string]string

	handles     map[HandleID]HandlerFunc
	handleNames map[HandleID]string
	names       map[string]HandleID
	nextHandle  HandleID

	fallbacks       map[*Kind]string
	paramFormatters map[string]map[string]ParamFormatter

	registry  Registry
	inflector *inflect.Inflector
	logger    observability.Logger
	tracer    trace.Tracer
	metrics   *routerMetrics

	separator       string
	identityPattern *regexp.Regexp
	paramNames      [3]string
	segmentFormats  [3]func(string) string

	trailingSlashRedirect bool
	canonicalRedirect     bool
	permanentRedirect     bool

	linkCache    cache.Cache
	linkCacheTTL time.Duration
	cacheScope   string
	generation   uint64
}

// Option is a functional option for configuring a Router.
type Option func(*Router)

// WithRegistry sets the handler registry.
func WithRegistry(registry Registry) Option {
	return func(r *Router) {
		r.registry = registry
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

// WithInflector replaces the casing helpers, e.g. to change the word delimiter.
func WithInflector(inflector *inflect.Inflector) Option {
	return func(r *Router) {
		r.inflector = inflector
	}
}

// WithSeparator sets the namespace separator.
func WithSeparator(sep string) Option {
	return func(r *Router) {
		r.separator = sep
	}
}

// WithLegacyNamespacing uses "_" as the namespace separator and formats
// namespace parameters as a single UpperCamelCase word.
func WithLegacyNamespacing() Option {
	return func(r *Router) {
		r.separator = pattern.LegacySeparator
		r.segmentFormats[SegmentNamespace] = func(s string) string {
			return r.inflector.UpperCamelize(s)
		}
	}
}

// WithCallbackParamName renames the parameter that fills a wildcard segment.
func WithCallbackParamName(segment Segment, name string) Option {
	return func(r *Router) {
		r.paramNames[segment] = name
	}
}

// WithCallbackFormatter sets the function turning a parameter value into
// an identity segment.
func WithCallbackFormatter(segment Segment, fn func(string) string) Option {
	return func(r *Router) {
		r.segmentFormats[segment] = fn
	}
}

// WithCanonicalRedirect makes Serve redirect requests to the URL Link
// renders for the resolved identity when the two differ.
func WithCanonicalRedirect(permanent bool) Option {
	return func(r *Router) {
		r.canonicalRedirect = true
		r.permanentRedirect = permanent
	}
}

// WithoutTrailingSlashRedirect serves paths with a trailing slash instead
// of redirecting them.
func WithoutTrailingSlashRedirect() Option {
	return func(r *Router) {
		r.trailingSlashRedirect = false
	}
}

// WithLinkCache memoizes rendered links.
func WithLinkCache(c cache.Cache, ttl time.Duration) Option {
	return func(r *Router) {
		r.linkCache = c
		r.linkCacheTTL = ttl
	}
}

// WithTracerProvider creates the Serve, Dispatch and Link spans with tp
// instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Router) {
		r.tracer = tp.Tracer(tracerName)
	}
}

// New creates a router.
func New(opts ...Option) *Router {
	r := &Router{
		aliases: make(map[string]string),
		tokens: map[string]string{
			"get":    "[request-method=get]",
			"post":   "[request-method=post]",
			"put":    "[request-method=put]",
			"delete": "[request-method=delete]",
			"html":   "[accept-type=text/html]",
			"json":   "[accept-type=application/json]",
			"xml":    "[accept-type=text/xml]",
		},
		handles:               make(map[HandleID]HandlerFunc),
		handleNames:           make(map[HandleID]string),
		names:                 make(map[string]HandleID),
		fallbacks:             make(map[*Kind]string),
		registry:              emptyRegistry{},
		inflector:             inflect.New(inflect.DefaultDelimiter),
		logger:                observability.NopLogger(),
		tracer:                otel.Tracer(tracerName),
		metrics:               getRouterMetrics(),
		separator:             pattern.DefaultSeparator,
		paramNames:            [3]string{"namespace", "class", "method"},
		trailingSlashRedirect: true,
		cacheScope:            uuid.NewString(),
	}
	r.segmentFormats = [3]func(string) string{
		func(s string) string { return r.inflector.FormatNamespace(s, r.separator) },
		func(s string) string { return r.inflector.UpperCamelize(s) },
		func(s string) string { return r.inflector.LowerCamelize(s) },
	}

	for _, opt := range opts {
		opt(r)
	}
	r.identityPattern = r.identityRegex()

	r.paramFormatters = map[string]map[string]ParamFormatter{
		"*": {
			"*":  func(s string) string { return r.inflector.MakeURLFriendly(s, 0) },
			"id": url.QueryEscape,
			r.paramNames[SegmentNamespace]: func(s string) string {
				return r.inflector.MakeURLFriendlyNamespace(s, r.separator)
			},
		},
	}

	return r
}

// Separator returns the namespace separator.
func (r *Router) Separator() string {
	return r.separator
}

// Inflector returns the casing helpers used by the router.
func (r *Router) Inflector() *inflect.Inflector {
	return r.inflector
}

// RouteOption configures a single route.
type RouteOption func(*Route)

// WithData attaches a payload copied into the call data of every dispatch
// of the route.
func WithData(data Data) RouteOption {
	return func(route *Route) {
		route.Data = data.Clone()
	}
}

// Add registers a route mapping routeMap to a handler identity template.
// The route maps "401", "403" and "404" set the fallback identities
// instead of adding a route.
func (r *Router) Add(routeMap, callback string, opts ...RouteOption) error {
	if strings.TrimSpace(callback) == "" {
		callback = "*" + r.separator + "*::*"
	}

	if kind, ok := fallbackMaps[strings.TrimSpace(routeMap)]; ok {
		r.SetFallback(kind, callback)
		return nil
	}

	cb, err := pattern.ParseCallback(callback, r.separator)
	if err != nil {
		return &RegistrationError{Map: routeMap, Callback: callback, Cause: err}
	}

	return r.addRoute(routeMap, callback, cb, nil, opts)
}

// MustAdd is like Add but panics on error.
func (r *Router) MustAdd(routeMap, callback string, opts ...RouteOption) {
	if err := r.Add(routeMap, callback, opts...); err != nil {
		panic(err)
	}
}

// AddFunc registers a closure route. The closure is addressable by name in
// links, hook patterns and fallbacks; an empty name is generated. The name
// is only registered once the route map compiles, and a name can be
// registered once.
func (r *Router) AddFunc(routeMap, name string, fn HandlerFunc, opts ...RouteOption) error {
	if name != "" && !closureNameRegex.MatchString(name) {
		return &RegistrationError{Map: routeMap, Callback: name, Cause: ErrInvalidName}
	}
	if fn == nil {
		return &RegistrationError{Map: routeMap, Callback: name, Cause: ErrNotInvokable}
	}

	if kind, ok := fallbackMaps[strings.TrimSpace(routeMap)]; ok {
		r.mu.Lock()
		registered, _, err := r.registerClosure(name, fn)
		r.mu.Unlock()
		name = registered
		if err != nil {
			return &RegistrationError{Map: routeMap, Callback: name, Cause: err}
		}
		r.SetFallback(kind, name)
		return nil
	}

	return r.addRoute(routeMap, name, nil, fn, opts)
}

// registerClosure stores fn under name, generating one when empty.
// Callers hold r.mu.
func (r *Router) registerClosure(name string, fn HandlerFunc) (string, HandleID, error) {
	if _, exists := r.names[name]; exists {
		return name, 0, ErrDuplicateName
	}
	r.nextHandle++
	handle := r.nextHandle
	if name == "" {
		name = fmt.Sprintf("closure-%d", handle)
	}
	r.handles[handle] = fn
	r.handleNames[handle] = name
	r.names[name] = handle
	return name, handle, nil
}

// addRoute compiles and appends a route. A non-nil fn makes it a closure
// route named callback; cb is then parsed from the registered name.
func (r *Router) addRoute(routeMap, callback string, cb *pattern.Callback, fn HandlerFunc, opts []RouteOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	headers, path, err := parseRouteMap(routeMap, r.tokens)
	if err != nil {
		return &RegistrationError{Map: routeMap, Callback: callback, Cause: err}
	}

	u, err := pattern.CompileURL(path)
	if err != nil {
		return &RegistrationError{Map: routeMap, Callback: callback, Cause: err}
	}

	var handle HandleID
	if fn != nil {
		if callback != "" {
			if cb, err = pattern.ParseCallback(callback, r.separator); err != nil {
				return &RegistrationError{Map: routeMap, Callback: callback, Cause: err}
			}
		}
		if callback, handle, err = r.registerClosure(callback, fn); err != nil {
			return &RegistrationError{Map: routeMap, Callback: callback, Cause: err}
		}
		if cb == nil {
			if cb, err = pattern.ParseCallback(callback, r.separator); err != nil {
				r.unregisterClosure(callback, handle)
				return &RegistrationError{Map: routeMap, Callback: callback, Cause: err}
			}
		}
	}

	route := &Route{
		Map:      routeMap,
		URL:      u,
		Headers:  headers,
		Callback: cb,
		Handle:   handle,
		Data:     Data{},
	}
	for _, opt := range opts {
		opt(route)
	}

	r.routes = append(r.routes, route)
	r.generation++

	r.logger.Debug("route registered",
		observability.String("map", routeMap),
		observability.String("callback", callback),
		observability.Int("index", len(r.routes)-1),
	)

	return nil
}

func (r *Router) unregisterClosure(name string, handle HandleID) {
	delete(r.handles, handle)
	delete(r.handleNames, handle)
	delete(r.names, name)
}

// Alias registers a short name for a link key.
func (r *Router) Alias(alias, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[alias] = key
	r.generation++
}

// AddToken registers a shorthand for header conditions, e.g.
// AddToken("ajax", "[x-requested-with=XMLHttpRequest]").
func (r *Router) AddToken(token, conditions string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[strings.ToLower(token)] = conditions
}

var fallbackMaps = map[string]*Kind{
	"401": KindNotAuthorized,
	"403": KindForbidden,
	"404": KindNotFound,
}

// SetFallback sets the identity or closure name dispatched when a
// terminal signal of kind ends Serve.
func (r *Router) SetFallback(kind *Kind, target string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks[kind] = target
}

// Fallback returns the fallback target for a signal kind.
func (r *Router) Fallback(kind *Kind) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fallbacks[kind]
}

// SetParamFormatter sets the formatter used by Link for param of routes
// whose callback class is class. Either may be "*" to match any.
func (r *Router) SetParamFormatter(class, param string, fn ParamFormatter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.paramFormatters[class] == nil {
		r.paramFormatters[class] = make(map[string]ParamFormatter)
	}
	r.paramFormatters[class][param] = fn
	r.generation++
}

// Routes returns the registered routes in match order.
func (r *Router) Routes() []*Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Route, len(r.routes))
	copy(out, r.routes)
	return out
}

// Len returns the number of registered routes.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.routes)
}

// Clear removes all routes, global hooks and closures.
func (r *Router) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.routes = nil
	r.hooks = nil
	r.handles = make(map[HandleID]HandlerFunc)
	r.handleNames = make(map[HandleID]string)
	r.names = make(map[string]HandleID)
	r.generation++
}

// closure returns the handle registered under name.
func (r *Router) closure(name string) (HandleID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.names[name]
	return h, ok
}

// isReservedParam reports whether name fills an identity segment.
func (r *Router) isReservedParam(name string) bool {
	for _, reserved := range r.paramNames {
		if reserved == name {
			return true
		}
	}
	return false
}
