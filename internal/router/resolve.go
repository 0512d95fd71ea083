package router

import (
	"strings"

	"github.com/vyrodovalexey/avaroute/internal/observability"
	"github.com/vyrodovalexey/avaroute/internal/pattern"
)

// Request describes an incoming request to the router.
type Request struct {
	// Path is the decoded request path.
	Path string

	// Headers are matched against route conditions. Names are
	// case-insensitive.
	Headers map[string]string

	// Query seeds the parameters of a match; path captures override it.
	Query map[string]string

	// RawQuery is kept on redirects.
	RawQuery string
}

// Resolution is the result of a successful Resolve.
type Resolution struct {
	// Identity is the built handler identity, or the closure name.
	Identity string

	// Handle is set when the identity is a closure.
	Handle HandleID

	// Params are the path and query parameters without the reserved
	// identity parameters.
	Params map[string]string

	// Data is a copy of the route data.
	Data Data

	// Route is the matched route and Index its position.
	Route *Route
	Index int

	// Linkable is false for prefix and closure routes.
	Linkable bool
}

// Resolve returns the first route at or after offset matching req and the
// index of that route. Resolution resumes past a rejected route when
// called again with index+1. When nothing matches it returns nil and the
// number of routes, so later calls with that offset stay exhausted.
func (r *Router) Resolve(req Request, offset int) (*Resolution, int) {
	routes := r.Routes()
	if offset < 0 {
		offset = 0
	}

	headers := normalizeHeaders(req.Headers)

	for i := offset; i < len(routes); i++ {
		route := routes[i]

		if !route.matchHeaders(headers) {
			continue
		}

		captured, ok := route.URL.Match(req.Path)
		if !ok {
			continue
		}

		params := make(map[string]string, len(req.Query)+len(captured))
		for k, v := range req.Query {
			params[k] = v
		}
		for k, v := range captured {
			params[k] = v
		}
		for _, alias := range route.URL.Aliases {
			if v, ok := params[alias.From]; ok {
				delete(params, alias.From)
				params[alias.To] = v
			}
		}

		res := &Resolution{
			Params:   params,
			Data:     route.Data.Clone(),
			Route:    route,
			Index:    i,
			Linkable: route.URL.Linkable,
		}

		if route.IsClosure() {
			res.Handle = route.Handle
			res.Identity = r.handleName(route.Handle)
			res.Linkable = false
			r.metrics.resolutions.WithLabelValues("closure").Inc()
			return res, i
		}

		identity := r.buildIdentity(route.Callback, params)
		if _, ok := route.Callback.Match(identity); !ok || strings.Contains(identity, pattern.Wildcard) {
			r.logger.Debug("route rejected built identity",
				observability.String("map", route.Map),
				observability.String("identity", identity),
			)
			continue
		}

		res.Identity = identity
		if handle, ok := r.closure(identity); ok {
			res.Handle = handle
		}

		r.metrics.resolutions.WithLabelValues("callback").Inc()
		return res, i
	}

	r.metrics.resolutions.WithLabelValues("miss").Inc()
	return nil, len(routes)
}

// buildIdentity fills the wildcard segments of cb from the reserved
// parameters and removes those parameters.
func (r *Router) buildIdentity(cb *pattern.Callback, params map[string]string) string {
	fill := func(segment Segment, current string) string {
		if current != pattern.Wildcard {
			return current
		}
		name := r.paramNames[segment]
		value, ok := params[name]
		if !ok {
			return current
		}
		delete(params, name)
		return r.segmentFormats[segment](value)
	}

	namespace := fill(SegmentNamespace, cb.Namespace)
	class := fill(SegmentClass, cb.Class)
	method := fill(SegmentMethod, cb.Method)

	return pattern.JoinIdentity(namespace, class, method, r.separator)
}

func (r *Router) handleName(handle HandleID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handleNames[handle]
}
