package router

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strings"

	"github.com/agext/levenshtein"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/avaroute/internal/cache"
	"github.com/vyrodovalexey/avaroute/internal/observability"
	"github.com/vyrodovalexey/avaroute/internal/pattern"
)

// linkCandidate is a route able to render an identity, with its scores.
type linkCandidate struct {
	route  *Route
	params map[string]string

	// dist is the edit distance between the route's callback template and
	// the requested identity.
	dist int
	// sect counts route parameters that have a value, diff those that do not.
	sect int
	diff int
}

// replaces reports whether c is selected over best. The comparison is
// deliberately not a total order; see unranked.
func (c *linkCandidate) replaces(best *linkCandidate) bool {
	if best == nil {
		return true
	}
	return (best.dist > c.dist && best.diff >= c.diff) ||
		(best.dist >= c.dist && best.sect < c.sect) ||
		(best.dist >= c.dist && best.sect <= c.sect && best.diff > c.diff)
}

// unranked reports whether c was rejected although it improves on best
// in some score.
func (c *linkCandidate) unranked(best *linkCandidate) bool {
	return c.dist < best.dist || c.sect > best.sect || c.diff < best.diff
}

// Link builds the URL of the route serving the identity in key. key is an
// identity, optionally formatted against the active call, followed by the
// names of the parameters supplied in values:
//
//	r.Link(ctx, "Widgets::show id", 42)
//	r.Link(ctx, "Widgets::show id:ID", widget)
//	r.Link(ctx, "Widgets::show", map[string]string{"id": "42"})
//
// key may also be an alias registered with Alias or a closure name.
func (r *Router) Link(ctx context.Context, key string, values ...any) (string, error) {
	ctx, span := r.tracer.Start(ctx, "router.Link",
		trace.WithAttributes(attribute.String("router.link_key", key)),
	)
	defer span.End()

	key = strings.TrimSpace(key)
	r.mu.RLock()
	if aliased, ok := r.aliases[key]; ok {
		key = aliased
	}
	generation := r.generation
	r.mu.RUnlock()

	fields := strings.Fields(key)
	if len(fields) == 0 {
		return "", &LinkError{Key: key, Cause: ErrNoRoute}
	}
	identity := r.Format(ctx, fields[0], false)
	supplied := extractValues(parseLinkParams(fields[1:]), values)

	var cacheKey string
	if r.linkCache != nil {
		cacheKey = cache.LinkKey(r.cacheScope, generation, identity, supplied)
		if cached, err := r.linkCache.Get(ctx, cacheKey); err == nil {
			r.metrics.links.WithLabelValues("cached").Inc()
			return string(cached), nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			r.logger.Debug("link cache read failed", observability.Error(err))
		}
	}

	best := r.bestCandidate(identity, supplied)
	if best == nil {
		r.metrics.links.WithLabelValues("no_route").Inc()
		return "", &LinkError{Key: key, Cause: ErrNoRoute}
	}

	link, err := r.render(best)
	if err != nil {
		r.metrics.links.WithLabelValues("missing_params").Inc()
		var linkErr *LinkError
		if errors.As(err, &linkErr) {
			linkErr.Key = key
		}
		return "", err
	}

	r.metrics.links.WithLabelValues("built").Inc()

	if r.linkCache != nil {
		if err := r.linkCache.Set(ctx, cacheKey, []byte(link), r.linkCacheTTL); err != nil {
			r.logger.Debug("link cache write failed", observability.Error(err))
		}
	}

	return link, nil
}

// MustLink is like Link but panics on error.
func (r *Router) MustLink(ctx context.Context, key string, values ...any) string {
	link, err := r.Link(ctx, key, values...)
	if err != nil {
		panic(err)
	}
	return link
}

// bestCandidate ranks the linkable routes whose callback matches identity.
func (r *Router) bestCandidate(identity string, supplied map[string]string) *linkCandidate {
	var best *linkCandidate

	for _, route := range r.Routes() {
		if !route.URL.Linkable {
			continue
		}
		caps, ok := route.Callback.Match(identity)
		if !ok {
			continue
		}

		params := make(map[string]string, len(supplied)+3)
		for k, v := range supplied {
			params[k] = v
		}
		r.addCallbackParams(params, caps)

		c := &linkCandidate{
			route:  route,
			params: params,
			dist:   levenshtein.Distance(route.Callback.Template, identity, nil),
		}
		for _, name := range route.URL.Params.Names() {
			if _, ok := params[name]; ok {
				c.sect++
			} else {
				c.diff++
			}
		}

		if c.replaces(best) {
			best = c
			continue
		}
		if c.unranked(best) {
			r.metrics.linkUnranked.Inc()
			r.logger.Warn("link candidate rejected by ranking",
				observability.String("identity", identity),
				observability.String("selected", best.route.Map),
				observability.String("rejected", route.Map),
				observability.Int("selected_dist", best.dist),
				observability.Int("rejected_dist", c.dist),
				observability.Int("selected_sect", best.sect),
				observability.Int("rejected_sect", c.sect),
				observability.Int("selected_diff", best.diff),
				observability.Int("rejected_diff", c.diff),
			)
		}
	}

	return best
}

// addCallbackParams stores the urlized identity segments under the
// reserved parameter names.
func (r *Router) addCallbackParams(params map[string]string, caps pattern.Captures) {
	if caps.Namespace != "" {
		params[r.paramNames[SegmentNamespace]] = r.urlPath(caps.Namespace)
	}
	if caps.Class != "" {
		params[r.paramNames[SegmentClass]] = r.inflector.Urlize(caps.Class)
	}
	if caps.Method != "" {
		params[r.paramNames[SegmentMethod]] = r.inflector.Urlize(caps.Method)
	}
}

// render builds the URL of the selected candidate.
func (r *Router) render(c *linkCandidate) (string, error) {
	route := c.route
	params := c.params

	if route.IsClosure() {
		delete(params, r.paramNames[SegmentMethod])
	}

	formatted := make(map[string]string, route.URL.Params.Len())
	var missing []string
	class := route.Callback.FullClass()
	for _, name := range route.URL.Params.Names() {
		value, ok := params[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		formatted[name] = r.paramFormatter(class, name)(value)
		delete(params, name)
	}
	if len(missing) > 0 {
		return "", &LinkError{Missing: missing, Cause: ErrMissingParams}
	}

	path, _ := route.URL.Render(formatted)

	for name, value := range params {
		if from, ok := route.URL.AliasFor(name); ok && from != name {
			delete(params, name)
			params[from] = value
		}
	}

	fragment := ""
	if route.URL.Fragment != "" {
		escaped := make(map[string]string, route.URL.FragmentParams.Len())
		for _, name := range route.URL.FragmentParams.Names() {
			if value, ok := params[name]; ok {
				escaped[name] = url.QueryEscape(value)
			}
		}
		if rendered, ok := route.URL.RenderFragment(escaped); ok {
			fragment = rendered
			for name := range escaped {
				delete(params, name)
			}
		}
	}

	for _, name := range r.paramNames {
		delete(params, name)
	}

	if len(params) > 0 {
		query := make(url.Values, len(params))
		names := make([]string, 0, len(params))
		for name := range params {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			query.Set(name, params[name])
		}
		path += "?" + query.Encode()
	}

	if fragment != "" {
		path += "#" + fragment
	}

	return path, nil
}

// paramFormatter returns the formatter for param of routes with class,
// most specific registration first.
func (r *Router) paramFormatter(class, param string) ParamFormatter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, key := range [][2]string{{class, param}, {class, "*"}, {"*", param}, {"*", "*"}} {
		if fn, ok := r.paramFormatters[key[0]][key[1]]; ok && fn != nil {
			return fn
		}
	}
	return url.PathEscape
}
