package router

import (
	"context"
	"strings"

	"github.com/vyrodovalexey/avaroute/internal/pattern"
)

// Format replaces placeholders in format with parts of the identity of the
// call active in ctx:
//
//	%n  namespace
//	%N  outermost namespace, or the class without a namespace
//	%c  namespace qualified class
//	%C  class
//	%m  identity (class::method)
//	%M  method
//	%p  URL path of the identity, e.g. "admin/users/show-all"
//	%P  URL path of the class, e.g. "admin/users"
//
// With urlize the identity parts are converted to URL form. Without an
// active call format is returned unchanged.
func (r *Router) Format(ctx context.Context, format string, urlize bool) string {
	call := ActiveCall(ctx)
	if call == nil || !strings.Contains(format, "%") {
		return format
	}

	namespace, class, method := pattern.SplitIdentity(call.Identity, r.separator)
	fullClass := pattern.JoinClass(namespace, class, r.separator)
	parent, _, _ := strings.Cut(fullClass, r.separator)

	classPath := r.urlPath(namespace, class)
	path := r.urlPath(namespace, class, method)

	text := func(s string) string {
		if urlize {
			return r.urlizeIdentityPart(s)
		}
		return s
	}

	replacer := strings.NewReplacer(
		"%n", text(namespace),
		"%N", text(parent),
		"%c", text(fullClass),
		"%C", text(class),
		"%m", text(call.Identity),
		"%M", text(method),
		"%p", path,
		"%P", classPath,
	)
	return replacer.Replace(format)
}

// urlPath converts identity parts to a slash separated URL path.
func (r *Router) urlPath(namespace string, parts ...string) string {
	var segments []string
	if namespace != "" {
		for _, ns := range strings.Split(namespace, r.separator) {
			segments = append(segments, r.inflector.Urlize(ns))
		}
	}
	for _, part := range parts {
		if part != "" {
			segments = append(segments, r.inflector.Urlize(part))
		}
	}
	return strings.Join(segments, "/")
}

// urlizeIdentityPart urlizes every namespace segment of s, keeping the
// separators as "/".
func (r *Router) urlizeIdentityPart(s string) string {
	if s == "" {
		return s
	}
	classPart, method, hasMethod := strings.Cut(s, "::")
	out := r.urlPath(classPart)
	if hasMethod {
		out += "/" + r.inflector.Urlize(method)
	}
	return out
}
