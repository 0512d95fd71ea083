// Package router provides request resolution, staged dispatch and
// reverse routing over an ordered route table.
//
// A route maps a route map, a whitespace separated list of header
// conditions and a path pattern, to a handler identity template of the
// form "Namespace\Class::method" or to a closure. Wildcard identity
// segments are filled from the reserved path parameters namespace, class
// and method, so a single route such as
//
//	r.Add("/:class/:id/:method", "*::*")
//
// serves /widgets/42/show as Widgets::show with the parameter id=42.
//
// # Features
//
//   - Ordered first-match resolution, resumable from an offset
//   - Case-insensitive header conditions and shorthand tokens
//   - Closure routes addressable by name
//   - Dispatch lifecycle with init, before, after and finish hooks
//   - Error recovery through catch hooks walking an error kind chain
//   - Control signals: continue, not-found, forbidden, not-authorized
//   - Reverse routing with candidate ranking and optional link cache
//
// # Usage
//
//	r := router.New(router.WithRegistry(reg))
//	r.MustAdd("get /:class/:id/:method", "*::*")
//	_ = r.Hook("before", "Widgets::*", "%c::authorize")
//
//	outcome, err := r.Serve(ctx, router.Request{
//	    Path:    "/widgets/42/show",
//	    Headers: map[string]string{"request-method": "GET"},
//	})
//
//	link, err := r.Link(ctx, "Widgets::show id", 42)
//
// The router performs no I/O. Handler classes are created and invoked by
// a Registry.
package router
