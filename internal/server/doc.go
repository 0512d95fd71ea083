// Package server hosts a router behind a gin HTTP engine.
//
// Every request that is not a health or metrics probe is converted into a
// router.Request and passed to Serve. Handlers reach the gin context
// through GinContext and may write the response themselves; otherwise the
// call data is rendered as JSON. Redirects and terminal signals are mapped
// to their HTTP status codes, and a default page is rendered when no
// fallback handled a signal.
package server
