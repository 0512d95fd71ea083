package router

import (
	"strings"

	"github.com/vyrodovalexey/avaroute/internal/pattern"
)

// Route is a registered mapping from a URL pattern and header conditions
// to a handler identity template or a closure.
type Route struct {
	// Map is the route map the route was registered with.
	Map string

	// URL is the compiled path pattern.
	URL *pattern.URL

	// Headers are the required header values keyed by lower-cased name.
	Headers map[string]string

	// Callback is the compiled handler identity template.
	Callback *pattern.Callback

	// Handle is set for closure routes.
	Handle HandleID

	// Data is copied into the call data on dispatch.
	Data Data
}

// IsClosure reports whether the route dispatches a closure.
func (r *Route) IsClosure() bool {
	return r.Handle != 0
}

// matchHeaders reports whether every header condition is satisfied.
// Values compare case-insensitively; a missing header fails the match.
func (r *Route) matchHeaders(headers map[string]string) bool {
	for name, want := range r.Headers {
		got, ok := headers[name]
		if !ok || !strings.EqualFold(got, want) {
			return false
		}
	}
	return true
}
