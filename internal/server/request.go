package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/avaroute/internal/negotiation"
	"github.com/vyrodovalexey/avaroute/internal/router"
)

// EscapedFragmentParam replaces the request path when fragment routing is enabled.
const EscapedFragmentParam = "_escaped_fragment_"

// Simplified headers matched by route conditions.
const (
	HeaderRequestMethod  = "request-method"
	HeaderAcceptType     = "accept-type"
	HeaderAcceptLanguage = "accept-language"
)

// BuildRequest converts an HTTP request into a router request. Every
// header is exposed under its lower case name; Accept and Accept-Language
// are reduced to their best value.
func BuildRequest(req *http.Request, escapedFragment bool) router.Request {
	headers := make(map[string]string, len(req.Header)+3)
	for name, values := range req.Header {
		if len(values) > 0 {
			headers[strings.ToLower(name)] = values[0]
		}
	}
	headers[HeaderRequestMethod] = req.Method
	if accept := req.Header.Get("Accept"); accept != "" {
		headers[HeaderAcceptType] = negotiation.Best(accept)
	}
	if lang := req.Header.Get("Accept-Language"); lang != "" {
		headers[HeaderAcceptLanguage] = negotiation.Best(lang)
	}

	values := req.URL.Query()
	path := req.URL.Path
	rawQuery := req.URL.RawQuery

	if escapedFragment && values.Has(EscapedFragmentParam) {
		path = values.Get(EscapedFragmentParam)
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		values.Del(EscapedFragmentParam)
		rawQuery = values.Encode()
	}

	query := make(map[string]string, len(values))
	for name := range values {
		query[name] = values.Get(name)
	}

	return router.Request{
		Path:     path,
		Headers:  headers,
		Query:    query,
		RawQuery: rawQuery,
	}
}

type ginContextKey struct{}

// GinContext returns the gin context of the request served by ctx.
func GinContext(ctx context.Context) (*gin.Context, bool) {
	c, ok := ctx.Value(ginContextKey{}).(*gin.Context)
	return c, ok
}
