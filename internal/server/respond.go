package server

import (
	"fmt"
	"html"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/avaroute/internal/negotiation"
	"github.com/vyrodovalexey/avaroute/internal/router"
)

var statusCodes = map[router.Status]int{
	router.StatusDispatched:    http.StatusOK,
	router.StatusNotFound:      http.StatusNotFound,
	router.StatusForbidden:     http.StatusForbidden,
	router.StatusNotAuthorized: http.StatusUnauthorized,
}

var defaultPageHints = map[int]string{
	http.StatusNotFound:     "No route matched the requested path.",
	http.StatusForbidden:    "A route was found, however access to it is forbidden.",
	http.StatusUnauthorized: "A route was found, however it requires authorization.",
}

var pageTypes = negotiation.NewNegotiator(
	[]string{"application/json", "text/html", "text/plain"},
	negotiation.WithDefaultType("application/json"),
)

// StatusCode returns the HTTP status of an outcome.
func StatusCode(outcome *router.Outcome) int {
	if outcome.Status == router.StatusRedirect {
		if outcome.Permanent {
			return http.StatusMovedPermanently
		}
		return http.StatusFound
	}
	if code, ok := statusCodes[outcome.Status]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// respond writes outcome unless a handler already wrote the response.
func respond(c *gin.Context, outcome *router.Outcome) {
	code := StatusCode(outcome)

	if outcome.Status == router.StatusRedirect {
		c.Redirect(code, outcome.Location)
		return
	}
	if c.Writer.Written() {
		return
	}
	if !outcome.Handled {
		defaultPage(c, code)
		return
	}

	body := outcome.Data
	if body == nil {
		body = router.Data{}
	}
	c.JSON(code, body)
}

// defaultPage renders a minimal page for a status no handler served.
func defaultPage(c *gin.Context, code int) {
	title := fmt.Sprintf("%d %s", code, http.StatusText(code))
	hint := defaultPageHints[code]

	switch pageTypes.Negotiate(c.GetHeader("Accept")) {
	case "text/html":
		c.Data(code, "text/html; charset=utf-8", []byte(fmt.Sprintf(
			"<!DOCTYPE html>\n<html><head><title>%[1]s</title></head><body><h1>%[1]s</h1><p>%[2]s</p></body></html>\n",
			html.EscapeString(title), html.EscapeString(hint),
		)))
	case "text/plain":
		c.String(code, "%s\n%s\n", title, hint)
	default:
		c.JSON(code, gin.H{"error": http.StatusText(code), "message": hint})
	}
}
