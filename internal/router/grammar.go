package router

import (
	"fmt"
	"regexp"
	"strings"
)

var conditionRegex = regexp.MustCompile(`\[([^\]=]+)=([^\]]+)\]`)

// parseRouteMap splits a route map into header conditions and a path.
// Tokens are separated by whitespace and are either a shorthand from
// tokens, one or more bracketed conditions, or a path starting with "/"
// or "*".
func parseRouteMap(routeMap string, tokens map[string]string) (map[string]string, string, error) {
	headers := make(map[string]string)
	path := ""

	fields := strings.Fields(routeMap)
	if len(fields) == 0 {
		return nil, "", fmt.Errorf("%w: empty route map", ErrInvalidRouteMap)
	}

	for _, field := range fields {
		if expanded, ok := tokens[strings.ToLower(field)]; ok {
			field = expanded
		}

		switch {
		case strings.HasPrefix(field, "/") || strings.HasPrefix(field, "*"):
			if path != "" {
				return nil, "", fmt.Errorf("%w: more than one path in %q", ErrInvalidRouteMap, routeMap)
			}
			path = field

		case strings.HasPrefix(field, "["):
			matches := conditionRegex.FindAllStringSubmatch(field, -1)
			if len(matches) == 0 {
				return nil, "", fmt.Errorf("%w: malformed condition %q", ErrInvalidRouteMap, field)
			}
			for _, m := range matches {
				headers[strings.ToLower(strings.TrimSpace(m[1]))] = strings.TrimSpace(m[2])
			}

		default:
			return nil, "", fmt.Errorf("%w: unknown token %q", ErrInvalidRouteMap, field)
		}
	}

	if path == "" {
		return nil, "", fmt.Errorf("%w: no path in %q", ErrInvalidRouteMap, routeMap)
	}

	return headers, path, nil
}

// normalizeHeaders lower-cases header names.
func normalizeHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for name, value := range headers {
		out[strings.ToLower(name)] = value
	}
	return out
}
