// Package negotiation parses HTTP Accept-* headers.
package negotiation

import (
	"sort"
	"strconv"
	"strings"

	"github.com/vyrodovalexey/avaroute/internal/observability"
)

// Value is one entry of an Accept-* header.
type Value struct {
	Value   string
	Quality float64
}

// Parse splits an Accept-* header into its entries ordered by descending
// quality. Entries with equal quality keep their header order; entries
// without a q parameter have quality 1.
func Parse(header string) []Value {
	parts := strings.Split(header, ",")
	result := make([]Value, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		v := Value{Quality: 1.0}

		segments := strings.Split(part, ";")
		v.Value = strings.TrimSpace(segments[0])

		for _, segment := range segments[1:] {
			segment = strings.TrimSpace(segment)
			if qStr, ok := strings.CutPrefix(segment, "q="); ok {
				if q, err := strconv.ParseFloat(qStr, 64); err == nil {
					v.Quality = q
				}
			}
		}

		result = append(result, v)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Quality > result[j].Quality
	})

	return result
}

// Best returns the entry of an Accept-* header with the highest quality,
// or "" for an empty header.
func Best(header string) string {
	values := Parse(header)
	if len(values) == 0 {
		return ""
	}
	return values[0].Value
}

// Negotiator selects a response content type from a fixed set.
type Negotiator struct {
	logger         observability.Logger
	supportedTypes []string
	defaultType    string
}

// Option is a functional option for configuring the negotiator.
type Option func(*Negotiator)

// WithDefaultType sets the content type returned when nothing matches.
func WithDefaultType(contentType string) Option {
	return func(n *Negotiator) {
		n.defaultType = contentType
	}
}

// WithLogger sets the logger for the negotiator.
func WithLogger(logger observability.Logger) Option {
	return func(n *Negotiator) {
		n.logger = logger
	}
}

// NewNegotiator creates a negotiator for the supported content types. The
// first supported type is the default unless WithDefaultType is given.
func NewNegotiator(supportedTypes []string, opts ...Option) *Negotiator {
	n := &Negotiator{
		logger:         observability.NopLogger(),
		supportedTypes: supportedTypes,
	}
	if len(supportedTypes) > 0 {
		n.defaultType = supportedTypes[0]
	}

	for _, opt := range opts {
		opt(n)
	}

	return n
}

// Negotiate selects the best supported content type for an Accept header.
func (n *Negotiator) Negotiate(acceptHeader string) string {
	if acceptHeader == "" {
		return n.defaultType
	}

	for _, v := range Parse(acceptHeader) {
		if v.Quality <= 0 {
			continue
		}
		for _, supported := range n.supportedTypes {
			if matchMediaType(v.Value, supported) {
				n.logger.Debug("content type negotiated",
					observability.String("accept", acceptHeader),
					observability.String("selected", supported))
				return supported
			}
		}
	}

	n.logger.Debug("no matching content type, using default",
		observability.String("accept", acceptHeader),
		observability.String("default", n.defaultType))

	return n.defaultType
}

// matchMediaType reports whether an accepted media range covers a concrete type.
func matchMediaType(accepted, supported string) bool {
	accepted = strings.ToLower(accepted)
	supported = strings.ToLower(supported)

	if accepted == "*/*" || accepted == supported {
		return true
	}

	acceptedType, acceptedSub, ok := strings.Cut(accepted, "/")
	if !ok {
		return false
	}
	supportedType, _, _ := strings.Cut(supported, "/")
	return acceptedSub == "*" && acceptedType == supportedType
}
