package pattern

import (
	"fmt"
	"regexp"
)

// ParamType is the prefix character of a placeholder and selects the
// characters the placeholder may match.
type ParamType byte

// Placeholder types.
const (
	TypeAny        ParamType = ':'
	TypeIdentifier ParamType = '!'
	TypeDigits     ParamType = '^'
	TypeLetters    ParamType = '@'
	TypeGreedy     ParamType = '*'
)

// paramClasses maps each placeholder type to its regular expression class.
var paramClasses = map[ParamType]string{
	TypeAny:        `[^/]+`,
	TypeIdentifier: `[A-Za-z][A-Za-z0-9_-]+`,
	TypeDigits:     `[0-9]+`,
	TypeLetters:    `[A-Za-z]+`,
	TypeGreedy:     `.+`,
}

var placeholderRegex = regexp.MustCompile(`(?i)\{?(([*:!^@])([a-z][_a-z0-9]*))\}?`)

// Class returns the regular expression class matched by the type.
func (t ParamType) Class() string {
	return paramClasses[t]
}

// String returns the prefix character.
func (t ParamType) String() string {
	return string(t)
}

// ParamSpec describes one placeholder of a template.
type ParamSpec struct {
	// Symbol is the placeholder exactly as written, e.g. "{:id}".
	Symbol string
	Type   ParamType
	Name   string
}

// ParamSet is an ordered set of placeholders keyed by name.
type ParamSet struct {
	specs []ParamSpec
	index map[string]int
}

// Len returns the number of placeholders.
func (s ParamSet) Len() int {
	return len(s.specs)
}

// All returns the placeholders in template order.
func (s ParamSet) All() []ParamSpec {
	out := make([]ParamSpec, len(s.specs))
	copy(out, s.specs)
	return out
}

// Names returns the placeholder names in template order.
func (s ParamSet) Names() []string {
	names := make([]string, len(s.specs))
	for i, spec := range s.specs {
		names[i] = spec.Name
	}
	return names
}

// Has reports whether a placeholder with the given name exists.
func (s ParamSet) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Get returns the placeholder with the given name.
func (s ParamSet) Get(name string) (ParamSpec, bool) {
	i, ok := s.index[name]
	if !ok {
		return ParamSpec{}, false
	}
	return s.specs[i], true
}

// segment is either literal text or the index of a placeholder.
type segment struct {
	literal string
	param   int
}

func (s segment) isParam() bool {
	return s.param >= 0
}

// scanParams splits a template into literal and placeholder segments.
func scanParams(template string) (ParamSet, []segment, error) {
	set := ParamSet{index: make(map[string]int)}
	var segments []segment

	last := 0
	for _, loc := range placeholderRegex.FindAllStringSubmatchIndex(template, -1) {
		spec := ParamSpec{
			Symbol: template[loc[0]:loc[1]],
			Type:   ParamType(template[loc[4]]),
			Name:   template[loc[6]:loc[7]],
		}
		if _, dup := set.index[spec.Name]; dup {
			return ParamSet{}, nil, fmt.Errorf("parameter %q is declared more than once: %w", spec.Name, ErrDuplicateParam)
		}

		if loc[0] > last {
			segments = append(segments, segment{literal: template[last:loc[0]], param: -1})
		}
		set.index[spec.Name] = len(set.specs)
		segments = append(segments, segment{param: len(set.specs)})
		set.specs = append(set.specs, spec)
		last = loc[1]
	}
	if last < len(template) {
		segments = append(segments, segment{literal: template[last:], param: -1})
	}

	return set, segments, nil
}
