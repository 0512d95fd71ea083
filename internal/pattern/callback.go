package pattern

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Namespace separators.
const (
	DefaultSeparator = `\`
	LegacySeparator  = "_"
)

// Wildcard is the segment value matching anything.
const Wildcard = "*"

// identifierWildcard matches a class or method name segment.
const identifierWildcard = `[^\\_:]`

var (
	repeatedWildcardRegex = regexp.MustCompile(`\*+`)
	segmentCharsRegex     = regexp.MustCompile(`^[A-Za-z0-9_|*-]+$`)
)

// Captures holds the segments of an identity matched by a Callback.
type Captures struct {
	Namespace string
	Class     string
	Method    string
}

// Callback is a compiled handler identity template of the form
// "[Namespace<sep>]Class::method".
type Callback struct {
	// Template is the template with repeated wildcards collapsed.
	Template string

	// Namespace, Class and Method hold the literal segment, or Wildcard
	// when the segment is a wildcard or an alternation.
	Namespace string
	Class     string
	Method    string

	// ParentNamespace is the first namespace segment, or the class when
	// there is no namespace.
	ParentNamespace string

	// ParentOptions lists the classes a derivative match is accepted for.
	ParentOptions []string

	Separator string

	exact      *regexp.Regexp
	derivative *regexp.Regexp
}

// ParseCallback compiles a handler identity template. An empty separator
// selects DefaultSeparator.
func ParseCallback(template, sep string) (*Callback, error) {
	if sep == "" {
		sep = DefaultSeparator
	}

	tpl := repeatedWildcardRegex.ReplaceAllString(strings.TrimSpace(template), Wildcard)
	namespace, class, method, err := splitTemplate(tpl, sep)
	if err != nil {
		return nil, newError(template, err.Error(), ErrInvalidTemplate)
	}

	cb := &Callback{
		Template:        tpl,
		Namespace:       namespace,
		Class:           class,
		Method:          method,
		ParentNamespace: parentNamespace(namespace, class, sep),
		ParentOptions:   []string{class},
		Separator:       sep,
	}

	exact, derivative := buildCallbackPatterns(namespace, class, method, sep)
	if cb.exact, err = regexp.Compile(exact); err != nil {
		return nil, newError(template, err.Error(), ErrInvalidTemplate)
	}
	if cb.derivative, err = regexp.Compile(derivative); err != nil {
		return nil, newError(template, err.Error(), ErrInvalidTemplate)
	}

	if strings.Contains(method, "|") {
		cb.Method = Wildcard
	}
	if strings.Contains(class, "|") {
		cb.ParentOptions = strings.Split(class, "|")
		cb.Class = Wildcard
	}
	if strings.Contains(namespace, "|") {
		cb.Namespace = Wildcard
	}

	return cb, nil
}

// MustParseCallback is like ParseCallback but panics on error.
func MustParseCallback(template, sep string) *Callback {
	cb, err := ParseCallback(template, sep)
	if err != nil {
		panic(err)
	}
	return cb
}

func splitTemplate(tpl, sep string) (namespace, class, method string, err error) {
	classPart, method, found := cutLast(tpl, "::")
	if !found {
		method = tpl
		classPart = ""
	} else if classPart == "" {
		return "", "", "", fmt.Errorf("missing class before '::'")
	}
	if method == "" {
		return "", "", "", fmt.Errorf("missing method")
	}

	if classPart != "" {
		var hasNamespace bool
		namespace, class, hasNamespace = cutLast(strings.TrimPrefix(classPart, sep), sep)
		if !hasNamespace {
			class, namespace = namespace, ""
		}
		if class == "" {
			return "", "", "", fmt.Errorf("missing class after namespace %q", namespace)
		}
	}

	for _, part := range strings.Split(namespace, sep) {
		if namespace != "" && !segmentCharsRegex.MatchString(part) {
			return "", "", "", fmt.Errorf("invalid namespace segment %q", part)
		}
	}
	if class != "" && (!segmentCharsRegex.MatchString(class) || strings.Contains(class, sep)) {
		return "", "", "", fmt.Errorf("invalid class %q", class)
	}
	if !segmentCharsRegex.MatchString(method) {
		return "", "", "", fmt.Errorf("invalid method %q", method)
	}

	return namespace, class, method, nil
}

// cutLast slices s around the last instance of sep.
func cutLast(s, sep string) (before, after string, found bool) {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[:i], s[i+len(sep):], true
	}
	return s, "", false
}

func parentNamespace(namespace, class, sep string) string {
	full := class
	if namespace != "" {
		full = namespace + sep + class
	}
	first, _, _ := strings.Cut(full, sep)
	return first
}

func buildCallbackPatterns(namespace, class, method, sep string) (exact, derivative string) {
	wild := identifierWildcard + "*"
	if method == Wildcard {
		wild = identifierWildcard + "+"
	}
	exact = `(?P<method>` + segmentRegex(method, wild) + `)`
	derivative = exact

	if class != "" {
		wild = identifierWildcard + "*"
		if class == Wildcard {
			wild = identifierWildcard + "+"
		}
		exact = `(?P<class>` + segmentRegex(class, wild) + `)::` + exact
		derivative = `(?P<class>.+)::` + derivative
	}

	if namespace != "" {
		wild = ".*"
		if namespace == Wildcard {
			wild = ".+"
		}
		quotedSep := regexp.QuoteMeta(sep)
		exact = `(?P<namespace>` + segmentRegex(namespace, wild) + `)` + quotedSep + exact
		derivative = `(?P<namespace>` + segmentRegex(namespace, ".+") + `)` + quotedSep + derivative
	}

	return "^" + exact + "$", "^" + derivative + "$"
}

// segmentRegex quotes a segment, expanding wildcards and keeping alternations.
func segmentRegex(segment, wild string) string {
	var b strings.Builder
	for _, r := range segment {
		switch r {
		case '*':
			b.WriteString(wild)
		case '|':
			b.WriteRune(r)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return b.String()
}

// Match matches a concrete identity against the exact pattern.
func (c *Callback) Match(identity string) (Captures, bool) {
	matches := c.exact.FindStringSubmatch(identity)
	if matches == nil {
		return Captures{}, false
	}

	var caps Captures
	for i, name := range c.exact.SubexpNames() {
		if i == 0 || i >= len(matches) {
			continue
		}
		switch name {
		case "namespace":
			caps.Namespace = matches[i]
		case "class":
			caps.Class = matches[i]
		case "method":
			caps.Method = matches[i]
		}
	}
	return caps, true
}

// MatchDerivative matches an identity against the derivative pattern only.
func (c *Callback) MatchDerivative(identity string) bool {
	return c.derivative.MatchString(identity)
}

// Accepts reports whether a hook registered with this template applies to
// identity. The derivative pattern must match and the identity's class must
// be one of ParentOptions or inherit from one of them.
func (c *Callback) Accepts(identity string, isSubclass func(class, parent string) bool) bool {
	if !c.MatchDerivative(identity) {
		return false
	}
	if slices.Contains(c.ParentOptions, Wildcard) {
		return true
	}

	namespace, class, _ := SplitIdentity(identity, c.Separator)
	if slices.Contains(c.ParentOptions, class) {
		return true
	}
	if isSubclass == nil {
		return false
	}

	full := JoinClass(namespace, class, c.Separator)
	for _, parent := range c.ParentOptions {
		if isSubclass(full, parent) {
			return true
		}
	}
	return false
}

// FullClass returns the namespace qualified class of the template.
func (c *Callback) FullClass() string {
	return JoinClass(c.Namespace, c.Class, c.Separator)
}

// String returns the template.
func (c *Callback) String() string {
	return c.Template
}

// SplitIdentity splits a concrete identity into namespace, class and method.
func SplitIdentity(identity, sep string) (namespace, class, method string) {
	if sep == "" {
		sep = DefaultSeparator
	}
	classPart, method, found := cutLast(identity, "::")
	if !found {
		return "", "", identity
	}
	namespace, class, found = cutLast(classPart, sep)
	if !found {
		return "", classPart, method
	}
	return namespace, class, method
}

// JoinClass joins a namespace and a class with sep.
func JoinClass(namespace, class, sep string) string {
	if namespace == "" {
		return class
	}
	return namespace + sep + class
}

// JoinIdentity builds a concrete identity from its segments.
func JoinIdentity(namespace, class, method, sep string) string {
	if class == "" {
		return method
	}
	return JoinClass(namespace, class, sep) + "::" + method
}
