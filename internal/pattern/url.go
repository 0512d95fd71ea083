package pattern

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	repeatedSlashRegex = regexp.MustCompile(`/+`)
	whitespaceRegex    = regexp.MustCompile(`\s+`)
)

// aliasPrefixes are the type prefixes stripped from query alias targets.
const aliasPrefixes = ":@$%"

// Alias maps a query-string key onto a route parameter.
type Alias struct {
	From string
	To   string
}

// URL is a compiled URL template.
type URL struct {
	// Template is the template as registered.
	Template string

	// Subject is the normalized path with a trailing match-all marker removed.
	Subject string

	// Params lists the path placeholders in template order.
	Params ParamSet

	// Linkable is false for prefix routes, which cannot be rendered back.
	Linkable bool

	// Fragment is the raw fragment template, without the leading '#'.
	Fragment string

	// FragmentParams lists the fragment placeholders in template order.
	FragmentParams ParamSet

	// Aliases maps query keys onto parameter names, in template order.
	Aliases []Alias

	matcher          *regexp.Regexp
	segments         []segment
	fragmentSegments []segment
}

// CompileURL compiles a URL template.
func CompileURL(template string) (*URL, error) {
	raw := template
	if strings.TrimSpace(raw) == "" {
		return nil, newError(raw, "empty URL template", ErrInvalidTemplate)
	}

	path, fragment, _ := strings.Cut(raw, "#")
	path, query, _ := strings.Cut(path, "?")

	path = normalizePath(path)

	u := &URL{
		Template: raw,
		Linkable: !strings.HasSuffix(path, "*"),
	}

	u.Subject = path
	scanned := path
	if !u.Linkable {
		u.Subject = strings.TrimSuffix(path, "*")
		scanned = strings.TrimSuffix(u.Subject, "/")
	}

	params, segments, err := scanParams(scanned)
	if err != nil {
		return nil, newError(raw, err.Error(), err)
	}
	u.Params = params
	u.segments = segments

	matcher, err := compileSegments(segments, params, u.Linkable)
	if err != nil {
		return nil, newError(raw, err.Error(), ErrInvalidTemplate)
	}
	u.matcher = matcher

	u.Fragment = whitespaceRegex.ReplaceAllString(fragment, "")
	u.FragmentParams, u.fragmentSegments, err = scanParams(u.Fragment)
	if err != nil {
		return nil, newError(raw, err.Error(), err)
	}

	u.Aliases = parseAliases(query)

	return u, nil
}

// MustCompileURL is like CompileURL but panics if the template cannot be compiled.
func MustCompileURL(template string) *URL {
	u, err := CompileURL(template)
	if err != nil {
		panic(err)
	}
	return u
}

func normalizePath(path string) string {
	path = whitespaceRegex.ReplaceAllString(path, "")
	path = repeatedSlashRegex.ReplaceAllString(path, "/")
	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}
	if !strings.HasPrefix(path, "*") && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

func compileSegments(segments []segment, params ParamSet, anchored bool) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString(`(?U)^`)
	for _, seg := range segments {
		if !seg.isParam() {
			b.WriteString(regexp.QuoteMeta(seg.literal))
			continue
		}
		spec := params.specs[seg.param]
		b.WriteString(`(?P<`)
		b.WriteString(spec.Name)
		b.WriteString(`>`)
		b.WriteString(spec.Type.Class())
		b.WriteString(`)`)
	}
	if anchored {
		b.WriteString(`/*$`)
	} else {
		b.WriteString(`(?:/|$)`)
	}
	return regexp.Compile(b.String())
}

func parseAliases(query string) []Alias {
	var aliases []Alias
	for _, pair := range strings.Split(query, "&") {
		from, to, _ := strings.Cut(pair, "=")
		from = unescape(strings.TrimSpace(from))
		to = unescape(strings.TrimSpace(to))
		if from == "" || to == "" {
			continue
		}
		if strings.ContainsRune(aliasPrefixes, rune(to[0])) {
			to = to[1:]
		}

		replaced := false
		for i := range aliases {
			if aliases[i].From == from {
				aliases[i].To = to
				replaced = true
			}
		}
		if !replaced {
			aliases = append(aliases, Alias{From: from, To: to})
		}
	}
	return aliases
}

// Match matches a request path and returns the URL-decoded placeholder values.
func (u *URL) Match(path string) (map[string]string, bool) {
	matches := u.matcher.FindStringSubmatch(path)
	if matches == nil {
		return nil, false
	}

	params := make(map[string]string, u.Params.Len())
	for i, name := range u.matcher.SubexpNames() {
		if i > 0 && name != "" && i < len(matches) {
			params[name] = unescape(matches[i])
		}
	}
	return params, true
}

// AliasFor returns the query key aliased onto param.
func (u *URL) AliasFor(param string) (string, bool) {
	for _, a := range u.Aliases {
		if a.To == param {
			return a.From, true
		}
	}
	return "", false
}

// Render substitutes values into the path placeholders. It reports false
// when a placeholder has no value.
func (u *URL) Render(values map[string]string) (string, bool) {
	return render(u.segments, u.Params, values)
}

// RenderFragment substitutes values into the fragment placeholders. It
// reports false when a placeholder has no value.
func (u *URL) RenderFragment(values map[string]string) (string, bool) {
	return render(u.fragmentSegments, u.FragmentParams, values)
}

func render(segments []segment, params ParamSet, values map[string]string) (string, bool) {
	var b strings.Builder
	for _, seg := range segments {
		if !seg.isParam() {
			b.WriteString(seg.literal)
			continue
		}
		value, ok := values[params.specs[seg.param].Name]
		if !ok {
			return "", false
		}
		b.WriteString(value)
	}
	return b.String(), true
}

func unescape(s string) string {
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}
