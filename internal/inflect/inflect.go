// Package inflect converts handler names to and from their URL forms.
//
// An Inflector turns "UserProfiles" into "user-profiles" and back, and
// slugifies arbitrary text for use in URLs. Results of the casing
// conversions are memoized in bounded LRUs, so an Inflector is meant to be
// long lived and shared; it is safe for concurrent use.
package inflect

import (
	"math"
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Word delimiters.
const (
	DefaultDelimiter = "-"
	LegacyDelimiter  = "_"
)

var (
	letterDigitRegex = regexp.MustCompile(`([a-zA-Z])([0-9])`)
	wordBoundary     = regexp.MustCompile(`([a-z0-9A-Z])([A-Z])`)
	whitespace       = regexp.MustCompile(`\s+`)
	camelJoint       = regexp.MustCompile(`[_-][a-z0-9]`)
	nonSlugChars     = regexp.MustCompile(`[^a-z0-9/\-_]+`)
)

// Inflector converts between camel case identifiers and URL words.
type Inflector struct {
	delimiter string

	collapse *regexp.Regexp
	strip    *regexp.Regexp
	trim     *regexp.Regexp

	memoSize  int
	urlized   *memo
	camelized *memo
}

// Option configures an Inflector.
type Option func(*Inflector)

// WithMemoSize bounds the number of memoized results per conversion.
// Non-positive sizes select DefaultMemoSize.
func WithMemoSize(size int) Option {
	return func(i *Inflector) {
		i.memoSize = size
	}
}

// New creates an Inflector joining words with delimiter. An empty
// delimiter selects DefaultDelimiter.
func New(delimiter string, opts ...Option) *Inflector {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	quoted := regexp.QuoteMeta(delimiter)
	i := &Inflector{
		delimiter: delimiter,
		collapse:  regexp.MustCompile(`(?:` + quoted + `){2,}`),
		strip:     regexp.MustCompile(`[^a-z0-9` + quoted + `]`),
		trim:      regexp.MustCompile(`^(?:` + quoted + `)+|(?:` + quoted + `)+$`),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.urlized = newMemo(i.memoSize)
	i.camelized = newMemo(i.memoSize)
	return i
}

// Delimiter returns the word delimiter.
func (i *Inflector) Delimiter() string {
	return i.delimiter
}

// Urlize converts a camelCase, underscore_notation or humanized string to
// delimiter separated lower case words.
func (i *Inflector) Urlize(s string) string {
	if s == "" {
		return s
	}
	if cached, ok := i.urlized.get(s); ok {
		return cached
	}

	out := lowerFirst(s)
	switch {
	case strings.Contains(out, "_"):
		out = strings.ToLower(out)
	case strings.Contains(out, " "):
		out = strings.ToLower(whitespace.ReplaceAllString(out, "_"))
	default:
		for {
			prev := out
			out = letterDigitRegex.ReplaceAllString(out, "${1}_${2}")
			out = wordBoundary.ReplaceAllString(out, "${1}_${2}")
			if out == prev {
				break
			}
		}
		out = strings.ToLower(out)
	}

	if i.delimiter != "_" {
		out = strings.ReplaceAll(out, "_", i.delimiter)
	}
	out = i.strip.ReplaceAllString(out, "")
	out = i.collapse.ReplaceAllString(out, i.delimiter)

	i.urlized.put(s, out)
	return out
}

// Camelize converts underscore or dash separated words to camelCase, or to
// UpperCamelCase when upper is set.
func (i *Inflector) Camelize(s string, upper bool) string {
	if s == "" {
		return s
	}
	key := "0/" + s
	if upper {
		key = "1/" + s
	}
	if cached, ok := i.camelized.get(key); ok {
		return cached
	}

	out := s
	if strings.ContainsAny(out, "_-") {
		out = strings.ToLower(out)
		out = camelJoint.ReplaceAllStringFunc(out, func(m string) string {
			return strings.ToUpper(m[1:])
		})
	}
	if upper {
		out = upperFirst(out)
	} else {
		out = lowerFirst(out)
	}

	i.camelized.put(key, out)
	return out
}

// UpperCamelize converts s to UpperCamelCase.
func (i *Inflector) UpperCamelize(s string) string {
	return i.Camelize(s, true)
}

// LowerCamelize converts s to lowerCamelCase.
func (i *Inflector) LowerCamelize(s string) string {
	return i.Camelize(s, false)
}

// FormatNamespace converts a slash separated URL namespace such as
// "admin/user-tools" into "Admin<sep>UserTools".
func (i *Inflector) FormatNamespace(s, sep string) string {
	parts := strings.Split(s, "/")
	for n, part := range parts {
		parts[n] = i.UpperCamelize(part)
	}
	return strings.Join(parts, sep)
}

// MakeURLFriendly converts arbitrary text to a URL slug. Non ASCII letters
// are transliterated where possible. A positive maxLength truncates the
// slug, preferring to cut at a word delimiter.
func (i *Inflector) MakeURLFriendly(s string, maxLength int) string {
	out := strings.ToLower(strings.TrimSpace(asciiFold(s)))
	out = strings.ReplaceAll(out, "'", "")
	out = strings.ReplaceAll(out, "/", " ")

	out = nonSlugChars.ReplaceAllString(out, i.delimiter)
	out = i.collapse.ReplaceAllString(out, i.delimiter)
	out = strings.ReplaceAll(out, "_-_", "-")
	out = i.trim.ReplaceAllString(out, "")

	if maxLength > 0 && len(out) > maxLength {
		cut := strings.LastIndex(out[:maxLength], i.delimiter)
		if cut < int(math.Ceil(float64(maxLength)/2)) {
			cut = maxLength
		}
		out = out[:cut]
	}
	return out
}

// MakeURLFriendlyNamespace slugifies a namespace, turning each separator
// into a word delimiter.
func (i *Inflector) MakeURLFriendlyNamespace(s, sep string) string {
	if sep != "" {
		s = strings.ReplaceAll(s, sep, "/")
	}
	return i.MakeURLFriendly(s, 0)
}

var asciiFolder = sync.Pool{
	New: func() any {
		return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	},
}

// asciiFold strips combining marks so that "Crème Brûlée" becomes "Creme Brulee".
func asciiFold(s string) string {
	t := asciiFolder.Get().(transform.Transformer)
	defer asciiFolder.Put(t)
	t.Reset()

	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToLower(r)) + s[size:]
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
