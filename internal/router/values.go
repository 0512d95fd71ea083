package router

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"unicode"
)

// linkParam is a parameter named in a link key. "name:property" reads
// property from a structured value and "name:property()" calls it.
type linkParam struct {
	name     string
	property string
	call     bool
}

func parseLinkParams(fields []string) []linkParam {
	params := make([]linkParam, 0, len(fields))
	for _, field := range fields {
		field = strings.TrimPrefix(field, ":")
		name, property, found := strings.Cut(field, ":")
		if !found || property == "" {
			property = name
		}
		p := linkParam{name: name, property: property}
		if strings.HasSuffix(p.property, "()") {
			p.property = strings.TrimSuffix(p.property, "()")
			p.call = true
		}
		if p.name != "" {
			params = append(params, p)
		}
	}
	return params
}

// extractValues maps the link parameters to values. A single map or
// struct value is read by name; otherwise values are positional. A nil or
// unreadable value leaves the parameter absent.
func extractValues(params []linkParam, values []any) map[string]string {
	out := make(map[string]string, len(params))

	if len(values) == 1 {
		if lookup, all, ok := mapLookup(values[0]); ok {
			if len(params) == 0 {
				for k, v := range all {
					out[k] = v
				}
				return out
			}
			for _, p := range params {
				if v, ok := lookup(p.property); ok {
					out[p.name] = v
				} else if v, ok := lookup(p.name); ok {
					out[p.name] = v
				}
			}
			return out
		}

		if rv, ok := structValue(values[0]); ok {
			for _, p := range params {
				if v, ok := readProperty(rv, p); ok {
					out[p.name] = v
				}
			}
			return out
		}
	}

	for i, p := range params {
		if i >= len(values) || values[i] == nil {
			continue
		}
		out[p.name] = stringify(values[i])
	}
	return out
}

// mapLookup adapts the supported map types.
func mapLookup(v any) (func(string) (string, bool), map[string]string, bool) {
	var all map[string]string

	switch m := v.(type) {
	case map[string]string:
		all = m
	case url.Values:
		all = make(map[string]string, len(m))
		for k := range m {
			all[k] = m.Get(k)
		}
	case Data:
		all = stringifyMap(m)
	case map[string]any:
		all = stringifyMap(m)
	default:
		return nil, nil, false
	}

	return func(name string) (string, bool) {
		value, ok := all[name]
		return value, ok
	}, all, true
}

func stringifyMap(m map[string]any) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if v != nil {
			out[k] = stringify(v)
		}
	}
	return out
}

func structValue(v any) (reflect.Value, bool) {
	if _, ok := v.(fmt.Stringer); ok {
		return reflect.Value{}, false
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	return rv, true
}

// readProperty reads a field, matched by `param` tag or case-insensitive
// name, or calls a niladic method.
func readProperty(rv reflect.Value, p linkParam) (string, bool) {
	if p.call {
		return callMethod(rv, p.property)
	}

	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(field.Tag.Get("param"), ",")
		if tag == p.property || (tag == "" && strings.EqualFold(field.Name, p.property)) {
			fv := rv.Field(i)
			for fv.Kind() == reflect.Pointer || fv.Kind() == reflect.Interface {
				if fv.IsNil() {
					return "", false
				}
				if _, ok := fv.Interface().(fmt.Stringer); ok {
					break
				}
				fv = fv.Elem()
			}
			return stringify(fv.Interface()), true
		}
	}
	return "", false
}

func callMethod(rv reflect.Value, name string) (string, bool) {
	name = upperFirst(name)

	method := rv.MethodByName(name)
	if !method.IsValid() && rv.CanAddr() {
		method = rv.Addr().MethodByName(name)
	}
	if !method.IsValid() {
		ptr := reflect.New(rv.Type())
		ptr.Elem().Set(rv)
		method = ptr.MethodByName(name)
	}
	if !method.IsValid() || method.Type().NumIn() != 0 || method.Type().NumOut() == 0 {
		return "", false
	}

	out := method.Call(nil)
	if len(out) > 1 {
		if err, ok := out[len(out)-1].Interface().(error); ok && err != nil {
			return "", false
		}
	}
	return stringify(out[0].Interface()), true
}

func upperFirst(s string) string {
	for i, r := range s {
		return string(unicode.ToUpper(r)) + s[i+len(string(r)):]
	}
	return s
}

func stringify(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case []byte:
		return string(value)
	case fmt.Stringer:
		return value.String()
	default:
		return fmt.Sprint(value)
	}
}
