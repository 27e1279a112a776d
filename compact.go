package llmwire

import (
	"reflect"
	"slices"
)

// keep marks a value that Compact must emit verbatim, e.g. a JSON schema or
// a tool input whose empty object is meaningful on the wire.
type keep struct {
	value any
}

// Keep wraps v so that Compact leaves it untouched.
func Keep(v any) any {
	return keep{value: v}
}

// Defaults is a per-provider table of documented default values. Nested
// maps describe defaults of nested objects.
type Defaults map[string]any

// OmitDefaults removes every field of payload whose value equals its
// documented default, except the fields listed in required, and then
// compacts the result. payload is not modified.
func OmitDefaults(payload map[string]any, defaults Defaults, required ...string) map[string]any {
	out := make(map[string]any, len(payload))
	for key, value := range payload {
		if def, ok := defaults[key]; ok && !slices.Contains(required, key) {
			nested, isNested := nestedDefaults(def)
			m, isMap := value.(map[string]any)
			switch {
			case isNested && isMap:
				// already compacted; Keep stops a second pass from
				// touching kept values such as schemas
				reduced := OmitDefaults(m, nested)
				if len(reduced) == 0 {
					continue
				}
				value = Keep(reduced)
			case !isNested && valuesEqual(value, def):
				continue
			}
		}
		out[key] = value
	}

	compacted, _ := Compact(out).(map[string]any)
	for _, key := range required {
		if _, ok := compacted[key]; !ok {
			if v, present := payload[key]; present {
				compacted[key] = unwrapKeep(v)
			}
		}
	}
	return compacted
}

func nestedDefaults(def any) (Defaults, bool) {
	switch d := def.(type) {
	case Defaults:
		return d, true
	case map[string]any:
		return Defaults(d), true
	default:
		return nil, false
	}
}

// Compact recursively drops nil values and empty maps/slices. Values
// wrapped with Keep are unwrapped and emitted as-is.
func Compact(v any) any {
	switch t := v.(type) {
	case keep:
		return t.value
	case map[string]any:
		out := make(map[string]any, len(t))
		for key, value := range t {
			c := Compact(value)
			if isBlank(c) {
				if _, kept := value.(keep); !kept {
					continue
				}
			}
			out[key] = c
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, value := range t {
			c := Compact(value)
			if isBlank(c) {
				if _, kept := value.(keep); !kept {
					continue
				}
			}
			out = append(out, c)
		}
		return out
	case []map[string]any:
		out := make([]any, 0, len(t))
		for _, value := range t {
			c := Compact(value)
			if !isBlank(c) {
				out = append(out, c)
			}
		}
		return out
	default:
		return v
	}
}

func unwrapKeep(v any) any {
	if k, ok := v.(keep); ok {
		return k.value
	}
	return v
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

func valuesEqual(a, b any) bool {
	a, b = indirect(a), indirect(b)
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func indirect(v any) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		return rv.Elem().Interface()
	}
	return v
}
