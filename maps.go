package llmwire

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Helpers for reading loosely-typed wire maps.

// StringField returns raw[key] as a string, or "" when absent or not a string.
func StringField(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}

// MapField returns raw[key] as a map, or nil.
func MapField(raw map[string]any, key string) map[string]any {
	m, _ := raw[key].(map[string]any)
	return m
}

// BoolField returns raw[key] as a bool, or false.
func BoolField(raw map[string]any, key string) bool {
	b, _ := raw[key].(bool)
	return b
}

// SliceField returns raw[key] as []any, or nil.
func SliceField(raw map[string]any, key string) []any {
	s, _ := raw[key].([]any)
	return s
}

// NumberField returns raw[key] as a float64 for any JSON-ish numeric type.
func NumberField(raw map[string]any, key string) (float64, bool) {
	return toFloat(raw[key])
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// ToMap converts a struct (or anything JSON-marshalable) into a generic map.
func ToMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal %T: %w", v, err)
	}
	return out, nil
}

// ParseArguments decodes a tool-call argument string. It returns nil when
// the string is empty or not a JSON object.
func ParseArguments(arguments string) map[string]any {
	if arguments == "" {
		return nil
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(arguments), &params); err != nil {
		return nil
	}
	return params
}

// EncodeArguments renders tool-call params as a JSON string ("{}" for nil).
func EncodeArguments(params map[string]any) string {
	if params == nil {
		return "{}"
	}
	data, err := json.Marshal(params)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		return v
	}
}

// CloneMap deep-copies a generic JSON map.
func CloneMap(m map[string]any) map[string]any {
	return cloneMap(m)
}

// Put stores *v under key when v is set.
func Put[T any](m map[string]any, key string, v *T) {
	if v != nil {
		m[key] = *v
	}
}

// DataURI renders base64 data as a data: URI.
func DataURI(mediaType, data string) string {
	return "data:" + mediaType + ";base64," + data
}

// ParseDataURI splits a base64 data: URI into media type and payload.
func ParseDataURI(uri string) (mediaType, data string, ok bool) {
	rest, found := strings.CutPrefix(uri, "data:")
	if !found {
		return "", "", false
	}
	header, payload, found := strings.Cut(rest, ",")
	if !found {
		return "", "", false
	}
	mediaType, found = strings.CutSuffix(header, ";base64")
	if !found {
		return "", "", false
	}
	return mediaType, payload, true
}

// OptionalString returns raw[key] when it is a string.
func OptionalString(raw map[string]any, key string) *string {
	if s, ok := raw[key].(string); ok {
		return &s
	}
	return nil
}

// OptionalInt returns raw[key] when it is a whole number.
func OptionalInt(raw map[string]any, key string) *int {
	if f, ok := toFloat(raw[key]); ok && f == float64(int(f)) {
		n := int(f)
		return &n
	}
	return nil
}

// OptionalBool returns raw[key] when it is a bool.
func OptionalBool(raw map[string]any, key string) *bool {
	if b, ok := raw[key].(bool); ok {
		return &b
	}
	return nil
}

// PutString stores s under key when it is not empty.
func PutString(m map[string]any, key, s string) {
	if s != "" {
		m[key] = s
	}
}
