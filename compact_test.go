package llmwire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompact(t *testing.T) {
	in := map[string]any{
		"model":    "gpt-4o",
		"stream":   false,
		"n":        0,
		"tools":    []any{},
		"metadata": map[string]any{},
		"stop":     nil,
		"nested": map[string]any{
			"empty": []map[string]any{{}},
			"keep":  "x",
		},
		"schema": Keep(map[string]any{}),
		"list":   []any{nil, map[string]any{}, "a", Keep([]any{})},
	}

	want := map[string]any{
		"model":  "gpt-4o",
		"stream": false,
		"n":      0,
		"nested": map[string]any{"keep": "x"},
		"schema": map[string]any{},
		"list":   []any{"a", []any{}},
	}
	assert.Equal(t, want, Compact(in))
}

func TestOmitDefaults(t *testing.T) {
	defaults := Defaults{
		"temperature":         1.0,
		"top_p":               1.0,
		"n":                   1,
		"stream":              false,
		"parallel_tool_calls": true,
		"stream_options": Defaults{
			"include_usage": false,
		},
		"reasoning": Defaults{"effort": "medium", "summary": nil},
	}

	payload := map[string]any{
		"model":               "gpt-4o",
		"temperature":         1,
		"top_p":               Float(0.9),
		"n":                   1.0,
		"stream":              false,
		"parallel_tool_calls": true,
		"stream_options":      map[string]any{"include_usage": true},
		"reasoning":           map[string]any{"effort": "medium"},
		"messages":            []any{map[string]any{"role": "user", "content": "hi"}},
		"tools":               []any{},
	}

	got := OmitDefaults(payload, defaults, "stream")

	assert.Equal(t, map[string]any{
		"model":          "gpt-4o",
		"top_p":          Float(0.9),
		"stream":         false,
		"stream_options": map[string]any{"include_usage": true},
		"messages":       []any{map[string]any{"role": "user", "content": "hi"}},
	}, got)

	assert.Contains(t, payload, "temperature", "the input payload is not modified")
}

func TestOmitDefaultsRequiredKeepsEmptyValues(t *testing.T) {
	got := OmitDefaults(map[string]any{"messages": []any{}, "model": "m"}, Defaults{}, "messages")
	assert.Equal(t, map[string]any{"messages": []any{}, "model": "m"}, got)
}

func TestArgumentsHelpers(t *testing.T) {
	assert.Nil(t, ParseArguments(""))
	assert.Nil(t, ParseArguments("[1]"))
	assert.Nil(t, ParseArguments("{broken"))
	assert.Equal(t, map[string]any{"a": "b"}, ParseArguments(`{"a":"b"}`))

	assert.Equal(t, "{}", EncodeArguments(nil))
	assert.Equal(t, `{"a":"b"}`, EncodeArguments(map[string]any{"a": "b"}))
	assert.Equal(t, "{}", EncodeArguments(map[string]any{"bad": func() {}}))
}

func TestDataURI(t *testing.T) {
	uri := DataURI("image/png", "iVBOR")
	assert.Equal(t, "data:image/png;base64,iVBOR", uri)

	mediaType, data, ok := ParseDataURI(uri)
	assert.True(t, ok)
	assert.Equal(t, "image/png", mediaType)
	assert.Equal(t, "iVBOR", data)

	for _, bad := range []string{"https://example.com/a.png", "data:image/png,raw", "data:image/png;base64"} {
		_, _, ok := ParseDataURI(bad)
		assert.False(t, ok, bad)
	}
}

func TestMapFieldHelpers(t *testing.T) {
	raw := map[string]any{"s": "x", "n": 3.0, "i": 4, "b": true, "f": 1.5}

	assert.Equal(t, String("x"), OptionalString(raw, "s"))
	assert.Nil(t, OptionalString(raw, "n"))
	assert.Equal(t, Int(3), OptionalInt(raw, "n"))
	assert.Equal(t, Int(4), OptionalInt(raw, "i"))
	assert.Nil(t, OptionalInt(raw, "f"))
	assert.Equal(t, Bool(true), OptionalBool(raw, "b"))

	n, ok := NumberField(raw, "i")
	assert.True(t, ok)
	assert.Equal(t, 4.0, n)

	out := map[string]any{}
	PutString(out, "empty", "")
	PutString(out, "full", "v")
	Put[int](out, "unset", nil)
	Put(out, "set", Int(0))
	assert.Equal(t, map[string]any{"full": "v", "set": 0}, out)

	m, err := ToMap(struct {
		A string `json:"a"`
	}{"b"})
	assert.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "b"}, m)
}
