package llmwire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyStructuredOutput(t *testing.T) {
	jsonObject := &ResponseFormat{Type: FormatJSONObject}

	tests := []struct {
		name       string
		text       string
		format     *ResponseFormat
		wantParsed any
		wantErr    bool
		wantType   string
	}{
		{"no format", `{"a":1}`, nil, nil, false, ""},
		{"text format", `{"a":1}`, &ResponseFormat{Type: FormatText}, nil, false, ""},
		{"object", ` {"a":1} `, jsonObject, map[string]any{"a": 1.0}, false, ContentTypeJSON},
		{"array", `[1,2]`, jsonObject, []any{1.0, 2.0}, false, ContentTypeJSON},
		{"invalid json", `{"a":`, jsonObject, nil, true, ContentTypeJSON},
		{"string scalar", `"just a string"`, jsonObject, "just a string", false, ContentTypeJSON},
		{"number scalar", `42`, jsonObject, 42.0, false, ContentTypeJSON},
		{"bool scalar", `true`, jsonObject, true, false, ContentTypeJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := NewTextMessage(RoleAssistant, tt.text)
			perr := ApplyStructuredOutput(&msg, tt.format)

			assert.Equal(t, tt.wantErr, perr != nil)
			assert.Equal(t, tt.wantParsed, msg.Parsed)
			assert.Equal(t, tt.wantType, msg.ContentType)

			if tt.wantErr {
				assert.Equal(t, tt.text, perr.Raw)
				assert.Equal(t, tt.text, msg.Value(), "a failed parse keeps the raw string")
				assert.Equal(t, tt.text, msg.RawContent)
			}
		})
	}
}

func TestApplyStructuredOutputNilMessage(t *testing.T) {
	assert.Nil(t, ApplyStructuredOutput(nil, &ResponseFormat{Type: FormatJSONObject}))
}

func TestParseErrorMessage(t *testing.T) {
	msg := NewTextMessage(RoleAssistant, "nope")
	perr := ApplyStructuredOutput(&msg, &ResponseFormat{Type: FormatJSONObject})
	require.NotNil(t, perr)
	assert.Contains(t, perr.Error(), "structured output is not valid JSON")
	assert.NotNil(t, perr.Unwrap())
}
