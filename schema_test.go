package llmwire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type weather struct {
	City    string   `json:"city" jsonschema:"description=City name"`
	Celsius float64  `json:"celsius"`
	Tags    []string `json:"tags,omitempty"`
	Wind    struct {
		Speed int `json:"speed"`
	} `json:"wind"`
}

func TestSchemaFor(t *testing.T) {
	schema, err := SchemaFor(&weather{})
	require.NoError(t, err)

	assert.Equal(t, "object", schema["type"])
	assert.NotContains(t, schema, "$schema")
	assert.NotContains(t, schema, "$ref")

	props := MapField(schema, "properties")
	require.NotNil(t, props)
	assert.Equal(t, "City name", MapField(props, "city")["description"])
	assert.Equal(t, "number", MapField(props, "celsius")["type"])
	assert.ElementsMatch(t, []any{"city", "celsius", "wind"}, schema["required"])
}

func TestJSONSchemaFormatStrict(t *testing.T) {
	format, err := JSONSchemaFormat("weather_report", weather{}, true)
	require.NoError(t, err)

	assert.True(t, format.IsStrict())
	assert.True(t, format.WantsJSON())
	assert.Equal(t, false, format.JSONSchema.Schema["additionalProperties"])
	assert.Equal(t, []any{"celsius", "city", "tags", "wind"}, format.JSONSchema.Schema["required"])

	wind := MapField(MapField(format.JSONSchema.Schema, "properties"), "wind")
	assert.Equal(t, false, wind["additionalProperties"])
	assert.Equal(t, []any{"speed"}, wind["required"])

	wire := format.Wire()
	js := MapField(wire, "json_schema")
	assert.Equal(t, "json_schema", wire["type"])
	assert.Equal(t, "weather_report", js["name"])
	assert.Equal(t, true, js["strict"])
	assert.Equal(t, format.JSONSchema.Schema, Compact(wire).(map[string]any)["json_schema"].(map[string]any)["schema"])
}

func TestJSONSchemaFormatRejectsBadName(t *testing.T) {
	_, err := JSONSchemaFormat("weather report", weather{}, false)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "response_format.json_schema.name", verr.Field)
}

func TestValidateStrictSchema(t *testing.T) {
	tests := []struct {
		name   string
		schema map[string]any
		field  string
	}{
		{
			name: "valid",
			schema: map[string]any{
				"type":                 "object",
				"properties":           map[string]any{"a": map[string]any{"type": "string"}},
				"required":             []any{"a"},
				"additionalProperties": false,
			},
		},
		{
			name: "additional properties allowed",
			schema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"a": map[string]any{"type": "string"}},
				"required":   []any{"a"},
			},
			field: "schema",
		},
		{
			name: "optional property",
			schema: map[string]any{
				"type":                 "object",
				"properties":           map[string]any{"a": map[string]any{"type": "string"}, "b": map[string]any{"type": "string"}},
				"required":             []string{"a"},
				"additionalProperties": false,
			},
			field: "schema.required",
		},
		{
			name: "nested object inside items",
			schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"list": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "object", "properties": map[string]any{}},
					},
				},
				"required":             []any{"list"},
				"additionalProperties": false,
			},
			field: "schema.properties.list.items",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStrictSchema("schema", tt.schema)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestCastResponseFormat(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want ResponseFormatType
	}{
		{"text", "text", FormatText},
		{"symbol style", ":json_object", FormatJSONObject},
		{"map", map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "answer",
				"schema": map[string]any{"type": "object"},
				"strict": false,
			},
		}, FormatJSONSchema},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := CastResponseFormat(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Type)
		})
	}

	f, err := CastResponseFormat(nil)
	require.NoError(t, err)
	assert.Nil(t, f)

	_, err = CastResponseFormat("yaml")
	assert.True(t, IsInvalidRequest(err))

	_, err = CastResponseFormat(map[string]any{"type": "json_schema"})
	assert.True(t, IsInvalidRequest(err))

	_, err = CastResponseFormat(3)
	assert.True(t, IsCastError(err))
}

func TestToolValidate(t *testing.T) {
	tests := []struct {
		name  string
		tool  Tool
		field string
	}{
		{"no parameters", Tool{Name: "ping"}, ""},
		{"object parameters", Tool{Name: "get-weather_2", Parameters: map[string]any{"type": "object"}}, ""},
		{"empty name", Tool{}, "tools.name"},
		{"dotted name", Tool{Name: "get.weather"}, "tools.name"},
		{"array parameters", Tool{Name: "ping", Parameters: map[string]any{"type": "array"}}, "tools.parameters"},
		{"strict without additionalProperties", Tool{Name: "ping", Strict: Bool(true), Parameters: map[string]any{"type": "object"}}, "tools.parameters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tool.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestCastTool(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{"q": map[string]any{"type": "string"}}}

	shapes := map[string]any{
		"generic":   map[string]any{"name": "search", "description": "find", "parameters": params},
		"chat":      map[string]any{"type": "function", "function": map[string]any{"name": "search", "description": "find", "parameters": params}},
		"responses": map[string]any{"type": "function", "name": "search", "description": "find", "parameters": params},
		"anthropic": map[string]any{"name": "search", "description": "find", "input_schema": params},
		"struct":    Tool{Name: "search", Description: "find", Parameters: params},
	}
	for name, raw := range shapes {
		t.Run(name, func(t *testing.T) {
			tool, err := CastTool(raw)
			require.NoError(t, err)
			assert.Equal(t, &Tool{Name: "search", Description: "find", Parameters: params}, tool)
		})
	}

	_, err := CastTool(map[string]any{"description": "nameless"})
	assert.True(t, IsCastError(err))

	_, err = CastTools([]any{shapes["generic"], "search"})
	assert.ErrorContains(t, err, "tools[1]")
}

func TestNewToolFor(t *testing.T) {
	type lookup struct {
		Query string `json:"query"`
		Limit int    `json:"limit,omitempty"`
	}

	tool, err := NewToolFor("lookup", "look things up", lookup{}, true)
	require.NoError(t, err)
	assert.True(t, *tool.Strict)
	assert.Equal(t, []any{"limit", "query"}, tool.Parameters["required"])

	loose, err := NewToolFor("lookup", "", lookup{}, false)
	require.NoError(t, err)
	assert.Nil(t, loose.Strict)
	assert.Equal(t, []any{"query"}, loose.Parameters["required"])

	assert.Equal(t, map[string]any{"type": "object", "properties": map[string]any{}}, (&Tool{Name: "x"}).ParameterSchema())
}
