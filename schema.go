package llmwire

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"
)

// ResponseFormatType selects how the model formats its output.
type ResponseFormatType string

const (
	FormatText       ResponseFormatType = "text"
	FormatJSONObject ResponseFormatType = "json_object"
	FormatJSONSchema ResponseFormatType = "json_schema"
)

// JSONSchema describes a named structured-output schema.
type JSONSchema struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Schema      map[string]any `json:"schema" yaml:"schema"`
	Strict      *bool          `json:"strict,omitempty" yaml:"strict,omitempty"`
}

// ResponseFormat requests plain text, any JSON object, or a specific schema.
type ResponseFormat struct {
	Type       ResponseFormatType `json:"type" yaml:"type"`
	JSONSchema *JSONSchema        `json:"json_schema,omitempty" yaml:"json_schema,omitempty"`
}

// WantsJSON reports whether the format asks for JSON output.
func (f *ResponseFormat) WantsJSON() bool {
	return f != nil && (f.Type == FormatJSONObject || f.Type == FormatJSONSchema)
}

// IsStrict reports whether strict schema adherence was requested.
func (f *ResponseFormat) IsStrict() bool {
	return f != nil && f.JSONSchema != nil && f.JSONSchema.Strict != nil && *f.JSONSchema.Strict
}

// Validate enforces name and strict-mode rules.
func (f *ResponseFormat) Validate() error {
	switch f.Type {
	case FormatText, FormatJSONObject:
		return nil
	case FormatJSONSchema:
	default:
		return &ValidationError{Field: "response_format.type", Value: f.Type, Reason: "must be text, json_object or json_schema"}
	}

	if f.JSONSchema == nil {
		return &ValidationError{Field: "response_format.json_schema", Value: nil, Reason: "required for json_schema"}
	}
	if !ValidName(f.JSONSchema.Name) {
		return &ValidationError{
			Field:  "response_format.json_schema.name",
			Value:  f.JSONSchema.Name,
			Reason: "must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}
	if f.JSONSchema.Schema == nil {
		return &ValidationError{Field: "response_format.json_schema.schema", Value: nil, Reason: "required for json_schema"}
	}
	if f.IsStrict() {
		return ValidateStrictSchema("response_format.json_schema.schema", f.JSONSchema.Schema)
	}
	return nil
}

// Wire returns the OpenAI Chat shape {type, json_schema:{name, description, schema, strict}}.
func (f *ResponseFormat) Wire() map[string]any {
	out := map[string]any{"type": string(f.Type)}
	if f.Type == FormatJSONSchema && f.JSONSchema != nil {
		js := map[string]any{
			"name":   f.JSONSchema.Name,
			"schema": Keep(f.JSONSchema.Schema),
		}
		if f.JSONSchema.Description != "" {
			js["description"] = f.JSONSchema.Description
		}
		if f.JSONSchema.Strict != nil {
			js["strict"] = *f.JSONSchema.Strict
		}
		out["json_schema"] = js
	}
	return out
}

// CastResponseFormat accepts "text", "json_object", "json_schema" (a leading
// ':' is tolerated), a *ResponseFormat, or the explicit map shape
// {type:, json_schema:{name:, schema:, strict:}}. The result is validated.
func CastResponseFormat(raw any) (*ResponseFormat, error) {
	var f *ResponseFormat

	switch v := raw.(type) {
	case nil:
		return nil, nil
	case *ResponseFormat:
		f = v
	case ResponseFormat:
		f = &v
	case string:
		f = &ResponseFormat{Type: ResponseFormatType(strings.TrimPrefix(v, ":"))}
	case map[string]any:
		f = &ResponseFormat{Type: ResponseFormatType(StringField(v, "type"))}
		if js := MapField(v, "json_schema"); js != nil {
			f.JSONSchema = &JSONSchema{
				Name:        StringField(js, "name"),
				Description: StringField(js, "description"),
				Schema:      MapField(js, "schema"),
			}
			if strict, ok := js["strict"].(bool); ok {
				f.JSONSchema.Strict = Bool(strict)
			}
		}
	default:
		return nil, &CastError{Kind: "response_format", Value: raw, Reason: fmt.Sprintf("unsupported type %T", raw)}
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// JSONSchemaFormat builds a json_schema response format reflected from v.
func JSONSchemaFormat(name string, v any, strict bool) (*ResponseFormat, error) {
	schema, err := SchemaFor(v)
	if err != nil {
		return nil, err
	}
	if strict {
		schema = StrictSchema(schema)
	}
	f := &ResponseFormat{
		Type: FormatJSONSchema,
		JSONSchema: &JSONSchema{
			Name:   name,
			Schema: schema,
			Strict: Bool(strict),
		},
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// SchemaFor reflects a Go value into an inlined JSON Schema object.
// Fields without omitempty are required.
func SchemaFor(v any) (map[string]any, error) {
	r := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
		Anonymous:      true,
	}
	data, err := json.Marshal(r.Reflect(v))
	if err != nil {
		return nil, fmt.Errorf("marshal schema for %T: %w", v, err)
	}

	var schema map[string]any
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("decode schema for %T: %w", v, err)
	}
	delete(schema, "$schema")
	delete(schema, "$id")
	return schema, nil
}

// StrictSchema returns a copy of schema where every object lists all of its
// properties as required and sets additionalProperties to false.
func StrictSchema(schema map[string]any) map[string]any {
	out := cloneMap(schema)
	strictify(out)
	return out
}

func strictify(node map[string]any) {
	if props := MapField(node, "properties"); props != nil {
		names := make([]string, 0, len(props))
		for name, prop := range props {
			names = append(names, name)
			if child, ok := prop.(map[string]any); ok {
				strictify(child)
			}
		}
		sort.Strings(names)
		required := make([]any, len(names))
		for i, n := range names {
			required[i] = n
		}
		node["required"] = required
		node["additionalProperties"] = false
	} else if StringField(node, "type") == "object" {
		node["additionalProperties"] = false
	}

	if items := MapField(node, "items"); items != nil {
		strictify(items)
	}
	for _, key := range []string{"anyOf", "oneOf", "allOf"} {
		for _, alt := range SliceField(node, key) {
			if child, ok := alt.(map[string]any); ok {
				strictify(child)
			}
		}
	}
	for _, key := range []string{"$defs", "definitions"} {
		for _, def := range MapField(node, key) {
			if child, ok := def.(map[string]any); ok {
				strictify(child)
			}
		}
	}
}

// ValidateStrictSchema checks that every object in schema sets
// additionalProperties:false and marks all of its properties required.
func ValidateStrictSchema(field string, schema map[string]any) error {
	return validateStrictNode(field, schema)
}

func validateStrictNode(path string, node map[string]any) error {
	props := MapField(node, "properties")
	if props != nil || StringField(node, "type") == "object" {
		if ap, ok := node["additionalProperties"].(bool); !ok || ap {
			return &ValidationError{Field: path, Value: node["additionalProperties"], Reason: "strict schema requires additionalProperties: false"}
		}
	}

	if props != nil {
		required := make(map[string]bool)
		for _, r := range requiredNames(node["required"]) {
			required[r] = true
		}
		names := make([]string, 0, len(props))
		for name := range props {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if !required[name] {
				return &ValidationError{Field: path + ".required", Value: name, Reason: "strict schema requires every property to be required"}
			}
			if child, ok := props[name].(map[string]any); ok {
				if err := validateStrictNode(path+".properties."+name, child); err != nil {
					return err
				}
			}
		}
	}

	if items := MapField(node, "items"); items != nil {
		if err := validateStrictNode(path+".items", items); err != nil {
			return err
		}
	}
	return nil
}

func requiredNames(v any) []string {
	switch r := v.(type) {
	case []string:
		return r
	case []any:
		out := make([]string, 0, len(r))
		for _, item := range r {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
