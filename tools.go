package llmwire

import (
	"fmt"
	"regexp"
)

// namePattern constrains tool names and json_schema names.
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ValidName reports whether name is acceptable as a tool or schema name.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// Tool is the generic {name, description, parameters} tool descriptor.
// Providers render it into their own wire shape:
//   - OpenAI Chat, OpenRouter, Ollama: {type:"function", function:{name, description, parameters}}
//   - OpenAI Responses: {type:"function", name, description, parameters, strict}
//   - Anthropic: {name, description, input_schema}
type Tool struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"` // JSON Schema, type "object"
	Strict      *bool          `json:"strict,omitempty" yaml:"strict,omitempty"`
}

// Validate checks the tool name and parameter schema.
func (t *Tool) Validate() error {
	if !ValidName(t.Name) {
		return &ValidationError{
			Field:  "tools.name",
			Value:  t.Name,
			Reason: "must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}

	if t.Parameters != nil {
		if schemaType, ok := t.Parameters["type"].(string); !ok || schemaType != "object" {
			return &ValidationError{
				Field:  "tools.parameters",
				Value:  t.Parameters["type"],
				Reason: "must be a JSON schema with type 'object'",
			}
		}
	}

	if t.Strict != nil && *t.Strict && t.Parameters != nil {
		if err := ValidateStrictSchema("tools.parameters", t.Parameters); err != nil {
			return err
		}
	}

	return nil
}

// ParameterSchema returns the parameters or an empty object schema.
func (t *Tool) ParameterSchema() map[string]any {
	if t.Parameters == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return t.Parameters
}

// NewTool creates a validated tool.
func NewTool(name, description string, parameters map[string]any) (*Tool, error) {
	tool := &Tool{Name: name, Description: description, Parameters: parameters}
	if err := tool.Validate(); err != nil {
		return nil, fmt.Errorf("failed to create tool %q: %w", name, err)
	}
	return tool, nil
}

// NewToolFor creates a tool whose parameter schema is reflected from v.
func NewToolFor(name, description string, v any, strict bool) (*Tool, error) {
	schema, err := SchemaFor(v)
	if err != nil {
		return nil, err
	}
	if strict {
		schema = StrictSchema(schema)
	}
	tool := &Tool{Name: name, Description: description, Parameters: schema}
	if strict {
		tool.Strict = Bool(true)
	}
	if err := tool.Validate(); err != nil {
		return nil, fmt.Errorf("failed to create tool %q: %w", name, err)
	}
	return tool, nil
}

// CastTool normalizes any of the accepted tool shapes:
//   - *Tool or Tool
//   - generic: {name, description, parameters}
//   - OpenAI Chat: {type:"function", function:{name, description, parameters, strict}}
//   - OpenAI Responses: {type:"function", name, description, parameters, strict}
//   - Anthropic: {name, description, input_schema}
func CastTool(raw any) (*Tool, error) {
	var tool *Tool

	switch v := raw.(type) {
	case *Tool:
		cp := *v
		tool = &cp
	case Tool:
		tool = &v
	case map[string]any:
		src := v
		if fn := MapField(v, "function"); fn != nil {
			src = fn
		}
		tool = &Tool{
			Name:        StringField(src, "name"),
			Description: StringField(src, "description"),
		}
		switch {
		case MapField(src, "parameters") != nil:
			tool.Parameters = MapField(src, "parameters")
		case MapField(src, "input_schema") != nil:
			tool.Parameters = MapField(src, "input_schema")
		}
		if strict, ok := src["strict"].(bool); ok {
			tool.Strict = Bool(strict)
		}
		if tool.Name == "" {
			return nil, &CastError{Kind: "tool", Value: raw, Reason: "missing name"}
		}
	default:
		return nil, &CastError{Kind: "tool", Value: raw, Reason: fmt.Sprintf("unsupported tool type %T", raw)}
	}

	if err := tool.Validate(); err != nil {
		return nil, err
	}
	return tool, nil
}

// CastTools normalizes a list of tools.
func CastTools(raw []any) ([]Tool, error) {
	out := make([]Tool, 0, len(raw))
	for i, item := range raw {
		tool, err := CastTool(item)
		if err != nil {
			return nil, fmt.Errorf("tools[%d]: %w", i, err)
		}
		out = append(out, *tool)
	}
	return out, nil
}
