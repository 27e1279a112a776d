package anthropic

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/haowjy/llmwire-go"
)

// builtinTools are Anthropic-defined tools. A tool with one of these names
// and no parameter schema is sent as the built-in variant; the API supplies
// its schema.
var builtinTools = map[string]func() anthropic.ToolUnionParam{
	"web_search": func() anthropic.ToolUnionParam {
		return anthropic.ToolUnionParam{OfWebSearchTool20250305: &anthropic.WebSearchTool20250305Param{}}
	},
	"bash": func() anthropic.ToolUnionParam {
		return anthropic.ToolUnionParam{OfBashTool20250124: &anthropic.ToolBash20250124Param{}}
	},
	"str_replace_based_edit_tool": func() anthropic.ToolUnionParam {
		return anthropic.ToolUnionParam{OfTextEditor20250728: &anthropic.ToolTextEditor20250728Param{}}
	},
}

// toolParam converts a generic tool into the SDK union. The JSON schema is
// split into properties, required and the remaining keywords, which is how
// ToolInputSchemaParam carries them.
func toolParam(tool llmwire.Tool) anthropic.ToolUnionParam {
	if builtin, ok := builtinTools[tool.Name]; ok && tool.Parameters == nil {
		return builtin()
	}

	params := tool.ParameterSchema()
	schema := anthropic.ToolInputSchemaParam{
		Properties:  params["properties"],
		ExtraFields: make(map[string]any),
	}
	if schema.Properties == nil {
		schema.Properties = map[string]any{}
	}
	switch required := params["required"].(type) {
	case []string:
		schema.Required = required
	case []any:
		for _, v := range required {
			if s, ok := v.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	for key, value := range params {
		if key != "type" && key != "properties" && key != "required" {
			schema.ExtraFields[key] = value
		}
	}

	union := anthropic.ToolUnionParamOfTool(schema, tool.Name)
	if tool.Description != "" {
		union.OfTool.Description = anthropic.String(tool.Description)
	}
	return union
}

// WireTools renders tools as flat {name, description, input_schema} objects.
// Each tool is kept verbatim by payload compaction so that empty
// properties survive.
func WireTools(tools []llmwire.Tool) ([]any, error) {
	out := make([]any, 0, len(tools))
	for i, tool := range tools {
		m, err := llmwire.ToMap(toolParam(tool))
		if err != nil {
			return nil, fmt.Errorf("tools[%d]: %w", i, err)
		}
		out = append(out, llmwire.Keep(m))
	}
	return out, nil
}

// toolChoiceParam maps the canonical choice onto the SDK union; required
// becomes "any". disableParallel is only expressible on auto, any and tool.
func toolChoiceParam(tc *llmwire.ToolChoice, disableParallel bool) *anthropic.ToolChoiceUnionParam {
	var parallel param.Opt[bool]
	if disableParallel {
		parallel = anthropic.Bool(true)
	}

	if tc == nil {
		if !disableParallel {
			return nil
		}
		return &anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{DisableParallelToolUse: parallel}}
	}

	switch tc.Mode {
	case llmwire.ToolChoiceRequired:
		return &anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{DisableParallelToolUse: parallel}}
	case llmwire.ToolChoiceNone:
		none := anthropic.NewToolChoiceNoneParam()
		return &anthropic.ToolChoiceUnionParam{OfNone: &none}
	case llmwire.ToolChoiceTool:
		union := anthropic.ToolChoiceParamOfTool(tc.Name)
		union.OfTool.DisableParallelToolUse = parallel
		return &union
	default:
		return &anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{DisableParallelToolUse: parallel}}
	}
}

// WireToolChoice renders the tool choice object, or nil when nothing needs
// to be sent.
func WireToolChoice(tc *llmwire.ToolChoice, disableParallel bool) (map[string]any, error) {
	union := toolChoiceParam(tc, disableParallel)
	if union == nil {
		return nil, nil
	}
	return llmwire.ToMap(union)
}
