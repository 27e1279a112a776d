package openai

import (
	"github.com/haowjy/llmwire-go"
)

// WireTools renders tools in the Chat Completions function wrapper:
// {type:"function", function:{name, description, parameters, strict}}.
func WireTools(tools []llmwire.Tool) []any {
	out := make([]any, 0, len(tools))
	for _, tool := range tools {
		fn := map[string]any{
			"name":       tool.Name,
			"parameters": llmwire.Keep(tool.ParameterSchema()),
		}
		llmwire.PutString(fn, "description", tool.Description)
		llmwire.Put(fn, "strict", tool.Strict)
		out = append(out, map[string]any{"type": "function", "function": fn})
	}
	return out
}

// WireToolChoice renders a tool choice as "auto", "none", "required" or
// {type:"function", function:{name}}.
func WireToolChoice(tc *llmwire.ToolChoice) any {
	if tc == nil {
		return nil
	}
	if tc.Mode == llmwire.ToolChoiceTool {
		return map[string]any{
			"type":     "function",
			"function": map[string]any{"name": tc.Name},
		}
	}
	return string(tc.Mode)
}
