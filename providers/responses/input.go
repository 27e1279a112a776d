package responses

import (
	"fmt"

	"github.com/haowjy/llmwire-go"
)

// CastInput converts loosely-typed input into canonical messages.
func CastInput(raw any) ([]llmwire.Message, error) {
	return llmwire.CastMessages(raw, registry)
}

// EncodeInput renders canonical messages as input items. Assistant tool
// calls become function_call items and tool results become
// function_call_output items, in conversation order.
func EncodeInput(msgs []llmwire.Message) ([]any, error) {
	out := make([]any, 0, len(msgs))
	for i, m := range msgs {
		items, err := encodeMessage(m)
		if err != nil {
			return nil, fmt.Errorf("input[%d]: %w", i, err)
		}
		out = append(out, items...)
	}
	return out, nil
}

func encodeMessage(m llmwire.Message) ([]any, error) {
	switch m.Role {
	case llmwire.RoleSystem, llmwire.RoleDeveloper:
		return []any{message(string(m.Role), m.Text())}, nil

	case llmwire.RoleUser:
		var items []any
		var parts []llmwire.ContentBlock
		for _, block := range m.Content {
			if tr, ok := block.(llmwire.ToolResultBlock); ok {
				items = append(items, functionCallOutput(tr.ToolUseID, toolResultText(tr)))
				continue
			}
			parts = append(parts, block)
		}
		if len(parts) == 0 {
			return items, nil
		}
		if tb, ok := parts[0].(llmwire.TextBlock); ok && len(parts) == 1 {
			return append(items, message("user", tb.Text)), nil
		}
		content, err := registry.SerializeAll(parts)
		if err != nil {
			return nil, err
		}
		return append(items, message("user", content)), nil

	case llmwire.RoleAssistant:
		return encodeAssistant(m), nil

	case llmwire.RoleTool:
		if m.ToolCallID == "" {
			return nil, &llmwire.ValidationError{Field: "input.call_id", Value: m.ToolCallID, Reason: "required for tool messages"}
		}
		return []any{functionCallOutput(m.ToolCallID, m.Text())}, nil

	default:
		return nil, &llmwire.CastError{Kind: "role", Value: m.Role, Reason: "unknown role", Provider: llmwire.ProviderOpenAIResponses}
	}
}

func encodeAssistant(m llmwire.Message) []any {
	var items []any
	if text := m.Text(); text != "" {
		items = append(items, message("assistant", []any{
			map[string]any{"type": "output_text", "text": text},
		}))
	}
	if m.Refusal != "" {
		items = append(items, message("assistant", []any{
			map[string]any{"type": "refusal", "refusal": m.Refusal},
		}))
	}

	seen := make(map[string]bool)
	for _, block := range m.Content {
		if tu, ok := block.(llmwire.ToolUseBlock); ok {
			seen[tu.ID] = true
			items = append(items, functionCall(tu.ID, tu.Name, llmwire.EncodeArguments(tu.Input)))
		}
	}
	for _, call := range m.ToolCalls {
		if call.ID != "" && seen[call.ID] {
			continue
		}
		args := call.Arguments
		if args == "" {
			args = llmwire.EncodeArguments(call.Params)
		}
		items = append(items, functionCall(call.ID, call.Name, args))
	}
	return items
}

func message(role string, content any) map[string]any {
	return map[string]any{"type": "message", "role": role, "content": content}
}

func functionCall(callID, name, arguments string) map[string]any {
	return map[string]any{
		"type":      "function_call",
		"call_id":   callID,
		"name":      name,
		"arguments": arguments,
	}
}

func functionCallOutput(callID, output string) map[string]any {
	return map[string]any{
		"type":    "function_call_output",
		"call_id": callID,
		"output":  output,
	}
}

func toolResultText(tr llmwire.ToolResultBlock) string {
	if tr.Text != "" || len(tr.Content) == 0 {
		return tr.Text
	}
	inner := llmwire.Message{Content: tr.Content}
	return inner.Text()
}

// WireTools renders tools in the flat Responses shape
// {type:"function", name, description, parameters, strict}.
func WireTools(tools []llmwire.Tool) []any {
	out := make([]any, 0, len(tools))
	for _, tool := range tools {
		t := map[string]any{
			"type":       "function",
			"name":       tool.Name,
			"parameters": llmwire.Keep(tool.ParameterSchema()),
		}
		llmwire.PutString(t, "description", tool.Description)
		llmwire.Put(t, "strict", tool.Strict)
		out = append(out, t)
	}
	return out
}

// WireToolChoice renders "auto", "none", "required" or {type:"function", name}.
func WireToolChoice(tc *llmwire.ToolChoice) any {
	if tc == nil {
		return nil
	}
	if tc.Mode == llmwire.ToolChoiceTool {
		return map[string]any{"type": "function", "name": tc.Name}
	}
	return string(tc.Mode)
}

// WireFormat renders a response format as text.format. Unlike Chat
// Completions the schema fields sit next to the type.
func WireFormat(f *llmwire.ResponseFormat) map[string]any {
	out := map[string]any{"type": string(f.Type)}
	if f.Type == llmwire.FormatJSONSchema && f.JSONSchema != nil {
		out["name"] = f.JSONSchema.Name
		out["schema"] = llmwire.Keep(f.JSONSchema.Schema)
		llmwire.PutString(out, "description", f.JSONSchema.Description)
		llmwire.Put(out, "strict", f.JSONSchema.Strict)
	}
	return out
}
