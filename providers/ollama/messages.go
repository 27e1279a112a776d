package ollama

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/haowjy/llmwire-go"
)

// CastInput converts any accepted message input into canonical messages:
// a string, a map in Ollama shape (content string, images, thinking,
// tool_name), a llmwire.Message, an api.Message, or a slice of those.
func CastInput(raw any) ([]llmwire.Message, error) {
	switch v := raw.(type) {
	case api.Message:
		msg, err := FromNative(v)
		if err != nil {
			return nil, err
		}
		return []llmwire.Message{msg}, nil
	case []api.Message:
		out := make([]llmwire.Message, 0, len(v))
		for i, native := range v {
			msg, err := FromNative(native)
			if err != nil {
				return nil, fmt.Errorf("messages[%d]: %w", i, err)
			}
			out = append(out, msg)
		}
		return out, nil
	case map[string]any:
		msg, err := castMap(v)
		if err != nil {
			return nil, err
		}
		return []llmwire.Message{msg}, nil
	case []any:
		out := make([]llmwire.Message, 0, len(v))
		for i, item := range v {
			msgs, err := CastInput(item)
			if err != nil {
				return nil, fmt.Errorf("messages[%d]: %w", i, err)
			}
			out = append(out, msgs...)
		}
		return out, nil
	default:
		return llmwire.CastMessages(raw, registry)
	}
}

// castMap handles the Ollama-only keys on top of the generic message cast.
func castMap(raw map[string]any) (llmwire.Message, error) {
	base := llmwire.CloneMap(raw)
	delete(base, "images")
	delete(base, "thinking")
	delete(base, "tool_name")
	if s, ok := base["content"].(string); ok && s == "" {
		delete(base, "content")
	}

	// images or thinking may be the only content, so the generic
	// content check is repeated below once they are added
	msg, err := llmwire.CastMessage(base, registry)
	if err != nil && !llmwire.IsInvalidRequest(err) {
		return llmwire.Message{}, err
	}

	var extra []llmwire.ContentBlock
	if thinking := llmwire.StringField(raw, "thinking"); thinking != "" {
		extra = append(extra, llmwire.ThinkingBlock{Thinking: thinking})
	}
	for i, item := range llmwire.SliceField(raw, "images") {
		data, ok := item.(string)
		if !ok {
			return llmwire.Message{}, &llmwire.CastError{Kind: "image", Value: item, Reason: fmt.Sprintf("images[%d] must be a base64 string", i), Provider: llmwire.ProviderOllama}
		}
		block, err := castImage(map[string]any{"data": data})
		if err != nil {
			return llmwire.Message{}, err
		}
		extra = append(extra, block)
	}

	msg.Content = append(extra, msg.Content...)
	msg.ActionName = llmwire.StringField(raw, "tool_name")
	return msg, msg.Validate()
}

// FromNative converts an ollama api.Message into the canonical form.
func FromNative(m api.Message) (llmwire.Message, error) {
	role, err := llmwire.ParseRole(m.Role)
	if err != nil {
		return llmwire.Message{}, err
	}

	msg := llmwire.Message{Role: role, ActionName: m.ToolName}
	if m.Thinking != "" {
		msg.Content = append(msg.Content, llmwire.ThinkingBlock{Thinking: m.Thinking})
	}
	if m.Content != "" {
		msg.Content = append(msg.Content, llmwire.TextBlock{Text: m.Content})
	}
	for _, img := range m.Images {
		msg.Content = append(msg.Content, llmwire.ImageBlock{
			MediaType: http.DetectContentType(img),
			Data:      base64.StdEncoding.EncodeToString(img),
		})
	}
	for _, tc := range m.ToolCalls {
		params := map[string]any(tc.Function.Arguments)
		msg.ToolCalls = append(msg.ToolCalls, llmwire.ToolCall{
			Name:      tc.Function.Name,
			Arguments: llmwire.EncodeArguments(params),
			Params:    params,
		})
	}
	return msg, msg.Validate()
}

// EncodeMessages renders canonical messages as Ollama chat messages. Text
// blocks are joined with newlines, images are lifted into images and
// thinking into thinking. Tool results become tool-role messages matched
// by tool_name; Ollama issues no call ids.
func EncodeMessages(msgs []llmwire.Message) ([]any, error) {
	out := make([]any, 0, len(msgs))
	for i, m := range msgs {
		wire, err := encodeMessage(m)
		if err != nil {
			return nil, fmt.Errorf("messages[%d]: %w", i, err)
		}
		out = append(out, wire...)
	}
	return out, nil
}

type folded struct {
	text     []string
	images   []any
	thinking strings.Builder
	calls    []any
	results  []any
}

func encodeMessage(m llmwire.Message) ([]any, error) {
	var role string
	switch m.Role {
	case llmwire.RoleSystem, llmwire.RoleDeveloper:
		role = "system"
	case llmwire.RoleUser, llmwire.RoleAssistant, llmwire.RoleTool:
		role = string(m.Role)
	default:
		return nil, &llmwire.CastError{Kind: "role", Value: m.Role, Reason: "unknown role", Provider: llmwire.ProviderOllama}
	}

	f, err := fold(m)
	if err != nil {
		return nil, err
	}

	if m.Role == llmwire.RoleTool {
		name := m.ActionName
		if name == "" {
			name = m.Name
		}
		return []any{map[string]any{"role": "tool", "content": strings.Join(f.text, "\n"), "tool_name": name}}, nil
	}

	wire := map[string]any{
		"role":    role,
		"content": strings.Join(f.text, "\n"),
	}
	if len(f.images) > 0 {
		wire["images"] = f.images
	}
	if m.Role == llmwire.RoleAssistant {
		llmwire.PutString(wire, "thinking", f.thinking.String())
		calls := f.calls
		for _, call := range m.ToolCalls {
			if !hasCall(f.calls, call.Name) {
				params := call.Params
				if params == nil {
					params = llmwire.ParseArguments(call.Arguments)
				}
				calls = append(calls, wireToolCall(call.Name, params))
			}
		}
		if len(calls) > 0 {
			wire["tool_calls"] = calls
		}
	}

	// tool results carried as blocks precede the rest of the user turn
	if len(f.results) > 0 && len(f.text) == 0 && len(f.images) == 0 {
		return f.results, nil
	}
	return append(f.results, wire), nil
}

func fold(m llmwire.Message) (*folded, error) {
	f := &folded{}
	for _, block := range m.Content {
		b, err := registry.Serialize(block)
		if err != nil {
			return nil, err
		}
		switch llmwire.StringField(b, "type") {
		case "text":
			f.text = append(f.text, llmwire.StringField(b, "text"))
		case "image":
			f.images = append(f.images, b["data"])
		case "thinking":
			f.thinking.WriteString(llmwire.StringField(b, "thinking"))
		case "tool_use":
			f.calls = append(f.calls, wireToolCall(llmwire.StringField(b, "name"), llmwire.MapField(b, "arguments")))
		case "tool_result":
			f.results = append(f.results, map[string]any{
				"role":      "tool",
				"content":   llmwire.StringField(b, "content"),
				"tool_name": toolNameFor(m, llmwire.StringField(b, "tool_use_id")),
			})
		}
	}
	return f, nil
}

// toolNameFor falls back to the correlation id when no name is known.
func toolNameFor(m llmwire.Message, id string) string {
	if m.ActionName != "" {
		return m.ActionName
	}
	return id
}

func wireToolCall(name string, arguments map[string]any) map[string]any {
	if arguments == nil {
		arguments = map[string]any{}
	}
	return map[string]any{
		"function": map[string]any{
			"name":      name,
			"arguments": llmwire.Keep(arguments),
		},
	}
}

func hasCall(calls []any, name string) bool {
	for _, c := range calls {
		fn := llmwire.MapField(c.(map[string]any), "function")
		if llmwire.StringField(fn, "name") == name {
			return true
		}
	}
	return false
}
