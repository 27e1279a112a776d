package openai

import (
	"fmt"
	"strings"

	"github.com/haowjy/llmwire-go"
	openai "github.com/sashabaranov/go-openai"
)

// reasoningPrefixes identify models that take instructions under the
// developer role.
var reasoningPrefixes = []string{"o1", "o3", "o4", "gpt-5"}

// IsReasoningModel reports whether model belongs to a reasoning family.
// A vendor prefix such as "openai/" is ignored.
func IsReasoningModel(model string) bool {
	model = bareModel(model)
	for _, prefix := range reasoningPrefixes {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

// bareModel strips a vendor prefix: "openai/o3" becomes "o3".
func bareModel(model string) string {
	if i := strings.LastIndex(model, "/"); i >= 0 {
		return model[i+1:]
	}
	return model
}

// CastInput converts any accepted message input into canonical messages:
// a string, a map, a llmwire.Message, a go-openai ChatCompletionMessage, or
// a slice of those.
func CastInput(raw any) ([]llmwire.Message, error) {
	switch v := raw.(type) {
	case openai.ChatCompletionMessage:
		msg, err := FromNative(v)
		if err != nil {
			return nil, err
		}
		return []llmwire.Message{msg}, nil
	case []openai.ChatCompletionMessage:
		out := make([]llmwire.Message, 0, len(v))
		for i, native := range v {
			msg, err := FromNative(native)
			if err != nil {
				return nil, fmt.Errorf("messages[%d]: %w", i, err)
			}
			out = append(out, msg)
		}
		return out, nil
	default:
		return llmwire.CastMessages(raw, registry)
	}
}

// FromNative converts a go-openai message into the canonical form.
func FromNative(m openai.ChatCompletionMessage) (llmwire.Message, error) {
	msg, err := fromNative(m)
	if err != nil {
		return llmwire.Message{}, err
	}
	return msg, msg.Validate()
}

func fromNative(m openai.ChatCompletionMessage) (llmwire.Message, error) {
	role, err := llmwire.ParseRole(m.Role)
	if err != nil {
		return llmwire.Message{}, err
	}

	msg := llmwire.Message{
		Role:       role,
		Name:       m.Name,
		ToolCallID: m.ToolCallID,
		ActionID:   m.ToolCallID,
		Refusal:    m.Refusal,
	}

	if m.ReasoningContent != "" {
		msg.Content = append(msg.Content, llmwire.ThinkingBlock{Thinking: m.ReasoningContent})
	}
	if m.Content != "" {
		msg.Content = append(msg.Content, llmwire.TextBlock{Text: m.Content})
	}
	for i, part := range m.MultiContent {
		block, err := fromNativePart(part)
		if err != nil {
			return llmwire.Message{}, fmt.Errorf("content[%d]: %w", i, err)
		}
		msg.Content = append(msg.Content, block)
	}

	for _, tc := range m.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, llmwire.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
			Params:    llmwire.ParseArguments(tc.Function.Arguments),
		})
	}
	return msg, nil
}

func fromNativePart(part openai.ChatMessagePart) (llmwire.ContentBlock, error) {
	switch part.Type {
	case openai.ChatMessagePartTypeText:
		return registry.Cast(part.Text)
	case openai.ChatMessagePartTypeImageURL:
		if part.ImageURL == nil {
			return nil, &llmwire.CastError{Kind: "image", Value: part, Reason: "missing image_url", Provider: llmwire.ProviderOpenAI}
		}
		return registry.Cast(llmwire.ImageBlock{URL: part.ImageURL.URL, Detail: string(part.ImageURL.Detail)})
	default:
		return nil, &llmwire.CastError{Kind: "content", Value: part.Type, Reason: "unknown content type", Provider: llmwire.ProviderOpenAI}
	}
}

// MessageEncoder renders canonical messages as Chat Completions messages.
type MessageEncoder struct {
	Registry *llmwire.BlockRegistry

	// Developer renames system messages to developer.
	Developer bool
}

// Encode renders msgs in order. One canonical message may expand into
// several wire messages: tool results carried as blocks become tool-role
// messages.
func (e MessageEncoder) Encode(msgs []llmwire.Message) ([]any, error) {
	out := make([]any, 0, len(msgs))
	for i, m := range msgs {
		wire, err := e.encode(m)
		if err != nil {
			return nil, fmt.Errorf("messages[%d]: %w", i, err)
		}
		out = append(out, wire...)
	}
	return out, nil
}

func (e MessageEncoder) encode(m llmwire.Message) ([]any, error) {
	switch m.Role {
	case llmwire.RoleSystem, llmwire.RoleDeveloper:
		role := string(m.Role)
		if m.Role == llmwire.RoleSystem && e.Developer {
			role = string(llmwire.RoleDeveloper)
		}
		msg := map[string]any{"role": role, "content": m.Text()}
		llmwire.PutString(msg, "name", m.Name)
		return []any{msg}, nil

	case llmwire.RoleUser:
		return e.encodeUser(m)

	case llmwire.RoleAssistant:
		return []any{e.encodeAssistant(m)}, nil

	case llmwire.RoleTool:
		if m.ToolCallID == "" {
			return nil, &llmwire.ValidationError{Field: "messages.tool_call_id", Value: m.ToolCallID, Reason: "required for tool messages"}
		}
		return []any{map[string]any{"role": "tool", "tool_call_id": m.ToolCallID, "content": m.Text()}}, nil

	default:
		return nil, &llmwire.CastError{Kind: "role", Value: m.Role, Reason: "unknown role", Provider: e.Registry.Provider()}
	}
}

func (e MessageEncoder) encodeUser(m llmwire.Message) ([]any, error) {
	var (
		out   []any
		parts []llmwire.ContentBlock
	)
	for _, block := range m.Content {
		if tr, ok := block.(llmwire.ToolResultBlock); ok {
			out = append(out, map[string]any{
				"role":         "tool",
				"tool_call_id": tr.ToolUseID,
				"content":      toolResultText(tr),
			})
			continue
		}
		parts = append(parts, block)
	}
	if len(parts) == 0 {
		return out, nil
	}

	msg := map[string]any{"role": "user"}
	llmwire.PutString(msg, "name", m.Name)
	if tb, ok := parts[0].(llmwire.TextBlock); ok && len(parts) == 1 {
		msg["content"] = tb.Text
	} else {
		wire, err := e.Registry.SerializeAll(parts)
		if err != nil {
			return nil, err
		}
		msg["content"] = wire
	}
	return append(out, msg), nil
}

func (e MessageEncoder) encodeAssistant(m llmwire.Message) map[string]any {
	msg := map[string]any{"role": "assistant"}
	llmwire.PutString(msg, "name", m.Name)
	llmwire.PutString(msg, "refusal", m.Refusal)
	if text := m.Text(); text != "" {
		msg["content"] = text
	}

	calls := make([]any, 0, len(m.ToolCalls))
	seen := make(map[string]bool)
	for _, block := range m.Content {
		if tu, ok := block.(llmwire.ToolUseBlock); ok {
			seen[tu.ID] = true
			calls = append(calls, wireToolCall(tu.ID, tu.Name, llmwire.EncodeArguments(tu.Input)))
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
		calls = append(calls, wireToolCall(call.ID, call.Name, args))
	}
	msg["tool_calls"] = calls
	return msg
}

func wireToolCall(id, name, arguments string) map[string]any {
	return map[string]any{
		"id":   id,
		"type": "function",
		"function": map[string]any{
			"name":      name,
			"arguments": arguments,
		},
	}
}

func toolResultText(tr llmwire.ToolResultBlock) string {
	if tr.Text != "" || len(tr.Content) == 0 {
		return tr.Text
	}
	inner := llmwire.Message{Content: tr.Content}
	return inner.Text()
}
