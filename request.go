package llmwire

import (
	"encoding/json"
	"fmt"

	"github.com/samber/lo"
)

// GenerateRequest is the canonical input of one generation call.
type GenerateRequest struct {
	// Model is the model identifier (e.g., "gpt-4o", "claude-sonnet-4-5")
	Model string

	// Instructions are translated into provider-native system/developer
	// messages and prepended to Messages.
	Instructions []string

	// Messages contains the conversation history.
	Messages []Message

	// Params holds the resolved generation parameters.
	Params *Params

	Tools          []Tool
	ToolChoice     *ToolChoice
	ResponseFormat *ResponseFormat

	// Extensions carries provider-specific fields, e.g. OpenRouter
	// "models" or "provider", Responses "previous_response_id".
	Extensions map[string]any
}

// Validate checks provider-independent constraints.
func (r *GenerateRequest) Validate() error {
	if r.Model == "" {
		return &ValidationError{Field: "model", Value: r.Model, Reason: "is required"}
	}
	if len(r.Messages) == 0 && len(r.Instructions) == 0 {
		return &ValidationError{Field: "messages", Value: nil, Reason: "is required"}
	}
	for i := range r.Messages {
		if err := r.Messages[i].Validate(); err != nil {
			return fmt.Errorf("messages[%d]: %w", i, err)
		}
	}
	for i := range r.Tools {
		if err := r.Tools[i].Validate(); err != nil {
			return fmt.Errorf("tools[%d]: %w", i, err)
		}
	}
	if r.ToolChoice != nil {
		if err := r.ToolChoice.Validate(); err != nil {
			return err
		}
	}
	if r.ResponseFormat != nil {
		if err := r.ResponseFormat.Validate(); err != nil {
			return err
		}
	}
	return r.Params.Validate()
}

// Extension returns a provider-specific field.
func (r *GenerateRequest) Extension(key string) (any, bool) {
	v, ok := r.Extensions[key]
	return v, ok
}

// Clone returns a copy that can be modified without affecting r.
func (r *GenerateRequest) Clone() *GenerateRequest {
	cp := *r
	cp.Instructions = append([]string(nil), r.Instructions...)
	cp.Messages = append([]Message(nil), r.Messages...)
	cp.Tools = append([]Tool(nil), r.Tools...)
	if r.ToolChoice != nil {
		tc := *r.ToolChoice
		cp.ToolChoice = &tc
	}
	cp.Extensions = cloneMap(r.Extensions)
	return &cp
}

// MergeMessages appends the entries of incoming that are not already in
// existing. Repeating a merge with overlapping messages never duplicates.
func MergeMessages(existing, incoming []Message) []Message {
	seen := make(map[string]bool, len(existing)+len(incoming))
	for _, m := range existing {
		seen[fingerprint(m)] = true
	}

	out := append([]Message(nil), existing...)
	for _, m := range incoming {
		fp := fingerprint(m)
		if seen[fp] {
			continue
		}
		seen[fp] = true
		out = append(out, m)
	}
	return out
}

// fingerprint encodes a message deterministically for equality checks.
func fingerprint(m Message) string {
	type block struct {
		Type  BlockType `json:"type"`
		Value any       `json:"value"`
		Inner []string  `json:"inner,omitempty"`
	}
	blocks := lo.Map(m.Content, func(b ContentBlock, _ int) block {
		fb := block{Type: b.Type(), Value: b}
		if tr, ok := b.(ToolResultBlock); ok {
			fb.Inner = lo.Map(tr.Content, func(inner ContentBlock, _ int) string {
				return fingerprint(Message{Content: []ContentBlock{inner}})
			})
		}
		return fb
	})

	data, err := json.Marshal(struct {
		Msg    Message `json:"msg"`
		Blocks []block `json:"blocks"`
	}{m, blocks})
	if err != nil {
		return fmt.Sprintf("%#v", m)
	}
	return string(data)
}

// CastMessage normalizes a loosely-typed message: a bare string becomes a
// user text message; a map needs "role" and "content" (string or block
// list, cast through reg); a Message is validated as-is.
func CastMessage(raw any, reg *BlockRegistry) (Message, error) {
	switch v := raw.(type) {
	case Message:
		return v, v.Validate()
	case *Message:
		return *v, v.Validate()
	case string:
		msg := NewTextMessage(RoleUser, v)
		return msg, msg.Validate()
	case map[string]any:
		return castMessageMap(v, reg)
	default:
		return Message{}, &CastError{Kind: "message", Value: raw, Reason: fmt.Sprintf("unsupported message type %T", raw)}
	}
}

// CastMessages normalizes a string, a single message, or a list.
func CastMessages(raw any, reg *BlockRegistry) ([]Message, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []Message:
		for i := range v {
			if err := v[i].Validate(); err != nil {
				return nil, fmt.Errorf("messages[%d]: %w", i, err)
			}
		}
		return v, nil
	case []any:
		out := make([]Message, 0, len(v))
		for i, item := range v {
			msg, err := CastMessage(item, reg)
			if err != nil {
				return nil, fmt.Errorf("messages[%d]: %w", i, err)
			}
			out = append(out, msg)
		}
		return out, nil
	case []map[string]any:
		return CastMessages(lo.Map(v, func(m map[string]any, _ int) any { return m }), reg)
	default:
		msg, err := CastMessage(v, reg)
		if err != nil {
			return nil, err
		}
		return []Message{msg}, nil
	}
}

func castMessageMap(raw map[string]any, reg *BlockRegistry) (Message, error) {
	role, err := ParseRole(StringField(raw, "role"))
	if err != nil {
		return Message{}, err
	}

	msg := Message{
		Role:       role,
		Name:       StringField(raw, "name"),
		ToolCallID: StringField(raw, "tool_call_id"),
		Refusal:    StringField(raw, "refusal"),
	}
	msg.ActionID = msg.ToolCallID

	if content, ok := raw["content"]; ok && content != nil {
		blocks, err := reg.CastAll(content)
		if err != nil {
			return Message{}, err
		}
		msg.Content = blocks
	}

	for i, item := range SliceField(raw, "tool_calls") {
		tc, ok := item.(map[string]any)
		if !ok {
			return Message{}, &CastError{Kind: "tool_call", Value: item, Reason: fmt.Sprintf("tool_calls[%d] is not an object", i)}
		}
		fn := MapField(tc, "function")
		if fn == nil {
			fn = tc
		}
		call := ToolCall{ID: StringField(tc, "id"), Name: StringField(fn, "name")}
		switch args := fn["arguments"].(type) {
		case string:
			call.Arguments = args
			call.Params = ParseArguments(args)
		case map[string]any:
			call.Params = args
			call.Arguments = EncodeArguments(args)
		}
		msg.ToolCalls = append(msg.ToolCalls, call)
	}

	return msg, msg.Validate()
}
