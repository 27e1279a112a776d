package llmwire

import (
	"fmt"
	"strings"
)

// Role identifies the author of a message.
type Role string

// Canonical roles. Providers remap these to their own vocabulary
// (e.g. system → developer for OpenAI reasoning models).
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleDeveloper Role = "developer"
)

// ParseRole converts a raw role string into a Role.
// Unknown roles are rejected with a *CastError.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool, RoleDeveloper:
		return r, nil
	default:
		return "", &CastError{Kind: "role", Value: s, Reason: "unknown role"}
	}
}

// Message is the canonical, provider-agnostic message.
//
// Content is an ordered list of typed blocks. A plain string prompt is
// represented as a single TextBlock.
type Message struct {
	// Role is the author of the message.
	Role Role `json:"role"`

	// Content holds the ordered content blocks.
	Content []ContentBlock `json:"-"`

	// Name is an optional participant name (OpenAI "name" field).
	Name string `json:"name,omitempty"`

	// ToolCallID correlates a tool-role message with the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// ToolCalls are the actions an assistant message requests.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ActionID and ActionName echo the tool invocation that produced a
	// tool-role message. Ollama correlates results by name only.
	ActionID   string `json:"action_id,omitempty"`
	ActionName string `json:"action_name,omitempty"`

	// Refusal is set when the model declined to answer.
	Refusal string `json:"refusal,omitempty"`

	// ContentType is "application/json" once structured output was applied.
	ContentType string `json:"content_type,omitempty"`

	// RawContent keeps the original text when structured output was applied.
	RawContent string `json:"raw_content,omitempty"`

	// Parsed holds the decoded JSON value (map[string]any or []any) after a
	// successful structured-output parse. It is nil after a soft failure.
	Parsed any `json:"parsed,omitempty"`
}

// NewTextMessage creates a message with a single text block.
func NewTextMessage(role Role, text string) Message {
	return Message{
		Role:    role,
		Content: []ContentBlock{TextBlock{Text: text}},
	}
}

// NewToolResultMessage creates a tool-role message answering callID.
func NewToolResultMessage(callID, name, output string) Message {
	return Message{
		Role:       RoleTool,
		Content:    []ContentBlock{TextBlock{Text: output}},
		ToolCallID: callID,
		ActionID:   callID,
		ActionName: name,
	}
}

// Text returns the concatenated text of all text blocks.
func (m *Message) Text() string {
	var sb strings.Builder
	for _, block := range m.Content {
		if tb, ok := block.(TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	return sb.String()
}

// Value returns the parsed structured output when available, otherwise
// the message text. Callers that requested JSON must type-switch on the
// result rather than trust ContentType.
func (m *Message) Value() any {
	if m.Parsed != nil {
		return m.Parsed
	}
	return m.Text()
}

// Validate checks that a message carries content. Assistant messages may
// omit content when they carry tool calls or a refusal.
func (m *Message) Validate() error {
	if len(m.Content) > 0 {
		return nil
	}
	if m.Role == RoleAssistant && (len(m.ToolCalls) > 0 || m.Refusal != "") {
		return nil
	}
	return &ValidationError{
		Field:  "messages.content",
		Value:  m.Role,
		Reason: fmt.Sprintf("%s message requires content", m.Role),
		Err:    ErrInvalidRequest,
	}
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	// ID is the provider-issued correlation id. It is never generated locally.
	ID string `json:"id,omitempty"`

	// Name is the tool name.
	Name string `json:"name"`

	// Arguments is the raw JSON argument string as streamed or returned.
	Arguments string `json:"arguments,omitempty"`

	// Params is the decoded argument object, nil when Arguments is not valid JSON.
	Params map[string]any `json:"params,omitempty"`
}
