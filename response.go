package llmwire

import (
	"encoding/json"
)

// ResponseKind distinguishes generation from embedding responses.
type ResponseKind string

const (
	KindPrompt ResponseKind = "prompt"
	KindEmbed  ResponseKind = "embed"
)

// Canonical finish reasons. Providers map their own vocabulary onto these
// and keep the original in Response.RawFinishReason.
const (
	FinishStop          = "stop"
	FinishLength        = "length"
	FinishToolCalls     = "tool_calls"
	FinishContentFilter = "content_filter"
)

// Usage reports token counts.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens,omitempty"`

	// Optional breakdowns; zero when the provider does not report them.
	CachedTokens    int `json:"cached_tokens,omitempty"`
	ReasoningTokens int `json:"reasoning_tokens,omitempty"`
	AudioTokens     int `json:"audio_tokens,omitempty"`
}

// Validate checks that prompt usage reports input and output tokens and
// embed usage reports input tokens.
func (u *Usage) Validate(kind ResponseKind) error {
	if u == nil {
		return nil
	}
	if u.InputTokens < 0 || u.OutputTokens < 0 {
		return &ValidationError{Field: "usage", Value: *u, Reason: "token counts must be non-negative"}
	}
	if kind == KindEmbed && u.OutputTokens != 0 {
		return &ValidationError{Field: "usage.output_tokens", Value: u.OutputTokens, Reason: "embed responses report input tokens only"}
	}
	return nil
}

// Total returns TotalTokens or input+output when the provider omitted it.
func (u *Usage) Total() int {
	if u.TotalTokens > 0 {
		return u.TotalTokens
	}
	return u.InputTokens + u.OutputTokens
}

// Response is the normalized result of one generation call.
type Response struct {
	Kind  ResponseKind
	ID    string
	Model string

	// Message is the generated assistant message (prompt responses).
	Message *Message

	// Embeddings holds one vector per input (embed responses).
	Embeddings [][]float64

	Usage *Usage

	// FinishReason is one of the canonical Finish* values.
	FinishReason string

	// RawFinishReason is the provider's own value, e.g. "end_turn".
	RawFinishReason string

	// RawResponse is the vendor payload retained for introspection.
	RawResponse json.RawMessage
}

// ToolCalls returns the tool calls requested by the response message.
func (r *Response) ToolCalls() []ToolCall {
	if r == nil || r.Message == nil {
		return nil
	}
	return r.Message.ToolCalls
}
