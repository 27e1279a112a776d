package openai

import (
	"encoding/json"
	"fmt"

	"github.com/haowjy/llmwire-go"
	openai "github.com/sashabaranov/go-openai"
)

// NormalizeFinishReason maps a Chat Completions finish reason onto the
// canonical set. The legacy "function_call" becomes tool_calls.
func NormalizeFinishReason(raw string) string {
	switch openai.FinishReason(raw) {
	case openai.FinishReasonFunctionCall:
		return llmwire.FinishToolCalls
	case openai.FinishReasonNull:
		return ""
	default:
		return raw
	}
}

// UsageFrom converts go-openai usage, including the token breakdowns.
func UsageFrom(u openai.Usage) *llmwire.Usage {
	usage := &llmwire.Usage{
		InputTokens:  u.PromptTokens,
		OutputTokens: u.CompletionTokens,
		TotalTokens:  u.TotalTokens,
	}
	if d := u.PromptTokensDetails; d != nil {
		usage.CachedTokens = d.CachedTokens
		usage.AudioTokens = d.AudioTokens
	}
	if d := u.CompletionTokensDetails; d != nil {
		usage.ReasoningTokens = d.ReasoningTokens
		usage.AudioTokens += d.AudioTokens
	}
	return usage
}

// DecodeResponse normalizes a chat.completion body. Only the first choice
// becomes the response message.
func DecodeResponse(provider llmwire.ProviderID, raw json.RawMessage) (*llmwire.Response, error) {
	var resp openai.ChatCompletionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("parse chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, &llmwire.ProviderError{
			Provider: provider,
			Message:  "response contained no choices",
			Err:      llmwire.ErrProviderUnavailable,
		}
	}

	choice := resp.Choices[0]
	msg, err := fromNative(choice.Message)
	if err != nil {
		return nil, err
	}

	return &llmwire.Response{
		Kind:            llmwire.KindPrompt,
		ID:              resp.ID,
		Model:           resp.Model,
		Message:         &msg,
		Usage:           UsageFrom(resp.Usage),
		FinishReason:    NormalizeFinishReason(string(choice.FinishReason)),
		RawFinishReason: string(choice.FinishReason),
	}, nil
}

// ChunkDecoder decodes chat.completion.chunk events.
type ChunkDecoder struct{}

// Decode converts one chunk. Choices other than the first are ignored.
func (ChunkDecoder) Decode(raw json.RawMessage) ([]llmwire.Chunk, error) {
	var ev openai.ChatCompletionStreamResponse
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("parse chat completion chunk: %w", err)
	}
	return []llmwire.Chunk{ChunkFrom(ev)}, nil
}

// ChunkFrom converts a decoded stream event.
func ChunkFrom(ev openai.ChatCompletionStreamResponse) llmwire.Chunk {
	chunk := llmwire.Chunk{ID: ev.ID, Model: ev.Model}
	if ev.Usage != nil {
		chunk.Usage = UsageFrom(*ev.Usage)
	}

	for _, choice := range ev.Choices {
		if choice.Index != 0 {
			continue
		}
		d := choice.Delta
		if d.Role != "" {
			chunk.Role = &d.Role
		}
		if d.Content != "" {
			chunk.Content = &d.Content
		}
		if d.ReasoningContent != "" {
			chunk.Thinking = &d.ReasoningContent
		}
		for _, tc := range d.ToolCalls {
			chunk.ToolCalls = append(chunk.ToolCalls, toolCallDelta(tc))
		}
		if reason := NormalizeFinishReason(string(choice.FinishReason)); reason != "" {
			chunk.FinishReason = &reason
			chunk.RawFinishReason = string(choice.FinishReason)
		}
	}
	return chunk
}

func toolCallDelta(tc openai.ToolCall) llmwire.ToolCallDelta {
	delta := llmwire.ToolCallDelta{Arguments: tc.Function.Arguments}
	if tc.Index != nil {
		delta.Index = *tc.Index
	}
	if tc.ID != "" {
		id := tc.ID
		delta.ID = &id
	}
	if tc.Function.Name != "" {
		name := tc.Function.Name
		delta.Name = &name
	}
	return delta
}
