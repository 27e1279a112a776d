package ollama

import (
	"encoding/json"
	"fmt"

	"github.com/ollama/ollama/api"

	"github.com/haowjy/llmwire-go"
)

// errorBody is the {"error": "..."} line Ollama writes instead of a chunk.
type errorBody struct {
	Error string `json:"error"`
}

func inBandError(raw json.RawMessage) error {
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		return nil
	}
	return &llmwire.ProviderError{
		Provider: llmwire.ProviderOllama,
		Message:  body.Error,
		Err:      llmwire.ErrProviderUnavailable,
	}
}

// finishReason maps done_reason. load and unload only occur on empty
// requests and are treated as stop.
func finishReason(doneReason string, toolCalls bool) string {
	switch {
	case doneReason == "length":
		return llmwire.FinishLength
	case toolCalls:
		return llmwire.FinishToolCalls
	default:
		return llmwire.FinishStop
	}
}

func usage(resp api.ChatResponse) *llmwire.Usage {
	return &llmwire.Usage{
		InputTokens:  resp.PromptEvalCount,
		OutputTokens: resp.EvalCount,
		TotalTokens:  resp.PromptEvalCount + resp.EvalCount,
	}
}

func toolCall(tc api.ToolCall) llmwire.ToolCall {
	params := map[string]any(tc.Function.Arguments)
	if params == nil {
		params = map[string]any{}
	}
	return llmwire.ToolCall{
		Name:      tc.Function.Name,
		Arguments: llmwire.EncodeArguments(params),
		Params:    params,
	}
}

// DecodeResponse normalizes a non-streaming /api/chat body.
func DecodeResponse(raw json.RawMessage) (*llmwire.Response, error) {
	if err := inBandError(raw); err != nil {
		return nil, err
	}

	var resp api.ChatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("parse chat response: %w", err)
	}

	msg := llmwire.Message{Role: llmwire.RoleAssistant}
	if resp.Message.Thinking != "" {
		msg.Content = append(msg.Content, llmwire.ThinkingBlock{Thinking: resp.Message.Thinking})
	}
	if resp.Message.Content != "" {
		msg.Content = append(msg.Content, llmwire.TextBlock{Text: resp.Message.Content})
	}
	for _, tc := range resp.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, toolCall(tc))
	}

	return &llmwire.Response{
		Kind:            llmwire.KindPrompt,
		Model:           resp.Model,
		Message:         &msg,
		Usage:           usage(resp),
		FinishReason:    finishReason(resp.DoneReason, len(msg.ToolCalls) > 0),
		RawFinishReason: resp.DoneReason,
	}, nil
}

// ChunkDecoder decodes the NDJSON stream. Ollama sends each tool call
// whole, so calls get consecutive indexes in arrival order.
type ChunkDecoder struct {
	calls int
}

// NewChunkDecoder returns a decoder for one stream.
func NewChunkDecoder() *ChunkDecoder {
	return &ChunkDecoder{}
}

// Decode converts one stream line.
func (d *ChunkDecoder) Decode(raw json.RawMessage) ([]llmwire.Chunk, error) {
	if err := inBandError(raw); err != nil {
		return nil, err
	}

	var resp api.ChatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("parse stream chunk: %w", err)
	}

	chunk := llmwire.Chunk{Model: resp.Model}
	if resp.Message.Role != "" {
		role := resp.Message.Role
		chunk.Role = &role
	}
	if resp.Message.Content != "" {
		content := resp.Message.Content
		chunk.Content = &content
	}
	if resp.Message.Thinking != "" {
		thinking := resp.Message.Thinking
		chunk.Thinking = &thinking
	}
	for _, tc := range resp.Message.ToolCalls {
		call := toolCall(tc)
		chunk.ToolCalls = append(chunk.ToolCalls, llmwire.ToolCallDelta{
			Index:     d.calls,
			Name:      &call.Name,
			Arguments: call.Arguments,
		})
		d.calls++
	}

	if resp.Done {
		reason := finishReason(resp.DoneReason, d.calls > 0)
		chunk.FinishReason = &reason
		chunk.RawFinishReason = resp.DoneReason
		chunk.Usage = usage(resp)
	}
	return []llmwire.Chunk{chunk}, nil
}
