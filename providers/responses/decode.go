package responses

import (
	"encoding/json"
	"fmt"

	"github.com/haowjy/llmwire-go"
)

// Wire types for the parts of a Responses body the decoder reads.
type (
	wireResponse struct {
		ID                string       `json:"id"`
		Model             string       `json:"model"`
		Status            string       `json:"status"`
		Output            []outputItem `json:"output"`
		Usage             *wireUsage   `json:"usage"`
		IncompleteDetails *struct {
			Reason string `json:"reason"`
		} `json:"incomplete_details"`
		Error *wireError `json:"error"`
	}

	outputItem struct {
		Type      string        `json:"type"`
		ID        string        `json:"id"`
		Role      string        `json:"role"`
		Content   []outputPart  `json:"content"`
		CallID    string        `json:"call_id"`
		Name      string        `json:"name"`
		Arguments string        `json:"arguments"`
		Summary   []summaryPart `json:"summary"`
	}

	outputPart struct {
		Type    string `json:"type"` // output_text, refusal
		Text    string `json:"text"`
		Refusal string `json:"refusal"`
	}

	summaryPart struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}

	wireUsage struct {
		InputTokens        int `json:"input_tokens"`
		OutputTokens       int `json:"output_tokens"`
		TotalTokens        int `json:"total_tokens"`
		InputTokensDetails struct {
			CachedTokens int `json:"cached_tokens"`
		} `json:"input_tokens_details"`
		OutputTokensDetails struct {
			ReasoningTokens int `json:"reasoning_tokens"`
		} `json:"output_tokens_details"`
	}

	wireError struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
)

func (u *wireUsage) canonical() *llmwire.Usage {
	if u == nil {
		return nil
	}
	return &llmwire.Usage{
		InputTokens:     u.InputTokens,
		OutputTokens:    u.OutputTokens,
		TotalTokens:     u.TotalTokens,
		CachedTokens:    u.InputTokensDetails.CachedTokens,
		ReasoningTokens: u.OutputTokensDetails.ReasoningTokens,
	}
}

// finishReason derives the canonical finish reason from the response
// status, which the Responses API reports instead of a finish_reason.
func finishReason(status, incomplete string, toolCalls bool) (string, string) {
	switch status {
	case "incomplete":
		switch incomplete {
		case "max_output_tokens":
			return llmwire.FinishLength, incomplete
		case "content_filter":
			return llmwire.FinishContentFilter, incomplete
		}
		return incomplete, incomplete
	case "completed":
		if toolCalls {
			return llmwire.FinishToolCalls, status
		}
		return llmwire.FinishStop, status
	}
	return status, status
}

func (e *wireError) providerError() error {
	return &llmwire.ProviderError{
		Provider:  llmwire.ProviderOpenAIResponses,
		Message:   fmt.Sprintf("%s: %s", e.Code, e.Message),
		Retryable: e.Code == "server_error" || e.Code == "rate_limit_exceeded",
		Err:       llmwire.ErrProviderUnavailable,
	}
}

// DecodeResponse normalizes a Responses body. Output items are folded into
// one assistant message in order.
func DecodeResponse(raw json.RawMessage) (*llmwire.Response, error) {
	var resp wireResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.Status == "failed" && resp.Error != nil {
		return nil, resp.Error.providerError()
	}

	msg := llmwire.Message{Role: llmwire.RoleAssistant}
	for _, item := range resp.Output {
		switch item.Type {
		case "message":
			for _, part := range item.Content {
				switch part.Type {
				case "output_text":
					if part.Text != "" {
						msg.Content = append(msg.Content, llmwire.TextBlock{Text: part.Text})
					}
				case "refusal":
					msg.Refusal += part.Refusal
				}
			}
		case "function_call":
			msg.ToolCalls = append(msg.ToolCalls, llmwire.ToolCall{
				ID:        item.CallID,
				Name:      item.Name,
				Arguments: item.Arguments,
				Params:    llmwire.ParseArguments(item.Arguments),
			})
		case "reasoning":
			var text string
			for _, s := range item.Summary {
				text += s.Text
			}
			if text != "" {
				msg.Content = append(msg.Content, llmwire.ThinkingBlock{Thinking: text})
			}
		}
	}

	incomplete := ""
	if resp.IncompleteDetails != nil {
		incomplete = resp.IncompleteDetails.Reason
	}
	reason, rawReason := finishReason(resp.Status, incomplete, len(msg.ToolCalls) > 0)

	return &llmwire.Response{
		Kind:            llmwire.KindPrompt,
		ID:              resp.ID,
		Model:           resp.Model,
		Message:         &msg,
		Usage:           resp.Usage.canonical(),
		FinishReason:    reason,
		RawFinishReason: rawReason,
	}, nil
}

// streamEvent is the union of the stream events the decoder handles.
type streamEvent struct {
	Type        string        `json:"type"`
	Delta       string        `json:"delta"`
	OutputIndex int           `json:"output_index"`
	Item        *outputItem   `json:"item"`
	Response    *wireResponse `json:"response"`
	Code        string        `json:"code"`
	Message     string        `json:"message"`
}

// ChunkDecoder decodes Responses stream events. Function calls are keyed
// by output_index on the wire and renumbered from zero here.
type ChunkDecoder struct {
	calls     map[int]int
	toolCalls bool
}

// NewChunkDecoder returns a decoder for one stream.
func NewChunkDecoder() *ChunkDecoder {
	return &ChunkDecoder{calls: make(map[int]int)}
}

// Decode converts one event. Events the merge engine has no use for yield
// no chunks.
func (d *ChunkDecoder) Decode(raw json.RawMessage) ([]llmwire.Chunk, error) {
	var ev streamEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("parse response event: %w", err)
	}

	switch ev.Type {
	case "response.created":
		if ev.Response == nil {
			return nil, nil
		}
		role := string(llmwire.RoleAssistant)
		return []llmwire.Chunk{{ID: ev.Response.ID, Model: ev.Response.Model, Role: &role}}, nil

	case "response.output_text.delta":
		delta := ev.Delta
		return []llmwire.Chunk{{Content: &delta}}, nil

	case "response.reasoning_summary_text.delta", "response.reasoning_text.delta":
		delta := ev.Delta
		return []llmwire.Chunk{{Thinking: &delta}}, nil

	case "response.output_item.added":
		if ev.Item == nil || ev.Item.Type != "function_call" {
			return nil, nil
		}
		d.toolCalls = true
		index := len(d.calls)
		d.calls[ev.OutputIndex] = index
		id, name := ev.Item.CallID, ev.Item.Name
		return []llmwire.Chunk{{ToolCalls: []llmwire.ToolCallDelta{{
			Index:     index,
			ID:        &id,
			Name:      &name,
			Arguments: ev.Item.Arguments,
		}}}}, nil

	case "response.function_call_arguments.delta":
		index, ok := d.calls[ev.OutputIndex]
		if !ok {
			return nil, fmt.Errorf("arguments delta for unknown output index %d", ev.OutputIndex)
		}
		return []llmwire.Chunk{{ToolCalls: []llmwire.ToolCallDelta{{Index: index, Arguments: ev.Delta}}}}, nil

	case "response.completed", "response.incomplete":
		if ev.Response == nil {
			return []llmwire.Chunk{{Done: true}}, nil
		}
		incomplete := ""
		if ev.Response.IncompleteDetails != nil {
			incomplete = ev.Response.IncompleteDetails.Reason
		}
		reason, rawReason := finishReason(ev.Response.Status, incomplete, d.toolCalls)
		return []llmwire.Chunk{{
			FinishReason:    &reason,
			RawFinishReason: rawReason,
			Usage:           ev.Response.Usage.canonical(),
		}}, nil

	case "response.failed":
		if ev.Response != nil && ev.Response.Error != nil {
			return nil, ev.Response.Error.providerError()
		}
		return nil, &llmwire.ProviderError{Provider: llmwire.ProviderOpenAIResponses, Message: "response failed", Err: llmwire.ErrProviderUnavailable}

	case "error":
		e := wireError{Code: ev.Code, Message: ev.Message}
		return nil, e.providerError()
	}
	return nil, nil
}
