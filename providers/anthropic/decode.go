package anthropic

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/haowjy/llmwire-go"
)

// finishReasons maps stop_reason onto the canonical finish reasons.
var finishReasons = map[anthropic.StopReason]string{
	anthropic.StopReasonEndTurn:      llmwire.FinishStop,
	anthropic.StopReasonStopSequence: llmwire.FinishStop,
	anthropic.StopReasonPauseTurn:    llmwire.FinishStop,
	anthropic.StopReasonMaxTokens:    llmwire.FinishLength,
	anthropic.StopReasonToolUse:      llmwire.FinishToolCalls,
	anthropic.StopReasonRefusal:      llmwire.FinishContentFilter,
}

func finishReason(reason anthropic.StopReason) string {
	if canonical, ok := finishReasons[reason]; ok {
		return canonical
	}
	return string(reason)
}

func usage(u anthropic.Usage) *llmwire.Usage {
	return &llmwire.Usage{
		InputTokens:  int(u.InputTokens),
		OutputTokens: int(u.OutputTokens),
		TotalTokens:  int(u.InputTokens + u.OutputTokens),
		CachedTokens: int(u.CacheReadInputTokens),
	}
}

// errorEvent is the in-band error body, which the SDK unions do not model.
type errorEvent struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (e errorEvent) err() error {
	pe := &llmwire.ProviderError{
		Provider: llmwire.ProviderAnthropic,
		Message:  fmt.Sprintf("%s: %s", e.Error.Type, e.Error.Message),
		Err:      llmwire.ErrProviderUnavailable,
	}
	switch e.Error.Type {
	case "overloaded_error", "api_error":
		pe.Retryable = true
	case "rate_limit_error":
		pe.Retryable = true
		pe.Err = llmwire.ErrRateLimited
	}
	return pe
}

// DecodeResponse normalizes a Messages API body. prefill is the assistant
// prefix that was sent (see Request.Prefill); the API continues after it
// without echoing it, so it is restored in front of the first text block.
func DecodeResponse(raw json.RawMessage, prefill string) (*llmwire.Response, error) {
	var ev errorEvent
	if err := json.Unmarshal(raw, &ev); err == nil && ev.Type == "error" {
		return nil, ev.err()
	}

	var msg anthropic.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}

	out := llmwire.Message{Role: llmwire.RoleAssistant}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			out.Content = append(out.Content, llmwire.TextBlock{Text: block.Text})
		case "thinking":
			out.Content = append(out.Content, llmwire.ThinkingBlock{Thinking: block.Thinking, Signature: block.Signature})
		case "redacted_thinking":
			out.Content = append(out.Content, llmwire.RedactedThinkingBlock{Data: block.Data})
		case "tool_use":
			arguments := string(block.Input)
			if arguments == "" || arguments == "null" {
				arguments = "{}"
			}
			params := llmwire.ParseArguments(arguments)
			out.Content = append(out.Content, llmwire.ToolUseBlock{ID: block.ID, Name: block.Name, Input: params})
			out.ToolCalls = append(out.ToolCalls, llmwire.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: arguments,
				Params:    params,
			})
		default:
			// server tool blocks and future types go back unchanged
			var fields map[string]any
			if err := json.Unmarshal([]byte(block.RawJSON()), &fields); err != nil {
				return nil, fmt.Errorf("parse %s block: %w", block.Type, err)
			}
			out.Content = append(out.Content, llmwire.RawBlock{Fields: fields})
		}
	}
	restorePrefill(&out, prefill)

	return &llmwire.Response{
		Kind:            llmwire.KindPrompt,
		ID:              msg.ID,
		Model:           string(msg.Model),
		Message:         &out,
		Usage:           usage(msg.Usage),
		FinishReason:    finishReason(msg.StopReason),
		RawFinishReason: string(msg.StopReason),
	}, nil
}

func restorePrefill(msg *llmwire.Message, prefill string) {
	if prefill == "" {
		return
	}
	for i, block := range msg.Content {
		if tb, ok := block.(llmwire.TextBlock); ok {
			msg.Content[i] = llmwire.TextBlock{Text: prefill + tb.Text}
			return
		}
	}
	msg.Content = append(msg.Content, llmwire.TextBlock{Text: prefill})
}

// ChunkDecoder decodes Messages stream events. Tool calls are indexed by
// content block index; input tokens arrive on message_start and are
// carried to the final usage. Blocks the canonical model has no delta for
// (redacted thinking, server tools) are emitted whole.
type ChunkDecoder struct {
	prefill      string
	inputTokens  int64
	cachedTokens int64
	toolBlocks   map[int64]bool
	toolArgs     map[int64]bool
	rawBlocks    map[int64]*pendingRaw
}

// pendingRaw is a passthrough block whose input may still be streaming.
type pendingRaw struct {
	fields map[string]any
	input  strings.Builder
}

// NewChunkDecoder returns a decoder for one stream.
func NewChunkDecoder(prefill string) *ChunkDecoder {
	return &ChunkDecoder{
		prefill:    prefill,
		toolBlocks: make(map[int64]bool),
		toolArgs:   make(map[int64]bool),
		rawBlocks:  make(map[int64]*pendingRaw),
	}
}

// Decode converts one stream event.
func (d *ChunkDecoder) Decode(raw json.RawMessage) ([]llmwire.Chunk, error) {
	var ev errorEvent
	if err := json.Unmarshal(raw, &ev); err == nil && ev.Type == "error" {
		return nil, ev.err()
	}

	var event anthropic.MessageStreamEventUnion
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, fmt.Errorf("parse stream event: %w", err)
	}

	switch e := event.AsAny().(type) {
	case anthropic.MessageStartEvent:
		d.inputTokens = e.Message.Usage.InputTokens
		d.cachedTokens = e.Message.Usage.CacheReadInputTokens
		role := string(llmwire.RoleAssistant)
		chunk := llmwire.Chunk{ID: e.Message.ID, Model: string(e.Message.Model), Role: &role}
		if d.prefill != "" {
			prefill := d.prefill
			chunk.Content = &prefill
		}
		return []llmwire.Chunk{chunk}, nil

	case anthropic.ContentBlockStartEvent:
		switch e.ContentBlock.Type {
		case "tool_use":
			d.toolBlocks[e.Index] = true
			id, name := e.ContentBlock.ID, e.ContentBlock.Name
			return []llmwire.Chunk{{ToolCalls: []llmwire.ToolCallDelta{{Index: int(e.Index), ID: &id, Name: &name}}}}, nil
		case "text":
			if e.ContentBlock.Text != "" {
				text := e.ContentBlock.Text
				return []llmwire.Chunk{{Content: &text}}, nil
			}
		case "thinking":
			// content follows as thinking_delta and signature_delta
		case "redacted_thinking":
			return []llmwire.Chunk{{Blocks: []llmwire.ContentBlock{llmwire.RedactedThinkingBlock{Data: e.ContentBlock.Data}}}}, nil
		default:
			var fields map[string]any
			if err := json.Unmarshal([]byte(e.ContentBlock.RawJSON()), &fields); err != nil {
				return nil, fmt.Errorf("parse %s block: %w", e.ContentBlock.Type, err)
			}
			d.rawBlocks[e.Index] = &pendingRaw{fields: fields}
		}
		return nil, nil

	case anthropic.ContentBlockDeltaEvent:
		switch e.Delta.Type {
		case "text_delta":
			text := e.Delta.Text
			return []llmwire.Chunk{{Content: &text}}, nil
		case "thinking_delta":
			thinking := e.Delta.Thinking
			return []llmwire.Chunk{{Thinking: &thinking}}, nil
		case "signature_delta":
			sig := e.Delta.Signature
			return []llmwire.Chunk{{Signature: &sig}}, nil
		case "input_json_delta":
			if raw, ok := d.rawBlocks[e.Index]; ok {
				raw.input.WriteString(e.Delta.PartialJSON)
				return nil, nil
			}
			if e.Delta.PartialJSON != "" {
				d.toolArgs[e.Index] = true
			}
			return []llmwire.Chunk{{ToolCalls: []llmwire.ToolCallDelta{{Index: int(e.Index), Arguments: e.Delta.PartialJSON}}}}, nil
		}
		return nil, nil

	case anthropic.ContentBlockStopEvent:
		if raw, ok := d.rawBlocks[e.Index]; ok {
			delete(d.rawBlocks, e.Index)
			if raw.input.Len() > 0 {
				var input any
				if err := json.Unmarshal([]byte(raw.input.String()), &input); err != nil {
					return nil, fmt.Errorf("parse streamed block input: %w", err)
				}
				raw.fields["input"] = input
			}
			return []llmwire.Chunk{{Blocks: []llmwire.ContentBlock{llmwire.RawBlock{Fields: raw.fields}}}}, nil
		}
		// a tool called without arguments streams no input at all
		if d.toolBlocks[e.Index] && !d.toolArgs[e.Index] {
			return []llmwire.Chunk{{ToolCalls: []llmwire.ToolCallDelta{{Index: int(e.Index), Arguments: "{}"}}}}, nil
		}
		return nil, nil

	case anthropic.MessageDeltaEvent:
		reason := finishReason(e.Delta.StopReason)
		output := e.Usage.OutputTokens
		return []llmwire.Chunk{{
			FinishReason:    &reason,
			RawFinishReason: string(e.Delta.StopReason),
			Usage: &llmwire.Usage{
				InputTokens:  int(d.inputTokens),
				OutputTokens: int(output),
				TotalTokens:  int(d.inputTokens + output),
				CachedTokens: int(d.cachedTokens),
			},
		}}, nil

	case anthropic.MessageStopEvent:
		return []llmwire.Chunk{{Done: true}}, nil
	}
	return nil, nil
}
