package openrouter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/haowjy/llmwire-go"
	"github.com/haowjy/llmwire-go/providers/openai"
)

// ReasoningDetail is one entry of reasoning_details.
type ReasoningDetail struct {
	Type    string  `json:"type"` // "reasoning.text", "reasoning.summary", "reasoning.encrypted"
	Text    *string `json:"text,omitempty"`
	Summary *string `json:"summary,omitempty"`
	Data    *string `json:"data,omitempty"`
}

// reasoningFields are the OpenRouter additions to a message or delta.
type reasoningFields struct {
	Reasoning        *string           `json:"reasoning,omitempty"`
	ReasoningDetails []ReasoningDetail `json:"reasoning_details,omitempty"`
}

type reasoningEnvelope struct {
	Choices []struct {
		Index   int             `json:"index"`
		Message reasoningFields `json:"message"`
		Delta   reasoningFields `json:"delta"`
	} `json:"choices"`
}

// thinking returns the readable reasoning text and any encrypted payloads.
// reasoning_details wins over the plain reasoning field, which some models
// fill with a placeholder.
func (f reasoningFields) thinking() (string, []string) {
	var text strings.Builder
	var encrypted []string
	for _, d := range f.ReasoningDetails {
		switch d.Type {
		case "reasoning.text":
			if d.Text != nil {
				text.WriteString(*d.Text)
			}
		case "reasoning.summary":
			if d.Summary != nil {
				text.WriteString(*d.Summary)
			}
		case "reasoning.encrypted":
			if d.Data != nil && *d.Data != "" {
				encrypted = append(encrypted, *d.Data)
			}
		}
	}
	if text.Len() == 0 && f.Reasoning != nil {
		text.WriteString(*f.Reasoning)
	}
	return text.String(), encrypted
}

func firstChoice(raw json.RawMessage) (reasoningFields, reasoningFields, error) {
	var env reasoningEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return reasoningFields{}, reasoningFields{}, fmt.Errorf("parse reasoning fields: %w", err)
	}
	for _, c := range env.Choices {
		if c.Index == 0 {
			return c.Message, c.Delta, nil
		}
	}
	return reasoningFields{}, reasoningFields{}, nil
}

// DecodeResponse decodes the OpenAI-compatible body and adds reasoning as
// thinking blocks ahead of the text.
func DecodeResponse(raw json.RawMessage) (*llmwire.Response, error) {
	resp, err := openai.DecodeResponse(llmwire.ProviderOpenRouter, raw)
	if err != nil {
		return nil, err
	}
	fields, _, err := firstChoice(raw)
	if err != nil {
		return nil, err
	}

	text, encrypted := fields.thinking()
	var prefix []llmwire.ContentBlock
	if text != "" && !hasThinking(resp.Message.Content) {
		prefix = append(prefix, llmwire.ThinkingBlock{Thinking: text})
	}
	for _, data := range encrypted {
		prefix = append(prefix, llmwire.RedactedThinkingBlock{Data: data})
	}
	if len(prefix) > 0 {
		resp.Message.Content = append(prefix, resp.Message.Content...)
	}
	return resp, nil
}

func hasThinking(blocks []llmwire.ContentBlock) bool {
	for _, b := range blocks {
		if b.Type() == llmwire.BlockTypeThinking {
			return true
		}
	}
	return false
}

// ChunkDecoder wraps the Chat Completions decoder and maps reasoning deltas
// onto Chunk.Thinking and encrypted reasoning onto redacted thinking blocks.
type ChunkDecoder struct {
	inner openai.ChunkDecoder
}

// Decode converts one chunk.
func (d ChunkDecoder) Decode(raw json.RawMessage) ([]llmwire.Chunk, error) {
	chunks, err := d.inner.Decode(raw)
	if err != nil {
		return nil, err
	}
	_, delta, err := firstChoice(raw)
	if err != nil {
		return nil, err
	}

	text, encrypted := delta.thinking()
	if text == "" && len(encrypted) == 0 {
		return chunks, nil
	}
	if len(chunks) == 0 {
		chunks = []llmwire.Chunk{{}}
	}
	if text != "" && chunks[0].Thinking == nil {
		chunks[0].Thinking = &text
	}
	for _, data := range encrypted {
		chunks[0].Blocks = append(chunks[0].Blocks, llmwire.RedactedThinkingBlock{Data: data})
	}
	return chunks, nil
}
