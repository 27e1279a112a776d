package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haowjy/llmwire-go"
)

const model = "llama3.2"

func userRequest(text string) *llmwire.GenerateRequest {
	return &llmwire.GenerateRequest{
		Model:    model,
		Messages: []llmwire.Message{llmwire.NewTextMessage(llmwire.RoleUser, text)},
	}
}

func TestSerializeAlwaysSendsStream(t *testing.T) {
	tests := []struct {
		name   string
		stream bool
	}{
		{"streaming equals the server default", true},
		{"non-streaming", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := NewCodec().BuildPayload(userRequest("hi"), tt.stream)
			require.NoError(t, err)
			assert.Equal(t, tt.stream, payload["stream"])
			assert.NotContains(t, payload, "options")
		})
	}
}

func TestSerializeOptions(t *testing.T) {
	req := userRequest("hi")
	req.Instructions = []string{"be brief"}
	req.Params = &llmwire.Params{
		Temperature: llmwire.Float(0.8),
		TopK:        llmwire.Int(20),
		MaxTokens:   llmwire.Int(256),
		Stop:        []string{"\n\n"},
	}
	req.Extensions = map[string]any{"options": map[string]any{"num_ctx": 8192}, "keep_alive": "5m"}

	payload, err := NewCodec().BuildPayload(req, false)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"model": model,
		"messages": []any{
			map[string]any{"role": "system", "content": "be brief"},
			map[string]any{"role": "user", "content": "hi"},
		},
		"stream": false,
		"options": map[string]any{
			"top_k":       20,
			"num_predict": 256,
			"num_ctx":     8192,
			"stop":        []string{"\n\n"},
		},
	}, payload)
}

func TestSerializeThink(t *testing.T) {
	tests := []struct {
		name   string
		params *llmwire.Params
		ext    map[string]any
		want   any
	}{
		{name: "enabled", params: &llmwire.Params{ThinkingEnabled: llmwire.Bool(true)}, want: true},
		{name: "disabled", params: &llmwire.Params{ThinkingEnabled: llmwire.Bool(false)}, want: false},
		{name: "level", params: &llmwire.Params{ThinkingLevel: llmwire.String("high")}, want: "high"},
		{name: "extension overrides", params: &llmwire.Params{ThinkingLevel: llmwire.String("high")}, ext: map[string]any{"think": false}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := userRequest("hi")
			req.Params = tt.params
			req.Extensions = tt.ext
			payload, err := NewCodec().BuildPayload(req, false)
			require.NoError(t, err)
			assert.Equal(t, tt.want, payload["think"])
		})
	}
}

func TestSerializeFormat(t *testing.T) {
	schema := map[string]any{"type": "object", "properties": map[string]any{}}
	tests := []struct {
		name   string
		format *llmwire.ResponseFormat
		want   any
	}{
		{"text", &llmwire.ResponseFormat{Type: llmwire.FormatText}, nil},
		{"json object", &llmwire.ResponseFormat{Type: llmwire.FormatJSONObject}, "json"},
		{"schema", &llmwire.ResponseFormat{Type: llmwire.FormatJSONSchema, JSONSchema: &llmwire.JSONSchema{Name: "empty", Schema: schema}}, schema},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := userRequest("hi")
			req.ResponseFormat = tt.format
			payload, err := NewCodec().BuildPayload(req, false)
			require.NoError(t, err)
			assert.Equal(t, tt.want, payload["format"])
		})
	}
}

func TestToolChoice(t *testing.T) {
	tools := []llmwire.Tool{{Name: "lookup"}}

	t.Run("none drops tools", func(t *testing.T) {
		req := userRequest("hi")
		req.Tools = tools
		req.ToolChoice = &llmwire.ToolChoice{Mode: llmwire.ToolChoiceNone}
		payload, err := NewCodec().BuildPayload(req, false)
		require.NoError(t, err)
		assert.NotContains(t, payload, "tools")
	})

	t.Run("auto sends function tools", func(t *testing.T) {
		req := userRequest("hi")
		req.Tools = tools
		payload, err := NewCodec().BuildPayload(req, false)
		require.NoError(t, err)
		assert.Equal(t, []any{map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":       "lookup",
				"parameters": map[string]any{"type": "object", "properties": map[string]any{}},
			},
		}}, payload["tools"])
	})

	t.Run("forcing is unsupported", func(t *testing.T) {
		req := userRequest("hi")
		req.Tools = tools
		req.ToolChoice = llmwire.ToolChoiceFor("lookup")
		_, err := NewCodec().BuildPayload(req, false)
		assert.ErrorIs(t, err, llmwire.ErrUnsupportedFeature)
		assert.True(t, llmwire.IsInvalidRequest(err))
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		params *llmwire.Params
		field  string
	}{
		{name: "negative temperature", params: &llmwire.Params{Temperature: llmwire.Float(-0.1)}, field: "temperature"},
		{name: "top_p above one", params: &llmwire.Params{TopP: llmwire.Float(1.2)}, field: "top_p"},
		{name: "unknown think level", params: &llmwire.Params{ThinkingLevel: llmwire.String("max")}, field: "think"},
		{name: "high temperature is allowed", params: &llmwire.Params{Temperature: llmwire.Float(1.5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := userRequest("hi")
			req.Params = tt.params
			_, err := NewRequest(req)
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			var verr *llmwire.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestEncodeMessages(t *testing.T) {
	msgs := []llmwire.Message{
		{
			Role: llmwire.RoleUser,
			Content: []llmwire.ContentBlock{
				llmwire.TextBlock{Text: "what is this?"},
				llmwire.ImageBlock{URL: "data:image/png;base64,iVBOR"},
			},
		},
		{
			Role:      llmwire.RoleAssistant,
			Content:   []llmwire.ContentBlock{llmwire.ThinkingBlock{Thinking: "look closer"}},
			ToolCalls: []llmwire.ToolCall{{Name: "zoom", Arguments: `{"factor":2}`}},
		},
		llmwire.NewToolResultMessage("", "zoom", "a cat"),
	}

	out, err := EncodeMessages(msgs)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, map[string]any{"role": "user", "content": "what is this?", "images": []any{"iVBOR"}}, out[0])

	assistant := out[1].(map[string]any)
	assert.Equal(t, "look closer", assistant["thinking"])
	calls := assistant["tool_calls"].([]any)
	require.Len(t, calls, 1)
	fn := calls[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "zoom", fn["name"])

	assert.Equal(t, map[string]any{"role": "tool", "content": "a cat", "tool_name": "zoom"}, out[2])
}

func TestEncodeRejectsRemoteImages(t *testing.T) {
	_, err := EncodeMessages([]llmwire.Message{{
		Role:    llmwire.RoleUser,
		Content: []llmwire.ContentBlock{llmwire.ImageBlock{URL: "https://example.com/cat.png"}},
	}})
	assert.True(t, llmwire.IsCastError(err))
}

func TestEncodeRejectsDocuments(t *testing.T) {
	_, err := EncodeMessages([]llmwire.Message{{
		Role:    llmwire.RoleUser,
		Content: []llmwire.ContentBlock{llmwire.DocumentBlock{Text: "notes"}},
	}})
	assert.True(t, llmwire.IsCastError(err))
}

func TestCastInput(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want llmwire.Message
	}{
		{
			name: "native message",
			raw: api.Message{
				Role:     "assistant",
				Content:  "done",
				Thinking: "hmm",
				ToolCalls: []api.ToolCall{{Function: api.ToolCallFunction{
					Name:      "lookup",
					Arguments: api.ToolCallFunctionArguments{"q": "go"},
				}}},
			},
			want: llmwire.Message{
				Role:      llmwire.RoleAssistant,
				Content:   []llmwire.ContentBlock{llmwire.ThinkingBlock{Thinking: "hmm"}, llmwire.TextBlock{Text: "done"}},
				ToolCalls: []llmwire.ToolCall{{Name: "lookup", Arguments: `{"q":"go"}`, Params: map[string]any{"q": "go"}}},
			},
		},
		{
			name: "native tool result",
			raw:  api.Message{Role: "tool", Content: "42", ToolName: "lookup"},
			want: llmwire.Message{
				Role:       llmwire.RoleTool,
				Content:    []llmwire.ContentBlock{llmwire.TextBlock{Text: "42"}},
				ActionName: "lookup",
			},
		},
		{
			name: "map with images only",
			raw:  map[string]any{"role": "user", "content": "", "images": []any{"iVBOR"}},
			want: llmwire.Message{
				Role:    llmwire.RoleUser,
				Content: []llmwire.ContentBlock{llmwire.ImageBlock{Data: "iVBOR"}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, err := CastInput(tt.raw)
			require.NoError(t, err)
			require.Len(t, msgs, 1)
			assert.Equal(t, tt.want, msgs[0])
		})
	}
}

func TestCastInputUnknownRole(t *testing.T) {
	_, err := CastInput(api.Message{Role: "critic", Content: "meh"})
	assert.True(t, llmwire.IsCastError(err))
}

func TestDecodeResponse(t *testing.T) {
	body := `{"model":"llama3.2","created_at":"2025-01-01T00:00:00Z",
	  "message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"lookup","arguments":{"q":"go"}}}]},
	  "done_reason":"stop","done":true,"prompt_eval_count":12,"eval_count":8}`

	resp, err := DecodeResponse(json.RawMessage(body))
	require.NoError(t, err)
	assert.Equal(t, llmwire.FinishToolCalls, resp.FinishReason)
	assert.Equal(t, "stop", resp.RawFinishReason)
	assert.Equal(t, &llmwire.Usage{InputTokens: 12, OutputTokens: 8, TotalTokens: 20}, resp.Usage)
	require.Len(t, resp.Message.ToolCalls, 1)
	assert.Empty(t, resp.Message.ToolCalls[0].ID)
	assert.Equal(t, `{"q":"go"}`, resp.Message.ToolCalls[0].Arguments)
}

func TestDecodeResponseLength(t *testing.T) {
	resp, err := DecodeResponse(json.RawMessage(`{"model":"llama3.2","message":{"role":"assistant","content":"trunc"},"done_reason":"length","done":true}`))
	require.NoError(t, err)
	assert.Equal(t, llmwire.FinishLength, resp.FinishReason)
	assert.Equal(t, "trunc", resp.Message.Text())
}

func TestDecodeInBandError(t *testing.T) {
	_, err := NewChunkDecoder().Decode(json.RawMessage(`{"error":"model 'nope' not found"}`))
	var pe *llmwire.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "model 'nope' not found", pe.Message)
}

var streamLines = []string{
	`{"model":"llama3.2","message":{"role":"assistant","content":"","thinking":"let me"},"done":false}`,
	`{"model":"llama3.2","message":{"role":"assistant","content":"Hel"},"done":false}`,
	`{"model":"llama3.2","message":{"role":"assistant","content":"lo"},"done":false}`,
	`{"model":"llama3.2","message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"a","arguments":{}}},{"function":{"name":"b","arguments":{"x":1}}}]},"done":false}`,
	`{"model":"llama3.2","message":{"role":"assistant","content":""},"done_reason":"stop","done":true,"prompt_eval_count":5,"eval_count":7}`,
}

func TestChunkDecoderFeedsAccumulator(t *testing.T) {
	decoder := NewChunkDecoder()
	acc := llmwire.NewAccumulator(nil)
	for _, line := range streamLines {
		chunks, err := decoder.Decode(json.RawMessage(line))
		require.NoError(t, err)
		for _, c := range chunks {
			_, err := acc.Add(c)
			require.NoError(t, err)
		}
	}

	resp, err := acc.Response()
	require.NoError(t, err)
	assert.Equal(t, "Hello", resp.Message.Text())
	assert.Equal(t, llmwire.ThinkingBlock{Thinking: "let me"}, resp.Message.Content[0])
	assert.Equal(t, llmwire.FinishToolCalls, resp.FinishReason)
	require.Len(t, resp.Message.ToolCalls, 2)
	assert.Equal(t, "a", resp.Message.ToolCalls[0].Name)
	assert.Equal(t, "{}", resp.Message.ToolCalls[0].Arguments)
	assert.Equal(t, map[string]any{"x": float64(1)}, resp.Message.ToolCalls[1].Params)
	assert.Equal(t, 12, resp.Usage.TotalTokens)
}

// fakeChat replays responses through the Chat callback.
type fakeChat struct {
	responses []api.ChatResponse
	err       error
	requests  []*api.ChatRequest
}

func (f *fakeChat) Chat(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error {
	f.requests = append(f.requests, req)
	for _, resp := range f.responses {
		if err := fn(resp); err != nil {
			return err
		}
	}
	return f.err
}

func TestAPIClientSend(t *testing.T) {
	chat := &fakeChat{responses: []api.ChatResponse{{
		Model:      model,
		Message:    api.Message{Role: "assistant", Content: "pong"},
		Done:       true,
		DoneReason: "stop",
	}}}
	provider := NewProvider(newAPIClient(chat, zerolog.Nop()))

	resp, err := provider.Generate(context.Background(), userRequest("ping"))
	require.NoError(t, err)
	assert.Equal(t, "pong", resp.Message.Text())

	require.Len(t, chat.requests, 1)
	sent := chat.requests[0]
	assert.Equal(t, model, sent.Model)
	require.NotNil(t, sent.Stream)
	assert.False(t, *sent.Stream)
	require.Len(t, sent.Messages, 1)
	assert.Equal(t, "ping", sent.Messages[0].Content)
}

func TestAPIClientStream(t *testing.T) {
	chat := &fakeChat{responses: []api.ChatResponse{
		{Model: model, Message: api.Message{Role: "assistant", Content: "po"}},
		{Model: model, Message: api.Message{Role: "assistant", Content: "ng"}},
		{Model: model, Message: api.Message{Role: "assistant"}, Done: true, DoneReason: "stop"},
	}}
	provider := NewProvider(newAPIClient(chat, zerolog.Nop()))

	var deltas []string
	resp, err := provider.Stream(context.Background(), userRequest("ping"), func(_ *llmwire.Message, delta string, final bool) {
		if !final {
			deltas = append(deltas, delta)
		}
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"po", "ng"}, deltas)
	assert.Equal(t, "pong", resp.Message.Text())
	assert.True(t, *chat.requests[0].Stream)
}

func TestAPIClientErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		target    error
	}{
		{"not found", api.StatusError{StatusCode: 404, ErrorMessage: "model not found"}, false, nil},
		{"overloaded", api.StatusError{StatusCode: 503, ErrorMessage: "server busy"}, true, llmwire.ErrProviderUnavailable},
		{"connection refused", errors.New("dial tcp 127.0.0.1:11434: connect: connection refused"), true, llmwire.ErrProviderUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newAPIClient(&fakeChat{err: tt.err}, zerolog.Nop())

			_, err := client.Send(context.Background(), map[string]any{"model": model})
			require.Error(t, err)
			assert.Equal(t, tt.retryable, llmwire.IsRetryable(err))
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}

			_, err = client.Stream(context.Background(), map[string]any{"model": model})
			assert.Equal(t, tt.retryable, llmwire.IsRetryable(err))
		})
	}
}
