package llmwire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulatorMergesTextAndToolCalls(t *testing.T) {
	var (
		deltas []string
		finals int
	)
	acc := NewAccumulator(func(msg *Message, delta string, final bool) {
		if final {
			finals++
			return
		}
		deltas = append(deltas, delta)
	})

	chunks := []Chunk{
		{ID: "c-1", Model: "gpt-4o", Role: String("assistant")},
		{Role: String("assistant"), Content: String("Hel")},
		{Content: String("lo")},
		{Content: String("")},
		{ToolCalls: []ToolCallDelta{{Index: 1, ID: String("call_b"), Name: String("pan"), Arguments: `{"dx"`}}},
		{ToolCalls: []ToolCallDelta{{Index: 0, ID: String("call_a"), Name: String("zoom")}}},
		{ToolCalls: []ToolCallDelta{{Index: 1, ID: String(""), Arguments: `:2}`}}},
		{ToolCalls: []ToolCallDelta{{Index: 0, Name: String("ignored"), Arguments: `{}`}}},
	}
	for _, c := range chunks {
		done, err := acc.Add(c)
		require.NoError(t, err)
		assert.False(t, done)
	}

	_, err := acc.Response()
	assert.ErrorIs(t, err, ErrStreamIncomplete)

	done, err := acc.Add(Chunk{FinishReason: String(FinishToolCalls), RawFinishReason: "tool_calls"})
	require.NoError(t, err)
	assert.True(t, done)

	_, err = acc.Add(Chunk{Usage: &Usage{InputTokens: 3, OutputTokens: 4}, Content: String("late")})
	require.NoError(t, err)

	resp, err := acc.Response()
	require.NoError(t, err)

	assert.Equal(t, []string{"Hel", "lo"}, deltas)
	assert.Equal(t, 1, finals)
	assert.Equal(t, "c-1", resp.ID)
	assert.Equal(t, "gpt-4o", resp.Model)
	assert.Equal(t, "Hello", resp.Message.Text())
	assert.Equal(t, FinishToolCalls, resp.FinishReason)
	assert.Equal(t, &Usage{InputTokens: 3, OutputTokens: 4}, resp.Usage)

	require.Len(t, resp.Message.ToolCalls, 2)
	assert.Equal(t, ToolCall{ID: "call_a", Name: "zoom", Arguments: "{}", Params: map[string]any{}}, resp.Message.ToolCalls[0])
	assert.Equal(t, ToolCall{ID: "call_b", Name: "pan", Arguments: `{"dx":2}`, Params: map[string]any{"dx": 2.0}}, resp.Message.ToolCalls[1])
}

func TestAccumulatorThinking(t *testing.T) {
	acc := NewAccumulator(nil)
	for _, c := range []Chunk{
		{Thinking: String("let me ")},
		{Thinking: String("think")},
		{Signature: String("sig")},
		{Content: String("42")},
		{Done: true},
	} {
		_, err := acc.Add(c)
		require.NoError(t, err)
	}

	resp, err := acc.Response()
	require.NoError(t, err)
	require.Len(t, resp.Message.Content, 2)
	assert.Equal(t, ThinkingBlock{Thinking: "let me think", Signature: "sig"}, resp.Message.Content[0])
	assert.Equal(t, TextBlock{Text: "42"}, resp.Message.Content[1])
	assert.Empty(t, resp.FinishReason)
	assert.Nil(t, resp.Message.ToolCalls)
}

func TestAccumulatorWholeBlocks(t *testing.T) {
	acc := NewAccumulator(nil)
	for _, c := range []Chunk{
		{Thinking: String("hmm")},
		{Blocks: []ContentBlock{RedactedThinkingBlock{Data: "opaque"}}},
		{Content: String("hi")},
		{Blocks: []ContentBlock{RawBlock{Fields: map[string]any{"type": "server_tool_use"}}}},
		{Done: true},
		{Blocks: []ContentBlock{RedactedThinkingBlock{Data: "late"}}},
	} {
		_, err := acc.Add(c)
		require.NoError(t, err)
	}

	resp, err := acc.Response()
	require.NoError(t, err)
	assert.Equal(t, []ContentBlock{
		ThinkingBlock{Thinking: "hmm"},
		RedactedThinkingBlock{Data: "opaque"},
		RawBlock{Fields: map[string]any{"type": "server_tool_use"}},
		TextBlock{Text: "hi"},
	}, resp.Message.Content)
}

func TestAccumulatorRejectsUnknownRole(t *testing.T) {
	acc := NewAccumulator(nil)
	_, err := acc.Add(Chunk{Role: String("narrator")})
	assert.True(t, IsCastError(err))
}

func TestAccumulatorFinalizerRunsBeforeFinalCallback(t *testing.T) {
	var seen any
	acc := NewAccumulator(func(msg *Message, _ string, final bool) {
		if final {
			seen = msg.Value()
		}
	})
	acc.OnFinalize(func(msg *Message) {
		ApplyStructuredOutput(msg, &ResponseFormat{Type: FormatJSONObject})
	})

	_, err := acc.Add(Chunk{Content: String(`{"ok":true}`)})
	require.NoError(t, err)
	_, err = acc.Add(Chunk{FinishReason: String(FinishStop)})
	require.NoError(t, err)

	assert.True(t, acc.Finished())
	assert.Equal(t, map[string]any{"ok": true}, seen)
	assert.Equal(t, ContentTypeJSON, acc.Message().ContentType)
}

func TestSliceStream(t *testing.T) {
	s := NewSliceStream(nil, ErrStreamIncomplete)
	assert.False(t, s.Next())
	assert.Nil(t, s.Chunk())
	assert.ErrorIs(t, s.Err(), ErrStreamIncomplete)

	s = NewSliceStream(streamChunks(`{"a":1}`, `{"b":2}`), nil)
	var got []string
	for s.Next() {
		got = append(got, string(s.Chunk()))
	}
	assert.Equal(t, []string{`{"a":1}`, `{"b":2}`}, got)
	assert.NoError(t, s.Err())
	assert.NoError(t, s.Close())
}
