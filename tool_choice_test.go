package llmwire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolChoiceAfterTurn(t *testing.T) {
	zoom := []ToolCall{{ID: "c1", Name: "zoom"}}
	pan := []ToolCall{{ID: "c2", Name: "pan"}}

	tests := []struct {
		name   string
		choice *ToolChoice
		calls  []ToolCall
		want   *ToolChoice
	}{
		{"unset stays unset", nil, zoom, nil},
		{"auto is kept", &ToolChoice{Mode: ToolChoiceAuto}, zoom, &ToolChoice{Mode: ToolChoiceAuto}},
		{"none is kept", &ToolChoice{Mode: ToolChoiceNone}, nil, &ToolChoice{Mode: ToolChoiceNone}},
		{"required cleared after any call", &ToolChoice{Mode: ToolChoiceRequired}, pan, nil},
		{"required kept without calls", &ToolChoice{Mode: ToolChoiceRequired}, nil, &ToolChoice{Mode: ToolChoiceRequired}},
		{"forced tool cleared once invoked", ToolChoiceFor("zoom"), append(pan, zoom...), nil},
		{"forced tool kept when another tool ran", ToolChoiceFor("zoom"), pan, ToolChoiceFor("zoom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.choice.AfterTurn(tt.calls))
		})
	}
}

func TestToolChoiceForces(t *testing.T) {
	var unset *ToolChoice
	assert.False(t, unset.Forces())
	assert.False(t, (&ToolChoice{Mode: ToolChoiceAuto}).Forces())
	assert.True(t, (&ToolChoice{Mode: ToolChoiceRequired}).Forces())
	assert.True(t, ToolChoiceFor("zoom").Forces())
}

func TestCastToolChoice(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want *ToolChoice
	}{
		{"nil", nil, nil},
		{"auto", "auto", &ToolChoice{Mode: ToolChoiceAuto}},
		{"symbol none", ":none", &ToolChoice{Mode: ToolChoiceNone}},
		{"anthropic any", "any", &ToolChoice{Mode: ToolChoiceRequired}},
		{"chat function", map[string]any{"type": "function", "function": map[string]any{"name": "zoom"}}, ToolChoiceFor("zoom")},
		{"responses function", map[string]any{"type": "function", "name": "zoom"}, ToolChoiceFor("zoom")},
		{"anthropic tool", map[string]any{"type": "tool", "name": "zoom"}, ToolChoiceFor("zoom")},
		{"anthropic any map", map[string]any{"type": "any"}, &ToolChoice{Mode: ToolChoiceRequired}},
		{"typed", ToolChoice{Mode: ToolChoiceAuto}, &ToolChoice{Mode: ToolChoiceAuto}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CastToolChoice(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []any{"sometimes", map[string]any{}, 7} {
		_, err := CastToolChoice(bad)
		assert.True(t, IsCastError(err), "%v", bad)
	}
}

func TestToolChoiceValidate(t *testing.T) {
	assert.NoError(t, (&ToolChoice{Mode: ToolChoiceNone}).Validate())
	assert.NoError(t, ToolChoiceFor("zoom").Validate())
	assert.True(t, IsInvalidRequest((&ToolChoice{Mode: ToolChoiceTool}).Validate()))
	assert.True(t, IsInvalidRequest((&ToolChoice{Mode: "sometimes"}).Validate()))
}
