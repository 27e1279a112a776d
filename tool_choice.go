package llmwire

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// ToolChoiceMode controls tool selection behavior
type ToolChoiceMode string

const (
	ToolChoiceAuto     ToolChoiceMode = "auto"     // Model decides whether to use tools
	ToolChoiceNone     ToolChoiceMode = "none"     // Model cannot use tools
	ToolChoiceRequired ToolChoiceMode = "required" // Model must use some tool ("any" on Anthropic)
	ToolChoiceTool     ToolChoiceMode = "tool"     // Model must use the named tool
)

// ToolChoice specifies tool selection behavior. A nil *ToolChoice means unset.
type ToolChoice struct {
	Mode ToolChoiceMode `json:"mode" yaml:"mode"`
	Name string         `json:"name,omitempty" yaml:"name,omitempty"` // only for ToolChoiceTool
}

// ToolChoiceFor returns a choice forcing the named tool.
func ToolChoiceFor(name string) *ToolChoice {
	return &ToolChoice{Mode: ToolChoiceTool, Name: name}
}

// Validate checks the mode and name.
func (c *ToolChoice) Validate() error {
	switch c.Mode {
	case ToolChoiceAuto, ToolChoiceNone, ToolChoiceRequired:
		return nil
	case ToolChoiceTool:
		if c.Name == "" {
			return &ValidationError{Field: "tool_choice.name", Value: c.Name, Reason: "required when forcing a specific tool"}
		}
		return nil
	default:
		return &ValidationError{Field: "tool_choice", Value: c.Mode, Reason: "must be one of auto, none, required, tool"}
	}
}

// Forces reports whether the choice pins the model to call a tool.
func (c *ToolChoice) Forces() bool {
	return c != nil && (c.Mode == ToolChoiceRequired || c.Mode == ToolChoiceTool)
}

// AfterTurn returns the tool choice to use for the next turn given the tool
// calls of the latest response.
//
// States are unset (nil), forces-any and forces-specific(name). A forcing
// choice returns to unset once the forced tool was invoked; otherwise it is
// kept. auto and none are never cleared.
func (c *ToolChoice) AfterTurn(calls []ToolCall) *ToolChoice {
	if c == nil || len(calls) == 0 {
		return c
	}

	switch c.Mode {
	case ToolChoiceRequired:
		return nil
	case ToolChoiceTool:
		if lo.ContainsBy(calls, func(call ToolCall) bool { return call.Name == c.Name }) {
			return nil
		}
	}
	return c
}

// CastToolChoice normalizes the accepted tool choice shapes:
// "auto", "none", "required", "any", {type:"function", function:{name}},
// {type:"function", name}, {type:"tool", name}, {type:"any"}, {name}.
func CastToolChoice(raw any) (*ToolChoice, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case *ToolChoice:
		return v, nil
	case ToolChoice:
		return &v, nil
	case string:
		return castToolChoiceMode(v)
	case map[string]any:
		if fn := MapField(v, "function"); fn != nil {
			return ToolChoiceFor(StringField(fn, "name")), nil
		}
		if name := StringField(v, "name"); name != "" {
			return ToolChoiceFor(name), nil
		}
		if typ := StringField(v, "type"); typ != "" {
			return castToolChoiceMode(typ)
		}
	}
	return nil, &CastError{Kind: "tool_choice", Value: raw, Reason: "unrecognized tool choice"}
}

func castToolChoiceMode(s string) (*ToolChoice, error) {
	switch strings.TrimPrefix(strings.ToLower(s), ":") {
	case "auto":
		return &ToolChoice{Mode: ToolChoiceAuto}, nil
	case "none":
		return &ToolChoice{Mode: ToolChoiceNone}, nil
	case "required", "any":
		return &ToolChoice{Mode: ToolChoiceRequired}, nil
	default:
		return nil, &CastError{Kind: "tool_choice", Value: s, Reason: fmt.Sprintf("unknown mode %q", s)}
	}
}
