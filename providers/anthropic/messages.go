package anthropic

import (
	"fmt"

	"github.com/haowjy/llmwire-go"
)

// CastInput converts loosely-typed input into canonical messages. Unknown
// block types are kept as llmwire.RawBlock.
func CastInput(raw any) ([]llmwire.Message, error) {
	return llmwire.CastMessages(raw, registry)
}

type turn struct {
	role    string
	content []any
}

// EncodeMessages splits canonical messages into the top-level system texts
// and the alternating user/assistant turns Anthropic expects:
//   - system and developer messages are lifted into system
//   - tool messages become user turns carrying a tool_result block
//   - adjacent turns with the same role are merged
func EncodeMessages(msgs []llmwire.Message) ([]string, []any, error) {
	var (
		system []string
		turns  []turn
	)

	for i, m := range msgs {
		var (
			role    string
			content []any
			err     error
		)
		switch m.Role {
		case llmwire.RoleSystem, llmwire.RoleDeveloper:
			if text := m.Text(); text != "" {
				system = append(system, text)
			}
			continue
		case llmwire.RoleUser:
			role = "user"
			content, err = registry.SerializeAll(m.Content)
		case llmwire.RoleTool:
			role = "user"
			content, err = encodeToolMessage(m)
		case llmwire.RoleAssistant:
			role = "assistant"
			content, err = encodeAssistant(m)
		default:
			err = &llmwire.CastError{Kind: "role", Value: m.Role, Reason: "anthropic accepts user, assistant, tool, system and developer", Provider: llmwire.ProviderAnthropic}
		}
		if err != nil {
			return nil, nil, fmt.Errorf("messages[%d]: %w", i, err)
		}
		if len(content) == 0 {
			continue
		}

		if n := len(turns); n > 0 && turns[n-1].role == role {
			turns[n-1].content = append(turns[n-1].content, content...)
			continue
		}
		turns = append(turns, turn{role: role, content: content})
	}

	out := make([]any, 0, len(turns))
	for _, t := range turns {
		out = append(out, map[string]any{"role": t.role, "content": t.content})
	}
	return system, out, nil
}

func encodeToolMessage(m llmwire.Message) ([]any, error) {
	id := m.ToolCallID
	if id == "" {
		id = m.ActionID
	}
	if id == "" {
		return nil, &llmwire.CastError{Kind: "tool_result", Value: m, Reason: "tool message requires tool_call_id", Provider: llmwire.ProviderAnthropic}
	}

	result := llmwire.ToolResultBlock{ToolUseID: id}
	onlyText := true
	for _, block := range m.Content {
		if block.Type() != llmwire.BlockTypeText {
			onlyText = false
			break
		}
	}
	if onlyText {
		result.Text = m.Text()
	} else {
		result.Content = m.Content
	}

	block, err := registry.Serialize(result)
	if err != nil {
		return nil, err
	}
	return []any{block}, nil
}

// encodeAssistant renders content blocks in order, then any tool calls not
// already present as tool_use blocks.
func encodeAssistant(m llmwire.Message) ([]any, error) {
	content, err := registry.SerializeAll(m.Content)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, block := range m.Content {
		if tu, ok := block.(llmwire.ToolUseBlock); ok {
			seen[tu.ID] = true
		}
	}
	for _, call := range m.ToolCalls {
		if seen[call.ID] {
			continue
		}
		input := call.Params
		if input == nil {
			input = llmwire.ParseArguments(call.Arguments)
		}
		block, err := registry.Serialize(llmwire.ToolUseBlock{ID: call.ID, Name: call.Name, Input: input})
		if err != nil {
			return nil, err
		}
		content = append(content, block)
	}
	return content, nil
}
