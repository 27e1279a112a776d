package lorem

import (
	"fmt"
	"strings"

	loremgen "github.com/bozaro/golorem"
)

// DefaultWords is the reply length when the payload sets no token limit.
const DefaultWords = 24

// reply is the scripted outcome of one call, derived from the payload.
type reply struct {
	text         string
	reasoning    string
	call         *toolCall
	finishReason string
	inputTokens  int
	outputTokens int
}

type toolCall struct {
	id        string
	name      string
	arguments string
}

// toolTemplates are fixed arguments for commonly named tools; other tools
// get arguments generated from their parameter schema.
var toolTemplates = map[string]map[string]any{
	"search": {
		"query": "lorem ipsum dolor sit amet",
	},
	"bash": {
		"command": "echo 'lorem ipsum'",
	},
	"text_editor": {
		"command":   "str_replace",
		"file_path": "/path/to/file.txt",
		"old_str":   "consectetur",
		"new_str":   "adipiscing",
	},
}

// isCutoffModel reports whether model always overruns its token limit.
func isCutoffModel(model string) bool {
	return strings.Contains(model, "cutoff") || strings.Contains(model, "small")
}

// words returns roughly n lorem words.
func words(gen *loremgen.Lorem, n int) []string {
	var out []string
	for len(out) < n {
		out = append(out, strings.Fields(gen.Sentence(5, 15))...)
	}
	return out[:n]
}

// composeReply decides what the mock model says. A tool call is made when
// tools are offered and the conversation does not end with a tool result,
// or when the tool choice forces one. JSON formats get a body generated
// from the schema; everything else is lorem text.
func composeReply(gen *loremgen.Lorem, payload map[string]any, seq int) reply {
	model, _ := payload["model"].(string)
	messages, _ := payload["messages"].([]any)
	r := reply{inputTokens: countWords(messages), finishReason: "stop"}

	if effort, ok := payload["reasoning_effort"].(string); ok && effort != "" {
		r.reasoning = strings.Join(words(gen, 12), " ")
	}

	if tool, ok := pickTool(payload, messages); ok {
		name := stringAt(tool, "function", "name")
		args, found := toolTemplates[name]
		if !found {
			args = fromSchema(gen, mapAt(tool, "function", "parameters"))
		}
		encoded := encodeJSON(args)
		r.call = &toolCall{id: fmt.Sprintf("call_lorem_%d", seq), name: name, arguments: encoded}
		r.finishReason = "tool_calls"
		r.outputTokens = len(encoded) / 4
		return r
	}

	if format, ok := payload["response_format"].(map[string]any); ok {
		switch format["type"] {
		case "json_schema":
			r.text = encodeJSON(fromSchema(gen, mapAt(format, "json_schema", "schema")))
			r.outputTokens = len(r.text) / 4
			return r
		case "json_object":
			r.text = encodeJSON(map[string]any{"lorem": gen.Sentence(4, 8)})
			r.outputTokens = len(r.text) / 4
			return r
		}
	}

	limit, limited := maxTokens(payload)
	target := DefaultWords
	switch {
	case limited && isCutoffModel(model):
		target = limit + limit/2
	case limited && limit < target:
		target = limit + 1
	}
	text := words(gen, target)
	if limited && len(text) > limit {
		text = text[:limit]
		r.finishReason = "length"
	}
	r.text = strings.Join(text, " ")
	r.outputTokens = len(text)
	return r
}

func maxTokens(payload map[string]any) (int, bool) {
	for _, key := range []string{"max_completion_tokens", "max_tokens"} {
		if n, ok := payload[key].(float64); ok && n > 0 {
			return int(n), true
		}
	}
	return 0, false
}

// pickTool returns the tool the mock calls, rotating through the offered
// tools by the number of earlier assistant tool calls.
func pickTool(payload map[string]any, messages []any) (map[string]any, bool) {
	tools, _ := payload["tools"].([]any)
	if len(tools) == 0 {
		return nil, false
	}

	forced := ""
	switch choice := payload["tool_choice"].(type) {
	case string:
		if choice == "none" {
			return nil, false
		}
		if choice == "required" {
			forced = "*"
		}
	case map[string]any:
		forced = stringAt(choice, "function", "name")
	}

	if forced == "" && len(messages) > 0 {
		if last, ok := messages[len(messages)-1].(map[string]any); ok && last["role"] == "tool" {
			return nil, false
		}
	}

	for _, t := range tools {
		tool, _ := t.(map[string]any)
		if forced != "" && forced != "*" && stringAt(tool, "function", "name") == forced {
			return tool, true
		}
	}
	tool, _ := tools[priorCalls(messages)%len(tools)].(map[string]any)
	return tool, tool != nil
}

func priorCalls(messages []any) int {
	n := 0
	for _, m := range messages {
		if msg, ok := m.(map[string]any); ok {
			calls, _ := msg["tool_calls"].([]any)
			n += len(calls)
		}
	}
	return n
}

// fromSchema builds a value that satisfies the common subset of a JSON
// schema: typed properties, enums, arrays and nested objects.
func fromSchema(gen *loremgen.Lorem, schema map[string]any) map[string]any {
	out := map[string]any{}
	props, _ := schema["properties"].(map[string]any)
	for name, p := range props {
		prop, _ := p.(map[string]any)
		out[name] = valueFor(gen, prop)
	}
	return out
}

func valueFor(gen *loremgen.Lorem, prop map[string]any) any {
	if enum, ok := prop["enum"].([]any); ok && len(enum) > 0 {
		return enum[0]
	}
	typ, _ := prop["type"].(string)
	if types, ok := prop["type"].([]any); ok && len(types) > 0 {
		typ, _ = types[0].(string)
	}
	switch typ {
	case "integer":
		return 3
	case "number":
		return 4.2
	case "boolean":
		return true
	case "array":
		items, _ := prop["items"].(map[string]any)
		return []any{valueFor(gen, items)}
	case "object":
		return fromSchema(gen, prop)
	case "null":
		return nil
	default:
		return gen.Word(4, 10)
	}
}

// countWords approximates input tokens by counting words in text content.
func countWords(messages []any) int {
	total := 0
	for _, m := range messages {
		msg, _ := m.(map[string]any)
		switch content := msg["content"].(type) {
		case string:
			total += len(strings.Fields(content))
		case []any:
			for _, part := range content {
				if p, ok := part.(map[string]any); ok {
					text, _ := p["text"].(string)
					total += len(strings.Fields(text))
				}
			}
		}
	}
	return total
}

func mapAt(m map[string]any, path ...string) map[string]any {
	for _, key := range path {
		next, ok := m[key].(map[string]any)
		if !ok {
			return nil
		}
		m = next
	}
	return m
}

func stringAt(m map[string]any, path ...string) string {
	parent := mapAt(m, path[:len(path)-1]...)
	s, _ := parent[path[len(path)-1]].(string)
	return s
}
