package ollama

import (
	"github.com/haowjy/llmwire-go"
)

// Ollama messages carry a plain content string, an images list and a
// thinking string, so the registry accepts only blocks that fold into those
// fields. It is strict.
var registry *llmwire.BlockRegistry

func init() {
	registry = llmwire.NewBlockRegistry(llmwire.ProviderOllama, true).
		Register("text", castText).
		Register("image", castImage).
		Register("thinking", castThinking).
		RegisterSerializer(llmwire.BlockTypeText, serializeText).
		RegisterSerializer(llmwire.BlockTypeImage, serializeImage).
		RegisterSerializer(llmwire.BlockTypeThinking, serializeThinking).
		RegisterSerializer(llmwire.BlockTypeToolUse, serializeToolUse).
		RegisterSerializer(llmwire.BlockTypeToolResult, serializeToolResult)
}

// Registry returns the Ollama content registry.
func Registry() *llmwire.BlockRegistry {
	return registry
}

func castText(raw map[string]any) (llmwire.ContentBlock, error) {
	return llmwire.TextBlock{Text: llmwire.StringField(raw, "text")}, nil
}

// castImage accepts {type:"image", data} with bare base64 or a data URI.
func castImage(raw map[string]any) (llmwire.ContentBlock, error) {
	data := llmwire.StringField(raw, "data")
	if data == "" {
		data = llmwire.StringField(raw, "url")
	}
	if mediaType, payload, ok := llmwire.ParseDataURI(data); ok {
		return llmwire.ImageBlock{MediaType: mediaType, Data: payload}, nil
	}
	if data == "" {
		return nil, &llmwire.CastError{Kind: "image", Value: raw, Reason: "ollama images need inline base64 data"}
	}
	return llmwire.ImageBlock{Data: data}, nil
}

func castThinking(raw map[string]any) (llmwire.ContentBlock, error) {
	return llmwire.ThinkingBlock{Thinking: llmwire.StringField(raw, "thinking")}, nil
}

func serializeText(block llmwire.ContentBlock) (map[string]any, error) {
	return llmwire.SerializeText(block.(llmwire.TextBlock).Text), nil
}

func serializeImage(block llmwire.ContentBlock) (map[string]any, error) {
	img := block.(llmwire.ImageBlock)
	data := img.Data
	if data == "" {
		_, payload, ok := llmwire.ParseDataURI(img.URL)
		if !ok {
			return nil, &llmwire.CastError{Kind: "image", Value: img.URL, Reason: "ollama does not fetch image URLs; pass base64 data"}
		}
		data = payload
	}
	return map[string]any{"type": "image", "data": data}, nil
}

func serializeThinking(block llmwire.ContentBlock) (map[string]any, error) {
	return map[string]any{"type": "thinking", "thinking": block.(llmwire.ThinkingBlock).Thinking}, nil
}

func serializeToolUse(block llmwire.ContentBlock) (map[string]any, error) {
	tu := block.(llmwire.ToolUseBlock)
	return map[string]any{"type": "tool_use", "name": tu.Name, "arguments": tu.Input}, nil
}

// serializeToolResult flattens nested content to text; Ollama tool messages
// are plain strings.
func serializeToolResult(block llmwire.ContentBlock) (map[string]any, error) {
	tr := block.(llmwire.ToolResultBlock)
	text := tr.Text
	if text == "" {
		msg := llmwire.Message{Content: tr.Content}
		text = msg.Text()
	}
	return map[string]any{"type": "tool_result", "tool_use_id": tr.ToolUseID, "content": text}, nil
}
