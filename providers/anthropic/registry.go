package anthropic

import (
	"github.com/anthropics/anthropic-sdk-go"

	"github.com/haowjy/llmwire-go"
)

// registry is lenient: unknown block types (server tool results, container
// uploads, future additions) survive as llmwire.RawBlock and are sent back
// unchanged.
var registry *llmwire.BlockRegistry

func init() {
	registry = llmwire.NewBlockRegistry(llmwire.ProviderAnthropic, false).
		Register("text", castText).
		Register("image", castImage).
		Register("document", castDocument).
		Register("tool_use", castToolUse).
		Register("tool_result", castToolResult).
		Register("thinking", castThinking).
		Register("redacted_thinking", castRedactedThinking).
		Register("search_result", castSearchResult).
		RegisterSerializer(llmwire.BlockTypeText, serializeText).
		RegisterSerializer(llmwire.BlockTypeImage, serializeImage).
		RegisterSerializer(llmwire.BlockTypeDocument, serializeDocument).
		RegisterSerializer(llmwire.BlockTypeToolUse, serializeToolUse).
		RegisterSerializer(llmwire.BlockTypeToolResult, serializeToolResult).
		RegisterSerializer(llmwire.BlockTypeThinking, serializeThinking).
		RegisterSerializer(llmwire.BlockTypeRedactedThinking, serializeRedactedThinking).
		RegisterSerializer(llmwire.BlockTypeSearchResult, serializeSearchResult)
}

// Registry returns the Anthropic content registry.
func Registry() *llmwire.BlockRegistry {
	return registry
}

// wire renders an SDK content param as a generic map.
func wire(u anthropic.ContentBlockParamUnion) (map[string]any, error) {
	return llmwire.ToMap(u)
}

func castText(raw map[string]any) (llmwire.ContentBlock, error) {
	return llmwire.TextBlock{Text: llmwire.StringField(raw, "text")}, nil
}

func castImage(raw map[string]any) (llmwire.ContentBlock, error) {
	source := llmwire.MapField(raw, "source")
	switch llmwire.StringField(source, "type") {
	case "base64":
		return llmwire.ImageBlock{
			MediaType: llmwire.StringField(source, "media_type"),
			Data:      llmwire.StringField(source, "data"),
		}, nil
	case "url":
		return llmwire.ImageBlock{URL: llmwire.StringField(source, "url")}, nil
	case "file":
		return llmwire.ImageBlock{FileID: llmwire.StringField(source, "file_id")}, nil
	default:
		return nil, &llmwire.CastError{Kind: "image", Value: source, Reason: "source must be base64, url or file"}
	}
}

func castDocument(raw map[string]any) (llmwire.ContentBlock, error) {
	source := llmwire.MapField(raw, "source")
	doc := llmwire.DocumentBlock{
		Title:   llmwire.StringField(raw, "title"),
		Context: llmwire.StringField(raw, "context"),
	}
	switch llmwire.StringField(source, "type") {
	case "base64":
		doc.MediaType = llmwire.StringField(source, "media_type")
		doc.Data = llmwire.StringField(source, "data")
	case "text":
		doc.Text = llmwire.StringField(source, "data")
	case "url":
		doc.URL = llmwire.StringField(source, "url")
	case "file":
		doc.FileID = llmwire.StringField(source, "file_id")
	default:
		return nil, &llmwire.CastError{Kind: "document", Value: source, Reason: "source must be base64, text, url or file"}
	}
	return doc, nil
}

func castToolUse(raw map[string]any) (llmwire.ContentBlock, error) {
	return llmwire.ToolUseBlock{
		ID:    llmwire.StringField(raw, "id"),
		Name:  llmwire.StringField(raw, "name"),
		Input: llmwire.MapField(raw, "input"),
	}, nil
}

func castToolResult(raw map[string]any) (llmwire.ContentBlock, error) {
	tr := llmwire.ToolResultBlock{
		ToolUseID: llmwire.StringField(raw, "tool_use_id"),
		IsError:   llmwire.BoolField(raw, "is_error"),
	}
	switch content := raw["content"].(type) {
	case string:
		tr.Text = content
	case []any:
		blocks, err := registry.CastAll(content)
		if err != nil {
			return nil, err
		}
		tr.Content = blocks
	}
	return tr, nil
}

func castThinking(raw map[string]any) (llmwire.ContentBlock, error) {
	return llmwire.ThinkingBlock{
		Thinking:  llmwire.StringField(raw, "thinking"),
		Signature: llmwire.StringField(raw, "signature"),
	}, nil
}

func castRedactedThinking(raw map[string]any) (llmwire.ContentBlock, error) {
	return llmwire.RedactedThinkingBlock{Data: llmwire.StringField(raw, "data")}, nil
}

func castSearchResult(raw map[string]any) (llmwire.ContentBlock, error) {
	sr := llmwire.SearchResultBlock{
		Source: llmwire.StringField(raw, "source"),
		Title:  llmwire.StringField(raw, "title"),
	}
	for _, item := range llmwire.SliceField(raw, "content") {
		if m, ok := item.(map[string]any); ok {
			sr.Content = append(sr.Content, llmwire.TextBlock{Text: llmwire.StringField(m, "text")})
		}
	}
	return sr, nil
}

func serializeText(block llmwire.ContentBlock) (map[string]any, error) {
	return wire(anthropic.NewTextBlock(block.(llmwire.TextBlock).Text))
}

func serializeImage(block llmwire.ContentBlock) (map[string]any, error) {
	img := block.(llmwire.ImageBlock)
	switch {
	case img.Data != "":
		return wire(anthropic.NewImageBlockBase64(img.MediaType, img.Data))
	case img.URL != "":
		if mediaType, data, ok := llmwire.ParseDataURI(img.URL); ok {
			return wire(anthropic.NewImageBlockBase64(mediaType, data))
		}
		return wire(anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: img.URL}))
	default:
		// file sources are still beta-only in the SDK params
		return map[string]any{
			"type":   "image",
			"source": map[string]any{"type": "file", "file_id": img.FileID},
		}, nil
	}
}

func serializeDocument(block llmwire.ContentBlock) (map[string]any, error) {
	doc := block.(llmwire.DocumentBlock)

	var u anthropic.ContentBlockParamUnion
	switch {
	case doc.Data != "":
		if doc.MediaType != "" && doc.MediaType != "application/pdf" {
			return nil, &llmwire.CastError{Kind: "document", Value: doc.MediaType, Reason: "inline documents must be application/pdf"}
		}
		u = anthropic.NewDocumentBlock(anthropic.Base64PDFSourceParam{Data: doc.Data})
	case doc.Text != "":
		u = anthropic.NewDocumentBlock(anthropic.PlainTextSourceParam{Data: doc.Text})
	case doc.URL != "":
		u = anthropic.NewDocumentBlock(anthropic.URLPDFSourceParam{URL: doc.URL})
	default:
		out := map[string]any{
			"type":   "document",
			"source": map[string]any{"type": "file", "file_id": doc.FileID},
		}
		llmwire.PutString(out, "title", doc.Title)
		llmwire.PutString(out, "context", doc.Context)
		return out, nil
	}

	if doc.Title != "" {
		u.OfDocument.Title = anthropic.String(doc.Title)
	}
	if doc.Context != "" {
		u.OfDocument.Context = anthropic.String(doc.Context)
	}
	return wire(u)
}

func serializeToolUse(block llmwire.ContentBlock) (map[string]any, error) {
	tu := block.(llmwire.ToolUseBlock)
	input := tu.Input
	if input == nil {
		input = map[string]any{}
	}
	return wire(anthropic.NewToolUseBlock(tu.ID, input, tu.Name))
}

// serializeToolResult keeps a bare string content as a string, which the
// SDK param cannot express.
func serializeToolResult(block llmwire.ContentBlock) (map[string]any, error) {
	tr := block.(llmwire.ToolResultBlock)
	out := map[string]any{
		"type":        "tool_result",
		"tool_use_id": tr.ToolUseID,
	}
	if len(tr.Content) > 0 {
		content, err := registry.SerializeAll(tr.Content)
		if err != nil {
			return nil, err
		}
		out["content"] = content
	} else {
		out["content"] = tr.Text
	}
	if tr.IsError {
		out["is_error"] = true
	}
	return out, nil
}

func serializeThinking(block llmwire.ContentBlock) (map[string]any, error) {
	tb := block.(llmwire.ThinkingBlock)
	return wire(anthropic.NewThinkingBlock(tb.Signature, tb.Thinking))
}

func serializeRedactedThinking(block llmwire.ContentBlock) (map[string]any, error) {
	return wire(anthropic.NewRedactedThinkingBlock(block.(llmwire.RedactedThinkingBlock).Data))
}

func serializeSearchResult(block llmwire.ContentBlock) (map[string]any, error) {
	sr := block.(llmwire.SearchResultBlock)
	content := make([]anthropic.TextBlockParam, 0, len(sr.Content))
	for _, tb := range sr.Content {
		content = append(content, anthropic.TextBlockParam{Text: tb.Text})
	}
	return wire(anthropic.NewSearchResultBlock(content, sr.Source, sr.Title))
}
