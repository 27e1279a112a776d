package openai

import (
	"fmt"

	"github.com/haowjy/llmwire-go"
)

// Content parts accepted by Chat Completions. The registry is strict:
// unknown part types fail with *llmwire.CastError.
var registry = NewRegistry(llmwire.ProviderOpenAI)

// Registry returns the OpenAI Chat content registry.
func Registry() *llmwire.BlockRegistry {
	return registry
}

// NewRegistry builds the chat content-part registry for provider. OpenRouter
// reuses it under its own id.
func NewRegistry(provider llmwire.ProviderID) *llmwire.BlockRegistry {
	return llmwire.NewBlockRegistry(provider, true).
		Register("text", castText).
		Register("image_url", castImageURL).
		Register("file", castFile).
		RegisterSerializer(llmwire.BlockTypeText, serializeText).
		RegisterSerializer(llmwire.BlockTypeImage, serializeImage).
		RegisterSerializer(llmwire.BlockTypeDocument, serializeFile)
}

func castText(raw map[string]any) (llmwire.ContentBlock, error) {
	return llmwire.TextBlock{Text: llmwire.StringField(raw, "text")}, nil
}

// castImageURL accepts image_url as a string URL, a data URI, or {url, detail}.
func castImageURL(raw map[string]any) (llmwire.ContentBlock, error) {
	switch v := raw["image_url"].(type) {
	case string:
		return llmwire.ImageBlock{URL: v}, nil
	case map[string]any:
		return llmwire.ImageBlock{
			URL:    llmwire.StringField(v, "url"),
			Detail: llmwire.StringField(v, "detail"),
		}, nil
	default:
		return nil, &llmwire.CastError{Kind: "image", Value: raw["image_url"], Reason: "image_url must be a string or {url, detail}"}
	}
}

func castFile(raw map[string]any) (llmwire.ContentBlock, error) {
	file := llmwire.MapField(raw, "file")
	if file == nil {
		return nil, &llmwire.CastError{Kind: "document", Value: raw, Reason: "missing file object"}
	}
	doc := llmwire.DocumentBlock{
		FileID:   llmwire.StringField(file, "file_id"),
		Filename: llmwire.StringField(file, "filename"),
	}
	if data := llmwire.StringField(file, "file_data"); data != "" {
		if mediaType, payload, ok := llmwire.ParseDataURI(data); ok {
			doc.MediaType, doc.Data = mediaType, payload
		} else {
			doc.Data = data
		}
	}
	return doc, nil
}

func serializeText(block llmwire.ContentBlock) (map[string]any, error) {
	return llmwire.SerializeText(block.(llmwire.TextBlock).Text), nil
}

func serializeImage(block llmwire.ContentBlock) (map[string]any, error) {
	img := block.(llmwire.ImageBlock)
	if img.URL == "" && img.Data == "" {
		return nil, &llmwire.CastError{Kind: "image", Value: img.FileID, Reason: "chat completions images need a url or inline data"}
	}
	url := img.URL
	if url == "" {
		url = llmwire.DataURI(img.MediaType, img.Data)
	}
	imageURL := map[string]any{"url": url}
	if img.Detail != "" {
		imageURL["detail"] = img.Detail
	}
	return map[string]any{"type": "image_url", "image_url": imageURL}, nil
}

func serializeFile(block llmwire.ContentBlock) (map[string]any, error) {
	doc := block.(llmwire.DocumentBlock)
	file := map[string]any{}
	switch {
	case doc.FileID != "":
		file["file_id"] = doc.FileID
	case doc.Data != "" && doc.MediaType != "":
		file["file_data"] = llmwire.DataURI(doc.MediaType, doc.Data)
	case doc.Data != "":
		file["file_data"] = doc.Data
	default:
		return nil, &llmwire.CastError{
			Kind:   "document",
			Value:  doc,
			Reason: fmt.Sprintf("%s files need file_id or inline data", llmwire.ProviderOpenAI),
		}
	}
	if doc.Filename != "" {
		file["filename"] = doc.Filename
	}
	return map[string]any{"type": "file", "file": file}, nil
}
