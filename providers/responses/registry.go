package responses

import (
	"github.com/haowjy/llmwire-go"
)

// registry maps Responses content parts. Like Chat Completions it is
// strict: unknown part types fail with *llmwire.CastError.
var registry = llmwire.NewBlockRegistry(llmwire.ProviderOpenAIResponses, true).
	Register("input_text", castText).
	Register("output_text", castText).
	Register("input_image", castImage).
	Register("input_file", castFile).
	RegisterSerializer(llmwire.BlockTypeText, serializeText).
	RegisterSerializer(llmwire.BlockTypeImage, serializeImage).
	RegisterSerializer(llmwire.BlockTypeDocument, serializeFile)

// Registry returns the Responses content registry.
func Registry() *llmwire.BlockRegistry {
	return registry
}

func castText(raw map[string]any) (llmwire.ContentBlock, error) {
	return llmwire.TextBlock{Text: llmwire.StringField(raw, "text")}, nil
}

func castImage(raw map[string]any) (llmwire.ContentBlock, error) {
	img := llmwire.ImageBlock{
		URL:    llmwire.StringField(raw, "image_url"),
		FileID: llmwire.StringField(raw, "file_id"),
		Detail: llmwire.StringField(raw, "detail"),
	}
	if mediaType, data, ok := llmwire.ParseDataURI(img.URL); ok {
		img.URL, img.MediaType, img.Data = "", mediaType, data
	}
	return img, nil
}

func castFile(raw map[string]any) (llmwire.ContentBlock, error) {
	doc := llmwire.DocumentBlock{
		FileID:   llmwire.StringField(raw, "file_id"),
		URL:      llmwire.StringField(raw, "file_url"),
		Filename: llmwire.StringField(raw, "filename"),
	}
	if data := llmwire.StringField(raw, "file_data"); data != "" {
		if mediaType, payload, ok := llmwire.ParseDataURI(data); ok {
			doc.MediaType, doc.Data = mediaType, payload
		} else {
			doc.Data = data
		}
	}
	return doc, nil
}

func serializeText(block llmwire.ContentBlock) (map[string]any, error) {
	tb := block.(llmwire.TextBlock)
	return map[string]any{"type": "input_text", "text": tb.Text}, nil
}

func serializeImage(block llmwire.ContentBlock) (map[string]any, error) {
	img := block.(llmwire.ImageBlock)
	out := map[string]any{"type": "input_image"}
	switch {
	case img.URL != "":
		out["image_url"] = img.URL
	case img.Data != "":
		out["image_url"] = llmwire.DataURI(img.MediaType, img.Data)
	}
	llmwire.PutString(out, "file_id", img.FileID)
	llmwire.PutString(out, "detail", img.Detail)
	return out, nil
}

func serializeFile(block llmwire.ContentBlock) (map[string]any, error) {
	doc := block.(llmwire.DocumentBlock)
	out := map[string]any{"type": "input_file"}
	llmwire.PutString(out, "file_id", doc.FileID)
	llmwire.PutString(out, "file_url", doc.URL)
	llmwire.PutString(out, "filename", doc.Filename)
	if doc.Data != "" {
		if doc.MediaType != "" {
			out["file_data"] = llmwire.DataURI(doc.MediaType, doc.Data)
		} else {
			out["file_data"] = doc.Data
		}
	}
	return out, nil
}
