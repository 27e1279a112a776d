package llmwire

// BlockType is the discriminator of a content block.
type BlockType string

// Block type constants
const (
	BlockTypeText             BlockType = "text"
	BlockTypeImage            BlockType = "image"
	BlockTypeDocument         BlockType = "document"
	BlockTypeToolUse          BlockType = "tool_use"
	BlockTypeToolResult       BlockType = "tool_result"
	BlockTypeThinking         BlockType = "thinking"
	BlockTypeRedactedThinking BlockType = "redacted_thinking"
	BlockTypeSearchResult     BlockType = "search_result"
	BlockTypeRaw              BlockType = "raw"
)

// ContentBlock is one typed unit of message content.
//
// The set of variants is closed: TextBlock, ImageBlock, DocumentBlock,
// ToolUseBlock, ToolResultBlock, ThinkingBlock, RedactedThinkingBlock,
// SearchResultBlock and RawBlock. The discriminator of a variant never
// changes.
type ContentBlock interface {
	Type() BlockType
	Validate() error
	isContentBlock()
}

// TextBlock is plain text content.
type TextBlock struct {
	Text string `json:"text"`
}

func (TextBlock) Type() BlockType { return BlockTypeText }
func (TextBlock) isContentBlock() {}

func (b TextBlock) Validate() error {
	if b.Text == "" {
		return &CastError{Kind: "text", Value: b, Reason: "text must not be empty"}
	}
	return nil
}

// ImageBlock is an image referenced by URL (including data URIs), by an
// uploaded FileID, or carried inline as base64 Data with a MediaType.
type ImageBlock struct {
	URL       string `json:"url,omitempty"`
	FileID    string `json:"file_id,omitempty"` // uploaded file reference (Responses, Anthropic)
	Detail    string `json:"detail,omitempty"` // OpenAI: auto, low, high
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"` // base64 without the data: prefix
}

func (ImageBlock) Type() BlockType { return BlockTypeImage }
func (ImageBlock) isContentBlock() {}

func (b ImageBlock) Validate() error {
	if b.URL == "" && b.Data == "" && b.FileID == "" {
		return &CastError{Kind: "image", Value: b, Reason: "image_url must not be empty"}
	}
	return nil
}

// DocumentBlock is a file attachment (PDF, plain text, uploaded file id).
type DocumentBlock struct {
	FileID    string `json:"file_id,omitempty"`
	Data      string `json:"data,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	URL       string `json:"url,omitempty"`
	Filename  string `json:"filename,omitempty"`
	Title     string `json:"title,omitempty"`
	Context   string `json:"context,omitempty"`
	Text      string `json:"text,omitempty"` // plain-text document source
}

func (DocumentBlock) Type() BlockType { return BlockTypeDocument }
func (DocumentBlock) isContentBlock() {}

func (b DocumentBlock) Validate() error {
	if b.FileID == "" && b.Data == "" && b.URL == "" && b.Text == "" {
		return &CastError{Kind: "document", Value: b, Reason: "document requires file_id, data, url or text"}
	}
	return nil
}

// ToolUseBlock is an assistant tool invocation carried inline (Anthropic).
type ToolUseBlock struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

func (ToolUseBlock) Type() BlockType { return BlockTypeToolUse }
func (ToolUseBlock) isContentBlock() {}

func (b ToolUseBlock) Validate() error {
	if b.Name == "" {
		return &CastError{Kind: "tool_use", Value: b, Reason: "name must not be empty"}
	}
	return nil
}

// ToolResultBlock answers a ToolUseBlock. Exactly one of Text or Content
// is used; Text mirrors the wire form where content is a bare string.
type ToolResultBlock struct {
	ToolUseID string         `json:"tool_use_id"`
	Text      string         `json:"text,omitempty"`
	Content   []ContentBlock `json:"-"`
	IsError   bool           `json:"is_error,omitempty"`
}

func (ToolResultBlock) Type() BlockType { return BlockTypeToolResult }
func (ToolResultBlock) isContentBlock() {}

func (b ToolResultBlock) Validate() error {
	if b.ToolUseID == "" {
		return &CastError{Kind: "tool_result", Value: b, Reason: "tool_use_id must not be empty"}
	}
	return nil
}

// ThinkingBlock is model reasoning. Signature must be echoed back verbatim.
type ThinkingBlock struct {
	Thinking  string `json:"thinking"`
	Signature string `json:"signature,omitempty"`
}

func (ThinkingBlock) Type() BlockType { return BlockTypeThinking }
func (ThinkingBlock) isContentBlock() {}
func (ThinkingBlock) Validate() error { return nil }

// RedactedThinkingBlock is encrypted reasoning.
type RedactedThinkingBlock struct {
	Data string `json:"data"`
}

func (RedactedThinkingBlock) Type() BlockType { return BlockTypeRedactedThinking }
func (RedactedThinkingBlock) isContentBlock() {}

func (b RedactedThinkingBlock) Validate() error {
	if b.Data == "" {
		return &CastError{Kind: "redacted_thinking", Value: b, Reason: "data must not be empty"}
	}
	return nil
}

// SearchResultBlock is a caller-supplied search result for grounding.
type SearchResultBlock struct {
	Source  string      `json:"source"`
	Title   string      `json:"title"`
	Content []TextBlock `json:"content"`
}

func (SearchResultBlock) Type() BlockType { return BlockTypeSearchResult }
func (SearchResultBlock) isContentBlock() {}

func (b SearchResultBlock) Validate() error {
	if b.Source == "" {
		return &CastError{Kind: "search_result", Value: b, Reason: "source must not be empty"}
	}
	return nil
}

// RawBlock carries an unrecognised block through lenient registries unchanged.
type RawBlock struct {
	Fields map[string]any `json:"fields"`
}

func (RawBlock) Type() BlockType { return BlockTypeRaw }
func (RawBlock) isContentBlock() {}
func (RawBlock) Validate() error { return nil }

// WireType returns the original "type" discriminator of the raw block.
func (b RawBlock) WireType() string {
	s, _ := b.Fields["type"].(string)
	return s
}
