package llmwire

import (
	"encoding/json"
	"strings"
)

// ContentTypeJSON marks a message whose content was requested as JSON.
const ContentTypeJSON = "application/json"

// ApplyStructuredOutput decodes the text of msg as JSON when format asks for
// JSON output.
//
// On success Parsed holds the decoded value, which may be a scalar, and
// RawContent the original text. A JSON null leaves Parsed nil. On failure
// the message keeps ContentType set and Value() returns the raw string; the
// returned *ParseError is informational and must not abort the pipeline.
func ApplyStructuredOutput(msg *Message, format *ResponseFormat) *ParseError {
	if msg == nil || !format.WantsJSON() {
		return nil
	}

	raw := msg.Text()
	msg.ContentType = ContentTypeJSON
	msg.RawContent = raw

	var parsed any
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err != nil {
		return &ParseError{Raw: raw, Err: err}
	}

	msg.Parsed = parsed
	return nil
}
