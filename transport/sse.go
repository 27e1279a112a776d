package transport

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/haowjy/llmwire-go"
)

const maxLineSize = 1 << 20

// eventStream reads server-sent events and yields each data payload.
// Comment lines, event names and keep-alives are skipped; "[DONE]" ends
// the stream.
type eventStream struct {
	provider llmwire.ProviderID
	body     io.ReadCloser
	scanner  *bufio.Scanner
	chunk    json.RawMessage
	err      error
	done     bool
}

func newEventStream(provider llmwire.ProviderID, body io.ReadCloser) *eventStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &eventStream{provider: provider, body: body, scanner: scanner}
}

// NewEventStream exposes the SSE reader for callers that own the response body.
func NewEventStream(provider llmwire.ProviderID, body io.ReadCloser) llmwire.ChunkStream {
	return newEventStream(provider, body)
}

func (s *eventStream) Next() bool {
	if s.done {
		return false
	}

	var data strings.Builder
	for s.scanner.Scan() {
		line := s.scanner.Text()

		if line == "" {
			// blank line terminates an event
			if data.Len() > 0 {
				return s.emit(data.String())
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		payload := strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
		if payload == "[DONE]" {
			s.done = true
			return false
		}
		if data.Len() > 0 {
			data.WriteByte('\n')
		}
		data.WriteString(payload)
	}

	s.done = true
	if err := s.scanner.Err(); err != nil {
		s.err = err
		return false
	}
	if data.Len() > 0 {
		return s.emit(data.String())
	}
	return false
}

func (s *eventStream) emit(data string) bool {
	if err := streamError(s.provider, []byte(data)); err != nil {
		s.err = err
		s.done = true
		return false
	}
	s.chunk = json.RawMessage(data)
	return true
}

func (s *eventStream) Chunk() json.RawMessage {
	return s.chunk
}

func (s *eventStream) Err() error {
	return s.err
}

func (s *eventStream) Close() error {
	s.done = true
	return s.body.Close()
}
