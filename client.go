package llmwire

import (
	"context"
	"encoding/json"
)

// Client performs the network call for a serialized request. It is the
// boundary to vendor transports; the core depends only on this shape.
type Client interface {
	// Send posts a non-streaming request and returns the raw response body.
	Send(ctx context.Context, payload map[string]any) (json.RawMessage, error)

	// Stream posts a streaming request and returns the raw chunk sequence.
	Stream(ctx context.Context, payload map[string]any) (ChunkStream, error)
}

// ChunkStream is a pull-style iterator over raw stream chunks.
//
//	for stream.Next() {
//	    raw := stream.Chunk()
//	}
//	if err := stream.Err(); err != nil { ... }
type ChunkStream interface {
	Next() bool
	Chunk() json.RawMessage
	Err() error
	Close() error
}

// SliceStream is a ChunkStream over pre-recorded chunks.
type SliceStream struct {
	chunks []json.RawMessage
	pos    int
	err    error
}

// NewSliceStream returns a stream yielding chunks in order, then err.
func NewSliceStream(chunks []json.RawMessage, err error) *SliceStream {
	return &SliceStream{chunks: chunks, pos: -1, err: err}
}

func (s *SliceStream) Next() bool {
	if s.pos+1 >= len(s.chunks) {
		s.pos = len(s.chunks)
		return false
	}
	s.pos++
	return true
}

func (s *SliceStream) Chunk() json.RawMessage {
	if s.pos < 0 || s.pos >= len(s.chunks) {
		return nil
	}
	return s.chunks[s.pos]
}

func (s *SliceStream) Err() error {
	if s.pos >= len(s.chunks) {
		return s.err
	}
	return nil
}

func (s *SliceStream) Close() error { return nil }
