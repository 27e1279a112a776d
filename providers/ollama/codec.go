// Package ollama implements the Ollama /api/chat codec and an
// llmwire.Client backed by github.com/ollama/ollama/api.
//
// Ollama streams by default, so the payload always carries "stream". Tool
// calls arrive whole and without ids; results are correlated by tool_name.
package ollama

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/haowjy/llmwire-go"
)

// Codec translates canonical requests into /api/chat payloads.
type Codec struct{}

// NewCodec returns the Ollama codec.
func NewCodec() *Codec {
	return &Codec{}
}

func (c *Codec) Provider() llmwire.ProviderID {
	return llmwire.ProviderOllama
}

// BuildRequest builds and validates the typed request for one call.
func (c *Codec) BuildRequest(req *llmwire.GenerateRequest, stream bool) (*Request, error) {
	r, err := FromGenerateRequest(req)
	if err != nil {
		return nil, err
	}
	r.SetStream(stream)
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (c *Codec) BuildPayload(req *llmwire.GenerateRequest, stream bool) (map[string]any, error) {
	r, err := c.BuildRequest(req, stream)
	if err != nil {
		return nil, err
	}
	return r.Serialize()
}

func (c *Codec) DecodeResponse(_ *llmwire.GenerateRequest, raw json.RawMessage) (*llmwire.Response, error) {
	return DecodeResponse(raw)
}

func (c *Codec) NewChunkDecoder(_ *llmwire.GenerateRequest) llmwire.ChunkDecoder {
	return NewChunkDecoder()
}

// NewProvider wires the codec to client.
func NewProvider(client llmwire.Client, opts ...llmwire.Option) *llmwire.Generator {
	return llmwire.NewGenerator(NewCodec(), client, opts...)
}

// FromConfig builds a provider from the ollama section of cfg. The base URL
// falls back to OLLAMA_HOST and then http://localhost:11434.
func FromConfig(cfg *llmwire.Config, logger zerolog.Logger, opts ...llmwire.Option) (*llmwire.Generator, error) {
	pc, err := cfg.Provider(llmwire.ProviderOllama)
	if err != nil {
		return nil, err
	}
	client, err := NewAPIClient(pc.BaseURL, logger)
	if err != nil {
		return nil, err
	}
	opts = append([]llmwire.Option{llmwire.WithConfig(cfg), llmwire.WithLogger(logger)}, opts...)
	return NewProvider(client, opts...), nil
}
