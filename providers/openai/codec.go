// Package openai implements the OpenAI Chat Completions codec, a
// transport-backed provider, and the embeddings endpoint.
package openai

import (
	"encoding/json"

	"github.com/haowjy/llmwire-go"
	"github.com/haowjy/llmwire-go/transport"
	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the public OpenAI API root.
	DefaultBaseURL = "https://api.openai.com/v1"

	chatPath = "/chat/completions"
)

// Codec translates canonical requests into Chat Completions payloads.
type Codec struct{}

// NewCodec returns the Chat Completions codec.
func NewCodec() *Codec {
	return &Codec{}
}

// Provider returns llmwire.ProviderOpenAI.
func (c *Codec) Provider() llmwire.ProviderID {
	return llmwire.ProviderOpenAI
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

// BuildPayload returns the minimal wire payload.
func (c *Codec) BuildPayload(req *llmwire.GenerateRequest, stream bool) (map[string]any, error) {
	r, err := c.BuildRequest(req, stream)
	if err != nil {
		return nil, err
	}
	return r.Serialize()
}

// DecodeResponse normalizes a chat.completion body.
func (c *Codec) DecodeResponse(_ *llmwire.GenerateRequest, raw json.RawMessage) (*llmwire.Response, error) {
	return DecodeResponse(llmwire.ProviderOpenAI, raw)
}

// NewChunkDecoder returns a stateless chunk decoder.
func (c *Codec) NewChunkDecoder(_ *llmwire.GenerateRequest) llmwire.ChunkDecoder {
	return ChunkDecoder{}
}

// NewClient returns an HTTP client for the chat endpoint. An empty baseURL
// means DefaultBaseURL.
func NewClient(apiKey, baseURL string, logger zerolog.Logger) (*transport.Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return transport.New(transport.Config{
		Provider: llmwire.ProviderOpenAI,
		BaseURL:  baseURL,
		Path:     chatPath,
		APIKey:   apiKey,
		Logger:   logger,
	})
}

// NewProvider wires the codec to client.
func NewProvider(client llmwire.Client, opts ...llmwire.Option) *llmwire.Generator {
	return llmwire.NewGenerator(NewCodec(), client, opts...)
}

// FromConfig builds a provider from the openai section of cfg.
func FromConfig(cfg *llmwire.Config, logger zerolog.Logger, opts ...llmwire.Option) (*llmwire.Generator, error) {
	pc, err := cfg.Provider(llmwire.ProviderOpenAI)
	if err != nil {
		return nil, err
	}
	client, err := NewClient(pc.APIKey, pc.BaseURL, logger)
	if err != nil {
		return nil, err
	}
	opts = append([]llmwire.Option{llmwire.WithConfig(cfg), llmwire.WithLogger(logger)}, opts...)
	return NewProvider(client, opts...), nil
}
