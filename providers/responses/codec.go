// Package responses implements the OpenAI Responses API codec: flat input
// items, instructions as developer messages, and server-side conversation
// state via previous_response_id or conversation.
package responses

import (
	"encoding/json"

	"github.com/haowjy/llmwire-go"
	"github.com/haowjy/llmwire-go/providers/openai"
	"github.com/haowjy/llmwire-go/transport"
	"github.com/rs/zerolog"
)

const responsesPath = "/responses"

// Codec translates canonical requests into Responses payloads.
type Codec struct{}

// NewCodec returns the Responses codec.
func NewCodec() *Codec {
	return &Codec{}
}

func (c *Codec) Provider() llmwire.ProviderID {
	return llmwire.ProviderOpenAIResponses
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

// NewChunkDecoder returns a stateful decoder; function call indexes are
// tracked per stream.
func (c *Codec) NewChunkDecoder(_ *llmwire.GenerateRequest) llmwire.ChunkDecoder {
	return NewChunkDecoder()
}

// NewClient returns an HTTP client for the responses endpoint. An empty
// baseURL means the OpenAI API root.
func NewClient(apiKey, baseURL string, logger zerolog.Logger) (*transport.Client, error) {
	if baseURL == "" {
		baseURL = openai.DefaultBaseURL
	}
	return transport.New(transport.Config{
		Provider: llmwire.ProviderOpenAIResponses,
		BaseURL:  baseURL,
		Path:     responsesPath,
		APIKey:   apiKey,
		Logger:   logger,
	})
}

// NewProvider wires the codec to client.
func NewProvider(client llmwire.Client, opts ...llmwire.Option) *llmwire.Generator {
	return llmwire.NewGenerator(NewCodec(), client, opts...)
}

// FromConfig builds a provider from the openai_responses section of cfg.
func FromConfig(cfg *llmwire.Config, logger zerolog.Logger, opts ...llmwire.Option) (*llmwire.Generator, error) {
	pc, err := cfg.Provider(llmwire.ProviderOpenAIResponses)
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
