// Package openrouter implements the OpenRouter codec. Requests are the
// OpenAI Chat Completions request adjusted by an override table; responses
// add reasoning fields to the Chat Completions shape.
package openrouter

import (
	"encoding/json"

	"github.com/haowjy/llmwire-go"
	"github.com/haowjy/llmwire-go/providers/openai"
	"github.com/haowjy/llmwire-go/transport"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the OpenRouter API root.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// registry is the Chat Completions registry under the OpenRouter id (strict).
var registry = openai.NewRegistry(llmwire.ProviderOpenRouter)

// Registry returns the OpenRouter content registry.
func Registry() *llmwire.BlockRegistry {
	return registry
}

// CastInput converts loosely-typed input into canonical messages.
func CastInput(raw any) ([]llmwire.Message, error) {
	return llmwire.CastMessages(raw, registry)
}

// Codec translates canonical requests into OpenRouter payloads.
type Codec struct{}

// NewCodec returns the OpenRouter codec.
func NewCodec() *Codec {
	return &Codec{}
}

func (c *Codec) Provider() llmwire.ProviderID {
	return llmwire.ProviderOpenRouter
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
	return ChunkDecoder{}
}

// ClientOptions are the optional attribution headers OpenRouter accepts.
type ClientOptions struct {
	BaseURL string

	// Referer and Title identify the calling app on openrouter.ai.
	Referer string
	Title   string
}

// NewClient returns an HTTP client for the chat endpoint.
func NewClient(apiKey string, opts ClientOptions, logger zerolog.Logger) (*transport.Client, error) {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	headers := make(map[string]string)
	if opts.Referer != "" {
		headers["HTTP-Referer"] = opts.Referer
	}
	if opts.Title != "" {
		headers["X-Title"] = opts.Title
	}
	return transport.New(transport.Config{
		Provider: llmwire.ProviderOpenRouter,
		BaseURL:  baseURL,
		Path:     "/chat/completions",
		APIKey:   apiKey,
		Headers:  headers,
		Logger:   logger,
	})
}

// NewProvider wires the codec to client.
func NewProvider(client llmwire.Client, opts ...llmwire.Option) *llmwire.Generator {
	return llmwire.NewGenerator(NewCodec(), client, opts...)
}

// FromConfig builds a provider from the openrouter section of cfg.
func FromConfig(cfg *llmwire.Config, logger zerolog.Logger, opts ...llmwire.Option) (*llmwire.Generator, error) {
	pc, err := cfg.Provider(llmwire.ProviderOpenRouter)
	if err != nil {
		return nil, err
	}
	client, err := NewClient(pc.APIKey, ClientOptions{BaseURL: pc.BaseURL}, logger)
	if err != nil {
		return nil, err
	}
	opts = append([]llmwire.Option{llmwire.WithConfig(cfg), llmwire.WithLogger(logger)}, opts...)
	return NewProvider(client, opts...), nil
}
