// Package anthropic implements the Anthropic Messages codec and an
// llmwire.Client backed by anthropic-sdk-go.
//
// The content registry is lenient: block types it does not know are kept
// as llmwire.RawBlock and sent back unchanged, unlike the strict OpenAI
// registries. Structured output is emulated with schema instructions in
// the system prompt and an assistant prefill.
package anthropic

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/haowjy/llmwire-go"
	"github.com/haowjy/llmwire-go/transport"
)

const (
	// DefaultBaseURL is the public Anthropic API root used by NewClient.
	DefaultBaseURL = "https://api.anthropic.com/v1"

	// APIVersion is sent as the anthropic-version header by NewClient.
	APIVersion = "2023-06-01"

	messagesPath = "/messages"
)

// Codec translates canonical requests into Messages API payloads.
type Codec struct{}

// NewCodec returns the Anthropic codec.
func NewCodec() *Codec {
	return &Codec{}
}

func (c *Codec) Provider() llmwire.ProviderID {
	return llmwire.ProviderAnthropic
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

func (c *Codec) DecodeResponse(req *llmwire.GenerateRequest, raw json.RawMessage) (*llmwire.Response, error) {
	return DecodeResponse(raw, PrefillFor(req))
}

func (c *Codec) NewChunkDecoder(req *llmwire.GenerateRequest) llmwire.ChunkDecoder {
	return NewChunkDecoder(PrefillFor(req))
}

// NewClient returns a plain HTTP client for the messages endpoint, for
// callers that do not want the SDK. An empty baseURL means DefaultBaseURL.
func NewClient(apiKey, baseURL string, logger zerolog.Logger) (*transport.Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return transport.New(transport.Config{
		Provider: llmwire.ProviderAnthropic,
		BaseURL:  baseURL,
		Path:     messagesPath,
		APIKey:   apiKey,
		Auth:     transport.AuthAPIKeyHeader,
		Headers:  map[string]string{"anthropic-version": APIVersion},
		Logger:   logger,
	})
}

// NewProvider wires the codec to client.
func NewProvider(client llmwire.Client, opts ...llmwire.Option) *llmwire.Generator {
	return llmwire.NewGenerator(NewCodec(), client, opts...)
}

// FromConfig builds an SDK-backed provider from the anthropic section of cfg.
func FromConfig(cfg *llmwire.Config, logger zerolog.Logger, opts ...llmwire.Option) (*llmwire.Generator, error) {
	pc, err := cfg.Provider(llmwire.ProviderAnthropic)
	if err != nil {
		return nil, err
	}
	client, err := NewSDKClient(pc.APIKey, pc.BaseURL, logger)
	if err != nil {
		return nil, err
	}
	opts = append([]llmwire.Option{llmwire.WithConfig(cfg), llmwire.WithLogger(logger)}, opts...)
	return NewProvider(client, opts...), nil
}
