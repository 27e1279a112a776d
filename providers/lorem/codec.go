package lorem

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/haowjy/llmwire-go"
	"github.com/haowjy/llmwire-go/providers/openai"
)

// Codec speaks the Chat Completions wire format under the lorem provider id.
type Codec struct {
	*openai.Codec
}

// NewCodec returns the lorem codec.
func NewCodec() *Codec {
	return &Codec{Codec: openai.NewCodec()}
}

func (c *Codec) Provider() llmwire.ProviderID {
	return llmwire.ProviderLorem
}

func (c *Codec) DecodeResponse(_ *llmwire.GenerateRequest, raw json.RawMessage) (*llmwire.Response, error) {
	return openai.DecodeResponse(llmwire.ProviderLorem, raw)
}

// NewProvider wires the lorem codec to client.
func NewProvider(client llmwire.Client, opts ...llmwire.Option) *llmwire.Generator {
	return llmwire.NewGenerator(NewCodec(), client, opts...)
}

// FromConfig builds a mock provider; only the shared settings of cfg apply.
func FromConfig(cfg *llmwire.Config, logger zerolog.Logger, opts ...llmwire.Option) (*llmwire.Generator, error) {
	client := NewClient(WithClientLogger(logger))
	opts = append([]llmwire.Option{llmwire.WithConfig(cfg), llmwire.WithLogger(logger)}, opts...)
	return NewProvider(client, opts...), nil
}
