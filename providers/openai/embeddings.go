package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/haowjy/llmwire-go"
	"github.com/haowjy/llmwire-go/transport"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

const embeddingsPath = "/embeddings"

// EmbeddingDefaults are the documented /embeddings defaults.
var EmbeddingDefaults = llmwire.Defaults{
	"encoding_format": "float",
}

var encodingFormats = []string{"float", "base64"}

// EmbedRequest is a typed /embeddings request.
type EmbedRequest struct {
	Model          string
	Input          []string
	Dimensions     *int
	EncodingFormat *string
	User           *string
}

// NewEmbedRequest accepts a single string or a list of strings.
func NewEmbedRequest(model string, input any) (*EmbedRequest, error) {
	r := &EmbedRequest{Model: model, EncodingFormat: llmwire.String("float")}
	switch v := input.(type) {
	case string:
		r.Input = []string{v}
	case []string:
		r.Input = v
	case []any:
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, &llmwire.CastError{Kind: "embedding input", Value: item, Reason: fmt.Sprintf("input[%d] must be a string", i)}
			}
			r.Input = append(r.Input, s)
		}
	default:
		return nil, &llmwire.CastError{Kind: "embedding input", Value: input, Reason: fmt.Sprintf("unsupported type %T", input)}
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks the request without clamping.
func (r *EmbedRequest) Validate() error {
	if r.Model == "" {
		return &llmwire.ValidationError{Field: "model", Value: r.Model, Reason: "is required"}
	}
	if len(r.Input) == 0 {
		return &llmwire.ValidationError{Field: "input", Value: nil, Reason: "is required"}
	}
	for i, s := range r.Input {
		if s == "" {
			return &llmwire.ValidationError{Field: fmt.Sprintf("input[%d]", i), Value: s, Reason: "must not be empty"}
		}
	}
	return llmwire.FirstError(
		llmwire.CheckMin("dimensions", r.Dimensions, 1),
		llmwire.CheckEnum("encoding_format", r.EncodingFormat, encodingFormats...),
	)
}

// Serialize returns the minimal wire payload.
func (r *EmbedRequest) Serialize() (map[string]any, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	payload := map[string]any{
		"model": r.Model,
		"input": r.Input,
	}
	llmwire.Put(payload, "dimensions", r.Dimensions)
	llmwire.Put(payload, "encoding_format", r.EncodingFormat)
	llmwire.Put(payload, "user", r.User)
	return llmwire.OmitDefaults(payload, EmbeddingDefaults, "model", "input"), nil
}

// DecodeEmbeddings normalizes an embeddings body into an embed response.
// Base64 bodies are decoded when base64 is true.
func DecodeEmbeddings(raw json.RawMessage, base64 bool) (*llmwire.Response, error) {
	var resp openai.EmbeddingResponse
	if base64 {
		var encoded openai.EmbeddingResponseBase64
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, fmt.Errorf("parse embeddings: %w", err)
		}
		decoded, err := encoded.ToEmbeddingResponse()
		if err != nil {
			return nil, fmt.Errorf("decode base64 embeddings: %w", err)
		}
		resp = decoded
	} else if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("parse embeddings: %w", err)
	}

	vectors := make([][]float64, len(resp.Data))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		vec := make([]float64, len(item.Embedding))
		for i, f := range item.Embedding {
			vec[i] = float64(f)
		}
		vectors[item.Index] = vec
	}

	return &llmwire.Response{
		Kind:        llmwire.KindEmbed,
		Model:       string(resp.Model),
		Embeddings:  vectors,
		Usage:       &llmwire.Usage{InputTokens: resp.Usage.PromptTokens, TotalTokens: resp.Usage.TotalTokens},
		RawResponse: raw,
	}, nil
}

// Embedder calls the embeddings endpoint under the retry wrapper.
type Embedder struct {
	client  llmwire.Client
	retrier *llmwire.Retrier
}

// NewEmbedder wraps client, which must post to the embeddings endpoint.
func NewEmbedder(client llmwire.Client, logger zerolog.Logger) *Embedder {
	return &Embedder{
		client:  client,
		retrier: llmwire.NewRetrier(llmwire.ProviderOpenAI, logger),
	}
}

// NewEmbeddingsClient returns an HTTP client for the embeddings endpoint.
func NewEmbeddingsClient(apiKey, baseURL string, logger zerolog.Logger) (*transport.Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return transport.New(transport.Config{
		Provider: llmwire.ProviderOpenAI,
		BaseURL:  baseURL,
		Path:     embeddingsPath,
		APIKey:   apiKey,
		Logger:   logger,
	})
}

// Retrier exposes the retry settings for tuning.
func (e *Embedder) Retrier() *llmwire.Retrier {
	return e.retrier
}

// Embed returns one vector per input, in input order.
func (e *Embedder) Embed(ctx context.Context, req *EmbedRequest) (*llmwire.Response, error) {
	payload, err := req.Serialize()
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	err = e.retrier.Do(ctx, func(ctx context.Context) error {
		var sendErr error
		raw, sendErr = e.client.Send(ctx, payload)
		return sendErr
	})
	if err != nil {
		return nil, err
	}

	resp, err := DecodeEmbeddings(raw, req.EncodingFormat != nil && *req.EncodingFormat == "base64")
	if err != nil {
		return nil, &llmwire.GenerationProviderError{
			Provider: llmwire.ProviderOpenAI,
			Message:  err.Error(),
			Class:    fmt.Sprintf("%T", err),
			Attempts: 1,
			Err:      err,
		}
	}
	return resp, nil
}
