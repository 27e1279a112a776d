package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/rs/zerolog"

	"github.com/haowjy/llmwire-go"
	"github.com/haowjy/llmwire-go/transport"
)

// SDKClient implements llmwire.Client on anthropic-sdk-go. The payload built
// by the codec is sent as the raw request body; the SDK supplies auth,
// versioning headers and SSE decoding. SDK retries are disabled so that
// llmwire.Retrier owns the attempt budget.
type SDKClient struct {
	client anthropic.Client
	logger zerolog.Logger
}

// NewSDKClient creates a client. An empty baseURL keeps the SDK default;
// a trailing /v1 is dropped because the SDK adds it.
func NewSDKClient(apiKey, baseURL string, logger zerolog.Logger, opts ...option.RequestOption) (*SDKClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %w", llmwire.ProviderAnthropic, llmwire.ErrInvalidAPIKey)
	}

	base := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		root := strings.TrimSuffix(strings.TrimSuffix(baseURL, "/"), "/v1")
		base = append(base, option.WithBaseURL(root+"/"))
	}

	return &SDKClient{
		client: anthropic.NewClient(append(base, opts...)...),
		logger: logger.With().Str("component", "sdk_client").Str("provider", llmwire.ProviderAnthropic.String()).Logger(),
	}, nil
}

// params carries the fields the SDK inspects before sending (the
// non-streaming timeout depends on model and max_tokens). The body itself
// is replaced by the payload.
func params(payload map[string]any) anthropic.MessageNewParams {
	p := anthropic.MessageNewParams{Model: anthropic.Model(llmwire.StringField(payload, "model"))}
	if n, ok := llmwire.NumberField(payload, "max_tokens"); ok {
		p.MaxTokens = int64(n)
	}
	return p
}

func body(payload map[string]any) (option.RequestOption, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal anthropic payload: %w", err)
	}
	return option.WithRequestBody("application/json", data), nil
}

// Send posts a non-streaming request and returns the raw message body.
func (c *SDKClient) Send(ctx context.Context, payload map[string]any) (json.RawMessage, error) {
	opt, err := body(payload)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().Str("model", llmwire.StringField(payload, "model")).Msg("sending request")

	msg, err := c.client.Messages.New(ctx, params(payload), opt)
	if err != nil {
		return nil, mapError(err)
	}
	return json.RawMessage(msg.RawJSON()), nil
}

// Stream opens a streaming request. Connection failures surface here so
// they can be retried.
func (c *SDKClient) Stream(ctx context.Context, payload map[string]any) (llmwire.ChunkStream, error) {
	opt, err := body(payload)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().Str("model", llmwire.StringField(payload, "model")).Msg("opening stream")

	stream := c.client.Messages.NewStreaming(ctx, params(payload), opt)
	if err := stream.Err(); err != nil {
		stream.Close()
		return nil, mapError(err)
	}
	return &sdkStream{stream: stream}, nil
}

type sdkStream struct {
	stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
}

func (s *sdkStream) Next() bool {
	return s.stream.Next()
}

func (s *sdkStream) Chunk() json.RawMessage {
	return json.RawMessage(s.stream.Current().RawJSON())
}

func (s *sdkStream) Err() error {
	if err := s.stream.Err(); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *sdkStream) Close() error {
	return s.stream.Close()
}

const streamErrorPrefix = "received error while streaming: "

// mapError converts SDK errors into *llmwire.ProviderError using the same
// status classification as the HTTP transport.
func mapError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return transport.StatusError(llmwire.ProviderAnthropic, apiErr.StatusCode, []byte(apiErr.RawJSON()))
	}

	if data, ok := strings.CutPrefix(err.Error(), streamErrorPrefix); ok {
		var ev errorEvent
		if json.Unmarshal([]byte(data), &ev) == nil && ev.Type == "error" {
			return ev.err()
		}
	}

	return &llmwire.ProviderError{
		Provider:  llmwire.ProviderAnthropic,
		Message:   err.Error(),
		Retryable: true,
		Err:       llmwire.ErrProviderUnavailable,
	}
}
