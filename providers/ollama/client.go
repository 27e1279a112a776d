package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/rs/zerolog"

	"github.com/haowjy/llmwire-go"
	"github.com/haowjy/llmwire-go/transport"
)

// chatAPI is the part of *api.Client that APIClient uses.
type chatAPI interface {
	Chat(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error
}

// APIClient is an llmwire.Client backed by the ollama/api client. Payloads
// are decoded into api.ChatRequest; responses are re-encoded as the NDJSON
// objects the server sent.
type APIClient struct {
	chat   chatAPI
	logger zerolog.Logger
}

// NewAPIClient connects to host, or to OLLAMA_HOST (default
// http://localhost:11434) when host is empty.
func NewAPIClient(host string, logger zerolog.Logger) (*APIClient, error) {
	var (
		client *api.Client
		err    error
	)
	if host != "" {
		base, perr := parseHost(host)
		if perr != nil {
			return nil, fmt.Errorf("invalid ollama host %q: %w", host, perr)
		}
		client = api.NewClient(base, http.DefaultClient)
	} else {
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}
	}
	return newAPIClient(client, logger), nil
}

func newAPIClient(chat chatAPI, logger zerolog.Logger) *APIClient {
	return &APIClient{
		chat:   chat,
		logger: logger.With().Str("component", "client").Str("provider", string(llmwire.ProviderOllama)).Logger(),
	}
}

func parseHost(host string) (*url.URL, error) {
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return url.Parse(host)
}

func chatRequest(payload map[string]any, stream bool) (*api.ChatRequest, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode ollama payload: %w", err)
	}
	var req api.ChatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode ollama payload: %w", err)
	}
	req.Stream = &stream
	return &req, nil
}

// Send performs a non-streaming chat call.
func (c *APIClient) Send(ctx context.Context, payload map[string]any) (json.RawMessage, error) {
	req, err := chatRequest(payload, false)
	if err != nil {
		return nil, err
	}

	var final api.ChatResponse
	if err := c.chat.Chat(ctx, req, func(resp api.ChatResponse) error {
		final = resp
		return nil
	}); err != nil {
		return nil, mapError(ctx, err)
	}

	c.logger.Debug().Str("model", final.Model).Str("done_reason", final.DoneReason).Msg("provider response")
	return json.Marshal(final)
}

// Stream starts a streaming chat call. It returns once the first chunk (or
// an error) arrives so that connection failures surface from Stream itself.
func (c *APIClient) Stream(ctx context.Context, payload map[string]any) (llmwire.ChunkStream, error) {
	req, err := chatRequest(payload, true)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &apiStream{
		chunks: make(chan json.RawMessage),
		errc:   make(chan error, 1),
		cancel: cancel,
	}
	go func() {
		defer close(s.chunks)
		err := c.chat.Chat(ctx, req, func(resp api.ChatResponse) error {
			data, err := json.Marshal(resp)
			if err != nil {
				return err
			}
			select {
			case s.chunks <- data:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			s.errc <- mapError(ctx, err)
		}
	}()

	if !s.Next() {
		defer cancel()
		if err := s.Err(); err != nil {
			return nil, err
		}
		return nil, llmwire.ErrStreamIncomplete
	}
	s.pending = true
	return s, nil
}

// apiStream adapts the callback-driven Chat to a pull iterator.
type apiStream struct {
	chunks  chan json.RawMessage
	errc    chan error
	cancel  context.CancelFunc
	current json.RawMessage
	pending bool
	err     error
}

func (s *apiStream) Next() bool {
	if s.pending {
		s.pending = false
		return true
	}
	chunk, ok := <-s.chunks
	if !ok {
		select {
		case s.err = <-s.errc:
		default:
		}
		s.current = nil
		return false
	}
	s.current = chunk
	return true
}

func (s *apiStream) Chunk() json.RawMessage { return s.current }

func (s *apiStream) Err() error { return s.err }

func (s *apiStream) Close() error {
	s.cancel()
	return nil
}

// mapError classifies api.StatusError by status code; anything else is a
// retryable connection failure unless the caller's context ended.
func mapError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var status api.StatusError
	if errors.As(err, &status) {
		message := status.ErrorMessage
		if message == "" {
			message = status.Status
		}
		return transport.StatusError(llmwire.ProviderOllama, status.StatusCode, []byte(message))
	}
	return &llmwire.ProviderError{
		Provider:  llmwire.ProviderOllama,
		Message:   err.Error(),
		Retryable: true,
		Err:       llmwire.ErrProviderUnavailable,
	}
}
