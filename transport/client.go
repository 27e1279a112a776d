// Package transport implements llmwire.Client over net/http for the
// JSON-over-HTTP providers (OpenAI Chat, OpenAI Responses, OpenRouter).
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/haowjy/llmwire-go"
	"github.com/rs/zerolog"
)

// DefaultTimeout is the HTTP client timeout used when none is supplied.
const DefaultTimeout = 120 * time.Second

// AuthStyle selects how the API key is sent.
type AuthStyle int

const (
	// AuthBearer sends "Authorization: Bearer <key>".
	AuthBearer AuthStyle = iota

	// AuthAPIKeyHeader sends "x-api-key: <key>".
	AuthAPIKeyHeader

	// AuthNone sends no credentials (local servers).
	AuthNone
)

// Config configures a Client.
type Config struct {
	Provider llmwire.ProviderID

	// BaseURL is the API root, e.g. "https://api.openai.com/v1".
	BaseURL string

	// Path is appended to BaseURL, e.g. "/chat/completions".
	Path string

	APIKey string
	Auth   AuthStyle

	// Headers are sent with every request (e.g. OpenRouter's HTTP-Referer).
	Headers map[string]string

	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client posts JSON payloads to a single endpoint.
type Client struct {
	cfg        Config
	endpoint   string
	httpClient *http.Client
	logger     zerolog.Logger
}

// New creates a Client. A missing API key is rejected unless Auth is AuthNone.
func New(cfg Config) (*Client, error) {
	if cfg.Auth != AuthNone && cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", cfg.Provider, llmwire.ErrInvalidAPIKey)
	}
	if cfg.BaseURL == "" {
		return nil, &llmwire.ValidationError{Field: "base_url", Value: cfg.BaseURL, Reason: "is required"}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	return &Client{
		cfg:        cfg,
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + cfg.Path,
		httpClient: httpClient,
		logger:     cfg.Logger.With().Str("component", "transport").Str("provider", cfg.Provider.String()).Logger(),
	}, nil
}

// Endpoint returns the URL requests are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Send posts payload and returns the response body.
func (c *Client) Send(ctx context.Context, payload map[string]any) (json.RawMessage, error) {
	resp, err := c.do(ctx, payload, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.networkError(ctx, fmt.Errorf("failed to read response body: %w", err))
	}
	return json.RawMessage(body), nil
}

// Stream posts payload and returns the SSE data payloads as a ChunkStream.
func (c *Client) Stream(ctx context.Context, payload map[string]any) (llmwire.ChunkStream, error) {
	resp, err := c.do(ctx, payload, true)
	if err != nil {
		return nil, err
	}
	return newEventStream(c.cfg.Provider, resp.Body), nil
}

func (c *Client) do(ctx context.Context, payload map[string]any, stream bool) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	switch c.cfg.Auth {
	case AuthBearer:
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	case AuthAPIKeyHeader:
		httpReq.Header.Set("x-api-key", c.cfg.APIKey)
	}
	for k, v := range c.cfg.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.networkError(ctx, fmt.Errorf("%s HTTP request failed: %w", c.cfg.Provider, err))
	}

	c.logger.Debug().
		Str("url", c.endpoint).
		Int("status", resp.StatusCode).
		Bool("stream", stream).
		Dur("elapsed", time.Since(start)).
		Msg("provider response")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, ErrorFromResponse(c.cfg.Provider, resp)
	}
	return resp, nil
}

// networkError classifies transport failures as retryable unless the
// caller's context ended.
func (c *Client) networkError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &llmwire.ProviderError{
			Provider:  c.cfg.Provider,
			Message:   err.Error(),
			Retryable: true,
			Err:       llmwire.ErrTimeout,
		}
	}
	return &llmwire.ProviderError{
		Provider:  c.cfg.Provider,
		Message:   err.Error(),
		Retryable: true,
		Err:       llmwire.ErrProviderUnavailable,
	}
}
