package transport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/haowjy/llmwire-go"
)

// errorEnvelope covers the OpenAI/OpenRouter {"error":{...}} and the
// Anthropic {"type":"error","error":{...}} bodies.
type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// ErrorFromResponse maps a non-2xx response to a *llmwire.ProviderError.
func ErrorFromResponse(provider llmwire.ProviderID, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return StatusError(provider, resp.StatusCode, body)
}

// StatusError maps a status code and error body to a *llmwire.ProviderError:
// 401/403 auth, 429 rate limited, 408 and 504 timeout, other 5xx
// unavailable. Only the last three groups are retryable.
func StatusError(provider llmwire.ProviderID, status int, body []byte) error {
	message := errorMessage(body)
	if message == "" {
		message = http.StatusText(status)
	}

	pe := &llmwire.ProviderError{
		Provider:   provider,
		StatusCode: status,
		Message:    message,
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		pe.Err = llmwire.ErrInvalidAPIKey
	case status == http.StatusTooManyRequests:
		pe.Retryable = true
		pe.Err = llmwire.ErrRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		pe.Retryable = true
		pe.Err = llmwire.ErrTimeout
	case status == http.StatusPaymentRequired:
		pe.Message = "insufficient credits: " + message
		pe.Err = llmwire.ErrProviderUnavailable
	case status >= 500:
		pe.Retryable = true
		pe.Err = llmwire.ErrProviderUnavailable
	}
	return pe
}

func errorMessage(body []byte) string {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Message != "" {
		if env.Error.Type != "" {
			return fmt.Sprintf("%s: %s", env.Error.Type, env.Error.Message)
		}
		return env.Error.Message
	}
	return strings.TrimSpace(string(body))
}

// streamError converts an in-band {"error":{...}} event into an error, or
// returns nil when data is an ordinary chunk.
func streamError(provider llmwire.ProviderID, data []byte) error {
	if !strings.Contains(string(data), `"error"`) {
		return nil
	}
	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err != nil || env.Error.Message == "" {
		return nil
	}
	return &llmwire.ProviderError{
		Provider: provider,
		Message:  fmt.Sprintf("%s streaming error: %s", provider, env.Error.Message),
		Err:      llmwire.ErrProviderUnavailable,
	}
}
