package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/haowjy/llmwire-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusError(t *testing.T) {
	tests := []struct {
		status    int
		body      string
		sentinel  error
		retryable bool
		message   string
	}{
		{401, `{"error":{"message":"Incorrect API key","type":"invalid_request_error"}}`, llmwire.ErrInvalidAPIKey, false, "invalid_request_error: Incorrect API key"},
		{403, ``, llmwire.ErrInvalidAPIKey, false, "Forbidden"},
		{429, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`, llmwire.ErrRateLimited, true, "rate_limit_error: slow down"},
		{408, ``, llmwire.ErrTimeout, true, "Request Timeout"},
		{504, `upstream timed out`, llmwire.ErrTimeout, true, "upstream timed out"},
		{402, `{"error":{"message":"no credits"}}`, llmwire.ErrProviderUnavailable, false, "insufficient credits: no credits"},
		{500, ``, llmwire.ErrProviderUnavailable, true, "Internal Server Error"},
		{529, `{"error":{"message":"Overloaded"}}`, llmwire.ErrProviderUnavailable, true, "Overloaded"},
		{400, `{"error":{"message":"bad field"}}`, nil, false, "bad field"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := StatusError(llmwire.ProviderOpenAI, tt.status, []byte(tt.body))

			var pe *llmwire.ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.status, pe.StatusCode)
			assert.Equal(t, tt.retryable, pe.Retryable)
			assert.Equal(t, tt.retryable, llmwire.IsRetryable(err))
			assert.Equal(t, tt.message, pe.Message)
			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
			} else {
				assert.Nil(t, pe.Err)
			}
		})
	}
}

func TestNewRequiresKeyAndURL(t *testing.T) {
	_, err := New(Config{Provider: llmwire.ProviderOpenAI, BaseURL: "https://api.openai.com/v1"})
	assert.ErrorIs(t, err, llmwire.ErrInvalidAPIKey)

	_, err = New(Config{Provider: llmwire.ProviderOpenAI, APIKey: "sk"})
	assert.True(t, llmwire.IsInvalidRequest(err))

	c, err := New(Config{Provider: llmwire.ProviderOllama, BaseURL: "http://localhost:11434/", Path: "/api/chat", Auth: AuthNone})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434/api/chat", c.Endpoint())
}

func TestClientSend(t *testing.T) {
	var got struct {
		auth, apiKey, referer, contentType string
		body                               map[string]any
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.auth = r.Header.Get("Authorization")
		got.apiKey = r.Header.Get("x-api-key")
		got.referer = r.Header.Get("HTTP-Referer")
		got.contentType = r.Header.Get("Content-Type")
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got.body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"chatcmpl-1"}`)
	}))
	defer server.Close()

	c, err := New(Config{
		Provider: llmwire.ProviderOpenRouter,
		BaseURL:  server.URL + "/v1",
		Path:     "/chat/completions",
		APIKey:   "sk-or",
		Headers:  map[string]string{"HTTP-Referer": "https://example.com"},
		Logger:   zerolog.New(zerolog.NewTestWriter(t)),
	})
	require.NoError(t, err)

	raw, err := c.Send(context.Background(), map[string]any{"model": "openai/gpt-4o"})
	require.NoError(t, err)

	assert.JSONEq(t, `{"id":"chatcmpl-1"}`, string(raw))
	assert.Equal(t, "Bearer sk-or", got.auth)
	assert.Empty(t, got.apiKey)
	assert.Equal(t, "https://example.com", got.referer)
	assert.Equal(t, "application/json", got.contentType)
	assert.Equal(t, map[string]any{"model": "openai/gpt-4o"}, got.body)
}

func TestClientAPIKeyHeader(t *testing.T) {
	var apiKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("x-api-key")
		_, _ = io.WriteString(w, `{}`)
	}))
	defer server.Close()

	c, err := New(Config{Provider: llmwire.ProviderAnthropic, BaseURL: server.URL, APIKey: "sk-ant", Auth: AuthAPIKeyHeader})
	require.NoError(t, err)
	_, err = c.Send(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "sk-ant", apiKey)
}

func TestClientSendErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"Rate limit reached"}}`)
	}))
	defer server.Close()

	c, err := New(Config{Provider: llmwire.ProviderOpenAI, BaseURL: server.URL, APIKey: "sk"})
	require.NoError(t, err)

	_, err = c.Send(context.Background(), map[string]any{})
	assert.ErrorIs(t, err, llmwire.ErrRateLimited)
	assert.True(t, llmwire.IsRetryable(err))
}

func TestClientNetworkErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	c, err := New(Config{Provider: llmwire.ProviderOpenAI, BaseURL: url, APIKey: "sk"})
	require.NoError(t, err)

	_, err = c.Send(context.Background(), map[string]any{})
	assert.ErrorIs(t, err, llmwire.ErrProviderUnavailable)
	assert.True(t, llmwire.IsRetryable(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Send(ctx, map[string]any{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, llmwire.IsRetryable(err))
}

func TestClientStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, ": OPENROUTER PROCESSING\n\n")
		_, _ = io.WriteString(w, "data: {\"n\":1}\n\n")
		_, _ = io.WriteString(w, "event: message\ndata: {\"n\":2}\n\n")
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	c, err := New(Config{Provider: llmwire.ProviderOpenRouter, BaseURL: server.URL, APIKey: "sk"})
	require.NoError(t, err)

	stream, err := c.Stream(context.Background(), map[string]any{"stream": true})
	require.NoError(t, err)
	defer stream.Close()

	var chunks []string
	for stream.Next() {
		chunks = append(chunks, string(stream.Chunk()))
	}
	require.NoError(t, stream.Err())
	assert.Equal(t, []string{`{"n":1}`, `{"n":2}`}, chunks)
}

func TestEventStream(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr error
	}{
		{
			name:  "multi-line data",
			input: "data: {\"a\":\ndata: 1}\n\n",
			want:  []string{"{\"a\":\n1}"},
		},
		{
			name:  "missing trailing blank line",
			input: "data: {\"a\":1}",
			want:  []string{`{"a":1}`},
		},
		{
			name:  "no space after colon",
			input: "data:{\"a\":1}\n\ndata: [DONE]\n\ndata: {\"ignored\":true}\n\n",
			want:  []string{`{"a":1}`},
		},
		{
			name:    "in-band error",
			input:   "data: {\"a\":1}\n\ndata: {\"error\":{\"message\":\"overloaded\"}}\n\n",
			want:    []string{`{"a":1}`},
			wantErr: llmwire.ErrProviderUnavailable,
		},
		{
			name:  "error field inside content is not an error",
			input: "data: {\"delta\":\"the \\\"error\\\" word\"}\n\n",
			want:  []string{`{"delta":"the \"error\" word"}`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewEventStream(llmwire.ProviderOpenAI, io.NopCloser(strings.NewReader(tt.input)))
			var got []string
			for s.Next() {
				got = append(got, string(s.Chunk()))
			}
			assert.Equal(t, tt.want, got)
			if tt.wantErr != nil {
				assert.ErrorIs(t, s.Err(), tt.wantErr)
			} else {
				assert.NoError(t, s.Err())
			}
			assert.False(t, s.Next(), "an ended stream stays ended")
			assert.NoError(t, s.Close())
		})
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestEventStreamReadError(t *testing.T) {
	s := NewEventStream(llmwire.ProviderOpenAI, io.NopCloser(failingReader{}))
	assert.False(t, s.Next())
	assert.EqualError(t, s.Err(), "connection reset")
}
