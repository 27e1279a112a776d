// Package lorem is an offline mock of an OpenAI-compatible chat endpoint.
// Its Client answers with chat.completion bodies and chunk streams filled
// with lorem ipsum text, tool calls generated from the offered tool
// schemas, and JSON bodies generated from the requested response schema.
// Failures can be scripted per call to exercise retry and error paths.
package lorem

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	loremgen "github.com/bozaro/golorem"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/haowjy/llmwire-go"
)

// Client implements llmwire.Client without a network.
type Client struct {
	mu       sync.Mutex
	gen      *loremgen.Lorem
	failures []error
	breaks   []error
	payloads []map[string]any
	calls    int
	delay    *time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithFailures scripts errors returned by the next calls, one per call.
func WithFailures(errs ...error) ClientOption {
	return func(c *Client) { c.failures = append(c.failures, errs...) }
}

// WithDelay fixes the pause between stream chunks, overriding the
// model-name speeds.
func WithDelay(d time.Duration) ClientOption {
	return func(c *Client) { c.delay = &d }
}

// WithClientLogger sets the client logger.
func WithClientLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger.With().Str("component", "client").Str("provider", string(llmwire.ProviderLorem)).Logger()
	}
}

// NewClient returns a mock client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		gen:    loremgen.New(),
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FailNext queues errors for the next calls, one per call.
func (c *Client) FailNext(errs ...error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = append(c.failures, errs...)
}

// BreakNextStream makes the next stream stop halfway with err after
// opening successfully.
func (c *Client) BreakNextStream(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.breaks = append(c.breaks, err)
}

// Payloads returns the payloads received so far, including failed calls.
func (c *Client) Payloads() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, len(c.payloads))
	copy(out, c.payloads)
	return out
}

// Calls returns the number of calls received.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// begin records the call and returns its sequence number, the normalized
// payload, and any scripted failure.
func (c *Client) begin(payload map[string]any) (int, map[string]any, error) {
	normalized, err := normalize(payload)
	if err != nil {
		return 0, nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.payloads = append(c.payloads, normalized)
	if len(c.failures) > 0 {
		err := c.failures[0]
		c.failures = c.failures[1:]
		c.logger.Debug().Err(err).Int("call", c.calls).Msg("scripted failure")
		return c.calls, nil, err
	}
	return c.calls, normalized, nil
}

// normalize round-trips payload through JSON so that it reads the way a
// server would see it.
func normalize(payload map[string]any) (map[string]any, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode lorem payload: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode lorem payload: %w", err)
	}
	if model, _ := out["model"].(string); model == "" {
		return nil, &llmwire.ProviderError{
			Provider:   llmwire.ProviderLorem,
			StatusCode: 400,
			Message:    "model is required",
			Err:        llmwire.ErrInvalidRequest,
		}
	}
	return out, nil
}

func (c *Client) compose(payload map[string]any, seq int) reply {
	// golorem's generator is not safe for concurrent use
	c.mu.Lock()
	defer c.mu.Unlock()
	return composeReply(c.gen, payload, seq)
}

// Send returns a chat.completion body.
func (c *Client) Send(ctx context.Context, payload map[string]any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seq, normalized, err := c.begin(payload)
	if err != nil {
		return nil, err
	}

	r := c.compose(normalized, seq)
	msg := openai.ChatCompletionMessage{
		Role:             openai.ChatMessageRoleAssistant,
		Content:          r.text,
		ReasoningContent: r.reasoning,
	}
	if r.call != nil {
		msg.ToolCalls = []openai.ToolCall{{
			ID:       r.call.id,
			Type:     openai.ToolTypeFunction,
			Function: openai.FunctionCall{Name: r.call.name, Arguments: r.call.arguments},
		}}
	}

	body := openai.ChatCompletionResponse{
		ID:      completionID(seq),
		Object:  "chat.completion",
		Created: c.now().Unix(),
		Model:   normalized["model"].(string),
		Choices: []openai.ChatCompletionChoice{{
			Message:      msg,
			FinishReason: openai.FinishReason(r.finishReason),
		}},
		Usage: usage(r),
	}
	c.logger.Debug().Int("call", seq).Str("finish_reason", r.finishReason).Msg("mock response")
	return json.Marshal(body)
}

// Stream returns chat.completion.chunk events: the role, one chunk per
// word (or per tool-argument fragment), the finish reason, then usage.
func (c *Client) Stream(ctx context.Context, payload map[string]any) (llmwire.ChunkStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seq, normalized, err := c.begin(payload)
	if err != nil {
		return nil, err
	}

	model := normalized["model"].(string)
	r := c.compose(normalized, seq)
	events, err := c.streamEvents(seq, model, r)
	if err != nil {
		return nil, err
	}

	s := &stream{ctx: ctx, events: events, delay: streamDelay(model)}
	if c.delay != nil {
		s.delay = *c.delay
	}

	c.mu.Lock()
	if len(c.breaks) > 0 {
		s.breakAt = len(events) / 2
		s.breakErr = c.breaks[0]
		c.breaks = c.breaks[1:]
	}
	c.mu.Unlock()
	return s, nil
}

func (c *Client) streamEvents(seq int, model string, r reply) ([]json.RawMessage, error) {
	base := openai.ChatCompletionStreamResponse{
		ID:      completionID(seq),
		Object:  "chat.completion.chunk",
		Created: c.now().Unix(),
		Model:   model,
	}
	var events []json.RawMessage
	emit := func(delta openai.ChatCompletionStreamChoiceDelta, finish string, u *openai.Usage) error {
		ev := base
		if u != nil {
			ev.Usage = u
		} else {
			ev.Choices = []openai.ChatCompletionStreamChoice{{Delta: delta, FinishReason: openai.FinishReason(finish)}}
		}
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode lorem chunk: %w", err)
		}
		events = append(events, data)
		return nil
	}

	if err := emit(openai.ChatCompletionStreamChoiceDelta{Role: openai.ChatMessageRoleAssistant}, "", nil); err != nil {
		return nil, err
	}
	for _, w := range splitWords(r.reasoning) {
		if err := emit(openai.ChatCompletionStreamChoiceDelta{ReasoningContent: w}, "", nil); err != nil {
			return nil, err
		}
	}
	for _, w := range splitWords(r.text) {
		if err := emit(openai.ChatCompletionStreamChoiceDelta{Content: w}, "", nil); err != nil {
			return nil, err
		}
	}
	if r.call != nil {
		index := 0
		first := openai.ToolCall{
			Index:    &index,
			ID:       r.call.id,
			Type:     openai.ToolTypeFunction,
			Function: openai.FunctionCall{Name: r.call.name},
		}
		if err := emit(openai.ChatCompletionStreamChoiceDelta{ToolCalls: []openai.ToolCall{first}}, "", nil); err != nil {
			return nil, err
		}
		for _, part := range fragments(r.call.arguments, 8) {
			frag := openai.ToolCall{Index: &index, Function: openai.FunctionCall{Arguments: part}}
			if err := emit(openai.ChatCompletionStreamChoiceDelta{ToolCalls: []openai.ToolCall{frag}}, "", nil); err != nil {
				return nil, err
			}
		}
	}
	if err := emit(openai.ChatCompletionStreamChoiceDelta{}, r.finishReason, nil); err != nil {
		return nil, err
	}
	u := usage(r)
	if err := emit(openai.ChatCompletionStreamChoiceDelta{}, "", &u); err != nil {
		return nil, err
	}
	return events, nil
}

// streamDelay maps the model name to a per-chunk pause:
// lorem-slow 2 words/s, lorem-medium 10 words/s, lorem-fast 30 words/s.
// Other models stream without pausing.
func streamDelay(model string) time.Duration {
	switch {
	case strings.Contains(model, "slow"):
		return 500 * time.Millisecond
	case strings.Contains(model, "medium"):
		return 100 * time.Millisecond
	case strings.Contains(model, "fast"):
		return 33 * time.Millisecond
	default:
		return 0
	}
}

func completionID(seq int) string {
	return fmt.Sprintf("chatcmpl-lorem-%d", seq)
}

func usage(r reply) openai.Usage {
	return openai.Usage{
		PromptTokens:     r.inputTokens,
		CompletionTokens: r.outputTokens,
		TotalTokens:      r.inputTokens + r.outputTokens,
	}
}

// splitWords splits text into deltas that concatenate back to text.
func splitWords(text string) []string {
	if text == "" {
		return nil
	}
	parts := strings.SplitAfter(text, " ")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

func fragments(s string, size int) []string {
	var out []string
	for len(s) > size {
		out = append(out, s[:size])
		s = s[size:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

func encodeJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// stream replays pre-built events, pausing between them.
type stream struct {
	ctx      context.Context
	events   []json.RawMessage
	delay    time.Duration
	pos      int
	current  json.RawMessage
	breakAt  int
	breakErr error
	err      error
}

func (s *stream) Next() bool {
	if s.err != nil || s.pos >= len(s.events) {
		s.current = nil
		return false
	}
	if s.breakErr != nil && s.pos == s.breakAt {
		s.err = s.breakErr
		s.current = nil
		return false
	}
	if s.pos > 0 && s.delay > 0 {
		if err := llmwire.ContextSleep(s.ctx, s.delay); err != nil {
			s.err = err
			return false
		}
	} else if err := s.ctx.Err(); err != nil {
		s.err = err
		return false
	}
	s.current = s.events[s.pos]
	s.pos++
	return true
}

func (s *stream) Chunk() json.RawMessage { return s.current }

func (s *stream) Err() error { return s.err }

func (s *stream) Close() error {
	s.pos = len(s.events)
	return nil
}
