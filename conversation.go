package llmwire

import (
	"context"
	"sync"
)

// Conversation drives a multi-turn exchange over one provider. It owns a
// base request whose message history grows with every turn and whose tool
// choice is cleared once a forced tool was invoked, so a forced tool cannot
// loop forever.
type Conversation struct {
	provider Provider

	mu  sync.Mutex
	req *GenerateRequest
}

// NewConversation starts a conversation from base. base is cloned.
func NewConversation(provider Provider, base *GenerateRequest) *Conversation {
	return &Conversation{provider: provider, req: base.Clone()}
}

// Messages returns a copy of the history.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.req.Messages...)
}

// ToolChoice returns the tool choice the next turn will use.
func (c *Conversation) ToolChoice() *ToolChoice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.req.ToolChoice
}

// Request returns a snapshot of the next turn's request.
func (c *Conversation) Request() *GenerateRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.req.Clone()
}

// AddToolResults appends tool-role messages answering earlier calls.
func (c *Conversation) AddToolResults(results ...Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.req.Messages = MergeMessages(c.req.Messages, results)
}

// Send appends msgs to the history, generates a turn and records the reply.
// msgs are always new turns, even when their text repeats an earlier one.
// A failed turn leaves the history unchanged so the caller can resend it.
func (c *Conversation) Send(ctx context.Context, msgs ...Message) (*Response, error) {
	req := c.nextTurn(msgs)
	resp, err := c.provider.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	c.record(msgs, resp)
	return resp, nil
}

// StreamSend is Send over the streaming path.
func (c *Conversation) StreamSend(ctx context.Context, callback StreamCallback, msgs ...Message) (*Response, error) {
	req := c.nextTurn(msgs)
	resp, err := c.provider.Stream(ctx, req, callback)
	if err != nil {
		return nil, err
	}
	c.record(msgs, resp)
	return resp, nil
}

func (c *Conversation) nextTurn(msgs []Message) *GenerateRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	req := c.req.Clone()
	req.Messages = append(req.Messages, msgs...)
	return req
}

func (c *Conversation) record(msgs []Message, resp *Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.req.Messages = append(c.req.Messages, msgs...)
	if resp.Message != nil && resp.Message.Validate() == nil {
		c.req.Messages = append(c.req.Messages, *resp.Message)
	}
	c.req.ToolChoice = c.req.ToolChoice.AfterTurn(resp.ToolCalls())
}
