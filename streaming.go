package llmwire

import (
	"sort"
	"strings"
)

// Chunk is one normalized streaming delta. Provider decoders translate
// their native stream events into chunks; the Accumulator merges them.
type Chunk struct {
	ID    string
	Model string

	// Role is set when the chunk names the message author. Some providers
	// repeat it on every chunk.
	Role *string

	// Content is a text delta.
	Content *string

	// Thinking is a reasoning delta; Signature completes a thinking block.
	Thinking  *string
	Signature *string

	// ToolCalls carries tool-call fragments keyed by Index.
	ToolCalls []ToolCallDelta

	// Blocks are complete content blocks that arrive whole, such as redacted
	// thinking. They are kept in arrival order between thinking and text.
	Blocks []ContentBlock

	// FinishReason marks the terminal chunk (canonical value).
	FinishReason *string

	// RawFinishReason keeps the provider's own value.
	RawFinishReason string

	// Usage may arrive on the terminal chunk or on a trailing usage-only chunk.
	Usage *Usage

	// Done is an explicit end-of-stream marker without a finish reason.
	Done bool
}

// ToolCallDelta is a fragment of a streamed tool call.
type ToolCallDelta struct {
	Index     int
	ID        *string
	Name      *string
	Arguments string
}

// StreamCallback observes the message being accumulated. delta is the text
// appended by the current chunk; final is true exactly once, after
// finalization.
type StreamCallback func(msg *Message, delta string, final bool)

type pendingCall struct {
	id   *string
	name *string
	args strings.Builder
}

// Accumulator reconstructs a complete message from chunks processed in
// arrival order. It belongs to a single generation call.
type Accumulator struct {
	callback  StreamCallback
	finalizer func(msg *Message)

	msg      Message
	roleSet  bool
	text     strings.Builder
	thinking strings.Builder
	sig      string
	blocks   []ContentBlock
	calls    map[int]*pendingCall

	id              string
	model           string
	finishReason    string
	rawFinishReason string
	usage           *Usage
	finished        bool
}

// NewAccumulator creates an accumulator. callback may be nil.
func NewAccumulator(callback StreamCallback) *Accumulator {
	return &Accumulator{
		callback: callback,
		msg:      Message{Role: RoleAssistant},
		calls:    make(map[int]*pendingCall),
	}
}

// Add merges one chunk. It returns true when the chunk finalized the
// message. Chunks arriving after finalization only update usage.
func (a *Accumulator) Add(chunk Chunk) (bool, error) {
	if chunk.Usage != nil {
		u := *chunk.Usage
		a.usage = &u
	}
	if a.finished {
		return false, nil
	}

	if chunk.ID != "" && a.id == "" {
		a.id = chunk.ID
	}
	if chunk.Model != "" && a.model == "" {
		a.model = chunk.Model
	}

	if chunk.Role != nil && !a.roleSet {
		role, err := ParseRole(*chunk.Role)
		if err != nil {
			return false, err
		}
		a.msg.Role = role
		a.roleSet = true
	}

	if chunk.Thinking != nil {
		a.thinking.WriteString(*chunk.Thinking)
	}
	if chunk.Signature != nil {
		a.sig += *chunk.Signature
	}

	for _, d := range chunk.ToolCalls {
		a.mergeToolCall(d)
	}
	if len(chunk.Blocks) > 0 {
		a.blocks = append(a.blocks, chunk.Blocks...)
		a.syncContent()
	}

	if chunk.Content != nil && *chunk.Content != "" {
		a.text.WriteString(*chunk.Content)
		a.syncContent()
		if a.callback != nil {
			a.callback(&a.msg, *chunk.Content, false)
		}
	}

	if chunk.FinishReason != nil || chunk.Done {
		if chunk.FinishReason != nil {
			a.finishReason = *chunk.FinishReason
		}
		if chunk.RawFinishReason != "" {
			a.rawFinishReason = chunk.RawFinishReason
		}
		a.finalize()
		return true, nil
	}
	return false, nil
}

func (a *Accumulator) mergeToolCall(d ToolCallDelta) {
	call, ok := a.calls[d.Index]
	if !ok {
		call = &pendingCall{}
		a.calls[d.Index] = call
	}
	if call.id == nil && d.ID != nil && *d.ID != "" {
		id := *d.ID
		call.id = &id
	}
	if call.name == nil && d.Name != nil && *d.Name != "" {
		name := *d.Name
		call.name = &name
	}
	call.args.WriteString(d.Arguments)
}

// syncContent rebuilds the message content from the buffers.
func (a *Accumulator) syncContent() {
	var blocks []ContentBlock
	if a.thinking.Len() > 0 || a.sig != "" {
		blocks = append(blocks, ThinkingBlock{Thinking: a.thinking.String(), Signature: a.sig})
	}
	blocks = append(blocks, a.blocks...)
	if a.text.Len() > 0 {
		blocks = append(blocks, TextBlock{Text: a.text.String()})
	}
	a.msg.Content = blocks
}

func (a *Accumulator) finalize() {
	a.syncContent()

	indexes := make([]int, 0, len(a.calls))
	for i := range a.calls {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	calls := make([]ToolCall, 0, len(indexes))
	for _, i := range indexes {
		p := a.calls[i]
		call := ToolCall{Arguments: p.args.String()}
		if p.id != nil {
			call.ID = *p.id
		}
		if p.name != nil {
			call.Name = *p.name
		}
		call.Params = ParseArguments(call.Arguments)
		calls = append(calls, call)
	}
	if len(calls) > 0 {
		a.msg.ToolCalls = calls
	}

	a.finished = true
	if a.finalizer != nil {
		a.finalizer(&a.msg)
	}
	if a.callback != nil {
		a.callback(&a.msg, "", true)
	}
}

// OnFinalize registers fn to run on the completed message before the final
// callback, e.g. to apply structured output.
func (a *Accumulator) OnFinalize(fn func(msg *Message)) {
	a.finalizer = fn
}

// Finished reports whether a terminal chunk was seen.
func (a *Accumulator) Finished() bool {
	return a.finished
}

// Message returns the message accumulated so far.
func (a *Accumulator) Message() *Message {
	return &a.msg
}

// Response returns the final response. It fails with ErrStreamIncomplete
// when no terminal chunk was seen.
func (a *Accumulator) Response() (*Response, error) {
	if !a.finished {
		return nil, ErrStreamIncomplete
	}
	msg := a.msg
	return &Response{
		Kind:            KindPrompt,
		ID:              a.id,
		Model:           a.model,
		Message:         &msg,
		Usage:           a.usage,
		FinishReason:    a.finishReason,
		RawFinishReason: a.rawFinishReason,
	}, nil
}
