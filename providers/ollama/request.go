package ollama

import (
	"fmt"
	"maps"
	"slices"

	"github.com/haowjy/llmwire-go"
)

// Defaults are the documented /api/chat defaults. stream defaults to true
// on the server, so it is listed in Required and always sent.
var Defaults = llmwire.Defaults{
	"stream":     true,
	"keep_alive": "5m",
	"options": llmwire.Defaults{
		"temperature": 0.8,
		"top_p":       0.9,
		"top_k":       40,
		"num_predict": -1,
	},
}

// Required fields are emitted even when they equal a default.
var Required = []string{"model", "messages", "stream"}

var thinkLevels = []string{"low", "medium", "high"}

// Request is a typed /api/chat request.
type Request struct {
	Model        string
	Instructions []string
	Messages     []llmwire.Message

	Temperature      *float64
	TopP             *float64
	TopK             *int
	NumPredict       *int
	Seed             *int
	Stop             []string
	FrequencyPenalty *float64
	PresencePenalty  *float64

	// Think is true/false, or a level for models that take one.
	Think      *bool
	ThinkLevel *string

	KeepAlive *string
	Stream    *bool

	Tools          []llmwire.Tool
	ToolChoice     *llmwire.ToolChoice
	ResponseFormat *llmwire.ResponseFormat

	// Options holds extra runtime options (num_ctx, repeat_penalty, ...).
	Options map[string]any

	// Extra holds extension fields emitted verbatim.
	Extra map[string]any
}

// NewRequest maps req and validates the result.
func NewRequest(req *llmwire.GenerateRequest) (*Request, error) {
	r, err := FromGenerateRequest(req)
	if err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// FromGenerateRequest maps req without validating it.
func FromGenerateRequest(req *llmwire.GenerateRequest) (*Request, error) {
	params := req.Params
	if params == nil {
		params = &llmwire.Params{}
	}

	r := &Request{
		Model:            req.Model,
		Temperature:      params.Temperature,
		TopP:             params.TopP,
		TopK:             params.TopK,
		NumPredict:       params.MaxTokens,
		Seed:             params.Seed,
		Stop:             params.Stop,
		FrequencyPenalty: params.FrequencyPenalty,
		PresencePenalty:  params.PresencePenalty,
		Stream:           llmwire.Bool(false),
		Tools:            req.Tools,
		ToolChoice:       req.ToolChoice,
		ResponseFormat:   req.ResponseFormat,
	}
	switch {
	case params.ThinkingLevel != nil && (params.ThinkingEnabled == nil || *params.ThinkingEnabled):
		r.ThinkLevel = params.ThinkingLevel
	case params.ThinkingEnabled != nil:
		r.Think = params.ThinkingEnabled
	}
	r.SetInstructions(req.Instructions...)
	r.SetMessages(req.Messages...)

	if err := r.applyExtensions(req.Extensions); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Request) applyExtensions(ext map[string]any) error {
	for key, value := range ext {
		switch key {
		case "think":
			switch v := value.(type) {
			case bool:
				r.Think, r.ThinkLevel = &v, nil
			case string:
				r.Think, r.ThinkLevel = nil, &v
			default:
				return &llmwire.CastError{Kind: "think", Value: value, Reason: "must be a bool or a level", Provider: llmwire.ProviderOllama}
			}
		case "keep_alive":
			s, ok := value.(string)
			if !ok {
				return &llmwire.CastError{Kind: "keep_alive", Value: value, Reason: "must be a duration string", Provider: llmwire.ProviderOllama}
			}
			r.KeepAlive = &s
		case "options":
			m, ok := value.(map[string]any)
			if !ok {
				return &llmwire.CastError{Kind: "options", Value: value, Reason: "must be an object", Provider: llmwire.ProviderOllama}
			}
			if r.Options == nil {
				r.Options = make(map[string]any)
			}
			maps.Copy(r.Options, m)
		default:
			if r.Extra == nil {
				r.Extra = make(map[string]any)
			}
			r.Extra[key] = value
		}
	}
	return nil
}

// SetInstructions replaces the leading system messages.
func (r *Request) SetInstructions(instructions ...string) {
	r.Instructions = slices.DeleteFunc(slices.Clone(instructions), func(s string) bool { return s == "" })
}

// SetMessages merges msgs into the history, skipping messages already present.
func (r *Request) SetMessages(msgs ...llmwire.Message) {
	r.Messages = llmwire.MergeMessages(r.Messages, msgs)
}

// SetInput casts loosely-typed input (see CastInput) and merges it.
func (r *Request) SetInput(raw any) error {
	msgs, err := CastInput(raw)
	if err != nil {
		return err
	}
	r.SetMessages(msgs...)
	return nil
}

// SetStream toggles streaming.
func (r *Request) SetStream(stream bool) {
	r.Stream = llmwire.Bool(stream)
}

// ApplyResponse prepares the next turn.
func (r *Request) ApplyResponse(resp *llmwire.Response) {
	if resp.Message != nil && resp.Message.Validate() == nil {
		r.Messages = append(r.Messages, *resp.Message)
	}
	r.ToolChoice = r.ToolChoice.AfterTurn(resp.ToolCalls())
}

// Validate checks the request. Ollama has no tool_choice: "none" drops the
// tools and a forcing choice is rejected.
func (r *Request) Validate() error {
	if r.Model == "" {
		return &llmwire.ValidationError{Field: "model", Value: r.Model, Reason: "is required"}
	}
	if len(r.Messages) == 0 && len(r.Instructions) == 0 {
		return &llmwire.ValidationError{Field: "messages", Value: nil, Reason: "is required"}
	}

	if err := llmwire.FirstError(
		llmwire.CheckMin("temperature", r.Temperature, 0),
		llmwire.CheckRange("top_p", r.TopP, 0, 1),
		llmwire.CheckMin("top_k", r.TopK, 0),
		llmwire.CheckMin("num_predict", r.NumPredict, -2),
		llmwire.CheckEnum("think", r.ThinkLevel, thinkLevels...),
	); err != nil {
		return err
	}

	for i := range r.Tools {
		if err := r.Tools[i].Validate(); err != nil {
			return fmt.Errorf("tools[%d]: %w", i, err)
		}
	}
	if r.ToolChoice != nil {
		if err := r.ToolChoice.Validate(); err != nil {
			return err
		}
		if r.ToolChoice.Forces() {
			return &llmwire.ValidationError{
				Field:  "tool_choice",
				Value:  r.ToolChoice.Mode,
				Reason: "ollama cannot force tool use",
				Err:    llmwire.ErrUnsupportedFeature,
			}
		}
	}
	if r.ResponseFormat != nil {
		return r.ResponseFormat.Validate()
	}
	return nil
}

// Payload renders every field before default suppression.
func (r *Request) Payload() (map[string]any, error) {
	instructions := make([]llmwire.Message, 0, len(r.Instructions))
	for _, text := range r.Instructions {
		instructions = append(instructions, llmwire.NewTextMessage(llmwire.RoleSystem, text))
	}
	messages, err := EncodeMessages(append(instructions, r.Messages...))
	if err != nil {
		return nil, err
	}

	options := make(map[string]any)
	maps.Copy(options, r.Options)
	llmwire.Put(options, "temperature", r.Temperature)
	llmwire.Put(options, "top_p", r.TopP)
	llmwire.Put(options, "top_k", r.TopK)
	llmwire.Put(options, "num_predict", r.NumPredict)
	llmwire.Put(options, "seed", r.Seed)
	llmwire.Put(options, "frequency_penalty", r.FrequencyPenalty)
	llmwire.Put(options, "presence_penalty", r.PresencePenalty)
	if len(r.Stop) > 0 {
		options["stop"] = r.Stop
	}

	payload := map[string]any{
		"model":    r.Model,
		"messages": messages,
		"options":  options,
	}
	llmwire.Put(payload, "stream", r.Stream)
	llmwire.Put(payload, "keep_alive", r.KeepAlive)
	llmwire.Put(payload, "think", r.Think)
	llmwire.Put(payload, "think", r.ThinkLevel)

	if len(r.Tools) > 0 && (r.ToolChoice == nil || r.ToolChoice.Mode != llmwire.ToolChoiceNone) {
		payload["tools"] = WireTools(r.Tools)
	}
	if format := WireFormat(r.ResponseFormat); format != nil {
		payload["format"] = format
	}

	for key, value := range r.Extra {
		if _, exists := payload[key]; !exists {
			payload[key] = value
		}
	}
	return payload, nil
}

// Serialize returns the minimal wire payload.
func (r *Request) Serialize() (map[string]any, error) {
	payload, err := r.Payload()
	if err != nil {
		return nil, err
	}
	return llmwire.OmitDefaults(payload, Defaults, Required...), nil
}

// WireTools renders tools in the function wrapper Ollama shares with Chat
// Completions.
func WireTools(tools []llmwire.Tool) []any {
	out := make([]any, 0, len(tools))
	for _, tool := range tools {
		fn := map[string]any{
			"name":       tool.Name,
			"parameters": llmwire.Keep(tool.ParameterSchema()),
		}
		llmwire.PutString(fn, "description", tool.Description)
		out = append(out, map[string]any{"type": "function", "function": fn})
	}
	return out
}

// WireFormat renders format as "json" or the schema object; nil for text.
func WireFormat(f *llmwire.ResponseFormat) any {
	if !f.WantsJSON() {
		return nil
	}
	if f.Type == llmwire.FormatJSONSchema && f.JSONSchema != nil && f.JSONSchema.Schema != nil {
		return llmwire.Keep(f.JSONSchema.Schema)
	}
	return "json"
}
