package openai

import (
	"fmt"
	"slices"

	"github.com/haowjy/llmwire-go"
	openai "github.com/sashabaranov/go-openai"
)

// Defaults are the documented Chat Completions defaults. Serialize omits
// any field still equal to its entry here.
var Defaults = llmwire.Defaults{
	"temperature":         1.0,
	"top_p":               1.0,
	"frequency_penalty":   0.0,
	"presence_penalty":    0.0,
	"n":                   1,
	"stream":              false,
	"service_tier":        "auto",
	"parallel_tool_calls": true,
	"store":               false,
	"logprobs":            false,
	"response_format":     map[string]any{"type": "text"},
}

// Required fields are emitted even when empty.
var Required = []string{"model", "messages"}

var (
	serviceTiers     = []string{"auto", "default", "flex", "scale", "priority"}
	reasoningEfforts = []string{"minimal", "low", "medium", "high"}
)

// defaultParams mirrors Defaults as the lowest precedence layer.
func defaultParams() *llmwire.Params {
	return &llmwire.Params{
		Temperature:       llmwire.Float(1),
		TopP:              llmwire.Float(1),
		FrequencyPenalty:  llmwire.Float(0),
		PresencePenalty:   llmwire.Float(0),
		N:                 llmwire.Int(1),
		LogProbs:          llmwire.Bool(false),
		ParallelToolCalls: llmwire.Bool(true),
		ServiceTier:       llmwire.String("auto"),
	}
}

// Request is a typed Chat Completions request.
type Request struct {
	Model        string
	Instructions []string
	Messages     []llmwire.Message

	Temperature         *float64
	TopP                *float64
	FrequencyPenalty    *float64
	PresencePenalty     *float64
	N                   *int
	Seed                *int
	Stop                []string
	MaxTokens           *int // legacy; exclusive with MaxCompletionTokens
	MaxCompletionTokens *int
	LogProbs            *bool
	TopLogProbs         *int
	LogitBias           map[string]float64
	ReasoningEffort     *string
	ServiceTier         *string
	ParallelToolCalls   *bool
	Store               *bool
	User                *string
	Metadata            map[string]string
	PromptCacheKey      *string
	Stream              *bool
	StreamOptions       map[string]any

	Tools          []llmwire.Tool
	ToolChoice     *llmwire.ToolChoice
	ResponseFormat *llmwire.ResponseFormat

	// Extra holds extension fields emitted verbatim.
	Extra map[string]any

	registry *llmwire.BlockRegistry
}

// NewRequest merges req over the defaults table, maps its extensions and
// validates the result.
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

// FromGenerateRequest maps req without validating it. Callers adjust the
// result (stream flags, overrides) and then call Validate.
func FromGenerateRequest(req *llmwire.GenerateRequest) (*Request, error) {
	params, err := llmwire.ResolveParams(defaultParams(), req.Params)
	if err != nil {
		return nil, err
	}

	r := &Request{
		Model:               req.Model,
		Temperature:         params.Temperature,
		TopP:                params.TopP,
		FrequencyPenalty:    params.FrequencyPenalty,
		PresencePenalty:     params.PresencePenalty,
		N:                   params.N,
		Seed:                params.Seed,
		Stop:                params.Stop,
		MaxCompletionTokens: params.MaxTokens,
		LogProbs:            params.LogProbs,
		TopLogProbs:         params.TopLogProbs,
		LogitBias:           params.LogitBias,
		ReasoningEffort:     params.ReasoningEffort,
		ServiceTier:         params.ServiceTier,
		ParallelToolCalls:   params.ParallelToolCalls,
		Store:               llmwire.Bool(false),
		User:                params.User,
		Metadata:            params.Metadata,
		Stream:              llmwire.Bool(false),
		Tools:               req.Tools,
		ToolChoice:          req.ToolChoice,
		ResponseFormat:      req.ResponseFormat,
		registry:            registry,
	}
	r.SetInstructions(req.Instructions...)
	r.SetMessages(req.Messages...)

	if err := r.applyExtensions(req.Extensions); err != nil {
		return nil, err
	}
	return r, nil
}

// WithRegistry serializes content through reg instead of the OpenAI registry.
func (r *Request) WithRegistry(reg *llmwire.BlockRegistry) *Request {
	r.registry = reg
	return r
}

func (r *Request) applyExtensions(ext map[string]any) error {
	for key, value := range ext {
		switch key {
		case "max_tokens":
			r.MaxTokens = llmwire.OptionalInt(ext, key)
		case "max_completion_tokens":
			r.MaxCompletionTokens = llmwire.OptionalInt(ext, key)
		case "store":
			r.Store = llmwire.OptionalBool(ext, key)
		case "prompt_cache_key":
			r.PromptCacheKey = llmwire.OptionalString(ext, key)
		case "stream_options":
			opts, ok := value.(map[string]any)
			if !ok {
				return &llmwire.CastError{Kind: "stream_options", Value: value, Reason: "must be an object"}
			}
			r.StreamOptions = opts
		default:
			if r.Extra == nil {
				r.Extra = make(map[string]any)
			}
			r.Extra[key] = value
		}
	}
	return nil
}

// SetInstructions replaces the instruction messages prepended on serialize.
func (r *Request) SetInstructions(instructions ...string) {
	r.Instructions = slices.DeleteFunc(slices.Clone(instructions), func(s string) bool { return s == "" })
}

// SetMessages merges msgs into the history, skipping messages already present.
func (r *Request) SetMessages(msgs ...llmwire.Message) {
	r.Messages = llmwire.MergeMessages(r.Messages, msgs)
}

// SetInput casts a loosely-typed input (see CastInput) and merges it.
func (r *Request) SetInput(raw any) error {
	msgs, err := CastInput(raw)
	if err != nil {
		return err
	}
	r.SetMessages(msgs...)
	return nil
}

// SetStream toggles streaming; streams request usage on the final chunk.
func (r *Request) SetStream(stream bool) {
	r.Stream = llmwire.Bool(stream)
	if stream && r.StreamOptions == nil {
		r.StreamOptions = map[string]any{"include_usage": true}
	}
}

// ApplyResponse prepares the request for the next turn: the assistant reply
// joins the history and a satisfied forced tool choice is cleared.
func (r *Request) ApplyResponse(resp *llmwire.Response) {
	if resp.Message != nil && resp.Message.Validate() == nil {
		r.Messages = append(r.Messages, *resp.Message)
	}
	r.ToolChoice = r.ToolChoice.AfterTurn(resp.ToolCalls())
}

// Validate checks every documented constraint. Nothing is clamped.
func (r *Request) Validate() error {
	if r.Model == "" {
		return &llmwire.ValidationError{Field: "model", Value: r.Model, Reason: "is required"}
	}
	if len(r.Messages) == 0 && len(r.Instructions) == 0 {
		return &llmwire.ValidationError{Field: "messages", Value: nil, Reason: "is required"}
	}

	if err := llmwire.FirstError(
		llmwire.CheckRange("temperature", r.Temperature, 0, 2),
		llmwire.CheckRange("top_p", r.TopP, 0, 1),
		llmwire.CheckRange("frequency_penalty", r.FrequencyPenalty, -2, 2),
		llmwire.CheckRange("presence_penalty", r.PresencePenalty, -2, 2),
		llmwire.CheckMin("n", r.N, 1),
		llmwire.CheckRange("top_logprobs", r.TopLogProbs, 0, 20),
		llmwire.CheckMin("max_tokens", r.MaxTokens, 1),
		llmwire.CheckMin("max_completion_tokens", r.MaxCompletionTokens, 1),
		llmwire.CheckExclusive("max_tokens", r.MaxTokens != nil, "max_completion_tokens", r.MaxCompletionTokens != nil),
		llmwire.CheckEnum("service_tier", r.ServiceTier, serviceTiers...),
		llmwire.CheckEnum("reasoning_effort", r.ReasoningEffort, reasoningEfforts...),
	); err != nil {
		return err
	}

	if r.TopLogProbs != nil && (r.LogProbs == nil || !*r.LogProbs) {
		return &llmwire.ValidationError{Field: "top_logprobs", Value: *r.TopLogProbs, Reason: "requires logprobs=true"}
	}
	if r.StreamOptions != nil && (r.Stream == nil || !*r.Stream) {
		return &llmwire.ValidationError{Field: "stream_options", Value: r.StreamOptions, Reason: "only allowed when stream=true"}
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
		if r.ToolChoice.Mode == llmwire.ToolChoiceTool && !hasTool(r.Tools, r.ToolChoice.Name) {
			return &llmwire.ValidationError{Field: "tool_choice", Value: r.ToolChoice.Name, Reason: "names a tool that is not defined"}
		}
	}
	if r.ResponseFormat != nil {
		if err := r.ResponseFormat.Validate(); err != nil {
			return err
		}
	}
	return r.validateReasoningModel()
}

// validateReasoningModel applies the fixed-sampling limits of reasoning
// models using go-openai's validator.
func (r *Request) validateReasoningModel() error {
	if !IsReasoningModel(r.Model) {
		return nil
	}
	native := openai.ChatCompletionRequest{
		Model:            bareModel(r.Model),
		MaxTokens:        deref(r.MaxTokens),
		LogProbs:         deref(r.LogProbs),
		Temperature:      float32(deref(r.Temperature)),
		TopP:             float32(deref(r.TopP)),
		N:                deref(r.N),
		PresencePenalty:  float32(deref(r.PresencePenalty)),
		FrequencyPenalty: float32(deref(r.FrequencyPenalty)),
	}
	if err := openai.NewReasoningValidator().Validate(native); err != nil {
		return &llmwire.ValidationError{Field: "model", Value: r.Model, Reason: err.Error()}
	}
	return nil
}

func deref[T any](v *T) T {
	if v == nil {
		var zero T
		return zero
	}
	return *v
}

func hasTool(tools []llmwire.Tool, name string) bool {
	for _, t := range tools {
		if t.Name == name {
			return true
		}
	}
	return false
}

// Payload renders every field, before default suppression. Instructions
// come first as system (or developer, for reasoning models) messages.
func (r *Request) Payload() (map[string]any, error) {
	reg := r.registry
	if reg == nil {
		reg = registry
	}
	enc := MessageEncoder{Registry: reg, Developer: IsReasoningModel(r.Model)}

	instructions := make([]llmwire.Message, 0, len(r.Instructions))
	for _, text := range r.Instructions {
		instructions = append(instructions, llmwire.NewTextMessage(llmwire.RoleSystem, text))
	}
	messages, err := enc.Encode(append(instructions, r.Messages...))
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"model":          r.Model,
		"messages":       messages,
		"stop":           r.Stop,
		"logit_bias":     r.LogitBias,
		"metadata":       r.Metadata,
		"stream_options": r.StreamOptions,
	}
	llmwire.Put(payload, "temperature", r.Temperature)
	llmwire.Put(payload, "top_p", r.TopP)
	llmwire.Put(payload, "frequency_penalty", r.FrequencyPenalty)
	llmwire.Put(payload, "presence_penalty", r.PresencePenalty)
	llmwire.Put(payload, "n", r.N)
	llmwire.Put(payload, "seed", r.Seed)
	llmwire.Put(payload, "max_tokens", r.MaxTokens)
	llmwire.Put(payload, "max_completion_tokens", r.MaxCompletionTokens)
	llmwire.Put(payload, "logprobs", r.LogProbs)
	llmwire.Put(payload, "top_logprobs", r.TopLogProbs)
	llmwire.Put(payload, "reasoning_effort", r.ReasoningEffort)
	llmwire.Put(payload, "service_tier", r.ServiceTier)
	llmwire.Put(payload, "store", r.Store)
	llmwire.Put(payload, "user", r.User)
	llmwire.Put(payload, "prompt_cache_key", r.PromptCacheKey)
	llmwire.Put(payload, "stream", r.Stream)

	if len(r.Tools) > 0 {
		payload["tools"] = WireTools(r.Tools)
		llmwire.Put(payload, "parallel_tool_calls", r.ParallelToolCalls)
	}
	if tc := WireToolChoice(r.ToolChoice); tc != nil {
		payload["tool_choice"] = tc
	}
	if r.ResponseFormat != nil {
		payload["response_format"] = r.ResponseFormat.Wire()
	}

	for key, value := range r.Extra {
		if _, exists := payload[key]; !exists {
			payload[key] = value
		}
	}
	return payload, nil
}

// Serialize returns the minimal wire payload: defaults omitted, nil and
// empty values dropped, model and messages always present.
func (r *Request) Serialize() (map[string]any, error) {
	payload, err := r.Payload()
	if err != nil {
		return nil, err
	}
	return llmwire.OmitDefaults(payload, Defaults, Required...), nil
}
