package responses

import (
	"fmt"
	"slices"

	"github.com/haowjy/llmwire-go"
)

// Defaults are the documented Responses defaults.
var Defaults = llmwire.Defaults{
	"temperature":         1.0,
	"top_p":               1.0,
	"parallel_tool_calls": true,
	"store":               true,
	"stream":              false,
	"background":          false,
	"truncation":          "disabled",
	"service_tier":        "auto",
	"text":                map[string]any{"format": map[string]any{"type": "text"}},
}

// Required fields are emitted even when empty.
var Required = []string{"model", "input"}

var (
	serviceTiers     = []string{"auto", "default", "flex", "scale", "priority"}
	truncations      = []string{"auto", "disabled"}
	reasoningEfforts = []string{"minimal", "low", "medium", "high"}
	reasoningSummary = []string{"auto", "concise", "detailed"}
)

// MinOutputTokens is the smallest max_output_tokens the API accepts.
const MinOutputTokens = 16

// Request is a typed Responses API request.
type Request struct {
	Model        string
	Instructions []string
	Input        []llmwire.Message

	Temperature       *float64
	TopP              *float64
	TopLogProbs       *int
	MaxOutputTokens   *int
	MaxToolCalls      *int
	ParallelToolCalls *bool
	Store             *bool
	Stream            *bool
	Background        *bool
	Truncation        *string
	ServiceTier       *string
	User              *string
	SafetyIdentifier  *string
	PromptCacheKey    *string
	Metadata          map[string]string
	Include           []string

	// PreviousResponseID and Conversation are mutually exclusive ways to
	// continue server-side state.
	PreviousResponseID *string
	Conversation       any

	ReasoningEffort  *string
	ReasoningSummary *string

	Tools          []llmwire.Tool
	ToolChoice     *llmwire.ToolChoice
	ResponseFormat *llmwire.ResponseFormat

	// Extra holds extension fields emitted verbatim.
	Extra map[string]any
}

// NewRequest maps req over the defaults and validates the result.
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
		Model:             req.Model,
		Temperature:       params.Temperature,
		TopP:              params.TopP,
		TopLogProbs:       params.TopLogProbs,
		MaxOutputTokens:   params.MaxTokens,
		ParallelToolCalls: params.ParallelToolCalls,
		ServiceTier:       params.ServiceTier,
		User:              params.User,
		Metadata:          params.Metadata,
		ReasoningEffort:   params.ReasoningEffort,
		Stream:            llmwire.Bool(false),
		Tools:             req.Tools,
		ToolChoice:        req.ToolChoice,
		ResponseFormat:    req.ResponseFormat,
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
		case "previous_response_id":
			r.PreviousResponseID = llmwire.OptionalString(ext, key)
		case "conversation":
			switch value.(type) {
			case string, map[string]any:
				r.Conversation = value
			default:
				return &llmwire.CastError{Kind: "conversation", Value: value, Reason: "must be an id or {id}", Provider: llmwire.ProviderOpenAIResponses}
			}
		case "store":
			r.Store = llmwire.OptionalBool(ext, key)
		case "background":
			r.Background = llmwire.OptionalBool(ext, key)
		case "truncation":
			r.Truncation = llmwire.OptionalString(ext, key)
		case "max_tool_calls":
			r.MaxToolCalls = llmwire.OptionalInt(ext, key)
		case "safety_identifier":
			r.SafetyIdentifier = llmwire.OptionalString(ext, key)
		case "prompt_cache_key":
			r.PromptCacheKey = llmwire.OptionalString(ext, key)
		case "include":
			include, ok := toStrings(value)
			if !ok {
				return &llmwire.CastError{Kind: "include", Value: value, Reason: "must be a list of strings", Provider: llmwire.ProviderOpenAIResponses}
			}
			r.Include = include
		case "reasoning":
			reasoning, ok := value.(map[string]any)
			if !ok {
				return &llmwire.CastError{Kind: "reasoning", Value: value, Reason: "must be an object", Provider: llmwire.ProviderOpenAIResponses}
			}
			if effort := llmwire.OptionalString(reasoning, "effort"); effort != nil {
				r.ReasoningEffort = effort
			}
			r.ReasoningSummary = llmwire.OptionalString(reasoning, "summary")
		default:
			if r.Extra == nil {
				r.Extra = make(map[string]any)
			}
			r.Extra[key] = value
		}
	}
	return nil
}

func toStrings(v any) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return list, true
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// SetInstructions replaces the developer items prepended to the input.
func (r *Request) SetInstructions(instructions ...string) {
	r.Instructions = slices.DeleteFunc(slices.Clone(instructions), func(s string) bool { return s == "" })
}

// SetMessages merges msgs into the input, skipping messages already present.
func (r *Request) SetMessages(msgs ...llmwire.Message) {
	r.Input = llmwire.MergeMessages(r.Input, msgs)
}

// SetInput casts loosely-typed input and merges it.
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

// ApplyResponse prepares the next turn: the reply joins the input and a
// satisfied forced tool choice is cleared.
func (r *Request) ApplyResponse(resp *llmwire.Response) {
	if resp.Message != nil && resp.Message.Validate() == nil {
		r.Input = append(r.Input, *resp.Message)
	}
	r.ToolChoice = r.ToolChoice.AfterTurn(resp.ToolCalls())
}

// Validate checks every documented constraint. Nothing is clamped.
func (r *Request) Validate() error {
	if r.Model == "" {
		return &llmwire.ValidationError{Field: "model", Value: r.Model, Reason: "is required"}
	}
	if len(r.Input) == 0 && len(r.Instructions) == 0 && r.PreviousResponseID == nil && r.Conversation == nil {
		return &llmwire.ValidationError{Field: "input", Value: nil, Reason: "is required"}
	}

	if err := llmwire.FirstError(
		llmwire.CheckExclusive("conversation", r.Conversation != nil, "previous_response_id", r.PreviousResponseID != nil),
		llmwire.CheckRange("temperature", r.Temperature, 0, 2),
		llmwire.CheckRange("top_p", r.TopP, 0, 1),
		llmwire.CheckRange("top_logprobs", r.TopLogProbs, 0, 20),
		llmwire.CheckMin("max_output_tokens", r.MaxOutputTokens, MinOutputTokens),
		llmwire.CheckMin("max_tool_calls", r.MaxToolCalls, 1),
		llmwire.CheckEnum("service_tier", r.ServiceTier, serviceTiers...),
		llmwire.CheckEnum("truncation", r.Truncation, truncations...),
		llmwire.CheckEnum("reasoning.effort", r.ReasoningEffort, reasoningEfforts...),
		llmwire.CheckEnum("reasoning.summary", r.ReasoningSummary, reasoningSummary...),
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
		if r.ToolChoice.Mode == llmwire.ToolChoiceTool && !slices.ContainsFunc(r.Tools, func(t llmwire.Tool) bool { return t.Name == r.ToolChoice.Name }) {
			return &llmwire.ValidationError{Field: "tool_choice", Value: r.ToolChoice.Name, Reason: "names a tool that is not defined"}
		}
	}
	if r.ResponseFormat != nil {
		return r.ResponseFormat.Validate()
	}
	return nil
}

// Payload renders every field before default suppression.
func (r *Request) Payload() (map[string]any, error) {
	items := make([]any, 0, len(r.Instructions)+len(r.Input))
	for _, text := range r.Instructions {
		items = append(items, map[string]any{"type": "message", "role": "developer", "content": text})
	}
	input, err := EncodeInput(r.Input)
	if err != nil {
		return nil, err
	}
	items = append(items, input...)

	payload := map[string]any{
		"model":        r.Model,
		"input":        items,
		"metadata":     r.Metadata,
		"include":      r.Include,
		"conversation": r.Conversation,
	}
	llmwire.Put(payload, "temperature", r.Temperature)
	llmwire.Put(payload, "top_p", r.TopP)
	llmwire.Put(payload, "top_logprobs", r.TopLogProbs)
	llmwire.Put(payload, "max_output_tokens", r.MaxOutputTokens)
	llmwire.Put(payload, "max_tool_calls", r.MaxToolCalls)
	llmwire.Put(payload, "store", r.Store)
	llmwire.Put(payload, "stream", r.Stream)
	llmwire.Put(payload, "background", r.Background)
	llmwire.Put(payload, "truncation", r.Truncation)
	llmwire.Put(payload, "service_tier", r.ServiceTier)
	llmwire.Put(payload, "user", r.User)
	llmwire.Put(payload, "safety_identifier", r.SafetyIdentifier)
	llmwire.Put(payload, "prompt_cache_key", r.PromptCacheKey)
	llmwire.Put(payload, "previous_response_id", r.PreviousResponseID)

	if r.ReasoningEffort != nil || r.ReasoningSummary != nil {
		reasoning := map[string]any{}
		llmwire.Put(reasoning, "effort", r.ReasoningEffort)
		llmwire.Put(reasoning, "summary", r.ReasoningSummary)
		payload["reasoning"] = reasoning
	}

	if len(r.Tools) > 0 {
		payload["tools"] = WireTools(r.Tools)
		llmwire.Put(payload, "parallel_tool_calls", r.ParallelToolCalls)
	}
	if tc := WireToolChoice(r.ToolChoice); tc != nil {
		payload["tool_choice"] = tc
	}
	if r.ResponseFormat != nil {
		payload["text"] = map[string]any{"format": WireFormat(r.ResponseFormat)}
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
