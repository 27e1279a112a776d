package anthropic

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/haowjy/llmwire-go"
)

// Defaults are the documented Messages API defaults.
var Defaults = llmwire.Defaults{
	"temperature":  1.0,
	"stream":       false,
	"service_tier": "auto",
}

// Required fields are emitted even when they equal a default.
var Required = []string{"model", "messages", "max_tokens"}

const (
	// DefaultMaxTokens is used when the caller sets no max_tokens; the API
	// requires one.
	DefaultMaxTokens = 4096

	// MinThinkingBudget is the smallest accepted thinking.budget_tokens.
	MinThinkingBudget = 1024
)

var serviceTiers = []string{"auto", "standard_only"}

// SupportsModel reports whether model is a Claude model id.
func SupportsModel(model string) bool {
	return strings.HasPrefix(model, "claude-")
}

// Request is a typed Messages API request.
type Request struct {
	Model        string
	Instructions []string
	Messages     []llmwire.Message

	MaxTokens     *int
	Temperature   *float64
	TopP          *float64
	TopK          *int
	StopSequences []string
	Stream        *bool
	ServiceTier   *string
	UserID        *string

	// ThinkingBudget enables extended thinking with the given budget.
	ThinkingBudget *int

	Tools                  []llmwire.Tool
	ToolChoice             *llmwire.ToolChoice
	DisableParallelToolUse bool

	// ResponseFormat is emulated: Anthropic has no native JSON mode.
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
		Model:          req.Model,
		MaxTokens:      llmwire.Int(params.GetMaxTokens(DefaultMaxTokens)),
		Temperature:    params.Temperature,
		TopP:           params.TopP,
		TopK:           params.TopK,
		StopSequences:  params.Stop,
		Stream:         llmwire.Bool(false),
		ServiceTier:    params.ServiceTier,
		UserID:         params.User,
		Tools:          req.Tools,
		ToolChoice:     req.ToolChoice,
		ResponseFormat: req.ResponseFormat,
	}
	if params.ThinkingRequested() {
		r.ThinkingBudget = llmwire.Int(params.GetThinkingBudgetTokens())
	}
	if params.ParallelToolCalls != nil && !*params.ParallelToolCalls {
		r.DisableParallelToolUse = true
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
		case "thinking":
			m, ok := value.(map[string]any)
			if !ok {
				return &llmwire.CastError{Kind: "thinking", Value: value, Reason: "must be an object", Provider: llmwire.ProviderAnthropic}
			}
			if llmwire.StringField(m, "type") == "disabled" {
				r.ThinkingBudget = nil
				continue
			}
			r.ThinkingBudget = llmwire.OptionalInt(m, "budget_tokens")
		case "metadata":
			m, ok := value.(map[string]any)
			if !ok {
				return &llmwire.CastError{Kind: "metadata", Value: value, Reason: "must be an object", Provider: llmwire.ProviderAnthropic}
			}
			if id := llmwire.OptionalString(m, "user_id"); id != nil {
				r.UserID = id
			}
		case "top_k":
			r.TopK = llmwire.OptionalInt(ext, key)
		default:
			if r.Extra == nil {
				r.Extra = make(map[string]any)
			}
			r.Extra[key] = value
		}
	}
	return nil
}

// SetInstructions replaces the texts placed in the top-level system prompt.
func (r *Request) SetInstructions(instructions ...string) {
	r.Instructions = slices.DeleteFunc(slices.Clone(instructions), func(s string) bool { return s == "" })
}

// SetMessages merges msgs into the history, skipping messages already present.
func (r *Request) SetMessages(msgs ...llmwire.Message) {
	r.Messages = llmwire.MergeMessages(r.Messages, msgs)
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

// ApplyResponse prepares the next turn: the reply joins the history and a
// satisfied forced tool choice is cleared.
func (r *Request) ApplyResponse(resp *llmwire.Response) {
	if resp.Message != nil && resp.Message.Validate() == nil {
		r.Messages = append(r.Messages, *resp.Message)
	}
	r.ToolChoice = r.ToolChoice.AfterTurn(resp.ToolCalls())
}

// Prefill returns the assistant prefix used to force JSON output, or "".
func (r *Request) Prefill() string {
	return jsonPrefill(r.ResponseFormat, r.ThinkingBudget != nil)
}

// Validate checks every documented constraint. Nothing is clamped.
func (r *Request) Validate() error {
	if r.Model == "" {
		return &llmwire.ValidationError{Field: "model", Value: r.Model, Reason: "is required"}
	}
	if !SupportsModel(r.Model) {
		return &llmwire.ValidationError{Field: "model", Value: r.Model, Reason: "must be a claude- model"}
	}
	if !slices.ContainsFunc(r.Messages, func(m llmwire.Message) bool {
		return m.Role != llmwire.RoleSystem && m.Role != llmwire.RoleDeveloper
	}) {
		return &llmwire.ValidationError{Field: "messages", Value: nil, Reason: "requires at least one user or assistant message"}
	}

	if err := llmwire.FirstError(
		llmwire.CheckMin("max_tokens", r.MaxTokens, 1),
		llmwire.CheckRange("temperature", r.Temperature, 0, 1),
		llmwire.CheckRange("top_p", r.TopP, 0, 1),
		llmwire.CheckMin("top_k", r.TopK, 0),
		llmwire.CheckEnum("service_tier", r.ServiceTier, serviceTiers...),
	); err != nil {
		return err
	}

	if err := r.validateThinking(); err != nil {
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

func (r *Request) validateThinking() error {
	if r.ThinkingBudget == nil {
		return nil
	}
	budget := *r.ThinkingBudget
	if budget < MinThinkingBudget {
		return &llmwire.ValidationError{Field: "thinking.budget_tokens", Value: budget, Reason: fmt.Sprintf("must be at least %d", MinThinkingBudget)}
	}
	if r.MaxTokens != nil && budget >= *r.MaxTokens {
		return &llmwire.ValidationError{Field: "thinking.budget_tokens", Value: budget, Reason: fmt.Sprintf("must be less than max_tokens (%d)", *r.MaxTokens)}
	}
	if r.Temperature != nil && *r.Temperature != 1 {
		return &llmwire.ValidationError{Field: "temperature", Value: *r.Temperature, Reason: "must be 1 when thinking is enabled"}
	}
	if r.TopK != nil {
		return &llmwire.ValidationError{Field: "top_k", Value: *r.TopK, Reason: "cannot be set when thinking is enabled"}
	}
	if r.ToolChoice.Forces() {
		return &llmwire.ValidationError{Field: "tool_choice", Value: r.ToolChoice.Mode, Reason: "cannot force tool use when thinking is enabled"}
	}
	return nil
}

// Payload renders every field before default suppression.
func (r *Request) Payload() (map[string]any, error) {
	lifted, messages, err := EncodeMessages(r.Messages)
	if err != nil {
		return nil, err
	}

	system := append(slices.Clone(r.Instructions), lifted...)
	if text := formatInstructions(r.ResponseFormat); text != "" {
		system = append(system, text)
	}
	if prefill := r.Prefill(); prefill != "" {
		messages = appendPrefill(messages, prefill)
	}

	payload := map[string]any{
		"model":          r.Model,
		"messages":       llmwire.Keep(messages),
		"stop_sequences": r.StopSequences,
	}
	if len(system) > 0 {
		payload["system"] = strings.Join(system, "\n\n")
	}
	llmwire.Put(payload, "max_tokens", r.MaxTokens)
	llmwire.Put(payload, "temperature", r.Temperature)
	llmwire.Put(payload, "top_p", r.TopP)
	llmwire.Put(payload, "top_k", r.TopK)
	llmwire.Put(payload, "stream", r.Stream)
	llmwire.Put(payload, "service_tier", r.ServiceTier)
	if r.UserID != nil {
		payload["metadata"] = map[string]any{"user_id": *r.UserID}
	}

	if r.ThinkingBudget != nil {
		thinking, err := llmwire.ToMap(anthropic.ThinkingConfigParamOfEnabled(int64(*r.ThinkingBudget)))
		if err != nil {
			return nil, err
		}
		payload["thinking"] = thinking
	}

	if len(r.Tools) > 0 {
		tools, err := WireTools(r.Tools)
		if err != nil {
			return nil, err
		}
		payload["tools"] = tools
	}
	choice, err := WireToolChoice(r.ToolChoice, r.DisableParallelToolUse)
	if err != nil {
		return nil, err
	}
	if choice != nil {
		payload["tool_choice"] = choice
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

// jsonPrefill returns "{" (or "[" for array schemas) when JSON output is
// requested. Prefill is not allowed together with extended thinking.
func jsonPrefill(format *llmwire.ResponseFormat, thinking bool) string {
	if !format.WantsJSON() || thinking {
		return ""
	}
	if format.JSONSchema != nil && llmwire.StringField(format.JSONSchema.Schema, "type") == "array" {
		return "["
	}
	return "{"
}

// PrefillFor returns the prefill a request built from req carries. Decoders
// use it to restore the prefix the API does not echo.
func PrefillFor(req *llmwire.GenerateRequest) string {
	if req == nil {
		return ""
	}
	thinking := req.Params.ThinkingRequested()
	if v, ok := req.Extension("thinking"); ok {
		m, _ := v.(map[string]any)
		thinking = llmwire.StringField(m, "type") != "disabled"
	}
	return jsonPrefill(req.ResponseFormat, thinking)
}

func formatInstructions(format *llmwire.ResponseFormat) string {
	if !format.WantsJSON() {
		return ""
	}
	if format.JSONSchema == nil || format.JSONSchema.Schema == nil {
		return "Respond only with valid JSON. Do not include any text outside the JSON value."
	}
	schema, err := json.Marshal(format.JSONSchema.Schema)
	if err != nil {
		return "Respond only with valid JSON. Do not include any text outside the JSON value."
	}
	var sb strings.Builder
	sb.WriteString("Respond only with valid JSON matching this JSON Schema. Do not include any text outside the JSON value.\n")
	if format.JSONSchema.Description != "" {
		sb.WriteString(format.JSONSchema.Description)
		sb.WriteString("\n")
	}
	sb.Write(schema)
	return sb.String()
}

// appendPrefill adds the prefill as the final assistant turn, merging into
// a trailing assistant turn when there is one.
func appendPrefill(messages []any, prefill string) []any {
	block := llmwire.SerializeText(prefill)
	if n := len(messages); n > 0 {
		if last, ok := messages[n-1].(map[string]any); ok && last["role"] == "assistant" {
			last["content"] = append(last["content"].([]any), block)
			return messages
		}
	}
	return append(messages, map[string]any{"role": "assistant", "content": []any{block}})
}
