package openrouter

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/haowjy/llmwire-go"
	"github.com/haowjy/llmwire-go/providers/openai"
)

// Defaults is the Chat Completions table minus the fields OpenRouter does
// not forward, plus its own sampling and usage defaults.
var Defaults = func() llmwire.Defaults {
	d := maps.Clone(openai.Defaults)
	for _, key := range overrides.drop {
		delete(d, key)
	}
	d["top_k"] = 0
	d["usage"] = map[string]any{"include": false}
	return d
}()

// Required fields are emitted even when empty.
var Required = openai.Required

type overrideTable struct {
	drop   []string
	rename map[string]string
}

// overrides adapts a Chat Completions payload to OpenRouter.
var overrides = overrideTable{
	drop:   []string{"service_tier", "store", "prompt_cache_key"},
	rename: map[string]string{"max_completion_tokens": "max_tokens"},
}

func (t overrideTable) apply(payload map[string]any) {
	for _, key := range t.drop {
		delete(payload, key)
	}
	for from, to := range t.rename {
		if v, ok := payload[from]; ok {
			delete(payload, from)
			if _, exists := payload[to]; !exists {
				payload[to] = v
			}
		}
	}
}

// extensionKeys are consumed here rather than passed through to the base request.
var extensionKeys = []string{"models", "route", "provider", "transforms", "reasoning", "plugins", "usage", "top_k"}

var reasoningEfforts = []string{"minimal", "low", "medium", "high"}

// Request is an OpenRouter chat request: the OpenAI Chat request plus
// routing and reasoning fields.
type Request struct {
	*openai.Request

	TopK *int

	// Models lists fallbacks tried in order when Model fails.
	Models []string
	Route  *string

	// ProviderPrefs is the "provider" routing preferences object.
	ProviderPrefs map[string]any
	Transforms    []string
	Reasoning     map[string]any
	Plugins       []any
	IncludeUsage  *bool
}

// NewRequest maps req, applies the OpenRouter extensions and validates.
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
	base := req.Clone()
	ext := make(map[string]any)
	for _, key := range extensionKeys {
		if v, ok := base.Extensions[key]; ok {
			ext[key] = v
			delete(base.Extensions, key)
		}
	}

	inner, err := openai.FromGenerateRequest(base)
	if err != nil {
		return nil, err
	}
	inner.WithRegistry(registry)
	// not forwarded; keep them out of validation too
	inner.ServiceTier = nil
	inner.Store = nil
	inner.PromptCacheKey = nil

	r := &Request{Request: inner}
	if req.Params != nil {
		r.TopK = req.Params.TopK
	}
	r.Reasoning = reasoningFromParams(req.Params)

	if err := r.applyExtensions(ext); err != nil {
		return nil, err
	}
	return r, nil
}

// reasoningFromParams maps reasoning effort or a thinking budget onto the
// unified reasoning object.
func reasoningFromParams(p *llmwire.Params) map[string]any {
	if p == nil {
		return nil
	}
	switch {
	case p.ReasoningEffort != nil:
		return map[string]any{"effort": *p.ReasoningEffort}
	case p.ThinkingRequested():
		return map[string]any{"max_tokens": p.GetThinkingBudgetTokens()}
	case p.ThinkingEnabled != nil && !*p.ThinkingEnabled:
		return map[string]any{"enabled": false}
	}
	return nil
}

func (r *Request) applyExtensions(ext map[string]any) error {
	if v, ok := ext["models"]; ok {
		models, err := stringList("models", v)
		if err != nil {
			return err
		}
		r.Models = models
	}
	if v, ok := ext["transforms"]; ok {
		transforms, err := stringList("transforms", v)
		if err != nil {
			return err
		}
		r.Transforms = transforms
	}
	r.Route = llmwire.OptionalString(ext, "route")
	if v := llmwire.OptionalInt(ext, "top_k"); v != nil {
		r.TopK = v
	}
	if v, ok := ext["provider"]; ok {
		prefs, ok := v.(map[string]any)
		if !ok {
			return &llmwire.CastError{Kind: "provider", Value: v, Reason: "must be an object", Provider: llmwire.ProviderOpenRouter}
		}
		r.ProviderPrefs = prefs
	}
	if v, ok := ext["reasoning"]; ok {
		reasoning, ok := v.(map[string]any)
		if !ok {
			return &llmwire.CastError{Kind: "reasoning", Value: v, Reason: "must be an object", Provider: llmwire.ProviderOpenRouter}
		}
		r.Reasoning = reasoning
	}
	if v, ok := ext["plugins"]; ok {
		plugins, ok := v.([]any)
		if !ok {
			return &llmwire.CastError{Kind: "plugins", Value: v, Reason: "must be a list", Provider: llmwire.ProviderOpenRouter}
		}
		r.Plugins = plugins
	}
	if v, ok := ext["usage"]; ok {
		switch u := v.(type) {
		case bool:
			r.IncludeUsage = llmwire.Bool(u)
		case map[string]any:
			r.IncludeUsage = llmwire.OptionalBool(u, "include")
		default:
			return &llmwire.CastError{Kind: "usage", Value: v, Reason: "must be a bool or {include}", Provider: llmwire.ProviderOpenRouter}
		}
	}
	return nil
}

func stringList(field string, v any) ([]string, error) {
	switch list := v.(type) {
	case []string:
		return list, nil
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, &llmwire.CastError{Kind: field, Value: item, Reason: "entries must be strings", Provider: llmwire.ProviderOpenRouter}
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, &llmwire.CastError{Kind: field, Value: v, Reason: "must be a list of strings", Provider: llmwire.ProviderOpenRouter}
	}
}

// SupportsModel reports whether model uses the vendor/model form, e.g.
// "anthropic/claude-sonnet-4" or "openrouter/auto".
func SupportsModel(model string) bool {
	vendor, name, ok := strings.Cut(model, "/")
	return ok && vendor != "" && name != ""
}

// Validate runs the Chat Completions checks plus the OpenRouter fields.
func (r *Request) Validate() error {
	if err := r.Request.Validate(); err != nil {
		return err
	}
	if !SupportsModel(r.Model) {
		return &llmwire.ValidationError{Field: "model", Value: r.Model, Reason: "must be in vendor/model form"}
	}
	for i, m := range r.Models {
		if !SupportsModel(m) {
			return &llmwire.ValidationError{Field: fmt.Sprintf("models[%d]", i), Value: m, Reason: "must be in vendor/model form"}
		}
	}
	if err := llmwire.FirstError(
		llmwire.CheckMin("top_k", r.TopK, 0),
		llmwire.CheckEnum("route", r.Route, "fallback"),
	); err != nil {
		return err
	}
	if r.Reasoning != nil {
		_, hasEffort := r.Reasoning["effort"]
		_, hasBudget := r.Reasoning["max_tokens"]
		if err := llmwire.CheckExclusive("reasoning.effort", hasEffort, "reasoning.max_tokens", hasBudget); err != nil {
			return err
		}
		if effort, ok := r.Reasoning["effort"].(string); ok && !slices.Contains(reasoningEfforts, effort) {
			return &llmwire.ValidationError{Field: "reasoning.effort", Value: effort, Reason: "must be one of " + strings.Join(reasoningEfforts, ", ")}
		}
	}
	return nil
}

// Payload renders every field before default suppression.
func (r *Request) Payload() (map[string]any, error) {
	payload, err := r.Request.Payload()
	if err != nil {
		return nil, err
	}
	overrides.apply(payload)
	// reasoning supersedes the OpenAI-only effort field
	if r.Reasoning != nil {
		delete(payload, "reasoning_effort")
	}

	llmwire.Put(payload, "top_k", r.TopK)
	llmwire.Put(payload, "route", r.Route)
	payload["models"] = r.Models
	payload["provider"] = r.ProviderPrefs
	payload["transforms"] = r.Transforms
	payload["reasoning"] = r.Reasoning
	payload["plugins"] = r.Plugins
	if r.IncludeUsage != nil {
		payload["usage"] = map[string]any{"include": *r.IncludeUsage}
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
