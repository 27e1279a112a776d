package llmwire

import (
	"encoding/json"
	"fmt"

	"dario.cat/mergo"
)

// Params holds generation parameters shared across providers.
// All fields are optional pointers to distinguish "not set" from "set to zero value";
// provider request builders fill unset fields from their own defaults table.
type Params struct {
	// ===== Sampling =====

	// Temperature controls randomness. OpenAI accepts 0-2, Anthropic 0-1.
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`

	// TopP (nucleus sampling) - cumulative probability cutoff (0.0-1.0)
	TopP *float64 `json:"top_p,omitempty" yaml:"top_p,omitempty"`

	// TopK limits sampling to top K tokens (Anthropic, Ollama)
	TopK *int `json:"top_k,omitempty" yaml:"top_k,omitempty"`

	// FrequencyPenalty reduces repetition of token sequences (-2.0 to 2.0)
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty" yaml:"frequency_penalty,omitempty"`

	// PresencePenalty reduces repetition of topics (-2.0 to 2.0)
	PresencePenalty *float64 `json:"presence_penalty,omitempty" yaml:"presence_penalty,omitempty"`

	// Seed for deterministic sampling (if supported by provider)
	Seed *int `json:"seed,omitempty" yaml:"seed,omitempty"`

	// ===== Output =====

	// MaxTokens sets the maximum number of tokens to generate
	MaxTokens *int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`

	// Stop sequences - generation stops if any of these are generated
	Stop []string `json:"stop,omitempty" yaml:"stop,omitempty"`

	// N is the number of choices to generate (OpenAI Chat)
	N *int `json:"n,omitempty" yaml:"n,omitempty"`

	// LogProbs returns log probabilities of output tokens
	LogProbs *bool `json:"logprobs,omitempty" yaml:"logprobs,omitempty"`

	// TopLogProbs specifies how many top logprobs to return per token
	TopLogProbs *int `json:"top_logprobs,omitempty" yaml:"top_logprobs,omitempty"`

	// LogitBias adjusts likelihood of specific tokens
	LogitBias map[string]float64 `json:"logit_bias,omitempty" yaml:"logit_bias,omitempty"`

	// ===== Reasoning =====

	// ThinkingEnabled enables extended thinking mode (Anthropic, Ollama)
	ThinkingEnabled *bool `json:"thinking_enabled,omitempty" yaml:"thinking_enabled,omitempty"`

	// ThinkingLevel sets the thinking budget: "low", "medium", "high"
	// Maps to token budgets: low=2000, medium=5000, high=12000
	ThinkingLevel *string `json:"thinking_level,omitempty" yaml:"thinking_level,omitempty"`

	// ReasoningEffort for OpenAI reasoning models: minimal, low, medium, high
	ReasoningEffort *string `json:"reasoning_effort,omitempty" yaml:"reasoning_effort,omitempty"`

	// ===== Tools =====

	// ParallelToolCalls allows model to use multiple tools simultaneously
	ParallelToolCalls *bool `json:"parallel_tool_calls,omitempty" yaml:"parallel_tool_calls,omitempty"`

	// ===== Misc =====

	// ServiceTier selects the processing tier (OpenAI, Anthropic)
	ServiceTier *string `json:"service_tier,omitempty" yaml:"service_tier,omitempty"`

	// User is an end-user identifier forwarded for abuse monitoring
	User *string `json:"user,omitempty" yaml:"user,omitempty"`

	// Metadata is forwarded verbatim where the provider supports it
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Validate checks constraints that hold for every provider.
// Provider-specific ranges are validated by each request builder.
func (p *Params) Validate() error {
	if p == nil {
		return nil
	}

	if p.MaxTokens != nil && *p.MaxTokens < 1 {
		return &ValidationError{Field: "max_tokens", Value: *p.MaxTokens, Reason: "must be positive"}
	}

	if p.TopK != nil && *p.TopK < 0 {
		return &ValidationError{Field: "top_k", Value: *p.TopK, Reason: "must be non-negative"}
	}

	if p.ThinkingLevel != nil {
		switch *p.ThinkingLevel {
		case "low", "medium", "high":
		default:
			return &ValidationError{Field: "thinking_level", Value: *p.ThinkingLevel, Reason: "must be 'low', 'medium', or 'high'"}
		}
	}

	return nil
}

// ResolveParams merges parameter layers. Later layers win:
// pass them as defaults, agent, prompt, call-site to get
// call-site > prompt > agent > default. nil layers are skipped.
func ResolveParams(layers ...*Params) (*Params, error) {
	resolved := &Params{}
	for i, layer := range layers {
		if layer == nil {
			continue
		}
		if err := mergo.Merge(resolved, *layer, mergo.WithOverride, mergo.WithoutDereference); err != nil {
			return nil, fmt.Errorf("merge params layer %d: %w", i, err)
		}
	}
	return resolved, nil
}

// ParamsFromMap decodes a loosely-typed parameter map into Params.
func ParamsFromMap(params map[string]any) (*Params, error) {
	if params == nil {
		return &Params{}, nil
	}

	jsonBytes, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	var p Params
	if err := json.Unmarshal(jsonBytes, &p); err != nil {
		return nil, &CastError{Kind: "params", Value: params, Reason: err.Error()}
	}

	return &p, nil
}

// GetMaxTokens returns max_tokens with default fallback
func (p *Params) GetMaxTokens(defaultValue int) int {
	if p != nil && p.MaxTokens != nil {
		return *p.MaxTokens
	}
	return defaultValue
}

// GetThinkingBudgetTokens converts thinking_level to token budget
// low = 2000, medium = 5000, high = 12000. Thinking enabled without a
// level uses the medium budget.
func (p *Params) GetThinkingBudgetTokens() int {
	if p == nil {
		return 0
	}

	if p.ThinkingLevel == nil {
		if p.ThinkingEnabled != nil && *p.ThinkingEnabled {
			return 5000
		}
		return 0
	}

	switch *p.ThinkingLevel {
	case "low":
		return 2000
	case "medium":
		return 5000
	case "high":
		return 12000
	default:
		return 0
	}
}

// ThinkingRequested reports whether extended thinking should be enabled.
func (p *Params) ThinkingRequested() bool {
	if p == nil {
		return false
	}
	if p.ThinkingEnabled != nil {
		return *p.ThinkingEnabled
	}
	return p.ThinkingLevel != nil
}
