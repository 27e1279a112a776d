package llmwire

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedCapabilitiesLoad(t *testing.T) {
	require.NoError(t, EmbeddedCapabilitiesError())

	for _, id := range []ProviderID{ProviderOpenAI, ProviderOpenAIResponses, ProviderAnthropic, ProviderOpenRouter, ProviderOllama} {
		caps, err := DefaultCapabilityRegistry().GetProviderCapabilities(id)
		require.NoError(t, err, id)
		assert.Equal(t, id, caps.Provider)
		assert.NotEmpty(t, caps.Models, id)
	}

	_, err := DefaultCapabilityRegistry().GetProviderCapabilities(ProviderLorem)
	assert.Error(t, err)
}

func TestGetModelCapability(t *testing.T) {
	registry := DefaultCapabilityRegistry()

	tests := []struct {
		name     string
		provider ProviderID
		model    string
		vision   bool
		tools    bool
		thinking bool
	}{
		{"exact key", ProviderAnthropic, "claude-3-5-haiku", false, true, false},
		{"dated snapshot", ProviderAnthropic, "claude-3-5-haiku-20241022", false, true, false},
		{"family prefix", ProviderAnthropic, "claude-sonnet-4-5", true, true, true},
		{"longest prefix wins", ProviderOllama, "llama3.2-vision:11b", true, false, false},
		{"ollama tag", ProviderOllama, "llama3.1:8b", false, true, false},
		{"openrouter vendor prefix", ProviderOpenRouter, "openai/gpt-4o", true, true, false},
		{"openrouter anthropic", ProviderOpenRouter, "anthropic/claude-sonnet-4", true, true, true},
		{"openai mini variant", ProviderOpenAI, "gpt-4o-mini", true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mc, err := registry.GetModelCapability(tt.provider, tt.model)
			require.NoError(t, err)
			assert.Equal(t, tt.vision, mc.Features.Vision, "vision")
			assert.Equal(t, tt.tools, mc.Features.Tools, "tools")
			assert.Equal(t, tt.thinking, mc.Features.Thinking, "thinking")
		})
	}
}

func TestGetModelCapabilityUnknown(t *testing.T) {
	registry := DefaultCapabilityRegistry()

	_, err := registry.GetModelCapability(ProviderAnthropic, "claude-99")
	assert.Error(t, err)
	assert.False(t, registry.SupportsModel(ProviderAnthropic, "claude-99"))
	assert.True(t, registry.SupportsModel(ProviderAnthropic, "claude-opus-4-1"))

	_, err = registry.GetModelCapability(ProviderLorem, "lorem")
	assert.Error(t, err)
}

func TestStructuredOutputSupport(t *testing.T) {
	registry := DefaultCapabilityRegistry()

	assert.Equal(t, StructuredOutputEmulated, registry.StructuredOutput(ProviderAnthropic, "claude-sonnet-4"))
	assert.Equal(t, StructuredOutputNative, registry.StructuredOutput(ProviderOpenAI, "gpt-4o"))
	assert.Equal(t, StructuredOutputNone, registry.StructuredOutput(ProviderOpenAI, "gpt-3.5-turbo"))
	assert.Equal(t, StructuredOutputNative, registry.StructuredOutput(ProviderOpenAI, "some-future-model"))
	assert.Equal(t, StructuredOutputNative, registry.StructuredOutput(ProviderLorem, "lorem"))
}

func TestLoadCapabilitiesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caps.yaml")
	data := `
version: "9.9.9"
provider: ollama
constraints:
  temperature_min: 0.0
  temperature_max: 1.0
  top_p_min: 0.0
  top_p_max: 1.0
models:
  mistral:
    context_window: 32768
    features: {vision: false, tools: true, thinking: false, streaming: true, structured_output: native}
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	registry := NewCapabilityRegistry()
	require.NoError(t, registry.LoadCapabilitiesFromFile(path))

	caps, err := registry.GetProviderCapabilities(ProviderOllama)
	require.NoError(t, err)
	assert.Equal(t, "9.9.9", caps.Version)
	assert.True(t, registry.SupportsModel(ProviderOllama, "mistral:7b"))
	assert.False(t, registry.SupportsModel(ProviderOllama, "llama3.1"))
}

func TestLoadCapabilitiesRejectsUnknownProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caps.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: bedrock\nmodels: {}\n"), 0o600))

	err := NewCapabilityRegistry().LoadCapabilitiesFromFile(path)
	assert.ErrorIs(t, err, ErrUnknownProvider)

	err = NewCapabilityRegistry().LoadCapabilitiesFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidationEngine(t *testing.T) {
	engine := DefaultValidationEngine()
	image := ImageBlock{URL: "https://example.com/cat.png"}
	schema := &ResponseFormat{Type: FormatJSONObject}

	tests := []struct {
		name     string
		provider ProviderID
		req      *GenerateRequest
		want     []WarningCode
	}{
		{
			name:     "known model without extras",
			provider: ProviderAnthropic,
			req:      &GenerateRequest{Model: "claude-sonnet-4-5"},
		},
		{
			name:     "unknown model",
			provider: ProviderOpenAI,
			req:      &GenerateRequest{Model: "gpt-99"},
			want:     []WarningCode{WarningCodeModelUnknown},
		},
		{
			name:     "unknown provider is skipped",
			provider: ProviderLorem,
			req:      &GenerateRequest{Model: "lorem", Params: &Params{Temperature: Float(9)}},
		},
		{
			name:     "tools on a model without tools",
			provider: ProviderOllama,
			req:      &GenerateRequest{Model: "llama3.2-vision", Tools: []Tool{{Name: "zoom"}}},
			want:     []WarningCode{WarningCodeModelDoesNotSupportTools},
		},
		{
			name:     "thinking on a model without thinking",
			provider: ProviderAnthropic,
			req:      &GenerateRequest{Model: "claude-3-5-haiku", Params: &Params{ThinkingLevel: String("low")}},
			want:     []WarningCode{WarningCodeThinkingUnsupported},
		},
		{
			name:     "vision on a text model",
			provider: ProviderAnthropic,
			req: &GenerateRequest{
				Model:    "claude-3-5-haiku",
				Messages: []Message{{Role: RoleUser, Content: []ContentBlock{image}}},
			},
			want: []WarningCode{WarningCodeVisionUnsupported},
		},
		{
			name:     "emulated structured output",
			provider: ProviderAnthropic,
			req:      &GenerateRequest{Model: "claude-sonnet-4", ResponseFormat: schema},
			want:     []WarningCode{WarningCodeStructuredOutputEmulated},
		},
		{
			name:     "unsupported structured output",
			provider: ProviderOpenAI,
			req:      &GenerateRequest{Model: "gpt-3.5-turbo", ResponseFormat: schema},
			want:     []WarningCode{WarningCodeStructuredOutputUnsupported},
		},
		{
			name:     "parameters out of range",
			provider: ProviderAnthropic,
			req:      &GenerateRequest{Model: "claude-sonnet-4", Params: &Params{Temperature: Float(1.5), TopP: Float(1.2)}},
			want:     []WarningCode{WarningCodeTemperatureOutOfRange, WarningCodeTopPOutOfRange},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warnings := engine.Validate(tt.provider, tt.req)
			codes := make([]WarningCode, 0, len(warnings))
			for _, w := range warnings {
				codes = append(codes, w.Code)
			}
			assert.ElementsMatch(t, tt.want, codes)
		})
	}
}

func TestThinkingBudgetWarnings(t *testing.T) {
	registry := NewCapabilityRegistry()
	registry.RegisterProviderCapabilities(ProviderAnthropic, &ProviderCapabilities{
		Provider: ProviderAnthropic,
		Models: map[string]ModelCapability{
			"claude-test": {
				Features: ModelFeatures{Thinking: true},
				Thinking: ThinkingCapability{MinBudget: 3000, MaxBudget: 8000},
			},
		},
	})
	engine := NewValidationEngine(registry)

	low := engine.Validate(ProviderAnthropic, &GenerateRequest{Model: "claude-test", Params: &Params{ThinkingLevel: String("low")}})
	require.Len(t, low, 1)
	assert.Equal(t, WarningCodeThinkingBudgetTooLow, low[0].Code)
	assert.Equal(t, 2000, low[0].Value)

	high := engine.Validate(ProviderAnthropic, &GenerateRequest{Model: "claude-test", Params: &Params{ThinkingLevel: String("high")}})
	require.Len(t, high, 1)
	assert.Equal(t, WarningCodeThinkingBudgetTooHigh, high[0].Code)
	assert.Equal(t, SeverityError, high[0].Severity)

	assert.Empty(t, engine.Validate(ProviderAnthropic, &GenerateRequest{Model: "claude-test", Params: &Params{ThinkingLevel: String("medium")}}))
}

func TestValidationEngineRules(t *testing.T) {
	engine := NewValidationEngine(DefaultCapabilityRegistry())
	req := &GenerateRequest{Model: "gpt-99"}

	require.NotEmpty(t, engine.Validate(ProviderOpenAI, req))
	assert.True(t, engine.RemoveRule("Model Validation"))
	assert.False(t, engine.RemoveRule("Model Validation"))
	assert.Empty(t, engine.Validate(ProviderOpenAI, req))

	assert.Empty(t, NewValidationEngine(nil).Validate(ProviderOpenAI, req))

	var nilEngine *ValidationEngine
	assert.Nil(t, nilEngine.Validate(ProviderOpenAI, req))
}

func TestFilterWarnings(t *testing.T) {
	warnings := []ValidationWarning{
		{Code: WarningCodeModelUnknown, Severity: SeverityInfo},
		{Code: WarningCodeVisionUnsupported, Severity: SeverityWarning},
		{Code: WarningCodeThinkingBudgetTooHigh, Severity: SeverityError},
	}

	assert.Len(t, FilterWarningsBySeverity(warnings, SeverityWarning, SeverityError), 2)
	assert.Empty(t, FilterWarningsBySeverity(warnings))

	byCode := FilterWarningsByCode(warnings, WarningCodeModelUnknown)
	require.Len(t, byCode, 1)
	assert.Equal(t, SeverityInfo, byCode[0].Severity)
}

func TestCustomRule(t *testing.T) {
	engine := NewValidationEngine(nil)
	engine.AddRule(NewRule("No Empty Model", func(provider ProviderID, req *GenerateRequest) []ValidationWarning {
		if req.Model != "" {
			return nil
		}
		return []ValidationWarning{{Code: "MODEL_EMPTY", Category: CategoryModel, Field: "model", Severity: SeverityError, Message: "no model"}}
	}))

	warnings := engine.Validate(ProviderOllama, &GenerateRequest{})
	require.Len(t, warnings, 1)
	assert.Equal(t, "[error] MODEL_EMPTY: no model", warnings[0].String())
	assert.Empty(t, engine.Validate(ProviderOllama, &GenerateRequest{Model: "llama3.2"}))
	assert.True(t, engine.RemoveRule("No Empty Model"))
}

func TestWarningLogFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	w := ValidationWarning{
		Code:     WarningCodeTemperatureOutOfRange,
		Category: CategoryParameter,
		Field:    "temperature",
		Value:    1.5,
		Severity: SeverityWarning,
		Message:  "too hot",
	}
	logger.Warn().EmbedObject(w).Msg(w.Message)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "TEMPERATURE_OUT_OF_RANGE", entry["code"])
	assert.Equal(t, "parameter", entry["category"])
	assert.Equal(t, 1.5, entry["value"])
	assert.Equal(t, "too hot", entry["message"])
}
