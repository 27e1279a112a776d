package llmwire

import (
	"embed"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed capabilities/*.yaml
var capabilityFiles embed.FS

// Capabilities are model metadata used for warnings, not enforcement.
// Provider APIs remain the source of truth; the catalogue may lag behind
// new model releases. Override it with LoadCapabilitiesFromFile or
// RegisterProviderCapabilities.

// StructuredOutputSupport describes how a provider honors response_format.
type StructuredOutputSupport string

const (
	StructuredOutputNative   StructuredOutputSupport = "native"
	StructuredOutputEmulated StructuredOutputSupport = "emulated"
	StructuredOutputNone     StructuredOutputSupport = "none"
)

// ProviderCapabilities is the catalogue for one provider.
type ProviderCapabilities struct {
	Version     string                     `yaml:"version"`
	LastUpdated string                     `yaml:"last_updated"`
	Provider    ProviderID                 `yaml:"provider"`
	Models      map[string]ModelCapability `yaml:"models"` // keyed by model id prefix
	Constraints ProviderConstraints        `yaml:"constraints"`
}

// ModelCapability describes a model family.
type ModelCapability struct {
	ContextWindow   int                `yaml:"context_window"`
	MaxOutputTokens int                `yaml:"max_output_tokens"`
	Features        ModelFeatures      `yaml:"features"`
	Thinking        ThinkingCapability `yaml:"thinking"`
}

// ModelFeatures indicates which features a model supports
type ModelFeatures struct {
	Vision           bool                    `yaml:"vision"`
	Tools            bool                    `yaml:"tools"`
	Thinking         bool                    `yaml:"thinking"`
	Streaming        bool                    `yaml:"streaming"`
	StructuredOutput StructuredOutputSupport `yaml:"structured_output"`
}

// ThinkingCapability defines thinking budget limits.
type ThinkingCapability struct {
	MinBudget int `yaml:"min_budget"`
	MaxBudget int `yaml:"max_budget"`
}

// ProviderConstraints defines provider-wide parameter limits
type ProviderConstraints struct {
	TemperatureMin float64 `yaml:"temperature_min"`
	TemperatureMax float64 `yaml:"temperature_max"`
	TopPMin        float64 `yaml:"top_p_min"`
	TopPMax        float64 `yaml:"top_p_max"`
}

// CapabilityRegistry manages provider capabilities
type CapabilityRegistry struct {
	capabilities map[ProviderID]*ProviderCapabilities
	mu           sync.RWMutex
}

var (
	capabilityRegistry     *CapabilityRegistry
	capabilityRegistryOnce sync.Once
	capabilityLoadErr      error
)

// NewCapabilityRegistry creates an empty registry.
func NewCapabilityRegistry() *CapabilityRegistry {
	return &CapabilityRegistry{capabilities: make(map[ProviderID]*ProviderCapabilities)}
}

// DefaultCapabilityRegistry returns the registry loaded from the embedded
// catalogue (singleton).
func DefaultCapabilityRegistry() *CapabilityRegistry {
	capabilityRegistryOnce.Do(func() {
		capabilityRegistry = NewCapabilityRegistry()
		capabilityLoadErr = capabilityRegistry.loadEmbedded()
	})
	return capabilityRegistry
}

// EmbeddedCapabilitiesError reports a failure to parse the embedded
// catalogue. The registry stays usable; rules skip unknown providers.
func EmbeddedCapabilitiesError() error {
	DefaultCapabilityRegistry()
	return capabilityLoadErr
}

func (r *CapabilityRegistry) loadEmbedded() error {
	entries, err := capabilityFiles.ReadDir("capabilities")
	if err != nil {
		return fmt.Errorf("read embedded capabilities: %w", err)
	}
	for _, entry := range entries {
		data, err := capabilityFiles.ReadFile(path.Join("capabilities", entry.Name()))
		if err != nil {
			return fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		if err := r.load(data); err != nil {
			return fmt.Errorf("%s: %w", entry.Name(), err)
		}
	}
	return nil
}

func (r *CapabilityRegistry) load(data []byte) error {
	var caps ProviderCapabilities
	if err := yaml.Unmarshal(data, &caps); err != nil {
		return fmt.Errorf("failed to unmarshal capabilities: %w", err)
	}
	if !caps.Provider.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, caps.Provider)
	}
	r.RegisterProviderCapabilities(caps.Provider, &caps)
	return nil
}

// LoadCapabilitiesFromFile loads provider capabilities from a YAML file,
// replacing the catalogue of the provider it names.
func (r *CapabilityRegistry) LoadCapabilitiesFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read capabilities file: %w", err)
	}
	return r.load(data)
}

// RegisterProviderCapabilities programmatically registers provider capabilities.
func (r *CapabilityRegistry) RegisterProviderCapabilities(provider ProviderID, caps *ProviderCapabilities) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capabilities[provider] = caps
}

// GetProviderCapabilities returns capabilities for a provider
func (r *CapabilityRegistry) GetProviderCapabilities(provider ProviderID) (*ProviderCapabilities, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps, ok := r.capabilities[provider]
	if !ok {
		return nil, fmt.Errorf("no capabilities found for provider: %s", provider)
	}
	return caps, nil
}

// GetModelCapability returns the entry whose key is the longest prefix of
// model. OpenRouter models are matched with and without their vendor prefix.
func (r *CapabilityRegistry) GetModelCapability(provider ProviderID, model string) (*ModelCapability, error) {
	caps, err := r.GetProviderCapabilities(provider)
	if err != nil {
		return nil, err
	}

	candidates := []string{model}
	if i := strings.LastIndex(model, "/"); i >= 0 {
		candidates = append(candidates, model[i+1:])
	}

	keys := make([]string, 0, len(caps.Models))
	for key := range caps.Models {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })

	for _, candidate := range candidates {
		for _, key := range keys {
			if strings.HasPrefix(candidate, key) {
				mc := caps.Models[key]
				return &mc, nil
			}
		}
	}
	return nil, fmt.Errorf("model %s not found for provider %s", model, provider)
}

// SupportsModel checks if a provider lists a model
func (r *CapabilityRegistry) SupportsModel(provider ProviderID, model string) bool {
	_, err := r.GetModelCapability(provider, model)
	return err == nil
}

// StructuredOutput returns how provider handles response_format for model.
// Unknown models report native support so no warning is raised.
func (r *CapabilityRegistry) StructuredOutput(provider ProviderID, model string) StructuredOutputSupport {
	mc, err := r.GetModelCapability(provider, model)
	if err != nil || mc.Features.StructuredOutput == "" {
		return StructuredOutputNative
	}
	return mc.Features.StructuredOutput
}

// LoadCapabilitiesFromFile calls the default registry's LoadCapabilitiesFromFile.
func LoadCapabilitiesFromFile(path string) error {
	return DefaultCapabilityRegistry().LoadCapabilitiesFromFile(path)
}

// RegisterProviderCapabilities calls the default registry's RegisterProviderCapabilities.
func RegisterProviderCapabilities(provider ProviderID, caps *ProviderCapabilities) {
	DefaultCapabilityRegistry().RegisterProviderCapabilities(provider, caps)
}
