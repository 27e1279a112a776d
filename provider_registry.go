package llmwire

import (
	"fmt"
	"sort"
	"sync"
)

// ProviderID represents a unique provider identifier.
// Using a typed constant prevents typos and provides compile-time safety.
type ProviderID string

// Known provider identifiers
const (
	// ProviderOpenAI is OpenAI Chat Completions
	ProviderOpenAI ProviderID = "openai"

	// ProviderOpenAIResponses is the OpenAI Responses API
	ProviderOpenAIResponses ProviderID = "openai_responses"

	// ProviderAnthropic is Anthropic Messages
	ProviderAnthropic ProviderID = "anthropic"

	// ProviderOpenRouter is OpenRouter's OpenAI-compatible API
	ProviderOpenRouter ProviderID = "openrouter"

	// ProviderOllama is a local Ollama server
	ProviderOllama ProviderID = "ollama"

	// ProviderLorem is the offline mock provider
	ProviderLorem ProviderID = "lorem"
)

// String returns the string representation of the provider ID
func (p ProviderID) String() string {
	return string(p)
}

// IsValid returns true if the provider ID is a known provider
func (p ProviderID) IsValid() bool {
	switch p {
	case ProviderOpenAI, ProviderOpenAIResponses, ProviderAnthropic, ProviderOpenRouter, ProviderOllama, ProviderLorem:
		return true
	default:
		return false
	}
}

// Registry selects among registered providers by name.
type Registry struct {
	providers map[ProviderID]Provider
	mu        sync.RWMutex
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[ProviderID]Provider)}
}

// DefaultRegistry returns the process-wide registry (singleton).
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// Register adds a provider. Registering the same id twice is an error.
func (r *Registry) Register(p Provider) error {
	id := p.Name()
	if !id.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[id]; exists {
		return fmt.Errorf("provider %q already registered", id)
	}
	r.providers[id] = p
	return nil
}

// Replace registers p, overwriting any provider with the same id.
func (r *Registry) Replace(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns the provider registered under id.
func (r *Registry) Get(id ProviderID) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, id)
	}
	return p, nil
}

// MustGet is Get that panics on a missing provider.
func (r *Registry) MustGet(id ProviderID) Provider {
	p, err := r.Get(id)
	if err != nil {
		panic(err)
	}
	return p
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []ProviderID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]ProviderID, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
