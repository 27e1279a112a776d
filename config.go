package llmwire

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read by LoadConfig.
const (
	EnvVerbose    = "LLMWIRE_VERBOSE"
	EnvLogLevel   = "LLMWIRE_LOG_LEVEL"
	EnvMaxRetries = "LLMWIRE_MAX_RETRIES"
)

// providerKeyEnv maps providers to their conventional credential variables.
var providerKeyEnv = map[ProviderID]string{
	ProviderOpenAI:          "OPENAI_API_KEY",
	ProviderOpenAIResponses: "OPENAI_API_KEY",
	ProviderAnthropic:       "ANTHROPIC_API_KEY",
	ProviderOpenRouter:      "OPENROUTER_API_KEY",
}

// ProviderConfig holds per-provider settings. Unset fields inherit from
// the global Config.
type ProviderConfig struct {
	APIKey     string  `yaml:"api_key,omitempty"`
	BaseURL    string  `yaml:"base_url,omitempty"`
	Model      string  `yaml:"model,omitempty"`
	Verbose    *bool   `yaml:"verbose,omitempty"`
	MaxRetries *int    `yaml:"max_retries,omitempty"`
	Params     *Params `yaml:"params,omitempty"`
}

// Config is the explicit configuration threaded through constructors.
type Config struct {
	Verbose    *bool                         `yaml:"verbose,omitempty"`
	LogLevel   string                        `yaml:"log_level,omitempty"`
	MaxRetries *int                          `yaml:"max_retries,omitempty"`
	Params     *Params                       `yaml:"params,omitempty"`
	Providers  map[ProviderID]ProviderConfig `yaml:"providers,omitempty"`
}

// LoadConfig reads a YAML file (optional; "" skips it), loads a .env file
// from the working directory when present, and applies environment
// overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup(EnvMaxRetries); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return &ValidationError{Field: EnvMaxRetries, Value: v, Reason: "must be a positive integer"}
		}
		c.MaxRetries = &n
	}

	if c.Providers == nil {
		c.Providers = make(map[ProviderID]ProviderConfig)
	}
	for id, env := range providerKeyEnv {
		pc := c.Providers[id]
		if pc.APIKey == "" {
			if v, ok := lookup(env); ok {
				pc.APIKey = v
				c.Providers[id] = pc
			}
		}
	}
	if v, ok := lookup("OLLAMA_HOST"); ok && v != "" {
		pc := c.Providers[ProviderOllama]
		if pc.BaseURL == "" {
			pc.BaseURL = v
			c.Providers[ProviderOllama] = pc
		}
	}
	return nil
}

// Provider returns the effective config for id: provider settings merged
// over the global ones.
func (c *Config) Provider(id ProviderID) (ProviderConfig, error) {
	effective := ProviderConfig{
		Verbose:    c.Verbose,
		MaxRetries: c.MaxRetries,
		Params:     c.Params,
	}
	if c.Providers == nil {
		return effective, nil
	}
	if err := mergo.Merge(&effective, c.Providers[id], mergo.WithOverride, mergo.WithoutDereference); err != nil {
		return ProviderConfig{}, fmt.Errorf("merge %s config: %w", id, err)
	}
	return effective, nil
}

// Lookup returns the first set value among layers, ordered from highest to
// lowest priority.
func Lookup[T any](layers ...*T) (T, bool) {
	for _, layer := range layers {
		if layer != nil {
			return *layer, true
		}
	}
	var zero T
	return zero, false
}

// EnvBool reads a boolean environment variable; unset or unparsable means nil.
func EnvBool(key string) *bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return Bool(true)
	case "0", "false", "no", "off":
		return Bool(false)
	default:
		return nil
	}
}

// ResolveVerbose applies the verbosity precedence:
// instance > provider (class) > global > LLMWIRE_VERBOSE.
func ResolveVerbose(instance, class, global *bool) bool {
	v, _ := Lookup(instance, class, global, EnvBool(EnvVerbose))
	return v
}
