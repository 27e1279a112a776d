package llmwire

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := &Config{
		Providers: map[ProviderID]ProviderConfig{
			ProviderAnthropic: {APIKey: "from-file"},
		},
	}
	err := cfg.applyEnv(envLookup(map[string]string{
		EnvLogLevel:          "debug",
		EnvMaxRetries:        "5",
		"OPENAI_API_KEY":     "sk-env",
		"ANTHROPIC_API_KEY":  "sk-ant-env",
		"OPENROUTER_API_KEY": "sk-or",
		"OLLAMA_HOST":        "http://gpu-box:11434",
	}))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5, *cfg.MaxRetries)
	assert.Equal(t, "sk-env", cfg.Providers[ProviderOpenAI].APIKey)
	assert.Equal(t, "sk-env", cfg.Providers[ProviderOpenAIResponses].APIKey)
	assert.Equal(t, "from-file", cfg.Providers[ProviderAnthropic].APIKey, "file values win over the environment")
	assert.Equal(t, "sk-or", cfg.Providers[ProviderOpenRouter].APIKey)
	assert.Equal(t, "http://gpu-box:11434", cfg.Providers[ProviderOllama].BaseURL)
}

func TestApplyEnvRejectsBadRetries(t *testing.T) {
	for _, v := range []string{"0", "-2", "three"} {
		err := (&Config{}).applyEnv(envLookup(map[string]string{EnvMaxRetries: v}))
		assert.True(t, IsInvalidRequest(err), v)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "llmwire.yaml")
	data := `
verbose: true
max_retries: 2
params:
  temperature: 0.5
  max_tokens: 1000
providers:
  anthropic:
    model: claude-sonnet-4-5
    verbose: false
    params:
      max_tokens: 4000
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	t.Setenv(EnvMaxRetries, "")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.True(t, *cfg.Verbose)
	assert.Equal(t, 2, *cfg.MaxRetries)
	assert.Equal(t, 0.5, *cfg.Params.Temperature)

	pc, err := cfg.Provider(ProviderAnthropic)
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-5", pc.Model)
	assert.False(t, *pc.Verbose)
	assert.Equal(t, 2, *pc.MaxRetries, "unset provider fields inherit the global value")
	assert.Equal(t, 4000, *pc.Params.MaxTokens)

	openai, err := cfg.Provider(ProviderOpenAI)
	require.NoError(t, err)
	assert.True(t, *openai.Verbose)
	assert.Equal(t, 1000, *openai.Params.MaxTokens)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("providers: [1, 2"), 0o600))
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, "parse config")
}

func TestConfigProviderWithoutProviders(t *testing.T) {
	cfg := &Config{MaxRetries: Int(7)}
	pc, err := cfg.Provider(ProviderLorem)
	require.NoError(t, err)
	assert.Equal(t, 7, *pc.MaxRetries)
}

func TestLookup(t *testing.T) {
	v, ok := Lookup[int](nil, Int(2), Int(3))
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	v, ok = Lookup[int](nil, nil)
	assert.False(t, ok)
	assert.Zero(t, v)
}

func TestResolveVerbosePrecedence(t *testing.T) {
	tests := []struct {
		name                    string
		env                     string
		instance, class, global *bool
		want                    bool
	}{
		{"nothing set", "", nil, nil, nil, false},
		{"env only", "1", nil, nil, nil, true},
		{"global over env", "true", nil, nil, Bool(false), false},
		{"class over global", "", nil, Bool(true), Bool(false), true},
		{"instance over class", "yes", Bool(false), Bool(true), Bool(true), false},
		{"unparsable env", "maybe", nil, nil, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvVerbose, tt.env)
			assert.Equal(t, tt.want, ResolveVerbose(tt.instance, tt.class, tt.global))
		})
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("LLMWIRE_TEST_FLAG", "off")
	assert.Equal(t, Bool(false), EnvBool("LLMWIRE_TEST_FLAG"))
	assert.Nil(t, EnvBool("LLMWIRE_TEST_UNSET_FLAG"))
}
