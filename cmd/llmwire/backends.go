package main

import (
	"github.com/rs/zerolog"

	"github.com/haowjy/llmwire-go"
	"github.com/haowjy/llmwire-go/providers/anthropic"
	"github.com/haowjy/llmwire-go/providers/lorem"
	"github.com/haowjy/llmwire-go/providers/ollama"
	"github.com/haowjy/llmwire-go/providers/openai"
	"github.com/haowjy/llmwire-go/providers/openrouter"
	"github.com/haowjy/llmwire-go/providers/responses"
)

// backend bundles what the commands need from one provider package.
type backend struct {
	codec        llmwire.Codec
	castInput    func(raw any) ([]llmwire.Message, error)
	fromConfig   func(cfg *llmwire.Config, logger zerolog.Logger, opts ...llmwire.Option) (*llmwire.Generator, error)
	defaultModel string
}

var backends = map[llmwire.ProviderID]backend{
	llmwire.ProviderOpenAI: {
		codec:        openai.NewCodec(),
		castInput:    openai.CastInput,
		fromConfig:   openai.FromConfig,
		defaultModel: "gpt-4o-mini",
	},
	llmwire.ProviderOpenAIResponses: {
		codec:        responses.NewCodec(),
		castInput:    responses.CastInput,
		fromConfig:   responses.FromConfig,
		defaultModel: "gpt-4o-mini",
	},
	llmwire.ProviderAnthropic: {
		codec:        anthropic.NewCodec(),
		castInput:    anthropic.CastInput,
		fromConfig:   anthropic.FromConfig,
		defaultModel: "claude-sonnet-4-5",
	},
	llmwire.ProviderOpenRouter: {
		codec:        openrouter.NewCodec(),
		castInput:    openrouter.CastInput,
		fromConfig:   openrouter.FromConfig,
		defaultModel: "openai/gpt-4o-mini",
	},
	llmwire.ProviderOllama: {
		codec:        ollama.NewCodec(),
		castInput:    ollama.CastInput,
		fromConfig:   ollama.FromConfig,
		defaultModel: "llama3.2",
	},
	llmwire.ProviderLorem: {
		codec:        lorem.NewCodec(),
		castInput:    openai.CastInput,
		fromConfig:   lorem.FromConfig,
		defaultModel: "lorem-fast",
	},
}

// model picks the flag, then the provider config, then the built-in default.
func (b backend) model(flag string, cfg *llmwire.Config, id llmwire.ProviderID) string {
	if flag != "" {
		return flag
	}
	if pc, err := cfg.Provider(id); err == nil && pc.Model != "" {
		return pc.Model
	}
	return b.defaultModel
}
