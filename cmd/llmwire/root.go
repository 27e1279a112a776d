package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/haowjy/llmwire-go"
)

const (
	AppName = "llmwire"
	Version = "0.1.0"
)

var (
	configPath string
	providerID string
	verbose    bool
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           AppName,
	Short:         "Inspect and exercise LLM provider wire formats",
	Long:          `llmwire renders canonical requests into provider payloads and runs chat turns against OpenAI, Anthropic, OpenRouter, Ollama or the offline lorem mock.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVarP(&providerID, "provider", "p", string(llmwire.ProviderLorem), "provider id")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose errors and debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(payloadCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(providersCmd)
}

// setup loads the config and builds the logger. Flags override the file.
func setup() (*llmwire.Config, zerolog.Logger, error) {
	cfg, err := llmwire.LoadConfig(configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if verbose {
		cfg.Verbose = llmwire.Bool(true)
		if logLevel == "" {
			logLevel = "debug"
		}
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	level := cfg.LogLevel
	if level == "" {
		level = "warn"
	}
	return cfg, llmwire.NewLogger(level, os.Stderr, true), nil
}

func selectedBackend() (backend, error) {
	id := llmwire.ProviderID(providerID)
	b, ok := backends[id]
	if !ok {
		return backend{}, fmt.Errorf("%w: %q", llmwire.ErrUnknownProvider, providerID)
	}
	return b, nil
}
