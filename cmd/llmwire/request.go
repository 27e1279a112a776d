package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/haowjy/llmwire-go"
)

// requestFile is the YAML form of a GenerateRequest. Messages stay loose
// and are cast by the selected provider, so native shapes are accepted.
type requestFile struct {
	Model          string                  `yaml:"model"`
	Instructions   []string                `yaml:"instructions"`
	Messages       []any                   `yaml:"messages"`
	Params         *llmwire.Params         `yaml:"params"`
	Tools          []llmwire.Tool          `yaml:"tools"`
	ToolChoice     *llmwire.ToolChoice     `yaml:"tool_choice"`
	ResponseFormat *llmwire.ResponseFormat `yaml:"response_format"`
	Extensions     map[string]any          `yaml:"extensions"`
}

func readRequestFile(path string) (*requestFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read request %s: %w", path, err)
	}
	var rf requestFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse request %s: %w", path, err)
	}
	return &rf, nil
}

func (rf *requestFile) build(b backend) (*llmwire.GenerateRequest, error) {
	req := &llmwire.GenerateRequest{
		Model:          rf.Model,
		Instructions:   rf.Instructions,
		Params:         rf.Params,
		Tools:          rf.Tools,
		ToolChoice:     rf.ToolChoice,
		ResponseFormat: rf.ResponseFormat,
		Extensions:     rf.Extensions,
	}
	for i, raw := range rf.Messages {
		msgs, err := b.castInput(raw)
		if err != nil {
			return nil, fmt.Errorf("messages[%d]: %w", i, err)
		}
		req.Messages = append(req.Messages, msgs...)
	}
	return req, nil
}
