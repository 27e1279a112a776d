package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/haowjy/llmwire-go"
)

var (
	chatModel  string
	chatSystem string
	chatFile   string
	chatStream bool
	chatJSON   bool
)

var chatCmd = &cobra.Command{
	Use:   "chat [prompt...]",
	Short: "Run one chat turn",
	Long: `Sends the prompt (or the messages of --file, followed by the prompt) to the
selected provider and prints the reply, the finish reason and token usage.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatModel, "model", "m", "", "model id (default from config or provider)")
	chatCmd.Flags().StringVarP(&chatSystem, "system", "s", "", "system instructions")
	chatCmd.Flags().StringVarP(&chatFile, "file", "f", "", "YAML request file")
	chatCmd.Flags().BoolVar(&chatStream, "stream", false, "stream the reply")
	chatCmd.Flags().BoolVar(&chatJSON, "json", false, "request a JSON object reply")
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	b, err := selectedBackend()
	if err != nil {
		return err
	}

	req := &llmwire.GenerateRequest{}
	if chatFile != "" {
		rf, err := readRequestFile(chatFile)
		if err != nil {
			return err
		}
		if req, err = rf.build(b); err != nil {
			return err
		}
	}
	if chatSystem != "" {
		req.Instructions = append(req.Instructions, chatSystem)
	}
	if prompt := strings.TrimSpace(strings.Join(args, " ")); prompt != "" {
		req.Messages = append(req.Messages, llmwire.NewTextMessage(llmwire.RoleUser, prompt))
	}
	if chatJSON {
		req.ResponseFormat = &llmwire.ResponseFormat{Type: llmwire.FormatJSONObject}
	}
	req.Model = b.model(firstNonEmpty(chatModel, req.Model), cfg, b.codec.Provider())

	provider, err := b.fromConfig(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	var resp *llmwire.Response
	if chatStream {
		resp, err = provider.Stream(ctx, req, func(_ *llmwire.Message, delta string, final bool) {
			if final {
				fmt.Fprintln(out)
				return
			}
			fmt.Fprint(out, delta)
		})
	} else {
		resp, err = provider.Generate(ctx, req)
	}
	if err != nil {
		return err
	}

	if !chatStream {
		printMessage(cmd, resp.Message)
	}
	printSummary(cmd, resp)
	return nil
}

func printMessage(cmd *cobra.Command, msg *llmwire.Message) {
	out := cmd.OutOrStdout()
	for _, block := range msg.Content {
		if tb, ok := block.(llmwire.ThinkingBlock); ok {
			color.New(color.Faint).Fprintln(out, tb.Thinking)
		}
	}
	if msg.Parsed != nil {
		data, _ := json.MarshalIndent(msg.Parsed, "", "  ")
		fmt.Fprintln(out, string(data))
	} else if text := msg.Text(); text != "" {
		fmt.Fprintln(out, text)
	}
}

func printSummary(cmd *cobra.Command, resp *llmwire.Response) {
	w := cmd.ErrOrStderr()
	for _, call := range resp.ToolCalls() {
		color.New(color.FgYellow).Fprintf(w, "tool call %s %s(%s)\n", call.ID, call.Name, call.Arguments)
	}
	summary := color.New(color.FgCyan)
	summary.Fprintf(w, "%-15s: %s\n", "Model", resp.Model)
	summary.Fprintf(w, "%-15s: %s\n", "Finish", resp.FinishReason)
	if u := resp.Usage; u != nil {
		summary.Fprintf(w, "%-15s: %d in / %d out / %d total\n", "Tokens", u.InputTokens, u.OutputTokens, u.TotalTokens)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
