package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/haowjy/llmwire-go"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List providers and whether they can be built from the config",
	RunE:  runProviders,
}

func runProviders(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	registry := llmwire.NewRegistry()
	failures := map[llmwire.ProviderID]error{}
	for id, b := range backends {
		provider, err := b.fromConfig(cfg, logger)
		if err != nil {
			failures[id] = err
			continue
		}
		if err := registry.Register(provider); err != nil {
			failures[id] = err
		}
	}

	out := cmd.OutOrStdout()
	color.New(color.FgBlue).Fprintf(out, "Providers for %s %s:\n", AppName, Version)
	for _, id := range registry.IDs() {
		fmt.Fprintf(out, "  %s %-17s %s\n", color.GreenString("ok"), id, backends[id].model("", cfg, id))
	}
	for id, err := range failures {
		fmt.Fprintf(out, "  %s %-17s %v\n", color.RedString("--"), id, err)
	}
	return nil
}
