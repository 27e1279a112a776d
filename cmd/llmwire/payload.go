package main

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	payloadFile   string
	payloadStream bool
)

var payloadCmd = &cobra.Command{
	Use:   "payload",
	Short: "Print the minimal wire payload for a request file",
	Long: `Casts, validates and serializes a YAML request for the selected provider
and prints the JSON body that would be sent. Fields equal to the provider's
documented defaults are omitted.`,
	RunE: runPayload,
}

func init() {
	payloadCmd.Flags().StringVarP(&payloadFile, "file", "f", "", "YAML request file")
	payloadCmd.Flags().BoolVar(&payloadStream, "stream", false, "build the streaming variant")
	_ = payloadCmd.MarkFlagRequired("file")
}

func runPayload(cmd *cobra.Command, _ []string) error {
	cfg, _, err := setup()
	if err != nil {
		return err
	}
	b, err := selectedBackend()
	if err != nil {
		return err
	}

	rf, err := readRequestFile(payloadFile)
	if err != nil {
		return err
	}
	req, err := rf.build(b)
	if err != nil {
		return err
	}
	req.Model = b.model(req.Model, cfg, b.codec.Provider())

	payload, err := b.codec.BuildPayload(req, payloadStream)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	color.New(color.FgCyan).Fprintf(cmd.ErrOrStderr(), "%s payload (%d fields)\n", b.codec.Provider(), len(payload))
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
