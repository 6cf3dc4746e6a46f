package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/padawan/pkg/bridge"
	"github.com/ormasoftchile/padawan/pkg/logging"
	"github.com/ormasoftchile/padawan/pkg/repl"
)

var (
	sendCode    string
	sendInputs  []string
	sendOutputs []string
	sendPrelude []string
	sendTimeout time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send one request to a workbench in test mode and print the response",
	Args:  cobra.NoArgs,
	RunE:  runSend,
}

var driveCmd = &cobra.Command{
	Use:   "drive",
	Short: "Interactive console sending each line to a workbench in test mode",
	Args:  cobra.NoArgs,
	RunE:  runDrive,
}

// parseInputs turns repeated name=value flags into request input.
func parseInputs(pairs []string) (map[string]any, error) {
	input := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, err := repl.ParseAssignment(p)
		if err != nil {
			return nil, fmt.Errorf("invalid --input: %w", err)
		}
		input[k] = v
	}
	return input, nil
}

func dial(cmd *cobra.Command) (*bridge.Driver, error) {
	e, err := setup(cmd)
	if err != nil {
		return nil, err
	}
	d, err := bridge.Dial(bridgeConfig(cmd, e), bridge.WithDriverLogger(logging.For(e.logger, "driver")))
	if err != nil {
		return nil, fmt.Errorf("is a workbench running in test mode? %w", err)
	}
	return d, nil
}

func runSend(cmd *cobra.Command, args []string) error {
	if sendCode == "" {
		return fmt.Errorf("--code is required")
	}
	input, err := parseInputs(sendInputs)
	if err != nil {
		return err
	}
	d, err := dial(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), sendTimeout)
	defer cancel()
	resp, err := d.Call(ctx, sendCode, input, sendOutputs, sendPrelude...)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), resp.String())
	return resp.Err()
}

func runDrive(cmd *cobra.Command, args []string) error {
	d, err := dial(cmd)
	if err != nil {
		return err
	}
	defer d.Close()
	return repl.New(d, cmd.OutOrStdout()).Run(cmd.Context())
}

func init() {
	sendCmd.Flags().StringVar(&sendCode, "code", "", "Code to run inside the workbench")
	sendCmd.Flags().StringArrayVar(&sendInputs, "input", nil, "Input variable (name=value, value parsed as YAML), repeatable")
	sendCmd.Flags().StringSliceVar(&sendOutputs, "output", nil, "Variables to read back, comma-separated or repeated")
	sendCmd.Flags().StringArrayVar(&sendPrelude, "prelude", nil, "Code run before --code, repeatable")
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 30*time.Second, "How long to wait for the response")
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(driveCmd)
}
