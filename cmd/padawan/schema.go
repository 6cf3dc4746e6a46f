package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/padawan/pkg/bridge"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema of test-mode messages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := bridge.MessageSchema()
		if err != nil {
			return fmt.Errorf("generate schema: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
