package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/padawan/pkg/checker"
)

var errCheckFailed = errors.New("check failed")

var checkCmd = &cobra.Command{
	Use:   "check [file...]",
	Short: "Check test documents (.jedi, .padawan) and fragment scripts (.star, .py)",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	failed := 0
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(out, "%s %s: %v\n", statusIcon(statusFail), path, err)
			failed++
			continue
		}
		if checker.Classify(path) == checker.KindUnchecked {
			fmt.Fprintf(out, "%s %s (not checked)\n", statusIcon(statusSkip), path)
			continue
		}
		passed, report := e.checker.Check(path, string(data))
		if passed {
			fmt.Fprintf(out, "%s %s\n", statusIcon(statusPass), path)
			continue
		}
		failed++
		fmt.Fprintf(out, "%s %s\n%s\n", statusIcon(statusFail), path, formatReport(report))
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d file(s)", errCheckFailed, failed, len(args))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
