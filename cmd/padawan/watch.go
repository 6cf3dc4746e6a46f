package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/padawan/pkg/logging"
	"github.com/ormasoftchile/padawan/pkg/watch"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [path...]",
	Short: "Re-check files and directories whenever they change",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	debounce := e.cfg.Watch.Debounce
	if cmd.Flags().Changed("debounce") {
		debounce = watchDebounce
	}
	out := cmd.OutOrStdout()

	w, err := watch.New(e.checker, args, func(r watch.Result) {
		ts := time.Now().Format("15:04:05")
		switch {
		case r.Err != nil:
			fmt.Fprintf(out, "%s  %s %s: %v\n", ts, statusIcon(statusFail), r.Path, r.Err)
		case r.Passed:
			fmt.Fprintf(out, "%s  %s %s\n", ts, statusIcon(statusPass), r.Path)
		default:
			fmt.Fprintf(out, "%s  %s %s\n%s\n", ts, statusIcon(statusFail), r.Path, formatReport(r.Report))
		}
	}, watch.WithDebounce(debounce), watch.WithLogger(logging.For(e.logger, "watch")))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return w.Run(ctx)
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "Quiet time before a changed file is checked")
	rootCmd.AddCommand(watchCmd)
}
