package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/padawan/pkg/bridge"
	"github.com/ormasoftchile/padawan/pkg/logging"
	"github.com/ormasoftchile/padawan/pkg/loop"
	"github.com/ormasoftchile/padawan/pkg/workbench"
)

var (
	pipeDir  string
	pipeBase string
)

var testModeCmd = &cobra.Command{
	Use:   "testmode [file...]",
	Short: "Run a headless workbench that accepts driver requests over named pipes",
	RunE:  runTestMode,
}

// bridgeConfig applies the --dir and --base flags over the loaded config.
func bridgeConfig(cmd *cobra.Command, e *env) bridge.Config {
	cfg := e.cfg.BridgeConfig()
	if cmd.Flags().Changed("dir") {
		cfg.Dir = pipeDir
	}
	if cmd.Flags().Changed("base") {
		cfg.Base = pipeBase
	}
	return cfg
}

func runTestMode(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}

	wb := workbench.New(e.checker,
		workbench.WithVersion(version),
		workbench.WithLogger(logging.For(e.logger, "workbench")),
	)
	for _, path := range args {
		if err := wb.Open(path); err != nil {
			return err
		}
	}

	br := bridge.New(bridgeConfig(cmd, e), e.interp, wb, bridge.WithLogger(logging.For(e.logger, "bridge")))
	if err := br.CreateChannels(); err != nil {
		return fmt.Errorf("test mode: %w", err)
	}
	defer br.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l := loop.New(0)
	if err := br.Start(ctx, l); err != nil {
		return err
	}
	cfg := br.Config()
	fmt.Fprintf(cmd.OutOrStdout(), "test mode: requests on %s, responses on %s\n", cfg.InPath(), cfg.OutPath())

	// The bridge is closed by the deferred call once the loop has stopped,
	// so teardown never races a poll.
	return l.Run(ctx)
}

func init() {
	for _, c := range []*cobra.Command{testModeCmd, sendCmd, driveCmd} {
		c.Flags().StringVar(&pipeDir, "dir", "", "Directory holding the pipes (default: config, then the system temp dir)")
		c.Flags().StringVar(&pipeBase, "base", bridge.DefaultBase, "Pipe name stem")
	}
	rootCmd.AddCommand(testModeCmd)
}
