package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/padawan/pkg/checker"
	"github.com/ormasoftchile/padawan/pkg/config"
	"github.com/ormasoftchile/padawan/pkg/fragment"
	"github.com/ormasoftchile/padawan/pkg/logging"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var (
	configPath string
	logLevel   string
	dialect    string
)

var rootCmd = &cobra.Command{
	Use:           "padawan",
	Short:         "Test document checker and test-mode workbench",
	Long:          "padawan checks test scenario documents and fragment scripts, and serves a scriptable workbench over named pipes for automated GUI tests.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// env is what every command builds from flags and config files.
type env struct {
	cfg     config.Config
	logger  *slog.Logger
	interp  fragment.Interpreter
	checker *checker.Checker
}

// setup loads configuration, applies flag overrides and wires the shared
// components. Flags win over every config file.
func setup(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if cmd.Flags().Changed("dialect") {
		cfg.Dialect = dialect
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.Init(cfg.Level(), cmd.ErrOrStderr())
	interp, err := cfg.Interpreter(logging.For(logger, "fragment"))
	if err != nil {
		return nil, err
	}
	c := checker.New(
		checker.WithInterpreter(interp),
		checker.WithLogger(logging.For(logger, "checker")),
	)
	logger.Debug("configured", "sources", cfg.Sources, "dialect", interp.Dialect())
	return &env{cfg: cfg, logger: logger, interp: interp, checker: c}, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "padawan %s (build: %s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file layered over user and project config")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&dialect, "dialect", fragment.DialectStarlark, "Fragment dialect: starlark or expr")

	rootCmd.AddCommand(versionCmd)
}
