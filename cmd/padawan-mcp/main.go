// Package main provides the padawan-mcp binary, an MCP server exposing the
// structure checker to AI agents.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ormasoftchile/padawan/pkg/checker"
	"github.com/ormasoftchile/padawan/pkg/config"
	pmcp "github.com/ormasoftchile/padawan/pkg/ecosystem/mcp"
	"github.com/ormasoftchile/padawan/pkg/logging"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "Config file layered over user and project config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	// stdout carries the protocol; logs go to stderr.
	logger := logging.Init(cfg.Level(), os.Stderr)
	interp, err := cfg.Interpreter(logging.For(logger, "fragment"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	c := checker.New(checker.WithInterpreter(interp), checker.WithLogger(logging.For(logger, "checker")))

	s := pmcp.NewServer(version, c)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
