// ABOUTME: Entry point for cortex-console, a terminal client for the cortex agent backend
// ABOUTME: Wires config, logging and the chat, vault, mcp, model and init commands

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/2389/cortex-console/internal/config"
)

// Version is set by goreleaser at build time.
var version = "dev"

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *slog.Logger
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "cortex-console",
		Short:         "Chat with the cortex agent backend and manage its secrets and tool servers",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "init" {
				a.logger = setupLogger(config.LoggingConfig{Level: "info"}, a.verbose)
				return nil
			}
			return a.load()
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default $CORTEX_CONFIG or $XDG_CONFIG_HOME/cortex/console.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newChatCmd(a),
		newVaultCmd(a),
		newMCPCmd(a),
		newModelCmd(a),
		newInitCmd(a),
	)
	return root
}

// load reads the config file, falling back to defaults when none exists.
func (a *app) load() error {
	path := config.Resolve(a.configPath)
	if path == "" {
		a.cfg = config.Default()
	} else {
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		a.cfg = cfg
	}

	a.logger = setupLogger(a.cfg.Logging, a.verbose)
	slog.SetDefault(a.logger)
	if path != "" {
		a.logger.Debug("config loaded", "path", path)
	}
	return nil
}
