// ABOUTME: init subcommand: interactive setup that writes a console config file
// ABOUTME: Prompts for endpoints, vault namespace, reconnect policy and logging

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/2389/cortex-console/internal/config"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactively write a config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.InOrStdin(), cmd.OutOrStdout(), a.configPath)
		},
	}
}

func runInit(in io.Reader, out io.Writer, path string) error {
	reader := bufio.NewReader(in)
	ask := func(question, defaultVal string) string {
		return prompt(reader, out, question, defaultVal)
	}
	defaults := config.Default()

	heading.Fprintln(out, "cortex-console configuration setup")
	fmt.Fprintln(out, "==================================")
	fmt.Fprintln(out)

	if path == "" {
		path = config.DefaultPath()
	}
	outputFile := ask("Config file path", path)

	if _, err := os.Stat(outputFile); err == nil {
		if !yes(ask("File exists. Overwrite?", "no")) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	fmt.Fprintln(out, "\n--- Backend ---")
	wsURL := ask("Chat websocket URL", defaults.Backend.WSURL)
	apiURL := ask("API URL", defaults.Backend.APIURL)
	token := ask("Bearer token (use ${VAR} to read from the environment)", "")

	fmt.Fprintln(out, "\n--- Vault ---")
	vaultURL := ask("Vault URL (empty to use the API URL)", "")
	namespace := ask("Default namespace", "")

	fmt.Fprintln(out, "\n--- Connection ---")
	maxAttempts := ask("Reconnect attempts", fmt.Sprint(defaults.Connection.MaxAttempts))
	retryInterval := ask("Retry interval", defaults.Connection.RetryInterval.String())

	fmt.Fprintln(out, "\n--- Logging ---")
	logLevel := ask("Log level (debug/info/warn/error)", defaults.Logging.Level)
	logFormat := ask("Log format (text/json)", defaults.Logging.Format)

	var cfg strings.Builder
	cfg.WriteString("# cortex-console configuration\n")
	cfg.WriteString("# Generated by cortex-console init\n\n")

	cfg.WriteString("backend:\n")
	cfg.WriteString(fmt.Sprintf("  ws_url: %q\n", wsURL))
	cfg.WriteString(fmt.Sprintf("  api_url: %q\n", apiURL))
	if token != "" {
		cfg.WriteString(fmt.Sprintf("  token: %q\n", token))
	}
	cfg.WriteString("\n")

	if vaultURL != "" || namespace != "" {
		cfg.WriteString("vault:\n")
		if vaultURL != "" {
			cfg.WriteString(fmt.Sprintf("  url: %q\n", vaultURL))
		}
		if namespace != "" {
			cfg.WriteString(fmt.Sprintf("  namespace: %q\n", namespace))
		}
		cfg.WriteString("\n")
	}

	cfg.WriteString("connection:\n")
	cfg.WriteString(fmt.Sprintf("  max_attempts: %s\n", maxAttempts))
	cfg.WriteString(fmt.Sprintf("  retry_interval: %q\n", retryInterval))
	cfg.WriteString(fmt.Sprintf("  handshake_timeout: %q\n", defaults.Connection.HandshakeTimeout.String()))
	cfg.WriteString("\n")

	cfg.WriteString("preview:\n")
	cfg.WriteString(fmt.Sprintf("  delay: %q\n", defaults.Preview.Delay.String()))
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n", logFormat))
	cfg.WriteString("\n")

	cfg.WriteString("metrics:\n")
	cfg.WriteString("  enabled: false\n")
	cfg.WriteString(fmt.Sprintf("  addr: %q\n", defaults.Metrics.Addr))
	cfg.WriteString(fmt.Sprintf("  path: %q\n", defaults.Metrics.Path))

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	// May hold a token.
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	// Catch typos before the first chat does.
	if _, err := config.Load(outputFile); err != nil {
		warn.Fprintf(out, "\nConfig written to %s but it does not load: %v\n", outputFile, err)
		return nil
	}

	fmt.Fprintf(out, "\nConfig written to %s\n", outputFile)
	fmt.Fprintln(out, "\nTo start chatting:")
	fmt.Fprintln(out, "  cortex-console chat")
	return nil
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		// On EOF or error, return default
		fmt.Fprintln(out)
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func yes(s string) bool {
	s = strings.ToLower(s)
	return s == "y" || s == "yes"
}
