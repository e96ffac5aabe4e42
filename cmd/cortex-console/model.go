// ABOUTME: model subcommands for the backend's LLM provider preference
// ABOUTME: get prints the current provider, set switches between Anthropic and OpenAI

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/2389/cortex-console/internal/api"
)

func newModelCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Show or change the backend's model provider",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Print the current provider",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				model, err := a.apiClient().ModelPreference(cmd.Context())
				if err != nil {
					return fmt.Errorf("getting model preference: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), model)
				return nil
			},
		},
		&cobra.Command{
			Use:       "set PROVIDER",
			Short:     "Switch provider (Anthropic or OpenAI)",
			Args:      cobra.ExactArgs(1),
			ValidArgs: []string{api.ModelAnthropic, api.ModelOpenAI},
			RunE: func(cmd *cobra.Command, args []string) error {
				model := canonicalModel(args[0])
				if err := a.apiClient().SetModelPreference(cmd.Context(), model); err != nil {
					return fmt.Errorf("setting model preference: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "model set to %s\n", model)
				return nil
			},
		},
	)
	return cmd
}

// canonicalModel accepts provider names in any case.
func canonicalModel(s string) string {
	for _, m := range []string{api.ModelAnthropic, api.ModelOpenAI} {
		if strings.EqualFold(s, m) {
			return m
		}
	}
	return s
}
