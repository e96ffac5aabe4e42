// ABOUTME: vault subcommands for managing secrets in a namespace
// ABOUTME: list, get, create KEY=VALUE... and delete against the secret vault API

package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/2389/cortex-console/internal/api"
)

func newVaultCmd(a *app) *cobra.Command {
	var namespace string

	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Manage secrets stored in the vault",
	}
	cmd.PersistentFlags().StringVarP(&namespace, "namespace", "n", "", "vault namespace (default from config)")

	ns := func() string {
		if namespace != "" {
			return namespace
		}
		return a.cfg.Vault.Namespace
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List secret keys in the namespace",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				keys, err := a.vaultClient().ListSecrets(cmd.Context(), ns())
				if err != nil {
					return fmt.Errorf("listing secrets: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(keys) == 0 {
					dim.Fprintln(out, "no secrets")
					return nil
				}
				for _, k := range keys {
					fmt.Fprintln(out, k)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "get KEY",
			Short: "Print one secret value",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				value, err := a.vaultClient().GetSecret(cmd.Context(), ns(), args[0])
				if api.IsNotFound(err) {
					return fmt.Errorf("secret %q not found in namespace %q", args[0], ns())
				}
				if err != nil {
					return fmt.Errorf("getting secret: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), value)
				return nil
			},
		},
		&cobra.Command{
			Use:   "create KEY=VALUE...",
			Short: "Create or overwrite secrets",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				secrets, err := parseAssignments(args)
				if err != nil {
					return err
				}
				details, err := a.vaultClient().CreateSecrets(cmd.Context(), ns(), secrets)
				if err != nil {
					return fmt.Errorf("creating secrets: %w", err)
				}
				for _, k := range sortedKeys(details) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", k, details[k])
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete KEY",
			Short: "Delete a secret",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.vaultClient().DeleteSecret(cmd.Context(), ns(), args[0]); err != nil {
					return fmt.Errorf("deleting secret: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			},
		},
	)
	return cmd
}

func (a *app) vaultClient() *api.Client {
	return api.New(a.cfg.Vault.URL, api.WithToken(a.cfg.Vault.Token), api.WithLogger(a.logger))
}

func (a *app) apiClient() *api.Client {
	return api.New(a.cfg.Backend.APIURL, api.WithToken(a.cfg.Backend.Token), api.WithLogger(a.logger))
}

// parseAssignments turns KEY=VALUE arguments into a map. Values may contain '='.
func parseAssignments(args []string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid assignment %q, want KEY=VALUE", arg)
		}
		out[k] = v
	}
	return out, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
