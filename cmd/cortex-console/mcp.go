// ABOUTME: mcp subcommands for the backend's tool server registry
// ABOUTME: list, get, enable, disable, add and remove stdio MCP servers

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/2389/cortex-console/internal/api"
)

func newMCPCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Manage MCP tool servers on the backend",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List configured servers",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				servers, err := a.apiClient().ListServers(cmd.Context())
				if err != nil {
					return fmt.Errorf("listing servers: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(servers) == 0 {
					dim.Fprintln(out, "no servers")
					return nil
				}
				for _, s := range servers {
					state := "enabled"
					c := heading
					if !s.Enabled() {
						state = "disabled"
						c = dim
					}
					c.Fprintf(out, "%-20s", s.Name)
					fmt.Fprintf(out, " %-9s %s\n", state, s.Description)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "get NAME",
			Short: "Show one server",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := a.apiClient().GetServer(cmd.Context(), args[0])
				if api.IsNotFound(err) {
					return fmt.Errorf("server %q not found", args[0])
				}
				if err != nil {
					return fmt.Errorf("getting server: %w", err)
				}
				printServer(cmd, s)
				return nil
			},
		},
		toggleCmd(a, "enable", true),
		toggleCmd(a, "disable", false),
		newMCPAddCmd(a),
		&cobra.Command{
			Use:   "remove NAME",
			Short: "Remove a server",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.apiClient().RemoveServer(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("removing server: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
				return nil
			},
		},
	)
	return cmd
}

func toggleCmd(a *app, verb string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " NAME",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " a server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.apiClient().SetServerEnabled(cmd.Context(), args[0], enabled); err != nil {
				return fmt.Errorf("%s server: %w", verb, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%sd %s\n", verb, args[0])
			return nil
		},
	}
}

func newMCPAddCmd(a *app) *cobra.Command {
	var (
		command     string
		args        []string
		env         []string
		description string
		disabled    bool
	)

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Register a stdio server",
		Example: `  cortex-console mcp add github --command npx --arg -y --arg @modelcontextprotocol/server-github \
    --env GITHUB_TOKEN=ghp_xxx --description "GitHub tools"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, pos []string) error {
			vars, err := parseAssignments(env)
			if err != nil {
				return err
			}
			server := api.MCPServer{
				Name:        pos[0],
				Command:     command,
				Args:        args,
				Description: description,
				Status:      api.ServerEnabled,
			}
			if len(vars) > 0 {
				server.Env = vars
			}
			if disabled {
				server.Status = api.ServerDisabled
			}
			if err := a.apiClient().AddServer(cmd.Context(), server); err != nil {
				return fmt.Errorf("adding server: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", server.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&command, "command", "", "executable to launch")
	cmd.Flags().StringArrayVar(&args, "arg", nil, "argument passed to the command (repeatable)")
	cmd.Flags().StringArrayVar(&env, "env", nil, "KEY=VALUE environment variable (repeatable)")
	cmd.Flags().StringVar(&description, "description", "", "human readable description")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "register without enabling")
	_ = cmd.MarkFlagRequired("command")
	return cmd
}

func printServer(cmd *cobra.Command, s api.MCPServer) {
	out := cmd.OutOrStdout()
	heading.Fprintln(out, s.Name)
	status := s.Status
	if status == "" {
		status = api.ServerEnabled
	}
	fmt.Fprintf(out, "  status:      %s\n", status)
	fmt.Fprintf(out, "  command:     %s %s\n", s.Command, strings.Join(s.Args, " "))
	if s.Description != "" {
		fmt.Fprintf(out, "  description: %s\n", s.Description)
	}
	for _, k := range sortedKeys(s.Env) {
		// Values are usually credentials.
		fmt.Fprintf(out, "  env:         %s=***\n", k)
	}
}
