package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentry-ai/agentry/config"
	"github.com/agentry-ai/agentry/workspace"
)

var (
	wsFile        string
	wsFilter      string
	wsDryRun      bool
	wsAutoApprove bool
)

var wsCmd = &cobra.Command{
	Use:   "ws",
	Short: "Manage workspace resources",
	Long: `Manage the docker resources declared in workspace.yaml.

Resources are applied in dependency order and torn down in reverse.
Operations can be narrowed with --filter ENV:GROUP:NAME where empty
segments match everything, e.g. ":db:" targets the db group.`,
}

func init() {
	wsCmd.PersistentFlags().StringVarP(&wsFile, "file", "f", "", "Workspace file (default from config, normally workspace.yaml)")
	wsCmd.PersistentFlags().StringVar(&wsFilter, "filter", "", "Resource filter in ENV:GROUP:NAME form")
	wsCmd.PersistentFlags().BoolVar(&wsDryRun, "dry-run", false, "Print the plan without applying it")
	wsCmd.PersistentFlags().BoolVarP(&wsAutoApprove, "yes", "y", false, "Skip the confirmation prompt")

	wsCmd.AddCommand(
		wsVerbCommand("up", "Create and start workspace resources"),
		wsVerbCommand("down", "Stop and remove workspace resources"),
		wsVerbCommand("patch", "Recreate workspace resources to pick up changes"),
		wsVerbCommand("restart", "Restart workspace resources"),
		wsVerbCommand("delete", "Tear down the entire workspace"),
		wsVerbCommand("config", "Print the resolved workspace configuration"),
		wsVerbCommand("status", "Show the status of workspace resources"),
	)
}

func wsVerbCommand(verb, short string) *cobra.Command {
	return &cobra.Command{
		Use:   verb,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkspaceVerb(cmd, verb)
		},
	}
}

func runWorkspaceVerb(cmd *cobra.Command, verb string) error {
	appCfg, err := config.LoadConfig(config.GetConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	file := wsFile
	if file == "" {
		file = appCfg.Workspace.File
	}
	wsCfg, err := workspace.Load(config.ExpandPath(file))
	if err != nil {
		return err
	}

	filter, err := workspace.ParseFilter(wsFilter)
	if err != nil {
		return err
	}
	opts := workspace.Options{
		Filter:      filter,
		DryRun:      wsDryRun,
		AutoApprove: wsAutoApprove || appCfg.Workspace.AutoConfirm,
	}

	// config needs no docker connection
	if verb == "config" {
		engine := workspace.NewEngine(wsCfg, nil, logger)
		engine.SetIO(cmd.InOrStdin(), cmd.OutOrStdout())
		return engine.PrintConfig()
	}

	backend, err := workspace.NewDockerBackend(wsCfg.Name, logger)
	if err != nil {
		return err
	}
	defer backend.Close() //nolint:errcheck // No remedy for close errors

	engine := workspace.NewEngine(wsCfg, backend, logger)
	engine.SetIO(cmd.InOrStdin(), cmd.OutOrStdout())

	ctx := cmd.Context()
	switch verb {
	case "up":
		return engine.Up(ctx, opts)
	case "down":
		return engine.Down(ctx, opts)
	case "patch":
		return engine.Patch(ctx, opts)
	case "restart":
		return engine.Restart(ctx, opts)
	case "delete":
		return engine.Delete(ctx, opts)
	case "status":
		return engine.Status(ctx, filter)
	default:
		return fmt.Errorf("unknown workspace command %q", verb)
	}
}
