package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	aglogger "github.com/agentry-ai/agentry/logger"
)

var (
	logFile string
	pretty  bool

	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ag",
	Short: "agentry - multi-provider LLM agents and workspace tooling",
	Long: `agentry runs LLM agents against any configured provider and manages
the local workspace resources they depend on.

Configuration lives in ~/.agentry/config.yaml; agents are declared in
agents.yaml. Workspace resources are declared in workspace.yaml.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = aglogger.InitWithOptions(logFile, pretty)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logFile, "logfile", "", "Path to log file. If not set, logs to stderr")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "Use pretty console output")

	rootCmd.AddCommand(wsCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(daemonCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
