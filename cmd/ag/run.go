package main

import (
	"bufio"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/agentry-ai/agentry/agent"
)

var runThreadID string

var runCmd = &cobra.Command{
	Use:   "run <agent> <message>",
	Short: "Run a single agent turn",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		agentID, message := args[0], args[1]
		ctx := cmd.Context()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		threadID := runThreadID
		if threadID == "" {
			threadID = uuid.NewString()
		}

		history, err := a.store.LoadHistory(ctx, agentID, threadID)
		if err != nil {
			return fmt.Errorf("failed to load conversation history: %w", err)
		}

		if err := a.store.AppendUserMessage(ctx, agentID, threadID, message); err != nil {
			logger.Warn().Err(err).Msg("failed to persist user message")
		}

		reply, err := a.crew.Run(ctx, agentID, threadID, message, history)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), reply)
		return nil
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat <agent>",
	Short: "Chat with an agent, streaming responses",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agentID := args[0]
		ctx := cmd.Context()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		threadID := runThreadID
		if threadID == "" {
			threadID = uuid.NewString()
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Chatting with %s (thread %s). Ctrl-D to exit.\n", agentID, threadID)

		scanner := bufio.NewScanner(cmd.InOrStdin())
		for {
			fmt.Fprint(out, "> ")
			if !scanner.Scan() {
				fmt.Fprintln(out)
				return scanner.Err()
			}
			message := strings.TrimSpace(scanner.Text())
			if message == "" {
				continue
			}

			history, err := a.store.LoadHistory(ctx, agentID, threadID)
			if err != nil {
				return fmt.Errorf("failed to load conversation history: %w", err)
			}
			if err := a.store.AppendUserMessage(ctx, agentID, threadID, message); err != nil {
				logger.Warn().Err(err).Msg("failed to persist user message")
			}

			turnCtx := ctx
			var cancel context.CancelFunc
			if a.cfg.ChatTimeout > 0 {
				turnCtx, cancel = context.WithTimeout(ctx, time.Duration(a.cfg.ChatTimeout)*time.Second)
			}
			_, err = a.crew.RunStream(turnCtx, agentID, threadID, message, history, func(text string) error {
				fmt.Fprint(out, text)
				return nil
			})
			if cancel != nil {
				cancel()
			}
			fmt.Fprintln(out)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
			}
		}
	},
}

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List configured agents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		infos := a.crew.GetAgentInfos()
		sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })

		out := cmd.OutOrStdout()
		for _, info := range infos {
			line := fmt.Sprintf("%-20s %s/%s", info.ID, info.Provider, info.Model)
			if info.Schedule != "" {
				line += "  schedule=" + info.Schedule
			}
			if info.Disabled {
				line += "  (disabled)"
			}
			fmt.Fprintln(out, line)
		}
		return nil
	},
}

var daemonPollInterval time.Duration

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the agent scheduler until interrupted",
	Long: `Run scheduled agents in the foreground. Agents with a schedule are
woken when their next wake time passes; the process runs until the
context is cancelled (Ctrl-C).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		scheduler, err := agent.NewScheduler(a.crew, a.crew.StateManager, a.crew.StatsManager, daemonPollInterval, logger)
		if err != nil {
			return err
		}

		logger.Info().Dur("pollInterval", daemonPollInterval).Msg("Scheduler running")
		scheduler.Start(ctx)
		logger.Info().Msg("Scheduler stopped")
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runThreadID, "thread", "t", "", "Thread ID to continue (default: new thread)")
	chatCmd.Flags().StringVarP(&runThreadID, "thread", "t", "", "Thread ID to continue (default: new thread)")
	daemonCmd.Flags().DurationVar(&daemonPollInterval, "poll-interval", 15*time.Second, "How often to check for agents ready to wake")
}
