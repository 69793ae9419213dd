package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/testdeckhq/testdeck/logger"
	"github.com/testdeckhq/testdeck/worker"
)

var (
	flagRunBrowsers  []string
	flagRunCapacity  int
	flagStepDelay    time.Duration
	flagHeartbeatInt time.Duration
	flagPollInt      time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent loops until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagToken == "" {
			return fmt.Errorf("agent token is required: pass --token or set TESTDECK_AGENT_TOKEN")
		}

		ctx := context.Background()
		log := logger.NewLogrusLogger(flagLogLevel)

		client := worker.NewClient(flagServerURL, flagToken)
		executor := &worker.SimulatedExecutor{StepDelay: flagStepDelay}

		sess := worker.NewSession(client, executor, flagRunCapacity, flagRunBrowsers, log,
			worker.WithHeartbeatInterval(flagHeartbeatInt),
			worker.WithPollInterval(flagPollInt),
		)

		if err := sess.Start(ctx); err != nil {
			return fmt.Errorf("failed to start session: %w", err)
		}

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := sess.Stop(stopCtx); err != nil {
			return fmt.Errorf("failed to stop session: %w", err)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringSliceVar(&flagRunBrowsers, "browsers", []string{"chromium"}, "supported browsers")
	runCmd.Flags().IntVar(&flagRunCapacity, "capacity", 1, "maximum concurrent jobs")
	runCmd.Flags().DurationVar(&flagStepDelay, "step-delay", 200*time.Millisecond, "simulated per-step delay")
	runCmd.Flags().DurationVar(&flagHeartbeatInt, "heartbeat-interval", worker.DefaultHeartbeatInterval, "heartbeat cadence")
	runCmd.Flags().DurationVar(&flagPollInt, "poll-interval", worker.DefaultPollInterval, "job poll cadence")
	rootCmd.AddCommand(runCmd)
}
