package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/testdeckhq/testdeck/worker"
)

var (
	flagAgentID  string
	flagName     string
	flagBrowsers []string
	flagCapacity int
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register this agent with the backend",
	Long:  `Registers the agent and prints its one-time bearer token. Store the token; it cannot be retrieved again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagAgentID == "" {
			return fmt.Errorf("--agent-id is required")
		}
		name := flagName
		if name == "" {
			name = flagAgentID
		}

		client := worker.NewClient(flagServerURL, "")
		resp, err := client.Register(context.Background(), worker.RegisterRequest{
			AgentID:  flagAgentID,
			Name:     name,
			Browsers: flagBrowsers,
			Capacity: flagCapacity,
		})
		if err != nil {
			return fmt.Errorf("registration failed: %w", err)
		}

		fmt.Printf("Agent registered: %s\n", resp.Agent.AgentID)
		fmt.Printf("Token (shown once): %s\n", resp.Token)
		fmt.Println("Export it as TESTDECK_AGENT_TOKEN or pass --token to `agentd run`.")
		return nil
	},
}

func init() {
	registerCmd.Flags().StringVar(&flagAgentID, "agent-id", "", "unique agent identifier")
	registerCmd.Flags().StringVar(&flagName, "name", "", "display name (defaults to agent-id)")
	registerCmd.Flags().StringSliceVar(&flagBrowsers, "browsers", []string{"chromium"}, "supported browsers")
	registerCmd.Flags().IntVar(&flagCapacity, "capacity", 1, "maximum concurrent jobs")
	rootCmd.AddCommand(registerCmd)
}
