package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is the application version (set during build).
	Version = "dev"
)

var (
	flagServerURL string
	flagToken     string
	flagLogLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "agentd",
	Short: "Testdeck test execution agent",
	Long:  `A self-hosted agent that registers with the Testdeck backend, polls for queued test jobs and reports results.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServerURL, "server", "http://localhost:8080", "backend server URL")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", os.Getenv("TESTDECK_AGENT_TOKEN"), "agent bearer token")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
