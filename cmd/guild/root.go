package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "guild",
	Short: "Multi-agent software delivery orchestrator",
	Long: `Guild coordinates a team of autonomous agents (Business Analyst,
Architect, Developer, QA Tester) collaborating on a software delivery
workflow via asynchronous messages.

Start a project with 'guild run', answer agent questions with
'guild clarify', and follow progress with 'guild status' and
'guild history'.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(clarifyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
