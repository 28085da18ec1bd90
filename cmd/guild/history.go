package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var historyFull bool

var historyCmd = &cobra.Command{
	Use:   "history <project-id>",
	Short: "Show a project's workflow history",
	Long: `Print every message exchanged between agents for a project, in
delivery order. By default message contents are truncated; use --full for
the complete text.`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().BoolVar(&historyFull, "full", false, "Print full message contents")
}

func runHistory(cmd *cobra.Command, args []string) error {
	db, err := openWorkspaceDB()
	if err != nil {
		return err
	}
	if db == nil {
		fmt.Println("No projects yet.")
		return nil
	}
	defer db.Close()

	projectID, err := resolveProjectID(db, args[0])
	if err != nil {
		return err
	}

	history, err := db.History(projectID)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	if len(history) == 0 {
		fmt.Println("No messages recorded for this project.")
		return nil
	}

	for _, m := range history {
		content := m.Content
		if !historyFull {
			content = summarize(content)
		}
		fmt.Printf("%s  %-12s %s -> %s  %s\n",
			m.Timestamp.Format("15:04:05"), m.Type, m.From, m.To, content)
	}
	return nil
}

// summarize collapses a message body to its first line, truncated.
func summarize(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 80 {
		s = s[:77] + "..."
	}
	return s
}
