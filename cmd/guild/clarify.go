package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/guildhq/guild/internal/clarify"
)

var clarifyCmd = &cobra.Command{
	Use:   "clarify <project-id> <answer>",
	Short: "Answer a pending clarification question",
	Long: `Answer the most recent question an agent asked for a project.

The answer is dropped into the workspace clarification inbox
(.guild/clarifications/), where the running workflow picks it up and
forwards it to the asking agent.`,
	Args: cobra.ExactArgs(2),
	RunE: runClarify,
}

func runClarify(cmd *cobra.Command, args []string) error {
	db, err := openWorkspaceDB()
	if err != nil {
		return err
	}
	if db == nil {
		return fmt.Errorf("no projects in this workspace")
	}
	defer db.Close()

	projectID, err := resolveProjectID(db, args[0])
	if err != nil {
		return err
	}

	pending, err := db.UnresolvedQueries(projectID)
	if err != nil {
		return fmt.Errorf("check pending questions: %w", err)
	}
	if len(pending) == 0 {
		return fmt.Errorf("project %s has no pending questions", shortID(projectID))
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	dir := clarify.Dir(cwd)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create clarification inbox: %w", err)
	}

	path := filepath.Join(dir, projectID+".txt")
	if err := os.WriteFile(path, []byte(args[1]+"\n"), 0644); err != nil {
		return fmt.Errorf("write answer: %w", err)
	}

	fmt.Printf("Answer queued for the %s's question on project %s.\n",
		pending[len(pending)-1].From, shortID(projectID))
	return nil
}
