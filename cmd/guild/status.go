package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/guildhq/guild/internal/state"
)

var statusCmd = &cobra.Command{
	Use:   "status [project-id]",
	Short: "Show project status",
	Long: `Display the lifecycle status of projects in this workspace.

With no arguments, lists every known project. With a project ID, shows
that project's phase, progress, active agents, and open issues.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	db, err := openWorkspaceDB()
	if err != nil {
		return err
	}
	if db == nil {
		fmt.Println("No projects yet. Run 'guild run <specification>' to start one.")
		return nil
	}
	defer db.Close()

	if len(args) == 1 {
		return showProject(db, args[0])
	}
	return listProjects(db)
}

// openWorkspaceDB opens the workspace state database, or returns nil if none
// exists yet.
func openWorkspaceDB() (*state.DB, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}

	dbPath := state.ProjectDBPath(cwd)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, nil
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

func listProjects(db *state.DB) error {
	statuses, err := db.ListStatuses()
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}
	if len(statuses) == 0 {
		fmt.Println("No projects yet. Run 'guild run <specification>' to start one.")
		return nil
	}

	fmt.Println("Projects:")
	for _, s := range statuses {
		title := s.ProjectID
		if spec, err := db.GetProject(s.ProjectID); err == nil {
			title = fmt.Sprintf("%s (%s)", spec.Title, shortID(s.ProjectID))
		}
		fmt.Printf("  %s: %s (%.0f%%, updated %s ago)\n",
			title, s.CurrentPhase, s.CompletionPercentage, formatDuration(time.Since(s.LastUpdated)))
	}
	return nil
}

func showProject(db *state.DB, projectID string) error {
	status, err := db.GetStatus(projectID)
	if err != nil {
		return fmt.Errorf("project %s: %w", projectID, err)
	}

	if spec, err := db.GetProject(projectID); err == nil {
		fmt.Printf("Project: %s\n", spec.Title)
		fmt.Printf("  Domain: %s\n", spec.Domain)
		fmt.Printf("  Created: %s ago\n", formatDuration(time.Since(spec.CreatedAt)))
	} else {
		fmt.Printf("Project: %s\n", projectID)
	}

	fmt.Printf("  Phase: %s (%.0f%%)\n", status.CurrentPhase, status.CompletionPercentage)
	if len(status.ActiveAgents) > 0 {
		fmt.Print("  Active agents:")
		for _, a := range status.ActiveAgents {
			fmt.Printf(" %s", a)
		}
		fmt.Println()
	}
	for _, action := range status.NextActions {
		fmt.Printf("  Next: %s\n", action)
	}
	if len(status.Issues) > 0 {
		fmt.Println("  Issues:")
		for _, issue := range status.Issues {
			fmt.Printf("    - %s\n", issue)
		}
	}

	pending, err := db.UnresolvedQueries(projectID)
	if err == nil && len(pending) > 0 {
		fmt.Println("  Waiting on you:")
		for _, q := range pending {
			fmt.Printf("    [%s] %s\n", q.From, q.Content)
		}
		fmt.Printf("  Answer with: guild clarify %s \"<answer>\"\n", shortID(projectID))
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}

// resolveProjectID expands a short ID prefix to a full project ID.
func resolveProjectID(db *state.DB, idOrPrefix string) (string, error) {
	statuses, err := db.ListStatuses()
	if err != nil {
		return "", err
	}
	var matches []string
	for _, s := range statuses {
		if s.ProjectID == idOrPrefix {
			return idOrPrefix, nil
		}
		if len(idOrPrefix) >= 4 && len(s.ProjectID) > len(idOrPrefix) && s.ProjectID[:len(idOrPrefix)] == idOrPrefix {
			matches = append(matches, s.ProjectID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no project matches %q", idOrPrefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%q is ambiguous (%d matches)", idOrPrefix, len(matches))
	}
}
