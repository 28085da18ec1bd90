package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/guildhq/guild/internal/config"
	"github.com/guildhq/guild/internal/notify"
	"github.com/guildhq/guild/internal/system"
)

var (
	runTitle        string
	runSpecFile     string
	runRequirements []string
	runConstraints  []string
)

var runCmd = &cobra.Command{
	Use:   "run [specification]",
	Short: "Start a project and run the agent workflow",
	Long: `Start a new project from a specification and run the agent team
until the project completes or fails.

The specification is given as an argument or read from a file with --file.
While the workflow runs, answer agent questions by dropping a text file
named <project-id>.txt into .guild/clarifications/ (or from another
terminal with 'guild clarify').`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runTitle, "title", "t", "", "Project title (defaults to the first line of the specification)")
	runCmd.Flags().StringVarP(&runSpecFile, "file", "f", "", "Read the specification from a file")
	runCmd.Flags().StringArrayVarP(&runRequirements, "requirement", "r", nil, "Add a functional requirement (repeatable)")
	runCmd.Flags().StringArrayVarP(&runConstraints, "constraint", "c", nil, "Add a project constraint (repeatable)")
}

func runRun(cmd *cobra.Command, args []string) error {
	spec, err := readSpecification(args)
	if err != nil {
		return err
	}

	title := runTitle
	if title == "" {
		title = firstLine(spec)
		if len(title) > 60 {
			title = title[:60]
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.Anthropic.UseBedrock {
		if _, err := config.GetAPIKey(cfg); err != nil {
			return fmt.Errorf("%w\n\nSet ANTHROPIC_API_KEY or add it to %s", err, config.GetUserConfigPath())
		}
	}

	// Notifications stream through a bounded channel so a slow terminal
	// never blocks the orchestrator.
	emitter := notify.NewEmitter(cfg.Workflow.NotifyBuffer)
	console := notify.NewConsole()

	sys, err := system.New(cfg, system.Options{Notifier: emitter})
	if err != nil {
		return err
	}
	sys.Start()
	defer sys.Stop()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	projectID, err := sys.Orchestrator.StartProject(ctx, title, spec, runRequirements, runConstraints)
	if err != nil {
		return err
	}
	fmt.Printf("Project ID: %s\n\n", projectID)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nInterrupted; shutting down.")
			return nil
		case n := <-emitter.Notifications():
			console.NotifyUser(n.ProjectID, n.Message)
		case <-ticker.C:
			status, err := sys.Orchestrator.GetProjectStatus(projectID)
			if err != nil {
				continue
			}
			if status.Terminal() {
				fmt.Printf("\nFinal phase: %s (%.0f%%)\n", status.CurrentPhase, status.CompletionPercentage)
				if len(status.Issues) > 0 {
					fmt.Println("Issues:")
					for _, issue := range status.Issues {
						fmt.Printf("  - %s\n", issue)
					}
				}
				return nil
			}
		}
	}
}

func readSpecification(args []string) (string, error) {
	if runSpecFile != "" {
		content, err := os.ReadFile(runSpecFile)
		if err != nil {
			return "", fmt.Errorf("read specification file: %w", err)
		}
		return strings.TrimSpace(string(content)), nil
	}
	if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0]), nil
	}
	return "", fmt.Errorf("no specification given; pass it as an argument or use --file")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}
