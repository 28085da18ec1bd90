package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/guildhq/guild/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	RunE:  runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fmt.Printf("User config:    %s\n", config.GetUserConfigPath())
	if project := config.GetProjectConfigPath(); project != "" {
		fmt.Printf("Project config: %s\n", project)
	}
	fmt.Println()

	key, _ := config.GetAPIKey(cfg)
	fmt.Printf("Model:       %s\n", cfg.Anthropic.Model)
	fmt.Printf("Max tokens:  %d\n", cfg.Anthropic.MaxTokens)
	fmt.Printf("API key:     %s (%s)\n", config.MaskAPIKey(key), config.GetAPIKeySource(cfg))
	if cfg.Anthropic.UseBedrock {
		fmt.Printf("Transport:   AWS Bedrock (region %s)\n", cfg.Anthropic.AWSRegion)
	} else {
		fmt.Println("Transport:   Anthropic API")
	}
	fmt.Println()

	fmt.Printf("Workspace:    %s\n", cfg.Paths.Workspace)
	fmt.Printf("Artifacts:    %s\n", cfg.Paths.ArtifactDir)
	if cfg.Paths.StateDB != "" {
		fmt.Printf("State DB:     %s\n", cfg.Paths.StateDB)
	}
	if cfg.Workflow.ClarificationExpiry > 0 {
		fmt.Printf("Clarification reminder after: %s\n", cfg.Workflow.ClarificationExpiry)
	}
	return nil
}
