// Package config handles configuration loading and management for Guild.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for Guild.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
	Paths     PathsConfig     `mapstructure:"paths"`
}

// AnthropicConfig holds LLM transport settings.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key. May reference an env var as ${VAR}.
	APIKey string `mapstructure:"api_key"`
	// Model is the model ID used by every agent.
	Model string `mapstructure:"model"`
	// MaxTokens caps the response size per generation.
	MaxTokens int `mapstructure:"max_tokens"`
	// UseBedrock routes requests through AWS Bedrock instead of the API.
	UseBedrock bool `mapstructure:"use_bedrock"`
	// AWSRegion selects the Bedrock region.
	AWSRegion string `mapstructure:"aws_region"`
	// AWSProfile selects the AWS credentials profile for Bedrock.
	AWSProfile string `mapstructure:"aws_profile"`
}

// WorkflowConfig holds orchestration settings.
type WorkflowConfig struct {
	// ClarificationExpiry is how long a clarification question may sit
	// unanswered before the user is reminded. Zero disables reminders.
	ClarificationExpiry time.Duration `mapstructure:"clarification_expiry"`
	// NotifyBuffer is the size of the async notification channel.
	NotifyBuffer int `mapstructure:"notify_buffer"`
}

// PathsConfig holds workspace layout settings. Relative paths are resolved
// against the workspace root at wiring time.
type PathsConfig struct {
	// Workspace is the project workspace root. Defaults to the current
	// directory.
	Workspace string `mapstructure:"workspace"`
	// ArtifactDir is where agent artifacts are written.
	ArtifactDir string `mapstructure:"artifact_dir"`
	// StateDB is the SQLite workflow state database file.
	StateDB string `mapstructure:"state_db"`
	// DebugLog is the orchestrator trace log file. Empty disables tracing.
	DebugLog string `mapstructure:"debug_log"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY)
// 2. Project config (.guild.yaml in current directory or parent)
// 3. User config (~/.config/guild/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Project config takes precedence over the user config.
	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.model", "GUILD_MODEL")
	v.BindEnv("anthropic.use_bedrock", "CLAUDE_CODE_USE_BEDROCK")
	v.BindEnv("anthropic.aws_region", "AWS_REGION")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.max_tokens", cfg.Anthropic.MaxTokens)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("workflow.clarification_expiry", cfg.Workflow.ClarificationExpiry.String())
	v.Set("workflow.notify_buffer", cfg.Workflow.NotifyBuffer)
	v.Set("paths.workspace", cfg.Paths.Workspace)
	v.Set("paths.artifact_dir", cfg.Paths.ArtifactDir)
	v.Set("paths.state_db", cfg.Paths.StateDB)
	v.Set("paths.debug_log", cfg.Paths.DebugLog)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("workflow.clarification_expiry", "0s")
	v.SetDefault("workflow.notify_buffer", 100)

	v.SetDefault("paths.workspace", ".")
	v.SetDefault("paths.artifact_dir", "artifacts")
	v.SetDefault("paths.state_db", "")
	v.SetDefault("paths.debug_log", "")
}

// getUserConfigDir returns the XDG config directory for Guild.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "guild")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "guild")
	}
	return filepath.Join(home, ".config", "guild")
}

// findProjectConfig searches for .guild.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".guild.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 4096,
		},
		Workflow: WorkflowConfig{
			ClarificationExpiry: 0,
			NotifyBuffer:        100,
		},
		Paths: PathsConfig{
			Workspace:   ".",
			ArtifactDir: "artifacts",
		},
	}
}
