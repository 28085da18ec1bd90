package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Anthropic.Model != "claude-sonnet-4-20250514" {
		t.Errorf("expected default model, got %q", cfg.Anthropic.Model)
	}

	if cfg.Anthropic.MaxTokens != 4096 {
		t.Errorf("expected max_tokens 4096, got %d", cfg.Anthropic.MaxTokens)
	}

	if cfg.Workflow.ClarificationExpiry != 0 {
		t.Errorf("expected clarification expiry disabled, got %v", cfg.Workflow.ClarificationExpiry)
	}

	if cfg.Workflow.NotifyBuffer != 100 {
		t.Errorf("expected notify buffer 100, got %d", cfg.Workflow.NotifyBuffer)
	}

	if cfg.Paths.ArtifactDir != "artifacts" {
		t.Errorf("expected artifact dir 'artifacts', got %q", cfg.Paths.ArtifactDir)
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
anthropic:
  api_key: test-key
  model: claude-3-5-haiku-latest
  max_tokens: 2048
  use_bedrock: true
  aws_region: us-west-2
workflow:
  clarification_expiry: 24h
  notify_buffer: 50
paths:
  workspace: /srv/guild
  artifact_dir: out
  state_db: /srv/guild/.guild/state.db
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Anthropic.APIKey != "test-key" {
		t.Errorf("expected api_key 'test-key', got %q", cfg.Anthropic.APIKey)
	}

	if cfg.Anthropic.Model != "claude-3-5-haiku-latest" {
		t.Errorf("expected haiku model, got %q", cfg.Anthropic.Model)
	}

	if cfg.Anthropic.MaxTokens != 2048 {
		t.Errorf("expected max_tokens 2048, got %d", cfg.Anthropic.MaxTokens)
	}

	if !cfg.Anthropic.UseBedrock {
		t.Error("expected use_bedrock true")
	}

	if cfg.Anthropic.AWSRegion != "us-west-2" {
		t.Errorf("expected aws_region 'us-west-2', got %q", cfg.Anthropic.AWSRegion)
	}

	if cfg.Workflow.ClarificationExpiry != 24*time.Hour {
		t.Errorf("expected clarification expiry 24h, got %v", cfg.Workflow.ClarificationExpiry)
	}

	if cfg.Workflow.NotifyBuffer != 50 {
		t.Errorf("expected notify buffer 50, got %d", cfg.Workflow.NotifyBuffer)
	}

	if cfg.Paths.Workspace != "/srv/guild" {
		t.Errorf("expected workspace '/srv/guild', got %q", cfg.Paths.Workspace)
	}
}

func TestLoadFromPathAppliesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("anthropic:\n  api_key: k\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Anthropic.Model == "" {
		t.Error("expected model default to apply")
	}
	if cfg.Workflow.NotifyBuffer != 100 {
		t.Errorf("expected notify buffer default 100, got %d", cfg.Workflow.NotifyBuffer)
	}
}

func TestExpandEnv(t *testing.T) {
	os.Setenv("TEST_VAR", "expanded-value")
	defer os.Unsetenv("TEST_VAR")

	result := expandEnv("${TEST_VAR}")
	if result != "expanded-value" {
		t.Errorf("expected 'expanded-value', got %q", result)
	}

	result = expandEnv("prefix-${TEST_VAR}-suffix")
	if result != "prefix-expanded-value-suffix" {
		t.Errorf("expected 'prefix-expanded-value-suffix', got %q", result)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	os.Setenv("XDG_CONFIG_HOME", "/custom/config")
	defer os.Unsetenv("XDG_CONFIG_HOME")

	dir := getUserConfigDir()
	expected := "/custom/config/guild"
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
}
