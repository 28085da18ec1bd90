package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
)

func TestGeneratorFunc(t *testing.T) {
	var gotPrompt, gotSystem string
	g := GeneratorFunc(func(ctx context.Context, prompt, systemPrompt string) (string, error) {
		gotPrompt, gotSystem = prompt, systemPrompt
		return "ok", nil
	})

	out, err := g.GenerateText(context.Background(), "p", "s")
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if out != "ok" || gotPrompt != "p" || gotSystem != "s" {
		t.Errorf("out=%q prompt=%q system=%q", out, gotPrompt, gotSystem)
	}
}

func TestGeneratorFuncError(t *testing.T) {
	wantErr := errors.New("model overloaded")
	g := GeneratorFunc(func(ctx context.Context, prompt, systemPrompt string) (string, error) {
		return "", wantErr
	})

	if _, err := g.GenerateText(context.Background(), "p", ""); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Error("NewClient without API key should fail")
	}
}

func TestNewClientDefaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	c, err := NewClient(ClientConfig{})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.Model() == "" {
		t.Error("model should default")
	}
	if c.maxTokens != 4096 {
		t.Errorf("maxTokens = %d, want 4096", c.maxTokens)
	}
}

func TestTranslateModelForBedrock(t *testing.T) {
	got := translateModelForBedrock(anthropic.ModelClaudeSonnet4_20250514)
	if got != "us.anthropic.claude-sonnet-4-20250514-v1:0" {
		t.Errorf("translated = %q", got)
	}

	// Unknown models pass through untouched.
	custom := anthropic.Model("us.anthropic.custom-v1:0")
	if got := translateModelForBedrock(custom); got != custom {
		t.Errorf("custom model changed: %q", got)
	}
}

func TestTokenTracker(t *testing.T) {
	tr := NewTokenTracker()
	tr.Add(100, 50)
	tr.Add(10, 5)

	in, out := tr.Total()
	if in != 110 || out != 55 {
		t.Errorf("Total = %d/%d, want 110/55", in, out)
	}
	if tr.Calls() != 2 {
		t.Errorf("Calls = %d, want 2", tr.Calls())
	}
}
