package system

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/guildhq/guild/internal/config"
	"github.com/guildhq/guild/internal/llm"
	"github.com/guildhq/guild/internal/notify"
	"github.com/guildhq/guild/pkg/models"
)

// scriptedGen routes prompts to canned responses by role-specific prompt
// prefixes, with optional per-call overrides to simulate flaky behavior.
type scriptedGen struct {
	mu    sync.Mutex
	calls map[string]int
	// hooks run before the default response for a matched route; returning
	// handled=true short-circuits.
	hooks map[string]func(n int) (string, error, bool)
}

func newScriptedGen() *scriptedGen {
	return &scriptedGen{
		calls: make(map[string]int),
		hooks: make(map[string]func(n int) (string, error, bool)),
	}
}

var genRoutes = []struct {
	key      string
	match    string
	response string
}{
	{"ba_analyze", "Analyze this project specification",
		`{"refined_specification": "Refined spec", "requirements": ["r1"], "clarifications_needed": []}`},
	{"ba_clarified", "The user answered your clarification questions",
		`{"refined_specification": "Refined with answer", "requirements": ["r1"], "clarifications_needed": []}`},
	{"ba_review", "Review this architecture design",
		`{"summary": "Design approved."}`},
	{"architect", "Design an architecture for this specification",
		`{"system_overview": "Overview", "tech_stack": {"api": "Go"}, "components": ["api"]}`},
	{"developer", "Implement this work package",
		`{"implementation": "package main", "notes": []}`},
	{"dev_fix", "QA reported these defects",
		`{"implementation": "package main // fixed", "notes": ["fixed"]}`},
	{"test_prep", "Derive test cases",
		`{"test_cases": ["case 1"]}`},
	{"verdict", "Evaluate this build",
		`{"passed": true, "summary": "All green.", "issues": []}`},
	{"summary", "delivery summary",
		"Delivered successfully."},
}

func (g *scriptedGen) GenerateText(ctx context.Context, prompt, system string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, r := range genRoutes {
		if strings.Contains(prompt, r.match) {
			g.calls[r.key]++
			if hook, ok := g.hooks[r.key]; ok {
				if resp, err, handled := hook(g.calls[r.key]); handled {
					return resp, err
				}
			}
			return r.response, nil
		}
	}
	return "", errors.New("unscripted prompt")
}

func (g *scriptedGen) callCount(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[key]
}

func newTestSystem(t *testing.T, gen llm.Generator) (*System, *notify.Recorder) {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.Workspace = t.TempDir()

	rec := notify.NewRecorder()
	sys, err := New(cfg, Options{
		Generator:             gen,
		Notifier:              rec,
		InMemoryState:         true,
		DisableClarifyWatcher: true,
	})
	if err != nil {
		t.Fatalf("wire system: %v", err)
	}
	sys.Start()
	t.Cleanup(sys.Stop)
	return sys, rec
}

func waitPhase(t *testing.T, sys *System, projectID, phase string) *models.ProjectStatus {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	var last *models.ProjectStatus
	for time.Now().Before(deadline) {
		s, err := sys.Orchestrator.GetProjectStatus(projectID)
		if err == nil {
			last = s
			if s.CurrentPhase == phase {
				return s
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("project never reached %s; last status: %+v", phase, last)
	return nil
}

func TestFullWorkflowToCompletion(t *testing.T) {
	gen := newScriptedGen()
	sys, rec := newTestSystem(t, gen)

	id, err := sys.Orchestrator.StartProject(context.Background(), "Todo API",
		"A small todo list API", nil, nil)
	if err != nil {
		t.Fatalf("StartProject: %v", err)
	}

	s := waitPhase(t, sys, id, models.PhaseCompleted)
	if s.CompletionPercentage != 100 {
		t.Errorf("completion = %v, want 100", s.CompletionPercentage)
	}

	history, err := sys.Orchestrator.GetWorkflowHistory(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) == 0 {
		t.Fatal("workflow history is empty")
	}

	// Every recorded message belongs to this project and the pipeline hit
	// each role at least once.
	seen := map[models.AgentType]bool{}
	for _, m := range history {
		if m.ProjectID != id {
			t.Errorf("history message for wrong project: %s", m.ProjectID)
		}
		seen[m.To] = true
	}
	for _, typ := range models.AllAgentTypes() {
		if !seen[typ] {
			t.Errorf("no message ever delivered to %s", typ)
		}
	}

	notes := rec.ForProject(id)
	if len(notes) == 0 || !strings.Contains(notes[len(notes)-1].Message, "Delivered successfully.") {
		t.Errorf("completion summary missing from notifications: %v", notes)
	}
}

func TestClarificationRoundTrip(t *testing.T) {
	gen := newScriptedGen()
	gen.hooks["ba_analyze"] = func(n int) (string, error, bool) {
		return `{"refined_specification": "x", "requirements": [], "clarifications_needed": ["Which database?"]}`,
			nil, true
	}
	sys, rec := newTestSystem(t, gen)

	id, err := sys.Orchestrator.StartProject(context.Background(), "Vague app",
		"Build something with data", nil, nil)
	if err != nil {
		t.Fatalf("StartProject: %v", err)
	}

	waitPhase(t, sys, id, models.PhaseAwaitingClarification)

	var asked bool
	for _, n := range rec.ForProject(id) {
		if strings.Contains(n.Message, "Which database?") {
			asked = true
		}
	}
	if !asked {
		t.Fatal("clarification question never surfaced to the user")
	}

	if err := sys.Orchestrator.SendClarification(context.Background(), id, "PostgreSQL"); err != nil {
		t.Fatalf("SendClarification: %v", err)
	}

	waitPhase(t, sys, id, models.PhaseCompleted)

	if gen.callCount("ba_clarified") == 0 {
		t.Error("BA never incorporated the user's answer")
	}
}

func TestQADefectLoop(t *testing.T) {
	gen := newScriptedGen()
	gen.hooks["verdict"] = func(n int) (string, error, bool) {
		if n == 1 {
			return `{"passed": false, "summary": "Broken.", "issues": ["panic on start"]}`, nil, true
		}
		return "", nil, false
	}
	sys, _ := newTestSystem(t, gen)

	id, err := sys.Orchestrator.StartProject(context.Background(), "Todo API",
		"A small todo list API", nil, nil)
	if err != nil {
		t.Fatalf("StartProject: %v", err)
	}

	s := waitPhase(t, sys, id, models.PhaseCompleted)
	if s.CompletionPercentage != 100 {
		t.Errorf("completion = %v, want 100", s.CompletionPercentage)
	}

	if gen.callCount("dev_fix") == 0 {
		t.Error("developer never fixed the reported defects")
	}
	if gen.callCount("verdict") < 2 {
		t.Error("build was not re-evaluated after the fix")
	}
}

func TestRecoveryAfterAgentFailure(t *testing.T) {
	gen := newScriptedGen()
	gen.hooks["ba_analyze"] = func(n int) (string, error, bool) {
		if n == 1 {
			return "", errors.New("model overloaded"), true
		}
		return "", nil, false
	}
	sys, rec := newTestSystem(t, gen)

	id, err := sys.Orchestrator.StartProject(context.Background(), "Todo API",
		"A small todo list API", nil, nil)
	if err != nil {
		t.Fatalf("StartProject: %v", err)
	}

	s := waitPhase(t, sys, id, models.PhaseCompleted)
	if s.CompletionPercentage != 100 {
		t.Errorf("completion = %v, want 100", s.CompletionPercentage)
	}
	if len(s.Issues) == 0 {
		t.Error("the initial failure should be recorded as an issue")
	}
	if gen.callCount("ba_analyze") < 2 {
		t.Error("BA was never retried")
	}

	var recovered bool
	for _, n := range rec.ForProject(id) {
		if strings.Contains(n.Message, "attempting recovery") {
			recovered = true
		}
	}
	if !recovered {
		t.Error("user was not told about the recovery attempt")
	}
}
