// Package system wires a complete Guild runtime: broker, workflow store,
// LLM client, worker agents, orchestrator, user notifications, and the
// clarification inbox. It owns startup order and shutdown order.
package system

import (
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/guildhq/guild/internal/agent"
	"github.com/guildhq/guild/internal/artifact"
	"github.com/guildhq/guild/internal/broker"
	"github.com/guildhq/guild/internal/clarify"
	"github.com/guildhq/guild/internal/config"
	"github.com/guildhq/guild/internal/llm"
	"github.com/guildhq/guild/internal/notify"
	"github.com/guildhq/guild/internal/orchestrator"
	"github.com/guildhq/guild/internal/state"
)

// System is a fully wired Guild runtime.
type System struct {
	Bus          *broker.Broker
	Store        state.WorkflowStore
	Orchestrator *orchestrator.Orchestrator
	Notifier     notify.Notifier

	agents  []startStopper
	watcher *clarify.Watcher
	trace   *orchestrator.DebugLogger

	expiryStop chan struct{}
}

type startStopper interface {
	Start()
	Stop()
}

// Options controls optional pieces of the wiring. The zero value uses the
// config's production defaults.
type Options struct {
	// Generator overrides the LLM client, for tests and dry runs.
	Generator llm.Generator
	// Notifier overrides the console notifier.
	Notifier notify.Notifier
	// InMemoryState uses the in-memory store instead of SQLite.
	InMemoryState bool
	// DisableClarifyWatcher skips the file-drop clarification inbox.
	DisableClarifyWatcher bool
}

// New wires a runtime from configuration. Call Start to begin processing and
// Stop to shut down.
func New(cfg *config.Config, opts Options) (*System, error) {
	workspace := cfg.Paths.Workspace
	if workspace == "" {
		workspace = "."
	}

	var store state.WorkflowStore
	if opts.InMemoryState {
		store = state.NewMemoryStore()
	} else {
		dbPath := cfg.Paths.StateDB
		if dbPath == "" {
			dbPath = state.ProjectDBPath(workspace)
		}
		db, err := state.Open(dbPath)
		if err != nil {
			return nil, fmt.Errorf("open state db: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate state db: %w", err)
		}
		store = db
	}

	gen := opts.Generator
	if gen == nil {
		client, err := llm.NewClient(llm.ClientConfig{
			Model:         anthropic.Model(cfg.Anthropic.Model),
			APIKey:        cfg.Anthropic.APIKey,
			MaxTokens:     int64(cfg.Anthropic.MaxTokens),
			UseAWSBedrock: cfg.Anthropic.UseBedrock,
			AWSRegion:     cfg.Anthropic.AWSRegion,
			AWSProfile:    cfg.Anthropic.AWSProfile,
		})
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("create llm client: %w", err)
		}
		gen = client
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.NewConsole()
	}

	bus := broker.New(broker.WithHistory(store))

	artifactDir := cfg.Paths.ArtifactDir
	if !filepath.IsAbs(artifactDir) {
		artifactDir = filepath.Join(workspace, artifactDir)
	}
	sink := artifact.NewFileSink(artifactDir)

	var trace *orchestrator.DebugLogger
	if cfg.Paths.DebugLog != "" {
		var err error
		trace, err = orchestrator.NewDebugLogger(cfg.Paths.DebugLog)
		if err != nil {
			log.Printf("[system] debug log unavailable: %v", err)
			trace = orchestrator.NopLogger()
		}
	} else {
		trace = orchestrator.NewDebugLoggerForWorkspace(workspace)
	}

	orch := orchestrator.New(bus, store, gen, notifier,
		orchestrator.WithTraceLogger(trace),
		orchestrator.WithClarificationExpiry(cfg.Workflow.ClarificationExpiry),
	)

	sys := &System{
		Bus:          bus,
		Store:        store,
		Orchestrator: orch,
		Notifier:     notifier,
		trace:        trace,
		agents: []startStopper{
			agent.NewBA(bus, gen, sink),
			agent.NewArchitect(bus, gen, sink),
			agent.NewDeveloper(bus, gen, sink),
			agent.NewTester(bus, gen, sink),
			orch,
		},
	}

	if !opts.DisableClarifyWatcher {
		watcher, err := clarify.NewWatcher(clarify.Dir(workspace), orch)
		if err != nil {
			log.Printf("[system] clarification inbox unavailable: %v", err)
		} else {
			sys.watcher = watcher
		}
	}

	if cfg.Workflow.ClarificationExpiry > 0 {
		sys.expiryStop = make(chan struct{})
	}

	return sys, nil
}

// Start launches every agent. Workers start before the orchestrator so no
// dispatched message finds a deaf topic.
func (s *System) Start() {
	for _, a := range s.agents {
		a.Start()
	}
	if s.expiryStop != nil {
		go s.runExpirySweep(s.expiryStop)
	}
}

// Stop shuts the runtime down: inbox first, then the orchestrator and
// workers, then the broker and store.
func (s *System) Stop() {
	if s.watcher != nil {
		s.watcher.Close()
	}
	if s.expiryStop != nil {
		close(s.expiryStop)
		s.expiryStop = nil
	}

	// Reverse start order: orchestrator first so it stops dispatching work.
	for i := len(s.agents) - 1; i >= 0; i-- {
		s.agents[i].Stop()
	}

	s.Bus.Close()
	if err := s.Store.Close(); err != nil {
		log.Printf("[system] close store: %v", err)
	}
	s.trace.Close()
}

// runExpirySweep periodically reminds the user about stale clarifications.
func (s *System) runExpirySweep(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.Orchestrator.ExpireClarifications(s.Orchestrator.Context())
		}
	}
}
