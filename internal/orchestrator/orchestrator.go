// Package orchestrator implements the coordinating agent of a Guild
// workflow. The orchestrator owns every project's lifecycle record: it
// creates projects, folds agent status reports into phase transitions,
// routes clarification questions to the user and answers back to the asking
// agent, and runs recovery when an agent reports a failure.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/guildhq/guild/internal/agent"
	"github.com/guildhq/guild/internal/broker"
	"github.com/guildhq/guild/internal/llm"
	"github.com/guildhq/guild/internal/notify"
	"github.com/guildhq/guild/internal/state"
	"github.com/guildhq/guild/pkg/models"
)

// Orchestrator coordinates the worker agents and is the single writer of
// project statuses. It embeds the shared agent runtime, so inbound messages
// are processed strictly one at a time; status updates from other goroutines
// are serialized with the agent loop's by statusMu.
type Orchestrator struct {
	*agent.Agent

	store    state.WorkflowStore
	gen      llm.Generator
	notifier notify.Notifier
	trace    *DebugLogger

	// statusMu serializes status read-modify-writes. The agent loop is the
	// main writer, but SendClarification and ExpireClarifications run on
	// caller goroutines (CLI, clarification inbox, expiry sweep).
	statusMu sync.Mutex

	// clarifyExpiry bounds how long a clarification may sit unanswered
	// before ExpireClarifications reminds the user. Zero disables expiry.
	clarifyExpiry time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTraceLogger directs orchestrator decisions to a debug log file.
func WithTraceLogger(l *DebugLogger) Option {
	return func(o *Orchestrator) { o.trace = l }
}

// WithClarificationExpiry sets how long a clarification question may remain
// unanswered before the user is reminded. Zero (the default) never expires.
func WithClarificationExpiry(d time.Duration) Option {
	return func(o *Orchestrator) { o.clarifyExpiry = d }
}

// New creates the orchestrator agent. Call Start to begin processing.
func New(bus *broker.Broker, store state.WorkflowStore, gen llm.Generator, notifier notify.Notifier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		Agent:    agent.New(models.AgentOrchestrator, bus),
		store:    store,
		gen:      gen,
		notifier: notifier,
		trace:    NopLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}

	o.Handle(models.MessageStatus, o.handleStatus)
	o.Handle(models.MessageQuery, o.handleQuery)
	o.Handle(models.MessageError, o.handleError)
	return o
}

// StartProject accepts a user specification, records the project, and hands
// it to the Business Analyst. It returns the new project ID.
func (o *Orchestrator) StartProject(ctx context.Context, title, description string, requirements, constraints []string) (string, error) {
	if strings.TrimSpace(description) == "" {
		return "", fmt.Errorf("start project: empty specification")
	}

	now := time.Now()
	spec := &models.ProjectSpecification{
		ID:           uuid.New().String(),
		Title:        title,
		Description:  description,
		Domain:       models.DetectDomain(title + " " + description),
		Requirements: requirements,
		Constraints:  constraints,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := o.store.CreateProject(spec); err != nil {
		return "", fmt.Errorf("start project: %w", err)
	}

	status := &models.ProjectStatus{
		ProjectID:            spec.ID,
		CurrentPhase:         models.PhaseRequirementsAnalysis,
		CompletionPercentage: 0,
		ActiveAgents:         []models.AgentType{models.AgentBA},
		NextActions:          []string{"Business Analyst is analyzing the specification"},
		LastUpdated:          now,
	}
	if err := o.store.SaveStatus(status); err != nil {
		return "", fmt.Errorf("start project: %w", err)
	}

	o.trace.Log("project %s created (domain=%s): %s", spec.ID, spec.Domain, title)

	content := spec.Description
	if len(spec.Requirements) > 0 {
		content += "\n\nRequirements:\n- " + strings.Join(spec.Requirements, "\n- ")
	}
	if len(spec.Constraints) > 0 {
		content += "\n\nConstraints:\n- " + strings.Join(spec.Constraints, "\n- ")
	}
	o.Send(models.AgentBA, models.MessageSpecification, content, spec.ID,
		map[string]any{models.MetaInitiatedBy: "user"})

	o.notifier.NotifyUser(spec.ID, fmt.Sprintf("Project %q started; requirements analysis underway.", title))
	return spec.ID, nil
}

// GetProjectStatus returns a snapshot of a project's lifecycle record.
func (o *Orchestrator) GetProjectStatus(projectID string) (*models.ProjectStatus, error) {
	return o.store.GetStatus(projectID)
}

// GetWorkflowHistory returns every message delivered for a project, in
// delivery order.
func (o *Orchestrator) GetWorkflowHistory(projectID string) ([]models.Message, error) {
	return o.store.History(projectID)
}

// ListProjects returns the status of every known project.
func (o *Orchestrator) ListProjects() ([]models.ProjectStatus, error) {
	return o.store.ListStatuses()
}

// updateStatus loads a project's status, applies fn, and saves the result.
// All status writes flow through here under statusMu, so a snapshot taken by
// one caller is never overwritten by a stale snapshot from another.
func (o *Orchestrator) updateStatus(projectID string, fn func(*models.ProjectStatus)) error {
	o.statusMu.Lock()
	defer o.statusMu.Unlock()

	status, err := o.store.GetStatus(projectID)
	if err != nil {
		return err
	}
	fn(status)
	status.LastUpdated = time.Now()
	return o.store.SaveStatus(status)
}

// appendIssue records an issue on the project without altering its phase.
func (o *Orchestrator) appendIssue(projectID, issue string) {
	if err := o.updateStatus(projectID, func(s *models.ProjectStatus) {
		s.Issues = append(s.Issues, issue)
	}); err != nil {
		log.Printf("[orchestrator] record issue for %s: %v", projectID, err)
	}
}
