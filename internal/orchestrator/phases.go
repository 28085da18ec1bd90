package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/guildhq/guild/pkg/models"
)

// markerKey identifies a phase transition by who reported it and the phase
// marker they attached. The same marker can mean different transitions from
// different agents (development_complete from the Developer versus the BA's
// relay of it).
type markerKey struct {
	from   models.AgentType
	marker string
}

// phaseTransition is the status update a recognized marker produces.
type phaseTransition struct {
	phase      string
	completion float64
	active     []models.AgentType
	next       []string
}

// phaseTransitions maps status markers to lifecycle updates. Completion
// percentages only ever move forward; applyTransition enforces that.
var phaseTransitions = map[markerKey]phaseTransition{
	{models.AgentTester, "test_preparation_complete"}: {
		phase:      models.PhaseTestPreparation,
		completion: 20,
		active:     []models.AgentType{models.AgentTester},
		next:       []string{"Test cases prepared; awaiting build from development"},
	},
	{models.AgentArchitect, "architecture_design_completed"}: {
		phase:      models.PhaseArchitectureDesign,
		completion: 30,
		active:     []models.AgentType{models.AgentArchitect, models.AgentBA},
		next:       []string{"Business Analyst is reviewing the architecture design"},
	},
	{models.AgentDeveloper, "development_complete"}: {
		phase:      models.PhaseDevelopmentComplete,
		completion: 60,
		active:     []models.AgentType{models.AgentTester},
		next:       []string{"Build handed to QA for evaluation"},
	},
	{models.AgentBA, "development_complete"}: {
		phase:      models.PhaseQATesting,
		completion: 70,
		active:     []models.AgentType{models.AgentTester},
		next:       []string{"QA testing in progress"},
	},
	{models.AgentTester, "qa_review"}: {
		phase:      models.PhaseQAReview,
		completion: 85,
		active:     []models.AgentType{models.AgentDeveloper},
		next:       []string{"Defects returned to development for fixes"},
	},
}

// handleStatus folds an agent's STATUS report into the project lifecycle.
// QA signoff completes the project; every other recognized marker advances
// the phase per phaseTransitions. Unknown markers and unknown projects are
// logged and ignored.
func (o *Orchestrator) handleStatus(ctx context.Context, msg models.Message) error {
	if _, err := o.store.GetStatus(msg.ProjectID); err != nil {
		log.Printf("[orchestrator] status for unknown project %s from %s ignored", msg.ProjectID, msg.From)
		return nil
	}

	if msg.From == models.AgentTester && msg.MetaBool(models.MetaQASignoff) {
		return o.completeProject(ctx, msg)
	}

	key := markerKey{from: msg.From, marker: msg.MetaString(models.MetaPhase)}
	tr, ok := phaseTransitions[key]
	if !ok {
		log.Printf("[orchestrator] unrecognized status marker %q from %s for project %s",
			key.marker, msg.From, msg.ProjectID)
		return nil
	}

	if err := o.applyTransition(msg.ProjectID, tr); err != nil {
		return fmt.Errorf("apply phase %s: %w", tr.phase, err)
	}

	o.trace.Log("project %s: %s reported %q, phase -> %s (%.0f%%)",
		msg.ProjectID, msg.From, key.marker, tr.phase, tr.completion)
	o.notifier.NotifyUser(msg.ProjectID, fmt.Sprintf("Phase: %s (%.0f%% complete)", tr.phase, tr.completion))
	return nil
}

// applyTransition writes a transition to the project status. Completion is
// monotonic: a transition never lowers the recorded percentage, so a late or
// re-delivered marker cannot walk progress backwards.
func (o *Orchestrator) applyTransition(projectID string, tr phaseTransition) error {
	return o.updateStatus(projectID, func(s *models.ProjectStatus) {
		s.CurrentPhase = tr.phase
		if tr.completion > s.CompletionPercentage {
			s.CompletionPercentage = tr.completion
		}
		s.ActiveAgents = append([]models.AgentType(nil), tr.active...)
		s.NextActions = append([]string(nil), tr.next...)
	})
}

// completeProject finalizes a project on QA signoff: phase completed, 100%,
// and a delivery summary synthesized for the user.
func (o *Orchestrator) completeProject(ctx context.Context, msg models.Message) error {
	if err := o.updateStatus(msg.ProjectID, func(s *models.ProjectStatus) {
		s.CurrentPhase = models.PhaseCompleted
		s.CompletionPercentage = 100
		s.ActiveAgents = nil
		s.NextActions = []string{"Project delivered"}
	}); err != nil {
		return fmt.Errorf("complete project: %w", err)
	}

	o.trace.Log("project %s completed with QA signoff", msg.ProjectID)
	o.notifier.NotifyUser(msg.ProjectID, o.completionSummary(ctx, msg))
	return nil
}

// completionSummary asks the model for a short delivery summary. Any model
// failure falls back to a fixed summary so completion never depends on the
// LLM being reachable.
func (o *Orchestrator) completionSummary(ctx context.Context, msg models.Message) string {
	fallback := fmt.Sprintf("Project %s delivered: workflow completed with QA signoff.", msg.ProjectID)

	spec, err := o.store.GetProject(msg.ProjectID)
	if err != nil {
		return fallback
	}

	prompt := fmt.Sprintf(`Write a two-sentence delivery summary for the user.

Project: %s
Specification: %s
QA verdict: %s`, spec.Title, spec.Description, msg.Content)

	summary, err := o.gen.GenerateText(ctx, prompt,
		"You are the orchestrator of a software delivery team reporting completion to the project owner.")
	if err != nil || strings.TrimSpace(summary) == "" {
		return fallback
	}
	return strings.TrimSpace(summary)
}
