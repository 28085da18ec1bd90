package orchestrator

import (
	"context"
	"fmt"
	"log"

	"github.com/guildhq/guild/pkg/models"
)

// recoveryScopes describe the reduced-scope retry each worker role gets when
// it reports a failure. The retry is a fresh SPECIFICATION built from the
// stored project record, flagged so the receiving agent skips clarification
// loops.
var recoveryScopes = map[models.AgentType]string{
	models.AgentBA: "Re-analyze this specification with a simplified approach. " +
		"Capture only the essential requirements and do not ask clarification questions.",
	models.AgentArchitect: "Produce a simplified architecture for this specification. " +
		"Prefer a minimal, conventional design over completeness.",
	models.AgentDeveloper: "Implement a minimal working version of this specification. " +
		"Reduce scope to the core features and stub the rest.",
	models.AgentTester: "Run a reduced verification pass for this specification. " +
		"Cover only the critical paths.",
}

// handleError runs failure recovery when an agent reports that it could not
// process a message. Each failure gets one reduced-scope retry; a failure of
// the retry itself escalates the project to failed. Errors reported against
// a terminal project are ignored.
func (o *Orchestrator) handleError(ctx context.Context, msg models.Message) error {
	status, err := o.store.GetStatus(msg.ProjectID)
	if err != nil {
		log.Printf("[orchestrator] error report for unknown project %s from %s ignored", msg.ProjectID, msg.From)
		return nil
	}
	if status.Terminal() {
		log.Printf("[orchestrator] error report for %s project %s ignored", status.CurrentPhase, msg.ProjectID)
		return nil
	}

	o.trace.Log("project %s: %s reported error: %s", msg.ProjectID, msg.From, msg.Content)
	o.notifier.NotifyUser(msg.ProjectID,
		fmt.Sprintf("The %s hit a problem; attempting recovery.", roleLabel(msg.From)))

	if o.alreadyRetried(msg) {
		o.escalate(msg, "recovery attempt failed")
		return nil
	}

	if err := o.updateStatus(msg.ProjectID, func(s *models.ProjectStatus) {
		s.CurrentPhase = models.PhaseErrorRecovery
		s.Issues = append(s.Issues, fmt.Sprintf("%s error: %s", msg.From, msg.Content))
		s.NextActions = []string{fmt.Sprintf("Retrying %s with reduced scope", roleLabel(msg.From))}
	}); err != nil {
		return fmt.Errorf("record error: %w", err)
	}

	spec, err := o.store.GetProject(msg.ProjectID)
	if err != nil {
		o.escalate(msg, fmt.Sprintf("project record unavailable: %v", err))
		return nil
	}

	scope, ok := recoveryScopes[msg.From]
	if !ok {
		o.restartWorkflow(msg, spec)
		return nil
	}

	retry := models.NewMessage(models.AgentOrchestrator, msg.From, models.MessageSpecification,
		fmt.Sprintf("%s\n\nSpecification:\n%s", scope, spec.Description),
		msg.ProjectID,
		map[string]any{
			models.MetaRecoveryAttempt: true,
			models.MetaOriginalError:   msg.Content,
		},
	).WithPriority(models.PriorityHigh)

	if o.Publish(retry) == 0 {
		o.escalate(msg, fmt.Sprintf("%s is not listening for the retry", msg.From))
		return nil
	}

	o.trace.Log("project %s: recovery retry sent to %s", msg.ProjectID, msg.From)
	return nil
}

// alreadyRetried reports whether the message the agent failed on was itself
// a recovery retry or a restart, by looking the failed message up in the
// workflow history. One retry per failure; a second failure escalates.
func (o *Orchestrator) alreadyRetried(errMsg models.Message) bool {
	originalID := errMsg.MetaString(models.MetaOriginalMessageID)
	if originalID == "" {
		return false
	}
	history, err := o.store.History(errMsg.ProjectID)
	if err != nil {
		return false
	}
	for _, m := range history {
		if m.ID == originalID {
			return m.MetaBool(models.MetaRecoveryAttempt) || m.MetaBool(models.MetaWorkflowRestart)
		}
	}
	return false
}

// restartWorkflow resets the project and re-enters the pipeline from the
// Business Analyst with the originally stored specification. Used when no
// targeted recovery exists for the failing sender.
func (o *Orchestrator) restartWorkflow(errMsg models.Message, spec *models.ProjectSpecification) {
	if err := o.updateStatus(errMsg.ProjectID, func(s *models.ProjectStatus) {
		s.CurrentPhase = models.PhaseWorkflowRestart
		s.CompletionPercentage = 0
		s.ActiveAgents = []models.AgentType{models.AgentBA}
		s.NextActions = []string{"Workflow restarted from requirements analysis"}
	}); err != nil {
		log.Printf("[orchestrator] reset status for restart of %s: %v", errMsg.ProjectID, err)
	}

	restart := models.NewMessage(models.AgentOrchestrator, models.AgentBA, models.MessageSpecification,
		spec.Description, errMsg.ProjectID,
		map[string]any{
			models.MetaWorkflowRestart: true,
			models.MetaOriginalError:   errMsg.Content,
		},
	).WithPriority(models.PriorityHigh)

	if o.Publish(restart) == 0 {
		o.escalate(errMsg, "business analyst is not listening for the restart")
		return
	}

	o.trace.Log("project %s: workflow restarted from BA after error from %s", errMsg.ProjectID, errMsg.From)
	o.notifier.NotifyUser(errMsg.ProjectID, "Workflow restarted from requirements analysis after an unrecoverable error.")
}

// escalate marks the project failed. Terminal: later error reports for the
// project are ignored and no further recovery runs.
func (o *Orchestrator) escalate(errMsg models.Message, reason string) {
	if err := o.updateStatus(errMsg.ProjectID, func(s *models.ProjectStatus) {
		s.CurrentPhase = models.PhaseFailed
		s.ActiveAgents = nil
		s.Issues = append(s.Issues, fmt.Sprintf("escalated: %s (last error from %s: %s)", reason, errMsg.From, errMsg.Content))
		s.NextActions = []string{"Manual intervention required"}
	}); err != nil {
		log.Printf("[orchestrator] escalate project %s: %v", errMsg.ProjectID, err)
	}

	o.trace.Log("project %s: escalated to failed (%s)", errMsg.ProjectID, reason)
	o.notifier.NotifyUser(errMsg.ProjectID,
		fmt.Sprintf("Project failed: %s. Manual intervention is required.", reason))
}
