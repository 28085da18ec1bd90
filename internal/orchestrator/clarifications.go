package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/guildhq/guild/pkg/models"
)

// roleLabels frame clarification questions for the user by who is asking.
var roleLabels = map[models.AgentType]string{
	models.AgentBA:           "Business Analyst",
	models.AgentArchitect:    "System Architect",
	models.AgentDeveloper:    "Developer",
	models.AgentTester:       "QA Tester",
	models.AgentOrchestrator: "Orchestrator",
}

func roleLabel(t models.AgentType) string {
	if l, ok := roleLabels[t]; ok {
		return l
	}
	return string(t)
}

// handleQuery surfaces an agent's clarification question to the user. The
// project parks in awaiting_clarification until SendClarification delivers
// an answer; the query stays in the store's unresolved set (the broker
// already appended it to history on delivery).
func (o *Orchestrator) handleQuery(ctx context.Context, msg models.Message) error {
	if err := o.updateStatus(msg.ProjectID, func(s *models.ProjectStatus) {
		s.CurrentPhase = models.PhaseAwaitingClarification
		s.NextActions = []string{fmt.Sprintf("Answer the %s's question to continue", roleLabel(msg.From))}
	}); err != nil {
		log.Printf("[orchestrator] query for unknown project %s from %s ignored", msg.ProjectID, msg.From)
		return nil
	}

	o.trace.Log("project %s: clarification requested by %s (message %s)", msg.ProjectID, msg.From, msg.ID)
	o.notifier.NotifyUser(msg.ProjectID,
		fmt.Sprintf("The %s needs clarification:\n%s", roleLabel(msg.From), msg.Content))
	return nil
}

// SendClarification delivers the user's answer to the most recent unresolved
// clarification question. Only that query is answered and marked resolved;
// older unanswered queries stay in the unresolved set until they get their
// own answer.
func (o *Orchestrator) SendClarification(ctx context.Context, projectID, answer string) error {
	pending, err := o.store.UnresolvedQueries(projectID)
	if err != nil {
		return fmt.Errorf("send clarification: %w", err)
	}
	if len(pending) == 0 {
		return fmt.Errorf("send clarification: project %s has no pending questions", projectID)
	}

	query := pending[len(pending)-1]
	if err := o.store.MarkQueryResolved(projectID, query.ID); err != nil {
		return fmt.Errorf("send clarification: %w", err)
	}

	o.trace.Log("project %s: user answered query %s from %s", projectID, query.ID, query.From)

	delivered := o.Send(query.From, models.MessageResponse, answer, projectID, map[string]any{
		models.MetaUserClarification: true,
		models.MetaOriginalQueryID:   query.ID,
	})
	if delivered == 0 {
		return fmt.Errorf("send clarification: %s is not listening", query.From)
	}

	if err := o.updateStatus(projectID, func(s *models.ProjectStatus) {
		s.NextActions = []string{fmt.Sprintf("%s is incorporating your answer", roleLabel(query.From))}
	}); err != nil {
		log.Printf("[orchestrator] update status after clarification for %s: %v", projectID, err)
	}
	return nil
}

// ExpireClarifications reminds the user about clarification questions that
// have sat unanswered longer than the configured expiry. Expiry never fails
// or advances the project; it only surfaces a reminder and records an issue.
// A zero expiry disables the sweep.
func (o *Orchestrator) ExpireClarifications(ctx context.Context) {
	if o.clarifyExpiry <= 0 {
		return
	}

	statuses, err := o.store.ListStatuses()
	if err != nil {
		log.Printf("[orchestrator] list statuses for clarification sweep: %v", err)
		return
	}

	cutoff := time.Now().Add(-o.clarifyExpiry)
	for _, status := range statuses {
		if status.CurrentPhase != models.PhaseAwaitingClarification {
			continue
		}
		pending, err := o.store.UnresolvedQueries(status.ProjectID)
		if err != nil || len(pending) == 0 {
			continue
		}
		oldest := pending[0]
		if oldest.Timestamp.After(cutoff) {
			continue
		}

		issue := fmt.Sprintf("clarification from %s unanswered since %s",
			roleLabel(oldest.From), oldest.Timestamp.Format(time.RFC3339))
		o.appendIssue(status.ProjectID, issue)
		o.notifier.NotifyUser(status.ProjectID,
			fmt.Sprintf("Reminder: the %s is still waiting for an answer:\n%s", roleLabel(oldest.From), oldest.Content))
		o.trace.Log("project %s: clarification reminder for query %s", status.ProjectID, oldest.ID)
	}
}
