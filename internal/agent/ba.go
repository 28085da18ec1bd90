package agent

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/guildhq/guild/internal/artifact"
	"github.com/guildhq/guild/internal/broker"
	"github.com/guildhq/guild/internal/llm"
	"github.com/guildhq/guild/pkg/models"
)

// BA is the Business Analyst agent. It analyzes incoming specifications,
// asks the user for clarification when requirements are ambiguous, reviews
// the architect's design, and hands work packages to the Developer and
// Tester.
type BA struct {
	*Agent
	gen     llm.Generator
	sink    artifact.Sink
	persona string
}

// NewBA creates the Business Analyst agent.
func NewBA(bus *broker.Broker, gen llm.Generator, sink artifact.Sink) *BA {
	b := &BA{
		Agent:   New(models.AgentBA, bus),
		gen:     gen,
		sink:    sink,
		persona: mustPersona(models.AgentBA),
	}
	b.Handle(models.MessageSpecification, b.handleSpecification)
	b.Handle(models.MessageResponse, b.handleClarificationAnswer)
	b.Handle(models.MessageArtifact, b.handleDesignReview)
	b.Handle(models.MessageStatus, b.handleStatusRelay)
	return b
}

// baAnalysis is the JSON shape the BA asks the model for.
type baAnalysis struct {
	RefinedSpecification string   `json:"refined_specification"`
	Requirements         []string `json:"requirements"`
	ClarificationsNeeded []string `json:"clarifications_needed"`
}

// handleSpecification analyzes a specification. Ambiguous requirements
// produce a QUERY to the orchestrator; otherwise the refined specification
// goes to the Architect.
func (b *BA) handleSpecification(ctx context.Context, msg models.Message) error {
	prompt := fmt.Sprintf(`Analyze this project specification and respond with JSON:
{"refined_specification": "<expanded specification>", "requirements": ["..."], "clarifications_needed": ["<questions for the user, empty if none>"]}

Specification:
%s`, msg.Content)

	raw, err := b.gen.GenerateText(ctx, prompt, b.persona)
	if err != nil {
		return fmt.Errorf("analyze specification: %w", err)
	}

	var analysis baAnalysis
	if !decodeLooseJSON(raw, &analysis) {
		// Malformed model output: treat the raw text as the refined
		// specification and proceed without clarifications.
		analysis = baAnalysis{RefinedSpecification: raw}
	}
	if strings.TrimSpace(analysis.RefinedSpecification) == "" {
		analysis.RefinedSpecification = msg.Content
	}

	// Recovery retries and clarification follow-ups never re-query the
	// user; that would loop the workflow.
	canQuery := !msg.MetaBool(models.MetaRecoveryAttempt) &&
		!msg.MetaBool(models.MetaWorkflowRestart) &&
		!msg.MetaBool(models.MetaUserClarification)

	if len(analysis.ClarificationsNeeded) > 0 && canQuery {
		b.Send(models.AgentOrchestrator, models.MessageQuery,
			strings.Join(analysis.ClarificationsNeeded, "\n"),
			msg.ProjectID, nil)
		return nil
	}

	b.saveAnalysis(ctx, msg.ProjectID, analysis)
	b.forwardToArchitect(msg.ProjectID, analysis)
	return nil
}

// handleClarificationAnswer folds the user's answer into the analysis and
// moves the workflow forward to the Architect.
func (b *BA) handleClarificationAnswer(ctx context.Context, msg models.Message) error {
	prompt := fmt.Sprintf(`The user answered your clarification questions:
%s

Update your analysis and respond with JSON:
{"refined_specification": "<expanded specification>", "requirements": ["..."], "clarifications_needed": []}`, msg.Content)

	raw, err := b.gen.GenerateText(ctx, prompt, b.persona)
	if err != nil {
		return fmt.Errorf("incorporate clarification: %w", err)
	}

	var analysis baAnalysis
	if !decodeLooseJSON(raw, &analysis) {
		analysis = baAnalysis{RefinedSpecification: raw}
	}
	if strings.TrimSpace(analysis.RefinedSpecification) == "" {
		analysis.RefinedSpecification = msg.Content
	}

	b.saveAnalysis(ctx, msg.ProjectID, analysis)
	b.forwardToArchitect(msg.ProjectID, analysis)
	return nil
}

// handleDesignReview reviews the architect's design and dispatches work: the
// implementation package to the Developer, test preparation to the Tester.
func (b *BA) handleDesignReview(ctx context.Context, msg models.Message) error {
	prompt := fmt.Sprintf(`Review this architecture design against the project requirements.
Respond with JSON: {"summary": "<one-paragraph review>"}

Design:
%s`, msg.Content)

	raw, err := b.gen.GenerateText(ctx, prompt, b.persona)
	if err != nil {
		return fmt.Errorf("review design: %w", err)
	}

	var review struct {
		Summary string `json:"summary"`
	}
	if !decodeLooseJSON(raw, &review) || strings.TrimSpace(review.Summary) == "" {
		review.Summary = "Design accepted without automated review notes."
	}

	b.Send(models.AgentArchitect, models.MessageApproval, review.Summary, msg.ProjectID, nil)

	workPackage := fmt.Sprintf("Implement the following approved design.\n\nReview notes: %s\n\n%s",
		review.Summary, msg.Content)
	b.Send(models.AgentDeveloper, models.MessageSpecification, workPackage, msg.ProjectID, nil)

	testPrep := fmt.Sprintf("Prepare test cases for the project based on this design:\n\n%s", msg.Content)
	b.Send(models.AgentTester, models.MessageSpecification, testPrep, msg.ProjectID, nil)
	return nil
}

// handleStatusRelay forwards development-complete notices from the Developer
// to the orchestrator, which tracks the qa_testing phase off the BA's relay.
func (b *BA) handleStatusRelay(ctx context.Context, msg models.Message) error {
	phase := msg.MetaString(models.MetaPhase)
	if phase != "development_complete" {
		log.Printf("[%s] ignoring status relay with phase %q from %s", b.Type(), phase, msg.From)
		return nil
	}

	b.Send(models.AgentOrchestrator, models.MessageStatus,
		fmt.Sprintf("Development complete for project %s; QA is taking over.", msg.ProjectID),
		msg.ProjectID, map[string]any{models.MetaPhase: "development_complete"})
	return nil
}

func (b *BA) saveAnalysis(ctx context.Context, projectID string, analysis baAnalysis) {
	doc := fmt.Sprintf("# Requirements Analysis\n\n%s\n\n## Requirements\n", analysis.RefinedSpecification)
	for _, r := range analysis.Requirements {
		doc += fmt.Sprintf("- %s\n", r)
	}
	if err := b.sink.SaveArtifact(ctx, projectID, "requirements_analysis", doc); err != nil {
		log.Printf("[%s] artifact save failed: %v", b.Type(), err)
	}
}

func (b *BA) forwardToArchitect(projectID string, analysis baAnalysis) {
	spec := analysis.RefinedSpecification
	if len(analysis.Requirements) > 0 {
		spec += "\n\nRequirements:\n- " + strings.Join(analysis.Requirements, "\n- ")
	}
	b.Send(models.AgentArchitect, models.MessageSpecification, spec, projectID, nil)
}
