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

// Architect is the System Architect agent. It turns the BA's refined
// specification into an architecture design, sends it to the BA for review,
// and reports the design phase to the orchestrator.
type Architect struct {
	*Agent
	gen     llm.Generator
	sink    artifact.Sink
	persona string
}

// NewArchitect creates the System Architect agent.
func NewArchitect(bus *broker.Broker, gen llm.Generator, sink artifact.Sink) *Architect {
	a := &Architect{
		Agent:   New(models.AgentArchitect, bus),
		gen:     gen,
		sink:    sink,
		persona: mustPersona(models.AgentArchitect),
	}
	a.Handle(models.MessageSpecification, a.handleSpecification)
	a.Handle(models.MessageResponse, a.handleSpecification)
	a.Handle(models.MessageApproval, a.handleApproval)
	return a
}

// architectDesign is the JSON shape the Architect asks the model for.
type architectDesign struct {
	SystemOverview string            `json:"system_overview"`
	TechStack      map[string]string `json:"tech_stack"`
	Components     []string          `json:"components"`
}

// handleSpecification produces an architecture design from a refined
// specification (or a reduced-scope recovery request).
func (a *Architect) handleSpecification(ctx context.Context, msg models.Message) error {
	prompt := fmt.Sprintf(`Design an architecture for this specification and respond with JSON:
{"system_overview": "<overview>", "tech_stack": {"<component>": "<technology>"}, "components": ["..."]}

Specification:
%s`, msg.Content)

	raw, err := a.gen.GenerateText(ctx, prompt, a.persona)
	if err != nil {
		return fmt.Errorf("design architecture: %w", err)
	}

	var design architectDesign
	if !decodeLooseJSON(raw, &design) {
		design = architectDesign{SystemOverview: raw}
	}
	if strings.TrimSpace(design.SystemOverview) == "" {
		design.SystemOverview = raw
	}

	doc := a.renderDesign(design)
	if err := a.sink.SaveArtifact(ctx, msg.ProjectID, "architecture_design", doc); err != nil {
		log.Printf("[%s] artifact save failed: %v", a.Type(), err)
	}

	a.Send(models.AgentBA, models.MessageArtifact, doc, msg.ProjectID, nil)
	a.Send(models.AgentOrchestrator, models.MessageStatus,
		fmt.Sprintf("Architecture design completed for project %s.", msg.ProjectID),
		msg.ProjectID, map[string]any{models.MetaPhase: "architecture_design_completed"})
	return nil
}

// handleApproval acknowledges the BA's review. Nothing further to do; the BA
// dispatches the work packages itself.
func (a *Architect) handleApproval(ctx context.Context, msg models.Message) error {
	log.Printf("[%s] design approved for project %s: %s", a.Type(), msg.ProjectID, firstLine(msg.Content))
	return nil
}

func (a *Architect) renderDesign(design architectDesign) string {
	var sb strings.Builder
	sb.WriteString("# Architecture Design\n\n")
	sb.WriteString(design.SystemOverview)
	sb.WriteString("\n")
	if len(design.TechStack) > 0 {
		sb.WriteString("\n## Tech Stack\n")
		for component, tech := range design.TechStack {
			fmt.Fprintf(&sb, "- %s: %s\n", component, tech)
		}
	}
	if len(design.Components) > 0 {
		sb.WriteString("\n## Components\n")
		for _, c := range design.Components {
			fmt.Fprintf(&sb, "- %s\n", c)
		}
	}
	return sb.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
