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

// Developer is the Developer agent. It implements approved work packages,
// ships builds to the Tester, fixes defects the Tester reports, and reports
// the development phase upstream.
type Developer struct {
	*Agent
	gen     llm.Generator
	sink    artifact.Sink
	persona string
}

// NewDeveloper creates the Developer agent.
func NewDeveloper(bus *broker.Broker, gen llm.Generator, sink artifact.Sink) *Developer {
	d := &Developer{
		Agent:   New(models.AgentDeveloper, bus),
		gen:     gen,
		sink:    sink,
		persona: mustPersona(models.AgentDeveloper),
	}
	d.Handle(models.MessageSpecification, d.handleWorkPackage)
	d.Handle(models.MessageArtifact, d.handleDefectReport)
	return d
}

// devBuild is the JSON shape the Developer asks the model for.
type devBuild struct {
	Implementation string   `json:"implementation"`
	Notes          []string `json:"notes"`
}

// handleWorkPackage implements an approved design (or a reduced-scope
// recovery request).
func (d *Developer) handleWorkPackage(ctx context.Context, msg models.Message) error {
	prompt := fmt.Sprintf(`Implement this work package and respond with JSON:
{"implementation": "<code and file layout>", "notes": ["<what is stubbed or incomplete>"]}

Work package:
%s`, msg.Content)

	return d.build(ctx, msg, prompt)
}

// handleDefectReport fixes defects found by QA and resubmits the build.
func (d *Developer) handleDefectReport(ctx context.Context, msg models.Message) error {
	prompt := fmt.Sprintf(`QA reported these defects. Fix them and respond with JSON:
{"implementation": "<corrected code>", "notes": ["<what changed>"]}

Defect report:
%s`, msg.Content)

	return d.build(ctx, msg, prompt)
}

// build runs one implementation round: generate, persist, ship to QA, and
// report development_complete.
func (d *Developer) build(ctx context.Context, msg models.Message, prompt string) error {
	raw, err := d.gen.GenerateText(ctx, prompt, d.persona)
	if err != nil {
		return fmt.Errorf("implement: %w", err)
	}

	var out devBuild
	if !decodeLooseJSON(raw, &out) {
		out = devBuild{Implementation: raw}
	}
	if strings.TrimSpace(out.Implementation) == "" {
		out.Implementation = raw
	}

	doc := out.Implementation
	if len(out.Notes) > 0 {
		doc += "\n\n## Notes\n- " + strings.Join(out.Notes, "\n- ")
	}
	if err := d.sink.SaveArtifact(ctx, msg.ProjectID, "implementation", doc); err != nil {
		log.Printf("[%s] artifact save failed: %v", d.Type(), err)
	}

	d.Send(models.AgentTester, models.MessageArtifact, doc, msg.ProjectID, nil)
	d.Send(models.AgentOrchestrator, models.MessageStatus,
		fmt.Sprintf("Development complete for project %s; build handed to QA.", msg.ProjectID),
		msg.ProjectID, map[string]any{models.MetaPhase: "development_complete"})
	d.Send(models.AgentBA, models.MessageStatus,
		fmt.Sprintf("Development complete for project %s.", msg.ProjectID),
		msg.ProjectID, map[string]any{models.MetaPhase: "development_complete"})
	return nil
}
