package models

import (
	"strings"
	"time"
)

// Workflow phases a project moves through. The nominal order is
// requirements_analysis → architecture_design → development → qa_testing /
// qa_review → completed. The side phases are entered on clarifications,
// errors, and restarts; failed is terminal.
const (
	PhaseRequirementsAnalysis  = "requirements_analysis"
	PhaseTestPreparation       = "test_preparation"
	PhaseArchitectureDesign    = "architecture_design"
	PhaseDevelopmentComplete   = "development_complete"
	PhaseQATesting             = "qa_testing"
	PhaseQAReview              = "qa_review"
	PhaseCompleted             = "completed"
	PhaseAwaitingClarification = "awaiting_clarification"
	PhaseErrorRecovery         = "error_recovery"
	PhaseWorkflowRestart       = "workflow_restart"
	PhaseFailed                = "failed"
)

// ProjectDomain categorizes what business area a project serves.
type ProjectDomain string

const (
	DomainFinancial     ProjectDomain = "financial"
	DomainManufacturing ProjectDomain = "manufacturing"
	DomainHealthcare    ProjectDomain = "healthcare"
	DomainEcommerce     ProjectDomain = "ecommerce"
	DomainEducation     ProjectDomain = "education"
	DomainLogistics     ProjectDomain = "logistics"
	DomainGeneral       ProjectDomain = "general"
)

// Valid returns true if the domain is a known value.
func (d ProjectDomain) Valid() bool {
	switch d {
	case DomainFinancial, DomainManufacturing, DomainHealthcare,
		DomainEcommerce, DomainEducation, DomainLogistics, DomainGeneral:
		return true
	default:
		return false
	}
}

// domainKeywords maps domains to the keywords that suggest them.
var domainKeywords = []struct {
	domain   ProjectDomain
	keywords []string
}{
	{DomainFinancial, []string{"bank", "finance", "payment", "trading"}},
	{DomainManufacturing, []string{"manufactur", "factory", "production"}},
	{DomainHealthcare, []string{"health", "medical", "hospital"}},
	{DomainEcommerce, []string{"ecommerce", "shop", "retail"}},
	{DomainEducation, []string{"education", "school", "student"}},
	{DomainLogistics, []string{"logistics", "shipping", "delivery"}},
}

// DetectDomain infers a project domain from specification text by keyword
// matching. Falls back to DomainGeneral.
func DetectDomain(specification string) ProjectDomain {
	lower := strings.ToLower(specification)
	for _, dk := range domainKeywords {
		for _, kw := range dk.keywords {
			if strings.Contains(lower, kw) {
				return dk.domain
			}
		}
	}
	return DomainGeneral
}

// ProjectSpecification is the initiating description of a project, recorded
// when the orchestrator accepts a user specification.
type ProjectSpecification struct {
	// ID is the unique project identifier.
	ID string `json:"id"`
	// Title is a short project name.
	Title string `json:"title"`
	// Description is the full specification text from the user.
	Description string `json:"description"`
	// Domain is the inferred business domain.
	Domain ProjectDomain `json:"domain"`
	// Requirements lists functional requirements extracted by the BA.
	Requirements []string `json:"requirements,omitempty"`
	// Constraints lists project constraints.
	Constraints []string `json:"constraints,omitempty"`
	// CreatedAt is when the project was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the specification was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// ProjectStatus tracks where a project is in its lifecycle. It is owned and
// mutated exclusively by the orchestrator.
type ProjectStatus struct {
	// ProjectID identifies the project.
	ProjectID string `json:"project_id"`
	// CurrentPhase is the project's workflow phase.
	CurrentPhase string `json:"current_phase"`
	// CompletionPercentage is the overall progress estimate. It never
	// decreases except on a failed or workflow_restart reset.
	CompletionPercentage float64 `json:"completion_percentage"`
	// ActiveAgents lists the agents currently working on the project.
	ActiveAgents []AgentType `json:"active_agents"`
	// NextActions describes what happens next, for user display.
	NextActions []string `json:"next_actions,omitempty"`
	// Issues accumulates problems surfaced during the workflow.
	Issues []string `json:"issues,omitempty"`
	// LastUpdated is when the status last changed.
	LastUpdated time.Time `json:"last_updated"`
}

// Clone returns a deep copy of the status so readers never share slices with
// the orchestrator's writable record.
func (s *ProjectStatus) Clone() *ProjectStatus {
	if s == nil {
		return nil
	}
	cp := *s
	cp.ActiveAgents = append([]AgentType(nil), s.ActiveAgents...)
	cp.NextActions = append([]string(nil), s.NextActions...)
	cp.Issues = append([]string(nil), s.Issues...)
	return &cp
}

// Terminal reports whether the project has reached a terminal phase.
func (s *ProjectStatus) Terminal() bool {
	return s.CurrentPhase == PhaseCompleted || s.CurrentPhase == PhaseFailed
}
