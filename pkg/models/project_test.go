package models

import (
	"testing"
	"time"
)

func TestDetectDomain(t *testing.T) {
	tests := []struct {
		spec string
		want ProjectDomain
	}{
		{"A payment processing platform for banks", DomainFinancial},
		{"Track factory production lines", DomainManufacturing},
		{"Hospital appointment scheduling", DomainHealthcare},
		{"Online shop with cart and checkout", DomainEcommerce},
		{"Student grade tracking for schools", DomainEducation},
		{"Parcel shipping and delivery tracker", DomainLogistics},
		{"A todo list application", DomainGeneral},
		{"", DomainGeneral},
	}

	for _, tt := range tests {
		if got := DetectDomain(tt.spec); got != tt.want {
			t.Errorf("DetectDomain(%q) = %s, want %s", tt.spec, got, tt.want)
		}
	}
}

func TestProjectStatusClone(t *testing.T) {
	status := &ProjectStatus{
		ProjectID:            "proj-1",
		CurrentPhase:         PhaseQATesting,
		CompletionPercentage: 70,
		ActiveAgents:         []AgentType{AgentTester},
		NextActions:          []string{"Tester validating build"},
		Issues:               []string{"flaky integration suite"},
		LastUpdated:          time.Now(),
	}

	clone := status.Clone()
	clone.ActiveAgents[0] = AgentDeveloper
	clone.Issues = append(clone.Issues, "new issue")

	if status.ActiveAgents[0] != AgentTester {
		t.Error("clone mutation leaked into original ActiveAgents")
	}
	if len(status.Issues) != 1 {
		t.Error("clone mutation leaked into original Issues")
	}

	var nilStatus *ProjectStatus
	if nilStatus.Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}

func TestProjectStatusTerminal(t *testing.T) {
	tests := []struct {
		phase string
		want  bool
	}{
		{PhaseCompleted, true},
		{PhaseFailed, true},
		{PhaseRequirementsAnalysis, false},
		{PhaseErrorRecovery, false},
		{PhaseAwaitingClarification, false},
	}
	for _, tt := range tests {
		s := &ProjectStatus{CurrentPhase: tt.phase}
		if got := s.Terminal(); got != tt.want {
			t.Errorf("Terminal(%s) = %v, want %v", tt.phase, got, tt.want)
		}
	}
}
