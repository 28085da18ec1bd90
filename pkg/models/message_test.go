package models

import "testing"

func TestAgentTypeValid(t *testing.T) {
	for _, a := range AllAgentTypes() {
		if !a.Valid() {
			t.Errorf("%s should be valid", a)
		}
	}
	if AgentType("manager").Valid() {
		t.Error("unknown agent type should be invalid")
	}
}

func TestAgentTypeTopic(t *testing.T) {
	if got := AgentBA.Topic(); got != "agents/ba" {
		t.Errorf("Topic() = %q, want agents/ba", got)
	}
	if got := AgentOrchestrator.Topic(); got != "agents/orchestrator" {
		t.Errorf("Topic() = %q, want agents/orchestrator", got)
	}
}

func TestMessageTypeValid(t *testing.T) {
	valid := []MessageType{
		MessageSpecification, MessageQuery, MessageResponse,
		MessageApproval, MessageArtifact, MessageError, MessageStatus,
	}
	for _, m := range valid {
		if !m.Valid() {
			t.Errorf("%s should be valid", m)
		}
	}
	if MessageType("gossip").Valid() {
		t.Error("unknown message type should be invalid")
	}
}

func TestPriorityOrdering(t *testing.T) {
	if !PriorityLow.Less(PriorityMedium) {
		t.Error("low should order before medium")
	}
	if !PriorityMedium.Less(PriorityHigh) {
		t.Error("medium should order before high")
	}
	if !PriorityHigh.Less(PriorityCritical) {
		t.Error("high should order before critical")
	}
	if PriorityCritical.Less(PriorityLow) {
		t.Error("critical should not order before low")
	}
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage(AgentBA, AgentArchitect, MessageSpecification, "build it", "proj-1", nil)

	if msg.ID == "" {
		t.Error("ID should be generated")
	}
	if msg.From != AgentBA || msg.To != AgentArchitect {
		t.Errorf("routing = %s -> %s, want ba -> architect", msg.From, msg.To)
	}
	if msg.Priority != PriorityMedium {
		t.Errorf("default priority = %s, want medium", msg.Priority)
	}
	if msg.Metadata == nil {
		t.Error("metadata should never be nil")
	}
	if msg.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
}

func TestMessageWithPriority(t *testing.T) {
	msg := NewMessage(AgentBA, AgentOrchestrator, MessageError, "boom", "proj-1", nil)
	high := msg.WithPriority(PriorityHigh)

	if high.Priority != PriorityHigh {
		t.Errorf("priority = %s, want high", high.Priority)
	}
	if msg.Priority != PriorityMedium {
		t.Error("WithPriority should not mutate the original")
	}
}

func TestMessageMetaAccessors(t *testing.T) {
	msg := NewMessage(AgentTester, AgentOrchestrator, MessageStatus, "done", "proj-1", map[string]any{
		MetaPhase:     "qa_review",
		MetaQASignoff: true,
		"count":       3,
	})

	if got := msg.MetaString(MetaPhase); got != "qa_review" {
		t.Errorf("MetaString(phase) = %q", got)
	}
	if got := msg.MetaString("missing"); got != "" {
		t.Errorf("MetaString(missing) = %q, want empty", got)
	}
	if got := msg.MetaString("count"); got != "" {
		t.Errorf("MetaString on non-string = %q, want empty", got)
	}
	if !msg.MetaBool(MetaQASignoff) {
		t.Error("MetaBool(qa_signoff) should be true")
	}
	if msg.MetaBool(MetaPhase) {
		t.Error("MetaBool on non-bool should be false")
	}
}
