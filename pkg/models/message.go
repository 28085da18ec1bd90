// Package models defines the shared data types exchanged between Guild agents.
package models

import (
	"time"

	"github.com/google/uuid"
)

// AgentType identifies a logical agent role. It doubles as the broker topic
// suffix for that role (see Topic).
type AgentType string

const (
	// AgentBA is the Business Analyst agent.
	AgentBA AgentType = "ba"
	// AgentArchitect is the System Architect agent.
	AgentArchitect AgentType = "architect"
	// AgentDeveloper is the Developer agent.
	AgentDeveloper AgentType = "developer"
	// AgentTester is the QA Tester agent.
	AgentTester AgentType = "tester"
	// AgentOrchestrator is the Orchestrator agent coordinating the workflow.
	AgentOrchestrator AgentType = "orchestrator"
)

// Valid returns true if the agent type is a known value.
func (a AgentType) Valid() bool {
	switch a {
	case AgentBA, AgentArchitect, AgentDeveloper, AgentTester, AgentOrchestrator:
		return true
	default:
		return false
	}
}

// Topic returns the broker topic this agent type listens on.
func (a AgentType) Topic() string {
	return "agents/" + string(a)
}

// AllAgentTypes lists every known agent type.
func AllAgentTypes() []AgentType {
	return []AgentType{AgentBA, AgentArchitect, AgentDeveloper, AgentTester, AgentOrchestrator}
}

// MessageType classifies a message and selects the handler an agent invokes.
type MessageType string

const (
	// MessageSpecification carries a project specification or work request.
	MessageSpecification MessageType = "specification"
	// MessageQuery asks for clarification, routed to the user via the orchestrator.
	MessageQuery MessageType = "query"
	// MessageResponse answers a previous query.
	MessageResponse MessageType = "response"
	// MessageApproval signals acceptance of another agent's output.
	MessageApproval MessageType = "approval"
	// MessageArtifact carries a produced artifact (design, code, test report).
	MessageArtifact MessageType = "artifact"
	// MessageError reports a processing failure back to the sender or orchestrator.
	MessageError MessageType = "error"
	// MessageStatus reports workflow progress to the orchestrator.
	MessageStatus MessageType = "status"
)

// Valid returns true if the message type is a known value.
func (m MessageType) Valid() bool {
	switch m {
	case MessageSpecification, MessageQuery, MessageResponse, MessageApproval,
		MessageArtifact, MessageError, MessageStatus:
		return true
	default:
		return false
	}
}

// Priority indicates message urgency. It is carried for visibility and audit
// only; mailboxes dequeue in FIFO order regardless of priority.
type Priority string

const (
	// PriorityLow is for informational traffic.
	PriorityLow Priority = "low"
	// PriorityMedium is the default priority.
	PriorityMedium Priority = "medium"
	// PriorityHigh is for errors and recovery traffic.
	PriorityHigh Priority = "high"
	// PriorityCritical is for escalations requiring user attention.
	PriorityCritical Priority = "critical"
)

// Valid returns true if the priority is a known value.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// rank orders priorities from low to critical.
func (p Priority) rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityMedium:
		return 1
	case PriorityHigh:
		return 2
	case PriorityCritical:
		return 3
	default:
		return -1
	}
}

// Less reports whether p orders before other (LOW < MEDIUM < HIGH < CRITICAL).
func (p Priority) Less(other Priority) bool {
	return p.rank() < other.rank()
}

// Metadata keys with defined semantics across agents.
const (
	// MetaPhase marks a workflow phase transition in a STATUS message.
	MetaPhase = "phase"
	// MetaQASignoff marks QA approval in a Tester STATUS message.
	MetaQASignoff = "qa_signoff"
	// MetaRecoveryAttempt marks a message re-sent by a recovery strategy.
	MetaRecoveryAttempt = "recovery_attempt"
	// MetaWorkflowRestart marks a specification re-sent on workflow restart.
	MetaWorkflowRestart = "workflow_restart"
	// MetaUserClarification marks a response originating from the end user.
	MetaUserClarification = "user_clarification"
	// MetaOriginalQueryID links a clarification response to the query it resolves.
	MetaOriginalQueryID = "original_query_id"
	// MetaOriginalError carries the error text that triggered a recovery attempt.
	MetaOriginalError = "original_error"
	// MetaOriginalMessageID links an ERROR message to the message that failed.
	MetaOriginalMessageID = "original_message_id"
	// MetaInitiatedBy records who started a project workflow.
	MetaInitiatedBy = "initiated_by"
)

// Message is one unit of communication between two agents. It is immutable
// once constructed: the broker delivers it verbatim and the workflow history
// records it as published.
type Message struct {
	// ID is the unique identifier for this message.
	ID string `json:"id"`
	// From is the sending agent.
	From AgentType `json:"from"`
	// To is the receiving agent.
	To AgentType `json:"to"`
	// Type classifies the message and selects the receiving handler.
	Type MessageType `json:"type"`
	// Content is the message payload.
	Content string `json:"content"`
	// Metadata carries auxiliary key/value context (phase markers, flags).
	Metadata map[string]any `json:"metadata,omitempty"`
	// ProjectID is the project this message belongs to.
	ProjectID string `json:"project_id"`
	// Priority indicates urgency. Advisory only, never affects ordering.
	Priority Priority `json:"priority"`
	// Timestamp is when the message was created.
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage constructs a message with a fresh ID and timestamp.
// Metadata may be nil.
func NewMessage(from, to AgentType, typ MessageType, content, projectID string, metadata map[string]any) Message {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Message{
		ID:        uuid.New().String(),
		From:      from,
		To:        to,
		Type:      typ,
		Content:   content,
		Metadata:  metadata,
		ProjectID: projectID,
		Priority:  PriorityMedium,
		Timestamp: time.Now(),
	}
}

// WithPriority returns a copy of the message with the given priority.
func (m Message) WithPriority(p Priority) Message {
	m.Priority = p
	return m
}

// MetaString returns the metadata value for key as a string, or "" when the
// key is absent or not a string.
func (m Message) MetaString(key string) string {
	if v, ok := m.Metadata[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// MetaBool returns the metadata value for key as a bool, or false when the
// key is absent or not a bool.
func (m Message) MetaBool(key string) bool {
	if v, ok := m.Metadata[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}
