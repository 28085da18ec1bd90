package models

import "time"

// AgentStatus represents the runtime state of an agent's processing loop.
type AgentStatus string

const (
	// AgentIdle indicates the agent is waiting for messages.
	AgentIdle AgentStatus = "idle"
	// AgentWorking indicates the agent is processing a message.
	AgentWorking AgentStatus = "working"
	// AgentErrored indicates the agent's last handler failed.
	AgentErrored AgentStatus = "error"
	// AgentStopped indicates the agent has shut down. Terminal.
	AgentStopped AgentStatus = "stopped"
)

// Valid returns true if the status is a known value.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentIdle, AgentWorking, AgentErrored, AgentStopped:
		return true
	default:
		return false
	}
}

// AgentState is the per-agent runtime record. It is created when the agent
// starts and mutated only by that agent's own processing loop.
type AgentState struct {
	// AgentID is the unique identifier of the agent instance.
	AgentID string `json:"agent_id"`
	// AgentType is the agent's role.
	AgentType AgentType `json:"agent_type"`
	// Status is the current loop state.
	Status AgentStatus `json:"status"`
	// CurrentTask describes the message being processed, if any.
	CurrentTask string `json:"current_task,omitempty"`
	// LastActivity is when the agent last changed state.
	LastActivity time.Time `json:"last_activity"`
}
