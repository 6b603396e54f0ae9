package models

import "time"

// AgentStatus is the lifecycle state of a pipeline or query agent.
type AgentStatus string

// Agent status values
const (
	AgentStatusIdle      AgentStatus = "idle"
	AgentStatusRunning   AgentStatus = "running"
	AgentStatusCompleted AgentStatus = "completed"
	AgentStatusFailed    AgentStatus = "failed"
	AgentStatusCancelled AgentStatus = "cancelled"
)

// IsTerminal reports whether no further transition is possible.
func (s AgentStatus) IsTerminal() bool {
	return s == AgentStatusCompleted || s == AgentStatusFailed || s == AgentStatusCancelled
}

// Activity actions emitted by agents.
const (
	ActionStarted   = "started"
	ActionProgress  = "progress"
	ActionCompleted = "completed"
	ActionFailed    = "failed"
	ActionCancelled = "cancelled"
)

// ActivityEvent records one moment of an agent's execution. Values are never
// modified after creation.
type ActivityEvent struct {
	TaskID    string         `json:"task_id,omitempty"`
	AgentName string         `json:"agent_name"`
	Action    string         `json:"action"`
	Message   string         `json:"message,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Status    AgentStatus    `json:"status"`
	Detail    map[string]any `json:"detail,omitempty"`
}
