package domain

import "time"

// EngineState is the dialer lifecycle state.
type EngineState string

const (
	EngineStopped EngineState = "stopped"
	EngineRunning EngineState = "running"
	EnginePaused  EngineState = "paused"
)

// ActiveCallView pairs an active call with a copy of its lead.
type ActiveCallView struct {
	CallID    string     `json:"call_id"`
	Lead      Lead       `json:"lead"`
	StartTime time.Time  `json:"start_time"`
	Status    CallStatus `json:"status"`
}

// Snapshot is a read-only view of the engine.
type Snapshot struct {
	State          EngineState      `json:"state"`
	QueueLength    int              `json:"queue_length"`
	PendingCount   int              `json:"pending_count"`
	CompletedCount int              `json:"completed_count"`
	FailedCount    int              `json:"failed_count"`
	CurrentLead    *Lead            `json:"current_lead"`
	IsInCall       bool             `json:"is_in_call"`
	ActiveCalls    []ActiveCallView `json:"active_calls"`
	Waiting        bool             `json:"waiting"`
	WaitingUntil   *time.Time       `json:"waiting_until,omitempty"`
}
