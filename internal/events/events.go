// Package events carries the engine's observer registry.
package events

import (
	"time"

	"github.com/acme/predictive-dialer/internal/domain"
)

// Name identifies an engine event.
type Name string

const (
	StateChanged          Name = "stateChanged"
	QueueUpdated          Name = "queueUpdated"
	LeadStatusChanged     Name = "leadStatusChanged"
	CallInitiated         Name = "callInitiated"
	CallAnswered          Name = "callAnswered"
	CallEnded             Name = "callEnded"
	CallTimeout           Name = "callTimeout"
	WaitingStarted        Name = "waitingStarted"
	WaitingEnded          Name = "waitingEnded"
	QueueEmpty            Name = "queueEmpty"
	ProviderEventReceived Name = "providerEvent"
)

// Event is one emission. Payload is one of the payload types below.
type Event struct {
	Name    Name      `json:"name"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload,omitempty"`
}

// StatePayload accompanies StateChanged.
type StatePayload struct {
	State domain.EngineState `json:"state"`
}

// QueuePayload accompanies QueueUpdated.
type QueuePayload struct {
	Leads []domain.Lead `json:"leads"`
}

// LeadPayload accompanies LeadStatusChanged.
type LeadPayload struct {
	Lead domain.Lead `json:"lead"`
}

// CallPayload accompanies the call events.
type CallPayload struct {
	CallID    string            `json:"call_id"`
	Lead      domain.Lead       `json:"lead"`
	StartTime time.Time         `json:"start_time"`
	Status    domain.CallStatus `json:"status"`
}

// WaitingPayload accompanies WaitingStarted.
type WaitingPayload struct {
	Duration time.Duration `json:"duration"`
}

// ProviderPayload accompanies ProviderEventReceived. CallID is the active
// call the event resolved to and stays empty when nothing matched.
type ProviderPayload struct {
	ProviderCallID string            `json:"provider_call_id,omitempty"`
	RawType        string            `json:"raw_type,omitempty"`
	Type           domain.EventType  `json:"type"`
	CallID         string            `json:"call_id,omitempty"`
	LeadID         string            `json:"lead_id,omitempty"`
	Fields         map[string]string `json:"fields,omitempty"`
}
