package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/acme/predictive-dialer/internal/domain"
	"github.com/acme/predictive-dialer/internal/events"
)

// EventMessage is the wire form of an engine event on Kafka and redis.
type EventMessage struct {
	ID            uuid.UUID          `json:"id"`
	Name          string             `json:"name"`
	OccurredAt    time.Time          `json:"occurred_at"`
	State         domain.EngineState `json:"state,omitempty"`
	CallID        string             `json:"call_id,omitempty"`
	CallStatus    string             `json:"call_status,omitempty"`
	ProviderEvent string             `json:"provider_event,omitempty"`
	RawFields     map[string]string  `json:"raw_fields,omitempty"`
	LeadID        string             `json:"lead_id,omitempty"`
	Lead          *domain.Lead       `json:"lead,omitempty"`
	QueueSize     int                `json:"queue_size,omitempty"`
	WaitSeconds   float64            `json:"wait_seconds,omitempty"`
}

// FromEvent flattens an engine event.
func FromEvent(ev events.Event) EventMessage {
	msg := EventMessage{
		ID:         uuid.New(),
		Name:       string(ev.Name),
		OccurredAt: ev.At.UTC(),
	}
	if ev.At.IsZero() {
		msg.OccurredAt = time.Now().UTC()
	}

	switch p := ev.Payload.(type) {
	case events.StatePayload:
		msg.State = p.State
	case events.QueuePayload:
		msg.QueueSize = len(p.Leads)
	case events.LeadPayload:
		lead := p.Lead.Clone()
		msg.Lead = &lead
	case events.CallPayload:
		lead := p.Lead.Clone()
		msg.Lead = &lead
		msg.CallID = p.CallID
		msg.CallStatus = string(p.Status)
	case events.WaitingPayload:
		msg.WaitSeconds = p.Duration.Seconds()
	case events.ProviderPayload:
		msg.CallID = p.CallID
		if msg.CallID == "" {
			msg.CallID = p.ProviderCallID
		}
		msg.ProviderEvent = string(p.Type)
		msg.RawFields = p.Fields
		msg.LeadID = p.LeadID
	}
	return msg
}

// Key groups messages of one lead on one partition. Engine-wide events share
// the empty key.
func (m EventMessage) Key() []byte {
	switch {
	case m.Lead != nil:
		return []byte(m.Lead.ID)
	case m.LeadID != "":
		return []byte(m.LeadID)
	}
	return nil
}
