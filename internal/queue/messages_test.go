package queue

import (
	"testing"
	"time"

	"github.com/acme/predictive-dialer/internal/domain"
	"github.com/acme/predictive-dialer/internal/events"
)

func TestFromEventFlattensPayloads(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	state := FromEvent(events.Event{Name: events.StateChanged, At: at, Payload: events.StatePayload{State: domain.EngineRunning}})
	if state.State != domain.EngineRunning || state.Key() != nil || !state.OccurredAt.Equal(at) {
		t.Fatalf("unexpected state message %+v", state)
	}

	call := FromEvent(events.Event{Name: events.CallAnswered, At: at, Payload: events.CallPayload{
		CallID: "c-1",
		Lead:   domain.Lead{ID: "17", Status: domain.LeadStatusAnswered},
		Status: domain.CallStatusAnswered,
	}})
	if call.CallID != "c-1" || call.CallStatus != "answered" || string(call.Key()) != "17" {
		t.Fatalf("unexpected call message %+v", call)
	}

	queue := FromEvent(events.Event{Name: events.QueueUpdated, At: at, Payload: events.QueuePayload{Leads: make([]domain.Lead, 3)}})
	if queue.QueueSize != 3 {
		t.Fatalf("expected queue size 3, got %d", queue.QueueSize)
	}

	wait := FromEvent(events.Event{Name: events.WaitingStarted, At: at, Payload: events.WaitingPayload{Duration: 90 * time.Second}})
	if wait.WaitSeconds != 90 {
		t.Fatalf("expected 90s wait, got %v", wait.WaitSeconds)
	}

	provider := FromEvent(events.Event{Name: events.ProviderEventReceived, At: at, Payload: events.ProviderPayload{
		ProviderCallID: "pbx-1",
		Type:           domain.EventAnswered,
		CallID:         "c-2",
		LeadID:         "18",
		Fields:         map[string]string{"to": "77011112233"},
	}})
	if provider.CallID != "c-2" || provider.ProviderEvent != "answered" || string(provider.Key()) != "18" || provider.RawFields["to"] != "77011112233" {
		t.Fatalf("unexpected provider message %+v", provider)
	}

	unmatched := FromEvent(events.Event{Name: events.ProviderEventReceived, At: at, Payload: events.ProviderPayload{ProviderCallID: "pbx-2"}})
	if unmatched.CallID != "pbx-2" || unmatched.Key() != nil {
		t.Fatalf("unexpected unmatched message %+v", unmatched)
	}

	if FromEvent(events.Event{Name: events.QueueEmpty}).OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to default to now")
	}
}
