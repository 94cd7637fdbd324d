package outcome

import (
	"context"
	"testing"
	"time"

	"github.com/acme/predictive-dialer/internal/domain"
	"github.com/acme/predictive-dialer/internal/events"
	"github.com/acme/predictive-dialer/internal/repository"
	"github.com/acme/predictive-dialer/pkg/logger"
)

type leadStore struct {
	outcomes []repository.LeadOutcome
	err      error
}

func (s *leadStore) Upsert(context.Context, []repository.LeadRecord) error { return nil }

func (s *leadStore) ClaimDialable(context.Context, int) ([]repository.LeadRecord, error) {
	return nil, nil
}

func (s *leadStore) RecordOutcome(_ context.Context, o repository.LeadOutcome) error {
	s.outcomes = append(s.outcomes, o)
	return s.err
}

func (s *leadStore) Get(context.Context, string) (*repository.LeadRecord, error) { return nil, nil }

func (s *leadStore) CountByState(context.Context) (repository.LeadStats, error) {
	return repository.LeadStats{}, nil
}

type callLog struct {
	rows []repository.CallEvent
}

func (c *callLog) Append(_ context.Context, ev repository.CallEvent) error {
	c.rows = append(c.rows, ev)
	return nil
}

func (c *callLog) ListByLead(context.Context, string, int, []byte) ([]repository.CallEvent, []byte, error) {
	return c.rows, nil, nil
}

func TestRecordOutcomeIgnoresUnknownLeads(t *testing.T) {
	store := &leadStore{err: repository.ErrNotFound}
	r := NewRecorder(store, nil, logger.NewNop())

	ev := events.Event{
		Name:    events.LeadStatusChanged,
		At:      time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Payload: events.LeadPayload{Lead: domain.Lead{ID: "1", Status: domain.LeadStatusCompleted, Attempts: 1}},
	}
	if err := r.RecordOutcome(context.Background(), ev); err != nil {
		t.Fatalf("expected not-found to be swallowed, got %v", err)
	}
	if len(store.outcomes) != 1 || store.outcomes[0].Status != domain.LeadStatusCompleted || !store.outcomes[0].OccurredAt.Equal(ev.At) {
		t.Fatalf("unexpected outcomes %+v", store.outcomes)
	}
}

func TestAppendCallEvent(t *testing.T) {
	log := &callLog{}
	r := NewRecorder(nil, log, logger.NewNop())
	ctx := context.Background()

	lead := domain.Lead{ID: "5", Phone: "+77011234567", Status: domain.LeadStatusCalling}
	_ = r.AppendCallEvent(ctx, events.Event{Name: events.CallInitiated, Payload: events.CallPayload{CallID: "c1", Lead: lead}})

	lead.Status = domain.LeadStatusPending
	_ = r.AppendCallEvent(ctx, events.Event{Name: events.LeadStatusChanged, Payload: events.LeadPayload{Lead: lead}})

	lead.Status = domain.LeadStatusFailed
	lead.Error = "provider rejected call"
	_ = r.AppendCallEvent(ctx, events.Event{Name: events.LeadStatusChanged, Payload: events.LeadPayload{Lead: lead}})

	if len(log.rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(log.rows))
	}
	if log.rows[0].CallID != "c1" || log.rows[0].Event != string(events.CallInitiated) {
		t.Fatalf("unexpected first row %+v", log.rows[0])
	}
	if log.rows[1].CallID != "" || log.rows[1].Error != "provider rejected call" {
		t.Fatalf("unexpected failure row %+v", log.rows[1])
	}
}

func TestRecorderWithoutStoresIsNoop(t *testing.T) {
	r := NewRecorder(nil, nil, logger.NewNop())
	ev := events.Event{Name: events.LeadStatusChanged, Payload: events.LeadPayload{}}
	if err := r.RecordOutcome(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if err := r.AppendCallEvent(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}
