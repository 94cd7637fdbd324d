package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"github.com/acme/predictive-dialer/internal/repository"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS call_events_by_lead (
		lead_id text,
		occurred_at timestamp,
		call_id text,
		event text,
		status text,
		phone text,
		error text,
		PRIMARY KEY ((lead_id), occurred_at, call_id, event)
	) WITH CLUSTERING ORDER BY (occurred_at DESC, call_id ASC, event ASC)`,
	`CREATE TABLE IF NOT EXISTS call_events_by_day (
		bucket date,
		occurred_at timestamp,
		call_id text,
		event text,
		lead_id text,
		status text,
		PRIMARY KEY ((bucket), occurred_at, call_id, event)
	)`,
}

// CallLog stores call history per lead and per day.
type CallLog struct {
	session *gocql.Session
}

// NewCallLog creates the call log.
func NewCallLog(session *gocql.Session) *CallLog {
	return &CallLog{session: session}
}

// EnsureSchema creates the tables when missing.
func (s *CallLog) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if err := s.session.Query(stmt).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("call log: ensure schema: %w", err)
		}
	}
	return nil
}

// Append writes one call event to both tables.
func (s *CallLog) Append(ctx context.Context, ev repository.CallEvent) error {
	if ev.LeadID == "" {
		return fmt.Errorf("call log: lead id required")
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	if err := s.session.Query(`INSERT INTO call_events_by_lead (lead_id, occurred_at, call_id, event, status, phone, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.LeadID, ev.OccurredAt, ev.CallID, ev.Event, ev.Status, ev.Phone, ev.Error,
	).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("call log: insert call_events_by_lead: %w", err)
	}

	if err := s.session.Query(`INSERT INTO call_events_by_day (bucket, occurred_at, call_id, event, lead_id, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		bucketDate(ev.OccurredAt), ev.OccurredAt, ev.CallID, ev.Event, ev.LeadID, ev.Status,
	).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("call log: insert call_events_by_day: %w", err)
	}

	return nil
}

// ListByLead returns a lead's call events, newest first, one page at a time.
func (s *CallLog) ListByLead(ctx context.Context, leadID string, limit int, pagingState []byte) ([]repository.CallEvent, []byte, error) {
	if limit <= 0 {
		limit = 100
	}

	query := s.session.Query(`SELECT occurred_at, call_id, event, status, phone, error
		FROM call_events_by_lead WHERE lead_id = ?`, leadID).WithContext(ctx).PageSize(limit)
	if len(pagingState) > 0 {
		query = query.PageState(pagingState)
	}

	iter := query.Iter()
	events := make([]repository.CallEvent, 0, limit)

	var (
		occurred time.Time
		callID   string
		event    string
		status   string
		phone    string
		errText  string
	)
	for len(events) < limit && iter.Scan(&occurred, &callID, &event, &status, &phone, &errText) {
		events = append(events, repository.CallEvent{
			CallID:     callID,
			LeadID:     leadID,
			Phone:      phone,
			Event:      event,
			Status:     status,
			Error:      errText,
			OccurredAt: occurred,
		})
	}

	next := iter.PageState()
	if err := iter.Close(); err != nil {
		return nil, nil, fmt.Errorf("call log: iter close: %w", err)
	}

	return events, next, nil
}

func bucketDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
