// Package outcome persists what the engine did to each lead.
package outcome

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/acme/predictive-dialer/internal/domain"
	"github.com/acme/predictive-dialer/internal/events"
	"github.com/acme/predictive-dialer/internal/repository"
	"github.com/acme/predictive-dialer/pkg/logger"
)

// OutcomeEvents are the events the lead store cares about.
var OutcomeEvents = []events.Name{events.LeadStatusChanged}

// CallEvents are the events written to the call log.
var CallEvents = []events.Name{
	events.CallInitiated,
	events.CallAnswered,
	events.CallEnded,
	events.CallTimeout,
	events.LeadStatusChanged,
}

// Recorder turns engine events into lead store updates and call log rows.
// Either store may be nil.
type Recorder struct {
	leads  repository.LeadRepository
	calls  repository.CallLog
	logger *logger.Logger
}

// NewRecorder constructs a recorder.
func NewRecorder(leads repository.LeadRepository, calls repository.CallLog, lg *logger.Logger) *Recorder {
	return &Recorder{leads: leads, calls: calls, logger: lg.Named("outcome")}
}

// RecordOutcome is an events.DeliverFunc for the lead store.
func (r *Recorder) RecordOutcome(ctx context.Context, ev events.Event) error {
	if r.leads == nil {
		return nil
	}
	payload, ok := ev.Payload.(events.LeadPayload)
	if !ok {
		return nil
	}
	lead := payload.Lead
	err := r.leads.RecordOutcome(ctx, repository.LeadOutcome{
		LeadID:     lead.ID,
		Status:     lead.Status,
		Attempts:   lead.Attempts,
		Error:      lead.Error,
		CallResult: lead.CallResult,
		Comment:    lead.Comment,
		OccurredAt: at(ev),
	})
	if errors.Is(err, repository.ErrNotFound) {
		// Leads loaded through the API or config never reached the store.
		r.logger.Debug("lead not in store", zap.String("lead_id", lead.ID))
		return nil
	}
	return err
}

// AppendCallEvent is an events.DeliverFunc for the call log.
func (r *Recorder) AppendCallEvent(ctx context.Context, ev events.Event) error {
	if r.calls == nil {
		return nil
	}
	row, ok := callEventFrom(ev)
	if !ok {
		return nil
	}
	return r.calls.Append(ctx, row)
}

func callEventFrom(ev events.Event) (repository.CallEvent, bool) {
	switch p := ev.Payload.(type) {
	case events.CallPayload:
		return repository.CallEvent{
			CallID:     p.CallID,
			LeadID:     p.Lead.ID,
			Phone:      p.Lead.Phone,
			Event:      string(ev.Name),
			Status:     string(p.Lead.Status),
			Error:      p.Lead.Error,
			OccurredAt: at(ev),
		}, true
	case events.LeadPayload:
		// Failed placements never produce a call event of their own.
		if p.Lead.Status != domain.LeadStatusFailed {
			return repository.CallEvent{}, false
		}
		return repository.CallEvent{
			LeadID:     p.Lead.ID,
			Phone:      p.Lead.Phone,
			Event:      string(ev.Name),
			Status:     string(p.Lead.Status),
			Error:      p.Lead.Error,
			OccurredAt: at(ev),
		}, true
	}
	return repository.CallEvent{}, false
}

func at(ev events.Event) time.Time {
	if ev.At.IsZero() {
		return time.Now().UTC()
	}
	return ev.At.UTC()
}
