package dialer

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/acme/predictive-dialer/internal/domain"
	"github.com/acme/predictive-dialer/internal/events"
	apperrors "github.com/acme/predictive-dialer/pkg/errors"
)

func (e *Engine) start(m startMsg) error {
	if e.state == domain.EngineRunning {
		e.logger.Warn("dialer: start ignored, already running")
		return nil
	}
	if m.reload {
		if err := e.replaceQueue(m.leads); err != nil {
			return err
		}
	}

	e.setState(domain.EngineRunning)
	e.loopGen++
	go e.dialLoop(e.ctx, e.loopGen)
	return nil
}

func (e *Engine) pause() {
	if e.state != domain.EngineRunning {
		e.logger.Warn("dialer: pause ignored", zap.String("state", string(e.state)))
		return
	}
	e.loopGen++
	e.setState(domain.EnginePaused)
}

// stop forgets every in-flight call. Legs that never connected go back to
// pending; a live conversation is recorded as completed.
func (e *Engine) stop() {
	e.loopGen++
	for _, id := range e.order {
		entry := e.calls[id]
		entry.timer.Stop()
		lead := e.byID[entry.call.LeadID]
		if lead == nil {
			continue
		}
		switch lead.Status {
		case domain.LeadStatusCalling:
			e.setLeadStatus(lead, domain.LeadStatusPending, "")
		case domain.LeadStatusAnswered:
			e.setLeadStatus(lead, domain.LeadStatusCompleted, "")
		}
	}
	e.calls = make(map[string]*callEntry)
	e.order = nil
	e.correlator.Reset()
	e.currentLead = ""
	e.inCall = false
	e.cancelCooldown()
	e.setState(domain.EngineStopped)
}

func (e *Engine) setState(state domain.EngineState) {
	e.state = state
	e.logger.Info("dialer: state changed", zap.String("state", string(state)))
	e.bus.Emit(events.StateChanged, events.StatePayload{State: state})
}

// hasDialable reports whether any lead can still be dialed or is in flight.
func (e *Engine) hasDialable() bool {
	for _, lead := range e.queue {
		if !lead.Status.Terminal() {
			return true
		}
	}
	return false
}

// dropFinished empties a queue in which every lead is completed or failed.
func (e *Engine) dropFinished() {
	if len(e.queue) == 0 || e.hasDialable() {
		return
	}
	e.queue = nil
	e.byID = make(map[string]*domain.Lead)
	e.logger.Info("dialer: finished leads dropped")
	e.bus.Emit(events.QueueUpdated, events.QueuePayload{Leads: []domain.Lead{}})
}

func (e *Engine) replaceQueue(leads []domain.Lead) error {
	if len(e.calls) > 0 || e.placing > 0 || e.inCall {
		return fmt.Errorf("%w: dialer: queue cannot be replaced while calls are in flight", apperrors.ErrConflict)
	}

	queue := make([]*domain.Lead, 0, len(leads))
	byID := make(map[string]*domain.Lead, len(leads))
	for i := range leads {
		lead := leads[i].Clone()
		lead.ID = strings.TrimSpace(lead.ID)
		if lead.ID == "" {
			return fmt.Errorf("%w: dialer: lead at position %d has no id", apperrors.ErrValidation, i)
		}
		if _, dup := byID[lead.ID]; dup {
			return fmt.Errorf("%w: dialer: duplicate lead id %q", apperrors.ErrValidation, lead.ID)
		}
		lead.Reset()
		queue = append(queue, &lead)
		byID[lead.ID] = &lead
	}

	e.queue = queue
	e.byID = byID
	e.logger.Info("dialer: queue replaced", zap.Int("leads", len(queue)))
	e.bus.Emit(events.QueueUpdated, events.QueuePayload{Leads: e.queueCopy()})
	return nil
}

func (e *Engine) setCallResult(leadID, result, comment string) (domain.Lead, error) {
	lead := e.byID[leadID]
	if lead == nil {
		return domain.Lead{}, fmt.Errorf("%w: dialer: lead %q", apperrors.ErrNotFound, leadID)
	}
	lead.CallResult = result
	lead.Comment = comment
	e.setLeadStatus(lead, domain.LeadStatusCompleted, "")
	return lead.Clone(), nil
}

// setLeadStatus applies a transition and announces it. A lead completed by
// the operator keeps that status.
func (e *Engine) setLeadStatus(lead *domain.Lead, status domain.LeadStatus, reason string) {
	if lead.Status == domain.LeadStatusCompleted && status != domain.LeadStatusCompleted {
		e.logger.Debug("dialer: keeping completed lead",
			zap.String("lead_id", lead.ID), zap.String("requested", string(status)))
		return
	}
	lead.Status = status
	if status == domain.LeadStatusFailed {
		lead.Error = reason
	}
	e.bus.Emit(events.LeadStatusChanged, events.LeadPayload{Lead: lead.Clone()})
}

func (e *Engine) queueCopy() []domain.Lead {
	out := make([]domain.Lead, 0, len(e.queue))
	for _, lead := range e.queue {
		out = append(out, lead.Clone())
	}
	return out
}

func (e *Engine) snapshot() domain.Snapshot {
	snap := domain.Snapshot{
		State:       e.state,
		QueueLength: len(e.queue),
		IsInCall:    e.inCall,
		ActiveCalls: make([]domain.ActiveCallView, 0, len(e.order)),
		Waiting:     e.cooling(),
	}
	for _, lead := range e.queue {
		switch lead.Status {
		case domain.LeadStatusPending:
			snap.PendingCount++
		case domain.LeadStatusCompleted:
			snap.CompletedCount++
		case domain.LeadStatusFailed:
			snap.FailedCount++
		}
	}
	if lead := e.byID[e.currentLead]; e.currentLead != "" && lead != nil {
		current := lead.Clone()
		snap.CurrentLead = &current
	}
	for _, id := range e.order {
		entry := e.calls[id]
		view := domain.ActiveCallView{
			CallID:    entry.call.CallID,
			StartTime: entry.call.StartTime,
			Status:    entry.call.Status,
		}
		if lead := e.byID[entry.call.LeadID]; lead != nil {
			view.Lead = lead.Clone()
		}
		snap.ActiveCalls = append(snap.ActiveCalls, view)
	}
	if snap.Waiting {
		until := e.waitingUntil
		snap.WaitingUntil = &until
	}
	return snap
}
