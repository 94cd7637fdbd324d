package dialer

import (
	"context"
	"maps"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/predictive-dialer/internal/correlator"
	"github.com/acme/predictive-dialer/internal/domain"
	"github.com/acme/predictive-dialer/internal/events"
)

func (e *Engine) providerEvent(ev domain.ProviderEvent, typ domain.EventType) {
	log := e.logger.With(zap.String("provider_call_id", ev.CallID), zap.String("event", ev.Type))

	var (
		callID string
		match  = correlator.MatchNone
	)
	if typ == domain.EventAnswered || typ == domain.EventHangup {
		callID, match = e.correlator.Resolve(ev, e.candidates())
	}
	e.announceProviderEvent(ev, typ, callID)

	switch typ {
	case domain.EventAnswered, domain.EventHangup:
	case domain.EventRinging:
		log.Debug("dialer: call ringing")
		return
	default:
		log.Debug("dialer: ignoring provider event")
		return
	}

	if match == correlator.MatchNone {
		log.Warn("dialer: provider event matches no active call, dropping")
		return
	}
	if match != correlator.MatchDirect {
		log.Info("dialer: provider event correlated", zap.String("call_id", callID), zap.String("match", string(match)))
	}

	if typ == domain.EventAnswered {
		e.callAnswered(callID)
		return
	}
	e.callHangup(callID)
}

// announceProviderEvent mirrors every provider notification, matched or not,
// for dashboards.
func (e *Engine) announceProviderEvent(ev domain.ProviderEvent, typ domain.EventType, callID string) {
	payload := events.ProviderPayload{
		ProviderCallID: ev.CallID,
		RawType:        ev.Type,
		Type:           typ,
		CallID:         callID,
		Fields:         maps.Clone(ev.Fields),
	}
	if entry := e.calls[callID]; callID != "" && entry != nil {
		payload.LeadID = entry.call.LeadID
	}
	e.bus.Emit(events.ProviderEventReceived, payload)
}

// callAnswered bridges the first answered leg and drops every other one.
func (e *Engine) callAnswered(callID string) {
	entry := e.calls[callID]
	log := e.logger.With(zap.String("call_id", callID), zap.String("lead_id", entry.call.LeadID))

	if entry.call.Status == domain.CallStatusAnswered {
		log.Debug("dialer: duplicate answer ignored")
		return
	}

	if e.inCall && e.currentLead != entry.call.LeadID {
		log.Warn("dialer: answer while agent is busy, dropping leg")
		e.terminateAsync(callID, "agent busy")
		e.removeCall(callID)
		if lead := e.byID[entry.call.LeadID]; lead != nil {
			e.setLeadStatus(lead, domain.LeadStatusPending, "")
		}
		return
	}

	for _, other := range append([]string(nil), e.order...) {
		if other == callID {
			continue
		}
		loser := e.calls[other]
		e.terminateAsync(other, "race lost")
		e.removeCall(other)
		if lead := e.byID[loser.call.LeadID]; lead != nil {
			e.setLeadStatus(lead, domain.LeadStatusPending, "")
		}
	}

	entry.timer.Stop()
	entry.call.Status = domain.CallStatusAnswered
	e.currentLead = entry.call.LeadID
	e.inCall = true

	log.Info("dialer: call answered")
	e.bus.Emit(events.CallAnswered, e.callPayload(entry))
	if lead := e.byID[entry.call.LeadID]; lead != nil {
		e.setLeadStatus(lead, domain.LeadStatusAnswered, "")
	}
}

func (e *Engine) callHangup(callID string) {
	entry := e.calls[callID]
	leadID := entry.call.LeadID
	lead := e.byID[leadID]
	log := e.logger.With(zap.String("call_id", callID), zap.String("lead_id", leadID))

	e.removeCall(callID)

	if e.inCall && e.currentLead == leadID {
		e.inCall = false
		e.currentLead = ""
		if lead != nil {
			e.setLeadStatus(lead, domain.LeadStatusCompleted, "")
		}
		log.Info("dialer: conversation ended")
		e.bus.Emit(events.CallEnded, e.callPayload(entry))
		e.startCooldown()
		return
	}

	log.Info("dialer: call ended before answer")
	if lead != nil {
		e.setLeadStatus(lead, domain.LeadStatusFailed, domain.ReasonNoAnswer)
	}
}

// callTimedOut fails a leg that is still ringing when its timer fires.
func (e *Engine) callTimedOut(callID string) {
	entry, ok := e.calls[callID]
	if !ok || entry.call.Status != domain.CallStatusRinging {
		return
	}

	e.removeCall(callID)
	e.terminateAsync(callID, "ring timeout")

	e.logger.Info("dialer: call timed out", zap.String("call_id", callID), zap.String("lead_id", entry.call.LeadID))
	if lead := e.byID[entry.call.LeadID]; lead != nil {
		e.setLeadStatus(lead, domain.LeadStatusFailed, domain.ReasonNoAnswer)
	}
	e.bus.Emit(events.CallTimeout, e.callPayload(entry))
}

func (e *Engine) removeCall(callID string) {
	entry, ok := e.calls[callID]
	if !ok {
		return
	}
	entry.timer.Stop()
	delete(e.calls, callID)
	for i, id := range e.order {
		if id == callID {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	e.correlator.Forget(callID)
}

// terminateAsync hangs up a leg without blocking the engine goroutine.
// Failures are logged only.
func (e *Engine) terminateAsync(callID, reason string) {
	parent := context.WithoutCancel(e.ctx)
	go func() {
		ctx, cancel := context.WithTimeout(parent, terminateTimeout)
		defer cancel()

		ctx, span := e.tracer.Start(ctx, "dialer.terminate_call", trace.WithAttributes(
			attribute.String("call.id", callID),
			attribute.String("reason", reason),
		))
		defer span.End()

		ok, err := e.provider.Terminate(ctx, callID)
		if err != nil {
			span.RecordError(err)
			e.logger.Warn("dialer: terminate failed", zap.String("call_id", callID), zap.String("reason", reason), zap.Error(err))
			return
		}
		if !ok {
			e.logger.Debug("dialer: provider did not confirm terminate", zap.String("call_id", callID))
		}
	}()
}

func (e *Engine) candidates() []correlator.Candidate {
	out := make([]correlator.Candidate, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, correlator.Candidate{CallID: id, Phone: e.calls[id].call.Phone})
	}
	return out
}

func (e *Engine) callPayload(entry *callEntry) events.CallPayload {
	payload := events.CallPayload{
		CallID:    entry.call.CallID,
		StartTime: entry.call.StartTime,
		Status:    entry.call.Status,
	}
	if lead := e.byID[entry.call.LeadID]; lead != nil {
		payload.Lead = lead.Clone()
	}
	return payload
}
