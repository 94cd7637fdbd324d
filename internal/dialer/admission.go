package dialer

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/predictive-dialer/internal/domain"
	"github.com/acme/predictive-dialer/internal/events"
	"github.com/acme/predictive-dialer/internal/phone"
	"github.com/acme/predictive-dialer/internal/telephony"
	apperrors "github.com/acme/predictive-dialer/pkg/errors"
)

type admissionAction int

const (
	admitWait admissionAction = iota
	admitDial
	admitExit
)

type admission struct {
	action admissionAction
	leads  []string
	reason string
}

type beginResult struct {
	abort    bool
	skip     bool
	phone    string
	attempts int
}

// dialLoop is the admission control loop for one running period. It exits
// when the engine leaves the running state or a newer loop replaces it.
func (e *Engine) dialLoop(ctx context.Context, gen uint64) {
	for {
		reply := make(chan admission, 1)
		plan, err := request(ctx, e, planMsg{gen: gen, reply: reply}, reply)
		if err != nil || plan.action == admitExit {
			return
		}
		if plan.action == admitWait {
			e.logger.Debug("dialer: admission waiting", zap.String("reason", plan.reason))
		}

		if plan.action == admitDial {
			for i, leadID := range plan.leads {
				if i > 0 && !sleep(ctx, e.cfg.DialStagger) {
					return
				}
				if !e.dial(ctx, gen, leadID) {
					break
				}
			}
		}

		if !sleep(ctx, e.cfg.PollInterval) {
			return
		}
	}
}

func (e *Engine) planAdmission(gen uint64) admission {
	if gen != e.loopGen || e.state != domain.EngineRunning {
		return admission{action: admitExit}
	}
	if e.inCall {
		return admission{action: admitWait, reason: "in call"}
	}
	if e.cooling() {
		return admission{action: admitWait, reason: "cooldown"}
	}

	busy := len(e.calls) + e.placing
	if busy >= e.cfg.ParallelCalls {
		return admission{action: admitWait, reason: "all slots busy"}
	}

	pending := e.nextPending(e.cfg.ParallelCalls - busy)
	if len(pending) == 0 {
		if busy == 0 {
			e.logger.Info("dialer: queue exhausted")
			e.stop()
			e.bus.Emit(events.QueueEmpty, nil)
			return admission{action: admitExit}
		}
		return admission{action: admitWait, reason: "waiting for active calls"}
	}

	if !e.cfg.CallingHours.Allows(e.now()) {
		return admission{action: admitWait, reason: "outside calling hours"}
	}

	return admission{action: admitDial, leads: pending}
}

func (e *Engine) nextPending(limit int) []string {
	ids := make([]string, 0, limit)
	for _, lead := range e.queue {
		if len(ids) == limit {
			break
		}
		if lead.Status == domain.LeadStatusPending {
			ids = append(ids, lead.ID)
		}
	}
	return ids
}

// beginCall re-checks the admission gates right before a placement and
// moves the lead to calling.
func (e *Engine) beginCall(gen uint64, leadID string) beginResult {
	if gen != e.loopGen || e.state != domain.EngineRunning || e.inCall || e.cooling() {
		return beginResult{abort: true}
	}
	if len(e.calls)+e.placing >= e.cfg.ParallelCalls {
		return beginResult{abort: true}
	}

	lead := e.byID[leadID]
	if lead == nil || lead.Status != domain.LeadStatusPending {
		return beginResult{skip: true}
	}

	lead.Attempts++
	e.placing++
	e.setLeadStatus(lead, domain.LeadStatusCalling, "")
	return beginResult{phone: lead.Phone, attempts: lead.Attempts}
}

// dial places one call outside the engine goroutine. It returns false when
// the batch must be abandoned.
func (e *Engine) dial(ctx context.Context, gen uint64, leadID string) bool {
	reply := make(chan beginResult, 1)
	begin, err := request(ctx, e, beginCallMsg{gen: gen, leadID: leadID, reply: reply}, reply)
	if err != nil || begin.abort {
		return false
	}
	if begin.skip {
		return true
	}

	sctx, span := e.tracer.Start(ctx, "dialer.place_call", trace.WithAttributes(
		attribute.String("lead.id", leadID),
		attribute.Int("lead.attempts", begin.attempts),
	))
	pctx, cancel := context.WithTimeout(sctx, e.cfg.CallTimeout)
	res, placeErr := e.provider.PlaceCall(pctx, telephony.CallRequest{
		Client: phone.FormatE164(begin.phone),
		Agent:  e.cfg.AgentExtension,
	})
	cancel()
	if placeErr == nil && res.CallID == "" {
		placeErr = fmt.Errorf("%w: provider returned no call id", apperrors.ErrProviderRejected)
	}
	if placeErr != nil {
		span.RecordError(placeErr)
	} else {
		span.SetAttributes(attribute.String("call.id", res.CallID))
	}
	span.End()

	if err := e.post(ctx, callPlacedMsg{leadID: leadID, callID: res.CallID, err: placeErr}); err != nil {
		return false
	}
	return true
}

func (e *Engine) callPlaced(m callPlacedMsg) {
	e.placing--
	lead := e.byID[m.leadID]
	log := e.logger.With(zap.String("lead_id", m.leadID))

	if m.err != nil {
		log.Warn("dialer: call initiation failed", zap.Error(m.err))
		if lead != nil && lead.Status == domain.LeadStatusCalling {
			e.setLeadStatus(lead, domain.LeadStatusFailed, m.err.Error())
		}
		return
	}

	log = log.With(zap.String("call_id", m.callID))
	if lead == nil || lead.Status != domain.LeadStatusCalling {
		log.Warn("dialer: lead no longer dialable, dropping placed call")
		e.terminateAsync(m.callID, "lead no longer dialable")
		return
	}
	if e.state == domain.EngineStopped || e.inCall || e.cooling() {
		log.Info("dialer: call placed after stop, answer or hangup, rolling back",
			zap.String("state", string(e.state)), zap.Bool("in_call", e.inCall), zap.Bool("waiting", e.cooling()))
		e.terminateAsync(m.callID, "placed too late")
		e.setLeadStatus(lead, domain.LeadStatusPending, "")
		return
	}

	callID := m.callID
	entry := &callEntry{
		call: domain.ActiveCall{
			CallID:    callID,
			LeadID:    lead.ID,
			Phone:     lead.Phone,
			StartTime: e.now(),
			Status:    domain.CallStatusRinging,
		},
	}
	entry.timer = time.AfterFunc(e.cfg.CallTimeout, func() {
		e.postAsync(callTimeoutMsg{callID: callID})
	})
	e.calls[callID] = entry
	e.order = append(e.order, callID)

	log.Info("dialer: call initiated", zap.String("phone", lead.Phone))
	e.bus.Emit(events.CallInitiated, e.callPayload(entry))
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
