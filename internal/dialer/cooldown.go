package dialer

import (
	"time"

	"go.uber.org/zap"

	"github.com/acme/predictive-dialer/internal/events"
)

func (e *Engine) cooling() bool {
	return e.cooldown != nil
}

// startCooldown holds admission after a conversation so the agent can wrap
// up. A zero wait disables it.
func (e *Engine) startCooldown() {
	d := e.cfg.WaitAfterCall
	if d <= 0 {
		return
	}
	e.cancelCooldown()

	gen := e.cooldownGen
	e.waitingUntil = e.now().Add(d)
	e.cooldown = time.AfterFunc(d, func() {
		e.postAsync(cooldownExpiredMsg{gen: gen})
	})

	e.logger.Info("dialer: cooldown started", zap.Duration("duration", d))
	e.bus.Emit(events.WaitingStarted, events.WaitingPayload{Duration: d})
}

// cancelCooldown clears the cooldown without announcing it and invalidates
// any expiry already queued.
func (e *Engine) cancelCooldown() bool {
	if e.cooldown == nil {
		return false
	}
	e.cooldown.Stop()
	e.cooldown = nil
	e.waitingUntil = time.Time{}
	e.cooldownGen++
	return true
}

func (e *Engine) cooldownExpired(gen uint64) {
	if gen != e.cooldownGen || e.cooldown == nil {
		return
	}
	e.cooldown = nil
	e.waitingUntil = time.Time{}
	e.cooldownGen++

	e.logger.Info("dialer: cooldown finished")
	e.bus.Emit(events.WaitingEnded, nil)
}

func (e *Engine) skipWaiting() bool {
	if !e.cancelCooldown() {
		return false
	}
	e.logger.Info("dialer: cooldown skipped")
	e.bus.Emit(events.WaitingEnded, nil)
	return true
}
