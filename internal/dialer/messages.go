package dialer

import (
	"go.uber.org/zap"

	"github.com/acme/predictive-dialer/internal/domain"
)

// message is anything the engine goroutine accepts on its inbox.
type message interface {
	kind() string
}

type startCheck struct {
	running    bool
	needsLeads bool
}

type startCheckMsg struct{ reply chan startCheck }

type startMsg struct {
	leads  []domain.Lead
	reload bool
	reply  chan error
}

type dropFinishedMsg struct{}

type pauseMsg struct{ reply chan struct{} }

type stopMsg struct{ reply chan struct{} }

type skipWaitingMsg struct{ reply chan bool }

type setQueueMsg struct {
	leads []domain.Lead
	reply chan error
}

type leadReply struct {
	lead domain.Lead
	err  error
}

type setResultMsg struct {
	leadID  string
	result  string
	comment string
	reply   chan leadReply
}

type providerEventMsg struct {
	event domain.ProviderEvent
	typ   domain.EventType
}

type callTimeoutMsg struct{ callID string }

type cooldownExpiredMsg struct{ gen uint64 }

type planMsg struct {
	gen   uint64
	reply chan admission
}

type beginCallMsg struct {
	gen    uint64
	leadID string
	reply  chan beginResult
}

type callPlacedMsg struct {
	leadID string
	callID string
	err    error
}

type snapshotMsg struct{ reply chan domain.Snapshot }

type queueMsg struct{ reply chan []domain.Lead }

func (startCheckMsg) kind() string      { return "start_check" }
func (startMsg) kind() string           { return "start" }
func (dropFinishedMsg) kind() string    { return "drop_finished" }
func (pauseMsg) kind() string           { return "pause" }
func (stopMsg) kind() string            { return "stop" }
func (skipWaitingMsg) kind() string     { return "skip_waiting" }
func (setQueueMsg) kind() string        { return "set_queue" }
func (setResultMsg) kind() string       { return "set_result" }
func (providerEventMsg) kind() string   { return "provider_event" }
func (callTimeoutMsg) kind() string     { return "call_timeout" }
func (cooldownExpiredMsg) kind() string { return "cooldown_expired" }
func (planMsg) kind() string            { return "plan" }
func (beginCallMsg) kind() string       { return "begin_call" }
func (callPlacedMsg) kind() string      { return "call_placed" }
func (snapshotMsg) kind() string        { return "snapshot" }
func (queueMsg) kind() string           { return "queue" }

func (e *Engine) dispatch(msg message) {
	switch m := msg.(type) {
	case startCheckMsg:
		m.reply <- startCheck{running: e.state == domain.EngineRunning, needsLeads: !e.hasDialable()}
	case startMsg:
		m.reply <- e.start(m)
	case dropFinishedMsg:
		e.dropFinished()
	case pauseMsg:
		e.pause()
		m.reply <- struct{}{}
	case stopMsg:
		e.stop()
		m.reply <- struct{}{}
	case skipWaitingMsg:
		m.reply <- e.skipWaiting()
	case setQueueMsg:
		m.reply <- e.replaceQueue(m.leads)
	case setResultMsg:
		lead, err := e.setCallResult(m.leadID, m.result, m.comment)
		m.reply <- leadReply{lead: lead, err: err}
	case providerEventMsg:
		e.providerEvent(m.event, m.typ)
	case callTimeoutMsg:
		e.callTimedOut(m.callID)
	case cooldownExpiredMsg:
		e.cooldownExpired(m.gen)
	case planMsg:
		m.reply <- e.planAdmission(m.gen)
	case beginCallMsg:
		m.reply <- e.beginCall(m.gen, m.leadID)
	case callPlacedMsg:
		e.callPlaced(m)
	case snapshotMsg:
		m.reply <- e.snapshot()
	case queueMsg:
		m.reply <- e.queueCopy()
	default:
		e.logger.Warn("dialer: unknown message", zap.String("kind", msg.kind()))
	}
}
