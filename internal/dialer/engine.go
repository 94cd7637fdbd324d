// Package dialer implements the predictive dialing engine: admission
// control, per-call and per-lead state machines, correlation of provider
// events and the post-call cooldown.
//
// All mutable state is owned by the goroutine running Engine.Run. Public
// methods, timers and the admission loop talk to it with typed messages.
package dialer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/predictive-dialer/internal/config"
	"github.com/acme/predictive-dialer/internal/correlator"
	"github.com/acme/predictive-dialer/internal/domain"
	"github.com/acme/predictive-dialer/internal/events"
	"github.com/acme/predictive-dialer/internal/telephony"
	apperrors "github.com/acme/predictive-dialer/pkg/errors"
	"github.com/acme/predictive-dialer/pkg/logger"
)

const (
	inboxSize        = 128
	terminateTimeout = 10 * time.Second
)

// LeadSource supplies the next batch of leads when the queue runs dry.
type LeadSource interface {
	FetchLeads(ctx context.Context) ([]domain.Lead, error)
}

// Config tunes the engine.
type Config struct {
	ParallelCalls  int
	CallTimeout    time.Duration
	WaitAfterCall  time.Duration
	PollInterval   time.Duration
	DialStagger    time.Duration
	AgentExtension string
	CallingHours   *CallingHours
}

// ConfigFrom converts the loaded settings.
func ConfigFrom(cfg config.DialerConfig) (Config, error) {
	hours, err := ParseCallingHours(cfg.TimeZone, cfg.CallingHours)
	if err != nil {
		return Config{}, err
	}
	return Config{
		ParallelCalls:  cfg.ParallelCalls,
		CallTimeout:    cfg.CallTimeout,
		WaitAfterCall:  cfg.WaitAfterCall,
		PollInterval:   cfg.PollInterval,
		DialStagger:    cfg.DialStagger,
		AgentExtension: cfg.AgentExtension,
		CallingHours:   hours,
	}, nil
}

type callEntry struct {
	call  domain.ActiveCall
	timer *time.Timer
}

// Engine is the predictive dialer. Create it with New and drive it with Run.
type Engine struct {
	cfg      Config
	provider telephony.Provider
	leads    LeadSource
	bus      *events.Bus
	logger   *logger.Logger
	tracer   trace.Tracer
	now      func() time.Time

	inbox   chan message
	done    chan struct{}
	running atomic.Bool

	// owned by the Run goroutine
	ctx          context.Context
	state        domain.EngineState
	queue        []*domain.Lead
	byID         map[string]*domain.Lead
	calls        map[string]*callEntry
	order        []string
	currentLead  string
	inCall       bool
	placing      int
	loopGen      uint64
	cooldown     *time.Timer
	cooldownGen  uint64
	waitingUntil time.Time
	correlator   *correlator.Correlator
}

// New constructs an engine. A nil bus gets a private one; a nil lead source
// means Start never refills the queue.
func New(cfg Config, provider telephony.Provider, leads LeadSource, bus *events.Bus, lg *logger.Logger) *Engine {
	if cfg.ParallelCalls < 1 {
		cfg.ParallelCalls = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if lg == nil {
		lg = logger.NewNop()
	}
	if bus == nil {
		bus = events.NewBus(lg)
	}
	return &Engine{
		cfg:        cfg,
		provider:   provider,
		leads:      leads,
		bus:        bus,
		logger:     lg.Named("dialer"),
		tracer:     otel.Tracer("dialer.engine"),
		now:        time.Now,
		inbox:      make(chan message, inboxSize),
		done:       make(chan struct{}),
		ctx:        context.Background(),
		state:      domain.EngineStopped,
		byID:       make(map[string]*domain.Lead),
		calls:      make(map[string]*callEntry),
		correlator: correlator.New(),
	}
}

// Run processes messages until ctx is cancelled. It must be called once.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: dialer: engine already running", apperrors.ErrConflict)
	}
	e.ctx = ctx
	defer close(e.done)
	defer e.release()

	e.logger.Info("dialer: engine loop started",
		zap.Int("parallel_calls", e.cfg.ParallelCalls),
		zap.Duration("call_timeout", e.cfg.CallTimeout),
		zap.Duration("wait_after_call", e.cfg.WaitAfterCall),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-e.inbox:
			e.dispatch(msg)
		}
	}
}

// On registers an observer for one event name.
func (e *Engine) On(name events.Name, h events.Handler) {
	e.bus.On(name, h)
}

// Bus exposes the engine's observer registry.
func (e *Engine) Bus() *events.Bus {
	return e.bus
}

// Start begins or resumes dialing. When no lead is left to dial it first
// pulls a batch from the lead source; if that fails the finished leads are
// dropped and the engine keeps its state.
func (e *Engine) Start(ctx context.Context) error {
	reply := make(chan startCheck, 1)
	check, err := request(ctx, e, startCheckMsg{reply: reply}, reply)
	if err != nil {
		return err
	}
	if check.running {
		e.logger.Warn("dialer: start ignored, already running")
		return nil
	}

	msg := startMsg{reply: make(chan error, 1)}
	if check.needsLeads && e.leads != nil {
		leads, err := e.leads.FetchLeads(ctx)
		if err != nil {
			e.logger.Error("dialer: lead source failed", zap.Error(err))
			_ = e.post(ctx, dropFinishedMsg{})
			return fmt.Errorf("%w: dialer: fetch leads: %v", apperrors.ErrLeadSource, err)
		}
		e.logger.Info("dialer: fetched leads", zap.Int("count", len(leads)))
		msg.leads = leads
		msg.reload = true
	}

	result, err := request(ctx, e, msg, msg.reply)
	if err != nil {
		return err
	}
	return result
}

// Pause stops admitting new calls. Calls in flight continue.
func (e *Engine) Pause(ctx context.Context) error {
	reply := make(chan struct{}, 1)
	_, err := request(ctx, e, pauseMsg{reply: reply}, reply)
	return err
}

// Stop halts dialing and forgets in-flight calls without hanging them up.
// Ringing leads go back to pending. A live conversation is recorded as
// completed without a callEnded event.
func (e *Engine) Stop(ctx context.Context) error {
	reply := make(chan struct{}, 1)
	_, err := request(ctx, e, stopMsg{reply: reply}, reply)
	return err
}

// SkipWaiting cancels an active post-call cooldown. It reports whether a
// cooldown was running.
func (e *Engine) SkipWaiting(ctx context.Context) (bool, error) {
	reply := make(chan bool, 1)
	return request(ctx, e, skipWaitingMsg{reply: reply}, reply)
}

// SetQueue replaces the queue. Every lead is reset to pending.
func (e *Engine) SetQueue(ctx context.Context, leads []domain.Lead) error {
	reply := make(chan error, 1)
	result, err := request(ctx, e, setQueueMsg{leads: leads, reply: reply}, reply)
	if err != nil {
		return err
	}
	return result
}

// SetCallResult records the operator's outcome and completes the lead.
func (e *Engine) SetCallResult(ctx context.Context, leadID, result, comment string) (domain.Lead, error) {
	reply := make(chan leadReply, 1)
	out, err := request(ctx, e, setResultMsg{leadID: leadID, result: result, comment: comment, reply: reply}, reply)
	if err != nil {
		return domain.Lead{}, err
	}
	return out.lead, out.err
}

// HandleProviderEvent feeds an asynchronous provider notification into the
// engine and returns its normalized type. Processing happens on the engine
// goroutine after the call returns.
func (e *Engine) HandleProviderEvent(ctx context.Context, ev domain.ProviderEvent) (domain.EventType, error) {
	typ := ev.Normalized()
	if err := e.post(ctx, providerEventMsg{event: ev, typ: typ}); err != nil {
		return typ, err
	}
	return typ, nil
}

// HandleCallAnswered reports that the provider bridged callID.
func (e *Engine) HandleCallAnswered(ctx context.Context, callID string, fields map[string]string) error {
	_, err := e.HandleProviderEvent(ctx, domain.ProviderEvent{CallID: callID, Type: string(domain.EventAnswered), Fields: fields})
	return err
}

// HandleCallHangup reports that callID ended.
func (e *Engine) HandleCallHangup(ctx context.Context, callID string, fields map[string]string) error {
	_, err := e.HandleProviderEvent(ctx, domain.ProviderEvent{CallID: callID, Type: string(domain.EventHangup), Fields: fields})
	return err
}

// State returns a snapshot of the engine.
func (e *Engine) State(ctx context.Context) (domain.Snapshot, error) {
	reply := make(chan domain.Snapshot, 1)
	return request(ctx, e, snapshotMsg{reply: reply}, reply)
}

// Queue returns copies of the queued leads in dialing order.
func (e *Engine) Queue(ctx context.Context) ([]domain.Lead, error) {
	reply := make(chan []domain.Lead, 1)
	return request(ctx, e, queueMsg{reply: reply}, reply)
}

func (e *Engine) post(ctx context.Context, msg message) error {
	select {
	case <-e.done:
		return apperrors.ErrClosed
	default:
	}
	select {
	case e.inbox <- msg:
		return nil
	case <-e.done:
		return apperrors.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// postAsync is used by timers, which have no caller to report to.
func (e *Engine) postAsync(msg message) {
	_ = e.post(context.Background(), msg)
}

func request[T any](ctx context.Context, e *Engine, msg message, reply chan T) (T, error) {
	var zero T
	if err := e.post(ctx, msg); err != nil {
		return zero, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-e.done:
		return zero, apperrors.ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// release stops every timer when the engine goroutine exits.
func (e *Engine) release() {
	for _, entry := range e.calls {
		entry.timer.Stop()
	}
	if e.cooldown != nil {
		e.cooldown.Stop()
	}
	e.loopGen++
}
