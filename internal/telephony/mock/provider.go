package mock

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/acme/predictive-dialer/internal/config"
	"github.com/acme/predictive-dialer/internal/domain"
	"github.com/acme/predictive-dialer/internal/telephony"
	apperrors "github.com/acme/predictive-dialer/pkg/errors"
)

// Provider simulates an outbound voice provider. Accepted calls ring, may be
// answered, and report back through the event sink the way webhooks would.
type Provider struct {
	cfg config.MockProviderConfig

	mu    sync.Mutex
	rng   *rand.Rand
	sink  telephony.EventSink
	calls map[string]*simCall
}

type simCall struct {
	client string
	agent  string
	ended  bool
	timers []*time.Timer
}

// NewProvider constructs a simulator. A zero seed uses the current time.
func NewProvider(cfg config.MockProviderConfig, seed int64) *Provider {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Provider{
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(seed)),
		calls: make(map[string]*simCall),
	}
}

// SetSink installs the receiver for simulated call events.
func (p *Provider) SetSink(sink telephony.EventSink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sink = sink
}

// PlaceCall simulates the provider accepting or rejecting a call.
func (p *Provider) PlaceCall(ctx context.Context, req telephony.CallRequest) (telephony.Result, error) {
	if p.cfg.Latency > 0 {
		select {
		case <-ctx.Done():
			return telephony.Result{}, ctx.Err()
		case <-time.After(p.cfg.Latency):
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rng.Float64() >= p.cfg.SuccessRate {
		return telephony.Result{}, fmt.Errorf("%w: simulated rejection for %s", apperrors.ErrProviderRejected, req.Client)
	}

	id := uuid.NewString()
	call := &simCall{client: req.Client, agent: req.Agent}
	p.calls[id] = call

	if p.sink != nil {
		p.scheduleLocked(id, call)
	}

	return telephony.Result{CallID: id}, nil
}

// Terminate ends a simulated call; later events for it are suppressed.
func (p *Provider) Terminate(_ context.Context, callID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	call, ok := p.calls[callID]
	if !ok {
		return true, nil
	}
	call.ended = true
	for _, t := range call.timers {
		t.Stop()
	}
	delete(p.calls, callID)
	return true, nil
}

func (p *Provider) scheduleLocked(id string, call *simCall) {
	ring := p.cfg.RingDelay
	if ring > 0 {
		ring += time.Duration(p.rng.Int63n(int64(ring)))
	}

	if p.rng.Float64() < p.cfg.AnswerRate {
		omitID := p.rng.Float64() < p.cfg.OmitCallIDRate
		call.timers = append(call.timers, time.AfterFunc(ring, func() {
			if !p.emit(id, "call_answered", omitID, false) {
				return
			}
			p.mu.Lock()
			defer p.mu.Unlock()
			if !call.ended {
				call.timers = append(call.timers, time.AfterFunc(p.cfg.TalkTime, func() {
					p.emit(id, "call_end", false, true)
				}))
			}
		}))
		return
	}

	if p.cfg.NoAnswerAfter > 0 {
		call.timers = append(call.timers, time.AfterFunc(ring+p.cfg.NoAnswerAfter, func() {
			p.emit(id, "call_missed", false, true)
		}))
	}
}

func (p *Provider) emit(id, event string, omitID, final bool) bool {
	p.mu.Lock()
	call, ok := p.calls[id]
	if !ok || call.ended {
		p.mu.Unlock()
		return false
	}
	if final {
		call.ended = true
		delete(p.calls, id)
	}
	sink := p.sink
	p.mu.Unlock()

	ev := domain.ProviderEvent{
		Type: event,
		Fields: map[string]string{
			"event":  event,
			"caller": call.agent,
			"callee": call.client,
		},
	}
	if !omitID {
		ev.CallID = id
		ev.Fields["uuid"] = id
	}
	if sink != nil {
		sink(context.Background(), ev)
	}
	return true
}
