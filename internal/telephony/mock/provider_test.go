package mock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/acme/predictive-dialer/internal/config"
	"github.com/acme/predictive-dialer/internal/domain"
	"github.com/acme/predictive-dialer/internal/telephony"
	apperrors "github.com/acme/predictive-dialer/pkg/errors"
)

type recorder struct {
	mu     sync.Mutex
	events []domain.ProviderEvent
}

func (r *recorder) sink(_ context.Context, ev domain.ProviderEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []domain.ProviderEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ProviderEvent(nil), r.events...)
}

func TestPlaceCallRejected(t *testing.T) {
	p := NewProvider(config.MockProviderConfig{SuccessRate: 0}, 1)

	_, err := p.PlaceCall(context.Background(), telephony.CallRequest{Client: "+77011112233", Agent: "100"})
	if !errors.Is(err, apperrors.ErrProviderRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
}

func TestAnsweredCallReportsAnswerThenHangup(t *testing.T) {
	p := NewProvider(config.MockProviderConfig{
		SuccessRate: 1,
		AnswerRate:  1,
		RingDelay:   5 * time.Millisecond,
		TalkTime:    5 * time.Millisecond,
	}, 1)
	rec := &recorder{}
	p.SetSink(rec.sink)

	res, err := p.PlaceCall(context.Background(), telephony.CallRequest{Client: "+77011112233", Agent: "100"})
	if err != nil {
		t.Fatalf("place call: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for len(rec.snapshot()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	events := rec.snapshot()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Normalized() != domain.EventAnswered || events[1].Normalized() != domain.EventHangup {
		t.Fatalf("unexpected event order %q, %q", events[0].Type, events[1].Type)
	}
	if events[1].CallID != res.CallID {
		t.Fatalf("hangup call id = %q, want %q", events[1].CallID, res.CallID)
	}
	if events[0].Fields["callee"] != "+77011112233" {
		t.Fatalf("callee field = %q", events[0].Fields["callee"])
	}
}

func TestTerminateSuppressesEvents(t *testing.T) {
	p := NewProvider(config.MockProviderConfig{
		SuccessRate: 1,
		AnswerRate:  1,
		RingDelay:   20 * time.Millisecond,
		TalkTime:    time.Millisecond,
	}, 1)
	rec := &recorder{}
	p.SetSink(rec.sink)

	res, err := p.PlaceCall(context.Background(), telephony.CallRequest{Client: "+77011112233", Agent: "100"})
	if err != nil {
		t.Fatalf("place call: %v", err)
	}
	if ok, err := p.Terminate(context.Background(), res.CallID); !ok || err != nil {
		t.Fatalf("terminate: %v %v", ok, err)
	}
	if ok, _ := p.Terminate(context.Background(), res.CallID); !ok {
		t.Fatalf("terminating a finished call must succeed")
	}

	time.Sleep(80 * time.Millisecond)
	if n := len(rec.snapshot()); n != 0 {
		t.Fatalf("expected no events after terminate, got %d", n)
	}
}
