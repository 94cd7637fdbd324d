package ingress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/acme/predictive-dialer/internal/domain"
	"github.com/acme/predictive-dialer/pkg/logger"
)

type chanReader struct {
	msgs      chan kafka.Message
	mu        sync.Mutex
	committed []int64
	closed    bool
}

func (r *chanReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case m := <-r.msgs:
		return m, nil
	}
}

func (r *chanReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *chanReader) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func (r *chanReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type recordingHandler struct {
	mu     sync.Mutex
	events []domain.ProviderEvent
}

func (h *recordingHandler) HandleProviderEvent(_ context.Context, ev domain.ProviderEvent) (domain.EventType, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	return ev.Normalized(), nil
}

func (h *recordingHandler) seen() []domain.ProviderEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.ProviderEvent(nil), h.events...)
}

func TestWorkerForwardsAndCommits(t *testing.T) {
	reader := &chanReader{msgs: make(chan kafka.Message, 2)}
	handler := &recordingHandler{}
	w := New(reader, handler, logger.NewNop())

	reader.msgs <- kafka.Message{Offset: 1, Value: []byte(`not json`)}
	reader.msgs <- kafka.Message{Offset: 2, Value: []byte(`{"uuid":"abc","event":"call_answered","caller":"+77011112233"}`)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for len(reader.commits()) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("messages not committed: %v", reader.commits())
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	events := handler.seen()
	if len(events) != 1 {
		t.Fatalf("expected one forwarded event, got %d", len(events))
	}
	if events[0].CallID != "abc" || events[0].Normalized() != domain.EventAnswered || events[0].Fields["caller"] != "+77011112233" {
		t.Fatalf("unexpected event %+v", events[0])
	}
	if !reader.closed {
		t.Fatalf("expected reader to be closed")
	}
}
