package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/acme/predictive-dialer/pkg/logger"
)

func TestBusDeliversToNamedAndAllHandlers(t *testing.T) {
	bus := NewBus(nil)

	var named, all []Name
	bus.On(CallAnswered, func(ev Event) { named = append(named, ev.Name) })
	bus.OnAll(func(ev Event) { all = append(all, ev.Name) })

	bus.Emit(CallAnswered, CallPayload{CallID: "x"})
	bus.Emit(QueueEmpty, nil)

	if len(named) != 1 || named[0] != CallAnswered {
		t.Fatalf("named handler got %v", named)
	}
	if len(all) != 2 {
		t.Fatalf("catch-all handler got %v", all)
	}
}

func TestBusSurvivesPanickingHandler(t *testing.T) {
	bus := NewBus(logger.NewNop())

	called := false
	bus.On(StateChanged, func(Event) { panic("boom") })
	bus.On(StateChanged, func(Event) { called = true })

	bus.Emit(StateChanged, StatePayload{})
	if !called {
		t.Fatalf("second handler was not called")
	}
}

func TestForwarderFiltersAndDelivers(t *testing.T) {
	var (
		mu  sync.Mutex
		got []Name
	)
	done := make(chan struct{}, 1)
	fwd := NewForwarder("test", 4, func(_ context.Context, ev Event) error {
		mu.Lock()
		got = append(got, ev.Name)
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, logger.NewNop(), CallEnded)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fwd.Run(ctx)

	fwd.Handle(Event{Name: QueueEmpty})
	fwd.Handle(Event{Name: CallEnded})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("event was not delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != CallEnded {
		t.Fatalf("unexpected deliveries %v", got)
	}
}
