package events

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/acme/predictive-dialer/pkg/logger"
)

// Handler observes an event. Handlers run on the emitting goroutine and
// must not block.
type Handler func(Event)

// Bus is a named observer registry.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Name][]Handler
	all      []Handler
	logger   *logger.Logger
	now      func() time.Time
}

// NewBus constructs an empty bus.
func NewBus(lg *logger.Logger) *Bus {
	if lg == nil {
		lg = logger.NewNop()
	}
	return &Bus{
		handlers: make(map[Name][]Handler),
		logger:   lg,
		now:      time.Now,
	}
}

// On registers a handler for a single event name.
func (b *Bus) On(name Name, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

// OnAll registers a handler for every event.
func (b *Bus) OnAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

// Emit delivers an event to the registered handlers. A panicking handler is
// logged and does not affect the others.
func (b *Bus) Emit(name Name, payload any) {
	ev := Event{Name: name, At: b.now().UTC(), Payload: payload}

	b.mu.RLock()
	targets := make([]Handler, 0, len(b.handlers[name])+len(b.all))
	targets = append(targets, b.handlers[name]...)
	targets = append(targets, b.all...)
	b.mu.RUnlock()

	for _, h := range targets {
		b.deliver(h, ev)
	}
}

func (b *Bus) deliver(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("events: handler panicked", zap.String("event", string(ev.Name)), zap.String("panic", fmt.Sprint(r)))
		}
	}()
	h(ev)
}
