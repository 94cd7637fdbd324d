package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/acme/predictive-dialer/pkg/logger"
)

// DeliverFunc writes an event to an external system.
type DeliverFunc func(ctx context.Context, ev Event) error

// Forwarder decouples slow sinks from the emitting goroutine. Handle never
// blocks; events beyond the buffer are dropped and logged.
type Forwarder struct {
	name    string
	ch      chan Event
	deliver DeliverFunc
	filter  map[Name]bool
	logger  *logger.Logger
}

// NewForwarder creates a forwarder. When names is non-empty only those
// events are forwarded.
func NewForwarder(name string, buffer int, deliver DeliverFunc, lg *logger.Logger, names ...Name) *Forwarder {
	if buffer <= 0 {
		buffer = 256
	}
	var filter map[Name]bool
	if len(names) > 0 {
		filter = make(map[Name]bool, len(names))
		for _, n := range names {
			filter[n] = true
		}
	}
	return &Forwarder{
		name:    name,
		ch:      make(chan Event, buffer),
		deliver: deliver,
		filter:  filter,
		logger:  lg,
	}
}

// Handle is a Handler suitable for Bus.OnAll.
func (f *Forwarder) Handle(ev Event) {
	if f.filter != nil && !f.filter[ev.Name] {
		return
	}
	select {
	case f.ch <- ev:
	default:
		f.logger.Warn("events: forwarder buffer full, dropping event",
			zap.String("forwarder", f.name), zap.String("event", string(ev.Name)))
	}
}

// Run drains the buffer until ctx is cancelled.
func (f *Forwarder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-f.ch:
			if err := f.deliver(ctx, ev); err != nil && ctx.Err() == nil {
				f.logger.Error("events: forward failed",
					zap.String("forwarder", f.name), zap.String("event", string(ev.Name)), zap.Error(err))
			}
		}
	}
}
