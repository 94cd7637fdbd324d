// Package broadcast mirrors engine events to redis for live dashboards.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/acme/predictive-dialer/internal/domain"
	"github.com/acme/predictive-dialer/internal/events"
	"github.com/acme/predictive-dialer/internal/queue"
)

// Writer is the subset of the redis client the broadcaster needs.
type Writer interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// StateReader returns the current engine snapshot.
type StateReader interface {
	State(ctx context.Context) (domain.Snapshot, error)
}

// Options configures the broadcaster.
type Options struct {
	Channel  string
	StateKey string
	StateTTL time.Duration
}

// Redis publishes each event on a channel and keeps the latest snapshot under
// a key so late subscribers can render immediately.
type Redis struct {
	client Writer
	state  StateReader
	opts   Options
}

// NewRedis constructs the broadcaster. state may be nil to skip snapshots.
func NewRedis(client Writer, state StateReader, opts Options) *Redis {
	return &Redis{client: client, state: state, opts: opts}
}

// Deliver is an events.DeliverFunc.
func (r *Redis) Deliver(ctx context.Context, ev events.Event) error {
	body, err := json.Marshal(queue.FromEvent(ev))
	if err != nil {
		return fmt.Errorf("broadcast: marshal event: %w", err)
	}
	if err := r.client.Publish(ctx, r.opts.Channel, body).Err(); err != nil {
		return fmt.Errorf("broadcast: publish: %w", err)
	}

	if r.state == nil || r.opts.StateKey == "" || !changesState(ev.Name) {
		return nil
	}
	snap, err := r.state.State(ctx)
	if err != nil {
		return fmt.Errorf("broadcast: read state: %w", err)
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("broadcast: marshal state: %w", err)
	}
	if err := r.client.Set(ctx, r.opts.StateKey, raw, r.opts.StateTTL).Err(); err != nil {
		return fmt.Errorf("broadcast: store state: %w", err)
	}
	return nil
}

func changesState(name events.Name) bool {
	switch name {
	case events.QueueEmpty, events.ProviderEventReceived:
		return false
	}
	return true
}
