// Package telephony abstracts the voice provider that places and tears
// down outbound legs.
package telephony

import (
	"context"

	"github.com/acme/predictive-dialer/internal/domain"
)

// CallRequest asks the provider to ring Client and bridge the answered leg
// to the Agent extension.
type CallRequest struct {
	Client string
	Agent  string
}

// Result is a successful placement.
type Result struct {
	CallID string
}

// Provider places and terminates calls. Implementations must be safe for
// concurrent use and treat Terminate on a finished call as success.
type Provider interface {
	PlaceCall(ctx context.Context, req CallRequest) (Result, error)
	Terminate(ctx context.Context, callID string) (bool, error)
}

// EventSink receives provider events produced outside the webhook path.
type EventSink func(ctx context.Context, ev domain.ProviderEvent)
