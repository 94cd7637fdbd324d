// Package ingress feeds provider events published on Kafka into the engine.
package ingress

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/predictive-dialer/internal/domain"
	"github.com/acme/predictive-dialer/internal/telephony"
	"github.com/acme/predictive-dialer/pkg/logger"
)

// Reader is the subset of *kafka.Reader the worker uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventHandler receives provider events.
type EventHandler interface {
	HandleProviderEvent(ctx context.Context, ev domain.ProviderEvent) (domain.EventType, error)
}

// Worker consumes provider webhook payloads from a topic.
type Worker struct {
	reader  Reader
	handler EventHandler
	logger  *logger.Logger
	tracer  trace.Tracer
}

// New creates an ingress worker.
func New(reader Reader, handler EventHandler, lg *logger.Logger) *Worker {
	return &Worker{
		reader:  reader,
		handler: handler,
		logger:  lg.Named("ingress"),
		tracer:  otel.Tracer("dialer.ingress"),
	}
}

// Run processes messages until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	defer w.reader.Close()

	for {
		msg, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("fetch", zap.Error(err))
			continue
		}

		w.process(ctx, msg)

		if err := w.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			w.logger.Error("commit", zap.Error(err))
		}
	}
}

func (w *Worker) process(ctx context.Context, msg kafka.Message) {
	var payload map[string]any
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		w.logger.Warn("unmarshal", zap.Error(err), zap.Int64("offset", msg.Offset))
		return
	}

	ev := telephony.EventFromPayload(payload)
	sctx, span := w.tracer.Start(ctx, "provider.event", trace.WithAttributes(
		attribute.String("call.id", ev.CallID),
		attribute.String("event.type", ev.Type),
	))
	defer span.End()

	kind, err := w.handler.HandleProviderEvent(sctx, ev)
	if err != nil {
		span.RecordError(err)
		w.logger.Error("handle provider event", zap.Error(err), zap.String("call_id", ev.CallID))
		return
	}
	w.logger.Debug("provider event", zap.String("call_id", ev.CallID), zap.String("type", string(kind)))
}
