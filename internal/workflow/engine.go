package workflow

import (
	"context"

	"go.uber.org/zap"

	"github.com/capitalize-ai/whatsapp-platform/internal/event"
	"github.com/capitalize-ai/whatsapp-platform/internal/model"
	"github.com/capitalize-ai/whatsapp-platform/pkg/logger"
	"github.com/capitalize-ai/whatsapp-platform/pkg/metrics"
)

// Feed is an outbound tap for canonical events, typically the JetStream
// event feed. Publishing is best-effort: feed failures never abort dispatch.
type Feed interface {
	PublishEvent(ctx context.Context, ev model.Event) (uint64, error)
}

// Engine ties the event normalizer to the dispatcher and the durable feed.
type Engine struct {
	dispatcher *event.Dispatcher
	feed       Feed
	logger     *logger.Logger
}

// NewEngine creates an engine. feed may be nil when no event feed is
// configured.
func NewEngine(dispatcher *event.Dispatcher, feed Feed, log *logger.Logger) *Engine {
	return &Engine{
		dispatcher: dispatcher,
		feed:       feed,
		logger:     log,
	}
}

// On registers a handler for a canonical event type.
func (e *Engine) On(typ model.EventType, handler event.Handler) *event.Subscription {
	return e.dispatcher.On(typ, handler)
}

// Off deregisters a subscription.
func (e *Engine) Off(sub *event.Subscription) {
	e.dispatcher.Off(sub)
}

// HandleWebhook normalizes an inbound payload and emits the resulting
// canonical event. Unrecognized payloads are dropped silently. A handler
// error aborts the remaining handlers and is returned to the caller.
func (e *Engine) HandleWebhook(ctx context.Context, payload any) error {
	ev, ok := event.Normalize(payload)
	if !ok {
		metrics.WebhookDroppedTotal.Inc()
		e.logger.Debug("webhook payload produced no event")
		return nil
	}

	metrics.WebhookEventsTotal.WithLabelValues(string(ev.Type)).Inc()
	e.logger.Debug("webhook event normalized",
		zap.String("type", string(ev.Type)),
		zap.String("from", ev.Data.From),
		zap.String("to", ev.Data.To),
	)

	if e.feed != nil {
		if _, err := e.feed.PublishEvent(ctx, ev); err != nil {
			metrics.EventFeedPublishesTotal.WithLabelValues(string(ev.Type), "failure").Inc()
			e.logger.Warn("event feed publish failed",
				zap.String("type", string(ev.Type)),
				zap.Error(err),
			)
		} else {
			metrics.EventFeedPublishesTotal.WithLabelValues(string(ev.Type), "success").Inc()
		}
	}

	return e.dispatcher.Emit(ctx, ev)
}
