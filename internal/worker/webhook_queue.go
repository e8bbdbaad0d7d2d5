package worker

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/secureshare/portal/internal/events"
	"github.com/secureshare/portal/internal/service"
)

// ErrQueueFull is returned when a webhook cannot be queued without blocking.
var ErrQueueFull = errors.New("webhook queue full")

// WebhookQueue hands events to a background goroutine so publishers never
// wait on the receiving endpoint.
type WebhookQueue struct {
	next   service.WebhookDeliverer
	jobs   chan events.Event
	logger *zap.Logger
}

// NewWebhookQueue buffers up to size events in front of next.
func NewWebhookQueue(next service.WebhookDeliverer, size int, logger *zap.Logger) *WebhookQueue {
	if size <= 0 {
		size = 1
	}
	return &WebhookQueue{next: next, jobs: make(chan events.Event, size), logger: logger}
}

// Deliver enqueues event and returns without waiting for delivery.
func (q *WebhookQueue) Deliver(_ context.Context, event events.Event) error {
	select {
	case q.jobs <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start delivers queued events until ctx is done. The returned channel
// closes once the loop has exited.
func (q *WebhookQueue) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-q.jobs:
				if err := q.next.Deliver(ctx, event); err != nil {
					q.logger.Warn("webhook delivery failed",
						zap.String("event_id", event.ID),
						zap.String("event_type", string(event.Type)),
						zap.Error(err))
				}
			}
		}
	}()
	return done
}
