package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/morezero/usecase-executor/pkg/execution"
)

const publisherLogPrefix = "events:publisher"

// EventPublisher is the interface for publishing execution events.
type EventPublisher interface {
	PublishExecuted(ctx context.Context, event *ExecutedEvent) error
}

// NoOpPublisher is an EventPublisher that does nothing (for in-process usage without events).
type NoOpPublisher struct{}

// PublishExecuted is a no-op.
func (p *NoOpPublisher) PublishExecuted(_ context.Context, _ *ExecutedEvent) error {
	return nil
}

// CallbackPublisher is an EventPublisher that calls a callback function (for testing).
type CallbackPublisher struct {
	callback func(ctx context.Context, event *ExecutedEvent) error
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(cb func(ctx context.Context, event *ExecutedEvent) error) *CallbackPublisher {
	return &CallbackPublisher{callback: cb}
}

// PublishExecuted calls the callback.
func (p *CallbackPublisher) PublishExecuted(ctx context.Context, event *ExecutedEvent) error {
	return p.callback(ctx, event)
}

// Observer publishes an ExecutedEvent for each execution record.
// Publish failures are logged and dropped.
type Observer struct {
	publisher EventPublisher
	source    string
}

var _ execution.Observer = (*Observer)(nil)

// NewObserver returns an execution observer backed by publisher. source is
// copied into every event.
func NewObserver(publisher EventPublisher, source string) *Observer {
	if publisher == nil {
		publisher = &NoOpPublisher{}
	}
	return &Observer{publisher: publisher, source: source}
}

// Observe implements execution.Observer.
func (o *Observer) Observe(ctx context.Context, rec execution.Record) {
	if err := o.publisher.PublishExecuted(ctx, NewExecutedEvent(rec, o.source)); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to publish executed event for %s: %v", publisherLogPrefix, rec.UseCase, err))
	}
}
