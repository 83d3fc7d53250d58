package audit

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Sink is an optional external destination, satisfied by the Kafka producer.
type Sink interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Worker consumes audit events from the publisher's channel and fans them
// out to the store and, when configured, an external sink. Sink failures are
// logged, never propagated: audit delivery is best-effort and must not take
// the service down.
type Worker struct {
	store  Store
	sink   Sink
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(store Store, sink Sink, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, sink: sink, inbox: inbox, logger: logger}
}

// Run processes events until the context is cancelled. On shutdown it drains
// whatever is already buffered before returning.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case event := <-w.inbox:
			w.handle(ctx, event)
		}
	}
}

func (w *Worker) drain() {
	for {
		select {
		case event := <-w.inbox:
			w.handle(context.Background(), event)
		default:
			return
		}
	}
}

func (w *Worker) handle(ctx context.Context, event Event) {
	if err := w.store.Append(ctx, event); err != nil {
		w.logger.Error("audit store append failed", "action", event.Action, "error", err)
	}
	if w.sink == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		w.logger.Error("audit event encode failed", "action", event.Action, "error", err)
		return
	}
	if err := w.sink.Publish(ctx, string(event.Category), payload); err != nil {
		w.logger.Warn("audit sink publish failed", "action", event.Action, "error", err)
	}
}
