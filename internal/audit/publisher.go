package audit

import (
	"context"
	"log/slog"
	"time"
)

// Publisher accepts events from domain code and hands them to the worker via
// a buffered channel. Emit never blocks the request path: if the buffer is
// full the event is dropped and counted in the log.
type Publisher struct {
	inbox  chan Event
	logger *slog.Logger
}

func NewPublisher(buffer int, logger *slog.Logger) *Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Publisher{
		inbox:  make(chan Event, buffer),
		logger: logger,
	}
}

// Emit stamps and enqueues the event.
func (p *Publisher) Emit(_ context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case p.inbox <- event:
	default:
		p.logger.Warn("audit buffer full, event dropped",
			"action", event.Action, "category", event.Category)
	}
}

// Inbox is the worker's read side.
func (p *Publisher) Inbox() <-chan Event {
	return p.inbox
}
