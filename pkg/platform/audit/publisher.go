package audit

import (
	"context"
	"log/slog"
	"time"
)

// Publisher hands events from domain logic to the background worker over a
// buffered channel. Emission never blocks a ledger operation: when the
// buffer is full the event is dropped and logged, and the operation
// proceeds. Compliance-critical delivery comes from the outbox store, not
// from this in-process channel.
type Publisher struct {
	events chan Event
	logger *slog.Logger
}

// NewPublisher creates a publisher with the given buffer size.
func NewPublisher(buffer int, logger *slog.Logger) *Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Publisher{
		events: make(chan Event, buffer),
		logger: logger,
	}
}

// Emit enqueues an event, stamping the timestamp and category when unset.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = AuditEvent(event.Action).Category()
	}
	select {
	case p.events <- event:
		return nil
	default:
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit buffer full, event dropped",
				"action", event.Action,
				"beneficiary", event.Beneficiary,
			)
		}
		return nil
	}
}

// Events exposes the channel for the worker.
func (p *Publisher) Events() <-chan Event {
	return p.events
}
