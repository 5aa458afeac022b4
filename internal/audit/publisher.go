package audit

import (
	"context"
	"time"
)

// Publisher captures structured audit events. Events are persisted through
// the store and handed to the worker inbox for forwarding; a full inbox drops
// the forward rather than blocking the request path.
type Publisher struct {
	store Store
	inbox chan Event
}

func NewPublisher(store Store, bufferSize int) *Publisher {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Publisher{store: store, inbox: make(chan Event, bufferSize)}
}

func (p *Publisher) Emit(ctx context.Context, base Event) error {
	if base.Timestamp.IsZero() {
		base.Timestamp = time.Now()
	}
	if err := p.store.Append(ctx, base); err != nil {
		return err
	}
	select {
	case p.inbox <- base:
	default:
	}
	return nil
}

func (p *Publisher) List(ctx context.Context, userID string) ([]Event, error) {
	return p.store.ListByUser(ctx, userID)
}

// Inbox exposes the forwarding channel for the worker.
func (p *Publisher) Inbox() <-chan Event {
	return p.inbox
}
