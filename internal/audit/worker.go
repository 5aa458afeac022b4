package audit

import (
	"context"
	"log/slog"
)

// Sink receives audit events for delivery outside the process.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// Worker consumes audit events from a channel and forwards them to a sink.
// Delivery failures are logged and skipped so one bad event cannot wedge the
// pipeline.
type Worker struct {
	sink   Sink
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(sink Sink, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.sink.Publish(ctx, event); err != nil {
				if w.logger != nil {
					w.logger.ErrorContext(ctx, "audit forward failed",
						"action", event.Action, "error", err)
				}
			}
		}
	}
}
