package audit

import (
	"context"
	"time"

	"mobilefix/pkg/requestcontext"
)

// Publisher hands events to the background worker. Emit never blocks the
// request path: when the inbox is full the event is dropped rather than
// stalling a write to the shop's primary data.
type Publisher struct {
	inbox chan Event
}

// NewPipeline wires a publisher to a worker draining into store. The
// returned worker must be running for events to reach the store.
func NewPipeline(store Store, buffer int) (*Publisher, *Worker) {
	inbox := make(chan Event, buffer)
	return &Publisher{inbox: inbox}, NewWorker(store, inbox)
}

// Emit stamps the event with the request clock and id, then enqueues it.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	select {
	case p.inbox <- event:
	default:
	}
}

// Drain blocks until the inbox is empty or the timeout elapses. Intended
// for shutdown and tests.
func (p *Publisher) Drain(timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for len(p.inbox) > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
}
