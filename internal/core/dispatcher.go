package core

import (
	"context"
	"errors"
)

// ErrQueueFull is returned by an EventDispatcher that cannot accept more events.
var ErrQueueFull = errors.New("event queue is full")

// EventDispatcher defines the contract for a system that can accept and queue
// events for asynchronous processing. This interface decouples the event
// source (e.g., a webhook handler) from the worker that runs handlers.
type EventDispatcher interface {
	// Dispatch accepts an Event and queues it for processing.
	// It returns ErrQueueFull if the event cannot be queued, providing a
	// mechanism for backpressure.
	Dispatch(ctx context.Context, event Event) error
	// Stop stops accepting events and waits for in-flight dispatches.
	Stop()
}
