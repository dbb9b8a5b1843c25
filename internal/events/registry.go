// Package events routes events to the handlers registered for their type.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/sevigo/brigadier/internal/core"
	"github.com/sevigo/brigadier/internal/logger"
	"github.com/sevigo/brigadier/internal/metrics"
)

// Handler reacts to one event. It receives its own copy of the worker
// context and typically builds and runs jobs and groups.
type Handler func(ctx context.Context, wc *core.WorkerContext) error

// HandlerResult is the outcome of one handler invocation.
type HandlerResult struct {
	Index    int
	Err      error
	Duration time.Duration
}

// Outcome is the result of dispatching one event.
type Outcome struct {
	EventType string
	// Unhandled is true when no handler was registered for the event type.
	Unhandled bool
	// Handlers holds one entry per handler, in registration order.
	Handlers []HandlerResult
}

// Failed returns the number of handlers that failed.
func (o Outcome) Failed() int {
	n := 0
	for _, h := range o.Handlers {
		if h.Err != nil {
			n++
		}
	}
	return n
}

// Succeeded returns the number of handlers that completed without error.
func (o Outcome) Succeeded() int { return len(o.Handlers) - o.Failed() }

// Err joins every handler failure. It is nil when all handlers succeeded
// and for unhandled events.
func (o Outcome) Err() error {
	var errs []error
	for _, h := range o.Handlers {
		if h.Err != nil {
			errs = append(errs, h.Err)
		}
	}
	return errors.Join(errs...)
}

// Registry maps event types to ordered handler lists. It is built while the
// worker starts and only read while events are dispatched.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   *slog.Logger
}

// NewRegistry returns an empty registry. A nil logger discards output.
func NewRegistry(l *slog.Logger) *Registry {
	if l == nil {
		l = logger.Discard()
	}
	return &Registry{
		handlers: make(map[string][]Handler),
		logger:   l,
	}
}

// Register appends h to the handlers of eventType. Registering several
// handlers for one type is allowed; all of them run, in registration order.
func (r *Registry) Register(eventType string, h Handler) error {
	if eventType == "" {
		return &core.ValidationError{Field: "eventType", Reason: "must not be empty"}
	}
	if h == nil {
		return &core.ValidationError{Field: "handler", Reason: "must not be nil"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[eventType] = append(r.handlers[eventType], h)
	return nil
}

// Handles reports whether at least one handler is registered for eventType.
func (r *Registry) Handles(eventType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[eventType]) > 0
}

// EventTypes returns the registered event types, sorted.
func (r *Registry) EventTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Dispatch runs every handler registered for the event type of wc.Event.
// A failing or panicking handler is recorded in the Outcome and never stops
// the handlers registered after it.
func (r *Registry) Dispatch(ctx context.Context, wc *core.WorkerContext) Outcome {
	eventType := wc.Event.Type()
	r.mu.RLock()
	handlers := slices.Clone(r.handlers[eventType])
	r.mu.RUnlock()

	log := r.logger.With("event", wc.Event.ID(), "type", eventType)
	out := Outcome{EventType: eventType}
	if len(handlers) == 0 {
		log.InfoContext(ctx, "no handler registered for event")
		out.Unhandled = true
		metrics.DispatchTotal.WithLabelValues("unhandled").Inc()
		return out
	}

	out.Handlers = make([]HandlerResult, 0, len(handlers))
	for i, h := range handlers {
		start := time.Now()
		err := invoke(ctx, h, wc.Clone())
		res := HandlerResult{Index: i, Duration: time.Since(start)}
		if err != nil {
			res.Err = &core.HandlerError{EventType: eventType, Index: i, Err: err}
			metrics.HandlerFailureTotal.Inc()
			log.ErrorContext(ctx, "event handler failed", "handler", i, "error", err)
		} else {
			log.DebugContext(ctx, "event handler completed", "handler", i, "elapsed", res.Duration)
		}
		out.Handlers = append(out.Handlers, res)
	}

	if out.Failed() > 0 {
		metrics.DispatchTotal.WithLabelValues("failed").Inc()
	} else {
		metrics.DispatchTotal.WithLabelValues("handled").Inc()
	}
	return out
}

// invoke calls h, turning a panic into an error.
func invoke(ctx context.Context, h Handler, wc *core.WorkerContext) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panicked: %v\n%s", p, debug.Stack())
		}
	}()
	return h(ctx, wc)
}
