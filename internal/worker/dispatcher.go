package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sevigo/brigadier/internal/core"
	"github.com/sevigo/brigadier/internal/events"
	"github.com/sevigo/brigadier/internal/metrics"
)

// ErrStopped is returned by Dispatch after Stop was called.
var ErrStopped = errors.New("dispatcher is stopped")

// Processor handles one event. *Worker implements it.
type Processor interface {
	Process(ctx context.Context, ev core.Event) (events.Outcome, error)
}

// dispatcher implements core.EventDispatcher and manages a pool of worker
// goroutines processing queued events.
type dispatcher struct {
	ctx        context.Context
	processor  Processor
	queue      chan core.Event // Queue of incoming events.
	maxWorkers int             // Number of concurrent workers.
	wg         sync.WaitGroup  // Tracks active workers for graceful shutdown.
	logger     *slog.Logger

	mu      sync.RWMutex
	stopped bool
}

// NewDispatcher initializes a dispatcher with a worker pool. Events are
// processed with ctx, so cancelling it cancels every running pipeline.
// If maxWorkers or queueSize is 0 or negative, it defaults to 1.
func NewDispatcher(ctx context.Context, processor Processor, maxWorkers, queueSize int, logger *slog.Logger) core.EventDispatcher {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	d := &dispatcher{
		ctx:        ctx,
		processor:  processor,
		maxWorkers: maxWorkers,
		queue:      make(chan core.Event, queueSize),
		logger:     logger,
	}
	d.startWorkers()
	return d
}

// startWorkers launches maxWorkers goroutines to process events from the queue.
func (d *dispatcher) startWorkers() {
	for i := range d.maxWorkers {
		d.wg.Add(1)
		go d.startWorker(i)
	}
}

// startWorker processes events from the queue until it's closed.
func (d *dispatcher) startWorker(workerID int) {
	defer d.wg.Done()
	d.logger.Debug("starting event worker", "id", workerID)

	for ev := range d.queue {
		metrics.QueueDepth.Set(float64(len(d.queue)))
		d.processEvent(workerID, ev)
	}

	d.logger.Debug("shutting down event worker", "id", workerID)
}

// processEvent runs one event and logs how it went.
func (d *dispatcher) processEvent(workerID int, ev core.Event) {
	d.logger.Info("worker processing event",
		"worker_id", workerID,
		"event", ev.ID(),
		"type", ev.Type(),
		"project", ev.ProjectID(),
	)

	out, err := d.processor.Process(d.ctx, ev)
	if err != nil {
		metrics.DispatchTotal.WithLabelValues("failed").Inc()
		d.logger.Error("event could not be processed",
			"event", ev.ID(),
			"project", ev.ProjectID(),
			"error", err,
		)
		return
	}
	if err := out.Err(); err != nil {
		d.logger.Warn("event handlers failed", "event", ev.ID(), "error", err)
	}
}

// Dispatch queues an event for processing by a worker.
func (d *dispatcher) Dispatch(_ context.Context, ev core.Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrStopped
	}

	select {
	case d.queue <- ev:
		metrics.QueueDepth.Set(float64(len(d.queue)))
		d.logger.Info("event queued", "event", ev.ID(), "type", ev.Type())
		return nil
	default:
		return fmt.Errorf("cannot accept event %s: %w", ev.ID(), core.ErrQueueFull)
	}
}

// Stop stops accepting events and waits for queued and running events to finish.
func (d *dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	d.logger.Info("stopping dispatcher and waiting for events to finish")
	d.wg.Wait()
	metrics.QueueDepth.Set(0)
	d.logger.Info("all events have finished")
}
