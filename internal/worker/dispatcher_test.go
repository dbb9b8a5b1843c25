package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/brigadier/internal/core"
	"github.com/sevigo/brigadier/internal/events"
	"github.com/sevigo/brigadier/internal/logger"
)

type blockingProcessor struct {
	mu        sync.Mutex
	processed []string
	release   chan struct{}
	started   chan struct{}
	err       error
}

func newBlockingProcessor() *blockingProcessor {
	return &blockingProcessor{
		release: make(chan struct{}),
		started: make(chan struct{}, 16),
	}
}

func (p *blockingProcessor) Process(ctx context.Context, ev core.Event) (events.Outcome, error) {
	p.started <- struct{}{}
	select {
	case <-p.release:
	case <-ctx.Done():
	}
	p.mu.Lock()
	p.processed = append(p.processed, ev.ID())
	p.mu.Unlock()
	return events.Outcome{EventType: ev.Type()}, p.err
}

func (p *blockingProcessor) ids() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.processed...)
}

func TestDispatcher_ProcessesQueuedEvents(t *testing.T) {
	p := newBlockingProcessor()
	close(p.release)
	d := NewDispatcher(context.Background(), p, 2, 10, logger.Discard())

	var ids []string
	for range 5 {
		ev := newEvent(t, "push", core.WithProject("sevigo/brigadier"))
		ids = append(ids, ev.ID())
		require.NoError(t, d.Dispatch(context.Background(), ev))
	}
	d.Stop()

	assert.ElementsMatch(t, ids, p.ids())
}

func TestDispatcher_QueueFull(t *testing.T) {
	p := newBlockingProcessor()
	d := NewDispatcher(context.Background(), p, 1, 1, logger.Discard())

	require.NoError(t, d.Dispatch(context.Background(), newEvent(t, "push")))
	select {
	case <-p.started:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not pick up the first event")
	}
	require.NoError(t, d.Dispatch(context.Background(), newEvent(t, "push")), "one event fits in the queue")

	err := d.Dispatch(context.Background(), newEvent(t, "push"))
	require.ErrorIs(t, err, core.ErrQueueFull)

	close(p.release)
	d.Stop()
	assert.Len(t, p.ids(), 2)
}

func TestDispatcher_StopRejectsNewEvents(t *testing.T) {
	p := newBlockingProcessor()
	close(p.release)
	d := NewDispatcher(context.Background(), p, 0, 0, logger.Discard())

	d.Stop()
	d.Stop()

	err := d.Dispatch(context.Background(), newEvent(t, "push"))
	require.ErrorIs(t, err, ErrStopped)
}

func TestDispatcher_ProcessingErrorsDoNotStopWorkers(t *testing.T) {
	p := newBlockingProcessor()
	close(p.release)
	p.err = errors.New("project not found")
	d := NewDispatcher(context.Background(), p, 1, 4, logger.Discard())

	require.NoError(t, d.Dispatch(context.Background(), newEvent(t, "push")))
	require.NoError(t, d.Dispatch(context.Background(), newEvent(t, "push")))
	d.Stop()

	assert.Len(t, p.ids(), 2)
}

func TestDispatcher_ContextCancelsProcessing(t *testing.T) {
	p := newBlockingProcessor()
	ctx, cancel := context.WithCancel(context.Background())
	d := NewDispatcher(ctx, p, 1, 1, logger.Discard())

	require.NoError(t, d.Dispatch(context.Background(), newEvent(t, "push")))
	<-p.started
	cancel()
	d.Stop()

	assert.Len(t, p.ids(), 1)
}
