package jobs

import (
	"sync"
	"time"

	"github.com/sevigo/brigadier/internal/core"
	"github.com/sevigo/brigadier/internal/metrics"
)

// lifecycle is the state machine shared by jobs and groups:
// pending -> running -> {succeeded, failed, timed_out, cancelled}, plus
// pending -> cancelled. Terminal states never change.
type lifecycle struct {
	kind string
	name string

	mu      sync.Mutex
	state   core.State
	result  core.Result
	started time.Time

	done       chan struct{} // closed once terminal
	cancel     chan struct{} // closed on the first Cancel of a running unit
	cancelOnce sync.Once
}

func (l *lifecycle) init(kind, name string) {
	l.kind = kind
	l.name = name
	l.state = core.StatePending
	l.done = make(chan struct{})
	l.cancel = make(chan struct{})
}

// begin moves a pending unit to running and returns true. For a unit that
// is running it waits for the terminal result; for a terminal unit it
// returns the cached result immediately.
func (l *lifecycle) begin() (core.Result, bool) {
	l.mu.Lock()
	switch l.state {
	case core.StatePending:
		l.state = core.StateRunning
		l.started = time.Now()
		l.mu.Unlock()
		return core.Result{}, true
	case core.StateRunning:
		l.mu.Unlock()
		<-l.done
		l.mu.Lock()
	}
	r := l.result
	l.mu.Unlock()
	return r, false
}

// finish records the terminal result. Returns the result actually stored.
func (l *lifecycle) finish(r core.Result) core.Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return l.result
	}
	l.state = r.State
	l.result = r
	close(l.done)
	metrics.ObserveRunnable(l.kind, string(r.State), time.Since(l.started))
	return r
}

// requestCancel cancels a pending unit in place and signals a running one.
// It reports whether the unit was pending.
func (l *lifecycle) requestCancel() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state {
	case core.StatePending:
		l.state = core.StateCancelled
		l.result = cancelledResult(l.name, nil)
		close(l.done)
		metrics.ObserveRunnable(l.kind, string(core.StateCancelled), 0)
		return true
	case core.StateRunning:
		l.cancelOnce.Do(func() { close(l.cancel) })
	}
	return false
}

// cancelRequested reports whether Cancel was called while running.
func (l *lifecycle) cancelRequested() bool {
	select {
	case <-l.cancel:
		return true
	default:
		return false
	}
}

// State returns the current lifecycle state.
func (l *lifecycle) State() core.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Result returns the terminal result, if any.
func (l *lifecycle) Result() (core.Result, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.result, l.state.IsTerminal()
}

// Done is closed once the unit reaches a terminal state.
func (l *lifecycle) Done() <-chan struct{} { return l.done }

func cancelledResult(name string, cause error) core.Result {
	return core.Result{
		State: core.StateCancelled,
		Err:   &core.CancellationError{Name: name, Cause: cause},
	}
}
