package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/sevigo/brigadier/internal/core"
)

const (
	kindSerial     = "serial"
	kindConcurrent = "concurrent"
)

// group holds what SerialGroup and ConcurrentGroup share: an append-only
// list of children that is sealed when the group starts running.
type group struct {
	lifecycle

	logger *slog.Logger

	childMu  sync.Mutex
	children []core.Runnable
	sealed   bool
}

func (g *group) initGroup(kind, name string, logger *slog.Logger) {
	g.lifecycle.init(kind, name)
	g.logger = logger.With("group", name, "kind", kind)
}

// Name returns the group name.
func (g *group) Name() string { return g.name }

// Children returns a snapshot of the group's children in insertion order.
func (g *group) Children() []core.Runnable {
	g.childMu.Lock()
	defer g.childMu.Unlock()
	return slices.Clone(g.children)
}

// addMu serializes structural changes to every group.
var addMu sync.Mutex

// add appends runnables to self. It fails without changing the group when
// the group is sealed, a runnable is nil, or adding it would form a cycle.
func (g *group) add(self core.Runnable, rs []core.Runnable) error {
	// The cycle walk calls Children() on other groups (and possibly on self),
	// so it must run without childMu held. addMu keeps concurrent adds across
	// groups from both passing the walk.
	addMu.Lock()
	defer addMu.Unlock()
	for i, r := range rs {
		if r == nil {
			return &core.ValidationError{Field: fmt.Sprintf("runnables[%d]", i), Reason: "must not be nil"}
		}
		if reaches(r, self) {
			return &core.ValidationError{
				Field:  fmt.Sprintf("runnables[%d]", i),
				Reason: fmt.Sprintf("adding %q to %q would create a cycle", r.Name(), self.Name()),
				Err:    core.ErrCycle,
			}
		}
	}

	g.childMu.Lock()
	defer g.childMu.Unlock()
	if g.sealed {
		return fmt.Errorf("add to %q: %w", g.name, core.ErrGroupSealed)
	}
	g.children = append(g.children, rs...)
	return nil
}

// seal freezes the child list and returns it.
func (g *group) seal() []core.Runnable {
	g.childMu.Lock()
	defer g.childMu.Unlock()
	g.sealed = true
	return slices.Clone(g.children)
}

// Sealed reports whether the group has started and no longer accepts children.
func (g *group) Sealed() bool {
	g.childMu.Lock()
	defer g.childMu.Unlock()
	return g.sealed
}

// reaches reports whether target is from or one of its descendants.
// Runnables are compared by identity, so they must be comparable values
// (in practice, pointers).
func reaches(from, target core.Runnable) bool {
	visited := make(map[core.Runnable]struct{})
	stack := []core.Runnable{from}
	for len(stack) > 0 {
		r := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if r == target {
			return true
		}
		if _, seen := visited[r]; seen {
			continue
		}
		visited[r] = struct{}{}
		if c, ok := r.(core.Composite); ok {
			stack = append(stack, c.Children()...)
		}
	}
	return false
}

// resultHolder is implemented by runnables that expose their cached result.
type resultHolder interface {
	Result() (core.Result, bool)
}

// groupCancelled reports whether the group itself was cancelled, explicitly
// or through ctx, and the cause to record.
func (g *group) groupCancelled(ctx context.Context) (bool, error) {
	if g.cancelRequested() {
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		return true, err
	}
	return false, nil
}

// failure builds the ChildFailure entry for a non-successful child result.
func failure(index int, child core.Runnable, r core.Result) core.ChildFailure {
	return core.ChildFailure{Index: index, Name: child.Name(), State: r.State, Err: r.Err}
}

// pendingResults returns a result slice with every entry marked pending.
func pendingResults(n int) []core.Result {
	results := make([]core.Result, n)
	for i := range results {
		results[i] = core.Result{State: core.StatePending}
	}
	return results
}

// cancelAll cancels every child that is not yet terminal.
func cancelAll(children []core.Runnable) {
	for _, c := range children {
		if !c.State().IsTerminal() {
			c.Cancel()
		}
	}
}
