package jobs

import (
	"context"
	"time"

	"github.com/sevigo/brigadier/internal/core"
)

// SerialGroup runs its children one after another in insertion order and
// stops at the first child that does not succeed.
type SerialGroup struct {
	group
}

var _ core.Composite = (*SerialGroup)(nil)

// NewSerialGroup returns an empty, pending serial group.
func NewSerialGroup(name string, opts ...Option) *SerialGroup {
	o := buildOptions(opts)
	g := &SerialGroup{}
	g.initGroup(kindSerial, name, o.logger)
	return g
}

// Add appends runnables. It returns core.ErrGroupSealed once the group has
// started, and a *core.ValidationError wrapping core.ErrCycle when a runnable
// contains this group.
func (g *SerialGroup) Add(rs ...core.Runnable) error {
	return g.add(g, rs)
}

// Cancel cancels the group and every child that has not finished yet.
func (g *SerialGroup) Cancel() {
	if g.requestCancel() {
		cancelAll(g.seal())
		return
	}
	cancelAll(g.Children())
}

// Run runs the children in order. Child i+1 starts only after child i
// succeeded. After the first failure the remaining children stay pending.
func (g *SerialGroup) Run(ctx context.Context) core.Result {
	children := g.seal()
	if cached, ok := g.begin(); !ok {
		return cached
	}

	g.logger.InfoContext(ctx, "serial group started", "children", len(children))
	start := time.Now()
	results := pendingResults(len(children))
	result := g.finish(g.runChildren(ctx, children, results))
	g.logger.InfoContext(ctx, "serial group finished",
		"state", result.State,
		"elapsed", time.Since(start),
	)
	return result
}

func (g *SerialGroup) runChildren(ctx context.Context, children []core.Runnable, results []core.Result) core.Result {
	for i, child := range children {
		if cancelled, cause := g.groupCancelled(ctx); cancelled {
			cancelAll(children[i:])
			return g.cancelled(children, results, cause)
		}

		r := child.Run(ctx)
		results[i] = r
		if r.Succeeded() {
			continue
		}
		if cancelled, cause := g.groupCancelled(ctx); cancelled {
			cancelAll(children[i+1:])
			return g.cancelled(children, results, cause)
		}
		if core.IsFallible(child) {
			g.logger.WarnContext(ctx, "fallible child failed, continuing",
				"index", i,
				"child", child.Name(),
				"state", r.State,
			)
			continue
		}

		g.logger.WarnContext(ctx, "child failed, skipping remaining children",
			"index", i,
			"child", child.Name(),
			"state", r.State,
			"skipped", len(children)-i-1,
		)
		return core.Result{
			State:    core.StateFailed,
			Children: results,
			Err: &core.AggregateError{
				Group:    g.name,
				Failures: []core.ChildFailure{failure(i, child, r)},
			},
		}
	}
	return core.Result{State: core.StateSucceeded, Children: results}
}

// cancelled builds the group's cancelled result, refreshing the entries of
// children that were cancelled without being run.
func (g *SerialGroup) cancelled(children []core.Runnable, results []core.Result, cause error) core.Result {
	for i, c := range children {
		if results[i].State == core.StatePending {
			if h, ok := c.(resultHolder); ok {
				if cr, done := h.Result(); done {
					results[i] = cr
				}
			}
		}
	}
	r := cancelledResult(g.name, cause)
	r.Children = results
	return r
}
