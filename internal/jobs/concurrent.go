package jobs

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sevigo/brigadier/internal/core"
)

// ConcurrentGroup runs all of its children at the same time and waits for
// every one of them, collecting all failures.
type ConcurrentGroup struct {
	group
	limit int
}

var _ core.Composite = (*ConcurrentGroup)(nil)

// NewConcurrentGroup returns an empty, pending concurrent group.
func NewConcurrentGroup(name string, opts ...Option) *ConcurrentGroup {
	o := buildOptions(opts)
	g := &ConcurrentGroup{limit: o.limit}
	g.initGroup(kindConcurrent, name, o.logger)
	return g
}

// Add appends runnables. It returns core.ErrGroupSealed once the group has
// started, and a *core.ValidationError wrapping core.ErrCycle when a runnable
// contains this group.
func (g *ConcurrentGroup) Add(rs ...core.Runnable) error {
	return g.add(g, rs)
}

// Cancel cancels the group and, concurrently, every child that has not
// finished yet.
func (g *ConcurrentGroup) Cancel() {
	var children []core.Runnable
	if g.requestCancel() {
		children = g.seal()
	} else {
		children = g.Children()
	}

	var wg sync.WaitGroup
	for _, c := range children {
		if c.State().IsTerminal() {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Cancel()
		}()
	}
	wg.Wait()
}

// Run starts every child without waiting for the others and returns once
// all of them are terminal. Child results keep their insertion index.
func (g *ConcurrentGroup) Run(ctx context.Context) core.Result {
	children := g.seal()
	if cached, ok := g.begin(); !ok {
		return cached
	}

	g.logger.InfoContext(ctx, "concurrent group started", "children", len(children), "limit", g.limit)
	start := time.Now()

	results := pendingResults(len(children))
	var eg errgroup.Group
	if g.limit > 0 {
		eg.SetLimit(g.limit)
	}
	for i, child := range children {
		eg.Go(func() error {
			// Each goroutine owns exactly one index of results.
			results[i] = child.Run(ctx)
			return nil
		})
	}
	_ = eg.Wait()

	result := g.finish(g.collect(ctx, children, results))
	g.logger.InfoContext(ctx, "concurrent group finished",
		"state", result.State,
		"elapsed", time.Since(start),
	)
	return result
}

func (g *ConcurrentGroup) collect(ctx context.Context, children []core.Runnable, results []core.Result) core.Result {
	if cancelled, cause := g.groupCancelled(ctx); cancelled {
		r := cancelledResult(g.name, cause)
		r.Children = results
		return r
	}

	var failures []core.ChildFailure
	for i, r := range results {
		if r.Succeeded() {
			continue
		}
		if core.IsFallible(children[i]) {
			g.logger.WarnContext(ctx, "fallible child failed", "index", i, "child", children[i].Name(), "state", r.State)
			continue
		}
		failures = append(failures, failure(i, children[i], r))
	}
	if len(failures) > 0 {
		return core.Result{
			State:    core.StateFailed,
			Children: results,
			Err:      &core.AggregateError{Group: g.name, Failures: failures},
		}
	}
	return core.Result{State: core.StateSucceeded, Children: results}
}
