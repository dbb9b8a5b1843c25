// Package worker turns delivered events into handler dispatches: it resolves
// the event's project, builds the worker context and runs the registry.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sevigo/brigadier/internal/core"
	"github.com/sevigo/brigadier/internal/events"
	"github.com/sevigo/brigadier/internal/logger"
)

// CommitResolver looks up the commit a ref points to.
type CommitResolver interface {
	ResolveCommit(ctx context.Context, cloneURL, ref string) (string, error)
}

// StatusReporter is told when a dispatch starts and how it ended.
type StatusReporter interface {
	Started(ctx context.Context, wc *core.WorkerContext)
	Finished(ctx context.Context, wc *core.WorkerContext, out events.Outcome)
}

// Worker processes one event at a time against an explicitly constructed
// registry. It is safe for concurrent use.
type Worker struct {
	projects  core.ProjectStore
	registry  *events.Registry
	resolver  CommitResolver
	reporters []StatusReporter
	logger    *slog.Logger
}

// Option configures a Worker.
type Option func(*Worker)

// WithCommitResolver resolves refs without a commit before dispatch.
func WithCommitResolver(r CommitResolver) Option {
	return func(w *Worker) { w.resolver = r }
}

// WithStatusReporter adds a reporter notified around each dispatch.
func WithStatusReporter(r StatusReporter) Option {
	return func(w *Worker) {
		if r != nil {
			w.reporters = append(w.reporters, r)
		}
	}
}

// New creates a Worker.
func New(projects core.ProjectStore, registry *events.Registry, l *slog.Logger, opts ...Option) *Worker {
	if l == nil {
		l = logger.Discard()
	}
	w := &Worker{projects: projects, registry: registry, logger: l}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Process resolves the project of ev once, builds the worker context and
// dispatches it. An error means the event could not be dispatched at all;
// handler failures are reported in the Outcome.
func (w *Worker) Process(ctx context.Context, ev core.Event) (events.Outcome, error) {
	wc, err := w.buildContext(ctx, ev)
	if err != nil {
		return events.Outcome{EventType: ev.Type()}, err
	}

	wc.Logger.InfoContext(ctx, "dispatching event",
		"ref", wc.Git.Ref,
		"commit", wc.Git.Commit,
	)
	for _, r := range w.reporters {
		r.Started(ctx, wc)
	}

	out := w.registry.Dispatch(ctx, wc)

	for _, r := range w.reporters {
		r.Finished(ctx, wc, out)
	}
	switch {
	case out.Unhandled:
		wc.Logger.InfoContext(ctx, "event not handled")
	case out.Failed() > 0:
		wc.Logger.WarnContext(ctx, "event handled with failures",
			"failed", out.Failed(),
			"succeeded", out.Succeeded(),
		)
	default:
		wc.Logger.InfoContext(ctx, "event handled", "handlers", len(out.Handlers))
	}
	return out, nil
}

func (w *Worker) buildContext(ctx context.Context, ev core.Event) (*core.WorkerContext, error) {
	if ev.ProjectID() == "" {
		return nil, &core.ValidationError{Field: "projectID", Reason: fmt.Sprintf("event %s is not routed to a project", ev)}
	}
	project, err := w.projects.GetProject(ctx, ev.ProjectID())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project for event %s: %w", ev, err)
	}

	log := w.logger.With("event", ev.ID(), "type", ev.Type(), "project", project.ID)
	git := project.Git.Merge(ev.Git())
	if w.resolver != nil && git.Commit == "" && git.Ref != "" && git.CloneURL != "" {
		commit, err := w.resolver.ResolveCommit(ctx, git.CloneURL, git.Ref)
		if err != nil {
			// Jobs can still check out the ref itself.
			log.WarnContext(ctx, "could not resolve commit for ref", "ref", git.Ref, "error", err)
		} else {
			git.Commit = commit
		}
	}

	return &core.WorkerContext{
		Event:   ev,
		Project: project.Clone(),
		Git:     git,
		Logger:  log,
	}, nil
}
