package github

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/go-github/v73/github"

	"github.com/sevigo/brigadier/internal/core"
	"github.com/sevigo/brigadier/internal/events"
	"github.com/sevigo/brigadier/internal/gitutil"
)

// DefaultStatusContext is the commit status context used when none is set.
const DefaultStatusContext = "brigadier"

// maxDescription is the longest description GitHub accepts on a status.
const maxDescription = 140

// Commit status states.
const (
	statePending = "pending"
	stateSuccess = "success"
	stateFailure = "failure"
)

// StatusReporter publishes the progress of a dispatch as a commit status on
// the commit it ran for. Events without a commit or a GitHub repository are
// skipped. Reporting failures are logged and never affect the dispatch.
type StatusReporter struct {
	client  Client
	context string
	logger  *slog.Logger
}

// NewStatusReporter creates a StatusReporter that posts statuses under statusContext.
func NewStatusReporter(client Client, statusContext string, logger *slog.Logger) *StatusReporter {
	if statusContext == "" {
		statusContext = DefaultStatusContext
	}
	return &StatusReporter{client: client, context: statusContext, logger: logger}
}

// Started marks the commit as pending.
func (s *StatusReporter) Started(ctx context.Context, wc *core.WorkerContext) {
	s.post(ctx, wc, statePending, fmt.Sprintf("%s is running", wc.Event.Type()))
}

// Finished reports the dispatch outcome.
func (s *StatusReporter) Finished(ctx context.Context, wc *core.WorkerContext, out events.Outcome) {
	state, desc := describe(out)
	s.post(ctx, wc, state, desc)
}

func (s *StatusReporter) post(ctx context.Context, wc *core.WorkerContext, state, description string) {
	if wc.Git.Commit == "" {
		return
	}
	owner, repo, ok := repository(wc)
	if !ok {
		s.logger.DebugContext(ctx, "skipping commit status for non-GitHub project", "project", wc.Project.ID)
		return
	}

	if len(description) > maxDescription {
		description = description[:maxDescription-3] + "..."
	}
	status := &github.RepoStatus{
		State:       github.Ptr(state),
		Description: github.Ptr(description),
		Context:     github.Ptr(s.context),
	}
	if err := s.client.CreateStatus(ctx, owner, repo, wc.Git.Commit, status); err != nil {
		s.logger.WarnContext(ctx, "failed to report commit status",
			"event", wc.Event.ID(),
			"state", state,
			"error", err,
		)
	}
}

// repository finds the GitHub repository of the dispatch, preferring the
// clone URL over the project ID.
func repository(wc *core.WorkerContext) (owner, repo string, ok bool) {
	for _, candidate := range []string{wc.Git.CloneURL, wc.Event.Qualifiers()["repo"], wc.Project.ID} {
		if candidate == "" {
			continue
		}
		if owner, repo, err := gitutil.ParseRepo(candidate); err == nil {
			return owner, repo, true
		}
	}
	return "", "", false
}

func describe(out events.Outcome) (state, description string) {
	switch {
	case out.Unhandled:
		return stateSuccess, fmt.Sprintf("no pipeline for %s", out.EventType)
	case out.Failed() > 0:
		return stateFailure, fmt.Sprintf("%d of %d handler(s) failed: %v", out.Failed(), len(out.Handlers), out.Err())
	default:
		return stateSuccess, fmt.Sprintf("%s succeeded", out.EventType)
	}
}
