package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sevigo/brigadier/internal/core"
	"github.com/sevigo/brigadier/internal/metrics"
)

const kindJob = "job"

// Job is a Runnable backed by a container execution on a JobHost.
type Job struct {
	lifecycle

	spec   core.JobSpec
	host   core.JobHost
	handle string
	logger *slog.Logger
}

var _ core.Runnable = (*Job)(nil)

// hostResult carries the return values of JobHost.Execute across goroutines.
type hostResult struct {
	outcome core.Outcome
	err     error
}

// NewJob validates spec and returns a pending Job. The spec is deep-copied,
// so later changes by the caller are not seen by the job.
func NewJob(spec core.JobSpec, host core.JobHost, opts ...Option) (*Job, error) {
	if host == nil {
		return nil, &core.ValidationError{Field: "host", Reason: "job host must not be nil"}
	}
	spec = spec.Clone()
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	j := &Job{
		spec:   spec,
		host:   host,
		handle: spec.Name + "-" + uuid.NewString()[:8],
	}
	j.lifecycle.init(kindJob, spec.Name)
	j.logger = o.logger.With("job", spec.Name, "handle", j.handle)
	return j, nil
}

// Name returns the job name.
func (j *Job) Name() string { return j.spec.Name }

// Handle returns the identifier the job is known by on the host.
func (j *Job) Handle() string { return j.handle }

// Spec returns a copy of the job spec.
func (j *Job) Spec() core.JobSpec { return j.spec.Clone() }

// Fallible reports whether the job's failure is tolerated by its group.
func (j *Job) Fallible() bool { return j.spec.Fallible }

// Cancel stops the job. A pending job becomes cancelled without ever
// reaching the host; a running job asks the host to stop its container.
func (j *Job) Cancel() {
	if j.requestCancel() {
		j.logger.Info("job cancelled before start")
	}
}

// Run executes the job on the host and blocks until it is terminal.
func (j *Job) Run(ctx context.Context) core.Result {
	if cached, ok := j.begin(); !ok {
		return cached
	}
	if err := ctx.Err(); err != nil {
		return j.finish(cancelledResult(j.spec.Name, err))
	}

	j.logger.InfoContext(ctx, "job started",
		"image", j.spec.PrimaryContainer.Image,
		"timeout", j.spec.Timeout,
	)
	start := time.Now()
	result := j.finish(j.execute(ctx))

	attrs := []any{"state", result.State, "elapsed", time.Since(start)}
	if result.Err != nil {
		attrs = append(attrs, "error", result.Err)
		j.logger.WarnContext(ctx, "job finished", attrs...)
	} else {
		j.logger.InfoContext(ctx, "job finished", attrs...)
	}
	return result
}

// execute runs the single Execute call for this job and races it against
// the timeout, explicit cancellation and ctx. The host call runs in its own
// goroutine so that waiting on it never blocks other runnables.
func (j *Job) execute(ctx context.Context) core.Result {
	// The host call is stopped through Cancel(handle), not through the
	// caller's ctx; execCtx only unwinds the call once the job is done.
	execCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	defer stop()

	results := make(chan hostResult, 1)
	go func() {
		outcome, err := j.host.Execute(execCtx, j.handle, j.spec.Clone())
		results <- hostResult{outcome: outcome, err: err}
	}()

	start := time.Now()
	var deadline <-chan time.Time
	if j.spec.Timeout > 0 {
		timer := time.NewTimer(j.spec.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case r := <-results:
		if j.spec.Timeout > 0 && time.Since(start) > j.spec.Timeout {
			return j.timedOut()
		}
		if r.err != nil {
			return core.Result{
				State:  core.StateFailed,
				Output: r.outcome.Output,
				Err:    &core.ExecutionError{Job: j.spec.Name, Err: r.err},
			}
		}
		return core.Result{State: core.StateSucceeded, Output: r.outcome.Output}
	case <-deadline:
		return j.timedOut()
	case <-j.cancel:
		j.stopOnHost("cancel")
		return cancelledResult(j.spec.Name, nil)
	case <-ctx.Done():
		j.stopOnHost("cancel")
		return cancelledResult(j.spec.Name, ctx.Err())
	}
}

func (j *Job) timedOut() core.Result {
	j.stopOnHost("timeout")
	return core.Result{
		State: core.StateTimedOut,
		Err:   &core.TimeoutError{Job: j.spec.Name, Timeout: j.spec.Timeout},
	}
}

// stopOnHost issues the single cancel request allowed per job. The host
// contract makes Cancel fire-and-forget; teardown is not awaited.
func (j *Job) stopOnHost(reason string) {
	metrics.HostCancelTotal.WithLabelValues(reason).Inc()
	j.logger.Info("requesting job stop on host", "reason", reason)
	j.host.Cancel(j.handle)
}
