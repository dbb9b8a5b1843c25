package core

import "context"

// Outcome is what a JobHost reports for a job that ran to completion.
type Outcome struct {
	Output   string
	ExitCode int
}

// JobHost materializes jobs as containers. Implementations live outside the
// orchestration core; jobs only talk to them through this contract.
//
//go:generate mockgen -destination=../../mocks/mock_job_host.go -package=mocks . JobHost
type JobHost interface {
	// Execute runs the job identified by handle and blocks until it finishes.
	// A non-nil error means the job failed on the host (non-zero exit, image
	// pull error, ...). The error is reported to callers verbatim.
	Execute(ctx context.Context, handle string, spec JobSpec) (Outcome, error)
	// Cancel asks the host to stop the job. It is fire-and-forget and must be
	// a no-op for unknown or already finished handles.
	Cancel(handle string)
}
