package core

import "context"

// State is the lifecycle state shared by jobs and groups.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateTimedOut  State = "timed_out"
	StateCancelled State = "cancelled"
)

// IsTerminal reports whether no further transition can leave s.
func (s State) IsTerminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateTimedOut, StateCancelled:
		return true
	default:
		return false
	}
}

// Result is the terminal outcome of a Runnable.
type Result struct {
	// State is always terminal.
	State State
	// Output is the job output as reported by the JobHost. Empty for groups.
	Output string
	// Children holds child results of a group, index-aligned with insertion
	// order. Children that never started report StatePending.
	Children []Result
	// Err is nil only when State is StateSucceeded.
	Err error
}

// Succeeded reports whether the result is a success.
func (r Result) Succeeded() bool { return r.State == StateSucceeded }

// Outputs returns the outputs of all succeeded jobs below r, depth-first in
// index order. A job result yields its own output.
func (r Result) Outputs() []string {
	if r.Children == nil {
		if r.State == StateSucceeded {
			return []string{r.Output}
		}
		return nil
	}
	var out []string
	for _, c := range r.Children {
		out = append(out, c.Outputs()...)
	}
	return out
}

// Runnable is any unit that can be run to a terminal Result.
type Runnable interface {
	// Name identifies the runnable in logs and errors.
	Name() string
	// Run executes the runnable. Calling Run on a terminal runnable returns
	// the cached Result without executing again.
	Run(ctx context.Context) Result
	// Cancel requests cancellation. Pending runnables become Cancelled
	// immediately, running ones stop as soon as possible. No-op once terminal.
	Cancel()
	// State returns the current lifecycle state.
	State() State
}

// Composite is implemented by Runnables that contain other Runnables.
type Composite interface {
	Runnable
	Children() []Runnable
}

// Fallible is implemented by Runnables whose failure must not fail the group running them.
type Fallible interface {
	Fallible() bool
}

// IsFallible reports whether r opted into tolerated failure.
func IsFallible(r Runnable) bool {
	f, ok := r.(Fallible)
	return ok && f.Fallible()
}
