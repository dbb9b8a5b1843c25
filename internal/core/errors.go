package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrCancelled is the root cause carried by every cancelled Runnable.
	ErrCancelled = errors.New("cancelled")
	// ErrGroupSealed is returned when a Runnable is added to a group that has already started.
	ErrGroupSealed = errors.New("group is sealed: runnables cannot be added after run")
	// ErrCycle is returned when adding a Runnable would make a group contain itself.
	ErrCycle = errors.New("cyclic group composition")
	// ErrProjectNotFound is returned by a ProjectStore for unknown project IDs.
	ErrProjectNotFound = errors.New("project not found")
)

// ValidationError reports a malformed job, container or group composition.
// It is always returned from a constructor or an Add call, never from Run.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ExecutionError is a failure reported by the JobHost. The host error is kept verbatim.
type ExecutionError struct {
	Job string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("job %q failed: %v", e.Job, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// TimeoutError reports a job that did not finish within its deadline.
type TimeoutError struct {
	Job     string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job %q timed out after %s", e.Job, e.Timeout)
}

// CancellationError reports a Runnable stopped by an external cancel signal.
type CancellationError struct {
	Name  string
	Cause error
}

func (e *CancellationError) Error() string {
	if e.Cause != nil && !errors.Is(e.Cause, ErrCancelled) {
		return fmt.Sprintf("%q cancelled: %v", e.Name, e.Cause)
	}
	return fmt.Sprintf("%q cancelled", e.Name)
}

// Unwrap exposes ErrCancelled and, when present, the context error that caused it.
func (e *CancellationError) Unwrap() []error {
	if e.Cause == nil || errors.Is(e.Cause, ErrCancelled) {
		return []error{ErrCancelled}
	}
	return []error{ErrCancelled, e.Cause}
}

// ChildFailure identifies one failed child of a group.
type ChildFailure struct {
	Index int
	Name  string
	State State
	Err   error
}

// AggregateError is a group's rollup of one or more failed children.
type AggregateError struct {
	Group    string
	Failures []ChildFailure
}

func (e *AggregateError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "group %q: %d child(ren) failed", e.Group, len(e.Failures))
	for _, f := range e.Failures {
		fmt.Fprintf(&sb, "; [%d] %s (%s): %v", f.Index, f.Name, f.State, f.Err)
	}
	return sb.String()
}

func (e *AggregateError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// HandlerError is a single event handler failure captured by the registry.
type HandlerError struct {
	EventType string
	Index     int
	Err       error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler #%d for event %q: %v", e.Index, e.EventType, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }
