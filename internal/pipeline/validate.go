package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/sevigo/brigadier/internal/core"
)

// errNotRunnable is returned by the host used for validation; validated
// trees are never run.
var errNotRunnable = errors.New("pipeline built for validation only")

type validationHost struct{}

func (validationHost) Execute(context.Context, string, core.JobSpec) (core.Outcome, error) {
	return core.Outcome{}, errNotRunnable
}

func (validationHost) Cancel(string) {}

// Validate builds every pipeline of projects against a synthetic event and
// reports all composition, job and secret errors found.
func Validate(projects []core.Project) error {
	b := NewBuilder(validationHost{}, nil, 0)
	var errs []error
	for _, p := range projects {
		for i, def := range p.Pipelines {
			ev, err := core.NewEvent("validate", def.On, nil, core.WithProject(p.ID))
			if err != nil {
				errs = append(errs, fmt.Errorf("project %q pipeline #%d: %w", p.ID, i, err))
				continue
			}
			wc := &core.WorkerContext{Event: ev, Project: p.Clone(), Git: p.Git}
			if _, err := b.Build(wc, def.Run); err != nil {
				errs = append(errs, fmt.Errorf("project %q pipeline #%d (%s): %w", p.ID, i, def.On, err))
			}
		}
	}
	return errors.Join(errs...)
}
