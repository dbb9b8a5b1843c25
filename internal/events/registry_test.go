package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/brigadier/internal/core"
)

func newContext(t *testing.T, eventType string) *core.WorkerContext {
	t.Helper()
	ev, err := core.NewEvent("github", eventType, []byte(`{"ref":"refs/heads/main"}`))
	require.NoError(t, err)
	return &core.WorkerContext{
		Event:   ev,
		Project: core.Project{ID: "sevigo/brigadier", Secrets: map[string]string{"token": "s3cr3t"}},
		Git:     core.GitConfig{Ref: "refs/heads/main"},
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry(nil)

	var verr *core.ValidationError
	require.ErrorAs(t, r.Register("", func(context.Context, *core.WorkerContext) error { return nil }), &verr)
	assert.Equal(t, "eventType", verr.Field)
	require.ErrorAs(t, r.Register("push", nil), &verr)
	assert.Equal(t, "handler", verr.Field)

	require.NoError(t, r.Register("push", func(context.Context, *core.WorkerContext) error { return nil }))
	require.NoError(t, r.Register("pull_request", func(context.Context, *core.WorkerContext) error { return nil }))
	assert.True(t, r.Handles("push"))
	assert.False(t, r.Handles("release"))
	assert.Equal(t, []string{"pull_request", "push"}, r.EventTypes())
}

func TestRegistry_DispatchUnhandled(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register("push", func(context.Context, *core.WorkerContext) error {
		t.Fatal("push handler must not run for other events")
		return nil
	}))

	out := r.Dispatch(context.Background(), newContext(t, "issue_comment"))

	assert.True(t, out.Unhandled)
	assert.Empty(t, out.Handlers)
	assert.NoError(t, out.Err())
}

func TestRegistry_DispatchFailureDoesNotStopSiblings(t *testing.T) {
	r := NewRegistry(nil)
	boom := errors.New("build script exploded")
	secondRan := false

	require.NoError(t, r.Register("push", func(context.Context, *core.WorkerContext) error { return boom }))
	require.NoError(t, r.Register("push", func(context.Context, *core.WorkerContext) error {
		secondRan = true
		return nil
	}))

	out := r.Dispatch(context.Background(), newContext(t, "push"))

	assert.False(t, out.Unhandled)
	require.Len(t, out.Handlers, 2)
	assert.True(t, secondRan)
	assert.Equal(t, 1, out.Failed())
	assert.Equal(t, 1, out.Succeeded())

	err := out.Err()
	require.ErrorIs(t, err, boom)
	var herr *core.HandlerError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, 0, herr.Index)
	assert.Equal(t, "push", herr.EventType)
	assert.NoError(t, out.Handlers[1].Err)
}

func TestRegistry_DispatchRecoversPanics(t *testing.T) {
	r := NewRegistry(nil)
	var order []int
	require.NoError(t, r.Register("push", func(context.Context, *core.WorkerContext) error {
		order = append(order, 0)
		panic("nil map write")
	}))
	require.NoError(t, r.Register("push", func(context.Context, *core.WorkerContext) error {
		order = append(order, 1)
		return nil
	}))

	var out Outcome
	require.NotPanics(t, func() { out = r.Dispatch(context.Background(), newContext(t, "push")) })

	assert.Equal(t, []int{0, 1}, order)
	require.Error(t, out.Handlers[0].Err)
	assert.Contains(t, out.Handlers[0].Err.Error(), "nil map write")
}

func TestRegistry_DispatchIsolatesContexts(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register("push", func(_ context.Context, wc *core.WorkerContext) error {
		wc.Project.Secrets["token"] = "tampered"
		wc.Git.Ref = "refs/heads/evil"
		return nil
	}))
	var seen core.WorkerContext
	require.NoError(t, r.Register("push", func(_ context.Context, wc *core.WorkerContext) error {
		seen = *wc
		return nil
	}))

	wc := newContext(t, "push")
	out := r.Dispatch(context.Background(), wc)

	require.NoError(t, out.Err())
	assert.Equal(t, "s3cr3t", seen.Project.Secrets["token"])
	assert.Equal(t, "refs/heads/main", seen.Git.Ref)
	assert.Equal(t, "s3cr3t", wc.Project.Secrets["token"])
}

func TestRegistry_DispatchIsolatesPipelines(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register("push", func(_ context.Context, wc *core.WorkerContext) error {
		run := &wc.Project.Pipelines[0].Run
		run.Job.PrimaryContainer.Image = "evil:1"
		run.Job.PrimaryContainer.Environment["MODE"] = "tampered"
		run.Serial[0].Job.Name = "renamed"
		return nil
	}))
	var image, mode, nested string
	require.NoError(t, r.Register("push", func(_ context.Context, wc *core.WorkerContext) error {
		run := wc.Project.Pipelines[0].Run
		image = run.Job.PrimaryContainer.Image
		mode = run.Job.PrimaryContainer.Environment["MODE"]
		nested = run.Serial[0].Job.Name
		return nil
	}))

	wc := newContext(t, "push")
	wc.Project.Pipelines = []core.PipelineDef{{
		On: "push",
		Run: core.Step{
			Job: &core.JobSpec{
				Name:             "build",
				PrimaryContainer: core.Container{Image: "good:1", Environment: map[string]string{"MODE": "ci"}},
			},
			Serial: []core.Step{{Job: &core.JobSpec{Name: "test"}}},
		},
	}}
	out := r.Dispatch(context.Background(), wc)

	require.NoError(t, out.Err())
	assert.Equal(t, "good:1", image)
	assert.Equal(t, "ci", mode)
	assert.Equal(t, "test", nested)
	assert.Equal(t, "good:1", wc.Project.Pipelines[0].Run.Job.PrimaryContainer.Image)
	assert.Equal(t, "test", wc.Project.Pipelines[0].Run.Serial[0].Job.Name)
}
