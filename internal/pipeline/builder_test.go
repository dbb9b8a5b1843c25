package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"

	"github.com/sevigo/brigadier/internal/core"
	"github.com/sevigo/brigadier/internal/events"
	"github.com/sevigo/brigadier/internal/jobhost/dryrun"
	"github.com/sevigo/brigadier/internal/jobs"
	"github.com/sevigo/brigadier/mocks"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func job(name string) *core.JobSpec {
	return &core.JobSpec{Name: name, PrimaryContainer: core.Container{Image: "alpine"}}
}

func workerContext(t *testing.T, eventType string, pipelines ...core.PipelineDef) *core.WorkerContext {
	t.Helper()
	ev, err := core.NewEvent("github", eventType, nil, core.WithEventID("ev-1"), core.WithProject("sevigo/brigadier"))
	require.NoError(t, err)
	return &core.WorkerContext{
		Event: ev,
		Project: core.Project{
			ID:        "sevigo/brigadier",
			Secrets:   map[string]string{"token": "s3cret"},
			Pipelines: pipelines,
		},
		Git: core.GitConfig{
			CloneURL: "https://github.com/sevigo/brigadier.git",
			Ref:      "refs/heads/main",
			Commit:   "9f2c1e0",
		},
	}
}

func TestBuild_Tree(t *testing.T) {
	b := NewBuilder(dryrun.New(nil), nil, 3)
	wc := workerContext(t, "push")

	root, err := b.Build(wc, core.Step{
		Name: "ci",
		Serial: []core.Step{
			{Job: job("build")},
			{Concurrent: []core.Step{{Job: job("test")}, {Job: job("lint")}}},
		},
	})
	require.NoError(t, err)

	serial, ok := root.(*jobs.SerialGroup)
	require.True(t, ok)
	assert.Equal(t, "ci", serial.Name())

	children := serial.Children()
	require.Len(t, children, 2)
	assert.Equal(t, "build", children[0].Name())

	concurrent, ok := children[1].(*jobs.ConcurrentGroup)
	require.True(t, ok)
	assert.Equal(t, "concurrent", concurrent.Name())
	require.Len(t, concurrent.Children(), 2)
	assert.Equal(t, core.StatePending, concurrent.State())
}

func TestBuild_StepShape(t *testing.T) {
	b := NewBuilder(dryrun.New(nil), nil, 0)
	wc := workerContext(t, "push")

	tests := []struct {
		name string
		step core.Step
	}{
		{name: "empty", step: core.Step{}},
		{name: "job and serial", step: core.Step{Job: job("a"), Serial: []core.Step{{Job: job("b")}}}},
		{name: "nested empty", step: core.Step{Serial: []core.Step{{}}}},
		{name: "invalid job", step: core.Step{Job: &core.JobSpec{Name: "x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Build(wc, tt.step)
			var verr *core.ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
}

func TestBuild_Environment(t *testing.T) {
	host := dryrun.New(nil)
	b := NewBuilder(host, nil, 0)
	wc := workerContext(t, "push")

	spec := job("deploy")
	spec.PrimaryContainer.Environment = map[string]string{
		"TOKEN":   "${secrets.token}",
		EnvGitRef: "refs/heads/override",
		"PLAIN":   "value",
	}
	spec.PrimaryContainer.Arguments = []string{"--token=${secrets.token}"}

	root, err := b.Build(wc, core.Step{Job: spec})
	require.NoError(t, err)
	require.True(t, root.Run(context.Background()).Succeeded())

	executed := host.Executed()
	require.Len(t, executed, 1)
	env := executed[0].PrimaryContainer.Environment
	assert.Equal(t, "ev-1", env[EnvEventID])
	assert.Equal(t, "push", env[EnvEventType])
	assert.Equal(t, "github", env[EnvEventSource])
	assert.Equal(t, "sevigo/brigadier", env[EnvProjectID])
	assert.Equal(t, "https://github.com/sevigo/brigadier.git", env[EnvGitCloneURL])
	assert.Equal(t, "9f2c1e0", env[EnvGitCommit])
	assert.Equal(t, "refs/heads/override", env[EnvGitRef], "explicit values win")
	assert.Equal(t, "s3cret", env["TOKEN"])
	assert.Equal(t, "value", env["PLAIN"])
	assert.Equal(t, []string{"--token=s3cret"}, executed[0].PrimaryContainer.Arguments)

	// The declared spec is left untouched.
	assert.Equal(t, "${secrets.token}", spec.PrimaryContainer.Environment["TOKEN"])
}

func TestBuild_UnknownSecret(t *testing.T) {
	b := NewBuilder(dryrun.New(nil), nil, 0)
	wc := workerContext(t, "push")

	spec := job("deploy")
	spec.SidecarContainers = map[string]core.Container{
		"db": {Image: "postgres", Environment: map[string]string{"POSTGRES_PASSWORD": "${secrets.dbPassword}"}},
	}

	_, err := b.Build(wc, core.Step{Job: spec})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, err.Error(), "dbPassword")
}

func TestHandler_RunsMatchingPipelines(t *testing.T) {
	ctrl := gomock.NewController(t)
	host := mocks.NewMockJobHost(ctrl)

	host.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, spec core.JobSpec) (core.Outcome, error) {
			assert.Equal(t, "on-push", spec.Name)
			return core.Outcome{Output: "ok"}, nil
		}).Times(1)

	b := NewBuilder(host, nil, 0)
	wc := workerContext(t, "push",
		core.PipelineDef{On: "push", Run: core.Step{Job: job("on-push")}},
		core.PipelineDef{On: "pull_request:opened", Run: core.Step{Job: job("on-pr")}},
	)

	require.NoError(t, b.Handler()(context.Background(), wc))
}

func TestHandler_Failure(t *testing.T) {
	ctrl := gomock.NewController(t)
	host := mocks.NewMockJobHost(ctrl)
	hostErr := errors.New("exit status 2")

	host.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).Return(core.Outcome{}, hostErr).Times(1)

	b := NewBuilder(host, nil, 0)
	wc := workerContext(t, "push",
		core.PipelineDef{On: "push", Run: core.Step{Serial: []core.Step{{Job: job("build")}, {Job: job("test")}}}},
	)

	err := b.Handler()(context.Background(), wc)
	require.Error(t, err)
	require.ErrorIs(t, err, hostErr)

	var agg *core.AggregateError
	require.ErrorAs(t, err, &agg)
	assert.Equal(t, 0, agg.Failures[0].Index)
}

func TestHandler_NoMatchingPipeline(t *testing.T) {
	b := NewBuilder(dryrun.New(nil), nil, 0)
	wc := workerContext(t, "push", core.PipelineDef{On: "release:published", Run: core.Step{Job: job("ship")}})

	require.NoError(t, b.Handler()(context.Background(), wc))
}

func TestHandler_InvalidPipeline(t *testing.T) {
	b := NewBuilder(dryrun.New(nil), nil, 0)
	wc := workerContext(t, "push", core.PipelineDef{On: "push", Run: core.Step{}})

	var verr *core.ValidationError
	require.ErrorAs(t, b.Handler()(context.Background(), wc), &verr)
}

func TestRegister(t *testing.T) {
	host := dryrun.New(nil)
	b := NewBuilder(host, nil, 0)
	registry := events.NewRegistry(nil)

	projects := []core.Project{
		{ID: "a", Pipelines: []core.PipelineDef{
			{On: "push", Run: core.Step{Job: job("a-push")}},
			{On: "push", Run: core.Step{Job: job("a-push-2")}},
		}},
		{ID: "b", Pipelines: []core.PipelineDef{
			{On: "push", Run: core.Step{Job: job("b-push")}},
			{On: "release:published", Run: core.Step{Job: job("b-release")}},
		}},
	}
	require.NoError(t, b.Register(registry, projects))
	assert.Equal(t, []string{"push", "release:published"}, registry.EventTypes())

	wc := workerContext(t, "push", projects[0].Pipelines...)
	wc.Project.ID = "a"
	out := registry.Dispatch(context.Background(), wc)
	require.NoError(t, out.Err())
	require.Len(t, out.Handlers, 1, "one handler per event type")

	var names []string
	for _, spec := range host.Executed() {
		names = append(names, spec.Name)
	}
	assert.Equal(t, []string{"a-push", "a-push-2"}, names)
}
