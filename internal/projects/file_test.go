package projects

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/brigadier/internal/config"
	"github.com/sevigo/brigadier/internal/core"
	"github.com/sevigo/brigadier/internal/logger"
)

func TestMemoryStore(t *testing.T) {
	secrets := map[string]string{"token": "abc"}
	s := NewMemoryStore(
		core.Project{ID: "b/repo", Secrets: secrets},
		core.Project{ID: "a/repo"},
	)
	secrets["token"] = "changed"

	p, err := s.GetProject(context.Background(), "b/repo")
	require.NoError(t, err)
	assert.Equal(t, "abc", p.Secrets["token"])

	p.Secrets["token"] = "mutated by caller"
	again, err := s.GetProject(context.Background(), "b/repo")
	require.NoError(t, err)
	assert.Equal(t, "abc", again.Secrets["token"])

	_, err = s.GetProject(context.Background(), "c/repo")
	require.ErrorIs(t, err, core.ErrProjectNotFound)

	list, err := s.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a/repo", list[0].ID)
	assert.NoError(t, s.Reload())
}

func TestMemoryStore_PipelinesAreCopied(t *testing.T) {
	s := NewMemoryStore(core.Project{
		ID: "a/repo",
		Pipelines: []core.PipelineDef{{
			On:  "push",
			Run: core.Step{Job: &core.JobSpec{Name: "build", PrimaryContainer: core.Container{Image: "good:1"}}},
		}},
	})

	p, err := s.GetProject(context.Background(), "a/repo")
	require.NoError(t, err)
	p.Pipelines[0].Run.Job.PrimaryContainer.Image = "evil:1"

	again, err := s.GetProject(context.Background(), "a/repo")
	require.NoError(t, err)
	assert.Equal(t, "good:1", again.Pipelines[0].Run.Job.PrimaryContainer.Image)
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projects.yaml")
	require.NoError(t, os.WriteFile(path, []byte("projects:\n  - id: sevigo/brigadier\n"), 0600))

	s, err := NewFileStore(path)
	require.NoError(t, err)
	_, err = s.GetProject(context.Background(), "sevigo/brigadier")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("projects:\n  - id: sevigo/other\n"), 0600))
	require.NoError(t, s.Reload())

	_, err = s.GetProject(context.Background(), "sevigo/brigadier")
	assert.ErrorIs(t, err, core.ErrProjectNotFound)
	_, err = s.GetProject(context.Background(), "sevigo/other")
	assert.NoError(t, err)
}

func TestFileStore_Missing(t *testing.T) {
	_, err := NewFileStore(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorIs(t, err, config.ErrConfigNotFound)
}

func TestOpen_FileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projects.yaml")
	require.NoError(t, os.WriteFile(path, []byte("projects:\n  - id: sevigo/brigadier\n"), 0600))

	cfg := &config.Config{Projects: config.ProjectsConfig{Store: config.StoreFile, File: path}}
	store, cleanup, err := Open(cfg, logger.Discard())
	require.NoError(t, err)
	defer cleanup()

	list, err := store.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "sevigo/brigadier", list[0].ID)
}

func TestOpen_Errors(t *testing.T) {
	_, cleanup, err := Open(&config.Config{Projects: config.ProjectsConfig{Store: "etcd"}}, logger.Discard())
	require.ErrorIs(t, err, config.ErrInvalidConfig)
	cleanup()

	_, cleanup, err = Open(&config.Config{Projects: config.ProjectsConfig{Store: config.StoreFile, File: "/nonexistent/projects.yaml"}}, logger.Discard())
	require.ErrorIs(t, err, config.ErrConfigNotFound)
	cleanup()
}
