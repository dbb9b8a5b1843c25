package projects

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/brigadier/internal/core"
	"github.com/sevigo/brigadier/internal/db"
)

func sampleProject() core.Project {
	return core.Project{
		ID:          "sevigo/brigadier",
		Description: "orchestration core",
		Git:         core.GitConfig{CloneURL: "https://github.com/sevigo/brigadier.git", Ref: "refs/heads/main"},
		Secrets:     map[string]string{"registryPassword": "hunter2"},
		Pipelines: []core.PipelineDef{{
			On: "push",
			Run: core.Step{Job: &core.JobSpec{
				Name:             "build",
				PrimaryContainer: core.Container{Image: "golang:1.26"},
				Timeout:          5 * time.Minute,
			}},
		}},
	}
}

func TestProjectRow_RoundTrip(t *testing.T) {
	p := sampleProject()
	row, err := rowFromProject(&p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"registryPassword":"hunter2"}`, string(row.Secrets))

	back, err := row.toProject()
	require.NoError(t, err)
	assert.Equal(t, p, *back)
}

func TestProjectRow_EmptyCollections(t *testing.T) {
	row, err := rowFromProject(&core.Project{ID: "x"})
	require.NoError(t, err)
	assert.Equal(t, "{}", string(row.Secrets))
	assert.Equal(t, "[]", string(row.Pipelines))
}

func TestProjectRow_CorruptJSON(t *testing.T) {
	_, err := projectRow{ID: "x", Pipelines: []byte("{")}.toProject()
	require.Error(t, err)
}

// TestPostgresStore runs against a real database when BRIGADIER_TEST_DSN is set.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("BRIGADIER_TEST_DSN")
	if dsn == "" {
		t.Skip("BRIGADIER_TEST_DSN not set")
	}
	conn, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, (&db.DB{DB: conn}).RunMigrations())

	ctx := context.Background()
	s := NewPostgresStore(conn)
	p := sampleProject()
	require.NoError(t, s.SaveProject(ctx, &p))

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, *got)

	p.Description = "updated"
	require.NoError(t, s.ImportProjects(ctx, []core.Project{p}))
	got, err = s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Description)

	_, err = s.GetProject(ctx, "missing/project")
	require.ErrorIs(t, err, core.ErrProjectNotFound)

	list, err := s.ListProjects(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, list)
}
