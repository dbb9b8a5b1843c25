package projects

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sevigo/brigadier/internal/core"
)

// PostgresStore serves projects from the projects table.
type PostgresStore struct {
	db *sqlx.DB
}

var _ core.ProjectStore = (*PostgresStore)(nil)

// NewPostgresStore creates a store on an open connection pool.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// projectRow mirrors one row of the projects table.
type projectRow struct {
	ID             string `db:"id"`
	Description    string `db:"description"`
	CloneURL       string `db:"clone_url"`
	Ref            string `db:"git_ref"`
	Commit         string `db:"git_commit"`
	InitSubmodules bool   `db:"init_submodules"`
	Secrets        []byte `db:"secrets"`
	Pipelines      []byte `db:"pipelines"`
}

func (r projectRow) toProject() (*core.Project, error) {
	p := &core.Project{
		ID:          r.ID,
		Description: r.Description,
		Git: core.GitConfig{
			CloneURL:       r.CloneURL,
			Ref:            r.Ref,
			Commit:         r.Commit,
			InitSubmodules: r.InitSubmodules,
		},
	}
	if len(r.Secrets) > 0 {
		if err := json.Unmarshal(r.Secrets, &p.Secrets); err != nil {
			return nil, fmt.Errorf("failed to decode secrets of project %q: %w", r.ID, err)
		}
	}
	if len(r.Pipelines) > 0 {
		if err := json.Unmarshal(r.Pipelines, &p.Pipelines); err != nil {
			return nil, fmt.Errorf("failed to decode pipelines of project %q: %w", r.ID, err)
		}
	}
	return p, nil
}

func rowFromProject(p *core.Project) (projectRow, error) {
	secrets := p.Secrets
	if secrets == nil {
		secrets = map[string]string{}
	}
	secretsJSON, err := json.Marshal(secrets)
	if err != nil {
		return projectRow{}, fmt.Errorf("failed to encode secrets: %w", err)
	}
	pipelines := p.Pipelines
	if pipelines == nil {
		pipelines = []core.PipelineDef{}
	}
	pipelinesJSON, err := json.Marshal(pipelines)
	if err != nil {
		return projectRow{}, fmt.Errorf("failed to encode pipelines: %w", err)
	}
	return projectRow{
		ID:             p.ID,
		Description:    p.Description,
		CloneURL:       p.Git.CloneURL,
		Ref:            p.Git.Ref,
		Commit:         p.Git.Commit,
		InitSubmodules: p.Git.InitSubmodules,
		Secrets:        secretsJSON,
		Pipelines:      pipelinesJSON,
	}, nil
}

const selectProjects = `
	SELECT id, description, clone_url, git_ref, git_commit, init_submodules, secrets, pipelines
	FROM projects`

// GetProject loads the project with the given ID.
func (s *PostgresStore) GetProject(ctx context.Context, id string) (*core.Project, error) {
	var row projectRow
	err := s.db.GetContext(ctx, &row, selectProjects+` WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", core.ErrProjectNotFound, id)
		}
		return nil, fmt.Errorf("failed to load project %q: %w", id, err)
	}
	return row.toProject()
}

// ListProjects returns every project, ordered by ID.
func (s *PostgresStore) ListProjects(ctx context.Context) ([]core.Project, error) {
	var rows []projectRow
	if err := s.db.SelectContext(ctx, &rows, selectProjects+` ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	out := make([]core.Project, 0, len(rows))
	for _, r := range rows {
		p, err := r.toProject()
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

const upsertProject = `
	INSERT INTO projects (id, description, clone_url, git_ref, git_commit, init_submodules, secrets, pipelines)
	VALUES (:id, :description, :clone_url, :git_ref, :git_commit, :init_submodules, :secrets, :pipelines)
	ON CONFLICT (id) DO UPDATE SET
		description = EXCLUDED.description,
		clone_url = EXCLUDED.clone_url,
		git_ref = EXCLUDED.git_ref,
		git_commit = EXCLUDED.git_commit,
		init_submodules = EXCLUDED.init_submodules,
		secrets = EXCLUDED.secrets,
		pipelines = EXCLUDED.pipelines,
		updated_at = NOW()`

// SaveProject inserts or replaces a project.
func (s *PostgresStore) SaveProject(ctx context.Context, p *core.Project) error {
	return s.ImportProjects(ctx, []core.Project{*p})
}

// ImportProjects inserts or replaces projects in a single transaction.
func (s *PostgresStore) ImportProjects(ctx context.Context, projects []core.Project) error {
	rows := make([]projectRow, 0, len(projects))
	for i := range projects {
		if projects[i].ID == "" {
			return &core.ValidationError{Field: fmt.Sprintf("projects[%d].id", i), Reason: "must not be empty"}
		}
		row, err := rowFromProject(&projects[i])
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, row := range rows {
		if _, err := tx.NamedExecContext(ctx, upsertProject, row); err != nil {
			return fmt.Errorf("failed to save project %q: %w", row.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit projects: %w", err)
	}
	return nil
}
