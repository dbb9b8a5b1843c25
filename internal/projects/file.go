// Package projects provides ProjectStore implementations backed by a YAML
// file and by postgres.
package projects

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/sevigo/brigadier/internal/config"
	"github.com/sevigo/brigadier/internal/core"
)

// FileStore serves projects read from a projects YAML file. Reload re-reads
// the file; lookups in flight keep the snapshot they started with.
type FileStore struct {
	path string

	mu       sync.RWMutex
	projects map[string]core.Project
}

var _ core.ProjectStore = (*FileStore)(nil)

// NewFileStore loads the projects file at path.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewMemoryStore returns a store holding the given projects. Reload is a
// no-op for it.
func NewMemoryStore(projects ...core.Project) *FileStore {
	s := &FileStore{}
	s.set(projects)
	return s
}

// Reload re-reads the projects file.
func (s *FileStore) Reload() error {
	if s.path == "" {
		return nil
	}
	projects, err := config.LoadProjects(s.path)
	if err != nil {
		return fmt.Errorf("failed to load projects: %w", err)
	}
	s.set(projects)
	return nil
}

func (s *FileStore) set(projects []core.Project) {
	m := make(map[string]core.Project, len(projects))
	for _, p := range projects {
		m[p.ID] = p.Clone()
	}
	s.mu.Lock()
	s.projects = m
	s.mu.Unlock()
}

// GetProject returns a copy of the project with the given ID.
func (s *FileStore) GetProject(_ context.Context, id string) (*core.Project, error) {
	s.mu.RLock()
	p, ok := s.projects[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrProjectNotFound, id)
	}
	c := p.Clone()
	return &c, nil
}

// ListProjects returns every project, ordered by ID.
func (s *FileStore) ListProjects(context.Context) ([]core.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p.Clone())
	}
	slices.SortFunc(out, func(a, b core.Project) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
	return out, nil
}
