package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sevigo/brigadier/internal/core"
)

var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrConfigParsing  = errors.New("config parsing failed")
)

// projectsFile is the on-disk layout of the projects file.
type projectsFile struct {
	Projects []core.Project `yaml:"projects"`
}

// LoadProjects loads and parses the projects file at path. Project IDs must
// be present and unique.
func LoadProjects(path string) ([]core.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ParseProjects(data)
}

// ParseProjects parses the projects file format.
func ParseProjects(data []byte) ([]core.Project, error) {
	var file projectsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigParsing, err)
	}

	seen := make(map[string]bool, len(file.Projects))
	for i, p := range file.Projects {
		if p.ID == "" {
			return nil, fmt.Errorf("%w: projects[%d]: id must not be empty", ErrConfigParsing, i)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("%w: duplicate project id %q", ErrConfigParsing, p.ID)
		}
		seen[p.ID] = true
		for j, def := range p.Pipelines {
			if def.On == "" {
				return nil, fmt.Errorf("%w: project %q: pipelines[%d]: \"on\" must not be empty", ErrConfigParsing, p.ID, j)
			}
		}
	}
	return file.Projects, nil
}
