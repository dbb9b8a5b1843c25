package core

import (
	"context"
	"maps"
)

// GitConfig describes how jobs of a project check out source code.
type GitConfig struct {
	CloneURL       string `yaml:"cloneURL" json:"cloneURL,omitempty"`
	Commit         string `yaml:"commit" json:"commit,omitempty"`
	Ref            string `yaml:"ref" json:"ref,omitempty"`
	InitSubmodules bool   `yaml:"initSubmodules" json:"initSubmodules,omitempty"`
}

// Merge returns g overlaid with the non-empty fields of override.
func (g GitConfig) Merge(override *GitConfig) GitConfig {
	if override == nil {
		return g
	}
	if override.CloneURL != "" {
		g.CloneURL = override.CloneURL
	}
	if override.Ref != "" {
		g.Ref = override.Ref
		// A new ref invalidates a commit pinned by the project.
		g.Commit = ""
	}
	if override.Commit != "" {
		g.Commit = override.Commit
	}
	if override.InitSubmodules {
		g.InitSubmodules = true
	}
	return g
}

// Project is the read-only configuration of a repository served by the worker.
type Project struct {
	ID          string            `yaml:"id" json:"id"`
	Description string            `yaml:"description" json:"description,omitempty"`
	Git         GitConfig         `yaml:"git" json:"git"`
	Secrets     map[string]string `yaml:"secrets" json:"-"`
	Pipelines   []PipelineDef     `yaml:"pipelines" json:"pipelines,omitempty"`
}

// Clone returns a deep copy so a dispatch can never mutate a stored project.
func (p Project) Clone() Project {
	p.Secrets = maps.Clone(p.Secrets)
	if p.Pipelines != nil {
		pipelines := make([]PipelineDef, len(p.Pipelines))
		for i, def := range p.Pipelines {
			pipelines[i] = PipelineDef{On: def.On, Run: def.Run.Clone()}
		}
		p.Pipelines = pipelines
	}
	return p
}

// PipelineDef binds a declarative step tree to an event type.
type PipelineDef struct {
	On  string `yaml:"on" json:"on"`
	Run Step   `yaml:"run" json:"run"`
}

// Step is one node of a declarative pipeline: exactly one of Job, Serial or
// Concurrent is set.
type Step struct {
	Name       string   `yaml:"name" json:"name,omitempty"`
	Job        *JobSpec `yaml:"job" json:"job,omitempty"`
	Serial     []Step   `yaml:"serial" json:"serial,omitempty"`
	Concurrent []Step   `yaml:"concurrent" json:"concurrent,omitempty"`
	// Limit caps parallelism of a concurrent step. Zero means unlimited.
	Limit int `yaml:"limit" json:"limit,omitempty"`
}

// Clone returns a deep copy of the step tree rooted at s.
func (s Step) Clone() Step {
	if s.Job != nil {
		job := s.Job.Clone()
		s.Job = &job
	}
	s.Serial = cloneSteps(s.Serial)
	s.Concurrent = cloneSteps(s.Concurrent)
	return s
}

func cloneSteps(steps []Step) []Step {
	if steps == nil {
		return nil
	}
	out := make([]Step, len(steps))
	for i, step := range steps {
		out[i] = step.Clone()
	}
	return out
}

// ProjectStore resolves projects for event dispatch.
//
//go:generate mockgen -destination=../../mocks/mock_project_store.go -package=mocks . ProjectStore
type ProjectStore interface {
	// GetProject returns ErrProjectNotFound when id is unknown.
	GetProject(ctx context.Context, id string) (*Project, error)
}
