// Package pipeline turns the declarative pipelines of a project into event
// handlers that build and run jobs and groups.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"slices"

	"github.com/sevigo/brigadier/internal/core"
	"github.com/sevigo/brigadier/internal/events"
	"github.com/sevigo/brigadier/internal/jobs"
	"github.com/sevigo/brigadier/internal/logger"
	"github.com/sevigo/brigadier/internal/metrics"
)

// Environment variables injected into every primary container. Values set
// explicitly in the pipeline take precedence.
const (
	EnvEventID      = "BRIGADE_EVENT_ID"
	EnvEventType    = "BRIGADE_EVENT_TYPE"
	EnvEventSource  = "BRIGADE_EVENT_PROVIDER"
	EnvProjectID    = "BRIGADE_PROJECT_ID"
	EnvGitCloneURL  = "BRIGADE_GIT_CLONE_URL"
	EnvGitRef       = "BRIGADE_GIT_REF"
	EnvGitCommit    = "BRIGADE_GIT_COMMIT"
	defaultRootName = "pipeline"
)

var secretRef = regexp.MustCompile(`\$\{secrets\.([A-Za-z0-9_.-]+)\}`)

// Builder builds runnable trees from pipeline steps.
type Builder struct {
	host   core.JobHost
	logger *slog.Logger
	// limit is applied to concurrent steps that do not set their own.
	limit int
}

// NewBuilder returns a Builder whose jobs run on host. limit caps concurrent
// steps without an explicit limit; zero means unlimited.
func NewBuilder(host core.JobHost, l *slog.Logger, limit int) *Builder {
	if l == nil {
		l = logger.Discard()
	}
	return &Builder{host: host, logger: l, limit: limit}
}

// Register adds one handler per distinct event type that any of projects
// declares a pipeline for. Projects added to the store later only get
// handlers for event types registered here.
func (b *Builder) Register(r *events.Registry, projects []core.Project) error {
	seen := make(map[string]struct{})
	for _, p := range projects {
		for _, def := range p.Pipelines {
			if _, ok := seen[def.On]; ok {
				continue
			}
			seen[def.On] = struct{}{}
			if err := r.Register(def.On, b.Handler()); err != nil {
				return fmt.Errorf("failed to register pipelines for %q: %w", def.On, err)
			}
		}
	}
	b.logger.Info("registered pipeline handlers", "event_types", len(seen))
	return nil
}

// Handler runs every pipeline of the dispatched project whose event type
// matches, one after another in declaration order. It fails when any
// pipeline does not succeed.
func (b *Builder) Handler() events.Handler {
	return func(ctx context.Context, wc *core.WorkerContext) error {
		log := wc.Logger
		if log == nil {
			log = b.logger
		}

		var errs []error
		for i, def := range wc.Project.Pipelines {
			if def.On != wc.Event.Type() {
				continue
			}
			root, err := b.Build(wc, def.Run)
			if err != nil {
				errs = append(errs, fmt.Errorf("pipeline #%d: %w", i, err))
				continue
			}

			log.InfoContext(ctx, "running pipeline", "pipeline", i, "root", root.Name())
			res := root.Run(ctx)
			if res.Succeeded() {
				metrics.PipelineTotal.WithLabelValues("succeeded").Inc()
				log.InfoContext(ctx, "pipeline succeeded", "pipeline", i)
				continue
			}
			metrics.PipelineTotal.WithLabelValues("failed").Inc()
			log.WarnContext(ctx, "pipeline did not succeed", "pipeline", i, "state", res.State, "error", res.Err)
			errs = append(errs, fmt.Errorf("pipeline #%d (%s): %w", i, root.Name(), res.Err))
		}
		return errors.Join(errs...)
	}
}

// Build converts step into a pending Runnable bound to the dispatch in wc.
// Job specs are copied and receive the event's facts as environment
// variables; ${secrets.KEY} references are replaced with project secrets.
func (b *Builder) Build(wc *core.WorkerContext, step core.Step) (core.Runnable, error) {
	return b.build(wc, step, defaultRootName)
}

func (b *Builder) build(wc *core.WorkerContext, step core.Step, path string) (core.Runnable, error) {
	set := 0
	if step.Job != nil {
		set++
	}
	if step.Serial != nil {
		set++
	}
	if step.Concurrent != nil {
		set++
	}
	if set != 1 {
		return nil, &core.ValidationError{Field: path, Reason: "step must set exactly one of job, serial or concurrent"}
	}

	log := wc.Logger
	if log == nil {
		log = b.logger
	}

	if step.Job != nil {
		spec, err := jobSpec(wc, *step.Job)
		if err != nil {
			return nil, annotate(path, err)
		}
		job, err := jobs.NewJob(spec, b.host, jobs.WithLogger(log))
		if err != nil {
			return nil, annotate(path+".job", err)
		}
		return job, nil
	}

	name := step.Name
	var (
		group    interface{ Add(...core.Runnable) error }
		runnable core.Runnable
		children []core.Step
		kind     string
	)
	if step.Serial != nil {
		kind, children = "serial", step.Serial
		if name == "" {
			name = kind
		}
		g := jobs.NewSerialGroup(name, jobs.WithLogger(log))
		group, runnable = g, g
	} else {
		kind, children = "concurrent", step.Concurrent
		if name == "" {
			name = kind
		}
		limit := b.limit
		if step.Limit > 0 {
			limit = step.Limit
		}
		g := jobs.NewConcurrentGroup(name, jobs.WithLogger(log), jobs.WithConcurrencyLimit(limit))
		group, runnable = g, g
	}

	for i, child := range children {
		r, err := b.build(wc, child, fmt.Sprintf("%s.%s[%d]", path, kind, i))
		if err != nil {
			return nil, err
		}
		if err := group.Add(r); err != nil {
			return nil, err
		}
	}
	return runnable, nil
}

// jobSpec copies spec and injects event facts and secrets.
func jobSpec(wc *core.WorkerContext, spec core.JobSpec) (core.JobSpec, error) {
	spec = spec.Clone()

	env := map[string]string{
		EnvEventID:     wc.Event.ID(),
		EnvEventType:   wc.Event.Type(),
		EnvEventSource: wc.Event.Provider(),
		EnvProjectID:   wc.Project.ID,
		EnvGitCloneURL: wc.Git.CloneURL,
		EnvGitRef:      wc.Git.Ref,
		EnvGitCommit:   wc.Git.Commit,
	}
	maps.Copy(env, spec.PrimaryContainer.Environment)
	spec.PrimaryContainer.Environment = env

	if err := expandContainer(&spec.PrimaryContainer, wc.Project.Secrets); err != nil {
		return core.JobSpec{}, err
	}
	for _, name := range slices.Sorted(maps.Keys(spec.SidecarContainers)) {
		c := spec.SidecarContainers[name]
		if err := expandContainer(&c, wc.Project.Secrets); err != nil {
			return core.JobSpec{}, err
		}
		spec.SidecarContainers[name] = c
	}
	return spec, nil
}

func expandContainer(c *core.Container, secrets map[string]string) error {
	for k, v := range c.Environment {
		expanded, err := expand(v, secrets)
		if err != nil {
			return &core.ValidationError{Field: "environment." + k, Reason: err.Error()}
		}
		c.Environment[k] = expanded
	}
	for i, arg := range c.Arguments {
		expanded, err := expand(arg, secrets)
		if err != nil {
			return &core.ValidationError{Field: fmt.Sprintf("arguments[%d]", i), Reason: err.Error()}
		}
		c.Arguments[i] = expanded
	}
	return nil
}

func expand(s string, secrets map[string]string) (string, error) {
	var missing []string
	out := secretRef.ReplaceAllStringFunc(s, func(ref string) string {
		key := secretRef.FindStringSubmatch(ref)[1]
		v, ok := secrets[key]
		if !ok {
			missing = append(missing, key)
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("unknown secret %q", missing[0])
	}
	return out, nil
}

func annotate(path string, err error) error {
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		return &core.ValidationError{Field: path + "." + verr.Field, Reason: verr.Reason, Err: verr.Err}
	}
	return err
}
