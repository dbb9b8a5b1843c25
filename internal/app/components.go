package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sevigo/brigadier/internal/config"
	"github.com/sevigo/brigadier/internal/core"
	"github.com/sevigo/brigadier/internal/events"
	"github.com/sevigo/brigadier/internal/github"
	"github.com/sevigo/brigadier/internal/gitutil"
	"github.com/sevigo/brigadier/internal/jobhost/docker"
	"github.com/sevigo/brigadier/internal/jobhost/dryrun"
	"github.com/sevigo/brigadier/internal/logger"
	"github.com/sevigo/brigadier/internal/pipeline"
	"github.com/sevigo/brigadier/internal/projects"
	"github.com/sevigo/brigadier/internal/worker"
)

// NewLogger builds the application logger from cfg.
func NewLogger(cfg *config.Config) *slog.Logger {
	return logger.NewLogger(cfg.Logging, nil)
}

// NewGitClient returns the git client used to resolve commits and check out
// job sources.
func NewGitClient(cfg *config.Config, logger *slog.Logger) *gitutil.Client {
	return gitutil.NewClient(logger, cfg.GitHub.Token)
}

// NewJobHost returns the job host selected by cfg. The cleanup function
// waits for pending container kills.
func NewJobHost(cfg *config.Config, git *gitutil.Client, logger *slog.Logger) (core.JobHost, func(), error) {
	switch cfg.JobHost.Driver {
	case config.DriverDocker:
		h := docker.New(cfg.JobHost.DockerBinary, cfg.JobHost.WorkspaceDir, logger, docker.WithSourceFetcher(git))
		return h, h.Wait, nil
	case config.DriverDryRun:
		return dryrun.New(logger), func() {}, nil
	default:
		return nil, func() {}, fmt.Errorf("%w: unsupported job host %q", config.ErrInvalidConfig, cfg.JobHost.Driver)
	}
}

// NewRegistry registers the declarative pipelines of every stored project.
func NewRegistry(ctx context.Context, cfg *config.Config, store projects.Store, host core.JobHost, logger *slog.Logger) (*events.Registry, error) {
	list, err := store.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	if err := pipeline.Validate(list); err != nil {
		return nil, fmt.Errorf("invalid pipelines: %w", err)
	}

	registry := events.NewRegistry(logger)
	builder := pipeline.NewBuilder(host, logger, cfg.Worker.ConcurrencyLimit)
	if err := builder.Register(registry, list); err != nil {
		return nil, err
	}
	logger.Info("event registry ready", "projects", len(list), "event_types", registry.EventTypes())
	return registry, nil
}

// NewWorker builds the worker with the optional commit resolution and
// status reporting enabled by cfg.
func NewWorker(ctx context.Context, cfg *config.Config, store projects.Store, registry *events.Registry, git *gitutil.Client, logger *slog.Logger) (*worker.Worker, error) {
	var opts []worker.Option
	if cfg.Worker.ResolveCommits {
		opts = append(opts, worker.WithCommitResolver(git))
	}
	if cfg.GitHub.ReportStatus {
		client, err := github.NewClientFromConfig(ctx, &cfg.GitHub, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create GitHub client: %w", err)
		}
		opts = append(opts, worker.WithStatusReporter(github.NewStatusReporter(client, github.DefaultStatusContext, logger)))
	}
	return worker.New(store, registry, logger, opts...), nil
}

// NewDispatcher starts the worker pool that processes queued events.
func NewDispatcher(ctx context.Context, cfg *config.Config, w *worker.Worker, logger *slog.Logger) core.EventDispatcher {
	return worker.NewDispatcher(ctx, w, cfg.Worker.MaxWorkers, cfg.Worker.QueueSize, logger)
}
