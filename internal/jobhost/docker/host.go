// Package docker provides a JobHost that runs jobs with the docker CLI.
package docker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sevigo/brigadier/internal/core"
	"github.com/sevigo/brigadier/internal/logger"
)

// maxOutput bounds the job output kept in memory; older bytes are dropped.
const maxOutput = 1 << 20

// teardownTimeout bounds cleanup commands that run after a job ends.
const teardownTimeout = 30 * time.Second

// Runner runs one docker command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, args ...string) ([]byte, error)
}

// SourceFetcher checks out job source code into a directory.
type SourceFetcher interface {
	Checkout(ctx context.Context, cfg core.GitConfig, dir string) (string, error)
}

type execRunner struct{ binary string }

func (r execRunner) Run(ctx context.Context, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, r.binary, args...).CombinedOutput()
}

// Host runs each job as a docker container named after its handle. Sidecars
// share a per-job network with the primary container and are removed when
// it exits.
type Host struct {
	runner       Runner
	source       SourceFetcher
	workspaceDir string
	logger       *slog.Logger

	mu sync.Mutex
	// active maps running handles to whether a cancel was requested.
	active map[string]bool
	wg     sync.WaitGroup
}

var _ core.JobHost = (*Host)(nil)

// Option configures a Host.
type Option func(*Host)

// WithRunner replaces the docker CLI runner.
func WithRunner(r Runner) Option {
	return func(h *Host) { h.runner = r }
}

// WithSourceFetcher enables source checkout for jobs with a source mount path.
func WithSourceFetcher(s SourceFetcher) Option {
	return func(h *Host) { h.source = s }
}

// New creates a Host using the docker binary and keeping per-job
// workspaces under workspaceDir.
func New(binary, workspaceDir string, l *slog.Logger, opts ...Option) *Host {
	if binary == "" {
		binary = "docker"
	}
	if l == nil {
		l = logger.Discard()
	}
	h := &Host{
		runner:       execRunner{binary: binary},
		workspaceDir: workspaceDir,
		logger:       l,
		active:       make(map[string]bool),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Execute pulls images per policy, starts sidecars and runs the primary
// container to completion. A non-zero exit is returned as an error that
// carries the exit code.
func (h *Host) Execute(ctx context.Context, handle string, spec core.JobSpec) (core.Outcome, error) {
	log := h.logger.With("handle", handle, "job", spec.Name)

	h.mu.Lock()
	h.active[handle] = false
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.active, handle)
		h.mu.Unlock()
	}()

	images := []core.Container{spec.PrimaryContainer}
	for _, name := range slices.Sorted(maps.Keys(spec.SidecarContainers)) {
		images = append(images, spec.SidecarContainers[name])
	}
	for _, c := range images {
		if err := h.pull(ctx, c); err != nil {
			return core.Outcome{}, err
		}
	}

	mounts, cleanupDirs, err := h.prepareMounts(ctx, handle, spec.PrimaryContainer)
	if err != nil {
		return core.Outcome{}, err
	}
	defer cleanupDirs()

	network := ""
	if len(spec.SidecarContainers) > 0 {
		network = handle
		if out, err := h.runner.Run(ctx, "network", "create", network); err != nil {
			return core.Outcome{}, fmt.Errorf("failed to create job network: %s: %w", strings.TrimSpace(string(out)), err)
		}
		defer h.teardown(log, handle, spec)
		for _, name := range slices.Sorted(maps.Keys(spec.SidecarContainers)) {
			args := runArgs(handle+"-"+name, spec.SidecarContainers[name], spec.Host, network, name, nil)
			args = append([]string{"run", "-d"}, args...)
			if out, err := h.runner.Run(ctx, args...); err != nil {
				return core.Outcome{}, fmt.Errorf("failed to start sidecar %q: %s: %w", name, strings.TrimSpace(string(out)), err)
			}
		}
	}

	args := append([]string{"run", "--rm"}, runArgs(handle, spec.PrimaryContainer, spec.Host, network, "", mounts)...)
	log.DebugContext(ctx, "starting container",
		"image", spec.PrimaryContainer.Image,
		"env", slices.Sorted(maps.Keys(spec.PrimaryContainer.Environment)),
	)
	out, err := h.runner.Run(ctx, args...)
	if h.cancelled(handle) {
		// A kill issued before the daemon created the container misses it.
		h.remove(log, handle)
	}
	outcome := core.Outcome{Output: tail(out)}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			outcome.ExitCode = exitErr.ExitCode()
			return outcome, fmt.Errorf("container exited with code %d", outcome.ExitCode)
		}
		return outcome, fmt.Errorf("docker run failed: %w", err)
	}
	return outcome, nil
}

// Cancel kills the job's primary container. It returns immediately; the kill
// runs in the background and is a no-op for unknown handles.
func (h *Host) Cancel(handle string) {
	h.mu.Lock()
	_, ok := h.active[handle]
	if ok {
		h.active[handle] = true
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		defer cancel()
		if out, err := h.runner.Run(ctx, "kill", handle); err != nil {
			h.logger.Warn("failed to kill container", "handle", handle, "output", strings.TrimSpace(string(out)), "error", err)
		}
	}()
}

func (h *Host) cancelled(handle string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active[handle]
}

// remove force-removes the primary container of a cancelled job. The
// container is usually gone already, so failures are only logged at debug.
func (h *Host) remove(log *slog.Logger, handle string) {
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()
	if out, err := h.runner.Run(ctx, "rm", "-f", handle); err != nil {
		log.Debug("container already removed", "output", strings.TrimSpace(string(out)), "error", err)
	}
}

// Wait blocks until background kill requests have finished.
func (h *Host) Wait() { h.wg.Wait() }

func (h *Host) pull(ctx context.Context, c core.Container) error {
	switch c.ImagePullPolicy {
	case core.PullNever:
		return nil
	case core.PullAlways:
	default:
		if _, err := h.runner.Run(ctx, "image", "inspect", c.Image); err == nil {
			return nil
		}
	}
	if out, err := h.runner.Run(ctx, "pull", c.Image); err != nil {
		return fmt.Errorf("failed to pull image %s: %s: %w", c.Image, strings.TrimSpace(string(out)), err)
	}
	return nil
}

// prepareMounts creates the workspace and source directories requested by c.
func (h *Host) prepareMounts(ctx context.Context, handle string, c core.Container) ([]string, func(), error) {
	noop := func() {}
	if c.WorkspaceMountPath == "" && c.SourceMountPath == "" {
		return nil, noop, nil
	}

	root := filepath.Join(h.workspaceDir, handle)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, noop, fmt.Errorf("failed to create job directory: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(root); err != nil {
			h.logger.Warn("failed to remove job directory", "path", root, "error", err)
		}
	}

	var mounts []string
	if c.WorkspaceMountPath != "" {
		dir := filepath.Join(root, "workspace")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			cleanup()
			return nil, noop, fmt.Errorf("failed to create workspace: %w", err)
		}
		mounts = append(mounts, dir+":"+c.WorkspaceMountPath)
	}
	if c.SourceMountPath != "" {
		if h.source == nil {
			cleanup()
			return nil, noop, errors.New("job requests source code but no source fetcher is configured")
		}
		dir := filepath.Join(root, "src")
		if _, err := h.source.Checkout(ctx, gitFromEnv(c.Environment), dir); err != nil {
			cleanup()
			return nil, noop, fmt.Errorf("failed to check out source: %w", err)
		}
		mounts = append(mounts, dir+":"+c.SourceMountPath+":ro")
	}
	return mounts, cleanup, nil
}

// teardown removes the sidecars and the network of a job.
func (h *Host) teardown(log *slog.Logger, handle string, spec core.JobSpec) {
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()
	for _, name := range slices.Sorted(maps.Keys(spec.SidecarContainers)) {
		if out, err := h.runner.Run(ctx, "rm", "-f", handle+"-"+name); err != nil {
			log.Warn("failed to remove sidecar", "sidecar", name, "output", strings.TrimSpace(string(out)), "error", err)
		}
	}
	if out, err := h.runner.Run(ctx, "network", "rm", handle); err != nil {
		log.Warn("failed to remove job network", "output", strings.TrimSpace(string(out)), "error", err)
	}
}

// runArgs builds the arguments following "docker run" for one container.
func runArgs(name string, c core.Container, host *core.HostSelector, network, alias string, mounts []string) []string {
	args := []string{"--name", name}
	if network != "" {
		args = append(args, "--network", network)
		if alias != "" {
			args = append(args, "--network-alias", alias)
		}
	}
	if host != nil && host.OS != "" {
		args = append(args, "--platform", host.OS)
	}
	if c.Privileged {
		args = append(args, "--privileged")
	}
	if c.WorkingDirectory != "" {
		args = append(args, "--workdir", c.WorkingDirectory)
	}
	for _, k := range slices.Sorted(maps.Keys(c.Environment)) {
		args = append(args, "--env", k+"="+c.Environment[k])
	}
	for _, m := range mounts {
		args = append(args, "--volume", m)
	}

	rest := c.Arguments
	if len(c.Command) > 0 {
		args = append(args, "--entrypoint", c.Command[0])
		rest = append(slices.Clone(c.Command[1:]), c.Arguments...)
	}
	args = append(args, c.Image)
	return append(args, rest...)
}

// gitFromEnv reads the checkout parameters injected into the job environment.
func gitFromEnv(env map[string]string) core.GitConfig {
	return core.GitConfig{
		CloneURL: env["BRIGADE_GIT_CLONE_URL"],
		Ref:      env["BRIGADE_GIT_REF"],
		Commit:   env["BRIGADE_GIT_COMMIT"],
	}
}

func tail(out []byte) string {
	if len(out) > maxOutput {
		out = out[len(out)-maxOutput:]
	}
	return string(out)
}
