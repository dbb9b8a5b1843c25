// Package dryrun provides a JobHost that only describes what it would run.
package dryrun

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/sevigo/brigadier/internal/core"
	"github.com/sevigo/brigadier/internal/logger"
)

// Host logs every job and reports success without starting containers.
type Host struct {
	logger *slog.Logger

	mu       sync.Mutex
	executed []core.JobSpec
}

var _ core.JobHost = (*Host)(nil)

// New creates a dry-run host.
func New(l *slog.Logger) *Host {
	if l == nil {
		l = logger.Discard()
	}
	return &Host{logger: l}
}

// Execute records spec and returns a description of the container as output.
func (h *Host) Execute(ctx context.Context, handle string, spec core.JobSpec) (core.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return core.Outcome{}, err
	}
	h.mu.Lock()
	h.executed = append(h.executed, spec.Clone())
	h.mu.Unlock()

	desc := Describe(spec)
	h.logger.InfoContext(ctx, "dry run", "handle", handle, "job", spec.Name, "container", desc)
	return core.Outcome{Output: "dry run: " + desc}, nil
}

// Cancel is a no-op.
func (h *Host) Cancel(string) {}

// Executed returns the specs of every job executed so far, in call order.
func (h *Host) Executed() []core.JobSpec {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.executed)
}

// Describe renders the primary container of spec on one line.
func Describe(spec core.JobSpec) string {
	c := spec.PrimaryContainer
	var sb strings.Builder
	sb.WriteString(c.Image)
	if len(c.Command) > 0 || len(c.Arguments) > 0 {
		sb.WriteString(" ")
		sb.WriteString(strings.Join(append(slices.Clone(c.Command), c.Arguments...), " "))
	}
	if len(c.Environment) > 0 {
		fmt.Fprintf(&sb, " env=%s", strings.Join(slices.Sorted(maps.Keys(c.Environment)), ","))
	}
	if len(spec.SidecarContainers) > 0 {
		fmt.Fprintf(&sb, " sidecars=%s", strings.Join(slices.Sorted(maps.Keys(spec.SidecarContainers)), ","))
	}
	if spec.Timeout > 0 {
		fmt.Fprintf(&sb, " timeout=%s", spec.Timeout)
	}
	return sb.String()
}
