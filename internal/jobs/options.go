// Package jobs implements the runnable units of a pipeline: container-backed
// jobs and the serial and concurrent groups that compose them.
package jobs

import (
	"log/slog"

	"github.com/sevigo/brigadier/internal/logger"
)

type options struct {
	logger *slog.Logger
	limit  int
}

// Option configures a Job or a group.
type Option func(*options)

// WithLogger sets the logger used to narrate execution.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithConcurrencyLimit caps how many children a ConcurrentGroup runs at once.
// Zero or less means no limit. Ignored by jobs and serial groups.
func WithConcurrencyLimit(n int) Option {
	return func(o *options) { o.limit = n }
}

func buildOptions(opts []Option) options {
	o := options{logger: logger.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
