package core

import "log/slog"

// WorkerContext is the read-only bundle a handler receives for one dispatch.
// Handlers must copy anything they hand to jobs; nothing written here is seen
// by other handlers.
type WorkerContext struct {
	Event   Event
	Project Project
	Git     GitConfig
	Logger  *slog.Logger
}

// Clone returns a copy that shares no mutable state with wc.
func (wc *WorkerContext) Clone() *WorkerContext {
	c := *wc
	c.Project = wc.Project.Clone()
	return &c
}
