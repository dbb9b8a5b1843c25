package projects

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sevigo/brigadier/internal/config"
	"github.com/sevigo/brigadier/internal/core"
	"github.com/sevigo/brigadier/internal/db"
)

// Store is a ProjectStore that can also enumerate its projects, which the
// worker needs to register pipeline handlers at startup.
type Store interface {
	core.ProjectStore
	ListProjects(ctx context.Context) ([]core.Project, error)
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

// Open returns the store selected by cfg. The cleanup function releases the
// database connection of the postgres store and is never nil.
func Open(cfg *config.Config, logger *slog.Logger) (Store, func(), error) {
	switch cfg.Projects.Store {
	case config.StorePostgres:
		conn, cleanup, err := db.NewDatabase(&cfg.Database, logger)
		if err != nil {
			return nil, func() {}, err
		}
		logger.Info("using postgres project store", "host", cfg.Database.Host, "database", cfg.Database.Database)
		return NewPostgresStore(conn.DB), cleanup, nil
	case config.StoreFile:
		store, err := NewFileStore(cfg.Projects.File)
		if err != nil {
			return nil, func() {}, err
		}
		logger.Info("using project file", "path", cfg.Projects.File)
		return store, func() {}, nil
	default:
		return nil, func() {}, fmt.Errorf("%w: unsupported project store %q", config.ErrInvalidConfig, cfg.Projects.Store)
	}
}
