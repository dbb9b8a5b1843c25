package wire

import (
	"github.com/google/wire"

	"github.com/sevigo/brigadier/internal/app"
	"github.com/sevigo/brigadier/internal/config"
	"github.com/sevigo/brigadier/internal/projects"
	"github.com/sevigo/brigadier/internal/server"
)

// AppSet provides every component of the worker application.
var AppSet = wire.NewSet(
	config.LoadConfig,
	app.NewLogger,
	app.NewGitClient,
	projects.Open,
	app.NewJobHost,
	app.NewRegistry,
	app.NewWorker,
	app.NewDispatcher,
	server.NewServer,
	app.NewApp,
)
