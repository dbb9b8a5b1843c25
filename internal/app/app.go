// Package app initializes and orchestrates the main components of the
// brigadier worker. It wires together the configuration, the project store,
// the job host, the event pipeline and the HTTP server.
package app

import (
	"log/slog"

	"github.com/sevigo/brigadier/internal/config"
	"github.com/sevigo/brigadier/internal/core"
	"github.com/sevigo/brigadier/internal/server"
)

// App holds the main application components.
type App struct {
	cfg        *config.Config
	server     *server.Server
	logger     *slog.Logger
	dispatcher core.EventDispatcher
}

// NewApp assembles the application from its components.
func NewApp(cfg *config.Config, srv *server.Server, dispatcher core.EventDispatcher, logger *slog.Logger) *App {
	return &App{
		cfg:        cfg,
		server:     srv,
		logger:     logger,
		dispatcher: dispatcher,
	}
}

// Start runs the HTTP server.
func (a *App) Start() error {
	a.logger.Info("starting brigadier",
		"server_port", a.cfg.Server.Port,
		"max_workers", a.cfg.Worker.MaxWorkers,
		"job_host", a.cfg.JobHost.Driver)

	err := a.server.Start()
	if err != nil {
		a.logger.Error("failed to start HTTP server", "error", err)
		return err
	}

	return nil
}

// Stop shuts down the application cleanly.
func (a *App) Stop() error {
	a.logger.Info("shutting down brigadier services")

	// Stop the HTTP server first to prevent new incoming requests.
	serverErr := a.server.Stop()
	if serverErr != nil {
		a.logger.Error("error during HTTP server shutdown", "error", serverErr)
		// Continue to stop other components even if the server failed.
	}

	// Stop the dispatcher, allowing in-flight events to finish.
	a.dispatcher.Stop()

	if serverErr != nil {
		a.logger.Error("brigadier stopped with errors", "error", serverErr)
		return serverErr
	}

	a.logger.Info("brigadier stopped successfully")
	return nil
}
