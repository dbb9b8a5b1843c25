// Code generated manually. DO NOT EDIT.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package wire

import (
	"context"
	"fmt"

	"github.com/sevigo/brigadier/internal/app"
	"github.com/sevigo/brigadier/internal/config"
	"github.com/sevigo/brigadier/internal/projects"
	"github.com/sevigo/brigadier/internal/server"
)

// InitializeApp creates and wires all application dependencies.
func InitializeApp(ctx context.Context) (*app.App, func(), error) {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	slogLogger := app.NewLogger(cfg)

	// Project store
	store, storeCleanup, err := projects.Open(cfg, slogLogger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open project store: %w", err)
	}

	// Git client and job host
	gitClient := app.NewGitClient(cfg, slogLogger)
	jobHost, hostCleanup, err := app.NewJobHost(cfg, gitClient, slogLogger)
	if err != nil {
		storeCleanup()
		return nil, nil, fmt.Errorf("failed to create job host: %w", err)
	}

	// Event registry
	registry, err := app.NewRegistry(ctx, cfg, store, jobHost, slogLogger)
	if err != nil {
		hostCleanup()
		storeCleanup()
		return nil, nil, fmt.Errorf("failed to build event registry: %w", err)
	}

	// Worker
	w, err := app.NewWorker(ctx, cfg, store, registry, gitClient, slogLogger)
	if err != nil {
		hostCleanup()
		storeCleanup()
		return nil, nil, fmt.Errorf("failed to create worker: %w", err)
	}

	// Dispatcher
	dispatcher := app.NewDispatcher(ctx, cfg, w, slogLogger)

	// Server
	srv := server.NewServer(ctx, cfg, dispatcher, slogLogger)

	// App
	application := app.NewApp(cfg, srv, dispatcher, slogLogger)

	cleanup := func() {
		hostCleanup()
		storeCleanup()
	}

	return application, cleanup, nil
}
