package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sevigo/brigadier/internal/app"
	"github.com/sevigo/brigadier/internal/config"
	"github.com/sevigo/brigadier/internal/core"
	"github.com/sevigo/brigadier/internal/events"
	"github.com/sevigo/brigadier/internal/projects"
)

var (
	eventFile string
	dryRun    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Processes one event file against the configured projects",
	Long: `Reads an event in the event file format, dispatches it to the pipelines of
its project and waits until they finish. Interrupting the command cancels
every running job.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ev, err := readEvent(eventFile)
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if dryRun {
			cfg.JobHost.Driver = config.DriverDryRun
		}

		out, err := process(ctx, cfg, ev)
		if err != nil {
			return err
		}
		printOutcome(ev, out)
		return out.Err()
	},
}

func readEvent(path string) (core.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return core.Event{}, fmt.Errorf("failed to open event file: %w", err)
	}
	defer f.Close()
	return core.DecodeEvent(f)
}

// process runs ev through a worker built from cfg.
func process(ctx context.Context, cfg *config.Config, ev core.Event) (events.Outcome, error) {
	log := app.NewLogger(cfg)

	store, storeCleanup, err := projects.Open(cfg, log)
	if err != nil {
		return events.Outcome{}, err
	}
	defer storeCleanup()

	git := app.NewGitClient(cfg, log)
	host, hostCleanup, err := app.NewJobHost(cfg, git, log)
	if err != nil {
		return events.Outcome{}, err
	}
	defer hostCleanup()

	registry, err := app.NewRegistry(ctx, cfg, store, host, log)
	if err != nil {
		return events.Outcome{}, err
	}
	w, err := app.NewWorker(ctx, cfg, store, registry, git, log)
	if err != nil {
		return events.Outcome{}, err
	}
	return w.Process(ctx, ev)
}

func printOutcome(ev core.Event, out events.Outcome) {
	titleColor.Printf("Event %s\n", ev)
	if out.Unhandled {
		warnColor.Println("  no pipeline handles this event")
		return
	}
	for _, h := range out.Handlers {
		if h.Err == nil {
			successColor.Printf("  ✔ handler #%d ", h.Index)
			dimColor.Printf("(%s)\n", h.Duration.Round(time.Millisecond))
			continue
		}
		errorColor.Printf("  ✘ handler #%d ", h.Index)
		dimColor.Printf("(%s)\n", h.Duration.Round(time.Millisecond))
		var handlerErr *core.HandlerError
		if errors.As(h.Err, &handlerErr) {
			errorColor.Printf("    %v\n", handlerErr.Err)
		} else {
			errorColor.Printf("    %v\n", h.Err)
		}
	}
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	runCmd.Flags().StringVarP(&eventFile, "event", "e", "", "Event file to process")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Describe jobs instead of running containers")
	_ = runCmd.MarkFlagRequired("event")
	rootCmd.AddCommand(runCmd)
}
