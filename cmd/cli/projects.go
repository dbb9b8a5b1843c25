package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sevigo/brigadier/internal/app"
	"github.com/sevigo/brigadier/internal/config"
	"github.com/sevigo/brigadier/internal/core"
	"github.com/sevigo/brigadier/internal/db"
	"github.com/sevigo/brigadier/internal/pipeline"
	"github.com/sevigo/brigadier/internal/projects"
)

var outputJSON bool

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Inspects and manages the project store",
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists the projects of the configured store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, cleanup, err := projects.Open(cfg, app.NewLogger(cfg))
		if err != nil {
			return err
		}
		defer cleanup()

		list, err := store.ListProjects(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to retrieve projects: %w", err)
		}

		if outputJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(list)
		}

		if len(list) == 0 {
			warnColor.Println("No projects are configured.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "PROJECT\tCLONE URL\tREF\tEVENTS")
		for _, p := range list {
			on := make([]string, 0, len(p.Pipelines))
			for _, def := range p.Pipelines {
				on = append(on, def.On)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Git.CloneURL, p.Git.Ref, strings.Join(on, ","))
		}
		return w.Flush()
	},
}

var projectsImportCmd = &cobra.Command{
	Use:   "import <projects-file>",
	Short: "Imports a projects file into the postgres project store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := config.LoadProjects(args[0])
		if err != nil {
			return err
		}
		if err := pipeline.Validate(list); err != nil {
			return fmt.Errorf("refusing to import invalid pipelines: %w", err)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return importProjects(cmd.Context(), cfg, list)
	},
}

func importProjects(ctx context.Context, cfg *config.Config, list []core.Project) error {
	conn, cleanup, err := db.NewDatabase(&cfg.Database, app.NewLogger(cfg))
	if err != nil {
		return err
	}
	defer cleanup()

	if err := projects.NewPostgresStore(conn.DB).ImportProjects(ctx, list); err != nil {
		return err
	}
	successColor.Printf("✔ imported %d project(s) into %s\n", len(list), cfg.Database.Database)
	return nil
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	projectsListCmd.Flags().BoolVar(&outputJSON, "json", false, "Output projects as JSON")
	projectsCmd.AddCommand(projectsListCmd, projectsImportCmd)
	rootCmd.AddCommand(projectsCmd)
}
