package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sevigo/brigadier/internal/config"
	"github.com/sevigo/brigadier/internal/pipeline"
)

var validateCmd = &cobra.Command{
	Use:   "validate [projects-file]",
	Short: "Checks a projects file and every pipeline it declares",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		path := projectsFile
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			path = "projects.yaml"
		}

		list, err := config.LoadProjects(path)
		if err != nil {
			errorColor.Printf("✘ %v\n", err)
			return err
		}

		if err := pipeline.Validate(list); err != nil {
			errorColor.Printf("✘ %s has invalid pipelines:\n", path)
			var joined interface{ Unwrap() []error }
			if errors.As(err, &joined) {
				for _, e := range joined.Unwrap() {
					errorColor.Printf("    %v\n", e)
				}
			} else {
				errorColor.Printf("    %v\n", err)
			}
			return fmt.Errorf("validation failed for %s", path)
		}

		pipelines := 0
		for _, p := range list {
			pipelines += len(p.Pipelines)
		}
		successColor.Printf("✔ %s: %d project(s), %d pipeline(s)\n", path, len(list), pipelines)
		return nil
	},
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	rootCmd.AddCommand(validateCmd)
}
