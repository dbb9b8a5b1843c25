package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sevigo/brigadier/internal/config"
)

var (
	githubToken  string
	projectsFile string
)

var (
	titleColor   = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	dimColor     = color.New(color.FgHiBlack)
)

var rootCmd = &cobra.Command{
	Use:   "brigadier",
	Short: "brigadier runs event-driven container pipelines.",
	Long: `A CLI for the brigadier worker: process a single event file against the
configured projects, validate pipeline definitions and manage the project store.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&githubToken, "github-token", "t", "", "GitHub Token")
	rootCmd.PersistentFlags().StringVarP(&projectsFile, "projects", "p", "", "Projects file (overrides PROJECTS_FILE)")

	for key, flag := range map[string]string{"GITHUB_TOKEN": "github-token", "PROJECTS_FILE": "projects"} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			slog.Error("Error binding flag", "error", err)
			os.Exit(1)
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// loadConfig builds the configuration from the environment, .env and flags.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}
