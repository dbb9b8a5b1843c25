package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"time"

	"github.com/spf13/viper"

	"github.com/sevigo/brigadier/internal/logger"
)

// Config holds the application's configuration values.
type Config struct {
	Server   ServerConfig
	Logging  logger.Config
	GitHub   GitHubConfig
	Database DBConfig
	Worker   WorkerConfig
	JobHost  JobHostConfig
	Projects ProjectsConfig
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Port string
	// EventsToken, when set, must be presented as a bearer token on the
	// generic events endpoint.
	EventsToken string
}

// GitHubConfig configures webhook validation and commit status reporting.
type GitHubConfig struct {
	AppID          int64
	InstallationID int64
	WebhookSecret  string
	PrivateKeyPath string
	// Token is a personal access token used instead of App credentials.
	Token        string
	ReportStatus bool
}

// DBConfig holds the postgres connection settings of the project store.
type DBConfig struct {
	Host            string
	Port            int
	Username        string
	Password        string
	Database        string
	SSLMode         string
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// WorkerConfig sizes the event dispatcher.
type WorkerConfig struct {
	MaxWorkers     int
	QueueSize      int
	ResolveCommits bool
	// ConcurrencyLimit caps concurrent groups built from pipelines. Zero
	// means unlimited.
	ConcurrencyLimit int
}

// JobHostConfig selects and configures the container runtime.
type JobHostConfig struct {
	Driver       string
	DockerBinary string
	WorkspaceDir string
}

// ProjectsConfig selects the project store.
type ProjectsConfig struct {
	Store string
	File  string
}

const (
	DriverDocker = "docker"
	DriverDryRun = "dryrun"

	StoreFile     = "file"
	StorePostgres = "postgres"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// LoadConfig reads configuration from environment variables and a .env file,
// sets sensible defaults, and validates the result. It uses the Viper
// library to handle configuration loading and precedence.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	return Load(v)
}

// Load builds a Config from v, applying defaults for every unset key.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing .env file is fine; settings then come from the environment.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("failed to read config file", "error", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        v.GetString("SERVER_PORT"),
			EventsToken: v.GetString("EVENTS_TOKEN"),
		},
		Logging: logger.Config{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
			Output: v.GetString("LOG_OUTPUT"),
			File:   v.GetString("LOG_FILE"),
		},
		GitHub: GitHubConfig{
			AppID:          v.GetInt64("GITHUB_APP_ID"),
			InstallationID: v.GetInt64("GITHUB_INSTALLATION_ID"),
			WebhookSecret:  v.GetString("GITHUB_WEBHOOK_SECRET"),
			PrivateKeyPath: v.GetString("GITHUB_PRIVATE_KEY_PATH"),
			Token:          v.GetString("GITHUB_TOKEN"),
			ReportStatus:   v.GetBool("GITHUB_REPORT_STATUS"),
		},
		Database: DBConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			Username:        v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Database:        v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			ConnMaxIdleTime: v.GetDuration("DB_CONN_MAX_IDLE_TIME"),
		},
		Worker: WorkerConfig{
			MaxWorkers:       v.GetInt("MAX_WORKERS"),
			QueueSize:        v.GetInt("QUEUE_SIZE"),
			ResolveCommits:   v.GetBool("RESOLVE_COMMITS"),
			ConcurrencyLimit: v.GetInt("CONCURRENCY_LIMIT"),
		},
		JobHost: JobHostConfig{
			Driver:       v.GetString("JOB_HOST_DRIVER"),
			DockerBinary: v.GetString("DOCKER_BINARY"),
			WorkspaceDir: v.GetString("WORKSPACE_DIR"),
		},
		Projects: ProjectsConfig{
			Store: v.GetString("PROJECT_STORE"),
			File:  v.GetString("PROJECTS_FILE"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("LOG_OUTPUT", "stdout")
	v.SetDefault("GITHUB_PRIVATE_KEY_PATH", "keys/brigadier.private-key.pem")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "brigadier")
	v.SetDefault("DB_NAME", "brigadier")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	v.SetDefault("DB_CONN_MAX_IDLE_TIME", 5*time.Minute)
	v.SetDefault("MAX_WORKERS", 4)
	v.SetDefault("QUEUE_SIZE", 100)
	v.SetDefault("RESOLVE_COMMITS", true)
	v.SetDefault("JOB_HOST_DRIVER", DriverDocker)
	v.SetDefault("DOCKER_BINARY", "docker")
	v.SetDefault("WORKSPACE_DIR", "/tmp/brigadier")
	v.SetDefault("PROJECT_STORE", StoreFile)
	v.SetDefault("PROJECTS_FILE", "projects.yaml")
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("%w: SERVER_PORT must be set", ErrInvalidConfig)
	}
	if c.Worker.MaxWorkers <= 0 {
		return fmt.Errorf("%w: MAX_WORKERS must be positive, got %d", ErrInvalidConfig, c.Worker.MaxWorkers)
	}
	if c.Worker.QueueSize <= 0 {
		return fmt.Errorf("%w: QUEUE_SIZE must be positive, got %d", ErrInvalidConfig, c.Worker.QueueSize)
	}
	if c.Worker.ConcurrencyLimit < 0 {
		return fmt.Errorf("%w: CONCURRENCY_LIMIT must not be negative", ErrInvalidConfig)
	}
	if !slices.Contains([]string{DriverDocker, DriverDryRun}, c.JobHost.Driver) {
		return fmt.Errorf("%w: unsupported JOB_HOST_DRIVER %q", ErrInvalidConfig, c.JobHost.Driver)
	}
	switch c.Projects.Store {
	case StoreFile:
		if c.Projects.File == "" {
			return fmt.Errorf("%w: PROJECTS_FILE must be set for the file project store", ErrInvalidConfig)
		}
	case StorePostgres:
		if c.Database.Host == "" || c.Database.Database == "" {
			return fmt.Errorf("%w: DB_HOST and DB_NAME must be set for the postgres project store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unsupported PROJECT_STORE %q", ErrInvalidConfig, c.Projects.Store)
	}
	if c.GitHub.ReportStatus && c.GitHub.Token == "" && c.GitHub.AppID == 0 {
		return fmt.Errorf("%w: GITHUB_REPORT_STATUS requires GITHUB_TOKEN or GITHUB_APP_ID", ErrInvalidConfig)
	}
	if c.GitHub.AppID != 0 && c.GitHub.InstallationID == 0 && c.GitHub.Token == "" {
		return fmt.Errorf("%w: GITHUB_APP_ID requires GITHUB_INSTALLATION_ID", ErrInvalidConfig)
	}
	return nil
}
