package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v73/github"

	"github.com/sevigo/brigadier/internal/config"
)

// ErrNoCredentials is returned when neither a token nor App credentials are configured.
var ErrNoCredentials = errors.New("no GitHub credentials configured")

// NewClientFromConfig returns a client authenticated with the configured
// personal access token, or as the configured App installation when no
// token is set.
func NewClientFromConfig(ctx context.Context, cfg *config.GitHubConfig, logger *slog.Logger) (Client, error) {
	switch {
	case cfg.Token != "":
		logger.Info("Using personal access token for GitHub")
		return NewPATClient(ctx, cfg.Token, logger), nil
	case cfg.AppID != 0:
		return CreateInstallationClient(cfg, logger)
	default:
		return nil, ErrNoCredentials
	}
}

// CreateInstallationClient creates a GitHub client that is authenticated as
// the configured application installation. Installation tokens are renewed
// by the transport before they expire.
func CreateInstallationClient(cfg *config.GitHubConfig, logger *slog.Logger) (Client, error) {
	logger.Info("Creating GitHub installation client", "app_id", cfg.AppID, "installation_id", cfg.InstallationID)

	privateKey, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key from %s: %w", cfg.PrivateKeyPath, err)
	}

	transport, err := ghinstallation.New(http.DefaultTransport, cfg.AppID, cfg.InstallationID, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub App transport: %w", err)
	}

	return NewGitHubClient(github.NewClient(&http.Client{Transport: transport}), logger), nil
}
