// Package github provides functionality for interacting with the GitHub API.
package github

import (
	"context"
	"log/slog"

	"github.com/google/go-github/v73/github"
	"golang.org/x/oauth2"
)

// Client defines the GitHub operations the worker needs to publish
// dispatch results.
type Client interface {
	CreateStatus(ctx context.Context, owner, repo, sha string, status *github.RepoStatus) error
}

type gitHubClient struct {
	client *github.Client
	logger *slog.Logger
}

// NewGitHubClient wraps the official go-github client to provide a focused,
// testable interface for application-specific GitHub operations.
func NewGitHubClient(client *github.Client, logger *slog.Logger) Client {
	return &gitHubClient{client: client, logger: logger}
}

// NewPATClient creates a new GitHub client authenticated with a Personal Access Token (PAT).
// This is useful for CLI tools or local development where an App installation is not available.
func NewPATClient(ctx context.Context, token string, logger *slog.Logger) Client {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)
	client := github.NewClient(tc)
	return &gitHubClient{client: client, logger: logger}
}

// CreateStatus sets a commit status on sha.
func (g *gitHubClient) CreateStatus(ctx context.Context, owner, repo, sha string, status *github.RepoStatus) error {
	_, _, err := g.client.Repositories.CreateStatus(ctx, owner, repo, sha, status)
	if err != nil {
		g.logger.Error("failed to create commit status", "owner", owner, "repo", repo, "sha", sha, "error", err)
	}
	return err
}
