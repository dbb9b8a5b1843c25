// Package gitutil resolves and checks out the source code jobs run against.
package gitutil

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/sevigo/brigadier/internal/core"
)

// ErrRefNotFound is returned when a ref does not exist on the remote.
var ErrRefNotFound = errors.New("ref not found on remote")

// Client handles interacting with Git repositories.
type Client struct {
	Logger *slog.Logger
	// Token authenticates HTTPS remotes. Empty means anonymous access.
	Token string
}

// NewClient returns a new Client instance.
func NewClient(logger *slog.Logger, token string) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{Logger: logger, Token: token}
}

func (c *Client) auth(cloneURL string) transport.AuthMethod {
	if c.Token == "" || !strings.HasPrefix(cloneURL, "https://") {
		return nil
	}
	return &githttp.BasicAuth{Username: "x-access-token", Password: c.Token}
}

// ResolveCommit returns the commit a ref currently points to on the remote,
// without cloning. ref may be fully qualified ("refs/heads/main") or a short
// branch or tag name.
func (c *Client) ResolveCommit(ctx context.Context, cloneURL, ref string) (string, error) {
	remote := git.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{cloneURL},
	})
	refs, err := remote.ListContext(ctx, &git.ListOptions{Auth: c.auth(cloneURL)})
	if err != nil {
		return "", fmt.Errorf("failed to list remote refs of %s: %w", cloneURL, err)
	}

	commit, ok := matchRef(refs, ref)
	if !ok {
		return "", fmt.Errorf("%w: %s at %s", ErrRefNotFound, ref, cloneURL)
	}
	c.Logger.DebugContext(ctx, "resolved ref", "url", cloneURL, "ref", ref, "commit", commit)
	return commit, nil
}

// matchRef finds ref among refs. Peeled tag entries ("^{}") win over the tag
// object so annotated tags resolve to their commit.
func matchRef(refs []*plumbing.Reference, ref string) (string, bool) {
	candidates := []string{ref}
	if !strings.HasPrefix(ref, "refs/") {
		candidates = append(candidates, "refs/heads/"+ref, "refs/tags/"+ref)
	}

	byName := make(map[string]plumbing.Hash, len(refs))
	for _, r := range refs {
		if r.Type() == plumbing.HashReference {
			byName[r.Name().String()] = r.Hash()
		}
	}
	for _, name := range candidates {
		if h, ok := byName[name+"^{}"]; ok {
			return h.String(), true
		}
		if h, ok := byName[name]; ok {
			return h.String(), true
		}
	}
	return "", false
}

// qualifyRef turns a short branch name into a full ref name.
func qualifyRef(ref string) string {
	if ref == "" || strings.HasPrefix(ref, "refs/") {
		return ref
	}
	return "refs/heads/" + ref
}

// Checkout fetches the configured ref (or every branch, when only a commit
// is known) into dir and checks out the commit. dir must not exist or be
// empty.
func (c *Client) Checkout(ctx context.Context, cfg core.GitConfig, dir string) (string, error) {
	if cfg.CloneURL == "" {
		return "", errors.New("git checkout requires a clone URL")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create checkout directory: %w", err)
	}

	repo, err := git.PlainInit(dir, false)
	if err != nil {
		return "", fmt.Errorf("failed to init repository at %s: %w", dir, err)
	}
	if _, err := repo.CreateRemote(&gitconfig.RemoteConfig{Name: "origin", URLs: []string{cfg.CloneURL}}); err != nil {
		return "", fmt.Errorf("failed to add remote: %w", err)
	}

	refSpec := gitconfig.RefSpec("+refs/heads/*:refs/remotes/origin/*")
	fullRef := qualifyRef(cfg.Ref)
	if fullRef != "" {
		refSpec = gitconfig.RefSpec(fmt.Sprintf("+%s:%s", fullRef, fullRef))
	}

	c.Logger.InfoContext(ctx, "fetching source", "url", cfg.CloneURL, "ref", cfg.Ref, "commit", cfg.Commit, "path", dir)
	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: "origin",
		RefSpecs:   []gitconfig.RefSpec{refSpec},
		Auth:       c.auth(cfg.CloneURL),
		Tags:       git.NoTags,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return "", fmt.Errorf("git fetch failed: %w", err)
	}

	var hash plumbing.Hash
	switch {
	case cfg.Commit != "":
		hash = plumbing.NewHash(cfg.Commit)
	case cfg.Ref != "":
		fetched, err := repo.Reference(plumbing.ReferenceName(fullRef), true)
		if err != nil {
			return "", fmt.Errorf("fetched ref %s not found: %w", cfg.Ref, err)
		}
		hash = fetched.Hash()
	default:
		return "", errors.New("git checkout requires a ref or a commit")
	}

	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to open worktree: %w", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: hash, Force: true}); err != nil {
		return "", fmt.Errorf("git checkout of %s failed: %w", hash, err)
	}

	if cfg.InitSubmodules {
		subs, err := wt.Submodules()
		if err != nil {
			return "", fmt.Errorf("failed to read submodules: %w", err)
		}
		if err := subs.UpdateContext(ctx, &git.SubmoduleUpdateOptions{
			Init:              true,
			RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
			Auth:              c.auth(cfg.CloneURL),
		}); err != nil {
			return "", fmt.Errorf("failed to update submodules: %w", err)
		}
	}
	return hash.String(), nil
}
