package events

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/go-github/v73/github"

	"github.com/sevigo/brigadier/internal/core"
)

// GitHubProvider is the provider name of events built from GitHub webhooks.
const GitHubProvider = "github"

// ErrIgnoredWebhook is returned for webhooks that do not map to an event,
// such as pings.
var ErrIgnoredWebhook = errors.New("webhook does not produce an event")

// FromGitHubWebhook converts a validated GitHub webhook into an Event.
// The event type is the webhook type, suffixed with ":<action>" when the
// webhook carries an action (for example "pull_request:opened"). The project
// is the repository's full name; git overrides point at the pushed or
// proposed commit.
func FromGitHubWebhook(webhookType string, deliveryID string, payload []byte) (core.Event, error) {
	raw, err := github.ParseWebHook(webhookType, payload)
	if err != nil {
		return core.Event{}, fmt.Errorf("could not parse %q webhook: %w", webhookType, err)
	}

	opts := []core.EventOption{}
	if deliveryID != "" {
		opts = append(opts, core.WithLabels(map[string]string{"deliveryID": deliveryID}))
	}
	eventType := webhookType

	switch e := raw.(type) {
	case *github.PingEvent:
		return core.Event{}, ErrIgnoredWebhook
	case *github.PushEvent:
		if e.GetDeleted() {
			eventType = webhookType + ":deleted"
		}
		repo := e.GetRepo().GetFullName()
		opts = append(opts,
			core.WithProject(repo),
			core.WithQualifiers(map[string]string{"repo": repo}),
			core.WithTitles(shortRef(e.GetRef())+" pushed", e.GetHeadCommit().GetMessage()),
			core.WithGit(core.GitConfig{
				CloneURL: e.GetRepo().GetCloneURL(),
				Ref:      e.GetRef(),
				Commit:   e.GetAfter(),
			}),
		)
	case *github.PullRequestEvent:
		eventType = webhookType + ":" + e.GetAction()
		pr := e.GetPullRequest()
		repo := e.GetRepo().GetFullName()
		opts = append(opts,
			core.WithProject(repo),
			core.WithQualifiers(map[string]string{"repo": repo}),
			core.WithTitles("PR #"+strconv.Itoa(e.GetNumber())+": "+pr.GetTitle(), pr.GetBody()),
			core.WithGit(core.GitConfig{
				CloneURL: e.GetRepo().GetCloneURL(),
				Ref:      fmt.Sprintf("refs/pull/%d/head", e.GetNumber()),
				Commit:   pr.GetHead().GetSHA(),
			}),
		)
	case *github.ReleaseEvent:
		eventType = webhookType + ":" + e.GetAction()
		repo := e.GetRepo().GetFullName()
		opts = append(opts,
			core.WithProject(repo),
			core.WithQualifiers(map[string]string{"repo": repo}),
			core.WithTitles("release "+e.GetRelease().GetTagName(), e.GetRelease().GetName()),
			core.WithGit(core.GitConfig{
				CloneURL: e.GetRepo().GetCloneURL(),
				Ref:      "refs/tags/" + e.GetRelease().GetTagName(),
			}),
		)
	case *github.IssueCommentEvent:
		eventType = webhookType + ":" + e.GetAction()
		repo := e.GetRepo().GetFullName()
		opts = append(opts,
			core.WithProject(repo),
			core.WithQualifiers(map[string]string{"repo": repo}),
			core.WithTitles("comment on #"+strconv.Itoa(e.GetIssue().GetNumber()), e.GetComment().GetBody()),
		)
	default:
		// Other webhook types are passed through without git or project facts;
		// a project must then be supplied by the caller.
	}

	return core.NewEvent(GitHubProvider, eventType, payload, opts...)
}

func shortRef(ref string) string {
	for _, prefix := range []string{"refs/heads/", "refs/tags/"} {
		if short, ok := strings.CutPrefix(ref, prefix); ok {
			return short
		}
	}
	return ref
}
