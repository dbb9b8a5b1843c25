package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromGitHubWebhook(t *testing.T) {
	tests := []struct {
		name        string
		webhookType string
		payload     string
		wantType    string
		wantProject string
		wantRef     string
		wantCommit  string
		wantTitle   string
	}{
		{
			name:        "push",
			webhookType: "push",
			payload: `{
				"ref": "refs/heads/main",
				"after": "9f2c1e0",
				"head_commit": {"message": "fix flaky test"},
				"repository": {"full_name": "sevigo/brigadier", "clone_url": "https://github.com/sevigo/brigadier.git"}
			}`,
			wantType:    "push",
			wantProject: "sevigo/brigadier",
			wantRef:     "refs/heads/main",
			wantCommit:  "9f2c1e0",
			wantTitle:   "main pushed",
		},
		{
			name:        "branch deletion",
			webhookType: "push",
			payload: `{
				"ref": "refs/heads/feature",
				"deleted": true,
				"repository": {"full_name": "sevigo/brigadier"}
			}`,
			wantType:    "push:deleted",
			wantProject: "sevigo/brigadier",
			wantRef:     "refs/heads/feature",
			wantTitle:   "feature pushed",
		},
		{
			name:        "pull request opened",
			webhookType: "pull_request",
			payload: `{
				"action": "opened",
				"number": 42,
				"pull_request": {"title": "Add sidecars", "head": {"sha": "abc123"}},
				"repository": {"full_name": "sevigo/brigadier", "clone_url": "https://github.com/sevigo/brigadier.git"}
			}`,
			wantType:    "pull_request:opened",
			wantProject: "sevigo/brigadier",
			wantRef:     "refs/pull/42/head",
			wantCommit:  "abc123",
			wantTitle:   "PR #42: Add sidecars",
		},
		{
			name:        "release published",
			webhookType: "release",
			payload: `{
				"action": "published",
				"release": {"tag_name": "v2.1.0", "name": "Spring"},
				"repository": {"full_name": "sevigo/brigadier"}
			}`,
			wantType:    "release:published",
			wantProject: "sevigo/brigadier",
			wantRef:     "refs/tags/v2.1.0",
			wantTitle:   "release v2.1.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := FromGitHubWebhook(tt.webhookType, "delivery-1", []byte(tt.payload))
			require.NoError(t, err)

			assert.Equal(t, GitHubProvider, ev.Provider())
			assert.Equal(t, tt.wantType, ev.Type())
			assert.Equal(t, tt.wantProject, ev.ProjectID())
			assert.Equal(t, tt.wantTitle, ev.ShortTitle())
			assert.Equal(t, "sevigo/brigadier", ev.Qualifiers()["repo"])
			assert.Equal(t, "delivery-1", ev.Labels()["deliveryID"])
			assert.JSONEq(t, tt.payload, string(ev.Payload()))

			require.NotNil(t, ev.Git())
			assert.Equal(t, tt.wantRef, ev.Git().Ref)
			assert.Equal(t, tt.wantCommit, ev.Git().Commit)
		})
	}
}

func TestFromGitHubWebhook_Ping(t *testing.T) {
	_, err := FromGitHubWebhook("ping", "", []byte(`{"zen": "Keep it logically awesome."}`))
	require.ErrorIs(t, err, ErrIgnoredWebhook)
}

func TestFromGitHubWebhook_UnknownType(t *testing.T) {
	_, err := FromGitHubWebhook("not_a_webhook", "", []byte(`{}`))
	require.Error(t, err)
}

func TestFromGitHubWebhook_PassThrough(t *testing.T) {
	ev, err := FromGitHubWebhook("star", "", []byte(`{"action": "created"}`))
	require.NoError(t, err)

	assert.Equal(t, "star", ev.Type())
	assert.Empty(t, ev.ProjectID())
	assert.Nil(t, ev.Git())
}
