package gitutil

import (
	"fmt"
	"regexp"
	"strings"
)

// repoRegex matches "owner/repo", GitHub HTTPS URLs and scp-style SSH URLs.
var repoRegex = regexp.MustCompile(`^(?:(?:https?://)?github\.com/|git@github\.com:)?([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+?)(?:\.git)?$`)

// ParseRepo extracts the owner and repository name from a GitHub project ID
// or clone URL.
// Supported formats: owner/repo, https://github.com/owner/repo(.git),
// git@github.com:owner/repo.git
func ParseRepo(s string) (owner, repo string, err error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "/")

	matches := repoRegex.FindStringSubmatch(s)
	if len(matches) != 3 {
		return "", "", fmt.Errorf("invalid repository reference: %q", s)
	}
	return matches[1], matches[2], nil
}
