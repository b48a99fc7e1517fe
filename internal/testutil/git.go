package testutil

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bjulian5/cq/internal/git"
)

// NewTestRepo creates a git client in a temporary repository with an
// initial commit on master.
func NewTestRepo(t *testing.T) *git.Client {
	tempDir := t.TempDir()

	runGit(t, tempDir, "init", "--initial-branch=master")
	runGit(t, tempDir, "config", "user.email", "test@example.com")
	runGit(t, tempDir, "config", "user.name", "Test User")

	client, err := git.NewClientAt(tempDir)
	require.NoError(t, err)

	CommitFile(t, client, "base.txt", "base\n", "Initial commit")
	return client
}

// CreateCommit commits a uniquely named file with the given title and
// trailer lines, and returns the commit hash.
func CreateCommit(t *testing.T, client *git.Client, title string, trailers ...string) string {
	msg := title
	if len(trailers) > 0 {
		msg += "\n\n" + strings.Join(trailers, "\n")
	}
	path := fmt.Sprintf("file-%s.txt", strings.ReplaceAll(title, " ", "-"))
	return CommitFile(t, client, path, title+"\n", msg)
}

// CommitFile writes a file with the given content and commits it,
// returning the commit hash. Committing the same path with different
// content from two branches is how conflict scenarios are built.
func CommitFile(t *testing.T, client *git.Client, path, content, message string) string {
	fullPath := filepath.Join(client.GitRoot(), path)
	require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0755))
	require.NoError(t, os.WriteFile(fullPath, []byte(content), 0644))

	runGit(t, client.GitRoot(), "add", ".")
	runGit(t, client.GitRoot(), "commit", "-m", message)

	hash, err := client.GetCommitHash("HEAD")
	require.NoError(t, err)
	return hash
}

// runGit runs one git command in dir with pinned dates so that hashes
// are reproducible.
func runGit(t *testing.T, dir string, args ...string) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_DATE=2024-01-01T00:00:00Z",
		"GIT_COMMITTER_DATE=2024-01-01T00:00:00Z",
	)
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %s failed: %s", strings.Join(args, " "), string(output))
}
