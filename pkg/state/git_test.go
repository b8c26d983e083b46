// Copyright 2025 Brioche Project Contributors
//
// SPDX-License-Identifier: MIT

package state

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var commitHexRE = regexp.MustCompile(`^[0-9a-f]{40}$`)

// initTestRepo creates a git repository with one commit on branch "main"
// and a tag "v1".
func initTestRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	repoDir := t.TempDir()
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = repoDir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.invalid",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.invalid",
		)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}

	run("init", "--initial-branch=main", ".")
	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "hello.txt"), []byte("hi\n"), 0o644))
	run("add", "hello.txt")
	run("commit", "-m", "initial")
	run("tag", "v1")
	return repoDir
}

func TestGitCheckout(t *testing.T) {
	repoDir := initTestRepo(t)
	dataDir := t.TempDir()
	st, err := New(dataDir)
	require.NoError(t, err)

	checkout, err := st.GitCheckout(context.Background(), GitCheckoutRequest{
		Repo: repoDir,
		Ref:  "v1",
	})
	require.NoError(t, err)

	assert.Regexp(t, commitHexRE, checkout.Commit)
	assert.Equal(t, filepath.Join(dataDir, "checkouts", checkout.Commit), checkout.Path)

	// The worktree is materialized.
	content, err := os.ReadFile(filepath.Join(checkout.Path, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(content))

	// The commit is pinned in the lockfile.
	pinned, ok := st.Lockfile.GitCommitHash(repoDir, "v1")
	require.True(t, ok)
	assert.Equal(t, checkout.Commit, pinned)
}

func TestGitCheckoutCached(t *testing.T) {
	repoDir := initTestRepo(t)
	st, err := New(t.TempDir())
	require.NoError(t, err)

	first, err := st.GitCheckout(context.Background(), GitCheckoutRequest{Repo: repoDir, Ref: "v1"})
	require.NoError(t, err)

	// Delete the upstream repo: a cached checkout must not clone again.
	require.NoError(t, os.RemoveAll(repoDir))

	second, err := st.GitCheckout(context.Background(), GitCheckoutRequest{Repo: repoDir, Ref: "v1"})
	require.NoError(t, err)
	assert.Equal(t, first.Commit, second.Commit)
	assert.Equal(t, first.Path, second.Path)
}

func TestGitCheckoutBadRef(t *testing.T) {
	repoDir := initTestRepo(t)
	st, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = st.GitCheckout(context.Background(), GitCheckoutRequest{
		Repo: repoDir,
		Ref:  "does-not-exist",
	})
	assert.Error(t, err)
}
