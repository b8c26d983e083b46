// Copyright 2025 Brioche Project Contributors
//
// SPDX-License-Identifier: MIT

package state

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/brioche-dev/brioche-legacy/internal/metrics"
)

// GitCheckoutRequest names a repository ref to pin and materialize.
type GitCheckoutRequest struct {
	Repo string
	Ref  string
}

// GitCheckout is a materialized worktree whose HEAD equals Commit.
type GitCheckout struct {
	Commit string
	Path   string
}

// GitCheckout clones (repo, ref), pins the resolved commit in the lockfile,
// and promotes the worktree to checkouts/{commit}. A previously pinned
// commit whose checkout directory still exists short-circuits the clone.
func (st *State) GitCheckout(ctx context.Context, req GitCheckoutRequest) (*GitCheckout, error) {
	if commit, ok := st.Lockfile.GitCommitHash(req.Repo, req.Ref); ok {
		checkoutPath := filepath.Join(st.checkoutsDir, commit)
		if info, err := os.Stat(checkoutPath); err == nil && info.IsDir() {
			slog.Debug("content.checkout_cached", "repo", req.Repo, "ref", req.Ref, "commit", commit)
			metrics.GitCheckoutCacheHitsTotal.Inc()
			return &GitCheckout{Commit: commit, Path: checkoutPath}, nil
		}
	}

	tempPath := filepath.Join(st.tempCheckoutsDir, uuid.NewString())

	cloneCmd := exec.CommandContext(ctx, "git",
		"clone", "--branch", req.Ref, "--depth", "1", "--", req.Repo, tempPath)
	var cloneStderr bytes.Buffer
	cloneCmd.Stderr = &cloneStderr
	if err := cloneCmd.Run(); err != nil {
		stderr := strings.TrimSpace(cloneStderr.String())
		if stderr != "" {
			return nil, fmt.Errorf("git clone %s (%s): %s", req.Repo, req.Ref, stderr)
		}
		return nil, fmt.Errorf("git clone %s (%s): %w", req.Repo, req.Ref, err)
	}

	commit, err := resolveHead(ctx, tempPath)
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD of %s (%s): %w", req.Repo, req.Ref, err)
	}

	checkoutPath := filepath.Join(st.checkoutsDir, commit)
	if err := os.RemoveAll(checkoutPath); err != nil {
		return nil, fmt.Errorf("remove stale checkout %s: %w", checkoutPath, err)
	}
	if err := os.Rename(tempPath, checkoutPath); err != nil {
		return nil, fmt.Errorf("promote checkout %s: %w", checkoutPath, err)
	}

	st.Lockfile.SetGitCommitHash(req.Repo, req.Ref, commit)
	metrics.GitCheckoutsTotal.Inc()
	slog.Debug("content.checkout", "repo", req.Repo, "ref", req.Ref, "commit", commit)

	return &GitCheckout{Commit: commit, Path: checkoutPath}, nil
}

// resolveHead returns the commit hash of HEAD in dir, hex-normalized to
// lowercase.
func resolveHead(ctx context.Context, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("git rev-parse HEAD: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("git rev-parse HEAD: %w", err)
	}

	raw, err := hex.DecodeString(strings.TrimSpace(string(out)))
	if err != nil {
		return "", fmt.Errorf("parse commit hash: %w", err)
	}
	return hex.EncodeToString(raw), nil
}
