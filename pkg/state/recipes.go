// Copyright 2025 Brioche Project Contributors
//
// SPDX-License-Identifier: MIT

package state

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/brioche-dev/brioche-legacy/pkg/hash"
)

// GetRecipeOutput returns the promoted prefix for a resolved recipe ref, or
// "" when the recipe has not been baked.
func (st *State) GetRecipeOutput(ref hash.Hash) (string, bool) {
	prefixPath := filepath.Join(st.recipesDir, ref.PathComponent(), "prefix")
	info, err := os.Stat(prefixPath)
	if err != nil || !info.IsDir() {
		return "", false
	}
	return prefixPath, true
}

// SaveRecipeOutput promotes a build's output tree to recipes/{ref}/prefix.
// The tree is first moved into a sibling staging directory with mv (which
// handles cross-filesystem moves), then renamed into place. If another
// process promoted the same ref first, its prefix wins and the staging copy
// is discarded.
func (st *State) SaveRecipeOutput(ctx context.Context, ref hash.Hash, sourceDir string) (string, error) {
	recipeDir := filepath.Join(st.recipesDir, ref.PathComponent())
	if err := os.MkdirAll(recipeDir, 0o755); err != nil {
		return "", fmt.Errorf("create recipe dir %s: %w", recipeDir, err)
	}

	stagingPath := filepath.Join(recipeDir, "prefix-tmp."+uuid.NewString())
	mvCmd := exec.CommandContext(ctx, "mv", "--", sourceDir, stagingPath)
	var stderr bytes.Buffer
	mvCmd.Stderr = &stderr
	if err := mvCmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("move recipe output to %s: %s", stagingPath, msg)
		}
		return "", fmt.Errorf("move recipe output to %s: %w", stagingPath, err)
	}

	prefixPath := filepath.Join(recipeDir, "prefix")
	if _, err := os.Stat(prefixPath); err == nil {
		// Lost the promotion race; keep the existing prefix.
		if err := os.RemoveAll(stagingPath); err != nil {
			return "", fmt.Errorf("discard staged prefix %s: %w", stagingPath, err)
		}
		return prefixPath, nil
	}
	if err := os.Rename(stagingPath, prefixPath); err != nil {
		return "", fmt.Errorf("promote recipe output %s: %w", prefixPath, err)
	}
	return prefixPath, nil
}
