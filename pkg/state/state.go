// Copyright 2025 Brioche Project Contributors
//
// SPDX-License-Identifier: MIT

// Package state implements the content-addressed store backing every build:
// downloaded blobs, git checkouts, unpacked archives, and promoted recipe
// outputs, all living under a per-user data directory and pinned by the
// lockfile.
package state

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/brioche-dev/brioche-legacy/pkg/lockfile"
)

// State owns the data directory layout and the lockfile. All cache
// promotion happens via atomic renames, so concurrent processes sharing the
// directory never observe half-written entries.
type State struct {
	dataDir string

	downloadsDir     string
	tempDownloadsDir string
	checkoutsDir     string
	tempCheckoutsDir string
	unpackDir        string
	recipesDir       string

	Lockfile *lockfile.Lockfile
}

// DataRoot resolves the per-user data directory with precedence:
// BRIOCHE_DATA_DIR > override > $XDG_DATA_HOME/brioche > ~/.local/share/brioche.
func DataRoot(override string) (string, error) {
	if envDir := os.Getenv("BRIOCHE_DATA_DIR"); envDir != "" {
		return filepath.Abs(envDir)
	}
	if override != "" {
		return filepath.Abs(override)
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "brioche"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "brioche"), nil
}

// New creates the data directory layout under dataDir and opens the
// lockfile.
func New(dataDir string) (*State, error) {
	st := &State{
		dataDir:          dataDir,
		downloadsDir:     filepath.Join(dataDir, "downloads"),
		tempDownloadsDir: filepath.Join(dataDir, "downloads", "_temp"),
		checkoutsDir:     filepath.Join(dataDir, "checkouts"),
		tempCheckoutsDir: filepath.Join(dataDir, "checkouts", "_temp"),
		unpackDir:        filepath.Join(dataDir, "unpack"),
		recipesDir:       filepath.Join(dataDir, "recipes"),
	}

	for _, dir := range []string{
		st.downloadsDir,
		st.tempDownloadsDir,
		st.checkoutsDir,
		st.tempCheckoutsDir,
		st.unpackDir,
		st.recipesDir,
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir %s: %w", dir, err)
		}
	}

	st.Lockfile = lockfile.Open(filepath.Join(dataDir, "lockfile.json"))
	return st, nil
}

// DataDir returns the store's root directory.
func (st *State) DataDir() string {
	return st.dataDir
}

// NewTempWorkDir allocates a fresh scratch work directory for one sandbox
// build. The directory is left in place on failure for debugging.
func (st *State) NewTempWorkDir() (string, error) {
	workDir := filepath.Join(os.TempDir(), "brioche", "work-dir", uuid.NewString(), "work")
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", fmt.Errorf("create work dir %s: %w", workDir, err)
	}
	return workDir, nil
}
