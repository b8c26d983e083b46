// Copyright 2025 Brioche Project Contributors
//
// SPDX-License-Identifier: MIT

// Package lockfile persists the pinnings that make recipe resolution
// repeatable: URL to content hash, (repo, ref) to commit, and resolved
// recipe ref to auxiliary build data.
package lockfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/brioche-dev/brioche-legacy/pkg/hash"
)

// RecipeAux records per-recipe build byproducts worth pinning.
type RecipeAux struct {
	LinesStdout uint64 `json:"lines_stdout"`
	LinesStderr uint64 `json:"lines_stderr"`
}

// ContentLock is the on-disk lockfile schema.
type ContentLock struct {
	RequestHashes map[string]hash.Hash         `json:"request_hashes"`
	GitCommits    map[string]map[string]string `json:"git_commits"`
	RecipeAux     map[hash.Hash]RecipeAux      `json:"recipe_aux"`
}

func newContentLock() ContentLock {
	return ContentLock{
		RequestHashes: make(map[string]hash.Hash),
		GitCommits:    make(map[string]map[string]string),
		RecipeAux:     make(map[hash.Hash]RecipeAux),
	}
}

// Lockfile holds the current in-memory lock plus the serialized form last
// written to (or read from) disk, so Persist can skip no-op writes.
type Lockfile struct {
	mu        sync.RWMutex
	path      string
	current   ContentLock
	persisted []byte // marshaled form on disk, nil if absent or unreadable
}

// Open reads the lockfile at path. A missing, unreadable, or corrupt file is
// not an error: builds must proceed and the lock is regenerated on Persist.
func Open(path string) *Lockfile {
	lf := &Lockfile{
		path:    path,
		current: newContentLock(),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("lockfile.open_failed", "path", path, "err", err)
		}
		return lf
	}

	var lock ContentLock
	if err := json.Unmarshal(data, &lock); err != nil {
		slog.Warn("lockfile.parse_failed", "path", path, "err", err)
		return lf
	}

	if lock.RequestHashes == nil {
		lock.RequestHashes = make(map[string]hash.Hash)
	}
	if lock.GitCommits == nil {
		lock.GitCommits = make(map[string]map[string]string)
	}
	if lock.RecipeAux == nil {
		lock.RecipeAux = make(map[hash.Hash]RecipeAux)
	}
	lf.current = lock
	if persisted, err := marshalLock(&lock); err == nil {
		lf.persisted = persisted
	}
	return lf
}

// Path returns the on-disk location of the lockfile.
func (lf *Lockfile) Path() string {
	return lf.path
}

// RequestHash returns the pinned content hash for a URL, if any.
func (lf *Lockfile) RequestHash(url string) (hash.Hash, bool) {
	lf.mu.RLock()
	defer lf.mu.RUnlock()
	h, ok := lf.current.RequestHashes[url]
	return h, ok
}

// SetRequestHash pins the content hash for a URL.
func (lf *Lockfile) SetRequestHash(url string, h hash.Hash) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	lf.current.RequestHashes[url] = h
}

// GitCommitHash returns the pinned commit for (repo, ref), if any.
func (lf *Lockfile) GitCommitHash(repo, ref string) (string, bool) {
	lf.mu.RLock()
	defer lf.mu.RUnlock()
	refs, ok := lf.current.GitCommits[repo]
	if !ok {
		return "", false
	}
	commit, ok := refs[ref]
	return commit, ok
}

// SetGitCommitHash pins (repo, ref) to a commit.
func (lf *Lockfile) SetGitCommitHash(repo, ref, commit string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	refs, ok := lf.current.GitCommits[repo]
	if !ok {
		refs = make(map[string]string)
		lf.current.GitCommits[repo] = refs
	}
	refs[ref] = commit
}

// SetRecipeAux records auxiliary data for a resolved recipe ref.
func (lf *Lockfile) SetRecipeAux(ref hash.Hash, aux RecipeAux) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	lf.current.RecipeAux[ref] = aux
}

// Persist writes the current lock to disk if it differs from the last
// persisted form. Returns true if a write happened.
func (lf *Lockfile) Persist() (bool, error) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	data, err := marshalLock(&lf.current)
	if err != nil {
		return false, fmt.Errorf("serialize lockfile: %w", err)
	}
	if bytes.Equal(data, lf.persisted) {
		return false, nil
	}

	if err := os.WriteFile(lf.path, data, 0o644); err != nil {
		return false, fmt.Errorf("write lockfile %s: %w", lf.path, err)
	}
	lf.persisted = data
	return true, nil
}

// marshalLock renders the lock pretty-printed with stable key ordering
// (encoding/json sorts map keys).
func marshalLock(lock *ContentLock) ([]byte, error) {
	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
