// Copyright 2025 Brioche Project Contributors
//
// SPDX-License-Identifier: MIT

// Package recipe evaluates build recipes from their script form, resolves
// their sources and dependencies to exact content, and assigns each
// resolved recipe a deterministic content hash.
package recipe

import (
	"encoding/json"
	"fmt"

	"github.com/brioche-dev/brioche-legacy/pkg/hash"
)

// RecipeDefinition is the plain data returned by a recipe script's
// definition() function.
type RecipeDefinition struct {
	Name         string
	Version      string
	Source       RecipeSource
	Dependencies map[string]string
	Build        BuildScript
}

// RecipeSource is a tagged variant over a git reference or a downloadable
// tarball. Exactly one arm is set.
type RecipeSource struct {
	Git     *GitSource
	Tarball *TarballSource
}

// GitSource names a repository URL and a ref to clone.
type GitSource struct {
	Git string
	Ref string
}

// TarballSource names a downloadable archive.
type TarballSource struct {
	Tarball string
}

// BuildScript is the shell program run inside the sandbox.
type BuildScript struct {
	Shell   string            `json:"shell"`
	Script  string            `json:"script"`
	EnvVars map[string]string `json:"envVars"`
}

// SourceKind discriminates ResolvedSourceRef variants.
type SourceKind int

const (
	SourceGit SourceKind = iota
	SourceTarball
)

// ResolvedSourceRef is a source pinned to exact content: a git commit or a
// tarball content hash. It is comparable and usable as a map key.
type ResolvedSourceRef struct {
	Kind   SourceKind
	Commit string    // hex40, set when Kind == SourceGit
	Hash   hash.Hash // set when Kind == SourceTarball
}

// GitSourceRef pins a git source to a commit.
func GitSourceRef(commit string) ResolvedSourceRef {
	return ResolvedSourceRef{Kind: SourceGit, Commit: commit}
}

// TarballSourceRef pins a tarball source to its content hash.
func TarballSourceRef(h hash.Hash) ResolvedSourceRef {
	return ResolvedSourceRef{Kind: SourceTarball, Hash: h}
}

func (r ResolvedSourceRef) String() string {
	switch r.Kind {
	case SourceGit:
		return "git:" + r.Commit
	case SourceTarball:
		return "tarball:" + r.Hash.Hex()
	default:
		return "unknown"
	}
}

// MarshalJSON renders the variant in its canonical tagged form,
// {"git":{"commit":...}} or {"tarball":{"hash":...}}.
func (r ResolvedSourceRef) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case SourceGit:
		return json.Marshal(map[string]map[string]string{
			"git": {"commit": r.Commit},
		})
	case SourceTarball:
		return json.Marshal(map[string]map[string]string{
			"tarball": {"hash": r.Hash.Hex()},
		})
	default:
		return nil, fmt.Errorf("unknown source kind %d", r.Kind)
	}
}

// UnmarshalJSON parses the tagged form back.
func (r *ResolvedSourceRef) UnmarshalJSON(data []byte) error {
	var tagged map[string]map[string]string
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}
	if git, ok := tagged["git"]; ok {
		r.Kind = SourceGit
		r.Commit = git["commit"]
		return nil
	}
	if tarball, ok := tagged["tarball"]; ok {
		h, err := hash.Parse(tarball["hash"])
		if err != nil {
			return fmt.Errorf("tarball source hash: %w", err)
		}
		r.Kind = SourceTarball
		r.Hash = h
		return nil
	}
	return fmt.Errorf("source ref has neither git nor tarball arm")
}

// ResolvedRecipe is the canonicalized form of a recipe: source pinned to
// exact content, dependencies stored as an ordered set of resolved refs so
// canonical serialization is deterministic.
type ResolvedRecipe struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Source       ResolvedSourceRef `json:"source"`
	Dependencies []hash.Hash       `json:"dependencies"`
	Build        BuildScript       `json:"build"`
}

// Ref computes the recipe's resolved ref: the hash of its canonical JSON.
func (r *ResolvedRecipe) Ref() (hash.Hash, error) {
	return hash.SumCanonicalJSON(r)
}
