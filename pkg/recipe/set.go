// Copyright 2025 Brioche Project Contributors
//
// SPDX-License-Identifier: MIT

package recipe

import (
	"fmt"

	"github.com/brioche-dev/brioche-legacy/pkg/hash"
	"github.com/brioche-dev/brioche-legacy/pkg/state"
)

// ResolvedSource holds a materialized source artifact: an open content file
// for a tarball, or a checkout path and commit for a git source.
type ResolvedSource struct {
	GitCheckout *state.GitCheckout
	ContentFile *state.ContentFile
}

// ResolvedSet is the arena holding all recipes and sources touched by one
// resolution pass. Recipes reference each other by resolved ref, so the
// graph is acyclic by construction. The set is append-only during
// resolution, then read-only for baking; a lookup miss is a programming
// error and panics.
type ResolvedSet struct {
	recipes map[hash.Hash]*ResolvedRecipe
	sources map[ResolvedSourceRef]*ResolvedSource
}

// NewResolvedSet returns an empty set.
func NewResolvedSet() *ResolvedSet {
	return &ResolvedSet{
		recipes: make(map[hash.Hash]*ResolvedRecipe),
		sources: make(map[ResolvedSourceRef]*ResolvedSource),
	}
}

// InsertRecipe adds a resolved recipe under its ref.
func (s *ResolvedSet) InsertRecipe(ref hash.Hash, r *ResolvedRecipe) {
	s.recipes[ref] = r
}

// InsertSource adds a materialized source under its resolved ref.
func (s *ResolvedSet) InsertSource(ref ResolvedSourceRef, src *ResolvedSource) {
	s.sources[ref] = src
}

// Get returns the recipe for ref. Panics if absent.
func (s *ResolvedSet) Get(ref hash.Hash) *ResolvedRecipe {
	r, ok := s.recipes[ref]
	if !ok {
		panic(fmt.Sprintf("recipe set has no recipe for ref %s", ref.Hex()))
	}
	return r
}

// GetSource returns the materialized source for ref. Panics if absent.
func (s *ResolvedSet) GetSource(ref ResolvedSourceRef) *ResolvedSource {
	src, ok := s.sources[ref]
	if !ok {
		panic(fmt.Sprintf("recipe set has no source for %s", ref))
	}
	return src
}

// Len returns the number of resolved recipes.
func (s *ResolvedSet) Len() int {
	return len(s.recipes)
}
