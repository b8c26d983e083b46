// Copyright 2025 Brioche Project Contributors
//
// SPDX-License-Identifier: MIT

package recipe

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/brioche-dev/brioche-legacy/pkg/hash"
	"github.com/brioche-dev/brioche-legacy/pkg/state"
)

// Resolve evaluates repoDir/name/brioche.js, materializes its source,
// recursively resolves its dependencies, and inserts the resulting
// ResolvedRecipe into set under its canonical ref.
//
// Resolution runs to completion before anything is baked: an evaluation,
// download, or checkout failure aborts the whole build.
func Resolve(ctx context.Context, st *state.State, repoDir, name string, set *ResolvedSet) (hash.Hash, error) {
	def, err := EvalRecipe(filepath.Join(repoDir, name))
	if err != nil {
		return hash.Hash{}, err
	}
	slog.Debug("resolve.recipe", "name", def.Name, "version", def.Version)

	sourceRef, err := resolveSource(ctx, st, def, set)
	if err != nil {
		return hash.Hash{}, fmt.Errorf("resolve source of recipe %s: %w", def.Name, err)
	}

	// Recurse by dependency name in sorted order so materialization side
	// effects are deterministic. The version strings are carried in the
	// recipe file but not interpreted.
	depNames := make([]string, 0, len(def.Dependencies))
	for depName := range def.Dependencies {
		depNames = append(depNames, depName)
	}
	sort.Strings(depNames)

	depRefs := make([]hash.Hash, 0, len(depNames))
	seen := make(map[hash.Hash]struct{}, len(depNames))
	for _, depName := range depNames {
		depRef, err := Resolve(ctx, st, repoDir, depName, set)
		if err != nil {
			return hash.Hash{}, fmt.Errorf("resolve dependency %s of recipe %s: %w", depName, def.Name, err)
		}
		if _, dup := seen[depRef]; dup {
			continue
		}
		seen[depRef] = struct{}{}
		depRefs = append(depRefs, depRef)
	}

	// Ordered set: dependencies sort by ref so canonical JSON is stable
	// regardless of declaration order.
	sort.Slice(depRefs, func(i, j int) bool { return depRefs[i].Less(depRefs[j]) })

	resolved := &ResolvedRecipe{
		Name:         def.Name,
		Version:      def.Version,
		Source:       sourceRef,
		Dependencies: depRefs,
		Build:        def.Build,
	}
	ref, err := resolved.Ref()
	if err != nil {
		return hash.Hash{}, fmt.Errorf("hash recipe %s: %w", def.Name, err)
	}

	set.InsertRecipe(ref, resolved)
	slog.Debug("resolve.done", "name", def.Name, "ref", ref.Hex())
	return ref, nil
}

// resolveSource pins the declared source to exact content and records the
// materialized artifact in the set.
func resolveSource(ctx context.Context, st *state.State, def *RecipeDefinition, set *ResolvedSet) (ResolvedSourceRef, error) {
	switch {
	case def.Source.Git != nil:
		checkout, err := st.GitCheckout(ctx, state.GitCheckoutRequest{
			Repo: def.Source.Git.Git,
			Ref:  def.Source.Git.Ref,
		})
		if err != nil {
			return ResolvedSourceRef{}, err
		}
		ref := GitSourceRef(checkout.Commit)
		set.InsertSource(ref, &ResolvedSource{GitCheckout: checkout})
		return ref, nil

	case def.Source.Tarball != nil:
		contentFile, err := st.Download(ctx, state.ContentRequest{URL: def.Source.Tarball.Tarball})
		if err != nil {
			return ResolvedSourceRef{}, err
		}
		ref := TarballSourceRef(contentFile.ContentHash)
		set.InsertSource(ref, &ResolvedSource{ContentFile: contentFile})
		return ref, nil

	default:
		return ResolvedSourceRef{}, fmt.Errorf("recipe %s has no source", def.Name)
	}
}
