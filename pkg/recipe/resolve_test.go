// Copyright 2025 Brioche Project Contributors
//
// SPDX-License-Identifier: MIT

package recipe

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brioche-dev/brioche-legacy/pkg/hash"
	"github.com/brioche-dev/brioche-legacy/pkg/state"
)

// tarballServer serves the same bytes at every path.
func tarballServer(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

// writeRepoRecipe adds a named recipe with a tarball source and the given
// dependencies to the repo directory.
func writeRepoRecipe(t *testing.T, repoDir, name, url string, deps map[string]string) {
	t.Helper()
	depsJS := ""
	for depName, depVersion := range deps {
		depsJS += fmt.Sprintf("%q: %q, ", depName, depVersion)
	}
	script := fmt.Sprintf(`
module.exports.recipe = {
	definition: () => ({
		name: %q,
		version: "1.0.0",
		source: { tarball: %q },
		dependencies: { %s },
		build: { shell: "sh", script: "make install", envVars: {} },
	}),
};
`, name, url, depsJS)

	dir := filepath.Join(repoDir, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, RecipeFileName), []byte(script), 0o644))
}

func TestResolveTarballRecipe(t *testing.T) {
	body := []byte("tarball bytes")
	server := tarballServer(t, body)
	repoDir := t.TempDir()
	writeRepoRecipe(t, repoDir, "a", server.URL+"/a.tgz", nil)

	st, err := state.New(t.TempDir())
	require.NoError(t, err)
	set := NewResolvedSet()

	ref, err := Resolve(context.Background(), st, repoDir, "a", set)
	require.NoError(t, err)

	resolved := set.Get(ref)
	assert.Equal(t, "a", resolved.Name)
	assert.Equal(t, SourceTarball, resolved.Source.Kind)
	assert.Equal(t, hash.Sum(body), resolved.Source.Hash)
	assert.Empty(t, resolved.Dependencies)

	// The materialized source is in the set.
	source := set.GetSource(resolved.Source)
	require.NotNil(t, source.ContentFile)
	assert.Equal(t, hash.Sum(body), source.ContentFile.ContentHash)

	// The ref is the canonical-JSON hash of the resolved recipe.
	wantRef, err := resolved.Ref()
	require.NoError(t, err)
	assert.Equal(t, wantRef, ref)

	// The download is pinned.
	pinned, ok := st.Lockfile.RequestHash(server.URL + "/a.tgz")
	require.True(t, ok)
	assert.Equal(t, hash.Sum(body), pinned)
}

func TestResolveDependencyGraph(t *testing.T) {
	server := tarballServer(t, []byte("shared source"))
	repoDir := t.TempDir()
	writeRepoRecipe(t, repoDir, "a", server.URL+"/a.tgz", nil)
	writeRepoRecipe(t, repoDir, "b", server.URL+"/b.tgz", nil)
	writeRepoRecipe(t, repoDir, "c", server.URL+"/c.tgz", map[string]string{
		"a": "1.0.0",
		"b": "1.0.0",
	})

	st, err := state.New(t.TempDir())
	require.NoError(t, err)
	set := NewResolvedSet()

	cRef, err := Resolve(context.Background(), st, repoDir, "c", set)
	require.NoError(t, err)

	c := set.Get(cRef)
	require.Len(t, c.Dependencies, 2)

	// Dependency refs are the resolved refs of a and b, in ref order.
	names := map[string]bool{}
	for _, depRef := range c.Dependencies {
		names[set.Get(depRef).Name] = true
	}
	assert.Equal(t, map[string]bool{"a": true, "b": true}, names)
	assert.True(t, c.Dependencies[0].Less(c.Dependencies[1]))
}

func TestResolveDependencyOrderIrrelevant(t *testing.T) {
	// Two repos declaring c's dependencies in opposite orders resolve to
	// the same ref.
	server := tarballServer(t, []byte("shared source"))

	makeRepo := func(depsJS string) string {
		repoDir := t.TempDir()
		writeRepoRecipe(t, repoDir, "a", server.URL+"/a.tgz", nil)
		writeRepoRecipe(t, repoDir, "b", server.URL+"/b.tgz", nil)
		script := fmt.Sprintf(`
module.exports.recipe = {
	definition: () => ({
		name: "c",
		version: "1.0.0",
		source: { tarball: %q },
		dependencies: { %s },
		build: { shell: "sh", script: "make install", envVars: {} },
	}),
};
`, server.URL+"/c.tgz", depsJS)
		dir := filepath.Join(repoDir, "c")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, RecipeFileName), []byte(script), 0o644))
		return repoDir
	}

	st, err := state.New(t.TempDir())
	require.NoError(t, err)

	set1 := NewResolvedSet()
	ref1, err := Resolve(context.Background(), st, makeRepo(`"a": "1.0.0", "b": "1.0.0"`), "c", set1)
	require.NoError(t, err)

	set2 := NewResolvedSet()
	ref2, err := Resolve(context.Background(), st, makeRepo(`"b": "1.0.0", "a": "1.0.0"`), "c", set2)
	require.NoError(t, err)

	assert.Equal(t, ref1, ref2)
}

func TestResolveMissingDependencyAborts(t *testing.T) {
	server := tarballServer(t, []byte("src"))
	repoDir := t.TempDir()
	writeRepoRecipe(t, repoDir, "c", server.URL+"/c.tgz", map[string]string{"ghost": "1.0.0"})

	st, err := state.New(t.TempDir())
	require.NoError(t, err)

	_, err = Resolve(context.Background(), st, repoDir, "c", NewResolvedSet())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}
