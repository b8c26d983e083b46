// Copyright 2025 Brioche Project Contributors
//
// SPDX-License-Identifier: MIT

//go:build linux

package bake

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brioche-dev/brioche-legacy/pkg/hash"
	"github.com/brioche-dev/brioche-legacy/pkg/recipe"
	"github.com/brioche-dev/brioche-legacy/pkg/state"
)

func TestRelayLines(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantLines uint64
		wantOut   string
	}{
		{"empty", "", 0, ""},
		{"single line", "hello\n", 1, "hello\n"},
		{"multiple lines", "a\nb\nc\n", 3, "a\nb\nc\n"},
		{"unterminated final line", "a\nb", 2, "a\nb\n"},
		{"blank lines count", "\n\n", 2, "\n\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out strings.Builder
			lines, err := relayLines(&out, strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.wantLines, lines)
			assert.Equal(t, tt.wantOut, out.String())
		})
	}
}

func TestRelayLinesLongLine(t *testing.T) {
	// Longer than bufio's default buffer.
	long := strings.Repeat("x", 128*1024)

	var out strings.Builder
	lines, err := relayLines(&out, strings.NewReader(long+"\n"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, lines)
	assert.Equal(t, long+"\n", out.String())
}

func TestGetBakedRecipeCached(t *testing.T) {
	dataDir := t.TempDir()
	st, err := state.New(dataDir)
	require.NoError(t, err)

	resolved := &recipe.ResolvedRecipe{
		Name:         "a",
		Version:      "1.0.0",
		Source:       recipe.TarballSourceRef(hash.Sum([]byte("src"))),
		Dependencies: []hash.Hash{},
		Build:        recipe.BuildScript{Shell: "sh", Script: "true", EnvVars: map[string]string{}},
	}
	ref, err := resolved.Ref()
	require.NoError(t, err)

	set := recipe.NewResolvedSet()
	set.InsertRecipe(ref, resolved)

	// Pre-promote the output: the baker must not stage a sandbox. The
	// source was intentionally never materialized, so an attempt to build
	// could not succeed: it would fail fetching the base root or panic in
	// GetSource.
	prefixPath := filepath.Join(dataDir, "recipes", ref.PathComponent(), "prefix")
	require.NoError(t, os.MkdirAll(filepath.Join(prefixPath, "bin"), 0o755))

	baker := &Baker{State: st, Set: set}
	baked, err := baker.GetBakedRecipe(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, ref, baked.Ref)
	assert.Equal(t, prefixPath, baked.PrefixPath)
}

func TestCopyPrefixEntriesMergesTrees(t *testing.T) {
	srcA := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(srcA, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcA, "bin", "a"), []byte("a\n"), 0o755))

	srcB := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(srcB, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcB, "bin", "b"), []byte("b\n"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcB, "README"), []byte("docs\n"), 0o644))

	dst := t.TempDir()
	require.NoError(t, copyPrefixEntries(context.Background(), srcA, dst))
	require.NoError(t, copyPrefixEntries(context.Background(), srcB, dst))

	// The union of both prefixes.
	for _, rel := range []string{"bin/a", "bin/b", "README"} {
		_, err := os.Stat(filepath.Join(dst, rel))
		assert.NoError(t, err, rel)
	}
}

func TestCopyPrefixEntriesEmptySource(t *testing.T) {
	assert.NoError(t, copyPrefixEntries(context.Background(), t.TempDir(), t.TempDir()))
}
