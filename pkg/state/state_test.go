// Copyright 2025 Brioche Project Contributors
//
// SPDX-License-Identifier: MIT

package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataRootEnvOverride(t *testing.T) {
	t.Setenv("BRIOCHE_DATA_DIR", "/tmp/custom-brioche")

	root, err := DataRoot("/elsewhere")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom-brioche", root)
}

func TestDataRootConfigOverride(t *testing.T) {
	t.Setenv("BRIOCHE_DATA_DIR", "")

	root, err := DataRoot("/from-config")
	require.NoError(t, err)
	assert.Equal(t, "/from-config", root)
}

func TestDataRootXDGDefault(t *testing.T) {
	t.Setenv("BRIOCHE_DATA_DIR", "")
	t.Setenv("XDG_DATA_HOME", "/xdg/data")

	root, err := DataRoot("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/xdg/data", "brioche"), root)
}

func TestDataRootHomeDefault(t *testing.T) {
	home := t.TempDir()
	t.Setenv("BRIOCHE_DATA_DIR", "")
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("HOME", home)

	root, err := DataRoot("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".local", "share", "brioche"), root)
}

func TestNewCreatesLayout(t *testing.T) {
	dataDir := t.TempDir()

	st, err := New(dataDir)
	require.NoError(t, err)

	for _, rel := range []string{
		"downloads",
		"downloads/_temp",
		"checkouts",
		"checkouts/_temp",
		"unpack",
		"recipes",
	} {
		info, err := os.Stat(filepath.Join(dataDir, rel))
		require.NoError(t, err, rel)
		assert.True(t, info.IsDir(), rel)
	}

	assert.Equal(t, filepath.Join(dataDir, "lockfile.json"), st.Lockfile.Path())
}

func TestNewTempWorkDir(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)

	dir1, err := st.NewTempWorkDir()
	require.NoError(t, err)
	dir2, err := st.NewTempWorkDir()
	require.NoError(t, err)

	assert.NotEqual(t, dir1, dir2)
	info, err := os.Stat(dir1)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
