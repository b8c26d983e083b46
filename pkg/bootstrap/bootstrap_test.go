// Copyright 2025 Brioche Project Contributors
//
// SPDX-License-Identifier: MIT

//go:build linux

package bootstrap

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testEnv(workDir string) *BootstrapEnv {
	inputsDir := filepath.Join(workDir, "layers", "inputs")
	outputsDir := filepath.Join(workDir, "layers", "outputs")
	return &BootstrapEnv{
		workDir:    workDir,
		inputsDir:  inputsDir,
		outputsDir: outputsDir,
		chroot: ChrootConfig{
			LowerDirs: []string{"/base-root", inputsDir},
			UpperDir:  outputsDir,
			WorkDir:   filepath.Join(workDir, "layers", "work-dir"),
			TargetDir: filepath.Join(workDir, "overlay"),
		},
	}
}

func TestRecipePrefixCoordinates(t *testing.T) {
	env := testEnv("/tmp/brioche/work-dir/x/work")
	prefix := env.RecipePrefixPath()

	assert.Equal(t,
		"/tmp/brioche/work-dir/x/work/layers/inputs/home/brioche-dev/.local/share/brioche/prefix",
		prefix.HostInputPath)
	assert.Equal(t,
		"/tmp/brioche/work-dir/x/work/layers/outputs/home/brioche-dev/.local/share/brioche/prefix",
		prefix.HostOutputPath)
	assert.Equal(t, "/home/brioche-dev/.local/share/brioche/prefix", prefix.ContainerPath)
}

func TestSourcePaths(t *testing.T) {
	env := testEnv("/tmp/brioche/work-dir/x/work")

	assert.Equal(t, "/tmp/brioche/work-dir/x/work/layers/inputs/usr/src", env.HostSourcePath())
	assert.Equal(t, "/usr/src", env.ContainerSourcePath())
}

func TestBootstrapTarget(t *testing.T) {
	target := BootstrapTarget()

	parts := strings.Split(target, "-")
	assert.GreaterOrEqual(t, len(parts), 3)
	assert.Equal(t, "brioche_bootstrap", parts[1])
	assert.True(t, strings.HasSuffix(target, "-linux-musl"))
}

func TestPayloadEnviron(t *testing.T) {
	environ := payloadEnviron(map[string]string{
		"BRIOCHE_PREFIX": "/home/brioche-dev/.local/share/brioche/prefix",
		"CFLAGS":         "-O2",
	})

	assert.Equal(t, []string{
		"PATH=" + sandboxPath,
		"HOME=/root",
		"BRIOCHE_PREFIX=/home/brioche-dev/.local/share/brioche/prefix",
		"CFLAGS=-O2",
	}, environ)
}

func TestPayloadEnvironEmpty(t *testing.T) {
	environ := payloadEnviron(nil)

	assert.Equal(t, []string{"PATH=" + sandboxPath, "HOME=/root"}, environ)
}

func TestBaseRootsArePinned(t *testing.T) {
	for arch, root := range baseRoots {
		assert.NotEmpty(t, root.URL, arch)
		assert.Len(t, root.Hash, 64, arch)
	}
}
