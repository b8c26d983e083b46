// Copyright 2025 Brioche Project Contributors
//
// SPDX-License-Identifier: MIT

// Package bootstrap stages the layered build filesystem (base root +
// per-build inputs + output upper layer) and spawns the build inside a
// user-namespaced, chrooted subprocess.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/brioche-dev/brioche-legacy/internal/ui"
	"github.com/brioche-dev/brioche-legacy/pkg/hash"
	"github.com/brioche-dev/brioche-legacy/pkg/state"
)

// baseRoot pins the minimal root filesystem image for one architecture.
type baseRoot struct {
	URL  string
	Hash string
}

// Alpine minirootfs images, pinned by content hash per architecture.
var baseRoots = map[string]baseRoot{
	"amd64": {
		URL:  "https://dl-cdn.alpinelinux.org/alpine/v3.15/releases/x86_64/alpine-minirootfs-3.15.0-x86_64.tar.gz",
		Hash: "ec7ec80a96500f13c189a6125f2dbe8600ef593b87fc4670fe959dc02db727a2",
	},
	"arm64": {
		URL:  "https://dl-cdn.alpinelinux.org/alpine/v3.15/releases/aarch64/alpine-minirootfs-3.15.0-aarch64.tar.gz",
		Hash: "1be50ae27c8463d005c4de16558d239e11a88ac6e2d8ffce7841e070aaa649ce",
	},
}

// Options overrides the pinned base root image, typically from the user
// config file. Zero values keep the built-in pinning.
type Options struct {
	BaseRootURL  string
	BaseRootHash string
}

// ChrootConfig describes the overlay mount assembled inside the sandbox's
// mount namespace before chroot.
type ChrootConfig struct {
	LowerDirs []string `json:"lower_dirs"`
	UpperDir  string   `json:"upper_dir"`
	WorkDir   string   `json:"work_dir"`
	TargetDir string   `json:"target_dir"`
}

// RecipePrefix is the dependency-prefix directory in its three coordinate
// systems: where dependencies are staged on the host, where the build's
// writes land on the host, and where the build sees it inside the chroot.
type RecipePrefix struct {
	HostInputPath  string
	HostOutputPath string
	ContainerPath  string
}

const (
	sourceRelDir = "usr/src"
	prefixRelDir = "home/brioche-dev/.local/share/brioche/prefix"
)

// BootstrapEnv is one build's staged sandbox. The scratch directories
// persist on failure for debugging and are never reused.
type BootstrapEnv struct {
	workDir    string
	inputsDir  string
	outputsDir string
	chroot     ChrootConfig
}

// New stages a fresh sandbox: scratch layer directories, the shared base
// root, the host's resolv.conf, and the source and prefix mount points.
func New(ctx context.Context, st *state.State, opts Options) (*BootstrapEnv, error) {
	workDir, err := st.NewTempWorkDir()
	if err != nil {
		return nil, err
	}

	inputsDir := filepath.Join(workDir, "layers", "inputs")
	overlayWorkDir := filepath.Join(workDir, "layers", "work-dir")
	outputsDir := filepath.Join(workDir, "layers", "outputs")
	overlayDir := filepath.Join(workDir, "overlay")
	for _, dir := range []string{inputsDir, overlayWorkDir, outputsDir, overlayDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create layer dir %s: %w", dir, err)
		}
	}

	baseRootDir, err := fetchBaseRoot(ctx, st, opts)
	if err != nil {
		return nil, fmt.Errorf("fetch base root: %w", err)
	}

	// DNS inside the sandbox resolves via the host's configuration.
	if err := os.MkdirAll(filepath.Join(inputsDir, "etc"), 0o755); err != nil {
		return nil, fmt.Errorf("create inputs/etc: %w", err)
	}
	if err := copyFile("/etc/resolv.conf", filepath.Join(inputsDir, "etc", "resolv.conf")); err != nil {
		return nil, fmt.Errorf("copy resolv.conf: %w", err)
	}

	for _, rel := range []string{sourceRelDir, prefixRelDir} {
		if err := os.MkdirAll(filepath.Join(inputsDir, rel), 0o755); err != nil {
			return nil, fmt.Errorf("create input mount point %s: %w", rel, err)
		}
	}

	return &BootstrapEnv{
		workDir:    workDir,
		inputsDir:  inputsDir,
		outputsDir: outputsDir,
		chroot: ChrootConfig{
			LowerDirs: []string{baseRootDir, inputsDir},
			UpperDir:  outputsDir,
			WorkDir:   overlayWorkDir,
			TargetDir: overlayDir,
		},
	}, nil
}

// fetchBaseRoot downloads the pinned base root image for the host
// architecture and unpacks it into the shared unpack cache.
func fetchBaseRoot(ctx context.Context, st *state.State, opts Options) (string, error) {
	root, ok := baseRoots[runtime.GOARCH]
	if !ok {
		return "", fmt.Errorf("no base root pinned for architecture %s", runtime.GOARCH)
	}
	if opts.BaseRootURL != "" {
		root.URL = opts.BaseRootURL
	}
	if opts.BaseRootHash != "" {
		root.Hash = opts.BaseRootHash
	}

	rootHash, err := hash.Parse(root.Hash)
	if err != nil {
		return "", fmt.Errorf("base root hash: %w", err)
	}

	contentFile, err := st.Download(ctx, state.ContentRequest{URL: root.URL, ExpectedHash: &rootHash})
	if err != nil {
		return "", err
	}
	defer contentFile.Close()

	unpacked, err := st.Unpack(ctx, contentFile, state.UnpackReusable)
	if err != nil {
		return "", err
	}
	ui.Infof("Unpacked base root to %s", unpacked)
	return unpacked, nil
}

// RecipePrefixPath returns the dependency-prefix directory in all three
// coordinate systems.
func (env *BootstrapEnv) RecipePrefixPath() RecipePrefix {
	return RecipePrefix{
		HostInputPath:  filepath.Join(env.inputsDir, prefixRelDir),
		HostOutputPath: filepath.Join(env.outputsDir, prefixRelDir),
		ContainerPath:  "/" + prefixRelDir,
	}
}

// HostSourcePath is where source trees are staged on the host.
func (env *BootstrapEnv) HostSourcePath() string {
	return filepath.Join(env.inputsDir, sourceRelDir)
}

// ContainerSourcePath is where the build sees its source inside the chroot.
func (env *BootstrapEnv) ContainerSourcePath() string {
	return "/" + sourceRelDir
}

// WorkDir returns the sandbox's scratch directory.
func (env *BootstrapEnv) WorkDir() string {
	return env.workDir
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
