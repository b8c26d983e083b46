// Copyright 2025 Brioche Project Contributors
//
// SPDX-License-Identifier: MIT

// Package bake drives recipe builds: dependency-first recursion, input
// staging, sandbox spawn, script delivery over stdin, live output relay,
// and promotion of the result into the content store.
package bake

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brioche-dev/brioche-legacy/internal/metrics"
	"github.com/brioche-dev/brioche-legacy/internal/ui"
	"github.com/brioche-dev/brioche-legacy/pkg/bootstrap"
	"github.com/brioche-dev/brioche-legacy/pkg/hash"
	"github.com/brioche-dev/brioche-legacy/pkg/lockfile"
	"github.com/brioche-dev/brioche-legacy/pkg/recipe"
	"github.com/brioche-dev/brioche-legacy/pkg/state"
)

// BakedRecipe is a recipe whose output tree is promoted in the store.
type BakedRecipe struct {
	Ref        hash.Hash
	PrefixPath string
}

// Baker builds resolved recipes against one content store.
type Baker struct {
	State      *state.State
	Set        *recipe.ResolvedSet
	EnvOptions bootstrap.Options

	// Stdout and Stderr receive the relayed build output. They default to
	// the process's own streams.
	Stdout io.Writer
	Stderr io.Writer
}

func (b *Baker) stdout() io.Writer {
	if b.Stdout != nil {
		return b.Stdout
	}
	return os.Stdout
}

func (b *Baker) stderr() io.Writer {
	if b.Stderr != nil {
		return b.Stderr
	}
	return os.Stderr
}

// GetBakedRecipe returns the promoted prefix for ref, building it (and its
// dependencies, depth-first) if the store does not have it yet.
func (b *Baker) GetBakedRecipe(ctx context.Context, ref hash.Hash) (*BakedRecipe, error) {
	rcp := b.Set.Get(ref)

	if prefixPath, ok := b.State.GetRecipeOutput(ref); ok {
		ui.Infof("Recipe %s %s already baked", rcp.Name, rcp.Version)
		metrics.RecipeCacheHitsTotal.Inc()
		return &BakedRecipe{Ref: ref, PrefixPath: prefixPath}, nil
	}

	env, err := bootstrap.New(ctx, b.State, b.EnvOptions)
	if err != nil {
		return nil, fmt.Errorf("stage bootstrap environment for recipe %s: %w", rcp.Name, err)
	}
	recipePrefix := env.RecipePrefixPath()

	// Resolution usually added pins; checkpoint them before building.
	if err := b.PersistLockfile(); err != nil {
		return nil, err
	}

	for _, depRef := range rcp.Dependencies {
		dep, err := b.GetBakedRecipe(ctx, depRef)
		if err != nil {
			return nil, err
		}
		if err := copyPrefixEntries(ctx, dep.PrefixPath, recipePrefix.HostInputPath); err != nil {
			return nil, fmt.Errorf("copy dependency %s into recipe %s: %w", depRef.Hex(), rcp.Name, err)
		}
	}

	if err := b.stageSource(ctx, rcp, env); err != nil {
		return nil, fmt.Errorf("stage source of recipe %s: %w", rcp.Name, err)
	}

	linesStdout, linesStderr, err := b.runBuild(rcp, env, recipePrefix)
	if err != nil {
		return nil, fmt.Errorf("build recipe %s %s: %w", rcp.Name, rcp.Version, err)
	}

	b.State.Lockfile.SetRecipeAux(ref, lockfile.RecipeAux{
		LinesStdout: linesStdout,
		LinesStderr: linesStderr,
	})

	prefixPath, err := b.State.SaveRecipeOutput(ctx, ref, recipePrefix.HostOutputPath)
	if err != nil {
		return nil, fmt.Errorf("promote output of recipe %s: %w", rcp.Name, err)
	}

	if err := b.PersistLockfile(); err != nil {
		return nil, err
	}

	metrics.RecipesBakedTotal.Inc()
	return &BakedRecipe{Ref: ref, PrefixPath: prefixPath}, nil
}

// stageSource materializes the recipe's pinned source into the sandbox's
// source directory.
func (b *Baker) stageSource(ctx context.Context, rcp *recipe.ResolvedRecipe, env *bootstrap.BootstrapEnv) error {
	source := b.Set.GetSource(rcp.Source)
	switch {
	case source.GitCheckout != nil:
		return runCP(ctx, []string{source.GitCheckout.Path}, env.HostSourcePath())

	case source.ContentFile != nil:
		contentFile, err := source.ContentFile.Clone()
		if err != nil {
			return err
		}
		defer contentFile.Close()
		return b.State.UnpackTo(ctx, contentFile, env.HostSourcePath())

	default:
		return fmt.Errorf("source %s was never materialized", rcp.Source)
	}
}

// runBuild spawns the sandbox and runs the four joined activities: feed the
// script over stdin, relay stdout and stderr line by line, and wait on the
// child.
func (b *Baker) runBuild(rcp *recipe.ResolvedRecipe, env *bootstrap.BootstrapEnv, prefix bootstrap.RecipePrefix) (linesStdout, linesStderr uint64, err error) {
	envVars := map[string]string{
		"BRIOCHE_PREFIX":           prefix.ContainerPath,
		"BRIOCHE_BOOTSTRAP_TARGET": bootstrap.BootstrapTarget(),
	}
	for k, v := range rcp.Build.EnvVars {
		envVars[k] = v
	}

	command := &bootstrap.Command{
		Program: "/bin/sh",
		Env:     envVars,
		Dir:     env.ContainerSourcePath(),
	}

	slog.Debug("bake.spawn", "recipe", rcp.Name, "work_dir", env.WorkDir())
	started := time.Now()
	child, err := env.Spawn(command)
	if err != nil {
		return 0, 0, err
	}

	childStdin := child.TakeStdin()
	childStdout := child.TakeStdout()
	childStderr := child.TakeStderr()

	var group errgroup.Group
	group.Go(func() error {
		if childStdin == nil {
			return nil
		}
		defer childStdin.Close()
		if _, err := io.Copy(childStdin, strings.NewReader(rcp.Build.Script)); err != nil {
			return fmt.Errorf("write build script: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		if childStdout == nil {
			return nil
		}
		n, err := relayLines(b.stdout(), childStdout)
		linesStdout = n
		if err != nil {
			return fmt.Errorf("relay stdout: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		if childStderr == nil {
			return nil
		}
		n, err := relayLines(b.stderr(), childStderr)
		linesStderr = n
		if err != nil {
			return fmt.Errorf("relay stderr: %w", err)
		}
		return nil
	})
	group.Go(child.Wait)

	err = group.Wait()
	metrics.SandboxSecondsTotal.Add(time.Since(started).Seconds())
	if err != nil {
		return 0, 0, err
	}
	return linesStdout, linesStderr, nil
}

// PersistLockfile writes the lockfile if dirty and reports either way.
func (b *Baker) PersistLockfile() error {
	wrote, err := b.State.Lockfile.Persist()
	if err != nil {
		return err
	}
	if wrote {
		metrics.LockfileWritesTotal.Inc()
		ui.Infof("Updated lockfile")
	} else {
		ui.Infof("Lockfile already up to date")
	}
	return nil
}

// copyPrefixEntries copies every top-level entry of srcDir into dstDir with
// cp -a, preserving permissions and never dereferencing links. Entries from
// multiple dependencies merge into one prefix tree.
func copyPrefixEntries(ctx context.Context, srcDir, dstDir string) error {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return fmt.Errorf("read prefix %s: %w", srcDir, err)
	}
	if len(entries) == 0 {
		return nil
	}

	sources := make([]string, 0, len(entries))
	for _, entry := range entries {
		sources = append(sources, filepath.Join(srcDir, entry.Name()))
	}
	return runCP(ctx, sources, dstDir)
}

// runCP invokes cp -a -r with the given sources into dst.
func runCP(ctx context.Context, sources []string, dst string) error {
	args := append([]string{"-a", "-r"}, sources...)
	args = append(args, dst)

	cmd := exec.CommandContext(ctx, "cp", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("cp into %s: %s", dst, msg)
		}
		return fmt.Errorf("cp into %s: %w", dst, err)
	}
	return nil
}

// relayLines copies newline-delimited output from src to dst, counting
// lines. A final unterminated line still counts and is terminated on
// output.
func relayLines(dst io.Writer, src io.Reader) (uint64, error) {
	reader := bufio.NewReader(src)
	var lines uint64
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			lines++
			line = bytes.TrimSuffix(line, []byte{'\n'})
			if _, werr := fmt.Fprintf(dst, "%s\n", line); werr != nil {
				return lines, werr
			}
		}
		if err == io.EOF {
			return lines, nil
		}
		if err != nil {
			return lines, err
		}
	}
}
