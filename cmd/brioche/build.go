// Copyright 2025 Brioche Project Contributors
//
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/brioche-dev/brioche-legacy/internal/metrics"
	"github.com/brioche-dev/brioche-legacy/pkg/bake"
	"github.com/brioche-dev/brioche-legacy/pkg/bootstrap"
	"github.com/brioche-dev/brioche-legacy/pkg/recipe"
	"github.com/brioche-dev/brioche-legacy/pkg/state"
)

// runBuild resolves and bakes a recipe with its dependencies.
func runBuild(args []string, globals GlobalFlags) {
	flags := flag.NewFlagSet("build", flag.ExitOnError)
	repoDir := flags.String("repo", "", "Recipe repository directory (required)")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: brioche build --repo <repo_dir> <recipe_name>

Builds the named recipe from the repository: resolves its sources and
dependencies, bakes each dependency first, runs the build script in a
sandbox, and promotes the output into the content store.
`)
	}
	if err := flags.Parse(args); err != nil {
		os.Exit(1)
	}
	if *repoDir == "" || flags.NArg() != 1 {
		flags.Usage()
		os.Exit(1)
	}
	recipeName := flags.Arg(0)

	if err := build(context.Background(), *repoDir, recipeName, globals); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if globals.Stats {
		if err := metrics.Summary(os.Stderr); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
	}
}

func build(ctx context.Context, repoDir, recipeName string, globals GlobalFlags) error {
	cfg, err := LoadConfig(globals.ConfigPath)
	if err != nil {
		return err
	}

	dataDir, err := state.DataRoot(cfg.DataDir)
	if err != nil {
		return err
	}
	st, err := state.New(dataDir)
	if err != nil {
		return err
	}

	set := recipe.NewResolvedSet()
	ref, err := recipe.Resolve(ctx, st, repoDir, recipeName, set)
	if err != nil {
		return err
	}

	baker := &bake.Baker{
		State: st,
		Set:   set,
		EnvOptions: bootstrap.Options{
			BaseRootURL:  cfg.BaseRoot.URL,
			BaseRootHash: cfg.BaseRoot.Hash,
		},
	}
	if _, err := baker.GetBakedRecipe(ctx, ref); err != nil {
		return err
	}

	// A fully cached run never reaches the baker's persist points, but
	// resolution may still have touched the lock.
	return baker.PersistLockfile()
}
