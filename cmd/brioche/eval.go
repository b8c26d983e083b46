// Copyright 2025 Brioche Project Contributors
//
// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/brioche-dev/brioche-legacy/pkg/recipe"
)

// evalOutput is the JSON rendering of an evaluated recipe definition.
type evalOutput struct {
	Name         string             `json:"name"`
	Version      string             `json:"version"`
	Source       evalSource         `json:"source"`
	Dependencies map[string]string  `json:"dependencies"`
	Build        recipe.BuildScript `json:"build"`
}

type evalSource struct {
	Git     string `json:"git,omitempty"`
	Ref     string `json:"ref,omitempty"`
	Tarball string `json:"tarball,omitempty"`
}

// runEval evaluates a recipe script and prints its definition without
// building anything.
func runEval(args []string, globals GlobalFlags) {
	flags := flag.NewFlagSet("eval", flag.ExitOnError)
	repoDir := flags.String("repo", "", "Recipe repository directory (required)")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: brioche eval --repo <repo_dir> <recipe_name>

Evaluates the recipe's brioche.js and prints the resulting definition as
JSON. Useful for debugging recipes without fetching or building.
`)
	}
	if err := flags.Parse(args); err != nil {
		os.Exit(1)
	}
	if *repoDir == "" || flags.NArg() != 1 {
		flags.Usage()
		os.Exit(1)
	}

	def, err := recipe.EvalRecipe(filepath.Join(*repoDir, flags.Arg(0)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	out := evalOutput{
		Name:         def.Name,
		Version:      def.Version,
		Dependencies: def.Dependencies,
		Build:        def.Build,
	}
	switch {
	case def.Source.Git != nil:
		out.Source.Git = def.Source.Git.Git
		out.Source.Ref = def.Source.Git.Ref
	case def.Source.Tarball != nil:
		out.Source.Tarball = def.Source.Tarball.Tarball
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(&out); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
