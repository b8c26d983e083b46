// Copyright 2025 Brioche Project Contributors
//
// SPDX-License-Identifier: MIT

// Package main implements the brioche CLI for building packages from
// declarative recipes.
//
// Usage:
//
//	brioche build --repo <dir> <recipe>   Build a recipe and its dependencies
//	brioche eval --repo <dir> <recipe>    Evaluate a recipe and print it as JSON
package main

import (
	"fmt"
	"log/slog"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/brioche-dev/brioche-legacy/internal/ui"
	"github.com/brioche-dev/brioche-legacy/pkg/bootstrap"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "unknown"
)

// GlobalFlags holds the global CLI flags that apply to all commands.
type GlobalFlags struct {
	ConfigPath string
	Quiet      bool
	Verbose    int
	Stats      bool
}

func main() {
	// The sandbox helper re-exec must not parse flags: its argument is an
	// opaque JSON spec.
	if len(os.Args) >= 2 && os.Args[1] == bootstrap.SandboxExecCommand {
		runSandboxExec(os.Args[2:])
		return
	}

	var (
		showVersion = flag.BoolP("version", "V", false, "Show version and exit")
		configPath  = flag.StringP("config", "c", "", "Path to config.yaml (default: ~/.config/brioche/config.yaml)")
		noColor     = flag.Bool("no-color", false, "Disable color output")
		verbose     = flag.CountP("verbose", "v", "Increase verbosity (-v for debug logging)")
		quiet       = flag.BoolP("quiet", "q", false, "Suppress progress output")
		stats       = flag.Bool("stats", false, "Print build statistics on exit")
	)

	// Stop parsing at the first non-flag argument (the command name) so
	// subcommand flags like "build --repo" reach the subcommand handlers.
	flag.SetInterspersed(false)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `brioche - source-based package builder

Builds reproducible, content-addressed package outputs from declarative
recipes. A recipe names a source (git ref or tarball), its dependencies,
and a shell build script; brioche fetches the inputs, runs the script in
an isolated sandbox, and stores the output under the recipe's content
hash.

Usage:
  brioche <command> [options]

Commands:
  build         Build a recipe and its dependencies
  eval          Evaluate a recipe and print its definition as JSON

Global Options:
  --no-color        Disable color output (respects NO_COLOR env var)
  -v, --verbose     Increase verbosity (debug logging to stderr)
  -q, --quiet       Suppress progress output
  --stats           Print build statistics on exit
  -c, --config      Path to config.yaml
  -V, --version     Show version and exit

Examples:
  brioche build --repo ./recipes hello
  brioche eval --repo ./recipes hello

Data Storage:
  Downloads, checkouts, and build outputs are cached in the data
  directory (default: ~/.local/share/brioche, override with
  BRIOCHE_DATA_DIR).

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("brioche version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		os.Exit(0)
	}

	if os.Getenv("NO_COLOR") != "" {
		*noColor = true
	}
	if *quiet && *verbose > 0 {
		fmt.Fprintf(os.Stderr, "Error: cannot use --quiet and --verbose together\n")
		os.Exit(1)
	}

	globals := GlobalFlags{
		ConfigPath: *configPath,
		Quiet:      *quiet,
		Verbose:    *verbose,
		Stats:      *stats,
	}

	ui.InitColors(*noColor)
	ui.SetQuiet(*quiet)
	initLogging(*verbose)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "build":
		runBuild(cmdArgs, globals)
	case "eval":
		runEval(cmdArgs, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

// initLogging routes slog to stderr, enabling debug output at -v.
func initLogging(verbose int) {
	level := slog.LevelWarn
	if verbose >= 1 {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// runSandboxExec hands control to the in-namespace sandbox helper.
func runSandboxExec(args []string) {
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "%s: expected exactly one spec argument\n", bootstrap.SandboxExecCommand)
		os.Exit(125)
	}
	if err := bootstrap.RunSandboxExec(args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(125)
	}
}
