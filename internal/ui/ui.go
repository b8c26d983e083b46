// Copyright 2025 Brioche Project Contributors
//
// SPDX-License-Identifier: MIT

// Package ui centralizes user-facing terminal output: progress lines go to
// stdout, warnings and errors to stderr. Color is one switch for both
// streams and is off when stdout is not a terminal.
package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var (
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)

	quiet bool
)

// InitColors configures color output. Color is disabled when noColor is set,
// when NO_COLOR is present in the environment, or when stdout is not a
// terminal.
func InitColors(noColor bool) {
	if noColor || os.Getenv("NO_COLOR") != "" || !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
}

// SetQuiet suppresses informational output.
func SetQuiet(q bool) {
	quiet = q
}

// Quiet reports whether informational output is suppressed.
func Quiet() bool {
	return quiet
}

// Infof prints a progress line to stdout.
func Infof(format string, args ...any) {
	if quiet {
		return
	}
	fmt.Fprintf(os.Stdout, format+"\n", args...)
}

// Successf prints a green progress line to stdout.
func Successf(format string, args ...any) {
	if quiet {
		return
	}
	successColor.Fprintf(os.Stdout, format+"\n", args...)
}

// Warnf prints a yellow warning to stderr. Warnings are not suppressed by
// quiet mode.
func Warnf(format string, args ...any) {
	warnColor.Fprintf(os.Stderr, format+"\n", args...)
}

// Errorf prints a red error line to stderr.
func Errorf(format string, args ...any) {
	errorColor.Fprintf(os.Stderr, format+"\n", args...)
}
