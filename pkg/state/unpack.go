// Copyright 2025 Brioche Project Contributors
//
// SPDX-License-Identifier: MIT

package state

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/brioche-dev/brioche-legacy/internal/metrics"
)

// UnpackMode selects caching behavior for Unpack.
type UnpackMode int

const (
	// UnpackReusable caches the extracted tree under
	// unpack/{content_hash}/unpacked so it is shared across builds.
	UnpackReusable UnpackMode = iota
)

// Unpack materializes the archive at a deterministic path keyed by its
// content hash. An existing extraction is returned as-is.
func (st *State) Unpack(ctx context.Context, cf *ContentFile, mode UnpackMode) (string, error) {
	_ = mode // only UnpackReusable exists

	entryDir := filepath.Join(st.unpackDir, cf.ContentHash.PathComponent())
	unpackedPath := filepath.Join(entryDir, "unpacked")
	if info, err := os.Stat(unpackedPath); err == nil && info.IsDir() {
		slog.Debug("content.unpack_cached", "path", unpackedPath)
		return unpackedPath, nil
	}

	tempPath := filepath.Join(entryDir, "temp", uuid.NewString())
	if err := os.MkdirAll(tempPath, 0o755); err != nil {
		return "", fmt.Errorf("create unpack temp dir: %w", err)
	}

	if err := untar(ctx, cf.File, tempPath); err != nil {
		return "", err
	}

	// A failed promotion would leave the extraction at a path no later
	// cache lookup can find, so it is fatal rather than best-effort.
	if err := os.Rename(tempPath, unpackedPath); err != nil {
		return "", fmt.Errorf("promote unpacked archive %s: %w", unpackedPath, err)
	}
	return unpackedPath, nil
}

// UnpackTo extracts the archive into target unconditionally, without
// touching the unpack cache.
func (st *State) UnpackTo(ctx context.Context, cf *ContentFile, target string) error {
	return untar(ctx, cf.File, target)
}

// untar pipes the archive bytes to tar for extraction into target.
func untar(ctx context.Context, archive io.Reader, target string) error {
	cmd := exec.CommandContext(ctx, "tar", "-x", "-z", "-f", "-", "-C", target)
	cmd.Stdin = archive
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("tar extract into %s: %s", target, msg)
		}
		return fmt.Errorf("tar extract into %s: %w", target, err)
	}

	metrics.UnpacksTotal.Inc()
	return nil
}
