// Copyright 2025 Brioche Project Contributors
//
// SPDX-License-Identifier: MIT

package state

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/brioche-dev/brioche-legacy/internal/metrics"
	"github.com/brioche-dev/brioche-legacy/internal/ui"
	"github.com/brioche-dev/brioche-legacy/pkg/hash"
)

// ContentRequest names a downloadable blob. When ExpectedHash is nil the
// lockfile is consulted for a pinned hash before going to the network.
type ContentRequest struct {
	URL          string
	ExpectedHash *hash.Hash
}

// ContentFile is an open read handle on a verified blob.
type ContentFile struct {
	File        *os.File
	ContentHash hash.Hash
}

// Clone opens a fresh file descriptor on the same blob.
func (cf *ContentFile) Clone() (*ContentFile, error) {
	f, err := os.Open(cf.File.Name())
	if err != nil {
		return nil, fmt.Errorf("clone content file %s: %w", cf.File.Name(), err)
	}
	return &ContentFile{File: f, ContentHash: cf.ContentHash}, nil
}

// Close releases the underlying file descriptor.
func (cf *ContentFile) Close() error {
	return cf.File.Close()
}

// Download fetches a blob, serving from downloads/{hash} when the content
// hash is already pinned and cached. Fresh downloads stream into a temp
// file while hashing, verify against the expected hash if one is known, and
// promote into the store via rename.
func (st *State) Download(ctx context.Context, req ContentRequest) (*ContentFile, error) {
	expected := req.ExpectedHash
	if expected == nil {
		if h, ok := st.Lockfile.RequestHash(req.URL); ok {
			expected = &h
		}
	}

	if expected != nil {
		cachedPath := filepath.Join(st.downloadsDir, expected.PathComponent())
		if f, err := os.Open(cachedPath); err == nil {
			slog.Debug("content.download_cached", "url", req.URL, "path", cachedPath)
			metrics.DownloadCacheHitsTotal.Inc()
			return &ContentFile{File: f, ContentHash: *expected}, nil
		}
	}

	tempPath := filepath.Join(st.tempDownloadsDir, uuid.NewString())
	temp, err := os.OpenFile(tempPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create temp download file: %w", err)
	}

	downloaded, err := st.fetch(ctx, req.URL, temp)
	if err != nil {
		temp.Close()
		return nil, err
	}

	if expected != nil && *expected != downloaded {
		temp.Close()
		return nil, fmt.Errorf(
			"hash mismatch for %s (expected %s, got %s)",
			req.URL, expected.Hex(), downloaded.Hex(),
		)
	}

	st.Lockfile.SetRequestHash(req.URL, downloaded)

	finalPath := filepath.Join(st.downloadsDir, downloaded.PathComponent())
	if err := os.Rename(tempPath, finalPath); err != nil {
		// The temp file still holds verified content; keep serving it.
		ui.Warnf("warning: could not promote download %s: %v", finalPath, err)
		if _, err := temp.Seek(0, io.SeekStart); err != nil {
			temp.Close()
			return nil, fmt.Errorf("rewind downloaded file: %w", err)
		}
		return &ContentFile{File: temp, ContentHash: downloaded}, nil
	}
	ui.Infof("Downloaded file %s", finalPath)

	temp.Close()
	f, err := os.Open(finalPath)
	if err != nil {
		return nil, fmt.Errorf("reopen downloaded file %s: %w", finalPath, err)
	}
	return &ContentFile{File: f, ContentHash: downloaded}, nil
}

// fetch streams the response body for url into dst while hashing it.
func (st *State) fetch(ctx context.Context, url string, dst *os.File) (hash.Hash, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return hash.Hash{}, fmt.Errorf("build request for %s: %w", url, err)
	}

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return hash.Hash{}, fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return hash.Hash{}, fmt.Errorf("download %s: unexpected status %s", url, resp.Status)
	}

	digest := sha256.New()
	out := io.MultiWriter(dst, digest)
	if bar := downloadBar(resp.ContentLength, url); bar != nil {
		out = io.MultiWriter(out, bar)
		defer bar.Close()
	}

	n, err := io.Copy(out, resp.Body)
	if err != nil {
		return hash.Hash{}, fmt.Errorf("stream %s: %w", url, err)
	}

	metrics.DownloadsTotal.Inc()
	metrics.DownloadBytesTotal.Add(float64(n))
	return hash.FromDigest(digest), nil
}

// downloadBar returns a progress bar on stderr, or nil when output is quiet
// or stderr is not a terminal.
func downloadBar(contentLength int64, url string) *progressbar.ProgressBar {
	if ui.Quiet() || !isatty.IsTerminal(os.Stderr.Fd()) {
		return nil
	}
	return progressbar.DefaultBytes(contentLength, filepath.Base(url))
}
