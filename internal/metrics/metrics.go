// Copyright 2025 Brioche Project Contributors
//
// SPDX-License-Identifier: MIT

// Package metrics exposes process-local counters for one build invocation.
// The counters register with the default Prometheus registry; Summary
// gathers them at the end of a run for the --stats flag.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DownloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brioche_downloads_total",
		Help: "Number of HTTP downloads performed.",
	})
	DownloadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brioche_download_bytes_total",
		Help: "Bytes fetched over HTTP.",
	})
	DownloadCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brioche_download_cache_hits_total",
		Help: "Downloads served from the content store.",
	})
	GitCheckoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brioche_git_checkouts_total",
		Help: "Git clones performed.",
	})
	GitCheckoutCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brioche_git_checkout_cache_hits_total",
		Help: "Git checkouts served from the content store.",
	})
	UnpacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brioche_unpacks_total",
		Help: "Archive extractions performed.",
	})
	RecipesBakedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brioche_recipes_baked_total",
		Help: "Recipes built in a sandbox.",
	})
	RecipeCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brioche_recipe_cache_hits_total",
		Help: "Recipes served from promoted prefixes.",
	})
	SandboxSecondsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brioche_sandbox_seconds_total",
		Help: "Wall-clock seconds spent waiting on sandboxed builds.",
	})
	LockfileWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brioche_lockfile_writes_total",
		Help: "Times the lockfile was rewritten.",
	})
)

// Summary writes the current counter values, sorted by metric name.
func Summary(w io.Writer) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	type row struct {
		name  string
		value float64
	}
	var rows []row
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "brioche_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				rows = append(rows, row{name: mf.GetName(), value: c.GetValue()})
			}
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].name < rows[j].name })

	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "%-42s %g\n", r.name, r.value); err != nil {
			return err
		}
	}
	return nil
}
