// Package router configures the HTTP routes of the synchronization daemon.
//
// Routes configured:
//   - GET /healthz - Health check endpoint (returns 200 OK)
//   - GET /metrics - Prometheus metrics endpoint
//   - GET /sync/current?site=<name> - Latest synchronized snapshot of a site
//   - POST /align - Ad-hoc alignment of raw tables supplied in the body
//
// Snapshots older than the stale threshold carry an X-Tempalign-Stale
// header.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HatiCode/tempalign/pkg/align"
	"github.com/HatiCode/tempalign/pkg/api"
	"github.com/HatiCode/tempalign/pkg/httpx"
	"github.com/HatiCode/tempalign/pkg/storage"
)

// StaleHeader marks snapshots older than the stale threshold.
const StaleHeader = "X-Tempalign-Stale"

// DefaultMaxBodyBytes bounds POST /align bodies when Options leaves it unset.
const DefaultMaxBodyBytes = 32 << 20

// Options carries what the handlers need.
type Options struct {
	Store        storage.Store
	Align        align.Config
	StaleAfter   time.Duration
	MaxBodyBytes int64
	Gatherer     prometheus.Gatherer
	Logger       *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// SetupRoutes configures the daemon's HTTP endpoints.
func SetupRoutes(opts Options) *http.ServeMux {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", httpx.HealthHandler())
	mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /sync/current", handleGetSnapshot(opts))
	mux.HandleFunc("POST /align", handleAlign(opts))
	return mux
}

// handleGetSnapshot returns a handler for GET /sync/current?site=<name>.
func handleGetSnapshot(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		site := r.URL.Query().Get("site")
		if site == "" {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "site parameter required")
			return
		}
		if err := storage.ValidateSite(site); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		snapshot, found, err := opts.Store.GetLatest(ctx, site)
		if err != nil {
			opts.Logger.Error("failed to get snapshot", "site", site, "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if !found {
			httpx.WriteErrorMessage(w, http.StatusNotFound, fmt.Sprintf("snapshot not found for site %q", site))
			return
		}

		if opts.Now().Sub(snapshot.GeneratedAt) > opts.StaleAfter {
			w.Header().Set(StaleHeader, "true")
		}

		tbl := snapshot.Table
		if tbl == nil {
			tbl = &align.Table{Mode: snapshot.Mode}
		}
		table := api.FromOutcome(&align.Outcome{
			Table:      tbl,
			Coverage:   snapshot.Coverage,
			Validation: snapshot.Validation,
		})
		resp := map[string]any{
			"site":        snapshot.Site,
			"runId":       snapshot.RunID,
			"generatedAt": snapshot.GeneratedAt.Format(time.RFC3339),
			"mode":        snapshot.Mode,
			"columns":     table.Columns,
			"rows":        table.Rows,
			"coverage":    table.Coverage,
			"validation":  table.Validation,
			"dropped":     snapshot.Dropped,
		}
		if err := httpx.WriteJSON(w, http.StatusOK, resp); err != nil {
			opts.Logger.Error("failed to write JSON response", "error", err)
		}
	}
}

// handleAlign returns a handler for POST /align.
func handleAlign(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.AlignRequest
		if err := httpx.DecodeJSON(r, opts.MaxBodyBytes, &req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}

		start := time.Now()
		resp, err := api.Align(opts.Align, req)
		if err != nil {
			httpx.WriteAlignError(w, opts.Logger, err)
			return
		}
		opts.Logger.Debug("ad-hoc alignment complete",
			"tables", len(req.Tables),
			"rows", len(resp.Rows),
			"sync_quality", resp.Coverage.SyncQuality,
			"duration_ms", time.Since(start).Milliseconds(),
		)

		if err := httpx.WriteJSON(w, http.StatusOK, resp); err != nil {
			opts.Logger.Error("failed to write JSON response", "error", err)
		}
	}
}
