// Package main implements the synchronization loop.
//
// This file contains the Synchronizer type which orchestrates one run:
//
//	collect → bridge → resolve → align → score → store
//
// The Synchronizer runs continuously via Run(), executing Tick() at regular
// intervals. Each tick replaces the stored snapshot of the site.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/HatiCode/tempalign/cmd/syncd/config"
	"github.com/HatiCode/tempalign/cmd/syncd/metrics"
	"github.com/HatiCode/tempalign/pkg/adapters"
	"github.com/HatiCode/tempalign/pkg/align"
	"github.com/HatiCode/tempalign/pkg/storage"
)

// Source binds a declared stream to the adapter that collects it.
type Source struct {
	Stream  config.StreamConfig
	Adapter adapters.Adapter
}

// Synchronizer orchestrates the loop: collect → align → store.
type Synchronizer struct {
	site    string
	mode    align.Mode
	engine  *align.Engine
	sources []Source
	store   storage.Store
	window  time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates a Synchronizer.
func New(
	site string,
	mode align.Mode,
	engine *align.Engine,
	sources []Source,
	store storage.Store,
	window time.Duration,
	logger *slog.Logger,
	metrics *metrics.Metrics,
) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		site:    site,
		mode:    mode,
		engine:  engine,
		sources: sources,
		store:   store,
		window:  window,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Run executes the loop at regular intervals.
// Blocks until context is canceled.
func (s *Synchronizer) Run(ctx context.Context, interval time.Duration) error {
	s.logger.Info("starting synchronization loop", "site", s.site, "interval", interval, "window", s.window)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := s.Tick(ctx); err != nil {
		s.logger.Error("initial synchronization tick failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("synchronization loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.logger.Error("synchronization tick failed", "error", err)
			}
		}
	}
}

// collected is the outcome of one source in one tick.
type collected struct {
	stream   align.Stream
	err      error
	reason   string
	duration time.Duration
}

// Tick performs one synchronization run.
// Exported for testing purposes.
func (s *Synchronizer) Tick(ctx context.Context) error {
	start := s.now()
	s.logger.Debug("starting synchronization tick", "site", s.site)

	results := s.collectAll(ctx)

	streams := make(map[string]align.Stream, len(s.sources))
	var required, dropped []string
	for i, src := range s.sources {
		res := results[i]
		if res.err != nil {
			s.recordError(res.reason)
			if src.Stream.Required {
				return fmt.Errorf("required stream %s: %w", src.Stream.Name, res.err)
			}
			s.logger.Warn("dropping optional stream",
				"stream", src.Stream.Name,
				"reason", res.reason,
				"error", res.err,
			)
			dropped = append(dropped, src.Stream.Name)
			continue
		}
		streams[src.Stream.Name] = res.stream
		if src.Stream.Required {
			required = append(required, src.Stream.Name)
		}
	}

	req := align.Request{Streams: streams, Required: required, Mode: s.mode}
	if s.mode == align.ModeGrid {
		req.Window = &align.Window{
			Start: unixSeconds(start.Add(-s.window)),
			End:   unixSeconds(start),
		}
	}

	alignStart := time.Now()
	out, err := s.engine.Run(req)
	if err != nil {
		s.recordError("align_failed")
		return fmt.Errorf("align: %w", err)
	}
	alignDuration := time.Since(alignStart)

	if s.metrics != nil {
		s.metrics.RecordAlign(alignDuration.Seconds())
		s.metrics.ObserveOutcome(out, len(dropped))
	}

	snapshot := storage.NewSnapshot(s.site, start, out)
	snapshot.Dropped = dropped
	if err := s.store.Put(ctx, snapshot); err != nil {
		if s.metrics != nil {
			s.metrics.RecordError("store", "put_failed")
		}
		return fmt.Errorf("store: %w", err)
	}

	logArgs := []any{
		"site", s.site,
		"run_id", snapshot.RunID,
		"mode", out.Table.Mode,
		"rows", out.Coverage.Rows,
		"streams", len(out.Table.Streams),
		"dropped", len(dropped),
		"sync_quality", out.Coverage.SyncQuality,
		"retention_pct", out.Coverage.OverallRetentionPct,
		"align_ms", alignDuration.Milliseconds(),
		"total_ms", s.now().Sub(start).Milliseconds(),
	}
	if !out.Validation.Valid {
		s.logger.Warn("synchronized table failed validation", append(logArgs, "violations", out.Validation.Violations)...)
		return nil
	}
	s.logger.Info("synchronization tick complete", append(logArgs, "warnings", len(out.Validation.Warnings))...)
	return nil
}

// collectAll collects every source concurrently. Results are indexed like
// s.sources.
func (s *Synchronizer) collectAll(ctx context.Context) []collected {
	results := make([]collected, len(s.sources))
	var wg sync.WaitGroup
	for i, src := range s.sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.collect(ctx, src)
		}()
	}
	wg.Wait()

	if s.metrics != nil {
		for i, src := range s.sources {
			if results[i].duration > 0 {
				s.metrics.RecordCollect(src.Stream.Name, src.Adapter.Name(), results[i].duration.Seconds())
			}
		}
	}
	return results
}

// collect fetches one stream and resolves it into samples.
func (s *Synchronizer) collect(ctx context.Context, src Source) collected {
	start := time.Now()
	df, err := src.Adapter.Collect(ctx, int(s.window.Seconds()))
	if err != nil {
		return collected{err: err, reason: "collect_failed"}
	}
	duration := time.Since(start)

	s.logger.Debug("collected stream",
		"stream", src.Stream.Name,
		"adapter", src.Adapter.Name(),
		"duration_ms", duration.Milliseconds(),
	)

	// An empty collection still contributes an all-MISSING column.
	if df == nil || len(df.Rows) == 0 {
		return collected{
			stream:   align.Stream{Name: src.Stream.Name, Role: src.Stream.Role},
			duration: duration,
		}
	}

	raw, err := adapters.ToRawTable(df, src.Stream.Name, src.Stream.Role)
	if err != nil {
		return collected{err: err, reason: "bridge_failed", duration: duration}
	}
	stream, err := s.engine.Resolve(raw, align.ColumnSpec{ValueColumn: src.Stream.ValueColumn})
	if err != nil {
		reason := "resolve_failed"
		if errors.Is(err, align.ErrSchema) {
			reason = "schema"
		}
		return collected{err: err, reason: reason, duration: duration}
	}
	return collected{stream: stream, duration: duration}
}

func (s *Synchronizer) recordError(reason string) {
	if s.metrics == nil {
		return
	}
	component := "adapter"
	if reason == "align_failed" {
		component = "align"
	}
	s.metrics.RecordError(component, reason)
}

func unixSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}
