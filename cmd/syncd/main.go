// Command syncd implements the tempalign synchronization daemon.
//
// The daemon runs a continuous loop that:
//  1. Collects every declared stream of a site from its adapter
//  2. Aligns the streams into one synchronized table
//  3. Scores coverage and validates the table against the configured limits
//  4. Stores the snapshot for consumers
//  5. Exposes snapshots via HTTP API at /sync/current
//
// It also serves ad-hoc alignment of caller-supplied raw tables over HTTP
// (POST /align) and gRPC (tempalign.v1.Alignment/Align).
//
// Usage:
//
//	syncd \
//	  -streams=/etc/tempalign/plant-a.yaml \
//	  -interval=5m -window=24h \
//	  -storage=badger -badger-dir=/var/lib/tempalign
//
// Environment variables:
//
//	STREAMS_FILE     - Streams file (default: streams.yaml)
//	LISTEN           - HTTP listen address (default: :8082)
//	GRPC_LISTEN      - gRPC listen address (default: :9092)
//	STORAGE          - memory, redis or badger (default: memory)
//	INTERVAL         - Loop interval (default: 5m)
//	WINDOW           - Collection window (default: 24h)
//	PERIOD           - Reference grid period (default: 15m)
//	TOLERANCE        - Join-mode timestamp tolerance (default: 0s)
//	MIN_ROWS         - Minimum rows of a valid table (default: 10)
//	MIN_COVERAGE_PCT - Minimum per-stream coverage (default: 80)
//	LOG_LEVEL        - Logging level: debug, info, warn, error (default: info)
//	LOG_FORMAT       - Logging format: text, json (default: text)
//	TEMPALIGN_SITE   - Overrides the site of the streams file
//	TEMPALIGN_MODE   - Overrides the mode of the streams file
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/HatiCode/tempalign/cmd/syncd/config"
	"github.com/HatiCode/tempalign/cmd/syncd/grpcapi"
	"github.com/HatiCode/tempalign/cmd/syncd/logger"
	"github.com/HatiCode/tempalign/cmd/syncd/metrics"
	"github.com/HatiCode/tempalign/cmd/syncd/router"
	"github.com/HatiCode/tempalign/cmd/syncd/store"
	"github.com/HatiCode/tempalign/pkg/adapters"
	"github.com/HatiCode/tempalign/pkg/align"
	"github.com/HatiCode/tempalign/pkg/httpx"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	log := logger.New(cfg)
	slog.SetDefault(log)

	site, err := config.LoadStreams(cfg.StreamsFile)
	if err != nil {
		log.Error("invalid streams file", "path", cfg.StreamsFile, "error", err)
		os.Exit(1)
	}

	log.Info("starting tempalign syncd",
		"version", version,
		"site", site.Site,
		"mode", site.Mode,
		"streams", len(site.Streams),
		"storage", cfg.Storage,
		"tls_enabled", cfg.TLS.Enabled,
	)

	alignCfg := cfg.AlignConfig()
	engine, err := align.NewEngine(alignCfg)
	if err != nil {
		log.Error("invalid alignment configuration", "error", err)
		os.Exit(1)
	}

	sources, err := buildSources(site, cfg)
	if err != nil {
		log.Error("failed to create adapters", "error", err)
		os.Exit(1)
	}

	st, err := store.New(cfg, log)
	if err != nil {
		log.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	if closer, ok := st.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				log.Error("failed to close store", "error", err)
			}
		}()
	}

	m := metrics.New(site.Site, prometheus.DefaultRegisterer)
	syncer := New(site.Site, site.Mode, engine, sources, st, cfg.Window, log, m)

	mux := router.SetupRoutes(router.Options{
		Store:        st,
		Align:        alignCfg,
		StaleAfter:   2 * cfg.Interval,
		MaxBodyBytes: cfg.MaxBodyBytes,
		Gatherer:     prometheus.DefaultGatherer,
		Logger:       log,
	})
	handler := httpx.Chain(mux, httpx.RecoveryMiddleware(log), httpx.LoggingMiddleware(log))
	httpServer := httpx.NewServer(cfg.Listen, handler, log)

	serverTLS, err := cfg.TLS.ServerConfig()
	if err != nil {
		log.Error("failed to load TLS configuration", "error", err)
		os.Exit(1)
	}
	if serverTLS != nil {
		httpServer.SetTLSConfig(serverTLS)
	}

	var grpcOpts []grpc.ServerOption
	if serverTLS != nil {
		grpcOpts = append(grpcOpts, grpc.Creds(credentials.NewTLS(serverTLS)))
	}
	grpcServer, healthServer := grpcapi.NewGRPCServer(grpcapi.NewServer(alignCfg, log), grpcOpts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := syncer.Run(ctx, cfg.Interval); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("synchronization loop failed", "error", err)
		}
	}()

	serverErr := make(chan error, 2)
	go func() {
		serverErr <- httpServer.Start()
	}()

	if cfg.GRPCListen != "" {
		lis, err := net.Listen("tcp", cfg.GRPCListen)
		if err != nil {
			log.Error("failed to listen", "address", cfg.GRPCListen, "error", err)
			os.Exit(1)
		}
		go func() {
			log.Info("grpc server listening", "address", cfg.GRPCListen)
			serverErr <- grpcServer.Serve(lis)
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		if err != nil {
			log.Error("server failed", "error", err)
		}
	}

	log.Info("shutting down")
	cancel()

	healthServer.Shutdown()
	grpcServer.GracefulStop()

	if err := httpServer.Stop(10 * time.Second); err != nil {
		log.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("shutdown complete")
}

// buildSources creates one adapter per declared stream. Adapters share an
// HTTP client that presents the daemon's client certificate when TLS is
// enabled.
func buildSources(site *config.Site, cfg *config.Config) ([]Source, error) {
	client, err := httpx.NewClient(cfg.TLS, 30*time.Second)
	if err != nil {
		return nil, err
	}

	sources := make([]Source, 0, len(site.Streams))
	for _, sc := range site.Streams {
		a, err := adapters.New(sc.Adapter, sc.AdapterConfig, int(cfg.Step.Seconds()))
		if err != nil {
			return nil, fmt.Errorf("stream %s: %w", sc.Name, err)
		}
		switch a := a.(type) {
		case *adapters.PrometheusAdapter:
			a.HTTPClient = client
		case *adapters.VictoriaMetricsAdapter:
			a.HTTPClient = client
		case *adapters.HTTPAdapter:
			a.HTTPClient = client
		}
		sources = append(sources, Source{Stream: sc, Adapter: a})
	}
	return sources, nil
}
