// Package config provides configuration parsing for the synchronization
// daemon.
//
// Process settings come from command-line flags with environment variable
// fallbacks:
//   - listen addresses (HTTP, gRPC)
//   - logging (level, format)
//   - storage backend (memory, redis, badger) and its settings
//   - loop timing (interval, window, step)
//   - alignment thresholds and acceptance limits
//   - TLS (cert, key, CA files)
//
// The streams of a site are declared in a YAML file loaded by LoadStreams.
//
// Supported configuration sources (in order of precedence):
//  1. Command-line flags
//  2. Environment variables
//  3. Default values
//
// Example usage:
//
//	cfg := config.ParseFlags()
//	streams, err := config.LoadStreams(cfg.StreamsFile)
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/HatiCode/tempalign/pkg/align"
	"github.com/HatiCode/tempalign/pkg/tls"
)

// Config holds all daemon configuration.
type Config struct {
	Listen     string
	GRPCListen string
	LogFormat  string
	LogLevel   string

	Storage       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SnapshotTTL   time.Duration
	BadgerDir     string
	TLS           tls.Config

	StreamsFile  string
	Interval     time.Duration
	Window       time.Duration
	Step         time.Duration
	MaxBodyBytes int64

	Tolerance       time.Duration
	ToleranceMode   string
	Period          time.Duration
	ExactThreshold  time.Duration
	CloseThreshold  time.Duration
	InterpThreshold time.Duration
	MinRows         int
	MinCoveragePct  float64
	Workers         int
}

// ParseFlags parses os.Args and the environment into a Config and exits
// the process on invalid settings.
func ParseFlags() *Config {
	cfg, err := Parse(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	return cfg
}

// Parse registers the daemon flags on fs, parses args and validates the
// result. Environment variables provide the flag defaults.
func Parse(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}

	fs.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":8082"), "HTTP listen address")
	fs.StringVar(&cfg.GRPCListen, "grpc-listen", getEnv("GRPC_LISTEN", ":9092"), "gRPC listen address (empty disables gRPC)")

	fs.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	fs.StringVar(&cfg.Storage, "storage", getEnv("STORAGE", "memory"), "Storage backend: memory, redis or badger")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	fs.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	fs.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	fs.DurationVar(&cfg.SnapshotTTL, "snapshot-ttl", getEnvDuration("SNAPSHOT_TTL", 2*time.Hour), "Snapshot TTL (0 uses the backend default)")
	fs.StringVar(&cfg.BadgerDir, "badger-dir", getEnv("BADGER_DIR", ""), "Badger data directory (empty runs in memory)")

	fs.BoolVar(&cfg.TLS.Enabled, "tls-enabled", getEnvBool("TLS_ENABLED", false), "Enable mTLS for the HTTP and gRPC servers")
	fs.StringVar(&cfg.TLS.CertFile, "tls-cert-file", getEnv("TLS_CERT_FILE", ""), "TLS certificate file")
	fs.StringVar(&cfg.TLS.KeyFile, "tls-key-file", getEnv("TLS_KEY_FILE", ""), "TLS private key file")
	fs.StringVar(&cfg.TLS.CAFile, "tls-ca-file", getEnv("TLS_CA_FILE", ""), "TLS CA certificate file for peer verification")

	fs.StringVar(&cfg.StreamsFile, "streams", getEnv("STREAMS_FILE", "streams.yaml"), "YAML file declaring the site's streams")
	fs.DurationVar(&cfg.Interval, "interval", getEnvDuration("INTERVAL", 5*time.Minute), "Synchronization interval")
	fs.DurationVar(&cfg.Window, "window", getEnvDuration("WINDOW", 24*time.Hour), "Collection window per run")
	fs.DurationVar(&cfg.Step, "step", getEnvDuration("STEP", 5*time.Minute), "Query resolution requested from sources")
	fs.Int64Var(&cfg.MaxBodyBytes, "max-body-bytes", getEnvInt64("MAX_BODY_BYTES", 32<<20), "Maximum /align request body size")

	fs.DurationVar(&cfg.Tolerance, "tolerance", getEnvDuration("TOLERANCE", 0), "Join-mode timestamp tolerance (0 = exact)")
	fs.StringVar(&cfg.ToleranceMode, "tolerance-mode", getEnv("TOLERANCE_MODE", string(align.MatchReference)), "Tolerance matching: reference or symmetric")
	fs.DurationVar(&cfg.Period, "period", getEnvDuration("PERIOD", 15*time.Minute), "Reference grid period")
	fs.DurationVar(&cfg.ExactThreshold, "exact-threshold", getEnvDuration("EXACT_THRESHOLD", time.Minute), "Max distance of an EXACT match")
	fs.DurationVar(&cfg.CloseThreshold, "close-threshold", getEnvDuration("CLOSE_THRESHOLD", 5*time.Minute), "Max distance of a CLOSE match")
	fs.DurationVar(&cfg.InterpThreshold, "interp-threshold", getEnvDuration("INTERP_THRESHOLD", 30*time.Minute), "Max distance of an INTERP match")
	fs.IntVar(&cfg.MinRows, "min-rows", getEnvInt("MIN_ROWS", 10), "Minimum rows of a valid table")
	fs.Float64Var(&cfg.MinCoveragePct, "min-coverage", getEnvFloat("MIN_COVERAGE_PCT", 80), "Minimum per-stream coverage percent")
	fs.IntVar(&cfg.Workers, "workers", getEnvInt("WORKERS", 0), "Concurrent stream alignments (0 = number of CPUs)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings the alignment engine does not cover.
func (c *Config) Validate() error {
	switch c.Storage {
	case "memory", "redis", "badger":
	default:
		return fmt.Errorf("invalid storage %q (must be memory, redis or badger)", c.Storage)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be > 0, got %v", c.Interval)
	}
	if c.Window < time.Second {
		return fmt.Errorf("window must be at least 1s, got %v", c.Window)
	}
	if c.Step < time.Second {
		return fmt.Errorf("step must be at least 1s, got %v", c.Step)
	}
	if c.SnapshotTTL < 0 {
		return fmt.Errorf("snapshot TTL cannot be negative, got %v", c.SnapshotTTL)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be > 0, got %d", c.MaxBodyBytes)
	}
	if err := c.TLS.Validate(); err != nil {
		return err
	}
	cfg := c.AlignConfig()
	return cfg.Validate()
}

// AlignConfig returns the engine configuration described by c.
func (c *Config) AlignConfig() align.Config {
	cfg := align.DefaultConfig()
	cfg.TimestampToleranceSeconds = c.Tolerance.Seconds()
	cfg.ToleranceMode = align.ToleranceMode(c.ToleranceMode)
	cfg.NominalPeriodSeconds = c.Period.Seconds()
	cfg.ExactThresholdSeconds = c.ExactThreshold.Seconds()
	cfg.CloseThresholdSeconds = c.CloseThreshold.Seconds()
	cfg.InterpThresholdSeconds = c.InterpThreshold.Seconds()
	cfg.MinRows = c.MinRows
	cfg.MinCoveragePct = c.MinCoveragePct
	if c.Workers > 0 {
		cfg.Workers = c.Workers
	}
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		var i int64
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}
