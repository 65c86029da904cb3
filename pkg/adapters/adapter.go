// Package adapters pulls raw telemetry streams (supply and return
// temperatures, flow, power) out of external systems and normalizes them
// into a DataFrame of timestamped rows.
//
// Available adapters:
//   - PrometheusAdapter      range queries against the Prometheus HTTP API
//   - VictoriaMetricsAdapter range queries against VictoriaMetrics
//   - HTTPAdapter            any JSON REST endpoint, extracted with gjson paths
//
// Adapters only fetch and shape. ToRawTable hands a DataFrame to the
// alignment engine, which owns every timing decision.
package adapters

import (
	"context"
)

// Row is one observation. Every adapter sets "ts" (RFC3339 string) and
// "value" (float64, or nil when the source reported no reading). The HTTP
// adapter may add further numeric columns.
// Example: {"ts": "2025-10-25T17:00:00Z", "value": 6.8}
type Row map[string]any

// DataFrame is the tabular result of one collection, sorted by "ts".
type DataFrame struct {
	Rows []Row
}

// Adapter is implemented by every telemetry source.
//
// Collect is synchronous and must respect context cancellation and
// deadlines.
type Adapter interface {
	// Collect fetches the last windowSeconds of one stream.
	Collect(ctx context.Context, windowSeconds int) (*DataFrame, error)

	// Name returns a short identifier such as "prometheus" or "http".
	Name() string
}
