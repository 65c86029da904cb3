package adapters

import (
	"context"
	"net/http"
)

// VictoriaMetricsAdapter fetches one stream from VictoriaMetrics through its
// Prometheus-compatible query_range API. Rows and aggregation follow
// PrometheusAdapter.
type VictoriaMetricsAdapter struct {
	// ServerURL is the base URL, e.g. http://victoria-metrics:8428
	ServerURL string
	// Query is the MetricsQL/PromQL expression for the stream.
	Query string
	// StepSeconds is the query resolution (defaults to 60s if <= 0).
	StepSeconds int
	// HTTPClient is optional; if nil a default client with timeout is used.
	HTTPClient *http.Client
}

func (v *VictoriaMetricsAdapter) Name() string { return "victoria-metrics" }

// Collect implements Adapter.
func (v *VictoriaMetricsAdapter) Collect(ctx context.Context, windowSeconds int) (*DataFrame, error) {
	return queryRange(ctx, rangeQuery{
		system:    "victoria-metrics",
		serverURL: v.ServerURL,
		query:     v.Query,
		step:      v.StepSeconds,
		client:    v.HTTPClient,
	}, windowSeconds)
}
