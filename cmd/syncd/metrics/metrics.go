// Package metrics provides Prometheus instrumentation for the
// synchronization daemon.
//
// Metrics exposed:
//   - tempalign_adapter_collect_seconds: Histogram of collection time per stream
//   - tempalign_align_seconds: Histogram of alignment time per run
//   - tempalign_rows: Gauge of rows in the latest table
//   - tempalign_stream_coverage_percent: Gauge of coverage per stream
//   - tempalign_sync_quality_score: Gauge of the latest verdict, 3 (excellent) to 0 (poor)
//   - tempalign_retention_percent: Gauge of the latest overall retention
//   - tempalign_validation_violations: Gauge of violations in the latest run
//   - tempalign_dropped_streams: Gauge of optional streams left out of the latest run
//   - tempalign_errors_total: Counter of errors by component and reason
//
// All metrics carry the site label.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/HatiCode/tempalign/pkg/align"
)

// Metrics holds the daemon's Prometheus metrics.
type Metrics struct {
	CollectSeconds       *prometheus.HistogramVec
	AlignSeconds         prometheus.Histogram
	Rows                 prometheus.Gauge
	StreamCoverage       *prometheus.GaugeVec
	SyncQualityScore     prometheus.Gauge
	RetentionPercent     prometheus.Gauge
	ValidationViolations prometheus.Gauge
	DroppedStreams       prometheus.Gauge
	ErrorsTotal          *prometheus.CounterVec
}

// New creates the metrics and registers them with reg.
func New(site string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"site": site}

	return &Metrics{
		CollectSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "tempalign_adapter_collect_seconds",
			Help:        "Time spent collecting one stream from its adapter",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"stream", "adapter"}),

		AlignSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:        "tempalign_align_seconds",
			Help:        "Time spent building, scoring and validating the synchronized table",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.001, 4, 8),
		}),

		Rows: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "tempalign_rows",
			Help:        "Rows in the latest synchronized table",
			ConstLabels: labels,
		}),

		StreamCoverage: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "tempalign_stream_coverage_percent",
			Help:        "Non-null share of each stream's column in the latest table",
			ConstLabels: labels,
		}, []string{"stream"}),

		SyncQualityScore: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "tempalign_sync_quality_score",
			Help:        "Latest sync quality: 3 excellent, 2 good, 1 fair, 0 poor",
			ConstLabels: labels,
		}),

		RetentionPercent: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "tempalign_retention_percent",
			Help:        "Overall retention of raw samples in the latest table",
			ConstLabels: labels,
		}),

		ValidationViolations: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "tempalign_validation_violations",
			Help:        "Threshold violations in the latest run",
			ConstLabels: labels,
		}),

		DroppedStreams: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "tempalign_dropped_streams",
			Help:        "Optional streams left out of the latest run",
			ConstLabels: labels,
		}),

		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "tempalign_errors_total",
			Help:        "Total number of errors by component and reason",
			ConstLabels: labels,
		}, []string{"component", "reason"}),
	}
}

// RecordCollect records the time spent collecting one stream.
func (m *Metrics) RecordCollect(stream, adapter string, seconds float64) {
	m.CollectSeconds.WithLabelValues(stream, adapter).Observe(seconds)
}

// RecordAlign records the time spent aligning.
func (m *Metrics) RecordAlign(seconds float64) {
	m.AlignSeconds.Observe(seconds)
}

// ObserveOutcome publishes the gauges of one run.
func (m *Metrics) ObserveOutcome(out *align.Outcome, dropped int) {
	m.Rows.Set(float64(out.Coverage.Rows))
	m.StreamCoverage.Reset()
	for _, s := range out.Coverage.Streams {
		m.StreamCoverage.WithLabelValues(s.Stream).Set(s.CoveragePct)
	}
	m.SyncQualityScore.Set(float64(out.Coverage.SyncQuality.Score()))
	m.RetentionPercent.Set(out.Coverage.OverallRetentionPct)
	m.ValidationViolations.Set(float64(len(out.Validation.Violations)))
	m.DroppedStreams.Set(float64(dropped))
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, reason string) {
	m.ErrorsTotal.WithLabelValues(component, reason).Inc()
}
