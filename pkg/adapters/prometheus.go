package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"
)

// PrometheusAdapter fetches one stream from the Prometheus HTTP API with a
// /api/v1/query_range call. Rows have the form
//
//	{"ts": RFC3339 string, "value": float64 or nil}
//
// When the query returns several series, values sharing a timestamp are
// summed. NaN points (stale markers) are skipped; a timestamp where every
// series is NaN yields a nil value so the instant stays visible.
type PrometheusAdapter struct {
	// ServerURL is the base URL, e.g. http://prometheus.monitoring.svc:9090
	ServerURL string
	// Query is the PromQL expression for the stream.
	Query string
	// StepSeconds is the query resolution (defaults to 60s if <= 0).
	StepSeconds int
	// HTTPClient is optional; if nil a default client with timeout is used.
	HTTPClient *http.Client
}

func (p *PrometheusAdapter) Name() string { return "prometheus" }

// Collect implements Adapter.
func (p *PrometheusAdapter) Collect(ctx context.Context, windowSeconds int) (*DataFrame, error) {
	return queryRange(ctx, rangeQuery{
		system:    "prometheus",
		serverURL: p.ServerURL,
		query:     p.Query,
		step:      p.StepSeconds,
		client:    p.HTTPClient,
	}, windowSeconds)
}

// rangeQuery is a query_range call against a Prometheus-compatible API.
type rangeQuery struct {
	system    string
	serverURL string
	query     string
	step      int
	client    *http.Client
}

func queryRange(ctx context.Context, rq rangeQuery, windowSeconds int) (*DataFrame, error) {
	if rq.serverURL == "" || rq.query == "" {
		return &DataFrame{}, fmt.Errorf("%s adapter: ServerURL and Query are required", rq.system)
	}
	if windowSeconds <= 0 {
		return &DataFrame{}, fmt.Errorf("%s adapter: window must be > 0, got %d", rq.system, windowSeconds)
	}
	step := rq.step
	if step <= 0 {
		step = 60
	}
	now := time.Now().UTC().Truncate(time.Second)
	start := now.Add(-time.Duration(windowSeconds) * time.Second)

	u, err := url.Parse(rq.serverURL)
	if err != nil {
		return &DataFrame{}, fmt.Errorf("invalid ServerURL: %w", err)
	}
	u.Path = "/api/v1/query_range"

	q := u.Query()
	q.Set("query", rq.query)
	q.Set("start", strconv.FormatInt(start.Unix(), 10))
	q.Set("end", strconv.FormatInt(now.Unix(), 10))
	q.Set("step", strconv.Itoa(step))
	u.RawQuery = q.Encode()

	cli := rq.client
	if cli == nil {
		cli = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &DataFrame{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := cli.Do(req)
	if err != nil {
		return &DataFrame{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &DataFrame{}, fmt.Errorf("%s: status %d", rq.system, resp.StatusCode)
	}

	var pr PrometheusRangeResponse
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&pr); err != nil {
		return &DataFrame{}, fmt.Errorf("decode %s response: %w", rq.system, err)
	}
	if pr.Status != "success" {
		return &DataFrame{}, fmt.Errorf("%s status: %s", rq.system, pr.Status)
	}

	rows, err := AggregateRangeResult(pr.Data.Result)
	if err != nil {
		return &DataFrame{}, err
	}
	return &DataFrame{Rows: rows}, nil
}

// PrometheusRangeResponse is a query_range response (Prometheus and
// compatible systems).
type PrometheusRangeResponse struct {
	Status string              `json:"status"`
	Data   PrometheusRangeData `json:"data"`
}

// PrometheusRangeData contains the result data from a range query.
type PrometheusRangeData struct {
	ResultType string                 `json:"resultType"`
	Result     []PrometheusRangeSerie `json:"result"`
}

// PrometheusRangeSerie is a single series of a range result.
type PrometheusRangeSerie struct {
	Metric map[string]string `json:"metric"`
	// Values is an array of [ <unix_time_float>, "<value_string>" ]
	Values [][]any `json:"values"`
}

// AggregateRangeResult merges series into rows sorted by time, summing the
// finite values at each timestamp. Fractional timestamps are kept.
func AggregateRangeResult(series []PrometheusRangeSerie) ([]Row, error) {
	type bucket struct {
		sum float64
		n   int
	}
	acc := make(map[float64]*bucket)
	for _, s := range series {
		for _, pair := range s.Values {
			if len(pair) != 2 {
				return nil, fmt.Errorf("invalid value pair length: %d", len(pair))
			}
			ts, err := numeric(pair[0])
			if err != nil {
				return nil, fmt.Errorf("parse timestamp: %w", err)
			}
			val, err := numeric(pair[1])
			if err != nil {
				return nil, fmt.Errorf("parse value: %w", err)
			}

			b, ok := acc[ts]
			if !ok {
				b = &bucket{}
				acc[ts] = b
			}
			if !math.IsNaN(val) && !math.IsInf(val, 0) {
				b.sum += val
				b.n++
			}
		}
	}

	times := make([]float64, 0, len(acc))
	for ts := range acc {
		times = append(times, ts)
	}
	sort.Float64s(times)

	rows := make([]Row, 0, len(times))
	for _, ts := range times {
		var v any
		if b := acc[ts]; b.n > 0 {
			v = b.sum
		}
		rows = append(rows, Row{"ts": formatUnix(ts), "value": v})
	}
	return rows, nil
}

func numeric(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

func formatUnix(sec float64) string {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(math.Round(frac*1e9))).UTC().Format(time.RFC3339Nano)
}
