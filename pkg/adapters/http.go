package adapters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/tidwall/gjson"
)

// HTTPAdapter calls a REST endpoint and extracts a stream with gjson paths.
// It suits building-management gateways and vendor cloud APIs that expose
// trend logs as JSON.
//
// Body and header values are templates with the variables
// {{.WindowSeconds}}, {{.Start}}, {{.End}}, {{.Step}}, {{.StartRFC3339}},
// {{.EndRFC3339}} and every key of TemplateVars.
//
// Example for a gateway returning {"points": [{"t": ..., "chwst": ..., "chwrt": ...}]}:
//
//	adapter := &HTTPAdapter{
//	    URL:             "https://bms.example.com/api/trends",
//	    Method:          "POST",
//	    Body:            `{"from": {{.Start}}, "to": {{.End}}}`,
//	    TimestampPath:   "points.#.t",
//	    TimestampFormat: "unix",
//	    ValuePath:       "points.#.chwst",
//	    Columns:         map[string]string{"chwrt": "points.#.chwrt"},
//	}
//
// JSON null values become nil cells.
type HTTPAdapter struct {
	// URL is the endpoint to call (required).
	URL string

	// Method defaults to GET.
	Method string

	// Headers may use template variables, e.g. "Bearer {{.Token}}".
	Headers map[string]string

	// Body is the request body template (for POST/PUT).
	Body string

	// ValuePath is the gjson path of the values, e.g. "data.#.value".
	ValuePath string

	// TimestampPath is the gjson path of the timestamps. It must return as
	// many elements as ValuePath.
	TimestampPath string

	// TimestampFormat is "rfc3339" (default), "unix" or "unix_milli".
	TimestampFormat string

	// Columns maps extra column names to gjson paths. Each path must return
	// as many elements as TimestampPath.
	Columns map[string]string

	// StepSeconds is exposed to templates as {{.Step}} (defaults to 60s).
	StepSeconds int

	// HTTPClient is optional; if nil a default client with timeout is used.
	HTTPClient *http.Client

	// TemplateVars are custom variables for Body and Headers templates.
	TemplateVars map[string]string
}

func (h *HTTPAdapter) Name() string { return "http" }

// Collect implements Adapter.
func (h *HTTPAdapter) Collect(ctx context.Context, windowSeconds int) (*DataFrame, error) {
	if err := h.ValidateConfig(); err != nil {
		return &DataFrame{}, fmt.Errorf("http adapter: %w", err)
	}

	step := h.StepSeconds
	if step <= 0 {
		step = 60
	}

	now := time.Now().UTC().Truncate(time.Second)
	start := now.Add(-time.Duration(windowSeconds) * time.Second)

	templateData := map[string]any{
		"WindowSeconds": windowSeconds,
		"Start":         start.Unix(),
		"End":           now.Unix(),
		"Step":          step,
		"StartRFC3339":  start.Format(time.RFC3339),
		"EndRFC3339":    now.Format(time.RFC3339),
	}
	for k, v := range h.TemplateVars {
		templateData[k] = v
	}

	method := h.Method
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if h.Body != "" {
		rendered, err := renderTemplate(h.Body, templateData)
		if err != nil {
			return &DataFrame{}, fmt.Errorf("render body template: %w", err)
		}
		bodyReader = strings.NewReader(rendered)
	}

	cli := h.HTTPClient
	if cli == nil {
		cli = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, method, h.URL, bodyReader)
	if err != nil {
		return &DataFrame{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range h.Headers {
		rendered, err := renderTemplate(value, templateData)
		if err != nil {
			return &DataFrame{}, fmt.Errorf("render header %s: %w", key, err)
		}
		req.Header.Set(key, rendered)
	}

	resp, err := cli.Do(req)
	if err != nil {
		return &DataFrame{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &DataFrame{}, fmt.Errorf("http status %d: %s", resp.StatusCode, string(body))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &DataFrame{}, fmt.Errorf("read response: %w", err)
	}

	timestamps := gjson.GetBytes(respBody, h.TimestampPath)
	if !timestamps.Exists() {
		return &DataFrame{}, fmt.Errorf("timestamp path %q not found in response", h.TimestampPath)
	}
	tsArray := timestamps.Array()

	columns := map[string]string{"value": h.ValuePath}
	for name, path := range h.Columns {
		columns[name] = path
	}
	extracted := make(map[string][]gjson.Result, len(columns))
	for name, path := range columns {
		res := gjson.GetBytes(respBody, path)
		if !res.Exists() {
			return &DataFrame{}, fmt.Errorf("path %q for column %s not found in response", path, name)
		}
		arr := res.Array()
		if len(arr) != len(tsArray) {
			return &DataFrame{}, fmt.Errorf("column %s has %d elements, timestamps have %d", name, len(arr), len(tsArray))
		}
		extracted[name] = arr
	}

	type stamped struct {
		ts  time.Time
		row Row
	}
	parsed := make([]stamped, 0, len(tsArray))
	for i := range tsArray {
		ts, err := h.parseTimestamp(tsArray[i])
		if err != nil {
			return &DataFrame{}, fmt.Errorf("parse timestamp[%d]: %w", i, err)
		}
		row := make(Row, len(columns)+1)
		for name, arr := range extracted {
			row[name] = cell(arr[i])
		}
		parsed = append(parsed, stamped{ts: ts, row: row})
	}

	sort.SliceStable(parsed, func(i, j int) bool { return parsed[i].ts.Before(parsed[j].ts) })

	rows := make([]Row, len(parsed))
	for i, p := range parsed {
		p.row["ts"] = p.ts.UTC().Format(time.RFC3339Nano)
		rows[i] = p.row
	}
	return &DataFrame{Rows: rows}, nil
}

func cell(r gjson.Result) any {
	if r.Type == gjson.Null {
		return nil
	}
	return r.Float()
}

func (h *HTTPAdapter) parseTimestamp(value gjson.Result) (time.Time, error) {
	switch h.TimestampFormat {
	case "", "rfc3339":
		return time.Parse(time.RFC3339Nano, value.String())
	case "unix":
		sec := value.Float()
		return time.UnixMilli(int64(sec * 1000)).UTC(), nil
	case "unix_milli":
		return time.UnixMilli(value.Int()).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp format: %s", h.TimestampFormat)
	}
}

func renderTemplate(tmplStr string, data map[string]any) (string, error) {
	if !strings.Contains(tmplStr, "{{") {
		return tmplStr, nil
	}

	tmpl, err := template.New("").Option("missingkey=error").Parse(tmplStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ValidateConfig checks the adapter configuration.
func (h *HTTPAdapter) ValidateConfig() error {
	if h.URL == "" {
		return errors.New("url is required")
	}
	if h.ValuePath == "" {
		return errors.New("valuePath is required")
	}
	if h.TimestampPath == "" {
		return errors.New("timestampPath is required")
	}
	switch h.TimestampFormat {
	case "", "rfc3339", "unix", "unix_milli":
	default:
		return fmt.Errorf("invalid timestampFormat: %s (must be rfc3339, unix, or unix_milli)", h.TimestampFormat)
	}
	for name := range h.Columns {
		if name == "ts" || name == "value" {
			return fmt.Errorf("column name %q is reserved", name)
		}
	}
	return nil
}
