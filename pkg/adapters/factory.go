package adapters

import (
	"encoding/json"
	"fmt"
)

// New creates an adapter from its kind and a flat configuration map, as
// found in the stream definitions file.
//
// Supported kinds:
//   - "prometheus":      url (default http://localhost:9090), query
//   - "victoriametrics": url (default http://localhost:8428), query
//   - "http":            url, method, body, valuePath, timestampPath,
//     timestampFormat, and JSON objects headers, templateVars, columns
//
// stepSeconds is the query resolution requested from the source.
func New(kind string, config map[string]string, stepSeconds int) (Adapter, error) {
	switch kind {
	case "prometheus":
		url, query, err := rangeConfig(kind, config, "http://localhost:9090")
		if err != nil {
			return nil, err
		}
		return &PrometheusAdapter{ServerURL: url, Query: query, StepSeconds: stepSeconds}, nil
	case "victoriametrics":
		url, query, err := rangeConfig(kind, config, "http://localhost:8428")
		if err != nil {
			return nil, err
		}
		return &VictoriaMetricsAdapter{ServerURL: url, Query: query, StepSeconds: stepSeconds}, nil
	case "http":
		return newHTTP(config, stepSeconds)
	default:
		return nil, fmt.Errorf("unknown adapter kind: %s (must be prometheus, victoriametrics, or http)", kind)
	}
}

func rangeConfig(kind string, config map[string]string, defaultURL string) (string, string, error) {
	query := config["query"]
	if query == "" {
		return "", "", fmt.Errorf("%s adapter requires 'query' config", kind)
	}
	url := config["url"]
	if url == "" {
		url = defaultURL
	}
	return url, query, nil
}

func newHTTP(config map[string]string, stepSeconds int) (Adapter, error) {
	h := &HTTPAdapter{
		URL:             config["url"],
		Method:          config["method"],
		Body:            config["body"],
		ValuePath:       config["valuePath"],
		TimestampPath:   config["timestampPath"],
		TimestampFormat: config["timestampFormat"],
		StepSeconds:     stepSeconds,
	}

	for key, dst := range map[string]*map[string]string{
		"headers":      &h.Headers,
		"templateVars": &h.TemplateVars,
		"columns":      &h.Columns,
	} {
		raw := config[key]
		if raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(raw), dst); err != nil {
			return nil, fmt.Errorf("invalid '%s' JSON: %w", key, err)
		}
	}

	if err := h.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("http adapter: %w", err)
	}
	return h, nil
}
