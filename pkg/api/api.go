// Package api defines the JSON documents of the ad-hoc alignment endpoint,
// shared by the HTTP and gRPC transports, and their conversion to and from
// the align package.
//
// A request carries raw tables in columnar form. Null cells are JSON null:
//
//	{
//	  "mode": "join",
//	  "tables": [
//	    {"name": "chwst.csv", "role": "CHWST", "required": true,
//	     "columns": [{"name": "timestamp", "values": [0, 900]},
//	                 {"name": "chwst", "values": [6.9, null]}]}
//	  ],
//	  "options": {"tolerance_s": 30}
//	}
package api

import (
	"fmt"
	"math"

	"github.com/HatiCode/tempalign/pkg/align"
)

// Column is one named column of a raw table.
type Column struct {
	Name   string     `json:"name"`
	Values []*float64 `json:"values"`
}

// Table is one raw stream table.
type Table struct {
	Name            string   `json:"name"`
	Role            string   `json:"role,omitempty"`
	Required        bool     `json:"required,omitempty"`
	TimestampColumn string   `json:"timestamp_column,omitempty"`
	ValueColumn     string   `json:"value_column,omitempty"`
	Columns         []Column `json:"columns"`
}

// Options overrides the server's alignment configuration for one request.
// Nil fields keep the server value.
type Options struct {
	ToleranceSeconds       *float64 `json:"tolerance_s,omitempty"`
	ToleranceMode          string   `json:"tolerance_mode,omitempty"`
	NominalPeriodSeconds   *float64 `json:"period_s,omitempty"`
	ExactThresholdSeconds  *float64 `json:"exact_s,omitempty"`
	CloseThresholdSeconds  *float64 `json:"close_s,omitempty"`
	InterpThresholdSeconds *float64 `json:"interp_s,omitempty"`
	MinRows                *int     `json:"min_rows,omitempty"`
	MinCoveragePct         *float64 `json:"min_coverage_pct,omitempty"`
	ValueColumnStrategies  []string `json:"value_column_strategies,omitempty"`
}

// AlignRequest is the body of POST /align.
type AlignRequest struct {
	Mode    string        `json:"mode,omitempty"`
	Window  *align.Window `json:"window,omitempty"`
	Tables  []Table       `json:"tables"`
	Options *Options      `json:"options,omitempty"`
}

// AlignResponse is the body returned by POST /align.
type AlignResponse struct {
	Mode       align.Mode             `json:"mode"`
	Columns    []string               `json:"columns"`
	Rows       []map[string]any       `json:"rows"`
	Coverage   align.CoverageReport   `json:"coverage"`
	Validation align.ValidationResult `json:"validation"`
}

// Apply returns cfg with the non-nil overrides of o.
func (o *Options) Apply(cfg align.Config) (align.Config, error) {
	if o == nil {
		return cfg, nil
	}
	setFloat := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setFloat(&cfg.TimestampToleranceSeconds, o.ToleranceSeconds)
	setFloat(&cfg.NominalPeriodSeconds, o.NominalPeriodSeconds)
	setFloat(&cfg.ExactThresholdSeconds, o.ExactThresholdSeconds)
	setFloat(&cfg.CloseThresholdSeconds, o.CloseThresholdSeconds)
	setFloat(&cfg.InterpThresholdSeconds, o.InterpThresholdSeconds)
	setFloat(&cfg.MinCoveragePct, o.MinCoveragePct)
	if o.MinRows != nil {
		cfg.MinRows = *o.MinRows
	}
	if o.ToleranceMode != "" {
		cfg.ToleranceMode = align.ToleranceMode(o.ToleranceMode)
	}
	if len(o.ValueColumnStrategies) > 0 {
		strategies, err := parseStrategies(o.ValueColumnStrategies)
		if err != nil {
			return align.Config{}, err
		}
		cfg.ValueColumnStrategies = strategies
	}
	return cfg, nil
}

func parseStrategies(names []string) ([]align.ColumnStrategy, error) {
	out := make([]align.ColumnStrategy, 0, len(names))
	for _, n := range names {
		s, err := align.ParseColumnStrategy(n)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// RawTable converts t to the engine's columnar form with NaN for nulls.
func (t Table) RawTable() align.RawTable {
	raw := align.RawTable{Name: t.Name, Role: t.Role, Columns: make([]align.RawColumn, len(t.Columns))}
	for i, c := range t.Columns {
		values := make([]float64, len(c.Values))
		for j, v := range c.Values {
			if v == nil {
				values[j] = math.NaN()
				continue
			}
			values[j] = *v
		}
		raw.Columns[i] = align.RawColumn{Name: c.Name, Values: values}
	}
	return raw
}

// ToRequest resolves every table with e and builds the engine request.
// Required streams keep the order in which their tables appear.
func (r AlignRequest) ToRequest(e *align.Engine) (align.Request, error) {
	if len(r.Tables) == 0 {
		return align.Request{}, fmt.Errorf("%w: request has no tables", align.ErrInvalidInput)
	}

	req := align.Request{
		Streams: make(map[string]align.Stream, len(r.Tables)),
		Mode:    align.Mode(r.Mode),
		Window:  r.Window,
	}
	for i, t := range r.Tables {
		if t.Name == "" {
			return align.Request{}, fmt.Errorf("%w: table[%d] has no name", align.ErrInvalidInput, i)
		}
		if _, dup := req.Streams[t.Name]; dup {
			return align.Request{}, fmt.Errorf("%w: duplicate table name %q", align.ErrInvalidInput, t.Name)
		}

		s, err := e.Resolve(t.RawTable(), align.ColumnSpec{
			TimestampColumn: t.TimestampColumn,
			ValueColumn:     t.ValueColumn,
		})
		if err != nil {
			return align.Request{}, err
		}
		req.Streams[t.Name] = s
		if t.Required {
			req.Required = append(req.Required, t.Name)
		}
	}
	return req, nil
}

// FromOutcome flattens an outcome into rows keyed by column name.
func FromOutcome(out *align.Outcome) AlignResponse {
	rows := make([]map[string]any, out.Table.Rows())
	for i := range rows {
		rows[i] = out.Table.Row(i)
	}
	return AlignResponse{
		Mode:       out.Table.Mode,
		Columns:    out.Table.Columns(),
		Rows:       rows,
		Coverage:   out.Coverage,
		Validation: out.Validation,
	}
}

// Align runs one ad-hoc alignment: base is the server configuration,
// narrowed by the request's options.
func Align(base align.Config, r AlignRequest) (*AlignResponse, error) {
	cfg, err := r.Options.Apply(base)
	if err != nil {
		return nil, err
	}
	e, err := align.NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	req, err := r.ToRequest(e)
	if err != nil {
		return nil, err
	}
	out, err := e.Run(req)
	if err != nil {
		return nil, err
	}
	resp := FromOutcome(out)
	return &resp, nil
}
