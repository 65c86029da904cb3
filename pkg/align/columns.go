package align

import (
	"strings"
)

// RawTable is a columnar stream as handed over by an upstream parser.
// NaN cells are nulls.
type RawTable struct {
	Name    string
	Role    string
	Columns []RawColumn
}

// RawColumn is one named column of a RawTable.
type RawColumn struct {
	Name   string
	Values []float64
}

func (t RawTable) column(name string) (RawColumn, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return RawColumn{}, false
}

// ColumnStrategy is one rule for locating a stream's value column.
type ColumnStrategy string

const (
	// ByExactName matches ColumnSpec.ValueColumn verbatim.
	ByExactName ColumnStrategy = "exact"
	// ByRoleLower matches the lowercase role, e.g. "chwst" for role "CHWST".
	ByRoleLower ColumnStrategy = "role_lower"
	// BySecondOfTwo takes the second column when the table has exactly two.
	BySecondOfTwo ColumnStrategy = "second_of_two"
)

// DefaultColumnStrategies returns exact name, then lowercase role, then the
// second of two columns.
func DefaultColumnStrategies() []ColumnStrategy {
	return []ColumnStrategy{ByExactName, ByRoleLower, BySecondOfTwo}
}

// ParseColumnStrategy validates a strategy name.
func ParseColumnStrategy(s string) (ColumnStrategy, error) {
	switch ColumnStrategy(s) {
	case ByExactName, ByRoleLower, BySecondOfTwo:
		return ColumnStrategy(s), nil
	default:
		return "", invalidf("unknown value column strategy %q", s)
	}
}

// ColumnSpec names the columns of a RawTable.
type ColumnSpec struct {
	TimestampColumn string
	ValueColumn     string
	// Strategies overrides the engine defaults when non-empty.
	Strategies []ColumnStrategy
}

// DefaultTimestampColumn is used when ColumnSpec.TimestampColumn is empty.
const DefaultTimestampColumn = "timestamp"

// ResolveStream converts a RawTable into a Stream by locating its timestamp
// and value columns. Strategies are tried in order and the first match wins;
// nothing beyond the listed strategies is guessed.
func ResolveStream(raw RawTable, spec ColumnSpec) (Stream, error) {
	tsName := spec.TimestampColumn
	if tsName == "" {
		tsName = DefaultTimestampColumn
	}
	ts, ok := raw.column(tsName)
	if !ok {
		return Stream{}, schemaf("stream %q has no timestamp column %q", raw.Name, tsName)
	}

	strategies := spec.Strategies
	if len(strategies) == 0 {
		strategies = DefaultColumnStrategies()
	}

	var (
		val   RawColumn
		found bool
	)
	for _, st := range strategies {
		if val, found = lookupValue(raw, spec, tsName, st); found {
			break
		}
	}
	if !found {
		return Stream{}, schemaf("stream %q: value column %q not found (tried %v)", raw.Name, spec.ValueColumn, strategies)
	}
	if len(val.Values) != len(ts.Values) {
		return Stream{}, schemaf("stream %q: column %q has %d values, timestamp column has %d",
			raw.Name, val.Name, len(val.Values), len(ts.Values))
	}

	samples := make([]Sample, len(ts.Values))
	for i := range ts.Values {
		samples[i] = Sample{Time: ts.Values[i], Value: val.Values[i]}
	}
	return Stream{Name: raw.Name, Role: raw.Role, Samples: samples}, nil
}

func lookupValue(raw RawTable, spec ColumnSpec, tsName string, st ColumnStrategy) (RawColumn, bool) {
	switch st {
	case ByExactName:
		if spec.ValueColumn == "" {
			return RawColumn{}, false
		}
		return raw.column(spec.ValueColumn)
	case ByRoleLower:
		if raw.Role == "" {
			return RawColumn{}, false
		}
		return raw.column(strings.ToLower(raw.Role))
	case BySecondOfTwo:
		if len(raw.Columns) != 2 || raw.Columns[1].Name == tsName {
			return RawColumn{}, false
		}
		return raw.Columns[1], true
	}
	return RawColumn{}, false
}
