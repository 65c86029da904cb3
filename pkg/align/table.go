package align

// TimestampColumn is the name of a table's first column.
const TimestampColumn = "timestamp"

// Column name suffixes of the per-stream quality columns in grid mode.
const (
	QualitySuffix  = "_align_quality"
	DistanceSuffix = "_align_distance_s"
)

// Table is the synchronized table: one row per instant, one StreamColumn
// per stream. Every StreamColumn holds exactly len(Timestamps) results.
type Table struct {
	Mode       Mode           `json:"mode"`
	Timestamps []float64      `json:"timestamps"`
	Streams    []StreamColumn `json:"streams"`
}

// StreamColumn is one stream's values across the table.
type StreamColumn struct {
	Stream   string   `json:"stream"`
	Column   string   `json:"column"`
	Required bool     `json:"required"`
	RawCount int      `json:"raw_count"`
	Results  []Result `json:"results"`
}

// Rows returns the number of rows.
func (t *Table) Rows() int { return len(t.Timestamps) }

// Columns returns the declared column set: the timestamp, one value column
// per stream and, in grid mode, the quality and distance columns.
func (t *Table) Columns() []string {
	cols := make([]string, 0, 1+3*len(t.Streams))
	cols = append(cols, TimestampColumn)
	for _, s := range t.Streams {
		cols = append(cols, s.Column)
	}
	if t.Mode == ModeGrid {
		for _, s := range t.Streams {
			cols = append(cols, s.Column+QualitySuffix, s.Column+DistanceSuffix)
		}
	}
	return cols
}

// Stream returns the column of the named stream.
func (t *Table) Stream(name string) (StreamColumn, bool) {
	for _, s := range t.Streams {
		if s.Stream == name {
			return s, true
		}
	}
	return StreamColumn{}, false
}

// Values returns the value column of the named stream with nil for nulls.
func (t *Table) Values(name string) ([]*float64, bool) {
	s, ok := t.Stream(name)
	if !ok {
		return nil, false
	}
	out := make([]*float64, len(s.Results))
	for i, r := range s.Results {
		out[i] = r.Value
	}
	return out, true
}

// Row returns the cells of row i keyed by column name. Quality and distance
// cells appear in grid mode only; null cells are nil.
func (t *Table) Row(i int) map[string]any {
	row := make(map[string]any, 1+3*len(t.Streams))
	row[TimestampColumn] = t.Timestamps[i]
	for _, s := range t.Streams {
		r := s.Results[i]
		row[s.Column] = deref(r.Value)
		if t.Mode == ModeGrid {
			row[s.Column+QualitySuffix] = string(r.Quality)
			row[s.Column+DistanceSuffix] = deref(r.DistanceSeconds)
		}
	}
	return row
}

func deref(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

// joinColumn looks up a stream's value at each instant in ts. Instants with
// no sample within tol, or whose sample is null, are MISSING. Matches within
// the exact threshold are EXACT and the rest CLOSE; Config.Validate keeps tol
// within the close threshold. The lookup is a forward two-pointer scan over
// the stream's prepared samples.
func joinColumn(samples []Sample, ts []float64, tol float64, th Thresholds) []Result {
	s := prepare(samples, false)
	out := make([]Result, len(ts))

	j := 0
	for i, t := range ts {
		for j+1 < len(s) && absDiff(s[j+1].Time, t) < absDiff(s[j].Time, t) {
			j++
		}
		if len(s) == 0 {
			out[i] = missing()
			continue
		}
		d := absDiff(s[j].Time, t)
		if d > tol || s[j].IsNull() {
			out[i] = missing()
			continue
		}
		q := QualityExact
		if d > th.ExactSeconds {
			q = QualityClose
		}
		out[i] = matched(q, s[j].Value, d)
	}
	return out
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
