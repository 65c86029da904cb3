package align

// SyncQuality is the aggregate verdict derived from mean stream coverage.
type SyncQuality string

const (
	SyncExcellent SyncQuality = "excellent"
	SyncGood      SyncQuality = "good"
	SyncFair      SyncQuality = "fair"
	SyncPoor      SyncQuality = "poor"
)

// Score maps the verdict to 3 (excellent) down to 0 (poor).
func (q SyncQuality) Score() int {
	switch q {
	case SyncExcellent:
		return 3
	case SyncGood:
		return 2
	case SyncFair:
		return 1
	default:
		return 0
	}
}

// ClassifySync returns the tier for a mean coverage percentage.
func ClassifySync(meanCoveragePct float64) SyncQuality {
	switch {
	case meanCoveragePct >= 80:
		return SyncExcellent
	case meanCoveragePct >= 60:
		return SyncGood
	case meanCoveragePct >= 40:
		return SyncFair
	default:
		return SyncPoor
	}
}

// StreamCoverage is the per-stream part of a CoverageReport.
type StreamCoverage struct {
	Stream        string  `json:"stream"`
	Column        string  `json:"column"`
	TotalRaw      int     `json:"total_raw"`
	AlignedExact  int     `json:"aligned_exact"`
	AlignedClose  int     `json:"aligned_close"`
	AlignedInterp int     `json:"aligned_interp"`
	Missing       int     `json:"missing"`
	CoveragePct   float64 `json:"coverage_pct"`
	MeanDistanceS float64 `json:"mean_distance_s"`
	MaxDistanceS  float64 `json:"max_distance_s"`
}

// CoverageReport summarizes how much of each stream survived alignment.
type CoverageReport struct {
	Rows                int              `json:"rows"`
	Streams             []StreamCoverage `json:"streams"`
	MeanCoveragePct     float64          `json:"mean_coverage_pct"`
	OverallRetentionPct float64          `json:"overall_retention_pct"`
	SyncQuality         SyncQuality      `json:"sync_quality"`
}

// Stream returns the coverage entry of the named stream.
func (r CoverageReport) Stream(name string) (StreamCoverage, bool) {
	for _, s := range r.Streams {
		if s.Stream == name {
			return s, true
		}
	}
	return StreamCoverage{}, false
}

// Coverage computes the coverage report of a table.
//
// coverage_pct is non-null rows / rows * 100 (0 for an empty table).
// overall_retention_pct is rows * streams / total raw samples * 100 (0 when
// there are no raw samples); in grid mode it can exceed 100 when the grid is
// denser than the raw data.
func Coverage(t *Table) CoverageReport {
	rows := t.Rows()
	report := CoverageReport{
		Rows:    rows,
		Streams: make([]StreamCoverage, 0, len(t.Streams)),
	}

	var sumCoverage float64
	var totalRaw int
	for _, col := range t.Streams {
		sc := StreamCoverage{Stream: col.Stream, Column: col.Column, TotalRaw: col.RawCount}
		var sumDist float64
		var nonNull int
		for _, r := range col.Results {
			switch r.Quality {
			case QualityExact:
				sc.AlignedExact++
			case QualityClose:
				sc.AlignedClose++
			case QualityInterp:
				sc.AlignedInterp++
			default:
				sc.Missing++
			}
			if r.Value != nil {
				nonNull++
			}
			if r.DistanceSeconds != nil {
				d := *r.DistanceSeconds
				sumDist += d
				if d > sc.MaxDistanceS {
					sc.MaxDistanceS = d
				}
			}
		}
		if rows > 0 {
			sc.CoveragePct = float64(nonNull) / float64(rows) * 100
		}
		if matchedRows := len(col.Results) - sc.Missing; matchedRows > 0 {
			sc.MeanDistanceS = sumDist / float64(matchedRows)
		}

		sumCoverage += sc.CoveragePct
		totalRaw += col.RawCount
		report.Streams = append(report.Streams, sc)
	}

	if n := len(t.Streams); n > 0 {
		report.MeanCoveragePct = sumCoverage / float64(n)
	}
	if totalRaw > 0 {
		report.OverallRetentionPct = float64(rows*len(t.Streams)) / float64(totalRaw) * 100
	}
	report.SyncQuality = ClassifySync(report.MeanCoveragePct)
	return report
}
