package align

import "fmt"

// warnCoveragePct is the coverage below which an accepted stream is flagged.
const warnCoveragePct = 95.0

// ValidationResult lists threshold violations and warnings. Valid is true
// when there are no violations; warnings never invalidate a run.
type ValidationResult struct {
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations"`
	Warnings   []string `json:"warnings"`
}

// Validate compares a coverage report against the limits:
//   - rows < MinRows is a violation, rows < 2*MinRows a warning;
//   - a stream below MinCoveragePct is a violation, below 95% a warning.
func Validate(r CoverageReport, l Limits) ValidationResult {
	res := ValidationResult{Violations: []string{}, Warnings: []string{}}

	switch {
	case r.Rows < l.MinRows:
		res.Violations = append(res.Violations,
			fmt.Sprintf("row count %d below minimum %d", r.Rows, l.MinRows))
	case r.Rows < 2*l.MinRows:
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("row count %d below twice the minimum %d", r.Rows, l.MinRows))
	}

	for _, s := range r.Streams {
		switch {
		case s.CoveragePct < l.MinCoveragePct:
			res.Violations = append(res.Violations,
				fmt.Sprintf("stream %s coverage %.1f%% below minimum %.1f%%", s.Column, s.CoveragePct, l.MinCoveragePct))
		case s.CoveragePct < warnCoveragePct:
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("stream %s coverage %.1f%% below %.0f%%", s.Column, s.CoveragePct, warnCoveragePct))
		}
	}

	res.Valid = len(res.Violations) == 0
	return res
}
