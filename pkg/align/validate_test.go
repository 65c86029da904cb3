package align

import "testing"

func report(rows int, coverage ...float64) CoverageReport {
	r := CoverageReport{Rows: rows}
	for i, c := range coverage {
		name := string(rune('A' + i))
		r.Streams = append(r.Streams, StreamCoverage{Stream: name, Column: name, CoveragePct: c})
	}
	return r
}

func TestValidate(t *testing.T) {
	limits := Limits{MinRows: 10, MinCoveragePct: 80}

	tests := []struct {
		name           string
		report         CoverageReport
		wantValid      bool
		wantViolations int
		wantWarnings   int
	}{
		{"clean", report(40, 100, 99), true, 0, 0},
		{"only rows fail", report(5, 100, 100), false, 1, 0},
		{"rows and one stream fail", report(5, 100, 50), false, 2, 0},
		{"rows warn", report(15, 100), true, 0, 1},
		{"coverage warn", report(40, 90), true, 0, 1},
		{"warnings stack", report(12, 85, 90), true, 0, 3},
		{"violation and warning", report(40, 50, 90), false, 1, 1},
		{"zero rows", report(0, 0, 0), false, 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(tt.report, limits)
			if got.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v", got.Valid, tt.wantValid)
			}
			if len(got.Violations) != tt.wantViolations {
				t.Errorf("violations = %v, want %d", got.Violations, tt.wantViolations)
			}
			if len(got.Warnings) != tt.wantWarnings {
				t.Errorf("warnings = %v, want %d", got.Warnings, tt.wantWarnings)
			}
		})
	}
}

func TestValidate_ZeroMinRows(t *testing.T) {
	got := Validate(report(0), Limits{})
	if !got.Valid || len(got.Warnings) != 0 {
		t.Errorf("Validate() = %+v, want valid without warnings", got)
	}
}
