package align

import "math"

// Aligner matches a stream's samples to grid instants and classifies every
// match by its distance.
type Aligner struct {
	thresholds Thresholds
}

// NewAligner returns an aligner for the given classification bounds.
func NewAligner(t Thresholds) (*Aligner, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &Aligner{thresholds: t}, nil
}

// Align returns one Result per grid point.
//
// The grid must be ascending. Null-valued samples and samples with invalid
// times are ignored; duplicates keep their first occurrence. A single cursor
// walks the samples forward as the grid advances, so the cost is
// O(len(grid) + len(samples)). Ties between two equidistant samples resolve
// to the earlier one.
func (a *Aligner) Align(samples []Sample, grid []float64) []Result {
	s := prepare(samples, true)
	out := make([]Result, len(grid))
	if len(s) == 0 {
		for i := range out {
			out[i] = missing()
		}
		return out
	}

	j := 0
	for i, g := range grid {
		for j+1 < len(s) && math.Abs(s[j+1].Time-g) < math.Abs(s[j].Time-g) {
			j++
		}
		out[i] = a.classify(s, j, g)
	}
	return out
}

// classify turns the nearest sample s[j] to grid point g into a Result.
func (a *Aligner) classify(s []Sample, j int, g float64) Result {
	d := math.Abs(s[j].Time - g)
	switch {
	case d <= a.thresholds.ExactSeconds:
		return matched(QualityExact, s[j].Value, d)
	case d <= a.thresholds.CloseSeconds:
		return matched(QualityClose, s[j].Value, d)
	case d <= a.thresholds.InterpSeconds:
		left, right := j, j+1
		if s[j].Time > g {
			left, right = j-1, j
		}
		if left < 0 || right >= len(s) {
			// One-sided: nearest sample, never extrapolate.
			return matched(QualityClose, s[j].Value, d)
		}
		l, r := s[left], s[right]
		frac := (g - l.Time) / (r.Time - l.Time)
		v := l.Value + frac*(r.Value-l.Value)
		return matched(QualityInterp, v, ((g-l.Time)+(r.Time-g))/2)
	default:
		return missing()
	}
}
