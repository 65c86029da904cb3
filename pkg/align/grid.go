package align

import "math"

// BuildGrid returns the reference grid for the window [start, end] with
// spacing period. The first point is the smallest multiple of period (from
// the Unix epoch) that is >= start; points follow at exactly period until
// the last one is >= end. maxPoints <= 0 disables the size check.
func BuildGrid(start, end, period float64, maxPoints int) ([]float64, error) {
	n, first, err := gridSize(start, end, period)
	if err != nil {
		return nil, err
	}
	if maxPoints > 0 && n > maxPoints {
		return nil, invalidf("grid of %d points exceeds limit of %d", n, maxPoints)
	}

	grid := make([]float64, n)
	for i := range grid {
		grid[i] = first + float64(i)*period
	}
	return grid, nil
}

// GridSize returns the number of points BuildGrid would produce without
// materializing them.
func GridSize(start, end, period float64) (int, error) {
	n, _, err := gridSize(start, end, period)
	return n, err
}

func gridSize(start, end, period float64) (int, float64, error) {
	if !finite(period) || period <= 0 {
		return 0, 0, invalidf("grid period must be > 0, got %v", period)
	}
	if !finite(start) || !finite(end) {
		return 0, 0, invalidf("grid window must be finite, got [%v, %v]", start, end)
	}
	if end < start {
		return 0, 0, invalidf("grid window end %v is before start %v", end, start)
	}

	first := math.Ceil(start/period) * period
	if first >= end {
		return 1, first, nil
	}
	steps := math.Ceil((end - first) / period)
	if steps > math.MaxInt32 {
		return 0, 0, invalidf("grid window [%v, %v] too large for period %v", start, end, period)
	}
	return int(steps) + 1, first, nil
}
