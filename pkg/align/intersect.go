package align

import "math"

// CommonTimestamps returns the ascending instants present in every required
// stream.
//
// With tolerance == 0 it is the exact set intersection of the streams'
// indexes. With tolerance > 0 the result depends on mode; see MatchReference
// and MatchSymmetric. In both modes a zero tolerance yields the exact
// intersection. An empty result is not an error.
func CommonTimestamps(streams map[string]Stream, required []string, tolerance float64, mode ToleranceMode) ([]float64, error) {
	indexes, err := requiredIndexes(streams, required)
	if err != nil {
		return nil, err
	}
	if !finite(tolerance) || tolerance < 0 {
		return nil, invalidf("tolerance must be finite and >= 0, got %v", tolerance)
	}
	mode, err = ParseToleranceMode(string(mode))
	if err != nil {
		return nil, err
	}

	if tolerance == 0 {
		return intersectExact(indexes), nil
	}
	if mode == MatchSymmetric {
		return intersectSymmetric(indexes, tolerance), nil
	}
	return intersectReference(indexes, tolerance), nil
}

func requiredIndexes(streams map[string]Stream, required []string) ([]*Index, error) {
	if len(required) == 0 {
		return nil, invalidf("required signals cannot be empty")
	}
	seen := make(map[string]bool, len(required))
	indexes := make([]*Index, 0, len(required))
	for _, name := range required {
		if seen[name] {
			return nil, invalidf("required signal %q listed twice", name)
		}
		seen[name] = true

		s, ok := streams[name]
		if !ok {
			return nil, invalidf("required signal %q not found in streams", name)
		}
		indexes = append(indexes, NewIndex(s.Samples))
	}
	return indexes, nil
}

// intersectExact walks the smallest index and looks each instant up in the others.
func intersectExact(indexes []*Index) []float64 {
	smallest := 0
	for i, ix := range indexes {
		if ix.Len() < indexes[smallest].Len() {
			smallest = i
		}
	}

	out := make([]float64, 0, indexes[smallest].Len())
	for _, t := range indexes[smallest].Times() {
		keep := true
		for i, ix := range indexes {
			if i != smallest && !ix.Contains(t) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, t)
		}
	}
	return out
}

// intersectReference keeps an instant of indexes[0] when every other index
// has an instant within tol of it. One forward cursor per other stream makes
// the scan linear in the total number of instants.
func intersectReference(indexes []*Index, tol float64) []float64 {
	ref := indexes[0].Times()
	others := indexes[1:]
	cursors := make([]int, len(others))

	out := make([]float64, 0, len(ref))
	for _, t := range ref {
		keep := true
		for k, ix := range others {
			times := ix.Times()
			c := cursors[k]
			for c < len(times) && times[c] < t-tol {
				c++
			}
			cursors[k] = c
			if c >= len(times) || times[c] > t+tol {
				keep = false
			}
		}
		if keep {
			out = append(out, t)
		}
	}
	return out
}

// intersectSymmetric merges all indexes at once. While every cursor is in
// range it compares the smallest and largest head: a spread within tol
// emits the smallest head and advances every cursor, otherwise the cursors
// holding the smallest head advance.
func intersectSymmetric(indexes []*Index, tol float64) []float64 {
	cursors := make([]int, len(indexes))
	out := []float64{}

	for {
		lo, hi := math.Inf(1), math.Inf(-1)
		for k, ix := range indexes {
			times := ix.Times()
			if cursors[k] >= len(times) {
				return out
			}
			h := times[cursors[k]]
			lo = math.Min(lo, h)
			hi = math.Max(hi, h)
		}

		if hi-lo <= tol {
			out = append(out, lo)
			for k := range cursors {
				cursors[k]++
			}
			continue
		}

		for k, ix := range indexes {
			if ix.Times()[cursors[k]] == lo {
				cursors[k]++
			}
		}
	}
}
