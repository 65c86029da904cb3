package align

import "sort"

// Index is the sorted, de-duplicated set of valid instants of one stream.
// Samples with a NaN or infinite Time are excluded; samples with a null
// Value keep their instant.
type Index struct {
	times []float64
}

// NewIndex builds the index of a sample sequence. The input is not modified.
func NewIndex(samples []Sample) *Index {
	times := make([]float64, 0, len(samples))
	for _, s := range samples {
		if finite(s.Time) {
			times = append(times, s.Time)
		}
	}
	sort.Float64s(times)
	return &Index{times: dedupSorted(times)}
}

// Times returns the instants in ascending order. The slice must not be
// modified by the caller.
func (ix *Index) Times() []float64 { return ix.times }

// Len returns the number of distinct instants.
func (ix *Index) Len() int { return len(ix.times) }

// Contains reports whether t is one of the instants.
func (ix *Index) Contains(t float64) bool {
	i := sort.SearchFloat64s(ix.times, t)
	return i < len(ix.times) && ix.times[i] == t
}

// Span returns the first and last instant; ok is false for an empty index.
func (ix *Index) Span() (first, last float64, ok bool) {
	if len(ix.times) == 0 {
		return 0, 0, false
	}
	return ix.times[0], ix.times[len(ix.times)-1], true
}

func dedupSorted(times []float64) []float64 {
	if len(times) < 2 {
		return times
	}
	out := times[:1]
	for _, t := range times[1:] {
		if t != out[len(out)-1] {
			out = append(out, t)
		}
	}
	return out
}

// prepare returns the stream's samples with valid times, sorted ascending
// with one sample per instant: the first non-null one, or the first one when
// every duplicate is null. When withValues is true null-valued samples are
// dropped as well.
func prepare(samples []Sample, withValues bool) []Sample {
	out := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if !finite(s.Time) {
			continue
		}
		if withValues && s.IsNull() {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })

	if len(out) < 2 {
		return out
	}
	dedup := out[:1]
	for _, s := range out[1:] {
		last := &dedup[len(dedup)-1]
		if s.Time != last.Time {
			dedup = append(dedup, s)
			continue
		}
		if last.IsNull() && !s.IsNull() {
			*last = s
		}
	}
	return dedup
}
