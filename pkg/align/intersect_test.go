package align

import (
	"errors"
	"math"
	"math/rand/v2"
	"sort"
	"testing"
)

func TestNewIndex(t *testing.T) {
	ix := NewIndex([]Sample{
		{Time: 300, Value: 1},
		{Time: 100, Value: 2},
		{Time: null, Value: 3},
		{Time: 200, Value: null},
		{Time: 100, Value: 4},
	})

	want := []float64{100, 200, 300}
	if !equalFloats(ix.Times(), want) {
		t.Errorf("Times() = %v, want %v", ix.Times(), want)
	}
	if !ix.Contains(200) {
		t.Error("Contains(200) = false, want true (null values keep their instant)")
	}
	if ix.Contains(150) {
		t.Error("Contains(150) = true, want false")
	}
	first, last, ok := ix.Span()
	if !ok || first != 100 || last != 300 {
		t.Errorf("Span() = %v, %v, %v, want 100, 300, true", first, last, ok)
	}

	if _, _, ok := NewIndex(nil).Span(); ok {
		t.Error("Span() of empty index reported ok")
	}
}

func TestCommonTimestamps_Errors(t *testing.T) {
	streams := map[string]Stream{
		"CHWST": stream("CHWST", []float64{100}, []float64{1}),
	}

	tests := []struct {
		name      string
		required  []string
		tolerance float64
	}{
		{"empty required", nil, 0},
		{"unknown stream", []string{"CHWST", "CHWRT"}, 0},
		{"duplicate stream", []string{"CHWST", "CHWST"}, 0},
		{"negative tolerance", []string{"CHWST"}, -1},
		{"nan tolerance", []string{"CHWST"}, null},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CommonTimestamps(streams, tt.required, tt.tolerance, MatchReference)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("error = %v, want ErrInvalidInput", err)
			}
			if got != nil {
				t.Errorf("result = %v, want nil on error", got)
			}
		})
	}
}

func TestCommonTimestamps_Exact(t *testing.T) {
	tests := []struct {
		name     string
		streams  map[string]Stream
		required []string
		want     []float64
	}{
		{
			name: "full overlap",
			streams: map[string]Stream{
				"CHWST": stream("CHWST", []float64{100, 200, 300}, []float64{10, 11, 12}),
				"CHWRT": stream("CHWRT", []float64{100, 200, 300}, []float64{15, 16, 17}),
			},
			required: []string{"CHWST", "CHWRT"},
			want:     []float64{100, 200, 300},
		},
		{
			name: "partial overlap",
			streams: map[string]Stream{
				"CHWST": stream("CHWST", []float64{100, 200, 300, 400}, []float64{1, 2, 3, 4}),
				"CHWRT": stream("CHWRT", []float64{100, 150, 200, 300}, []float64{1, 2, 3, 4}),
			},
			required: []string{"CHWST", "CHWRT"},
			want:     []float64{100, 200, 300},
		},
		{
			name: "disjoint",
			streams: map[string]Stream{
				"CHWST": stream("CHWST", []float64{100, 200}, []float64{1, 2}),
				"CHWRT": stream("CHWRT", []float64{150, 250}, []float64{1, 2}),
			},
			required: []string{"CHWST", "CHWRT"},
			want:     []float64{},
		},
		{
			name: "unsorted with duplicates",
			streams: map[string]Stream{
				"A": stream("A", []float64{300, 100, 300, 200}, []float64{1, 2, 3, 4}),
				"B": stream("B", []float64{200, 300, 300}, []float64{1, 2, 3}),
			},
			required: []string{"A", "B"},
			want:     []float64{200, 300},
		},
		{
			name: "optional stream ignored",
			streams: map[string]Stream{
				"A": stream("A", []float64{1, 2}, []float64{1, 2}),
				"B": stream("B", []float64{3}, []float64{1}),
			},
			required: []string{"A"},
			want:     []float64{1, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CommonTimestamps(tt.streams, tt.required, 0, MatchReference)
			if err != nil {
				t.Fatalf("CommonTimestamps() error = %v", err)
			}
			if got == nil || !equalFloats(got, tt.want) {
				t.Errorf("CommonTimestamps() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCommonTimestamps_Tolerance(t *testing.T) {
	streams := map[string]Stream{
		"A": stream("A", []float64{100, 200, 300}, []float64{1, 2, 3}),
		"B": stream("B", []float64{95, 230, 304}, []float64{1, 2, 3}),
	}

	got, err := CommonTimestamps(streams, []string{"A", "B"}, 10, MatchReference)
	if err != nil {
		t.Fatalf("error = %v", err)
	}
	if want := []float64{100, 300}; !equalFloats(got, want) {
		t.Errorf("reference A,B = %v, want %v", got, want)
	}

	// Anchored on B the reference instants are B's own.
	got, _ = CommonTimestamps(streams, []string{"B", "A"}, 10, MatchReference)
	if want := []float64{95, 304}; !equalFloats(got, want) {
		t.Errorf("reference B,A = %v, want %v", got, want)
	}

	ab, _ := CommonTimestamps(streams, []string{"A", "B"}, 10, MatchSymmetric)
	ba, _ := CommonTimestamps(streams, []string{"B", "A"}, 10, MatchSymmetric)
	if want := []float64{95, 300}; !equalFloats(ab, want) {
		t.Errorf("symmetric = %v, want %v", ab, want)
	}
	if !equalFloats(ab, ba) {
		t.Errorf("symmetric depends on order: %v vs %v", ab, ba)
	}
}

func TestCommonTimestamps_ZeroToleranceMatchesExact(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	for iter := 0; iter < 200; iter++ {
		n := 2 + rng.IntN(3)
		streams := make(map[string]Stream, n)
		required := make([]string, n)
		sets := make([]map[float64]bool, n)
		for k := 0; k < n; k++ {
			name := string(rune('A' + k))
			required[k] = name
			sets[k] = map[float64]bool{}
			m := rng.IntN(40)
			times := make([]float64, m)
			for i := range times {
				times[i] = float64(rng.IntN(60))
				sets[k][times[i]] = true
			}
			streams[name] = stream(name, times, make([]float64, m))
		}

		var truth []float64
		for v := range sets[0] {
			in := true
			for k := 1; k < n; k++ {
				in = in && sets[k][v]
			}
			if in {
				truth = append(truth, v)
			}
		}
		sort.Float64s(truth)

		exact, err := CommonTimestamps(streams, required, 0, MatchReference)
		if err != nil {
			t.Fatalf("error = %v", err)
		}
		if !equalFloats(exact, truth) {
			t.Fatalf("iteration %d: exact = %v, want %v", iter, exact, truth)
		}

		indexes, _ := requiredIndexes(streams, required)
		if ref := intersectReference(indexes, 0); !equalFloats(ref, exact) {
			t.Fatalf("iteration %d: reference(0) = %v, want %v", iter, ref, exact)
		}
		if sym := intersectSymmetric(indexes, 0); !equalFloats(sym, exact) {
			t.Fatalf("iteration %d: symmetric(0) = %v, want %v", iter, sym, exact)
		}
	}
}

// referenceNaive keeps each instant of the first stream that has a
// neighbor within tol in every other stream, scanning every sample.
func referenceNaive(streams map[string]Stream, required []string, tol float64) []float64 {
	var out []float64
	for _, ref := range NewIndex(streams[required[0]].Samples).Times() {
		keep := true
		for _, name := range required[1:] {
			near := false
			for _, s := range streams[name].Samples {
				if math.Abs(s.Time-ref) <= tol {
					near = true
					break
				}
			}
			keep = keep && near
		}
		if keep {
			out = append(out, ref)
		}
	}
	return out
}

func TestCommonTimestamps_ReferenceMatchesNaive(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))

	for iter := 0; iter < 300; iter++ {
		n := 2 + rng.IntN(3)
		streams := make(map[string]Stream, n)
		required := make([]string, n)
		for k := 0; k < n; k++ {
			name := string(rune('A' + k))
			required[k] = name
			m := rng.IntN(40)
			times := make([]float64, m)
			for i := range times {
				times[i] = float64(rng.IntN(600))
			}
			streams[name] = stream(name, times, make([]float64, m))
		}
		tol := float64(rng.IntN(30))

		got, err := CommonTimestamps(streams, required, tol, MatchReference)
		if err != nil {
			t.Fatalf("iteration %d: error = %v", iter, err)
		}
		if want := referenceNaive(streams, required, tol); !equalFloats(got, want) {
			t.Fatalf("iteration %d (tol %v): got %v, want %v", iter, tol, got, want)
		}
	}
}
