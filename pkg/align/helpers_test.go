package align

import (
	"math"
	"testing"
)

var null = math.NaN()

func stream(role string, times []float64, values []float64) Stream {
	samples := make([]Sample, len(times))
	for i := range times {
		samples[i] = Sample{Time: times[i], Value: values[i]}
	}
	return Stream{Name: role, Role: role, Samples: samples}
}

func equalFloats(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func mustEngine(t *testing.T, mutate func(*Config)) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e
}

func defaultThresholds() Thresholds {
	return DefaultConfig().Thresholds()
}
