// Package align implements the multi-stream temporal alignment engine.
//
// It takes already-parsed per-stream samples and produces a single
// synchronized table in which every row is one instant and every stream
// contributes either a value or an explicit MISSING marker, together with a
// coverage report and a threshold validation.
//
// The engine runs in two modes:
//   - ModeGrid aligns every stream to a uniform reference grid with a
//     two-pointer nearest-neighbor scan and classifies each match as
//     EXACT, CLOSE, INTERP or MISSING.
//   - ModeJoin inner-joins the required streams on their common instants
//     (exact or tolerance-bounded) without interpolation.
//
// The package is pure: no I/O, no logging, no clocks. Callers wrap it with
// collection, persistence and transport.
package align

import "math"

// Sample is one raw reading. Time is seconds since the Unix epoch.
// A NaN or infinite Value marks an absent reading.
type Sample struct {
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

// IsNull reports whether the sample carries no value.
func (s Sample) IsNull() bool { return !finite(s.Value) }

// Stream is a named sequence of samples with a role such as "CHWST" or
// "POWER". The engine only reads it.
type Stream struct {
	Name    string   `json:"name"`
	Role    string   `json:"role"`
	Samples []Sample `json:"samples"`
}

// Column returns the value column name used for the stream in a table.
func (s Stream) Column() string {
	if s.Role != "" {
		return s.Role
	}
	return s.Name
}

// Quality tags how well a raw sample matches a table instant.
type Quality string

const (
	QualityExact   Quality = "EXACT"
	QualityClose   Quality = "CLOSE"
	QualityInterp  Quality = "INTERP"
	QualityMissing Quality = "MISSING"
)

// Result is the alignment of one stream at one instant.
// Value and DistanceSeconds are nil exactly when Quality is QualityMissing.
type Result struct {
	Value           *float64 `json:"value"`
	Quality         Quality  `json:"quality"`
	DistanceSeconds *float64 `json:"distance_s"`
}

func missing() Result {
	return Result{Quality: QualityMissing}
}

func matched(q Quality, value, distance float64) Result {
	return Result{Value: &value, Quality: q, DistanceSeconds: &distance}
}

// Mode selects how the synchronized table is assembled.
type Mode string

const (
	ModeGrid Mode = "grid"
	ModeJoin Mode = "join"
)

// ParseMode parses "grid" or "join". The empty string means ModeGrid.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeGrid:
		return ModeGrid, nil
	case ModeJoin:
		return ModeJoin, nil
	default:
		return "", invalidf("unknown mode %q (must be grid or join)", s)
	}
}

// Window is an explicit observation window in seconds since the Unix epoch.
type Window struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
