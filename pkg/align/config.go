package align

import (
	"runtime"
)

// ToleranceMode selects how tolerance-bounded intersections are computed.
type ToleranceMode string

const (
	// MatchReference anchors on the first required stream and keeps a
	// reference instant when every other required stream has an instant
	// within the tolerance. Reordering the required list can change the
	// result when tolerance > 0.
	MatchReference ToleranceMode = "reference"

	// MatchSymmetric merges all required streams at once and emits the
	// earliest instant of every tuple whose spread is within the tolerance.
	// The result does not depend on the order of the required list.
	MatchSymmetric ToleranceMode = "symmetric"
)

// ParseToleranceMode parses "reference" or "symmetric". The empty string
// means MatchReference.
func ParseToleranceMode(s string) (ToleranceMode, error) {
	switch ToleranceMode(s) {
	case "", MatchReference:
		return MatchReference, nil
	case MatchSymmetric:
		return MatchSymmetric, nil
	default:
		return "", invalidf("unknown tolerance mode %q (must be reference or symmetric)", s)
	}
}

// Thresholds are the ascending distance bounds used to classify a match.
type Thresholds struct {
	ExactSeconds  float64 `json:"exact_s"`
	CloseSeconds  float64 `json:"close_s"`
	InterpSeconds float64 `json:"interp_s"`
}

// Validate checks that the bounds are finite, non-negative and ascending.
func (t Thresholds) Validate() error {
	for _, v := range []float64{t.ExactSeconds, t.CloseSeconds, t.InterpSeconds} {
		if !finite(v) || v < 0 {
			return invalidf("alignment thresholds must be finite and >= 0, got %v", t)
		}
	}
	if t.ExactSeconds > t.CloseSeconds || t.CloseSeconds > t.InterpSeconds {
		return invalidf("alignment thresholds must ascend exact <= close <= interp, got %v/%v/%v",
			t.ExactSeconds, t.CloseSeconds, t.InterpSeconds)
	}
	return nil
}

// Limits are the acceptance thresholds applied by Validate.
type Limits struct {
	MinRows        int     `json:"min_rows"`
	MinCoveragePct float64 `json:"min_coverage_pct"`
}

// Config carries every tunable of one alignment run. A Config is passed to
// NewEngine explicitly; the package holds no global settings.
type Config struct {
	// TimestampToleranceSeconds bounds approximate matching in join mode.
	// Zero selects exact intersection. It may not exceed
	// CloseThresholdSeconds, so a join match is always EXACT or CLOSE.
	TimestampToleranceSeconds float64
	ToleranceMode             ToleranceMode

	// NominalPeriodSeconds is the reference grid spacing.
	NominalPeriodSeconds float64

	ExactThresholdSeconds  float64
	CloseThresholdSeconds  float64
	InterpThresholdSeconds float64

	MinRows        int
	MinCoveragePct float64

	// ValueColumnStrategies is the ordered list tried by ResolveStream when
	// a ColumnSpec does not carry its own.
	ValueColumnStrategies []ColumnStrategy

	// Workers bounds how many streams are aligned concurrently.
	Workers int

	// MaxGridPoints rejects windows that would materialize larger grids.
	MaxGridPoints int
}

// DefaultConfig returns the defaults used for 15-minute HVAC telemetry.
func DefaultConfig() Config {
	return Config{
		TimestampToleranceSeconds: 0,
		ToleranceMode:             MatchReference,
		NominalPeriodSeconds:      900,
		ExactThresholdSeconds:     60,
		CloseThresholdSeconds:     300,
		InterpThresholdSeconds:    1800,
		MinRows:                   10,
		MinCoveragePct:            80,
		ValueColumnStrategies:     DefaultColumnStrategies(),
		Workers:                   runtime.NumCPU(),
		MaxGridPoints:             1_000_000,
	}
}

// Thresholds returns the classification bounds of the configuration.
func (c Config) Thresholds() Thresholds {
	return Thresholds{
		ExactSeconds:  c.ExactThresholdSeconds,
		CloseSeconds:  c.CloseThresholdSeconds,
		InterpSeconds: c.InterpThresholdSeconds,
	}
}

// Limits returns the acceptance thresholds of the configuration.
func (c Config) Limits() Limits {
	return Limits{MinRows: c.MinRows, MinCoveragePct: c.MinCoveragePct}
}

// Validate checks the configuration and fills zero-valued optional fields.
func (c *Config) Validate() error {
	if !finite(c.TimestampToleranceSeconds) || c.TimestampToleranceSeconds < 0 {
		return invalidf("timestamp tolerance must be finite and >= 0, got %v", c.TimestampToleranceSeconds)
	}
	mode, err := ParseToleranceMode(string(c.ToleranceMode))
	if err != nil {
		return err
	}
	c.ToleranceMode = mode

	if !finite(c.NominalPeriodSeconds) || c.NominalPeriodSeconds <= 0 {
		return invalidf("nominal period must be > 0, got %v", c.NominalPeriodSeconds)
	}
	if err := c.Thresholds().Validate(); err != nil {
		return err
	}
	if c.TimestampToleranceSeconds > c.CloseThresholdSeconds {
		return invalidf("timestamp tolerance %v exceeds the close threshold %v", c.TimestampToleranceSeconds, c.CloseThresholdSeconds)
	}
	if c.MinRows < 0 {
		return invalidf("min rows cannot be negative, got %d", c.MinRows)
	}
	if !finite(c.MinCoveragePct) || c.MinCoveragePct < 0 || c.MinCoveragePct > 100 {
		return invalidf("min coverage must be within [0, 100], got %v", c.MinCoveragePct)
	}

	if len(c.ValueColumnStrategies) == 0 {
		c.ValueColumnStrategies = DefaultColumnStrategies()
	}
	for _, s := range c.ValueColumnStrategies {
		if _, err := ParseColumnStrategy(string(s)); err != nil {
			return err
		}
	}

	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.MaxGridPoints <= 0 {
		c.MaxGridPoints = 1_000_000
	}
	return nil
}
