package align

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput reports a caller programming error: empty required
	// set, unknown stream, non-positive period, malformed window or
	// inconsistent thresholds.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSchema reports a raw table whose timestamp or value column cannot
	// be located.
	ErrSchema = errors.New("schema error")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func schemaf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSchema, fmt.Sprintf(format, args...))
}
