// Package storage keeps the latest synchronized snapshot of every site.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/HatiCode/tempalign/pkg/align"
)

// Snapshot is the outcome of one synchronization run for one site.
type Snapshot struct {
	Site        string     `json:"site"`
	RunID       string     `json:"run_id"`
	GeneratedAt time.Time  `json:"generated_at"`
	Mode        align.Mode `json:"mode"`

	Table      *align.Table           `json:"table"`
	Coverage   align.CoverageReport   `json:"coverage"`
	Validation align.ValidationResult `json:"validation"`

	// Dropped lists optional streams left out of this run because they
	// could not be collected or resolved.
	Dropped []string `json:"dropped,omitempty"`
}

// NewSnapshot wraps an alignment outcome with a fresh run identifier.
func NewSnapshot(site string, generatedAt time.Time, out *align.Outcome) Snapshot {
	return Snapshot{
		Site:        site,
		RunID:       uuid.NewString(),
		GeneratedAt: generatedAt.UTC(),
		Mode:        out.Table.Mode,
		Table:       out.Table,
		Coverage:    out.Coverage,
		Validation:  out.Validation,
	}
}

// Store persists the latest snapshot per site.
type Store interface {
	Put(ctx context.Context, snapshot Snapshot) error
	GetLatest(ctx context.Context, site string) (Snapshot, bool, error)
}

// ValidateSite checks that a site name is usable as a storage key:
// non-empty, alphanumeric plus hyphens, underscores and dots.
func ValidateSite(site string) error {
	if site == "" {
		return errors.New("site name required")
	}
	for _, c := range site {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') || c == '-' || c == '_' || c == '.') {
			return fmt.Errorf("invalid site name %q: only alphanumeric, hyphens, underscores and dots allowed", site)
		}
	}
	return nil
}

func snapshotKey(site string) string {
	return "tempalign:snapshot:" + site
}
