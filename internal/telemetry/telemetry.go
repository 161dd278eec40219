// Package telemetry provides optional per-device enrichment for classified
// printers. An Enricher may fill in model, serial number, location, and
// consumable levels; when unavailable or failing it contributes nothing and
// classification proceeds with defaults.
package telemetry

import "context"

// Info is a sparse set of optional device fields. A nil field means the
// enricher learned nothing for it and must not overwrite an existing value.
type Info struct {
	Model        *string
	SerialNumber *string
	Location     *string
	TonerBlack   *int
	TonerCyan    *int
	TonerMagenta *int
	TonerYellow  *int
}

// Enricher queries vendor telemetry for one device. Implementations must
// confine failures to the returned error; callers treat any error as "no
// enrichment available".
type Enricher interface {
	Collect(ctx context.Context, ip string) (*Info, error)
}

// Noop is the disabled enrichment path: it never returns data.
type Noop struct{}

// Collect always reports that no telemetry is available.
func (Noop) Collect(ctx context.Context, ip string) (*Info, error) {
	return &Info{}, nil
}
