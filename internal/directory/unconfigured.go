package directory

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by Unconfigured on every lookup
var ErrNotConfigured = errors.New("building directory not configured: set AIRTABLE_ACCESS_TOKEN and AIRTABLE_BASE_ID")

// Unconfigured stands in for Airtable when no credentials are set
type Unconfigured struct{}

func (Unconfigured) Buildings(ctx context.Context) ([]Building, error) {
	return nil, ErrNotConfigured
}
