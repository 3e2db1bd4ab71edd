package sheets

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by Unconfigured on every read
var ErrNotConfigured = errors.New("sheets source not configured: set GOOGLE_CREDENTIALS")

// Unconfigured stands in for the Google source when no credentials are set,
// so the service still starts and sync runs fail with a fetch error.
type Unconfigured struct{}

func (Unconfigured) Rows(ctx context.Context, spreadsheetID, rng string) ([][]string, error) {
	return nil, ErrNotConfigured
}
