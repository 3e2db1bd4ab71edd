package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/septivank/water-metering-sync/internal/batch"
	"github.com/septivank/water-metering-sync/internal/metrics"
)

// ErrRunInProgress is returned when another run of the same job holds the lock
var ErrRunInProgress = errors.New("a run of this job is already in progress")

// SourceFetchError reports a source that could not be read. Nothing has been
// written when it is returned.
type SourceFetchError struct {
	Source string
	Err    error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %v", e.Source, e.Err)
}

func (e *SourceFetchError) Unwrap() error {
	return e.Err
}

// Outcome classifies a run error into a low-cardinality metrics label
func Outcome(err error) string {
	var fetchErr *SourceFetchError
	var writeErr *batch.BatchWriteError
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrRunInProgress):
		return metrics.OutcomeInProgress
	case errors.As(err, &fetchErr):
		return metrics.OutcomeSourceFetch
	case errors.As(err, &writeErr):
		return metrics.OutcomeBatchWrite
	case errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeDeadline
	default:
		return metrics.OutcomeUnknown
	}
}
