package recogo

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrRegistryRequired is returned by New when no registry is given.
	ErrRegistryRequired = errors.New("recogo: registry required")

	// ErrNoFitter is returned by New when the fitter was explicitly set to
	// nil.
	ErrNoFitter = errors.New("recogo: no fitter configured")

	// ErrNoIndexBuilder is returned by New when the index builder was
	// explicitly set to nil.
	ErrNoIndexBuilder = errors.New("recogo: no index builder configured")

	// ErrInvalidCandidateCount is returned by Detect when a negative
	// candidate count is requested.
	ErrInvalidCandidateCount = errors.New("recogo: candidate count must not be negative")

	// ErrDetectionAborted is returned when a detection call is cut short,
	// typically by context cancellation. The underlying cause is available
	// via errors.Is/errors.As.
	ErrDetectionAborted = errors.New("recogo: detection aborted")
)

// ErrInvalidMergeThreshold indicates a merge threshold that is not a
// non-negative distance.
type ErrInvalidMergeThreshold struct {
	Threshold float64
}

func (e *ErrInvalidMergeThreshold) Error() string {
	return fmt.Sprintf("recogo: invalid merge threshold: %v", e.Threshold)
}

// translateError normalizes pipeline errors at the facade boundary.
// Cancellation keeps its context error in the chain so callers can test for
// either sentinel.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrDetectionAborted, err)
	}

	return err
}
