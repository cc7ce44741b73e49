package variability

import "errors"

// Error kinds. Every failure in the pipeline wraps one of these; none are
// recoverable and a failed key fails the report section that asked for it.
var (
	// ErrInconsistent marks a violated statistical or bookkeeping invariant,
	// e.g. a rotation count mismatch or a non-finite median.
	ErrInconsistent = errors.New("inconsistent variability computation")

	// ErrMissingData marks input that a computation needs but that the
	// simulation or event store does not have.
	ErrMissingData = errors.New("missing simulation data")

	// ErrConfig marks an invalid configuration detected before computing.
	ErrConfig = errors.New("invalid variability configuration")
)
