package compositor

import "errors"

var (
	// ErrNotRunning is returned by Do when the runner has stopped.
	ErrNotRunning = errors.New("compositor: runner not running")

	// ErrInvalidInterval is returned for a non-positive tick interval.
	ErrInvalidInterval = errors.New("compositor: tick interval must be positive")
)
