package content

import "errors"

// Domain errors for the content package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, content.ErrUnknownContent) {
//	    // content was never offered or has been removed
//	}
var (
	// ErrUnknownContent is returned when a content ID is not registered.
	ErrUnknownContent = errors.New("content: unknown content")

	// ErrUnknownCategory is returned when a category ID is not configured.
	ErrUnknownCategory = errors.New("content: unknown category")

	// ErrNoSceneBound is returned when an operation needs the content's scene
	// but no description has been received for it yet.
	ErrNoSceneBound = errors.New("content: no scene bound, wait for content description")

	// ErrContentShown is returned when readiness is requested for a shown content.
	ErrContentShown = errors.New("content: already shown")

	// ErrNotReady is returned when the provider has not reported the content ready.
	ErrNotReady = errors.New("content: not ready")

	// ErrNotShown is returned when hiding a content that was never made ready or shown.
	ErrNotShown = errors.New("content: not shown")

	// ErrTimestampRegressed is returned when Update is called with a timestamp
	// older than the previous one.
	ErrTimestampRegressed = errors.New("content: timestamp older than previous update")

	// ErrInvalidConfig is returned when the controller configuration is invalid.
	ErrInvalidConfig = errors.New("content: invalid config")
)
