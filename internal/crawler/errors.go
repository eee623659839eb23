package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrFetcherUnavailable must be wrapped by a Fetcher when the fetch
	// service itself is unusable (for example the browser cannot start),
	// as opposed to a single page failing. It moves the traversal to the
	// Failed state.
	ErrFetcherUnavailable = errors.New("fetch service unavailable")

	// ErrUnsupportedScheme is returned for URLs that are not http or https.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")

	// ErrEmptyHost is returned for URLs without a host.
	ErrEmptyHost = errors.New("URL has no host")
)

// WorkerFault reports that a traversal stopped because the fetch service
// became unusable or panicked. Pages gathered before the fault are still
// delivered.
type WorkerFault struct {
	// Seed is the seed URL of the failed traversal.
	Seed string
	// URL is the page being fetched when the fault happened.
	URL string
	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *WorkerFault) Error() string {
	return fmt.Sprintf("worker fault for seed %s at %s: %v", e.Seed, e.URL, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *WorkerFault) Unwrap() error {
	return e.Cause
}
