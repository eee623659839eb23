package fetch

import "errors"

var (
	// ErrHTTPStatus is returned for responses with status 400 or above.
	// The FetchResult returned alongside it carries the status code.
	ErrHTTPStatus = errors.New("unexpected HTTP status")

	// ErrRobotsDisallowed is returned when robots.txt forbids the URL.
	ErrRobotsDisallowed = errors.New("disallowed by robots.txt")

	// ErrUnsupportedContent is returned for bodies that are neither HTML
	// nor plain text.
	ErrUnsupportedContent = errors.New("unsupported content type")

	// ErrBrowserNotFound is returned when no Chrome executable can be
	// located. Renderer wraps it together with crawler.ErrFetcherUnavailable.
	ErrBrowserNotFound = errors.New("chrome executable not found")
)
