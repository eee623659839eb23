package config

import (
	"errors"
	"fmt"
)

// Traversal validation errors.
// They are always returned wrapped in a *ValidationError, so callers can
// use errors.As for the category and errors.Is for the specific rule.
var (
	// ErrInvalidMaxDepth is returned when MaxDepth is outside 1..MaxAllowedDepth.
	ErrInvalidMaxDepth = fmt.Errorf("invalid max depth: must be between 1 and %d", MaxAllowedDepth)

	// ErrInvalidMaxPages is returned when MaxPages is outside 1..MaxAllowedPages.
	ErrInvalidMaxPages = fmt.Errorf("invalid max pages: must be between 1 and %d", MaxAllowedPages)

	// ErrUnknownStrategy is returned for a strategy value that is not BFS, DFS or BestFirst.
	ErrUnknownStrategy = errors.New("unknown traversal strategy")

	// ErrInvalidKeyword is returned for an empty keyword term or a weight outside [0, 1].
	ErrInvalidKeyword = errors.New("invalid keyword: term must be non-empty and weight within [0, 1]")

	// ErrThresholdWithoutKeywords is returned when a positive score threshold
	// is set but there are no keywords to score against.
	ErrThresholdWithoutKeywords = errors.New("score threshold requires at least one keyword")

	// ErrInvalidThreshold is returned when the score threshold is NaN or infinite.
	ErrInvalidThreshold = errors.New("invalid score threshold: must be a finite number")

	// ErrConflictingDomains is returned when a domain is both allowed and blocked.
	ErrConflictingDomains = errors.New("conflicting domains: a domain cannot be both allowed and blocked")

	// ErrInvalidPattern is returned for an empty URL pattern.
	ErrInvalidPattern = errors.New("invalid url pattern: must be non-empty")
)

// Application configuration errors, returned by Config.Validate.
var (
	// ErrNoSeed is returned when no seed URL or list file is specified.
	ErrNoSeed = errors.New("no seed specified: provide a URL or use --list")

	// ErrInvalidTimeout is returned when the fetch timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidDelay is returned when the page delay is outside 0..MaxDelaySeconds.
	ErrInvalidDelay = fmt.Errorf("invalid delay: must be between 0 and %d seconds", MaxDelaySeconds)

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidRate is returned when the per-host request rate is negative.
	ErrInvalidRate = errors.New("invalid request rate: must be non-negative")

	// ErrInvalidSkipRecent is returned when the skip-recent window is negative.
	ErrInvalidSkipRecent = errors.New("invalid skip-recent window: must be non-negative")

	// ErrUnknownEngine is returned for an engine other than "http" or "chrome".
	ErrUnknownEngine = errors.New("unknown engine: must be \"http\" or \"chrome\"")

	// ErrProfileNotFound is returned when --profile names a profile that the
	// configuration file does not define.
	ErrProfileNotFound = errors.New("profile not found in configuration file")
)

// ValidationError reports a configuration value rejected before any fetch.
type ValidationError struct {
	// Field is the name of the offending setting.
	Field string
	// Err is one of the sentinel errors of this package.
	Err error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

// Unwrap returns the underlying sentinel error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}
