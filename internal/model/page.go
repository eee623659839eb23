package model

import "time"

// PageResult is the outcome of one fetch attempt during a traversal.
// A PageResult is created once by the traversal and never mutated after it
// has been emitted.
//
// Failed fetches are still PageResults: Success is false and ErrorMessage
// carries the reason. They count toward the page cap like successful ones.
type PageResult struct {
	// URL is the normalized URL that was fetched.
	URL string `json:"url"`

	// Depth is the link distance from the seed (seed = 0).
	Depth int `json:"depth"`

	// Score is the relevance score assigned when the URL was discovered.
	// Seeds and runs without keywords always have score 0.
	Score float64 `json:"score"`

	// StatusCode is the HTTP status reported by the fetch service, 0 if unknown.
	StatusCode int `json:"status_code,omitempty"`

	// Markdown is the main content rendered as Markdown.
	Markdown string `json:"markdown,omitempty"`

	// HTML is the raw (or rendered) HTML document.
	HTML string `json:"-"`

	// Links are the hyperlinks found on the page, before any filtering.
	Links []LinkCandidate `json:"links,omitempty"`

	// ConsoleLog holds browser console output when the fetch service captured it.
	ConsoleLog []string `json:"console_log,omitempty"`

	// FetchedAt is when the fetch attempt finished.
	FetchedAt time.Time `json:"fetched_at"`

	// Success is false when the fetch attempt failed.
	Success bool `json:"success"`

	// ErrorMessage describes the failure when Success is false.
	ErrorMessage string `json:"error,omitempty"`
}
