package model

// BrowserOptions are passed unchanged to the fetch service for every page.
// The orchestration engine never interprets them.
type BrowserOptions struct {
	// Headless runs the browser without a visible window.
	Headless bool `json:"headless" yaml:"headless"`

	// Verbose enables fetch-level debug logging.
	Verbose bool `json:"verbose" yaml:"verbose"`

	// DelaySeconds is how long to wait after the page loads before the
	// content is captured.
	DelaySeconds float64 `json:"delay_seconds" yaml:"delaySeconds"`

	// SimulateUser scrolls the page like a reader would before capture.
	SimulateUser bool `json:"simulate_user" yaml:"simulateUser"`

	// StealthMode sends a full desktop browser header set and hides
	// automation markers.
	StealthMode bool `json:"stealth_mode" yaml:"stealthMode"`

	// WaitForImages waits until every <img> element has finished loading.
	WaitForImages bool `json:"wait_for_images" yaml:"waitForImages"`
}

// DefaultBrowserOptions returns the options used when none are configured.
func DefaultBrowserOptions() BrowserOptions {
	return BrowserOptions{
		Headless:     true,
		SimulateUser: true,
	}
}

// FetchResult is what the fetch service returns for one URL.
type FetchResult struct {
	// FinalURL is the URL after redirects. Empty means unchanged.
	FinalURL string

	// StatusCode is the HTTP status code, 0 if the engine cannot observe it.
	StatusCode int

	// Markdown is the extracted main content.
	Markdown string

	// HTML is the document source.
	HTML string

	// Links are all hyperlinks found in the document.
	Links []LinkCandidate

	// ConsoleLog holds captured browser console messages.
	ConsoleLog []string
}
