package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/nao1215/deepcrawl/internal/model"
)

const (
	// DefaultMaxBodySize caps the decoded body read per page.
	DefaultMaxBodySize int64 = 10 * 1024 * 1024

	defaultHTTPTimeout = 60 * time.Second
	maxRedirects       = 10
)

// HTTPFetcher fetches pages with a plain HTTP client. It implements
// crawler.Fetcher.
type HTTPFetcher struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
	robots      *RobotsAgent
	limiter     *HostLimiter
	extractor   *Extractor
	logger      *slog.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// HTTPOption configures an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithHTTPClient replaces the default client, for example with one routed
// through Tor.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(f *HTTPFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithUserAgent sets the User-Agent sent outside stealth mode.
func WithUserAgent(ua string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.userAgent = ua
	}
}

// WithMaxBodySize caps the decoded body size. Non-positive values keep
// DefaultMaxBodySize.
func WithMaxBodySize(n int64) HTTPOption {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// WithRobots makes the fetcher consult agent before each request.
func WithRobots(agent *RobotsAgent) HTTPOption {
	return func(f *HTTPFetcher) {
		f.robots = agent
	}
}

// WithRateLimit paces requests to requestsPerSecond per host.
func WithRateLimit(requestsPerSecond float64) HTTPOption {
	return func(f *HTTPFetcher) {
		f.limiter = NewHostLimiter(requestsPerSecond)
	}
}

// WithExtractor replaces the default Extractor.
func WithExtractor(e *Extractor) HTTPOption {
	return func(f *HTTPFetcher) {
		if e != nil {
			f.extractor = e
		}
	}
}

// WithHTTPLogger sets the logger.
func WithHTTPLogger(logger *slog.Logger) HTTPOption {
	return func(f *HTTPFetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewHTTPFetcher creates an HTTP engine. cookie and headers are added to
// every request, redirects included.
func NewHTTPFetcher(cookie string, headers map[string]string, opts ...HTTPOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:      newDefaultClient(),
		maxBodySize: DefaultMaxBodySize,
		extractor:   NewExtractor(),
		logger:      slog.New(slog.DiscardHandler),
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.client = withHeaders(f.client, cookie, headers)
	return f
}

func newDefaultClient() *http.Client {
	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options
	transport := http.DefaultTransport.(*http.Transport).Clone()
	// Encodings are negotiated and decoded by readBody.
	transport.DisableCompression = true
	return &http.Client{
		Transport: transport,
		Timeout:   defaultHTTPTimeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// Fetch downloads rawURL and extracts its Markdown and links. For HTTP
// status 400 and above it returns a result carrying the status code
// together with an error wrapping ErrHTTPStatus.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string, opts model.BrowserOptions) (*model.FetchResult, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	if f.robots != nil && !f.robots.Allowed(ctx, target) {
		return nil, fmt.Errorf("%w: %s", ErrRobotsDisallowed, rawURL)
	}
	if err := f.limiter.Wait(ctx, target.Host); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	f.setHeaders(req, opts.StealthMode)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	result := &model.FetchResult{
		FinalURL:   resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return result, fmt.Errorf("%w: %d %s", ErrHTTPStatus, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := readBody(resp, f.maxBodySize)
	if err != nil {
		return result, err
	}

	contentType := resp.Header.Get("Content-Type")
	switch classify(contentType, body) {
	case contentHTML:
		body = toUTF8(body, contentType)
		doc, err := f.extractor.Extract(result.FinalURL, body)
		if err != nil {
			return result, fmt.Errorf("extract: %w", err)
		}
		result.HTML = string(body)
		result.Markdown = doc.Markdown
		result.Links = doc.Links
	case contentText:
		result.Markdown = string(toUTF8(body, contentType))
	default:
		return result, fmt.Errorf("%w: %s", ErrUnsupportedContent, contentType)
	}

	if opts.Verbose {
		f.logger.Debug("fetched page",
			slog.String("url", rawURL),
			slog.Int("status", resp.StatusCode),
			slog.Int("bytes", len(body)),
			slog.Int("links", len(result.Links)),
			slog.Duration("elapsed", time.Since(start)))
	}

	if opts.DelaySeconds > 0 {
		if err := f.sleep(ctx, time.Duration(opts.DelaySeconds*float64(time.Second))); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (f *HTTPFetcher) setHeaders(req *http.Request, stealth bool) {
	req.Header.Set("Accept-Encoding", acceptEncoding)
	if stealth {
		for k, v := range stealthHeaders {
			req.Header.Set(k, v)
		}
		req.Header.Set("User-Agent", stealthUserAgent)
		return
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,text/plain;q=0.8,*/*;q=0.5")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
