package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/nao1215/deepcrawl/internal/crawler"
	"github.com/nao1215/deepcrawl/internal/model"
)

const (
	defaultRenderTimeout = 60 * time.Second
	imageWaitLimit       = 10 * time.Second
	scrollSteps          = 5
	scrollPause          = 300 * time.Millisecond
)

// browserNames are tried on PATH when no executable is configured.
var browserNames = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"headless-shell",
	"chrome",
}

// stealthScript hides the most common automation markers before any page
// script runs.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
Object.defineProperty(navigator, 'languages', {get: () => ['en-US', 'en']});
Object.defineProperty(navigator, 'plugins', {get: () => [1, 2, 3, 4, 5]});
window.chrome = window.chrome || {runtime: {}};
`

// Renderer fetches pages in headless Chrome. It implements crawler.Fetcher.
// Each Fetch runs in a fresh browser so pages cannot share state.
type Renderer struct {
	execPath    string
	userAgent   string
	proxyServer string
	timeout     time.Duration
	maxBodySize int64
	extractor   *Extractor
	logger      *slog.Logger
	lookPath    func(string) (string, error)
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithExecPath sets the Chrome executable.
func WithExecPath(path string) RendererOption {
	return func(r *Renderer) {
		r.execPath = path
	}
}

// WithRenderUserAgent sets the User-Agent outside stealth mode.
func WithRenderUserAgent(ua string) RendererOption {
	return func(r *Renderer) {
		r.userAgent = ua
	}
}

// WithProxyServer routes the browser through proxy, for example
// "socks5://127.0.0.1:9050".
func WithProxyServer(proxy string) RendererOption {
	return func(r *Renderer) {
		r.proxyServer = proxy
	}
}

// WithRenderTimeout bounds one page render.
func WithRenderTimeout(d time.Duration) RendererOption {
	return func(r *Renderer) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRenderMaxBodySize truncates rendered HTML beyond n bytes.
func WithRenderMaxBodySize(n int64) RendererOption {
	return func(r *Renderer) {
		if n > 0 {
			r.maxBodySize = n
		}
	}
}

// WithRenderExtractor replaces the default Extractor.
func WithRenderExtractor(e *Extractor) RendererOption {
	return func(r *Renderer) {
		if e != nil {
			r.extractor = e
		}
	}
}

// WithRenderLogger sets the logger.
func WithRenderLogger(logger *slog.Logger) RendererOption {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRenderer creates a Chrome engine. The browser is located lazily, on
// the first Fetch.
func NewRenderer(opts ...RendererOption) *Renderer {
	r := &Renderer{
		timeout:     defaultRenderTimeout,
		maxBodySize: DefaultMaxBodySize,
		extractor:   NewExtractor(),
		logger:      slog.New(slog.DiscardHandler),
		lookPath:    exec.LookPath,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// browserPath returns the executable to launch.
func (r *Renderer) browserPath() (string, error) {
	if r.execPath != "" {
		if _, err := os.Stat(r.execPath); err != nil {
			return "", fmt.Errorf("%w: %s", ErrBrowserNotFound, r.execPath)
		}
		return r.execPath, nil
	}
	for _, name := range browserNames {
		if p, err := r.lookPath(name); err == nil {
			return p, nil
		}
	}
	return "", ErrBrowserNotFound
}

// Fetch renders rawURL. A missing or unstartable browser is reported as
// crawler.ErrFetcherUnavailable, which stops the traversal.
func (r *Renderer) Fetch(ctx context.Context, rawURL string, opts model.BrowserOptions) (*model.FetchResult, error) {
	execPath, err := r.browserPath()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", crawler.ErrFetcherUnavailable, err)
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, r.allocatorOptions(execPath, opts)...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, r.timeout)
	defer cancelTimeout()

	console := &consoleRecorder{}
	chromedp.ListenTarget(tabCtx, console.listen)

	// The first Run starts the browser; failures here are about the
	// browser, not the page.
	if opts.StealthMode {
		err = chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}))
	} else {
		err = chromedp.Run(tabCtx)
	}
	if err != nil {
		return nil, r.startError(err)
	}

	resp, err := chromedp.RunResponse(tabCtx, chromedp.Navigate(rawURL))
	if err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}

	result := &model.FetchResult{FinalURL: rawURL, StatusCode: 200}
	if resp != nil {
		result.StatusCode = int(resp.Status)
	}
	if result.StatusCode >= 400 {
		result.ConsoleLog = console.lines()
		return result, fmt.Errorf("%w: %d", ErrHTTPStatus, result.StatusCode)
	}

	var html, finalURL string
	actions := []chromedp.Action{chromedp.WaitReady("body", chromedp.ByQuery)}
	if opts.SimulateUser {
		actions = append(actions, simulateUser())
	}
	if opts.WaitForImages {
		actions = append(actions, waitForImages())
	}
	if opts.DelaySeconds > 0 {
		actions = append(actions, chromedp.Sleep(time.Duration(opts.DelaySeconds*float64(time.Second))))
	}
	actions = append(actions,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Location(&finalURL),
	)
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		result.ConsoleLog = console.lines()
		return result, fmt.Errorf("render: %w", err)
	}

	if int64(len(html)) > r.maxBodySize {
		html = html[:r.maxBodySize]
	}
	if finalURL != "" {
		result.FinalURL = finalURL
	}

	doc, err := r.extractor.Extract(result.FinalURL, []byte(html))
	if err != nil {
		return result, fmt.Errorf("extract: %w", err)
	}
	result.HTML = html
	result.Markdown = doc.Markdown
	result.Links = doc.Links
	result.ConsoleLog = console.lines()

	if opts.Verbose {
		r.logger.Debug("rendered page",
			slog.String("url", rawURL),
			slog.Int("status", result.StatusCode),
			slog.Int("links", len(result.Links)),
			slog.Int("console", len(result.ConsoleLog)))
	}
	return result, nil
}

func (r *Renderer) allocatorOptions(execPath string, opts model.BrowserOptions) []chromedp.ExecAllocatorOption {
	options := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	options = append(options,
		chromedp.ExecPath(execPath),
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
	)

	ua := r.userAgent
	if opts.StealthMode {
		ua = stealthUserAgent
		options = append(options, chromedp.Flag("disable-blink-features", "AutomationControlled"))
	}
	if ua != "" {
		options = append(options, chromedp.UserAgent(ua))
	}
	if r.proxyServer != "" {
		options = append(options, chromedp.ProxyServer(r.proxyServer))
	}
	return options
}

// startError classifies a failure to bring up the browser.
func (r *Renderer) startError(err error) error {
	var execErr *exec.Error
	var pathErr *os.PathError
	if errors.As(err, &execErr) || errors.As(err, &pathErr) || strings.Contains(err.Error(), "exec:") {
		return fmt.Errorf("%w: %w", crawler.ErrFetcherUnavailable, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("browser start: %w", err)
	}
	return fmt.Errorf("%w: browser start: %w", crawler.ErrFetcherUnavailable, err)
}

// simulateUser scrolls through the page in steps so lazy content loads.
func simulateUser() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for i := 1; i <= scrollSteps; i++ {
			js := fmt.Sprintf("window.scrollTo(0, document.body.scrollHeight * %d / %d)", i, scrollSteps)
			if err := chromedp.Evaluate(js, nil).Do(ctx); err != nil {
				return err
			}
			if err := chromedp.Sleep(scrollPause).Do(ctx); err != nil {
				return err
			}
		}
		return chromedp.Evaluate("window.scrollTo(0, 0)", nil).Do(ctx)
	})
}

// waitForImages polls until every <img> has finished loading, giving up
// quietly after imageWaitLimit.
func waitForImages() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		deadline := time.Now().Add(imageWaitLimit)
		for time.Now().Before(deadline) {
			var done bool
			if err := chromedp.Evaluate(`Array.from(document.images).every(img => img.complete)`, &done).Do(ctx); err != nil {
				return err
			}
			if done {
				return nil
			}
			if err := chromedp.Sleep(200 * time.Millisecond).Do(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

// consoleRecorder collects console API calls and uncaught exceptions.
type consoleRecorder struct {
	mu    sync.Mutex
	entry []string
}

func (c *consoleRecorder) listen(ev any) {
	var line string
	switch e := ev.(type) {
	case *runtime.EventConsoleAPICalled:
		args := make([]string, 0, len(e.Args))
		for _, arg := range e.Args {
			args = append(args, remoteObjectText(arg))
		}
		line = fmt.Sprintf("%s: %s", e.Type, strings.Join(args, " "))
	case *runtime.EventExceptionThrown:
		if e.ExceptionDetails == nil {
			return
		}
		line = "exception: " + e.ExceptionDetails.Text
		if e.ExceptionDetails.Exception != nil && e.ExceptionDetails.Exception.Description != "" {
			line += " " + e.ExceptionDetails.Exception.Description
		}
	default:
		return
	}

	c.mu.Lock()
	c.entry = append(c.entry, line)
	c.mu.Unlock()
}

func (c *consoleRecorder) lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.entry...)
}

func remoteObjectText(o *runtime.RemoteObject) string {
	if o == nil {
		return ""
	}
	if len(o.Value) > 0 {
		return strings.Trim(string(o.Value), `"`)
	}
	if o.Description != "" {
		return o.Description
	}
	return string(o.Type)
}
