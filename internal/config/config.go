package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/deepcrawl/internal/model"
)

// Default application values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "deepcrawl"

	// EngineHTTP fetches pages with a plain HTTP client.
	EngineHTTP = "http"

	// EngineChrome renders pages in headless Chrome.
	EngineChrome = "chrome"

	// DefaultEngine is the fetch engine used when none is chosen.
	DefaultEngine = EngineHTTP

	// DefaultTimeout bounds a single page fetch.
	DefaultTimeout = 60 * time.Second

	// DefaultUserAgent identifies deepcrawl in HTTP requests.
	// Stealth mode replaces it with a desktop browser string.
	DefaultUserAgent = "deepcrawl/1.0 (+https://github.com/nao1215/deepcrawl)"

	// DefaultMaxBodySize limits how much of a response body is read.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultRequestsPerSecond is the per-host politeness rate.
	DefaultRequestsPerSecond = 2.0

	// MaxDelaySeconds bounds BrowserOptions.DelaySeconds.
	MaxDelaySeconds = 60

	// DefaultTorProxyAddress is the standard Tor SOCKS5 proxy address.
	DefaultTorProxyAddress = "127.0.0.1:9050"

	// DefaultTorStartupTimeout is how long to wait for an embedded Tor
	// daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute
)

// Config holds all application-level options for a crawl command.
// It is populated from CLI flags (optionally seeded by a profile from the
// configuration file) and passed down explicitly; nothing reads it globally.
type Config struct {
	// Seeds are the URLs to crawl, in order.
	Seeds []string

	// Traversal is the traversal configuration applied to every seed.
	Traversal TraversalConfig

	// SinglePage fetches only each seed, without following links.
	SinglePage bool

	// Browser options are forwarded to the fetch service unchanged.
	Browser model.BrowserOptions

	// Engine selects the fetch service: EngineHTTP or EngineChrome.
	Engine string

	// ChromePath overrides the browser executable used by the chrome engine.
	ChromePath string

	// Timeout bounds a single page fetch.
	Timeout time.Duration

	// UserAgent is sent with every request unless stealth mode is on.
	UserAgent string

	// MaxBodySize is the maximum number of response bytes read per page.
	// Zero means DefaultMaxBodySize.
	MaxBodySize int64

	// RespectRobots makes the HTTP engine honour robots.txt.
	RespectRobots bool

	// RequestsPerSecond is the per-host request rate. Zero disables limiting.
	RequestsPerSecond float64

	// Cookie and Headers are added to every HTTP request.
	Cookie  string
	Headers map[string]string

	// UseTor routes traffic through the Tor SOCKS5 proxy at TorProxyAddress.
	UseTor bool

	// EmbeddedTor starts a private Tor daemon instead of using TorProxyAddress.
	EmbeddedTor bool

	// TorProxyAddress is the external Tor SOCKS5 proxy in "host:port" form.
	TorProxyAddress string

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// Verbose enables debug logging.
	Verbose bool

	// JSONReport and MarkdownReport select the report format.
	// They are mutually exclusive; neither means the plain text summary.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile writes the report to a file instead of stdout.
	ReportFile string

	// SaveDir, when set, writes every page to disk in the batch folder layout.
	SaveDir string

	// DBDir is where the run history database lives.
	DBDir string

	// SaveToDB persists the run to the history database.
	SaveToDB bool

	// SkipRecent drops seeds fetched successfully within this window,
	// according to the history database. Zero never skips.
	SkipRecent time.Duration

	// ConfigFilePath is an explicit configuration file path.
	ConfigFilePath string

	// Profile names the configuration file profile to apply.
	Profile string
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Traversal:         NewTraversalConfig(),
		Browser:           model.DefaultBrowserOptions(),
		Engine:            DefaultEngine,
		Timeout:           DefaultTimeout,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		RespectRobots:     true,
		RequestsPerSecond: DefaultRequestsPerSecond,
		TorProxyAddress:   DefaultTorProxyAddress,
		TorStartupTimeout: DefaultTorStartupTimeout,
		DBDir:             XDGDataDir(),
		SaveToDB:          true,
	}
}

// XDGDataDir returns the XDG data directory for deepcrawl.
// On Linux: ~/.local/share/deepcrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for deepcrawl.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for deepcrawl.
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// EffectiveTraversal returns the traversal configuration actually used for
// each seed, taking single-page mode into account.
func (c *Config) EffectiveTraversal() TraversalConfig {
	if c.SinglePage {
		return c.Traversal.SinglePage()
	}
	return c.Traversal
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return ErrNoSeed
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.Browser.DelaySeconds < 0 || c.Browser.DelaySeconds > MaxDelaySeconds {
		return ErrInvalidDelay
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.RequestsPerSecond < 0 {
		return ErrInvalidRate
	}

	if c.SkipRecent < 0 {
		return ErrInvalidSkipRecent
	}

	if c.Engine != EngineHTTP && c.Engine != EngineChrome {
		return ErrUnknownEngine
	}

	return c.EffectiveTraversal().Validate()
}
