package fetch

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/nao1215/deepcrawl/internal/config"
	"github.com/nao1215/deepcrawl/internal/crawler"
	"github.com/nao1215/deepcrawl/internal/model"
)

// Service is the fetch service configured for one application run. It
// dispatches to the engine named in the configuration.
type Service struct {
	engine  string
	fetcher crawler.Fetcher
}

// ServiceOption configures New.
type ServiceOption func(*serviceSettings)

type serviceSettings struct {
	client      *http.Client
	proxyServer string
	logger      *slog.Logger
}

// WithClient routes the HTTP engine through client, typically a Tor client.
func WithClient(client *http.Client) ServiceOption {
	return func(s *serviceSettings) {
		s.client = client
	}
}

// WithBrowserProxy routes the chrome engine through proxy.
func WithBrowserProxy(proxy string) ServiceOption {
	return func(s *serviceSettings) {
		s.proxyServer = proxy
	}
}

// WithLogger sets the logger of the selected engine.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *serviceSettings) {
		s.logger = logger
	}
}

// New builds the engine selected by cfg.Engine with cfg's timeout, body
// cap, user agent, robots, rate, cookie and header settings.
func New(cfg *config.Config, opts ...ServiceOption) *Service {
	settings := &serviceSettings{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(settings)
	}
	extractor := NewExtractor(WithExtractorLogger(settings.logger))

	if cfg.Engine == config.EngineChrome {
		return &Service{
			engine: config.EngineChrome,
			fetcher: NewRenderer(
				WithExecPath(cfg.ChromePath),
				WithRenderUserAgent(cfg.UserAgent),
				WithProxyServer(settings.proxyServer),
				WithRenderTimeout(cfg.Timeout),
				WithRenderMaxBodySize(cfg.MaxBodySize),
				WithRenderExtractor(extractor),
				WithRenderLogger(settings.logger),
			),
		}
	}

	client := settings.client
	if client == nil {
		client = newDefaultClient()
	}
	if cfg.Timeout > 0 {
		c := *client
		c.Timeout = cfg.Timeout
		client = &c
	}

	httpOpts := []HTTPOption{
		WithHTTPClient(client),
		WithUserAgent(cfg.UserAgent),
		WithMaxBodySize(cfg.MaxBodySize),
		WithRateLimit(cfg.RequestsPerSecond),
		WithExtractor(extractor),
		WithHTTPLogger(settings.logger),
	}
	if cfg.RespectRobots {
		robotsClient := *client
		robotsClient.Timeout = min(client.Timeout, 10*time.Second)
		if robotsClient.Timeout <= 0 {
			robotsClient.Timeout = 10 * time.Second
		}
		httpOpts = append(httpOpts, WithRobots(NewRobotsAgent(&robotsClient, cfg.UserAgent, DefaultRobotsTTL, settings.logger)))
	}

	return &Service{
		engine:  config.EngineHTTP,
		fetcher: NewHTTPFetcher(cfg.Cookie, cfg.Headers, httpOpts...),
	}
}

// Engine returns the name of the selected engine.
func (s *Service) Engine() string {
	return s.engine
}

// Fetch implements crawler.Fetcher.
func (s *Service) Fetch(ctx context.Context, url string, opts model.BrowserOptions) (*model.FetchResult, error) {
	return s.fetcher.Fetch(ctx, url, opts)
}
