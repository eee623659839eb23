package crawler

import (
	"log/slog"
	"time"

	"github.com/nao1215/deepcrawl/internal/model"
)

// Option configures a Traversal or a worker started with Start.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	browser    model.BrowserOptions
	filterOpts []FilterOption
	now        func() time.Time
}

func newOptions(opts []Option) *options {
	o := &options{
		browser: model.DefaultBrowserOptions(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithBrowserOptions sets the options forwarded to every Fetch call.
func WithBrowserOptions(b model.BrowserOptions) Option {
	return func(o *options) {
		o.browser = b
	}
}

// WithFilterOptions customizes the filter chain, for example to disable a
// predicate with WithoutFilter.
func WithFilterOptions(opts ...FilterOption) Option {
	return func(o *options) {
		o.filterOpts = append(o.filterOpts, opts...)
	}
}

// WithClock overrides the time source used for PageResult.FetchedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}
