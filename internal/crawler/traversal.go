package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/deepcrawl/internal/config"
	"github.com/nao1215/deepcrawl/internal/model"
)

// Fetcher retrieves one page. It is the only blocking call of a traversal.
//
// Implementations return an error for a page that could not be fetched.
// When the fetch service as a whole is unusable they must wrap
// ErrFetcherUnavailable so the traversal stops instead of failing every
// remaining page.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts model.BrowserOptions) (*model.FetchResult, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string, opts model.BrowserOptions) (*model.FetchResult, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, url string, opts model.BrowserOptions) (*model.FetchResult, error) {
	return f(ctx, url, opts)
}

// Traversal drives one seed from Idle to a terminal state.
//
// Each cycle checks for a stop request, enforces the page cap, pops the next
// entry, fetches it, and queues the accepted links. Pages are handed to the
// emit callback either as soon as they are fetched (streaming) or all at
// once when the traversal ends (buffered), including after a cancellation
// or a fault.
//
// A Traversal is single-use and owned by one goroutine.
type Traversal struct {
	fetcher  Fetcher
	seed     string
	cfg      config.TraversalConfig
	browser  model.BrowserOptions
	filter   *FilterChain
	scorer   *Scorer
	frontier *Frontier
	logger   *slog.Logger
	emit     func(model.PageResult)
	now      func() time.Time

	emitted  int
	buffered []model.PageResult
	// current is the URL of the cycle in progress.
	current  string
}

// NewTraversal validates cfg and prepares a traversal of seed.
// The seed is normalized with NormalizeSeed. emit receives every page in
// the order the traversal releases them; it must not block for long.
func NewTraversal(fetcher Fetcher, seed string, cfg config.TraversalConfig, emit func(model.PageResult), opts ...Option) (*Traversal, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	normalized, err := NormalizeSeed(seed)
	if err != nil {
		return nil, &config.ValidationError{Field: "seed", Err: err}
	}

	o := newOptions(opts)
	filter, err := NewFilterChain(cfg, normalized, o.filterOpts...)
	if err != nil {
		return nil, &config.ValidationError{Field: "url_patterns", Err: err}
	}

	if emit == nil {
		emit = func(model.PageResult) {}
	}

	return &Traversal{
		fetcher:  fetcher,
		seed:     normalized,
		cfg:      cfg,
		browser:  o.browser,
		filter:   filter,
		scorer:   NewScorer(cfg.Keywords),
		frontier: NewFrontier(cfg.Strategy),
		logger:   o.logger.With(slog.String("seed", normalized)),
		emit:     emit,
		now:      o.now,
	}, nil
}

// Seed returns the normalized seed URL.
func (t *Traversal) Seed() string {
	return t.seed
}

// Run executes the traversal until a terminal state is reached and returns
// that state. The error is non-nil only for StatusFailed and is a
// *WorkerFault.
//
// Cancelling ctx requests a stop; it is observed between fetches. The fetch
// in progress receives a context detached from that cancellation and always
// completes.
func (t *Traversal) Run(ctx context.Context) (status model.Status, err error) {
	defer func() {
		if !t.cfg.Streaming {
			for _, p := range t.buffered {
				t.emit(p)
			}
			t.buffered = nil
		}
	}()

	t.frontier.Push(Entry{URL: t.seed})
	fetchCtx := context.WithoutCancel(ctx)

	for {
		if ctx.Err() != nil {
			t.logger.Debug("traversal cancelled", slog.Int("pages", t.emitted))
			return model.StatusCancelled, nil
		}

		if t.emitted >= t.cfg.MaxPages {
			t.logger.Debug("page cap reached", slog.Int("max_pages", t.cfg.MaxPages))
			return model.StatusCompleted, nil
		}

		entry, ok := t.frontier.Pop()
		if !ok {
			t.logger.Debug("frontier exhausted", slog.Int("pages", t.emitted))
			return model.StatusCompleted, nil
		}
		t.current = entry.URL

		t.logger.Debug("fetching page",
			slog.String("url", entry.URL),
			slog.Int("depth", entry.Depth),
			slog.Float64("score", entry.Score))

		res, fetchErr := t.fetch(fetchCtx, entry.URL)
		if fetchErr != nil && isFault(fetchErr) {
			t.logger.Error("fetch service failed",
				slog.String("url", entry.URL),
				slog.String("error", fetchErr.Error()))
			return model.StatusFailed, &WorkerFault{Seed: t.seed, URL: entry.URL, Cause: fetchErr}
		}

		page := t.pageResult(entry, res, fetchErr)
		if page.Success {
			t.enqueueLinks(entry, res)
		} else {
			t.logger.Warn("fetch failed",
				slog.String("url", entry.URL),
				slog.String("error", page.ErrorMessage))
		}

		t.release(page)
	}
}

// fetch calls the Fetcher and turns a panic into an error wrapping
// ErrFetcherUnavailable.
func (t *Traversal) fetch(ctx context.Context, url string) (res *model.FetchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("%w: panic: %v", ErrFetcherUnavailable, r)
		}
	}()
	res, err = t.fetcher.Fetch(ctx, url, t.browser)
	if err == nil && res == nil {
		err = errors.New("fetcher returned no result")
	}
	return res, err
}

func isFault(err error) bool {
	return errors.Is(err, ErrFetcherUnavailable)
}

func (t *Traversal) pageResult(entry Entry, res *model.FetchResult, fetchErr error) model.PageResult {
	page := model.PageResult{
		URL:       entry.URL,
		Depth:     entry.Depth,
		Score:     entry.Score,
		FetchedAt: t.now(),
	}
	if fetchErr != nil {
		page.ErrorMessage = fetchErr.Error()
		if res != nil {
			page.StatusCode = res.StatusCode
		}
		return page
	}

	page.Success = true
	page.StatusCode = res.StatusCode
	page.Markdown = res.Markdown
	page.HTML = res.HTML
	page.ConsoleLog = res.ConsoleLog
	page.Links = make([]model.LinkCandidate, len(res.Links))
	for i, l := range res.Links {
		l.SourceDepth = entry.Depth
		if l.SourceURL == "" {
			l.SourceURL = entry.URL
		}
		page.Links[i] = l
	}
	return page
}

// enqueueLinks runs each discovered link through normalization, the depth
// cap, the filter chain and the score gate, then queues the survivors.
func (t *Traversal) enqueueLinks(entry Entry, res *model.FetchResult) {
	if res.FinalURL != "" {
		if final, err := NormalizeURL(res.FinalURL); err == nil && final != entry.URL {
			t.frontier.MarkVisited(final)
		}
	}

	childDepth := entry.Depth + 1
	if childDepth > t.cfg.MaxDepth {
		return
	}

	children := make([]Entry, 0, len(res.Links))
	for _, link := range res.Links {
		normalized, err := NormalizeURL(link.URL)
		if err != nil {
			continue
		}
		if t.frontier.Seen(normalized) {
			continue
		}

		candidate := model.LinkCandidate{
			URL:         normalized,
			SourceDepth: entry.Depth,
			SourceURL:   entry.URL,
			AnchorText:  link.AnchorText,
			IsExternal:  link.IsExternal,
		}

		if reason := t.filter.Reason(candidate); reason != "" {
			t.logger.Debug("link rejected",
				slog.String("url", normalized),
				slog.String("filter", reason))
			continue
		}

		score := t.scorer.Score(candidate)
		if t.gated(score) {
			t.logger.Debug("link below score threshold",
				slog.String("url", normalized),
				slog.Float64("score", score))
			continue
		}

		children = append(children, Entry{
			URL:       normalized,
			Candidate: candidate,
			Depth:     childDepth,
			Score:     score,
		})
	}

	t.frontier.PushChildren(children)
}

// gated reports whether a link is dropped by the score threshold.
// BestFirst only uses scores for ordering and never gates.
func (t *Traversal) gated(score float64) bool {
	if t.cfg.Strategy == model.StrategyBestFirst {
		return false
	}
	return t.cfg.ScoreThreshold > 0 && score < t.cfg.ScoreThreshold
}

func (t *Traversal) release(page model.PageResult) {
	t.emitted++
	if t.cfg.Streaming {
		t.emit(page)
		return
	}
	t.buffered = append(t.buffered, page)
}
