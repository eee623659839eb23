package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/deepcrawl/internal/config"
	"github.com/nao1215/deepcrawl/internal/crawler"
	"github.com/nao1215/deepcrawl/internal/model"
)

// Progress is reported before each seed starts.
type Progress struct {
	// Index is the zero-based position of the seed.
	Index int
	// Total is the number of seeds in the batch.
	Total int
	// Seed is the normalized seed URL.
	Seed string
}

// Coordinator runs one traversal per seed, strictly one after another, and
// partitions the pages by seed.
//
// A seed whose traversal fails is recorded and the batch moves on. Cancel
// stops the in-flight traversal at its next cycle boundary and prevents the
// remaining seeds from starting; results already gathered are kept.
//
// A Coordinator runs one batch at a time and stays cancelled once Cancel
// has been called.
type Coordinator struct {
	fetcher    crawler.Fetcher
	logger     *slog.Logger
	workerOpts []crawler.Option
	onProgress func(Progress)
	onPage     func(seed string, page model.PageResult)
	onSeedDone func(result *model.SeedResult)

	mu        sync.Mutex
	current   *crawler.Handle
	cancelled bool
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithCoordinatorLogger sets the logger for batch-level logging.
// It is also passed to every traversal unless WithWorkerOptions overrides it.
func WithCoordinatorLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithWorkerOptions adds options applied to every traversal.
func WithWorkerOptions(opts ...crawler.Option) CoordinatorOption {
	return func(c *Coordinator) {
		c.workerOpts = append(c.workerOpts, opts...)
	}
}

// WithProgress registers a callback invoked before each seed starts.
func WithProgress(fn func(Progress)) CoordinatorOption {
	return func(c *Coordinator) {
		c.onProgress = fn
	}
}

// WithPageObserver registers a callback invoked for every page as the
// traversal releases it. In streaming mode pages arrive while the seed is
// still being crawled.
func WithPageObserver(fn func(seed string, page model.PageResult)) CoordinatorOption {
	return func(c *Coordinator) {
		c.onPage = fn
	}
}

// WithSeedDone registers a callback invoked when a seed reaches a terminal state.
func WithSeedDone(fn func(result *model.SeedResult)) CoordinatorOption {
	return func(c *Coordinator) {
		c.onSeedDone = fn
	}
}

// NewCoordinator creates a Coordinator that fetches through fetcher.
func NewCoordinator(fetcher crawler.Fetcher, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{fetcher: fetcher}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	return c
}

// PrepareSeeds normalizes seeds (adding https:// when the scheme is
// missing), drops blanks and duplicates keeping the first occurrence, and
// returns them in order.
func PrepareSeeds(raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	seeds := make([]string, 0, len(raw))
	for _, s := range raw {
		if strings.TrimSpace(s) == "" {
			continue
		}
		n, err := crawler.NormalizeSeed(s)
		if err != nil {
			return nil, &config.ValidationError{Field: "seeds", Err: err}
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		seeds = append(seeds, n)
	}
	if len(seeds) == 0 {
		return nil, &config.ValidationError{Field: "seeds", Err: config.ErrNoSeed}
	}
	return seeds, nil
}

// Run crawls every seed in order with the same traversal configuration.
//
// Configuration and seeds are validated before anything is fetched; a
// validation failure is returned as a *config.ValidationError with a nil
// run. Otherwise the returned run is complete: its status is Cancelled if
// the batch was stopped, Completed otherwise. Seeds that failed are marked
// Failed in PerSeed without failing the batch.
func (c *Coordinator) Run(ctx context.Context, seeds []string, cfg config.TraversalConfig) (*model.BatchRun, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	prepared, err := PrepareSeeds(seeds)
	if err != nil {
		return nil, err
	}

	run := model.NewBatchRun(prepared)
	run.Status = model.StatusRunning
	run.StartedAt = time.Now()

	c.logger.Info("starting batch",
		"run_id", run.ID,
		"seeds", len(prepared),
		"strategy", cfg.Strategy.String(),
		"max_depth", cfg.MaxDepth,
		"max_pages", cfg.MaxPages,
	)

	// One slot keeps seeds strictly sequential: Go blocks until the
	// previous seed has returned.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(1)

	for i, seed := range prepared {
		g.Go(func() error {
			if c.isCancelled() || gctx.Err() != nil {
				return nil
			}
			c.crawlSeed(gctx, run, i, seed, cfg)
			return nil
		})
	}

	// The goroutines never return an error.
	_ = g.Wait() //nolint:errcheck

	run.Status = model.StatusCompleted
	if c.isCancelled() || ctx.Err() != nil {
		run.Status = model.StatusCancelled
	}
	for _, r := range run.Results() {
		if r.Status == model.StatusCancelled {
			run.Status = model.StatusCancelled
		}
	}
	run.FinishedAt = time.Now()

	total, succeeded := run.Counts()
	c.logger.Info("batch complete",
		"run_id", run.ID,
		"status", run.Status.String(),
		"pages", total,
		"succeeded", succeeded,
		"elapsed", run.Duration(),
	)

	return run, nil
}

func (c *Coordinator) crawlSeed(ctx context.Context, run *model.BatchRun, index int, seed string, cfg config.TraversalConfig) {
	result := run.PerSeed[seed]
	run.CurrentIndex = index

	if c.onProgress != nil {
		c.onProgress(Progress{Index: index, Total: len(run.Seeds), Seed: seed})
	}
	c.logger.Info("crawling seed",
		"seed", seed,
		"index", index+1,
		"total", len(run.Seeds),
	)

	opts := append([]crawler.Option{crawler.WithLogger(c.logger)}, c.workerOpts...)
	result.StartedAt = time.Now()
	h, err := crawler.Start(ctx, c.fetcher, seed, cfg, opts...)
	if err != nil {
		result.Status = model.StatusFailed
		result.Error = err.Error()
		result.FinishedAt = time.Now()
		c.logger.Warn("seed could not start", "seed", seed, "error", err)
		c.seedDone(result)
		return
	}

	c.mu.Lock()
	c.current = h
	if c.cancelled {
		h.Cancel()
	}
	c.mu.Unlock()

	for p := range h.Results() {
		if c.onPage != nil {
			c.onPage(seed, p)
		}
	}
	out := h.Wait()

	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()

	result.Status = out.Status
	result.Pages = out.Pages
	result.FinishedAt = time.Now()
	if out.Err != nil {
		result.Error = out.Err.Error()
		c.logger.Warn("seed failed",
			"seed", seed,
			"error", out.Err,
		)
	} else {
		c.logger.Info("seed finished",
			"seed", seed,
			"status", out.Status.String(),
			"pages", len(out.Pages),
		)
	}

	c.seedDone(result)
}

func (c *Coordinator) seedDone(result *model.SeedResult) {
	if c.onSeedDone != nil {
		c.onSeedDone(result)
	}
}

// Cancel stops the batch: the in-flight traversal stops at its next cycle
// boundary and no further seed starts. It is idempotent.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = true
	if c.current != nil {
		c.current.Cancel()
	}
}

func (c *Coordinator) isCancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

// String implements fmt.Stringer for log output.
func (p Progress) String() string {
	return fmt.Sprintf("[%d/%d] %s", p.Index+1, p.Total, p.Seed)
}
