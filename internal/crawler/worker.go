package crawler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nao1215/deepcrawl/internal/config"
	"github.com/nao1215/deepcrawl/internal/model"
)

// Outcome is the final state of a worker.
type Outcome struct {
	// Seed is the normalized seed URL.
	Seed string
	// Status is Completed, Cancelled or Failed.
	Status model.Status
	// Pages are every page the worker released, in release order.
	Pages []model.PageResult
	// Err is a *WorkerFault when Status is Failed, nil otherwise.
	Err error
}

// Handle controls a traversal running on its own goroutine.
//
// Results are delivered on a channel that is closed once the traversal is
// terminal. The channel is buffered to MaxPages, so the traversal never
// waits for a slow consumer; a consumer that stops reading loses nothing,
// since every page is also available from Wait.
type Handle struct {
	seed    string
	results chan model.PageResult
	done    chan struct{}
	cancel  context.CancelFunc
	status  atomic.Int32

	mu      sync.Mutex
	pages   []model.PageResult
	outcome Outcome
}

// Start validates cfg and seed, then runs the traversal on a new goroutine.
// Validation errors are returned synchronously and no fetch happens.
//
// Cancelling ctx has the same effect as calling Cancel.
func Start(ctx context.Context, fetcher Fetcher, seed string, cfg config.TraversalConfig, opts ...Option) (*Handle, error) {
	h := &Handle{done: make(chan struct{})}

	t, err := NewTraversal(fetcher, seed, cfg, h.deliver, opts...)
	if err != nil {
		return nil, err
	}
	h.seed = t.Seed()
	h.results = make(chan model.PageResult, cfg.MaxPages)

	runCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.status.Store(int32(model.StatusRunning))

	go h.run(runCtx, t)

	return h, nil
}

// StartSinglePage fetches only seed, with the traversal settings of cfg
// otherwise unchanged.
func StartSinglePage(ctx context.Context, fetcher Fetcher, seed string, cfg config.TraversalConfig, opts ...Option) (*Handle, error) {
	return Start(ctx, fetcher, seed, cfg.SinglePage(), opts...)
}

func (h *Handle) run(ctx context.Context, t *Traversal) {
	defer h.cancel()

	status, err := h.traverse(ctx, t)

	h.mu.Lock()
	h.outcome = Outcome{
		Seed:   h.seed,
		Status: status,
		Pages:  h.pages,
		Err:    err,
	}
	h.mu.Unlock()

	h.status.Store(int32(status))
	close(h.results)
	close(h.done)
}

// traverse runs t and turns a panic into a Failed outcome.
func (h *Handle) traverse(ctx context.Context, t *Traversal) (status model.Status, err error) {
	defer func() {
		if r := recover(); r != nil {
			status = model.StatusFailed
			err = &WorkerFault{Seed: h.seed, URL: t.current, Cause: fmt.Errorf("panic: %v", r)}
		}
	}()
	return t.Run(ctx)
}

func (h *Handle) deliver(p model.PageResult) {
	h.mu.Lock()
	h.pages = append(h.pages, p)
	h.mu.Unlock()
	h.results <- p
}

// Seed returns the normalized seed URL.
func (h *Handle) Seed() string {
	return h.seed
}

// Results returns the page channel. It is closed when the worker reaches a
// terminal state and is never reopened.
func (h *Handle) Results() <-chan model.PageResult {
	return h.results
}

// Cancel asks the worker to stop at the next cycle boundary.
// It is idempotent and a no-op once the worker is terminal.
func (h *Handle) Cancel() {
	if model.Status(h.status.Load()).IsTerminal() {
		return
	}
	h.cancel()
}

// Status returns the current status.
func (h *Handle) Status() model.Status {
	return model.Status(h.status.Load())
}

// Done is closed when the worker is terminal.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the worker is terminal and returns its outcome.
func (h *Handle) Wait() Outcome {
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.outcome
}

// Crawl runs a traversal to completion and returns its outcome. onPage, if
// non-nil, is called for every page as it is released.
func Crawl(ctx context.Context, fetcher Fetcher, seed string, cfg config.TraversalConfig, onPage func(model.PageResult), opts ...Option) (Outcome, error) {
	h, err := Start(ctx, fetcher, seed, cfg, opts...)
	if err != nil {
		return Outcome{}, err
	}
	for p := range h.Results() {
		if onPage != nil {
			onPage(p)
		}
	}
	return h.Wait(), nil
}
