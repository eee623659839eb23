package model

import (
	"time"

	"github.com/google/uuid"
)

// SeedResult is the per-seed partition of a batch run.
type SeedResult struct {
	// Seed is the normalized seed URL.
	Seed string `json:"seed"`

	// Index is the zero-based position of the seed in the batch.
	Index int `json:"index"`

	// Status is the terminal status of the seed's traversal.
	// Seeds that never started because the batch was cancelled stay Idle.
	Status Status `json:"status"`

	// Pages are the results in fetch order.
	Pages []PageResult `json:"pages"`

	// Error describes a worker fault when Status is Failed.
	Error string `json:"error,omitempty"`

	// StartedAt and FinishedAt bound the traversal of this seed.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// SuccessCount returns the number of pages fetched successfully.
func (r *SeedResult) SuccessCount() int {
	n := 0
	for _, p := range r.Pages {
		if p.Success {
			n++
		}
	}
	return n
}

// BatchRun aggregates the outcome of running a traversal over many seeds.
// It is owned and mutated only by the batch coordinator; readers should
// wait for the run to return before inspecting it.
type BatchRun struct {
	// ID uniquely identifies the run.
	ID string `json:"id"`

	// Seeds is the ordered, de-duplicated list of seeds.
	Seeds []string `json:"seeds"`

	// PerSeed maps each seed to its results.
	PerSeed map[string]*SeedResult `json:"per_seed"`

	// Status is the status of the whole batch.
	Status Status `json:"status"`

	// CurrentIndex is the index of the seed being (or last) processed.
	CurrentIndex int `json:"current_index"`

	// StartedAt and FinishedAt bound the whole run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// NewBatchRun creates a run with one idle SeedResult per seed.
func NewBatchRun(seeds []string) *BatchRun {
	run := &BatchRun{
		ID:      uuid.NewString(),
		Seeds:   seeds,
		PerSeed: make(map[string]*SeedResult, len(seeds)),
		Status:  StatusIdle,
	}
	for i, seed := range seeds {
		run.PerSeed[seed] = &SeedResult{Seed: seed, Index: i, Status: StatusIdle}
	}
	return run
}

// Results returns the per-seed results in seed order.
func (b *BatchRun) Results() []*SeedResult {
	out := make([]*SeedResult, 0, len(b.Seeds))
	for _, seed := range b.Seeds {
		if r, ok := b.PerSeed[seed]; ok {
			out = append(out, r)
		}
	}
	return out
}

// AllPages returns every page of the run, seed by seed in fetch order.
func (b *BatchRun) AllPages() []PageResult {
	var pages []PageResult
	for _, r := range b.Results() {
		pages = append(pages, r.Pages...)
	}
	return pages
}

// Counts returns the total number of pages and how many of them succeeded.
func (b *BatchRun) Counts() (total, succeeded int) {
	for _, r := range b.Results() {
		total += len(r.Pages)
		succeeded += r.SuccessCount()
	}
	return total, succeeded
}

// Duration returns how long the run took, or zero if it has not finished.
func (b *BatchRun) Duration() time.Duration {
	if b.FinishedAt.IsZero() {
		return 0
	}
	return b.FinishedAt.Sub(b.StartedAt)
}
