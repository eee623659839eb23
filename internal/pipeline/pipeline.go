package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/deepcrawl/internal/model"
)

// Step is one stage of post-crawl processing. Steps run in sequence after
// the batch coordinator has returned, each receiving the finished run.
type Step interface {
	// Do processes the run. It must not modify the run's pages.
	Do(ctx context.Context, run *model.BatchRun) error

	// Name identifies the step in logs and wrapped errors.
	Name() string
}

// Pipeline runs a list of steps over a finished batch run.
type Pipeline struct {
	steps           []Step
	logger          *slog.Logger
	continueOnError bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger. Nil keeps slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError runs every step even after one fails. The step
// errors are joined and returned at the end.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends steps in order.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs the steps in order over run.
//
// ctx is checked before each step; once it is done the pipeline stops and
// ctx.Err() is returned together with any step errors so far. A step error
// is wrapped with the step name. Without WithContinueOnError the first one
// ends the pipeline.
func (p *Pipeline) Execute(ctx context.Context, run *model.BatchRun) error {
	var errs []error

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("post-crawl processing interrupted", "next_step", step.Name(), "reason", err)
			return errors.Join(append(errs, err)...)
		}

		if err := p.runStep(ctx, step, run); err != nil {
			if !p.continueOnError {
				return err
			}
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (p *Pipeline) runStep(ctx context.Context, step Step, run *model.BatchRun) error {
	start := time.Now()
	err := step.Do(ctx, run)
	elapsed := time.Since(start)

	if err != nil {
		p.logger.Error("post-crawl step failed",
			"step", step.Name(),
			"run_id", run.ID,
			"elapsed", elapsed,
			"error", err,
		)
		return fmt.Errorf("%s: %w", step.Name(), err)
	}

	p.logger.Debug("post-crawl step done",
		"step", step.Name(),
		"run_id", run.ID,
		"elapsed", elapsed,
	)
	return nil
}

// StepCount returns the number of steps.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the step names in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, 0, len(p.steps))
	for _, step := range p.steps {
		names = append(names, step.Name())
	}
	return names
}
