package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nao1215/deepcrawl/internal/config"
	"github.com/nao1215/deepcrawl/internal/model"
	"github.com/nao1215/deepcrawl/internal/report"
)

// RunStore persists finished runs. *database.CrawlDB implements it.
type RunStore interface {
	SaveRun(ctx context.Context, run *model.BatchRun, cfg config.TraversalConfig) error
}

// ReportStep writes the run with a report.Writer.
type ReportStep struct {
	writer report.Writer
}

// NewReportStep creates a step that writes the run to w.
func NewReportStep(w report.Writer) *ReportStep {
	return &ReportStep{writer: w}
}

// Name returns the step name.
func (s *ReportStep) Name() string {
	return "report"
}

// Do writes the report.
func (s *ReportStep) Do(_ context.Context, run *model.BatchRun) error {
	_, err := s.writer.Write(run)
	return err
}

// PersistStep stores the run and its traversal configuration so it can be
// listed and exported later.
type PersistStep struct {
	store  RunStore
	cfg    config.TraversalConfig
	logger *slog.Logger
}

// PersistStepOption configures a PersistStep.
type PersistStepOption func(*PersistStep)

// WithPersistLogger sets a custom logger for the persist step.
func WithPersistLogger(logger *slog.Logger) PersistStepOption {
	return func(s *PersistStep) {
		s.logger = logger
	}
}

// NewPersistStep creates a step that saves runs crawled with cfg to store.
func NewPersistStep(store RunStore, cfg config.TraversalConfig, opts ...PersistStepOption) *PersistStep {
	s := &PersistStep{
		store:  store,
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do saves the run.
func (s *PersistStep) Do(ctx context.Context, run *model.BatchRun) error {
	if err := s.store.SaveRun(ctx, run, s.cfg); err != nil {
		return err
	}
	total, _ := run.Counts()
	s.logger.Info("run saved to database", "run_id", run.ID, "pages", total)
	return nil
}

// SaveFilesStep writes every page to disk with a report.Saver.
type SaveFilesStep struct {
	saver   *report.Saver
	logger  *slog.Logger
	onSaved func(dir string)
}

// SaveFilesStepOption configures a SaveFilesStep.
type SaveFilesStepOption func(*SaveFilesStep)

// WithSaveLogger sets a custom logger for the save step.
func WithSaveLogger(logger *slog.Logger) SaveFilesStepOption {
	return func(s *SaveFilesStep) {
		s.logger = logger
	}
}

// WithSavedCallback registers a function called with the batch directory
// after a successful save.
func WithSavedCallback(fn func(dir string)) SaveFilesStepOption {
	return func(s *SaveFilesStep) {
		s.onSaved = fn
	}
}

// NewSaveFilesStep creates a step that saves runs with saver.
func NewSaveFilesStep(saver *report.Saver, opts ...SaveFilesStepOption) *SaveFilesStep {
	s := &SaveFilesStep{
		saver:  saver,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *SaveFilesStep) Name() string {
	return "save_files"
}

// Do writes the files.
func (s *SaveFilesStep) Do(_ context.Context, run *model.BatchRun) error {
	dir, err := s.saver.Save(run)
	if err != nil {
		return err
	}
	s.logger.Info("pages saved", "run_id", run.ID, "dir", dir)
	if s.onSaved != nil {
		s.onSaved(dir)
	}
	return nil
}

// ErrNoSteps is returned by DefaultPipeline when nothing would run.
var ErrNoSteps = errors.New("no post-crawl step configured")

// DefaultPipelineConfig selects the steps built by DefaultPipeline.
type DefaultPipelineConfig struct {
	// Writer receives the report. Nil skips the report step.
	Writer report.Writer

	// Store receives the run. Nil skips persistence.
	Store RunStore

	// Traversal is stored alongside the run.
	Traversal config.TraversalConfig

	// Saver writes pages to disk. Nil skips the save step.
	Saver *report.Saver

	// OnSaved is called with the batch directory after a save.
	OnSaved func(dir string)

	// Logger is passed to every step.
	Logger *slog.Logger
}

// DefaultPipeline builds the report, persist and save steps, in that order,
// for the parts of cfg that are set. The pipeline keeps going after a step
// fails so one broken output does not lose the others.
func DefaultPipeline(cfg DefaultPipelineConfig, opts ...Option) (*Pipeline, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts = append([]Option{WithLogger(logger), WithContinueOnError(true)}, opts...)
	p := New(opts...)

	if cfg.Writer != nil {
		p.AddStep(NewReportStep(cfg.Writer))
	}
	if cfg.Store != nil {
		p.AddStep(NewPersistStep(cfg.Store, cfg.Traversal, WithPersistLogger(logger)))
	}
	if cfg.Saver != nil {
		p.AddStep(NewSaveFilesStep(cfg.Saver, WithSaveLogger(logger), WithSavedCallback(cfg.OnSaved)))
	}

	if p.StepCount() == 0 {
		return nil, ErrNoSteps
	}
	return p, nil
}
