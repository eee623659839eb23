package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/deepcrawl/internal/config"
	"github.com/nao1215/deepcrawl/internal/database"
	"github.com/nao1215/deepcrawl/internal/model"
	"github.com/nao1215/deepcrawl/internal/report"
)

// fakeStore records saved runs.
type fakeStore struct {
	saved []*model.BatchRun
	cfg   config.TraversalConfig
	err   error
}

func (f *fakeStore) SaveRun(_ context.Context, run *model.BatchRun, cfg config.TraversalConfig) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, run)
	f.cfg = cfg
	return nil
}

var _ RunStore = (*database.CrawlDB)(nil)

func runWithPage() *model.BatchRun {
	run := newTestRun()
	r := run.PerSeed["https://example.com/"]
	r.Status = model.StatusCompleted
	r.Pages = []model.PageResult{{URL: "https://example.com/", Success: true, Markdown: "# Home", StatusCode: 200}}
	return run
}

func TestReportStep(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	step := NewReportStep(report.NewSimpleWriter(&buf))
	if step.Name() != "report" {
		t.Errorf("unexpected name %q", step.Name())
	}
	if err := step.Do(context.Background(), runWithPage()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "https://example.com/") {
		t.Errorf("expected seed in report\n%s", buf.String())
	}
}

func TestPersistStep(t *testing.T) {
	t.Parallel()

	t.Run("saves run with traversal config", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{}
		cfg := config.NewTraversalConfig()
		cfg.MaxDepth = 4
		step := NewPersistStep(store, cfg, WithPersistLogger(quietLogger()))

		run := runWithPage()
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatal(err)
		}
		if len(store.saved) != 1 || store.saved[0] != run || store.cfg.MaxDepth != 4 {
			t.Errorf("unexpected store state: %+v", store)
		}
	})

	t.Run("returns store error", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("database is locked")
		step := NewPersistStep(&fakeStore{err: boom}, config.NewTraversalConfig(), WithPersistLogger(quietLogger()))
		if err := step.Do(context.Background(), runWithPage()); !errors.Is(err, boom) {
			t.Errorf("expected store error, got %v", err)
		}
	})

	t.Run("works with the sqlite store", func(t *testing.T) {
		t.Parallel()

		db, err := database.Open(t.TempDir(), database.DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = db.Close() })

		run := runWithPage()
		step := NewPersistStep(db, config.NewTraversalConfig(), WithPersistLogger(quietLogger()))
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatal(err)
		}
		if _, _, err := db.GetRun(context.Background(), run.ID); err != nil {
			t.Errorf("run not stored: %v", err)
		}
	})
}

func TestSaveFilesStep(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	saver := report.NewSaver(root, report.WithClock(func() time.Time { return time.Unix(1700000000, 0) }))

	var savedDir string
	step := NewSaveFilesStep(saver,
		WithSaveLogger(quietLogger()),
		WithSavedCallback(func(dir string) { savedDir = dir }),
	)
	if step.Name() != "save_files" {
		t.Errorf("unexpected name %q", step.Name())
	}

	if err := step.Do(context.Background(), runWithPage()); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(root, "batch_crawl_1700000000")
	if savedDir != want {
		t.Errorf("got dir %q, want %q", savedDir, want)
	}
	if _, err := os.Stat(filepath.Join(want, "url_1_example.com_", "page_1", "page_1.md")); err != nil {
		t.Errorf("page file missing: %v", err)
	}
}

func TestDefaultPipeline(t *testing.T) {
	t.Parallel()

	t.Run("builds steps for configured outputs", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		p, err := DefaultPipeline(DefaultPipelineConfig{
			Writer: report.NewSimpleWriter(&buf),
			Store:  &fakeStore{},
			Saver:  report.NewSaver(t.TempDir()),
			Logger: quietLogger(),
		})
		if err != nil {
			t.Fatal(err)
		}

		names := p.StepNames()
		want := []string{"report", "persist", "save_files"}
		if len(names) != len(want) {
			t.Fatalf("got %v, want %v", names, want)
		}
		for i := range want {
			if names[i] != want[i] {
				t.Errorf("got %v, want %v", names, want)
			}
		}
	})

	t.Run("skips unset outputs", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		p, err := DefaultPipeline(DefaultPipelineConfig{Writer: report.NewJSONWriter(&buf)})
		if err != nil {
			t.Fatal(err)
		}
		if p.StepCount() != 1 {
			t.Errorf("expected 1 step, got %v", p.StepNames())
		}
	})

	t.Run("errors when nothing is configured", func(t *testing.T) {
		t.Parallel()

		if _, err := DefaultPipeline(DefaultPipelineConfig{}); !errors.Is(err, ErrNoSteps) {
			t.Errorf("expected ErrNoSteps, got %v", err)
		}
	})

	t.Run("a failing store does not stop the report", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		boom := errors.New("disk full")
		p, err := DefaultPipeline(DefaultPipelineConfig{
			Store:  &fakeStore{err: boom},
			Saver:  report.NewSaver(t.TempDir()),
			Writer: report.NewSimpleWriter(&buf),
			Logger: quietLogger(),
		})
		if err != nil {
			t.Fatal(err)
		}

		err = p.Execute(context.Background(), runWithPage())
		if !errors.Is(err, boom) {
			t.Errorf("expected store error, got %v", err)
		}
		if buf.Len() == 0 {
			t.Error("report should still be written")
		}
	})
}
