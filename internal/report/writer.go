package report

import (
	"io"

	"github.com/nao1215/deepcrawl/internal/model"
)

// Writer formats a finished batch run.
type Writer interface {
	// Write outputs the run and returns the number of bytes written.
	Write(run *model.BatchRun) (int, error)
}

// PageWriter prints pages as they stream in during a crawl.
type PageWriter interface {
	// WritePage outputs one page of the seed at seedIndex (zero-based).
	WritePage(seedIndex int, page model.PageResult) (int, error)
}

// MultiWriter writes a run to several Writers in order, stopping at the
// first error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the run to every Writer and returns the total byte count.
func (m *MultiWriter) Write(run *model.BatchRun) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(run)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// totals counts pages and seeds of a run by outcome.
type totals struct {
	pages     int
	succeeded int
	failed    int

	seedsCompleted int
	seedsCancelled int
	seedsFailed    int
	seedsSkipped   int
}

func countRun(run *model.BatchRun) totals {
	var t totals
	t.pages, t.succeeded = run.Counts()
	t.failed = t.pages - t.succeeded
	for _, r := range run.Results() {
		switch r.Status {
		case model.StatusCompleted:
			t.seedsCompleted++
		case model.StatusCancelled:
			t.seedsCancelled++
		case model.StatusFailed:
			t.seedsFailed++
		default:
			t.seedsSkipped++
		}
	}
	return t
}
