package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/deepcrawl/internal/model"
)

const ruleWidth = 70

// SimpleWriter outputs a plain text summary for the terminal.
type SimpleWriter struct {
	baseWriter

	// verbose adds error messages and link counts per page.
	verbose bool

	// showPages lists every page under its seed.
	showPages bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose adds error details and link counts to the output.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// WithPageList controls whether pages are listed under each seed. It is
// turned off when pages were already streamed with WritePage.
func WithPageList(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showPages = show
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		showPages:  true,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WritePage prints one line for a page as it arrives.
func (w *SimpleWriter) WritePage(seedIndex int, page model.PageResult) (int, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[seed %d] ", seedIndex+1)
	w.writePageLine(&sb, page)
	return io.WriteString(w.output, sb.String())
}

// Write outputs the whole run.
func (w *SimpleWriter) Write(run *model.BatchRun) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, run)
	w.writeSummary(&sb, run)
	for _, r := range run.Results() {
		w.writeSeed(&sb, r)
	}
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, run *model.BatchRun) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("                        DEEPCRAWL BATCH REPORT\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Run ID:    %s\n", run.ID)
	if !run.StartedAt.IsZero() {
		fmt.Fprintf(sb, "Started:   %s\n", run.StartedAt.Format("2006-01-02 15:04:05 MST"))
	}
	if d := run.Duration(); d > 0 {
		fmt.Fprintf(sb, "Duration:  %s\n", d.Round(time.Millisecond))
	}
	fmt.Fprintf(sb, "Status:    %s\n\n", strings.ToUpper(run.Status.String()))
}

func (w *SimpleWriter) writeSummary(sb *strings.Builder, run *model.BatchRun) {
	t := countRun(run)

	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\nSUMMARY\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "  Seeds:      %d (completed %d, cancelled %d, failed %d, not started %d)\n",
		len(run.Seeds), t.seedsCompleted, t.seedsCancelled, t.seedsFailed, t.seedsSkipped)
	fmt.Fprintf(sb, "  Pages:      %d\n", t.pages)
	fmt.Fprintf(sb, "  Succeeded:  %d\n", t.succeeded)
	fmt.Fprintf(sb, "  Failed:     %d\n\n", t.failed)
}

func (w *SimpleWriter) writeSeed(sb *strings.Builder, r *model.SeedResult) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	fmt.Fprintf(sb, "%d. %s [%s]\n", r.Index+1, r.Seed, r.Status)
	fmt.Fprintf(sb, "   pages %d, succeeded %d\n", len(r.Pages), r.SuccessCount())
	if r.Error != "" {
		fmt.Fprintf(sb, "   error: %s\n", r.Error)
	}

	if w.showPages && len(r.Pages) > 0 {
		sb.WriteString("\n")
		for _, p := range r.Pages {
			sb.WriteString("   ")
			w.writePageLine(sb, p)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writePageLine(sb *strings.Builder, p model.PageResult) {
	mark := "+"
	if !p.Success {
		mark = "x"
	}
	fmt.Fprintf(sb, "[%s] depth=%d", mark, p.Depth)
	if p.Score > 0 {
		fmt.Fprintf(sb, " score=%.2f", p.Score)
	}
	if p.StatusCode != 0 {
		fmt.Fprintf(sb, " status=%d", p.StatusCode)
	}
	fmt.Fprintf(sb, " %s\n", p.URL)

	if !w.verbose {
		return
	}
	if p.ErrorMessage != "" {
		fmt.Fprintf(sb, "      error: %s\n", p.ErrorMessage)
	}
	if len(p.Links) > 0 {
		fmt.Fprintf(sb, "      links: %d\n", len(p.Links))
	}
}
