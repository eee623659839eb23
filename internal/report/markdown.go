package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/deepcrawl/internal/model"
)

// MarkdownWriter outputs a run as one combined Markdown document: a
// summary, then every page of every seed with its content.
type MarkdownWriter struct {
	baseWriter

	// pageContent embeds each page's Markdown. Without it only the page
	// index is written.
	pageContent bool
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithPageContent controls whether page Markdown is embedded.
func WithPageContent(include bool) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		w.pageContent = include
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{
		baseWriter:  newBaseWriter(output),
		pageContent: true,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the run in Markdown format.
func (w *MarkdownWriter) Write(run *model.BatchRun) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, run)
	w.writeSeedTable(md, run)
	for _, r := range run.Results() {
		w.writeSeed(md, r)
	}
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, run *model.BatchRun) {
	t := countRun(run)

	md.H1("Deep Crawl Report")
	md.PlainText("")

	duration := "-"
	if d := run.Duration(); d > 0 {
		duration = d.Round(time.Millisecond).String()
	}
	md.Table(markdown.TableSet{
		Header: []string{"Item", "Value"},
		Rows: [][]string{
			{"Run ID", run.ID},
			{"Status", run.Status.String()},
			{"Started", formatTime(run.StartedAt)},
			{"Duration", duration},
			{"Seeds", strconv.Itoa(len(run.Seeds))},
			{"Pages", strconv.Itoa(t.pages)},
			{"Succeeded", strconv.Itoa(t.succeeded)},
			{"Failed", strconv.Itoa(t.failed)},
		},
	})
	md.PlainText("")

	if t.pages > 0 {
		w.writePieChart(md, t)
	}
	w.writeAlert(md, run, t)
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, t totals) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Page Outcomes"),
		piechart.WithShowData(true),
	)
	if t.succeeded > 0 {
		chart.LabelAndIntValue("Succeeded", uint64(t.succeeded))
	}
	if t.failed > 0 {
		chart.LabelAndIntValue("Failed", uint64(t.failed))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, run *model.BatchRun, t totals) {
	switch {
	case t.seedsFailed > 0:
		md.Warningf("%d seed(s) stopped because the fetch service failed.", t.seedsFailed)
	case run.Status == model.StatusCancelled:
		md.Importantf("The run was cancelled. %d seed(s) did not start; results are partial.", t.seedsSkipped)
	case t.failed > 0:
		md.Note(fmt.Sprintf("%d of %d page(s) could not be fetched.", t.failed, t.pages))
	default:
		md.Tip("Every page was fetched successfully.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeSeedTable(md *markdown.Markdown, run *model.BatchRun) {
	md.H2("Seeds")
	md.PlainText("")

	rows := make([][]string, 0, len(run.Seeds))
	for _, r := range run.Results() {
		rows = append(rows, []string{
			strconv.Itoa(r.Index + 1),
			r.Seed,
			r.Status.String(),
			strconv.Itoa(len(r.Pages)),
			strconv.Itoa(r.SuccessCount()),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"#", "Seed", "Status", "Pages", "Succeeded"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSeed(md *markdown.Markdown, r *model.SeedResult) {
	md.H2(fmt.Sprintf("%d. %s", r.Index+1, r.Seed))
	md.PlainText("")

	if r.Error != "" {
		md.Cautionf("Stopped: %s", r.Error)
		md.PlainText("")
	}
	if len(r.Pages) == 0 {
		md.PlainText("No pages.")
		md.PlainText("")
		return
	}

	for i, p := range r.Pages {
		md.H3(fmt.Sprintf("Page %d: %s", i+1, p.URL))
		md.PlainText("")
		md.BulletList(pageFacts(p)...)
		md.PlainText("")

		if !p.Success {
			md.PlainTextf("Error: %s", p.ErrorMessage)
			md.PlainText("")
			continue
		}
		if w.pageContent && strings.TrimSpace(p.Markdown) != "" {
			md.Details("Content", demoteHeadings(p.Markdown))
			md.PlainText("")
		}
		if len(p.ConsoleLog) > 0 {
			md.Details("Console", strings.Join(p.ConsoleLog, "\n"))
			md.PlainText("")
		}
	}
}

func pageFacts(p model.PageResult) []string {
	facts := []string{"Depth: " + strconv.Itoa(p.Depth)}
	if p.Score > 0 {
		facts = append(facts, "Score: "+strconv.FormatFloat(p.Score, 'f', 2, 64))
	}
	if p.StatusCode != 0 {
		facts = append(facts, "Status code: "+strconv.Itoa(p.StatusCode))
	}
	facts = append(facts, "Links: "+strconv.Itoa(len(p.Links)))
	if !p.FetchedAt.IsZero() {
		facts = append(facts, "Fetched: "+formatTime(p.FetchedAt))
	}
	return facts
}

// demoteHeadings pushes page headings below the report's own H3 level so
// the document outline stays intact.
func demoteHeadings(md string) string {
	lines := strings.Split(md, "\n")
	inCode := false
	for i, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCode = !inCode
			continue
		}
		if !inCode && strings.HasPrefix(line, "#") {
			lines[i] = "###" + line
		}
	}
	return strings.Join(lines, "\n")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [deepcrawl](https://github.com/nao1215/deepcrawl)*")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05 MST")
}
