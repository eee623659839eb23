package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/nao1215/deepcrawl/internal/model"
)

// JSONWriter outputs runs as JSON.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string
	includeHTML  bool
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables indented output with the given prefix and indent.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithHTML includes the raw HTML of every page.
func WithHTML(include bool) JSONWriterOption {
	return func(w *JSONWriter) {
		w.includeHTML = include
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// jsonReport is the document written by JSONWriter. Seeds are listed in
// batch order rather than as a map.
type jsonReport struct {
	ID         string       `json:"id"`
	Status     model.Status `json:"status"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	DurationMS int64        `json:"duration_ms"`
	Totals     jsonTotals   `json:"totals"`
	Seeds      []jsonSeed   `json:"seeds"`
}

type jsonTotals struct {
	Seeds     int `json:"seeds"`
	Pages     int `json:"pages"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

type jsonSeed struct {
	model.SeedResult
	Pages []jsonPage `json:"pages"`
}

type jsonPage struct {
	model.PageResult
	HTML string `json:"html,omitempty"`
}

// Write outputs the run as a single JSON document followed by a newline.
func (w *JSONWriter) Write(run *model.BatchRun) (int, error) {
	t := countRun(run)
	doc := jsonReport{
		ID:         run.ID,
		Status:     run.Status,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		DurationMS: run.Duration().Milliseconds(),
		Totals: jsonTotals{
			Seeds:     len(run.Seeds),
			Pages:     t.pages,
			Succeeded: t.succeeded,
			Failed:    t.failed,
		},
		Seeds: make([]jsonSeed, 0, len(run.Seeds)),
	}

	for _, r := range run.Results() {
		seed := jsonSeed{SeedResult: *r, Pages: make([]jsonPage, 0, len(r.Pages))}
		for _, p := range r.Pages {
			page := jsonPage{PageResult: p}
			if w.includeHTML {
				page.HTML = p.HTML
			}
			seed.Pages = append(seed.Pages, page)
		}
		doc.Seeds = append(doc.Seeds, seed)
	}

	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(doc, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}
