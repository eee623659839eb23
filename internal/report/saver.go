package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/deepcrawl/internal/model"
)

const (
	dirPerm  = 0750
	filePerm = 0600

	// maxNameLength caps the seed-derived part of a directory name.
	maxNameLength = 50

	timeLayout = "2006-01-02 15:04:05"
)

// Saver writes the pages of a batch run to a directory tree:
//
//	batch_crawl_<unix>/
//	  batch_summary.txt
//	  url_<n>_<seed>/
//	    url_info.txt
//	    combined_<unix>.md, combined_<unix>.html, combined_console_<unix>.txt
//	    page_<i>/page_<i>.md, page_<i>.html, page_info.txt
//
// In single-page mode each seed directory instead holds result_<unix>.md,
// result_<unix>.html and console_<unix>.txt for the seed page.
type Saver struct {
	root       string
	singlePage bool
	now        func() time.Time
}

// SaverOption configures a Saver.
type SaverOption func(*Saver)

// WithSinglePage selects the single-page layout.
func WithSinglePage(single bool) SaverOption {
	return func(s *Saver) {
		s.singlePage = single
	}
}

// WithClock sets the time source used for directory and file names.
func WithClock(now func() time.Time) SaverOption {
	return func(s *Saver) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSaver creates a Saver rooted at dir.
func NewSaver(dir string, opts ...SaverOption) *Saver {
	s := &Saver{root: dir, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save writes the run and returns the batch directory it created.
func (s *Saver) Save(run *model.BatchRun) (string, error) {
	now := s.now()
	stamp := now.Unix()

	batchDir := filepath.Join(s.root, fmt.Sprintf("batch_crawl_%d", stamp))
	if err := os.MkdirAll(batchDir, dirPerm); err != nil {
		return "", fmt.Errorf("failed to create batch directory: %w", err)
	}

	for _, r := range run.Results() {
		dir := filepath.Join(batchDir, fmt.Sprintf("url_%d_%s", r.Index+1, SanitizeName(r.Seed)))
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return "", fmt.Errorf("failed to create seed directory: %w", err)
		}

		var err error
		if s.singlePage {
			err = s.saveSingle(dir, r, stamp)
		} else {
			err = s.saveDeep(dir, r, stamp)
		}
		if err != nil {
			return "", err
		}
	}

	if err := writeFile(filepath.Join(batchDir, "batch_summary.txt"), batchSummary(run, now)); err != nil {
		return "", err
	}
	return batchDir, nil
}

func (s *Saver) saveDeep(dir string, r *model.SeedResult, stamp int64) error {
	var markdowns, htmls, console []string

	for i, p := range r.Pages {
		n := i + 1
		pageDir := filepath.Join(dir, fmt.Sprintf("page_%d", n))
		if err := os.MkdirAll(pageDir, dirPerm); err != nil {
			return fmt.Errorf("failed to create page directory: %w", err)
		}

		if p.Markdown != "" {
			if err := writeFile(filepath.Join(pageDir, fmt.Sprintf("page_%d.md", n)), p.Markdown); err != nil {
				return err
			}
			markdowns = append(markdowns, p.Markdown)
		}
		if p.HTML != "" {
			if err := writeFile(filepath.Join(pageDir, fmt.Sprintf("page_%d.html", n)), p.HTML); err != nil {
				return err
			}
			htmls = append(htmls, p.HTML)
		}
		for _, line := range p.ConsoleLog {
			console = append(console, fmt.Sprintf("[page %d] %s", n, line))
		}

		if err := writeFile(filepath.Join(pageDir, "page_info.txt"), pageInfo(p)); err != nil {
			return err
		}
	}

	combined := []struct {
		name  string
		parts []string
		sep   string
	}{
		{fmt.Sprintf("combined_%d.md", stamp), markdowns, "\n\n"},
		{fmt.Sprintf("combined_%d.html", stamp), htmls, "\n\n"},
		{fmt.Sprintf("combined_console_%d.txt", stamp), console, "\n"},
	}
	for _, c := range combined {
		if len(c.parts) == 0 {
			continue
		}
		if err := writeFile(filepath.Join(dir, c.name), strings.Join(c.parts, c.sep)); err != nil {
			return err
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "URL: %s\n", r.Seed)
	fmt.Fprintf(&b, "Status: %s\n", r.Status)
	fmt.Fprintf(&b, "Total pages: %d\n", len(r.Pages))
	fmt.Fprintf(&b, "Successful pages: %d\n", r.SuccessCount())
	fmt.Fprintf(&b, "Crawled at: %s\n", s.crawlTime(r))
	if r.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", r.Error)
	}
	return writeFile(filepath.Join(dir, "url_info.txt"), b.String())
}

func (s *Saver) saveSingle(dir string, r *model.SeedResult, stamp int64) error {
	var b strings.Builder
	fmt.Fprintf(&b, "URL: %s\n", r.Seed)

	if len(r.Pages) == 0 {
		fmt.Fprintf(&b, "Success: false\n")
		if r.Error != "" {
			fmt.Fprintf(&b, "Error: %s\n", r.Error)
		}
		fmt.Fprintf(&b, "Crawled at: %s\n", s.crawlTime(r))
		return writeFile(filepath.Join(dir, "url_info.txt"), b.String())
	}

	p := r.Pages[0]
	if p.Markdown != "" {
		if err := writeFile(filepath.Join(dir, fmt.Sprintf("result_%d.md", stamp)), p.Markdown); err != nil {
			return err
		}
	}
	if p.HTML != "" {
		if err := writeFile(filepath.Join(dir, fmt.Sprintf("result_%d.html", stamp)), p.HTML); err != nil {
			return err
		}
	}
	if len(p.ConsoleLog) > 0 {
		lines := make([]string, len(p.ConsoleLog))
		for i, line := range p.ConsoleLog {
			lines[i] = fmt.Sprintf("%d. %s", i+1, line)
		}
		if err := writeFile(filepath.Join(dir, fmt.Sprintf("console_%d.txt", stamp)), strings.Join(lines, "\n")); err != nil {
			return err
		}
	}

	fmt.Fprintf(&b, "Status code: %d\n", p.StatusCode)
	fmt.Fprintf(&b, "Success: %t\n", p.Success)
	if p.ErrorMessage != "" {
		fmt.Fprintf(&b, "Error: %s\n", p.ErrorMessage)
	}
	fmt.Fprintf(&b, "Crawled at: %s\n", s.crawlTime(r))
	return writeFile(filepath.Join(dir, "url_info.txt"), b.String())
}

func (s *Saver) crawlTime(r *model.SeedResult) string {
	if !r.FinishedAt.IsZero() {
		return r.FinishedAt.Format(timeLayout)
	}
	return s.now().Format(timeLayout)
}

func pageInfo(p model.PageResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "URL: %s\n", p.URL)
	fmt.Fprintf(&b, "Depth: %d\n", p.Depth)
	if p.Score > 0 {
		fmt.Fprintf(&b, "Score: %.2f\n", p.Score)
	}
	fmt.Fprintf(&b, "Status code: %d\n", p.StatusCode)
	fmt.Fprintf(&b, "Success: %t\n", p.Success)
	if p.ErrorMessage != "" {
		fmt.Fprintf(&b, "Error: %s\n", p.ErrorMessage)
	}
	return b.String()
}

func batchSummary(run *model.BatchRun, now time.Time) string {
	results := run.Results()
	ok := 0
	for _, r := range results {
		if r.SuccessCount() > 0 {
			ok++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Batch crawl summary\n")
	fmt.Fprintf(&b, "Run ID: %s\n", run.ID)
	fmt.Fprintf(&b, "Time: %s\n", now.Format(timeLayout))
	fmt.Fprintf(&b, "Status: %s\n", run.Status)
	fmt.Fprintf(&b, "Total URLs: %d\n", len(results))
	fmt.Fprintf(&b, "Successful URLs: %d\n\n", ok)
	fmt.Fprintf(&b, "URLs:\n")
	for i, r := range results {
		mark := "✗"
		if r.SuccessCount() > 0 {
			mark = "✓"
		}
		fmt.Fprintf(&b, "%d. %s %s\n", i+1, mark, r.Seed)
	}
	return b.String()
}

// SanitizeName turns a URL into a string safe to use as a file name.
// The scheme is dropped, reserved characters become underscores and the
// result is capped at 50 bytes.
func SanitizeName(s string) string {
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`<>:"/\|?*`, r) {
			return '_'
		}
		return r
	}, s)
	if len(s) > maxNameLength {
		s = strings.ToValidUTF8(s[:maxNameLength], "")
	}
	return s
}

func writeFile(path, content string) error {
	if err := os.WriteFile(path, []byte(content), filePerm); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
