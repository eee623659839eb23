package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/deepcrawl/internal/config"
	"github.com/nao1215/deepcrawl/internal/database"
	"github.com/nao1215/deepcrawl/internal/report"
)

const (
	defaultHistoryLimit = 20
	maxSeedColumnWidth  = 48
)

// NewHistoryCmd creates the history command.
// This command lists, shows and deletes runs stored in the database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List, show or delete stored crawl runs",
		Long: `History works with the runs that 'deepcrawl crawl' stored in the database.

Without flags it lists the most recent runs. Use --run to print one run as a
report, in any of the formats crawl supports, or to save its pages to disk
again. Use --delete to remove a run and its pages.

Examples:
  # List the 20 most recent runs
  deepcrawl history

  # List every run
  deepcrawl history --limit 0

  # Show a run as Markdown
  deepcrawl history --run 0b6f... --markdown -o run.md

  # Save the pages of a stored run
  deepcrawl history --run 0b6f... --save-dir ./out

  # Delete a run
  deepcrawl history --delete 0b6f...`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Number of runs to list (0 lists every run)")
	cmd.Flags().StringP("run", "r", "",
		"Show the run with this ID")
	cmd.Flags().String("delete", "",
		"Delete the run with this ID")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")

	cmd.Flags().BoolP("json", "j", false,
		"Output the run in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output the run in Markdown format")
	cmd.Flags().StringP("output", "o", "",
		"Write the run report to a file")
	cmd.Flags().String("save-dir", "",
		"Save the run's pages as Markdown and HTML under this directory")

	return cmd
}

type historyOptions struct {
	limit    int
	runID    string
	deleteID string
	dbDir    string
	json     bool
	markdown bool
	output   string
	saveDir  string
}

func historyOptionsFromFlags(cmd *cobra.Command) (historyOptions, error) {
	var (
		o   historyOptions
		err error
	)
	flags := cmd.Flags()
	if o.limit, err = flags.GetInt("limit"); err != nil {
		return o, err
	}
	if o.runID, err = flags.GetString("run"); err != nil {
		return o, err
	}
	if o.deleteID, err = flags.GetString("delete"); err != nil {
		return o, err
	}
	if o.dbDir, err = flags.GetString("db-dir"); err != nil {
		return o, err
	}
	if o.json, err = flags.GetBool("json"); err != nil {
		return o, err
	}
	if o.markdown, err = flags.GetBool("markdown"); err != nil {
		return o, err
	}
	if o.output, err = flags.GetString("output"); err != nil {
		return o, err
	}
	if o.saveDir, err = flags.GetString("save-dir"); err != nil {
		return o, err
	}
	return o, nil
}

// validate checks flag combinations before the database is opened.
func (o historyOptions) validate() error {
	if o.runID != "" && o.deleteID != "" {
		return errors.New("--run and --delete cannot be used together")
	}
	if o.json && o.markdown {
		return config.ErrConflictingReportFormats
	}
	if o.runID == "" && (o.json || o.markdown || o.output != "" || o.saveDir != "") {
		return errors.New("--json, --markdown, --output and --save-dir require --run")
	}
	if o.limit < 0 {
		return errors.New("--limit must not be negative")
	}
	return nil
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	opts, err := historyOptionsFromFlags(cmd)
	if err != nil {
		return err
	}
	if err := opts.validate(); err != nil {
		return err
	}

	db, err := database.Open(opts.dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	switch {
	case opts.deleteID != "":
		return deleteRun(ctx, db, out, opts.deleteID)
	case opts.runID != "":
		return showRun(ctx, db, out, opts)
	default:
		return listRuns(ctx, db, out, opts.limit)
	}
}

// listRuns prints the most recent runs as a table.
func listRuns(ctx context.Context, db *database.CrawlDB, out io.Writer, limit int) error {
	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No crawl runs found in the database.")
		fmt.Fprintln(out, "\nUse 'deepcrawl crawl <url>' to crawl a site.")
		return nil
	}

	fmt.Fprintf(out, "Crawl runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-36s  %-19s  %-9s  %5s  %5s  %s\n", "ID", "Started", "Status", "Pages", "OK", "Seeds")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 110))
	for _, r := range runs {
		started := "-"
		if !r.StartedAt.IsZero() {
			started = r.StartedAt.Local().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(out, "  %-36s  %-19s  %-9s  %5d  %5d  %s\n",
			r.ID, started, r.Status, r.PageCount, r.SuccessCount, seedColumn(r.Seeds))
	}
	fmt.Fprintln(out, "\nUse 'deepcrawl history --run <id>' to show a run.")
	return nil
}

// seedColumn summarizes the seed list in one cell.
func seedColumn(seeds []string) string {
	if len(seeds) == 0 {
		return "-"
	}
	s := seeds[0]
	if len(s) > maxSeedColumnWidth {
		s = s[:maxSeedColumnWidth-3] + "..."
	}
	if len(seeds) > 1 {
		s += fmt.Sprintf(" (+%d more)", len(seeds)-1)
	}
	return s
}

// showRun loads one run and writes it in the selected format, and saves
// its pages when a save directory is given.
func showRun(ctx context.Context, db *database.CrawlDB, out io.Writer, opts historyOptions) error {
	run, traversal, err := db.GetRun(ctx, opts.runID)
	if err != nil {
		return err
	}

	cfg := &config.Config{
		JSONReport:     opts.json,
		MarkdownReport: opts.markdown,
		ReportFile:     opts.output,
	}
	w, closeOutput, err := openReportOutput(cfg, out)
	if err != nil {
		return err
	}
	defer closeOutput()

	if !opts.json && !opts.markdown {
		fmt.Fprintf(w, "Traversal: %s\n", describeTraversal(traversal))
	}

	var writer report.Writer
	switch {
	case opts.json:
		writer = report.NewJSONWriter(w, report.WithPrettyPrint())
	case opts.markdown:
		writer = report.NewMarkdownWriter(w)
	default:
		writer = report.NewSimpleWriter(w)
	}
	if _, err := writer.Write(run); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if opts.saveDir != "" {
		saver := report.NewSaver(opts.saveDir, report.WithSinglePage(storedSinglePage(traversal)))
		dir, err := saver.Save(run)
		if err != nil {
			return fmt.Errorf("failed to save pages: %w", err)
		}
		fmt.Fprintf(out, "Pages saved to %s\n", dir)
	}
	return nil
}

// storedSinglePage reports whether a traversal loaded from the database
// was a single-page fetch. Only the limits survive storage.
func storedSinglePage(t config.TraversalConfig) bool {
	return t.IsSinglePage() || (t.MaxDepth == 0 && t.MaxPages == 1)
}

// describeTraversal renders the stored traversal settings on one line.
func describeTraversal(t config.TraversalConfig) string {
	if storedSinglePage(t) {
		return "single page"
	}
	parts := []string{
		t.Strategy.String(),
		fmt.Sprintf("depth %d", t.MaxDepth),
		fmt.Sprintf("max %d pages", t.MaxPages),
	}
	if t.IncludeExternal {
		parts = append(parts, "external links")
	}
	if len(t.Keywords) > 0 {
		terms := make([]string, 0, len(t.Keywords))
		for _, kw := range t.Keywords {
			terms = append(terms, fmt.Sprintf("%s=%.2f", kw.Term, kw.Weight))
		}
		parts = append(parts, "keywords "+strings.Join(terms, ","))
	}
	if t.ScoreThreshold > 0 {
		parts = append(parts, fmt.Sprintf("threshold %.2f", t.ScoreThreshold))
	}
	return strings.Join(parts, ", ")
}

func deleteRun(ctx context.Context, db *database.CrawlDB, out io.Writer, id string) error {
	if err := db.DeleteRun(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted run %s\n", id)
	return nil
}
