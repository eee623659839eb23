package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/deepcrawl/internal/config"
	"github.com/nao1215/deepcrawl/internal/model"
)

// DBFileName is the name of the database file inside the database directory.
const DBFileName = "deepcrawl.db"

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// sqliteTimeFormat matches SQLite's datetime() output so stored timestamps
// compare correctly against datetime('now', ...).
const sqliteTimeFormat = "2006-01-02 15:04:05.000"

// CrawlDB stores crawl runs and their pages in SQLite.
type CrawlDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file; mode=rwc creates it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

func (cdb *CrawlDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		seeds TEXT NOT NULL,
		config_json TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		page_count INTEGER DEFAULT 0,
		success_count INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS seed_results (
		run_id TEXT NOT NULL,
		seed TEXT NOT NULL,
		idx INTEGER NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		PRIMARY KEY (run_id, seed)
	);

	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		seed TEXT NOT NULL,
		seq INTEGER NOT NULL,
		url TEXT NOT NULL,
		depth INTEGER NOT NULL,
		score REAL NOT NULL,
		status_code INTEGER,
		success INTEGER NOT NULL,
		error TEXT,
		markdown TEXT,
		html TEXT,
		links TEXT,
		console TEXT,
		fetched_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id, seed, seq);
	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);
	CREATE INDEX IF NOT EXISTS idx_pages_fetched ON pages(fetched_at);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun stores a run, its seed outcomes and every page in one transaction.
// Saving the same run again replaces the previous copy.
func (cdb *CrawlDB) SaveRun(ctx context.Context, run *model.BatchRun, cfg config.TraversalConfig) (err error) {
	seedsJSON, err := json.Marshal(run.Seeds)
	if err != nil {
		return fmt.Errorf("failed to serialize seeds: %w", err)
	}
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, q := range []string{
		`DELETE FROM pages WHERE run_id = ?`,
		`DELETE FROM seed_results WHERE run_id = ?`,
		`DELETE FROM runs WHERE id = ?`,
	} {
		if _, err = tx.ExecContext(ctx, q, run.ID); err != nil {
			return fmt.Errorf("failed to clear previous run: %w", err)
		}
	}

	total, succeeded := run.Counts()
	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (id, status, seeds, config_json, started_at, finished_at, page_count, success_count)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Status.String(), string(seedsJSON), string(cfgJSON),
		formatTime(run.StartedAt), formatTime(run.FinishedAt), total, succeeded)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	seedStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO seed_results (run_id, seed, idx, status, error, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare seed insert: %w", err)
	}
	defer seedStmt.Close()

	pageStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO pages (run_id, seed, seq, url, depth, score, status_code, success, error, markdown, html, links, console, fetched_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer pageStmt.Close()

	for _, r := range run.Results() {
		if _, err = seedStmt.ExecContext(ctx, run.ID, r.Seed, r.Index, r.Status.String(), r.Error,
			formatTime(r.StartedAt), formatTime(r.FinishedAt)); err != nil {
			return fmt.Errorf("failed to insert seed result: %w", err)
		}

		for seq, p := range r.Pages {
			linksJSON, mErr := json.Marshal(p.Links)
			if mErr != nil {
				err = fmt.Errorf("failed to serialize links: %w", mErr)
				return err
			}
			consoleJSON, mErr := json.Marshal(p.ConsoleLog)
			if mErr != nil {
				err = fmt.Errorf("failed to serialize console log: %w", mErr)
				return err
			}
			if _, err = pageStmt.ExecContext(ctx, run.ID, r.Seed, seq, p.URL, p.Depth, p.Score, p.StatusCode,
				boolToInt(p.Success), p.ErrorMessage, p.Markdown, p.HTML,
				string(linksJSON), string(consoleJSON), formatTime(p.FetchedAt)); err != nil {
				return fmt.Errorf("failed to insert page: %w", err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// RunSummary is the list view of a stored run.
type RunSummary struct {
	ID           string
	Status       model.Status
	Seeds        []string
	StartedAt    time.Time
	FinishedAt   time.Time
	PageCount    int
	SuccessCount int
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run.
func (cdb *CrawlDB) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `
	SELECT id, status, seeds, started_at, finished_at, page_count, success_count
	FROM runs
	ORDER BY started_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var (
			s                 RunSummary
			status, seedsJSON string
			started, finished sql.NullString
		)
		if err := rows.Scan(&s.ID, &status, &seedsJSON, &started, &finished, &s.PageCount, &s.SuccessCount); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		s.Status, _ = model.ParseStatus(status) //nolint:errcheck // unknown status reads as idle
		if err := json.Unmarshal([]byte(seedsJSON), &s.Seeds); err != nil {
			s.Seeds = nil
		}
		s.StartedAt = parseTimestamp(started.String)
		s.FinishedAt = parseTimestamp(finished.String)
		runs = append(runs, s)
	}

	return runs, rows.Err()
}

// GetRun loads a complete run with every page. It returns ErrRunNotFound
// when the ID is unknown. The traversal configuration the run used is
// returned alongside.
func (cdb *CrawlDB) GetRun(ctx context.Context, id string) (*model.BatchRun, config.TraversalConfig, error) {
	var (
		cfg               config.TraversalConfig
		status, seedsJSON string
		cfgJSON           sql.NullString
		started, finished sql.NullString
	)
	err := cdb.db.QueryRowContext(ctx, `
	SELECT status, seeds, config_json, started_at, finished_at FROM runs WHERE id = ?`, id).
		Scan(&status, &seedsJSON, &cfgJSON, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cfg, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, cfg, fmt.Errorf("failed to get run: %w", err)
	}

	var seeds []string
	if err := json.Unmarshal([]byte(seedsJSON), &seeds); err != nil {
		return nil, cfg, fmt.Errorf("failed to parse seeds: %w", err)
	}
	if cfgJSON.Valid && cfgJSON.String != "" {
		if err := json.Unmarshal([]byte(cfgJSON.String), &cfg); err != nil {
			return nil, cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	run := model.NewBatchRun(seeds)
	run.ID = id
	run.Status, _ = model.ParseStatus(status) //nolint:errcheck // unknown status reads as idle
	run.StartedAt = parseTimestamp(started.String)
	run.FinishedAt = parseTimestamp(finished.String)

	if err := cdb.loadSeedResults(ctx, run); err != nil {
		return nil, cfg, err
	}
	if err := cdb.loadPages(ctx, run); err != nil {
		return nil, cfg, err
	}

	return run, cfg, nil
}

func (cdb *CrawlDB) loadSeedResults(ctx context.Context, run *model.BatchRun) error {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT seed, idx, status, error, started_at, finished_at
	FROM seed_results WHERE run_id = ? ORDER BY idx`, run.ID)
	if err != nil {
		return fmt.Errorf("failed to get seed results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			seed, status      string
			idx               int
			errMsg            sql.NullString
			started, finished sql.NullString
		)
		if err := rows.Scan(&seed, &idx, &status, &errMsg, &started, &finished); err != nil {
			return fmt.Errorf("failed to scan seed result: %w", err)
		}
		r, ok := run.PerSeed[seed]
		if !ok {
			continue
		}
		r.Index = idx
		r.Status, _ = model.ParseStatus(status) //nolint:errcheck // unknown status reads as idle
		r.Error = errMsg.String
		r.StartedAt = parseTimestamp(started.String)
		r.FinishedAt = parseTimestamp(finished.String)
	}
	return rows.Err()
}

func (cdb *CrawlDB) loadPages(ctx context.Context, run *model.BatchRun) error {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT seed, url, depth, score, status_code, success, error, markdown, html, links, console, fetched_at
	FROM pages WHERE run_id = ? ORDER BY seed, seq`, run.ID)
	if err != nil {
		return fmt.Errorf("failed to get pages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			seed                              string
			p                                 model.PageResult
			statusCode                        sql.NullInt64
			success                           int
			errMsg, markdown, html            sql.NullString
			linksJSON, consoleJSON, fetchedAt sql.NullString
		)
		if err := rows.Scan(&seed, &p.URL, &p.Depth, &p.Score, &statusCode, &success, &errMsg,
			&markdown, &html, &linksJSON, &consoleJSON, &fetchedAt); err != nil {
			return fmt.Errorf("failed to scan page: %w", err)
		}
		p.StatusCode = int(statusCode.Int64)
		p.Success = success != 0
		p.ErrorMessage = errMsg.String
		p.Markdown = markdown.String
		p.HTML = html.String
		p.FetchedAt = parseTimestamp(fetchedAt.String)
		if linksJSON.Valid {
			_ = json.Unmarshal([]byte(linksJSON.String), &p.Links) //nolint:errcheck // malformed links are dropped
		}
		if consoleJSON.Valid {
			_ = json.Unmarshal([]byte(consoleJSON.String), &p.ConsoleLog) //nolint:errcheck // malformed log is dropped
		}

		if r, ok := run.PerSeed[seed]; ok {
			r.Pages = append(r.Pages, p)
		}
	}
	return rows.Err()
}

// DeleteRun removes a run and its pages. Deleting an unknown ID returns
// ErrRunNotFound.
func (cdb *CrawlDB) DeleteRun(ctx context.Context, id string) error {
	res, err := cdb.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if _, err := cdb.db.ExecContext(ctx, `DELETE FROM seed_results WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete seed results: %w", err)
	}
	if _, err := cdb.db.ExecContext(ctx, `DELETE FROM pages WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete pages: %w", err)
	}
	return nil
}

// HasRecentFetch reports whether url was fetched successfully within the
// given duration in any stored run.
func (cdb *CrawlDB) HasRecentFetch(ctx context.Context, url string, duration time.Duration) (bool, error) {
	query := `
	SELECT COUNT(*) FROM pages
	WHERE url = ? AND success = 1 AND fetched_at > datetime('now', ?)
	`

	modifier := fmt.Sprintf("-%d seconds", int(duration.Seconds()))

	var count int
	if err := cdb.db.QueryRowContext(ctx, query, url, modifier).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check recent fetch: %w", err)
	}

	return count > 0, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(sqliteTimeFormat)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// parseTimestamp parses a timestamp in any of the SQLite formats.
// Unparsable or empty input yields the zero time.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
