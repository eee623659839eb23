package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/deepcrawl/internal/config"
	"github.com/nao1215/deepcrawl/internal/crawler"
	"github.com/nao1215/deepcrawl/internal/database"
	"github.com/nao1215/deepcrawl/internal/fetch"
	applog "github.com/nao1215/deepcrawl/internal/log"
	"github.com/nao1215/deepcrawl/internal/model"
	"github.com/nao1215/deepcrawl/internal/pipeline"
	"github.com/nao1215/deepcrawl/internal/report"
	"github.com/nao1215/deepcrawl/internal/tor"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url...]",
		Short: "Crawl one or more seed URLs",
		Long: `Crawl follows links outward from each seed URL and collects every page.

Seeds are crawled one after another with the same settings. Within a seed,
pages are visited in the order chosen by --strategy:
  bfs         level by level, in discovery order
  dfs         the most recently discovered link first
  best-first  the link scoring highest against --keyword first

Links are followed only when they stay on the seed's host (unless
--include-external), match one of --pattern, pass --allow-domain and
--block-domain, and score at least --threshold.

Press Ctrl+C to stop. Pages fetched so far are kept and reported.

Examples:
  # Crawl a site two levels deep
  deepcrawl crawl https://go.dev/

  # Prefer pages about generics, up to 100 pages
  deepcrawl crawl -s best-first -k generics -k "type parameters=0.9" -p 100 https://go.dev/

  # Fetch only the seed pages listed in a file and save them to disk
  deepcrawl crawl --single --list urls.txt --save-dir ./out

  # Render JavaScript with headless Chrome through Tor
  deepcrawl crawl --engine chrome --tor-proxy 127.0.0.1:9050 http://example.onion/

  # Use a profile from the configuration file and write a Markdown report
  deepcrawl crawl --profile docs --markdown -o report.md https://go.dev/doc/`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	defaults := config.NewConfig()
	tc := defaults.Traversal
	browser := defaults.Browser

	// Traversal
	cmd.Flags().StringP("strategy", "s", tc.Strategy.String(),
		"Traversal strategy: bfs, dfs or best-first")
	cmd.Flags().IntP("depth", "d", tc.MaxDepth,
		fmt.Sprintf("Maximum link distance from the seed (1-%d)", config.MaxAllowedDepth))
	cmd.Flags().IntP("max-pages", "p", tc.MaxPages,
		fmt.Sprintf("Maximum pages per seed, failures included (1-%d)", config.MaxAllowedPages))
	cmd.Flags().Bool("include-external", tc.IncludeExternal,
		"Follow links to other hosts")
	cmd.Flags().Bool("buffered", !tc.Streaming,
		"Release a seed's pages only when its traversal ends")
	cmd.Flags().StringSlice("pattern", nil,
		"Glob a link must match, e.g. '*/docs/*' (repeatable)")
	cmd.Flags().StringSlice("allow-domain", nil,
		"Only follow links to this domain and its subdomains (repeatable)")
	cmd.Flags().StringSlice("block-domain", nil,
		"Never follow links to this domain or its subdomains (repeatable)")
	cmd.Flags().StringArrayP("keyword", "k", nil,
		"Relevance keyword as 'term' or 'term=weight' (repeatable)")
	cmd.Flags().Float64("keyword-weight", config.DefaultKeywordWeight,
		"Weight of keywords given without one")
	cmd.Flags().Float64("threshold", tc.ScoreThreshold,
		"Drop links scoring below this under bfs and dfs (requires --keyword)")

	// Seeds
	cmd.Flags().Bool("single", false,
		"Fetch only the seed pages without following links")
	cmd.Flags().StringP("list", "l", "",
		"Read seed URLs from a file, one per line")

	// Fetching
	cmd.Flags().String("engine", defaults.Engine,
		"Fetch engine: http or chrome")
	cmd.Flags().String("chrome-path", "",
		"Browser executable for the chrome engine (default: search PATH)")
	cmd.Flags().DurationP("timeout", "t", defaults.Timeout,
		"Timeout for each page fetch")
	cmd.Flags().String("user-agent", defaults.UserAgent,
		"User-Agent header")
	cmd.Flags().Int64("max-body-size", defaults.MaxBodySize,
		"Maximum bytes read per page")
	cmd.Flags().Bool("no-robots", false,
		"Ignore robots.txt")
	cmd.Flags().Float64("rate", defaults.RequestsPerSecond,
		"Requests per second per host (0 disables limiting)")
	cmd.Flags().String("cookie", "",
		"Cookie header sent with every request")
	cmd.Flags().StringArrayP("header", "H", nil,
		"Extra request header as 'Name: value' (repeatable)")

	// Browser options
	cmd.Flags().Bool("headless", browser.Headless,
		"Run the browser without a window")
	cmd.Flags().Bool("simulate-user", browser.SimulateUser,
		"Scroll the page before capturing it")
	cmd.Flags().Bool("stealth", browser.StealthMode,
		"Send a desktop browser header set and hide automation markers")
	cmd.Flags().Bool("wait-images", browser.WaitForImages,
		"Wait for images to load before capturing")
	cmd.Flags().Float64("delay", browser.DelaySeconds,
		fmt.Sprintf("Seconds to wait after load before capturing (0-%d)", config.MaxDelaySeconds))

	// Tor
	cmd.Flags().String("tor-proxy", "",
		"Route traffic through the Tor SOCKS5 proxy at host:port")
	cmd.Flags().Bool("embedded-tor", false,
		"Start a private Tor daemon and route traffic through it")
	cmd.Flags().Duration("tor-timeout", defaults.TorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .deepcrawl in current or home directory)")
	cmd.Flags().StringP("profile", "P", "",
		"Profile from the configuration file to apply")

	// Output
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().String("save-dir", "",
		"Save every page as Markdown and HTML under this directory")
	cmd.Flags().Bool("no-db", false,
		"Do not store the run in the history database")
	cmd.Flags().String("db-dir", defaults.DBDir,
		"Directory of the history database")
	cmd.Flags().Duration("skip-recent", 0,
		"Skip seeds fetched successfully within this window, e.g. 24h (needs the database)")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, getLogFormat(cmd))
	slog.SetDefault(logger)

	return runCrawl(cmd.Context(), cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

func getLogFormat(cmd *cobra.Command) string {
	format, err := cmd.Flags().GetString("log-format")
	if err != nil {
		return "text"
	}
	return format
}

// setupLogger creates the process logger. Sensitive attributes such as
// cookies and URL tokens are redacted.
func setupLogger(w io.Writer, verbose bool, format string) *slog.Logger {
	if format == "json" {
		return applog.NewSecureJSONLogger(w, verbose)
	}
	return applog.NewSecureLogger(w, verbose)
}

// buildConfig layers the configuration: built-in defaults, then the
// configuration file defaults and --profile, then flags given explicitly.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.Profile, err = flags.GetString("profile"); err != nil {
		return nil, err
	}
	if err := applyConfigFile(cfg); err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.Browser.Verbose = cfg.Verbose

	if err := applyTraversalFlags(cmd, cfg); err != nil {
		return nil, err
	}
	if err := applyFetchFlags(cmd, cfg); err != nil {
		return nil, err
	}
	if err := applyOutputFlags(cmd, cfg); err != nil {
		return nil, err
	}

	seeds := append([]string(nil), args...)
	listFile, err := flags.GetString("list")
	if err != nil {
		return nil, err
	}
	if listFile != "" {
		listed, err := readSeedList(listFile)
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, listed...)
	}
	cfg.Seeds = seeds

	return cfg, nil
}

// applyConfigFile loads the configuration file, if any, and applies its
// defaults merged with the selected profile. An explicit --config path or
// --profile that cannot be satisfied is an error; a missing default file
// is not.
func applyConfigFile(cfg *config.Config) error {
	path := config.FindConfigFile(cfg.ConfigFilePath)
	if path == "" {
		if cfg.ConfigFilePath != "" {
			return fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
		}
		if cfg.Profile != "" {
			return fmt.Errorf("%w: %s (no configuration file found)", config.ErrProfileNotFound, cfg.Profile)
		}
		return nil
	}

	file, err := config.LoadConfigFile(path)
	if err != nil {
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	profile, err := file.GetProfile(cfg.Profile)
	if err != nil {
		return err
	}
	if err := profile.Apply(cfg); err != nil {
		return fmt.Errorf("invalid settings in %s: %w", path, err)
	}
	return nil
}

func applyTraversalFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	t := &cfg.Traversal

	if flags.Changed("strategy") {
		name, _ := flags.GetString("strategy") //nolint:errcheck // flag is registered
		s, err := model.ParseStrategy(name)
		if err != nil {
			return &config.ValidationError{Field: "strategy", Err: fmt.Errorf("%w: %s", config.ErrUnknownStrategy, name)}
		}
		t.Strategy = s
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"depth", &t.MaxDepth},
		{"max-pages", &t.MaxPages},
	}
	for _, f := range ints {
		if flags.Changed(f.name) {
			v, err := flags.GetInt(f.name)
			if err != nil {
				return err
			}
			*f.dst = v
		}
	}

	if flags.Changed("include-external") {
		t.IncludeExternal, _ = flags.GetBool("include-external") //nolint:errcheck // flag is registered
	}
	if flags.Changed("buffered") {
		buffered, _ := flags.GetBool("buffered") //nolint:errcheck // flag is registered
		t.Streaming = !buffered
	}

	slices := []struct {
		name string
		dst  *[]string
	}{
		{"pattern", &t.URLPatterns},
		{"allow-domain", &t.AllowedDomains},
		{"block-domain", &t.BlockedDomains},
	}
	for _, f := range slices {
		if flags.Changed(f.name) {
			v, err := flags.GetStringSlice(f.name)
			if err != nil {
				return err
			}
			*f.dst = v
		}
	}

	if flags.Changed("keyword") {
		raw, err := flags.GetStringArray("keyword")
		if err != nil {
			return err
		}
		weight, err := flags.GetFloat64("keyword-weight")
		if err != nil {
			return err
		}
		t.Keywords = t.Keywords[:0:0]
		for _, r := range raw {
			kw, err := config.ParseKeyword(r, weight)
			if err != nil {
				return err
			}
			t.Keywords = append(t.Keywords, kw)
		}
	}
	if flags.Changed("threshold") {
		v, err := flags.GetFloat64("threshold")
		if err != nil {
			return err
		}
		t.ScoreThreshold = v
	}

	single, err := flags.GetBool("single")
	if err != nil {
		return err
	}
	cfg.SinglePage = single

	return nil
}

func applyFetchFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	strs := []struct {
		name string
		dst  *string
	}{
		{"engine", &cfg.Engine},
		{"chrome-path", &cfg.ChromePath},
		{"user-agent", &cfg.UserAgent},
		{"cookie", &cfg.Cookie},
	}
	for _, f := range strs {
		if flags.Changed(f.name) {
			v, err := flags.GetString(f.name)
			if err != nil {
				return err
			}
			*f.dst = v
		}
	}
	cfg.Engine = strings.ToLower(cfg.Engine)

	var err error
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return err
	}
	if cfg.RequestsPerSecond, err = flags.GetFloat64("rate"); err != nil {
		return err
	}
	noRobots, err := flags.GetBool("no-robots")
	if err != nil {
		return err
	}
	cfg.RespectRobots = !noRobots

	if flags.Changed("header") {
		raw, err := flags.GetStringArray("header")
		if err != nil {
			return err
		}
		headers, err := parseHeaders(raw)
		if err != nil {
			return err
		}
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			cfg.Headers[k] = v
		}
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"headless", &cfg.Browser.Headless},
		{"simulate-user", &cfg.Browser.SimulateUser},
		{"stealth", &cfg.Browser.StealthMode},
		{"wait-images", &cfg.Browser.WaitForImages},
	}
	for _, f := range bools {
		if flags.Changed(f.name) {
			v, err := flags.GetBool(f.name)
			if err != nil {
				return err
			}
			*f.dst = v
		}
	}
	if flags.Changed("delay") {
		if cfg.Browser.DelaySeconds, err = flags.GetFloat64("delay"); err != nil {
			return err
		}
	}

	torProxy, err := flags.GetString("tor-proxy")
	if err != nil {
		return err
	}
	if torProxy != "" {
		cfg.UseTor = true
		cfg.TorProxyAddress = torProxy
	}
	if cfg.EmbeddedTor, err = flags.GetBool("embedded-tor"); err != nil {
		return err
	}
	if cfg.EmbeddedTor && torProxy != "" {
		return errors.New("--tor-proxy and --embedded-tor cannot be used together")
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return err
	}

	return nil
}

func applyOutputFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	var err error
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return err
	}
	if cfg.SaveDir, err = flags.GetString("save-dir"); err != nil {
		return err
	}
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return err
	}
	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return err
	}
	cfg.SaveToDB = !noDB
	if cfg.SkipRecent, err = flags.GetDuration("skip-recent"); err != nil {
		return err
	}
	if cfg.SkipRecent > 0 && noDB {
		return errors.New("--skip-recent cannot be used with --no-db")
	}

	return nil
}

// parseHeaders parses "Name: value" entries.
func parseHeaders(raw []string) (map[string]string, error) {
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q: expected 'Name: value'", h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// readSeedList reads one URL per line. Blank lines and lines starting with
// '#' are skipped.
func readSeedList(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided list path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open seed list: %w", err)
	}
	defer f.Close()

	var seeds []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		seeds = append(seeds, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read seed list: %w", err)
	}
	return seeds, nil
}

// runCrawl crawls cfg.Seeds and runs the post-crawl pipeline. Page lines
// and progress go to progress; the report goes to out or cfg.ReportFile.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, out, progress io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Keep page lines out of a JSON or Markdown report written to stdout.
	if cfg.ReportFile != "" || (!cfg.JSONReport && !cfg.MarkdownReport) {
		progress = out
	}
	if progress == nil {
		progress = io.Discard
	}

	var db *database.CrawlDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "dir", cfg.DBDir)
	}

	seeds := cfg.Seeds
	if db != nil && cfg.SkipRecent > 0 {
		var err error
		seeds, err = skipRecentSeeds(ctx, db, seeds, cfg.SkipRecent, progress)
		if err != nil {
			return err
		}
		if len(seeds) == 0 {
			fmt.Fprintln(progress, "Every seed was crawled recently; nothing to do.")
			return nil
		}
	}

	serviceOpts := []fetch.ServiceOption{fetch.WithLogger(logger)}
	torOpts, stopTor, err := setupTor(ctx, cfg, logger, progress)
	if err != nil {
		return err
	}
	defer stopTor()
	serviceOpts = append(serviceOpts, torOpts...)

	service := fetch.New(cfg, serviceOpts...)
	logger.Info("fetch engine ready", "engine", service.Engine())

	traversal := cfg.EffectiveTraversal()
	pages := report.NewSimpleWriter(progress, report.WithVerbose(cfg.Verbose))
	var seedIndex int

	coord := pipeline.NewCoordinator(service,
		pipeline.WithCoordinatorLogger(logger),
		pipeline.WithWorkerOptions(crawler.WithBrowserOptions(cfg.Browser)),
		pipeline.WithProgress(func(p pipeline.Progress) {
			seedIndex = p.Index
			fmt.Fprintf(progress, "Crawling %s\n", p)
		}),
		pipeline.WithPageObserver(func(_ string, page model.PageResult) {
			_, _ = pages.WritePage(seedIndex, page) //nolint:errcheck // progress output is best effort
		}),
		pipeline.WithSeedDone(func(r *model.SeedResult) {
			fmt.Fprintf(progress, "Finished %s: %s, %d/%d pages fetched\n\n",
				r.Seed, r.Status, r.SuccessCount(), len(r.Pages))
		}),
	)

	stopSignals := cancelOnSignal(coord, logger, progress)
	defer stopSignals()

	startTime := time.Now()
	run, err := coord.Run(ctx, seeds, traversal)
	if err != nil {
		return err
	}
	fmt.Fprintf(progress, "Crawl %s in %s\n\n", run.Status, time.Since(startTime).Round(time.Millisecond))

	output, closeOutput, err := openReportOutput(cfg, out)
	if err != nil {
		return err
	}
	defer closeOutput()

	pcfg := pipeline.DefaultPipelineConfig{
		Writer:    newReportWriter(cfg, output),
		Traversal: traversal,
		Logger:    logger,
	}
	if db != nil {
		pcfg.Store = db
	}
	if cfg.SaveDir != "" {
		pcfg.Saver = report.NewSaver(cfg.SaveDir, report.WithSinglePage(cfg.SinglePage))
		pcfg.OnSaved = func(dir string) {
			fmt.Fprintf(progress, "Pages saved to %s\n", dir)
		}
	}

	p, err := pipeline.DefaultPipeline(pcfg)
	if err != nil {
		return err
	}

	// Post-crawl steps run to completion even after an interrupt.
	return p.Execute(context.WithoutCancel(ctx), run)
}

// skipRecentSeeds drops seeds that the database shows were fetched
// successfully within window.
func skipRecentSeeds(ctx context.Context, db *database.CrawlDB, raw []string, window time.Duration, progress io.Writer) ([]string, error) {
	seeds, err := pipeline.PrepareSeeds(raw)
	if err != nil {
		return nil, err
	}

	kept := seeds[:0]
	for _, seed := range seeds {
		recent, err := db.HasRecentFetch(ctx, seed, window)
		if err != nil {
			return nil, err
		}
		if recent {
			fmt.Fprintf(progress, "Skipping %s: crawled within the last %s\n", seed, window)
			continue
		}
		kept = append(kept, seed)
	}
	return kept, nil
}

// newReportWriter returns the writer for the selected report format.
// Pages were already listed while crawling, so the text summary omits them.
func newReportWriter(cfg *config.Config, w io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(w, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w)
	default:
		return report.NewSimpleWriter(w,
			report.WithVerbose(cfg.Verbose),
			report.WithPageList(cfg.ReportFile != ""),
		)
	}
}

// openReportOutput returns cfg.ReportFile opened for writing, or out.
func openReportOutput(cfg *config.Config, out io.Writer) (io.Writer, func(), error) {
	if cfg.ReportFile == "" {
		return out, func() {}, nil
	}

	if dir := filepath.Dir(cfg.ReportFile); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports may carry page content behind a login; keep them owner-only.
	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// cancelOnSignal stops the batch on SIGINT or SIGTERM. The returned
// function releases the signal handler.
func cancelOnSignal(coord *pipeline.Coordinator, logger *slog.Logger, progress io.Writer) func() {
	sigCh := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			logger.Warn("received shutdown signal, stopping crawl", "signal", sig.String())
			fmt.Fprintln(progress, "\nStopping, keeping pages fetched so far...")
			coord.Cancel()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

// setupTor prepares Tor routing when requested and returns the fetch
// options that use it and a function stopping anything that was started.
func setupTor(ctx context.Context, cfg *config.Config, logger *slog.Logger, progress io.Writer) ([]fetch.ServiceOption, func(), error) {
	noop := func() {}

	switch {
	case cfg.EmbeddedTor:
		client, embedded, err := startEmbeddedTor(ctx, cfg, logger, progress)
		if err != nil {
			return nil, noop, err
		}
		stop := func() {
			logger.Info("stopping embedded Tor daemon")
			if err := embedded.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}
		return torServiceOptions(client), stop, nil

	case cfg.UseTor:
		client, err := tor.NewClient(cfg.TorProxyAddress, cfg.Timeout)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create Tor client: %w", err)
		}
		if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
			return nil, noop, fmt.Errorf("tor proxy check failed: %w (make sure Tor is running at %s)",
				status.Error(), cfg.TorProxyAddress)
		}
		logger.Info("Tor proxy connection verified", "address", cfg.TorProxyAddress)
		return torServiceOptions(client), noop, nil

	default:
		return nil, noop, nil
	}
}

func torServiceOptions(client *tor.Client) []fetch.ServiceOption {
	return []fetch.ServiceOption{
		fetch.WithClient(client.NewHTTPClient()),
		fetch.WithBrowserProxy("socks5://" + client.ProxyAddress()),
	}
}

// startEmbeddedTor starts a private Tor daemon and returns a verified
// client for it.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, logger *slog.Logger, progress io.Writer) (*tor.Client, *tor.EmbeddedTor, error) {
	fmt.Fprintln(progress, "Starting embedded Tor daemon...")
	fmt.Fprintf(progress, "This may take 1-3 minutes while Tor bootstraps.\n\n")

	embedded := tor.NewEmbeddedTor(
		tor.WithStartupTimeout(cfg.TorStartupTimeout),
		tor.WithLogger(logger),
	)
	if err := embedded.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	logger.Info("embedded Tor daemon started",
		"socksAddr", embedded.SocksAddr(),
		"controlAddr", embedded.ControlAddr(),
	)
	fmt.Fprintf(progress, "SOCKS proxy: %s\n\n", embedded.SocksAddr())

	client, err := embedded.NewClient(cfg.Timeout)
	if err != nil {
		_ = embedded.Stop() //nolint:errcheck // Best effort cleanup
		return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
	}

	if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
		_ = embedded.Stop() //nolint:errcheck // Best effort cleanup
		return nil, nil, fmt.Errorf("embedded Tor proxy check failed: %w", status.Error())
	}

	return client, embedded, nil
}
