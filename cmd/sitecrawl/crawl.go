package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawl/internal/config"
	"github.com/nao1215/sitecrawl/internal/crawler"
	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/extract"
	"github.com/nao1215/sitecrawl/internal/fetch"
	"github.com/nao1215/sitecrawl/internal/log"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/pipeline"
	"github.com/nao1215/sitecrawl/internal/report"
	"github.com/nao1215/sitecrawl/internal/run"
	"github.com/nao1215/sitecrawl/internal/urlnorm"
)

// progressInterval is how often the spinner refreshes run progress.
const progressInterval = 200 * time.Millisecond

var (
	// errSitesFailed is returned when at least one site of a crawl failed.
	errSitesFailed = errors.New("crawl failed")

	// errCrawledRecently marks a seed skipped by --skip-recent.
	errCrawledRecently = errors.New("crawled recently")
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url...]",
		Short: "Crawl websites and aggregate their business information",
		Long: `Crawl fetches pages breadth first from each seed URL, follows same-host
links within the page and depth bounds and extracts business information from
every page. The per-page results are merged into one record per site.

Pages that fail or time out are reported but never stop the crawl. Ctrl+C stops
dispatching new pages, lets in-flight pages finish and reports what was
collected so far.

Examples:
  # Crawl a site with the default bounds
  sitecrawl crawl https://cafe.example

  # Fetch only the home page
  sitecrawl crawl --single https://cafe.example

  # Crawl at most 20 pages, prefer the menu and contact pages
  sitecrawl crawl -p 20 --order priority -I '/menu*' -I '/contact*' https://cafe.example

  # Crawl several sites, two at a time, and write a Markdown report
  sitecrawl crawl -b 2 -m -o report.md https://cafe.example https://bakery.example

  # Render pages in headless Chrome
  sitecrawl crawl --renderer browser https://spa.example

Configuration file (.sitecrawl) example:
  defaults:
    maxPages: 30
  sites:
    cafe.example:
      cookie: "session_id=abc123"
      include:
        - "/menu*"`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	defaults := config.NewCrawl()

	// Crawl bounds
	cmd.Flags().IntP("max-pages", "p", defaults.MaxPages,
		"Maximum number of pages to crawl per site")
	cmd.Flags().IntP("depth", "d", defaults.MaxDepth,
		"Maximum link distance from the seed (0 fetches only the seed)")
	cmd.Flags().IntP("concurrency", "n", defaults.Concurrency,
		"Number of pages processed in parallel per site")
	cmd.Flags().DurationP("rate-limit", "r", defaults.RateLimit,
		"Minimum interval between two page requests on a site")
	cmd.Flags().DurationP("timeout", "t", defaults.PerPageTimeout,
		"Deadline for fetching one page")
	cmd.Flags().BoolP("single", "s", false,
		"Fetch only the seed page")

	// Discovery
	cmd.Flags().StringArrayP("include", "I", nil,
		"Glob pattern a URL path must match to be crawled (repeatable)")
	cmd.Flags().StringArrayP("exclude", "E", nil,
		"Glob pattern of URL paths to skip (repeatable)")
	cmd.Flags().String("order", defaults.QueueOrder,
		"Queue order: fifo or priority")
	cmd.Flags().Bool("robots", defaults.RespectRobots,
		"Honour robots.txt rules and crawl delay")
	cmd.Flags().Bool("sitemap", defaults.UseSitemap,
		"Seed the frontier from sitemap.xml")
	cmd.Flags().Bool("all-hosts", false,
		"Follow links to other hosts")

	// Requests
	cmd.Flags().StringP("user-agent", "u", defaults.UserAgent,
		"User-Agent header")
	cmd.Flags().String("cookie", "",
		"Cookie header sent with every request")
	cmd.Flags().StringToStringP("header", "H", nil,
		"Extra request header as name=value (repeatable)")
	cmd.Flags().String("renderer", config.RendererHTTP,
		"Page renderer: http or browser (headless Chrome)")
	cmd.Flags().String("extractor-url", "",
		"Send pages to a remote extraction endpoint")

	// Batch and configuration
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of sites crawled concurrently")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .sitecrawl in current or home directory)")

	// Reports
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report")
	cmd.Flags().Bool("xlsx", false,
		"Write an Excel workbook (requires --output)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	// Storage
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the run database")
	cmd.Flags().Bool("no-db", false,
		"Do not store the run in the database")
	cmd.Flags().Duration("skip-recent", 0,
		"Skip seeds with a stored run younger than this (e.g. 24h)")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, overrides, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, overrides, logger)
}

// newLogger returns the sanitizing logger selected by the log flags.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	if cfg.LogJSON {
		return log.NewSecureJSONLogger(w, cfg.Verbose)
	}
	return log.NewSecureLogger(w, cfg.Verbose)
}

// getRootBool retrieves a boolean flag from the command or the root's
// persistent flags.
func getRootBool(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

// buildConfig creates a Config from cobra command flags and the configuration
// file. The returned SiteConfig holds the crawl flags the user set
// explicitly; they are applied over the file's per-site settings.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, config.SiteConfig, error) {
	cfg := config.NewConfig()
	var overrides config.SiteConfig
	flags := cmd.Flags()
	var err error

	cfg.Verbose = getRootBool(cmd, "verbose")
	cfg.LogJSON = getRootBool(cmd, "log-json")

	if cfg.Crawl.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, overrides, err
	}
	if cfg.Crawl.MaxDepth, err = flags.GetInt("depth"); err != nil {
		return nil, overrides, err
	}
	if cfg.Crawl.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, overrides, err
	}
	if cfg.Crawl.RateLimit, err = flags.GetDuration("rate-limit"); err != nil {
		return nil, overrides, err
	}
	if cfg.Crawl.PerPageTimeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, overrides, err
	}
	if cfg.Crawl.Include, err = flags.GetStringArray("include"); err != nil {
		return nil, overrides, err
	}
	if cfg.Crawl.Exclude, err = flags.GetStringArray("exclude"); err != nil {
		return nil, overrides, err
	}
	if cfg.Crawl.QueueOrder, err = flags.GetString("order"); err != nil {
		return nil, overrides, err
	}
	if cfg.Crawl.RespectRobots, err = flags.GetBool("robots"); err != nil {
		return nil, overrides, err
	}
	if cfg.Crawl.UseSitemap, err = flags.GetBool("sitemap"); err != nil {
		return nil, overrides, err
	}
	allHosts, err := flags.GetBool("all-hosts")
	if err != nil {
		return nil, overrides, err
	}
	cfg.Crawl.SameHostOnly = !allHosts
	if cfg.Crawl.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, overrides, err
	}
	if cfg.Crawl.Cookie, err = flags.GetString("cookie"); err != nil {
		return nil, overrides, err
	}
	if cfg.Crawl.Headers, err = flags.GetStringToString("header"); err != nil {
		return nil, overrides, err
	}
	single, err := flags.GetBool("single")
	if err != nil {
		return nil, overrides, err
	}
	if single {
		cfg.Crawl = cfg.Crawl.SinglePage()
	}
	overrides = changedCrawlFlags(cmd, cfg.Crawl, single)

	if cfg.Renderer, err = flags.GetString("renderer"); err != nil {
		return nil, overrides, err
	}
	if cfg.ExtractorURL, err = flags.GetString("extractor-url"); err != nil {
		return nil, overrides, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, overrides, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, overrides, err
	}

	// An explicit config path must exist. Without one a missing file is fine.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, overrides, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case explicitConfigPath:
		return nil, overrides, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, overrides, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, overrides, err
	}
	if cfg.XLSXReport, err = flags.GetBool("xlsx"); err != nil {
		return nil, overrides, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, overrides, err
	}

	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, overrides, err
	}
	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, overrides, err
	}
	cfg.SaveToDB = !noDB
	if cfg.SkipRecent, err = flags.GetDuration("skip-recent"); err != nil {
		return nil, overrides, err
	}

	cfg.Targets = args
	return cfg, overrides, nil
}

// changedCrawlFlags returns the crawl settings the user set on the command
// line. --single pins the page and depth bounds regardless of the file.
func changedCrawlFlags(cmd *cobra.Command, c config.Crawl, single bool) config.SiteConfig {
	var s config.SiteConfig
	changed := cmd.Flags().Changed

	if changed("max-pages") || single {
		s.MaxPages = &c.MaxPages
	}
	if changed("depth") || single {
		s.MaxDepth = &c.MaxDepth
	}
	if changed("concurrency") {
		s.Concurrency = &c.Concurrency
	}
	if changed("rate-limit") {
		ms := int(c.RateLimit / time.Millisecond)
		s.RateLimitMS = &ms
	}
	if changed("timeout") {
		ms := int(c.PerPageTimeout / time.Millisecond)
		s.TimeoutMS = &ms
	}
	if changed("include") {
		s.Include = c.Include
	}
	if changed("exclude") {
		s.Exclude = c.Exclude
	}
	if changed("order") {
		s.QueueOrder = c.QueueOrder
	}
	if changed("robots") {
		s.RespectRobots = &c.RespectRobots
	}
	if changed("sitemap") || single {
		s.UseSitemap = &c.UseSitemap
	}
	if changed("user-agent") {
		s.UserAgent = c.UserAgent
	}
	if changed("cookie") {
		s.Cookie = c.Cookie
	}
	if changed("header") {
		s.Headers = c.Headers
	}
	return s
}

// crawlFor returns the crawl settings of seed: flags, then the
// configuration file's defaults and site entry, then explicit flags.
func crawlFor(cfg *config.Config, overrides config.SiteConfig, seed string) config.Crawl {
	host := seed
	if normalized, err := urlnorm.Normalize(seed, ""); err == nil {
		host = urlnorm.Host(normalized)
	}
	crawl := cfg.CrawlFor(host)
	overrides.Apply(&crawl)
	return crawl
}

// runCrawl crawls every target and writes one report per site.
func runCrawl(ctx context.Context, stdout, stderr io.Writer, cfg *config.Config, overrides config.SiteConfig, logger *slog.Logger) error {
	logger.Info("starting crawl",
		"targets", cfg.Targets,
		"batchSize", cfg.BatchSize,
		"renderer", cfg.Renderer,
		"saveToDB", cfg.SaveToDB,
	)

	var (
		opts []run.Option
		db   *database.CrawlDB
	)
	opts = append(opts, run.WithLogger(logger))
	if cfg.SaveToDB || cfg.SkipRecent > 0 {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}
	if cfg.SaveToDB {
		opts = append(opts, run.WithStore(db))
	}

	c, closeCrawler := newCrawler(cfg, logger)
	defer func() {
		if err := closeCrawler(); err != nil {
			logger.Warn("failed to stop renderer", "error", err)
		}
	}()
	manager := run.NewManager(c, opts...)

	sequential := len(cfg.Targets) == 1 || cfg.BatchSize == 1
	crawlSite := func(ctx context.Context, seed string) (model.CrawlResult, error) {
		if cfg.SkipRecent > 0 {
			recent, err := crawledWithin(ctx, db, seed, cfg.SkipRecent)
			if err != nil {
				logger.Warn("recent run lookup failed", "seed", seed, "error", err)
			} else if recent {
				return model.CrawlResult{}, errCrawledRecently
			}
		}

		// The spinner only draws on a real stderr; logs would tear it.
		var status io.Writer
		if f, ok := stderr.(*os.File); ok && len(cfg.Targets) == 1 && !cfg.Verbose && !cfg.LogJSON {
			status = f
		}
		return crawlOne(ctx, manager, seed, crawlFor(cfg, overrides, seed), status)
	}

	var (
		mu     sync.Mutex
		failed int
	)
	handle := func(seed string, result model.CrawlResult, err error, index int) {
		mu.Lock()
		defer mu.Unlock()

		if errors.Is(err, errCrawledRecently) {
			logger.Info("seed skipped", "seed", seed, "within", cfg.SkipRecent)
			fmt.Fprintf(stderr, "Skipped %s: crawled within %s\n", seed, cfg.SkipRecent)
			return
		}
		if err != nil {
			failed++
			logger.Error("crawl failed", "seed", seed, "error", err)
			fmt.Fprintf(stderr, "Crawl error for %s: %v\n", seed, err)
			return
		}
		if result.Status == model.SiteFailed {
			failed++
		}
		if len(cfg.Targets) > 1 {
			fmt.Fprintf(stderr, "[%d/%d] Crawl %s: %s (%d pages in %s)\n",
				index+1, len(cfg.Targets), result.Status, result.Seed,
				len(result.Pages), result.Duration().Round(time.Millisecond))
		}
		if err := outputReport(stdout, cfg, &result, len(cfg.Targets) > 1); err != nil {
			failed++
			logger.Error("report failed", "seed", seed, "error", err)
		}
	}

	if sequential {
		for i, seed := range cfg.Targets {
			if ctx.Err() != nil {
				break
			}
			result, err := crawlSite(ctx, seed)
			handle(seed, result, err, i)
		}
	} else {
		bp := pipeline.NewBatchProcessor(crawlSite,
			pipeline.WithConcurrency(cfg.BatchSize),
			pipeline.WithBatchLogger(logger),
		)
		_ = bp.ProcessBatchWithCallback(ctx, cfg.Targets, func(r pipeline.BatchResult[model.CrawlResult], i int) { //nolint:errcheck // cancellation is reported per site
			handle(r.Seed, r.Result, r.Err, i)
		})
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d sites", errSitesFailed, failed, len(cfg.Targets))
	}
	return nil
}

// crawledWithin reports whether db holds a run of seed younger than d.
// Stored seeds are normalized, so seed is normalized before the lookup.
func crawledWithin(ctx context.Context, db *database.CrawlDB, seed string, d time.Duration) (bool, error) {
	normalized, err := urlnorm.Normalize(seed, "")
	if err != nil {
		// StartCrawl reports the invalid seed.
		return false, nil
	}
	return db.HasRecentRun(ctx, normalized, d)
}

// newCrawler builds the crawler for the configured renderer and extractor.
// The returned function releases the renderer.
func newCrawler(cfg *config.Config, logger *slog.Logger) (*crawler.Crawler, func() error) {
	opts := []crawler.Option{crawler.WithLogger(logger)}
	closeFn := func() error { return nil }

	if cfg.Renderer == config.RendererBrowser {
		browser := fetch.NewBrowserFetcher(fetch.WithBrowserUserAgent(cfg.Crawl.UserAgent))
		opts = append(opts,
			crawler.WithFetcher(browser),
			crawler.WithAuxFetcher(fetch.NewHTTPFetcher(nil, fetch.WithUserAgent(cfg.Crawl.UserAgent))),
		)
		closeFn = browser.Close
	}
	if cfg.ExtractorURL != "" {
		opts = append(opts, crawler.WithExtractor(extract.NewRemoteExtractor(cfg.ExtractorURL)))
	}
	return crawler.New(opts...), closeFn
}

// crawlOne starts a run and blocks until it finishes. On cancellation the
// run drains its in-flight pages and the partial result is returned. When
// status is non-nil a spinner shows the run's progress on it.
func crawlOne(ctx context.Context, m *run.Manager, seed string, crawl config.Crawl, status io.Writer) (model.CrawlResult, error) {
	id, err := m.StartCrawl(ctx, seed, crawl)
	if err != nil {
		return model.CrawlResult{}, err
	}

	if status != nil {
		stopSpinner := startSpinner(m, id, status)
		defer stopSpinner()
	}

	if err := m.Wait(context.WithoutCancel(ctx), id); err != nil {
		return model.CrawlResult{}, err
	}
	result, err := m.GetResult(id)
	if err != nil {
		return model.CrawlResult{}, err
	}
	if err := m.Release(id); err != nil {
		return model.CrawlResult{}, err
	}
	return result, nil
}

// startSpinner shows the progress of run id until the returned function is called.
func startSpinner(m *run.Manager, id string, w io.Writer) func() {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Start()

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				p, err := m.GetProgress(id)
				if err != nil {
					return
				}
				s.Lock()
				s.Suffix = " " + progressLine(p)
				s.Unlock()
			}
		}
	}()

	return func() {
		close(done)
		<-finished
		s.Stop()
	}
}

// progressLine formats a progress snapshot for the spinner.
func progressLine(p run.Progress) string {
	line := fmt.Sprintf("%s: %d/%d pages done, %d processing, %d failed",
		p.Seed, p.Completed+p.Failed, p.Total, p.Processing, p.Failed)
	if p.Remaining > 0 && p.EstimatedTimeRemaining > 0 {
		line += fmt.Sprintf(", about %s left", p.EstimatedTimeRemaining.Round(time.Second))
	}
	return line
}

// outputReport writes result in the requested format. When several sites are
// crawled into one output path, each site gets its own file named after its host.
func outputReport(stdout io.Writer, cfg *config.Config, result *model.CrawlResult, multi bool) error {
	output := stdout
	if cfg.ReportFile != "" {
		path := cfg.ReportFile
		if multi {
			path = reportPath(path, urlnorm.Host(result.Seed))
		}

		dir := filepath.Dir(path)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Reports may contain cookies echoed by the site; owner only.
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	_, err := newReportWriter(output, cfg).Write(result)
	return err
}

func newReportWriter(w io.Writer, cfg *config.Config) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(w, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w)
	case cfg.XLSXReport:
		return report.NewXLSXWriter(w)
	default:
		return report.NewSimpleWriter(w, report.WithVerbose(cfg.Verbose))
	}
}

// reportPath inserts host before the extension of path.
func reportPath(path, host string) string {
	ext := filepath.Ext(path)
	host = strings.NewReplacer(":", "_", "/", "_").Replace(host)
	return strings.TrimSuffix(path, ext) + "-" + host + ext
}
