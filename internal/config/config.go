package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

const (
	// AppName is the application name used for XDG directory paths.
	AppName = "sitecrawl"

	// DefaultBatchSize is the number of sites crawled concurrently when
	// several targets are given.
	DefaultBatchSize = 4

	// RendererHTTP fetches pages with net/http.
	RendererHTTP = "http"

	// RendererBrowser renders pages in headless Chrome.
	RendererBrowser = "browser"
)

// Config holds the command line configuration of sitecrawl.
// It is populated from CLI flags and the configuration file and passed
// through the application rather than kept in global state.
type Config struct {
	// Targets are the seed URLs to crawl.
	Targets []string

	// Crawl holds the per-run crawl settings applied to every target
	// before per-site overrides from the configuration file.
	Crawl Crawl

	// Verbose enables debug log output.
	// When false, only warnings and errors are logged.
	Verbose bool

	// LogJSON writes log records as JSON lines instead of terminal output.
	LogJSON bool

	// Renderer is "http" or "browser".
	Renderer string

	// ExtractorURL, when set, sends pages to a remote extraction endpoint
	// instead of the built-in extractor.
	ExtractorURL string

	// BatchSize is the number of sites crawled concurrently.
	BatchSize int

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .sitecrawl in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds site-specific configurations loaded from the config file.
	SiteConfigs *File

	// JSONReport outputs the result as JSON.
	JSONReport bool

	// MarkdownReport outputs the result as GitHub Flavored Markdown.
	MarkdownReport bool

	// XLSXReport writes the result as an Excel workbook. Requires ReportFile.
	XLSXReport bool

	// ReportFile is the output file path for the report.
	// When empty, the report is written to stdout.
	ReportFile string

	// DBDir is the directory of the SQLite database.
	// Defaults to the XDG data directory (~/.local/share/sitecrawl on Linux).
	DBDir string

	// SaveToDB stores finished runs in the database.
	SaveToDB bool

	// SkipRecent skips seeds with a stored run younger than this.
	// Zero crawls every seed. Needs the database.
	SkipRecent time.Duration
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Crawl:     NewCrawl(),
		Renderer:  RendererHTTP,
		BatchSize: DefaultBatchSize,
		DBDir:     XDGDataDir(),
		SaveToDB:  true,
	}
}

// XDGDataDir returns the XDG data directory for sitecrawl.
// On Linux: ~/.local/share/sitecrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sitecrawl.
// On Linux: ~/.config/sitecrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// CrawlFor returns the crawl settings for host with the configuration
// file's defaults and site overrides applied.
func (c *Config) CrawlFor(host string) Crawl {
	crawl := c.Crawl
	if c.SiteConfigs != nil {
		c.SiteConfigs.GetSiteConfig(host).Apply(&crawl)
	}
	return crawl
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.Renderer != RendererHTTP && c.Renderer != RendererBrowser {
		return ErrInvalidRenderer
	}

	formats := 0
	for _, set := range []bool{c.JSONReport, c.MarkdownReport, c.XLSXReport} {
		if set {
			formats++
		}
	}
	if formats > 1 {
		return ErrConflictingReportFormats
	}
	if c.XLSXReport && c.ReportFile == "" {
		return ErrXLSXNeedsFile
	}
	if c.SkipRecent < 0 {
		return ErrInvalidSkipRecent
	}

	return c.Crawl.Validate()
}
