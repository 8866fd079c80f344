package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawl/internal/config"
	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/report"
	"github.com/nao1215/sitecrawl/internal/urlnorm"
)

// NewHistoryCmd creates the history command.
// It lists, shows and compares runs stored in the database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [url]",
		Short: "List and compare stored crawl runs",
		Long: `History reads the runs that 'sitecrawl crawl' stored in the database.

Without flags it lists the runs of a site, newest first. With --diff it
compares the latest run with the previous one and shows:
- Fields whose merged value changed
- List entries (emails, phone numbers, headings) that appeared or disappeared
- Pages that were added, removed or whose content changed
- Pages whose content now lives at a new URL

Examples:
  # List the runs of a site
  sitecrawl history https://cafe.example

  # Show the latest run again
  sitecrawl history --latest https://cafe.example

  # Show a specific run
  sitecrawl history --run 6f1c9a3e-...

  # Compare the latest two runs of a site
  sitecrawl history --diff https://cafe.example

  # Compare the latest run with the first run since a date
  sitecrawl history --diff --since 2026-01-01 https://cafe.example

  # List every crawled site
  sitecrawl history --list-sites`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list-sites", "L", false,
		"List every site with stored runs")
	cmd.Flags().BoolP("latest", "l", false,
		"Show the report of the latest run of the site")
	cmd.Flags().StringP("run", "i", "",
		"Show the report of a run by ID (use the run list to see IDs)")
	cmd.Flags().BoolP("diff", "D", false,
		"Compare the latest run of the site with an earlier one")
	cmd.Flags().StringP("since", "s", "",
		"With --diff, compare with the first run after this date (format: YYYY-MM-DD)")
	cmd.Flags().String("delete", "",
		"Delete a run by ID")

	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output in Markdown format")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the run database")

	return cmd
}

// historyOptions are the parsed flags of the history command.
type historyOptions struct {
	listSites bool
	latest    bool
	runID     string
	diff      bool
	since     string
	deleteID  string
	json      bool
	markdown  bool
	dbDir     string
}

func parseHistoryFlags(cmd *cobra.Command) (historyOptions, error) {
	var o historyOptions
	var err error
	flags := cmd.Flags()

	if o.listSites, err = flags.GetBool("list-sites"); err != nil {
		return o, err
	}
	if o.latest, err = flags.GetBool("latest"); err != nil {
		return o, err
	}
	if o.runID, err = flags.GetString("run"); err != nil {
		return o, err
	}
	if o.diff, err = flags.GetBool("diff"); err != nil {
		return o, err
	}
	if o.since, err = flags.GetString("since"); err != nil {
		return o, err
	}
	if o.deleteID, err = flags.GetString("delete"); err != nil {
		return o, err
	}
	if o.json, err = flags.GetBool("json"); err != nil {
		return o, err
	}
	if o.markdown, err = flags.GetBool("markdown"); err != nil {
		return o, err
	}
	if o.dbDir, err = flags.GetString("db-dir"); err != nil {
		return o, err
	}
	if o.json && o.markdown {
		return o, errors.New("--json and --markdown are mutually exclusive")
	}
	return o, nil
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	opts, err := parseHistoryFlags(cmd)
	if err != nil {
		return err
	}

	// Validate arguments before opening the database.
	needsSeed := !opts.listSites && opts.deleteID == "" && (opts.runID == "" || opts.diff)
	var seed string
	if needsSeed {
		if len(args) == 0 {
			return errors.New("site URL is required (use --list-sites to see available sites)")
		}
		seed, err = urlnorm.Normalize(args[0], "")
		if err != nil {
			return fmt.Errorf("invalid site URL: %w", err)
		}
	}

	db, err := database.Open(opts.dbDir, database.Options{EnableWAL: true})
	if err != nil {
		if errors.Is(err, database.ErrDatabaseMissing) {
			return errors.New("no crawl history found (run 'sitecrawl crawl' first)")
		}
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case opts.listSites:
		return listSites(ctx, out, db)
	case opts.deleteID != "":
		if err := db.DeleteRun(ctx, opts.deleteID); err != nil {
			return fmt.Errorf("failed to delete run %s: %w", opts.deleteID, err)
		}
		fmt.Fprintf(out, "Deleted run %s\n", opts.deleteID)
		return nil
	case opts.runID != "" && !opts.diff:
		result, err := db.GetRun(ctx, opts.runID)
		if err != nil {
			return fmt.Errorf("failed to get run %s: %w", opts.runID, err)
		}
		return showRun(out, result, opts)
	case opts.diff:
		return runComparison(ctx, out, db, seed, opts)
	case opts.latest:
		result, err := db.LatestRun(ctx, seed)
		if err != nil {
			return fmt.Errorf("failed to get latest run of %s: %w", seed, err)
		}
		return showRun(out, result, opts)
	default:
		return listRuns(ctx, out, db, seed, opts.json)
	}
}

func listSites(ctx context.Context, out io.Writer, db *database.CrawlDB) error {
	seeds, err := db.ListSeeds(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sites: %w", err)
	}

	if len(seeds) == 0 {
		fmt.Fprintln(out, "No crawled sites found in the database.")
		fmt.Fprintln(out, "\nUse 'sitecrawl crawl <url>' to crawl a site.")
		return nil
	}

	fmt.Fprintf(out, "Crawled sites (%d):\n\n", len(seeds))
	for _, s := range seeds {
		fmt.Fprintf(out, "  • %s\n", s)
	}
	fmt.Fprintln(out, "\nUse 'sitecrawl history <url>' to see the runs of a site.")
	return nil
}

func listRuns(ctx context.Context, out io.Writer, db *database.CrawlDB, seed string, asJSON bool) error {
	runs, err := db.ListRuns(ctx, seed)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if asJSON {
		if runs == nil {
			runs = []database.RunSummary{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintf(out, "No runs found for %s\n", seed)
		fmt.Fprintln(out, "\nUse 'sitecrawl crawl' to crawl this site.")
		return nil
	}

	fmt.Fprintf(out, "Run history for %s (%d runs):\n\n", seed, len(runs))
	fmt.Fprintf(out, "  %-36s  %-19s  %-9s  %s\n", "ID", "Date", "Status", "Pages")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 80))
	for _, r := range runs {
		fmt.Fprintf(out, "  %-36s  %-19s  %-9s  %s\n",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Status,
			formatStats(r.Stats),
		)
	}

	fmt.Fprintln(out, "\nUse 'sitecrawl history --diff <url>' to compare the latest two runs.")
	fmt.Fprintln(out, "Use 'sitecrawl history --run <id>' to show a run.")
	return nil
}

// formatStats formats page counters as "12 ok, 1 failed".
func formatStats(s model.RecordStats) string {
	parts := []string{strconv.Itoa(s.PagesSucceeded) + " ok"}
	if s.PagesFailed > 0 {
		parts = append(parts, strconv.Itoa(s.PagesFailed)+" failed")
	}
	if s.PagesTimedOut > 0 {
		parts = append(parts, strconv.Itoa(s.PagesTimedOut)+" timed out")
	}
	return strings.Join(parts, ", ")
}

func showRun(out io.Writer, result *model.CrawlResult, opts historyOptions) error {
	var w report.Writer
	switch {
	case opts.json:
		w = report.NewFullJSONWriter(out, getVersion(), report.WithPrettyPrint())
	case opts.markdown:
		w = report.NewMarkdownWriter(out)
	default:
		w = report.NewSimpleWriter(out)
	}
	_, err := w.Write(result)
	return err
}

// runComparison compares the latest run of seed with an earlier one.
func runComparison(ctx context.Context, out io.Writer, db *database.CrawlDB, seed string, opts historyOptions) error {
	runs, err := db.ListRuns(ctx, seed)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}
	if len(runs) == 0 {
		return fmt.Errorf("no run history found for %s", seed)
	}
	if len(runs) < 2 && opts.runID == "" && opts.since == "" {
		return fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(runs))
	}

	// Runs are sorted newest first.
	previousID := ""
	switch {
	case opts.runID != "":
		previousID = opts.runID
	case opts.since != "":
		since, err := time.ParseInLocation("2006-01-02", opts.since, time.Local)
		if err != nil {
			return fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}
		for i := len(runs) - 1; i >= 0; i-- {
			if !runs[i].StartedAt.Before(since) {
				previousID = runs[i].ID
				break
			}
		}
		if previousID == "" {
			return fmt.Errorf("no runs found since %s", opts.since)
		}
	default:
		previousID = runs[1].ID
	}
	if previousID == runs[0].ID {
		return errors.New("the latest run cannot be compared with itself")
	}

	current, err := db.GetRun(ctx, runs[0].ID)
	if err != nil {
		return fmt.Errorf("failed to get run %s: %w", runs[0].ID, err)
	}
	previous, err := db.GetRun(ctx, previousID)
	if err != nil {
		return fmt.Errorf("failed to get run %s: %w", previousID, err)
	}
	if previous.Seed != current.Seed {
		return fmt.Errorf("run %s belongs to %s, not %s", previousID, previous.Seed, current.Seed)
	}

	comparison := compareRuns(previous, current)
	if err := findMovedPages(ctx, db, comparison, current); err != nil {
		return err
	}
	switch {
	case opts.json:
		return outputComparisonJSON(out, comparison)
	case opts.markdown:
		return outputComparisonMarkdown(out, comparison)
	default:
		return outputComparisonText(out, comparison)
	}
}

// ComparisonResult holds the differences between two runs of one site.
type ComparisonResult struct {
	Seed string `json:"seed"`

	PreviousRun RunMetadata `json:"previous_run"`
	CurrentRun  RunMetadata `json:"current_run"`

	// ChangedFields are scalar fields whose merged value differs.
	ChangedFields []FieldChange `json:"changed_fields,omitempty"`

	// ChangedLists are list fields that gained or lost entries.
	ChangedLists []ListChange `json:"changed_lists,omitempty"`

	AddedPages   []string `json:"added_pages,omitempty"`
	RemovedPages []string `json:"removed_pages,omitempty"`

	// ModifiedPages were fetched in both runs with different content.
	ModifiedPages []string `json:"modified_pages,omitempty"`

	// MovedPages are added pages whose content was stored under a URL
	// that is gone from the current run.
	MovedPages []PageMove `json:"moved_pages,omitempty"`

	UnchangedPages int `json:"unchanged_pages"`
}

// PageMove is content that moved from one or more old URLs to URL.
type PageMove struct {
	URL  string   `json:"url"`
	From []string `json:"from"`
}

// RunMetadata describes one side of a comparison.
type RunMetadata struct {
	ID        string            `json:"id"`
	StartedAt time.Time         `json:"started_at"`
	Status    model.SiteStatus  `json:"status"`
	Pages     int               `json:"pages"`
	Stats     model.RecordStats `json:"stats"`
}

// FieldChange is a scalar field that differs between runs.
// An empty side means the field was absent.
type FieldChange struct {
	Name     string `json:"name"`
	Previous string `json:"previous"`
	Current  string `json:"current"`
}

// ListChange lists the entries a list field gained and lost.
type ListChange struct {
	Name    string   `json:"name"`
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

// HasChanges reports whether the runs differ in record or pages.
func (c *ComparisonResult) HasChanges() bool {
	return len(c.ChangedFields) > 0 || len(c.ChangedLists) > 0 ||
		len(c.AddedPages) > 0 || len(c.RemovedPages) > 0 || len(c.ModifiedPages) > 0
}

func newRunMetadata(r *model.CrawlResult) RunMetadata {
	return RunMetadata{
		ID:        r.ID,
		StartedAt: r.StartedAt,
		Status:    r.Status,
		Pages:     len(r.Pages),
		Stats:     r.Record.Stats,
	}
}

// compareRuns compares two runs and generates a comparison result.
func compareRuns(previous, current *model.CrawlResult) *ComparisonResult {
	result := &ComparisonResult{
		Seed:        current.Seed,
		PreviousRun: newRunMetadata(previous),
		CurrentRun:  newRunMetadata(current),
	}

	for _, name := range unionKeys(previous.Record.Fields, current.Record.Fields) {
		before := previous.Record.Fields[name].Value
		after := current.Record.Fields[name].Value
		if before != after {
			result.ChangedFields = append(result.ChangedFields, FieldChange{Name: name, Previous: before, Current: after})
		}
	}

	for _, name := range unionKeys(previous.Record.Lists, current.Record.Lists) {
		before := listValues(previous.Record.Lists[name])
		after := listValues(current.Record.Lists[name])
		change := ListChange{
			Name:    name,
			Added:   difference(after, before),
			Removed: difference(before, after),
		}
		if len(change.Added) > 0 || len(change.Removed) > 0 {
			result.ChangedLists = append(result.ChangedLists, change)
		}
	}

	prevPages := pageHashes(previous.Pages)
	curPages := pageHashes(current.Pages)
	for _, p := range current.Pages {
		before, ok := prevPages[p.URL]
		switch {
		case !ok:
			result.AddedPages = append(result.AddedPages, p.URL)
		case before != curPages[p.URL]:
			result.ModifiedPages = append(result.ModifiedPages, p.URL)
		default:
			result.UnchangedPages++
		}
	}
	for _, p := range previous.Pages {
		if _, ok := curPages[p.URL]; !ok {
			result.RemovedPages = append(result.RemovedPages, p.URL)
		}
	}

	return result
}

// contentIndex finds stored pages by content hash.
type contentIndex interface {
	FindByContentHash(ctx context.Context, hash string) ([]string, error)
}

// findMovedPages records the added pages of current whose content hash was
// stored for a URL that result lists as removed.
func findMovedPages(ctx context.Context, idx contentIndex, result *ComparisonResult, current *model.CrawlResult) error {
	if len(result.AddedPages) == 0 || len(result.RemovedPages) == 0 {
		return nil
	}
	for _, p := range current.Pages {
		if p.ContentHash == "" || !slices.Contains(result.AddedPages, p.URL) {
			continue
		}
		urls, err := idx.FindByContentHash(ctx, p.ContentHash)
		if err != nil {
			return fmt.Errorf("failed to look up moved pages: %w", err)
		}
		var from []string
		for _, u := range urls {
			if u != p.URL && slices.Contains(result.RemovedPages, u) {
				from = append(from, u)
			}
		}
		if len(from) > 0 {
			result.MovedPages = append(result.MovedPages, PageMove{URL: p.URL, From: from})
		}
	}
	return nil
}

func unionKeys[V any](a, b map[string]V) []string {
	keys := make([]string, 0, len(a)+len(b))
	for k := range a {
		keys = append(keys, k)
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

func listValues(items []model.ListItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Value
	}
	return out
}

// difference returns the values of a missing from b, in a's order.
func difference(a, b []string) []string {
	var out []string
	for _, v := range a {
		if !slices.Contains(b, v) {
			out = append(out, v)
		}
	}
	return out
}

// pageHashes maps page URLs to their content hash. Pages without a body
// map to their state so a page that starts failing counts as modified.
func pageHashes(pages []model.Page) map[string]string {
	m := make(map[string]string, len(pages))
	for _, p := range pages {
		if p.ContentHash != "" {
			m[p.URL] = p.ContentHash
		} else {
			m[p.URL] = p.State.String()
		}
	}
	return m
}

func outputComparisonJSON(out io.Writer, result *ComparisonResult) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func outputComparisonMarkdown(out io.Writer, result *ComparisonResult) error {
	md := markdown.NewMarkdown(out)
	md.H1("Run Comparison: " + result.Seed)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows: [][]string{
			{"Run", "`" + result.PreviousRun.ID + "`", "`" + result.CurrentRun.ID + "`", "-"},
			{"Date",
				result.PreviousRun.StartedAt.Format("2006-01-02 15:04"),
				result.CurrentRun.StartedAt.Format("2006-01-02 15:04"), "-"},
			{"Status", string(result.PreviousRun.Status), string(result.CurrentRun.Status), "-"},
			{"Pages",
				strconv.Itoa(result.PreviousRun.Pages),
				strconv.Itoa(result.CurrentRun.Pages),
				formatDelta(result.CurrentRun.Pages - result.PreviousRun.Pages)},
			{"Failed",
				strconv.Itoa(result.PreviousRun.Stats.PagesFailed),
				strconv.Itoa(result.CurrentRun.Stats.PagesFailed),
				formatDelta(result.CurrentRun.Stats.PagesFailed - result.PreviousRun.Stats.PagesFailed)},
		},
	})
	md.PlainText("")

	if !result.HasChanges() {
		md.Tip("Nothing changed between the two runs.")
		return md.Build()
	}

	if len(result.ChangedFields) > 0 {
		md.H2("Changed Fields")
		md.PlainText("")
		rows := make([][]string, len(result.ChangedFields))
		for i, f := range result.ChangedFields {
			rows[i] = []string{"**" + f.Name + "**", orNone(f.Previous), orNone(f.Current)}
		}
		md.Table(markdown.TableSet{Header: []string{"Field", "Previous", "Current"}, Rows: rows})
		md.PlainText("")
	}

	for _, l := range result.ChangedLists {
		md.H3(l.Name)
		md.PlainText("")
		items := make([]string, 0, len(l.Added)+len(l.Removed))
		for _, v := range l.Added {
			items = append(items, "➕ "+v)
		}
		for _, v := range l.Removed {
			items = append(items, "~~"+v+"~~")
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	pageSections := []struct {
		title string
		urls  []string
	}{
		{"Added Pages", result.AddedPages},
		{"Removed Pages", result.RemovedPages},
		{"Modified Pages", result.ModifiedPages},
	}
	for _, s := range pageSections {
		if len(s.urls) == 0 {
			continue
		}
		md.H2(fmt.Sprintf("%s (%d)", s.title, len(s.urls)))
		md.PlainText("")
		md.BulletList(s.urls...)
		md.PlainText("")
	}

	if len(result.MovedPages) > 0 {
		md.H2(fmt.Sprintf("Moved Pages (%d)", len(result.MovedPages)))
		md.PlainText("")
		items := make([]string, len(result.MovedPages))
		for i, m := range result.MovedPages {
			items[i] = "`" + strings.Join(m.From, "`, `") + "` → `" + m.URL + "`"
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	if result.UnchangedPages > 0 {
		md.HorizontalRule()
		md.PlainTextf("*%d pages unchanged*", result.UnchangedPages)
	}
	return md.Build()
}

func outputComparisonText(out io.Writer, result *ComparisonResult) error {
	var sb strings.Builder

	sb.WriteString("═══════════════════════════════════════════════════════════════\n")
	sb.WriteString("                      RUN COMPARISON\n")
	sb.WriteString("═══════════════════════════════════════════════════════════════\n\n")
	fmt.Fprintf(&sb, "Site:     %s\n", result.Seed)
	fmt.Fprintf(&sb, "Previous: %s  %s  (%d pages)\n",
		result.PreviousRun.StartedAt.Local().Format("2006-01-02 15:04:05"), result.PreviousRun.ID, result.PreviousRun.Pages)
	fmt.Fprintf(&sb, "Current:  %s  %s  (%d pages)\n\n",
		result.CurrentRun.StartedAt.Local().Format("2006-01-02 15:04:05"), result.CurrentRun.ID, result.CurrentRun.Pages)

	if !result.HasChanges() {
		sb.WriteString("✓ Nothing changed between the two runs.\n")
		_, err := io.WriteString(out, sb.String())
		return err
	}

	if len(result.ChangedFields) > 0 {
		sb.WriteString("CHANGED FIELDS\n")
		for _, f := range result.ChangedFields {
			fmt.Fprintf(&sb, "  %-12s %s → %s\n", f.Name, orNone(f.Previous), orNone(f.Current))
		}
		sb.WriteString("\n")
	}

	if len(result.ChangedLists) > 0 {
		sb.WriteString("CHANGED LISTS\n")
		for _, l := range result.ChangedLists {
			fmt.Fprintf(&sb, "  %s\n", l.Name)
			for _, v := range l.Added {
				fmt.Fprintf(&sb, "    + %s\n", v)
			}
			for _, v := range l.Removed {
				fmt.Fprintf(&sb, "    - %s\n", v)
			}
		}
		sb.WriteString("\n")
	}

	writeURLs := func(title, mark string, urls []string) {
		if len(urls) == 0 {
			return
		}
		fmt.Fprintf(&sb, "%s (%d)\n", title, len(urls))
		for _, u := range urls {
			fmt.Fprintf(&sb, "  %s %s\n", mark, u)
		}
		sb.WriteString("\n")
	}
	writeURLs("ADDED PAGES", "+", result.AddedPages)
	writeURLs("REMOVED PAGES", "-", result.RemovedPages)
	writeURLs("MODIFIED PAGES", "~", result.ModifiedPages)

	if len(result.MovedPages) > 0 {
		fmt.Fprintf(&sb, "MOVED PAGES (%d)\n", len(result.MovedPages))
		for _, m := range result.MovedPages {
			fmt.Fprintf(&sb, "  %s → %s\n", strings.Join(m.From, ", "), m.URL)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "%d pages unchanged\n", result.UnchangedPages)

	_, err := io.WriteString(out, sb.String())
	return err
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// formatDelta formats a count change with its sign.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
