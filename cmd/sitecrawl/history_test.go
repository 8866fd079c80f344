package main

import (
	"context"
	"encoding/json"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/urlnorm"
)

func TestNewHistoryCmd(t *testing.T) {
	t.Parallel()

	cmd := NewHistoryCmd()
	for name, short := range map[string]string{
		"list-sites": "L",
		"latest":     "l",
		"run":        "i",
		"diff":       "D",
		"since":      "s",
		"json":       "j",
		"markdown":   "m",
	} {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			t.Errorf("expected %s flag", name)
			continue
		}
		if flag.Shorthand != short {
			t.Errorf("%s: expected shorthand %q, got %q", name, short, flag.Shorthand)
		}
	}
	for _, name := range []string{"delete", "db-dir"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected %s flag", name)
		}
	}
}

func TestHistoryCommand(t *testing.T) {
	site := newCafeSite(t, "info@cafe.example")
	dbDir := t.TempDir()
	seed := urlnorm.MustNormalize(site.URL)

	if _, stderr, err := execute(t, crawlArgs(t, "--db-dir", dbDir, site.URL)...); err != nil {
		t.Fatalf("first crawl error = %v\nstderr: %s", err, stderr)
	}
	// started_at has nanosecond precision; make the order unambiguous anyway.
	time.Sleep(10 * time.Millisecond)
	site.emails.Store(&[]string{"info@cafe.example", "sales@cafe.example"})
	if _, stderr, err := execute(t, crawlArgs(t, "--db-dir", dbDir, site.URL)...); err != nil {
		t.Fatalf("second crawl error = %v\nstderr: %s", err, stderr)
	}

	t.Run("lists sites", func(t *testing.T) {
		out, _, err := execute(t, "history", "--db-dir", dbDir, "-L")
		if err != nil {
			t.Fatalf("history error = %v", err)
		}
		if !strings.Contains(out, seed) {
			t.Errorf("expected %s in output:\n%s", seed, out)
		}
	})

	var runs []database.RunSummary
	t.Run("lists runs as JSON", func(t *testing.T) {
		out, _, err := execute(t, "history", "--db-dir", dbDir, "-j", site.URL)
		if err != nil {
			t.Fatalf("history error = %v", err)
		}
		if err := json.Unmarshal([]byte(out), &runs); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, out)
		}
		if len(runs) != 2 {
			t.Fatalf("runs = %d, want 2", len(runs))
		}
		if !runs[0].StartedAt.After(runs[1].StartedAt) {
			t.Error("runs are not newest first")
		}
		if runs[0].Status != model.SiteCompleted || runs[0].Stats.PagesSucceeded != 3 {
			t.Errorf("latest run = %+v", runs[0])
		}
	})

	t.Run("lists runs as text", func(t *testing.T) {
		out, _, err := execute(t, "history", "--db-dir", dbDir, site.URL)
		if err != nil {
			t.Fatalf("history error = %v", err)
		}
		if !strings.Contains(out, "(2 runs)") || !strings.Contains(out, "3 ok") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("shows the latest run", func(t *testing.T) {
		out, _, err := execute(t, "history", "--db-dir", dbDir, "--latest", "-m", site.URL)
		if err != nil {
			t.Fatalf("history error = %v", err)
		}
		if !strings.Contains(out, "# Sitecrawl Report") || !strings.Contains(out, "sales@cafe.example") {
			t.Errorf("unexpected report:\n%s", out)
		}
	})

	t.Run("diffs the latest two runs", func(t *testing.T) {
		out, _, err := execute(t, "history", "--db-dir", dbDir, "--diff", "-j", site.URL)
		if err != nil {
			t.Fatalf("history error = %v", err)
		}
		var cmp ComparisonResult
		if err := json.Unmarshal([]byte(out), &cmp); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, out)
		}
		if cmp.Seed != seed {
			t.Errorf("Seed = %q, want %q", cmp.Seed, seed)
		}
		var emails *ListChange
		for i := range cmp.ChangedLists {
			if cmp.ChangedLists[i].Name == "emails" {
				emails = &cmp.ChangedLists[i]
			}
		}
		if emails == nil || !slices.Equal(emails.Added, []string{"sales@cafe.example"}) || len(emails.Removed) != 0 {
			t.Errorf("emails change = %+v", emails)
		}
		if !slices.Contains(cmp.ModifiedPages, seed+"contact") {
			t.Errorf("ModifiedPages = %v, want the contact page", cmp.ModifiedPages)
		}
		if len(cmp.AddedPages) != 0 || len(cmp.RemovedPages) != 0 {
			t.Errorf("added = %v, removed = %v", cmp.AddedPages, cmp.RemovedPages)
		}
	})

	t.Run("diff text output", func(t *testing.T) {
		out, _, err := execute(t, "history", "--db-dir", dbDir, "--diff", site.URL)
		if err != nil {
			t.Fatalf("history error = %v", err)
		}
		if !strings.Contains(out, "+ sales@cafe.example") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("shows and deletes a run by ID", func(t *testing.T) {
		if len(runs) != 2 {
			t.Skip("run list unavailable")
		}
		out, _, err := execute(t, "history", "--db-dir", dbDir, "--run", runs[1].ID)
		if err != nil {
			t.Fatalf("history error = %v", err)
		}
		if !strings.Contains(out, "SITECRAWL REPORT") {
			t.Errorf("unexpected output:\n%s", out)
		}

		if _, _, err := execute(t, "history", "--db-dir", dbDir, "--delete", runs[1].ID); err != nil {
			t.Fatalf("delete error = %v", err)
		}
		_, _, err = execute(t, "history", "--db-dir", dbDir, "--diff", site.URL)
		if err == nil || !strings.Contains(err.Error(), "at least 2 runs") {
			t.Errorf("diff after delete error = %v, want at least 2 runs", err)
		}
	})
}

func TestHistoryCommandErrors(t *testing.T) {
	t.Run("requires a site", func(t *testing.T) {
		_, _, err := execute(t, "history", "--db-dir", t.TempDir())
		if err == nil || !strings.Contains(err.Error(), "site URL is required") {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("missing database", func(t *testing.T) {
		_, _, err := execute(t, "history", "--db-dir", filepath.Join(t.TempDir(), "none"), "https://cafe.example/")
		if err == nil || !strings.Contains(err.Error(), "no crawl history") {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("conflicting formats", func(t *testing.T) {
		_, _, err := execute(t, "history", "-j", "-m", "https://cafe.example/")
		if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
			t.Errorf("error = %v", err)
		}
	})
}

func TestCompareRuns(t *testing.T) {
	t.Parallel()

	previous := &model.CrawlResult{
		ID:   "old",
		Seed: "https://cafe.example/",
		Record: model.AggregatedRecord{
			Fields: map[string]model.FieldValue{
				"name":    {Value: "Cafe Rouge"},
				"address": {Value: "12 River Street"},
			},
			Lists: map[string][]model.ListItem{
				"phones": {{Value: "+1-555-0100"}, {Value: "+1-555-0199"}},
			},
		},
		Pages: []model.Page{
			{URL: "https://cafe.example/", ContentHash: "a"},
			{URL: "https://cafe.example/menu", ContentHash: "b"},
			{URL: "https://cafe.example/old", ContentHash: "c"},
		},
	}
	current := &model.CrawlResult{
		ID:   "new",
		Seed: "https://cafe.example/",
		Record: model.AggregatedRecord{
			Fields: map[string]model.FieldValue{
				"name":  {Value: "Cafe Rouge"},
				"title": {Value: "Home"},
			},
			Lists: map[string][]model.ListItem{
				"phones": {{Value: "+1-555-0100"}, {Value: "+1-555-0123"}},
			},
		},
		Pages: []model.Page{
			{URL: "https://cafe.example/", ContentHash: "a"},
			{URL: "https://cafe.example/menu", ContentHash: "changed"},
			{URL: "https://cafe.example/new", State: model.StateFailed},
		},
	}

	cmp := compareRuns(previous, current)

	wantFields := []FieldChange{
		{Name: "address", Previous: "12 River Street", Current: ""},
		{Name: "title", Previous: "", Current: "Home"},
	}
	if !slices.Equal(cmp.ChangedFields, wantFields) {
		t.Errorf("ChangedFields = %+v, want %+v", cmp.ChangedFields, wantFields)
	}
	if len(cmp.ChangedLists) != 1 ||
		!slices.Equal(cmp.ChangedLists[0].Added, []string{"+1-555-0123"}) ||
		!slices.Equal(cmp.ChangedLists[0].Removed, []string{"+1-555-0199"}) {
		t.Errorf("ChangedLists = %+v", cmp.ChangedLists)
	}
	if !slices.Equal(cmp.AddedPages, []string{"https://cafe.example/new"}) {
		t.Errorf("AddedPages = %v", cmp.AddedPages)
	}
	if !slices.Equal(cmp.RemovedPages, []string{"https://cafe.example/old"}) {
		t.Errorf("RemovedPages = %v", cmp.RemovedPages)
	}
	if !slices.Equal(cmp.ModifiedPages, []string{"https://cafe.example/menu"}) {
		t.Errorf("ModifiedPages = %v", cmp.ModifiedPages)
	}
	if cmp.UnchangedPages != 1 {
		t.Errorf("UnchangedPages = %d, want 1", cmp.UnchangedPages)
	}
	if !cmp.HasChanges() {
		t.Error("HasChanges() = false")
	}
	if same := compareRuns(previous, previous); same.HasChanges() {
		t.Errorf("comparing a run with itself = %+v", same)
	}
}

// hashIndex serves FindByContentHash from a map.
type hashIndex map[string][]string

func (h hashIndex) FindByContentHash(_ context.Context, hash string) ([]string, error) {
	return h[hash], nil
}

func TestFindMovedPages(t *testing.T) {
	t.Parallel()

	current := &model.CrawlResult{
		Pages: []model.Page{
			{URL: "https://cafe.example/", ContentHash: "home"},
			{URL: "https://cafe.example/our-menu", ContentHash: "menu"},
			{URL: "https://cafe.example/hours", ContentHash: "hours"},
			{URL: "https://cafe.example/events", State: model.StateFailed},
		},
	}
	cmp := &ComparisonResult{
		AddedPages:   []string{"https://cafe.example/our-menu", "https://cafe.example/hours", "https://cafe.example/events"},
		RemovedPages: []string{"https://cafe.example/menu"},
	}
	idx := hashIndex{
		"menu":  {"https://cafe.example/our-menu", "https://cafe.example/menu"},
		"hours": {"https://cafe.example/hours", "https://cafe.example/"},
	}

	if err := findMovedPages(context.Background(), idx, cmp, current); err != nil {
		t.Fatalf("findMovedPages() error = %v", err)
	}
	want := []PageMove{{URL: "https://cafe.example/our-menu", From: []string{"https://cafe.example/menu"}}}
	if len(cmp.MovedPages) != 1 || cmp.MovedPages[0].URL != want[0].URL || !slices.Equal(cmp.MovedPages[0].From, want[0].From) {
		t.Errorf("MovedPages = %+v, want %+v", cmp.MovedPages, want)
	}
}

func TestOutputComparison(t *testing.T) {
	t.Parallel()

	cmp := &ComparisonResult{
		Seed:          "https://cafe.example/",
		PreviousRun:   RunMetadata{ID: "old", Pages: 2},
		CurrentRun:    RunMetadata{ID: "new", Pages: 3},
		ChangedFields: []FieldChange{{Name: "address", Previous: "", Current: "12 River Street"}},
		AddedPages:    []string{"https://cafe.example/hours"},
		MovedPages:    []PageMove{{URL: "https://cafe.example/hours", From: []string{"https://cafe.example/opening"}}},
	}

	var md strings.Builder
	if err := outputComparisonMarkdown(&md, cmp); err != nil {
		t.Fatalf("outputComparisonMarkdown() error = %v", err)
	}
	for _, want := range []string{"# Run Comparison: https://cafe.example/", "## Changed Fields", "(none)", "## Added Pages (1)", "## Moved Pages (1)", "+1"} {
		if !strings.Contains(md.String(), want) {
			t.Errorf("markdown missing %q:\n%s", want, md.String())
		}
	}

	var text strings.Builder
	if err := outputComparisonText(&text, cmp); err != nil {
		t.Fatalf("outputComparisonText() error = %v", err)
	}
	for _, want := range []string{"RUN COMPARISON", "CHANGED FIELDS", "+ https://cafe.example/hours", "https://cafe.example/opening → https://cafe.example/hours"} {
		if !strings.Contains(text.String(), want) {
			t.Errorf("text missing %q:\n%s", want, text.String())
		}
	}
}

func TestCrawlCommandSkipRecent(t *testing.T) {
	site := newCafeSite(t, "info@cafe.example")
	dbDir := t.TempDir()

	if _, stderr, err := execute(t, crawlArgs(t, "--db-dir", dbDir, "--skip-recent", "1h", site.URL)...); err != nil {
		t.Fatalf("first crawl error = %v\nstderr: %s", err, stderr)
	}
	stdout, stderr, err := execute(t, crawlArgs(t, "--db-dir", dbDir, "--skip-recent", "1h", site.URL)...)
	if err != nil {
		t.Fatalf("second crawl error = %v\nstderr: %s", err, stderr)
	}
	if !strings.Contains(stderr, "Skipped "+site.URL) {
		t.Errorf("expected a skip notice, got %q", stderr)
	}
	if stdout != "" {
		t.Errorf("skipped seed should print no report, got %q", stdout)
	}

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	runs, err := db.ListRuns(context.Background(), "")
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("runs = %d, want 1", len(runs))
	}
}

// Ensure the database written by crawl can be read back directly.
func TestCrawlCommandStoresRun(t *testing.T) {
	site := newCafeSite(t)
	dbDir := t.TempDir()

	if _, stderr, err := execute(t, crawlArgs(t, "--db-dir", dbDir, "--single", site.URL)...); err != nil {
		t.Fatalf("crawl error = %v\nstderr: %s", err, stderr)
	}

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	result, err := db.LatestRun(context.Background(), urlnorm.MustNormalize(site.URL))
	if err != nil {
		t.Fatalf("LatestRun() error = %v", err)
	}
	if result.ID == "" {
		t.Error("stored run has no ID")
	}
	if len(result.Pages) != 1 {
		t.Errorf("pages = %d, want 1 in single page mode", len(result.Pages))
	}
}
