package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitecrawl/internal/model"
)

// FileName is the database file created in the data directory.
const FileName = "sitecrawl.db"

// CrawlDB provides SQLite-based storage for crawl runs.
type CrawlDB struct {
	db     *sqlx.DB
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file when missing.
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

// RunSummary describes a stored run without its pages.
type RunSummary struct {
	ID         string            `json:"id"`
	Seed       string            `json:"seed"`
	Host       string            `json:"host"`
	Status     model.SiteStatus  `json:"status"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at,omitzero"`
	Stats      model.RecordStats `json:"stats"`
	Error      string            `json:"error,omitempty"`
}

// Open opens or creates the CrawlDB in dbDir.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrDatabaseMissing, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{db: db, dbPath: dbPath}

	ctx := context.Background()
	if opts.EnableWAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := cdb.createTables(ctx); err != nil {
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

func (cdb *CrawlDB) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed TEXT NOT NULL,
		host TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL DEFAULT '',
		pages_processed INTEGER NOT NULL DEFAULT 0,
		pages_succeeded INTEGER NOT NULL DEFAULT 0,
		pages_failed INTEGER NOT NULL DEFAULT 0,
		pages_timed_out INTEGER NOT NULL DEFAULT 0,
		pages_redirected INTEGER NOT NULL DEFAULT 0,
		processing_ms INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		record_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_seed ON runs(seed);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS pages (
		run_id TEXT NOT NULL,
		url TEXT NOT NULL,
		canonical_url TEXT NOT NULL DEFAULT '',
		depth INTEGER NOT NULL,
		parent_url TEXT NOT NULL DEFAULT '',
		method TEXT NOT NULL,
		score INTEGER NOT NULL DEFAULT 0,
		seq INTEGER NOT NULL,
		state TEXT NOT NULL,
		queued_at TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL DEFAULT '',
		finished_at TEXT NOT NULL DEFAULT '',
		processing_ms INTEGER NOT NULL DEFAULT 0,
		status_code INTEGER NOT NULL DEFAULT 0,
		content_type TEXT NOT NULL DEFAULT '',
		content_hash TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		extraction_error TEXT NOT NULL DEFAULT '',
		extraction_json TEXT,
		children_count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_hash ON pages(content_hash);

	CREATE TABLE IF NOT EXISTS edges (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		parent_url TEXT NOT NULL,
		child_url TEXT NOT NULL,
		method TEXT NOT NULL,
		PRIMARY KEY (run_id, parent_url, child_url)
	);
	`
	_, err := cdb.db.ExecContext(ctx, schema)
	return err
}

const (
	insertRun = `
	INSERT OR REPLACE INTO runs (
		id, seed, host, status, started_at, finished_at,
		pages_processed, pages_succeeded, pages_failed, pages_timed_out, pages_redirected,
		processing_ms, error, record_json
	) VALUES (
		:id, :seed, :host, :status, :started_at, :finished_at,
		:pages_processed, :pages_succeeded, :pages_failed, :pages_timed_out, :pages_redirected,
		:processing_ms, :error, :record_json
	)`

	insertPage = `
	INSERT INTO pages (
		run_id, url, canonical_url, depth, parent_url, method, score, seq, state,
		queued_at, started_at, finished_at, processing_ms, status_code, content_type,
		content_hash, error, extraction_error, extraction_json, children_count
	) VALUES (
		:run_id, :url, :canonical_url, :depth, :parent_url, :method, :score, :seq, :state,
		:queued_at, :started_at, :finished_at, :processing_ms, :status_code, :content_type,
		:content_hash, :error, :extraction_error, :extraction_json, :children_count
	)`

	insertEdge = `
	INSERT OR IGNORE INTO edges (run_id, seq, parent_url, child_url, method)
	VALUES (:run_id, :seq, :parent_url, :child_url, :method)`

	selectRun = `
	SELECT id, seed, host, status, started_at, finished_at,
		pages_processed, pages_succeeded, pages_failed, pages_timed_out, pages_redirected,
		processing_ms, error, record_json
	FROM runs`
)

// SaveRun stores a finished run with its pages and edges in one
// transaction. Saving the same run ID again replaces it.
func (cdb *CrawlDB) SaveRun(ctx context.Context, result *model.CrawlResult) (err error) {
	if result.ID == "" {
		return errors.New("run has no id")
	}
	run, err := newRunRow(result)
	if err != nil {
		return err
	}

	tx, err := cdb.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = deleteRun(ctx, tx, result.ID); err != nil {
		return fmt.Errorf("failed to replace run: %w", err)
	}
	if _, err = tx.NamedExecContext(ctx, insertRun, run); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	pageStmt, err := tx.PrepareNamedContext(ctx, insertPage)
	if err != nil {
		return fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer pageStmt.Close()
	for _, p := range result.Pages {
		row, rowErr := newPageRow(result.ID, p)
		if rowErr != nil {
			err = rowErr
			return err
		}
		if _, err = pageStmt.ExecContext(ctx, row); err != nil {
			return fmt.Errorf("failed to insert page %s: %w", p.URL, err)
		}
	}

	edgeStmt, err := tx.PrepareNamedContext(ctx, insertEdge)
	if err != nil {
		return fmt.Errorf("failed to prepare edge insert: %w", err)
	}
	defer edgeStmt.Close()
	for i, e := range result.Edges {
		if _, err = edgeStmt.ExecContext(ctx, edgeRow{RunID: result.ID, Seq: i, Edge: e}); err != nil {
			return fmt.Errorf("failed to insert edge %s -> %s: %w", e.Parent, e.Child, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// GetRun loads a run with its pages and edges.
func (cdb *CrawlDB) GetRun(ctx context.Context, id string) (*model.CrawlResult, error) {
	var row runRow
	err := cdb.db.GetContext(ctx, &row, selectRun+" WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return cdb.load(ctx, row)
}

// LatestRun loads the most recent run of seed.
func (cdb *CrawlDB) LatestRun(ctx context.Context, seed string) (*model.CrawlResult, error) {
	var row runRow
	err := cdb.db.GetContext(ctx, &row, selectRun+" WHERE seed = ? ORDER BY started_at DESC LIMIT 1", seed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no run of %s", ErrNotFound, seed)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return cdb.load(ctx, row)
}

func (cdb *CrawlDB) load(ctx context.Context, row runRow) (*model.CrawlResult, error) {
	result, err := row.result()
	if err != nil {
		return nil, err
	}
	if result.Pages, err = cdb.GetPages(ctx, row.ID); err != nil {
		return nil, err
	}
	if result.Edges, err = cdb.GetEdges(ctx, row.ID); err != nil {
		return nil, err
	}
	for _, p := range result.Pages {
		if p.IsOrphan() {
			result.Orphans = append(result.Orphans, p.URL)
		}
	}
	return result, nil
}

// ListRuns returns run summaries, newest first. An empty seed lists every run.
func (cdb *CrawlDB) ListRuns(ctx context.Context, seed string) ([]RunSummary, error) {
	query := selectRun
	args := make([]any, 0, 1)
	if seed != "" {
		query += " WHERE seed = ?"
		args = append(args, seed)
	}
	query += " ORDER BY started_at DESC"

	var rows []runRow
	if err := cdb.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	out := make([]RunSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.summary())
	}
	return out, nil
}

// ListSeeds returns every seed with at least one stored run.
func (cdb *CrawlDB) ListSeeds(ctx context.Context) ([]string, error) {
	var seeds []string
	if err := cdb.db.SelectContext(ctx, &seeds, "SELECT DISTINCT seed FROM runs ORDER BY seed"); err != nil {
		return nil, fmt.Errorf("failed to list seeds: %w", err)
	}
	return seeds, nil
}

// GetPages returns the pages of a run in admission order.
func (cdb *CrawlDB) GetPages(ctx context.Context, runID string) ([]model.Page, error) {
	var rows []pageRow
	if err := cdb.db.SelectContext(ctx, &rows, "SELECT * FROM pages WHERE run_id = ? ORDER BY seq", runID); err != nil {
		return nil, fmt.Errorf("failed to get pages: %w", err)
	}
	pages := make([]model.Page, 0, len(rows))
	for _, row := range rows {
		p, err := row.page()
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, nil
}

// GetEdges returns the edges of a run in recording order.
func (cdb *CrawlDB) GetEdges(ctx context.Context, runID string) ([]model.Edge, error) {
	var rows []edgeRow
	if err := cdb.db.SelectContext(ctx, &rows, "SELECT * FROM edges WHERE run_id = ? ORDER BY seq", runID); err != nil {
		return nil, fmt.Errorf("failed to get edges: %w", err)
	}
	edges := make([]model.Edge, 0, len(rows))
	for _, row := range rows {
		edges = append(edges, row.Edge)
	}
	return edges, nil
}

// FindByContentHash returns the distinct URLs of stored pages whose body
// hashed to hash, most recently crawled first.
func (cdb *CrawlDB) FindByContentHash(ctx context.Context, hash string) ([]string, error) {
	if hash == "" {
		return nil, nil
	}
	var urls []string
	query := `
	SELECT p.url FROM pages p JOIN runs r ON r.id = p.run_id
	WHERE p.content_hash = ?
	GROUP BY p.url
	ORDER BY MAX(r.started_at) DESC`
	if err := cdb.db.SelectContext(ctx, &urls, query, hash); err != nil {
		return nil, fmt.Errorf("failed to find content hash: %w", err)
	}
	return urls, nil
}

// HasRecentRun reports whether seed was crawled within d.
func (cdb *CrawlDB) HasRecentRun(ctx context.Context, seed string, d time.Duration) (bool, error) {
	cutoff := formatTime(time.Now().Add(-d))

	var count int
	err := cdb.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM runs WHERE seed = ? AND started_at > ?", seed, cutoff)
	if err != nil {
		return false, fmt.Errorf("failed to check recent run: %w", err)
	}
	return count > 0, nil
}

// DeleteRun removes a run with its pages and edges.
func (cdb *CrawlDB) DeleteRun(ctx context.Context, id string) error {
	var exists int
	if err := cdb.db.GetContext(ctx, &exists, "SELECT COUNT(*) FROM runs WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to look up run: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	tx, err := cdb.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := deleteRun(ctx, tx, id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return tx.Commit()
}

func deleteRun(ctx context.Context, tx *sqlx.Tx, id string) error {
	for _, q := range []string{
		"DELETE FROM edges WHERE run_id = ?",
		"DELETE FROM pages WHERE run_id = ?",
		"DELETE FROM runs WHERE id = ?",
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return err
		}
	}
	return nil
}
