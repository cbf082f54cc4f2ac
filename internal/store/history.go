package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// timeLayout has a fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Run is one recorded invocation of the checker.
type Run struct {
	ID        string
	File      string
	Checks    string
	StartedAt time.Time
	Duration  time.Duration
	Errors    int
	Warnings  int
	Info      int
	Layers    int
}

// History is the SQLite-backed log of past checker runs.
type History struct {
	db   *sql.DB
	path string
}

// OpenHistory creates or opens the history database at path.
func OpenHistory(path string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	h := &History{db: db, path: path}
	if err := h.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing history schema: %w", err)
	}
	return h, nil
}

// Close closes the database connection.
func (h *History) Close() error {
	return h.db.Close()
}

// Path returns the database file path.
func (h *History) Path() string {
	return h.path
}

func (h *History) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		file TEXT NOT NULL,
		checks TEXT NOT NULL,
		started_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		nerrors INTEGER NOT NULL,
		nwarnings INTEGER NOT NULL,
		ninfo INTEGER NOT NULL,
		layers INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);`
	_, err := h.db.Exec(schema)
	return err
}

// Record stores a run. An empty ID is replaced with a fresh UUID, which is
// returned.
func (h *History) Record(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO runs (id, file, checks, started_at, duration_ms, nerrors, nwarnings, ninfo, layers)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.File, run.Checks, run.StartedAt.UTC().Format(timeLayout),
		run.Duration.Milliseconds(), run.Errors, run.Warnings, run.Info, run.Layers)
	if err != nil {
		return "", fmt.Errorf("recording run: %w", err)
	}
	return run.ID, nil
}

// List returns the most recent runs first. A limit <= 0 returns all runs.
func (h *History) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, file, checks, started_at, duration_ms, nerrors, nwarnings, ninfo, layers
		FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r          Run
			startedAt  string
			durationMS int64
		)
		if err := rows.Scan(&r.ID, &r.File, &r.Checks, &startedAt, &durationMS,
			&r.Errors, &r.Warnings, &r.Info, &r.Layers); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt, err = time.Parse(timeLayout, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing start time of run %s: %w", r.ID, err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Prune deletes runs started before the given time and returns how many were removed.
func (h *History) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := h.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`,
		before.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("pruning runs: %w", err)
	}
	return res.RowsAffected()
}
