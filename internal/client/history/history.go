// Package history journals every sync run in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/gitcrate/internal/db"
)

const schema = `
CREATE TABLE IF NOT EXISTS sync_runs (
    run_id TEXT PRIMARY KEY,
    path TEXT NOT NULL,
    client_id TEXT NOT NULL,
    state TEXT NOT NULL,
    attempts INTEGER NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    started_at TEXT NOT NULL, -- fixed width UTC, sorts chronologically
    duration_ms INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_path_started ON sync_runs(path, started_at);
CREATE INDEX IF NOT EXISTS idx_sync_runs_started ON sync_runs(started_at);
`

// timeFormat keeps every fraction digit so text order is time order
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one journaled sync run
type Entry struct {
	RunID     string
	Path      string
	ClientID  string
	State     string
	Attempts  int
	Error     string
	StartedAt time.Time
	Duration  time.Duration
}

// dbEntry mirrors a row, timestamps are stored as TEXT
type dbEntry struct {
	RunID      string `db:"run_id"`
	Path       string `db:"path"`
	ClientID   string `db:"client_id"`
	State      string `db:"state"`
	Attempts   int    `db:"attempts"`
	Error      string `db:"error"`
	StartedAt  string `db:"started_at"`
	DurationMs int64  `db:"duration_ms"`
}

func (e *dbEntry) entry() (Entry, error) {
	started, err := time.Parse(timeFormat, e.StartedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parse started_at of run %s: %w", e.RunID, err)
	}
	return Entry{
		RunID:     e.RunID,
		Path:      e.Path,
		ClientID:  e.ClientID,
		State:     e.State,
		Attempts:  e.Attempts,
		Error:     e.Error,
		StartedAt: started,
		Duration:  time.Duration(e.DurationMs) * time.Millisecond,
	}, nil
}

// History is the sync run journal
type History struct {
	db     *sqlx.DB
	dbPath string
}

// Open opens or creates the journal at path
func Open(path string) (*History, error) {
	database, err := db.NewSqliteDB(db.WithPath(path), db.WithMaxOpenConns(1))
	if err != nil {
		return nil, fmt.Errorf("open sync history: %w", err)
	}
	if _, err := database.Exec(schema); err != nil {
		database.Close()
		return nil, fmt.Errorf("initialize sync history schema: %w", err)
	}
	return &History{db: database, dbPath: path}, nil
}

func (h *History) Close() error {
	if err := h.db.Close(); err != nil {
		return fmt.Errorf("close sync history: %w", err)
	}
	slog.Debug("sync history closed", "path", h.dbPath)
	return nil
}

// Record stores a finished run
func (h *History) Record(ctx context.Context, e Entry) error {
	if e.RunID == "" {
		return errors.New("history entry needs a run id")
	}

	row := dbEntry{
		RunID:      e.RunID,
		Path:       e.Path,
		ClientID:   e.ClientID,
		State:      e.State,
		Attempts:   e.Attempts,
		Error:      e.Error,
		StartedAt:  e.StartedAt.UTC().Format(timeFormat),
		DurationMs: e.Duration.Milliseconds(),
	}

	query := `INSERT OR REPLACE INTO sync_runs (run_id, path, client_id, state, attempts, error, started_at, duration_ms)
	          VALUES (:run_id, :path, :client_id, :state, :attempts, :error, :started_at, :duration_ms)`
	if _, err := h.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("record run %s: %w", e.RunID, err)
	}
	return nil
}

// Last returns the most recent run for path, nil if it never ran
func (h *History) Last(ctx context.Context, path string) (*Entry, error) {
	var row dbEntry
	err := h.db.GetContext(ctx, &row, `SELECT * FROM sync_runs WHERE path = ? ORDER BY started_at DESC LIMIT 1`, path)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("query last run of %s: %w", path, err)
	}

	e, err := row.entry()
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Recent returns up to limit runs across all repositories, newest first
func (h *History) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, nil
	}

	var rows []dbEntry
	if err := h.db.SelectContext(ctx, &rows, `SELECT * FROM sync_runs ORDER BY started_at DESC LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		e, err := row.entry()
		if err != nil {
			slog.Warn("skipping corrupt history row", "run", row.RunID, "error", err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}
