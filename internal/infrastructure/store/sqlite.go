package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/codmatch/backend/internal/domain"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	pipeline    TEXT NOT NULL,
	input       TEXT DEFAULT '',
	output      TEXT DEFAULT '',
	records     INTEGER DEFAULT 0,
	accepted    INTEGER DEFAULT 0,
	filled      INTEGER DEFAULT 0,
	status      TEXT DEFAULT 'running',
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_runs_pipeline ON runs(pipeline);

CREATE TABLE IF NOT EXISTS matches (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     INTEGER NOT NULL,
	record     TEXT NOT NULL,
	source     TEXT DEFAULT '',
	candidate  TEXT NOT NULL,
	score      INTEGER NOT NULL,
	identifier TEXT DEFAULT '',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_matches_run ON matches(run_id);
`

// Run is one row of the runs table
type Run struct {
	ID         int64
	Pipeline   string
	Input      string
	Output     string
	Records    int
	Accepted   int
	Filled     int
	Status     string
	StartedAt  time.Time
	FinishedAt sql.NullTime
}

// Ledger records pipeline runs in a sqlite database
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating when needed) the ledger database at path
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init ledger schema: %w", err)
	}
	return &Ledger{db: db, now: time.Now}, nil
}

// Close closes the database
func (l *Ledger) Close() error {
	return l.db.Close()
}

// StartRun inserts a running row and returns its id
func (l *Ledger) StartRun(ctx context.Context, pipeline, input string) (int64, error) {
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (pipeline, input, started_at) VALUES (?, ?, ?)`,
		pipeline, input, l.now().UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RecordMatch stores one accepted match of a run
func (l *Ledger) RecordMatch(ctx context.Context, runID int64, match domain.MatchResult) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO matches (run_id, record, source, candidate, score, identifier) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, match.Record.Name, match.Record.Source, match.Candidate, match.Score, match.Identifier,
	)
	return err
}

// FinishRun stores the run counters and closes it
func (l *Ledger) FinishRun(ctx context.Context, runID int64, summary domain.RunSummary) error {
	status := summary.Status
	if status == "" {
		status = "done"
	}
	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET output = ?, records = ?, accepted = ?, filled = ?, status = ?, finished_at = ? WHERE id = ?`,
		summary.Output, summary.Records, summary.Accepted, summary.Filled, status, l.now().UTC(), runID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %d not found", runID)
	}
	return nil
}

// RecentRuns returns the latest runs, newest first
func (l *Ledger) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, pipeline, input, output, records, accepted, filled, status, started_at, finished_at
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Pipeline, &r.Input, &r.Output, &r.Records, &r.Accepted,
			&r.Filled, &r.Status, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// CountMatches returns how many matches were recorded for a run
func (l *Ledger) CountMatches(ctx context.Context, runID int64) (int, error) {
	var count int
	err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM matches WHERE run_id = ?`, runID).Scan(&count)
	return count, err
}
