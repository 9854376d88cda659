// CLAUDE:SUMMARY SQLite run ledger — one row per batch run with full status accounting.
// Package runlog keeps a history of batch runs in a local SQLite database.
//
// Callers must blank-import the driver:
//
//	import _ "modernc.org/sqlite"
//	log, err := runlog.Open("runs.db")
package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hazyhaar/mdbatch/batch"
)

// Schema for the runs table. Open applies it automatically.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	source_dir TEXT NOT NULL DEFAULT '',
	total INTEGER NOT NULL,
	success INTEGER NOT NULL,
	cached INTEGER NOT NULL,
	resumed INTEGER NOT NULL,
	failed INTEGER NOT NULL,
	skipped INTEGER NOT NULL,
	unsupported INTEGER NOT NULL,
	filtered INTEGER NOT NULL,
	completion_pct REAL NOT NULL,
	avg_confidence REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`

// Run is one recorded batch run.
type Run struct {
	ID                   int64
	StartedAt            time.Time
	FinishedAt           time.Time
	SourceDir            string
	Total                int
	Success              int
	Cached               int
	Resumed              int
	Failed               int
	Skipped              int
	Unsupported          int
	Filtered             int
	CompletionPercentage float64
	AverageConfidence    float64
}

// FromResult fills a Run from a batch result.
func FromResult(res *batch.Result, started, finished time.Time) Run {
	return Run{
		StartedAt:            started,
		FinishedAt:           finished,
		SourceDir:            res.SourceDir,
		Total:                res.TotalCount(),
		Success:              res.SuccessCount(),
		Cached:               res.CachedCount(),
		Resumed:              res.ResumedCount(),
		Failed:               res.FailedCount(),
		Skipped:              res.SkippedCount(),
		Unsupported:          res.UnsupportedCount(),
		Filtered:             res.FilteredCount(),
		CompletionPercentage: res.CompletionPercentage(),
		AverageConfidence:    res.AverageConfidence(),
	}
}

// Log persists runs to a SQLite table.
type Log struct {
	db *sql.DB
}

// Open opens (creating if needed) the run ledger at path. Parent directories
// are created. ":memory:" is accepted for tests.
func Open(path string) (*Log, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("runlog: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("runlog: open: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("runlog: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("runlog: apply schema: %w", err)
	}
	return &Log{db: db}, nil
}

// OpenMemory opens an in-memory ledger for tests.
func OpenMemory() (*Log, error) {
	l, err := Open(":memory:")
	if err != nil {
		return nil, err
	}
	// Each connection to :memory: is a separate database.
	l.db.SetMaxOpenConns(1)
	return l, nil
}

func (l *Log) Close() error { return l.db.Close() }

const maxBusyRetries = 3

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

func (l *Log) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var lastErr error
	for i := 0; i < maxBusyRetries; i++ {
		res, err := l.db.ExecContext(ctx, query, args...)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !isBusy(err) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(100*(i+1)) * time.Millisecond):
		}
	}
	return nil, fmt.Errorf("runlog: retries exhausted: %w", lastErr)
}

// Record inserts a run and returns its id.
func (l *Log) Record(ctx context.Context, r Run) (int64, error) {
	res, err := l.exec(ctx, `INSERT INTO runs
		(started_at, finished_at, source_dir, total, success, cached, resumed,
		 failed, skipped, unsupported, filtered, completion_pct, avg_confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.StartedAt.Unix(), r.FinishedAt.Unix(), r.SourceDir,
		r.Total, r.Success, r.Cached, r.Resumed,
		r.Failed, r.Skipped, r.Unsupported, r.Filtered,
		r.CompletionPercentage, r.AverageConfidence)
	if err != nil {
		return 0, fmt.Errorf("runlog: record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("runlog: last insert id: %w", err)
	}
	return id, nil
}

// Recent returns up to limit runs, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `SELECT
		id, started_at, finished_at, source_dir, total, success, cached, resumed,
		failed, skipped, unsupported, filtered, completion_pct, avg_confidence
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("runlog: query: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished int64
		if err := rows.Scan(&r.ID, &started, &finished, &r.SourceDir,
			&r.Total, &r.Success, &r.Cached, &r.Resumed,
			&r.Failed, &r.Skipped, &r.Unsupported, &r.Filtered,
			&r.CompletionPercentage, &r.AverageConfidence); err != nil {
			return nil, fmt.Errorf("runlog: scan: %w", err)
		}
		r.StartedAt = time.Unix(started, 0)
		r.FinishedAt = time.Unix(finished, 0)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
