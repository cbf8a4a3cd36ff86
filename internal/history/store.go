// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history keeps a SQLite ledger of archive dispatches so earlier
// conversions can be listed and exported.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/slack-convert/pkg/types"
)

const (
	dbFile = "history.db"

	// defaultLimit caps List when no limit is given.
	defaultLimit = 50
)

// Store manages the history SQLite database.
type Store struct {
	db  *sql.DB
	dir string
}

// Open opens or creates the history database at cfg.Dir/history.db and
// creates the schema if it does not exist.
func Open(cfg types.HistoryConfig) (*Store, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("history directory not configured")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, dir: cfg.Dir}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS dispatches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			archive TEXT NOT NULL,
			output_dir TEXT NOT NULL,
			threads INTEGER NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_dispatches_run_id ON dispatches(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_dispatches_status ON dispatches(status)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record inserts one dispatch outcome.
func (s *Store) Record(ctx context.Context, rec types.DispatchRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dispatches (run_id, archive, output_dir, threads, status, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Archive, rec.OutputDir, rec.Threads, string(rec.Status), rec.Error,
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting dispatch for %s: %w", rec.Archive, err)
	}
	return nil
}

// ListOptions filters List and the exports.
type ListOptions struct {
	RunID  string
	Status types.DispatchStatus
	Limit  int
	// Offset skips that many matching records, for paging.
	Offset int
}

// List returns dispatch records, newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]types.DispatchRecord, error) {
	var (
		where []string
		args  []any
	)
	if opts.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, opts.RunID)
	}
	if opts.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(opts.Status))
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	query := `SELECT run_id, archive, output_dir, threads, status, COALESCE(error, ''), started_at, finished_at
		FROM dispatches`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, max(opts.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying dispatches: %w", err)
	}
	defer rows.Close()

	var records []types.DispatchRecord
	for rows.Next() {
		var (
			rec               types.DispatchRecord
			status            string
			started, finished string
		)
		if err := rows.Scan(&rec.RunID, &rec.Archive, &rec.OutputDir, &rec.Threads,
			&status, &rec.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("scanning dispatch: %w", err)
		}
		rec.Status = types.DispatchStatus(status)
		rec.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		rec.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		records = append(records, rec)
	}
	return records, rows.Err()
}
