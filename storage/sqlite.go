// Package storage provides the SQLite search log.
//
// Information Hiding:
// - SQLite connection management hidden behind Reporter
// - Schema and migration details encapsulated
// - Thread-safe via a single pooled connection

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/richinex/fastctx/model"
)

// SearchLog records search outcomes in SQLite. It implements
// model.Reporter.
type SearchLog struct {
	db *sql.DB
}

var _ model.Reporter = (*SearchLog)(nil)

// OpenSqlite opens or creates a search log at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SearchLog, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	return newSearchLog(db)
}

// NewSqliteInMemory creates an in-memory search log (useful for testing).
func NewSqliteInMemory() (*SearchLog, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}
	return newSearchLog(db)
}

func newSearchLog(db *sql.DB) (*SearchLog, error) {
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	s := &SearchLog{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SearchLog) Close() error {
	return s.db.Close()
}

func (s *SearchLog) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS searches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			query TEXT NOT NULL,
			status TEXT NOT NULL,
			error_msg TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL,
			provider TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_searches_created
		ON searches(created_at DESC);

		CREATE INDEX IF NOT EXISTS idx_searches_status
		ON searches(status);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Report stores one search outcome.
func (s *SearchLog) Report(ctx context.Context, entry model.SearchLog) error {
	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO searches (query, status, error_msg, duration_ms, provider, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.Query,
		string(entry.Status),
		entry.ErrorMsg,
		entry.DurationMs,
		entry.Provider,
		created.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to store search: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. A status filter of ""
// matches every status.
func (s *SearchLog) Recent(ctx context.Context, status model.SearchStatus, limit int) ([]model.SearchLog, error) {
	var rows *sql.Rows
	var err error

	if status != "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT query, status, error_msg, duration_ms, provider, created_at
			FROM searches
			WHERE status = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?`,
			string(status), limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT query, status, error_msg, duration_ms, provider, created_at
			FROM searches
			ORDER BY created_at DESC, id DESC
			LIMIT ?`,
			limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query searches: %w", err)
	}
	defer rows.Close()

	entries := []model.SearchLog{}
	for rows.Next() {
		var e model.SearchLog
		var status string
		var created int64
		if err := rows.Scan(&e.Query, &status, &e.ErrorMsg, &e.DurationMs, &e.Provider, &created); err != nil {
			return nil, fmt.Errorf("failed to scan search: %w", err)
		}
		e.Status = model.SearchStatus(status)
		e.CreatedAt = time.UnixMilli(created)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating searches: %w", err)
	}
	return entries, nil
}

// StatusCount summarises searches with one status.
type StatusCount struct {
	Status        model.SearchStatus
	Count         int
	AvgDurationMs int64
}

// Stats returns per-status counts and mean durations, ordered by status.
func (s *SearchLog) Stats(ctx context.Context) ([]StatusCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*), CAST(AVG(duration_ms) AS INTEGER)
		FROM searches
		GROUP BY status
		ORDER BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	var stats []StatusCount
	for rows.Next() {
		var sc StatusCount
		var status string
		if err := rows.Scan(&status, &sc.Count, &sc.AvgDurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		sc.Status = model.SearchStatus(status)
		stats = append(stats, sc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stats: %w", err)
	}
	return stats, nil
}

// Prune deletes entries older than the cutoff and returns how many were
// removed.
func (s *SearchLog) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM searches WHERE created_at < ?",
		olderThan.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune searches: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned searches: %w", err)
	}
	return n, nil
}
