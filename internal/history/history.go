package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pheller/sqlpilot/internal/config"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS history (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	execution_id TEXT,
	query        TEXT NOT NULL,
	driver       TEXT,
	database_name TEXT,
	executed_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
	duration_ms  INTEGER,
	row_count    INTEGER,
	is_error     BOOLEAN DEFAULT FALSE
)`

// Entry represents a single executed query in the history log.
type Entry struct {
	ID           int64
	ExecutionID  string
	Query        string
	Driver       string
	DatabaseName string
	ExecutedAt   time.Time
	DurationMS   int64
	RowCount     int64
	IsError      bool
}

// Store provides SQLite-backed query history storage.
type Store struct {
	db         *sql.DB
	maxEntries int
}

// Open creates or opens the history database at path and ensures the
// schema exists. maxEntries > 0 bounds the table; Add prunes the oldest
// rows past the bound.
func Open(path string, maxEntries int) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("history: create dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}

	for _, stmt := range []string{createTableSQL, createStarredSQL} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("history: create table: %w", err)
		}
	}

	return &Store{db: db, maxEntries: maxEntries}, nil
}

// OpenDefault opens the history database at ConfigDir()/history.db.
func OpenDefault(maxEntries int) (*Store, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, fmt.Errorf("history: config dir: %w", err)
	}
	return Open(filepath.Join(dir, "history.db"), maxEntries)
}

// Add inserts a new history entry and prunes past the entry bound.
func (s *Store) Add(entry Entry) error {
	_, err := s.db.Exec(
		`INSERT INTO history (execution_id, query, driver, database_name, executed_at, duration_ms, row_count, is_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ExecutionID,
		entry.Query,
		entry.Driver,
		entry.DatabaseName,
		entry.ExecutedAt,
		entry.DurationMS,
		entry.RowCount,
		entry.IsError,
	)
	if err != nil {
		return fmt.Errorf("history add: %w", err)
	}

	if s.maxEntries > 0 {
		_, err = s.db.Exec(
			`DELETE FROM history WHERE id NOT IN (
				SELECT id FROM history ORDER BY id DESC LIMIT ?
			)`,
			s.maxEntries,
		)
		if err != nil {
			return fmt.Errorf("history prune: %w", err)
		}
	}
	return nil
}

// Search returns entries whose query text matches the given pattern
// using SQL LIKE, most recent first, limited to limit rows.
func (s *Store) Search(pattern string, limit int) ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT id, execution_id, query, driver, database_name, executed_at, duration_ms, row_count, is_error
		 FROM history
		 WHERE query LIKE ?
		 ORDER BY id DESC
		 LIMIT ?`,
		pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history search: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Recent returns the most recent entries, limited to limit rows.
func (s *Store) Recent(limit int) ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT id, execution_id, query, driver, database_name, executed_at, duration_ms, row_count, is_error
		 FROM history
		 ORDER BY id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history recent: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Clear deletes all history entries.
func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM history`); err != nil {
		return fmt.Errorf("history clear: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID,
			&e.ExecutionID,
			&e.Query,
			&e.Driver,
			&e.DatabaseName,
			&e.ExecutedAt,
			&e.DurationMS,
			&e.RowCount,
			&e.IsError,
		); err != nil {
			return nil, fmt.Errorf("history scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history rows: %w", err)
	}
	return entries, nil
}
