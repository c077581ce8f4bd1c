package history

import (
	"database/sql"
	"fmt"
	"time"
)

const createStarredSQL = `CREATE TABLE IF NOT EXISTS starred (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	query         TEXT NOT NULL,
	driver        TEXT DEFAULT '',
	database_name TEXT DEFAULT '',
	starred_at    DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (query, driver, database_name)
)`

// StarredQuery is a favorite kept independently of the history log.
// Starred queries are scoped to a driver and database and are never
// touched by the history entry bound.
type StarredQuery struct {
	ID           int64
	Query        string
	Driver       string
	DatabaseName string
	StarredAt    time.Time
}

// Star saves a query as a favorite. Starring the same query twice for
// the same connection scope is a no-op.
func (s *Store) Star(q StarredQuery) error {
	when := q.StarredAt
	if when.IsZero() {
		when = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO starred (query, driver, database_name, starred_at)
		 VALUES (?, ?, ?, ?)`,
		q.Query, q.Driver, q.DatabaseName, when,
	)
	if err != nil {
		return fmt.Errorf("history star: %w", err)
	}
	return nil
}

// Unstar removes a favorite.
func (s *Store) Unstar(query, driver, database string) error {
	_, err := s.db.Exec(
		`DELETE FROM starred WHERE query = ? AND driver = ? AND database_name = ?`,
		query, driver, database,
	)
	if err != nil {
		return fmt.Errorf("history unstar: %w", err)
	}
	return nil
}

// ToggleStar stars an unstarred query and unstars a starred one,
// returning whether the query is starred afterwards.
func (s *Store) ToggleStar(q StarredQuery) (bool, error) {
	starred, err := s.IsStarred(q.Query, q.Driver, q.DatabaseName)
	if err != nil {
		return false, err
	}
	if starred {
		return false, s.Unstar(q.Query, q.Driver, q.DatabaseName)
	}
	return true, s.Star(q)
}

// IsStarred reports whether the query is a favorite for the given scope.
func (s *Store) IsStarred(query, driver, database string) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM starred WHERE query = ? AND driver = ? AND database_name = ?`,
		query, driver, database,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("history starred lookup: %w", err)
	}
	return n > 0, nil
}

// Starred returns favorites, most recently starred first. An empty
// driver returns favorites for every connection scope; otherwise the
// list is restricted to the given driver and database.
func (s *Store) Starred(driver, database string) ([]StarredQuery, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if driver == "" {
		rows, err = s.db.Query(
			`SELECT id, query, driver, database_name, starred_at
			 FROM starred
			 ORDER BY id DESC`,
		)
	} else {
		rows, err = s.db.Query(
			`SELECT id, query, driver, database_name, starred_at
			 FROM starred
			 WHERE driver = ? AND database_name = ?
			 ORDER BY id DESC`,
			driver, database,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("history starred: %w", err)
	}
	defer rows.Close()

	var out []StarredQuery
	for rows.Next() {
		var q StarredQuery
		if err := rows.Scan(&q.ID, &q.Query, &q.Driver, &q.DatabaseName, &q.StarredAt); err != nil {
			return nil, fmt.Errorf("history starred scan: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history starred rows: %w", err)
	}
	return out, nil
}
