package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/pheller/sqlpilot/internal/driver"
	"github.com/pheller/sqlpilot/internal/schema"

	_ "modernc.org/sqlite"
)

func init() {
	driver.Register(&sqliteDriver{})
}

// sqliteDriver implements driver.Driver for SQLite databases.
type sqliteDriver struct{}

func (d *sqliteDriver) Name() string     { return "sqlite" }
func (d *sqliteDriver) DefaultPort() int { return 0 }

func (d *sqliteDriver) Connect(ctx context.Context, target driver.Target) (driver.Conn, error) {
	dsn := target.DSN
	if dsn == "" {
		dsn = target.File
	}
	if dsn == "" {
		dsn = target.Database
	}
	dsn = normalizeDSN(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("sqlite: no database file given")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite enable foreign keys: %w", err)
	}

	dbName := dsn
	if dsn != ":memory:" {
		dbName = filepath.Base(dsn)
	}

	return &sqliteConn{db: db, dbName: dbName}, nil
}

// normalizeDSN strips common SQLite URI prefixes.
func normalizeDSN(dsn string) string {
	if strings.HasPrefix(dsn, "sqlite://") {
		return strings.TrimPrefix(dsn, "sqlite://")
	}
	if strings.HasPrefix(dsn, "file:") {
		return strings.TrimPrefix(dsn, "file:")
	}
	return dsn
}

// sqliteConn implements driver.Conn.
type sqliteConn struct {
	db     *sql.DB
	dbName string
}

func (c *sqliteConn) DriverName() string   { return "sqlite" }
func (c *sqliteConn) DatabaseName() string { return c.dbName }

func (c *sqliteConn) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *sqliteConn) Close() error {
	return c.db.Close()
}

// Databases returns a single entry for the opened SQLite file.
func (c *sqliteConn) Databases(ctx context.Context) ([]string, error) {
	return []string{c.dbName}, nil
}

// Schemas returns the fixed "main" schema.
func (c *sqliteConn) Schemas(ctx context.Context, db string) ([]string, error) {
	return []string{"main"}, nil
}

// UseDatabase is unsupported: a SQLite connection is bound to one file.
func (c *sqliteConn) UseDatabase(ctx context.Context, name string) error {
	return fmt.Errorf("sqlite: USE is not supported; reconnect to a different file")
}

// Tables returns all user tables in the database.
func (c *sqliteConn) Tables(ctx context.Context, db, schemaName string) ([]schema.Table, error) {
	return c.masterObjects(ctx, "table")
}

func (c *sqliteConn) masterObjects(ctx context.Context, kind string) ([]schema.Table, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type=? AND name NOT LIKE 'sqlite_%' ORDER BY name", kind)
	if err != nil {
		return nil, fmt.Errorf("sqlite %ss: %w", kind, err)
	}
	defer rows.Close()

	var tables []schema.Table
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("sqlite %ss scan: %w", kind, err)
		}
		tables = append(tables, schema.Table{Name: name})
	}
	return tables, rows.Err()
}

// Views returns all views in the database.
func (c *sqliteConn) Views(ctx context.Context, db, schemaName string) ([]schema.View, error) {
	objs, err := c.masterObjects(ctx, "view")
	if err != nil {
		return nil, err
	}
	views := make([]schema.View, len(objs))
	for i, o := range objs {
		views[i] = schema.View{Name: o.Name}
	}
	return views, nil
}

// Procedures returns nil: SQLite has no stored procedures.
func (c *sqliteConn) Procedures(ctx context.Context, db, schemaName string) ([]schema.Procedure, error) {
	return nil, nil
}

// Columns returns column metadata for the given table using PRAGMA table_info.
func (c *sqliteConn) Columns(ctx context.Context, db, schemaName, table string) ([]schema.Column, error) {
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("sqlite columns: %w", err)
	}
	defer rows.Close()

	var columns []schema.Column
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("sqlite columns scan: %w", err)
		}
		col := schema.Column{
			Name:     name,
			Type:     colType,
			Nullable: notNull == 0,
			IsPK:     pk > 0,
		}
		if dfltValue.Valid {
			col.Default = dfltValue.String
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// Indexes returns index information for the given table.
func (c *sqliteConn) Indexes(ctx context.Context, db, schemaName, table string) ([]schema.Index, error) {
	listRows, err := c.db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("sqlite index_list: %w", err)
	}
	defer listRows.Close()

	type indexEntry struct {
		name   string
		unique bool
	}
	var entries []indexEntry
	for listRows.Next() {
		var (
			seq     int
			name    string
			unique  int
			origin  string
			partial int
		)
		if err := listRows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return nil, fmt.Errorf("sqlite index_list scan: %w", err)
		}
		entries = append(entries, indexEntry{name: name, unique: unique == 1})
	}
	if err := listRows.Err(); err != nil {
		return nil, err
	}

	var indexes []schema.Index
	for _, entry := range entries {
		infoRows, err := c.db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%q)", entry.name))
		if err != nil {
			return nil, fmt.Errorf("sqlite index_info: %w", err)
		}

		var cols []string
		for infoRows.Next() {
			var (
				seqno int
				cid   int
				name  string
			)
			if err := infoRows.Scan(&seqno, &cid, &name); err != nil {
				infoRows.Close()
				return nil, fmt.Errorf("sqlite index_info scan: %w", err)
			}
			cols = append(cols, name)
		}
		infoRows.Close()
		if err := infoRows.Err(); err != nil {
			return nil, err
		}

		indexes = append(indexes, schema.Index{
			Name:    entry.name,
			Columns: cols,
			Unique:  entry.unique,
		})
	}
	return indexes, nil
}

// Execute runs a query and returns the result.
func (c *sqliteConn) Execute(ctx context.Context, query string, maxRows int) (*driver.QueryResult, error) {
	start := time.Now()
	if driver.IsSelect(query) {
		return c.executeQuery(ctx, query, maxRows, start)
	}
	return c.executeExec(ctx, query, start)
}

func (c *sqliteConn) executeQuery(ctx context.Context, query string, maxRows int, start time.Time) (*driver.QueryResult, error) {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, driver.ErrCancelled
		}
		return nil, fmt.Errorf("sqlite query: %w", err)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("sqlite column types: %w", err)
	}

	cols := make([]driver.ColumnMeta, len(colTypes))
	for i, ct := range colTypes {
		cols[i] = driver.ColumnMeta{
			Name: ct.Name(),
			Type: ct.DatabaseTypeName(),
		}
		if nullable, ok := ct.Nullable(); ok {
			cols[i].Nullable = nullable
		}
	}

	var resultRows [][]string
	truncated := false
	scanDest := make([]any, len(cols))
	for i := range scanDest {
		scanDest[i] = new(sql.NullString)
	}

	for rows.Next() {
		if maxRows > 0 && len(resultRows) >= maxRows {
			truncated = true
			break
		}
		if err := rows.Scan(scanDest...); err != nil {
			return nil, fmt.Errorf("sqlite scan: %w", err)
		}
		row := make([]string, len(cols))
		for i, v := range scanDest {
			ns := v.(*sql.NullString)
			if ns.Valid {
				row[i] = ns.String
			} else {
				row[i] = "NULL"
			}
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, driver.ErrCancelled
		}
		return nil, fmt.Errorf("sqlite rows: %w", err)
	}

	return &driver.QueryResult{
		Columns:   cols,
		Rows:      resultRows,
		RowCount:  int64(len(resultRows)),
		Duration:  time.Since(start),
		IsSelect:  true,
		Truncated: truncated,
	}, nil
}

func (c *sqliteConn) executeExec(ctx context.Context, query string, start time.Time) (*driver.QueryResult, error) {
	result, err := c.db.ExecContext(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, driver.ErrCancelled
		}
		return nil, fmt.Errorf("sqlite exec: %w", err)
	}

	affected, _ := result.RowsAffected()
	return &driver.QueryResult{
		RowCount: affected,
		Duration: time.Since(start),
		IsSelect: false,
		Message:  fmt.Sprintf("%d row(s) affected", affected),
	}, nil
}
