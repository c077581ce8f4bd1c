//go:build duckdb

package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/pheller/sqlpilot/internal/driver"
	"github.com/pheller/sqlpilot/internal/schema"
)

func init() {
	driver.Register(&duckdbDriver{})
}

type duckdbDriver struct{}

func (d *duckdbDriver) Name() string     { return "duckdb" }
func (d *duckdbDriver) DefaultPort() int { return 0 }

func (d *duckdbDriver) Connect(ctx context.Context, target driver.Target) (driver.Conn, error) {
	dsn := target.DSN
	if dsn == "" {
		dsn = target.File
	}
	dsn = strings.TrimPrefix(dsn, "duckdb://")
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("duckdb: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("duckdb: ping: %w", err)
	}

	return &duckdbConn{db: db, dsn: dsn}, nil
}

type duckdbConn struct {
	db  *sql.DB
	dsn string
}

func (c *duckdbConn) DatabaseName() string { return c.dsn }
func (c *duckdbConn) DriverName() string   { return "duckdb" }

func (c *duckdbConn) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *duckdbConn) Close() error {
	return c.db.Close()
}

// UseDatabase switches to an attached database.
func (c *duckdbConn) UseDatabase(ctx context.Context, name string) error {
	if _, err := c.db.ExecContext(ctx, fmt.Sprintf("USE %q", name)); err != nil {
		return fmt.Errorf("duckdb: use %s: %w", name, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Introspection
// ---------------------------------------------------------------------------

func (c *duckdbConn) Databases(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT database_name FROM duckdb_databases() ORDER BY database_name`)
	if err != nil {
		return nil, fmt.Errorf("duckdb: databases: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("duckdb: databases scan: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (c *duckdbConn) Schemas(ctx context.Context, db string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT schema_name FROM information_schema.schemata
		 WHERE catalog_name = ?
		   AND schema_name NOT IN ('information_schema', 'pg_catalog')
		 ORDER BY schema_name`, db)
	if err != nil {
		return nil, fmt.Errorf("duckdb: schemas: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("duckdb: schemas scan: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (c *duckdbConn) Tables(ctx context.Context, db, schemaName string) ([]schema.Table, error) {
	return c.relations(ctx, db, schemaName, false)
}

func (c *duckdbConn) Views(ctx context.Context, db, schemaName string) ([]schema.View, error) {
	tables, err := c.relations(ctx, db, schemaName, true)
	if err != nil {
		return nil, err
	}
	views := make([]schema.View, len(tables))
	for i, t := range tables {
		views[i] = schema.View{Name: t.Name}
	}
	return views, nil
}

func (c *duckdbConn) relations(ctx context.Context, db, schemaName string, views bool) ([]schema.Table, error) {
	cmp := "NOT"
	if views {
		cmp = ""
	}
	query := fmt.Sprintf(`SELECT table_name
		FROM information_schema.tables
		WHERE table_catalog = ? AND table_schema = ?
		  AND upper(table_type) %s LIKE '%%VIEW%%'
		ORDER BY table_name`, cmp)
	rows, err := c.db.QueryContext(ctx, query, db, schemaName)
	if err != nil {
		return nil, fmt.Errorf("duckdb: tables: %w", err)
	}
	defer rows.Close()

	var tables []schema.Table
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("duckdb: tables scan: %w", err)
		}
		tables = append(tables, schema.Table{Name: name})
	}
	return tables, rows.Err()
}

// Procedures returns nil: DuckDB has no stored procedures.
func (c *duckdbConn) Procedures(ctx context.Context, db, schemaName string) ([]schema.Procedure, error) {
	return nil, nil
}

func (c *duckdbConn) Columns(ctx context.Context, db, schemaName, table string) ([]schema.Column, error) {
	query := `SELECT column_name,
			data_type,
			CASE WHEN is_nullable = 'YES' THEN true ELSE false END,
			COALESCE(column_default, ''),
			CASE WHEN column_name IN (
				SELECT kcu.column_name
				FROM information_schema.table_constraints tc
				JOIN information_schema.key_column_usage kcu
				  ON tc.constraint_name = kcu.constraint_name
				  AND tc.table_catalog = kcu.table_catalog
				  AND tc.table_schema = kcu.table_schema
				WHERE tc.constraint_type = 'PRIMARY KEY'
				  AND tc.table_catalog = ?
				  AND tc.table_schema = ?
				  AND tc.table_name = ?
			) THEN true ELSE false END
		FROM information_schema.columns
		WHERE table_catalog = ? AND table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`
	rows, err := c.db.QueryContext(ctx, query, db, schemaName, table, db, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("duckdb: columns: %w", err)
	}
	defer rows.Close()

	var cols []schema.Column
	for rows.Next() {
		var col schema.Column
		if err := rows.Scan(&col.Name, &col.Type, &col.Nullable, &col.Default, &col.IsPK); err != nil {
			return nil, fmt.Errorf("duckdb: columns scan: %w", err)
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func (c *duckdbConn) Indexes(ctx context.Context, db, schemaName, table string) ([]schema.Index, error) {
	query := `SELECT index_name, is_unique, sql
		FROM duckdb_indexes()
		WHERE database_name = ? AND schema_name = ? AND table_name = ?
		ORDER BY index_name`
	rows, err := c.db.QueryContext(ctx, query, db, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("duckdb: indexes: %w", err)
	}
	defer rows.Close()

	var indexes []schema.Index
	for rows.Next() {
		var idx schema.Index
		var isUnique bool
		var sqlStr sql.NullString
		if err := rows.Scan(&idx.Name, &isUnique, &sqlStr); err != nil {
			return nil, fmt.Errorf("duckdb: indexes scan: %w", err)
		}
		idx.Unique = isUnique
		idx.Columns = parseIndexColumns(sqlStr.String)
		indexes = append(indexes, idx)
	}
	return indexes, rows.Err()
}

// parseIndexColumns extracts column names from a CREATE INDEX SQL statement.
// Example: "CREATE INDEX idx ON tbl (col1, col2)" -> ["col1", "col2"]
func parseIndexColumns(sqlStr string) []string {
	if sqlStr == "" {
		return nil
	}
	start := strings.LastIndex(sqlStr, "(")
	end := strings.LastIndex(sqlStr, ")")
	if start < 0 || end <= start {
		return nil
	}
	inner := sqlStr[start+1 : end]
	parts := strings.Split(inner, ",")
	var cols []string
	for _, p := range parts {
		col := strings.TrimSpace(p)
		if col != "" {
			cols = append(cols, col)
		}
	}
	return cols
}

// ---------------------------------------------------------------------------
// Query execution
// ---------------------------------------------------------------------------

func (c *duckdbConn) Execute(ctx context.Context, query string, maxRows int) (*driver.QueryResult, error) {
	start := time.Now()
	if driver.IsSelect(query) || strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "FROM") {
		return c.executeSelect(ctx, query, maxRows, start)
	}
	return c.executeExec(ctx, query, start)
}

func (c *duckdbConn) executeSelect(ctx context.Context, query string, maxRows int, start time.Time) (*driver.QueryResult, error) {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, driver.ErrCancelled
		}
		return nil, fmt.Errorf("duckdb: query: %w", err)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("duckdb: column types: %w", err)
	}

	cols := make([]driver.ColumnMeta, len(colTypes))
	for i, ct := range colTypes {
		nullable, _ := ct.Nullable()
		cols[i] = driver.ColumnMeta{
			Name:     ct.Name(),
			Type:     ct.DatabaseTypeName(),
			Nullable: nullable,
		}
	}

	var resultRows [][]string
	nCols := len(cols)
	truncated := false
	for rows.Next() {
		if maxRows > 0 && len(resultRows) >= maxRows {
			truncated = true
			break
		}
		vals := make([]sql.NullString, nCols)
		ptrs := make([]any, nCols)
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("duckdb: scan: %w", err)
		}
		row := make([]string, nCols)
		for i, v := range vals {
			if v.Valid {
				row[i] = v.String
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
		return nil, fmt.Errorf("duckdb: rows iteration: %w", err)
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

func (c *duckdbConn) executeExec(ctx context.Context, query string, start time.Time) (*driver.QueryResult, error) {
	result, err := c.db.ExecContext(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, driver.ErrCancelled
		}
		return nil, fmt.Errorf("duckdb: exec: %w", err)
	}

	affected, _ := result.RowsAffected()
	return &driver.QueryResult{
		RowCount: affected,
		Duration: time.Since(start),
		IsSelect: false,
		Message:  fmt.Sprintf("%d row(s) affected", affected),
	}, nil
}
