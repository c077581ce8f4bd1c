package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/pheller/sqlpilot/internal/driver"
	"github.com/pheller/sqlpilot/internal/schema"
)

func init() {
	driver.Register(&mysqlDriver{})
}

// mysqlDriver implements driver.Driver for MySQL and MariaDB.
type mysqlDriver struct{}

func (d *mysqlDriver) Name() string     { return "mysql" }
func (d *mysqlDriver) DefaultPort() int { return 3306 }

func (d *mysqlDriver) Connect(ctx context.Context, target driver.Target) (driver.Conn, error) {
	dsn := target.DSN
	if dsn == "" {
		dsn = buildDSN(target)
	}

	cfg, err := gomysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql dsn: %w", err)
	}
	cfg.ParseTime = true

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("mysql open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql ping: %w", err)
	}

	return &mysqlConn{db: db, dbName: cfg.DBName}, nil
}

// buildDSN assembles a go-sql-driver DSN from the target fields.
// Integrated auth omits the password (socket or auth_socket plugins);
// token auth sends the access token in the password slot.
func buildDSN(t driver.Target) string {
	host := t.Host
	if host == "" {
		host = "localhost"
	}
	port := t.Port
	if port == 0 {
		port = 3306
	}

	cfg := gomysql.NewConfig()
	cfg.User = t.User
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", host, port)
	cfg.DBName = t.Database
	switch t.Auth {
	case driver.AuthIntegrated:
		// no password
	case driver.AuthToken:
		cfg.Passwd = t.Token
	default:
		cfg.Passwd = t.Password
	}
	return cfg.FormatDSN()
}

// mysqlConn implements driver.Conn.
type mysqlConn struct {
	db     *sql.DB
	dbName string
}

func (c *mysqlConn) DriverName() string   { return "mysql" }
func (c *mysqlConn) DatabaseName() string { return c.dbName }

func (c *mysqlConn) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *mysqlConn) Close() error {
	return c.db.Close()
}

// UseDatabase switches the default database for the connection.
func (c *mysqlConn) UseDatabase(ctx context.Context, name string) error {
	if _, err := c.db.ExecContext(ctx, "USE "+quoteIdent(name)); err != nil {
		return fmt.Errorf("mysql use %s: %w", name, err)
	}
	c.dbName = name
	return nil
}

// quoteIdent backtick-quotes a MySQL identifier.
func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// ---------------------------------------------------------------------------
// Introspection. MySQL has no separate schema level: a schema IS a
// database, so Schemas echoes the database name and the table queries
// filter on it.
// ---------------------------------------------------------------------------

func (c *mysqlConn) Databases(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT schema_name FROM information_schema.schemata
		 WHERE schema_name NOT IN ('mysql', 'information_schema', 'performance_schema', 'sys')
		 ORDER BY schema_name`)
	if err != nil {
		return nil, fmt.Errorf("mysql databases: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("mysql databases scan: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (c *mysqlConn) Schemas(ctx context.Context, db string) ([]string, error) {
	return []string{db}, nil
}

func (c *mysqlConn) Tables(ctx context.Context, db, schemaName string) ([]schema.Table, error) {
	return c.relations(ctx, schemaName, "BASE TABLE")
}

func (c *mysqlConn) Views(ctx context.Context, db, schemaName string) ([]schema.View, error) {
	tables, err := c.relations(ctx, schemaName, "VIEW")
	if err != nil {
		return nil, err
	}
	views := make([]schema.View, len(tables))
	for i, t := range tables {
		views[i] = schema.View{Name: t.Name}
	}
	return views, nil
}

func (c *mysqlConn) relations(ctx context.Context, schemaName, tableType string) ([]schema.Table, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = ? AND table_type = ?
		 ORDER BY table_name`, schemaName, tableType)
	if err != nil {
		return nil, fmt.Errorf("mysql tables: %w", err)
	}
	defer rows.Close()

	var tables []schema.Table
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("mysql tables scan: %w", err)
		}
		tables = append(tables, schema.Table{Name: name})
	}
	return tables, rows.Err()
}

func (c *mysqlConn) Procedures(ctx context.Context, db, schemaName string) ([]schema.Procedure, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT r.routine_name,
		        COALESCE(p.parameter_name, ''),
		        COALESCE(p.data_type, '')
		 FROM information_schema.routines r
		 LEFT JOIN information_schema.parameters p
		        ON p.specific_name   = r.specific_name
		       AND p.specific_schema = r.routine_schema
		 WHERE r.routine_schema = ?
		 ORDER BY r.routine_name, p.ordinal_position`, schemaName)
	if err != nil {
		return nil, fmt.Errorf("mysql procedures: %w", err)
	}
	defer rows.Close()

	procMap := make(map[string]*schema.Procedure)
	var order []string
	for rows.Next() {
		var name, paramName, paramType string
		if err := rows.Scan(&name, &paramName, &paramType); err != nil {
			return nil, fmt.Errorf("mysql procedures scan: %w", err)
		}
		proc, ok := procMap[name]
		if !ok {
			proc = &schema.Procedure{Name: name}
			procMap[name] = proc
			order = append(order, name)
		}
		if paramName != "" {
			proc.Parameters = append(proc.Parameters, schema.Parameter{Name: paramName, Type: paramType})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	procs := make([]schema.Procedure, 0, len(order))
	for _, name := range order {
		procs = append(procs, *procMap[name])
	}
	return procs, nil
}

func (c *mysqlConn) Columns(ctx context.Context, db, schemaName, table string) ([]schema.Column, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT column_name,
		        column_type,
		        is_nullable,
		        COALESCE(column_default, ''),
		        column_key
		 FROM information_schema.columns
		 WHERE table_schema = ? AND table_name = ?
		 ORDER BY ordinal_position`, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("mysql columns: %w", err)
	}
	defer rows.Close()

	var cols []schema.Column
	for rows.Next() {
		var name, ctype, nullable, dflt, key string
		if err := rows.Scan(&name, &ctype, &nullable, &dflt, &key); err != nil {
			return nil, fmt.Errorf("mysql columns scan: %w", err)
		}
		cols = append(cols, schema.Column{
			Name:     name,
			Type:     ctype,
			Nullable: nullable == "YES",
			Default:  dflt,
			IsPK:     key == "PRI",
		})
	}
	return cols, rows.Err()
}

func (c *mysqlConn) Indexes(ctx context.Context, db, schemaName, table string) ([]schema.Index, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT index_name, column_name, non_unique
		 FROM information_schema.statistics
		 WHERE table_schema = ? AND table_name = ?
		 ORDER BY index_name, seq_in_index`, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("mysql indexes: %w", err)
	}
	defer rows.Close()

	idxMap := make(map[string]*schema.Index)
	var order []string
	for rows.Next() {
		var name, col string
		var nonUnique int
		if err := rows.Scan(&name, &col, &nonUnique); err != nil {
			return nil, fmt.Errorf("mysql indexes scan: %w", err)
		}
		idx, ok := idxMap[name]
		if !ok {
			idx = &schema.Index{Name: name, Unique: nonUnique == 0}
			idxMap[name] = idx
			order = append(order, name)
		}
		idx.Columns = append(idx.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	indexes := make([]schema.Index, 0, len(order))
	for _, name := range order {
		indexes = append(indexes, *idxMap[name])
	}
	return indexes, nil
}

// ---------------------------------------------------------------------------
// Query Execution
// ---------------------------------------------------------------------------

func (c *mysqlConn) Execute(ctx context.Context, query string, maxRows int) (*driver.QueryResult, error) {
	start := time.Now()
	if driver.IsSelect(query) {
		return c.executeQuery(ctx, query, maxRows, start)
	}
	return c.executeExec(ctx, query, start)
}

func (c *mysqlConn) executeQuery(ctx context.Context, query string, maxRows int, start time.Time) (*driver.QueryResult, error) {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, driver.ErrCancelled
		}
		return nil, fmt.Errorf("mysql query: %w", err)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("mysql column types: %w", err)
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
			return nil, fmt.Errorf("mysql scan: %w", err)
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
		return nil, fmt.Errorf("mysql rows: %w", err)
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

func (c *mysqlConn) executeExec(ctx context.Context, query string, start time.Time) (*driver.QueryResult, error) {
	result, err := c.db.ExecContext(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, driver.ErrCancelled
		}
		return nil, fmt.Errorf("mysql exec: %w", err)
	}

	affected, _ := result.RowsAffected()
	return &driver.QueryResult{
		RowCount: affected,
		Duration: time.Since(start),
		IsSelect: false,
		Message:  fmt.Sprintf("%d row(s) affected", affected),
	}, nil
}
