package postgres

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pheller/sqlpilot/internal/driver"
	"github.com/pheller/sqlpilot/internal/schema"
)

func init() {
	driver.Register(&postgresDriver{})
}

// postgresDriver implements driver.Driver for PostgreSQL.
type postgresDriver struct{}

func (d *postgresDriver) Name() string     { return "postgres" }
func (d *postgresDriver) DefaultPort() int { return 5432 }

func (d *postgresDriver) Connect(ctx context.Context, target driver.Target) (driver.Conn, error) {
	dsn := target.DSN
	if dsn == "" {
		dsn = buildDSN(target)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	return &pgConn{
		pool:   pool,
		dbName: extractDBName(dsn),
	}, nil
}

// buildDSN assembles a postgres URL from the target fields. Integrated
// auth omits the password and relies on peer or trust auth; token auth
// sends the access token in the password slot, which is how managed
// Postgres services accept bearer tokens.
func buildDSN(t driver.Target) string {
	host := t.Host
	if host == "" {
		host = "localhost"
	}
	port := t.Port
	if port == 0 {
		port = 5432
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", host, port),
		Path:   "/" + t.Database,
	}
	switch t.Auth {
	case driver.AuthIntegrated:
		if t.User != "" {
			u.User = url.User(t.User)
		}
	case driver.AuthToken:
		u.User = url.UserPassword(t.User, t.Token)
	default:
		u.User = url.UserPassword(t.User, t.Password)
	}
	return u.String()
}

// extractDBName parses the database name from the DSN.
func extractDBName(dsn string) string {
	if dsn == "" {
		return ""
	}
	u, err := url.Parse(dsn)
	if err == nil && u.Scheme != "" {
		return strings.TrimPrefix(u.Path, "/")
	}
	for _, part := range strings.Fields(dsn) {
		if strings.HasPrefix(part, "dbname=") {
			return strings.TrimPrefix(part, "dbname=")
		}
	}
	return ""
}

// pgConn implements driver.Conn for PostgreSQL.
type pgConn struct {
	pool   *pgxpool.Pool
	dbName string
}

func (c *pgConn) DatabaseName() string { return c.dbName }
func (c *pgConn) DriverName() string   { return "postgres" }

func (c *pgConn) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

func (c *pgConn) Close() error {
	c.pool.Close()
	return nil
}

// UseDatabase is unsupported: a Postgres session is bound to one database.
func (c *pgConn) UseDatabase(ctx context.Context, name string) error {
	return fmt.Errorf("postgres: USE is not supported; reconnect to database %q instead", name)
}

// ---------------------------------------------------------------------------
// Introspection
// ---------------------------------------------------------------------------

func (c *pgConn) Databases(ctx context.Context) ([]string, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT datname FROM pg_database
		 WHERE datistemplate = false
		 ORDER BY datname`)
	if err != nil {
		return nil, fmt.Errorf("databases: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("databases scan: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Schemas returns the user-visible schemas. Cross-database introspection
// is not possible over one connection, so databases other than the
// connected one report no schemas.
func (c *pgConn) Schemas(ctx context.Context, db string) ([]string, error) {
	if db != c.dbName {
		return nil, nil
	}

	rows, err := c.pool.Query(ctx,
		`SELECT schema_name FROM information_schema.schemata
		 WHERE catalog_name = $1
		   AND schema_name NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		 ORDER BY schema_name`, db)
	if err != nil {
		return nil, fmt.Errorf("schemas: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("schemas scan: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (c *pgConn) Tables(ctx context.Context, db, schemaName string) ([]schema.Table, error) {
	return c.relations(ctx, db, schemaName, "BASE TABLE")
}

func (c *pgConn) Views(ctx context.Context, db, schemaName string) ([]schema.View, error) {
	tables, err := c.relations(ctx, db, schemaName, "VIEW")
	if err != nil {
		return nil, err
	}
	views := make([]schema.View, len(tables))
	for i, t := range tables {
		views[i] = schema.View{Name: t.Name}
	}
	return views, nil
}

func (c *pgConn) relations(ctx context.Context, db, schemaName, tableType string) ([]schema.Table, error) {
	if schemaName == "" {
		schemaName = "public"
	}

	rows, err := c.pool.Query(ctx,
		`SELECT table_name
		 FROM information_schema.tables
		 WHERE table_catalog = $1
		   AND table_schema  = $2
		   AND table_type    = $3
		 ORDER BY table_name`, db, schemaName, tableType)
	if err != nil {
		return nil, fmt.Errorf("tables: %w", err)
	}
	defer rows.Close()

	var tables []schema.Table
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("tables scan: %w", err)
		}
		tables = append(tables, schema.Table{Name: name})
	}
	return tables, rows.Err()
}

func (c *pgConn) Procedures(ctx context.Context, db, schemaName string) ([]schema.Procedure, error) {
	if schemaName == "" {
		schemaName = "public"
	}

	rows, err := c.pool.Query(ctx,
		`SELECT r.routine_name,
		        COALESCE(p.parameter_name, ''),
		        COALESCE(p.data_type, '')
		 FROM information_schema.routines r
		 LEFT JOIN information_schema.parameters p
		        ON p.specific_name   = r.specific_name
		       AND p.specific_schema = r.specific_schema
		 WHERE r.routine_catalog = $1
		   AND r.routine_schema  = $2
		 ORDER BY r.routine_name, p.ordinal_position`, db, schemaName)
	if err != nil {
		return nil, fmt.Errorf("procedures: %w", err)
	}
	defer rows.Close()

	procMap := make(map[string]*schema.Procedure)
	var order []string
	for rows.Next() {
		var name, paramName, paramType string
		if err := rows.Scan(&name, &paramName, &paramType); err != nil {
			return nil, fmt.Errorf("procedures scan: %w", err)
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

func (c *pgConn) Columns(ctx context.Context, db, schemaName, table string) ([]schema.Column, error) {
	if schemaName == "" {
		schemaName = "public"
	}

	pkSet, err := c.primaryKeyColumns(ctx, schemaName, table)
	if err != nil {
		return nil, err
	}

	rows, err := c.pool.Query(ctx,
		`SELECT column_name,
		        data_type,
		        is_nullable,
		        COALESCE(column_default, '')
		 FROM information_schema.columns
		 WHERE table_catalog = $1
		   AND table_schema  = $2
		   AND table_name    = $3
		 ORDER BY ordinal_position`, db, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	defer rows.Close()

	var cols []schema.Column
	for rows.Next() {
		var name, dtype, nullable, dflt string
		if err := rows.Scan(&name, &dtype, &nullable, &dflt); err != nil {
			return nil, fmt.Errorf("columns scan: %w", err)
		}
		cols = append(cols, schema.Column{
			Name:     name,
			Type:     dtype,
			Nullable: nullable == "YES",
			Default:  dflt,
			IsPK:     pkSet[name],
		})
	}
	return cols, rows.Err()
}

// primaryKeyColumns returns a set of column names that belong to the primary key.
func (c *pgConn) primaryKeyColumns(ctx context.Context, schemaName, table string) (map[string]bool, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT a.attname
		 FROM pg_index i
		 JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
		 WHERE i.indrelid = ($1 || '.' || $2)::regclass
		   AND i.indisprimary`, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("primary keys: %w", err)
	}
	defer rows.Close()

	pk := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("primary keys scan: %w", err)
		}
		pk[name] = true
	}
	return pk, rows.Err()
}

func (c *pgConn) Indexes(ctx context.Context, db, schemaName, table string) ([]schema.Index, error) {
	if schemaName == "" {
		schemaName = "public"
	}

	rows, err := c.pool.Query(ctx,
		`SELECT i.relname                        AS index_name,
		        array_agg(a.attname ORDER BY k.n) AS columns,
		        ix.indisunique                     AS is_unique
		 FROM pg_index ix
		 JOIN pg_class  t ON t.oid  = ix.indrelid
		 JOIN pg_class  i ON i.oid  = ix.indexrelid
		 JOIN pg_namespace n ON n.oid = t.relnamespace
		 JOIN LATERAL unnest(ix.indkey) WITH ORDINALITY AS k(attnum, n) ON true
		 JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
		 WHERE n.nspname = $1
		   AND t.relname = $2
		 GROUP BY i.relname, ix.indisunique
		 ORDER BY i.relname`, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("indexes: %w", err)
	}
	defer rows.Close()

	var indexes []schema.Index
	for rows.Next() {
		var (
			name   string
			cols   []string
			unique bool
		)
		if err := rows.Scan(&name, &cols, &unique); err != nil {
			return nil, fmt.Errorf("indexes scan: %w", err)
		}
		indexes = append(indexes, schema.Index{
			Name:    name,
			Columns: cols,
			Unique:  unique,
		})
	}
	return indexes, rows.Err()
}

// ---------------------------------------------------------------------------
// Query Execution
// ---------------------------------------------------------------------------

func (c *pgConn) Execute(ctx context.Context, query string, maxRows int) (*driver.QueryResult, error) {
	start := time.Now()
	if driver.IsSelect(query) {
		return c.executeSelect(ctx, query, maxRows, start)
	}
	return c.executeNonSelect(ctx, query, start)
}

func (c *pgConn) executeSelect(ctx context.Context, query string, maxRows int, start time.Time) (*driver.QueryResult, error) {
	rows, err := c.pool.Query(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, driver.ErrCancelled
		}
		return nil, fmt.Errorf("execute: %w", err)
	}
	defer rows.Close()

	cols := fieldDescToMeta(rows.FieldDescriptions())

	var result [][]string
	truncated := false
	for rows.Next() {
		if maxRows > 0 && len(result) >= maxRows {
			truncated = true
			break
		}
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("execute values: %w", err)
		}
		result = append(result, valuesToStrings(vals))
	}
	if err := rows.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, driver.ErrCancelled
		}
		return nil, fmt.Errorf("execute rows: %w", err)
	}

	return &driver.QueryResult{
		Columns:   cols,
		Rows:      result,
		RowCount:  int64(len(result)),
		Duration:  time.Since(start),
		IsSelect:  true,
		Truncated: truncated,
	}, nil
}

func (c *pgConn) executeNonSelect(ctx context.Context, query string, start time.Time) (*driver.QueryResult, error) {
	tag, err := c.pool.Exec(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, driver.ErrCancelled
		}
		return nil, fmt.Errorf("execute: %w", err)
	}

	return &driver.QueryResult{
		RowCount: tag.RowsAffected(),
		Duration: time.Since(start),
		IsSelect: false,
		Message:  tag.String(),
	}, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// fieldDescToMeta converts pgx field descriptions to driver ColumnMeta.
func fieldDescToMeta(fds []pgconn.FieldDescription) []driver.ColumnMeta {
	cols := make([]driver.ColumnMeta, len(fds))
	for i, fd := range fds {
		cols[i] = driver.ColumnMeta{
			Name: fd.Name,
			Type: pgTypeOIDToName(fd.DataTypeOID),
		}
	}
	return cols
}

// valuesToStrings converts a row of values to strings.
func valuesToStrings(vals []any) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = valueToString(v)
	}
	return out
}

// valueToString converts a single database value to a string representation.
func valueToString(v any) string {
	if v == nil {
		return "NULL"
	}
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format("2006-01-02")
		}
		return val.Format("2006-01-02 15:04:05")
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int8, int16, int32, int64:
		return fmt.Sprintf("%d", val)
	case float32, float64:
		return fmt.Sprintf("%g", val)
	case [16]byte:
		// UUID
		return fmt.Sprintf("%x-%x-%x-%x-%x", val[0:4], val[4:6], val[6:8], val[8:10], val[10:16])
	case []string:
		return "{" + strings.Join(val, ",") + "}"
	case []int32:
		parts := make([]string, len(val))
		for i, n := range val {
			parts[i] = fmt.Sprintf("%d", n)
		}
		return "{" + strings.Join(parts, ",") + "}"
	case []int64:
		parts := make([]string, len(val))
		for i, n := range val {
			parts[i] = fmt.Sprintf("%d", n)
		}
		return "{" + strings.Join(parts, ",") + "}"
	case []float64:
		parts := make([]string, len(val))
		for i, n := range val {
			parts[i] = fmt.Sprintf("%g", n)
		}
		return "{" + strings.Join(parts, ",") + "}"
	case pgtype.Numeric:
		dv, err := val.Value()
		if err != nil || dv == nil {
			return "NULL"
		}
		if s, ok := dv.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", dv)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// pgTypeOIDToName maps common PostgreSQL type OIDs to human-readable names.
func pgTypeOIDToName(oid uint32) string {
	switch oid {
	case 16:
		return "bool"
	case 17:
		return "bytea"
	case 20:
		return "int8"
	case 21:
		return "int2"
	case 23:
		return "int4"
	case 25:
		return "text"
	case 114:
		return "json"
	case 700:
		return "float4"
	case 701:
		return "float8"
	case 1042:
		return "bpchar"
	case 1043:
		return "varchar"
	case 1082:
		return "date"
	case 1083:
		return "time"
	case 1114:
		return "timestamp"
	case 1184:
		return "timestamptz"
	case 1186:
		return "interval"
	case 1700:
		return "numeric"
	case 2950:
		return "uuid"
	case 3802:
		return "jsonb"
	default:
		return fmt.Sprintf("oid:%d", oid)
	}
}
