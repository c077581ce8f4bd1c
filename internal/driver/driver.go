package driver

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/pheller/sqlpilot/internal/schema"
)

var (
	ErrNotConnected = errors.New("not connected to database")
	ErrCancelled    = errors.New("query cancelled")
)

// DefaultMaxRows bounds result buffering when the caller does not ask
// for a specific cap.
const DefaultMaxRows = 1000

// AuthMethod selects how a connection authenticates.
type AuthMethod string

const (
	// AuthIntegrated uses ambient OS credentials: passwordless or peer
	// auth where the server supports it.
	AuthIntegrated AuthMethod = "integrated"
	// AuthPassword sends an explicit username and password.
	AuthPassword AuthMethod = "password"
	// AuthToken sends a bearer access token in place of a password.
	AuthToken AuthMethod = "token"
)

// Target describes where and how to connect. If DSN is set it wins;
// otherwise each driver assembles its own DSN from the fields.
type Target struct {
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	Token    string
	Database string
	File     string
	Auth     AuthMethod
}

// Driver creates database connections.
type Driver interface {
	Connect(ctx context.Context, target Target) (Conn, error)
	Name() string
	DefaultPort() int
}

// Conn is an active database connection. Introspection methods feed the
// schema cache; Execute runs user queries.
type Conn interface {
	// Introspection
	Databases(ctx context.Context) ([]string, error)
	Schemas(ctx context.Context, db string) ([]string, error)
	Tables(ctx context.Context, db, schemaName string) ([]schema.Table, error)
	Views(ctx context.Context, db, schemaName string) ([]schema.View, error)
	Procedures(ctx context.Context, db, schemaName string) ([]schema.Procedure, error)
	Columns(ctx context.Context, db, schemaName, table string) ([]schema.Column, error)
	Indexes(ctx context.Context, db, schemaName, table string) ([]schema.Index, error)

	// Query execution. maxRows > 0 bounds the number of rows buffered;
	// results past the bound set Truncated instead of growing further.
	Execute(ctx context.Context, query string, maxRows int) (*QueryResult, error)

	// UseDatabase switches the connection's current database scope.
	UseDatabase(ctx context.Context, name string) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Info
	DatabaseName() string
	DriverName() string
}

// QueryResult holds the result of a query execution.
type QueryResult struct {
	Columns   []ColumnMeta
	Rows      [][]string
	RowCount  int64 // rows returned, or rows affected for non-selects
	Duration  time.Duration
	IsSelect  bool
	Truncated bool
	Message   string
}

// ColumnMeta holds metadata about a result column.
type ColumnMeta struct {
	Name     string
	Type     string
	Nullable bool
}

// Registry holds registered drivers by name.
var Registry = map[string]Driver{}

// Register adds a driver to the global registry.
func Register(d Driver) {
	Registry[d.Name()] = d
}

// Lookup returns the registered driver with the given name.
func Lookup(name string) (Driver, bool) {
	d, ok := Registry[name]
	return d, ok
}

// IsSelect reports whether a query is a row-returning statement. Leading
// line and block comments are skipped before the keyword check.
func IsSelect(query string) bool {
	q := strings.TrimSpace(query)
	for {
		if strings.HasPrefix(q, "--") {
			if idx := strings.Index(q, "\n"); idx >= 0 {
				q = strings.TrimSpace(q[idx+1:])
				continue
			}
			return false
		}
		if strings.HasPrefix(q, "/*") {
			if idx := strings.Index(q, "*/"); idx >= 0 {
				q = strings.TrimSpace(q[idx+2:])
				continue
			}
			return false
		}
		break
	}
	upper := strings.ToUpper(q)
	for _, kw := range []string{"SELECT", "WITH", "VALUES", "TABLE", "SHOW", "EXPLAIN", "DESCRIBE", "PRAGMA"} {
		if strings.HasPrefix(upper, kw) {
			return true
		}
	}
	return false
}

// ParseUse recognizes a standalone USE statement and returns the target
// database name. The trailing semicolon and surrounding quotes or
// brackets are stripped.
func ParseUse(query string) (string, bool) {
	q := strings.TrimSpace(query)
	q = strings.TrimSuffix(q, ";")
	fields := strings.Fields(q)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "USE") {
		return "", false
	}
	name := fields[1]
	name = strings.Trim(name, "\"'`")
	name = strings.TrimPrefix(name, "[")
	name = strings.TrimSuffix(name, "]")
	if name == "" {
		return "", false
	}
	return name, true
}
