//go:build !duckdb

package duckdb

import (
	"context"
	"errors"

	"github.com/pheller/sqlpilot/internal/driver"
	"github.com/pheller/sqlpilot/internal/schema"
)

var errDisabled = errors.New("DuckDB support not compiled in. Rebuild with -tags duckdb")

func init() {
	driver.Register(&disabledDriver{})
}

type disabledDriver struct{}

func (d *disabledDriver) Name() string     { return "duckdb" }
func (d *disabledDriver) DefaultPort() int { return 0 }

func (d *disabledDriver) Connect(_ context.Context, _ driver.Target) (driver.Conn, error) {
	return nil, errDisabled
}

// disabledConn is never instantiated but satisfies the interface at compile time.
var _ driver.Conn = (*disabledConn)(nil)

type disabledConn struct{}

func (c *disabledConn) Databases(_ context.Context) ([]string, error) {
	return nil, errDisabled
}
func (c *disabledConn) Schemas(_ context.Context, _ string) ([]string, error) {
	return nil, errDisabled
}
func (c *disabledConn) Tables(_ context.Context, _, _ string) ([]schema.Table, error) {
	return nil, errDisabled
}
func (c *disabledConn) Views(_ context.Context, _, _ string) ([]schema.View, error) {
	return nil, errDisabled
}
func (c *disabledConn) Procedures(_ context.Context, _, _ string) ([]schema.Procedure, error) {
	return nil, errDisabled
}
func (c *disabledConn) Columns(_ context.Context, _, _, _ string) ([]schema.Column, error) {
	return nil, errDisabled
}
func (c *disabledConn) Indexes(_ context.Context, _, _, _ string) ([]schema.Index, error) {
	return nil, errDisabled
}
func (c *disabledConn) Execute(_ context.Context, _ string, _ int) (*driver.QueryResult, error) {
	return nil, errDisabled
}
func (c *disabledConn) UseDatabase(_ context.Context, _ string) error { return errDisabled }
func (c *disabledConn) Ping(_ context.Context) error                  { return errDisabled }
func (c *disabledConn) Close() error                                  { return errDisabled }
func (c *disabledConn) DatabaseName() string                          { return "" }
func (c *disabledConn) DriverName() string                            { return "duckdb" }
