//go:build !duckdb

package duckdb

import (
	"context"
	"errors"
	"testing"

	"github.com/pheller/sqlpilot/internal/driver"
)

func TestDisabledDriverRegistered(t *testing.T) {
	d, ok := driver.Lookup("duckdb")
	if !ok {
		t.Fatal("duckdb driver not found in registry")
	}
	if d.Name() != "duckdb" {
		t.Errorf("Name() = %q, want %q", d.Name(), "duckdb")
	}
}

func TestDisabledConnectFails(t *testing.T) {
	d, _ := driver.Lookup("duckdb")
	_, err := d.Connect(context.Background(), driver.Target{File: ":memory:"})
	if !errors.Is(err, errDisabled) {
		t.Fatalf("Connect() error = %v, want errDisabled", err)
	}
}
