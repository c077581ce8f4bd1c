package driver

import (
	"context"
	"testing"
	"time"

	"github.com/pheller/sqlpilot/internal/schema"
)

func TestIsSelect(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"SELECT 1", true},
		{"select * from users", true},
		{"  WITH t AS (SELECT 1) SELECT * FROM t", true},
		{"EXPLAIN SELECT 1", true},
		{"SHOW TABLES", true},
		{"PRAGMA table_info(users)", true},
		{"-- leading comment\nSELECT 1", true},
		{"/* block */ SELECT 1", true},
		{"INSERT INTO t VALUES (1)", false},
		{"UPDATE t SET a = 1", false},
		{"DELETE FROM t", false},
		{"CREATE TABLE t (a int)", false},
		{"-- only a comment", false},
		{"/* unterminated", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsSelect(tt.query); got != tt.want {
			t.Errorf("IsSelect(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestParseUse(t *testing.T) {
	tests := []struct {
		query string
		want  string
		ok    bool
	}{
		{"USE sales", "sales", true},
		{"use sales;", "sales", true},
		{"  USE  [My Db]  ", "My Db", true},
		{"USE \"quoted\"", "quoted", true},
		{"USE `backtick`;", "backtick", true},
		{"USE", "", false},
		{"USE a b", "", false},
		{"USELESS sales", "", false},
		{"SELECT * FROM use_table", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseUse(tt.query)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseUse(%q) = (%q, %v), want (%q, %v)", tt.query, got, ok, tt.want, tt.ok)
		}
	}
}

// fakeConn serves a tiny fixed catalog for fetcher tests.
type fakeConn struct{}

func (fakeConn) Databases(ctx context.Context) ([]string, error) { return []string{"app"}, nil }
func (fakeConn) Schemas(ctx context.Context, db string) ([]string, error) {
	return []string{"public"}, nil
}
func (fakeConn) Tables(ctx context.Context, db, schemaName string) ([]schema.Table, error) {
	return []schema.Table{{Name: "orders"}}, nil
}
func (fakeConn) Views(ctx context.Context, db, schemaName string) ([]schema.View, error) {
	return []schema.View{{Name: "order_totals"}}, nil
}
func (fakeConn) Procedures(ctx context.Context, db, schemaName string) ([]schema.Procedure, error) {
	return []schema.Procedure{{
		Name:       "refresh_totals",
		Parameters: []schema.Parameter{{Name: "since", Type: "date"}},
	}}, nil
}
func (fakeConn) Columns(ctx context.Context, db, schemaName, table string) ([]schema.Column, error) {
	return []schema.Column{
		{Name: "id", Type: "int", IsPK: true},
		{Name: "total", Type: "numeric", Nullable: true},
	}, nil
}
func (fakeConn) Indexes(ctx context.Context, db, schemaName, table string) ([]schema.Index, error) {
	return []schema.Index{{Name: "orders_pkey", Columns: []string{"id"}, Unique: true}}, nil
}
func (fakeConn) Execute(ctx context.Context, query string, maxRows int) (*QueryResult, error) {
	return &QueryResult{Duration: time.Millisecond}, nil
}
func (fakeConn) UseDatabase(ctx context.Context, name string) error { return nil }
func (fakeConn) Ping(ctx context.Context) error                     { return nil }
func (fakeConn) Close() error                                       { return nil }
func (fakeConn) DatabaseName() string                               { return "app" }
func (fakeConn) DriverName() string                                 { return "fake" }

func TestNodeFetcherTree(t *testing.T) {
	f := NewNodeFetcher(fakeConn{})
	ctx := context.Background()

	dbs, err := f.FetchChildren(ctx, schema.Root())
	if err != nil {
		t.Fatal(err)
	}
	if len(dbs) != 1 || dbs[0].Kind != schema.KindDatabase || dbs[0].Name != "app" {
		t.Fatalf("databases = %v", dbs)
	}

	schemas, err := f.FetchChildren(ctx, dbs[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(schemas) != 1 || schemas[0].Path != "app/public" {
		t.Fatalf("schemas = %v", schemas)
	}

	rels, err := f.FetchChildren(ctx, schemas[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(rels) != 3 {
		t.Fatalf("relations = %v, want table+view+procedure", rels)
	}
	kinds := map[schema.NodeKind]string{}
	for _, n := range rels {
		kinds[n.Kind] = n.Name
	}
	if kinds[schema.KindTable] != "orders" || kinds[schema.KindView] != "order_totals" || kinds[schema.KindProcedure] != "refresh_totals" {
		t.Fatalf("relations = %v", kinds)
	}

	var table, proc schema.Node
	for _, n := range rels {
		switch n.Kind {
		case schema.KindTable:
			table = n
		case schema.KindProcedure:
			proc = n
		}
	}

	cols, err := f.FetchChildren(ctx, table)
	if err != nil {
		t.Fatal(err)
	}
	// Two columns plus one index, all leaves.
	if len(cols) != 3 {
		t.Fatalf("table children = %v", cols)
	}
	for _, n := range cols {
		if !n.Leaf {
			t.Errorf("%s not marked leaf", n.Path)
		}
	}
	if cols[0].Detail != "int PK NOT NULL" {
		t.Errorf("pk detail = %q", cols[0].Detail)
	}

	params, err := f.FetchChildren(ctx, proc)
	if err != nil {
		t.Fatal(err)
	}
	if len(params) != 1 || params[0].Name != "since" || params[0].Detail != "date" {
		t.Fatalf("parameters = %v", params)
	}

	// Leaves never fetch.
	kids, err := f.FetchChildren(ctx, cols[0])
	if err != nil || kids != nil {
		t.Fatalf("leaf fetch = (%v, %v)", kids, err)
	}
}

func TestRegistry(t *testing.T) {
	if _, ok := Lookup("no-such-driver"); ok {
		t.Fatal("lookup of unregistered driver succeeded")
	}
}
