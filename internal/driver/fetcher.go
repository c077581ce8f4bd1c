package driver

import (
	"context"
	"fmt"
	"strings"

	"github.com/pheller/sqlpilot/internal/schema"
)

// NodeFetcher adapts a Conn to the schema cache's Fetcher interface. It
// maps each node kind to the introspection call that produces its
// children, so the cache stays driver-agnostic.
type NodeFetcher struct {
	conn Conn
}

// NewNodeFetcher wraps conn for lazy metadata discovery.
func NewNodeFetcher(conn Conn) *NodeFetcher {
	return &NodeFetcher{conn: conn}
}

func (f *NodeFetcher) FetchChildren(ctx context.Context, node schema.Node) ([]schema.Node, error) {
	switch node.Kind {
	case schema.KindFolder:
		if node.Path != "" {
			return nil, nil
		}
		return f.fetchDatabases(ctx)
	case schema.KindDatabase:
		return f.fetchSchemas(ctx, node)
	case schema.KindSchema:
		return f.fetchRelations(ctx, node)
	case schema.KindTable, schema.KindView:
		return f.fetchTableChildren(ctx, node)
	case schema.KindProcedure:
		return f.fetchParameters(ctx, node)
	case schema.KindColumn, schema.KindParameter, schema.KindIndex:
		return nil, nil
	default:
		return nil, fmt.Errorf("driver: no children for node kind %s", node.Kind)
	}
}

func (f *NodeFetcher) fetchDatabases(ctx context.Context) ([]schema.Node, error) {
	names, err := f.conn.Databases(ctx)
	if err != nil {
		return nil, err
	}
	root := schema.Root()
	out := make([]schema.Node, 0, len(names))
	for _, name := range names {
		out = append(out, root.Child(schema.KindDatabase, name))
	}
	return out, nil
}

func (f *NodeFetcher) fetchSchemas(ctx context.Context, node schema.Node) ([]schema.Node, error) {
	names, err := f.conn.Schemas(ctx, node.Name)
	if err != nil {
		return nil, err
	}
	out := make([]schema.Node, 0, len(names))
	for _, name := range names {
		out = append(out, node.Child(schema.KindSchema, name))
	}
	return out, nil
}

func (f *NodeFetcher) fetchRelations(ctx context.Context, node schema.Node) ([]schema.Node, error) {
	seg := node.Segments()
	if len(seg) != 2 {
		return nil, fmt.Errorf("driver: malformed schema path %q", node.Path)
	}
	db, schemaName := seg[0], seg[1]

	tables, err := f.conn.Tables(ctx, db, schemaName)
	if err != nil {
		return nil, err
	}
	views, err := f.conn.Views(ctx, db, schemaName)
	if err != nil {
		return nil, err
	}
	procs, err := f.conn.Procedures(ctx, db, schemaName)
	if err != nil {
		return nil, err
	}

	out := make([]schema.Node, 0, len(tables)+len(views)+len(procs))
	for _, t := range tables {
		out = append(out, node.Child(schema.KindTable, t.Name))
	}
	for _, v := range views {
		out = append(out, node.Child(schema.KindView, v.Name))
	}
	for _, p := range procs {
		child := node.Child(schema.KindProcedure, p.Name)
		child.Detail = procSignature(p)
		out = append(out, child)
	}
	return out, nil
}

func (f *NodeFetcher) fetchTableChildren(ctx context.Context, node schema.Node) ([]schema.Node, error) {
	seg := node.Segments()
	if len(seg) != 3 {
		return nil, fmt.Errorf("driver: malformed table path %q", node.Path)
	}
	db, schemaName, table := seg[0], seg[1], seg[2]

	cols, err := f.conn.Columns(ctx, db, schemaName, table)
	if err != nil {
		return nil, err
	}
	out := make([]schema.Node, 0, len(cols))
	for _, col := range cols {
		child := node.Child(schema.KindColumn, col.Name)
		child.Detail = columnDetail(col)
		child.Leaf = true
		out = append(out, child)
	}

	// Views have no indexes; skip the extra round-trip.
	if node.Kind == schema.KindTable {
		idxs, err := f.conn.Indexes(ctx, db, schemaName, table)
		if err != nil {
			return nil, err
		}
		for _, idx := range idxs {
			child := node.Child(schema.KindIndex, idx.Name)
			child.Detail = indexDetail(idx)
			child.Leaf = true
			out = append(out, child)
		}
	}
	return out, nil
}

func (f *NodeFetcher) fetchParameters(ctx context.Context, node schema.Node) ([]schema.Node, error) {
	seg := node.Segments()
	if len(seg) != 3 {
		return nil, fmt.Errorf("driver: malformed procedure path %q", node.Path)
	}
	db, schemaName, proc := seg[0], seg[1], seg[2]

	procs, err := f.conn.Procedures(ctx, db, schemaName)
	if err != nil {
		return nil, err
	}
	for _, p := range procs {
		if p.Name != proc {
			continue
		}
		out := make([]schema.Node, 0, len(p.Parameters))
		for _, param := range p.Parameters {
			child := node.Child(schema.KindParameter, param.Name)
			child.Detail = param.Type
			child.Leaf = true
			out = append(out, child)
		}
		return out, nil
	}
	return nil, nil
}

func columnDetail(col schema.Column) string {
	detail := col.Type
	if col.IsPK {
		detail += " PK"
	}
	if !col.Nullable {
		detail += " NOT NULL"
	}
	return detail
}

func indexDetail(idx schema.Index) string {
	detail := strings.Join(idx.Columns, ", ")
	if idx.Unique {
		detail += " (unique)"
	}
	return detail
}

func procSignature(p schema.Procedure) string {
	params := make([]string, len(p.Parameters))
	for i, param := range p.Parameters {
		params[i] = param.Name
	}
	return "(" + strings.Join(params, ", ") + ")"
}
