package schema

import "strings"

// NodeKind discriminates the variants of a Node. The set is closed:
// code that behaves differently per kind switches over it exhaustively.
type NodeKind int

const (
	KindDatabase NodeKind = iota
	KindSchema
	KindTable
	KindView
	KindColumn
	KindProcedure
	KindParameter
	KindIndex
	KindFolder
)

func (k NodeKind) String() string {
	switch k {
	case KindDatabase:
		return "database"
	case KindSchema:
		return "schema"
	case KindTable:
		return "table"
	case KindView:
		return "view"
	case KindColumn:
		return "column"
	case KindProcedure:
		return "procedure"
	case KindParameter:
		return "parameter"
	case KindIndex:
		return "index"
	case KindFolder:
		return "folder"
	default:
		return "unknown"
	}
}

// Node is one entry in the metadata tree. Nodes reference their parent by
// path, never by pointer; the Cache owns all nodes and resolves lookups.
type Node struct {
	// Path uniquely identifies the node within a cache. It is the
	// slash-joined chain of names from the root, e.g.
	// "sales/dbo/Orders/OrderID". The root node has path "".
	Path   string
	Parent string
	Kind   NodeKind
	Name   string
	// Detail carries display metadata such as a column type or an
	// index's column list.
	Detail string
	// Leaf marks nodes that can never have children (columns,
	// parameters). The cache skips fetches for leaf nodes.
	Leaf bool
}

// Root is the synthetic top of every cache tree. Its children are the
// databases visible on the connection.
func Root() Node {
	return Node{Path: "", Kind: KindFolder, Name: ""}
}

// ChildPath builds the path of a child named name under parent.
func ChildPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

// Child constructs a child node of parent with the given kind and name.
func (n Node) Child(kind NodeKind, name string) Node {
	return Node{
		Path:   ChildPath(n.Path, name),
		Parent: n.Path,
		Kind:   kind,
		Name:   name,
	}
}

// Segments splits the node's path into its name components.
func (n Node) Segments() []string {
	if n.Path == "" {
		return nil
	}
	return strings.Split(n.Path, "/")
}
