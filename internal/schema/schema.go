package schema

// Database represents a database with its schemas.
type Database struct {
	Name    string
	Schemas []Schema
}

// Schema represents a database schema (e.g., "public" in PostgreSQL,
// "dbo" in SQL Server).
type Schema struct {
	Name       string
	Tables     []Table
	Views      []View
	Procedures []Procedure
}

// Table represents a database table.
type Table struct {
	Name    string
	Columns []Column
	Indexes []Index
}

// Column represents a table column.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Default  string
	IsPK     bool
}

// Index represents a table index.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// View represents a database view.
type View struct {
	Name       string
	Columns    []Column
	Definition string
}

// Procedure represents a stored procedure or function.
type Procedure struct {
	Name       string
	Parameters []Parameter
}

// Parameter represents a stored procedure parameter.
type Parameter struct {
	Name string
	Type string
}
