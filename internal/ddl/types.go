package ddl

import "retaildc/internal/schema"

// ColumnDef describes a single column in a table definition.
//
// Fields:
//   - Name: logical column name (unquoted; quoting happens at render time)
//   - SQLType: target SQL type (e.g., TEXT, BIGINT, DATE)
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
}

// TableDef holds the table name, possibly dotted ("schema.table"), and an
// ordered list of columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// TypeMapper maps a canonical column type onto a backend SQL type.
type TypeMapper func(schema.Type) string

// FromColumns builds a TableDef for canonical columns. Required columns are
// NOT NULL; everything else is nullable. No primary key is declared: the dedup
// key is enforced by the cleaning stage, not the warehouse.
func FromColumns(fqn string, cols []schema.Column, mapType TypeMapper) TableDef {
	td := TableDef{FQN: fqn, Columns: make([]ColumnDef, 0, len(cols))}
	for _, c := range cols {
		td.Columns = append(td.Columns, ColumnDef{
			Name:     c.Name,
			SQLType:  mapType(c.Type),
			Nullable: !c.Required,
		})
	}
	return td
}
