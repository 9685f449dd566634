package schema

import (
	"slices"

	"github.com/tordrt/nestedtables/internal/value"
)

// Schema is a snapshot of every decomposed table
type Schema struct {
	Tables []Table
}

// Table represents one decomposed table with its rows
type Table struct {
	Name       string
	Path       string
	Columns    []Column
	Relations  []Relation
	PrimaryKey []string
	Rows       []Row
}

// Column represents a table column; Type is inferred from the written values
type Column struct {
	Name     string
	Type     string
	Nullable bool
	IsUnique bool
}

// Relation represents a foreign key relationship
type Relation struct {
	TargetTable  string
	TargetColumn string
	SourceColumn string
	Cardinality  string // 1:1, N:1, N:M
}

// Row is one record; Values are aligned to Table.Columns
type Row struct {
	ID     value.Scalar
	Values []value.Scalar
}

// Table returns the table with the given name, or nil
func (s *Schema) Table(name string) *Table {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i]
		}
	}
	return nil
}

// RowCount returns the number of rows across all tables
func (s *Schema) RowCount() int {
	n := 0
	for _, t := range s.Tables {
		n += len(t.Rows)
	}
	return n
}

// ColumnOrder returns the data column names in first-seen order
func (t *Table) ColumnOrder() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// ColumnIndex returns the position of a data column, or -1
func (t *Table) ColumnIndex(name string) int {
	return slices.IndexFunc(t.Columns, func(c Column) bool { return c.Name == name })
}

// Value returns the cell of row at column name
func (t *Table) Value(row Row, name string) (value.Scalar, bool) {
	i := t.ColumnIndex(name)
	if i < 0 {
		return value.Null(), false
	}
	return row.Values[i], true
}

// Header returns the primary key columns followed by the remaining data
// columns; writers use it as their column layout
func (t *Table) Header() []string {
	header := slices.Clone(t.PrimaryKey)
	for _, c := range t.Columns {
		if !slices.Contains(t.PrimaryKey, c.Name) {
			header = append(header, c.Name)
		}
	}
	return header
}

// Cells returns row laid out like Header
func (t *Table) Cells(row Row) []value.Scalar {
	cells := make([]value.Scalar, 0, len(t.Columns)+1)
	if len(t.PrimaryKey) > 0 {
		cells = append(cells, row.ID)
	}
	for i, c := range t.Columns {
		if !slices.Contains(t.PrimaryKey, c.Name) {
			cells = append(cells, row.Values[i])
		}
	}
	return cells
}
