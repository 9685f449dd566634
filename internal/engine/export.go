package engine

import (
	"github.com/tordrt/nestedtables/internal/schema"
	"github.com/tordrt/nestedtables/internal/value"
)

// Column types reported by Export.
const (
	TypeNull    = "null"
	TypeBoolean = "boolean"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeText    = "text"
	TypeMixed   = "mixed"
)

// Export snapshots every table in creation order. The result shares nothing
// with the database and is identical for identical committed state.
func (db *Database) Export() *schema.Schema {
	s := &schema.Schema{Tables: make([]schema.Table, 0, len(db.tables))}
	for _, e := range db.tables {
		s.Tables = append(s.Tables, exportTable(e))
	}
	return s
}

func exportTable(e *entry) schema.Table {
	tbl := e.tbl
	cols := tbl.Columns()
	rows := tbl.Rows()

	out := schema.Table{
		Name:       tbl.Name(),
		Path:       e.path,
		PrimaryKey: []string{tbl.IDColumn()},
		Columns:    make([]schema.Column, len(cols)),
		Rows:       make([]schema.Row, len(rows)),
	}

	stats := make([]columnStats, len(cols))
	for i, r := range rows {
		vals := make([]value.Scalar, len(cols))
		for j, c := range cols {
			v, ok := r.Record.Get(c)
			stats[j].add(v, ok)
			vals[j] = v
		}
		out.Rows[i] = schema.Row{ID: r.ID, Values: vals}
	}

	for j, c := range cols {
		out.Columns[j] = schema.Column{
			Name:     c,
			Type:     stats[j].typeName(),
			Nullable: stats[j].nulls > 0,
			IsUnique: !tbl.AutoID() && c == tbl.IDColumn(),
		}
	}

	for _, l := range tbl.Links() {
		out.Relations = append(out.Relations, schema.Relation{
			SourceColumn: l.Column,
			TargetTable:  l.TargetTable,
			TargetColumn: l.TargetColumn,
			Cardinality:  l.Kind.Cardinality(),
		})
	}
	return out
}

type columnStats struct {
	nulls int
	types map[value.ScalarType]struct{}
}

func (cs *columnStats) add(v value.Scalar, present bool) {
	if !present || v.IsNull() {
		cs.nulls++
		return
	}
	if cs.types == nil {
		cs.types = make(map[value.ScalarType]struct{}, 1)
	}
	cs.types[v.Type()] = struct{}{}
}

func (cs *columnStats) typeName() string {
	_, hasInt := cs.types[value.TypeInt]
	_, hasFloat := cs.types[value.TypeFloat]
	switch {
	case len(cs.types) == 0:
		return TypeNull
	case len(cs.types) == 2 && hasInt && hasFloat:
		return TypeNumber
	case len(cs.types) > 1:
		return TypeMixed
	}
	for t := range cs.types {
		return t.String()
	}
	return TypeMixed
}

