// Package table holds the rows of one decomposed table.
package table

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tordrt/nestedtables/internal/value"
)

const (
	// AutoIDColumn names the synthetic key column of auto-increment tables.
	AutoIDColumn = "_id"

	refIDSuffix = "_id"
)

var (
	ErrMissingKey   = errors.New("missing natural key")
	ErrKeyType      = errors.New("natural key is not a scalar")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrOverwrite    = errors.New("value already set")
	ErrNoRecord     = errors.New("no such record")
)

// Error reports a failure on one table, optionally on one key and column.
type Error struct {
	Table  string
	Key    *value.Scalar
	Column string
	Err    error
}

func tableErr(tbl *Table, key *value.Scalar, column string, err error) error {
	return &Error{Table: tbl.name, Key: key, Column: column, Err: err}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Table)
	if e.Key != nil {
		fmt.Fprintf(&buf, "[%#v]", *e.Key)
	}
	if e.Column != "" {
		buf.WriteByte('.')
		buf.WriteString(e.Column)
	}
	buf.WriteString(": ")
	buf.WriteString(e.Err.Error())
	return buf.String()
}

// Options configures a table. An empty IDColumn selects auto-increment keys;
// an empty RefIDColumn defaults to "<name>_id".
type Options struct {
	Name        string
	IDColumn    string
	RefIDColumn string
}

// DefaultRefIDColumn is the foreign key column name children use to point at
// a table called name.
func DefaultRefIDColumn(name string) string {
	return name + refIDSuffix
}

// Cell is one column write.
type Cell struct {
	Column string
	Value  value.Scalar
}

// Row pairs a record with its id.
type Row struct {
	ID     value.Scalar
	Record *Record
}

type Table struct {
	name        string
	idColumn    string
	refIDColumn string
	autoID      bool
	lastID      int64

	columns []string
	colSet  map[string]struct{}

	order []value.Scalar
	rows  map[value.Scalar]*Record
	links []Link
}

func New(opt Options) *Table {
	tbl := &Table{
		name:        opt.Name,
		idColumn:    opt.IDColumn,
		refIDColumn: opt.RefIDColumn,
		colSet:      make(map[string]struct{}),
		rows:        make(map[value.Scalar]*Record),
	}
	if tbl.idColumn == "" {
		tbl.idColumn = AutoIDColumn
		tbl.autoID = true
	}
	if tbl.refIDColumn == "" {
		tbl.refIDColumn = DefaultRefIDColumn(tbl.name)
	}
	return tbl
}

func (tbl *Table) Name() string        { return tbl.name }
func (tbl *Table) IDColumn() string    { return tbl.idColumn }
func (tbl *Table) RefIDColumn() string { return tbl.refIDColumn }
func (tbl *Table) AutoID() bool        { return tbl.autoID }
func (tbl *Table) Len() int            { return len(tbl.order) }

// Columns returns the column names in the order they were first written.
func (tbl *Table) Columns() []string {
	return append([]string(nil), tbl.columns...)
}

// CreateRecord allocates an empty record and returns its id. Auto-increment
// tables count from 1; natural-key tables read IDColumn out of seed, which
// must be an object holding a non-null scalar there.
func (tbl *Table) CreateRecord(seed value.Value) (value.Scalar, error) {
	var id value.Scalar
	if tbl.autoID {
		id = value.Int(tbl.lastID + 1)
	} else {
		var err error
		id, err = tbl.naturalKey(seed)
		if err != nil {
			return value.Null(), err
		}
	}
	if _, dup := tbl.rows[id]; dup {
		return value.Null(), tableErr(tbl, &id, "", ErrDuplicateKey)
	}
	if tbl.autoID {
		tbl.lastID++
	}
	tbl.rows[id] = newRecord()
	tbl.order = append(tbl.order, id)
	return id, nil
}

func (tbl *Table) naturalKey(seed value.Value) (value.Scalar, error) {
	obj, ok := seed.(*value.Object)
	if !ok {
		return value.Null(), tableErr(tbl, nil, tbl.idColumn, fmt.Errorf("%w: seed is a %v", ErrMissingKey, value.Classify(seed)))
	}
	v, ok := obj.Get(tbl.idColumn)
	if !ok {
		return value.Null(), tableErr(tbl, nil, tbl.idColumn, ErrMissingKey)
	}
	switch v := v.(type) {
	case value.Scalar:
		if v.IsNull() {
			return value.Null(), tableErr(tbl, nil, tbl.idColumn, ErrMissingKey)
		}
		return v, nil
	case nil:
		return value.Null(), tableErr(tbl, nil, tbl.idColumn, ErrMissingKey)
	default:
		return value.Null(), tableErr(tbl, nil, tbl.idColumn, fmt.Errorf("%w: got %v", ErrKeyType, v.Kind()))
	}
}

// UpdateRecord writes cells into the record with the given id. Unless
// allowOverwrite is set, a column that already holds a value cannot be written
// again, even with an equal value. Nothing is written if any cell is rejected.
func (tbl *Table) UpdateRecord(id value.Scalar, cells []Cell, allowOverwrite bool) error {
	rec, ok := tbl.rows[id]
	if !ok {
		return tableErr(tbl, &id, "", ErrNoRecord)
	}
	if !allowOverwrite {
		seen := make(map[string]struct{}, len(cells))
		for _, c := range cells {
			_, dupCell := seen[c.Column]
			if rec.Has(c.Column) || dupCell {
				return tableErr(tbl, &id, c.Column, ErrOverwrite)
			}
			seen[c.Column] = struct{}{}
		}
	}
	for _, c := range cells {
		rec.set(c.Column, c.Value)
		if _, ok := tbl.colSet[c.Column]; !ok {
			tbl.colSet[c.Column] = struct{}{}
			tbl.columns = append(tbl.columns, c.Column)
		}
	}
	return nil
}

func (tbl *Table) Get(id value.Scalar) (*Record, bool) {
	rec, ok := tbl.rows[id]
	return rec, ok
}

// Rows returns every row in creation order.
func (tbl *Table) Rows() []Row {
	rows := make([]Row, len(tbl.order))
	for i, id := range tbl.order {
		rows[i] = Row{ID: id, Record: tbl.rows[id]}
	}
	return rows
}

// Record is one flat row: column name to scalar, in write order.
type Record struct {
	cols []string
	vals map[string]value.Scalar
}

func newRecord() *Record {
	return &Record{vals: make(map[string]value.Scalar)}
}

func (rec *Record) set(col string, v value.Scalar) {
	if _, ok := rec.vals[col]; !ok {
		rec.cols = append(rec.cols, col)
	}
	rec.vals[col] = v
}

func (rec *Record) Has(col string) bool {
	_, ok := rec.vals[col]
	return ok
}

func (rec *Record) Get(col string) (value.Scalar, bool) {
	v, ok := rec.vals[col]
	return v, ok
}

func (rec *Record) Len() int {
	return len(rec.cols)
}

// Columns returns the record's column names in write order.
func (rec *Record) Columns() []string {
	return append([]string(nil), rec.cols...)
}

// Map copies the record into a plain map, mostly for tests and debugging.
func (rec *Record) Map() map[string]any {
	m := make(map[string]any, len(rec.vals))
	for k, v := range rec.vals {
		m[k] = v.Any()
	}
	return m
}
