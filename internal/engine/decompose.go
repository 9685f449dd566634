package engine

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tordrt/nestedtables/internal/table"
	"github.com/tordrt/nestedtables/internal/value"
)

// parentRef is the foreign key a child row inherits from its parent.
type parentRef struct {
	column string
	id     value.Scalar
	target *entry
	kind   table.LinkKind
}

func (r *parentRef) with(kind table.LinkKind) *parentRef {
	if r == nil {
		return nil
	}
	c := *r
	c.kind = kind
	return &c
}

func (r *parentRef) cell() table.Cell {
	return table.Cell{Column: r.column, Value: r.id}
}

func (r *parentRef) link() table.Link {
	return table.Link{
		Column:       r.column,
		TargetTable:  r.target.tbl.Name(),
		TargetColumn: r.target.tbl.IDColumn(),
		Kind:         r.kind,
	}
}

// Parse decomposes one document into the database's tables. The first
// failure aborts the walk; rows written before it are kept.
func (db *Database) Parse(v value.Value) error {
	switch v := v.(type) {
	case *value.Object:
		_, _, err := db.decomposeObject(v, "", nil, 0)
		return err
	case value.Sequence:
		return db.decomposeSequence(v, "", nil, 0)
	case value.Scalar:
		return db.parseRootScalar(v)
	case nil:
		return db.parseRootScalar(value.Null())
	default:
		return &PathError{Err: fmt.Errorf("%w %T", errUnexpectedValue, v)}
	}
}

func (db *Database) parseRootScalar(v value.Scalar) error {
	if !db.cfg.AllowSingleRootScalar {
		return &PathError{Err: ErrSingleValue}
	}
	e, err := db.tableFor("")
	if err != nil {
		return err
	}
	if e == nil {
		if db.cfg.Transparent {
			db.debug("", nil, "dropped root scalar")
			return nil
		}
		return &PathError{Err: ErrRouting}
	}

	var (
		seed value.Value
		cell table.Cell
	)
	if e.tbl.AutoID() {
		cell = table.Cell{Column: ValueColumn, Value: v}
	} else {
		seed = value.NewObject(value.KV(e.tbl.IDColumn(), v))
		cell = table.Cell{Column: e.tbl.IDColumn(), Value: v}
	}
	id, err := e.tbl.CreateRecord(seed)
	if err != nil {
		return pathErr("", e, err)
	}
	if err := e.tbl.UpdateRecord(id, []table.Cell{cell}, db.cfg.AllowValueUpdate); err != nil {
		return pathErr("", e, err)
	}
	db.debug("", e, "created row", "id", id)
	return nil
}

// decomposeObject turns obj into a row of the table at path and returns the
// row's id. A nil entry means obj was walked without a table.
func (db *Database) decomposeObject(obj *value.Object, path string, ref *parentRef, depth int) (value.Scalar, *entry, error) {
	if depth > db.cfg.MaxDepth {
		return value.Null(), nil, &PathError{Path: path, Err: fmt.Errorf("%w: more than %d levels", ErrTooDeep, db.cfg.MaxDepth)}
	}
	e, err := db.tableFor(path)
	if err != nil {
		return value.Null(), nil, err
	}
	if e == nil && !db.cfg.Transparent {
		return value.Null(), nil, &PathError{Path: path, Err: ErrRouting}
	}

	var (
		id       value.Scalar
		childRef = ref
	)
	if e != nil {
		id, err = e.tbl.CreateRecord(obj)
		if err != nil {
			return value.Null(), nil, pathErr(path, e, err)
		}
		childRef = &parentRef{column: e.tbl.RefIDColumn(), id: id, target: e}
		db.debug(path, e, "created row", "id", id)
	}

	base := db.router.Canonical(path)
	var fields []table.Cell
	for key, child := range obj.All() {
		if key == JoinSegment {
			return value.Null(), nil, &PathError{Path: path, Err: fmt.Errorf("%w: key %q is reserved", ErrInvalidPath, key)}
		}
		if strings.Contains(key, "/") {
			return value.Null(), nil, &PathError{Path: path, Err: fmt.Errorf("%w: key %q contains the path separator", ErrInvalidPath, key)}
		}
		childPath := base + "/" + key

		switch child := child.(type) {
		case value.Scalar, nil:
			s := scalarOf(child)
			if e == nil {
				db.debug(childPath, nil, "dropped scalar field")
				continue
			}
			fields = append(fields, table.Cell{Column: key, Value: s})

		case *value.Object:
			var cref *parentRef
			if db.cfg.Link != LinkDown {
				cref = childRef.with(table.Nested11)
			}
			cid, ce, err := db.decomposeObject(child, childPath, cref, depth+1)
			if err != nil {
				return value.Null(), nil, err
			}
			if db.cfg.Link != LinkUp && e != nil && ce != nil {
				fields = append(fields, table.Cell{Column: key, Value: cid})
				e.tbl.AddLink(table.Link{
					Column:       key,
					TargetTable:  ce.tbl.Name(),
					TargetColumn: ce.tbl.IDColumn(),
					Kind:         table.Nested11,
				})
			}

		case value.Sequence:
			if err := db.decomposeSequence(child, childPath, childRef, depth+1); err != nil {
				return value.Null(), nil, err
			}
		}
	}

	if e == nil {
		return value.Null(), nil, nil
	}

	cells := fields
	if ref != nil {
		for _, f := range fields {
			if f.Column == ref.column {
				return value.Null(), nil, pathErr(path, e, fmt.Errorf("%w: %q", ErrKeyCollision, ref.column))
			}
		}
		cells = append([]table.Cell{ref.cell()}, fields...)
	}
	if err := checkIDColumn(e, cells); err != nil {
		return value.Null(), nil, pathErr(path, e, err)
	}
	if err := e.tbl.UpdateRecord(id, cells, db.cfg.AllowValueUpdate); err != nil {
		return value.Null(), nil, pathErr(path, e, err)
	}
	if ref != nil {
		e.tbl.AddLink(ref.link())
	}
	return id, e, nil
}

func (db *Database) decomposeSequence(seq value.Sequence, path string, ref *parentRef, depth int) error {
	if depth > db.cfg.MaxDepth {
		return &PathError{Path: path, Err: fmt.Errorf("%w: more than %d levels", ErrTooDeep, db.cfg.MaxDepth)}
	}
	if len(seq) == 0 {
		return nil
	}

	kind := value.Classify(seq[0])
	for i, el := range seq[1:] {
		if k := value.Classify(el); k != kind {
			return &PathError{Path: path, Err: fmt.Errorf("%w: element 0 is %v, element %d is %v", ErrHeterogeneousList, kind, i+1, k)}
		}
	}

	switch kind {
	case value.KindObject:
		for _, el := range seq {
			if _, _, err := db.decomposeObject(el.(*value.Object), path, ref.with(table.Nested1N), depth+1); err != nil {
				return err
			}
		}
	case value.KindSequence:
		if db.cfg.ListOfList == ListStrict {
			return &PathError{Path: path, Err: ErrNestedList}
		}
		for _, el := range seq {
			if err := db.decomposeSequence(el.(value.Sequence), path, ref, depth+1); err != nil {
				return err
			}
		}
	default:
		return db.decomposeScalars(seq, path, ref.with(table.AssocNM))
	}
	return nil
}

// decomposeScalars writes one join table row per element of seq.
func (db *Database) decomposeScalars(seq value.Sequence, path string, ref *parentRef) error {
	joinPath := path + "/" + JoinSegment
	je, err := db.tableFor(joinPath)
	if err != nil {
		return err
	}
	if je == nil {
		if db.cfg.Transparent {
			db.debug(joinPath, nil, "dropped scalar list")
			return nil
		}
		return &PathError{Path: joinPath, Err: ErrRouting}
	}

	col := db.valueColumn(path)
	if ref != nil && ref.column == col {
		return pathErr(joinPath, je, fmt.Errorf("%w: %q", ErrKeyCollision, col))
	}
	header := []table.Cell{{Column: col}}
	if ref != nil {
		header = append(header, ref.cell())
	}
	if err := checkIDColumn(je, header); err != nil {
		return pathErr(joinPath, je, err)
	}

	for _, el := range seq {
		v := scalarOf(el)
		cells := []table.Cell{{Column: col, Value: v}}
		if ref != nil {
			cells = append(cells, ref.cell())
		}
		seed := make([]value.Field, len(cells))
		for i, c := range cells {
			seed[i] = value.KV(c.Column, c.Value)
		}

		id, err := je.tbl.CreateRecord(value.NewObject(seed...))
		if err != nil {
			return pathErr(joinPath, je, err)
		}
		if err := je.tbl.UpdateRecord(id, cells, db.cfg.AllowValueUpdate); err != nil {
			return pathErr(joinPath, je, err)
		}
		db.debug(joinPath, je, "created join row", "id", id)
	}
	if ref != nil {
		je.tbl.AddLink(ref.link())
	}
	return nil
}

// checkIDColumn rejects cells that would land in the generated id column of
// an auto-id table, where exports could not tell them from the row id.
// Register the table with that column as its IDColumn to use it as the key.
func checkIDColumn(e *entry, cells []table.Cell) error {
	if !e.tbl.AutoID() {
		return nil
	}
	for _, c := range cells {
		if c.Column == e.tbl.IDColumn() {
			return fmt.Errorf("%w: %q is the generated id column", ErrKeyCollision, c.Column)
		}
	}
	return nil
}

// valueColumn names the join table column holding the list's values: the ref
// id column of the table at path, if there is one.
func (db *Database) valueColumn(path string) string {
	if e := db.lookup(path); e != nil {
		return e.tbl.RefIDColumn()
	}
	return table.DefaultRefIDColumn(NameFromPath(path))
}

func scalarOf(v value.Value) value.Scalar {
	if s, ok := v.(value.Scalar); ok {
		return s
	}
	return value.Null()
}

func (db *Database) debug(path string, e *entry, msg string, kv ...any) {
	if !db.log.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	fields := logrus.Fields{"path": path}
	if e != nil {
		fields["table"] = e.tbl.Name()
	}
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	db.log.WithFields(fields).Debug(msg)
}
