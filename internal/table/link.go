package table

import (
	"fmt"
	"slices"
)

// LinkKind is the relation shape that produced a foreign key column.
type LinkKind int

const (
	// Nested11 is an object nested under an object field.
	Nested11 LinkKind = iota + 1
	// Nested1N is an element of a sequence of objects.
	Nested1N
	// AssocNM is a row of a join table built from a sequence of scalars.
	AssocNM
)

func (k LinkKind) String() string {
	switch k {
	case Nested11:
		return "nested 1-1"
	case Nested1N:
		return "nested 1-N"
	case AssocNM:
		return "association N-M"
	default:
		return fmt.Sprintf("invalid link kind %d", int(k))
	}
}

// Cardinality describes the link from the source table's side.
func (k LinkKind) Cardinality() string {
	switch k {
	case Nested11:
		return "1:1"
	case Nested1N:
		return "N:1"
	case AssocNM:
		return "N:M"
	default:
		return "?"
	}
}

// Link records that Column of this table holds ids of TargetTable.
type Link struct {
	Column       string
	TargetTable  string
	TargetColumn string
	Kind         LinkKind
}

// AddLink records l unless an identical link is already known.
func (tbl *Table) AddLink(l Link) {
	if slices.Contains(tbl.links, l) {
		return
	}
	tbl.links = append(tbl.links, l)
}

// Links returns the recorded links in discovery order.
func (tbl *Table) Links() []Link {
	return slices.Clone(tbl.links)
}
