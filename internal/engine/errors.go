package engine

import (
	"errors"
	"strings"

	"github.com/tordrt/nestedtables/internal/router"
	"github.com/tordrt/nestedtables/internal/table"
)

var (
	ErrRouting           = errors.New("no table for path")
	ErrHeterogeneousList = errors.New("list elements are of different kinds")
	ErrNestedList        = errors.New("nested lists are not allowed")
	ErrKeyCollision      = errors.New("foreign key column collides with a field")
	ErrSingleValue       = errors.New("single scalar document is not allowed")
	ErrTooDeep           = errors.New("document nesting too deep")
	ErrInvalidPath       = errors.New("invalid path")
	ErrTableExists       = errors.New("table already exists")

	ErrAliasCycle = router.ErrAliasCycle

	ErrMissingKey   = table.ErrMissingKey
	ErrKeyType      = table.ErrKeyType
	ErrDuplicateKey = table.ErrDuplicateKey
	ErrOverwrite    = table.ErrOverwrite
	ErrNoRecord     = table.ErrNoRecord
)

// PathError reports the path being decomposed when a rule was violated.
type PathError struct {
	Path  string
	Table string
	Err   error
}

func (e *PathError) Unwrap() error {
	return e.Err
}

func (e *PathError) Error() string {
	var buf strings.Builder
	buf.WriteString("path ")
	buf.WriteString(quotePath(e.Path))
	if e.Table != "" {
		buf.WriteString(" (table ")
		buf.WriteString(e.Table)
		buf.WriteString(")")
	}
	buf.WriteString(": ")
	buf.WriteString(e.Err.Error())
	return buf.String()
}

func quotePath(p string) string {
	if p == "" {
		return `"" (root)`
	}
	return `"` + p + `"`
}

func pathErr(path string, e *entry, err error) error {
	var pe *PathError
	if errors.As(err, &pe) {
		return err
	}
	name := ""
	if e != nil {
		name = e.tbl.Name()
	}
	return &PathError{Path: path, Table: name, Err: err}
}
