// Package engine decomposes nested values into relational tables.
//
// A Database owns a path router and the tables it routes to. Parse walks one
// document depth-first in document order, creating a row for every object
// that resolves to a table and linking rows through foreign key columns:
//
//   - an object under an object field is a 1-1 relation, linked according to
//     the configured LinkPolicy;
//   - a sequence of objects is a 1-N relation, every element becomes a row of
//     the table at the sequence's path carrying the parent's key;
//   - a sequence of scalars is an N-M association, every scalar becomes a row
//     of the join table at path + "/#".
//
// A Database is not safe for concurrent use.
package engine

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tordrt/nestedtables/internal/router"
	"github.com/tordrt/nestedtables/internal/table"
)

const (
	// JoinSegment is the last path segment of a join table.
	JoinSegment = "#"

	// RootName is the derived name of the table at the root path.
	RootName = "root"

	// ValueColumn holds a root scalar in an auto-increment root table.
	ValueColumn = "value"

	DefaultMaxDepth = 512
)

// LinkPolicy decides where a 1-1 relation is recorded.
type LinkPolicy int

const (
	// LinkDown stores the child's id under the field name on the parent.
	LinkDown LinkPolicy = iota
	// LinkUp stores the parent's id on the child.
	LinkUp
	// LinkBoth does both.
	LinkBoth
)

func (p LinkPolicy) String() string {
	switch p {
	case LinkDown:
		return "down"
	case LinkUp:
		return "up"
	case LinkBoth:
		return "both"
	default:
		return "link(" + strconv.Itoa(int(p)) + ")"
	}
}

func ParseLinkPolicy(s string) (LinkPolicy, error) {
	switch s {
	case "", "down":
		return LinkDown, nil
	case "up":
		return LinkUp, nil
	case "both":
		return LinkBoth, nil
	default:
		return 0, fmt.Errorf("invalid link policy %q (must be 'up', 'down' or 'both')", s)
	}
}

// ListPolicy decides what happens to a sequence of sequences.
type ListPolicy int

const (
	// ListBatch treats every inner sequence as an independent batch for the
	// same path.
	ListBatch ListPolicy = iota
	// ListStrict rejects nested sequences.
	ListStrict
)

func (p ListPolicy) String() string {
	switch p {
	case ListBatch:
		return "batch"
	case ListStrict:
		return "strict"
	default:
		return "list(" + strconv.Itoa(int(p)) + ")"
	}
}

func ParseListPolicy(s string) (ListPolicy, error) {
	switch s {
	case "", "batch":
		return ListBatch, nil
	case "strict":
		return ListStrict, nil
	default:
		return 0, fmt.Errorf("invalid list-of-list policy %q (must be 'batch' or 'strict')", s)
	}
}

// Config is fixed for the life of a Database.
type Config struct {
	// AutoCreate creates a table the first time a path without one is seen.
	AutoCreate bool
	// AllowValueUpdate lets a later write replace a column value.
	AllowValueUpdate bool
	// AllowSingleRootScalar accepts a bare scalar as the whole document.
	AllowSingleRootScalar bool
	// Transparent walks through objects that resolve to no table instead of
	// failing; their scalar fields are dropped.
	Transparent bool

	ListOfList ListPolicy
	Link       LinkPolicy

	// MaxDepth bounds the nesting depth of a document. Zero means
	// DefaultMaxDepth.
	MaxDepth int

	// Logger receives debug entries; nil discards them.
	Logger *logrus.Logger
}

func DefaultConfig() Config {
	return Config{
		AutoCreate:            true,
		AllowSingleRootScalar: true,
		MaxDepth:              DefaultMaxDepth,
	}
}

// TableDef registers a table ahead of decomposition.
type TableDef struct {
	// Path is the canonical path of the table; "" is the root.
	Path string
	// Name defaults to a name derived from Path.
	Name string
	// IDColumn names the natural key; empty means auto-increment ids.
	IDColumn string
	// RefIDColumn is the foreign key column children use; defaults to
	// "<name>_id".
	RefIDColumn string
	// Patterns route further paths (anchored regular expressions) here.
	Patterns []string
	// Aliases are paths that behave exactly like Path.
	Aliases []string
}

type entry struct {
	path string
	tbl  *table.Table
}

type Database struct {
	cfg    Config
	log    *logrus.Logger
	router *router.Router

	tables []*entry
	byPath map[string]*entry
	byName map[string]*entry
}

func New(cfg Config) *Database {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Database{
		cfg:    cfg,
		log:    log,
		router: router.New(),
		byPath: make(map[string]*entry),
		byName: make(map[string]*entry),
	}
}

func (db *Database) Config() Config {
	return db.cfg
}

// CreateTable registers a table before decomposition.
func (db *Database) CreateTable(def TableDef) (*table.Table, error) {
	e, err := db.createTable(def, false)
	if err != nil {
		return nil, err
	}
	return e.tbl, nil
}

func (db *Database) createTable(def TableDef, auto bool) (*entry, error) {
	if err := validatePath(def.Path); err != nil {
		return nil, err
	}
	for _, a := range def.Aliases {
		if err := validatePath(a); err != nil {
			return nil, err
		}
	}
	if _, exists := db.byPath[def.Path]; exists {
		return nil, &PathError{Path: def.Path, Err: ErrTableExists}
	}

	name := def.Name
	if name == "" {
		name = db.uniqueName(NameFromPath(def.Path))
	} else if _, taken := db.byName[name]; taken {
		return nil, &PathError{Path: def.Path, Table: name, Err: fmt.Errorf("%w: name %q already used", ErrTableExists, name)}
	}

	// nothing is registered unless every alias and pattern is accepted
	for _, a := range def.Aliases {
		if err := db.router.CheckAlias(a, def.Path); err != nil {
			return nil, &PathError{Path: a, Table: name, Err: err}
		}
	}
	if err := db.router.Register(def.Patterns, def.Path); err != nil {
		return nil, &PathError{Path: def.Path, Table: name, Err: err}
	}
	db.router.RegisterPath(def.Path, def.Path)
	for _, a := range def.Aliases {
		if err := db.router.Alias(a, def.Path); err != nil {
			return nil, &PathError{Path: a, Table: name, Err: err}
		}
	}

	e := &entry{
		path: def.Path,
		tbl: table.New(table.Options{
			Name:        name,
			IDColumn:    def.IDColumn,
			RefIDColumn: def.RefIDColumn,
		}),
	}
	db.tables = append(db.tables, e)
	db.byPath[def.Path] = e
	db.byName[name] = e

	db.log.WithFields(logrus.Fields{
		"path":  def.Path,
		"table": name,
		"auto":  auto,
	}).Debug("created table")
	return e, nil
}

func (db *Database) uniqueName(base string) string {
	name := base
	for i := 2; ; i++ {
		if _, taken := db.byName[name]; !taken {
			return name
		}
		name = base + "_" + strconv.Itoa(i)
	}
}

// Alias makes path behave exactly like canonical, descendants included.
func (db *Database) Alias(path, canonical string) error {
	if err := validatePath(path); err != nil {
		return err
	}
	if err := validatePath(canonical); err != nil {
		return err
	}
	if err := db.router.Alias(path, canonical); err != nil {
		return &PathError{Path: path, Err: err}
	}
	return nil
}

// Tables returns the tables in creation order.
func (db *Database) Tables() []*table.Table {
	tables := make([]*table.Table, len(db.tables))
	for i, e := range db.tables {
		tables[i] = e.tbl
	}
	return tables
}

// Table resolves path to its table without creating one.
func (db *Database) Table(path string) (*table.Table, bool) {
	e := db.lookup(path)
	if e == nil {
		return nil, false
	}
	return e.tbl, true
}

// TableNamed returns the table with the given name.
func (db *Database) TableNamed(name string) (*table.Table, bool) {
	e, ok := db.byName[name]
	if !ok {
		return nil, false
	}
	return e.tbl, true
}

// Rules lists the routing rules, for diagnostics.
func (db *Database) Rules() []string {
	return db.router.Rules()
}

func (db *Database) lookup(path string) *entry {
	key, ok := db.router.Resolve(path)
	if !ok {
		return nil
	}
	return db.byPath[key]
}

// tableFor resolves path, creating a table when auto-creation is enabled. A
// nil entry with a nil error means the path has no table.
func (db *Database) tableFor(path string) (*entry, error) {
	if e := db.lookup(path); e != nil {
		return e, nil
	}
	if !db.cfg.AutoCreate {
		return nil, nil
	}
	return db.createTable(TableDef{Path: db.router.Canonical(path)}, true)
}

// NameFromPath derives a table name: "" is "root", "/orders/items" is
// "orders_items" and the join marker becomes "link".
func NameFromPath(path string) string {
	if path == "" {
		return RootName
	}
	segs := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for i, s := range segs {
		if s == JoinSegment {
			segs[i] = "link"
		}
	}
	if len(segs) == 1 && segs[0] == "link" {
		return RootName + "_link"
	}
	return strings.Join(segs, "_")
}

func validatePath(path string) error {
	if path == "" {
		return nil
	}
	if !strings.HasPrefix(path, "/") {
		return &PathError{Path: path, Err: fmt.Errorf("%w: must be empty or start with /", ErrInvalidPath)}
	}
	segs := strings.Split(path[1:], "/")
	for i, s := range segs {
		if s == JoinSegment && i != len(segs)-1 {
			return &PathError{Path: path, Err: fmt.Errorf("%w: %q is only allowed as the last segment", ErrInvalidPath, JoinSegment)}
		}
	}
	return nil
}

var errUnexpectedValue = errors.New("unexpected value type")
