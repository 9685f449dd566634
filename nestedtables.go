// Package nestedtables decomposes nested documents (JSON, YAML, XML or plain
// Go data) into flat relational tables linked by primary and foreign keys.
//
// Every object becomes a row of the table its path routes to. Objects nested
// under an object field are one-to-one relations, lists of objects are
// one-to-many relations and lists of scalars are many-to-many associations
// stored in a join table at the list's path plus "/#". The decomposed tables
// can be written as text, markdown, CSV, JSON, MessagePack or XLSX, to one
// writer or one file per table.
//
// # Quick Start
//
// The simplest way to use this package is with DecomposeAndFormat:
//
//	err := nestedtables.DecomposeAndFormat(
//		"orders.json",
//		&nestedtables.Options{ExcludeTables: []string{"root"}},
//		&nestedtables.OutputOptions{OutputDir: "out/tables", Format: "csv"},
//	)
//
// # Paths and Tables
//
// A path is the "/"-separated list of object keys leading to a value; the
// document itself is the root path "". By default a table is created the
// first time a path holding an object is seen, named after the path
// ("/orders/items" becomes "orders_items"). Tables can be registered up front
// in a mapping file or with Options.TableDefs, to pick names, natural keys,
// extra path patterns and aliases.
//
// # Mapping Files
//
// A mapping file (YAML or TOML) registers tables and sets policies:
//
//	link: up
//	tables:
//	  - path: /orders
//	    id_column: order_no
//	    aliases: [/legacy_orders]
//
// Load it with LoadOptions.
package nestedtables

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/tordrt/nestedtables/internal/config"
	"github.com/tordrt/nestedtables/internal/decode"
	"github.com/tordrt/nestedtables/internal/engine"
	"github.com/tordrt/nestedtables/internal/formatter"
	"github.com/tordrt/nestedtables/internal/schema"
	"github.com/tordrt/nestedtables/internal/value"
)

// Schema is the decomposition result handed to formatters.
type Schema = schema.Schema

// TableDef registers a table before decomposition.
type TableDef = engine.TableDef

// Errors reported by decomposition; match them with errors.Is.
var (
	ErrRouting           = engine.ErrRouting
	ErrHeterogeneousList = engine.ErrHeterogeneousList
	ErrNestedList        = engine.ErrNestedList
	ErrMissingKey        = engine.ErrMissingKey
	ErrKeyType           = engine.ErrKeyType
	ErrDuplicateKey      = engine.ErrDuplicateKey
	ErrOverwrite         = engine.ErrOverwrite
	ErrKeyCollision      = engine.ErrKeyCollision
	ErrSingleValue       = engine.ErrSingleValue
	ErrTooDeep           = engine.ErrTooDeep
	ErrInvalidPath       = engine.ErrInvalidPath
	ErrTableExists       = engine.ErrTableExists
	ErrAliasCycle        = engine.ErrAliasCycle
	ErrNoRecord          = engine.ErrNoRecord
)

// Options configures decomposition.
//
// The zero value decomposes with the defaults: tables are created on first
// use, a column can be written once per row, nested objects are linked from
// the parent (link "down") and lists of lists are flattened ("batch").
// Policies set in a mapping file loaded with LoadOptions apply first; the
// fields below override them when set.
type Options struct {
	// Tables restricts the output to the named tables.
	// If nil or empty, every table is kept.
	Tables []string

	// ExcludeTables removes the named tables from the output.
	// Applied after Tables.
	ExcludeTables []string

	// TableDefs registers tables before decomposition, after the tables of
	// the mapping file.
	TableDefs []TableDef

	// InputFormat is "json", "yaml" or "xml". Detected from the file
	// extension by DecomposeFile when empty; required by DecomposeReader.
	InputFormat string

	// Link decides where a one-to-one relation is stored:
	// "down" (the parent holds the child's id), "up" (the child holds the
	// parent's id) or "both".
	Link string

	// ListOfList is "batch" (each inner list is decomposed on its own) or
	// "strict" (nested lists fail).
	ListOfList string

	// StrictTables disables automatic table creation; paths without a
	// registered table fail unless Transparent is set.
	StrictTables bool

	// Transparent walks through objects without a table, dropping their
	// scalar fields and keeping the parent's key for their children.
	Transparent bool

	// AllowValueUpdate lets a later write replace a column value.
	AllowValueUpdate bool

	// RejectRootScalar fails documents that are a single scalar instead of
	// storing them in the root table.
	RejectRootScalar bool

	// MaxDepth bounds document nesting; 0 keeps the default of 512.
	MaxDepth int

	// Logger receives debug entries about created tables and rows.
	// Nil discards them.
	Logger *logrus.Logger

	mapping *config.Mapping
}

// OutputOptions configures output formatting.
//
// Single-file (Writer): all tables in one document
//
//	&OutputOptions{Writer: os.Stdout, Format: "text"}
//
// Multi-file (OutputDir): creates _overview + one file per table
//
//	&OutputOptions{OutputDir: "out/tables", Format: "csv"}
//
// If both are specified, OutputDir takes precedence and Writer is ignored.
// If neither is specified, defaults to single-file output to os.Stdout.
type OutputOptions struct {
	// Writer specifies where to write single-file output.
	// Ignored if OutputDir is set.
	Writer io.Writer

	// OutputDir specifies the directory for multi-file output
	// ("text", "markdown" or "csv"). Created if it doesn't exist.
	OutputDir string

	// Format is one of "text", "markdown", "csv", "json", "msgpack" or
	// "xlsx". Defaults to "markdown".
	Format string
}

// LoadOptions reads a mapping file (.yaml, .yml or .toml) into Options.
// Fields set on the returned Options afterwards override the file.
func LoadOptions(path string) (*Options, error) {
	m, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return &Options{mapping: m}, nil
}

// DecomposeAndFormat decomposes a document file and formats the tables in
// one call.
//
// Returns an error if:
//   - The file cannot be read or decoded
//   - Decomposition fails (see the Err* values)
//   - Output writing fails
//
// Example (single-file to stdout):
//
//	err := nestedtables.DecomposeAndFormat("orders.yaml", nil, nil)
func DecomposeAndFormat(path string, opts *Options, outOpts *OutputOptions) error {
	s, err := DecomposeFile(path, opts)
	if err != nil {
		return err
	}
	return FormatSchema(s, outOpts)
}

// DecomposeFile decodes the file at path and decomposes every document it
// holds into one set of tables.
func DecomposeFile(path string, opts *Options) (*schema.Schema, error) {
	if opts == nil {
		opts = &Options{}
	}

	format, err := inputFormat(opts.InputFormat, path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer func() { _ = f.Close() }()

	return decomposeReader(f, format, opts)
}

// DecomposeReader decodes r as opts.InputFormat and decomposes it.
func DecomposeReader(r io.Reader, opts *Options) (*schema.Schema, error) {
	if opts == nil {
		opts = &Options{}
	}
	if opts.InputFormat == "" {
		return nil, fmt.Errorf("input format is required when reading a stream")
	}
	format, err := decode.ParseFormat(opts.InputFormat)
	if err != nil {
		return nil, err
	}
	return decomposeReader(r, format, opts)
}

func decomposeReader(r io.Reader, format decode.Format, opts *Options) (*schema.Schema, error) {
	docs, err := decode.Decode(r, format)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("input holds no %s document", format)
	}
	return decomposeValues(docs, opts)
}

// Decompose decomposes plain Go data: maps with string keys (visited in
// sorted key order), slices, strings, booleans, numbers and nil.
//
// Example:
//
//	s, err := nestedtables.Decompose(map[string]any{
//		"name":  "Alice",
//		"items": []any{map[string]any{"sku": "X1", "qty": 2}},
//	}, nil)
func Decompose(doc any, opts *Options) (*schema.Schema, error) {
	v, err := value.FromAny(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert document: %w", err)
	}
	return decomposeValues([]value.Value{v}, opts)
}

func decomposeValues(docs []value.Value, opts *Options) (*schema.Schema, error) {
	if opts == nil {
		opts = &Options{}
	}

	db, err := newDatabase(opts)
	if err != nil {
		return nil, err
	}
	for i, doc := range docs {
		if err := db.Parse(doc); err != nil {
			if len(docs) > 1 {
				return nil, fmt.Errorf("failed to decompose document %d: %w", i+1, err)
			}
			return nil, fmt.Errorf("failed to decompose document: %w", err)
		}
	}

	s := db.Export()
	if len(opts.Tables) > 0 {
		filterIncludedTables(s, opts.Tables)
	}
	if len(opts.ExcludeTables) > 0 {
		filterExcludedTables(s, opts.ExcludeTables)
	}
	return s, nil
}

// FormatSchema formats decomposed tables and writes them to the specified output.
//
// The function supports two output modes:
//   - Single-file: writes all tables to one document (Writer)
//   - Multi-file: creates a directory with _overview + one file per table (OutputDir)
func FormatSchema(s *schema.Schema, opts *OutputOptions) error {
	if opts == nil {
		opts = &OutputOptions{Writer: os.Stdout}
	}
	format := opts.Format
	if format == "" {
		format = "markdown"
	}

	// Multi-file output
	if opts.OutputDir != "" {
		f := formatter.NewMultiFileFormatter(opts.OutputDir, format)
		return f.Format(s)
	}

	// Single-file output
	writer := opts.Writer
	if writer == nil {
		writer = os.Stdout
	}
	f, err := formatter.New(format, writer)
	if err != nil {
		return err
	}
	return f.Format(s)
}

// newDatabase builds the engine: defaults, then the mapping file, then opts.
func newDatabase(opts *Options) (*engine.Database, error) {
	cfg := engine.DefaultConfig()
	if opts.mapping != nil {
		var err error
		if cfg, err = opts.mapping.Apply(cfg); err != nil {
			return nil, err
		}
	}

	if opts.Link != "" {
		p, err := engine.ParseLinkPolicy(opts.Link)
		if err != nil {
			return nil, err
		}
		cfg.Link = p
	}
	if opts.ListOfList != "" {
		p, err := engine.ParseListPolicy(opts.ListOfList)
		if err != nil {
			return nil, err
		}
		cfg.ListOfList = p
	}
	if opts.StrictTables {
		cfg.AutoCreate = false
	}
	if opts.Transparent {
		cfg.Transparent = true
	}
	if opts.AllowValueUpdate {
		cfg.AllowValueUpdate = true
	}
	if opts.RejectRootScalar {
		cfg.AllowSingleRootScalar = false
	}
	if opts.MaxDepth > 0 {
		cfg.MaxDepth = opts.MaxDepth
	}
	cfg.Logger = opts.Logger

	db := engine.New(cfg)
	if opts.mapping != nil {
		if err := opts.mapping.Register(db); err != nil {
			return nil, err
		}
	}
	for _, def := range opts.TableDefs {
		if _, err := db.CreateTable(def); err != nil {
			return nil, fmt.Errorf("failed to register table %q: %w", def.Path, err)
		}
	}
	return db, nil
}

func inputFormat(name, path string) (decode.Format, error) {
	if name != "" {
		return decode.ParseFormat(name)
	}
	return decode.FormatForPath(path)
}

func filterIncludedTables(s *schema.Schema, includeList []string) {
	includeSet := make(map[string]bool)
	for _, tableName := range includeList {
		includeSet[tableName] = true
	}

	filteredTables := make([]schema.Table, 0, len(s.Tables))
	for _, table := range s.Tables {
		if includeSet[table.Name] {
			filteredTables = append(filteredTables, table)
		}
	}
	s.Tables = filteredTables
}

func filterExcludedTables(s *schema.Schema, excludeList []string) {
	if len(excludeList) == 0 {
		return
	}

	excludeSet := make(map[string]bool)
	for _, tableName := range excludeList {
		excludeSet[tableName] = true
	}

	filteredTables := make([]schema.Table, 0, len(s.Tables))
	for _, table := range s.Tables {
		if !excludeSet[table.Name] {
			filteredTables = append(filteredTables, table)
		}
	}
	s.Tables = filteredTables
}
