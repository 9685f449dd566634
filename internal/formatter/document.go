package formatter

import (
	"encoding/json"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/tordrt/nestedtables/internal/schema"
)

// Document is the structure written by the JSON and MessagePack formatters
type Document struct {
	Tables []TableDocument `json:"tables" msgpack:"tables"`
}

type TableDocument struct {
	Name       string             `json:"name" msgpack:"name"`
	Path       string             `json:"path" msgpack:"path"`
	PrimaryKey []string           `json:"primary_key" msgpack:"primary_key"`
	Columns    []ColumnDocument   `json:"columns" msgpack:"columns"`
	Relations  []RelationDocument `json:"relations,omitempty" msgpack:"relations,omitempty"`
	Rows       []RowDocument      `json:"rows" msgpack:"rows"`
}

type ColumnDocument struct {
	Name     string `json:"name" msgpack:"name"`
	Type     string `json:"type" msgpack:"type"`
	Nullable bool   `json:"nullable" msgpack:"nullable"`
	Unique   bool   `json:"unique,omitempty" msgpack:"unique,omitempty"`
}

type RelationDocument struct {
	Column       string `json:"column" msgpack:"column"`
	TargetTable  string `json:"target_table" msgpack:"target_table"`
	TargetColumn string `json:"target_column" msgpack:"target_column"`
	Cardinality  string `json:"cardinality" msgpack:"cardinality"`
}

// RowDocument holds the row id and its values aligned to the columns
type RowDocument struct {
	ID     any   `json:"id" msgpack:"id"`
	Values []any `json:"values" msgpack:"values"`
}

// NewDocument converts a schema into its serialisable form
func NewDocument(s *schema.Schema) *Document {
	doc := &Document{Tables: make([]TableDocument, 0, len(s.Tables))}
	for _, t := range s.Tables {
		td := TableDocument{
			Name:       t.Name,
			Path:       t.Path,
			PrimaryKey: t.PrimaryKey,
			Columns:    make([]ColumnDocument, len(t.Columns)),
			Rows:       make([]RowDocument, len(t.Rows)),
		}
		for i, c := range t.Columns {
			td.Columns[i] = ColumnDocument{Name: c.Name, Type: c.Type, Nullable: c.Nullable, Unique: c.IsUnique}
		}
		for _, r := range t.Relations {
			td.Relations = append(td.Relations, RelationDocument{
				Column:       r.SourceColumn,
				TargetTable:  r.TargetTable,
				TargetColumn: r.TargetColumn,
				Cardinality:  r.Cardinality,
			})
		}
		for i, r := range t.Rows {
			vals := make([]any, len(r.Values))
			for j, v := range r.Values {
				vals[j] = v.Any()
			}
			td.Rows[i] = RowDocument{ID: r.ID.Any(), Values: vals}
		}
		doc.Tables = append(doc.Tables, td)
	}
	return doc
}

// JSONFormatter writes the tables as one indented JSON document
type JSONFormatter struct {
	writer io.Writer
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{writer: w}
}

// Format writes the tables as JSON
func (f *JSONFormatter) Format(s *schema.Schema) error {
	enc := json.NewEncoder(f.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(NewDocument(s))
}

// MsgpackFormatter writes the tables as one MessagePack document
type MsgpackFormatter struct {
	writer io.Writer
}

// NewMsgpackFormatter creates a new MessagePack formatter
func NewMsgpackFormatter(w io.Writer) *MsgpackFormatter {
	return &MsgpackFormatter{writer: w}
}

// Format writes the tables as MessagePack
func (f *MsgpackFormatter) Format(s *schema.Schema) error {
	enc := msgpack.GetEncoder()
	defer msgpack.PutEncoder(enc)

	enc.Reset(f.writer)
	enc.SetSortMapKeys(true)
	return enc.Encode(NewDocument(s))
}
