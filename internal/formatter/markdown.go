package formatter

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/tordrt/nestedtables/internal/schema"
)

// MarkdownFormatter formats tables as markdown
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// Format writes the tables in markdown format
func (f *MarkdownFormatter) Format(s *schema.Schema) error {
	_, _ = fmt.Fprintln(f.writer, "# Decomposed Tables")
	_, _ = fmt.Fprintln(f.writer)

	for _, table := range s.Tables {
		if err := f.formatTable(table); err != nil {
			return err
		}
	}
	return nil
}

// FormatTable formats a single table (exported for use by multifile formatter)
func (f *MarkdownFormatter) FormatTable(table schema.Table) error {
	return f.formatTable(table)
}

func (f *MarkdownFormatter) formatTable(table schema.Table) error {
	_, _ = fmt.Fprintf(f.writer, "## %s\n\n", table.Name)
	if table.Path != "" {
		_, _ = fmt.Fprintf(f.writer, "Path: `%s`, %s\n\n", table.Path, rowCount(len(table.Rows)))
	} else {
		_, _ = fmt.Fprintf(f.writer, "Path: root, %s\n\n", rowCount(len(table.Rows)))
	}

	f.formatColumns(table)
	f.formatRelations(table.Relations)
	f.formatRows(table)

	return nil
}

func (f *MarkdownFormatter) formatColumns(table schema.Table) {
	_, _ = fmt.Fprintln(f.writer, "### Columns")
	_, _ = fmt.Fprintln(f.writer)

	for _, pk := range table.PrimaryKey {
		if table.ColumnIndex(pk) < 0 {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** integer, PK\n", pk)
		}
	}
	for _, col := range table.Columns {
		constraintStr := f.formatConstraints(col, table.PrimaryKey)
		if constraintStr != "" {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** %s, %s\n", col.Name, col.Type, constraintStr)
		} else {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** %s\n", col.Name, col.Type)
		}
	}
	_, _ = fmt.Fprintln(f.writer)
}

func (f *MarkdownFormatter) formatRelations(relations []schema.Relation) {
	if len(relations) == 0 {
		return
	}
	_, _ = fmt.Fprintln(f.writer, "### References")
	_, _ = fmt.Fprintln(f.writer)
	for _, rel := range relations {
		_, _ = fmt.Fprintf(f.writer, "- %s → %s.%s (%s)\n",
			rel.SourceColumn,
			rel.TargetTable,
			rel.TargetColumn,
			rel.Cardinality)
	}
	_, _ = fmt.Fprintln(f.writer)
}

func (f *MarkdownFormatter) formatRows(table schema.Table) {
	if len(table.Rows) == 0 {
		return
	}
	_, _ = fmt.Fprintln(f.writer, "### Rows")
	_, _ = fmt.Fprintln(f.writer)

	header := table.Header()
	_, _ = fmt.Fprintf(f.writer, "| %s |\n", strings.Join(escapeAll(header), " | "))
	_, _ = fmt.Fprintf(f.writer, "|%s\n", strings.Repeat(" --- |", len(header)))
	for _, row := range table.Rows {
		cells := table.Cells(row)
		parts := make([]string, len(cells))
		for i, c := range cells {
			parts[i] = displayCell(c)
		}
		_, _ = fmt.Fprintf(f.writer, "| %s |\n", strings.Join(escapeAll(parts), " | "))
	}
	_, _ = fmt.Fprintln(f.writer)
}

func (f *MarkdownFormatter) formatConstraints(col schema.Column, primaryKey []string) string {
	var constraints []string

	if slices.Contains(primaryKey, col.Name) {
		constraints = append(constraints, "PK")
	}

	if col.IsUnique {
		constraints = append(constraints, "UNIQUE")
	}

	if !col.Nullable {
		constraints = append(constraints, "NOT NULL")
	}

	return strings.Join(constraints, ", ")
}

var cellEscaper = strings.NewReplacer("|", `\|`, "\n", " ", "\r", "")

func escapeAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = cellEscaper.Replace(c)
	}
	return out
}
