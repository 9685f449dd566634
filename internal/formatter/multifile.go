package formatter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/tordrt/nestedtables/internal/schema"
)

// MultiFileFormatter writes tables to multiple files in a directory
type MultiFileFormatter struct {
	OutputDir    string
	OutputFormat string // "text", "markdown" or "csv"
}

// NewMultiFileFormatter creates a new multi-file formatter
func NewMultiFileFormatter(outputDir, format string) *MultiFileFormatter {
	return &MultiFileFormatter{
		OutputDir:    outputDir,
		OutputFormat: format,
	}
}

// Format writes the tables to multiple files
func (f *MultiFileFormatter) Format(s *schema.Schema) error {
	if !slices.Contains(MultiFileFormats, f.OutputFormat) {
		return fmt.Errorf("unsupported multi-file format: %s (must be one of %s)", f.OutputFormat, strings.Join(MultiFileFormats, ", "))
	}

	// Create output directory if it doesn't exist
	if err := os.MkdirAll(f.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := f.writeOverview(s); err != nil {
		return fmt.Errorf("failed to write overview: %w", err)
	}

	for _, table := range s.Tables {
		if err := f.writeTableFile(&table, s); err != nil {
			return fmt.Errorf("failed to write table file for %s: %w", table.Name, err)
		}
	}

	return nil
}

// writeOverview writes the overview file
func (f *MultiFileFormatter) writeOverview(s *schema.Schema) error {
	ext := f.getFileExtension()
	filename := filepath.Join(f.OutputDir, "_overview"+f.overviewExtension())

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	if f.OutputFormat == formatMarkdown {
		return f.writeMarkdownOverview(file, s, ext)
	}
	return f.writeTextOverview(file, s, ext)
}

func (f *MultiFileFormatter) writeMarkdownOverview(w io.Writer, s *schema.Schema, ext string) error {
	_, _ = fmt.Fprintf(w, "# Tables Overview\n\n")
	_, _ = fmt.Fprintf(w, "Each table has a corresponding file: `<table_name>%s`\n\n", ext)
	_, _ = fmt.Fprintf(w, "## Tables\n\n")

	for _, table := range sortedTables(s) {
		_, _ = fmt.Fprintf(w, "- **%s** (%s)", table.Name, rowCount(len(table.Rows)))

		// Show outgoing relationships
		if targets := relationTargets(table); len(targets) > 0 {
			_, _ = fmt.Fprintf(w, " (references: %s)", strings.Join(targets, ", "))
		}
		_, _ = fmt.Fprintf(w, "\n")
	}

	return nil
}

func (f *MultiFileFormatter) writeTextOverview(w io.Writer, s *schema.Schema, ext string) error {
	_, _ = fmt.Fprintf(w, "TABLES OVERVIEW\n")
	_, _ = fmt.Fprintf(w, "Each table has a file: <table_name>%s\n\n", ext)

	for _, table := range sortedTables(s) {
		_, _ = fmt.Fprintf(w, "%s [%s]", table.Name, rowCount(len(table.Rows)))
		if targets := relationTargets(table); len(targets) > 0 {
			_, _ = fmt.Fprintf(w, " (references: %s)", strings.Join(targets, ","))
		}
		_, _ = fmt.Fprintf(w, "\n")
	}

	return nil
}

// writeTableFile writes a single table to its own file
func (f *MultiFileFormatter) writeTableFile(table *schema.Table, s *schema.Schema) error {
	filename := filepath.Join(f.OutputDir, table.Name+f.getFileExtension())

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	switch f.OutputFormat {
	case formatCSV:
		return writeCSVTable(file, *table)
	case formatText:
		return NewTextFormatter(file).formatTable(*table)
	}

	mdFormatter := NewMarkdownFormatter(file)
	if err := mdFormatter.FormatTable(*table); err != nil {
		return err
	}

	// Add incoming relationships
	incomingRels := f.findIncomingRelations(table.Name, s)
	if len(incomingRels) > 0 {
		_, _ = fmt.Fprintf(file, "### Referenced by\n\n")
		for _, rel := range incomingRels {
			_, _ = fmt.Fprintf(file, "- %s.%s → %s (%s)\n",
				rel.SourceTable, rel.SourceColumn,
				rel.TargetColumn,
				rel.Cardinality)
		}
		_, _ = fmt.Fprintln(file)
	}

	return nil
}

// IncomingRelation represents a relationship pointing to this table
type IncomingRelation struct {
	SourceTable  string
	SourceColumn string
	TargetTable  string
	TargetColumn string
	Cardinality  string
}

// findIncomingRelations finds all foreign keys pointing to this table
func (f *MultiFileFormatter) findIncomingRelations(tableName string, s *schema.Schema) []IncomingRelation {
	var incoming []IncomingRelation

	for _, table := range s.Tables {
		for _, rel := range table.Relations {
			if rel.TargetTable == tableName {
				incoming = append(incoming, IncomingRelation{
					SourceTable:  table.Name,
					SourceColumn: rel.SourceColumn,
					TargetTable:  rel.TargetTable,
					TargetColumn: rel.TargetColumn,
					Cardinality:  rel.Cardinality,
				})
			}
		}
	}

	return incoming
}

func (f *MultiFileFormatter) getFileExtension() string {
	switch f.OutputFormat {
	case formatMarkdown:
		return ".md"
	case formatCSV:
		return ".csv"
	default:
		return ".txt"
	}
}

// overviewExtension is the extension of the overview file; a CSV directory
// gets a text overview
func (f *MultiFileFormatter) overviewExtension() string {
	if f.OutputFormat == formatMarkdown {
		return ".md"
	}
	return ".txt"
}

// sortedTables returns the tables sorted alphabetically
func sortedTables(s *schema.Schema) []schema.Table {
	sorted := make([]schema.Table, len(s.Tables))
	copy(sorted, s.Tables)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})
	return sorted
}

func relationTargets(table schema.Table) []string {
	var targets []string
	for _, rel := range table.Relations {
		if !slices.Contains(targets, rel.TargetTable) {
			targets = append(targets, rel.TargetTable)
		}
	}
	return targets
}
