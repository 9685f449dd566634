package formatter

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/tordrt/nestedtables/internal/schema"
)

// CSVFormatter writes every table as a header line followed by one record
// per row. Tables are separated by a blank line; nulls are empty fields.
type CSVFormatter struct {
	writer io.Writer
}

// NewCSVFormatter creates a new CSV formatter
func NewCSVFormatter(w io.Writer) *CSVFormatter {
	return &CSVFormatter{writer: w}
}

// Format writes the tables as CSV
func (f *CSVFormatter) Format(s *schema.Schema) error {
	for i, table := range s.Tables {
		if i > 0 {
			if _, err := fmt.Fprintln(f.writer); err != nil {
				return err
			}
		}
		if err := writeCSVTable(f.writer, table); err != nil {
			return fmt.Errorf("failed to write table %s: %w", table.Name, err)
		}
	}
	return nil
}

func writeCSVTable(w io.Writer, table schema.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(table.Header()); err != nil {
		return err
	}
	for _, row := range table.Rows {
		cells := table.Cells(row)
		record := make([]string, len(cells))
		for i, c := range cells {
			record[i] = c.String()
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
