package formatter

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tealeg/xlsx"

	"github.com/tordrt/nestedtables/internal/schema"
	"github.com/tordrt/nestedtables/internal/value"
)

const maxSheetName = 31

// XLSXFormatter writes a workbook with one sheet per table
type XLSXFormatter struct {
	writer io.Writer
}

// NewXLSXFormatter creates a new XLSX formatter
func NewXLSXFormatter(w io.Writer) *XLSXFormatter {
	return &XLSXFormatter{writer: w}
}

// Format writes the tables as an XLSX workbook
func (f *XLSXFormatter) Format(s *schema.Schema) error {
	file := xlsx.NewFile()
	used := make(map[string]bool, len(s.Tables))

	for _, table := range s.Tables {
		name := sheetName(table.Name, used)
		sheet, err := file.AddSheet(name)
		if err != nil {
			return fmt.Errorf("failed to add sheet for %s: %w", table.Name, err)
		}

		header := sheet.AddRow()
		for _, h := range table.Header() {
			header.AddCell().SetString(h)
		}
		for _, row := range table.Rows {
			r := sheet.AddRow()
			for _, c := range table.Cells(row) {
				setCell(r.AddCell(), c)
			}
		}
	}

	if len(s.Tables) == 0 {
		// a workbook needs at least one sheet
		if _, err := file.AddSheet("empty"); err != nil {
			return err
		}
	}

	if err := file.Write(f.writer); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func setCell(cell *xlsx.Cell, v value.Scalar) {
	switch x := v.Any().(type) {
	case nil:
	case bool:
		cell.SetBool(x)
	case int64:
		cell.SetInt64(x)
	case float64:
		cell.SetFloat(x)
	default:
		cell.SetString(v.String())
	}
}

var sheetNameReplacer = strings.NewReplacer(
	":", "_", `\`, "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_",
)

// sheetName makes a valid, unused sheet name out of a table name
func sheetName(table string, used map[string]bool) string {
	base := truncateRunes(sheetNameReplacer.Replace(table), maxSheetName)
	name := base
	for i := 2; used[strings.ToLower(name)]; i++ {
		suffix := "_" + strconv.Itoa(i)
		name = truncateRunes(base, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
