package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/nestedtables/internal/schema"
	"github.com/tordrt/nestedtables/internal/value"
)

const (
	formatText     = "text"
	formatMarkdown = "markdown"
	formatCSV      = "csv"
	formatJSON     = "json"
	formatMsgpack  = "msgpack"
	formatXLSX     = "xlsx"
)

// Formats lists every format accepted by New
var Formats = []string{formatText, formatMarkdown, formatCSV, formatJSON, formatMsgpack, formatXLSX}

// MultiFileFormats lists the formats MultiFileFormatter can write
var MultiFileFormats = []string{formatText, formatMarkdown, formatCSV}

// Formatter writes a decomposed schema somewhere
type Formatter interface {
	Format(s *schema.Schema) error
}

// New returns the single-writer formatter for format
func New(format string, w io.Writer) (Formatter, error) {
	switch format {
	case formatText:
		return NewTextFormatter(w), nil
	case formatMarkdown:
		return NewMarkdownFormatter(w), nil
	case formatCSV:
		return NewCSVFormatter(w), nil
	case formatJSON:
		return NewJSONFormatter(w), nil
	case formatMsgpack:
		return NewMsgpackFormatter(w), nil
	case formatXLSX:
		return NewXLSXFormatter(w), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (must be one of %s)", format, strings.Join(Formats, ", "))
	}
}

// displayCell renders a cell for human readers; nulls show as NULL
func displayCell(v value.Scalar) string {
	if v.IsNull() {
		return "NULL"
	}
	return v.String()
}
