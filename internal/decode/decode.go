// Package decode reads JSON, YAML and XML documents into values, keeping the
// key order of the source where the format has one.
package decode

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/tordrt/nestedtables/internal/value"
)

type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
	XML  Format = "xml"
)

// Formats lists the supported input formats.
var Formats = []Format{JSON, YAML, XML}

// maxNesting bounds recursion while converting, mostly against YAML aliases
// that refer back to their own ancestors.
const maxNesting = 10000

// ParseFormat accepts a format name; "yml" is an alias for yaml.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json", "ndjson", "jsonl":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "xml":
		return XML, nil
	default:
		return "", fmt.Errorf("unsupported input format: %s (must be 'json', 'yaml' or 'xml')", s)
	}
}

// FormatForPath picks a format from the file extension.
func FormatForPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", fmt.Errorf("cannot detect input format of %q: no file extension", path)
	}
	return ParseFormat(ext)
}

// Decode reads every document in r. JSON and YAML streams may hold several
// documents; XML holds one.
func Decode(r io.Reader, f Format) ([]value.Value, error) {
	switch f {
	case JSON:
		return DecodeJSON(r)
	case YAML:
		return DecodeYAML(r)
	case XML:
		doc, err := DecodeXML(r)
		if err != nil {
			return nil, err
		}
		return []value.Value{doc}, nil
	default:
		return nil, fmt.Errorf("unsupported input format: %s", f)
	}
}

func tooDeep() error {
	return fmt.Errorf("document nested more than %d levels", maxNesting)
}
