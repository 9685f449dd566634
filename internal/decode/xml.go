package decode

import (
	"fmt"
	"io"
	"sort"

	"github.com/clbanning/mxj"

	"github.com/tordrt/nestedtables/internal/value"
)

// TextKey holds the character data of an element that also has attributes
// or children. mxj uses "#text", but "#" is reserved in paths.
const TextKey = "_text"

// DecodeXML reads one XML document. Element values stay strings; keys are
// sorted since mxj does not keep element order. Attributes keep mxj's "-"
// prefix.
func DecodeXML(r io.Reader) (value.Value, error) {
	m, err := mxj.NewMapXmlReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode XML: %w", err)
	}
	return fromXML(map[string]any(m), 0)
}

func fromXML(x any, depth int) (value.Value, error) {
	if depth > maxNesting {
		return nil, tooDeep()
	}
	switch x := x.(type) {
	case mxj.Map:
		return fromXML(map[string]any(x), depth)
	case map[string]any:
		keys := make([]string, 0, len(x))
		byKey := make(map[string]any, len(x))
		for k, v := range x {
			if k == "#text" {
				k = TextKey
			}
			keys = append(keys, k)
			byKey[k] = v
		}
		sort.Strings(keys)

		fields := make([]value.Field, 0, len(keys))
		for _, k := range keys {
			v, err := fromXML(byKey[k], depth+1)
			if err != nil {
				return nil, err
			}
			fields = append(fields, value.KV(k, v))
		}
		return value.NewObject(fields...), nil
	case []any:
		seq := make(value.Sequence, 0, len(x))
		for _, el := range x {
			v, err := fromXML(el, depth+1)
			if err != nil {
				return nil, err
			}
			seq = append(seq, v)
		}
		return seq, nil
	default:
		return value.FromAny(x)
	}
}
