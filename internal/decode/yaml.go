package decode

import (
	"errors"
	"fmt"
	"io"
	"math/big"

	"gopkg.in/yaml.v3"

	"github.com/tordrt/nestedtables/internal/value"
)

const mergeTag = "!!merge"

// maxAliasNodes bounds the nodes alias expansion may produce in one document;
// anchors that refer to each other grow exponentially when expanded.
const maxAliasNodes = 1_000_000

// ErrAliasExpansion is returned when a document expands to too many nodes
// through aliases.
var ErrAliasExpansion = errors.New("yaml aliases expand to too many nodes")

// DecodeYAML reads every document of a YAML stream. Mappings keep their key
// order, aliases are expanded and merge keys are applied.
func DecodeYAML(r io.Reader) ([]value.Value, error) {
	dec := yaml.NewDecoder(r)
	var docs []value.Value
	for {
		var n yaml.Node
		err := dec.Decode(&n)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode YAML: %w", err)
		}
		v, err := new(yamlConverter).convert(&n, 0)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", len(docs)+1, err)
		}
		docs = append(docs, v)
	}
	return docs, nil
}

// yamlConverter turns one document's node tree into a value.
type yamlConverter struct {
	inAlias  int // > 0 while walking the target of an alias
	expanded int
}

func (c *yamlConverter) visit(depth int) error {
	if depth > maxNesting {
		return tooDeep()
	}
	if c.inAlias > 0 {
		c.expanded++
		if c.expanded > maxAliasNodes {
			return fmt.Errorf("%w (more than %d)", ErrAliasExpansion, maxAliasNodes)
		}
	}
	return nil
}

func (c *yamlConverter) convert(n *yaml.Node, depth int) (value.Value, error) {
	if err := c.visit(depth); err != nil {
		return nil, err
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return value.Null(), nil
		}
		return c.convert(n.Content[0], depth+1)
	case yaml.AliasNode:
		c.inAlias++
		defer func() { c.inAlias-- }()
		return c.convert(n.Alias, depth+1)
	case yaml.SequenceNode:
		seq := make(value.Sequence, 0, len(n.Content))
		for _, el := range n.Content {
			v, err := c.convert(el, depth+1)
			if err != nil {
				return nil, err
			}
			seq = append(seq, v)
		}
		return seq, nil
	case yaml.MappingNode:
		fields, err := c.fields(n, depth)
		if err != nil {
			return nil, err
		}
		return value.NewObject(fields...), nil
	case yaml.ScalarNode:
		return yamlScalar(n)
	default:
		return nil, fmt.Errorf("line %d: unexpected YAML node kind %v", n.Line, n.Kind)
	}
}

// fields converts a mapping. Keys written in the mapping itself win over
// keys pulled in by "<<", wherever the merge key sits.
func (c *yamlConverter) fields(n *yaml.Node, depth int) ([]value.Field, error) {
	explicit := make(map[string]bool, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		if k := n.Content[i]; k.Kind == yaml.ScalarNode && k.ShortTag() != mergeTag {
			explicit[k.Value] = true
		}
	}

	fields := make([]value.Field, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if k.Kind == yaml.ScalarNode && k.ShortTag() == mergeTag {
			merged, err := c.merge(v, depth+1)
			if err != nil {
				return nil, err
			}
			for _, f := range merged {
				if !explicit[f.Key] {
					fields = append(fields, f)
				}
			}
			continue
		}
		if k.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: mapping keys must be scalars", k.Line)
		}
		val, err := c.convert(v, depth+1)
		if err != nil {
			return nil, err
		}
		fields = append(fields, value.KV(k.Value, val))
	}
	return fields, nil
}

// merge returns the fields a "<<" key pulls in: one mapping or a sequence of
// mappings, the earlier ones winning.
func (c *yamlConverter) merge(n *yaml.Node, depth int) ([]value.Field, error) {
	if err := c.visit(depth); err != nil {
		return nil, err
	}
	if n.Kind == yaml.AliasNode {
		c.inAlias++
		defer func() { c.inAlias-- }()
		return c.merge(n.Alias, depth+1)
	}
	switch n.Kind {
	case yaml.MappingNode:
		return c.fields(n, depth)
	case yaml.SequenceNode:
		var fields []value.Field
		for i := len(n.Content) - 1; i >= 0; i-- {
			f, err := c.merge(n.Content[i], depth+1)
			if err != nil {
				return nil, err
			}
			fields = append(fields, f...)
		}
		return fields, nil
	default:
		return nil, fmt.Errorf("line %d: merge value must be a mapping", n.Line)
	}
}

func yamlScalar(n *yaml.Node) (value.Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return value.Null(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, err
		}
		return value.Bool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err == nil {
			return value.Int(i), nil
		}
		// out of int64 range
		f, _, err := big.ParseFloat(n.Value, 0, 64, big.ToNearestEven)
		if err != nil {
			return value.String(n.Value), nil
		}
		f64, _ := f.Float64()
		return value.Float(f64), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, err
		}
		return value.Float(f), nil
	default:
		// strings, timestamps and binary keep their source text
		return value.String(n.Value), nil
	}
}
