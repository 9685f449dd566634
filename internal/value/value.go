// Package value models a decoded document as a closed variant of scalars,
// ordered objects and sequences.
//
// Decoders in internal/decode produce these values; the decomposition engine
// only ever switches over the three concrete types, so a fourth shape cannot
// reach it.
package value

import (
	"fmt"
	"iter"
	"math"
	"strconv"
)

// Kind classifies a Value.
type Kind int

const (
	KindScalar Kind = iota + 1
	KindObject
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindObject:
		return "object"
	case KindSequence:
		return "sequence"
	default:
		return fmt.Sprintf("invalid kind %d", int(k))
	}
}

// Value is one node of a document: Scalar, *Object or Sequence.
type Value interface {
	Kind() Kind
	isValue()
}

// Classify returns the kind of v. A nil Value is a null scalar.
func Classify(v Value) Kind {
	switch v := v.(type) {
	case nil:
		return KindScalar
	case Scalar:
		return KindScalar
	case *Object:
		return KindObject
	case Sequence:
		return KindSequence
	default:
		panic(fmt.Errorf("value: unexpected %T", v))
	}
}

// ScalarType is the primitive type held by a Scalar.
type ScalarType int

const (
	TypeNull ScalarType = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeString
)

func (t ScalarType) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeBool:
		return "boolean"
	case TypeInt:
		return "integer"
	case TypeFloat:
		return "number"
	case TypeString:
		return "text"
	default:
		return fmt.Sprintf("invalid scalar type %d", int(t))
	}
}

// Scalar holds null, bool, int64, float64 or string. Scalars are comparable
// and are used directly as record ids and map keys.
type Scalar struct {
	v any
}

func Null() Scalar { return Scalar{} }
func Bool(b bool) Scalar { return Scalar{b} }
func Int(i int64) Scalar { return Scalar{i} }
func Float(f float64) Scalar { return Scalar{f} }
func String(s string) Scalar { return Scalar{s} }
func (Scalar) Kind() Kind { return KindScalar }
func (Scalar) isValue() {}
func (s Scalar) Any() any { return s.v }
func (s Scalar) IsNull() bool { return s.v == nil }
func (s Scalar) Equal(o Scalar) bool { return s == o }

func (s Scalar) Type() ScalarType {
	switch s.v.(type) {
	case nil:
		return TypeNull
	case bool:
		return TypeBool
	case int64:
		return TypeInt
	case float64:
		return TypeFloat
	case string:
		return TypeString
	default:
		panic(fmt.Errorf("value: scalar holds %T", s.v))
	}
}

// String renders the scalar as cell text. Null renders as "".
func (s Scalar) String() string {
	switch v := s.v.(type) {
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// GoString makes %#v output readable in test failures.
func (s Scalar) GoString() string {
	switch v := s.v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	default:
		return s.String()
	}
}

// Field is one key/value pair of an Object.
type Field struct {
	Key   string
	Value Value
}

// KV builds a Field.
func KV(key string, v Value) Field {
	return Field{Key: key, Value: v}
}

// Object is an ordered mapping. Iteration follows insertion order; a key that
// appears twice keeps its first position and its last value, like repeated
// keys in a JSON document.
type Object struct {
	fields []Field
	index  map[string]int
}

func NewObject(fields ...Field) *Object {
	obj := &Object{
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		obj.set(f.Key, f.Value)
	}
	return obj
}

func (o *Object) set(key string, v Value) {
	if i, ok := o.index[key]; ok {
		o.fields[i].Value = v
		return
	}
	o.index[key] = len(o.fields)
	o.fields = append(o.fields, Field{key, v})
}

func (*Object) Kind() Kind { return KindObject }
func (*Object) isValue() {}

func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.fields)
}

func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return nil, false
	}
	i, ok := o.index[key]
	if !ok {
		return nil, false
	}
	return o.fields[i].Value, true
}

// All iterates fields in document order.
func (o *Object) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		if o == nil {
			return
		}
		for _, f := range o.fields {
			if !yield(f.Key, f.Value) {
				return
			}
		}
	}
}

func (o *Object) Keys() []string {
	keys := make([]string, 0, o.Len())
	for k := range o.All() {
		keys = append(keys, k)
	}
	return keys
}

// Sequence is an ordered list of values.
type Sequence []Value

func (Sequence) Kind() Kind { return KindSequence }
func (Sequence) isValue() {}

// IntegralFloat converts f to Int when it holds a whole number that float64
// represents exactly, and to Float otherwise.
func IntegralFloat(f float64) Scalar {
	const maxExact = 1 << 53
	if f == math.Trunc(f) && f >= -maxExact && f <= maxExact {
		return Int(int64(f))
	}
	return Float(f)
}

// Equal reports whether a and b are structurally equal, including key order.
func Equal(a, b Value) bool {
	switch a := a.(type) {
	case nil:
		return Classify(b) == KindScalar && scalarOf(b).IsNull()
	case Scalar:
		return Classify(b) == KindScalar && a == scalarOf(b)
	case *Object:
		bo, ok := b.(*Object)
		if !ok || a.Len() != bo.Len() {
			return false
		}
		if a.Len() == 0 {
			return true
		}
		for i, f := range a.fields {
			g := bo.fields[i]
			if f.Key != g.Key || !Equal(f.Value, g.Value) {
				return false
			}
		}
		return true
	case Sequence:
		bs, ok := b.(Sequence)
		if !ok || len(a) != len(bs) {
			return false
		}
		for i := range a {
			if !Equal(a[i], bs[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func scalarOf(v Value) Scalar {
	if s, ok := v.(Scalar); ok {
		return s
	}
	return Null()
}
