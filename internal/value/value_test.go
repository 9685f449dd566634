package value

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want Kind
	}{
		{"nil", nil, KindScalar},
		{"null", Null(), KindScalar},
		{"string", String("x"), KindScalar},
		{"object", NewObject(KV("a", Int(1))), KindObject},
		{"empty object", NewObject(), KindObject},
		{"sequence", Sequence{Int(1)}, KindSequence},
		{"empty sequence", Sequence{}, KindSequence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.v))
		})
	}
}

func TestScalarString(t *testing.T) {
	tests := []struct {
		s    Scalar
		want string
		typ  ScalarType
	}{
		{Null(), "", TypeNull},
		{Bool(true), "true", TypeBool},
		{Int(-42), "-42", TypeInt},
		{Float(1.5), "1.5", TypeFloat},
		{String("abc"), "abc", TypeString},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.s.String())
			assert.Equal(t, tt.typ, tt.s.Type())
		})
	}
}

func TestScalarComparable(t *testing.T) {
	m := map[Scalar]int{Int(1): 1, String("1"): 2}
	assert.Equal(t, 1, m[Int(1)])
	assert.Equal(t, 2, m[String("1")])
	assert.False(t, Int(1).Equal(Float(1)))
}

func TestObjectOrderAndDuplicates(t *testing.T) {
	obj := NewObject(KV("b", Int(1)), KV("a", Int(2)), KV("b", Int(3)))

	assert.Equal(t, []string{"b", "a"}, obj.Keys())
	v, ok := obj.Get("b")
	require.True(t, ok)
	assert.Equal(t, Int(3), v)

	_, ok = obj.Get("c")
	assert.False(t, ok)

	var nilObj *Object
	assert.Equal(t, 0, nilObj.Len())
	assert.Empty(t, nilObj.Keys())
}

func TestIntegralFloat(t *testing.T) {
	assert.Equal(t, Int(3), IntegralFloat(3))
	assert.Equal(t, Float(3.25), IntegralFloat(3.25))
	assert.Equal(t, Float(1e300), IntegralFloat(1e300))
}

func TestFromAny(t *testing.T) {
	got, err := FromAny(map[string]any{
		"z":    1,
		"a":    []any{"x", true, nil},
		"n":    json.Number("2.5"),
		"m":    map[string]int{"k": 7},
		"list": []string{"p", "q"},
	})
	require.NoError(t, err)

	want := NewObject(
		KV("a", Sequence{String("x"), Bool(true), Null()}),
		KV("list", Sequence{String("p"), String("q")}),
		KV("m", NewObject(KV("k", Int(7)))),
		KV("n", Float(2.5)),
		KV("z", Int(1)),
	)
	assert.True(t, Equal(want, got), "got %#v", got)
}

func TestFromAnyErrors(t *testing.T) {
	_, err := FromAny(map[int]string{1: "a"})
	assert.Error(t, err)

	_, err = FromAny(uint64(1) << 63)
	assert.Error(t, err)

	_, err = FromAny(struct{}{})
	assert.Error(t, err)
}

func TestEqual(t *testing.T) {
	a := NewObject(KV("a", Int(1)), KV("b", Sequence{String("x")}))
	b := NewObject(KV("a", Int(1)), KV("b", Sequence{String("x")}))
	c := NewObject(KV("b", Sequence{String("x")}), KV("a", Int(1)))

	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, c), "key order is significant")
	assert.True(t, Equal(nil, Null()))
	assert.False(t, Equal(Sequence{}, NewObject()))
	assert.True(t, Equal(NewObject(), NewObject()))
}
