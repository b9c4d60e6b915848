package bsontype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAsFloat64WidensAllNumericKinds(t *testing.T) {
	cases := []Value{Int32(1), Int64(1), Double(1.0), Decimal(1.0)}
	for _, v := range cases {
		f, ok := v.AsFloat64()
		assert.True(t, ok, v.Kind())
		assert.Equal(t, 1.0, f)
	}

	_, ok := String("x").AsFloat64()
	assert.False(t, ok)
}

func TestIsNumeric(t *testing.T) {
	assert.True(t, Int32(1).IsNumeric())
	assert.True(t, Double(1).IsNumeric())
	assert.False(t, String("1").IsNumeric())
	assert.False(t, Bool(true).IsNumeric())
}

func TestEqualRequiresSameKind(t *testing.T) {
	assert.False(t, Equal(Int32(1), Double(1)))
	assert.True(t, Equal(Int32(1), Int32(1)))
}

func TestEqualLooseComparesNumericsByValue(t *testing.T) {
	assert.True(t, EqualLoose(Int32(1), Double(1.0)))
	assert.True(t, EqualLoose(Int64(2), Int32(2)))
	assert.False(t, EqualLoose(Int32(1), Int32(2)))
}

func TestEqualDocumentsAndArraysRecurse(t *testing.T) {
	a := Array(Int32(1), String("x"))
	b := Array(Int32(1), String("x"))
	c := Array(Int32(1), String("y"))
	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, c))

	da := DocumentValue(NewDocument(Element{Key: "k", Value: Int32(1)}))
	db := DocumentValue(NewDocument(Element{Key: "k", Value: Int32(1)}))
	assert.True(t, Equal(da, db))
}

func TestObjectIDHexRoundTrip(t *testing.T) {
	id := NewObjectID()
	hex := id.Hex()
	assert.Len(t, hex, 24)

	parsed, ok := ObjectIDFromHex(hex)
	assert.True(t, ok)
	assert.Equal(t, id, parsed)
}

func TestObjectIDFromHexRejectsInvalid(t *testing.T) {
	_, ok := ObjectIDFromHex("not-hex")
	assert.False(t, ok)

	_, ok = ObjectIDFromHex("aabb")
	assert.False(t, ok, "must be exactly 12 bytes")
}

func TestValueStringRenderings(t *testing.T) {
	assert.Equal(t, "null", Null().String())
	assert.Equal(t, "true", Bool(true).String())
	assert.Equal(t, "hello", String("hello").String())
}
