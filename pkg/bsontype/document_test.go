package bsontype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetOverwritePreservesPosition(t *testing.T) {
	d := NewDocument(
		Element{Key: "a", Value: Int32(1)},
		Element{Key: "b", Value: Int32(2)},
	)
	d.Set("a", Int32(99))

	assert.Equal(t, []string{"a", "b"}, d.Keys())
	v, _ := d.Get("a")
	n, _ := v.AsInt32()
	assert.Equal(t, int32(99), n)
}

func TestDeleteRemovesKey(t *testing.T) {
	d := NewDocument(
		Element{Key: "a", Value: Int32(1)},
		Element{Key: "b", Value: Int32(2)},
	)
	d.Delete("a")

	assert.Equal(t, []string{"b"}, d.Keys())
	_, ok := d.Get("a")
	assert.False(t, ok)
}

func TestFirstKey(t *testing.T) {
	d := NewDocument(Element{Key: "find", Value: String("widgets")})
	k, ok := d.FirstKey()
	assert.True(t, ok)
	assert.Equal(t, "find", k)

	empty := NewDocument()
	_, ok = empty.FirstKey()
	assert.False(t, ok)
}

func TestCloneIsDeep(t *testing.T) {
	inner := NewDocument(Element{Key: "n", Value: Int32(1)})
	d := NewDocument(Element{Key: "nested", Value: DocumentValue(inner)})

	clone := d.Clone()
	inner.Set("n", Int32(99))

	nestedVal, _ := clone.Get("nested")
	nestedDoc, _ := nestedVal.AsDocument()
	n, _ := nestedDoc.Get("n")
	i, _ := n.AsInt32()
	assert.Equal(t, int32(1), i, "clone must not observe mutation of the source document")
}

func TestEqualRequiresSameKeyOrder(t *testing.T) {
	a := NewDocument(Element{Key: "x", Value: Int32(1)}, Element{Key: "y", Value: Int32(2)})
	b := NewDocument(Element{Key: "y", Value: Int32(2)}, Element{Key: "x", Value: Int32(1)})
	assert.False(t, a.Equal(b))

	c := NewDocument(Element{Key: "x", Value: Int32(1)}, Element{Key: "y", Value: Int32(2)})
	assert.True(t, a.Equal(c))
}

func TestGetPathDotted(t *testing.T) {
	addr := NewDocument(Element{Key: "city", Value: String("nyc")})
	d := NewDocument(Element{Key: "address", Value: DocumentValue(addr)})

	vals := d.GetPath("address.city")
	assert.Len(t, vals, 1)
	s, _ := vals[0].AsString()
	assert.Equal(t, "nyc", s)
}

func TestGetPathTraversesArrayElements(t *testing.T) {
	item1 := NewDocument(Element{Key: "sku", Value: String("a")})
	item2 := NewDocument(Element{Key: "sku", Value: String("b")})
	d := NewDocument(Element{Key: "items", Value: Array(DocumentValue(item1), DocumentValue(item2))})

	vals := d.GetPath("items.sku")
	assert.Len(t, vals, 2)
}

func TestGetPathMissingReturnsEmpty(t *testing.T) {
	d := NewDocument(Element{Key: "a", Value: Int32(1)})
	assert.Empty(t, d.GetPath("missing.path"))
}
