package bsontype

import (
	"strconv"
	"strings"
)

// Element is one key/value pair of a Document.
type Element struct {
	Key   string
	Value Value
}

// Document is an ordered mapping from string to Value. Keys are unique per
// level; first-key insertion order is preserved, matching spec §3's
// "document (ordered mapping from string to value; keys unique per level;
// first-key insertion order preserved)".
type Document struct {
	elems []Element
}

// NewDocument builds a Document from the given elements, preserving order
// and overwriting any later duplicate key with the earlier slot's position
// (first-key insertion order).
func NewDocument(elems ...Element) *Document {
	d := &Document{}
	for _, e := range elems {
		d.Set(e.Key, e.Value)
	}
	return d
}

// Len returns the number of top-level keys.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.elems)
}

// Keys returns the top-level keys in insertion order.
func (d *Document) Keys() []string {
	if d == nil {
		return nil
	}
	keys := make([]string, len(d.elems))
	for i, e := range d.elems {
		keys[i] = e.Key
	}
	return keys
}

// Elements returns the underlying ordered elements; callers must not mutate
// the returned slice.
func (d *Document) Elements() []Element {
	if d == nil {
		return nil
	}
	return d.elems
}

// Get looks up a top-level key; ok is false if absent.
func (d *Document) Get(key string) (Value, bool) {
	if d == nil {
		return Value{}, false
	}
	for _, e := range d.elems {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// Set inserts or overwrites a top-level key. Overwriting an existing key
// keeps its original position, matching "first-key insertion order".
func (d *Document) Set(key string, v Value) {
	for i, e := range d.elems {
		if e.Key == key {
			d.elems[i].Value = v
			return
		}
	}
	d.elems = append(d.elems, Element{Key: key, Value: v})
}

// Delete removes a top-level key if present.
func (d *Document) Delete(key string) {
	for i, e := range d.elems {
		if e.Key == key {
			d.elems = append(d.elems[:i], d.elems[i+1:]...)
			return
		}
	}
}

// FirstKey returns the document's first key, used by the dispatcher to
// determine the command name (spec §4.1).
func (d *Document) FirstKey() (string, bool) {
	if d.Len() == 0 {
		return "", false
	}
	return d.elems[0].Key, true
}

// Clone performs a deep copy so that handed-out batches (cursor first/next
// batches) cannot be mutated by later store writes (spec §4.4).
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{elems: make([]Element, len(d.elems))}
	for i, e := range d.elems {
		out.elems[i] = Element{Key: e.Key, Value: cloneValue(e.Value)}
	}
	return out
}

func cloneValue(v Value) Value {
	switch v.kind {
	case KindDocument:
		return DocumentValue(v.docVal.Clone())
	case KindArray:
		arr := make([]Value, len(v.arrVal))
		for i, e := range v.arrVal {
			arr[i] = cloneValue(e)
		}
		return Array(arr...)
	default:
		return v
	}
}

// Equal compares two documents element-wise, key order included.
func (d *Document) Equal(o *Document) bool {
	if d == nil || o == nil {
		return d == o
	}
	if len(d.elems) != len(o.elems) {
		return false
	}
	for i := range d.elems {
		if d.elems[i].Key != o.elems[i].Key {
			return false
		}
		if !Equal(d.elems[i].Value, o.elems[i].Value) {
			return false
		}
	}
	return true
}

// String renders a debug form "{k: v, k2: v2}"; not the wire or JSON form.
func (d *Document) String() string {
	if d == nil {
		return "{}"
	}
	var b strings.Builder
	b.WriteByte('{')
	for i, e := range d.elems {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(e.Key)
		b.WriteString(": ")
		b.WriteString(e.Value.String())
	}
	b.WriteByte('}')
	return b.String()
}

// GetPath resolves a dotted field path (e.g. "a.b.0.c"), traversing arrays
// by numeric index and documents by key, as used by Distinct (spec §4.2)
// and filter matching. Returns all values found; dotted paths through an
// array traverse every element (array-traversal semantics), which is why
// the result is a slice rather than a single Value.
func (d *Document) GetPath(path string) []Value {
	parts := strings.Split(path, ".")
	return getPath([]Value{DocumentValue(d)}, parts)
}

func getPath(current []Value, parts []string) []Value {
	if len(parts) == 0 {
		return current
	}

	part := parts[0]
	rest := parts[1:]

	var next []Value

	for _, v := range current {
		switch v.Kind() {
		case KindDocument:
			doc, _ := v.AsDocument()
			if val, ok := doc.Get(part); ok {
				next = append(next, val)
			}
		case KindArray:
			arr, _ := v.AsArray()
			// A dotted segment applied to an array traverses every element
			// (mirrors the document database's "array-as-wildcard" rule)
			// as well as being tried as a numeric index into the array.
			for _, elem := range arr {
				if elem.Kind() == KindDocument {
					if doc, _ := elem.AsDocument(); doc != nil {
						if val, ok := doc.Get(part); ok {
							next = append(next, val)
						}
					}
				}
			}
			if idx, err := strconv.Atoi(part); err == nil && idx >= 0 && idx < len(arr) {
				next = append(next, arr[idx])
			}
		}
	}

	return getPath(next, rest)
}
