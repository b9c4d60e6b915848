// Package queryfilter evaluates MongoDB-style query filter documents
// against a document tree (spec §4.6, §3 match semantics). It is shared
// by every CommandStore adapter so filter semantics stay identical
// regardless of where the documents are stored.
package queryfilter

import "github.com/jongodb/jongodb/pkg/bsontype"

// Match evaluates a query filter against a document. Supports direct
// equality (implicit $eq), the comparison operators $eq/$ne/$gt/$gte/
// $lt/$lte, $in/$nin/$exists, and dotted field paths (via
// bsontype.Document.GetPath, which traverses arrays along the path). An
// array found at the end of the path is matched both as a whole and
// element-wise. An empty or nil filter matches everything.
func Match(filter *bsontype.Document, doc *bsontype.Document) bool {
	if filter == nil || filter.Len() == 0 {
		return true
	}
	for _, elem := range filter.Elements() {
		if !matchField(elem.Key, elem.Value, doc) {
			return false
		}
	}
	return true
}

func matchField(path string, expected bsontype.Value, doc *bsontype.Document) bool {
	values := doc.GetPath(path)
	actual := values
	for _, v := range values {
		if arr, isArr := v.AsArray(); isArr {
			actual = append(actual, arr...)
		}
	}

	if exprDoc, isDoc := expected.AsDocument(); isDoc && isOperatorDocument(exprDoc) {
		return matchOperators(exprDoc, actual)
	}

	for _, v := range actual {
		if bsontype.EqualLoose(v, expected) {
			return true
		}
	}
	return false
}

func isOperatorDocument(d *bsontype.Document) bool {
	if d.Len() == 0 {
		return false
	}
	for _, k := range d.Keys() {
		if len(k) == 0 || k[0] != '$' {
			return false
		}
	}
	return true
}

func matchOperators(ops *bsontype.Document, actual []bsontype.Value) bool {
	for _, elem := range ops.Elements() {
		if !matchOperator(elem.Key, elem.Value, actual) {
			return false
		}
	}
	return true
}

func matchOperator(op string, arg bsontype.Value, actual []bsontype.Value) bool {
	switch op {
	case "$eq":
		for _, v := range actual {
			if bsontype.EqualLoose(v, arg) {
				return true
			}
		}
		return false
	case "$ne":
		for _, v := range actual {
			if bsontype.EqualLoose(v, arg) {
				return false
			}
		}
		return true
	case "$gt", "$gte", "$lt", "$lte":
		for _, v := range actual {
			if compareOrdered(op, v, arg) {
				return true
			}
		}
		return false
	case "$in":
		set, _ := arg.AsArray()
		for _, v := range actual {
			for _, want := range set {
				if bsontype.EqualLoose(v, want) {
					return true
				}
			}
		}
		return false
	case "$nin":
		set, _ := arg.AsArray()
		for _, v := range actual {
			for _, want := range set {
				if bsontype.EqualLoose(v, want) {
					return false
				}
			}
		}
		return true
	case "$exists":
		want, _ := arg.AsBool()
		return (len(actual) > 0) == want
	default:
		// Unrecognized operators are treated as non-matching rather than
		// a hard failure; handlers validate supported shapes up front.
		return false
	}
}

func compareOrdered(op string, a, b bsontype.Value) bool {
	af, aNum := a.AsFloat64()
	bf, bNum := b.AsFloat64()
	if aNum && bNum {
		switch op {
		case "$gt":
			return af > bf
		case "$gte":
			return af >= bf
		case "$lt":
			return af < bf
		case "$lte":
			return af <= bf
		}
	}
	as, aStr := a.AsString()
	bs, bStr := b.AsString()
	if aStr && bStr {
		switch op {
		case "$gt":
			return as > bs
		case "$gte":
			return as >= bs
		case "$lt":
			return as < bs
		case "$lte":
			return as <= bs
		}
	}
	return false
}
