// Package bsontype implements the self-describing, ordered value tree that
// command documents and responses are built from (see spec §3: Document).
//
// The wire codec that turns this tree into the binary protocol format is an
// external collaborator and is intentionally not part of this package — only
// the JSON-based adapters in fromjson.go/tojson.go exist here, as a stand-in
// transport for the demonstration CLI in cmd/jongodb.
package bsontype

import (
	"fmt"
	"time"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt32
	KindInt64
	KindDouble
	KindDecimal
	KindString
	KindBinary
	KindTimestamp
	KindDateTime
	KindObjectID
	KindDocument
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt32:
		return "int"
	case KindInt64:
		return "long"
	case KindDouble:
		return "double"
	case KindDecimal:
		return "decimal"
	case KindString:
		return "string"
	case KindBinary:
		return "binData"
	case KindTimestamp:
		return "timestamp"
	case KindDateTime:
		return "date"
	case KindObjectID:
		return "objectId"
	case KindDocument:
		return "object"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Value is a single node in the document tree. Exactly one of the typed
// fields is meaningful, selected by Kind.
type Value struct {
	kind Kind

	boolVal   bool
	int32Val  int32
	int64Val  int64
	doubleVal float64
	strVal    string
	binVal    []byte
	tsVal     uint64
	timeVal   time.Time
	oidVal    ObjectID
	docVal    *Document
	arrVal    []Value
}

func (v Value) Kind() Kind { return v.kind }

func Null() Value                  { return Value{kind: KindNull} }
func Bool(b bool) Value            { return Value{kind: KindBool, boolVal: b} }
func Int32(i int32) Value          { return Value{kind: KindInt32, int32Val: i} }
func Int64(i int64) Value          { return Value{kind: KindInt64, int64Val: i} }
func Double(f float64) Value       { return Value{kind: KindDouble, doubleVal: f} }
func Decimal(f float64) Value      { return Value{kind: KindDecimal, doubleVal: f} }
func String(s string) Value        { return Value{kind: KindString, strVal: s} }
func Binary(b []byte) Value        { return Value{kind: KindBinary, binVal: b} }
func Timestamp(t uint64) Value     { return Value{kind: KindTimestamp, tsVal: t} }
func DateTime(t time.Time) Value   { return Value{kind: KindDateTime, timeVal: t} }
func ObjectIDValue(id ObjectID) Value { return Value{kind: KindObjectID, oidVal: id} }
func DocumentValue(d *Document) Value { return Value{kind: KindDocument, docVal: d} }
func Array(vs ...Value) Value      { return Value{kind: KindArray, arrVal: vs} }

func (v Value) AsBool() (bool, bool)   { return v.boolVal, v.kind == KindBool }
func (v Value) AsInt32() (int32, bool) { return v.int32Val, v.kind == KindInt32 }
func (v Value) AsInt64() (int64, bool) { return v.int64Val, v.kind == KindInt64 }

// AsFloat64 widens any numeric kind (int32/int64/double/decimal) to float64;
// ok is false for non-numeric kinds.
func (v Value) AsFloat64() (float64, bool) {
	switch v.kind {
	case KindInt32:
		return float64(v.int32Val), true
	case KindInt64:
		return float64(v.int64Val), true
	case KindDouble, KindDecimal:
		return v.doubleVal, true
	default:
		return 0, false
	}
}

func (v Value) AsString() (string, bool)     { return v.strVal, v.kind == KindString }
func (v Value) AsBinary() ([]byte, bool)      { return v.binVal, v.kind == KindBinary }
func (v Value) AsObjectID() (ObjectID, bool)  { return v.oidVal, v.kind == KindObjectID }
func (v Value) AsDocument() (*Document, bool) { return v.docVal, v.kind == KindDocument }
func (v Value) AsArray() ([]Value, bool)      { return v.arrVal, v.kind == KindArray }
func (v Value) AsDateTime() (time.Time, bool) { return v.timeVal, v.kind == KindDateTime }

// IsNumeric reports whether the value is one of the numeric kinds.
func (v Value) IsNumeric() bool {
	switch v.kind {
	case KindInt32, KindInt64, KindDouble, KindDecimal:
		return true
	default:
		return false
	}
}

// Equal compares two values element-wise; documents and arrays recurse and
// require matching key order (per spec §3: "documents compare element-wise
// and preserve key order").
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		// Numeric cross-kind comparison (e.g. int32(1) == double(1.0)) is
		// intentionally not performed here; callers needing that semantics
		// use EqualLoose.
		return false
	}

	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.boolVal == b.boolVal
	case KindInt32:
		return a.int32Val == b.int32Val
	case KindInt64:
		return a.int64Val == b.int64Val
	case KindDouble, KindDecimal:
		return a.doubleVal == b.doubleVal
	case KindString:
		return a.strVal == b.strVal
	case KindBinary:
		return string(a.binVal) == string(b.binVal)
	case KindTimestamp:
		return a.tsVal == b.tsVal
	case KindDateTime:
		return a.timeVal.Equal(b.timeVal)
	case KindObjectID:
		return a.oidVal == b.oidVal
	case KindDocument:
		return a.docVal.Equal(b.docVal)
	case KindArray:
		if len(a.arrVal) != len(b.arrVal) {
			return false
		}
		for i := range a.arrVal {
			if !Equal(a.arrVal[i], b.arrVal[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// EqualLoose compares two values the way a query filter does: numeric kinds
// compare by widened value, everything else falls back to Equal.
func EqualLoose(a, b Value) bool {
	if a.IsNumeric() && b.IsNumeric() {
		af, _ := a.AsFloat64()
		bf, _ := b.AsFloat64()
		return af == bf
	}
	return Equal(a, b)
}

// String renders a value for debugging/log fields; it is not the wire or
// JSON representation.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%v", v.boolVal)
	case KindInt32:
		return fmt.Sprintf("%d", v.int32Val)
	case KindInt64:
		return fmt.Sprintf("%d", v.int64Val)
	case KindDouble, KindDecimal:
		return fmt.Sprintf("%g", v.doubleVal)
	case KindString:
		return v.strVal
	case KindObjectID:
		return v.oidVal.Hex()
	case KindDocument:
		return v.docVal.String()
	case KindArray:
		return fmt.Sprintf("%v", v.arrVal)
	default:
		return v.kind.String()
	}
}
