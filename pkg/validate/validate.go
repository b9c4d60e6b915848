// Package validate holds the shared option validators and canonicalizer
// helpers every handler runs before delegating to the store (spec §4.3):
// database/primary-name extraction, ordered/writeConcern/readConcern/hint/
// collation validation, returnDocument parsing, and operator-style
// document detection.
package validate

import (
	"strings"

	"github.com/jongodb/jongodb/pkg/bsontype"
	"github.com/jongodb/jongodb/pkg/cmderr"
)

// DefaultDatabase is used when a command carries no $db field.
const DefaultDatabase = "test"

// Database reads $db off a command, defaulting to "test".
func Database(cmd *bsontype.Document) string {
	if v, ok := cmd.Get("$db"); ok {
		if s, ok := v.AsString(); ok && s != "" {
			return s
		}
	}
	return DefaultDatabase
}

// CommandName returns the command's first key, lowercased, per spec §4.1's
// "first key determines the handler after ASCII-lowercasing".
func CommandName(cmd *bsontype.Document) (string, bool) {
	name, ok := cmd.FirstKey()
	if !ok {
		return "", false
	}
	return strings.ToLower(name), true
}

// CollectionTarget reads the handler's target collection, which is the
// value of the command's first key (spec §3: "the collection or database
// target is the value of that key"). It must be a non-empty string.
func CollectionTarget(cmd *bsontype.Document) (string, *cmderr.CommandError) {
	key, ok := cmd.FirstKey()
	if !ok {
		return "", cmderr.Errorf("command document must not be empty")
	}
	v, _ := cmd.Get(key)
	s, isString := v.AsString()
	if !isString || s == "" {
		return "", cmderr.New(cmderr.TypeMismatch, "collection name has invalid type %s", v.Kind())
	}
	return s, nil
}

// Ordered validates the optional "ordered" field: only true is supported
// (spec §4.2 BulkWrite ordering, applied generically to any command that
// accepts the option).
func Ordered(cmd *bsontype.Document) (bool, *cmderr.CommandError) {
	v, ok := cmd.Get("ordered")
	if !ok {
		return true, nil
	}
	b, isBool := v.AsBool()
	if !isBool {
		return false, cmderr.New(cmderr.TypeMismatch, "ordered must be a boolean")
	}
	if !b {
		return false, cmderr.NotImplementedError("ordered=false (unordered bulk execution)")
	}
	return true, nil
}

// WriteConcern validates the optional "writeConcern" document shape:
// w (string or non-negative int), j (bool), wtimeout (non-negative int).
// The core does not act on write concern; it only validates the shape.
func WriteConcern(cmd *bsontype.Document) *cmderr.CommandError {
	v, ok := cmd.Get("writeConcern")
	if !ok {
		return nil
	}
	doc, isDoc := v.AsDocument()
	if !isDoc {
		return cmderr.New(cmderr.TypeMismatch, "writeConcern must be a document")
	}
	if w, ok := doc.Get("w"); ok {
		if _, isStr := w.AsString(); !isStr {
			if i, isInt := w.AsInt32(); !isInt || i < 0 {
				if i64, isInt64 := w.AsInt64(); !isInt64 || i64 < 0 {
					return cmderr.Errorf("writeConcern.w must be a string or non-negative integer")
				}
			}
		}
	}
	if j, ok := doc.Get("j"); ok {
		if _, isBool := j.AsBool(); !isBool {
			return cmderr.New(cmderr.TypeMismatch, "writeConcern.j must be a boolean")
		}
	}
	if wt, ok := doc.Get("wtimeout"); ok {
		if i, isInt := wt.AsInt32(); !isInt || i < 0 {
			if i64, isInt64 := wt.AsInt64(); !isInt64 || i64 < 0 {
				return cmderr.Errorf("writeConcern.wtimeout must be a non-negative integer")
			}
		}
	}
	return nil
}

// ReadConcern validates the optional "readConcern" document shape:
// level (string).
func ReadConcern(cmd *bsontype.Document) *cmderr.CommandError {
	v, ok := cmd.Get("readConcern")
	if !ok {
		return nil
	}
	doc, isDoc := v.AsDocument()
	if !isDoc {
		return cmderr.New(cmderr.TypeMismatch, "readConcern must be a document")
	}
	if level, ok := doc.Get("level"); ok {
		if _, isStr := level.AsString(); !isStr {
			return cmderr.New(cmderr.TypeMismatch, "readConcern.level must be a string")
		}
	}
	return nil
}

// Hint validates the optional "hint" field: string or non-empty document.
func Hint(cmd *bsontype.Document) *cmderr.CommandError {
	v, ok := cmd.Get("hint")
	if !ok {
		return nil
	}
	if _, isStr := v.AsString(); isStr {
		return nil
	}
	if doc, isDoc := v.AsDocument(); isDoc {
		if doc.Len() == 0 {
			return cmderr.Errorf("hint document must not be empty")
		}
		return nil
	}
	return cmderr.New(cmderr.TypeMismatch, "hint must be a string or a non-empty document")
}

// Collation validates the optional "collation" field: a document with a
// string "locale" field.
func Collation(cmd *bsontype.Document) *cmderr.CommandError {
	v, ok := cmd.Get("collation")
	if !ok {
		return nil
	}
	doc, isDoc := v.AsDocument()
	if !isDoc {
		return cmderr.New(cmderr.TypeMismatch, "collation must be a document")
	}
	locale, ok := doc.Get("locale")
	if !ok {
		return cmderr.Errorf("collation.locale is required")
	}
	if _, isStr := locale.AsString(); !isStr {
		return cmderr.New(cmderr.TypeMismatch, "collation.locale must be a string")
	}
	return nil
}

// SharedOptions runs the full shared-option validator chain in the fixed
// order spec §4.2 names: ordered, writeConcern, readConcern, hint,
// collation.
func SharedOptions(cmd *bsontype.Document) *cmderr.CommandError {
	if _, err := Ordered(cmd); err != nil {
		return err
	}
	if err := WriteConcern(cmd); err != nil {
		return err
	}
	if err := ReadConcern(cmd); err != nil {
		return err
	}
	if err := Hint(cmd); err != nil {
		return err
	}
	if err := Collation(cmd); err != nil {
		return err
	}
	return nil
}

// ReturnDocument is the canonical returnDocument choice for
// FindOneAndUpdate/FindOneAndReplace: return the document as it was
// "before" or "after" applying the write.
type ReturnDocument int

const (
	ReturnBefore ReturnDocument = iota
	ReturnAfter
)

// ParseReturnDocument reads "returnDocument" (string "before"/"after") or
// the legacy boolean "new" (true → after, false → before), per spec §4.2.
// Default is "before" when neither field is present.
func ParseReturnDocument(cmd *bsontype.Document) (ReturnDocument, *cmderr.CommandError) {
	if v, ok := cmd.Get("returnDocument"); ok {
		s, isStr := v.AsString()
		if !isStr {
			return ReturnBefore, cmderr.New(cmderr.TypeMismatch, "returnDocument must be a string")
		}
		switch s {
		case "before":
			return ReturnBefore, nil
		case "after":
			return ReturnAfter, nil
		default:
			return ReturnBefore, cmderr.Errorf("returnDocument must be 'before' or 'after', got %q", s)
		}
	}
	if v, ok := cmd.Get("new"); ok {
		b, isBool := v.AsBool()
		if !isBool {
			return ReturnBefore, cmderr.New(cmderr.TypeMismatch, "new must be a boolean")
		}
		if b {
			return ReturnAfter, nil
		}
		return ReturnBefore, nil
	}
	return ReturnBefore, nil
}

// IsOperatorStyle reports whether every top-level key of doc begins with
// '$' (spec GLOSSARY: "operator-style update").
func IsOperatorStyle(doc *bsontype.Document) bool {
	if doc == nil || doc.Len() == 0 {
		return false
	}
	for _, k := range doc.Keys() {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

// UpdateValue reads a required field that is either an update-operator or
// replacement document, or a pipeline-style update: an array of single-key
// stage documents (spec §4.2: "Pipeline-style updates accept only $set and
// $unset stages"). Exactly one of the two return values is non-nil; stage
// names other than $set/$unset are left for the caller/docupdate to reject.
func UpdateValue(cmd *bsontype.Document, field string) (doc *bsontype.Document, pipeline []*bsontype.Document, err *cmderr.CommandError) {
	v, ok := cmd.Get(field)
	if !ok {
		return nil, nil, cmderr.Errorf("%s is required", field)
	}
	if arr, isArr := v.AsArray(); isArr {
		stages := make([]*bsontype.Document, len(arr))
		for i, stage := range arr {
			stageDoc, isDoc := stage.AsDocument()
			if !isDoc {
				return nil, nil, cmderr.New(cmderr.TypeMismatch, "%s.%d must be a document", field, i)
			}
			stages[i] = stageDoc
		}
		return nil, stages, nil
	}
	d, isDoc := v.AsDocument()
	if !isDoc {
		return nil, nil, cmderr.New(cmderr.TypeMismatch, "%s must be a document or an array of pipeline stages", field)
	}
	return d, nil, nil
}

// RequireDocument reads a required document-typed field.
func RequireDocument(cmd *bsontype.Document, field string) (*bsontype.Document, *cmderr.CommandError) {
	v, ok := cmd.Get(field)
	if !ok {
		return nil, cmderr.Errorf("%s is required", field)
	}
	doc, isDoc := v.AsDocument()
	if !isDoc {
		return nil, cmderr.New(cmderr.TypeMismatch, "%s must be a document", field)
	}
	return doc, nil
}

// OptionalDocument reads an optional document-typed field, returning an
// empty document (never nil) when absent.
func OptionalDocument(cmd *bsontype.Document, field string) (*bsontype.Document, *cmderr.CommandError) {
	v, ok := cmd.Get(field)
	if !ok {
		return bsontype.NewDocument(), nil
	}
	doc, isDoc := v.AsDocument()
	if !isDoc {
		return nil, cmderr.New(cmderr.TypeMismatch, "%s must be a document", field)
	}
	return doc, nil
}

// NonNegativeInt reads an optional non-negative integer field, defaulting
// to def when absent.
func NonNegativeInt(cmd *bsontype.Document, field string, def int64) (int64, *cmderr.CommandError) {
	v, ok := cmd.Get(field)
	if !ok {
		return def, nil
	}
	if i, isInt := v.AsInt32(); isInt {
		if i < 0 {
			return 0, cmderr.Errorf("%s must be non-negative", field)
		}
		return int64(i), nil
	}
	if i, isInt := v.AsInt64(); isInt {
		if i < 0 {
			return 0, cmderr.Errorf("%s must be non-negative", field)
		}
		return i, nil
	}
	return 0, cmderr.New(cmderr.TypeMismatch, "%s must be an integer", field)
}
