package memstore

import (
	"github.com/jongodb/jongodb/pkg/bsontype"
	"github.com/jongodb/jongodb/pkg/queryfilter"
)

// matchFilter delegates to the shared filter evaluator so every
// CommandStore adapter agrees on match semantics.
func matchFilter(filter *bsontype.Document, doc *bsontype.Document) bool {
	return queryfilter.Match(filter, doc)
}
