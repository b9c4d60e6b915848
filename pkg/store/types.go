// Package store defines the engine-facing CommandStore interface (spec
// §4.6): the thin translation between wire documents and the storage
// engine's native entities. pkg/store/memstore is the default in-memory
// adapter; pkg/store/boltstore is an optional persistent adapter
// demonstrating the interface is swappable.
package store

import (
	"github.com/jongodb/jongodb/pkg/bsontype"
	"github.com/jongodb/jongodb/pkg/cmderr"
)

// Namespace identifies a single collection within a database (spec
// GLOSSARY: "<database>.<collection>").
type Namespace struct {
	Database   string
	Collection string
}

func (n Namespace) String() string {
	return n.Database + "." + n.Collection
}

// IndexRequest is the input shape for CreateIndexes (spec §3).
type IndexRequest struct {
	Name                    string
	Key                     *bsontype.Document
	Unique                  bool
	Sparse                  bool
	PartialFilterExpression *bsontype.Document
	Collation               *bsontype.Document
	ExpireAfterSeconds      *int32
}

// IndexMetadata is the response shape for ListIndexes (spec §6).
type IndexMetadata struct {
	Version                 int32
	Key                     *bsontype.Document
	Name                    string
	Namespace               Namespace
	Unique                  bool
	Sparse                  bool
	PartialFilterExpression *bsontype.Document
	ExpireAfterSeconds      *int32
}

// ToDocument renders the listIndexes metadata document shape (spec §6).
func (m IndexMetadata) ToDocument() *bsontype.Document {
	d := bsontype.NewDocument()
	d.Set("v", bsontype.Int32(m.Version))
	d.Set("key", bsontype.DocumentValue(m.Key))
	d.Set("name", bsontype.String(m.Name))
	d.Set("ns", bsontype.String(m.Namespace.String()))
	if m.Unique {
		d.Set("unique", bsontype.Bool(true))
	}
	if m.Sparse {
		d.Set("sparse", bsontype.Bool(true))
	}
	if m.PartialFilterExpression != nil {
		d.Set("partialFilterExpression", bsontype.DocumentValue(m.PartialFilterExpression))
	}
	if m.ExpireAfterSeconds != nil {
		d.Set("expireAfterSeconds", bsontype.Int32(*m.ExpireAfterSeconds))
	}
	return d
}

// UpdateSpec is one entry of an Update call (spec §4.6: "multi, upsert,
// arrayFilters per entry").
type UpdateSpec struct {
	Filter *bsontype.Document
	Update *bsontype.Document
	// Pipeline holds a pipeline-style update (spec §4.2: an array of
	// $set/$unset stage documents) instead of Update. Exactly one of
	// Update or Pipeline is set; IsReplacement and ArrayFilters do not
	// apply to a pipeline update.
	Pipeline     []*bsontype.Document
	ArrayFilters []*bsontype.Document
	Multi        bool
	Upsert       bool
	// IsReplacement is true when Update is a replacement document
	// (non-operator-style) rather than an update-operator document.
	IsReplacement bool
}

// UpsertInfo records one upserted document's generated index/_id, per the
// CommandStore.update response shape (spec §4.6).
type UpsertInfo struct {
	Index int
	ID    bsontype.Value
}

// UpdateResult is the aggregate response of CommandStore.update.
type UpdateResult struct {
	MatchedCount  int
	ModifiedCount int
	Upserted      []UpsertInfo
}

// DeleteSpec is one entry of a Delete call (spec §4.6: "per-entry limit
// in {0, 1}").
type DeleteSpec struct {
	Filter *bsontype.Document
	Limit  int
}

// CommandStore is the engine-facing interface every handler delegates
// to (spec §4.6).
type CommandStore interface {
	Insert(ns Namespace, docs []*bsontype.Document) (insertedCount int, err *cmderr.CommandError)
	Find(ns Namespace, filter *bsontype.Document) ([]*bsontype.Document, *cmderr.CommandError)
	Aggregate(ns Namespace, pipeline []*bsontype.Document) ([]*bsontype.Document, *cmderr.CommandError)
	CreateIndexes(ns Namespace, indexes []IndexRequest) (numIndexesBefore, numIndexesAfter int, err *cmderr.CommandError)
	ListIndexes(ns Namespace) ([]IndexMetadata, *cmderr.CommandError)
	Update(ns Namespace, updates []UpdateSpec) (UpdateResult, *cmderr.CommandError)
	Delete(ns Namespace, deletes []DeleteSpec) (deletedCount int, err *cmderr.CommandError)
}

// TransactionalStore extends CommandStore with the snapshot lifecycle
// the transaction coordinator drives (spec §4.5, §4.6).
type TransactionalStore interface {
	CommandStore
	// SnapshotForTransaction returns an independent, mutable view on a
	// baseline captured at call time; subsequent global writes are not
	// observed by the returned view.
	SnapshotForTransaction() TransactionalStore
	// PublishTransactionSnapshot merges view back into the global store:
	// namespaces view touched replace the global's, untouched namespaces
	// are left as the global's current state (spec §4.5 merge
	// semantics). Called only on the store PublishTransactionSnapshot is
	// invoked on (the global store), with view being one of its own
	// snapshots.
	PublishTransactionSnapshot(view TransactionalStore)
}
