// Package memstore is the default in-memory CommandStore adapter (spec
// §4.6): it keeps every collection as a plain slice of documents guarded
// by one mutex per store instance, grounded on the teacher's
// mutex-guarded BoltStore shape but holding data in memory rather than on
// disk (persistence is explicitly out of scope, spec §1 Non-goals).
package memstore

import (
	"sync"

	"github.com/jongodb/jongodb/pkg/aggregation"
	"github.com/jongodb/jongodb/pkg/bsontype"
	"github.com/jongodb/jongodb/pkg/cmderr"
	"github.com/jongodb/jongodb/pkg/docupdate"
	"github.com/jongodb/jongodb/pkg/store"
)

type collection struct {
	docs    []*bsontype.Document
	indexes []store.IndexMetadata
	// uniqueKeys tracks, per unique index name, the set of seen key
	// tuples (rendered to a comparable string) to detect duplicates.
	uniqueKeys map[string]map[string]bool
}

func newCollection() *collection {
	return &collection{uniqueKeys: make(map[string]map[string]bool)}
}

// Store is the in-memory engine. A zero-value touched map means this
// instance is the global store; a non-nil touched map means it is a
// transaction snapshot view tracking which namespaces it has written to
// (spec §4.5 merge semantics).
type Store struct {
	mu          sync.RWMutex
	collections map[store.Namespace]*collection
	touched     map[store.Namespace]bool
}

// New builds an empty global store.
func New() *Store {
	return &Store{collections: make(map[store.Namespace]*collection)}
}

func (s *Store) getOrCreate(ns store.Namespace) *collection {
	c, ok := s.collections[ns]
	if !ok {
		c = newCollection()
		s.collections[ns] = c
	}
	return c
}

func (s *Store) markTouched(ns store.Namespace) {
	if s.touched != nil {
		s.touched[ns] = true
	}
}

// Insert implements CommandStore.Insert.
func (s *Store) Insert(ns store.Namespace, docs []*bsontype.Document) (int, *cmderr.CommandError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.getOrCreate(ns)

	inserted := 0
	for _, d := range docs {
		if _, exists := d.Get("_id"); !exists {
			d = d.Clone()
			d.Set("_id", bsontype.ObjectIDValue(bsontype.NewObjectID()))
		}
		if err := checkUniqueConstraints(c, ns, d); err != nil {
			return inserted, err
		}
		c.docs = append(c.docs, d.Clone())
		recordUniqueKeys(c, d)
		inserted++
	}
	s.markTouched(ns)
	return inserted, nil
}

func checkUniqueConstraints(c *collection, ns store.Namespace, d *bsontype.Document) *cmderr.CommandError {
	for _, idx := range c.indexes {
		if !idx.Unique {
			continue
		}
		key := uniqueKeyFor(idx.Key, d)
		if key == "" {
			continue
		}
		if c.uniqueKeys[idx.Name] != nil && c.uniqueKeys[idx.Name][key] {
			return cmderr.DuplicateKeyError(ns.String(), idx.Name)
		}
	}
	return nil
}

func recordUniqueKeys(c *collection, d *bsontype.Document) {
	for _, idx := range c.indexes {
		if !idx.Unique {
			continue
		}
		key := uniqueKeyFor(idx.Key, d)
		if key == "" {
			continue
		}
		if c.uniqueKeys[idx.Name] == nil {
			c.uniqueKeys[idx.Name] = make(map[string]bool)
		}
		c.uniqueKeys[idx.Name][key] = true
	}
}

// uniqueKeyFor renders the document's values at the index's key paths
// into a comparable string; returns "" if any path is missing (sparse
// indexes don't enforce uniqueness for missing fields).
func uniqueKeyFor(keySpec *bsontype.Document, d *bsontype.Document) string {
	if keySpec == nil {
		return ""
	}
	out := ""
	for _, k := range keySpec.Keys() {
		v, ok := d.Get(k)
		if !ok {
			return ""
		}
		out += k + "=" + v.String() + ";"
	}
	return out
}

// Find implements CommandStore.Find, returning materialized matches in
// stable insertion order (spec §4.6: "stable engine order").
func (s *Store) Find(ns store.Namespace, filter *bsontype.Document) ([]*bsontype.Document, *cmderr.CommandError) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[ns]
	if !ok {
		return nil, nil
	}
	var out []*bsontype.Document
	for _, d := range c.docs {
		if matchFilter(filter, d) {
			out = append(out, d.Clone())
		}
	}
	return out, nil
}

// CreateIndexes implements CommandStore.CreateIndexes.
func (s *Store) CreateIndexes(ns store.Namespace, indexes []store.IndexRequest) (int, int, *cmderr.CommandError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.getOrCreate(ns)
	before := len(c.indexes)

	existing := make(map[string]store.IndexMetadata, len(c.indexes))
	for _, idx := range c.indexes {
		existing[idx.Name] = idx
	}

	for _, req := range indexes {
		if prior, exists := existing[req.Name]; exists {
			if !sameIndexDefinition(prior, req) {
				return before, before, cmderr.Errorf("index %q already exists with a different definition", req.Name)
			}
			continue
		}
		meta := store.IndexMetadata{
			Version:                 2,
			Key:                     req.Key,
			Name:                    req.Name,
			Namespace:               ns,
			Unique:                  req.Unique,
			Sparse:                  req.Sparse,
			PartialFilterExpression: req.PartialFilterExpression,
			ExpireAfterSeconds:      req.ExpireAfterSeconds,
		}
		c.indexes = append(c.indexes, meta)
		existing[req.Name] = meta

		if req.Unique {
			c.uniqueKeys[req.Name] = make(map[string]bool)
			for _, d := range c.docs {
				if key := uniqueKeyFor(req.Key, d); key != "" {
					c.uniqueKeys[req.Name][key] = true
				}
			}
		}
	}

	s.markTouched(ns)
	return before, len(c.indexes), nil
}

func sameIndexDefinition(a store.IndexMetadata, b store.IndexRequest) bool {
	return a.Key.Equal(b.Key) && a.Unique == b.Unique && a.Sparse == b.Sparse
}

// ListIndexes implements CommandStore.ListIndexes.
func (s *Store) ListIndexes(ns store.Namespace) ([]store.IndexMetadata, *cmderr.CommandError) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[ns]
	if !ok {
		return nil, nil
	}
	out := make([]store.IndexMetadata, len(c.indexes))
	copy(out, c.indexes)
	return out, nil
}

// Delete implements CommandStore.Delete.
func (s *Store) Delete(ns store.Namespace, deletes []store.DeleteSpec) (int, *cmderr.CommandError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[ns]
	if !ok {
		return 0, nil
	}

	deleted := 0
	for _, spec := range deletes {
		limit := spec.Limit
		specDeleted := 0
		var kept []*bsontype.Document
		for _, d := range c.docs {
			if (limit == 0 || specDeleted < limit) && matchFilter(spec.Filter, d) {
				deleted++
				specDeleted++
				continue
			}
			kept = append(kept, d)
		}
		c.docs = kept
	}
	if deleted > 0 {
		s.markTouched(ns)
	}
	return deleted, nil
}

// Update implements CommandStore.Update.
func (s *Store) Update(ns store.Namespace, updates []store.UpdateSpec) (store.UpdateResult, *cmderr.CommandError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.getOrCreate(ns)
	result := store.UpdateResult{}

	for _, spec := range updates {
		matched := 0
		for i, d := range c.docs {
			if !matchFilter(spec.Filter, d) {
				continue
			}
			matched++
			updated, err := applyUpdateSpec(d, spec, false)
			if err != nil {
				return result, err
			}
			if err := checkUniqueConstraintsForUpdate(c, ns, d, updated); err != nil {
				return result, err
			}
			c.docs[i] = updated
			result.ModifiedCount++
			if !spec.Multi {
				break
			}
		}

		if matched == 0 && spec.Upsert {
			base := bsontype.NewDocument()
			if spec.Pipeline == nil && !spec.IsReplacement {
				seed := bsontype.NewDocument()
				seed.Set("$set", bsontype.DocumentValue(filterLiterals(spec.Filter)))
				seeded, err := docupdate.Apply(base, seed, nil, false, true)
				if err != nil {
					return result, err
				}
				base = seeded
			}
			upserted, err := applyUpdateSpec(base, spec, true)
			if err != nil {
				return result, err
			}
			if _, hasID := upserted.Get("_id"); !hasID {
				upserted.Set("_id", bsontype.ObjectIDValue(bsontype.NewObjectID()))
			}
			if err := checkUniqueConstraints(c, ns, upserted); err != nil {
				return result, err
			}
			c.docs = append(c.docs, upserted)
			recordUniqueKeys(c, upserted)
			id, _ := upserted.Get("_id")
			result.Upserted = append(result.Upserted, store.UpsertInfo{Index: len(result.Upserted), ID: id})
		}

		result.MatchedCount += matched
	}

	if result.ModifiedCount > 0 || len(result.Upserted) > 0 {
		s.markTouched(ns)
	}
	return result, nil
}

// applyUpdateSpec routes spec through docupdate.ApplyPipeline when it
// carries a pipeline-style update, or the ordinary operator/replacement
// path otherwise.
func applyUpdateSpec(doc *bsontype.Document, spec store.UpdateSpec, isInsert bool) (*bsontype.Document, *cmderr.CommandError) {
	if spec.Pipeline != nil {
		return docupdate.ApplyPipeline(doc, spec.Pipeline)
	}
	return docupdate.Apply(doc, spec.Update, spec.ArrayFilters, spec.IsReplacement, isInsert)
}

// filterLiterals extracts the equality-style fields of a filter (plain
// value, not an operator document) to seed an upserted document, the way
// a real engine folds the query's literal equality clauses into the
// inserted document.
func filterLiterals(filter *bsontype.Document) *bsontype.Document {
	out := bsontype.NewDocument()
	if filter == nil {
		return out
	}
	for _, elem := range filter.Elements() {
		if _, isDoc := elem.Value.AsDocument(); isDoc {
			continue
		}
		out.Set(elem.Key, elem.Value)
	}
	return out
}

func checkUniqueConstraintsForUpdate(c *collection, ns store.Namespace, before, after *bsontype.Document) *cmderr.CommandError {
	for _, idx := range c.indexes {
		if !idx.Unique {
			continue
		}
		beforeKey := uniqueKeyFor(idx.Key, before)
		afterKey := uniqueKeyFor(idx.Key, after)
		if afterKey == "" || afterKey == beforeKey {
			continue
		}
		if c.uniqueKeys[idx.Name] != nil && c.uniqueKeys[idx.Name][afterKey] {
			return cmderr.DuplicateKeyError(ns.String(), idx.Name)
		}
	}
	for _, idx := range c.indexes {
		if !idx.Unique {
			continue
		}
		beforeKey := uniqueKeyFor(idx.Key, before)
		afterKey := uniqueKeyFor(idx.Key, after)
		if beforeKey != "" && c.uniqueKeys[idx.Name] != nil {
			delete(c.uniqueKeys[idx.Name], beforeKey)
		}
		if afterKey != "" {
			if c.uniqueKeys[idx.Name] == nil {
				c.uniqueKeys[idx.Name] = make(map[string]bool)
			}
			c.uniqueKeys[idx.Name][afterKey] = true
		}
	}
	return nil
}

// Aggregate implements CommandStore.Aggregate: each stage is evaluated in
// order by pkg/aggregation ($match, $sort, $skip, $limit, $group,
// $project), and $out/$merge are accepted at the final stage only
// (spec §4.6).
func (s *Store) Aggregate(ns store.Namespace, pipeline []*bsontype.Document) ([]*bsontype.Document, *cmderr.CommandError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[ns]
	var docs []*bsontype.Document
	if ok {
		docs = make([]*bsontype.Document, len(c.docs))
		for i, d := range c.docs {
			docs[i] = d.Clone()
		}
	}

	for i, stageDoc := range pipeline {
		stageName, _ := stageDoc.FirstKey()
		isLast := i == len(pipeline)-1

		switch stageName {
		case "$out", "$merge":
			if !isLast {
				return nil, cmderr.Errorf("%s is only valid as the final stage in a pipeline", stageName)
			}
			target, err := aggregation.OutTarget(ns.Database, stageDoc, stageName)
			if err != nil {
				return nil, err
			}
			out := s.getOrCreate(target)
			out.docs = make([]*bsontype.Document, len(docs))
			copy(out.docs, docs)
			s.markTouched(target)
			return docs, nil
		default:
			var err *cmderr.CommandError
			docs, err = aggregation.ApplyStage(stageName, stageDoc, docs)
			if err != nil {
				return nil, err
			}
		}
	}
	return docs, nil
}

// SnapshotForTransaction implements TransactionalStore.SnapshotForTransaction.
// It deep-copies every namespace's current state into a new, independent
// Store that does not observe subsequent global writes.
func (s *Store) SnapshotForTransaction() store.TransactionalStore {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Store{
		collections: make(map[store.Namespace]*collection, len(s.collections)),
		touched:     make(map[store.Namespace]bool),
	}
	for ns, c := range s.collections {
		snap.collections[ns] = cloneCollection(c)
	}
	return snap
}

func cloneCollection(c *collection) *collection {
	out := newCollection()
	out.docs = make([]*bsontype.Document, len(c.docs))
	for i, d := range c.docs {
		out.docs[i] = d.Clone()
	}
	out.indexes = append(out.indexes, c.indexes...)
	for name, keys := range c.uniqueKeys {
		cp := make(map[string]bool, len(keys))
		for k := range keys {
			cp[k] = true
		}
		out.uniqueKeys[name] = cp
	}
	return out
}

// PublishTransactionSnapshot implements
// TransactionalStore.PublishTransactionSnapshot. Only namespaces the
// snapshot touched replace the global's state; untouched namespaces are
// left exactly as the current global holds them (spec §4.5: "result =
// baseline ⊕ writes ... namespaces not in the transaction's write set are
// taken from the current global, not the baseline").
func (s *Store) PublishTransactionSnapshot(view store.TransactionalStore) {
	snap, ok := view.(*Store)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for ns := range snap.touched {
		if c, exists := snap.collections[ns]; exists {
			s.collections[ns] = c
		} else {
			delete(s.collections, ns)
		}
	}
}
