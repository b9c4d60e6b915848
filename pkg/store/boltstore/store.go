// Package boltstore is an optional persistent CommandStore adapter
// (spec §4.6), grounded on the teacher's bucket-per-entity BoltStore:
// one bbolt bucket holds each namespace's documents keyed by their _id,
// a sibling bucket holds that namespace's index metadata. It satisfies
// the same CommandStore interface as pkg/store/memstore, demonstrating
// the engine-facing interface is swappable; it does not implement
// TransactionalStore; transaction snapshot/merge semantics are an
// in-memory-only concern (spec §1 Non-goals: no on-disk WAL).
package boltstore

import (
	"encoding/json"
	"fmt"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/jongodb/jongodb/pkg/aggregation"
	"github.com/jongodb/jongodb/pkg/bsontype"
	"github.com/jongodb/jongodb/pkg/cmderr"
	"github.com/jongodb/jongodb/pkg/docupdate"
	"github.com/jongodb/jongodb/pkg/queryfilter"
	"github.com/jongodb/jongodb/pkg/store"
)

// Store is the bbolt-backed CommandStore. A single mutex serializes
// writer transactions the way the teacher's BoltStore methods each open
// their own db.Update, one at a time.
type Store struct {
	db *bolt.DB
	mu sync.Mutex
}

// Open opens (creating if absent) a bbolt database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

func dataBucketName(ns store.Namespace) []byte {
	return []byte("data:" + ns.String())
}

func indexBucketName(ns store.Namespace) []byte {
	return []byte("index:" + ns.String())
}

const indexListKey = "indexes"

// docKey renders a document's _id into a stable, collision-resistant
// bucket key across BSON kinds (spec GLOSSARY: "_id uniquely identifies
// a document within its collection").
func docKey(d *bsontype.Document) []byte {
	id, _ := d.Get("_id")
	return []byte(id.Kind().String() + ":" + id.String())
}

type indexRecord struct {
	Name               string `json:"name"`
	KeyJSON            []byte `json:"key"`
	Unique             bool   `json:"unique"`
	Sparse             bool   `json:"sparse"`
	PartialFilterJSON  []byte `json:"partialFilter,omitempty"`
	ExpireAfterSeconds *int32 `json:"expireAfterSeconds,omitempty"`
}

func toIndexRecord(req store.IndexRequest) (indexRecord, error) {
	keyJSON, err := bsontype.ToJSON(req.Key)
	if err != nil {
		return indexRecord{}, err
	}
	rec := indexRecord{
		Name:               req.Name,
		KeyJSON:            keyJSON,
		Unique:             req.Unique,
		Sparse:             req.Sparse,
		ExpireAfterSeconds: req.ExpireAfterSeconds,
	}
	if req.PartialFilterExpression != nil {
		pf, err := bsontype.ToJSON(req.PartialFilterExpression)
		if err != nil {
			return indexRecord{}, err
		}
		rec.PartialFilterJSON = pf
	}
	return rec, nil
}

func (r indexRecord) toMetadata(ns store.Namespace) (store.IndexMetadata, error) {
	key, err := bsontype.FromJSON(r.KeyJSON)
	if err != nil {
		return store.IndexMetadata{}, err
	}
	meta := store.IndexMetadata{
		Version:            2,
		Key:                key,
		Name:               r.Name,
		Namespace:          ns,
		Unique:             r.Unique,
		Sparse:             r.Sparse,
		ExpireAfterSeconds: r.ExpireAfterSeconds,
	}
	if len(r.PartialFilterJSON) > 0 {
		pf, err := bsontype.FromJSON(r.PartialFilterJSON)
		if err != nil {
			return store.IndexMetadata{}, err
		}
		meta.PartialFilterExpression = pf
	}
	return meta, nil
}

func loadIndexes(tx *bolt.Tx, ns store.Namespace) ([]indexRecord, error) {
	b := tx.Bucket(indexBucketName(ns))
	if b == nil {
		return nil, nil
	}
	raw := b.Get([]byte(indexListKey))
	if raw == nil {
		return nil, nil
	}
	var records []indexRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func saveIndexes(tx *bolt.Tx, ns store.Namespace, records []indexRecord) error {
	b, err := tx.CreateBucketIfNotExists(indexBucketName(ns))
	if err != nil {
		return err
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return b.Put([]byte(indexListKey), raw)
}

// loadDocs reads every document currently stored for ns.
func loadDocs(tx *bolt.Tx, ns store.Namespace) ([]*bsontype.Document, error) {
	b := tx.Bucket(dataBucketName(ns))
	if b == nil {
		return nil, nil
	}
	var docs []*bsontype.Document
	err := b.ForEach(func(_, v []byte) error {
		d, err := bsontype.FromJSON(v)
		if err != nil {
			return err
		}
		docs = append(docs, d)
		return nil
	})
	return docs, err
}

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

func checkUniqueConstraints(indexes []indexRecord, docs []*bsontype.Document, candidate *bsontype.Document, skipKey []byte, ns store.Namespace) *cmderr.CommandError {
	for _, idx := range indexes {
		if !idx.Unique {
			continue
		}
		keySpec, err := bsontype.FromJSON(idx.KeyJSON)
		if err != nil {
			continue
		}
		candidateKey := uniqueKeyFor(keySpec, candidate)
		if candidateKey == "" {
			continue
		}
		for _, existing := range docs {
			if skipKey != nil && string(docKey(existing)) == string(skipKey) {
				continue
			}
			if uniqueKeyFor(keySpec, existing) == candidateKey {
				return cmderr.DuplicateKeyError(ns.String(), idx.Name)
			}
		}
	}
	return nil
}

// Insert implements store.CommandStore.
func (s *Store) Insert(ns store.Namespace, docs []*bsontype.Document) (int, *cmderr.CommandError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(dataBucketName(ns))
		if err != nil {
			return err
		}
		indexes, err := loadIndexes(tx, ns)
		if err != nil {
			return err
		}
		existing, err := loadDocs(tx, ns)
		if err != nil {
			return err
		}

		for _, d := range docs {
			if _, exists := d.Get("_id"); !exists {
				d = d.Clone()
				d.Set("_id", bsontype.ObjectIDValue(bsontype.NewObjectID()))
			}
			if cmdErr := checkUniqueConstraints(indexes, existing, d, nil, ns); cmdErr != nil {
				return cmdErr
			}
			raw, jsonErr := bsontype.ToJSON(d)
			if jsonErr != nil {
				return jsonErr
			}
			if putErr := b.Put(docKey(d), raw); putErr != nil {
				return putErr
			}
			existing = append(existing, d)
			inserted++
		}
		return nil
	})
	if err != nil {
		if cmdErr, ok := err.(*cmderr.CommandError); ok {
			return inserted, cmdErr
		}
		return inserted, cmderr.Errorf("insert: %v", err)
	}
	return inserted, nil
}

// Find implements store.CommandStore.
func (s *Store) Find(ns store.Namespace, filter *bsontype.Document) ([]*bsontype.Document, *cmderr.CommandError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*bsontype.Document
	err := s.db.View(func(tx *bolt.Tx) error {
		docs, err := loadDocs(tx, ns)
		if err != nil {
			return err
		}
		for _, d := range docs {
			if queryfilter.Match(filter, d) {
				out = append(out, d)
			}
		}
		return nil
	})
	if err != nil {
		return nil, cmderr.Errorf("find: %v", err)
	}
	return out, nil
}

// Aggregate implements store.CommandStore, delegating stage evaluation
// to the shared aggregation engine and writing $out/$merge results back
// through Insert-style bucket replacement.
func (s *Store) Aggregate(ns store.Namespace, pipeline []*bsontype.Document) ([]*bsontype.Document, *cmderr.CommandError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var docs []*bsontype.Document
	var result []*bsontype.Document
	txErr := s.db.Update(func(tx *bolt.Tx) error {
		loaded, err := loadDocs(tx, ns)
		if err != nil {
			return err
		}
		docs = loaded

		for i, stageDoc := range pipeline {
			stageName, _ := stageDoc.FirstKey()
			isLast := i == len(pipeline)-1

			switch stageName {
			case "$out", "$merge":
				if !isLast {
					return cmderr.Errorf("%s is only valid as the final stage in a pipeline", stageName)
				}
				target, cmdErr := aggregation.OutTarget(ns.Database, stageDoc, stageName)
				if cmdErr != nil {
					return cmdErr
				}
				targetBucket, err := tx.CreateBucketIfNotExists(dataBucketName(target))
				if err != nil {
					return err
				}
				if err := targetBucket.ForEach(func(k, _ []byte) error {
					return targetBucket.Delete(k)
				}); err != nil {
					return err
				}
				for _, d := range docs {
					raw, err := bsontype.ToJSON(d)
					if err != nil {
						return err
					}
					if err := targetBucket.Put(docKey(d), raw); err != nil {
						return err
					}
				}
				result = docs
				return nil
			default:
				var cmdErr *cmderr.CommandError
				docs, cmdErr = aggregation.ApplyStage(stageName, stageDoc, docs)
				if cmdErr != nil {
					return cmdErr
				}
			}
		}
		result = docs
		return nil
	})
	if txErr != nil {
		if cmdErr, ok := txErr.(*cmderr.CommandError); ok {
			return nil, cmdErr
		}
		return nil, cmderr.Errorf("aggregate: %v", txErr)
	}
	return result, nil
}

// CreateIndexes implements store.CommandStore.
func (s *Store) CreateIndexes(ns store.Namespace, indexes []store.IndexRequest) (int, int, *cmderr.CommandError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var before, after int
	err := s.db.Update(func(tx *bolt.Tx) error {
		existing, err := loadIndexes(tx, ns)
		if err != nil {
			return err
		}
		before = len(existing)
		byName := make(map[string]int, len(existing))
		for i, idx := range existing {
			byName[idx.Name] = i
		}

		for _, req := range indexes {
			rec, err := toIndexRecord(req)
			if err != nil {
				return err
			}
			if i, exists := byName[req.Name]; exists {
				existing[i] = rec
				continue
			}
			existing = append(existing, rec)
			byName[req.Name] = len(existing) - 1
		}

		after = len(existing)
		return saveIndexes(tx, ns, existing)
	})
	if err != nil {
		if cmdErr, ok := err.(*cmderr.CommandError); ok {
			return before, before, cmdErr
		}
		return before, before, cmderr.Errorf("createIndexes: %v", err)
	}
	return before, after, nil
}

// ListIndexes implements store.CommandStore.
func (s *Store) ListIndexes(ns store.Namespace) ([]store.IndexMetadata, *cmderr.CommandError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.IndexMetadata
	err := s.db.View(func(tx *bolt.Tx) error {
		records, err := loadIndexes(tx, ns)
		if err != nil {
			return err
		}
		for _, r := range records {
			meta, err := r.toMetadata(ns)
			if err != nil {
				return err
			}
			out = append(out, meta)
		}
		return nil
	})
	if err != nil {
		return nil, cmderr.Errorf("listIndexes: %v", err)
	}
	return out, nil
}

// Delete implements store.CommandStore.
func (s *Store) Delete(ns store.Namespace, deletes []store.DeleteSpec) (int, *cmderr.CommandError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(dataBucketName(ns))
		if b == nil {
			return nil
		}
		docs, err := loadDocs(tx, ns)
		if err != nil {
			return err
		}
		for _, spec := range deletes {
			specDeleted := 0
			for _, d := range docs {
				if spec.Limit != 0 && specDeleted >= spec.Limit {
					break
				}
				if !queryfilter.Match(spec.Filter, d) {
					continue
				}
				if err := b.Delete(docKey(d)); err != nil {
					return err
				}
				deleted++
				specDeleted++
			}
		}
		return nil
	})
	if err != nil {
		return deleted, cmderr.Errorf("delete: %v", err)
	}
	return deleted, nil
}

// Update implements store.CommandStore.
func (s *Store) Update(ns store.Namespace, updates []store.UpdateSpec) (store.UpdateResult, *cmderr.CommandError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := store.UpdateResult{}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(dataBucketName(ns))
		if err != nil {
			return err
		}
		indexes, err := loadIndexes(tx, ns)
		if err != nil {
			return err
		}
		docs, err := loadDocs(tx, ns)
		if err != nil {
			return err
		}

		for _, spec := range updates {
			matched := 0
			for _, d := range docs {
				if !queryfilter.Match(spec.Filter, d) {
					continue
				}
				matched++
				updated, cmdErr := applyUpdateSpec(d, spec, false)
				if cmdErr != nil {
					return cmdErr
				}
				if cmdErr := checkUniqueConstraints(indexes, docs, updated, docKey(d), ns); cmdErr != nil {
					return cmdErr
				}
				raw, jsonErr := bsontype.ToJSON(updated)
				if jsonErr != nil {
					return jsonErr
				}
				if err := b.Delete(docKey(d)); err != nil {
					return err
				}
				if err := b.Put(docKey(updated), raw); err != nil {
					return err
				}
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
					seeded, cmdErr := docupdate.Apply(base, seed, nil, false, true)
					if cmdErr != nil {
						return cmdErr
					}
					base = seeded
				}
				upserted, cmdErr := applyUpdateSpec(base, spec, true)
				if cmdErr != nil {
					return cmdErr
				}
				if _, hasID := upserted.Get("_id"); !hasID {
					upserted.Set("_id", bsontype.ObjectIDValue(bsontype.NewObjectID()))
				}
				if cmdErr := checkUniqueConstraints(indexes, docs, upserted, nil, ns); cmdErr != nil {
					return cmdErr
				}
				raw, jsonErr := bsontype.ToJSON(upserted)
				if jsonErr != nil {
					return jsonErr
				}
				if err := b.Put(docKey(upserted), raw); err != nil {
					return err
				}
				docs = append(docs, upserted)
				id, _ := upserted.Get("_id")
				result.Upserted = append(result.Upserted, store.UpsertInfo{Index: len(result.Upserted), ID: id})
			}

			result.MatchedCount += matched
		}
		return nil
	})
	if err != nil {
		if cmdErr, ok := err.(*cmderr.CommandError); ok {
			return result, cmdErr
		}
		return result, cmderr.Errorf("update: %v", err)
	}
	return result, nil
}

// applyUpdateSpec routes spec through docupdate.ApplyPipeline when it
// carries a pipeline-style update, or the ordinary operator/replacement
// path otherwise, mirroring pkg/store/memstore's dispatch.
func applyUpdateSpec(doc *bsontype.Document, spec store.UpdateSpec, isInsert bool) (*bsontype.Document, *cmderr.CommandError) {
	if spec.Pipeline != nil {
		return docupdate.ApplyPipeline(doc, spec.Pipeline)
	}
	return docupdate.Apply(doc, spec.Update, spec.ArrayFilters, spec.IsReplacement, isInsert)
}

// filterLiterals extracts the equality-style fields of a filter to seed
// an upserted document, mirroring pkg/store/memstore's upsert seeding.
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
