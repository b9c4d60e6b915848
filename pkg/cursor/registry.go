// Package cursor implements the server-side cursor registry (spec §4.4):
// a thread-safe allocator of cursor identifiers mapping to the
// undelivered tail of a result batch, with first-batch / getMore /
// killCursors lifecycle and namespace binding. The mutex-guarded map
// shape mirrors the teacher's join-token registry.
package cursor

import (
	"sync"

	"github.com/jongodb/jongodb/pkg/bsontype"
	"github.com/jongodb/jongodb/pkg/log"
)

// entry is one open cursor's server-side state.
type entry struct {
	namespace string
	remaining []*bsontype.Document
}

// Registry allocates and tracks cursors. All three entry points
// (Open/GetMore/Kill) are serialized by a single mutex (spec §4.4, §5).
type Registry struct {
	mu      sync.Mutex
	cursors map[int64]*entry
	nextID  int64
}

// New builds an empty registry. The id allocator starts at 1 so that the
// first allocated id is never 0 (spec §3: "cursorId == 0 encodes
// exhausted").
func New() *Registry {
	return &Registry{
		cursors: make(map[int64]*entry),
		nextID:  1,
	}
}

// cloneBatch deep-clones each document so that handed-out batches cannot
// observe later store mutations (spec §4.4).
func cloneBatch(docs []*bsontype.Document) []*bsontype.Document {
	out := make([]*bsontype.Document, len(docs))
	for i, d := range docs {
		out[i] = d.Clone()
	}
	return out
}

// Open registers a new cursor over docs, bound to namespace ns, and
// returns the first batch bounded by firstBatchSize (0 or negative means
// unlimited — the whole result set is returned as the first batch).
// Returns id=0 when the first batch drains every document, per the
// registry's state machine (spec §4.4).
func (r *Registry) Open(ns string, docs []*bsontype.Document, firstBatchSize int) (id int64, firstBatch []*bsontype.Document) {
	cloned := cloneBatch(docs)

	size := len(cloned)
	if firstBatchSize > 0 && firstBatchSize < size {
		size = firstBatchSize
	}
	firstBatch = cloned[:size]
	remaining := cloned[size:]

	if len(remaining) == 0 {
		return 0, firstBatch
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id = r.allocateIDLocked()
	r.cursors[id] = &entry{namespace: ns, remaining: remaining}

	log.WithCursorID(id).Debug().Str("namespace", ns).Int("remaining", len(remaining)).Msg("cursor registered")
	return id, firstBatch
}

// allocateIDLocked finds an unused id by linear probing from the
// monotonically-advancing counter, wrapping at int64 max back to 1, and
// never issuing 0 (spec §4.4). Caller must hold r.mu.
func (r *Registry) allocateIDLocked() int64 {
	for {
		id := r.nextID
		if r.nextID == 1<<63-1 {
			r.nextID = 1
		} else {
			r.nextID++
		}
		if id == 0 {
			continue
		}
		if _, exists := r.cursors[id]; !exists {
			return id
		}
	}
}

// NotFound names the registry's not-found signal. GetMore does not return
// this value: it reports not-found through its ok result (false) when the
// cursor id is unknown or the namespace does not match the namespace the
// cursor was opened with (spec §4.4: "mismatched namespace or unknown id →
// not-found signal").
var NotFound = struct{}{}

// GetMore drains up to batchSize documents (0 or negative means
// unlimited) from the cursor. ok is false when the id is unknown or ns
// does not match; the caller (the GetMore handler) surfaces
// CursorNotFound (code 43) in that case.
func (r *Registry) GetMore(id int64, ns string, batchSize int) (batch []*bsontype.Document, exhausted bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.cursors[id]
	if !exists || e.namespace != ns {
		return nil, false, false
	}

	size := len(e.remaining)
	if batchSize > 0 && batchSize < size {
		size = batchSize
	}
	batch = e.remaining[:size]
	e.remaining = e.remaining[size:]

	if len(e.remaining) == 0 {
		delete(r.cursors, id)
		log.WithCursorID(id).Debug().Msg("cursor drained")
		return batch, true, true
	}
	return batch, false, true
}

// Kill removes the given cursor ids, partitioning them into killed and
// notFound (spec §4.4, invariant 4 of spec §8: killed ⊎ notFound = ids).
func (r *Registry) Kill(ns string, ids []int64) (killed, notFound []int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		if e, exists := r.cursors[id]; exists && e.namespace == ns {
			delete(r.cursors, id)
			killed = append(killed, id)
		} else {
			notFound = append(notFound, id)
		}
	}
	return killed, notFound
}

// Len reports the number of currently-registered cursors, for health and
// metrics reporting.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cursors)
}
