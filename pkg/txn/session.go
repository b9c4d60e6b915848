// Package txn implements session-keyed transactional snapshot isolation
// (spec §4.5): a pool of at most one in-progress transaction per session,
// each bound to an independent snapshot of the global store, with
// start/commit/abort state transitions and merge-on-commit semantics.
// The mutex-guarded map shape mirrors the cursor registry and the
// teacher's join-token registry.
package txn

import (
	"sync"

	"github.com/jongodb/jongodb/pkg/bsontype"
	"github.com/jongodb/jongodb/pkg/store"
)

// txnState is one session's transaction history. It survives commit/abort
// so monotonicity (spec invariant 7) and commit-idempotency detection
// (spec §8 concrete scenario) can still be checked after the transaction
// has ended.
type txnState struct {
	txnNumber int64
	store     store.TransactionalStore
	committed bool
	aborted   bool
}

// sessionPool maps a canonicalized lsid to its transaction history. One
// mutex guards the whole map (spec §5: "one mutex around the lsid →
// activeTransaction mapping").
type sessionPool struct {
	mu       sync.Mutex
	sessions map[string]*txnState
}

func newSessionPool() *sessionPool {
	return &sessionPool{sessions: make(map[string]*txnState)}
}

// sessionKey renders an lsid document to a stable map key. lsid is
// compared structurally (spec §3), and Document equality is order-
// sensitive, so a deterministic serialization that preserves key order
// is a valid structural key.
func sessionKey(lsid *bsontype.Document) string {
	b, err := bsontype.ToJSON(lsid)
	if err != nil {
		return lsid.String()
	}
	return string(b)
}
