package txn

import (
	"strings"

	"github.com/jongodb/jongodb/pkg/bsontype"
	"github.com/jongodb/jongodb/pkg/cmderr"
	"github.com/jongodb/jongodb/pkg/store"
)

// Outcome is one of the dispatcher routing decisions the validator
// produces (spec §4.1, §4.5).
type Outcome int

const (
	NonTransactional Outcome = iota
	StartTransaction
	InTransaction
	CommitTransaction
	AbortTransaction
)

// Decision carries the routing outcome and, for transactional outcomes,
// the store view the handler must use.
type Decision struct {
	Outcome Outcome
	Store   store.TransactionalStore
}

// Coordinator is the transaction validator plus session pool (spec
// §4.5): it inspects a command's transaction metadata, drives the
// session pool's start/commit/abort transitions, and hands the
// dispatcher the store view to route the command to.
type Coordinator struct {
	pool *sessionPool
}

// NewCoordinator builds an empty coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{pool: newSessionPool()}
}

// Route implements the decision table of spec §4.5. global is the
// process-wide store; for non-transactional and commit/abort outcomes
// the caller keeps using global directly (commit already merged into
// it by the time Route returns).
func (c *Coordinator) Route(cmd *bsontype.Document, commandName string, global store.TransactionalStore) (Decision, *cmderr.CommandError) {
	lsidVal, hasLsid := cmd.Get("lsid")
	if !hasLsid {
		return Decision{Outcome: NonTransactional}, nil
	}
	lsid, isDoc := lsidVal.AsDocument()
	if !isDoc {
		return Decision{Outcome: NonTransactional}, nil
	}

	txnNumberVal, hasTxnNumber := cmd.Get("txnNumber")
	if !hasTxnNumber {
		return Decision{Outcome: NonTransactional}, nil
	}
	txnNumber, ok := asInt64(txnNumberVal)
	if !ok {
		return Decision{}, cmderr.New(cmderr.TypeMismatch, "txnNumber must be an integer")
	}

	key := sessionKey(lsid)
	name := strings.ToLower(commandName)

	switch name {
	case "committransaction":
		if err := c.commit(key, txnNumber, global); err != nil {
			return Decision{}, err
		}
		return Decision{Outcome: CommitTransaction}, nil
	case "aborttransaction":
		if err := c.abort(key, txnNumber); err != nil {
			return Decision{}, err
		}
		return Decision{Outcome: AbortTransaction}, nil
	}

	startTransaction, _ := cmd.Get("startTransaction")
	startFlag, _ := startTransaction.AsBool()

	if autocommitVal, hasAutocommit := cmd.Get("autocommit"); hasAutocommit {
		if autocommit, isBool := autocommitVal.AsBool(); isBool && autocommit {
			return Decision{}, cmderr.Errorf("transactional commands must have autocommit:false")
		}
	}

	if startFlag {
		snap, err := c.start(key, txnNumber, global)
		if err != nil {
			return Decision{}, err
		}
		return Decision{Outcome: StartTransaction, Store: snap}, nil
	}

	snap, err := c.get(key, txnNumber)
	if err != nil {
		return Decision{}, err
	}
	return Decision{Outcome: InTransaction, Store: snap}, nil
}

func asInt64(v bsontype.Value) (int64, bool) {
	if i, ok := v.AsInt64(); ok {
		return i, true
	}
	if i, ok := v.AsInt32(); ok {
		return int64(i), true
	}
	return 0, false
}

func (c *Coordinator) start(key string, txnNumber int64, global store.TransactionalStore) (store.TransactionalStore, *cmderr.CommandError) {
	c.pool.mu.Lock()
	defer c.pool.mu.Unlock()

	prior, exists := c.pool.sessions[key]
	if exists && txnNumber <= prior.txnNumber {
		return nil, cmderr.NoSuchTransactionError(txnNumber)
	}
	if exists && !prior.committed && !prior.aborted {
		return nil, cmderr.Errorf("Transaction %d is already in progress", prior.txnNumber)
	}

	snap := global.SnapshotForTransaction()
	c.pool.sessions[key] = &txnState{txnNumber: txnNumber, store: snap}
	return snap, nil
}

func (c *Coordinator) get(key string, txnNumber int64) (store.TransactionalStore, *cmderr.CommandError) {
	c.pool.mu.Lock()
	defer c.pool.mu.Unlock()

	state, exists := c.pool.sessions[key]
	if !exists || state.txnNumber != txnNumber {
		return nil, cmderr.NoSuchTransactionError(txnNumber)
	}
	if state.committed {
		return nil, cmderr.TransactionCommittedError()
	}
	if state.aborted {
		return nil, cmderr.NoSuchTransactionError(txnNumber)
	}
	return state.store, nil
}

func (c *Coordinator) commit(key string, txnNumber int64, global store.TransactionalStore) *cmderr.CommandError {
	c.pool.mu.Lock()
	defer c.pool.mu.Unlock()

	state, exists := c.pool.sessions[key]
	if !exists || state.txnNumber != txnNumber {
		return cmderr.WithLabels(
			cmderr.New(cmderr.NoSuchTransaction, "Given transaction number %d does not match any in-progress transactions", txnNumber),
			cmderr.UnknownTransactionCommitResult,
		)
	}
	if state.committed {
		return cmderr.TransactionCommittedError()
	}
	if state.aborted {
		return cmderr.WithLabels(
			cmderr.New(cmderr.NoSuchTransaction, "Given transaction number %d does not match any in-progress transactions", txnNumber),
			cmderr.UnknownTransactionCommitResult,
		)
	}

	global.PublishTransactionSnapshot(state.store)
	state.committed = true
	return nil
}

func (c *Coordinator) abort(key string, txnNumber int64) *cmderr.CommandError {
	c.pool.mu.Lock()
	defer c.pool.mu.Unlock()

	state, exists := c.pool.sessions[key]
	if !exists || state.txnNumber != txnNumber {
		return cmderr.NoSuchTransactionError(txnNumber)
	}
	if state.committed {
		return cmderr.TransactionCommittedError()
	}
	state.aborted = true
	state.store = nil
	return nil
}
