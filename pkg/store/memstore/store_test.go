package memstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jongodb/jongodb/pkg/bsontype"
	"github.com/jongodb/jongodb/pkg/cmderr"
	"github.com/jongodb/jongodb/pkg/store"
)

func ns(coll string) store.Namespace {
	return store.Namespace{Database: "test", Collection: coll}
}

func doc(t *testing.T, elems ...bsontype.Element) *bsontype.Document {
	t.Helper()
	return bsontype.NewDocument(elems...)
}

func TestInsertAndFind(t *testing.T) {
	s := New()
	n := ns("widgets")

	inserted, err := s.Insert(n, []*bsontype.Document{
		doc(t, bsontype.Element{Key: "name", Value: bsontype.String("a")}),
		doc(t, bsontype.Element{Key: "name", Value: bsontype.String("b")}),
	})
	require.Nil(t, err)
	assert.Equal(t, 2, inserted)

	found, err := s.Find(n, nil)
	require.Nil(t, err)
	assert.Len(t, found, 2)
	for _, d := range found {
		_, hasID := d.Get("_id")
		assert.True(t, hasID, "inserted documents get an auto-generated _id")
	}
}

func TestInsertPreservesSuppliedID(t *testing.T) {
	s := New()
	n := ns("widgets")

	id := bsontype.String("fixed-id")
	_, err := s.Insert(n, []*bsontype.Document{doc(t, bsontype.Element{Key: "_id", Value: id})})
	require.Nil(t, err)

	found, err := s.Find(n, doc(t, bsontype.Element{Key: "_id", Value: id}))
	require.Nil(t, err)
	require.Len(t, found, 1)
}

func TestUniqueIndexRejectsDuplicate(t *testing.T) {
	s := New()
	n := ns("users")

	before, after, err := s.CreateIndexes(n, []store.IndexRequest{
		{Name: "email_1", Key: doc(t, bsontype.Element{Key: "email", Value: bsontype.Int32(1)}), Unique: true},
	})
	require.Nil(t, err)
	assert.Equal(t, 0, before)
	assert.Equal(t, 1, after)

	_, err = s.Insert(n, []*bsontype.Document{
		doc(t, bsontype.Element{Key: "email", Value: bsontype.String("a@example.com")}),
	})
	require.Nil(t, err)

	_, err = s.Insert(n, []*bsontype.Document{
		doc(t, bsontype.Element{Key: "email", Value: bsontype.String("a@example.com")}),
	})
	require.NotNil(t, err)
	assert.Equal(t, cmderr.DuplicateKey, err.Code)
}

func TestUpdateSetAndMulti(t *testing.T) {
	s := New()
	n := ns("widgets")

	_, err := s.Insert(n, []*bsontype.Document{
		doc(t, bsontype.Element{Key: "kind", Value: bsontype.String("x")}),
		doc(t, bsontype.Element{Key: "kind", Value: bsontype.String("x")}),
		doc(t, bsontype.Element{Key: "kind", Value: bsontype.String("y")}),
	})
	require.Nil(t, err)

	result, err := s.Update(n, []store.UpdateSpec{
		{
			Filter: doc(t, bsontype.Element{Key: "kind", Value: bsontype.String("x")}),
			Update: doc(t, bsontype.Element{Key: "$set", Value: bsontype.DocumentValue(
				doc(t, bsontype.Element{Key: "flag", Value: bsontype.Bool(true)}),
			)}),
			Multi: true,
		},
	})
	require.Nil(t, err)
	assert.Equal(t, 2, result.MatchedCount)
	assert.Equal(t, 2, result.ModifiedCount)

	found, err := s.Find(n, doc(t, bsontype.Element{Key: "flag", Value: bsontype.Bool(true)}))
	require.Nil(t, err)
	assert.Len(t, found, 2)
}

func TestUpdateUpsertInsertsWhenNoMatch(t *testing.T) {
	s := New()
	n := ns("widgets")

	result, err := s.Update(n, []store.UpdateSpec{
		{
			Filter: doc(t, bsontype.Element{Key: "sku", Value: bsontype.String("abc")}),
			Update: doc(t, bsontype.Element{Key: "$set", Value: bsontype.DocumentValue(
				doc(t, bsontype.Element{Key: "qty", Value: bsontype.Int32(5)}),
			)}),
			Upsert: true,
		},
	})
	require.Nil(t, err)
	assert.Equal(t, 0, result.MatchedCount)
	require.Len(t, result.Upserted, 1)

	found, err := s.Find(n, nil)
	require.Nil(t, err)
	require.Len(t, found, 1)
	sku, _ := found[0].Get("sku")
	v, _ := sku.AsString()
	assert.Equal(t, "abc", v)
}

func TestDeletePerSpecLimit(t *testing.T) {
	s := New()
	n := ns("widgets")

	_, err := s.Insert(n, []*bsontype.Document{
		doc(t, bsontype.Element{Key: "kind", Value: bsontype.String("x")}),
		doc(t, bsontype.Element{Key: "kind", Value: bsontype.String("x")}),
		doc(t, bsontype.Element{Key: "kind", Value: bsontype.String("x")}),
	})
	require.Nil(t, err)

	deleted, err := s.Delete(n, []store.DeleteSpec{
		{Filter: doc(t, bsontype.Element{Key: "kind", Value: bsontype.String("x")}), Limit: 1},
	})
	require.Nil(t, err)
	assert.Equal(t, 1, deleted)

	found, err := s.Find(n, nil)
	require.Nil(t, err)
	assert.Len(t, found, 2)
}

func TestTransactionSnapshotIsolationAndCommit(t *testing.T) {
	s := New()
	n := ns("accounts")

	_, err := s.Insert(n, []*bsontype.Document{
		doc(t, bsontype.Element{Key: "_id", Value: bsontype.String("a")}, bsontype.Element{Key: "balance", Value: bsontype.Int32(100)}),
	})
	require.Nil(t, err)

	snap := s.SnapshotForTransaction()

	_, err = snap.Update(n, []store.UpdateSpec{
		{
			Filter: doc(t, bsontype.Element{Key: "_id", Value: bsontype.String("a")}),
			Update: doc(t, bsontype.Element{Key: "$inc", Value: bsontype.DocumentValue(
				doc(t, bsontype.Element{Key: "balance", Value: bsontype.Int32(-50)}),
			)}),
		},
	})
	require.Nil(t, err)

	globalFound, err := s.Find(n, nil)
	require.Nil(t, err)
	globalBalance, _ := globalFound[0].Get("balance")
	gv, _ := globalBalance.AsInt32()
	assert.Equal(t, int32(100), gv, "uncommitted snapshot writes must not be visible globally")

	s.PublishTransactionSnapshot(snap)

	committedFound, err := s.Find(n, nil)
	require.Nil(t, err)
	committedBalance, _ := committedFound[0].Get("balance")
	cv, _ := committedBalance.AsInt32()
	assert.Equal(t, int32(50), cv, "committed snapshot writes must be visible globally")
}

func TestTransactionAbortDiscardsSnapshot(t *testing.T) {
	s := New()
	n := ns("accounts")

	_, err := s.Insert(n, []*bsontype.Document{
		doc(t, bsontype.Element{Key: "_id", Value: bsontype.String("a")}, bsontype.Element{Key: "balance", Value: bsontype.Int32(100)}),
	})
	require.Nil(t, err)

	snap := s.SnapshotForTransaction()
	_, err = snap.Update(n, []store.UpdateSpec{
		{
			Filter: doc(t, bsontype.Element{Key: "_id", Value: bsontype.String("a")}),
			Update: doc(t, bsontype.Element{Key: "$set", Value: bsontype.DocumentValue(
				doc(t, bsontype.Element{Key: "balance", Value: bsontype.Int32(0)}),
			)}),
		},
	})
	require.Nil(t, err)

	// Abort: simply never publish. The global store must be unaffected.
	found, err := s.Find(n, nil)
	require.Nil(t, err)
	balance, _ := found[0].Get("balance")
	v, _ := balance.AsInt32()
	assert.Equal(t, int32(100), v)
}

func TestTransactionUntouchedNamespacesReflectCurrentGlobal(t *testing.T) {
	s := New()
	touched := ns("touched")
	untouched := ns("untouched")

	_, err := s.Insert(untouched, []*bsontype.Document{
		doc(t, bsontype.Element{Key: "v", Value: bsontype.Int32(1)}),
	})
	require.Nil(t, err)

	snap := s.SnapshotForTransaction()
	_, err = snap.Insert(touched, []*bsontype.Document{
		doc(t, bsontype.Element{Key: "v", Value: bsontype.Int32(2)}),
	})
	require.Nil(t, err)

	// A concurrent global write lands on the untouched namespace while
	// the transaction is still open.
	_, err = s.Insert(untouched, []*bsontype.Document{
		doc(t, bsontype.Element{Key: "v", Value: bsontype.Int32(3)}),
	})
	require.Nil(t, err)

	s.PublishTransactionSnapshot(snap)

	found, err := s.Find(untouched, nil)
	require.Nil(t, err)
	assert.Len(t, found, 2, "untouched namespace keeps the current global state, not the transaction's stale baseline")
}

func TestAggregateMatchSortLimit(t *testing.T) {
	s := New()
	n := ns("scores")

	_, err := s.Insert(n, []*bsontype.Document{
		doc(t, bsontype.Element{Key: "player", Value: bsontype.String("a")}, bsontype.Element{Key: "score", Value: bsontype.Int32(10)}),
		doc(t, bsontype.Element{Key: "player", Value: bsontype.String("b")}, bsontype.Element{Key: "score", Value: bsontype.Int32(30)}),
		doc(t, bsontype.Element{Key: "player", Value: bsontype.String("c")}, bsontype.Element{Key: "score", Value: bsontype.Int32(20)}),
	})
	require.Nil(t, err)

	out, err := s.Aggregate(n, []*bsontype.Document{
		doc(t, bsontype.Element{Key: "$sort", Value: bsontype.DocumentValue(
			doc(t, bsontype.Element{Key: "score", Value: bsontype.Int32(-1)}),
		)}),
		doc(t, bsontype.Element{Key: "$limit", Value: bsontype.Int32(2)}),
	})
	require.Nil(t, err)
	require.Len(t, out, 2)
	first, _ := out[0].Get("player")
	fv, _ := first.AsString()
	assert.Equal(t, "b", fv)
}

func TestAggregateGroupSum(t *testing.T) {
	s := New()
	n := ns("orders")

	_, err := s.Insert(n, []*bsontype.Document{
		doc(t, bsontype.Element{Key: "customer", Value: bsontype.String("x")}, bsontype.Element{Key: "amount", Value: bsontype.Int32(10)}),
		doc(t, bsontype.Element{Key: "customer", Value: bsontype.String("x")}, bsontype.Element{Key: "amount", Value: bsontype.Int32(5)}),
		doc(t, bsontype.Element{Key: "customer", Value: bsontype.String("y")}, bsontype.Element{Key: "amount", Value: bsontype.Int32(7)}),
	})
	require.Nil(t, err)

	out, err := s.Aggregate(n, []*bsontype.Document{
		doc(t, bsontype.Element{Key: "$group", Value: bsontype.DocumentValue(
			doc(t,
				bsontype.Element{Key: "_id", Value: bsontype.String("$customer")},
				bsontype.Element{Key: "total", Value: bsontype.DocumentValue(
					doc(t, bsontype.Element{Key: "$sum", Value: bsontype.String("$amount")}),
				)},
			),
		)}),
	})
	require.Nil(t, err)
	require.Len(t, out, 2)

	totals := map[string]float64{}
	for _, d := range out {
		id, _ := d.Get("_id")
		idStr, _ := id.AsString()
		total, _ := d.Get("total")
		tv, _ := total.AsFloat64()
		totals[idStr] = tv
	}
	assert.Equal(t, 15.0, totals["x"])
	assert.Equal(t, 7.0, totals["y"])
}

func TestAggregateOutWritesDestinationCollection(t *testing.T) {
	s := New()
	src := ns("source")
	dst := ns("destination")

	_, err := s.Insert(src, []*bsontype.Document{
		doc(t, bsontype.Element{Key: "v", Value: bsontype.Int32(1)}),
	})
	require.Nil(t, err)

	_, err = s.Aggregate(src, []*bsontype.Document{
		doc(t, bsontype.Element{Key: "$out", Value: bsontype.String("destination")}),
	})
	require.Nil(t, err)

	found, err := s.Find(dst, nil)
	require.Nil(t, err)
	assert.Len(t, found, 1)
}

func TestAggregateOutMustBeFinalStage(t *testing.T) {
	s := New()
	n := ns("source")

	_, err := s.Aggregate(n, []*bsontype.Document{
		doc(t, bsontype.Element{Key: "$out", Value: bsontype.String("destination")}),
		doc(t, bsontype.Element{Key: "$limit", Value: bsontype.Int32(1)}),
	})
	require.NotNil(t, err)
}
