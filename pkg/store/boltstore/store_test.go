package boltstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jongodb/jongodb/pkg/bsontype"
	"github.com/jongodb/jongodb/pkg/cmderr"
	"github.com/jongodb/jongodb/pkg/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jongodb.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ns(coll string) store.Namespace {
	return store.Namespace{Database: "test", Collection: coll}
}

func doc(t *testing.T, elems ...bsontype.Element) *bsontype.Document {
	t.Helper()
	d := bsontype.NewDocument()
	for _, e := range elems {
		d.Set(e.Key, e.Value)
	}
	return d
}

func TestInsertPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jongodb.db")

	s, err := Open(path)
	require.NoError(t, err)
	n, cmdErr := s.Insert(ns("widgets"), []*bsontype.Document{
		doc(t, bsontype.Element{Key: "sku", Value: bsontype.String("a")}),
	})
	require.Nil(t, cmdErr)
	assert.Equal(t, 1, n)
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	found, cmdErr := reopened.Find(ns("widgets"), nil)
	require.Nil(t, cmdErr)
	require.Len(t, found, 1)
	sku, _ := found[0].Get("sku")
	s2, _ := sku.AsString()
	assert.Equal(t, "a", s2)
}

func TestUniqueIndexRejectsDuplicate(t *testing.T) {
	s := openTestStore(t)

	_, _, cmdErr := s.CreateIndexes(ns("users"), []store.IndexRequest{
		{Name: "email_1", Key: doc(t, bsontype.Element{Key: "email", Value: bsontype.Int32(1)}), Unique: true},
	})
	require.Nil(t, cmdErr)

	_, cmdErr = s.Insert(ns("users"), []*bsontype.Document{
		doc(t, bsontype.Element{Key: "email", Value: bsontype.String("a@example.com")}),
	})
	require.Nil(t, cmdErr)

	_, cmdErr = s.Insert(ns("users"), []*bsontype.Document{
		doc(t, bsontype.Element{Key: "email", Value: bsontype.String("a@example.com")}),
	})
	require.NotNil(t, cmdErr)
	assert.Equal(t, cmderr.DuplicateKey, cmdErr.Code)
}

func TestUpdateSetAndFind(t *testing.T) {
	s := openTestStore(t)

	_, cmdErr := s.Insert(ns("accounts"), []*bsontype.Document{
		doc(t, bsontype.Element{Key: "_id", Value: bsontype.Int32(1)}, bsontype.Element{Key: "tier", Value: bsontype.Int32(1)}),
	})
	require.Nil(t, cmdErr)

	update := doc(t, bsontype.Element{Key: "$set", Value: bsontype.DocumentValue(doc(t, bsontype.Element{Key: "tier", Value: bsontype.Int32(2)}))})
	result, cmdErr := s.Update(ns("accounts"), []store.UpdateSpec{
		{Filter: doc(t, bsontype.Element{Key: "_id", Value: bsontype.Int32(1)}), Update: update},
	})
	require.Nil(t, cmdErr)
	assert.Equal(t, 1, result.ModifiedCount)

	found, cmdErr := s.Find(ns("accounts"), nil)
	require.Nil(t, cmdErr)
	require.Len(t, found, 1)
	tier, _ := found[0].Get("tier")
	n, _ := tier.AsInt32()
	assert.Equal(t, int32(2), n)
}

func TestDeleteRemovesMatchingDocument(t *testing.T) {
	s := openTestStore(t)

	_, cmdErr := s.Insert(ns("events"), []*bsontype.Document{
		doc(t, bsontype.Element{Key: "kind", Value: bsontype.String("a")}),
		doc(t, bsontype.Element{Key: "kind", Value: bsontype.String("b")}),
	})
	require.Nil(t, cmdErr)

	n, cmdErr := s.Delete(ns("events"), []store.DeleteSpec{
		{Filter: doc(t, bsontype.Element{Key: "kind", Value: bsontype.String("a")}), Limit: 0},
	})
	require.Nil(t, cmdErr)
	assert.Equal(t, 1, n)

	remaining, cmdErr := s.Find(ns("events"), nil)
	require.Nil(t, cmdErr)
	require.Len(t, remaining, 1)
}

func TestAggregateMatchAndOut(t *testing.T) {
	s := openTestStore(t)

	_, cmdErr := s.Insert(ns("orders"), []*bsontype.Document{
		doc(t, bsontype.Element{Key: "status", Value: bsontype.String("open")}),
		doc(t, bsontype.Element{Key: "status", Value: bsontype.String("closed")}),
	})
	require.Nil(t, cmdErr)

	pipeline := []*bsontype.Document{
		doc(t, bsontype.Element{Key: "$match", Value: bsontype.DocumentValue(doc(t, bsontype.Element{Key: "status", Value: bsontype.String("open")}))}),
		doc(t, bsontype.Element{Key: "$out", Value: bsontype.String("open_orders")}),
	}
	result, cmdErr := s.Aggregate(ns("orders"), pipeline)
	require.Nil(t, cmdErr)
	assert.Len(t, result, 1)

	written, cmdErr := s.Find(ns("open_orders"), nil)
	require.Nil(t, cmdErr)
	require.Len(t, written, 1)
}
