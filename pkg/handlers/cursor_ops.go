package handlers

import (
	"github.com/jongodb/jongodb/pkg/bsontype"
	"github.com/jongodb/jongodb/pkg/cmderr"
	"github.com/jongodb/jongodb/pkg/dispatch"
	"github.com/jongodb/jongodb/pkg/store"
	"github.com/jongodb/jongodb/pkg/validate"
)

// GetMore implements getMore (spec §4.2, §4.4). Unlike most commands,
// the first key's value is the cursor id (an int64), not the collection
// name; the target collection is instead the "collection" field.
func GetMore(req *dispatch.Request) (*bsontype.Document, *cmderr.CommandError) {
	if err := validate.SharedOptions(req.Command); err != nil {
		return nil, err
	}

	name, _ := validate.CommandName(req.Command)
	idVal, _ := req.Command.Get(name)
	id, ok := asInt64(idVal)
	if !ok {
		return nil, cmderr.New(cmderr.TypeMismatch, "getMore argument must be a long")
	}

	collVal, ok := req.Command.Get("collection")
	if !ok {
		return nil, cmderr.Errorf("collection is required")
	}
	coll, isStr := collVal.AsString()
	if !isStr || coll == "" {
		return nil, cmderr.New(cmderr.TypeMismatch, "collection must be a non-empty string")
	}
	ns := store.Namespace{Database: req.Database, Collection: coll}

	size, err := validate.NonNegativeInt(req.Command, "batchSize", 0)
	if err != nil {
		return nil, err
	}

	batch, exhausted, found := req.Cursors.GetMore(id, ns.String(), int(size))
	if !found {
		return nil, cmderr.CursorNotFoundError(id)
	}

	nextID := id
	if exhausted {
		nextID = 0
	}
	return cursorResponse("nextBatch", nextID, ns.String(), batch), nil
}

// KillCursors implements killCursors (spec §4.2, §4.4).
func KillCursors(req *dispatch.Request) (*bsontype.Document, *cmderr.CommandError) {
	coll, err := validate.CollectionTarget(req.Command)
	if err != nil {
		return nil, err
	}
	ns := store.Namespace{Database: req.Database, Collection: coll}

	idsVal, ok := req.Command.Get("cursors")
	if !ok {
		return nil, cmderr.Errorf("cursors is required")
	}
	arr, isArr := idsVal.AsArray()
	if !isArr {
		return nil, cmderr.New(cmderr.TypeMismatch, "cursors must be an array")
	}
	ids := make([]int64, len(arr))
	for i, v := range arr {
		id, isInt := asInt64(v)
		if !isInt {
			return nil, cmderr.New(cmderr.TypeMismatch, "cursors.%d must be a long", i)
		}
		ids[i] = id
	}

	killed, notFound := req.Cursors.Kill(ns.String(), ids)

	resp := bsontype.NewDocument()
	resp.Set("cursorsKilled", int64Array(killed))
	resp.Set("cursorsNotFound", int64Array(notFound))
	resp.Set("cursorsAlive", bsontype.Array())
	resp.Set("cursorsUnknown", bsontype.Array())
	return resp, nil
}

func int64Array(ids []int64) bsontype.Value {
	vals := make([]bsontype.Value, len(ids))
	for i, id := range ids {
		vals[i] = bsontype.Int64(id)
	}
	return bsontype.Array(vals...)
}
