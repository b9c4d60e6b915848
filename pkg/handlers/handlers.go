// Package handlers implements the per-command handlers of spec §4.2: one
// responsibility each, validating in the fixed order (target, shared
// options, command-specific shape) before delegating to the store view
// handed in through dispatch.Request.
package handlers

import (
	"github.com/jongodb/jongodb/pkg/bsontype"
	"github.com/jongodb/jongodb/pkg/cmderr"
	"github.com/jongodb/jongodb/pkg/dispatch"
	"github.com/jongodb/jongodb/pkg/store"
	"github.com/jongodb/jongodb/pkg/validate"
)

// Register binds every handler in this package to its command name(s) on
// d, including the legacy "count" alias for CountDocuments (spec §4.2).
func Register(d *dispatch.Dispatcher) {
	d.Register("hello", Hello)
	d.Register("ismaster", Hello)
	d.Register("ping", Ping)
	d.Register("buildinfo", BuildInfo)
	d.Register("getparameter", GetParameter)

	d.Register("insert", Insert)
	d.Register("find", Find)
	d.Register("countdocuments", CountDocuments)
	d.Register("count", CountDocuments)
	d.Register("distinct", Distinct)
	d.Register("aggregate", Aggregate)

	d.Register("createindexes", CreateIndexes)
	d.Register("listindexes", ListIndexes)

	d.Register("update", Update)
	d.Register("delete", Delete)
	d.Register("replaceone", ReplaceOne)

	d.Register("findandmodify", FindAndModify)
	d.Register("findoneandupdate", FindOneAndUpdate)
	d.Register("findoneandreplace", FindOneAndReplace)
	d.Register("findoneanddelete", FindOneAndDelete)

	d.Register("bulkwrite", BulkWrite)

	d.Register("getmore", GetMore)
	d.Register("killcursors", KillCursors)
}

// namespace resolves the command's (database, collection) target into a
// store.Namespace, validating in the order spec §4.2 prescribes: target
// first, then shared option schemas.
func namespace(req *dispatch.Request) (store.Namespace, *cmderr.CommandError) {
	coll, err := validate.CollectionTarget(req.Command)
	if err != nil {
		return store.Namespace{}, err
	}
	if err := validate.SharedOptions(req.Command); err != nil {
		return store.Namespace{}, err
	}
	return store.Namespace{Database: req.Database, Collection: coll}, nil
}

// cursorResponse builds the {cursor: {id, ns, firstBatch|nextBatch}}
// shape of spec §6.
func cursorResponse(batchField string, id int64, ns string, batch []*bsontype.Document) *bsontype.Document {
	cursorDoc := bsontype.NewDocument()
	cursorDoc.Set("id", bsontype.Int64(id))
	cursorDoc.Set("ns", bsontype.String(ns))

	items := make([]bsontype.Value, len(batch))
	for i, d := range batch {
		items[i] = bsontype.DocumentValue(d)
	}
	cursorDoc.Set(batchField, bsontype.Array(items...))

	resp := bsontype.NewDocument()
	resp.Set("cursor", bsontype.DocumentValue(cursorDoc))
	return resp
}

// asInt64 widens an int32 or int64 value to int64; cursor ids and
// txnNumbers travel the wire as whichever int width their magnitude
// needs, so both are accepted wherever a long is expected.
func asInt64(v bsontype.Value) (int64, bool) {
	if i, ok := v.AsInt64(); ok {
		return i, true
	}
	if i, ok := v.AsInt32(); ok {
		return int64(i), true
	}
	return 0, false
}

// batchSize reads the optional cursor.batchSize option; 0 means
// unlimited (spec §4.2: "default: unlimited, collapsed to the result
// size").
func batchSize(cmd *bsontype.Document) (int, *cmderr.CommandError) {
	v, ok := cmd.Get("cursor")
	if !ok {
		return 0, nil
	}
	cursorOpts, isDoc := v.AsDocument()
	if !isDoc {
		return 0, cmderr.New(cmderr.TypeMismatch, "cursor must be a document")
	}
	size, err := validate.NonNegativeInt(cursorOpts, "batchSize", 0)
	if err != nil {
		return 0, err
	}
	return int(size), nil
}
