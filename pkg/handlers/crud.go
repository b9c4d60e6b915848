package handlers

import (
	"github.com/jongodb/jongodb/pkg/bsontype"
	"github.com/jongodb/jongodb/pkg/cmderr"
	"github.com/jongodb/jongodb/pkg/dispatch"
	"github.com/jongodb/jongodb/pkg/store"
	"github.com/jongodb/jongodb/pkg/validate"
)

// Insert implements the insert command (spec §4.2, §4.6).
func Insert(req *dispatch.Request) (*bsontype.Document, *cmderr.CommandError) {
	ns, err := namespace(req)
	if err != nil {
		return nil, err
	}

	docsVal, ok := req.Command.Get("documents")
	if !ok {
		return nil, cmderr.Errorf("documents is required")
	}
	arr, isArr := docsVal.AsArray()
	if !isArr || len(arr) == 0 {
		return nil, cmderr.Errorf("documents must be a non-empty array")
	}
	docs := make([]*bsontype.Document, len(arr))
	for i, v := range arr {
		d, isDoc := v.AsDocument()
		if !isDoc {
			return nil, cmderr.New(cmderr.TypeMismatch, "documents.%d must be a document", i)
		}
		docs[i] = d
	}

	n, storeErr := req.Store.Insert(ns, docs)
	if storeErr != nil {
		return nil, storeErr
	}

	resp := bsontype.NewDocument()
	resp.Set("n", bsontype.Int32(int32(n)))
	return resp, nil
}

// Find implements the find command (spec §4.2, §4.6): opens a cursor over
// the matching documents and returns its first batch.
func Find(req *dispatch.Request) (*bsontype.Document, *cmderr.CommandError) {
	ns, err := namespace(req)
	if err != nil {
		return nil, err
	}

	filter, err := optionalFilter(req.Command)
	if err != nil {
		return nil, err
	}

	size, err := batchSize(req.Command)
	if err != nil {
		return nil, err
	}

	matches, storeErr := req.Store.Find(ns, filter)
	if storeErr != nil {
		return nil, storeErr
	}

	id, firstBatch := req.Cursors.Open(ns.String(), matches, size)
	return cursorResponse("firstBatch", id, ns.String(), firstBatch), nil
}

// optionalFilter reads the "filter" field, falling back to the legacy
// "query" alias (spec §4.2: "filter/query alias").
func optionalFilter(cmd *bsontype.Document) (*bsontype.Document, *cmderr.CommandError) {
	if v, ok := cmd.Get("filter"); ok {
		doc, isDoc := v.AsDocument()
		if !isDoc {
			return nil, cmderr.New(cmderr.TypeMismatch, "filter must be a document")
		}
		return doc, nil
	}
	if v, ok := cmd.Get("query"); ok {
		doc, isDoc := v.AsDocument()
		if !isDoc {
			return nil, cmderr.New(cmderr.TypeMismatch, "query must be a document")
		}
		return doc, nil
	}
	return nil, nil
}

// Update implements the update command (spec §4.2, §4.6).
func Update(req *dispatch.Request) (*bsontype.Document, *cmderr.CommandError) {
	ns, err := namespace(req)
	if err != nil {
		return nil, err
	}

	updatesVal, ok := req.Command.Get("updates")
	if !ok {
		return nil, cmderr.Errorf("updates is required")
	}
	arr, isArr := updatesVal.AsArray()
	if !isArr || len(arr) == 0 {
		return nil, cmderr.Errorf("updates must be a non-empty array")
	}

	specs := make([]store.UpdateSpec, len(arr))
	for i, v := range arr {
		entry, isDoc := v.AsDocument()
		if !isDoc {
			return nil, cmderr.New(cmderr.TypeMismatch, "updates.%d must be a document", i)
		}
		spec, err := parseUpdateEntry(entry)
		if err != nil {
			return nil, err
		}
		specs[i] = spec
	}

	result, storeErr := req.Store.Update(ns, specs)
	if storeErr != nil {
		return nil, storeErr
	}

	resp := bsontype.NewDocument()
	resp.Set("n", bsontype.Int32(int32(result.MatchedCount)))
	resp.Set("nModified", bsontype.Int32(int32(result.ModifiedCount)))
	if len(result.Upserted) > 0 {
		resp.Set("upserted", upsertedArray(result.Upserted))
	}
	return resp, nil
}

func parseUpdateEntry(entry *bsontype.Document) (store.UpdateSpec, *cmderr.CommandError) {
	filter, err := validate.RequireDocument(entry, "q")
	if err != nil {
		return store.UpdateSpec{}, err
	}

	updateDoc, pipeline, err := validate.UpdateValue(entry, "u")
	if err != nil {
		return store.UpdateSpec{}, err
	}

	multi, _ := boolField(entry, "multi")
	upsert, _ := boolField(entry, "upsert")

	if pipeline != nil {
		if multi {
			return store.UpdateSpec{}, cmderr.Errorf("pipeline-style updates are not supported with multi:true")
		}
		return store.UpdateSpec{
			Filter:   filter,
			Pipeline: pipeline,
			Upsert:   upsert,
		}, nil
	}

	isReplacement := !validate.IsOperatorStyle(updateDoc)
	if isReplacement && multi {
		return store.UpdateSpec{}, cmderr.Errorf("replacement-style updates are not supported with multi:true")
	}

	var arrayFilters []*bsontype.Document
	if v, ok := entry.Get("arrayFilters"); ok {
		arr, isArr := v.AsArray()
		if !isArr {
			return store.UpdateSpec{}, cmderr.New(cmderr.TypeMismatch, "arrayFilters must be an array")
		}
		arrayFilters = make([]*bsontype.Document, len(arr))
		for i, af := range arr {
			afDoc, isDoc := af.AsDocument()
			if !isDoc {
				return store.UpdateSpec{}, cmderr.New(cmderr.TypeMismatch, "arrayFilters.%d must be a document", i)
			}
			arrayFilters[i] = afDoc
		}
	}

	return store.UpdateSpec{
		Filter:        filter,
		Update:        updateDoc,
		ArrayFilters:  arrayFilters,
		Multi:         multi,
		Upsert:        upsert,
		IsReplacement: isReplacement,
	}, nil
}

func boolField(doc *bsontype.Document, field string) (bool, *cmderr.CommandError) {
	v, ok := doc.Get(field)
	if !ok {
		return false, nil
	}
	b, isBool := v.AsBool()
	if !isBool {
		return false, cmderr.New(cmderr.TypeMismatch, "%s must be a boolean", field)
	}
	return b, nil
}

func upsertedArray(upserts []store.UpsertInfo) bsontype.Value {
	items := make([]bsontype.Value, len(upserts))
	for i, u := range upserts {
		d := bsontype.NewDocument()
		d.Set("index", bsontype.Int32(int32(u.Index)))
		d.Set("_id", u.ID)
		items[i] = bsontype.DocumentValue(d)
	}
	return bsontype.Array(items...)
}

// Delete implements the delete command (spec §4.2, §4.6).
func Delete(req *dispatch.Request) (*bsontype.Document, *cmderr.CommandError) {
	ns, err := namespace(req)
	if err != nil {
		return nil, err
	}

	deletesVal, ok := req.Command.Get("deletes")
	if !ok {
		return nil, cmderr.Errorf("deletes is required")
	}
	arr, isArr := deletesVal.AsArray()
	if !isArr || len(arr) == 0 {
		return nil, cmderr.Errorf("deletes must be a non-empty array")
	}

	specs := make([]store.DeleteSpec, len(arr))
	for i, v := range arr {
		entry, isDoc := v.AsDocument()
		if !isDoc {
			return nil, cmderr.New(cmderr.TypeMismatch, "deletes.%d must be a document", i)
		}
		filter, err := validate.RequireDocument(entry, "q")
		if err != nil {
			return nil, err
		}
		limit, err := validate.NonNegativeInt(entry, "limit", 0)
		if err != nil {
			return nil, err
		}
		if limit > 1 {
			return nil, cmderr.Errorf("deletes.%d.limit must be 0 or 1", i)
		}
		specs[i] = store.DeleteSpec{Filter: filter, Limit: int(limit)}
	}

	n, storeErr := req.Store.Delete(ns, specs)
	if storeErr != nil {
		return nil, storeErr
	}

	resp := bsontype.NewDocument()
	resp.Set("n", bsontype.Int32(int32(n)))
	return resp, nil
}

// ReplaceOne implements the driver-side replaceOne convenience command as
// a single non-multi replacement-style update (spec §4.2).
func ReplaceOne(req *dispatch.Request) (*bsontype.Document, *cmderr.CommandError) {
	ns, err := namespace(req)
	if err != nil {
		return nil, err
	}

	filter, err := validate.RequireDocument(req.Command, "filter")
	if err != nil {
		return nil, err
	}
	replacement, err := validate.RequireDocument(req.Command, "replacement")
	if err != nil {
		return nil, err
	}
	if validate.IsOperatorStyle(replacement) {
		return nil, cmderr.Errorf("replacement document must not contain top-level operator keys")
	}
	upsert, err := boolField(req.Command, "upsert")
	if err != nil {
		return nil, err
	}

	result, storeErr := req.Store.Update(ns, []store.UpdateSpec{
		{Filter: filter, Update: replacement, Upsert: upsert, IsReplacement: true},
	})
	if storeErr != nil {
		return nil, storeErr
	}

	resp := bsontype.NewDocument()
	resp.Set("matchedCount", bsontype.Int32(int32(result.MatchedCount)))
	resp.Set("modifiedCount", bsontype.Int32(int32(result.ModifiedCount)))
	if len(result.Upserted) > 0 {
		resp.Set("upsertedId", result.Upserted[0].ID)
	}
	return resp, nil
}
