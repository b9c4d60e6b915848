package handlers

import (
	"github.com/jongodb/jongodb/pkg/bsontype"
	"github.com/jongodb/jongodb/pkg/cmderr"
	"github.com/jongodb/jongodb/pkg/dispatch"
	"github.com/jongodb/jongodb/pkg/store"
	"github.com/jongodb/jongodb/pkg/validate"
)

// CreateIndexes implements createIndexes (spec §4.2, §4.6).
func CreateIndexes(req *dispatch.Request) (*bsontype.Document, *cmderr.CommandError) {
	ns, err := namespace(req)
	if err != nil {
		return nil, err
	}

	indexesVal, ok := req.Command.Get("indexes")
	if !ok {
		return nil, cmderr.Errorf("indexes is required")
	}
	arr, isArr := indexesVal.AsArray()
	if !isArr || len(arr) == 0 {
		return nil, cmderr.Errorf("indexes must be a non-empty array")
	}

	requests := make([]store.IndexRequest, len(arr))
	for i, v := range arr {
		entry, isDoc := v.AsDocument()
		if !isDoc {
			return nil, cmderr.New(cmderr.TypeMismatch, "indexes.%d must be a document", i)
		}
		req, err := parseIndexRequest(entry)
		if err != nil {
			return nil, err
		}
		requests[i] = req
	}

	before, after, storeErr := req.Store.CreateIndexes(ns, requests)
	if storeErr != nil {
		return nil, storeErr
	}

	resp := bsontype.NewDocument()
	resp.Set("numIndexesBefore", bsontype.Int32(int32(before)))
	resp.Set("numIndexesAfter", bsontype.Int32(int32(after)))
	return resp, nil
}

func parseIndexRequest(entry *bsontype.Document) (store.IndexRequest, *cmderr.CommandError) {
	keyVal, ok := entry.Get("key")
	if !ok {
		return store.IndexRequest{}, cmderr.Errorf("index key is required")
	}
	key, isDoc := keyVal.AsDocument()
	if !isDoc || key.Len() == 0 {
		return store.IndexRequest{}, cmderr.New(cmderr.TypeMismatch, "index key must be a non-empty document")
	}

	nameVal, ok := entry.Get("name")
	if !ok {
		return store.IndexRequest{}, cmderr.Errorf("index name is required")
	}
	name, isStr := nameVal.AsString()
	if !isStr || name == "" {
		return store.IndexRequest{}, cmderr.New(cmderr.TypeMismatch, "index name must be a non-empty string")
	}

	unique, err := boolField(entry, "unique")
	if err != nil {
		return store.IndexRequest{}, err
	}
	sparse, err := boolField(entry, "sparse")
	if err != nil {
		return store.IndexRequest{}, err
	}

	var partialFilter *bsontype.Document
	if v, ok := entry.Get("partialFilterExpression"); ok {
		doc, isDoc := v.AsDocument()
		if !isDoc {
			return store.IndexRequest{}, cmderr.New(cmderr.TypeMismatch, "partialFilterExpression must be a document")
		}
		partialFilter = doc
	}

	if err := validate.Collation(entry); err != nil {
		return store.IndexRequest{}, err
	}
	var collation *bsontype.Document
	if v, ok := entry.Get("collation"); ok {
		doc, _ := v.AsDocument()
		collation = doc
	}

	var expireAfter *int32
	if v, ok := entry.Get("expireAfterSeconds"); ok {
		i, isInt := v.AsInt32()
		if !isInt {
			return store.IndexRequest{}, cmderr.New(cmderr.TypeMismatch, "expireAfterSeconds must be an int32")
		}
		expireAfter = &i
	}

	return store.IndexRequest{
		Name:                    name,
		Key:                     key,
		Unique:                  unique,
		Sparse:                  sparse,
		PartialFilterExpression: partialFilter,
		Collation:               collation,
		ExpireAfterSeconds:      expireAfter,
	}, nil
}

// ListIndexes implements listIndexes (spec §4.2, §6).
func ListIndexes(req *dispatch.Request) (*bsontype.Document, *cmderr.CommandError) {
	ns, err := namespace(req)
	if err != nil {
		return nil, err
	}

	indexes, storeErr := req.Store.ListIndexes(ns)
	if storeErr != nil {
		return nil, storeErr
	}

	docs := make([]*bsontype.Document, len(indexes))
	for i, idx := range indexes {
		docs[i] = idx.ToDocument()
	}

	size, err := batchSize(req.Command)
	if err != nil {
		return nil, err
	}

	id, firstBatch := req.Cursors.Open(ns.String(), docs, size)
	return cursorResponse("firstBatch", id, ns.String(), firstBatch), nil
}
