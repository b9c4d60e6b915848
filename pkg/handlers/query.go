package handlers

import (
	"github.com/jongodb/jongodb/pkg/bsontype"
	"github.com/jongodb/jongodb/pkg/cmderr"
	"github.com/jongodb/jongodb/pkg/dispatch"
	"github.com/jongodb/jongodb/pkg/validate"
)

// CountDocuments implements countDocuments (and the legacy "count" name,
// spec §4.2): count = max(0, min(limit or ∞, |matches| − skip)).
func CountDocuments(req *dispatch.Request) (*bsontype.Document, *cmderr.CommandError) {
	ns, err := namespace(req)
	if err != nil {
		return nil, err
	}

	filter, err := optionalFilter(req.Command)
	if err != nil {
		return nil, err
	}

	skip, err := validate.NonNegativeInt(req.Command, "skip", 0)
	if err != nil {
		return nil, err
	}
	limit, err := validate.NonNegativeInt(req.Command, "limit", 0)
	if err != nil {
		return nil, err
	}

	matches, storeErr := req.Store.Find(ns, filter)
	if storeErr != nil {
		return nil, storeErr
	}

	count := len(matches) - int(skip)
	if count < 0 {
		count = 0
	}
	if limit > 0 && int64(count) > limit {
		count = int(limit)
	}

	resp := bsontype.NewDocument()
	resp.Set("n", bsontype.Int32(int32(count)))
	return resp, nil
}

// Distinct implements distinct (spec §4.2): evaluates a dotted field path
// against each matching document, traversing arrays element-wise, and
// deduplicates on (bsonType, literal value) while preserving first-seen
// order.
func Distinct(req *dispatch.Request) (*bsontype.Document, *cmderr.CommandError) {
	ns, err := namespace(req)
	if err != nil {
		return nil, err
	}

	v, hasKey := req.Command.Get("key")
	if !hasKey {
		return nil, cmderr.Errorf("key is required")
	}
	key, isStr := v.AsString()
	if !isStr || key == "" {
		return nil, cmderr.New(cmderr.TypeMismatch, "key must be a non-empty string")
	}

	filter, err := optionalFilter(req.Command)
	if err != nil {
		return nil, err
	}

	matches, storeErr := req.Store.Find(ns, filter)
	if storeErr != nil {
		return nil, storeErr
	}

	var values []bsontype.Value
	seen := make(map[string]bool)
	for _, d := range matches {
		for _, val := range d.GetPath(key) {
			dedupeKey := val.Kind().String() + ":" + val.String()
			if seen[dedupeKey] {
				continue
			}
			seen[dedupeKey] = true
			values = append(values, val)
		}
	}

	resp := bsontype.NewDocument()
	resp.Set("values", bsontype.Array(values...))
	return resp, nil
}

// Aggregate implements the aggregate command (spec §4.2, §4.6): opens a
// cursor over the pipeline's output documents.
func Aggregate(req *dispatch.Request) (*bsontype.Document, *cmderr.CommandError) {
	ns, err := namespace(req)
	if err != nil {
		return nil, err
	}

	pipelineVal, ok := req.Command.Get("pipeline")
	if !ok {
		return nil, cmderr.Errorf("pipeline is required")
	}
	arr, isArr := pipelineVal.AsArray()
	if !isArr {
		return nil, cmderr.New(cmderr.TypeMismatch, "pipeline must be an array")
	}
	stages := make([]*bsontype.Document, len(arr))
	for i, v := range arr {
		d, isDoc := v.AsDocument()
		if !isDoc {
			return nil, cmderr.New(cmderr.TypeMismatch, "pipeline.%d must be a document", i)
		}
		stages[i] = d
	}

	size, err := batchSize(req.Command)
	if err != nil {
		return nil, err
	}

	results, storeErr := req.Store.Aggregate(ns, stages)
	if storeErr != nil {
		return nil, storeErr
	}

	id, firstBatch := req.Cursors.Open(ns.String(), results, size)
	return cursorResponse("firstBatch", id, ns.String(), firstBatch), nil
}
