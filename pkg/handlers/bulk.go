package handlers

import (
	"github.com/jongodb/jongodb/pkg/bsontype"
	"github.com/jongodb/jongodb/pkg/cmderr"
	"github.com/jongodb/jongodb/pkg/dispatch"
	"github.com/jongodb/jongodb/pkg/store"
	"github.com/jongodb/jongodb/pkg/validate"
)

// BulkWrite implements the bulkWrite command (spec §4.2): only
// ordered=true is supported. Operations execute in order; on the first
// failure a writeErrors entry is appended and execution stops, while
// previously-successful counts are still returned.
func BulkWrite(req *dispatch.Request) (*bsontype.Document, *cmderr.CommandError) {
	ns, err := namespace(req)
	if err != nil {
		return nil, err
	}
	if _, err := validate.Ordered(req.Command); err != nil {
		return nil, err
	}

	opsVal, ok := req.Command.Get("ops")
	if !ok {
		return nil, cmderr.Errorf("ops is required")
	}
	ops, isArr := opsVal.AsArray()
	if !isArr || len(ops) == 0 {
		return nil, cmderr.Errorf("ops must be a non-empty array")
	}

	var nInserted, nMatched, nModified, nDeleted int
	var upserted []store.UpsertInfo
	var writeErrors []bsontype.Value

	for i, opVal := range ops {
		opDoc, isDoc := opVal.AsDocument()
		if !isDoc || opDoc.Len() != 1 {
			return nil, cmderr.New(cmderr.TypeMismatch, "ops.%d must be a single-key document", i)
		}
		opName := opDoc.Keys()[0]
		argsVal, _ := opDoc.Get(opName)
		args, isDoc := argsVal.AsDocument()
		if !isDoc {
			return nil, cmderr.New(cmderr.TypeMismatch, "ops.%d.%s must be a document", i, opName)
		}

		storeErr := executeBulkOp(req.Store, ns, opName, args, &nInserted, &nMatched, &nModified, &nDeleted, &upserted)
		if storeErr != nil {
			writeErrors = append(writeErrors, bulkWriteError(i, storeErr))
			break
		}
	}

	resp := bsontype.NewDocument()
	resp.Set("nInserted", bsontype.Int32(int32(nInserted)))
	resp.Set("nMatched", bsontype.Int32(int32(nMatched)))
	resp.Set("nModified", bsontype.Int32(int32(nModified)))
	resp.Set("nDeleted", bsontype.Int32(int32(nDeleted)))
	resp.Set("nUpserted", bsontype.Int32(int32(len(upserted))))
	if len(upserted) > 0 {
		resp.Set("upserted", upsertedArray(upserted))
	}
	if len(writeErrors) > 0 {
		resp.Set("writeErrors", bsontype.Array(writeErrors...))
	}
	return resp, nil
}

func executeBulkOp(s store.CommandStore, ns store.Namespace, opName string, args *bsontype.Document, nInserted, nMatched, nModified, nDeleted *int, upserted *[]store.UpsertInfo) *cmderr.CommandError {
	switch opName {
	case "insertOne":
		doc, err := validate.RequireDocument(args, "document")
		if err != nil {
			return err
		}
		n, storeErr := s.Insert(ns, []*bsontype.Document{doc})
		if storeErr != nil {
			return storeErr
		}
		*nInserted += n
		return nil

	case "updateOne", "updateMany":
		filter, err := validate.RequireDocument(args, "filter")
		if err != nil {
			return err
		}
		update, pipeline, err := validate.UpdateValue(args, "update")
		if err != nil {
			return err
		}
		upsert, err := boolField(args, "upsert")
		if err != nil {
			return err
		}
		multi := opName == "updateMany"
		if pipeline != nil && multi {
			return cmderr.Errorf("pipeline-style updates are not supported with multi:true")
		}
		spec := store.UpdateSpec{Filter: filter, Multi: multi, Upsert: upsert}
		if pipeline != nil {
			spec.Pipeline = pipeline
		} else {
			spec.Update = update
			spec.IsReplacement = !validate.IsOperatorStyle(update)
		}
		result, storeErr := s.Update(ns, []store.UpdateSpec{spec})
		if storeErr != nil {
			return storeErr
		}
		*nMatched += result.MatchedCount
		*nModified += result.ModifiedCount
		*upserted = append(*upserted, result.Upserted...)
		return nil

	case "replaceOne":
		filter, err := validate.RequireDocument(args, "filter")
		if err != nil {
			return err
		}
		replacement, err := validate.RequireDocument(args, "replacement")
		if err != nil {
			return err
		}
		upsert, err := boolField(args, "upsert")
		if err != nil {
			return err
		}
		result, storeErr := s.Update(ns, []store.UpdateSpec{
			{Filter: filter, Update: replacement, Upsert: upsert, IsReplacement: true},
		})
		if storeErr != nil {
			return storeErr
		}
		*nMatched += result.MatchedCount
		*nModified += result.ModifiedCount
		*upserted = append(*upserted, result.Upserted...)
		return nil

	case "deleteOne", "deleteMany":
		filter, err := validate.RequireDocument(args, "filter")
		if err != nil {
			return err
		}
		limit := 1
		if opName == "deleteMany" {
			limit = 0
		}
		n, storeErr := s.Delete(ns, []store.DeleteSpec{{Filter: filter, Limit: limit}})
		if storeErr != nil {
			return storeErr
		}
		*nDeleted += n
		return nil

	default:
		return cmderr.NotImplementedError("bulkWrite operation " + opName)
	}
}

func bulkWriteError(index int, err *cmderr.CommandError) bsontype.Value {
	d := bsontype.NewDocument()
	d.Set("index", bsontype.Int32(int32(index)))
	d.Set("code", bsontype.Int32(int32(err.Code)))
	d.Set("codeName", bsontype.String(err.Code.String()))
	d.Set("errmsg", bsontype.String(err.Errmsg))
	return bsontype.DocumentValue(d)
}
