package handlers

import (
	"github.com/jongodb/jongodb/pkg/bsontype"
	"github.com/jongodb/jongodb/pkg/cmderr"
	"github.com/jongodb/jongodb/pkg/dispatch"
	"github.com/jongodb/jongodb/pkg/store"
	"github.com/jongodb/jongodb/pkg/validate"
)

// FindOneAndUpdate implements findOneAndUpdate (spec §4.2): translated to
// the internal findAndModify shape with remove=false.
func FindOneAndUpdate(req *dispatch.Request) (*bsontype.Document, *cmderr.CommandError) {
	ns, err := namespace(req)
	if err != nil {
		return nil, err
	}
	filter, err := validate.RequireDocument(req.Command, "filter")
	if err != nil {
		return nil, err
	}
	update, pipeline, err := validate.UpdateValue(req.Command, "update")
	if err != nil {
		return nil, err
	}
	if pipeline == nil && !validate.IsOperatorStyle(update) {
		return nil, cmderr.Errorf("update document must be operator-style")
	}
	returnDoc, err := validate.ParseReturnDocument(req.Command)
	if err != nil {
		return nil, err
	}
	upsert, err := boolField(req.Command, "upsert")
	if err != nil {
		return nil, err
	}

	return findOneAndModify(req.Store, ns, filter, update, pipeline, false, upsert, false, returnDoc == validate.ReturnAfter)
}

// FindOneAndReplace implements findOneAndReplace (spec §4.2): the
// replacement must not contain top-level operator keys.
func FindOneAndReplace(req *dispatch.Request) (*bsontype.Document, *cmderr.CommandError) {
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
	returnDoc, err := validate.ParseReturnDocument(req.Command)
	if err != nil {
		return nil, err
	}
	upsert, err := boolField(req.Command, "upsert")
	if err != nil {
		return nil, err
	}

	return findOneAndModify(req.Store, ns, filter, replacement, nil, false, upsert, true, returnDoc == validate.ReturnAfter)
}

// FindOneAndDelete implements findOneAndDelete (spec §4.2): removes the
// first matching document and returns it as it was before deletion.
func FindOneAndDelete(req *dispatch.Request) (*bsontype.Document, *cmderr.CommandError) {
	ns, err := namespace(req)
	if err != nil {
		return nil, err
	}
	filter, err := validate.RequireDocument(req.Command, "filter")
	if err != nil {
		return nil, err
	}

	return findOneAndModify(req.Store, ns, filter, nil, nil, true, false, false, false)
}

// FindAndModify implements the legacy, unified findAndModify command
// (spec §4.2): `{query, update/new-doc, remove=false, new, upsert}`.
func FindAndModify(req *dispatch.Request) (*bsontype.Document, *cmderr.CommandError) {
	ns, err := namespace(req)
	if err != nil {
		return nil, err
	}
	filter, err := optionalFilter(req.Command)
	if err != nil {
		return nil, err
	}
	if filter == nil {
		filter = bsontype.NewDocument()
	}

	remove, err := boolField(req.Command, "remove")
	if err != nil {
		return nil, err
	}
	returnDoc, err := validate.ParseReturnDocument(req.Command)
	if err != nil {
		return nil, err
	}
	upsert, err := boolField(req.Command, "upsert")
	if err != nil {
		return nil, err
	}

	if remove {
		return findOneAndModify(req.Store, ns, filter, nil, nil, true, false, false, false)
	}

	update, pipeline, err := validate.UpdateValue(req.Command, "update")
	if err != nil {
		return nil, err
	}
	isReplacement := false
	if pipeline == nil {
		isReplacement = !validate.IsOperatorStyle(update)
	}

	return findOneAndModify(req.Store, ns, filter, update, pipeline, false, upsert, isReplacement, returnDoc == validate.ReturnAfter)
}

// findOneAndModify is the shared engine-facing implementation backing
// all four find-and-modify variants: it locates the first match, applies
// the write through the ordinary CommandStore.Update/Delete operations
// (multi=false), and reports the document as it was before or after.
// Exactly one of update or pipeline is used when remove is false.
func findOneAndModify(s store.CommandStore, ns store.Namespace, filter, update *bsontype.Document, pipeline []*bsontype.Document, remove, upsert, isReplacement, returnAfter bool) (*bsontype.Document, *cmderr.CommandError) {
	matches, err := s.Find(ns, filter)
	if err != nil {
		return nil, err
	}

	var before *bsontype.Document
	if len(matches) > 0 {
		before = matches[0]
	}

	if remove {
		if before == nil {
			return findAndModifyResponse(nil), nil
		}
		if _, err := s.Delete(ns, []store.DeleteSpec{{Filter: idFilter(before), Limit: 1}}); err != nil {
			return nil, err
		}
		return findAndModifyResponse(before), nil
	}

	if before == nil && !upsert {
		return findAndModifyResponse(nil), nil
	}

	targetFilter := filter
	if before != nil {
		targetFilter = idFilter(before)
	}

	spec := store.UpdateSpec{Filter: targetFilter, Upsert: upsert}
	if pipeline != nil {
		spec.Pipeline = pipeline
	} else {
		spec.Update = update
		spec.IsReplacement = isReplacement
	}
	result, err := s.Update(ns, []store.UpdateSpec{spec})
	if err != nil {
		return nil, err
	}

	var afterID bsontype.Value
	switch {
	case before != nil:
		afterID, _ = before.Get("_id")
	case len(result.Upserted) > 0:
		afterID = result.Upserted[0].ID
	default:
		return findAndModifyResponse(nil), nil
	}

	after, err := s.Find(ns, idFilter(bsontype.NewDocument(bsontype.Element{Key: "_id", Value: afterID})))
	if err != nil {
		return nil, err
	}
	var afterDoc *bsontype.Document
	if len(after) > 0 {
		afterDoc = after[0]
	}

	if returnAfter {
		return findAndModifyResponse(afterDoc), nil
	}
	return findAndModifyResponse(before), nil
}

func idFilter(d *bsontype.Document) *bsontype.Document {
	id, _ := d.Get("_id")
	return bsontype.NewDocument(bsontype.Element{Key: "_id", Value: id})
}

func findAndModifyResponse(value *bsontype.Document) *bsontype.Document {
	resp := bsontype.NewDocument()
	if value != nil {
		resp.Set("value", bsontype.DocumentValue(value))
	} else {
		resp.Set("value", bsontype.Null())
	}
	return resp
}
