// Package aggregation implements the aggregation pipeline stages shared
// by every CommandStore adapter (spec §4.6): $match, $limit, $skip,
// $sort, $group, $project, and the $out/$merge target-resolution logic.
// Each adapter materializes its own documents and drives the pipeline
// through ApplyStage, writing $out/$merge's result back with its own
// Insert/replace primitives.
package aggregation

import (
	"sort"

	"github.com/jongodb/jongodb/pkg/bsontype"
	"github.com/jongodb/jongodb/pkg/cmderr"
	"github.com/jongodb/jongodb/pkg/queryfilter"
	"github.com/jongodb/jongodb/pkg/store"
)

// ApplyStage runs a single non-$out/$merge pipeline stage against docs
// and returns the resulting document set.
func ApplyStage(stageName string, stageDoc *bsontype.Document, docs []*bsontype.Document) ([]*bsontype.Document, *cmderr.CommandError) {
	arg, _ := stageDoc.Get(stageName)

	switch stageName {
	case "$match":
		filter, isDoc := arg.AsDocument()
		if !isDoc {
			return nil, cmderr.Errorf("$match argument must be a document")
		}
		var out []*bsontype.Document
		for _, d := range docs {
			if queryfilter.Match(filter, d) {
				out = append(out, d)
			}
		}
		return out, nil

	case "$limit":
		n, ok := asInt32(arg)
		if !ok {
			return nil, cmderr.Errorf("$limit argument must be numeric")
		}
		if int(n) < len(docs) {
			return docs[:n], nil
		}
		return docs, nil

	case "$skip":
		n, ok := asInt32(arg)
		if !ok {
			return nil, cmderr.Errorf("$skip argument must be numeric")
		}
		if int(n) >= len(docs) {
			return nil, nil
		}
		return docs[n:], nil

	case "$sort":
		spec, isDoc := arg.AsDocument()
		if !isDoc {
			return nil, cmderr.Errorf("$sort argument must be a document")
		}
		out := make([]*bsontype.Document, len(docs))
		copy(out, docs)
		sort.SliceStable(out, func(i, j int) bool {
			for _, elem := range spec.Elements() {
				dir, _ := elem.Value.AsInt32()
				av := first(out[i].GetPath(elem.Key))
				bv := first(out[j].GetPath(elem.Key))
				if compareOrdered("$lt", av, bv) {
					return dir >= 0
				}
				if compareOrdered("$gt", av, bv) {
					return dir < 0
				}
			}
			return false
		})
		return out, nil

	case "$group":
		spec, isDoc := arg.AsDocument()
		if !isDoc {
			return nil, cmderr.Errorf("$group argument must be a document")
		}
		return applyGroup(spec, docs)

	case "$project":
		spec, isDoc := arg.AsDocument()
		if !isDoc {
			return nil, cmderr.Errorf("$project argument must be a document")
		}
		out := make([]*bsontype.Document, len(docs))
		for i, d := range docs {
			out[i] = applyProject(spec, d)
		}
		return out, nil

	default:
		return nil, cmderr.NotImplementedError("aggregation stage " + stageName)
	}
}

func asInt32(v bsontype.Value) (int32, bool) {
	if n, ok := v.AsInt32(); ok {
		return n, true
	}
	if n, ok := v.AsFloat64(); ok {
		return int32(n), true
	}
	return 0, false
}

func first(vs []bsontype.Value) bsontype.Value {
	if len(vs) == 0 {
		return bsontype.Null()
	}
	return vs[0]
}

// applyGroup implements a minimal $group: _id expression (a field path
// prefixed with "$", or a constant) plus $sum/$avg/$min/$max/$push/
// $addToSet/$first/$last accumulators.
func applyGroup(spec *bsontype.Document, docs []*bsontype.Document) ([]*bsontype.Document, *cmderr.CommandError) {
	idExpr, hasID := spec.Get("_id")
	if !hasID {
		return nil, cmderr.Errorf("$group requires an _id expression")
	}

	type bucket struct {
		key  string
		id   bsontype.Value
		docs []*bsontype.Document
	}
	order := make([]string, 0)
	buckets := make(map[string]*bucket)

	for _, d := range docs {
		key, id := groupKey(idExpr, d)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{key: key, id: id}
			buckets[key] = b
			order = append(order, key)
		}
		b.docs = append(b.docs, d)
	}

	out := make([]*bsontype.Document, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		result := bsontype.NewDocument()
		result.Set("_id", b.id)
		for _, elem := range spec.Elements() {
			if elem.Key == "_id" {
				continue
			}
			accDoc, isDoc := elem.Value.AsDocument()
			if !isDoc || accDoc.Len() != 1 {
				return nil, cmderr.Errorf("$group field %q must be a single-operator accumulator document", elem.Key)
			}
			accOp := accDoc.Elements()[0]
			v, err := applyAccumulator(accOp.Key, accOp.Value, b.docs)
			if err != nil {
				return nil, err
			}
			result.Set(elem.Key, v)
		}
		out = append(out, result)
	}
	return out, nil
}

func groupKey(idExpr bsontype.Value, d *bsontype.Document) (string, bsontype.Value) {
	v := resolveExpr(idExpr, d)
	return v.String(), v
}

func resolveExpr(expr bsontype.Value, d *bsontype.Document) bsontype.Value {
	if path, isStr := expr.AsString(); isStr && len(path) > 0 && path[0] == '$' {
		vals := d.GetPath(path[1:])
		if len(vals) == 0 {
			return bsontype.Null()
		}
		return vals[0]
	}
	return expr
}

func applyAccumulator(op string, arg bsontype.Value, docs []*bsontype.Document) (bsontype.Value, *cmderr.CommandError) {
	switch op {
	case "$sum":
		total := 0.0
		for _, d := range docs {
			v := resolveExpr(arg, d)
			if n, ok := v.AsFloat64(); ok {
				total += n
			} else if _, isConstOne := arg.AsInt32(); isConstOne {
				total += 1
			}
		}
		return bsontype.Double(total), nil
	case "$avg":
		total, count := 0.0, 0
		for _, d := range docs {
			v := resolveExpr(arg, d)
			if n, ok := v.AsFloat64(); ok {
				total += n
				count++
			}
		}
		if count == 0 {
			return bsontype.Null(), nil
		}
		return bsontype.Double(total / float64(count)), nil
	case "$min", "$max":
		var best bsontype.Value
		have := false
		for _, d := range docs {
			v := resolveExpr(arg, d)
			if !have {
				best, have = v, true
				continue
			}
			if op == "$min" && compareOrdered("$lt", v, best) {
				best = v
			}
			if op == "$max" && compareOrdered("$gt", v, best) {
				best = v
			}
		}
		if !have {
			return bsontype.Null(), nil
		}
		return best, nil
	case "$first":
		if len(docs) == 0 {
			return bsontype.Null(), nil
		}
		return resolveExpr(arg, docs[0]), nil
	case "$last":
		if len(docs) == 0 {
			return bsontype.Null(), nil
		}
		return resolveExpr(arg, docs[len(docs)-1]), nil
	case "$push":
		vals := make([]bsontype.Value, len(docs))
		for i, d := range docs {
			vals[i] = resolveExpr(arg, d)
		}
		return bsontype.Array(vals...), nil
	case "$addToSet":
		var vals []bsontype.Value
		for _, d := range docs {
			v := resolveExpr(arg, d)
			dup := false
			for _, existing := range vals {
				if bsontype.Equal(existing, v) {
					dup = true
					break
				}
			}
			if !dup {
				vals = append(vals, v)
			}
		}
		return bsontype.Array(vals...), nil
	default:
		return bsontype.Value{}, cmderr.NotImplementedError("$group accumulator " + op)
	}
}

// applyProject returns a new document including only the fields named
// with a truthy projection value (1 or true), always keeping _id unless
// explicitly excluded with 0/false.
func applyProject(spec *bsontype.Document, d *bsontype.Document) *bsontype.Document {
	out := bsontype.NewDocument()
	includeID := true
	if v, ok := spec.Get("_id"); ok {
		includeID = truthyProjection(v)
	}
	if includeID {
		if v, ok := d.Get("_id"); ok {
			out.Set("_id", v)
		}
	}
	for _, elem := range spec.Elements() {
		if elem.Key == "_id" {
			continue
		}
		if !truthyProjection(elem.Value) {
			continue
		}
		if v, ok := d.Get(elem.Key); ok {
			out.Set(elem.Key, v)
		}
	}
	return out
}

func truthyProjection(v bsontype.Value) bool {
	if b, ok := v.AsBool(); ok {
		return b
	}
	if n, ok := v.AsFloat64(); ok {
		return n != 0
	}
	return false
}

func compareOrdered(op string, a, b bsontype.Value) bool {
	af, aNum := a.AsFloat64()
	bf, bNum := b.AsFloat64()
	if aNum && bNum {
		switch op {
		case "$gt":
			return af > bf
		case "$gte":
			return af >= bf
		case "$lt":
			return af < bf
		case "$lte":
			return af <= bf
		}
	}
	as, aStr := a.AsString()
	bs, bStr := b.AsString()
	if aStr && bStr {
		switch op {
		case "$gt":
			return as > bs
		case "$gte":
			return as >= bs
		case "$lt":
			return as < bs
		case "$lte":
			return as <= bs
		}
	}
	return false
}

// OutTarget resolves the $out/$merge stage's destination namespace.
// $out takes either a bare collection-name string (same database) or
// {db, coll}; $merge takes {into: <name or {db,coll}>}.
func OutTarget(database string, stageDoc *bsontype.Document, stageName string) (store.Namespace, *cmderr.CommandError) {
	arg, _ := stageDoc.Get(stageName)

	if stageName == "$merge" {
		into, isDoc := arg.AsDocument()
		if isDoc {
			arg2, ok := into.Get("into")
			if ok {
				arg = arg2
			}
		}
	}

	if name, isStr := arg.AsString(); isStr {
		return store.Namespace{Database: database, Collection: name}, nil
	}
	if doc, isDoc := arg.AsDocument(); isDoc {
		db := database
		if dbVal, ok := doc.Get("db"); ok {
			if s, isStr := dbVal.AsString(); isStr {
				db = s
			}
		}
		coll, ok := doc.Get("coll")
		if !ok {
			coll, ok = doc.Get("collection")
		}
		collName, _ := coll.AsString()
		if !ok || collName == "" {
			return store.Namespace{}, cmderr.Errorf("%s target must name a collection", stageName)
		}
		return store.Namespace{Database: db, Collection: collName}, nil
	}
	return store.Namespace{}, cmderr.Errorf("%s target must be a string or document", stageName)
}
