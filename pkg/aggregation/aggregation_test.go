package aggregation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jongodb/jongodb/pkg/bsontype"
	"github.com/jongodb/jongodb/pkg/store"
)

func doc(elems ...bsontype.Element) *bsontype.Document {
	return bsontype.NewDocument(elems...)
}

func TestApplyStageMatch(t *testing.T) {
	docs := []*bsontype.Document{
		doc(bsontype.Element{Key: "status", Value: bsontype.String("open")}),
		doc(bsontype.Element{Key: "status", Value: bsontype.String("closed")}),
	}
	stage := doc(bsontype.Element{Key: "$match", Value: bsontype.DocumentValue(
		doc(bsontype.Element{Key: "status", Value: bsontype.String("open")}),
	)})
	out, err := ApplyStage("$match", stage, docs)
	require.Nil(t, err)
	assert.Len(t, out, 1)
}

func TestApplyStageLimitAndSkip(t *testing.T) {
	docs := []*bsontype.Document{
		doc(bsontype.Element{Key: "n", Value: bsontype.Int32(1)}),
		doc(bsontype.Element{Key: "n", Value: bsontype.Int32(2)}),
		doc(bsontype.Element{Key: "n", Value: bsontype.Int32(3)}),
	}

	limited, err := ApplyStage("$limit", doc(bsontype.Element{Key: "$limit", Value: bsontype.Int32(2)}), docs)
	require.Nil(t, err)
	assert.Len(t, limited, 2)

	skipped, err := ApplyStage("$skip", doc(bsontype.Element{Key: "$skip", Value: bsontype.Int32(2)}), docs)
	require.Nil(t, err)
	assert.Len(t, skipped, 1)
}

func TestApplyStageSort(t *testing.T) {
	docs := []*bsontype.Document{
		doc(bsontype.Element{Key: "n", Value: bsontype.Int32(2)}),
		doc(bsontype.Element{Key: "n", Value: bsontype.Int32(1)}),
		doc(bsontype.Element{Key: "n", Value: bsontype.Int32(3)}),
	}
	stage := doc(bsontype.Element{Key: "$sort", Value: bsontype.DocumentValue(
		doc(bsontype.Element{Key: "n", Value: bsontype.Int32(1)}),
	)})
	out, err := ApplyStage("$sort", stage, docs)
	require.Nil(t, err)
	require.Len(t, out, 3)
	first, _ := out[0].Get("n")
	n, _ := first.AsInt32()
	assert.Equal(t, int32(1), n)
}

func TestApplyStageGroupSum(t *testing.T) {
	docs := []*bsontype.Document{
		doc(bsontype.Element{Key: "cat", Value: bsontype.String("a")}, bsontype.Element{Key: "qty", Value: bsontype.Int32(2)}),
		doc(bsontype.Element{Key: "cat", Value: bsontype.String("a")}, bsontype.Element{Key: "qty", Value: bsontype.Int32(3)}),
		doc(bsontype.Element{Key: "cat", Value: bsontype.String("b")}, bsontype.Element{Key: "qty", Value: bsontype.Int32(5)}),
	}
	spec := doc(
		bsontype.Element{Key: "_id", Value: bsontype.String("$cat")},
		bsontype.Element{Key: "total", Value: bsontype.DocumentValue(
			doc(bsontype.Element{Key: "$sum", Value: bsontype.String("$qty")}),
		)},
	)
	out, err := ApplyStage("$group", doc(bsontype.Element{Key: "$group", Value: bsontype.DocumentValue(spec)}), docs)
	require.Nil(t, err)
	require.Len(t, out, 2)

	totals := map[string]float64{}
	for _, d := range out {
		id, _ := d.Get("_id")
		idStr, _ := id.AsString()
		total, _ := d.Get("total")
		totalF, _ := total.AsFloat64()
		totals[idStr] = totalF
	}
	assert.Equal(t, 5.0, totals["a"])
	assert.Equal(t, 5.0, totals["b"])
}

func TestApplyStageProjectExcludesID(t *testing.T) {
	docs := []*bsontype.Document{
		doc(bsontype.Element{Key: "_id", Value: bsontype.Int32(1)}, bsontype.Element{Key: "name", Value: bsontype.String("a")}),
	}
	spec := doc(
		bsontype.Element{Key: "_id", Value: bsontype.Bool(false)},
		bsontype.Element{Key: "name", Value: bsontype.Bool(true)},
	)
	out, err := ApplyStage("$project", doc(bsontype.Element{Key: "$project", Value: bsontype.DocumentValue(spec)}), docs)
	require.Nil(t, err)
	require.Len(t, out, 1)
	_, hasID := out[0].Get("_id")
	assert.False(t, hasID)
	_, hasName := out[0].Get("name")
	assert.True(t, hasName)
}

func TestApplyStageUnknownReturnsNotImplemented(t *testing.T) {
	_, err := ApplyStage("$bucket", doc(bsontype.Element{Key: "$bucket", Value: bsontype.Int32(1)}), nil)
	require.NotNil(t, err)
}

func TestOutTargetBareString(t *testing.T) {
	stage := doc(bsontype.Element{Key: "$out", Value: bsontype.String("archive")})
	ns, err := OutTarget("test", stage, "$out")
	require.Nil(t, err)
	assert.Equal(t, store.Namespace{Database: "test", Collection: "archive"}, ns)
}

func TestOutTargetMergeInto(t *testing.T) {
	stage := doc(bsontype.Element{Key: "$merge", Value: bsontype.DocumentValue(
		doc(bsontype.Element{Key: "into", Value: bsontype.DocumentValue(
			doc(bsontype.Element{Key: "db", Value: bsontype.String("other")}, bsontype.Element{Key: "coll", Value: bsontype.String("archive")}),
		)}),
	)})
	ns, err := OutTarget("test", stage, "$merge")
	require.Nil(t, err)
	assert.Equal(t, store.Namespace{Database: "other", Collection: "archive"}, ns)
}
