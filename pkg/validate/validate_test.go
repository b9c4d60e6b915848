package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jongodb/jongodb/pkg/bsontype"
)

func TestDatabaseDefaultsWhenAbsent(t *testing.T) {
	cmd := bsontype.NewDocument(bsontype.Element{Key: "find", Value: bsontype.String("widgets")})
	assert.Equal(t, DefaultDatabase, Database(cmd))
}

func TestDatabaseReadsDollarDB(t *testing.T) {
	cmd := bsontype.NewDocument(
		bsontype.Element{Key: "find", Value: bsontype.String("widgets")},
		bsontype.Element{Key: "$db", Value: bsontype.String("shop")},
	)
	assert.Equal(t, "shop", Database(cmd))
}

func TestCommandNameLowercasesFirstKey(t *testing.T) {
	cmd := bsontype.NewDocument(bsontype.Element{Key: "Find", Value: bsontype.String("widgets")})
	name, ok := CommandName(cmd)
	require.True(t, ok)
	assert.Equal(t, "find", name)
}

func TestCollectionTargetRejectsNonString(t *testing.T) {
	cmd := bsontype.NewDocument(bsontype.Element{Key: "find", Value: bsontype.Int32(1)})
	_, err := CollectionTarget(cmd)
	require.NotNil(t, err)
}

func TestOrderedDefaultsTrue(t *testing.T) {
	cmd := bsontype.NewDocument()
	ordered, err := Ordered(cmd)
	require.Nil(t, err)
	assert.True(t, ordered)
}

func TestOrderedFalseNotImplemented(t *testing.T) {
	cmd := bsontype.NewDocument(bsontype.Element{Key: "ordered", Value: bsontype.Bool(false)})
	_, err := Ordered(cmd)
	require.NotNil(t, err)
	assert.Equal(t, "NotImplemented", err.Code.String())
}

func TestWriteConcernValidShape(t *testing.T) {
	cmd := bsontype.NewDocument(bsontype.Element{Key: "writeConcern", Value: bsontype.DocumentValue(
		bsontype.NewDocument(bsontype.Element{Key: "w", Value: bsontype.String("majority")}, bsontype.Element{Key: "j", Value: bsontype.Bool(true)}),
	)})
	assert.Nil(t, WriteConcern(cmd))
}

func TestWriteConcernRejectsNegativeW(t *testing.T) {
	cmd := bsontype.NewDocument(bsontype.Element{Key: "writeConcern", Value: bsontype.DocumentValue(
		bsontype.NewDocument(bsontype.Element{Key: "w", Value: bsontype.Int32(-1)}),
	)})
	assert.NotNil(t, WriteConcern(cmd))
}

func TestHintAcceptsStringOrDocument(t *testing.T) {
	cmdStr := bsontype.NewDocument(bsontype.Element{Key: "hint", Value: bsontype.String("idx_1")})
	assert.Nil(t, Hint(cmdStr))

	cmdDoc := bsontype.NewDocument(bsontype.Element{Key: "hint", Value: bsontype.DocumentValue(
		bsontype.NewDocument(bsontype.Element{Key: "a", Value: bsontype.Int32(1)}),
	)})
	assert.Nil(t, Hint(cmdDoc))

	cmdEmptyDoc := bsontype.NewDocument(bsontype.Element{Key: "hint", Value: bsontype.DocumentValue(bsontype.NewDocument())})
	assert.NotNil(t, Hint(cmdEmptyDoc))
}

func TestCollationRequiresLocale(t *testing.T) {
	missing := bsontype.NewDocument(bsontype.Element{Key: "collation", Value: bsontype.DocumentValue(bsontype.NewDocument())})
	assert.NotNil(t, Collation(missing))

	ok := bsontype.NewDocument(bsontype.Element{Key: "collation", Value: bsontype.DocumentValue(
		bsontype.NewDocument(bsontype.Element{Key: "locale", Value: bsontype.String("en")}),
	)})
	assert.Nil(t, Collation(ok))
}

func TestParseReturnDocumentPrefersExplicitField(t *testing.T) {
	cmd := bsontype.NewDocument(bsontype.Element{Key: "returnDocument", Value: bsontype.String("after")})
	rd, err := ParseReturnDocument(cmd)
	require.Nil(t, err)
	assert.Equal(t, ReturnAfter, rd)
}

func TestParseReturnDocumentLegacyNewFlag(t *testing.T) {
	cmd := bsontype.NewDocument(bsontype.Element{Key: "new", Value: bsontype.Bool(true)})
	rd, err := ParseReturnDocument(cmd)
	require.Nil(t, err)
	assert.Equal(t, ReturnAfter, rd)
}

func TestParseReturnDocumentDefaultsBefore(t *testing.T) {
	cmd := bsontype.NewDocument()
	rd, err := ParseReturnDocument(cmd)
	require.Nil(t, err)
	assert.Equal(t, ReturnBefore, rd)
}

func TestIsOperatorStyle(t *testing.T) {
	ops := bsontype.NewDocument(bsontype.Element{Key: "$set", Value: bsontype.DocumentValue(bsontype.NewDocument())})
	assert.True(t, IsOperatorStyle(ops))

	mixed := bsontype.NewDocument(bsontype.Element{Key: "$set", Value: bsontype.Int32(1)}, bsontype.Element{Key: "name", Value: bsontype.String("a")})
	assert.False(t, IsOperatorStyle(mixed))

	assert.False(t, IsOperatorStyle(bsontype.NewDocument()))
}

func TestRequireDocumentMissing(t *testing.T) {
	cmd := bsontype.NewDocument()
	_, err := RequireDocument(cmd, "filter")
	require.NotNil(t, err)
}

func TestOptionalDocumentDefaultsEmpty(t *testing.T) {
	cmd := bsontype.NewDocument()
	got, err := OptionalDocument(cmd, "filter")
	require.Nil(t, err)
	assert.Equal(t, 0, got.Len())
}

func TestNonNegativeIntRejectsNegative(t *testing.T) {
	cmd := bsontype.NewDocument(bsontype.Element{Key: "limit", Value: bsontype.Int32(-1)})
	_, err := NonNegativeInt(cmd, "limit", 0)
	require.NotNil(t, err)
}

func TestNonNegativeIntDefaultsWhenAbsent(t *testing.T) {
	cmd := bsontype.NewDocument()
	v, err := NonNegativeInt(cmd, "limit", 100)
	require.Nil(t, err)
	assert.Equal(t, int64(100), v)
}
