package scanplan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latchdb/latchdb/internal/scanplan"
	"github.com/latchdb/latchdb/internal/tuple"
)

// schema: index key column 0 = tuple column "a" (BigInt), index key
// column 1 = tuple column "b" (BigInt). tupleToIndexMap maps tuple column
// ids {10: a, 20: b} -> key columns {0, 1}.
func testSchema() (*tuple.Codec, map[int]int) {
	schema := tuple.KeySchema{{Type: tuple.BigInt}, {Type: tuple.BigInt}}
	return tuple.NewCodec(schema), map[int]int{10: 0, 20: 1}
}

func TestBuildConjunction_PointQuery(t *testing.T) {
	codec, m := testSchema()
	pred, err := scanplan.BuildConjunction(codec, m, 2,
		[]int{10, 20}, []scanplan.ExprType{scanplan.Eq, scanplan.Eq},
		[]tuple.Value{int64(100), int64(200)})
	require.NoError(t, err)
	assert.True(t, pred.IsPointQuery)
	assert.False(t, pred.IsFullIndexScan)

	low, err := pred.LowKey()
	require.NoError(t, err)
	high, err := pred.HighKey()
	require.NoError(t, err)
	assert.Equal(t, low, high)
}

func TestBuildConjunction_DisequalityForcesFullScan(t *testing.T) {
	codec, m := testSchema()
	pred, err := scanplan.BuildConjunction(codec, m, 2,
		[]int{10}, []scanplan.ExprType{scanplan.Ne}, []tuple.Value{int64(5)})
	require.NoError(t, err)
	assert.True(t, pred.IsFullIndexScan)

	_, err = pred.LowKey()
	assert.ErrorIs(t, err, scanplan.ErrFullIndexScan)
}

func TestBuildConjunction_UnmappedColumnRejected(t *testing.T) {
	codec, m := testSchema()
	_, err := scanplan.BuildConjunction(codec, m, 2,
		[]int{999}, []scanplan.ExprType{scanplan.Eq}, []tuple.Value{int64(1)})
	assert.ErrorIs(t, err, scanplan.ErrUnmappedColumn)
}

// scenario 5: a > ? AND a <= ? AND b >= ?, three bind slots, then bind
// (100, 200, 50) and verify low/high bytes against hand-encoded values.
func TestParameterizedLateBind(t *testing.T) {
	codec, m := testSchema()

	pred, err := scanplan.BuildConjunction(codec, m, 2,
		[]int{10, 10, 20},
		[]scanplan.ExprType{scanplan.Gt, scanplan.Le, scanplan.Ge},
		[]tuple.Value{scanplan.Placeholder{ParamIndex: 0}, scanplan.Placeholder{ParamIndex: 1}, scanplan.Placeholder{ParamIndex: 2}})
	require.NoError(t, err)
	require.False(t, pred.IsPointQuery)
	require.False(t, pred.IsFullIndexScan)

	totalBinds := len(pred.LowBinds) + len(pred.HighBinds)
	require.Equal(t, 3, totalBinds)

	err = pred.Bind([]tuple.Value{int64(100), int64(200), int64(50)})
	require.NoError(t, err)

	low, err := pred.LowKey()
	require.NoError(t, err)
	high, err := pred.HighKey()
	require.NoError(t, err)

	wantLow, err := codec.EncodeTuple([]tuple.Value{int64(100), int64(50)})
	require.NoError(t, err)
	require.Equal(t, tuple.Key(wantLow), low)

	// high key's column 1 (b) is unbounded-upper, so it must equal the
	// codec's raw max-column fill directly rather than round-tripping
	// through EncodeTuple (which has no "max" sentinel Value).
	wantHighBytes := append(append([]byte{}, mustEncodeColumn(t, codec, 0, int64(200))...), codec.MaxColumn(1)...)
	assert.Equal(t, tuple.Key(wantHighBytes), high)
}

func mustEncodeColumn(t *testing.T, codec *tuple.Codec, col int, v tuple.Value) []byte {
	t.Helper()
	b, err := codec.EncodeColumn(col, v)
	require.NoError(t, err)
	return b
}

func TestIndexScanPredicate_AnyFullScanDominates(t *testing.T) {
	codec, m := testSchema()
	point, err := scanplan.BuildConjunction(codec, m, 2, []int{10, 20},
		[]scanplan.ExprType{scanplan.Eq, scanplan.Eq}, []tuple.Value{int64(1), int64(2)})
	require.NoError(t, err)
	full, err := scanplan.BuildConjunction(codec, m, 2, []int{10},
		[]scanplan.ExprType{scanplan.Like}, []tuple.Value{int64(1)})
	require.NoError(t, err)

	disj := scanplan.NewIndexScanPredicate(point, full)
	assert.True(t, disj.IsFullIndexScan())
}
