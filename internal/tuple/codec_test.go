package tuple

import (
	"bytes"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeOrder_Int(t *testing.T) {
	schema := KeySchema{{Type: Int}}
	codec := NewCodec(schema)

	values := []int32{-1000, -1, 0, 1, 1000, 2147483647, -2147483648}
	encoded := make([]Key, len(values))
	for i, v := range values {
		k, err := codec.EncodeTuple([]Value{v})
		require.NoError(t, err)
		encoded[i] = k
	}

	// Sort both the original ints and the encoded keys; the encoded order
	// must reproduce the same permutation.
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return values[order[i]] < values[order[j]] })

	sortedKeys := make([]Key, len(encoded))
	copy(sortedKeys, encoded)
	sort.Slice(sortedKeys, func(i, j int) bool { return bytes.Compare(sortedKeys[i], sortedKeys[j]) < 0 })

	for i, idx := range order {
		require.Equal(t, encoded[idx], sortedKeys[i], "position %d", i)
	}
}

func TestEncodeOrder_Double(t *testing.T) {
	schema := KeySchema{{Type: Double}}
	codec := NewCodec(schema)

	values := []float64{-1e300, -1.5, -0.0, 0.0, 1.5, 1e300}
	var prev Key
	for i, v := range values {
		k, err := codec.EncodeTuple([]Value{v})
		require.NoError(t, err)
		if i > 0 && v > values[i-1] {
			require.True(t, bytes.Compare(prev, k) <= 0, "value %v should not sort before %v", v, values[i-1])
		}
		prev = k
	}
}

func TestEncodeOrder_Varchar(t *testing.T) {
	schema := KeySchema{{Type: Varchar, Length: 8}}
	codec := NewCodec(schema)

	a, err := codec.EncodeTuple([]Value{"aa"})
	require.NoError(t, err)
	b, err := codec.EncodeTuple([]Value{"ab"})
	require.NoError(t, err)
	c, err := codec.EncodeTuple([]Value{"b"})
	require.NoError(t, err)

	require.True(t, bytes.Compare(a, b) < 0)
	require.True(t, bytes.Compare(b, c) < 0)
}

func TestEncodeTuple_CompositeKeyOrder(t *testing.T) {
	schema := KeySchema{{Type: Int}, {Type: Varchar, Length: 4}}
	codec := NewCodec(schema)

	k1, err := codec.EncodeTuple([]Value{int32(100), "a"})
	require.NoError(t, err)
	k2, err := codec.EncodeTuple([]Value{int32(100), "b"})
	require.NoError(t, err)
	k3, err := codec.EncodeTuple([]Value{int32(200), "c"})
	require.NoError(t, err)

	require.True(t, bytes.Compare(k1, k2) < 0)
	require.True(t, bytes.Compare(k2, k3) < 0)
}

func TestEncodeCompactInts_MatchesEncodeTuple(t *testing.T) {
	schema := KeySchema{{Type: Int}, {Type: BigInt}}
	codec := NewCodec(schema)

	values := []Value{int32(42), int64(-99)}
	full, err := codec.EncodeTuple(values)
	require.NoError(t, err)

	buf := make([]byte, compactIntsMaxWidth)
	n, err := codec.EncodeCompactInts(buf, values)
	require.NoError(t, err)
	require.Equal(t, []byte(full), buf[:n])
}

func TestEncodeCompactInts_BufferTooSmall(t *testing.T) {
	schema := KeySchema{{Type: BigInt}, {Type: BigInt}}
	codec := NewCodec(schema)

	buf := make([]byte, 8)
	_, err := codec.EncodeCompactInts(buf, []Value{int64(1), int64(2)})
	require.Error(t, err)
}

func TestMinMaxKey_BoundEverything(t *testing.T) {
	schema := KeySchema{{Type: Int}}
	codec := NewCodec(schema)

	min := codec.MinKey()
	max := codec.MaxKey()

	for _, v := range []int32{-2147483648, -1, 0, 1, 2147483647} {
		k, err := codec.EncodeTuple([]Value{v})
		require.NoError(t, err)
		require.True(t, bytes.Compare(min, k) <= 0)
		require.True(t, bytes.Compare(k, max) <= 0)
	}
}

func TestPickShape(t *testing.T) {
	require.Equal(t, ShapeCompactInts, PickShape(KeySchema{{Type: Int}, {Type: BigInt}}))
	require.Equal(t, ShapeCompactInts, PickShape(KeySchema{{Type: SmallInt}, {Type: SmallInt}}))
	require.Equal(t, ShapeGeneric64, PickShape(KeySchema{{Type: Varchar, Length: 40}}))
	require.Equal(t, ShapeTupleKey, PickShape(KeySchema{{Type: Varchar, Length: 512}}))
	// 5 * 8 = 40 bytes of integers exceeds the 4x8 compact-ints cap, so it
	// falls back to the smallest generic bucket that fits.
	require.Equal(t, ShapeGeneric64,
		PickShape(KeySchema{{Type: BigInt}, {Type: BigInt}, {Type: BigInt}, {Type: BigInt}, {Type: BigInt}}))
}
