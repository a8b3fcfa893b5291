package index_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latchdb/latchdb/internal/index"
	"github.com/latchdb/latchdb/internal/tuple"
)

func compositeSchema() tuple.KeySchema {
	return tuple.KeySchema{
		{Type: tuple.BigInt},
		{Type: tuple.Varchar, Length: 16},
	}
}

func meta(shape index.Shape, unique bool) index.Metadata {
	constraint := index.ConstraintDefault
	if unique {
		constraint = index.ConstraintUnique
	}
	schema := compositeSchema()
	return index.Metadata{
		IndexID:         1,
		Shape:           shape,
		Constraint:      constraint,
		KeySchema:       schema,
		KeyAttrs:        []int{0, 1},
		TupleToIndexMap: map[int]int{0: 0, 1: 1},
	}
}

func buildAll(t *testing.T, unique bool) map[string]index.Index {
	t.Helper()
	codec := tuple.NewCodec(compositeSchema())
	rows := tuple.NewMemoryRowSource()

	shapes := []index.Shape{index.OrderedBwTree, index.OrderedSkipList, index.OrderedBTree, index.UnorderedHash, index.RadixART}
	out := make(map[string]index.Index, len(shapes))
	for _, shape := range shapes {
		idx, err := index.Build(meta(shape, unique), nil, codec, rows)
		require.NoError(t, err)
		out[shape.String()] = idx
	}
	return out
}

func encodeKey(t *testing.T, codec *tuple.Codec, a int64, b string) tuple.Key {
	t.Helper()
	key, err := codec.EncodeTuple([]tuple.Value{a, b})
	require.NoError(t, err)
	return key
}

// scenario 1: basic insert-scan.
func TestBasicInsertScan(t *testing.T) {
	for name, idx := range buildAll(t, false) {
		t.Run(name, func(t *testing.T) {
			codec := tuple.NewCodec(compositeSchema())
			k1 := encodeKey(t, codec, 100, "a")
			k2 := encodeKey(t, codec, 100, "b")
			k3 := encodeKey(t, codec, 200, "c")

			ok, err := idx.Insert(k1, tuple.Locator{BlockID: 1, SlotOffset: 0})
			require.NoError(t, err)
			assert.True(t, ok)
			ok, err = idx.Insert(k2, tuple.Locator{BlockID: 1, SlotOffset: 1})
			require.NoError(t, err)
			assert.True(t, ok)
			ok, err = idx.Insert(k3, tuple.Locator{BlockID: 1, SlotOffset: 2})
			require.NoError(t, err)
			assert.True(t, ok)

			got, err := idx.ScanKey(k1)
			require.NoError(t, err)
			assert.Len(t, got, 1)

			if !idx.Shape().Ordered() {
				return // unordered_hash has no range scan
			}
			all, err := idx.ScanRange(k1, k3, index.Forward, nil)
			require.NoError(t, err)
			assert.Len(t, all, 3)
		})
	}
}

// scenario 2: unique violation.
func TestUniqueViolation(t *testing.T) {
	for name, idx := range buildAll(t, true) {
		t.Run(name, func(t *testing.T) {
			codec := tuple.NewCodec(compositeSchema())
			k := encodeKey(t, codec, 1, "x")

			ok, err := idx.Insert(k, tuple.Locator{BlockID: 1, SlotOffset: 0})
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = idx.Insert(k, tuple.Locator{BlockID: 1, SlotOffset: 1})
			require.NoError(t, err)
			assert.False(t, ok)

			got, err := idx.ScanKey(k)
			require.NoError(t, err)
			assert.Len(t, got, 1)
		})
	}
}

// scenario 3: delete-then-scan across goroutines.
func TestDeleteThenScanConcurrent(t *testing.T) {
	for name, idx := range buildAll(t, false) {
		t.Run(name, func(t *testing.T) {
			codec := tuple.NewCodec(compositeSchema())
			keys := make([]tuple.Key, 7)
			for i := 0; i < 7; i++ {
				k := encodeKey(t, codec, int64(i), "row")
				keys[i] = k
				ok, err := idx.Insert(k, tuple.Locator{BlockID: 1, SlotOffset: uint32(i)})
				require.NoError(t, err)
				require.True(t, ok)
			}

			toDelete := keys[:4]
			var wg sync.WaitGroup
			for i, k := range toDelete {
				wg.Add(1)
				go func(k tuple.Key, slot uint32) {
					defer wg.Done()
					_, _ = idx.Delete(k, tuple.Locator{BlockID: 1, SlotOffset: slot})
				}(k, uint32(i))
			}
			wg.Wait()

			if !idx.Shape().Ordered() {
				survivors := 0
				for _, k := range keys[4:] {
					got, err := idx.ScanKey(k)
					require.NoError(t, err)
					survivors += len(got)
				}
				assert.Equal(t, 3, survivors)
				return
			}

			all, err := idx.ScanAll(index.Forward)
			require.NoError(t, err)
			assert.Len(t, all, 3)

			again, err := idx.ScanAll(index.Forward)
			require.NoError(t, err)
			assert.ElementsMatch(t, all, again, "scan_all must be idempotent on a quiescent index")
		})
	}
}

func TestHashIndexRejectsRangeOperations(t *testing.T) {
	idx, err := index.Build(meta(index.UnorderedHash, false), nil, tuple.NewCodec(compositeSchema()), nil)
	require.NoError(t, err)

	_, err = idx.ScanRange(nil, nil, index.Forward, nil)
	assert.ErrorIs(t, err, index.ErrUnsupported)

	_, err = idx.ScanAll(index.Forward)
	assert.ErrorIs(t, err, index.ErrUnsupported)
}

func TestBTreeLowerBound(t *testing.T) {
	codec := tuple.NewCodec(compositeSchema())
	idx, err := index.Build(meta(index.OrderedBTree, false), nil, codec, nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		k := encodeKey(t, codec, int64(i*10), "v")
		_, err := idx.Insert(k, tuple.Locator{BlockID: 1, SlotOffset: uint32(i)})
		require.NoError(t, err)
	}

	ordered := idx.(index.OrderedIndex)
	it, err := ordered.LowerBound(encodeKey(t, codec, 25, "v"), index.Forward)
	require.NoError(t, err)

	var count int
	for {
		_, _, ok := it.Next()
		if !ok {
			break
		}
		count++
	}
	assert.Equal(t, 2, count) // keys 0,10,20,30,40 inserted; 30 and 40 are >= 25
}

func TestARTBoundedRange(t *testing.T) {
	codec := tuple.NewCodec(compositeSchema())
	idx, err := index.Build(meta(index.RadixART, false), nil, codec, tuple.NewMemoryRowSource())
	require.NoError(t, err)

	var keys []tuple.Key
	for i := 0; i < 6; i++ {
		k := encodeKey(t, codec, int64(i), "row")
		keys = append(keys, k)
		_, err := idx.Insert(k, tuple.Locator{BlockID: 1, SlotOffset: uint32(i)})
		require.NoError(t, err)
	}

	bounded, ok := idx.(index.BoundedRangeIndex)
	require.True(t, ok)

	first, count, err := bounded.BoundedRange(keys[0], keys[5], nil, 3)
	require.NoError(t, err)
	assert.Len(t, first, 3)
	assert.Equal(t, 3, count)

	rest, count, err := bounded.BoundedRange(keys[0], keys[5], keys[2], 10)
	require.NoError(t, err)
	assert.Len(t, rest, 3)
	assert.Equal(t, 3, count)
}

// TestARTValidateLeafRejectsMismatch simulates the path-compression
// false-positive validateLeaf guards against: a locator reachable from a
// terminal node whose row no longer encodes to the key that led there must
// be filtered out of ScanKey's result, not returned as a match.
func TestARTValidateLeafRejectsMismatch(t *testing.T) {
	codec := tuple.NewCodec(compositeSchema())
	rows := tuple.NewMemoryRowSource()
	idx, err := index.Build(meta(index.RadixART, false), nil, codec, rows)
	require.NoError(t, err)

	k := encodeKey(t, codec, 1, "a")
	loc := tuple.Locator{BlockID: 1, SlotOffset: 0}
	rows.Put(loc, []tuple.Value{int64(1), "a"})
	ok, err := idx.Insert(k, loc)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := idx.ScanKey(k)
	require.NoError(t, err)
	assert.Len(t, got, 1, "a locator whose row matches the path must be returned")

	// Overwrite the row this locator names so it now encodes to a
	// different key than the one that reached it; ScanKey must drop it.
	rows.Put(loc, []tuple.Value{int64(2), "b"})
	got, err = idx.ScanKey(k)
	require.NoError(t, err)
	assert.Empty(t, got, "a locator whose row no longer matches the traversed path must be rejected")
}

func TestSkipListDeleteWithNilRetirer(t *testing.T) {
	// index.Retirer is exercised end-to-end by internal/epoch; this test
	// only checks that a delete on a single-threaded index succeeds without
	// panicking when no retirer is supplied (nil -> noopRetirer).
	codec := tuple.NewCodec(compositeSchema())
	idx, err := index.Build(meta(index.OrderedSkipList, false), nil, codec, nil)
	require.NoError(t, err)

	k := encodeKey(t, codec, 1, "a")
	_, err = idx.Insert(k, tuple.Locator{BlockID: 1, SlotOffset: 0})
	require.NoError(t, err)
	ok, err := idx.Delete(k, tuple.Locator{BlockID: 1, SlotOffset: 0})
	require.NoError(t, err)
	assert.True(t, ok)
}
