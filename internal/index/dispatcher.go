package index

import (
	"fmt"

	"github.com/latchdb/latchdb/internal/tuple"
)

// Build constructs the concrete Index variant metadata.Shape names,
// mirroring IndexFactory::GetIndex's shape dispatch. The key-shape fast
// path isn't a separate template instantiation per (index shape, key
// shape) pair the way GetBwTreeIntsKeyIndex vs. GetBwTreeGenericKeyIndex
// are — tuple.PickShape already tells the codec which encoding to use,
// and every variant here operates uniformly on the resulting []byte
// regardless of key shape, so there is only one Build per index shape.
func Build(meta Metadata, retirer Retirer, codec *tuple.Codec, rows tuple.RowSource) (Index, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}

	switch meta.Shape {
	case OrderedBwTree:
		return NewBwTreeIndex(meta, retirer), nil
	case OrderedSkipList:
		return NewSkipListIndex(meta, retirer), nil
	case OrderedBTree:
		return NewBTreeIndex(meta, retirer), nil
	case UnorderedHash:
		return NewHashIndex(meta, retirer), nil
	case RadixART:
		return NewARTIndex(meta, retirer, codec, rows), nil
	default:
		return nil, fmt.Errorf("index: unknown shape %d", int(meta.Shape))
	}
}

// Drop releases whatever the variant owns. None of the five variants here
// hold anything beyond Go-managed memory and in-flight retirements, so
// Drop's only job is documenting the lifecycle point at which a caller
// should stop issuing operations against idx; the garbage collector (and
// the epoch manager, for anything still in a retirement queue) does the
// rest.
func Drop(idx Index) error {
	_ = idx
	return nil
}
