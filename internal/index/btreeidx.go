package index

import (
	"bytes"
	"sync"

	"github.com/google/btree"
	"github.com/latchdb/latchdb/internal/tuple"
)

// BTreeIndex is the ordered_btree shape: github.com/google/btree's
// in-memory B-tree guarded by a single sync.RWMutex. Unlike the
// bwtree and skiplist shapes, this one makes no lock-free claim at all —
// it is the "conventional locking" alternative the metadata can pick
// when a workload's write contention doesn't warrant a lock-free
// structure (see DESIGN.md for why this is a deliberately different
// concurrency strategy from its sibling ordered shapes, not an
// oversight).
type BTreeIndex struct {
	meta    Metadata
	retirer Retirer

	mu   sync.RWMutex
	tree *btree.BTree

	stats Stats
}

const btreeDegree = 32

type btreeEntry struct {
	key  tuple.Key
	locs *locatorList
}

func (e *btreeEntry) Less(than btree.Item) bool {
	return bytes.Compare(e.key, than.(*btreeEntry).key) < 0
}

// NewBTreeIndex constructs an empty ordered B-tree index.
func NewBTreeIndex(meta Metadata, retirer Retirer) *BTreeIndex {
	if retirer == nil {
		retirer = noopRetirer{}
	}
	return &BTreeIndex{meta: meta, retirer: retirer, tree: btree.New(btreeDegree)}
}

func (b *BTreeIndex) Shape() Shape       { return OrderedBTree }
func (b *BTreeIndex) Metadata() Metadata { return b.meta }
func (b *BTreeIndex) Stats() Snapshot    { return b.stats.Snapshot() }

// Insert rejects an equal key on a unique index; otherwise appends to the
// key's locator chain.
func (b *BTreeIndex) Insert(key tuple.Key, loc tuple.Locator) (bool, error) {
	ok, err := b.ConditionalInsert(key, loc, func(tuple.Locator) bool { return b.meta.Constraint.Unique() })
	if err != nil {
		return false, err
	}
	if ok {
		b.stats.recordInsert()
	} else if b.meta.Constraint.Unique() {
		recordUniqueViolation()
	}
	return ok, nil
}

// ConditionalInsert holds the tree's write lock across the existence
// check and the insert, matching the atomicity every other shape gives
// this operation.
func (b *BTreeIndex) ConditionalInsert(key tuple.Key, loc tuple.Locator, pred LocatorPredicate) (bool, error) {
	probe := &btreeEntry{key: key}

	b.mu.Lock()
	defer b.mu.Unlock()

	if existing := b.tree.Get(probe); existing != nil {
		return existing.(*btreeEntry).locs.conditionalInsert(loc, pred), nil
	}
	entry := &btreeEntry{key: append(tuple.Key(nil), key...), locs: newLocatorList(loc)}
	b.tree.ReplaceOrInsert(entry)
	return true, nil
}

// Delete removes the exact (key, loc) pair, dropping the tree entry
// entirely once its locator chain becomes empty.
func (b *BTreeIndex) Delete(key tuple.Key, loc tuple.Locator) (bool, error) {
	probe := &btreeEntry{key: key}

	b.mu.Lock()
	existing := b.tree.Get(probe)
	if existing == nil {
		b.mu.Unlock()
		return false, nil
	}
	entry := existing.(*btreeEntry)
	removed, empty := entry.locs.delete(loc)
	if empty {
		b.tree.Delete(probe)
	}
	b.mu.Unlock()

	if removed {
		b.stats.recordDelete()
		b.retirer.Retire(func() {})
	}
	return removed, nil
}

// ScanKey returns every locator chained under an exact key.
func (b *BTreeIndex) ScanKey(key tuple.Key) ([]tuple.Locator, error) {
	b.stats.recordScan()
	probe := &btreeEntry{key: key}

	b.mu.RLock()
	existing := b.tree.Get(probe)
	b.mu.RUnlock()
	if existing == nil {
		return nil, nil
	}
	return existing.(*btreeEntry).locs.snapshot(), nil
}

// PointQuery is the scan_range short-circuit for low==high.
func (b *BTreeIndex) PointQuery(key tuple.Key) ([]tuple.Locator, error) {
	return b.ScanKey(key)
}

// ScanRange walks [low, high] inclusive, reversing for Backward.
func (b *BTreeIndex) ScanRange(low, high tuple.Key, dir Direction, filter LocatorPredicate) ([]tuple.Locator, error) {
	dir.checkValid()
	b.stats.recordScan()

	var out []tuple.Locator
	b.mu.RLock()
	b.tree.AscendRange(&btreeEntry{key: low}, &btreeEntry{key: append(append(tuple.Key(nil), high...), 0x00)},
		func(item btree.Item) bool {
			entry := item.(*btreeEntry)
			if bytes.Compare(entry.key, high) > 0 {
				return false
			}
			for _, loc := range entry.locs.snapshot() {
				if filter == nil || filter(loc) {
					out = append(out, loc)
				}
			}
			return true
		})
	b.mu.RUnlock()

	if dir == Backward {
		reverseLocators(out)
	}
	return out, nil
}

// ScanAll returns every locator in the index, in key order.
func (b *BTreeIndex) ScanAll(dir Direction) ([]tuple.Locator, error) {
	dir.checkValid()
	b.stats.recordScan()

	var out []tuple.Locator
	b.mu.RLock()
	b.tree.Ascend(func(item btree.Item) bool {
		out = append(out, item.(*btreeEntry).locs.snapshot()...)
		return true
	})
	b.mu.RUnlock()

	if dir == Backward {
		reverseLocators(out)
	}
	return out, nil
}

// LowerBound returns an iterator positioned at the first entry >= key.
func (b *BTreeIndex) LowerBound(key tuple.Key, dir Direction) (*Iterator, error) {
	dir.checkValid()

	var keys []tuple.Key
	var locs []tuple.Locator
	b.mu.RLock()
	b.tree.AscendGreaterOrEqual(&btreeEntry{key: key}, func(item btree.Item) bool {
		entry := item.(*btreeEntry)
		for _, loc := range entry.locs.snapshot() {
			keys = append(keys, entry.key)
			locs = append(locs, loc)
		}
		return true
	})
	b.mu.RUnlock()

	if dir == Backward {
		reverseKeys(keys)
		reverseLocators(locs)
	}
	return &Iterator{keys: keys, locs: locs}, nil
}
