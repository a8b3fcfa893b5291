package index

import (
	"sync"

	"github.com/latchdb/latchdb/internal/tuple"
)

// HashIndex is the unordered_hash shape. The original wraps libcds's
// lock-free cuckoo map (container/cuckoo_map.cpp is a thin template
// wrapper around a third-party structure, not a hand-rolled cuckoo
// table); libcds has no Go equivalent in this corpus, so this is
// realized instead as a fixed set of lock-striped shards, each a plain
// Go map guarded by a sync.RWMutex — point lookups and inserts only ever
// touch one shard, so contention is limited to keys that happen to land
// in the same shard (see DESIGN.md).
//
// scan_range, scan_all, and lower-bound iteration are not
// supported: only insert, delete, and scan_key are.
type HashIndex struct {
	meta    Metadata
	retirer Retirer
	shards  []hashShard
	stats   Stats
}

const hashShardCount = 64

type hashShard struct {
	mu      sync.RWMutex
	buckets map[string]*locatorList
}

// NewHashIndex constructs an empty unordered hash index.
func NewHashIndex(meta Metadata, retirer Retirer) *HashIndex {
	if retirer == nil {
		retirer = noopRetirer{}
	}
	h := &HashIndex{meta: meta, retirer: retirer, shards: make([]hashShard, hashShardCount)}
	for i := range h.shards {
		h.shards[i].buckets = make(map[string]*locatorList)
	}
	return h
}

func (h *HashIndex) Shape() Shape       { return UnorderedHash }
func (h *HashIndex) Metadata() Metadata { return h.meta }
func (h *HashIndex) Stats() Snapshot    { return h.stats.Snapshot() }

func (h *HashIndex) shardFor(key tuple.Key) *hashShard {
	return &h.shards[fnv1a(key)%uint64(len(h.shards))]
}

func fnv1a(b []byte) uint64 {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	hash := uint64(offset64)
	for _, c := range b {
		hash ^= uint64(c)
		hash *= prime64
	}
	return hash
}

// Insert rejects an equal key on a unique index; otherwise appends to the
// key's locator chain.
func (h *HashIndex) Insert(key tuple.Key, loc tuple.Locator) (bool, error) {
	ok, err := h.ConditionalInsert(key, loc, func(tuple.Locator) bool { return h.meta.Constraint.Unique() })
	if err != nil {
		return false, err
	}
	if ok {
		h.stats.recordInsert()
	} else if h.meta.Constraint.Unique() {
		recordUniqueViolation()
	}
	return ok, nil
}

// ConditionalInsert is atomic w.r.t. concurrent inserts of the same key:
// the shard's write lock is held across the existence check and the
// append.
func (h *HashIndex) ConditionalInsert(key tuple.Key, loc tuple.Locator, pred LocatorPredicate) (bool, error) {
	shard := h.shardFor(key)
	k := string(key)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	list, ok := shard.buckets[k]
	if !ok {
		shard.buckets[k] = newLocatorList(loc)
		return true, nil
	}
	return list.conditionalInsert(loc, pred), nil
}

// Delete removes the exact (key, loc) pair, dropping the bucket entry once
// it becomes empty.
func (h *HashIndex) Delete(key tuple.Key, loc tuple.Locator) (bool, error) {
	shard := h.shardFor(key)
	k := string(key)

	shard.mu.Lock()
	list, ok := shard.buckets[k]
	if !ok {
		shard.mu.Unlock()
		return false, nil
	}
	removed, empty := list.delete(loc)
	if empty {
		delete(shard.buckets, k)
	}
	shard.mu.Unlock()

	if removed {
		h.stats.recordDelete()
		h.retirer.Retire(func() {})
	}
	return removed, nil
}

// ScanKey returns every locator chained under an exact key.
func (h *HashIndex) ScanKey(key tuple.Key) ([]tuple.Locator, error) {
	h.stats.recordScan()
	shard := h.shardFor(key)
	shard.mu.RLock()
	list, ok := shard.buckets[string(key)]
	shard.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return list.snapshot(), nil
}

// PointQuery is ScanKey under the contract's low==high alias.
func (h *HashIndex) PointQuery(key tuple.Key) ([]tuple.Locator, error) {
	return h.ScanKey(key)
}

// ScanRange is structurally unsupported on a hash index.
func (h *HashIndex) ScanRange(tuple.Key, tuple.Key, Direction, LocatorPredicate) ([]tuple.Locator, error) {
	recordUnsupportedScan()
	return nil, ErrUnsupported
}

// ScanAll is structurally unsupported on a hash index.
func (h *HashIndex) ScanAll(Direction) ([]tuple.Locator, error) {
	recordUnsupportedScan()
	return nil, ErrUnsupported
}
