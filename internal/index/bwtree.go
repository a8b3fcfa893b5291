package index

import (
	"bytes"
	"sort"
	"sync/atomic"

	"github.com/latchdb/latchdb/internal/tuple"
)

// BwTreeIndex is the ordered_bwtree shape: a single logical page holding a
// sorted base array plus a chain of delta records, installed with a CAS on
// the page's head pointer (the "mapping table" collapses to one entry
// since this index owns exactly one logical page — see DESIGN.md for why
// multi-page splitting is out of scope).
//
// Writers never block each other or readers: Insert/Delete prepend a new
// delta record onto the current chain head with a compare-and-swap, retry
// on conflict, and consolidate the chain into a fresh sorted base once it
// grows past bwConsolidateThreshold. Readers walk the chain newest-first,
// so an in-progress consolidation is invisible to them — they either see
// the old chain or the new base, never a half-built one.
type BwTreeIndex struct {
	meta    Metadata
	retirer Retirer
	head    atomic.Pointer[bwNode]
	stats   Stats
}

const bwConsolidateThreshold = 32

// bwNode is either a delta record (op != bwBase) or a consolidated base
// page (op == bwBase); both link back to the node beneath them so a
// reader can always walk the full chain.
type bwNode struct {
	op   bwOp
	key  tuple.Key
	locs *locatorList // single-entry list for a freshly installed insert delta

	base []bwEntry // only populated when op == bwBase

	next *bwNode
}

type bwOp int

const (
	bwInsert bwOp = iota
	bwDelete
	bwBase
)

type bwEntry struct {
	key  tuple.Key
	locs *locatorList
}

// NewBwTreeIndex constructs an empty ordered Bw-tree index.
func NewBwTreeIndex(meta Metadata, retirer Retirer) *BwTreeIndex {
	if retirer == nil {
		retirer = noopRetirer{}
	}
	b := &BwTreeIndex{meta: meta, retirer: retirer}
	b.head.Store(&bwNode{op: bwBase})
	return b
}

func (b *BwTreeIndex) Shape() Shape       { return OrderedBwTree }
func (b *BwTreeIndex) Metadata() Metadata { return b.meta }
func (b *BwTreeIndex) Stats() Snapshot    { return b.stats.Snapshot() }

// materialize walks the chain from head and collapses it into the
// effective sorted view, newest delta wins for a given key.
func (b *BwTreeIndex) materialize(head *bwNode) []bwEntry {
	type state struct {
		locs    *locatorList
		deleted bool
	}
	seen := make(map[string]*state)
	var order []string

	for n := head; n != nil; n = n.next {
		if n.op == bwBase {
			for _, e := range n.base {
				k := string(e.key)
				if _, ok := seen[k]; !ok {
					seen[k] = &state{locs: e.locs}
					order = append(order, k)
				}
			}
			break
		}
		k := string(n.key)
		st, ok := seen[k]
		if !ok {
			st = &state{}
			seen[k] = st
			order = append(order, k)
		}
		if st.locs == nil && !st.deleted {
			// First time we see this key walking newest-first: the
			// delta we're looking at already reflects everything
			// older, so only apply it if nothing fresher has.
			if n.op == bwDelete {
				st.deleted = true
			} else {
				st.locs = n.locs
			}
		}
	}

	sort.Strings(order)
	out := make([]bwEntry, 0, len(order))
	for _, k := range order {
		st := seen[k]
		if st.deleted || st.locs == nil {
			continue
		}
		out = append(out, bwEntry{key: tuple.Key(k), locs: st.locs})
	}
	return out
}

func (b *BwTreeIndex) find(head *bwNode, key tuple.Key) (locs *locatorList, deleted bool) {
	for n := head; n != nil; n = n.next {
		if n.op == bwBase {
			lo, hi := 0, len(n.base)
			for lo < hi {
				mid := (lo + hi) / 2
				if bytes.Compare(n.base[mid].key, key) < 0 {
					lo = mid + 1
				} else {
					hi = mid
				}
			}
			if lo < len(n.base) && bytes.Equal(n.base[lo].key, key) {
				return n.base[lo].locs, false
			}
			return nil, false
		}
		if bytes.Equal(n.key, key) {
			if n.op == bwDelete {
				return nil, true
			}
			return n.locs, false
		}
	}
	return nil, false
}

func chainDepth(n *bwNode) int {
	depth := 0
	for ; n != nil && n.op != bwBase; n = n.next {
		depth++
	}
	return depth
}

// Insert rejects an equal key on a unique index; otherwise appends to the
// key's locator chain.
func (b *BwTreeIndex) Insert(key tuple.Key, loc tuple.Locator) (bool, error) {
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

// ConditionalInsert locates the key's current locator list (if any) by
// walking the chain, evaluates pred against it, and then installs either a
// fresh insert delta or an append onto the existing list. The append
// itself is guarded by the list's own mutex, not a CAS, since appending to
// an existing chain entry's locator set doesn't change the chain's shape.
func (b *BwTreeIndex) ConditionalInsert(key tuple.Key, loc tuple.Locator, pred LocatorPredicate) (bool, error) {
	end := casSpan("bwtree.conditional_insert")
	attempts := 0
	defer func() { end(attempts) }()

	for {
		attempts++
		head := b.head.Load()
		existing, _ := b.find(head, key)
		if existing != nil {
			return existing.conditionalInsert(loc, pred), nil
		}
		// Genuinely absent (or shadowed by a delete): install a fresh
		// insert delta carrying a brand new single-entry locator list.
		delta := &bwNode{op: bwInsert, key: append(tuple.Key(nil), key...), locs: newLocatorList(loc), next: head}
		if b.head.CompareAndSwap(head, delta) {
			if chainDepth(delta) > bwConsolidateThreshold {
				b.consolidate()
			}
			return true, nil
		}
	}
}

// Delete removes the exact (key, loc) pair. If the key's locator list still
// has other entries afterward, only the matching pair is gone and no delete
// delta is installed; the chain only grows once the whole key is gone.
func (b *BwTreeIndex) Delete(key tuple.Key, loc tuple.Locator) (bool, error) {
	end := casSpan("bwtree.delete")
	attempts := 0
	defer func() { end(attempts) }()

	for {
		attempts++
		head := b.head.Load()
		existing, deleted := b.find(head, key)
		if deleted || existing == nil {
			return false, nil
		}
		removed, empty := existing.delete(loc)
		if !removed {
			return false, nil
		}
		if !empty {
			b.stats.recordDelete()
			return true, nil
		}

		delta := &bwNode{op: bwDelete, key: append(tuple.Key(nil), key...), next: head}
		if b.head.CompareAndSwap(head, delta) {
			b.stats.recordDelete()
			b.retirer.Retire(func() {})
			return true, nil
		}
	}
}

func (b *BwTreeIndex) consolidate() {
	head := b.head.Load()
	merged := b.materialize(head)
	fresh := &bwNode{op: bwBase, base: merged}
	if b.head.CompareAndSwap(head, fresh) {
		b.retirer.Retire(func() { _ = head })
	}
}

// ScanKey returns every locator chained under an exact key.
func (b *BwTreeIndex) ScanKey(key tuple.Key) ([]tuple.Locator, error) {
	b.stats.recordScan()
	head := b.head.Load()
	locs, _ := b.find(head, key)
	if locs == nil {
		return nil, nil
	}
	return locs.snapshot(), nil
}

// PointQuery is the scan_range short-circuit for low==high.
func (b *BwTreeIndex) PointQuery(key tuple.Key) ([]tuple.Locator, error) {
	return b.ScanKey(key)
}

// ScanRange materializes the chain and walks [low, high] inclusive.
func (b *BwTreeIndex) ScanRange(low, high tuple.Key, dir Direction, filter LocatorPredicate) ([]tuple.Locator, error) {
	dir.checkValid()
	b.stats.recordScan()

	entries := b.materialize(b.head.Load())
	var out []tuple.Locator
	for _, e := range entries {
		if bytes.Compare(e.key, low) < 0 || bytes.Compare(e.key, high) > 0 {
			continue
		}
		for _, loc := range e.locs.snapshot() {
			if filter == nil || filter(loc) {
				out = append(out, loc)
			}
		}
	}
	if dir == Backward {
		reverseLocators(out)
	}
	return out, nil
}

// ScanAll materializes the chain and returns every locator in key order.
func (b *BwTreeIndex) ScanAll(dir Direction) ([]tuple.Locator, error) {
	dir.checkValid()
	b.stats.recordScan()

	entries := b.materialize(b.head.Load())
	var out []tuple.Locator
	for _, e := range entries {
		out = append(out, e.locs.snapshot()...)
	}
	if dir == Backward {
		reverseLocators(out)
	}
	return out, nil
}

// LowerBound materializes the chain and returns an iterator from the
// first entry >= key.
func (b *BwTreeIndex) LowerBound(key tuple.Key, dir Direction) (*Iterator, error) {
	dir.checkValid()

	entries := b.materialize(b.head.Load())
	start := sort.Search(len(entries), func(i int) bool { return bytes.Compare(entries[i].key, key) >= 0 })

	var keys []tuple.Key
	var locs []tuple.Locator
	for _, e := range entries[start:] {
		for _, loc := range e.locs.snapshot() {
			keys = append(keys, e.key)
			locs = append(locs, loc)
		}
	}
	if dir == Backward {
		reverseKeys(keys)
		reverseLocators(locs)
	}
	return &Iterator{keys: keys, locs: locs}, nil
}
