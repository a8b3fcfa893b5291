// Package index implements the index core (C4): five interchangeable index
// variants sharing one contract, plus the dispatcher (C6) that picks a
// variant and key shape from index metadata.
//
// Every public operation here assumes the caller has already entered an
// epoch via the epoch manager; structural nodes unlinked during a mutation
// are handed to the caller-supplied retirement sink instead.
package index

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/latchdb/latchdb/internal/tuple"
)

// Shape names one of the five index-core realizations. ordered_btree and
// ordered_bwtree are deliberately distinct shapes: see DESIGN.md for why
// they use different concurrency strategies.
type Shape int

const (
	OrderedBwTree Shape = iota
	OrderedSkipList
	OrderedBTree
	UnorderedHash
	RadixART
)

func (s Shape) String() string {
	switch s {
	case OrderedBwTree:
		return "ordered_bwtree"
	case OrderedSkipList:
		return "ordered_skiplist"
	case OrderedBTree:
		return "ordered_btree"
	case UnorderedHash:
		return "unordered_hash"
	case RadixART:
		return "radix_art"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// Ordered reports whether this shape supports range scans (scan_range and
// scan_all). Only the hash shape answers false. Lower-bound iteration is
// the separate OrderedIndex interface, which the bwtree, skiplist and btree
// shapes implement; radix_art does not.
func (s Shape) Ordered() bool { return s != UnorderedHash }

// Constraint is the uniqueness constraint an index enforces.
type Constraint int

const (
	ConstraintDefault Constraint = iota
	ConstraintPrimaryKey
	ConstraintUnique
)

func (c Constraint) Unique() bool {
	return c == ConstraintPrimaryKey || c == ConstraintUnique
}

// Metadata is the immutable-after-creation description of an index
//.
type Metadata struct {
	IndexID   uint64
	TableID   uint64
	DBID      uint64
	Shape     Shape
	Constraint Constraint

	KeySchema   tuple.KeySchema
	TupleSchema tuple.KeySchema

	// KeyAttrs is the ordered list of tuple column indices this index
	// covers; KeyAttrs[i] names which tuple column encodes into
	// KeySchema[i].
	KeyAttrs []int

	// TupleToIndexMap is the sparse reverse map: tuple column index ->
	// index key column index, populated only for columns that appear in
	// KeyAttrs.
	TupleToIndexMap map[int]int
}

// Validate checks the structural consistency index_factory.cpp enforces
// before constructing an index: key_attrs must be
// non-empty and consistent with both key schema and the reverse map.
func (m Metadata) Validate() error {
	if len(m.KeyAttrs) == 0 {
		return errors.New("index: metadata has no key_attrs")
	}
	if len(m.KeyAttrs) != len(m.KeySchema) {
		return fmt.Errorf("index: key_attrs has %d entries but key_schema has %d columns",
			len(m.KeyAttrs), len(m.KeySchema))
	}
	for indexCol, tupleCol := range m.KeyAttrs {
		mapped, ok := m.TupleToIndexMap[tupleCol]
		if !ok {
			return fmt.Errorf("index: tuple column %d (key_attrs[%d]) missing from tuple_to_index_map", tupleCol, indexCol)
		}
		if mapped != indexCol {
			return fmt.Errorf("index: tuple_to_index_map[%d]=%d does not match key_attrs[%d]=%d", tupleCol, mapped, indexCol, tupleCol)
		}
	}
	return nil
}

// Direction is a scan's traversal order. Ordered variants support both;
// scanning with any other value is a programming error and panics.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) checkValid() {
	if d != Forward && d != Backward {
		panic(fmt.Sprintf("index: invalid scan direction %d", int(d)))
	}
}

// LocatorPredicate is the residual predicate conditional_insert and
// scan_range evaluate against existing locators.
type LocatorPredicate func(tuple.Locator) bool

// ErrUnsupported is returned when a shape is asked to perform an operation
// it structurally cannot, such as the hash shape rejecting scan_range,
// scan_all, and lower-bound iteration.
var ErrUnsupported = errors.New("index: operation unsupported by this shape")

// Stats are atomic operation counters an index maintains for itself.
// No external statistics subsystem consumes them here; Stats() snapshots
// them for introspection (cmd/enginectl demo build).
type Stats struct {
	inserts atomic.Uint64
	deletes atomic.Uint64
	scans   atomic.Uint64
}

func (s *Stats) recordInsert() { s.inserts.Add(1) }
func (s *Stats) recordDelete() { s.deletes.Add(1) }
func (s *Stats) recordScan()   { s.scans.Add(1) }

// Snapshot is a point-in-time read of an index's Stats.
type Snapshot struct {
	Inserts uint64
	Deletes uint64
	Scans   uint64
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Inserts: s.inserts.Load(),
		Deletes: s.deletes.Load(),
		Scans:   s.scans.Load(),
	}
}

// Iterator walks an ordered index's entries one at a time, in the
// direction it was constructed with. It is a materialized cursor (backed
// by a snapshot slice), not a live structural traversal: ordered variants
// also expose a lower-bound iterator for callers (e.g. merge-join
// operators, out of scope here) that want to walk incrementally instead
// of materializing a full []Locator.
type Iterator struct {
	keys []tuple.Key
	locs []tuple.Locator
	pos  int
}

// Next advances the iterator and returns the next (key, locator) pair.
// ok is false once the iterator is exhausted.
func (it *Iterator) Next() (tuple.Key, tuple.Locator, bool) {
	if it == nil || it.pos >= len(it.locs) {
		return nil, tuple.Locator{}, false
	}
	k, l := it.keys[it.pos], it.locs[it.pos]
	it.pos++
	return k, l, true
}

// Index is the one contract every variant satisfies.
type Index interface {
	Shape() Shape
	Metadata() Metadata

	Insert(key tuple.Key, loc tuple.Locator) (bool, error)
	Delete(key tuple.Key, loc tuple.Locator) (bool, error)
	ConditionalInsert(key tuple.Key, loc tuple.Locator, pred LocatorPredicate) (bool, error)

	ScanKey(key tuple.Key) ([]tuple.Locator, error)
	ScanRange(low, high tuple.Key, dir Direction, filter LocatorPredicate) ([]tuple.Locator, error)
	ScanAll(dir Direction) ([]tuple.Locator, error)
	PointQuery(key tuple.Key) ([]tuple.Locator, error)

	Stats() Snapshot
}

// OrderedIndex is implemented additionally by the three ordered shapes.
type OrderedIndex interface {
	Index
	LowerBound(key tuple.Key, dir Direction) (*Iterator, error)
}

// BoundedRangeIndex is implemented only by the radix shape:
// a range scan capped at limit entries, resumable via continueKey.
type BoundedRangeIndex interface {
	Index
	BoundedRange(low, high, continueKey tuple.Key, limit int) (locs []tuple.Locator, actualCount int, err error)
}
