package index

import (
	"bytes"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/latchdb/latchdb/internal/tuple"
)

// SkipListIndex is the ordered_skiplist shape: a lock-free-read skip list
// using the "lazy synchronization" design (Herlihy & Shavit, "The Art of
// Multiprocessor Programming" ch.14) — traversal never locks or blocks;
// insert/delete take brief per-node locks only while relinking, validated
// against a `marked` tombstone bit before being trusted. container/
// skip_list_map.cpp's own skip list left delete partially implemented;
// this one implements delete fully.
type SkipListIndex struct {
	meta    Metadata
	retirer Retirer

	head, tail *slNode
	maxLevel   int

	stats Stats
}

const slMaxLevel = 32
const slP = 0.5

type slNode struct {
	key   tuple.Key
	locs  *locatorList
	level int

	isHead, isTail bool

	next []atomic.Pointer[slNode]

	mu          sync.Mutex
	marked      atomic.Bool
	fullyLinked atomic.Bool
}

// NewSkipListIndex constructs an empty ordered skip list index. retirer
// receives every node unlinked by a successful Delete.
func NewSkipListIndex(meta Metadata, retirer Retirer) *SkipListIndex {
	if retirer == nil {
		retirer = noopRetirer{}
	}
	head := &slNode{isHead: true, level: slMaxLevel - 1, next: make([]atomic.Pointer[slNode], slMaxLevel)}
	tail := &slNode{isTail: true, level: slMaxLevel - 1, next: make([]atomic.Pointer[slNode], slMaxLevel)}
	for i := range head.next {
		head.next[i].Store(tail)
	}
	head.fullyLinked.Store(true)
	tail.fullyLinked.Store(true)
	return &SkipListIndex{meta: meta, retirer: retirer, head: head, tail: tail, maxLevel: slMaxLevel}
}

func (s *SkipListIndex) Shape() Shape        { return OrderedSkipList }
func (s *SkipListIndex) Metadata() Metadata  { return s.meta }
func (s *SkipListIndex) Stats() Snapshot     { return s.stats.Snapshot() }

func randomLevel() int {
	level := 0
	for rand.Float64() < slP && level < slMaxLevel-1 {
		level++
	}
	return level
}

// less reports whether node n sorts strictly before key (head is -infinity,
// tail is +infinity).
func (n *slNode) less(key tuple.Key) bool {
	if n.isHead {
		return true
	}
	if n.isTail {
		return false
	}
	return bytes.Compare(n.key, key) < 0
}

// find fills preds/succs at every level and returns the highest level at
// which key was found (marked or not), or -1.
func (s *SkipListIndex) find(key tuple.Key, preds, succs []*slNode) int {
	levelFound := -1
	pred := s.head
	for level := s.maxLevel - 1; level >= 0; level-- {
		curr := pred.next[level].Load()
		for curr != nil && curr.less(key) {
			pred = curr
			curr = pred.next[level].Load()
		}
		if levelFound == -1 && curr != nil && !curr.isTail && bytes.Equal(curr.key, key) {
			levelFound = level
		}
		preds[level] = pred
		succs[level] = curr
	}
	return levelFound
}

func unlockAll(nodes []*slNode) {
	for _, n := range nodes {
		n.mu.Unlock()
	}
}

func spinBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Microsecond * 10
	b.MaxInterval = time.Millisecond
	b.MaxElapsedTime = 50 * time.Millisecond
	return b
}

// Insert implements the contract's insert: unique indexes reject an equal
// existing key; non-unique indexes append to the key's locator chain.
func (s *SkipListIndex) Insert(key tuple.Key, loc tuple.Locator) (bool, error) {
	ok, err := s.ConditionalInsert(key, loc, func(tuple.Locator) bool { return s.meta.Constraint.Unique() })
	if err != nil {
		return false, err
	}
	if ok {
		s.stats.recordInsert()
	} else if s.meta.Constraint.Unique() {
		recordUniqueViolation()
	}
	return ok, nil
}

// ConditionalInsert is the primitive every insert funnels through: it
// inserts unless pred returns true for some existing locator at the same
// key. A plain Insert on a unique index passes a pred that
// always returns true, i.e. "reject if anything is already there".
func (s *SkipListIndex) ConditionalInsert(key tuple.Key, loc tuple.Locator, pred LocatorPredicate) (bool, error) {
	preds := make([]*slNode, s.maxLevel)
	succs := make([]*slNode, s.maxLevel)
	bo := spinBackoff()

	end := casSpan("skiplist.conditional_insert")
	attempts := 0
	defer func() { end(attempts) }()

	for {
		attempts++
		levelFound := s.find(key, preds, succs)
		if levelFound != -1 {
			found := succs[levelFound]
			if !found.marked.Load() {
				for !found.fullyLinked.Load() {
					d := bo.NextBackOff()
					if d == backoff.Stop {
						return false, nil
					}
					time.Sleep(d)
				}
				return found.locs.conditionalInsert(loc, pred), nil
			}
			continue
		}

		topLevel := randomLevel()
		var locked []*slNode
		valid := true
		for level := 0; valid && level <= topLevel; level++ {
			p, c := preds[level], succs[level]
			if len(locked) == 0 || locked[len(locked)-1] != p {
				p.mu.Lock()
				locked = append(locked, p)
			}
			valid = !p.marked.Load() && !c.marked.Load() && p.next[level].Load() == c
		}
		if !valid {
			unlockAll(locked)
			d := bo.NextBackOff()
			if d == backoff.Stop {
				return false, nil
			}
			time.Sleep(d)
			continue
		}

		node := &slNode{key: append(tuple.Key(nil), key...), locs: newLocatorList(loc), level: topLevel,
			next: make([]atomic.Pointer[slNode], topLevel+1)}
		for level := 0; level <= topLevel; level++ {
			node.next[level].Store(succs[level])
		}
		for level := 0; level <= topLevel; level++ {
			preds[level].next[level].Store(node)
		}
		node.fullyLinked.Store(true)
		unlockAll(locked)
		return true, nil
	}
}

func okToDeleteSL(n *slNode, level int) bool {
	return n.fullyLinked.Load() && n.level == level && !n.marked.Load()
}

// Delete removes the exact (key, loc) pair, unlinking the node entirely
// once its locator chain becomes empty.
func (s *SkipListIndex) Delete(key tuple.Key, loc tuple.Locator) (bool, error) {
	preds := make([]*slNode, s.maxLevel)
	succs := make([]*slNode, s.maxLevel)

	var victim *slNode
	isMarked := false
	topLevel := -1
	bo := spinBackoff()

	end := casSpan("skiplist.delete")
	attempts := 0
	defer func() { end(attempts) }()

	for {
		attempts++
		levelFound := s.find(key, preds, succs)
		if !isMarked {
			if levelFound == -1 {
				return false, nil
			}
			victim = succs[levelFound]
			if !okToDeleteSL(victim, levelFound) {
				return false, nil
			}
			topLevel = victim.level

			victim.mu.Lock()
			if victim.marked.Load() {
				victim.mu.Unlock()
				return false, nil
			}
			removed, empty := victim.locs.delete(loc)
			if !removed {
				victim.mu.Unlock()
				return false, nil
			}
			if !empty {
				victim.mu.Unlock()
				s.stats.recordDelete()
				return true, nil
			}
			victim.marked.Store(true)
			isMarked = true
			victim.mu.Unlock()
		}

		var locked []*slNode
		valid := true
		for level := 0; valid && level <= topLevel; level++ {
			p := preds[level]
			if len(locked) == 0 || locked[len(locked)-1] != p {
				p.mu.Lock()
				locked = append(locked, p)
			}
			valid = !p.marked.Load() && p.next[level].Load() == victim
		}
		if !valid {
			unlockAll(locked)
			d := bo.NextBackOff()
			if d == backoff.Stop {
				// Give up revalidating; the node is logically deleted
				// (marked) so future finds skip it regardless of whether
				// we ourselves finish unlinking it here.
				s.stats.recordDelete()
				return true, nil
			}
			time.Sleep(d)
			continue
		}

		for level := topLevel; level >= 0; level-- {
			preds[level].next[level].Store(victim.next[level].Load())
		}
		unlockAll(locked)

		node := victim
		s.retirer.Retire(func() { _ = node })
		s.stats.recordDelete()
		return true, nil
	}
}

// ScanKey returns every locator chained under an exact key.
func (s *SkipListIndex) ScanKey(key tuple.Key) ([]tuple.Locator, error) {
	s.stats.recordScan()
	pred := s.head
	for level := s.maxLevel - 1; level >= 0; level-- {
		curr := pred.next[level].Load()
		for curr != nil && curr.less(key) {
			pred = curr
			curr = pred.next[level].Load()
		}
		if level == 0 {
			if curr != nil && !curr.isTail && !curr.marked.Load() && bytes.Equal(curr.key, key) {
				return curr.locs.snapshot(), nil
			}
		}
	}
	return nil, nil
}

// PointQuery is the scan_range short-circuit for low==high.
func (s *SkipListIndex) PointQuery(key tuple.Key) ([]tuple.Locator, error) {
	return s.ScanKey(key)
}

// ScanRange walks the bottom level between low and high inclusive,
// reversing the result for Backward.
func (s *SkipListIndex) ScanRange(low, high tuple.Key, dir Direction, filter LocatorPredicate) ([]tuple.Locator, error) {
	dir.checkValid()
	s.stats.recordScan()

	var out []tuple.Locator
	pred := s.head
	for level := s.maxLevel - 1; level >= 0; level-- {
		curr := pred.next[level].Load()
		for curr != nil && curr.less(low) {
			pred = curr
			curr = pred.next[level].Load()
		}
		if level == 0 {
			for curr != nil && !curr.isTail && bytes.Compare(curr.key, high) <= 0 {
				if !curr.marked.Load() {
					for _, loc := range curr.locs.snapshot() {
						if filter == nil || filter(loc) {
							out = append(out, loc)
						}
					}
				}
				curr = curr.next[0].Load()
			}
		}
	}
	if dir == Backward {
		reverseLocators(out)
	}
	return out, nil
}

// ScanAll returns every locator in the index.
func (s *SkipListIndex) ScanAll(dir Direction) ([]tuple.Locator, error) {
	dir.checkValid()
	s.stats.recordScan()
	var out []tuple.Locator
	curr := s.head.next[0].Load()
	for curr != nil && !curr.isTail {
		if !curr.marked.Load() {
			out = append(out, curr.locs.snapshot()...)
		}
		curr = curr.next[0].Load()
	}
	if dir == Backward {
		reverseLocators(out)
	}
	return out, nil
}

// LowerBound returns an iterator positioned at the first entry >= key
// (Forward) materialized in key order.
func (s *SkipListIndex) LowerBound(key tuple.Key, dir Direction) (*Iterator, error) {
	dir.checkValid()
	var keys []tuple.Key
	var locs []tuple.Locator
	pred := s.head
	for level := s.maxLevel - 1; level >= 0; level-- {
		curr := pred.next[level].Load()
		for curr != nil && curr.less(key) {
			pred = curr
			curr = pred.next[level].Load()
		}
		if level == 0 {
			for curr != nil && !curr.isTail {
				if !curr.marked.Load() {
					for _, loc := range curr.locs.snapshot() {
						keys = append(keys, curr.key)
						locs = append(locs, loc)
					}
				}
				curr = curr.next[0].Load()
			}
		}
	}
	if dir == Backward {
		reverseKeys(keys)
		reverseLocators(locs)
	}
	return &Iterator{keys: keys, locs: locs}, nil
}

func reverseLocators(s []tuple.Locator) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func reverseKeys(s []tuple.Key) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
