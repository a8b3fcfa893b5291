package index

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/latchdb/latchdb/internal/tuple"
)

// ARTIndex is the radix_art shape: a path-compressed radix trie over the
// encoded key's bytes. The adaptive radix tree algorithm keeps four
// adaptive node classes (node4/16/48/256) that grow and shrink with
// fanout; this is scoped down to one node representation — a
// byte-indexed child map plus a compressed edge label — behind a single
// sync.RWMutex (see DESIGN.md: the adaptive node-size machinery is
// orthogonal to this package's concurrency concerns).
//
// What is preserved is the lazy-expansion/path-compression split: an
// internal node only stores the byte range where its children actually
// diverge, and a terminal node's full key is reconstructed (and
// validated) through RowSource.LoadKey rather than stored redundantly at
// every level.
type ARTIndex struct {
	meta    Metadata
	retirer Retirer
	codec   *tuple.Codec
	rows    tuple.RowSource

	mu   sync.RWMutex
	root *artNode

	stats Stats
}

type artNode struct {
	edge     []byte
	children map[byte]*artNode
	locs     *locatorList // non-nil iff this node terminates a key
}

func newARTNode() *artNode {
	return &artNode{children: make(map[byte]*artNode)}
}

// NewARTIndex constructs an empty radix index. codec and rows are used to
// reconstruct and validate a candidate key once a lookup reaches a
// terminal node.
func NewARTIndex(meta Metadata, retirer Retirer, codec *tuple.Codec, rows tuple.RowSource) *ARTIndex {
	if retirer == nil {
		retirer = noopRetirer{}
	}
	return &ARTIndex{meta: meta, retirer: retirer, codec: codec, rows: rows, root: newARTNode()}
}

func (a *ARTIndex) Shape() Shape       { return RadixART }
func (a *ARTIndex) Metadata() Metadata { return a.meta }
func (a *ARTIndex) Stats() Snapshot    { return a.stats.Snapshot() }

func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

func (a *ARTIndex) pathBytes(key tuple.Key) []byte {
	return []byte(key)
}

// Insert rejects an equal key on a unique index; otherwise appends to the
// key's locator chain.
func (a *ARTIndex) Insert(key tuple.Key, loc tuple.Locator) (bool, error) {
	ok, err := a.ConditionalInsert(key, loc, func(tuple.Locator) bool { return a.meta.Constraint.Unique() })
	if err != nil {
		return false, err
	}
	if ok {
		a.stats.recordInsert()
	} else if a.meta.Constraint.Unique() {
		recordUniqueViolation()
	}
	return ok, nil
}

// ConditionalInsert descends the trie byte by byte, splitting edges as
// needed, and installs loc at the terminal node.
func (a *ARTIndex) ConditionalInsert(key tuple.Key, loc tuple.Locator, pred LocatorPredicate) (bool, error) {
	path := a.pathBytes(key)

	a.mu.Lock()
	defer a.mu.Unlock()

	node := a.descendAndSplit(a.root, path)
	if node.locs != nil {
		return node.locs.conditionalInsert(loc, pred), nil
	}
	node.locs = newLocatorList(loc)
	return true, nil
}

// descendAndSplit walks from n consuming path, creating and splitting
// edges as necessary, and returns the node that should terminate path.
func (a *ARTIndex) descendAndSplit(n *artNode, path []byte) *artNode {
	for {
		if len(path) == 0 {
			return n
		}
		b := path[0]
		rest := path[1:]

		child, ok := n.children[b]
		if !ok {
			leaf := newARTNode()
			leaf.edge = append([]byte(nil), rest...)
			n.children[b] = leaf
			return leaf
		}

		cp := commonPrefixLen(child.edge, rest)
		switch {
		case cp == len(child.edge) && cp == len(rest):
			return child
		case cp == len(child.edge):
			n = child
			path = rest[cp:]
			continue
		default:
			// child.edge and rest share only a cp-byte prefix: split
			// child.edge at cp into a new fork node.
			fork := newARTNode()
			fork.edge = append([]byte(nil), child.edge[:cp]...)
			divergeByte := child.edge[cp]
			child.edge = append([]byte(nil), child.edge[cp+1:]...)
			fork.children[divergeByte] = child
			n.children[b] = fork

			remaining := rest[cp:]
			if len(remaining) == 0 {
				return fork
			}
			leaf := newARTNode()
			leaf.edge = append([]byte(nil), remaining[1:]...)
			fork.children[remaining[0]] = leaf
			return leaf
		}
	}
}

// find descends to the exact terminal node for key, or nil.
func (a *ARTIndex) find(path []byte) *artNode {
	n := a.root
	for {
		if len(path) == 0 {
			if n.locs != nil {
				return n
			}
			return nil
		}
		b := path[0]
		child, ok := n.children[b]
		if !ok {
			return nil
		}
		rest := path[1:]
		if len(rest) < len(child.edge) || !bytes.Equal(rest[:len(child.edge)], child.edge) {
			return nil
		}
		n = child
		path = rest[len(child.edge):]
	}
}

// Delete removes the exact (key, loc) pair. Emptied leaves are left in
// place rather than pruned; a structurally tiny trie that never shrinks
// is an accepted simplification of the scoped-down design (see
// DESIGN.md) and does not affect lookup correctness.
func (a *ARTIndex) Delete(key tuple.Key, loc tuple.Locator) (bool, error) {
	path := a.pathBytes(key)

	a.mu.Lock()
	node := a.find(path)
	if node == nil {
		a.mu.Unlock()
		return false, nil
	}
	removed, empty := node.locs.delete(loc)
	if empty {
		node.locs = nil
	}
	a.mu.Unlock()

	if removed {
		a.stats.recordDelete()
		a.retirer.Retire(func() {})
	}
	return removed, nil
}

// ScanKey returns every locator chained under an exact key.
func (a *ARTIndex) ScanKey(key tuple.Key) ([]tuple.Locator, error) {
	a.stats.recordScan()
	a.mu.RLock()
	node := a.find(a.pathBytes(key))
	a.mu.RUnlock()
	if node == nil {
		return nil, nil
	}
	return a.validatedSnapshot(node, key)
}

// validatedSnapshot snapshots node's locator chain and, when a row source
// is configured, drops any locator whose row no longer encodes to want —
// the case path compression and lazy expansion can otherwise produce a
// false-positive match for. A locator with no row in the source is kept.
func (a *ARTIndex) validatedSnapshot(node *artNode, want tuple.Key) ([]tuple.Locator, error) {
	locs := node.locs.snapshot()
	if a.rows == nil || a.codec == nil {
		return locs, nil
	}
	out := make([]tuple.Locator, 0, len(locs))
	for _, loc := range locs {
		ok, err := a.validateLeaf(context.Background(), loc, want)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, loc)
		}
	}
	return out, nil
}

// PointQuery is the scan_range short-circuit for low==high.
func (a *ARTIndex) PointQuery(key tuple.Key) ([]tuple.Locator, error) {
	return a.ScanKey(key)
}

// collectEntry is one (reconstructed key, locator list) pair gathered by
// an in-order walk.
type collectEntry struct {
	key  []byte
	locs *locatorList
}

// walk performs a depth-first, byte-order traversal, appending to acc the
// path accumulated so far at each node.
func walk(n *artNode, prefix []byte, out *[]collectEntry) {
	full := append(append([]byte(nil), prefix...), n.edge...)
	if n.locs != nil {
		*out = append(*out, collectEntry{key: full, locs: n.locs})
	}
	keys := make([]byte, 0, len(n.children))
	for b := range n.children {
		keys = append(keys, b)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, b := range keys {
		walk(n.children[b], full, out)
	}
}

// ScanRange walks the full trie in key order, filtering to [low, high].
// A radix trie has no cheap notion of "start at low" without descending
// generically, so this materializes the relevant subtree rather than
// seeking; BoundedRange below is the operation meant for large tables.
func (a *ARTIndex) ScanRange(low, high tuple.Key, dir Direction, filter LocatorPredicate) ([]tuple.Locator, error) {
	dir.checkValid()
	a.stats.recordScan()

	a.mu.RLock()
	var all []collectEntry
	walk(a.root, nil, &all)
	a.mu.RUnlock()

	var out []tuple.Locator
	for _, e := range all {
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

// ScanAll returns every locator in key order.
func (a *ARTIndex) ScanAll(dir Direction) ([]tuple.Locator, error) {
	dir.checkValid()
	a.stats.recordScan()

	a.mu.RLock()
	var all []collectEntry
	walk(a.root, nil, &all)
	a.mu.RUnlock()

	var out []tuple.Locator
	for _, e := range all {
		out = append(out, e.locs.snapshot()...)
	}
	if dir == Backward {
		reverseLocators(out)
	}
	return out, nil
}

// BoundedRange returns up to limit locators in [low, high], resuming
// strictly after continueKey when it is non-empty. This is the paged
// range scan, the operation unique to the radix shape.
func (a *ARTIndex) BoundedRange(low, high, continueKey tuple.Key, limit int) ([]tuple.Locator, int, error) {
	a.stats.recordScan()

	a.mu.RLock()
	var all []collectEntry
	walk(a.root, nil, &all)
	a.mu.RUnlock()

	var out []tuple.Locator
	count := 0
	for _, e := range all {
		if bytes.Compare(e.key, low) < 0 || bytes.Compare(e.key, high) > 0 {
			continue
		}
		if len(continueKey) > 0 && bytes.Compare(e.key, continueKey) <= 0 {
			continue
		}
		for _, loc := range e.locs.snapshot() {
			if count >= limit {
				return out, count, nil
			}
			out = append(out, loc)
			count++
		}
	}
	return out, count, nil
}

// validateLeaf reconstructs the candidate row's key via LoadKey and
// confirms it matches the path that led here, guarding against the
// false-positive prefix matches that path compression and lazy
// expansion can otherwise produce. A row the source does not hold cannot
// be re-encoded, so its locator is accepted on the exact path match alone.
func (a *ARTIndex) validateLeaf(ctx context.Context, loc tuple.Locator, want tuple.Key) (bool, error) {
	if a.rows == nil || a.codec == nil {
		return true, nil
	}
	got, err := a.rows.LoadKey(ctx, loc, a.codec)
	if errors.Is(err, tuple.ErrRowNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return bytes.Equal(got, want), nil
}
