package index

import (
	"sync"

	"github.com/latchdb/latchdb/internal/tuple"
)

// locatorList is the per-key duplicate chain every non-unique variant uses:
// the hash shape holds a value-list per key; radix holds a locator linked
// list per terminal node; the B+ tree is a multimap — all of them reduce
// to a small set of locators guarded so mutation is atomic.
//
// Guarded by a per-key mutex rather than a CAS-linked list: contention here
// is limited to concurrent writers targeting the exact same key, which is
// rare relative to traversal, and a plain mutex makes ConditionalInsert's
// atomicity requirement for concurrent inserts of the same key trivial to
// satisfy correctly.
type locatorList struct {
	mu   sync.Mutex
	locs []tuple.Locator
}

func newLocatorList(first tuple.Locator) *locatorList {
	return &locatorList{locs: []tuple.Locator{first}}
}

// insert appends loc unconditionally; non-unique indexes allow the same
// key to map to many distinct locators.
func (l *locatorList) insert(loc tuple.Locator) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locs = append(l.locs, loc)
}

// conditionalInsert implements the predicate short-circuit: it stops
// scanning as soon as pred returns true for any existing locator, and only
// then does it decide whether to insert.
func (l *locatorList) conditionalInsert(loc tuple.Locator, pred LocatorPredicate) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if pred != nil {
		for _, existing := range l.locs {
			if pred(existing) {
				return false
			}
		}
	}
	l.locs = append(l.locs, loc)
	return true
}

// delete removes the first occurrence of the exact (implicit key, loc)
// pair. Returns whether anything was removed and whether the list is now
// empty (the caller unlinks the owning node only when it is).
func (l *locatorList) delete(loc tuple.Locator) (removed bool, empty bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, existing := range l.locs {
		if existing == loc {
			l.locs = append(l.locs[:i], l.locs[i+1:]...)
			return true, len(l.locs) == 0
		}
	}
	return false, len(l.locs) == 0
}

func (l *locatorList) snapshot() []tuple.Locator {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]tuple.Locator, len(l.locs))
	copy(out, l.locs)
	return out
}

func (l *locatorList) isEmpty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locs) == 0
}
