package scanplan

import "errors"

// ErrUnmappedColumn is returned when a predicate names a tuple column that
// isn't part of the target index's key_attrs — surfaced here as a normal
// error rather than a panic, since unlike a direction or epoch misuse
// this is a caller input mistake the planner's caller is expected to
// check for, not a structural invariant violation.
var ErrUnmappedColumn = errors.New("scanplan: predicate column is not part of the index key")

// ErrNotBound is returned by LowKey/HighKey when a placeholder recorded in
// a bind list hasn't been filled in yet.
var ErrNotBound = errors.New("scanplan: key has unbound placeholders")

// ErrFullIndexScan is returned by LowKey/HighKey when called on a
// conjunction that turned out to be a full-index scan, which carries no
// key tuples at all. Bind on such a predicate binds nothing and returns nil.
var ErrFullIndexScan = errors.New("scanplan: predicate is a full index scan, has no key tuples")
