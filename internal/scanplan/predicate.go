// Package scanplan implements the scan planner (C5): turning a flat list
// of (tuple_column_id, expr_type, value) predicates into either a point
// query, a bounded range scan, or a full-index-scan flag, plus the
// late-binding bookkeeping a parameterized query needs.
package scanplan

import (
	"fmt"

	"github.com/latchdb/latchdb/internal/tuple"
)

// ExprType is one of the comparison operators a predicate can carry.
type ExprType int

const (
	Eq ExprType = iota
	Lt
	Le
	Gt
	Ge
	Ne
	In
	Like
	NotLike
)

// forcesFullScan reports whether this operator can never participate in a
// range predicate and so forces a full-index scan.
func (e ExprType) forcesFullScan() bool {
	switch e {
	case Ne, In, Like, NotLike:
		return true
	default:
		return false
	}
}

// Placeholder marks an unbound parameter at plan-build time; it satisfies
// tuple.Value (the `any` alias) without being a valid column value, so its
// presence in values[] is what triggers late binding at Bind time.
type Placeholder struct {
	ParamIndex int
}

// BindSlot records where a bound parameter must be written once its value
// is known: column k of either the low or the high key tuple.
type BindSlot struct {
	KeyColumn  int
	ParamIndex int
}

const invalidIdx = -1
