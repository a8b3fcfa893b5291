package scanplan

import "github.com/latchdb/latchdb/internal/tuple"

// IndexScanPredicate is a disjunction of conjunctions. A query with no
// OR'd branches is just a one-element disjunction.
type IndexScanPredicate struct {
	Conjunctions []*ConjunctionScanPredicate
}

// NewIndexScanPredicate wraps one or more conjunctions built separately
// (typically one per OR'd clause in a WHERE tree).
func NewIndexScanPredicate(conjunctions ...*ConjunctionScanPredicate) *IndexScanPredicate {
	return &IndexScanPredicate{Conjunctions: conjunctions}
}

// IsFullIndexScan reports true iff any branch is a full scan: scanning
// everything subsumes every other branch's result.
func (p *IndexScanPredicate) IsFullIndexScan() bool {
	for _, c := range p.Conjunctions {
		if c.IsFullIndexScan {
			return true
		}
	}
	return false
}

// Bind delegates to every non-full-scan branch; full-scan predicates
// bind nothing.
func (p *IndexScanPredicate) Bind(params []tuple.Value) error {
	for _, c := range p.Conjunctions {
		if c.IsFullIndexScan {
			continue
		}
		if err := c.Bind(params); err != nil {
			return err
		}
	}
	return nil
}
