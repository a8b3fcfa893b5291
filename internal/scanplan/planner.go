package scanplan

import (
	"fmt"

	"github.com/latchdb/latchdb/internal/tuple"
)

// ConjunctionScanPredicate is the output of building a single AND'd group
// of column predicates against one index.
type ConjunctionScanPredicate struct {
	codec *tuple.Codec

	IsPointQuery    bool
	IsFullIndexScan bool

	// lowCols/highCols hold one encoded-column slice per key column; nil
	// until either literal-filled at build time or written during Bind.
	lowCols  [][]byte
	highCols [][]byte

	LowBinds  []BindSlot
	HighBinds []BindSlot
}

// boundPair tracks, per index-key column, which entries in values[] supply
// the lower and upper bound.
type boundPair struct {
	lo, hi int
}

// BuildConjunction implements C5's algorithm: given the index's key-column
// count and reverse tuple->index map, a list of predicates
// (tupleColumnIDs[i], exprTypes[i], values[i]), it produces a
// ConjunctionScanPredicate. A value may be a scanplan.Placeholder instead
// of a literal, in which case the corresponding (key_column, param_index)
// pair is recorded in a bind list instead of being encoded immediately.
func BuildConjunction(codec *tuple.Codec, tupleToIndexMap map[int]int, numKeyCols int,
	tupleColumnIDs []int, exprTypes []ExprType, values []tuple.Value) (*ConjunctionScanPredicate, error) {

	if len(tupleColumnIDs) != len(exprTypes) || len(exprTypes) != len(values) {
		return nil, fmt.Errorf("scanplan: tupleColumnIDs, exprTypes, and values must have equal length")
	}

	// Step 1: any disequality-shaped operator forces a full scan.
	for _, e := range exprTypes {
		if e.forcesFullScan() {
			return &ConjunctionScanPredicate{codec: codec, IsFullIndexScan: true}, nil
		}
	}

	bounds := make([]boundPair, numKeyCols)
	for k := range bounds {
		bounds[k] = boundPair{lo: invalidIdx, hi: invalidIdx}
	}

	boundCols := 0
	for i, tcid := range tupleColumnIDs {
		k, ok := tupleToIndexMap[tcid]
		if !ok {
			return nil, fmt.Errorf("%w: tuple column %d", ErrUnmappedColumn, tcid)
		}
		before := bounds[k].lo == bounds[k].hi && bounds[k].lo != invalidIdx

		switch exprTypes[i] {
		case Eq:
			bounds[k].lo, bounds[k].hi = i, i
		case Lt, Le:
			bounds[k].hi = i
		case Gt, Ge:
			bounds[k].lo = i
		default:
			return nil, fmt.Errorf("scanplan: unexpected operator %d reached bound-building", exprTypes[i])
		}

		after := bounds[k].lo == bounds[k].hi && bounds[k].lo != invalidIdx
		if after && !before {
			boundCols++
			if boundCols == numKeyCols {
				break // short-circuit: every column is now point-bound
			}
		}
	}

	isPointQuery := boundCols == numKeyCols
	for k := range bounds {
		if bounds[k].lo != bounds[k].hi || bounds[k].lo == invalidIdx {
			isPointQuery = false
			break
		}
	}

	pred := &ConjunctionScanPredicate{codec: codec, IsPointQuery: isPointQuery}
	pred.lowCols = make([][]byte, numKeyCols)
	for k := 0; k < numKeyCols; k++ {
		enc, slot, err := resolveBound(codec, k, bounds[k].lo, values, codec.MinColumn)
		if err != nil {
			return nil, err
		}
		pred.lowCols[k] = enc
		if slot != nil {
			pred.LowBinds = append(pred.LowBinds, *slot)
		}
	}

	if !isPointQuery {
		pred.highCols = make([][]byte, numKeyCols)
		for k := 0; k < numKeyCols; k++ {
			enc, slot, err := resolveBound(codec, k, bounds[k].hi, values, codec.MaxColumn)
			if err != nil {
				return nil, err
			}
			pred.highCols[k] = enc
			if slot != nil {
				pred.HighBinds = append(pred.HighBinds, *slot)
			}
		}
	}

	return pred, nil
}

// resolveBound encodes column k's bound given valueIdx (the index into
// values[], or invalidIdx if this side is unbounded). It returns either the
// encoded bytes (literal or unbounded fill) or, for a placeholder, nil
// bytes plus the BindSlot to record.
func resolveBound(codec *tuple.Codec, k, valueIdx int, values []tuple.Value, fill func(int) []byte) ([]byte, *BindSlot, error) {
	if valueIdx == invalidIdx {
		return fill(k), nil, nil
	}
	v := values[valueIdx]
	if ph, ok := v.(Placeholder); ok {
		return nil, &BindSlot{KeyColumn: k, ParamIndex: ph.ParamIndex}, nil
	}
	enc, err := codec.EncodeColumn(k, v)
	if err != nil {
		return nil, nil, fmt.Errorf("scanplan: column %d: %w", k, err)
	}
	return enc, nil, nil
}

// Bind writes param values into every recorded placeholder slot, applying
// the column-type coercion path: an implicit cast via type coerce, and a
// panic if the value is unconvertible.
func (p *ConjunctionScanPredicate) Bind(params []tuple.Value) error {
	if p.IsFullIndexScan {
		return nil
	}
	for _, slot := range p.LowBinds {
		enc, err := encodeCoerced(p.codec, slot.KeyColumn, params[slot.ParamIndex])
		if err != nil {
			return err
		}
		p.lowCols[slot.KeyColumn] = enc
	}
	for _, slot := range p.HighBinds {
		enc, err := encodeCoerced(p.codec, slot.KeyColumn, params[slot.ParamIndex])
		if err != nil {
			return err
		}
		p.highCols[slot.KeyColumn] = enc
	}
	return nil
}

// LowKey assembles the low-key tuple's encoded bytes. Every column must
// already be resolved (literal, unbounded fill, or bound).
func (p *ConjunctionScanPredicate) LowKey() (tuple.Key, error) {
	if p.IsFullIndexScan {
		return nil, ErrFullIndexScan
	}
	return concatCols(p.lowCols)
}

// HighKey assembles the high-key tuple's encoded bytes. For a point query
// this is identical to LowKey, matching the short-circuit behavior
// of scan_range when low == high.
func (p *ConjunctionScanPredicate) HighKey() (tuple.Key, error) {
	if p.IsFullIndexScan {
		return nil, ErrFullIndexScan
	}
	if p.IsPointQuery {
		return p.LowKey()
	}
	return concatCols(p.highCols)
}

func concatCols(cols [][]byte) (tuple.Key, error) {
	total := 0
	for i, c := range cols {
		if c == nil {
			return nil, fmt.Errorf("%w: column %d", ErrNotBound, i)
		}
		total += len(c)
	}
	out := make([]byte, 0, total)
	for _, c := range cols {
		out = append(out, c...)
	}
	return out, nil
}

// encodeCoerced attempts codec.EncodeColumn directly, then retries with a
// small set of same-family numeric coercions before giving up. Per spec
// §7, an unconvertible late-bind value is a structural-invariant
// violation, not a recoverable error — it panics.
func encodeCoerced(codec *tuple.Codec, col int, v tuple.Value) ([]byte, error) {
	if enc, err := codec.EncodeColumn(col, v); err == nil {
		return enc, nil
	}
	if coerced, ok := coerceNumeric(codec.Schema[col].Type, v); ok {
		if enc, err := codec.EncodeColumn(col, coerced); err == nil {
			return enc, nil
		}
	}
	panic(fmt.Sprintf("scanplan: late-bind value %v (%T) cannot be coerced to column %d (%s)", v, v, col, codec.Schema[col].Type))
}

func coerceNumeric(target tuple.ColumnType, v tuple.Value) (tuple.Value, bool) {
	var i64 int64
	switch n := v.(type) {
	case int:
		i64 = int64(n)
	case int8:
		i64 = int64(n)
	case int16:
		i64 = int64(n)
	case int32:
		i64 = int64(n)
	case int64:
		i64 = n
	default:
		return nil, false
	}
	switch target {
	case tuple.TinyInt:
		return int8(i64), true
	case tuple.SmallInt:
		return int16(i64), true
	case tuple.Int:
		return int32(i64), true
	case tuple.BigInt:
		return i64, true
	default:
		return nil, false
	}
}
