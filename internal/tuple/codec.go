package tuple

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Value is the native Go representation of one column's value, as produced
// by the (out-of-scope) executor. The codec accepts exactly the Go types
// matching each ColumnType:
//
//	Boolean    bool
//	TinyInt    int8
//	SmallInt   int16
//	Int        int32
//	BigInt     int64
//	Real       float32
//	Double     float64
//	Date       uint32
//	Timestamp  uint64
//	Varchar/Varbinary  []byte or string
type Value any

// Codec encodes tuple projections into index keys and decodes the minimum
// information needed to re-derive a key from a locator (the radix variant's
// "loaded-key callback").
type Codec struct {
	Schema KeySchema
}

// NewCodec builds a codec for the given key schema.
func NewCodec(schema KeySchema) *Codec {
	return &Codec{Schema: schema}
}

// EncodeTuple implements C1's encode_tuple: projects values (already
// extracted by the caller per key_attrs) into a single encoded key,
// concatenating each column's encoding in schema order.
func (c *Codec) EncodeTuple(values []Value) (Key, error) {
	if len(values) != len(c.Schema) {
		return nil, fmt.Errorf("tuple: expected %d values for key schema, got %d", len(c.Schema), len(values))
	}
	out := make([]byte, 0, c.Schema.EncodedWidth())
	for i, col := range c.Schema {
		var err error
		out, err = appendColumn(out, col, values[i])
		if err != nil {
			return nil, fmt.Errorf("tuple: column %d (%s): %w", i, col.Type, err)
		}
	}
	return out, nil
}

// EncodeCompactInts is the fast integer-only encoder: it writes
// directly into a caller-owned stack buffer, avoiding the heap allocation
// EncodeTuple incurs. Precondition: schema.AllInteger() and the encoded
// width fits in len(buf) (enforced by the dispatcher choosing this path
// only when tuple.PickShape returns ShapeCompactInts).
func (c *Codec) EncodeCompactInts(buf []byte, values []Value) (int, error) {
	if len(values) != len(c.Schema) {
		return 0, fmt.Errorf("tuple: expected %d values for key schema, got %d", len(c.Schema), len(values))
	}
	n := 0
	for i, col := range c.Schema {
		if !col.Type.IsInteger() {
			return 0, fmt.Errorf("tuple: column %d (%s) is not an integer type", i, col.Type)
		}
		width := col.Type.Width()
		if n+width > len(buf) {
			return 0, fmt.Errorf("tuple: compact-ints buffer too small (%d bytes) for column %d", len(buf), i)
		}
		encoded, err := encodeColumnBytes(col, values[i])
		if err != nil {
			return 0, fmt.Errorf("tuple: column %d (%s): %w", i, col.Type, err)
		}
		n += copy(buf[n:], encoded)
	}
	return n, nil
}

// EncodeColumn encodes a single value against column i of the schema,
// exposed so callers that build a key column-by-column (the scan planner's
// low/high key assembly) don't need to round-trip
// through a full values[] slice.
func (c *Codec) EncodeColumn(i int, v Value) ([]byte, error) {
	if i < 0 || i >= len(c.Schema) {
		return nil, fmt.Errorf("tuple: column index %d out of range for %d-column schema", i, len(c.Schema))
	}
	return encodeColumnBytes(c.Schema[i], v)
}

// MinColumn returns column i's minimum-bound encoding, used to fill an
// unbounded low side of a range predicate.
func (c *Codec) MinColumn(i int) []byte {
	return minColumnBytes(c.Schema[i])
}

// MaxColumn returns column i's maximum-bound encoding, used to fill an
// unbounded high side of a range predicate.
func (c *Codec) MaxColumn(i int) []byte {
	return maxColumnBytes(c.Schema[i])
}

func appendColumn(out []byte, col ColumnSchema, v Value) ([]byte, error) {
	b, err := encodeColumnBytes(col, v)
	if err != nil {
		return nil, err
	}
	return append(out, b...), nil
}

// encodeColumnBytes implements the per-type byte-lexicographic encoding
// rules: byte-lexicographic order must equal SQL order.
func encodeColumnBytes(col ColumnSchema, v Value) ([]byte, error) {
	switch col.Type {
	case Boolean:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", v)
		}
		if b {
			return []byte{1}, nil
		}
		return []byte{0}, nil

	case TinyInt:
		n, ok := v.(int8)
		if !ok {
			return nil, fmt.Errorf("expected int8, got %T", v)
		}
		return []byte{flipSign8(uint8(n))}, nil

	case SmallInt:
		n, ok := v.(int16)
		if !ok {
			return nil, fmt.Errorf("expected int16, got %T", v)
		}
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, flipSign16(uint16(n)))
		return buf, nil

	case Int:
		n, ok := v.(int32)
		if !ok {
			return nil, fmt.Errorf("expected int32, got %T", v)
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, flipSign32(uint32(n)))
		return buf, nil

	case BigInt:
		n, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("expected int64, got %T", v)
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, flipSign64(uint64(n)))
		return buf, nil

	case Real:
		f, ok := v.(float32)
		if !ok {
			return nil, fmt.Errorf("expected float32, got %T", v)
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, totalOrder32(math.Float32bits(f)))
		return buf, nil

	case Double:
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("expected float64, got %T", v)
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, totalOrder64(math.Float64bits(f)))
		return buf, nil

	case Date:
		n, ok := v.(uint32)
		if !ok {
			return nil, fmt.Errorf("expected uint32, got %T", v)
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, n)
		return buf, nil

	case Timestamp:
		n, ok := v.(uint64)
		if !ok {
			return nil, fmt.Errorf("expected uint64, got %T", v)
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, n)
		return buf, nil

	case Varchar, Varbinary:
		var raw []byte
		switch t := v.(type) {
		case []byte:
			raw = t
		case string:
			raw = []byte(t)
		default:
			return nil, fmt.Errorf("expected []byte or string, got %T", v)
		}
		if len(raw) > col.Length {
			return nil, fmt.Errorf("value of length %d exceeds declared column length %d", len(raw), col.Length)
		}
		buf := make([]byte, col.Length)
		copy(buf, raw)
		return buf, nil

	default:
		return nil, fmt.Errorf("unsupported column type %s", col.Type)
	}
}

// flipSign8/16/32/64 flip the sign bit of a two's-complement integer so
// that unsigned big-endian byte comparison matches signed numeric order:
// negative numbers (top bit 1) sort before non-negative ones (top bit 0)
// once the bit is flipped to 0/1 respectively.
func flipSign8(u uint8) uint8   { return u ^ 0x80 }
func flipSign16(u uint16) uint16 { return u ^ 0x8000 }
func flipSign32(u uint32) uint32 { return u ^ 0x80000000 }
func flipSign64(u uint64) uint64 { return u ^ 0x8000000000000000 }

// totalOrder32/64 map IEEE-754 bit patterns to a monotonic unsigned
// encoding: for non-negative floats (sign bit 0) flip only the sign bit;
// for negative floats (sign bit 1) flip every bit. This is the standard
// "IEEE total ordering via bit twiddling" transform and is what keeps
// NaN and +/-0 handling consistent.
func totalOrder32(bits uint32) uint32 {
	if bits&0x80000000 != 0 {
		return ^bits
	}
	return bits | 0x80000000
}

func totalOrder64(bits uint64) uint64 {
	if bits&0x8000000000000000 != 0 {
		return ^bits
	}
	return bits | 0x8000000000000000
}

// MinKey returns the encoded key whose every column holds that column
// type's minimum representable value — the low-key fill used by the scan
// planner for unbounded lower sides.
func (c *Codec) MinKey() Key {
	out := make([]byte, 0, c.Schema.EncodedWidth())
	for _, col := range c.Schema {
		out = append(out, minColumnBytes(col)...)
	}
	return out
}

// MaxKey returns the encoded key whose every column holds that column
// type's maximum representable value — the high-key fill for unbounded
// upper sides.
func (c *Codec) MaxKey() Key {
	out := make([]byte, 0, c.Schema.EncodedWidth())
	for _, col := range c.Schema {
		out = append(out, maxColumnBytes(col)...)
	}
	return out
}

func minColumnBytes(col ColumnSchema) []byte {
	w := col.EncodedWidth()
	buf := make([]byte, w)
	if col.Type == Varchar || col.Type == Varbinary {
		return buf // zero bytes already sort lowest
	}
	return buf // all-zero big-endian pattern is the minimum for every
	// fixed-width type here: sign-flip maps the most negative integer to
	// 0x00.., and every totalOrder float encoding, -Inf included, is at or
	// above 0x00..
}

func maxColumnBytes(col ColumnSchema) []byte {
	w := col.EncodedWidth()
	buf := make([]byte, w)
	for i := range buf {
		buf[i] = 0xFF
	}
	return buf
}
