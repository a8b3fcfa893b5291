package tuple

import "fmt"

// ColumnType is a SQL column type recognized by the key codec (C1). The set
// is deliberately small: it covers exactly the encoding rules this codec needs.
type ColumnType int

const (
	Boolean ColumnType = iota
	TinyInt
	SmallInt
	Int
	BigInt
	Real
	Double
	Date
	Timestamp
	Varchar
	Varbinary
)

func (t ColumnType) String() string {
	switch t {
	case Boolean:
		return "BOOLEAN"
	case TinyInt:
		return "TINYINT"
	case SmallInt:
		return "SMALLINT"
	case Int:
		return "INT"
	case BigInt:
		return "BIGINT"
	case Real:
		return "REAL"
	case Double:
		return "DOUBLE"
	case Date:
		return "DATE"
	case Timestamp:
		return "TIMESTAMP"
	case Varchar:
		return "VARCHAR"
	case Varbinary:
		return "VARBINARY"
	default:
		return fmt.Sprintf("ColumnType(%d)", int(t))
	}
}

// IsInteger reports whether t is one of the fixed-width integer types the
// dispatcher considers for the "compact ints" key shape.
func (t ColumnType) IsInteger() bool {
	switch t {
	case Boolean, TinyInt, SmallInt, Int, BigInt:
		return true
	default:
		return false
	}
}

// Width returns the encoded width in bytes of a fixed-width column type.
// Varchar/Varbinary have no fixed width; callers must use ColumnSchema.Length.
func (t ColumnType) Width() int {
	switch t {
	case Boolean, TinyInt:
		return 1
	case SmallInt:
		return 2
	case Int, Real, Date:
		return 4
	case BigInt, Double, Timestamp:
		return 8
	default:
		return 0
	}
}

// ColumnSchema describes one column participating in an index key.
type ColumnSchema struct {
	Type ColumnType
	// Length is the declared column length for Varchar/Varbinary; ignored
	// for fixed-width types.
	Length int
}

// EncodedWidth returns the number of bytes this column contributes to an
// encoded key.
func (c ColumnSchema) EncodedWidth() int {
	if c.Type == Varchar || c.Type == Varbinary {
		return c.Length
	}
	return c.Type.Width()
}

// KeySchema is the ordered list of columns that make up an index key, in
// indexed-column order.
type KeySchema []ColumnSchema

// EncodedWidth returns the total byte length of a key built from this
// schema. A variable-length column with no declared length contributes zero
// bytes.
func (s KeySchema) EncodedWidth() int {
	total := 0
	for _, c := range s {
		total += c.EncodedWidth()
	}
	return total
}

// AllInteger reports whether every column in the schema is an integer type,
// the precondition for the dispatcher's "compact ints" key shape (§4.5).
func (s KeySchema) AllInteger() bool {
	for _, c := range s {
		if !c.Type.IsInteger() {
			return false
		}
	}
	return true
}

// KeyShape names one of the five fixed generic sizes plus the variable
// tuple-key shape the dispatcher may pick.
type KeyShape int

const (
	ShapeCompactInts KeyShape = iota
	ShapeGeneric4
	ShapeGeneric8
	ShapeGeneric16
	ShapeGeneric64
	ShapeGeneric256
	ShapeTupleKey
)

func (s KeyShape) String() string {
	switch s {
	case ShapeCompactInts:
		return "compact_ints"
	case ShapeGeneric4:
		return "generic4"
	case ShapeGeneric8:
		return "generic8"
	case ShapeGeneric16:
		return "generic16"
	case ShapeGeneric64:
		return "generic64"
	case ShapeGeneric256:
		return "generic256"
	case ShapeTupleKey:
		return "tuple_key"
	default:
		return fmt.Sprintf("KeyShape(%d)", int(s))
	}
}

// genericBuckets are the five fixed generic key sizes, in
// ascending order.
var genericBuckets = []struct {
	shape KeyShape
	size  int
}{
	{ShapeGeneric4, 4},
	{ShapeGeneric8, 8},
	{ShapeGeneric16, 16},
	{ShapeGeneric64, 64},
	{ShapeGeneric256, 256},
}

// compactIntsMaxWidth is N=4 eight-byte words, the largest compact-ints key
// the codec supports.
const compactIntsMaxWidth = 4 * 8

// PickShape implements the dispatcher's key-shape decision (§4.5): an
// all-integer schema that fits in 4x8 bytes gets the compact-ints shape;
// otherwise the smallest generic bucket that fits the encoded width is
// chosen, falling back to the variable-length tuple key.
func PickShape(schema KeySchema) KeyShape {
	width := schema.EncodedWidth()
	if schema.AllInteger() && width > 0 && width <= compactIntsMaxWidth {
		return ShapeCompactInts
	}
	for _, b := range genericBuckets {
		if width <= b.size {
			return b.shape
		}
	}
	return ShapeTupleKey
}

// Key is an encoded, byte-lexicographically ordered index key (C1's output).
// Two keys compare equal iff bytes.Equal(a, b); order follows bytes.Compare.
type Key []byte
