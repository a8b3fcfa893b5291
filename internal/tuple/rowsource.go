package tuple

import "context"

// RowSource is the explicit collaborator the radix index uses to recover a
// key from a locator when path compression has dropped bytes ("loaded-key
// callback", passed as an explicit handle
// into the radix constructor, never a process-global function pointer).
//
// The storage layer that actually owns rows is out of scope; this
// interface is the entire surface this repo depends on from it.
type RowSource interface {
	// LoadKey reads the row named by loc and re-encodes its indexed
	// columns under the given schema/codec, returning the same bytes
	// EncodeTuple would have produced at insert time.
	LoadKey(ctx context.Context, loc Locator, codec *Codec) (Key, error)
}

// MemoryRowSource is a trivial in-process RowSource backed by a map,
// sufficient for tests and for the demo CLI; it is explicitly not a
// persistence layer.
type MemoryRowSource struct {
	rows map[Locator][]Value
}

// NewMemoryRowSource creates an empty in-memory row source.
func NewMemoryRowSource() *MemoryRowSource {
	return &MemoryRowSource{rows: make(map[Locator][]Value)}
}

// Put records the values a locator's row would project through a codec.
func (m *MemoryRowSource) Put(loc Locator, values []Value) {
	m.rows[loc] = values
}

// LoadKey implements RowSource.
func (m *MemoryRowSource) LoadKey(_ context.Context, loc Locator, codec *Codec) (Key, error) {
	values, ok := m.rows[loc]
	if !ok {
		return nil, ErrRowNotFound
	}
	return codec.EncodeTuple(values)
}
