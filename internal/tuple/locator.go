// Package tuple implements the key codec and tuple locator shared by every
// index variant: encoding a projected tuple into a byte-lexicographically
// ordered key (C1), and the opaque row locator that keys point at.
package tuple

import "fmt"

// Locator identifies a versioned row in a tile-group: (block_id, slot_offset).
// Indexes hold Locator values as opaque, non-owning references; the storage
// layer that owns the underlying row is out of scope here.
type Locator struct {
	BlockID     uint32
	SlotOffset  uint32
}

// Invalid is the sentinel locator value. Both halves are the maximum uint32.
var Invalid = Locator{BlockID: 0xFFFFFFFF, SlotOffset: 0xFFFFFFFF}

// IsInvalid reports whether l is the Invalid sentinel.
func (l Locator) IsInvalid() bool {
	return l == Invalid
}

// Less implements the locator's lexicographic order: block first, then
// offset.
func (l Locator) Less(other Locator) bool {
	if l.BlockID != other.BlockID {
		return l.BlockID < other.BlockID
	}
	return l.SlotOffset < other.SlotOffset
}

func (l Locator) String() string {
	if l.IsInvalid() {
		return "<invalid>"
	}
	return fmt.Sprintf("(%d,%d)", l.BlockID, l.SlotOffset)
}
