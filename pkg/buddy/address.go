// Package buddy implements the .DS_Store container's buddy-style block
// allocator: a growable byte image addressed by packed 32-bit block
// addresses, with 32 exact-size free lists, a block-number table, and
// the header/bookkeeping serialization of the Bud1 layout.
package buddy

import (
	"fmt"

	"github.com/DSStoreKit/dsstore/pkg/common/errs"
)

// Address packs a block's byte offset and power-of-two size into one
// 32-bit value: (offset &^ 0x1f) | exponent. The offset is relative to
// byte 4 of the container file and must be a multiple of 32.
type Address uint32

// MakeAddress builds a packed address, validating alignment and
// exponent range.
func MakeAddress(offset uint32, exponent uint8) (Address, error) {
	if offset&0x1f != 0 {
		return 0, errs.Logicf("block offset %d is not 32-byte aligned", offset)
	}
	if exponent > 31 {
		return 0, errs.Logicf("block size exponent %d out of range", exponent)
	}
	return Address(offset | uint32(exponent)), nil
}

// Offset returns the block's byte offset within the buddy space.
func (a Address) Offset() uint32 { return uint32(a) &^ 0x1f }

// Exponent returns the block's size exponent.
func (a Address) Exponent() uint8 { return uint8(a & 0x1f) }

// Len returns the block's byte length, 1 << exponent.
func (a Address) Len() uint32 { return 1 << (a & 0x1f) }

// String renders the address as offset/length for diagnostics.
func (a Address) String() string {
	return fmt.Sprintf("%#x+%d", a.Offset(), a.Len())
}

// checkBounds verifies the block lies entirely within a buddy space of
// the given length.
func (a Address) checkBounds(spaceLen int) error {
	end := uint64(a.Offset()) + uint64(a.Len())
	if end > uint64(spaceLen) {
		return errs.Formatf("block %s extends past container end %d", a, spaceLen)
	}
	return nil
}
