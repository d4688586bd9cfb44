package buddy

import (
	"encoding/binary"
	"sort"

	"github.com/DSStoreKit/dsstore/pkg/common/errs"
)

const (
	// filePrefix is the leading alignment word of every container.
	filePrefix = uint32(1)
	// magic identifies the Bud1 container layout.
	magic = uint32(0x42756431)
	// headerLen is the fixed header: prefix, magic, bookkeeping
	// offset/size/offset, 16 reserved bytes.
	headerLen = 36
	// reservedLen is the trailing reserved region of the header.
	reservedLen = 16
	// minExponent keeps every block at least 32 bytes so offsets stay
	// 32-byte aligned.
	minExponent = 5
	// tableChunk is the granularity the block table is padded to.
	tableChunk = 256
)

// Allocator manages the container's byte image: a header, a block
// table mapping block numbers to packed addresses, 32 exact-size free
// lists, and a table of contents naming well-known blocks.
//
// Unlike a classic buddy allocator it never splits larger blocks; an
// allocation either reuses a free block of the exact size class or
// extends the container at its end. Freed space is reused but the
// container never shrinks.
type Allocator struct {
	data      []byte // full file image, offsets are relative to byte 4
	blocks    []Address
	allocated []bool
	free      [32][]uint32
	toc       map[string]uint32
	reserved  [reservedLen]byte
}

// NewAllocator creates an empty container. Block number 0 is reserved
// for the bookkeeping block written by Flush.
func NewAllocator() *Allocator {
	return &Allocator{
		data:      make([]byte, headerLen),
		blocks:    []Address{0},
		allocated: []bool{false},
		toc:       make(map[string]uint32),
	}
}

// spaceLen returns the length of the buddy space (file minus prefix).
func (a *Allocator) spaceLen() int { return len(a.data) - 4 }

// Len returns the current container image length in bytes.
func (a *Allocator) Len() int { return len(a.data) }

// BlockCount returns the number of currently allocated blocks.
func (a *Allocator) BlockCount() int {
	n := 0
	for _, ok := range a.allocated {
		if ok {
			n++
		}
	}
	return n
}

// Reserved returns the 16 reserved header bytes.
func (a *Allocator) Reserved() [reservedLen]byte { return a.reserved }

// SetReserved sets the 16 reserved header bytes carried on round trip.
func (a *Allocator) SetReserved(b [reservedLen]byte) { a.reserved = b }

// SetTOC registers a named block in the table of contents.
func (a *Allocator) SetTOC(name string, blockNum uint32) error {
	if name == "" || len(name) > 255 {
		return errs.Logicf("toc name %q has invalid length", name)
	}
	a.toc[name] = blockNum
	return nil
}

// TOC looks up a named block.
func (a *Allocator) TOC(name string) (uint32, bool) {
	n, ok := a.toc[name]
	return n, ok
}

// exponentFor returns the size class for a minimum byte length.
func exponentFor(minLen uint32) (uint8, error) {
	for e := uint8(minExponent); e <= 31; e++ {
		if uint32(1)<<e >= minLen {
			return e, nil
		}
	}
	return 0, errs.Logicf("allocation of %d bytes exceeds maximum block size", minLen)
}

// Allocate hands out a block of at least minLen bytes, reusing a free
// block of the exact size class when one exists and extending the
// container otherwise. It returns the block number.
func (a *Allocator) Allocate(minLen uint32) (uint32, error) {
	addr, err := a.allocateAddr(minLen)
	if err != nil {
		return 0, err
	}
	return a.claimBlockNum(addr), nil
}

func (a *Allocator) allocateAddr(minLen uint32) (Address, error) {
	exp, err := exponentFor(minLen)
	if err != nil {
		return 0, err
	}
	if list := a.free[exp]; len(list) > 0 {
		off := list[0]
		a.free[exp] = list[1:]
		return Address(off | uint32(exp)), nil
	}

	// Extend at end of container, 32-byte aligned.
	off := (uint32(a.spaceLen()) + 31) &^ 31
	end := int(off) + (1 << exp) + 4
	grown := make([]byte, end)
	copy(grown, a.data)
	a.data = grown
	return Address(off | uint32(exp)), nil
}

// claimBlockNum assigns the lowest unused block number above zero.
func (a *Allocator) claimBlockNum(addr Address) uint32 {
	for i := 1; i < len(a.blocks); i++ {
		if !a.allocated[i] {
			a.blocks[i] = addr
			a.allocated[i] = true
			return uint32(i)
		}
	}
	a.blocks = append(a.blocks, addr)
	a.allocated = append(a.allocated, true)
	return uint32(len(a.blocks) - 1)
}

// Free returns a block to its size class's free list. Freeing a block
// that is not allocated, or whose offset is already free, is a logic
// error.
func (a *Allocator) Free(blockNum uint32) error {
	if int(blockNum) >= len(a.blocks) || !a.allocated[blockNum] {
		return errs.Logicf("free of unallocated block %d", blockNum)
	}
	addr := a.blocks[blockNum]
	if err := a.pushFree(addr); err != nil {
		return err
	}
	a.allocated[blockNum] = false
	a.blocks[blockNum] = 0
	return nil
}

func (a *Allocator) pushFree(addr Address) error {
	exp := addr.Exponent()
	for _, off := range a.free[exp] {
		if off == addr.Offset() {
			return errs.Logicf("double free of block %s", addr)
		}
	}
	a.free[exp] = append(a.free[exp], addr.Offset())
	return nil
}

// BlockAddress returns the packed address of an allocated block.
func (a *Allocator) BlockAddress(blockNum uint32) (Address, error) {
	if int(blockNum) >= len(a.blocks) || !a.allocated[blockNum] {
		return 0, errs.Formatf("no such block %d", blockNum)
	}
	return a.blocks[blockNum], nil
}

// ReadBlock returns the bytes of an allocated block. The slice aliases
// the container image and must not be modified.
func (a *Allocator) ReadBlock(blockNum uint32) ([]byte, error) {
	addr, err := a.BlockAddress(blockNum)
	if err != nil {
		return nil, err
	}
	if err := addr.checkBounds(a.spaceLen()); err != nil {
		return nil, err
	}
	start := 4 + addr.Offset()
	return a.data[start : start+addr.Len()], nil
}

// WriteBlock copies p into an allocated block, zeroing the remainder
// of the block. p larger than the block is a logic error.
func (a *Allocator) WriteBlock(blockNum uint32, p []byte) error {
	addr, err := a.BlockAddress(blockNum)
	if err != nil {
		return err
	}
	if uint32(len(p)) > addr.Len() {
		return errs.Logicf("write of %d bytes into block %s", len(p), addr)
	}
	if err := addr.checkBounds(a.spaceLen()); err != nil {
		return err
	}
	start := 4 + addr.Offset()
	n := copy(a.data[start:start+addr.Len()], p)
	for i := start + uint32(n); i < start+addr.Len(); i++ {
		a.data[i] = 0
	}
	return nil
}

// bookkeepingLen returns the encoded length of the bookkeeping block
// for the current allocator state.
func (a *Allocator) bookkeepingLen() uint32 {
	padded := (len(a.blocks) + tableChunk - 1) / tableChunk * tableChunk
	n := 8 + padded*4

	n += 4
	for name := range a.toc {
		n += 1 + len(name) + 4
	}
	for e := 0; e < 32; e++ {
		n += 4 + 4*len(a.free[e])
	}
	return uint32(n)
}

// encodeBookkeeping serializes the block table, table of contents and
// free lists.
func (a *Allocator) encodeBookkeeping() []byte {
	out := make([]byte, 0, a.bookkeepingLen())
	out = binary.BigEndian.AppendUint32(out, uint32(len(a.blocks)))
	out = binary.BigEndian.AppendUint32(out, 0)

	padded := (len(a.blocks) + tableChunk - 1) / tableChunk * tableChunk
	for i := 0; i < padded; i++ {
		var addr Address
		if i < len(a.blocks) && a.allocated[i] {
			addr = a.blocks[i]
		}
		out = binary.BigEndian.AppendUint32(out, uint32(addr))
	}

	names := make([]string, 0, len(a.toc))
	for name := range a.toc {
		names = append(names, name)
	}
	sort.Strings(names)
	out = binary.BigEndian.AppendUint32(out, uint32(len(names)))
	for _, name := range names {
		out = append(out, byte(len(name)))
		out = append(out, name...)
		out = binary.BigEndian.AppendUint32(out, a.toc[name])
	}

	for e := 0; e < 32; e++ {
		out = binary.BigEndian.AppendUint32(out, uint32(len(a.free[e])))
		for _, off := range a.free[e] {
			out = binary.BigEndian.AppendUint32(out, off)
		}
	}
	return out
}

// Flush allocates and writes the bookkeeping block, writes the header,
// and returns the finished container image. The bookkeeping block's
// own address appears inside itself, so sizing runs to a fixed point.
func (a *Allocator) Flush() ([]byte, error) {
	for i := 0; ; i++ {
		if i >= 16 {
			return nil, errs.Logicf("bookkeeping block sizing did not converge")
		}
		need := a.bookkeepingLen()
		if a.allocated[0] && a.blocks[0].Len() >= need {
			break
		}
		if a.allocated[0] {
			if err := a.pushFree(a.blocks[0]); err != nil {
				return nil, err
			}
			a.allocated[0] = false
			a.blocks[0] = 0
		}
		addr, err := a.allocateAddr(need)
		if err != nil {
			return nil, err
		}
		a.blocks[0] = addr
		a.allocated[0] = true
	}

	enc := a.encodeBookkeeping()
	if err := a.WriteBlock(0, enc); err != nil {
		return nil, err
	}

	hdr := a.data[:headerLen]
	binary.BigEndian.PutUint32(hdr[0:4], filePrefix)
	binary.BigEndian.PutUint32(hdr[4:8], magic)
	binary.BigEndian.PutUint32(hdr[8:12], a.blocks[0].Offset())
	binary.BigEndian.PutUint32(hdr[12:16], uint32(len(enc)))
	binary.BigEndian.PutUint32(hdr[16:20], a.blocks[0].Offset())
	copy(hdr[20:36], a.reserved[:])

	out := make([]byte, len(a.data))
	copy(out, a.data)
	return out, nil
}
