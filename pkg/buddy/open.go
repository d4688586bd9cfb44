package buddy

import (
	"encoding/binary"

	"github.com/DSStoreKit/dsstore/pkg/common/errs"
)

// byteReader is a bounds-checked big-endian cursor over a block.
type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) uint32(what string) (uint32, error) {
	if len(r.buf)-r.pos < 4 {
		return 0, errs.Formatf("%s truncated at offset %d", what, r.pos)
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *byteReader) byte(what string) (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, errs.Formatf("%s truncated at offset %d", what, r.pos)
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *byteReader) bytes(what string, n int) ([]byte, error) {
	if n < 0 || len(r.buf)-r.pos < n {
		return nil, errs.Formatf("%s truncated at offset %d", what, r.pos)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// OpenAllocator parses a container image: header, block table, table
// of contents and free lists. Every address is validated against the
// container length before use.
func OpenAllocator(data []byte) (*Allocator, error) {
	if len(data) < headerLen {
		return nil, errs.Formatf("container of %d bytes is smaller than the header", len(data))
	}
	if v := binary.BigEndian.Uint32(data[0:4]); v != filePrefix {
		return nil, errs.Formatf("bad alignment word %#x", v)
	}
	if v := binary.BigEndian.Uint32(data[4:8]); v != magic {
		return nil, errs.Formatf("bad magic %#x, want %#x", v, magic)
	}
	bkOffset := binary.BigEndian.Uint32(data[8:12])
	bkLen := binary.BigEndian.Uint32(data[12:16])
	bkOffset2 := binary.BigEndian.Uint32(data[16:20])
	if bkOffset != bkOffset2 {
		return nil, errs.Formatf("bookkeeping offset mismatch: %#x != %#x", bkOffset, bkOffset2)
	}

	a := &Allocator{
		data: data,
		toc:  make(map[string]uint32),
	}
	copy(a.reserved[:], data[20:36])

	spaceLen := a.spaceLen()
	bkEnd := uint64(bkOffset) + uint64(bkLen)
	if bkEnd > uint64(spaceLen) {
		return nil, errs.Formatf("bookkeeping block %#x+%d extends past container end %d", bkOffset, bkLen, spaceLen)
	}
	r := &byteReader{buf: data[4+bkOffset : 4+bkEnd]}

	count, err := r.uint32("block count")
	if err != nil {
		return nil, err
	}
	if _, err := r.uint32("block table filler"); err != nil {
		return nil, err
	}
	// The table is padded with zeros to a multiple of 256 entries.
	padded := (int(count) + tableChunk - 1) / tableChunk * tableChunk
	if count == 0 || padded*4 > len(r.buf) {
		return nil, errs.Formatf("implausible block count %d", count)
	}
	a.blocks = make([]Address, count)
	a.allocated = make([]bool, count)
	for i := 0; i < padded; i++ {
		v, err := r.uint32("block table entry")
		if err != nil {
			return nil, err
		}
		if i >= int(count) {
			continue
		}
		if v == 0 && i > 0 {
			continue // freed slot
		}
		addr := Address(v)
		if err := addr.checkBounds(spaceLen); err != nil {
			return nil, err
		}
		a.blocks[i] = addr
		a.allocated[i] = true
	}

	tocCount, err := r.uint32("toc count")
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < tocCount; i++ {
		nameLen, err := r.byte("toc name length")
		if err != nil {
			return nil, err
		}
		name, err := r.bytes("toc name", int(nameLen))
		if err != nil {
			return nil, err
		}
		blockNum, err := r.uint32("toc block number")
		if err != nil {
			return nil, err
		}
		if blockNum >= count {
			return nil, errs.Formatf("toc entry %q points at block %d of %d", name, blockNum, count)
		}
		a.toc[string(name)] = blockNum
	}

	seen := make(map[uint32]bool)
	for e := 0; e < 32; e++ {
		n, err := r.uint32("free list count")
		if err != nil {
			return nil, err
		}
		if int(n) > len(r.buf)/4 {
			return nil, errs.Formatf("implausible free list count %d for class %d", n, e)
		}
		for i := uint32(0); i < n; i++ {
			off, err := r.uint32("free list offset")
			if err != nil {
				return nil, err
			}
			if off&0x1f != 0 {
				return nil, errs.Formatf("free offset %#x in class %d is not 32-byte aligned", off, e)
			}
			if seen[off] {
				return nil, errs.Formatf("free offset %#x appears in more than one list", off)
			}
			seen[off] = true
			a.free[e] = append(a.free[e], off)
		}
	}

	return a, nil
}
