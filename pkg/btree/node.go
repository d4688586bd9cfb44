// Package btree implements the container's on-disk index: a sorted
// multi-way tree of records paged into allocator blocks. Trees are
// read with a lazy in-order walker and written with a deterministic
// bulk build from a sorted record sequence; there is no incremental
// insertion.
package btree

import (
	"encoding/binary"

	"github.com/DSStoreKit/dsstore/pkg/codec"
	"github.com/DSStoreKit/dsstore/pkg/common/errs"
)

// nodeHeaderLen covers the leading P word and the record count.
const nodeHeaderLen = 8

// node is one decoded tree node. A leaf has no children; an internal
// node has len(entries)+1 children, the last being the node's P
// (rightmost) pointer. Records in internal nodes are real records and
// are yielded between their neighboring subtrees.
type node struct {
	entries  []codec.Entry
	children []uint32
}

func (n *node) isLeaf() bool { return n.children == nil }

// decodeNode parses a node from block data.
func decodeNode(data []byte) (*node, error) {
	if len(data) < nodeHeaderLen {
		return nil, errs.Formatf("node block of %d bytes is smaller than the node header", len(data))
	}
	p := binary.BigEndian.Uint32(data[0:4])
	count := binary.BigEndian.Uint32(data[4:8])
	pos := nodeHeaderLen

	if int(count) > len(data)/4 {
		return nil, errs.Formatf("implausible node record count %d in %d-byte block", count, len(data))
	}

	n := &node{entries: make([]codec.Entry, 0, count)}
	if p != 0 {
		n.children = make([]uint32, 0, count+1)
	}
	for i := uint32(0); i < count; i++ {
		if p != 0 {
			if len(data)-pos < 4 {
				return nil, errs.Formatf("node child pointer truncated")
			}
			n.children = append(n.children, binary.BigEndian.Uint32(data[pos:]))
			pos += 4
		}
		e, consumed, err := codec.DecodeEntry(data[pos:])
		if err != nil {
			return nil, err
		}
		n.entries = append(n.entries, e)
		pos += consumed
	}
	if p != 0 {
		n.children = append(n.children, p)
	}
	return n, nil
}

// encodedLeafLen returns the block bytes a leaf of the given entries
// needs.
func encodedLeafLen(entries []codec.Entry) int {
	n := nodeHeaderLen
	for _, e := range entries {
		n += e.EncodedLen()
	}
	return n
}

// encodeLeaf serializes a leaf node.
func encodeLeaf(entries []codec.Entry) []byte {
	out := make([]byte, 0, encodedLeafLen(entries))
	out = binary.BigEndian.AppendUint32(out, 0)
	out = binary.BigEndian.AppendUint32(out, uint32(len(entries)))
	for _, e := range entries {
		out = e.AppendTo(out)
	}
	return out
}

// encodeInternal serializes an internal node holding count pairs of
// (child, record) plus the rightmost child p.
func encodeInternal(children []uint32, entries []codec.Entry, p uint32) []byte {
	size := nodeHeaderLen
	for _, e := range entries {
		size += 4 + e.EncodedLen()
	}
	out := make([]byte, 0, size)
	out = binary.BigEndian.AppendUint32(out, p)
	out = binary.BigEndian.AppendUint32(out, uint32(len(entries)))
	for i, e := range entries {
		out = binary.BigEndian.AppendUint32(out, children[i])
		out = e.AppendTo(out)
	}
	return out
}
