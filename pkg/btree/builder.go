package btree

import (
	"github.com/DSStoreKit/dsstore/pkg/buddy"
	"github.com/DSStoreKit/dsstore/pkg/codec"
	"github.com/DSStoreKit/dsstore/pkg/common/errs"
)

// BuildResult describes a freshly built tree.
type BuildResult struct {
	RootBlock uint32
	Height    uint32 // internal levels; 0 when the root is a leaf
	NodeCount uint32
}

// Build writes a balanced tree over the given records, which must be
// strictly increasing under codec.Compare. Leaves are filled to the
// page budget; one record is promoted as the separator between sibling
// groups at every level, so internal separators are real records. The
// layout is a pure function of the input sequence.
func Build(alloc *buddy.Allocator, entries []codec.Entry, pageSize uint32) (BuildResult, error) {
	if pageSize < 64 {
		return BuildResult{}, errs.Logicf("page size %d too small", pageSize)
	}
	for i := 1; i < len(entries); i++ {
		if c := codec.Compare(entries[i-1], entries[i]); c >= 0 {
			if c == 0 {
				return BuildResult{}, errs.Logicf("duplicate record %s/%s", entries[i].Filename, entries[i].Code)
			}
			return BuildResult{}, errs.Logicf("records out of order at index %d", i)
		}
	}

	b := &builder{alloc: alloc, budget: int(pageSize) - nodeHeaderLen, pageSize: pageSize}

	nodes, seps, err := b.buildLeaves(entries)
	if err != nil {
		return BuildResult{}, err
	}
	height := uint32(0)
	for len(nodes) > 1 {
		nodes, seps, err = b.buildInternal(nodes, seps)
		if err != nil {
			return BuildResult{}, err
		}
		height++
	}
	return BuildResult{RootBlock: nodes[0], Height: height, NodeCount: b.nodeCount}, nil
}

type builder struct {
	alloc     *buddy.Allocator
	budget    int
	pageSize  uint32
	nodeCount uint32
}

// writeNode allocates a block for the encoded node and writes it. An
// oversized node gets the next larger block size instead of splitting.
func (b *builder) writeNode(encoded []byte) (uint32, error) {
	minLen := b.pageSize
	if uint32(len(encoded)) > minLen {
		minLen = uint32(len(encoded))
	}
	blockNum, err := b.alloc.Allocate(minLen)
	if err != nil {
		return 0, err
	}
	if err := b.alloc.WriteBlock(blockNum, encoded); err != nil {
		return 0, err
	}
	b.nodeCount++
	return blockNum, nil
}

// buildLeaves packs the sorted records into leaves, reserving one
// record between adjacent leaves as that boundary's separator.
func (b *builder) buildLeaves(entries []codec.Entry) ([]uint32, []codec.Entry, error) {
	var (
		leaves []uint32
		seps   []codec.Entry
		cur    []codec.Entry
		size   int
	)
	flush := func() error {
		blockNum, err := b.writeNode(encodeLeaf(cur))
		if err != nil {
			return err
		}
		leaves = append(leaves, blockNum)
		cur, size = nil, 0
		return nil
	}

	for i, e := range entries {
		sz := e.EncodedLen()
		// A record is promoted as the boundary separator only when
		// another record follows to seed the next leaf; a trailing
		// record instead joins the final leaf even past the budget.
		if len(cur) > 0 && size+sz > b.budget && i+1 < len(entries) {
			if err := flush(); err != nil {
				return nil, nil, err
			}
			seps = append(seps, e)
			continue
		}
		cur = append(cur, e)
		size += sz
	}
	if err := flush(); err != nil {
		return nil, nil, err
	}
	return leaves, seps, nil
}

// buildInternal packs one level of children and their separators into
// internal nodes, promoting a separator between adjacent nodes.
func (b *builder) buildInternal(children []uint32, seps []codec.Entry) ([]uint32, []codec.Entry, error) {
	var (
		nodes    []uint32
		upSeps   []codec.Entry
		curChild []uint32
		curEntry []codec.Entry
		size     int
	)
	flush := func(p uint32) error {
		blockNum, err := b.writeNode(encodeInternal(curChild, curEntry, p))
		if err != nil {
			return err
		}
		nodes = append(nodes, blockNum)
		curChild, curEntry, size = nil, nil, 0
		return nil
	}

	for i, sep := range seps {
		cost := 4 + sep.EncodedLen()
		if len(curEntry) > 0 && size+cost > b.budget {
			// children[i] closes the node as its rightmost subtree and
			// the separator moves up a level.
			if err := flush(children[i]); err != nil {
				return nil, nil, err
			}
			upSeps = append(upSeps, sep)
			continue
		}
		curChild = append(curChild, children[i])
		curEntry = append(curEntry, sep)
		size += cost
	}
	if err := flush(children[len(children)-1]); err != nil {
		return nil, nil, err
	}
	return nodes, upSeps, nil
}
