package btree

import (
	"github.com/DSStoreKit/dsstore/pkg/buddy"
	"github.com/DSStoreKit/dsstore/pkg/codec"
	"github.com/DSStoreKit/dsstore/pkg/common/errs"
)

// Walker yields a tree's records lazily in sorted order. Traversal
// validates node kinds against the declared height and aborts with a
// format error on any malformed or cyclic structure; a failed walk
// never yields a partial view silently — callers must check Err.
type Walker struct {
	alloc   *buddy.Allocator
	height  uint32
	visited map[uint32]bool
	stack   []frame
	current codec.Entry
	err     error
	done    bool
}

type frame struct {
	node      *node
	pos       int
	descended bool
}

// NewWalker starts an in-order traversal at the given root block.
// height is the number of internal levels; a lone leaf root has
// height 0.
func NewWalker(alloc *buddy.Allocator, rootBlock, height uint32) *Walker {
	w := &Walker{
		alloc:   alloc,
		height:  height,
		visited: make(map[uint32]bool),
	}
	w.push(rootBlock, 0)
	return w
}

// push reads and validates one node and makes it the top frame.
func (w *Walker) push(blockNum uint32, depth uint32) {
	if w.err != nil {
		return
	}
	if w.visited[blockNum] {
		w.err = errs.Formatf("cyclic tree reference to block %d", blockNum)
		return
	}
	w.visited[blockNum] = true

	data, err := w.alloc.ReadBlock(blockNum)
	if err != nil {
		w.err = err
		return
	}
	n, err := decodeNode(data)
	if err != nil {
		w.err = err
		return
	}

	wantLeaf := depth == w.height
	if n.isLeaf() != wantLeaf {
		kind := "internal"
		if n.isLeaf() {
			kind = "leaf"
		}
		w.err = errs.Formatf("%s node in block %d at depth %d of height-%d tree", kind, blockNum, depth, w.height)
		return
	}
	w.stack = append(w.stack, frame{node: n})
}

// Next advances to the next record. It returns false at the end of the
// tree or on error; check Err after the loop.
func (w *Walker) Next() bool {
	if w.err != nil || w.done {
		return false
	}
	for len(w.stack) > 0 {
		top := &w.stack[len(w.stack)-1]
		n := top.node

		if n.isLeaf() {
			if top.pos < len(n.entries) {
				w.current = n.entries[top.pos]
				top.pos++
				return true
			}
			w.stack = w.stack[:len(w.stack)-1]
			continue
		}

		// Internal: child[pos] precedes entry[pos]; the extra child at
		// the end is the node's rightmost subtree.
		if !top.descended {
			top.descended = true
			w.push(n.children[top.pos], uint32(len(w.stack)))
			if w.err != nil {
				return false
			}
			continue
		}
		if top.pos < len(n.entries) {
			w.current = n.entries[top.pos]
			top.pos++
			top.descended = false
			return true
		}
		w.stack = w.stack[:len(w.stack)-1]
	}
	w.done = true
	return false
}

// Entry returns the record at the current position.
func (w *Walker) Entry() codec.Entry { return w.current }

// Err returns the error that stopped the walk, if any.
func (w *Walker) Err() error { return w.err }

// ReadAll drains a walker into a slice; any traversal error discards
// the partial result.
func ReadAll(w *Walker) ([]codec.Entry, error) {
	var entries []codec.Entry
	for w.Next() {
		entries = append(entries, w.Entry())
	}
	if err := w.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
