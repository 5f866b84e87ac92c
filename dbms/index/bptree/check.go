package bptree

import (
	"github.com/btree-query-bench/pagetree/dbms/dberr"
	"github.com/btree-query-bench/pagetree/dbms/index/btpage"
)

// Stats summarizes the shape of a tree.
type Stats struct {
	Height        int
	Leaves        int
	InternalNodes int
	Keys          int
	Degree        int
	NodeSize      int
	FileSize      int64
	FileNodes     int64
	CachedNodes   int
	// LeafInventory is the leaf list saved by the last Close, if any.
	LeafInventory []uint64
}

// Stats walks the tree and reports its shape.
func (t *Tree[K, V]) Stats() (Stats, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return Stats{}, dberr.ErrNotInitialized
	}

	s := Stats{
		Degree:        t.layout.Degree(),
		NodeSize:      t.layout.NodeSize(),
		FileSize:      t.pg.Size(),
		FileNodes:     t.pg.Records(),
		CachedNodes:   t.pg.Cached(),
		LeafInventory: append([]uint64(nil), t.leaves...),
	}
	err := t.walk(func(n *btpage.Node[K, V], depth int) error {
		if depth+1 > s.Height {
			s.Height = depth + 1
		}
		if n.IsLeaf() {
			s.Leaves++
			s.Keys += n.Used()
		} else {
			s.InternalNodes++
		}
		return nil
	})
	return s, err
}

// walk visits every reachable node depth-first, parents before children.
func (t *Tree[K, V]) walk(fn func(n *btpage.Node[K, V], depth int) error) error {
	root, err := t.load(btpage.RootOffset)
	if err != nil {
		return err
	}
	var visit func(n *btpage.Node[K, V], depth int) error
	visit = func(n *btpage.Node[K, V], depth int) error {
		if int64(depth) > t.pg.Records() {
			return dberr.Encodingf("bptree: cycle through node %d", n.Offset)
		}
		if err := fn(n, depth); err != nil {
			return err
		}
		for _, off := range n.Children {
			c, err := t.child(n, off)
			if err != nil {
				return err
			}
			if err := visit(c, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(root, 0)
}

// Check verifies the structural invariants: ordered keys within the bounds
// set by the ancestors, child counts, parent links, root flags, minimum
// occupancy, uniform leaf depth and a leaf chain that visits every leaf in
// order. The first violation is returned as an encoding error.
func (t *Tree[K, V]) Check() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return dberr.ErrNotInitialized
	}

	c := checker[K, V]{t: t, leafDepth: -1}
	root, err := t.load(btpage.RootOffset)
	if err != nil {
		return err
	}
	if !root.IsRoot {
		return dberr.Encodingf("bptree: root is not flagged as root")
	}
	if err := c.node(root, 0, nil, nil); err != nil {
		return err
	}

	// The leaf chain must match the depth-first leaf order.
	i := 0
	err = t.eachLeaf(func(leaf *btpage.Node[K, V]) error {
		if i >= len(c.leaves) || c.leaves[i] != leaf.Offset {
			return dberr.Encodingf("bptree: leaf chain reaches %d at position %d out of order", leaf.Offset, i)
		}
		i++
		return nil
	})
	if err != nil {
		return err
	}
	if i != len(c.leaves) {
		return dberr.Encodingf("bptree: leaf chain visits %d of %d leaves", i, len(c.leaves))
	}
	return nil
}

type checker[K, V any] struct {
	t         *Tree[K, V]
	leafDepth int
	leaves    []btpage.Offset
}

// node checks n and its subtree. Keys must satisfy lo <= key < hi where the
// bounds are set.
func (c *checker[K, V]) node(n *btpage.Node[K, V], depth int, lo, hi *K) error {
	t := c.t
	cmp := t.layout.Compare
	if int64(depth) > t.pg.Records() {
		return dberr.Encodingf("bptree: cycle through node %d", n.Offset)
	}
	if !n.IsRoot && n.Used() < t.layout.MinKeys() {
		return dberr.Encodingf("bptree: node %d holds %d keys, minimum %d", n.Offset, n.Used(), t.layout.MinKeys())
	}
	for i, k := range n.Keys {
		if i > 0 && cmp(n.Keys[i-1], k) >= 0 {
			return dberr.Encodingf("bptree: keys of node %d are not strictly ascending at %d", n.Offset, i)
		}
		if lo != nil && cmp(k, *lo) < 0 || hi != nil && cmp(k, *hi) >= 0 {
			return dberr.Encodingf("bptree: key %d of node %d is outside its parent's range", i, n.Offset)
		}
	}

	if n.IsLeaf() {
		if c.leafDepth < 0 {
			c.leafDepth = depth
		} else if depth != c.leafDepth {
			return dberr.Encodingf("bptree: leaf %d at depth %d, others at %d", n.Offset, depth, c.leafDepth)
		}
		c.leaves = append(c.leaves, n.Offset)
		return nil
	}

	if len(n.Children) != n.Used()+1 {
		return dberr.Encodingf("bptree: internal node %d has %d keys and %d children", n.Offset, n.Used(), len(n.Children))
	}
	for i, off := range n.Children {
		child, err := t.child(n, off)
		if err != nil {
			return err
		}
		if child.IsRoot {
			return dberr.Encodingf("bptree: child %d of node %d is flagged as root", off, n.Offset)
		}
		if child.Parent != n.Offset {
			return dberr.Encodingf("bptree: node %d names parent %d, listed by %d", off, child.Parent, n.Offset)
		}
		clo, chi := lo, hi
		if i > 0 {
			clo = &n.Keys[i-1]
		}
		if i < n.Used() {
			chi = &n.Keys[i]
		}
		if err := c.node(child, depth+1, clo, chi); err != nil {
			return err
		}
	}
	return nil
}
