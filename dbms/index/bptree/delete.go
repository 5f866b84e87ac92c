package bptree

import (
	"github.com/btree-query-bench/pagetree/dbms/dberr"
	"github.com/btree-query-bench/pagetree/dbms/index/btpage"
	"go.uber.org/zap"
)

// Delete removes key, or returns ErrKeyNotFound. A node left below minimum
// occupancy borrows from a sibling or merges with one; merges may cascade up
// to the root, and a root left with a single child absorbs it, shrinking the
// tree by one level. Abandoned nodes stay in the file.
func (t *Tree[K, V]) Delete(key K) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.mutate(func() error {
		leaf, err := t.searchLeaf(key)
		if err != nil {
			return err
		}
		i, found := leaf.Search(t.layout.Compare, key)
		if !found {
			return dberr.ErrKeyNotFound
		}
		leaf.RemoveAt(i)
		return t.rebalance(leaf)
	})
}

// rebalance restores minimum occupancy of n after a removal and persists
// every node it touches.
func (t *Tree[K, V]) rebalance(n *btpage.Node[K, V]) error {
	if n.IsRoot {
		if !n.IsLeaf() && n.Used() == 0 {
			if err := t.collapseRoot(n); err != nil {
				return err
			}
		}
		return t.persist(n)
	}
	if !n.IsUnderflow() {
		return t.persist(n)
	}

	parent, err := t.load(n.Parent)
	if err != nil {
		return err
	}
	idx := parent.IndexOfChild(n.Offset)
	if parent.IsLeaf() || idx < 0 {
		return dberr.Encodingf("bptree: node %d is not a child of its parent %d", n.Offset, n.Parent)
	}

	var left, right *btpage.Node[K, V]
	if idx > 0 {
		if left, err = t.child(parent, parent.Children[idx-1]); err != nil {
			return err
		}
		if left.CanLend() {
			return t.borrowLeft(parent, idx, left, n)
		}
	}
	if idx < len(parent.Children)-1 {
		if right, err = t.child(parent, parent.Children[idx+1]); err != nil {
			return err
		}
		if right.CanLend() {
			return t.borrowRight(parent, idx, n, right)
		}
	}

	if left != nil {
		err = t.merge(parent, idx-1, left, n)
	} else if right != nil {
		err = t.merge(parent, idx, n, right)
	} else {
		return dberr.Encodingf("bptree: node %d has no siblings under %d", n.Offset, parent.Offset)
	}
	if err != nil {
		return err
	}
	return t.rebalance(parent)
}

// borrowLeft moves the last entry of left to the front of n, the child at
// idx, and updates the separator between them.
func (t *Tree[K, V]) borrowLeft(parent *btpage.Node[K, V], idx int, left, n *btpage.Node[K, V]) error {
	last := left.Used() - 1
	if n.IsLeaf() {
		k, v := left.RemoveAt(last)
		n.InsertAt(0, k, v)
		parent.SetKey(idx-1, k)
	} else {
		k, c := left.RemoveChild(last)
		n.InsertChildLeft(0, parent.Keys[idx-1], c)
		parent.SetKey(idx-1, k)
		if err := t.reparent(n, c); err != nil {
			return err
		}
	}
	return t.persistAll(left, n, parent)
}

// borrowRight moves the first entry of right to the end of n, the child at
// idx, and updates the separator between them.
func (t *Tree[K, V]) borrowRight(parent *btpage.Node[K, V], idx int, n, right *btpage.Node[K, V]) error {
	if n.IsLeaf() {
		k, v := right.RemoveAt(0)
		n.InsertAt(n.Used(), k, v)
		parent.SetKey(idx, right.Keys[0])
	} else {
		k, c := right.RemoveChildLeft(0)
		n.InsertChild(n.Used(), parent.Keys[idx], c)
		parent.SetKey(idx, k)
		if err := t.reparent(n, c); err != nil {
			return err
		}
	}
	return t.persistAll(right, n, parent)
}

// merge folds right into left, where parent.Keys[sep] separates them, and
// drops right from the parent. The parent is not persisted.
func (t *Tree[K, V]) merge(parent *btpage.Node[K, V], sep int, left, right *btpage.Node[K, V]) error {
	if left.IsLeaf() {
		left.Keys = append(left.Keys, right.Keys...)
		left.Values = append(left.Values, right.Values...)
		left.Type.Next = right.Type.Next
	} else {
		left.Keys = append(left.Keys, parent.Keys[sep])
		left.Keys = append(left.Keys, right.Keys...)
		left.Children = append(left.Children, right.Children...)
		for _, c := range right.Children {
			if err := t.reparent(left, c); err != nil {
				return err
			}
		}
	}
	left.MarkDirty()
	parent.RemoveChild(sep)
	t.log.Debug("nodes merged",
		zap.Stringer("kind", left.Type.Kind),
		zap.Uint64("into", uint64(left.Offset)),
		zap.Uint64("abandoned", uint64(right.Offset)),
	)
	return t.persist(left)
}

// collapseRoot copies the only child of an empty internal root into the
// root. The child's children are re-parented to offset 0.
func (t *Tree[K, V]) collapseRoot(root *btpage.Node[K, V]) error {
	c, err := t.child(root, root.Children[0])
	if err != nil {
		return err
	}
	root.Type = c.Type
	root.Keys = append(root.Keys[:0], c.Keys...)
	root.Values = nil
	root.Children = nil
	if c.IsLeaf() {
		root.Values = append(make([]V, 0, t.layout.Degree()), c.Values...)
		root.Type.Next = btpage.NoOffset
	} else {
		root.Children = append(make([]btpage.Offset, 0, t.layout.Degree()+1), c.Children...)
		for _, gc := range c.Children {
			if err := t.reparent(root, gc); err != nil {
				return err
			}
		}
	}
	root.MarkDirty()
	t.log.Debug("root collapsed", zap.Uint64("absorbed", uint64(c.Offset)))
	return nil
}

// reparent loads the child at off and points it at parent.
func (t *Tree[K, V]) reparent(parent *btpage.Node[K, V], off btpage.Offset) error {
	c, err := t.child(parent, off)
	if err != nil {
		return err
	}
	c.SetParent(parent.Offset)
	return t.persist(c)
}

func (t *Tree[K, V]) persistAll(nodes ...*btpage.Node[K, V]) error {
	for _, n := range nodes {
		if err := t.persist(n); err != nil {
			return err
		}
	}
	return nil
}
