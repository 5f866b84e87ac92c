package bptree

import (
	"github.com/btree-query-bench/pagetree/dbms/dberr"
	"github.com/btree-query-bench/pagetree/dbms/index/btpage"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Insert adds key with value. An existing key is rejected with
// ErrDuplicateKey and the tree is left untouched.
func (t *Tree[K, V]) Insert(key K, value V) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.mutate(func() error {
		leaf, err := t.searchLeaf(key)
		if err != nil {
			return err
		}
		i, found := leaf.Search(t.layout.Compare, key)
		if found {
			return errors.Wrapf(dberr.ErrDuplicateKey, "bptree: insert %v", key)
		}
		return t.insertAt(leaf, i, key, value)
	})
}

// Put inserts key or overwrites its value.
func (t *Tree[K, V]) Put(key K, value V) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.mutate(func() error {
		leaf, err := t.searchLeaf(key)
		if err != nil {
			return err
		}
		i, found := leaf.Search(t.layout.Compare, key)
		if found {
			leaf.SetValue(i, value)
			return t.persist(leaf)
		}
		return t.insertAt(leaf, i, key, value)
	})
}

// Update overwrites the value of an existing key. An absent key yields
// ErrKeyNotFound and nothing is written.
func (t *Tree[K, V]) Update(key K, value V) error {
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
		leaf.SetValue(i, value)
		return t.persist(leaf)
	})
}

// insertAt places the pair at index i of leaf and splits the leaf if it was
// already full.
func (t *Tree[K, V]) insertAt(leaf *btpage.Node[K, V], i int, key K, value V) error {
	leaf.InsertAt(i, key, value)
	if leaf.Overflows() {
		return t.split(leaf)
	}
	return t.persist(leaf)
}

// ─── Splitting ────────────────────────────────────────────────────────────────

// split divides a node holding degree keys. A non-root node keeps its left
// half and hands the right half to a new sibling; the separator goes to the
// parent, which may split in turn. The root instead moves both halves into
// new children and becomes their parent in place, so it never leaves
// offset 0.
func (t *Tree[K, V]) split(n *btpage.Node[K, V]) error {
	if n.IsRoot {
		return t.splitRoot(n)
	}

	rightOff, err := t.allocate()
	if err != nil {
		return err
	}
	var (
		right *btpage.Node[K, V]
		sep   K
	)
	if n.IsLeaf() {
		right = t.layout.NewLeaf(rightOff, n.Parent, n.Type.Next)
		sep = t.moveLeafHalf(n, right)
		n.Type.Next = rightOff
	} else {
		right = t.layout.NewInternal(rightOff, n.Parent)
		sep = t.moveInternalHalf(n, right)
	}

	if err := t.persist(right); err != nil {
		return err
	}
	if !right.IsLeaf() {
		if err := t.adopt(right); err != nil {
			return err
		}
	}
	if err := t.persist(n); err != nil {
		return err
	}

	parent, err := t.load(n.Parent)
	if err != nil {
		return err
	}
	idx := parent.IndexOfChild(n.Offset)
	if parent.IsLeaf() || idx < 0 {
		return dberr.Encodingf("bptree: node %d is not a child of its parent %d", n.Offset, n.Parent)
	}
	parent.InsertChild(idx, sep, rightOff)
	t.log.Debug("node split",
		zap.Stringer("kind", n.Type.Kind),
		zap.Uint64("left", uint64(n.Offset)),
		zap.Uint64("right", uint64(rightOff)),
		zap.Uint64("parent", uint64(parent.Offset)),
	)
	if parent.Overflows() {
		return t.split(parent)
	}
	return t.persist(parent)
}

// splitRoot moves the root's halves into two new nodes and turns the root
// into an internal node over them, growing the tree by one level.
func (t *Tree[K, V]) splitRoot(root *btpage.Node[K, V]) error {
	leftOff, err := t.allocate()
	if err != nil {
		return err
	}
	rightOff, err := t.allocate()
	if err != nil {
		return err
	}

	var left, right *btpage.Node[K, V]
	var sep K
	if root.IsLeaf() {
		left = t.layout.NewLeaf(leftOff, btpage.RootOffset, rightOff)
		right = t.layout.NewLeaf(rightOff, btpage.RootOffset, root.Type.Next)
		sep = t.moveLeafHalf(root, right)
		left.Keys = append(left.Keys, root.Keys...)
		left.Values = append(left.Values, root.Values...)
	} else {
		left = t.layout.NewInternal(leftOff, btpage.RootOffset)
		right = t.layout.NewInternal(rightOff, btpage.RootOffset)
		sep = t.moveInternalHalf(root, right)
		left.Keys = append(left.Keys, root.Keys...)
		left.Children = append(left.Children, root.Children...)
	}

	for _, n := range []*btpage.Node[K, V]{left, right} {
		if err := t.persist(n); err != nil {
			return err
		}
		if !n.IsLeaf() {
			if err := t.adopt(n); err != nil {
				return err
			}
		}
	}

	root.Type = btpage.Internal()
	root.Keys = append(root.Keys[:0], sep)
	root.Values = nil
	root.Children = []btpage.Offset{leftOff, rightOff}
	root.MarkDirty()
	t.log.Debug("root split",
		zap.Uint64("left", uint64(leftOff)),
		zap.Uint64("right", uint64(rightOff)),
	)
	return t.persist(root)
}

// moveLeafHalf moves keys[mid:] of an overflowing leaf into the empty leaf
// right and returns the first moved key, which is copied up as separator.
func (t *Tree[K, V]) moveLeafHalf(n, right *btpage.Node[K, V]) K {
	mid := t.layout.Degree() / 2
	right.Keys = append(right.Keys, n.Keys[mid:]...)
	right.Values = append(right.Values, n.Values[mid:]...)
	n.Keys = n.Keys[:mid]
	n.Values = n.Values[:mid]
	n.MarkDirty()
	right.MarkDirty()
	return right.Keys[0]
}

// moveInternalHalf moves keys[mid+1:] and children[mid+1:] of an
// overflowing internal node into the empty node right and returns keys[mid],
// which moves up to the parent.
func (t *Tree[K, V]) moveInternalHalf(n, right *btpage.Node[K, V]) K {
	mid := t.layout.Degree() / 2
	sep := n.Keys[mid]
	right.Keys = append(right.Keys, n.Keys[mid+1:]...)
	right.Children = append(right.Children, n.Children[mid+1:]...)
	n.Keys = n.Keys[:mid]
	n.Children = n.Children[:mid+1]
	n.MarkDirty()
	right.MarkDirty()
	return sep
}

// adopt points the parent offset of every child of n at n.
func (t *Tree[K, V]) adopt(n *btpage.Node[K, V]) error {
	for _, off := range n.Children {
		c, err := t.child(n, off)
		if err != nil {
			return err
		}
		c.SetParent(n.Offset)
		if err := t.persist(c); err != nil {
			return err
		}
	}
	return nil
}
