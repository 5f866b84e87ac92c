package bptree

import (
	"github.com/btree-query-bench/pagetree/dbms/dberr"
	"github.com/btree-query-bench/pagetree/dbms/index/btpage"
	"github.com/cockroachdb/errors"
)

// searchLeaf descends from the root to the leaf whose range holds key.
func (t *Tree[K, V]) searchLeaf(key K) (*btpage.Node[K, V], error) {
	n, err := t.load(btpage.RootOffset)
	if err != nil {
		return nil, err
	}
	for depth := 0; !n.IsLeaf(); depth++ {
		if int64(depth) > t.pg.Records() {
			return nil, dberr.Encodingf("bptree: descent deeper than the file has nodes, cycle at %d", n.Offset)
		}
		i := n.ChildIndex(t.layout.Compare, key)
		if n, err = t.child(n, n.Children[i]); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// leftmostLeaf descends along the first child of every internal node.
func (t *Tree[K, V]) leftmostLeaf() (*btpage.Node[K, V], error) {
	n, err := t.load(btpage.RootOffset)
	if err != nil {
		return nil, err
	}
	for depth := 0; !n.IsLeaf(); depth++ {
		if int64(depth) > t.pg.Records() {
			return nil, dberr.Encodingf("bptree: descent deeper than the file has nodes, cycle at %d", n.Offset)
		}
		if n, err = t.child(n, n.Children[0]); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// Get returns the value stored under key, or ErrKeyNotFound.
func (t *Tree[K, V]) Get(key K) (V, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero V
	if !t.open {
		return zero, dberr.ErrNotInitialized
	}
	leaf, err := t.searchLeaf(key)
	if err != nil {
		return zero, err
	}
	i, found := leaf.Search(t.layout.Compare, key)
	if !found {
		return zero, dberr.ErrKeyNotFound
	}
	return leaf.Values[i], nil
}

// Has reports whether key is present.
func (t *Tree[K, V]) Has(key K) (bool, error) {
	_, err := t.Get(key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, dberr.ErrKeyNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Len counts the keys by walking the leaf chain.
func (t *Tree[K, V]) Len() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return 0, dberr.ErrNotInitialized
	}

	count := 0
	err := t.eachLeaf(func(leaf *btpage.Node[K, V]) error {
		count += leaf.Used()
		return nil
	})
	return count, err
}

// eachLeaf calls fn for every leaf from left to right following the next
// links.
func (t *Tree[K, V]) eachLeaf(fn func(leaf *btpage.Node[K, V]) error) error {
	leaf, err := t.leftmostLeaf()
	if err != nil {
		return err
	}
	for steps := int64(0); ; steps++ {
		if steps > t.pg.Records() {
			return dberr.Encodingf("bptree: leaf chain longer than the file, cycle at %d", leaf.Offset)
		}
		if err := fn(leaf); err != nil {
			return err
		}
		if leaf.Type.Next == btpage.NoOffset {
			return nil
		}
		if leaf, err = t.nextLeaf(leaf); err != nil {
			return err
		}
	}
}

func (t *Tree[K, V]) nextLeaf(leaf *btpage.Node[K, V]) (*btpage.Node[K, V], error) {
	next, err := t.layout.Load(t.pg, leaf.Type.Next)
	if err != nil {
		return nil, err
	}
	if !next.IsLeaf() {
		return nil, dberr.Encodingf("bptree: leaf %d links to %s node %d", leaf.Offset, next.Type.Kind, next.Offset)
	}
	return next, nil
}

func (t *Tree[K, V]) leafOffsets() ([]uint64, error) {
	var offs []uint64
	err := t.eachLeaf(func(leaf *btpage.Node[K, V]) error {
		offs = append(offs, uint64(leaf.Offset))
		return nil
	})
	return offs, err
}

// ─── Iteration ────────────────────────────────────────────────────────────────

// Iterator walks key/value pairs in ascending key order along the leaf
// chain. It holds one leaf at a time and takes the tree lock only to load
// the next one, so writes may interleave; the iterator never yields a key
// that is not greater than the previous one.
type Iterator[K, V any] struct {
	t      *Tree[K, V]
	end    K
	hasEnd bool

	keys []K
	vals []V
	pos  int
	next btpage.Offset

	key     K
	val     V
	started bool
	done    bool
	err     error
}

// Range returns an iterator over the keys in [start, end].
func (t *Tree[K, V]) Range(start, end K) (*Iterator[K, V], error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return nil, dberr.ErrNotInitialized
	}

	leaf, err := t.searchLeaf(start)
	if err != nil {
		return nil, err
	}
	i, _ := leaf.Search(t.layout.Compare, start)
	it := t.newIterator(leaf, i)
	it.end, it.hasEnd = end, true
	if t.layout.Compare(start, end) > 0 {
		it.done = true
	}
	return it, nil
}

// Scan returns an iterator over every key.
func (t *Tree[K, V]) Scan() (*Iterator[K, V], error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return nil, dberr.ErrNotInitialized
	}

	leaf, err := t.leftmostLeaf()
	if err != nil {
		return nil, err
	}
	return t.newIterator(leaf, 0), nil
}

// Ascend calls fn for every pair in ascending key order until fn returns
// false.
func (t *Tree[K, V]) Ascend(fn func(key K, value V) bool) error {
	it, err := t.Scan()
	if err != nil {
		return err
	}
	defer it.Close()
	for it.Next() {
		if !fn(it.Key(), it.Value()) {
			break
		}
	}
	return it.Error()
}

// Loaded leaves and the committed root are never mutated in place, so the
// iterator can keep their slices.
func (t *Tree[K, V]) newIterator(leaf *btpage.Node[K, V], pos int) *Iterator[K, V] {
	return &Iterator[K, V]{
		t:    t,
		keys: leaf.Keys,
		vals: leaf.Values,
		pos:  pos,
		next: leaf.Type.Next,
	}
}

// Next advances to the next pair and reports whether there is one.
func (it *Iterator[K, V]) Next() bool {
	cmp := it.t.layout.Compare
	for !it.done {
		if it.pos < len(it.keys) {
			k, v := it.keys[it.pos], it.vals[it.pos]
			it.pos++
			if it.hasEnd && cmp(k, it.end) > 0 {
				it.done = true
				return false
			}
			if it.started && cmp(k, it.key) <= 0 {
				continue
			}
			it.key, it.val, it.started = k, v, true
			return true
		}
		if it.next == btpage.NoOffset {
			it.done = true
			return false
		}
		it.advance()
	}
	return false
}

func (it *Iterator[K, V]) advance() {
	t := it.t
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		it.err, it.done = dberr.ErrNotInitialized, true
		return
	}
	leaf, err := t.layout.Load(t.pg, it.next)
	if err == nil && !leaf.IsLeaf() {
		err = dberr.Encodingf("bptree: leaf chain reaches %s node %d", leaf.Type.Kind, leaf.Offset)
	}
	if err != nil {
		it.err, it.done = err, true
		return
	}
	it.keys, it.vals, it.pos, it.next = leaf.Keys, leaf.Values, 0, leaf.Type.Next
}

// Key returns the current key.
func (it *Iterator[K, V]) Key() K { return it.key }

// Value returns the current value.
func (it *Iterator[K, V]) Value() V { return it.val }

// Error returns the error that stopped the iteration, if any.
func (it *Iterator[K, V]) Error() error { return it.err }

// Close stops the iteration.
func (it *Iterator[K, V]) Close() error {
	it.done = true
	it.keys, it.vals = nil, nil
	return nil
}
