package btpage

import "fmt"

// Kind discriminates internal nodes from leaves.
type Kind uint64

const (
	KindInternal = Kind(TagInternal)
	KindLeaf     = Kind(TagLeaf)
)

func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindLeaf:
		return "leaf"
	default:
		return fmt.Sprintf("kind(%d)", uint64(k))
	}
}

// NodeType is the tagged node variant. Next is the offset of the following
// leaf in key order and is only meaningful for leaves; NoOffset marks the last
// leaf.
type NodeType struct {
	Kind Kind
	Next Offset
}

// Internal returns the internal node type.
func Internal() NodeType { return NodeType{Kind: KindInternal} }

// Leaf returns the leaf node type linked to next.
func Leaf(next Offset) NodeType { return NodeType{Kind: KindLeaf, Next: next} }

// Node is the in-memory form of one node record. Nodes do not reference each
// other directly: parents and children are named by offset and loaded on
// demand.
type Node[K, V any] struct {
	Type   NodeType
	IsRoot bool
	Parent Offset
	Offset Offset

	// Keys are strictly ascending. For internal nodes Keys[i] separates
	// Children[i] (keys < Keys[i]) from Children[i+1] (keys >= Keys[i]).
	Keys []K
	// Values holds one value per key; leaves only.
	Values []V
	// Children holds len(Keys)+1 child offsets; internal nodes only.
	Children []Offset

	maxKeys int
	minKeys int
	dirty   bool
}

// IsLeaf reports whether n is a leaf.
func (n *Node[K, V]) IsLeaf() bool { return n.Type.Kind == KindLeaf }

// Used returns the number of keys, the on-disk used_count.
func (n *Node[K, V]) Used() int { return len(n.Keys) }

// IsFull reports whether the node holds degree-1 keys; inserting into a full
// node forces a split.
func (n *Node[K, V]) IsFull() bool { return len(n.Keys) >= n.maxKeys }

// Overflows reports whether the node holds more keys than fit on disk.
func (n *Node[K, V]) Overflows() bool { return len(n.Keys) > n.maxKeys }

// IsUnderflow reports whether a non-root node is below minimum occupancy.
// The root is exempt.
func (n *Node[K, V]) IsUnderflow() bool {
	return !n.IsRoot && len(n.Keys) < n.minKeys
}

// CanLend reports whether the node can give a key to a sibling and stay at or
// above minimum occupancy.
func (n *Node[K, V]) CanLend() bool { return len(n.Keys) > n.minKeys }

// IsDirty reports whether the node's file image is stale.
func (n *Node[K, V]) IsDirty() bool { return n.dirty }

// MarkDirty flags the node for rewriting.
func (n *Node[K, V]) MarkDirty() { n.dirty = true }

// Search returns the index of the first key >= key and whether that key is
// equal to key.
func (n *Node[K, V]) Search(cmp func(a, b K) int, key K) (int, bool) {
	lo, hi := 0, len(n.Keys)
	for lo < hi {
		m := (lo + hi) / 2
		if cmp(n.Keys[m], key) < 0 {
			lo = m + 1
		} else {
			hi = m
		}
	}
	return lo, lo < len(n.Keys) && cmp(n.Keys[lo], key) == 0
}

// ChildIndex returns the index of the child whose range holds key: the first
// i with key < Keys[i], or the last child. Keys equal to a separator route
// right.
func (n *Node[K, V]) ChildIndex(cmp func(a, b K) int, key K) int {
	lo, hi := 0, len(n.Keys)
	for lo < hi {
		m := (lo + hi) / 2
		if cmp(key, n.Keys[m]) < 0 {
			hi = m
		} else {
			lo = m + 1
		}
	}
	return lo
}

// IndexOfChild returns the position of off in Children, or -1.
func (n *Node[K, V]) IndexOfChild(off Offset) int {
	for i, c := range n.Children {
		if c == off {
			return i
		}
	}
	return -1
}

// InsertAt inserts a key/value pair at index i of a leaf.
func (n *Node[K, V]) InsertAt(i int, key K, value V) {
	n.Keys = insertAt(n.Keys, i, key)
	n.Values = insertAt(n.Values, i, value)
	n.dirty = true
}

// RemoveAt removes and returns the key/value pair at index i of a leaf.
func (n *Node[K, V]) RemoveAt(i int) (K, V) {
	k, v := n.Keys[i], n.Values[i]
	n.Keys = removeAt(n.Keys, i)
	n.Values = removeAt(n.Values, i)
	n.dirty = true
	return k, v
}

// InsertChild inserts separator key at index i of an internal node with child
// placed to its right, at Children[i+1].
func (n *Node[K, V]) InsertChild(i int, key K, child Offset) {
	n.Keys = insertAt(n.Keys, i, key)
	n.Children = insertAt(n.Children, i+1, child)
	n.dirty = true
}

// RemoveChild removes separator Keys[i] and the child to its right.
func (n *Node[K, V]) RemoveChild(i int) (K, Offset) {
	k, c := n.Keys[i], n.Children[i+1]
	n.Keys = removeAt(n.Keys, i)
	n.Children = removeAt(n.Children, i+1)
	n.dirty = true
	return k, c
}

// InsertChildLeft inserts key at index i with child placed to its left, at
// Children[i].
func (n *Node[K, V]) InsertChildLeft(i int, key K, child Offset) {
	n.Keys = insertAt(n.Keys, i, key)
	n.Children = insertAt(n.Children, i, child)
	n.dirty = true
}

// RemoveChildLeft removes Keys[i] and the child to its left.
func (n *Node[K, V]) RemoveChildLeft(i int) (K, Offset) {
	k, c := n.Keys[i], n.Children[i]
	n.Keys = removeAt(n.Keys, i)
	n.Children = removeAt(n.Children, i)
	n.dirty = true
	return k, c
}

// SetKey overwrites Keys[i].
func (n *Node[K, V]) SetKey(i int, key K) {
	n.Keys[i] = key
	n.dirty = true
}

// SetParent records a new parent offset.
func (n *Node[K, V]) SetParent(parent Offset) {
	if n.Parent != parent {
		n.Parent = parent
		n.dirty = true
	}
}

// SetValue overwrites the value at index i of a leaf.
func (n *Node[K, V]) SetValue(i int, value V) {
	n.Values[i] = value
	n.dirty = true
}

// Clone returns a deep copy of n, including its dirty flag.
func (n *Node[K, V]) Clone() *Node[K, V] {
	c := *n
	c.Keys = append(make([]K, 0, cap(n.Keys)), n.Keys...)
	if n.Values != nil {
		c.Values = append(make([]V, 0, cap(n.Values)), n.Values...)
	}
	if n.Children != nil {
		c.Children = append(make([]Offset, 0, cap(n.Children)), n.Children...)
	}
	return &c
}

func (n *Node[K, V]) String() string {
	if n.IsLeaf() {
		return fmt.Sprintf("leaf@%d{parent=%d next=%d keys=%v}", n.Offset, n.Parent, n.Type.Next, n.Keys)
	}
	return fmt.Sprintf("internal@%d{parent=%d keys=%v children=%v}", n.Offset, n.Parent, n.Keys, n.Children)
}

func insertAt[T any](s []T, i int, v T) []T {
	var zero T
	s = append(s, zero)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func removeAt[T any](s []T, i int) []T {
	copy(s[i:], s[i+1:])
	var zero T
	s[len(s)-1] = zero
	return s[:len(s)-1]
}
