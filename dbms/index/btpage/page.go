// Package btpage provides the on-disk node layout used by the page tree.
//
// Node layout (all integers big-endian):
//
//	[0-7]    8 bytes  node type tag (TagInternal / TagLeaf)
//	[8-15]   8 bytes  next leaf offset (leaves only, 0 = last leaf)
//	[16]     1 byte   is_root
//	[17-19]  3 bytes  padding
//	[20-27]  8 bytes  parent offset
//	[28-35]  8 bytes  self offset
//	[36-43]  8 bytes  used_count (number of keys)
//	[44+]    keys     (degree-1) * key width, zero-filled past used_count
//	         values   (degree-1) * value width, present even in internal nodes
//	         children degree * 8, zero-filled past used_count+1
//	         ...zero padding up to a multiple of the page size
//
// Every node therefore has the same size, a pure function of the degree, the
// key and value widths and the page size, and a node's file offset is its
// identity. Offset 0 always holds the root.
package btpage

import (
	"github.com/btree-query-bench/pagetree/dbms/codec"
	"github.com/btree-query-bench/pagetree/dbms/dberr"
)

const (
	TagInternal = uint64(1)
	TagLeaf     = uint64(2)

	OffTag     = 0
	OffNext    = 8
	OffIsRoot  = 16
	OffParent  = 20
	OffSelf    = 28
	OffUsed    = 36
	HeaderSize = 44

	rootPadding = 3

	// DefaultPageSize is the page size node images are rounded up to.
	DefaultPageSize = 4096

	// MinDegree is the smallest supported degree.
	MinDegree = 3
)

// Offset is a byte position in the node file. It permanently identifies a
// node. The root lives at RootOffset; since the root is never a child or a
// leaf successor, the same value marks an absent next leaf.
type Offset uint64

const (
	RootOffset Offset = 0
	NoOffset   Offset = 0
)

// PageFile is the record store nodes are persisted to. *pager.Pager
// implements it.
type PageFile interface {
	Read(off uint64) ([]byte, error)
	Write(off uint64, rec []byte) error
}

// Layout binds a degree, a page size and key/value codecs into a node format.
type Layout[K, V any] struct {
	degree   int
	pageSize int
	keys     codec.KeyCodec[K]
	values   codec.Codec[V]

	keyArr   codec.Array[K]
	valArr   codec.Array[V]
	childArr codec.Array[uint64]
}

// NewLayout validates the degree and page size and returns the node format.
// The degree must be odd and at least MinDegree.
func NewLayout[K, V any](degree, pageSize int, keys codec.KeyCodec[K], values codec.Codec[V]) (*Layout[K, V], error) {
	if degree < MinDegree || degree%2 == 0 {
		return nil, dberr.Configf("btpage: degree %d must be odd and >= %d", degree, MinDegree)
	}
	if pageSize <= 0 {
		return nil, dberr.Configf("btpage: page size %d must be positive", pageSize)
	}
	if keys == nil || values == nil {
		return nil, dberr.Configf("btpage: key and value codecs are required")
	}
	if keys.Width() <= 0 || values.Width() <= 0 {
		return nil, dberr.Configf("btpage: key width %d and value width %d must be positive", keys.Width(), values.Width())
	}
	return &Layout[K, V]{
		degree:   degree,
		pageSize: pageSize,
		keys:     keys,
		values:   values,
		keyArr:   codec.NewArray[K](keys, degree-1),
		valArr:   codec.NewArray[V](values, degree-1),
		childArr: codec.NewArray[uint64](codec.Uint64{}, degree),
	}, nil
}

func (l *Layout[K, V]) Degree() int   { return l.degree }
func (l *Layout[K, V]) PageSize() int { return l.pageSize }

// KeyWidth and ValueWidth are the encoded sizes of one key and one value.
func (l *Layout[K, V]) KeyWidth() int   { return l.keys.Width() }
func (l *Layout[K, V]) ValueWidth() int { return l.values.Width() }

// Compare orders two keys.
func (l *Layout[K, V]) Compare(a, b K) int { return l.keys.Compare(a, b) }

// MaxKeys is the key capacity of a node.
func (l *Layout[K, V]) MaxKeys() int { return l.degree - 1 }

// MinKeys is the minimum occupancy of a non-root node, ⌈(degree-1)/2⌉.
func (l *Layout[K, V]) MinKeys() int { return l.degree / 2 }

// RawSize is the number of meaningful bytes in a node image.
func (l *Layout[K, V]) RawSize() int {
	return HeaderSize + l.keyArr.Width() + l.valArr.Width() + l.childArr.Width()
}

// NodeSize is RawSize rounded up to a whole number of pages.
func (l *Layout[K, V]) NodeSize() int {
	pages := (l.RawSize() + l.pageSize - 1) / l.pageSize
	return pages * l.pageSize
}

// NewLeaf returns an empty, dirty leaf at off.
func (l *Layout[K, V]) NewLeaf(off, parent, next Offset) *Node[K, V] {
	return &Node[K, V]{
		Type:    Leaf(next),
		Parent:  parent,
		Offset:  off,
		Keys:    make([]K, 0, l.degree),
		Values:  make([]V, 0, l.degree),
		IsRoot:  off == RootOffset,
		maxKeys: l.MaxKeys(),
		minKeys: l.MinKeys(),
		dirty:   true,
	}
}

// NewInternal returns an empty, dirty internal node at off.
func (l *Layout[K, V]) NewInternal(off, parent Offset) *Node[K, V] {
	return &Node[K, V]{
		Type:     Internal(),
		Parent:   parent,
		Offset:   off,
		Keys:     make([]K, 0, l.degree),
		Children: make([]Offset, 0, l.degree+1),
		IsRoot:   off == RootOffset,
		maxKeys:  l.MaxKeys(),
		minKeys:  l.MinKeys(),
		dirty:    true,
	}
}
