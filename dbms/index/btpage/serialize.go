package btpage

import (
	"github.com/btree-query-bench/pagetree/dbms/codec"
	"github.com/btree-query-bench/pagetree/dbms/dberr"
	"github.com/cockroachdb/errors"
)

// Encode serializes n into exactly NodeSize() bytes.
func (l *Layout[K, V]) Encode(n *Node[K, V]) ([]byte, error) {
	used := len(n.Keys)
	if used > l.MaxKeys() {
		return nil, dberr.Encodingf("btpage: node %d holds %d keys, capacity %d", n.Offset, used, l.MaxKeys())
	}

	var (
		tag      uint64
		next     Offset
		values   []V
		children []uint64
	)
	switch n.Type.Kind {
	case KindLeaf:
		if len(n.Values) != used {
			return nil, dberr.Encodingf("btpage: leaf %d has %d keys and %d values", n.Offset, used, len(n.Values))
		}
		tag, next, values = TagLeaf, n.Type.Next, n.Values
	case KindInternal:
		if len(n.Children) != used+1 {
			return nil, dberr.Encodingf("btpage: internal node %d has %d keys and %d children", n.Offset, used, len(n.Children))
		}
		tag = TagInternal
		children = make([]uint64, len(n.Children))
		for i, c := range n.Children {
			children[i] = uint64(c)
		}
	default:
		return nil, dberr.Encodingf("btpage: node %d has unknown kind %d", n.Offset, uint64(n.Type.Kind))
	}

	u64 := codec.Uint64{}
	buf := make([]byte, 0, l.NodeSize())
	buf, _ = u64.Append(buf, tag)
	buf, _ = u64.Append(buf, uint64(next))
	buf, _ = codec.Bool{}.Append(buf, n.IsRoot)
	buf = append(buf, make([]byte, rootPadding)...)
	buf, _ = u64.Append(buf, uint64(n.Parent))
	buf, _ = u64.Append(buf, uint64(n.Offset))
	buf, _ = u64.Append(buf, uint64(used))

	var err error
	if buf, err = l.keyArr.Append(buf, n.Keys); err != nil {
		return nil, errors.Wrapf(err, "btpage: encode keys of node %d", n.Offset)
	}
	if buf, err = l.valArr.Append(buf, values); err != nil {
		return nil, errors.Wrapf(err, "btpage: encode values of node %d", n.Offset)
	}
	if buf, err = l.childArr.Append(buf, children); err != nil {
		return nil, errors.Wrapf(err, "btpage: encode children of node %d", n.Offset)
	}

	return append(buf, make([]byte, l.NodeSize()-len(buf))...), nil
}

// Decode parses a node image produced by Encode. The returned node is clean.
// Keys and values are truncated to used_count and children to used_count+1.
func (l *Layout[K, V]) Decode(b []byte) (*Node[K, V], error) {
	if len(b) != l.NodeSize() {
		return nil, errors.Wrapf(codec.ErrSizeMismatch, "btpage: node image of %d bytes, want %d", len(b), l.NodeSize())
	}

	u64 := codec.Uint64{}
	field := func(off int) uint64 {
		v, _ := u64.Decode(b[off : off+8])
		return v
	}

	tag := field(OffTag)
	if tag != TagInternal && tag != TagLeaf {
		return nil, dberr.Encodingf("btpage: unknown node tag %d", tag)
	}
	isRoot, err := codec.Bool{}.Decode(b[OffIsRoot : OffIsRoot+1])
	if err != nil {
		return nil, err
	}
	used := field(OffUsed)
	if used > uint64(l.MaxKeys()) {
		return nil, dberr.Encodingf("btpage: used_count %d exceeds capacity %d", used, l.MaxKeys())
	}

	pos := HeaderSize
	keys, err := l.keyArr.Decode(b[pos : pos+l.keyArr.Width()])
	if err != nil {
		return nil, errors.Wrap(err, "btpage: decode keys")
	}
	pos += l.keyArr.Width()
	values, err := l.valArr.Decode(b[pos : pos+l.valArr.Width()])
	if err != nil {
		return nil, errors.Wrap(err, "btpage: decode values")
	}
	pos += l.valArr.Width()
	children, err := l.childArr.Decode(b[pos : pos+l.childArr.Width()])
	if err != nil {
		return nil, errors.Wrap(err, "btpage: decode children")
	}

	self := Offset(field(OffSelf))
	var n *Node[K, V]
	if tag == TagLeaf {
		n = l.NewLeaf(self, Offset(field(OffParent)), Offset(field(OffNext)))
		n.Values = append(n.Values, values[:used]...)
	} else {
		n = l.NewInternal(self, Offset(field(OffParent)))
		for _, c := range children[:used+1] {
			n.Children = append(n.Children, Offset(c))
		}
	}
	n.Keys = append(n.Keys, keys[:used]...)
	n.IsRoot = isRoot
	n.dirty = false
	return n, nil
}

// Persist writes n at its own offset if it is dirty and clears the dirty
// flag. A clean node is not rewritten. It returns the node's offset.
func (l *Layout[K, V]) Persist(f PageFile, n *Node[K, V]) (Offset, error) {
	if !n.dirty {
		return n.Offset, nil
	}
	img, err := l.Encode(n)
	if err != nil {
		return n.Offset, err
	}
	if err := f.Write(uint64(n.Offset), img); err != nil {
		return n.Offset, err
	}
	n.dirty = false
	return n.Offset, nil
}

// Load reads one node image at off. The file is authoritative for the
// address, so the node's self offset is set to off.
func (l *Layout[K, V]) Load(f PageFile, off Offset) (*Node[K, V], error) {
	img, err := f.Read(uint64(off))
	if err != nil {
		return nil, err
	}
	n, err := l.Decode(img)
	if err != nil {
		return nil, errors.Wrapf(err, "btpage: load node at offset %d", off)
	}
	n.Offset = off
	return n, nil
}
