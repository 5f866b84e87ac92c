package btpage

import (
	"path/filepath"
	"testing"

	"github.com/btree-query-bench/pagetree/dbms/codec"
	"github.com/btree-query-bench/pagetree/dbms/dberr"
	"github.com/btree-query-bench/pagetree/dbms/pager"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memFile is a map-backed PageFile that counts writes.
type memFile struct {
	recs   map[uint64][]byte
	writes int
}

func newMemFile() *memFile { return &memFile{recs: make(map[uint64][]byte)} }

func (m *memFile) Read(off uint64) ([]byte, error) {
	rec, ok := m.recs[off]
	if !ok {
		return nil, errors.Mark(errors.Newf("no record at %d", off), dberr.ErrIO)
	}
	return append([]byte(nil), rec...), nil
}

func (m *memFile) Write(off uint64, rec []byte) error {
	m.recs[off] = append([]byte(nil), rec...)
	m.writes++
	return nil
}

func intLayout(t *testing.T, degree int) *Layout[int64, string] {
	t.Helper()
	l, err := NewLayout[int64, string](degree, DefaultPageSize, codec.Int64{}, codec.FixedString{N: 8})
	require.NoError(t, err)
	return l
}

func TestNewLayoutValidatesDegree(t *testing.T) {
	for _, d := range []int{0, 1, 2, 4, 10} {
		_, err := NewLayout[int64, int64](d, DefaultPageSize, codec.Int64{}, codec.Int64{})
		assert.True(t, errors.Is(err, dberr.ErrConfig), "degree %d", d)
	}
	_, err := NewLayout[int64, int64](3, 0, codec.Int64{}, codec.Int64{})
	assert.True(t, errors.Is(err, dberr.ErrConfig))
}

func TestNodeSizeIsPageAligned(t *testing.T) {
	l := intLayout(t, 5)
	// header + 4 keys * 8 + 4 values * 8 + 5 children * 8
	assert.Equal(t, HeaderSize+32+32+40, l.RawSize())
	assert.Equal(t, DefaultPageSize, l.NodeSize())

	big, err := NewLayout[int64, []byte](101, 512, codec.Int64{}, codec.FixedBytes{N: 64})
	require.NoError(t, err)
	raw := HeaderSize + 100*8 + 100*64 + 101*8
	assert.Equal(t, raw, big.RawSize())
	assert.Equal(t, 0, big.NodeSize()%512)
	assert.GreaterOrEqual(t, big.NodeSize(), raw)
	assert.Less(t, big.NodeSize()-raw, 512)
}

func TestMinMaxKeys(t *testing.T) {
	l := intLayout(t, 3)
	assert.Equal(t, 2, l.MaxKeys())
	assert.Equal(t, 1, l.MinKeys())

	l = intLayout(t, 7)
	assert.Equal(t, 6, l.MaxKeys())
	assert.Equal(t, 3, l.MinKeys())
}

func TestLeafRoundTrip(t *testing.T) {
	l := intLayout(t, 5)
	n := l.NewLeaf(8192, 4096, 12288)
	n.InsertAt(0, 10, "ten")
	n.InsertAt(0, 5, "five")
	n.InsertAt(2, 20, "twenty")

	img, err := l.Encode(n)
	require.NoError(t, err)
	require.Len(t, img, l.NodeSize())

	got, err := l.Decode(img)
	require.NoError(t, err)
	assert.True(t, got.IsLeaf())
	assert.False(t, got.IsRoot)
	assert.False(t, got.IsDirty())
	assert.Equal(t, Offset(12288), got.Type.Next)
	assert.Equal(t, Offset(4096), got.Parent)
	assert.Equal(t, Offset(8192), got.Offset)
	assert.Equal(t, []int64{5, 10, 20}, got.Keys)
	assert.Equal(t, []string{"five", "ten", "twenty"}, got.Values)
	assert.Empty(t, got.Children)

	again, err := l.Encode(got)
	require.NoError(t, err)
	assert.Equal(t, img, again)
}

func TestInternalRoundTrip(t *testing.T) {
	l := intLayout(t, 5)
	n := l.NewInternal(RootOffset, 0)
	n.Keys = append(n.Keys, 10, 20)
	n.Children = append(n.Children, 4096, 8192, 12288)

	img, err := l.Encode(n)
	require.NoError(t, err)

	got, err := l.Decode(img)
	require.NoError(t, err)
	assert.False(t, got.IsLeaf())
	assert.True(t, got.IsRoot)
	assert.Equal(t, []int64{10, 20}, got.Keys)
	assert.Equal(t, []Offset{4096, 8192, 12288}, got.Children)
	assert.Empty(t, got.Values)

	again, err := l.Encode(got)
	require.NoError(t, err)
	assert.Equal(t, img, again)
}

func TestEncodeLayoutBytes(t *testing.T) {
	l := intLayout(t, 3)
	n := l.NewLeaf(RootOffset, 0, NoOffset)
	n.InsertAt(0, 1, "a")

	img, err := l.Encode(n)
	require.NoError(t, err)

	assert.Equal(t, byte(TagLeaf), img[OffTag+7])
	assert.Equal(t, byte(1), img[OffIsRoot])
	assert.Equal(t, []byte{0, 0, 0}, img[OffIsRoot+1:OffParent])
	assert.Equal(t, byte(1), img[OffUsed+7])
	assert.Equal(t, byte(1), img[HeaderSize+7])     // key 1, big-endian
	assert.Equal(t, byte('a'), img[HeaderSize+2*8]) // first value slot
	assert.Equal(t, make([]byte, l.NodeSize()-l.RawSize()), img[l.RawSize():])
}

func TestDecodeRejectsUnknownTag(t *testing.T) {
	l := intLayout(t, 3)
	img, err := l.Encode(l.NewLeaf(RootOffset, 0, NoOffset))
	require.NoError(t, err)

	img[OffTag+7] = 9
	_, err = l.Decode(img)
	assert.True(t, errors.Is(err, dberr.ErrEncoding))
}

func TestDecodeRejectsUsedCountOverflow(t *testing.T) {
	l := intLayout(t, 3)
	img, err := l.Encode(l.NewLeaf(RootOffset, 0, NoOffset))
	require.NoError(t, err)

	img[OffUsed+7] = 3
	_, err = l.Decode(img)
	assert.True(t, errors.Is(err, dberr.ErrEncoding))
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	l := intLayout(t, 3)
	_, err := l.Decode(make([]byte, 100))
	assert.True(t, errors.Is(err, dberr.ErrEncoding))
}

func TestEncodeRejectsOverflowingNode(t *testing.T) {
	l := intLayout(t, 3)
	n := l.NewLeaf(RootOffset, 0, NoOffset)
	n.InsertAt(0, 1, "a")
	n.InsertAt(1, 2, "b")
	n.InsertAt(2, 3, "c")
	assert.True(t, n.Overflows())

	_, err := l.Encode(n)
	assert.True(t, errors.Is(err, dberr.ErrEncoding))
}

func TestEncodeRejectsBrokenInternalNode(t *testing.T) {
	l := intLayout(t, 5)
	n := l.NewInternal(4096, 0)
	n.Keys = append(n.Keys, 1)
	n.Children = append(n.Children, 8192)
	_, err := l.Encode(n)
	assert.True(t, errors.Is(err, dberr.ErrEncoding))
}

func TestPersistSkipsCleanNodes(t *testing.T) {
	l := intLayout(t, 3)
	f := newMemFile()

	n := l.NewLeaf(4096, 0, NoOffset)
	n.InsertAt(0, 7, "x")
	off, err := l.Persist(f, n)
	require.NoError(t, err)
	assert.Equal(t, Offset(4096), off)
	assert.Equal(t, 1, f.writes)
	assert.False(t, n.IsDirty())

	_, err = l.Persist(f, n)
	require.NoError(t, err)
	assert.Equal(t, 1, f.writes)

	n.SetValue(0, "y")
	_, err = l.Persist(f, n)
	require.NoError(t, err)
	assert.Equal(t, 2, f.writes)
}

func TestLoadStampsOffset(t *testing.T) {
	l := intLayout(t, 3)
	f := newMemFile()

	n := l.NewLeaf(4096, 0, NoOffset)
	img, err := l.Encode(n)
	require.NoError(t, err)
	// Store the image somewhere other than its recorded self offset.
	require.NoError(t, f.Write(8192, img))

	got, err := l.Load(f, 8192)
	require.NoError(t, err)
	assert.Equal(t, Offset(8192), got.Offset)
}

func TestPersistLoadThroughPager(t *testing.T) {
	l := intLayout(t, 5)
	p, err := pager.Open(filepath.Join(t.TempDir(), "nodes.bpt"), l.NodeSize(), 8, false)
	require.NoError(t, err)
	defer p.Close()

	root := l.NewLeaf(RootOffset, 0, NoOffset)
	root.InsertAt(0, 42, "answer")
	_, err = l.Persist(p, root)
	require.NoError(t, err)

	off, err := p.Allocate()
	require.NoError(t, err)
	child := l.NewLeaf(Offset(off), RootOffset, NoOffset)
	_, err = l.Persist(p, child)
	require.NoError(t, err)

	got, err := l.Load(p, RootOffset)
	require.NoError(t, err)
	assert.True(t, got.IsRoot)
	assert.Equal(t, []int64{42}, got.Keys)
	assert.Equal(t, []string{"answer"}, got.Values)

	got, err = l.Load(p, Offset(off))
	require.NoError(t, err)
	assert.False(t, got.IsRoot)
	assert.Equal(t, Offset(l.NodeSize()), got.Offset)
}

func TestLoadShortRead(t *testing.T) {
	l := intLayout(t, 3)
	p, err := pager.Open(filepath.Join(t.TempDir(), "empty.bpt"), l.NodeSize(), 0, false)
	require.NoError(t, err)
	defer p.Close()

	_, err = l.Load(p, RootOffset)
	assert.True(t, errors.Is(err, dberr.ErrEncoding))
}
