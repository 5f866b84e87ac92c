package meta

import (
	"path/filepath"
	"testing"

	"github.com/btree-query-bench/pagetree/dbms/config"
	"github.com/btree-query-bench/pagetree/dbms/dberr"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

func sample() *Superblock {
	return &Superblock{
		Version:    Version,
		Name:       "orders",
		Degree:     5,
		PageSize:   4096,
		KeyWidth:   8,
		ValueWidth: 32,
		NodeSize:   4096,
		Leaves:     []uint64{4096, 12288, 8192},
	}
}

func TestEncodeDecode(t *testing.T) {
	sb := sample()
	got, err := Decode(Encode(sb))
	require.NoError(t, err)
	assert.Equal(t, sb, got)
}

func TestDecodeNoLeaves(t *testing.T) {
	sb := sample()
	sb.Leaves = nil
	got, err := Decode(Encode(sb))
	require.NoError(t, err)
	assert.Empty(t, got.Leaves)
	assert.Equal(t, sb.Name, got.Name)
}

func TestDecodeDetectsCorruption(t *testing.T) {
	rec := Encode(sample())
	rec[0] ^= 0xff
	_, err := Decode(rec)
	assert.True(t, errors.Is(err, dberr.ErrEncoding))

	_, err = Decode([]byte{1, 2, 3})
	assert.True(t, errors.Is(err, dberr.ErrEncoding))
}

func TestDecodeRejectsOtherVersion(t *testing.T) {
	sb := sample()
	sb.Version = Version + 1
	_, err := Decode(Encode(sb))
	assert.True(t, errors.Is(err, dberr.ErrEncoding))
}

func testStore(t *testing.T, s Store) {
	t.Helper()
	_, err := s.Load("orders")
	assert.True(t, errors.Is(err, ErrNoSuperblock))

	require.NoError(t, s.Save(sample()))
	got, err := s.Load("orders")
	require.NoError(t, err)
	assert.Equal(t, sample(), got)

	other := sample()
	other.Name = "users"
	other.Leaves = []uint64{4096}
	require.NoError(t, s.Save(other))

	got, err = s.Load("orders")
	require.NoError(t, err)
	assert.Len(t, got.Leaves, 3)
	got, err = s.Load("users")
	require.NoError(t, err)
	assert.Equal(t, []uint64{4096}, got.Leaves)

	require.NoError(t, s.Close())
}

func TestPebbleStore(t *testing.T) {
	s, err := OpenPebble("meta", vfs.NewMem())
	require.NoError(t, err)
	testStore(t, s)
}

func TestLevelDBStore(t *testing.T) {
	s, err := OpenLevelDBStorage(storage.NewMemStorage())
	require.NoError(t, err)
	testStore(t, s)
}

func TestNopStore(t *testing.T) {
	s, err := Open(config.MetaNone, "")
	require.NoError(t, err)
	require.NoError(t, s.Save(sample()))
	_, err = s.Load("orders")
	assert.True(t, errors.Is(err, ErrNoSuperblock))
}

func TestOpenOnDisk(t *testing.T) {
	for _, backend := range []string{config.MetaPebble, config.MetaLevelDB} {
		t.Run(backend, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tree.meta")
			s, err := Open(backend, path)
			require.NoError(t, err)
			require.NoError(t, s.Save(sample()))
			require.NoError(t, s.Close())

			s, err = Open(backend, path)
			require.NoError(t, err)
			defer s.Close()
			got, err := s.Load("orders")
			require.NoError(t, err)
			assert.Equal(t, sample(), got)
		})
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open("bolt", t.TempDir())
	assert.True(t, errors.Is(err, dberr.ErrConfig))
}
