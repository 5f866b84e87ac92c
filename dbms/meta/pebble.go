package meta

import (
	"github.com/btree-query-bench/pagetree/dbms/dberr"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// PebbleStore keeps superblocks in a Pebble database.
type PebbleStore struct {
	db *pebble.DB
}

// OpenPebble opens (or creates) a Pebble database at dir. A nil fs uses the
// OS filesystem; tests pass vfs.NewMem().
func OpenPebble(dir string, fs vfs.FS) (*PebbleStore, error) {
	opts := &pebble.Options{
		// Superblocks are tiny and written once per Close.
		MemTableSize: 1 << 20,
	}
	if fs != nil {
		opts.FS = fs
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, dberr.IO(err, "meta: open pebble at %s", dir)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Load(name string) (*Superblock, error) {
	val, closer, err := s.db.Get(superblockKey(name))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNoSuperblock
	}
	if err != nil {
		return nil, dberr.IO(err, "meta: get superblock %q", name)
	}
	// val is only valid until closer.Close().
	rec := append([]byte(nil), val...)
	closer.Close()
	return Decode(rec)
}

func (s *PebbleStore) Save(sb *Superblock) error {
	return dberr.IO(s.db.Set(superblockKey(sb.Name), Encode(sb), pebble.Sync), "meta: set superblock %q", sb.Name)
}

func (s *PebbleStore) Close() error {
	return dberr.IO(s.db.Close(), "meta: close pebble")
}
