package meta

import (
	"github.com/btree-query-bench/pagetree/dbms/dberr"
	"github.com/cockroachdb/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// LevelDBStore keeps superblocks in a LevelDB database.
type LevelDBStore struct {
	db *leveldb.DB
}

// OpenLevelDB opens (or creates) a LevelDB database at path.
func OpenLevelDB(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, dberr.IO(err, "meta: open leveldb at %s", path)
	}
	return &LevelDBStore{db: db}, nil
}

// OpenLevelDBStorage opens a LevelDB database on stor, e.g.
// storage.NewMemStorage().
func OpenLevelDBStorage(stor storage.Storage) (*LevelDBStore, error) {
	db, err := leveldb.Open(stor, nil)
	if err != nil {
		return nil, dberr.IO(err, "meta: open leveldb")
	}
	return &LevelDBStore{db: db}, nil
}

func (s *LevelDBStore) Load(name string) (*Superblock, error) {
	data, err := s.db.Get(superblockKey(name), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNoSuperblock
	}
	if err != nil {
		return nil, dberr.IO(err, "meta: get superblock %q", name)
	}
	return Decode(data)
}

func (s *LevelDBStore) Save(sb *Superblock) error {
	err := s.db.Put(superblockKey(sb.Name), Encode(sb), &opt.WriteOptions{Sync: true})
	return dberr.IO(err, "meta: put superblock %q", sb.Name)
}

func (s *LevelDBStore) Close() error {
	return dberr.IO(s.db.Close(), "meta: close leveldb")
}
