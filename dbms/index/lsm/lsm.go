// Package lsm wraps Pebble (CockroachDB's LSM storage engine) behind the
// common Index interface so it can be benchmarked alongside the page tree.
package lsm

import (
	"github.com/btree-query-bench/pagetree/dbms/codec"
	"github.com/btree-query-bench/pagetree/dbms/dberr"
	"github.com/btree-query-bench/pagetree/dbms/index"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

type LSM struct {
	db   *pebble.DB
	sync pebble.WriteOptions
}

var _ index.Index = (*LSM)(nil)

// Open opens (or creates) a Pebble database at the given directory path.
// With syncWrites every write is fsynced, matching a page tree opened with
// sync_writes. A nil fs uses the OS filesystem.
func Open(dir string, fs vfs.FS, syncWrites bool) (*LSM, error) {
	opts := &pebble.Options{
		MemTableSize: 16 << 20,
		// Keep several memtables so one can be flushed while another is active.
		MemTableStopWritesThreshold: 4,
		// L0 compaction trigger.
		L0CompactionThreshold: 4,
		L0StopWritesThreshold: 12,
	}
	if fs != nil {
		opts.FS = fs
	}

	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, dberr.IO(err, "lsm: open %s", dir)
	}
	l := &LSM{db: db, sync: *pebble.NoSync}
	if syncWrites {
		l.sync = *pebble.Sync
	}
	return l, nil
}

// Close cleanly shuts down Pebble, flushing any in-memory state.
func (l *LSM) Close() error {
	return dberr.IO(l.db.Close(), "lsm: close")
}

// Insert inserts or updates the value for key.
func (l *LSM) Insert(key int64, value []byte) error {
	return dberr.IO(l.db.Set(encodeKey(key), value, &l.sync), "lsm: set %d", key)
}

// Get retrieves the value for key. Returns nil if not found.
func (l *LSM) Get(key int64) ([]byte, error) {
	val, closer, err := l.db.Get(encodeKey(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dberr.IO(err, "lsm: get %d", key)
	}
	// val is only valid until closer.Close(), so we copy it.
	result := make([]byte, len(val))
	copy(result, val)
	closer.Close()
	return result, nil
}

// Delete removes the key from the store.
func (l *LSM) Delete(key int64) error {
	return dberr.IO(l.db.Delete(encodeKey(key), &l.sync), "lsm: delete %d", key)
}

// Range returns an iterator over all keys in [start, end] inclusive.
func (l *LSM) Range(start, end int64) (index.Iterator, error) {
	iterOpts := &pebble.IterOptions{
		LowerBound: encodeKey(start),
	}
	// Pebble's UpperBound is exclusive; end+1 would overflow at MaxInt64.
	if end < 1<<63-1 {
		iterOpts.UpperBound = encodeKey(end + 1)
	}
	iter, err := l.db.NewIter(iterOpts)
	if err != nil {
		return nil, dberr.IO(err, "lsm: range [%d, %d]", start, end)
	}
	iter.First()
	return &rangeIterator{iter: iter, first: true}, nil
}

// ─── Key encoding ─────────────────────────────────────────────────────────────

// encodeKey encodes an int64 as a big-endian 8-byte slice with the sign bit
// flipped, so negative keys sort before positive ones bytewise.
func encodeKey(k int64) []byte {
	b, _ := codec.Uint64{}.Append(make([]byte, 0, 8), uint64(k)^(1<<63))
	return b
}

func decodeKey(b []byte) (int64, error) {
	u, err := codec.Uint64{}.Decode(b)
	return int64(u ^ (1 << 63)), err
}

// ─── Range Iterator ───────────────────────────────────────────────────────────

type rangeIterator struct {
	iter  *pebble.Iterator
	first bool
	key   int64
	val   []byte
	err   error
}

func (it *rangeIterator) Next() bool {
	var valid bool
	if it.first {
		// iter.First() was already called in Range(); just check validity.
		it.first = false
		valid = it.iter.Valid()
	} else {
		valid = it.iter.Next()
	}
	if !valid {
		return false
	}
	k, err := decodeKey(it.iter.Key())
	if err != nil {
		it.err = errors.Wrap(err, "lsm: iterator key")
		return false
	}
	it.key = k
	// Copy the value; Pebble reuses the buffer on Next().
	v := it.iter.Value()
	it.val = make([]byte, len(v))
	copy(it.val, v)
	return true
}

func (it *rangeIterator) Key() int64    { return it.key }
func (it *rangeIterator) Value() []byte { return it.val }
func (it *rangeIterator) Error() error  { return it.err }
func (it *rangeIterator) Close() error  { return it.iter.Close() }
