package bptree

import (
	"github.com/btree-query-bench/pagetree/dbms/codec"
	"github.com/btree-query-bench/pagetree/dbms/config"
	"github.com/btree-query-bench/pagetree/dbms/dberr"
	"github.com/btree-query-bench/pagetree/dbms/index"
	"github.com/cockroachdb/errors"
)

// Index adapts a tree of int64 keys and fixed-width byte values to the
// common index.Index interface used by the benchmark.
type Index struct {
	t *Tree[int64, []byte]
}

var _ index.Index = (*Index)(nil)

// OpenIndex opens a tree with int64 keys and cfg.ValueSize-byte values.
func OpenIndex(cfg config.Config, opts ...Option) (*Index, error) {
	if cfg.ValueSize <= 0 {
		return nil, dberr.Configf("bptree: value size %d must be positive", cfg.ValueSize)
	}
	t, err := Open[int64, []byte](cfg, codec.Int64{}, codec.FixedBytes{N: cfg.ValueSize}, opts...)
	if err != nil {
		return nil, err
	}
	return &Index{t: t}, nil
}

// Tree exposes the underlying tree.
func (x *Index) Tree() *Tree[int64, []byte] { return x.t }

// Insert inserts or updates the value for key.
func (x *Index) Insert(key int64, value []byte) error {
	return x.t.Put(key, value)
}

// Get returns the value for key, or nil if it is absent.
func (x *Index) Get(key int64) ([]byte, error) {
	v, err := x.t.Get(key)
	if errors.Is(err, dberr.ErrKeyNotFound) {
		return nil, nil
	}
	return v, err
}

// Delete removes key. Deleting an absent key is not an error.
func (x *Index) Delete(key int64) error {
	err := x.t.Delete(key)
	if errors.Is(err, dberr.ErrKeyNotFound) {
		return nil
	}
	return err
}

// Range returns an iterator over [start, end].
func (x *Index) Range(start, end int64) (index.Iterator, error) {
	it, err := x.t.Range(start, end)
	if err != nil {
		return nil, err
	}
	return it, nil
}

func (x *Index) Close() error {
	return x.t.Close()
}
