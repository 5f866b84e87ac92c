// Package index defines the surface the benchmark drives. Both the page tree
// adapter and the Pebble baseline implement it.
package index

// Index maps int64 keys to byte values.
//
// Insert overwrites an existing key. Get returns a nil value and no error
// for a missing key, and deleting a missing key is not an error, so the
// workloads can run against any implementation without special cases.
type Index interface {
	Insert(key int64, value []byte) error
	Get(key int64) ([]byte, error)
	Delete(key int64) error
	// Range yields keys in [start, end] in ascending order.
	Range(start, end int64) (Iterator, error)
	Close() error
}

// Iterator walks key/value pairs in key order. Values may be reused by the
// next call to Next.
type Iterator interface {
	Next() bool
	Key() int64
	Value() []byte
	Error() error
	Close() error
}
