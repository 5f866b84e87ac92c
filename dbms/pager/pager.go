package pager

import (
	"io"
	"os"

	"github.com/btree-query-bench/pagetree/dbms/dberr"
	"github.com/cockroachdb/errors"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	PageSize = 4096 // 4 KB, the usual OS page size
)

// Pager manages a file of fixed-size records addressed by byte offset and
// caches recently used ones. A record is one or more whole pages.
type Pager struct {
	file       *os.File
	path       string
	cache      *lru.Cache[uint64, []byte] // nil when caching is off
	recordSize int
	size       int64 // current end of file
	sync       bool
}

// Open opens (or creates) a pager backed by the given file.
// recordSize is the size of every record; cacheSize is the number of records
// to hold in the LRU cache (0 disables caching). With sync set, every Write
// is followed by an fsync.
func Open(path string, recordSize, cacheSize int, sync bool) (*Pager, error) {
	if recordSize <= 0 {
		return nil, dberr.Configf("pager: record size %d must be positive", recordSize)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, dberr.IO(err, "pager: open %s", path)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, dberr.IO(err, "pager: stat %s", path)
	}

	p := &Pager{
		file:       f,
		path:       path,
		recordSize: recordSize,
		size:       info.Size(),
		sync:       sync,
	}
	if cacheSize > 0 {
		if p.cache, err = lru.New[uint64, []byte](cacheSize); err != nil {
			f.Close()
			return nil, dberr.Configf("pager: cache of %d records: %v", cacheSize, err)
		}
	}
	return p, nil
}

// Allocate appends a zeroed record to the file and returns its offset.
func (p *Pager) Allocate() (uint64, error) {
	off := uint64(p.size)
	blank := make([]byte, p.recordSize)
	if err := p.writeToDisk(off, blank); err != nil {
		return 0, err
	}
	p.size += int64(p.recordSize)
	return off, nil
}

// Read returns a copy of the record at off, from cache or disk.
func (p *Pager) Read(off uint64) ([]byte, error) {
	if p.cache != nil {
		if rec, ok := p.cache.Get(off); ok {
			return clone(rec), nil
		}
	}
	rec, err := p.readFromDisk(off)
	if err != nil {
		return nil, err
	}
	p.cachePut(off, rec)
	return clone(rec), nil
}

// Write writes a full record at off and updates the cache.
func (p *Pager) Write(off uint64, rec []byte) error {
	if len(rec) != p.recordSize {
		return dberr.Encodingf("pager: record of %d bytes, want %d", len(rec), p.recordSize)
	}
	if err := p.writeToDisk(off, rec); err != nil {
		if p.cache != nil {
			p.cache.Remove(off)
		}
		return err
	}
	p.cachePut(off, clone(rec))
	if end := int64(off) + int64(p.recordSize); end > p.size {
		p.size = end
	}
	if p.sync {
		return p.Sync()
	}
	return nil
}

// Sync flushes the file to stable storage.
func (p *Pager) Sync() error {
	return dberr.IO(p.file.Sync(), "pager: sync %s", p.path)
}

// Close flushes and closes the underlying file.
func (p *Pager) Close() error {
	if err := p.Sync(); err != nil {
		p.file.Close()
		return err
	}
	return dberr.IO(p.file.Close(), "pager: close %s", p.path)
}

// Size returns the current file size in bytes.
func (p *Pager) Size() int64 {
	return p.size
}

// RecordSize returns the fixed record size.
func (p *Pager) RecordSize() int {
	return p.recordSize
}

// Cached returns the number of records currently held in the cache.
func (p *Pager) Cached() int {
	if p.cache == nil {
		return 0
	}
	return p.cache.Len()
}

// Records returns the number of whole records in the file.
func (p *Pager) Records() int64 {
	return p.size / int64(p.recordSize)
}

// Path returns the file path.
func (p *Pager) Path() string {
	return p.path
}

// --- internal helpers ---

func (p *Pager) readFromDisk(off uint64) ([]byte, error) {
	rec := make([]byte, p.recordSize)
	n, err := p.file.ReadAt(rec, int64(off))
	if n == len(rec) {
		return rec, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		// A short read means the record was never fully written.
		err = errors.Mark(io.ErrUnexpectedEOF, dberr.ErrEncoding)
	}
	return nil, dberr.IO(err, "pager: read %d bytes at offset %d (got %d)", p.recordSize, off, n)
}

func (p *Pager) writeToDisk(off uint64, rec []byte) error {
	_, err := p.file.WriteAt(rec, int64(off))
	return dberr.IO(err, "pager: write record at offset %d", off)
}

func (p *Pager) cachePut(off uint64, rec []byte) {
	if p.cache != nil {
		p.cache.Add(off, rec)
	}
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
