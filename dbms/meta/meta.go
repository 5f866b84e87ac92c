// Package meta stores the superblock of a page tree: its name, the layout it
// was created with and the offsets of its leaves. The node file stays the
// source of truth; the superblock lets Open reject a file written with a
// different layout and gives diagnostics a leaf inventory without a scan.
package meta

import (
	"github.com/btree-query-bench/pagetree/dbms/codec"
	"github.com/btree-query-bench/pagetree/dbms/config"
	"github.com/btree-query-bench/pagetree/dbms/dberr"
	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"
)

// Version is the superblock format written by this package.
const Version = 1

// ErrNoSuperblock is returned by Store.Load when nothing was saved under the
// name yet.
var ErrNoSuperblock = errors.New("meta: no superblock")

// Superblock describes one tree.
type Superblock struct {
	Version    uint32
	Name       string
	Degree     uint32
	PageSize   uint32
	KeyWidth   uint32
	ValueWidth uint32
	NodeSize   uint32
	Leaves     []uint64
}

// Store persists superblocks by tree name.
type Store interface {
	Load(name string) (*Superblock, error)
	Save(sb *Superblock) error
	Close() error
}

// Open opens the store selected by backend at path. The none backend keeps
// nothing.
func Open(backend, path string) (Store, error) {
	switch backend {
	case config.MetaPebble:
		s, err := OpenPebble(path, nil)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.MetaLevelDB:
		s, err := OpenLevelDB(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.MetaNone, "":
		return Nop{}, nil
	default:
		return nil, dberr.Configf("meta: unknown backend %q", backend)
	}
}

func superblockKey(name string) []byte {
	return []byte("tree/" + name + "/superblock")
}

// Nop is a Store that never holds a superblock.
type Nop struct{}

func (Nop) Load(string) (*Superblock, error) { return nil, ErrNoSuperblock }
func (Nop) Save(*Superblock) error           { return nil }
func (Nop) Close() error                     { return nil }

// Encode serializes sb: a big-endian body compressed with snappy, followed
// by the xxhash64 of the compressed bytes.
func Encode(sb *Superblock) []byte {
	u32, u64 := codec.Uint32{}, codec.Uint64{}
	body := make([]byte, 0, 32+len(sb.Name)+8*len(sb.Leaves))
	body, _ = u32.Append(body, sb.Version)
	body, _ = u32.Append(body, sb.Degree)
	body, _ = u32.Append(body, sb.PageSize)
	body, _ = u32.Append(body, sb.KeyWidth)
	body, _ = u32.Append(body, sb.ValueWidth)
	body, _ = u32.Append(body, sb.NodeSize)
	body, _ = u32.Append(body, uint32(len(sb.Name)))
	body = append(body, sb.Name...)
	body, _ = u64.Append(body, uint64(len(sb.Leaves)))
	for _, off := range sb.Leaves {
		body, _ = u64.Append(body, off)
	}

	out := snappy.Encode(nil, body)
	out, _ = u64.Append(out, xxhash.Sum64(out))
	return out
}

// Decode parses a record produced by Encode. Checksum failures and truncated
// bodies are encoding errors.
func Decode(b []byte) (*Superblock, error) {
	if len(b) < 8 {
		return nil, dberr.Encodingf("meta: record of %d bytes is too short", len(b))
	}
	u32, u64 := codec.Uint32{}, codec.Uint64{}
	payload, trailer := b[:len(b)-8], b[len(b)-8:]
	sum, _ := u64.Decode(trailer)
	if got := xxhash.Sum64(payload); got != sum {
		return nil, dberr.Encodingf("meta: checksum %016x, want %016x", got, sum)
	}
	body, err := snappy.Decode(nil, payload)
	if err != nil {
		return nil, dberr.Encoding(err, "meta: decompress superblock")
	}

	r := reader{b: body}
	sb := &Superblock{}
	sb.Version = r.u32(u32)
	sb.Degree = r.u32(u32)
	sb.PageSize = r.u32(u32)
	sb.KeyWidth = r.u32(u32)
	sb.ValueWidth = r.u32(u32)
	sb.NodeSize = r.u32(u32)
	sb.Name = string(r.bytes(int(r.u32(u32))))
	n := r.u64(u64)
	if r.err == nil && n > uint64(len(r.b))/8 {
		r.err = dberr.Encodingf("meta: %d leaves do not fit in %d bytes", n, len(r.b))
	}
	if r.err == nil {
		sb.Leaves = make([]uint64, 0, n)
		for i := uint64(0); i < n; i++ {
			sb.Leaves = append(sb.Leaves, r.u64(u64))
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	if len(r.b) != 0 {
		return nil, dberr.Encodingf("meta: %d trailing bytes", len(r.b))
	}
	if sb.Version != Version {
		return nil, dberr.Encodingf("meta: superblock version %d, want %d", sb.Version, Version)
	}
	return sb, nil
}

// reader consumes fixed-width fields and remembers the first short read.
type reader struct {
	b   []byte
	err error
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n > len(r.b) {
		r.err = dberr.Encodingf("meta: truncated superblock, need %d bytes, have %d", n, len(r.b))
		return nil
	}
	out := r.b[:n]
	r.b = r.b[n:]
	return out
}

func (r *reader) u32(c codec.Uint32) uint32 {
	b := r.bytes(c.Width())
	if b == nil {
		return 0
	}
	v, _ := c.Decode(b)
	return v
}

func (r *reader) u64(c codec.Uint64) uint64 {
	b := r.bytes(c.Width())
	if b == nil {
		return 0
	}
	v, _ := c.Decode(b)
	return v
}
