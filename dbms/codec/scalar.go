package codec

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"strings"

	"github.com/btree-query-bench/pagetree/dbms/dberr"
)

// Bool encodes a boolean as one byte (0 or 1). Any non-zero byte decodes as
// true.
type Bool struct{}

func (Bool) Width() int { return 1 }

func (Bool) Append(dst []byte, v bool) ([]byte, error) {
	if v {
		return append(dst, 1), nil
	}
	return append(dst, 0), nil
}

func (Bool) Decode(b []byte) (bool, error) {
	if err := checkWidth("bool", b, 1); err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

// Uint32 encodes a uint32 big-endian.
type Uint32 struct{}

func (Uint32) Width() int { return 4 }

func (Uint32) Append(dst []byte, v uint32) ([]byte, error) {
	return binary.BigEndian.AppendUint32(dst, v), nil
}

func (Uint32) Decode(b []byte) (uint32, error) {
	if err := checkWidth("uint32", b, 4); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (Uint32) Compare(a, b uint32) int { return cmp.Compare(a, b) }

// Uint64 encodes a uint64 big-endian.
type Uint64 struct{}

func (Uint64) Width() int { return 8 }

func (Uint64) Append(dst []byte, v uint64) ([]byte, error) {
	return binary.BigEndian.AppendUint64(dst, v), nil
}

func (Uint64) Decode(b []byte) (uint64, error) {
	if err := checkWidth("uint64", b, 8); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (Uint64) Compare(a, b uint64) int { return cmp.Compare(a, b) }

// Int64 encodes an int64 as its two's complement, big-endian.
type Int64 struct{}

func (Int64) Width() int { return 8 }

func (Int64) Append(dst []byte, v int64) ([]byte, error) {
	return binary.BigEndian.AppendUint64(dst, uint64(v)), nil
}

func (Int64) Decode(b []byte) (int64, error) {
	if err := checkWidth("int64", b, 8); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

func (Int64) Compare(a, b int64) int { return cmp.Compare(a, b) }

// FixedBytes encodes byte slices of at most N bytes, zero-padded to N.
// Decoding returns all N bytes.
type FixedBytes struct {
	N int
}

func (c FixedBytes) Width() int { return c.N }

func (c FixedBytes) Append(dst []byte, v []byte) ([]byte, error) {
	if len(v) > c.N {
		return dst, dberr.Encodingf("codec: %d bytes exceed fixed width %d", len(v), c.N)
	}
	dst = append(dst, v...)
	return append(dst, make([]byte, c.N-len(v))...), nil
}

func (c FixedBytes) Decode(b []byte) ([]byte, error) {
	if err := checkWidth("bytes", b, c.N); err != nil {
		return nil, err
	}
	out := make([]byte, c.N)
	copy(out, b)
	return out, nil
}

// Compare orders a and b as their encodings would: trailing zero bytes are
// padding and do not take part in the comparison.
func (c FixedBytes) Compare(a, b []byte) int {
	return bytes.Compare(bytes.TrimRight(a, "\x00"), bytes.TrimRight(b, "\x00"))
}

// FixedString encodes strings of at most N bytes, zero-padded to N.
// Decoding strips the trailing zero padding, so strings must not end in NUL.
type FixedString struct {
	N int
}

func (c FixedString) Width() int { return c.N }

func (c FixedString) Append(dst []byte, v string) ([]byte, error) {
	if len(v) > c.N {
		return dst, dberr.Encodingf("codec: string of %d bytes exceeds fixed width %d", len(v), c.N)
	}
	dst = append(dst, v...)
	return append(dst, make([]byte, c.N-len(v))...), nil
}

func (c FixedString) Decode(b []byte) (string, error) {
	if err := checkWidth("string", b, c.N); err != nil {
		return "", err
	}
	return strings.TrimRight(string(b), "\x00"), nil
}

func (c FixedString) Compare(a, b string) int {
	return strings.Compare(strings.TrimRight(a, "\x00"), strings.TrimRight(b, "\x00"))
}
