// Package codec converts fixed-width scalars and bounded arrays to and from
// byte sequences.
//
// Every codec has a width that depends only on its type (and capacity, for
// arrays). Encoding always produces exactly that many bytes and decoding
// rejects any other length, which is what lets a node's on-disk size be
// computed by formula. Integers are big-endian. Key order comes from
// KeyCodec.Compare, not from the encoded bytes: a negative Int64 encodes as
// its two's complement and sorts after every non-negative one bytewise.
package codec

import (
	"github.com/btree-query-bench/pagetree/dbms/dberr"
	"github.com/cockroachdb/errors"
)

// ErrSizeMismatch is returned when a decode input does not have the codec's
// width. It is marked as dberr.ErrEncoding.
var ErrSizeMismatch = errors.Mark(errors.New("codec: size mismatch"), dberr.ErrEncoding)

// Codec encodes values of type T into exactly Width() bytes.
type Codec[T any] interface {
	// Width returns the encoded size in bytes.
	Width() int
	// Append appends the encoding of v to dst.
	Append(dst []byte, v T) ([]byte, error)
	// Decode parses b, which must be exactly Width() bytes long.
	Decode(b []byte) (T, error)
}

// KeyCodec is a Codec over a totally ordered type.
type KeyCodec[T any] interface {
	Codec[T]
	// Compare returns -1, 0 or +1 as a is less than, equal to or greater than b.
	Compare(a, b T) int
}

// Encode returns the encoding of v as a fresh slice of c.Width() bytes.
func Encode[T any](c Codec[T], v T) ([]byte, error) {
	return c.Append(make([]byte, 0, c.Width()), v)
}

func checkWidth(name string, b []byte, want int) error {
	if len(b) != want {
		return errors.Wrapf(ErrSizeMismatch, "%s: got %d bytes, want %d", name, len(b), want)
	}
	return nil
}
