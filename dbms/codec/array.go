package codec

import (
	"github.com/btree-query-bench/pagetree/dbms/dberr"
	"github.com/cockroachdb/errors"
)

// Array encodes a slice of at most Cap elements into Cap fixed-width slots.
// Used slots come first; the remainder is zero-filled and there is no length
// prefix. Decode always yields Cap elements; callers truncate with their own
// count.
type Array[T any] struct {
	Elem Codec[T]
	Cap  int
}

// NewArray returns an Array codec over elem with capacity n.
func NewArray[T any](elem Codec[T], n int) Array[T] {
	return Array[T]{Elem: elem, Cap: n}
}

func (a Array[T]) Width() int { return a.Cap * a.Elem.Width() }

func (a Array[T]) Append(dst []byte, v []T) ([]byte, error) {
	if len(v) > a.Cap {
		return dst, dberr.Encodingf("codec: array length %d exceeds capacity %d", len(v), a.Cap)
	}
	var err error
	for i := range v {
		if dst, err = a.Elem.Append(dst, v[i]); err != nil {
			return dst, errors.Wrapf(err, "array slot %d", i)
		}
	}
	pad := (a.Cap - len(v)) * a.Elem.Width()
	return append(dst, make([]byte, pad)...), nil
}

func (a Array[T]) Decode(b []byte) ([]T, error) {
	if err := checkWidth("array", b, a.Width()); err != nil {
		return nil, err
	}
	w := a.Elem.Width()
	out := make([]T, a.Cap)
	for i := 0; i < a.Cap; i++ {
		v, err := a.Elem.Decode(b[i*w : (i+1)*w])
		if err != nil {
			return nil, errors.Wrapf(err, "array slot %d", i)
		}
		out[i] = v
	}
	return out, nil
}
