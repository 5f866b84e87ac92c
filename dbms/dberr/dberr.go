// Package dberr defines the error taxonomy shared by the page tree packages.
//
// The sentinels are used as marks: lower layers wrap the underlying cause
// with context and mark it with one of the values below, so callers can test
// the category with errors.Is while the message keeps the offset or path.
package dberr

import "github.com/cockroachdb/errors"

var (
	// ErrConfig reports an invalid tree configuration (even or too small
	// degree, empty name, unusable directory, bad page size).
	ErrConfig = errors.New("invalid configuration")

	// ErrEncoding reports a byte-level mismatch: wrong input length, unknown
	// node tag, counts above capacity, or a superblock that disagrees with
	// the configured layout. It signals corruption or version skew.
	ErrEncoding = errors.New("encoding error")

	// ErrIO reports a failed open, read, write or sync on the node file.
	ErrIO = errors.New("i/o error")

	// ErrKeyNotFound is the normal negative result of Get, Update and Delete.
	ErrKeyNotFound = errors.New("key not found")

	// ErrNotInitialized is returned by operations on a tree that is not open.
	ErrNotInitialized = errors.New("tree not initialized")

	// ErrDuplicateKey is returned by Insert when the key already exists.
	ErrDuplicateKey = errors.New("key already exists")
)

// Encodingf builds a new error marked as ErrEncoding.
func Encodingf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrEncoding)
}

// Configf builds a new error marked as ErrConfig.
func Configf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrConfig)
}

// IO wraps err with context and marks it as ErrIO. A nil err stays nil.
func IO(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrapf(err, format, args...), ErrIO)
}

// Encoding wraps err with context and marks it as ErrEncoding. A nil err
// stays nil.
func Encoding(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrapf(err, format, args...), ErrEncoding)
}
