// errors.go -- sentinel errors for the cdb package
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package cdb

import (
	"errors"
	"fmt"
)

func errShortWrite(n, want int) error {
	return fmt.Errorf("cdb: incomplete write; exp %d, saw %d", want, n)
}

var (
	// ErrFinalized is returned by Put() once Finish() has already run.
	// Finish() itself is idempotent and returns nil on a repeat call.
	ErrFinalized = errors.New("cdb: writer already finalized")

	// ErrTooLarge is returned if a key or value length -- or the resulting
	// file offset -- would overflow the format's 32-bit offsets.
	ErrTooLarge = errors.New("cdb: key, value or file size exceeds 32-bit limit")

	// ErrInvalidArgument is returned for a nil key or nil value passed to Put.
	ErrInvalidArgument = errors.New("cdb: key and value must be non-nil")

	// ErrNotFound is returned by Get when no record matches the given key.
	ErrNotFound = errors.New("cdb: key not found")

	// ErrCorruptHeader is returned by Open when the file is shorter than the
	// 2048-byte slot directory, or the directory describes buckets that do
	// not fit within the file.
	ErrCorruptHeader = errors.New("cdb: corrupt or truncated slot directory")
)
