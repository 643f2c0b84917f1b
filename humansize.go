// humansize.go - print sizes in human readable form
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package cdb

import (
	"fmt"
)

const (
	_byte = 1 << (iota * 10)
	_kB
	_MB
	_GB
	_TB
	_PB
	_EB
)

// Humansize renders sz as a human readable size (e.g. "1.50 MB"). It is
// exported so that cdbtool's stat command can use it without duplicating
// the table.
func Humansize(sz uint64) string {
	var a, b uint64
	var s string

	switch {
	case sz >= _EB:
		a, b, s = sz/_EB, sz%_EB, "EB"
	case sz >= _PB:
		a, b, s = sz/_PB, sz%_PB, "PB"
	case sz >= _TB:
		a, b, s = sz/_TB, sz%_TB, "TB"
	case sz >= _GB:
		a, b, s = sz/_GB, sz%_GB, "GB"
	case sz >= _MB:
		a, b, s = sz/_MB, sz%_MB, "MB"
	case sz >= _kB:
		a, b, s = sz/_kB, sz%_kB, "kB"
	default:
		return fmt.Sprintf("%d B", sz)
	}

	if b > 0 {
		unit := (sz - b) / a
		return fmt.Sprintf("%.2f %s", float64(sz)/float64(unit), s)
	}
	return fmt.Sprintf("%d %s", a, s)
}
