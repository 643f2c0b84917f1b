// mmap.go -- zero-copy reinterpretation of mmap'd bytes as uint32 slices
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package cdb

import (
	"reflect"
	"unsafe"
)

// bsToUint32Slice reinterprets a byte slice (typically a window into an
// mmap'd file) as a []uint32 without copying. The caller is responsible for
// ensuring b's length is a multiple of 4 and that the backing memory outlives
// the returned slice.
func bsToUint32Slice(b []byte) []uint32 {
	n := len(b) / 4
	bh := (*reflect.SliceHeader)(unsafe.Pointer(&b))
	var v []uint32

	sh := (*reflect.SliceHeader)(unsafe.Pointer(&v))
	sh.Data = bh.Data
	sh.Len = n
	sh.Cap = n

	return v
}
