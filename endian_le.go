// endian_le.go -- endian conversion routines for little-endian archs.
// This file is for little-endian systems; thus conversion _to_ little-endian
// format is idempotent. We build this file into the LE archs listed in the
// build constraints below; LE archs not listed there (e.g. riscv64) are not
// covered.
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

//go:build 386 || amd64 || arm || arm64 || ppc64le || mipsle || mips64le

package cdb

func toLittleEndianUint32(v uint32) uint32 {
	return v
}
