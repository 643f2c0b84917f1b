// endian_be_test.go -- test suite for endian-convertors:
// run this on big-endian machines!
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

//go:build ppc64 || mips || mips64

package cdb

import (
	"testing"
)

func TestEndianOnBE(t *testing.T) {
	assert := newAsserter(t) // this is in hash_test.go

	a0 := uint32(0xabcd1234)
	b0 := toLittleEndianUint32(a0)
	assert(b0 == 0x3412cdab, "uint32-be %d != %d", a0, b0)
}
