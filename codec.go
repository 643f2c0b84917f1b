// codec.go -- encode/decode for the fixed 2048-byte slot directory and the
// 8-byte slot and record-prefix tuples that make up a CDB file.
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package cdb

import (
	"encoding/binary"
	"io"
)

const (
	// numBuckets is the number of top-level hash buckets; entry i of the
	// slot directory describes the bucket for keys whose hash low byte == i.
	numBuckets = 256

	// directorySize is the fixed size, in bytes, of the slot directory at
	// the head of every CDB file: 256 entries of (offset, length) uint32LE pairs.
	directorySize = numBuckets * 8

	// slotSize is the size, in bytes, of one (hash, record_offset) bucket slot.
	slotSize = 8

	// recordPrefixSize is the size, in bytes, of the (klen, vlen) prefix that
	// precedes every stored record.
	recordPrefixSize = 8
)

// bucketDesc is one entry of the slot directory: where a bucket's slot
// array begins and how many slots it holds.
type bucketDesc struct {
	offset uint32
	length uint32
}

// directory is the full, in-memory, 256-entry slot directory.
type directory [numBuckets]bucketDesc

// decodeDirectory parses a 2048-byte slot directory out of b. b must be
// at least directorySize bytes long.
func decodeDirectory(b []byte) directory {
	var d directory
	le := binary.LittleEndian
	for i := 0; i < numBuckets; i++ {
		off := i * 8
		d[i].offset = le.Uint32(b[off : off+4])
		d[i].length = le.Uint32(b[off+4 : off+8])
	}
	return d
}

// readDirectory reads exactly directorySize bytes from offset 0 of r and
// parses them. It fails with ErrCorruptHeader if fewer bytes are available.
func readDirectory(r io.ReaderAt) (directory, error) {
	var buf [directorySize]byte
	n, err := r.ReadAt(buf[:], 0)
	if err != nil && !(err == io.EOF && n == directorySize) {
		return directory{}, ErrCorruptHeader
	}
	if n != directorySize {
		return directory{}, ErrCorruptHeader
	}
	return decodeDirectory(buf[:]), nil
}

// writeDirectory serializes d as directorySize little-endian bytes and
// writes them at offset 0 of w.
func writeDirectory(w io.WriterAt, d directory) error {
	var buf [directorySize]byte
	le := binary.LittleEndian
	for i := 0; i < numBuckets; i++ {
		off := i * 8
		le.PutUint32(buf[off:off+4], d[i].offset)
		le.PutUint32(buf[off+4:off+8], d[i].length)
	}
	n, err := w.WriteAt(buf[:], 0)
	if err != nil {
		return err
	}
	if n != directorySize {
		return errShortWrite(n, directorySize)
	}
	return nil
}

// encodeSlot renders one bucket slot as 8 little-endian bytes: (hash, offset).
func encodeSlot(hash, offset uint32) [slotSize]byte {
	var b [slotSize]byte
	le := binary.LittleEndian
	le.PutUint32(b[0:4], hash)
	le.PutUint32(b[4:8], offset)
	return b
}

// decodeSlot parses an 8-byte bucket slot into (hash, offset). b must be at
// least slotSize bytes long.
func decodeSlot(b []byte) (hash, offset uint32) {
	le := binary.LittleEndian
	return le.Uint32(b[0:4]), le.Uint32(b[4:8])
}

// encodeRecordPrefix renders a record's (key length, value length) header
// as 8 little-endian bytes.
func encodeRecordPrefix(klen, vlen uint32) [recordPrefixSize]byte {
	var b [recordPrefixSize]byte
	le := binary.LittleEndian
	le.PutUint32(b[0:4], klen)
	le.PutUint32(b[4:8], vlen)
	return b
}

// decodeRecordPrefix parses an 8-byte record prefix into (klen, vlen). b
// must be at least recordPrefixSize bytes long.
func decodeRecordPrefix(b []byte) (klen, vlen uint32) {
	le := binary.LittleEndian
	return le.Uint32(b[0:4]), le.Uint32(b[4:8])
}

// decodeDirectoryFast is the zero-copy counterpart of decodeDirectory, used
// by Reader.Open on the mmap'd slot directory. It reinterprets the mapping
// as a []uint32 directly (bsToUint32Slice, mmap.go) and corrects for host
// byte order (toLittleEndianUint32, endian_le.go/endian_be.go -- a no-op on
// the little-endian archs endian_le.go is built for). It must agree bit-for-bit with
// decodeDirectory above; codec_test.go checks exactly that.
//
// This reinterpretation is only safe here because the directory always
// starts at offset 0 of a page-aligned mmap, so every uint32 field in it is
// naturally 4-byte aligned. Bucket slots and record prefixes live at
// arbitrary byte offsets determined by variable-length records, so they are
// NOT necessarily aligned; reinterpreting them as []uint32 would issue
// unaligned native loads that SIGBUS on strict-alignment big-endian arches
// (the ones endian_be.go targets). The reader's lookup path decodes those
// with the plain, alignment-safe decodeSlot/decodeRecordPrefix instead.
func decodeDirectoryFast(b []byte) directory {
	var d directory
	words := bsToUint32Slice(b)
	for i := 0; i < numBuckets; i++ {
		d[i].offset = toLittleEndianUint32(words[2*i])
		d[i].length = toLittleEndianUint32(words[2*i+1])
	}
	return d
}
