// dbwriter.go -- streaming writer for a constant database
//
// A Writer accepts an arbitrary sequence of (key, value) pairs, appending
// each record to the tail of the file as it arrives, and defers all index
// construction to Finish. Finish buckets every record by the low byte of
// its CDB hash, sizes each bucket's open-addressed slot array at twice the
// bucket's key count, places each pointer by linear probing from
// (hash>>8) mod bucket_length, and finally patches the 2048-byte slot
// directory at the head of the file.
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package cdb

import (
	"bufio"
	"crypto/rand"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/natefinch/atomic"
	"go.uber.org/zap"
)

// pointer is an in-memory (hash, record_offset) pair recorded at Put time,
// before it has been placed into its bucket's final slot array.
type pointer struct {
	hash   uint32
	offset uint32
}

// Writer builds a constant database at a target path. It is single-owner:
// Put must not be called concurrently from multiple goroutines. The target
// path is not touched until Finish succeeds -- construction happens in a
// sibling temp file that is atomically published on completion.
type Writer struct {
	path string
	tmp  string

	fd  *os.File
	buf *bufio.Writer

	off     int64 // current append offset, starts at directorySize
	buckets [numBuckets][]pointer

	finalized bool
	nkeys     int
}

// Create reserves a database at path. The file at path is not created or
// modified until a subsequent Finish succeeds; construction happens in a
// sibling temporary file.
func Create(path string) (*Writer, error) {
	var suffix [4]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		return nil, fmt.Errorf("cdb: can't generate temp suffix: %w", err)
	}
	tmp := fmt.Sprintf("%s.tmp.%x", path, suffix)

	fd, err := os.OpenFile(tmp, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("cdb: create %s: %w", tmp, err)
	}

	w := &Writer{
		path: path,
		tmp:  tmp,
		fd:   fd,
		buf:  bufio.NewWriterSize(fd, 64*1024),
		off:  directorySize,
	}

	// reserve the 2048-byte slot directory; it is overwritten in Finish.
	if err := w.writeAll(make([]byte, directorySize)); err != nil {
		w.abort()
		return nil, err
	}

	return w, nil
}

// Put appends a (key, value) record and records its hash and offset for
// bucket placement at Finish time. Duplicate keys are allowed and preserved
// in append order; a later Finish makes the first-appended value for a key
// the one Get() returns.
func (w *Writer) Put(key, value []byte) error {
	if w.finalized {
		return ErrFinalized
	}
	if key == nil || value == nil {
		return ErrInvalidArgument
	}

	recsz := int64(recordPrefixSize) + int64(len(key)) + int64(len(value))
	if w.off+recsz > math.MaxUint32 {
		return ErrTooLarge
	}
	if uint64(len(key)) > math.MaxUint32 || uint64(len(value)) > math.MaxUint32 {
		return ErrTooLarge
	}

	offset := uint32(w.off)
	prefix := encodeRecordPrefix(uint32(len(key)), uint32(len(value)))
	if err := w.writeAll(prefix[:]); err != nil {
		return err
	}
	if err := w.writeAll(key); err != nil {
		return err
	}
	if err := w.writeAll(value); err != nil {
		return err
	}

	h := Hash(key)
	b := h & 0xff
	w.buckets[b] = append(w.buckets[b], pointer{hash: h, offset: offset})
	w.nkeys++

	return nil
}

// Finish materializes the bucket tables and the slot directory, flushes and
// atomically publishes the file to its target path. Finish is idempotent:
// calling it again after it has succeeded is a no-op.
func (w *Writer) Finish() (err error) {
	if w.finalized {
		return nil
	}

	start := time.Now()

	defer func() {
		if err != nil {
			w.abort()
		}
	}()

	var dir directory

	for b := 0; b < numBuckets; b++ {
		ptrs := w.buckets[b]
		n := len(ptrs)
		if n == 0 {
			continue
		}

		length := uint32(n * 2)
		slots := make([]uint32, 2*length) // interleaved (hash, offset) pairs; 0,0 == empty

		for _, p := range ptrs {
			slot := (p.hash >> 8) % length
			for {
				if slots[2*slot+1] == 0 {
					slots[2*slot] = p.hash
					slots[2*slot+1] = p.offset
					break
				}
				slot++
				if slot == length {
					slot = 0
				}
			}
		}

		dir[b] = bucketDesc{offset: uint32(w.off), length: length}

		for i := uint32(0); i < length; i++ {
			tmp := encodeSlot(slots[2*i], slots[2*i+1])
			if err = w.writeAll(tmp[:]); err != nil {
				return err
			}
		}
	}

	if err = w.buf.Flush(); err != nil {
		return fmt.Errorf("cdb: flush: %w", err)
	}

	if err = writeDirectory(w.fd, dir); err != nil {
		return fmt.Errorf("cdb: write slot directory: %w", err)
	}

	if err = w.fd.Sync(); err != nil {
		return fmt.Errorf("cdb: fsync: %w", err)
	}

	finalSize := w.off
	tmpPath, targetPath := w.tmp, w.path

	if cerr := w.fd.Close(); cerr != nil {
		logger.Warn("cdb: error closing temp file", zap.String("path", tmpPath), zap.Error(cerr))
	}

	if err = atomic.ReplaceFile(tmpPath, targetPath); err != nil {
		return fmt.Errorf("cdb: publish %s: %w", targetPath, err)
	}

	w.finalized = true

	logger.Info("cdb: finished writing database",
		zap.String("path", targetPath),
		zap.Int("keys", w.nkeys),
		zap.Int64("size", finalSize),
		zap.Duration("elapsed", time.Since(start)),
	)

	return nil
}

// Close finalizes the writer (if Finish has not already run) and releases
// its resources. A failure finalizing is returned; a failure only in the
// underlying close is logged and does not override a successful Finish.
func (w *Writer) Close() error {
	if !w.finalized {
		return w.Finish()
	}
	return nil
}

// Len returns the number of records appended so far (including duplicates).
func (w *Writer) Len() int {
	return w.nkeys
}

func (w *Writer) writeAll(b []byte) error {
	n, err := w.buf.Write(b)
	if err != nil {
		return fmt.Errorf("cdb: write: %w", err)
	}
	if n != len(b) {
		return errShortWrite(n, len(b))
	}
	w.off += int64(n)
	return nil
}

// abort discards the in-progress temp file after a failed Finish (or a
// failed Create).
func (w *Writer) abort() {
	if cerr := w.fd.Close(); cerr != nil {
		logger.Warn("cdb: error closing aborted writer", zap.String("path", w.tmp), zap.Error(cerr))
	}
	if rerr := os.Remove(w.tmp); rerr != nil && !os.IsNotExist(rerr) {
		logger.Warn("cdb: error removing temp file", zap.String("path", w.tmp), zap.Error(rerr))
	}
}
