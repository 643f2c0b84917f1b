// dbreader.go -- constant-time reader for a constant database
//
// A Reader mmaps the entire file once at Open and thereafter never issues a
// syscall on the lookup path: the slot directory, bucket tables and record
// bytes are all read by slicing the mapping. Because the mapping carries no
// file cursor, an arbitrary number of goroutines may call Get/Find/All on
// the same Reader concurrently -- they only ever take a shared (uncontended,
// effectively lock-free) read lock against each other, and contend only
// with a concurrent Close, which must wait for them to drain before it may
// unmap the file out from under them.
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package cdb

import (
	"bytes"
	"fmt"
	"iter"
	"os"
	"sync"
	"sync/atomic"
	"syscall"

	"go.uber.org/zap"
)

// Reader serves Get/Find/All lookups against a previously finalized
// database. All methods are safe for concurrent use by multiple goroutines.
type Reader struct {
	fd   *os.File
	mmap []byte
	dir  directory
	path string
	size int64

	nkeys int

	// mu guards the window between a lookup observing closed == 0 and its
	// last touch of mmap. Lookups take it for read (cheap, uncontended
	// unless Close is in progress); Close takes it for write, which blocks
	// until every in-flight lookup has released it, and only then unmaps.
	mu     sync.RWMutex
	closed int32 // atomic; 0 = open, 1 = closed
}

// Open mmaps the database at path and parses its slot directory.
func Open(path string) (*Reader, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cdb: open %s: %w", path, err)
	}

	st, err := fd.Stat()
	if err != nil {
		fd.Close()
		return nil, fmt.Errorf("cdb: stat %s: %w", path, err)
	}

	size := st.Size()
	if size < directorySize {
		fd.Close()
		return nil, ErrCorruptHeader
	}

	var mm []byte
	if size > 0 {
		mm, err = syscall.Mmap(int(fd.Fd()), 0, int(size), syscall.PROT_READ, syscall.MAP_PRIVATE)
		if err != nil {
			fd.Close()
			return nil, fmt.Errorf("cdb: mmap %s: %w", path, err)
		}
	}

	dir := decodeDirectoryFast(mm[:directorySize])

	for i := range dir {
		end := int64(dir[i].offset) + 8*int64(dir[i].length)
		if dir[i].length > 0 && (int64(dir[i].offset) < directorySize || end > size) {
			syscall.Munmap(mm)
			fd.Close()
			return nil, ErrCorruptHeader
		}
	}

	r := &Reader{
		fd:   fd,
		mmap: mm,
		dir:  dir,
		path: path,
		size: size,
	}

	for i := range dir {
		r.nkeys += int(dir[i].length / 2)
	}

	return r, nil
}

// Len returns the total number of slots' worth of keys recorded in the
// directory (counting duplicate keys once per Put call).
func (r *Reader) Len() int {
	return r.nkeys
}

// Get returns the first value associated with key in append order, or
// ErrNotFound if no record matches. I/O is impossible once the reader is
// open (all access is against the mmap'd region), so ErrNotFound is the
// only error Get returns; a Get against a closed Reader simply finds
// nothing and also reports ErrNotFound.
func (r *Reader) Get(key []byte) ([]byte, error) {
	var result []byte
	found := false

	for v, err := range r.find(key) {
		if err != nil {
			return nil, err
		}
		result, found = v, true
		break
	}

	if !found {
		return nil, ErrNotFound
	}
	return result, nil
}

// Find returns a lazy, finite, non-restartable sequence of every value
// whose record matches key, in probe order. Two concurrent calls to Find
// on the same Reader (even for the same key) do not share any state.
func (r *Reader) Find(key []byte) iter.Seq2[[]byte, error] {
	return r.find(key)
}

func (r *Reader) find(key []byte) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		if atomic.LoadInt32(&r.closed) != 0 {
			return
		}

		r.mu.RLock()
		defer r.mu.RUnlock()
		if atomic.LoadInt32(&r.closed) != 0 {
			return
		}

		h := Hash(key)
		b := h & 0xff
		desc := r.dir[b]
		if desc.length == 0 {
			return
		}

		start := (h >> 8) % desc.length
		s := start

		for visited := uint32(0); visited < desc.length; visited++ {
			slotOff := int64(desc.offset) + 8*int64(s)
			slotBytes, ok := r.slice(slotOff, slotSize)
			if !ok {
				logger.Warn("cdb: bucket slot out of bounds", zap.Uint32("bucket", b), zap.Uint32("slot", s))
				return
			}

			slotHash, recOff := decodeSlot(slotBytes)
			if recOff == 0 {
				return // empty slot: probe terminates
			}

			if slotHash == h {
				val, ok := r.matchRecord(recOff, key)
				if ok {
					if !yield(val, nil) {
						return
					}
				}
			}

			s++
			if s == desc.length {
				s = 0
			}
		}
	}
}

// matchRecord reads the record at off and, if its key matches key, returns
// a fresh copy of its value. Any framing inconsistency (short read, length
// mismatch) is reported to the observability sink and treated as "this
// slot does not match" rather than propagated as an error.
func (r *Reader) matchRecord(off uint32, key []byte) ([]byte, bool) {
	prefix, ok := r.slice(int64(off), recordPrefixSize)
	if !ok {
		logger.Warn("cdb: record prefix out of bounds", zap.Uint32("offset", off))
		return nil, false
	}

	klen, vlen := decodeRecordPrefix(prefix)
	if uint64(klen) != uint64(len(key)) {
		// either a genuine hash collision between two different keys, or a
		// corrupt record; either way this slot does not match.
		logger.Warn("cdb: record key length mismatch", zap.Uint32("offset", off), zap.Uint32("klen", klen), zap.Int("want", len(key)))
		return nil, false
	}

	keyBytes, ok := r.slice(int64(off)+recordPrefixSize, int64(klen))
	if !ok {
		logger.Warn("cdb: record key out of bounds", zap.Uint32("offset", off))
		return nil, false
	}
	if !bytes.Equal(keyBytes, key) {
		return nil, false
	}

	valBytes, ok := r.slice(int64(off)+recordPrefixSize+int64(klen), int64(vlen))
	if !ok {
		logger.Warn("cdb: record value out of bounds", zap.Uint32("offset", off))
		return nil, false
	}

	out := make([]byte, len(valBytes))
	copy(out, valBytes)
	return out, true
}

// All returns a lazy sequence of every (key, value) pair stored in the
// database, walking the slot directory bucket by bucket and, within each
// bucket, slot by slot -- not append order. Each key/value is a fresh copy
// safe to retain after the mapping is closed. A Close racing a long-running
// All blocks until the walk finishes; see the comment on Reader.mu.
func (r *Reader) All() iter.Seq2[[2][]byte, error] {
	return func(yield func([2][]byte, error) bool) {
		if atomic.LoadInt32(&r.closed) != 0 {
			return
		}

		r.mu.RLock()
		defer r.mu.RUnlock()
		if atomic.LoadInt32(&r.closed) != 0 {
			return
		}

		for b := range r.dir {
			desc := r.dir[b]
			for s := uint32(0); s < desc.length; s++ {
				slotOff := int64(desc.offset) + 8*int64(s)
				slotBytes, ok := r.slice(slotOff, slotSize)
				if !ok {
					logger.Warn("cdb: bucket slot out of bounds", zap.Int("bucket", b), zap.Uint32("slot", s))
					continue
				}

				_, recOff := decodeSlot(slotBytes)
				if recOff == 0 {
					continue // empty slot
				}

				prefix, ok := r.slice(int64(recOff), recordPrefixSize)
				if !ok {
					logger.Warn("cdb: record prefix out of bounds", zap.Uint32("offset", recOff))
					continue
				}
				klen, vlen := decodeRecordPrefix(prefix)

				keyBytes, ok := r.slice(int64(recOff)+recordPrefixSize, int64(klen))
				if !ok {
					logger.Warn("cdb: record key out of bounds", zap.Uint32("offset", recOff))
					continue
				}
				valBytes, ok := r.slice(int64(recOff)+recordPrefixSize+int64(klen), int64(vlen))
				if !ok {
					logger.Warn("cdb: record value out of bounds", zap.Uint32("offset", recOff))
					continue
				}

				key := make([]byte, len(keyBytes))
				copy(key, keyBytes)
				val := make([]byte, len(valBytes))
				copy(val, valBytes)

				if !yield([2][]byte{key, val}, nil) {
					return
				}
			}
		}
	}
}

// slice returns a sub-slice of the mapping [off, off+n), or false if that
// range falls outside the mapped file.
func (r *Reader) slice(off, n int64) ([]byte, bool) {
	if off < 0 || n < 0 || off+n > r.size {
		return nil, false
	}
	return r.mmap[off : off+n], true
}

// Close marks the reader closed, waits for any in-flight Get/Find/All call
// to drain (mu.Lock blocks until every outstanding RLock from find/All is
// released), and only then unmaps and closes the underlying file. Close is
// idempotent; an error from the underlying munmap/close is logged, never
// returned, so that a caller's cleanup path never needs its own error
// handling for it.
func (r *Reader) Close() error {
	if !atomic.CompareAndSwapInt32(&r.closed, 0, 1) {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.mmap) > 0 {
		if err := syscall.Munmap(r.mmap); err != nil {
			logger.Warn("cdb: munmap failed", zap.String("path", r.path), zap.Error(err))
		}
	}
	if err := r.fd.Close(); err != nil {
		logger.Warn("cdb: close failed", zap.String("path", r.path), zap.Error(err))
	}
	return nil
}
