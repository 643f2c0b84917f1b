// db_test.go -- integration tests for Writer/Reader round trips
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package cdb

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func buildDB(t *testing.T, put func(w *Writer) error) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.cdb")
	w, err := Create(path)
	require.NoError(t, err)

	require.NoError(t, put(w))
	require.NoError(t, w.Finish())

	return path
}

// S1: basic put/get round trip, plus a miss on a key never written.
func TestRoundTrip(t *testing.T) {
	path := buildDB(t, func(w *Writer) error {
		for _, kv := range [][2]string{{"key1", "value1"}, {"key2", "value2"}, {"key3", "value3"}} {
			if err := w.Put([]byte(kv[0]), []byte(kv[1])); err != nil {
				return err
			}
		}
		return nil
	})

	rd, err := Open(path)
	require.NoError(t, err)
	defer rd.Close()

	v, err := rd.Get([]byte("key1"))
	require.NoError(t, err)
	require.True(t, cmp.Equal(v, []byte("value1")))

	_, err = rd.Get([]byte("nonexistent"))
	require.ErrorIs(t, err, ErrNotFound)
}

// S2: duplicate keys are preserved in append order; Get returns the first,
// Find yields all of them.
func TestDuplicateKeys(t *testing.T) {
	path := buildDB(t, func(w *Writer) error {
		for _, v := range []string{"a", "b", "c"} {
			if err := w.Put([]byte("k"), []byte(v)); err != nil {
				return err
			}
		}
		return nil
	})

	rd, err := Open(path)
	require.NoError(t, err)
	defer rd.Close()

	v, err := rd.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, "a", string(v))

	seen := map[string]int{}
	for v, err := range rd.Find([]byte("k")) {
		require.NoError(t, err)
		seen[string(v)]++
	}
	require.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1}, seen)
}

// S4: large key/value pair round trips byte-exact.
func TestLargeRecord(t *testing.T) {
	key := make([]byte, 1024)
	val := make([]byte, 1<<20)
	_, err := rand.Read(key)
	require.NoError(t, err)
	_, err = rand.Read(val)
	require.NoError(t, err)

	path := buildDB(t, func(w *Writer) error {
		return w.Put(key, val)
	})

	rd, err := Open(path)
	require.NoError(t, err)
	defer rd.Close()

	got, err := rd.Get(key)
	require.NoError(t, err)
	require.True(t, cmp.Equal(got, val), "round-tripped value differs from original")
}

// S5: a writer rejects Put after it has been finalized.
func TestPutAfterFinalizeFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.cdb")
	w, err := Create(path)
	require.NoError(t, err)

	require.NoError(t, w.Put([]byte("k"), []byte("v")))
	require.NoError(t, w.Close()) // auto-finalizes

	err = w.Put([]byte("k2"), []byte("v2"))
	require.ErrorIs(t, err, ErrFinalized)

	// Finish/Close after finalization is a harmless no-op.
	require.NoError(t, w.Finish())
	require.NoError(t, w.Close())
}

// S6: a slot directory zeroed out (but otherwise large enough) reports every
// key absent, and never surfaces an I/O error.
func TestZeroedDirectoryAllMiss(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zeroed.cdb")
	require.NoError(t, os.WriteFile(path, make([]byte, directorySize+64), 0644))

	rd, err := Open(path)
	require.NoError(t, err)
	defer rd.Close()

	require.Equal(t, 0, rd.Len())

	for _, k := range []string{"a", "b", "key1"} {
		_, err := rd.Get([]byte(k))
		require.ErrorIs(t, err, ErrNotFound)
	}
}

// A file shorter than the slot directory is rejected outright as corrupt.
func TestTruncatedFileIsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.cdb")
	require.NoError(t, os.WriteFile(path, make([]byte, 100), 0644))

	_, err := Open(path)
	require.ErrorIs(t, err, ErrCorruptHeader)
}

// Nil keys/values are rejected without touching the file.
func TestPutRejectsNilArguments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.cdb")
	w, err := Create(path)
	require.NoError(t, err)
	defer w.Close()

	require.ErrorIs(t, w.Put(nil, []byte("v")), ErrInvalidArgument)
	require.ErrorIs(t, w.Put([]byte("k"), nil), ErrInvalidArgument)
}

// Empty database: no keys, directory all zero, Len reports zero, every
// lookup misses.
func TestEmptyDatabase(t *testing.T) {
	path := buildDB(t, func(w *Writer) error { return nil })

	rd, err := Open(path)
	require.NoError(t, err)
	defer rd.Close()

	require.Equal(t, 0, rd.Len())

	_, err = rd.Get([]byte("anything"))
	require.ErrorIs(t, err, ErrNotFound)
}

// The on-disk format is pinned to djb's original cdb layout: hash("") and
// hash("a") must match the published test vectors, independent of any Go-side
// implementation detail.
func TestHashFormatStability(t *testing.T) {
	require.Equal(t, uint32(5381), Hash(nil))
	require.Equal(t, uint32(177604), Hash([]byte("a")))
}

// A larger population exercises bucket chaining and probing beyond a
// single-entry bucket.
func TestManyKeys(t *testing.T) {
	const n = 2000

	path := buildDB(t, func(w *Writer) error {
		for i := 0; i < n; i++ {
			k := fmt.Sprintf("key-%d", i)
			v := fmt.Sprintf("value-%d", i)
			if err := w.Put([]byte(k), []byte(v)); err != nil {
				return err
			}
		}
		return nil
	})

	rd, err := Open(path)
	require.NoError(t, err)
	defer rd.Close()

	require.Equal(t, n, rd.Len())

	for i := 0; i < n; i++ {
		k := fmt.Sprintf("key-%d", i)
		want := fmt.Sprintf("value-%d", i)
		got, err := rd.Get([]byte(k))
		require.NoError(t, err, "key %s", k)
		require.Equal(t, want, string(got))
	}

	_, err = rd.Get([]byte("key-absent"))
	require.ErrorIs(t, err, ErrNotFound)
}

// All walks every record exactly once, independent of append order.
func TestAllEnumeratesEveryRecord(t *testing.T) {
	const n = 300

	want := map[string]string{}
	path := buildDB(t, func(w *Writer) error {
		for i := 0; i < n; i++ {
			k := fmt.Sprintf("key-%d", i)
			v := fmt.Sprintf("value-%d", i)
			want[k] = v
			if err := w.Put([]byte(k), []byte(v)); err != nil {
				return err
			}
		}
		return nil
	})

	rd, err := Open(path)
	require.NoError(t, err)
	defer rd.Close()

	got := map[string]string{}
	for kv, err := range rd.All() {
		require.NoError(t, err)
		got[string(kv[0])] = string(kv[1])
	}
	require.Equal(t, want, got)
}
