package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/holovault/rangestore/internal/byterange"
	"github.com/holovault/rangestore/pkg/fs"
)

// decodedEntries drains a fresh iterator into a plain slice so callers can
// compare whole decoded index sequences with cmp.Diff instead of probing
// one range at a time.
func decodedEntries(t *testing.T, ds *Dataset) []byterange.Range {
	t.Helper()

	it := ds.NewIterator()

	var entries []byterange.Range

	for !it.IsEOF() {
		entry, err := it.Next()
		require.NoError(t, err)

		entries = append(entries, entry)
	}

	return entries
}

func openNew(t *testing.T) (*Dataset, string) {
	t.Helper()

	dir := t.TempDir()
	dataPath := filepath.Join(dir, "d.bin")

	real := fs.NewReal()

	ds, err := Open(real, dataPath, "", "", CreateNewReadWrite)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = ds.Close()
	})

	return ds, dataPath
}

func TestOpen_CreateNewThenExistingReadWrite(t *testing.T) {
	ds, dataPath := openNew(t)

	require.NoError(t, ds.DataAddRange(byterange.Range{Offset: 0, Length: 5}, []byte("hello"), ConflictError))
	require.NoError(t, ds.Close())

	real := fs.NewReal()

	reopened, err := Open(real, dataPath, "", "", OpenExistingReadWrite)
	require.NoError(t, err)

	defer reopened.Close()

	buf := make([]byte, 5)
	n, err := reopened.DataReadRange(byterange.Range{Offset: 0, Length: 5}, buf)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(buf))
}

func TestOpen_CreateNewFailsIfDataExists(t *testing.T) {
	ds, dataPath := openNew(t)
	require.NoError(t, ds.Close())

	real := fs.NewReal()

	_, err := Open(real, dataPath, "", "", CreateNewReadWrite)
	require.Error(t, err)

	var dsErr *Error
	require.True(t, errors.As(err, &dsErr))
	require.Equal(t, CodeIO, dsErr.Code)

	code, ok := dsErr.PlatformErrno()
	require.True(t, ok, "expected a platform errno for an EEXIST failure")
	require.NotZero(t, code)
}

func TestOpen_SecondOpenFailsWithDatasetLocked(t *testing.T) {
	ds, dataPath := openNew(t)
	_ = ds

	real := fs.NewReal()

	_, err := Open(real, dataPath, "", "", OpenExistingReadWrite)

	var dsErr *Error
	require.True(t, errors.As(err, &dsErr))
	require.Equal(t, CodeDatasetLocked, dsErr.Code)
}

func TestOpen_ReadOnlyRejectsMutation(t *testing.T) {
	ds, dataPath := openNew(t)
	require.NoError(t, ds.Close())

	real := fs.NewReal()

	ro, err := Open(real, dataPath, "", "", OpenExistingReadOnly)
	require.NoError(t, err)

	defer ro.Close()

	err = ro.IndexAdd(byterange.Range{Offset: 0, Length: 1})
	require.ErrorIs(t, err, ErrDatasetReadOnly)
}

func TestDataAddRange_ThenIndexContains(t *testing.T) {
	ds, _ := openNew(t)

	r := byterange.Range{Offset: 10, Length: 20}
	require.NoError(t, ds.DataAddRange(r, make([]byte, 20), ConflictError))

	ok, err := ds.IndexContains(r)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = ds.IndexContains(byterange.Range{Offset: 0, Length: 5})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDataAddRange_ConflictModes(t *testing.T) {
	ds, _ := openNew(t)

	r := byterange.Range{Offset: 0, Length: 4}
	require.NoError(t, ds.DataAddRange(r, []byte("aaaa"), ConflictError))

	err := ds.DataWrite(r, []byte("bbbb"), ConflictError)
	require.ErrorIs(t, err, ErrDataConflict)

	require.NoError(t, ds.DataWrite(r, []byte("cccc"), ConflictKeepOld))

	buf := make([]byte, 4)
	_, err = ds.DataReadRange(r, buf)
	require.NoError(t, err)
	require.Equal(t, "aaaa", string(buf))

	require.NoError(t, ds.DataWrite(r, []byte("dddd"), ConflictOverwrite))

	_, err = ds.DataReadRange(r, buf)
	require.NoError(t, err)
	require.Equal(t, "dddd", string(buf))
}

func TestIndexFindOffset(t *testing.T) {
	ds, _ := openNew(t)

	require.NoError(t, ds.DataAddRange(byterange.Range{Offset: 10, Length: 10}, make([]byte, 10), ConflictError))

	off, ok, err := ds.IndexFindOffset(0, FindData)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(10), off)

	off, ok, err = ds.IndexFindOffset(0, FindNoData)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(0), off)

	off, ok, err = ds.IndexFindOffset(12, FindNoData)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(20), off)

	_, ok, err = ds.IndexFindOffset(25, FindData)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIndexRemove_SplitsEntry(t *testing.T) {
	ds, _ := openNew(t)

	require.NoError(t, ds.DataAddRange(byterange.Range{Offset: 0, Length: 100}, make([]byte, 100), ConflictError))
	require.NoError(t, ds.IndexRemove(byterange.Range{Offset: 40, Length: 20}))

	ok, err := ds.IndexContains(byterange.Range{Offset: 0, Length: 40})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = ds.IndexContains(byterange.Range{Offset: 60, Length: 40})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = ds.IndexContains(byterange.Range{Offset: 30, Length: 20})
	require.NoError(t, err)
	require.False(t, ok)

	want := []byterange.Range{
		{Offset: 0, Length: 40},
		{Offset: 60, Length: 40},
	}
	if diff := cmp.Diff(want, decodedEntries(t, ds)); diff != "" {
		t.Fatalf("decoded index sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestDataSetSize_RejectsDestructiveShrinkByDefault(t *testing.T) {
	ds, _ := openNew(t)

	require.NoError(t, ds.DataAddRange(byterange.Range{Offset: 0, Length: 100}, make([]byte, 100), ConflictError))

	err := ds.DataSetSize(50, false)
	require.ErrorIs(t, err, ErrSizeTooSmall)

	require.NoError(t, ds.DataSetSize(50, true))

	ok, err := ds.IndexContains(byterange.Range{Offset: 0, Length: 50})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestIterator_DiesAfterCommit(t *testing.T) {
	ds, _ := openNew(t)

	require.NoError(t, ds.DataAddRange(byterange.Range{Offset: 0, Length: 10}, make([]byte, 10), ConflictError))

	it := ds.NewIterator()

	require.NoError(t, ds.IndexAdd(byterange.Range{Offset: 20, Length: 10}))

	_, err := it.Next()
	require.ErrorIs(t, err, ErrDeadIndexIterator)
}

func TestIndexAdd_MergesAdjacentRanges(t *testing.T) {
	ds, _ := openNew(t)

	require.NoError(t, ds.IndexAdd(byterange.Range{Offset: 0, Length: 10}))
	require.NoError(t, ds.IndexAdd(byterange.Range{Offset: 10, Length: 10}))

	ok, err := ds.IndexContains(byterange.Range{Offset: 0, Length: 20})
	require.NoError(t, err)
	require.True(t, ok)

	want := []byterange.Range{{Offset: 0, Length: 20}}
	if diff := cmp.Diff(want, decodedEntries(t, ds)); diff != "" {
		t.Fatalf("decoded index sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestDataWrite_ConflictClampedToOverlapWithEntryExtendingPastRange(t *testing.T) {
	ds, _ := openNew(t)

	// Existing entry [0, 10) full of 'a'; write only overlaps its first
	// half with 'b's in KEEP_OLD mode, so bytes [5, 10) must remain
	// untouched even though the entry is longer than the write.
	require.NoError(t, ds.DataAddRange(byterange.Range{Offset: 0, Length: 10}, []byte("aaaaaaaaaa"), ConflictError))

	require.NoError(t, ds.DataWrite(byterange.Range{Offset: 0, Length: 5}, []byte("bbbbb"), ConflictKeepOld))

	buf := make([]byte, 10)
	_, err := ds.DataReadRange(byterange.Range{Offset: 0, Length: 10}, buf)
	require.NoError(t, err)
	require.Equal(t, "aaaaaaaaaa", string(buf))
}

func TestDataWrite_OverwritePartialOverlapLeavesEntryTailIntact(t *testing.T) {
	ds, _ := openNew(t)

	require.NoError(t, ds.DataAddRange(byterange.Range{Offset: 0, Length: 10}, []byte("aaaaaaaaaa"), ConflictError))

	require.NoError(t, ds.DataWrite(byterange.Range{Offset: 0, Length: 5}, []byte("bbbbb"), ConflictOverwrite))

	buf := make([]byte, 10)
	_, err := ds.DataReadRange(byterange.Range{Offset: 0, Length: 10}, buf)
	require.NoError(t, err)
	require.Equal(t, "bbbbbaaaaa", string(buf))
}

func TestIndexAdd_IsIdempotent(t *testing.T) {
	ds, _ := openNew(t)

	r := byterange.Range{Offset: 5, Length: 15}
	require.NoError(t, ds.IndexAdd(r))

	first := decodedEntries(t, ds)

	require.NoError(t, ds.IndexAdd(r))

	second := decodedEntries(t, ds)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("adding the same range twice changed the decoded sequence (-first +second):\n%s", diff)
	}
}

func TestIndexAdd_BumpsRevisionEvenOnNoOpAdd(t *testing.T) {
	ds, _ := openNew(t)

	r := byterange.Range{Offset: 5, Length: 15}
	require.NoError(t, ds.IndexAdd(r))

	before := ds.Revision()

	// Re-adding a range already fully covered changes nothing about the
	// decoded sequence, but a commit still ran, so the revision must have
	// moved on and any iterator opened before this call is dead.
	it := ds.NewIterator()

	require.NoError(t, ds.IndexAdd(r))

	require.NotEqual(t, before, ds.Revision())

	_, err := it.Next()
	require.ErrorIs(t, err, ErrDeadIndexIterator)
}

func TestIndexAdd_FailsWhenTailExceedsSingleCacheWindow(t *testing.T) {
	ds, _ := openNew(t)

	// Build a synthetic index large enough that no single 64 KiB window can
	// hold its tail, by writing the already-encoded entries straight to the
	// index file and pointing the cache's bookkeeping at them directly.
	// Reaching this size through one IndexAdd commit at a time would be
	// far too slow and isn't what's under test here; what matters is that
	// an edit whose commit needs to shift a tail longer than cacheCapacity
	// fails with ErrIndexTooLarge instead of corrupting the cache.
	const entryCount = 32800 // 2 bytes/entry, comfortably over cacheCapacity

	payload := make([]byte, 0, entryCount*2)
	for i := 0; i < entryCount; i++ {
		// Each pair decodes to a one-byte entry starting right after the
		// previous one's single byte of absent space: gap=0, length-1=0.
		payload = append(payload, 0x00, 0x00)
	}

	_, err := ds.indexFile.Write(payload)
	require.NoError(t, err)

	ds.cache.totalSize = uint64(len(payload))
	ds.cache.totalSizeOnDisk = uint64(len(payload))

	err = ds.IndexAdd(byterange.Range{Offset: 0, Length: 1})
	require.ErrorIs(t, err, ErrIndexTooLarge)
}

func TestOpenOrCreate_CreatesThenReopens(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "d.bin")

	real := fs.NewReal()

	ds, err := Open(real, dataPath, "", "", OpenOrCreateReadWrite)
	require.NoError(t, err)
	require.NoError(t, ds.Close())

	_, err = os.Stat(dataPath)
	require.NoError(t, err)

	ds2, err := Open(real, dataPath, "", "", OpenOrCreateReadWrite)
	require.NoError(t, err)
	require.NoError(t, ds2.Close())
}
