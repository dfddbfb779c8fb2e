// Package dataset implements the core storage engine: a sparsely populated
// byte file (the "dataset") backed by a data file and a companion index
// file recording which byte ranges are present, plus a lock file
// providing interprocess mutual exclusion.
package dataset

import (
	"io"
	"math/rand/v2"
	"os"

	"github.com/holovault/rangestore/internal/byterange"
	"github.com/holovault/rangestore/pkg/fs"
)

// OpenMode selects how the data and index files are obtained at Open.
type OpenMode int

const (
	// OpenExistingReadOnly opens both files, which must already exist;
	// mutations fail with ErrDatasetReadOnly.
	OpenExistingReadOnly OpenMode = iota
	// OpenExistingReadWrite opens both files, which must already exist.
	OpenExistingReadWrite
	// CreateNewReadWrite creates both files, failing if either exists.
	CreateNewReadWrite
	// OpenOrCreateReadWrite opens the data file if present, else creates
	// it, and mirrors that decision for the index file. Racy by
	// construction between the existence check on the data file and the
	// opens that follow it; see Open's doc comment.
	OpenOrCreateReadWrite
)

// ConflictMode selects how Dataset.DataWrite resolves bytes that overlap
// an existing index entry.
type ConflictMode int

const (
	// ConflictError fails with ErrDataConflict on any byte mismatch.
	ConflictError ConflictMode = iota
	// ConflictKeepOld discards the incoming bytes, keeping what is on disk.
	ConflictKeepOld
	// ConflictOverwrite replaces the existing bytes with the incoming ones.
	ConflictOverwrite
)

// FindMode selects what Dataset.IndexFindOffset is looking for.
type FindMode int

const (
	// FindData looks for the next offset covered by an index entry.
	FindData FindMode = iota
	// FindNoData looks for the next offset not covered by any entry.
	FindNoData
)

// Dataset is an open handle on a data file, its index file, and its lock
// file. Operations on one Dataset are synchronous and not safe for
// concurrent use by multiple goroutines; see the package's concurrency
// model in the design notes.
type Dataset struct {
	fsys fs.FS

	dataPath  string
	indexPath string
	lockPath  string

	dataFile  fs.File
	indexFile fs.File
	lock      fs.Locker

	readOnly bool

	cache    pageCache
	revision uint64
}

// Paths holds the resolved data/index/lock paths for a dataset, after
// applying the defaulting rules in the path derivation section: an
// explicit index or lock path overrides the "+.idx"/"+.lck" default
// derived from the data path.
type Paths struct {
	Data  string
	Index string
	Lock  string
}

// maxPathLen bounds path length the way the reference implementation's
// fixed PATH_MAX buffers do; exceeding it is a usage error, not an I/O
// failure.
const maxPathLen = 4096

func resolvePaths(dataPath, indexPath, lockPath string) (Paths, error) {
	if indexPath == "" {
		indexPath = dataPath + ".idx"
	}

	if lockPath == "" {
		lockPath = dataPath + ".lck"
	}

	for _, p := range []string{dataPath, indexPath, lockPath} {
		if len(p) > maxPathLen {
			return Paths{}, newErr(CodeInvalidArgument, "path-too-long")
		}
	}

	return Paths{Data: dataPath, Index: indexPath, Lock: lockPath}, nil
}

// Open acquires the lock file, then opens (or creates) the data and index
// files per mode, and primes the cache and revision counter.
//
// OpenOrCreateReadWrite has an unavoidable race between its existence
// check on the data file and the opens that follow it: if another process
// creates or deletes the dataset's files in between, Open can fail. This is documented, not fixed,
// per the design notes.
func Open(fsys fs.FS, dataPath string, indexPath, lockPath string, mode OpenMode) (*Dataset, error) {
	paths, err := resolvePaths(dataPath, indexPath, lockPath)
	if err != nil {
		return nil, err
	}

	real, ok := fsys.(interface {
		Lock(string) (fs.Locker, error)
	})
	if !ok {
		return nil, newErr(CodeInvalidArgument, "fsys-does-not-support-locking")
	}

	lock, err := real.Lock(paths.Lock)
	if err != nil {
		if err == fs.ErrLocked {
			return nil, newErr(CodeDatasetLocked, "")
		}

		return nil, newIOErr("create-lock", err)
	}

	ds := &Dataset{
		fsys:      fsys,
		dataPath:  paths.Data,
		indexPath: paths.Index,
		lockPath:  paths.Lock,
		readOnly:  mode == OpenExistingReadOnly,
	}

	err = ds.openFiles(mode)
	if err != nil {
		_ = lock.Close()

		return nil, err
	}

	ds.lock = lock

	onDiskLen, err := ds.indexFileLength()
	if err != nil {
		_ = ds.closeFilesIgnoringErrors()
		_ = lock.Close()

		return nil, err
	}

	ds.cache = pageCache{
		file:            ds.indexFile,
		totalSize:       onDiskLen,
		totalSizeOnDisk: onDiskLen,
	}

	// Randomized so iterators created against a different dataset handle
	// are unlikely to collide after the shift; matches the reference
	// implementation's rand() << (8*sizeof(int)).
	ds.revision = uint64(rand.Uint32()) << 32

	return ds, nil
}

func (ds *Dataset) openFiles(mode OpenMode) error {
	var dataFlags, indexFlags int

	switch mode {
	case OpenExistingReadOnly:
		dataFlags = os.O_RDONLY
		indexFlags = os.O_RDONLY
	case OpenExistingReadWrite:
		dataFlags = os.O_RDWR
		indexFlags = os.O_RDWR
	case CreateNewReadWrite:
		dataFlags = os.O_RDWR | os.O_CREATE | os.O_EXCL
		indexFlags = os.O_RDWR | os.O_CREATE | os.O_EXCL
	case OpenOrCreateReadWrite:
		dataFlags = os.O_RDWR | os.O_CREATE
		indexFlags = os.O_RDWR
	default:
		return newErr(CodeInvalidArgument, "unknown-open-mode")
	}

	dataCreated := mode == CreateNewReadWrite

	if mode == OpenOrCreateReadWrite {
		existed, err := ds.fsys.Exists(ds.dataPath)
		if err != nil {
			return newIOErr("stat", err)
		}

		dataCreated = !existed
		if dataCreated {
			indexFlags = os.O_RDWR | os.O_CREATE | os.O_EXCL
		}
	}

	dataFile, err := ds.fsys.OpenFile(ds.dataPath, dataFlags, 0o644)
	if err != nil {
		return newIOErr("open-data", err)
	}

	indexFile, err := ds.fsys.OpenFile(ds.indexPath, indexFlags, 0o644)
	if err != nil {
		_ = dataFile.Close()

		if dataCreated {
			_ = ds.fsys.Remove(ds.dataPath)
		}

		return newIOErr("open-index", err)
	}

	ds.dataFile = dataFile
	ds.indexFile = indexFile

	return nil
}

func (ds *Dataset) indexFileLength() (uint64, error) {
	n, err := ds.indexFile.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, newIOErr("seek", err)
	}

	_, err = ds.indexFile.Seek(0, io.SeekStart)
	if err != nil {
		return 0, newIOErr("seek", err)
	}

	return uint64(n), nil
}

func (ds *Dataset) closeFilesIgnoringErrors() error {
	var err error

	if ds.dataFile != nil {
		err = ds.dataFile.Close()
	}

	if ds.indexFile != nil {
		closeErr := ds.indexFile.Close()
		if err == nil {
			err = closeErr
		}
	}

	return err
}

// Close flushes the index cache, closes both file handles, and removes
// the lock file, attempting all three steps regardless of earlier
// failures (close-always-runs discipline) and returning the first error
// encountered, if any.
func (ds *Dataset) Close() error {
	var firstErr error

	if err := ds.cache.flush(); err != nil && firstErr == nil {
		firstErr = err
	}

	if err := ds.closeFilesIgnoringErrors(); err != nil && firstErr == nil {
		firstErr = newIOErr("close", err)
	}

	if ds.lock != nil {
		if err := ds.lock.Close(); err != nil && firstErr == nil {
			firstErr = newIOErr("unlock", err)
		}
	}

	return firstErr
}

// NewIterator starts a fresh index iterator bound to the dataset's current
// revision.
func (ds *Dataset) NewIterator() *Iterator {
	return newIterator(ds)
}

// Revision returns the current index revision counter, primarily useful
// for tests asserting invalidation.
func (ds *Dataset) Revision() uint64 {
	return ds.revision
}

// IndexAdd adds range to the index, merging it with any entry it overlaps
// or touches. Idempotent: adding the same range twice yields the same
// decoded sequence as adding it once (though each commit still bumps the
// revision, invalidating existing iterators).
func (ds *Dataset) IndexAdd(r byterange.Range) error {
	return indexAdd(ds, r)
}

// IndexRemove removes range from the index, splitting or deleting
// whichever entries it overlaps.
func (ds *Dataset) IndexRemove(r byterange.Range) error {
	return indexRemove(ds, r)
}

// IndexFlush writes any dirty cache window back to the index file.
func (ds *Dataset) IndexFlush() error {
	return ds.cache.flush()
}

// IndexFindOffset implements index_find_offset: scans forward from start
// for the next offset matching mode, returning (offset, true) when found.
// When mode is FindData and nothing matches, (0, false) is returned; when
// mode is FindNoData, the scan always succeeds (the byte past the whole
// file is "absent" by construction).
func (ds *Dataset) IndexFindOffset(start uint64, mode FindMode) (uint64, bool, error) {
	it := ds.NewIterator()

	for !it.IsEOF() {
		entry, err := it.Next()
		if err != nil {
			return 0, false, err
		}

		if entry.Offset > start {
			if mode == FindData {
				return entry.Offset, true, nil
			}

			return start, true, nil
		}

		if byterange.Contains(entry, start) {
			if mode == FindData {
				return start, true, nil
			}

			return entry.Offset + entry.Length, true, nil
		}
	}

	if mode == FindNoData {
		return start, true, nil
	}

	return 0, false, nil
}

// IndexContains reports whether range is covered, in its entirety, by a
// single index entry. An empty range is considered contained iff its
// offset does not exceed the data file's current size.
func (ds *Dataset) IndexContains(r byterange.Range) (bool, error) {
	if r.Empty() {
		size, err := ds.DataGetSize()
		if err != nil {
			return false, err
		}

		return r.Offset <= size, nil
	}

	it := ds.NewIterator()

	for !it.IsEOF() {
		entry, err := it.Next()
		if err != nil {
			return false, err
		}

		if byterange.IsSubset(entry, r) {
			return true, nil
		}

		if entry.Offset >= r.Offset {
			break
		}
	}

	return false, nil
}

// IndexContainsAny reports whether range intersects any index entry.
func (ds *Dataset) IndexContainsAny(r byterange.Range) (bool, error) {
	it := ds.NewIterator()

	for !it.IsEOF() {
		entry, err := it.Next()
		if err != nil {
			return false, err
		}

		if _, ok := byterange.Intersect(entry, r); ok {
			return true, nil
		}

		if entry.Offset >= r.Offset+r.Length {
			break
		}
	}

	return false, nil
}

func (ds *Dataset) seekData(off uint64) error {
	_, err := ds.dataFile.Seek(int64(off), io.SeekStart)
	if err != nil {
		return newIOErr("seek", err)
	}

	return nil
}

// DataGetSize returns the data file's current length.
func (ds *Dataset) DataGetSize() (uint64, error) {
	n, err := ds.dataFile.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, newIOErr("seek", err)
	}

	return uint64(n), nil
}

// DataSetSize resizes the data file. If allowDestructive is false and any
// index entry intersects [newSize, 2^64), the call fails with
// ErrSizeTooSmall instead of truncating data out from under the index.
// If allowDestructive is true, those entries are removed from the index
// first (a no-op if there are none).
func (ds *Dataset) DataSetSize(newSize uint64, allowDestructive bool) error {
	err := errIsReadOnly(ds.readOnly)
	if err != nil {
		return err
	}

	relevant := byterange.MaxRangeFrom(newSize)

	if allowDestructive {
		err := ds.IndexRemove(relevant)
		if err != nil {
			return err
		}
	} else {
		destructive, err := ds.IndexContainsAny(relevant)
		if err != nil {
			return err
		}

		if destructive {
			return newErr(CodeSizeTooSmall, "")
		}
	}

	err = ds.dataFile.Truncate(int64(newSize))
	if err != nil {
		return newIOErr("truncate", err)
	}

	return nil
}

// DataRead reads into buf starting at offset, without consulting the
// index; it only fails with ErrReadOutOfBounds when offset exceeds the
// current file size. Returns the number of bytes actually read (OS-level
// short reads are accepted as-is).
func (ds *Dataset) DataRead(offset uint64, buf []byte) (int, error) {
	size, err := ds.DataGetSize()
	if err != nil {
		return 0, err
	}

	if offset > size {
		return 0, newErr(CodeReadOutOfBounds, "")
	}

	err = ds.seekData(offset)
	if err != nil {
		return 0, err
	}

	n, err := ds.dataFile.Read(buf)
	if err != nil && err != io.EOF {
		return n, newIOErr("read", err)
	}

	return n, nil
}

// DataReadRange reads exactly range (clamped to len(buf)) into buf, first
// verifying the range is fully present via IndexContains; absent ranges
// fail with ErrReadOutOfBounds (an empty range is handled by
// IndexContains's own empty-range rule).
func (ds *Dataset) DataReadRange(r byterange.Range, buf []byte) (int, error) {
	ok, err := ds.IndexContains(r)
	if err != nil {
		return 0, err
	}

	if !ok {
		return 0, newErr(CodeReadOutOfBounds, "")
	}

	if r.Length > uint64(len(buf)) {
		r.Length = uint64(len(buf))
	}

	total := uint64(0)

	for r.Length != 0 {
		n, err := ds.DataRead(r.Offset, buf[total:total+r.Length])
		if err != nil {
			return int(total), err
		}

		if n == 0 {
			break
		}

		r = byterange.RemoveLeft(r, uint64(n))
		total += uint64(n)
	}

	return int(total), nil
}

// DataWrite writes data[:min(len(data), range.Length)] at range.Offset,
// resolving any overlap with existing index entries per mode. It never
// touches the index; see DataAddRange for the composed operation that
// does.
func (ds *Dataset) DataWrite(r byterange.Range, data []byte, mode ConflictMode) error {
	err := errIsReadOnly(ds.readOnly)
	if err != nil {
		return err
	}

	if uint64(len(data)) < r.Length {
		r.Length = uint64(len(data))
	}

	it := ds.NewIterator()

	err = ds.seekData(r.Offset)
	if err != nil {
		return err
	}

	remaining := data[:r.Length]

	for r.Length != 0 {
		var entry byterange.Range

		haveEntry := false

		for !it.IsEOF() {
			peeked, err := it.Peek()
			if err != nil {
				return err
			}

			if overlap, ok := byterange.Intersect(peeked, r); ok {
				entry = overlap
				haveEntry = true

				break
			}

			err = it.Skip()
			if err != nil {
				return err
			}
		}

		safeLength := r.Length
		if haveEntry {
			safeLength = entry.Offset - r.Offset
		}

		err := ds.dataWriteAll(remaining[:safeLength])
		if err != nil {
			return err
		}

		r = byterange.RemoveLeft(r, safeLength)
		remaining = remaining[safeLength:]

		if !haveEntry {
			break
		}

		// entry is the part of the index entry that overlaps r, so
		// entry.Offset == r.Offset here (the prefix write above consumed
		// exactly the gap) and the conflicting segment ends within r.
		conflictLen := entry.Length
		if r.Length < conflictLen {
			conflictLen = r.Length
		}

		switch mode {
		case ConflictKeepOld:
			_, err := ds.dataFile.Seek(int64(conflictLen), io.SeekCurrent)
			if err != nil {
				return newIOErr("seek", err)
			}
		case ConflictError:
			existing := make([]byte, conflictLen)

			n, err := ds.readDataAll(existing)
			if err != nil {
				return err
			}

			if !bytesEqual(existing[:n], remaining[:minInt(n, len(remaining))]) {
				return newErr(CodeDataConflict, "")
			}
		case ConflictOverwrite:
			err := ds.dataWriteAll(remaining[:conflictLen])
			if err != nil {
				return err
			}
		}

		r = byterange.RemoveLeft(r, conflictLen)
		remaining = remaining[conflictLen:]
	}

	return nil
}

func (ds *Dataset) dataWriteAll(b []byte) error {
	written := 0
	for written < len(b) {
		n, err := ds.dataFile.Write(b[written:])
		written += n

		if err != nil {
			return newIOErr("write", err)
		}

		if n == 0 {
			return newIOErr("write", io.ErrShortWrite)
		}
	}

	return nil
}

// readDataAll loops reads until buf is full or EOF, returning the number
// of bytes actually read, per the design note that comparison during
// ERROR-mode conflicts must loop until all bytes are compared or a
// mismatch is found.
func (ds *Dataset) readDataAll(buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := ds.dataFile.Read(buf[total:])
		total += n

		if err != nil {
			if err == io.EOF {
				break
			}

			return total, newIOErr("read", err)
		}

		if n == 0 {
			break
		}
	}

	return total, nil
}

// DataAddRange composes DataWrite and IndexAdd: the index only gains the
// new entry if the data write fully succeeds, so a conflict (or any other
// failure) leaves the index untouched.
func (ds *Dataset) DataAddRange(r byterange.Range, data []byte, mode ConflictMode) error {
	err := ds.DataWrite(r, data, mode)
	if err != nil {
		return err
	}

	return ds.IndexAdd(r)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func minInt(a, b int) int {
	if a < b {
		return a
	}

	return b
}
