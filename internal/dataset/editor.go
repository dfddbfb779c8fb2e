package dataset

import (
	"github.com/holovault/rangestore/internal/byterange"
	"github.com/holovault/rangestore/internal/uleb128"
)

// editorBufferCap bounds the in-memory buffer an editor session accumulates
// before committing. In practice an edit touches at most three adjacent
// entries (merged-left, merged/self, merged-right), each encoded as two
// varints. 40 bytes covers typical offsets and lengths but not the 60-byte
// worst case of six 10-byte varints; on overflow the editor fails with
// ErrIndexTooLarge instead of writing past the buffer.
const editorBufferCap = 40

// editor reassembles a contiguous run of index entries spanning
// [replaceStart, replaceStart+replaceLength) during index_add/index_remove
// (C6). It accumulates the replacement bytes in a small buffer and applies
// them to the cache only on Commit.
type editor struct {
	ds  *Dataset
	buf [editorBufferCap]byte
	n   int

	prevEntryEnd  uint64
	replaceStart  uint64
	replaceLength uint64
}

func newEditor(ds *Dataset) *editor {
	return &editor{ds: ds}
}

// setStart records where the replaced run begins in the index file and the
// logical data offset immediately before it, needed to delta-encode the
// first rewritten entry correctly.
func (e *editor) setStart(replaceStart, prevEntryEnd uint64) {
	e.replaceStart = replaceStart
	e.prevEntryEnd = prevEntryEnd
}

func (e *editor) setEnd(replaceEnd uint64) {
	e.replaceLength = replaceEnd - e.replaceStart
}

// writeRange appends the delta-encoded form of r to the editor's buffer.
// r must be non-empty.
func (e *editor) writeRange(r byterange.Range) error {
	isFirst := e.prevEntryEnd == 0

	relOffset := r.Offset - e.prevEntryEnd
	if !isFirst {
		relOffset--
	}

	err := e.appendVarint(relOffset)
	if err != nil {
		return err
	}

	err = e.appendVarint(r.Length - 1)
	if err != nil {
		return err
	}

	e.prevEntryEnd = r.Offset + r.Length

	return nil
}

func (e *editor) appendVarint(v uint64) error {
	encoded := uleb128.Encode(nil, v)
	if e.n+len(encoded) > len(e.buf) {
		return newErr(CodeIndexTooLarge, "editor-buffer-overflow")
	}

	copy(e.buf[e.n:], encoded)
	e.n += len(encoded)

	return nil
}

// commit reassembles the index: ensures the cache spans the replaced run
// through the old end of the index, shifts the tail in place, splices in
// the buffered bytes, resizes, marks the result dirty, and bumps the
// dataset revision exactly once, only on success.
func (e *editor) commit() error {
	cache := &e.ds.cache

	oldTotal := cache.totalSize

	err := cache.fill(byterange.Range{Offset: e.replaceStart, Length: oldTotal - e.replaceStart})
	if err != nil {
		return err
	}

	replaceEnd := e.replaceStart + e.replaceLength
	newTotal := oldTotal + uint64(e.n) - e.replaceLength

	if newTotal-cache.windowOffset > cacheCapacity {
		return newErr(CodeIndexTooLarge, "commit")
	}

	winOff := cache.windowOffset

	tailLen := oldTotal - replaceEnd
	if tailLen > 0 {
		dstStart := e.replaceStart + uint64(e.n) - winOff
		srcStart := replaceEnd - winOff
		copy(cache.buf[dstStart:dstStart+tailLen], cache.buf[srcStart:srcStart+tailLen])
	}

	destStart := e.replaceStart - winOff
	copy(cache.buf[destStart:destStart+uint64(e.n)], e.buf[:e.n])

	cache.resize(newTotal)
	cache.markDirty(byterange.Range{Offset: e.replaceStart, Length: newTotal - e.replaceStart})

	e.ds.revision++

	return nil
}

// skipEntriesLeftOf advances it past every entry strictly to the left of
// cut (i.e. entries whose end is before cut), returning once positioned at
// the first entry that could be affected, or at EOF.
func skipEntriesLeftOf(it *Iterator, cut uint64) error {
	for !it.IsEOF() {
		entry, err := it.Peek()
		if err != nil {
			return err
		}

		if entry.Offset+entry.Length >= cut {
			return nil
		}

		err = it.Skip()
		if err != nil {
			return err
		}
	}

	return nil
}

// indexAdd implements index_add: merges range with every entry it
// overlaps or touches, rewrites the affected run, and commits.
func indexAdd(ds *Dataset, r byterange.Range) error {
	err := errIsReadOnly(ds.readOnly)
	if err != nil {
		return err
	}

	it := newIterator(ds)

	err = skipEntriesLeftOf(it, r.Offset)
	if err != nil {
		return err
	}

	ed := newEditor(ds)
	ed.setStart(it.indexOffset, it.lastDataEnd)

	for !it.IsEOF() {
		entry, err := it.Peek()
		if err != nil {
			return err
		}

		merged, ok := byterange.Union(r, entry)
		if !ok {
			break
		}

		r = merged

		err = it.Skip()
		if err != nil {
			return err
		}
	}

	err = ed.writeRange(r)
	if err != nil {
		return err
	}

	if !it.IsEOF() {
		next, err := it.Next()
		if err != nil {
			return err
		}

		err = ed.writeRange(next)
		if err != nil {
			return err
		}
	}

	ed.setEnd(it.indexOffset)

	return ed.commit()
}

// indexRemove implements index_remove: splits or deletes every entry that
// overlaps range, rewrites the affected run, and commits.
func indexRemove(ds *Dataset, r byterange.Range) error {
	err := errIsReadOnly(ds.readOnly)
	if err != nil {
		return err
	}

	it := newIterator(ds)

	// Unlike an add, a removal does not affect an entry that merely
	// touches r on the left, so entries ending exactly at r.Offset are
	// skipped too.
	cut := r.Offset
	if cut < ^uint64(0) {
		cut++
	}

	err = skipEntriesLeftOf(it, cut)
	if err != nil {
		return err
	}

	ed := newEditor(ds)
	ed.setStart(it.indexOffset, it.lastDataEnd)

	for !it.IsEOF() {
		entry, err := it.Peek()
		if err != nil {
			return err
		}

		if !byterange.Overlaps(entry, r) {
			break
		}

		err = it.Skip()
		if err != nil {
			return err
		}

		left, right := byterange.Remove(entry, r)

		if !left.Empty() {
			err = ed.writeRange(left)
			if err != nil {
				return err
			}
		}

		if !right.Empty() {
			err = ed.writeRange(right)
			if err != nil {
				return err
			}
		}
	}

	if !it.IsEOF() {
		next, err := it.Next()
		if err != nil {
			return err
		}

		err = ed.writeRange(next)
		if err != nil {
			return err
		}
	}

	ed.setEnd(it.indexOffset)

	return ed.commit()
}
