package dataset

import (
	"github.com/holovault/rangestore/internal/byterange"
	"github.com/holovault/rangestore/internal/uleb128"
)

// fillHint is how far ahead an iterator asks the cache to ensure is
// present before decoding the next entry; decoding itself needs at most a
// couple of bytes, but a larger hint avoids refilling on every single
// entry when scanning sequentially.
const fillHint = 1024

// Iterator is a forward cursor over decoded index entries. It borrows the
// dataset and is bound to the revision captured at creation: once any
// index edit commits, the iterator is "dead" and every further operation
// on it fails with ErrDeadIndexIterator, regardless of whether the edit
// would have affected the entries this iterator would see.
type Iterator struct {
	ds          *Dataset
	rev         uint64
	indexOffset uint64
	lastDataEnd uint64
}

func newIterator(ds *Dataset) *Iterator {
	return &Iterator{ds: ds, rev: ds.revision}
}

// IsEOF reports whether the iterator has consumed the entire index.
func (it *Iterator) IsEOF() bool {
	return it.indexOffset == it.ds.cache.totalSize
}

func (it *Iterator) checkAlive() error {
	if it.rev != it.ds.revision {
		return newErr(CodeDeadIndexIterator, "")
	}

	return nil
}

// decode reads the entry at indexOffset without mutating iterator state,
// returning the entry and the index offset just past it.
func (it *Iterator) decode() (byterange.Range, uint64, error) {
	err := it.checkAlive()
	if err != nil {
		return byterange.Range{}, 0, err
	}

	err = it.ds.cache.fill(byterange.Range{Offset: it.indexOffset, Length: fillHint})
	if err != nil {
		return byterange.Range{}, 0, err
	}

	pos := it.indexOffset

	gap, consumed, decErr := decodeVarintAt(it.ds, pos)
	if decErr != nil {
		return byterange.Range{}, 0, decErr
	}

	pos += uint64(consumed)

	lengthMinus1, consumed, decErr := decodeVarintAt(it.ds, pos)
	if decErr != nil {
		return byterange.Range{}, 0, decErr
	}

	pos += uint64(consumed)

	var entry byterange.Range

	if it.lastDataEnd == 0 {
		entry.Offset = gap
	} else {
		entry.Offset = it.lastDataEnd + gap + 1
	}

	entry.Length = lengthMinus1 + 1

	return entry, pos, nil
}

// decodeVarintAt decodes one ULEB128 value at absolute index-file offset
// pos, which must already be covered by the cache window.
func decodeVarintAt(ds *Dataset, pos uint64) (uint64, int, error) {
	win := ds.cache.window()
	if pos >= win.Offset+win.Length {
		return 0, 0, newErr(CodeInvalidIndexFormat, "decode")
	}

	avail := ds.cache.bytesAt(byterange.Range{Offset: pos, Length: win.Offset + win.Length - pos})

	v, n, err := uleb128.Decode(avail)
	if err != nil {
		return 0, 0, newErr(CodeInvalidIndexFormat, "decode")
	}

	return v, n, nil
}

// Peek returns the next entry without advancing the iterator.
func (it *Iterator) Peek() (byterange.Range, error) {
	entry, _, err := it.decode()

	return entry, err
}

// Next returns the next entry and advances the iterator past it.
func (it *Iterator) Next() (byterange.Range, error) {
	entry, newOffset, err := it.decode()
	if err != nil {
		return byterange.Range{}, err
	}

	it.indexOffset = newOffset
	it.lastDataEnd = entry.Offset + entry.Length

	return entry, nil
}

// Skip advances past the next entry, discarding it.
func (it *Iterator) Skip() error {
	_, err := it.Next()

	return err
}
