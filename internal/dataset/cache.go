package dataset

import (
	"io"

	"github.com/holovault/rangestore/internal/byterange"
	"github.com/holovault/rangestore/pkg/fs"
)

// cacheCapacity is the single write-back window's fixed size (C4): 64 KiB.
const cacheCapacity = 65536

// pageCache mirrors a contiguous window of the index file. Exactly one
// window exists at a time; an edit that needs to touch more bytes than fit
// in it fails with ErrIndexTooLarge rather than corrupting state (see the
// single-window cache limitation design note).
type pageCache struct {
	buf [cacheCapacity]byte

	// windowOffset is the index-file byte offset of buf[0]; windowLen is
	// how many leading bytes of buf currently hold valid data.
	windowOffset uint64
	windowLen    uint64

	dirty      bool
	dirtyRange byterange.Range

	file           fs.File
	curFileOffset  uint64
	haveFileOffset bool

	totalSize       uint64 // authoritative logical index length
	totalSizeOnDisk uint64 // length actually persisted
}

// window returns the range of the index file currently mirrored.
func (c *pageCache) window() byterange.Range {
	return byterange.Range{Offset: c.windowOffset, Length: c.windowLen}
}

// bytesAt returns a slice view of the cache covering abs (an absolute
// index-file range that must already be a subset of window()).
func (c *pageCache) bytesAt(abs byterange.Range) []byte {
	start := abs.Offset - c.windowOffset

	return c.buf[start : start+abs.Length]
}

func (c *pageCache) seekIndexFile(off uint64) error {
	if c.haveFileOffset && c.curFileOffset == off {
		return nil
	}

	_, err := c.file.Seek(int64(off), io.SeekStart)
	if err != nil {
		return newIOErr("seek", err)
	}

	c.curFileOffset = off
	c.haveFileOffset = true

	return nil
}

// readFromFile reads into dst starting at file offset off, looping on
// short reads until dst is full or EOF, and advances the tracked file
// position. It never errors on EOF; the caller inspects how many bytes it
// actually got.
func (c *pageCache) readFromFile(off uint64, dst []byte) (int, error) {
	err := c.seekIndexFile(off)
	if err != nil {
		return 0, err
	}

	total := 0

	for total < len(dst) {
		n, err := c.file.Read(dst[total:])
		total += n
		c.curFileOffset += uint64(n)

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

// fill ensures want (clamped to [0, totalSize)) is fully present in the
// window, flushing and repositioning the window first if necessary.
func (c *pageCache) fill(want byterange.Range) error {
	clamped, ok := byterange.Intersect(want, byterange.Range{Offset: 0, Length: c.totalSize})
	if !ok {
		return nil
	}

	if byterange.IsSubset(c.window(), clamped) {
		return nil
	}

	if clamped.Length > cacheCapacity {
		return newErr(CodeIndexTooLarge, "fill")
	}

	maxWindow := byterange.Range{Offset: c.windowOffset, Length: cacheCapacity}
	if !byterange.IsSubset(maxWindow, clamped) {
		err := c.flush()
		if err != nil {
			return err
		}

		c.windowOffset = clamped.Offset
		c.windowLen = 0
	}

	readAt := c.windowOffset + c.windowLen
	minLen := clamped.Offset + clamped.Length - readAt
	maxLen := cacheCapacity - c.windowLen

	n, err := c.readFromFile(readAt, c.buf[c.windowLen:c.windowLen+maxLen])
	if err != nil {
		return err
	}

	c.windowLen += uint64(n)

	if uint64(n) < minLen {
		return newErr(CodeInvalidIndexFormat, "fill")
	}

	return nil
}

// markDirty unions sub into the dirty range. Precondition: sub is a subset
// of the current window.
func (c *pageCache) markDirty(sub byterange.Range) {
	if c.dirty {
		c.dirtyRange = byterange.Outer(c.dirtyRange, sub)
	} else {
		c.dirty = true
		c.dirtyRange = sub
	}
}

// resize updates the authoritative logical index size and sets the cached
// window to end at the new size (growing or shrinking it); if the dirty
// range no longer intersects the window, the dirty flag is cleared.
func (c *pageCache) resize(newSize uint64) {
	c.totalSize = newSize
	c.windowLen = newSize - c.windowOffset

	if c.dirty {
		dr, ok := byterange.Intersect(c.dirtyRange, c.window())
		if !ok {
			c.dirty = false
		} else {
			c.dirtyRange = dr
		}
	}
}

// flush writes the dirty sub-range back to disk. Truncating the index
// file (on a logical shrink) always happens before the write, so a shrink
// never leaves stale tail bytes past the new logical size.
func (c *pageCache) flush() error {
	if !c.dirty {
		return nil
	}

	err := c.seekIndexFile(c.dirtyRange.Offset)
	if err != nil {
		return err
	}

	if c.totalSizeOnDisk != c.totalSize {
		err := c.file.Truncate(int64(c.totalSize))
		if err != nil {
			return newIOErr("truncate", err)
		}

		c.totalSizeOnDisk = c.totalSize
	}

	data := c.bytesAt(c.dirtyRange)

	written := 0
	for written < len(data) {
		n, err := c.file.Write(data[written:])
		written += n
		c.curFileOffset += uint64(n)

		if err != nil {
			return newIOErr("write", err)
		}

		if n == 0 {
			return newIOErr("write", io.ErrShortWrite)
		}
	}

	c.dirty = false

	return nil
}
