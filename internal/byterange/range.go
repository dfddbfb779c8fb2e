// Package byterange implements set operations over half-open 64-bit byte
// intervals. The functions are pure: no I/O, no allocation beyond the
// returned values.
package byterange

import "math"

// Range represents the half-open interval [Offset, Offset+Length).
// Length 0 denotes the empty set; Offset is still carried but irrelevant
// for set identity in that case.
type Range struct {
	Offset uint64
	Length uint64
}

// Empty reports whether r denotes the empty set.
func (r Range) Empty() bool {
	return r.Length == 0
}

// End returns the first offset past the range. Callers must not call End
// on a range whose Offset+Length would overflow; the engine never
// constructs such a range (see MaxRangeFrom).
func (r Range) End() uint64 {
	return r.Offset + r.Length
}

// MaxRangeFrom returns the largest representable range starting at o,
// i.e. {o, 2^64-1-o}.
func MaxRangeFrom(o uint64) Range {
	return Range{Offset: o, Length: math.MaxUint64 - o}
}

// extend is the shared core of Union and Outer: it grows (left, right) to
// cover both inputs, optionally failing when they neither overlap nor
// touch. Ported from the original range_extend.
func extend(offset, length *uint64, right, rLength uint64, mustOverlap bool) bool {
	left := *offset
	lLength := *length

	if left == right {
		*length = max(lLength, rLength)
		return true
	}

	if lLength == 0 || (rLength != 0 && left > right) {
		left, right = right, left
		lLength, rLength = rLength, lLength
	}

	if rLength == 0 {
		*offset = left
		*length = lLength

		return true
	}

	if mustOverlap && left+lLength < right {
		return false
	}

	*offset = left
	*length = max(right+rLength, left+lLength) - left

	return true
}

// Union returns the set-theoretic union of a and b. Defined only when the
// two ranges overlap or are adjacent (their closures touch); an empty
// operand is an identity. Returns (result, true) on success, (_, false)
// when a and b are both non-empty and neither overlapping nor adjacent.
func Union(a, b Range) (Range, bool) {
	out := a

	ok := extend(&out.Offset, &out.Length, b.Offset, b.Length, true)

	return out, ok
}

// Outer returns the smallest range containing both a and b. Never fails;
// an empty operand is an identity.
func Outer(a, b Range) Range {
	out := a

	extend(&out.Offset, &out.Length, b.Offset, b.Length, false)

	return out
}

// Intersect returns the intersection of a and b, and whether it is
// non-empty. An empty operand always yields an empty (absent) result.
func Intersect(a, b Range) (Range, bool) {
	smallOffset, smallLength := a.Offset, a.Length
	largeOffset, largeLength := b.Offset, b.Length
	smallEnd := smallOffset + smallLength
	largeEnd := largeOffset + largeLength

	if smallLength == 0 {
		return Range{}, false
	}

	if smallOffset < largeOffset {
		diff := largeOffset - smallOffset
		if diff >= smallLength {
			return Range{}, false
		}

		smallLength -= diff
		smallOffset = largeOffset
	}

	if smallEnd > largeEnd {
		diff := smallEnd - largeEnd
		if diff >= smallLength {
			return Range{}, false
		}

		smallLength -= diff
	}

	return Range{Offset: smallOffset, Length: smallLength}, true
}

// Overlaps reports whether a and b share at least one byte. Always false
// if either is empty.
func Overlaps(a, b Range) bool {
	if a.Empty() || b.Empty() {
		return false
	}

	return Contains(a, b.Offset) || Contains(a, b.Offset+b.Length-1) ||
		Contains(b, a.Offset) || Contains(b, a.Offset+a.Length-1)
}

// Contains reports whether offset lies within r. An empty range contains
// nothing.
func Contains(r Range, offset uint64) bool {
	return r.Offset <= offset && offset < r.Offset+r.Length
}

// IsSubset reports whether sub is entirely contained in super. An empty
// sub is always a subset, regardless of its offset.
func IsSubset(super, sub Range) bool {
	if sub.Empty() {
		return true
	}

	return Contains(super, sub.Offset) && Contains(super, sub.Offset+sub.Length-1)
}

// Remove computes the set difference left \ remove, which may leave up to
// two disjoint remaining pieces. The second piece has Length 0 when there
// is no right remainder. Removal by an empty range is a no-op (left
// unchanged, empty right).
func Remove(left, remove Range) (Range, Range) {
	overlap, ok := Intersect(remove, left)
	if !ok {
		return left, Range{Offset: left.Offset + left.Length, Length: 0}
	}

	oldLength := left.Length

	newLeft := Range{Offset: left.Offset, Length: overlap.Offset - left.Offset}
	right := Range{
		Offset: overlap.Offset + overlap.Length,
		Length: oldLength - newLeft.Length - overlap.Length,
	}

	return newLeft, right
}

// RemoveLeft advances r's offset by n and shrinks its length by the same
// amount. Precondition: n <= r.Length.
func RemoveLeft(r Range, n uint64) Range {
	return Range{Offset: r.Offset + n, Length: r.Length - n}
}
