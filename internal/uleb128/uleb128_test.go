package uleb128

import (
	"errors"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	// The index format bounds decodable magnitude to 2^56-1 (see
	// ErrOverflow); round-trip is exercised across that full range,
	// including its boundary.
	values := []uint64{
		0, 1, 2, 127, 128, 129, 16384, 1<<32 - 1, 1 << 55, 1<<56 - 1,
	}

	for _, v := range values {
		enc := Encode(nil, v)

		got, n, err := Decode(enc)
		if err != nil {
			t.Fatalf("Decode(Encode(%d)): %v", v, err)
		}

		if n != len(enc) {
			t.Fatalf("Decode consumed %d bytes, encoding was %d", n, len(enc))
		}

		if got != v {
			t.Fatalf("round trip %d -> %x -> %d", v, enc, got)
		}
	}
}

func TestEncode_KnownBytes(t *testing.T) {
	cases := []struct {
		v    uint64
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{300, []byte{0xac, 0x02}},
	}

	for _, c := range cases {
		got := Encode(nil, c.v)
		if string(got) != string(c.want) {
			t.Errorf("Encode(%d) = % x, want % x", c.v, got, c.want)
		}
	}
}

func TestDecode_Truncated(t *testing.T) {
	_, _, err := Decode([]byte{0x80, 0x80})
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
}

func TestDecode_OverflowsPastEightBytes(t *testing.T) {
	// Eight continuation bytes followed by a terminator exceeds the
	// 56-bit bound and must be rejected, not silently truncated.
	encoded := make([]byte, 0, 9)
	for range 8 {
		encoded = append(encoded, 0x80)
	}

	encoded = append(encoded, 0x01)

	_, _, err := Decode(encoded)
	if !errors.Is(err, ErrOverflow) {
		t.Fatalf("err = %v, want ErrOverflow", err)
	}
}

func TestDecode_EmptyInputIsTruncated(t *testing.T) {
	_, _, err := Decode(nil)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
}
