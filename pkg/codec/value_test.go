package codec

import (
	"bytes"
	"testing"
	"time"

	"github.com/DSStoreKit/dsstore/pkg/common/errs"
)

func TestValueRoundTrip(t *testing.T) {
	typeVal, err := Type("icnv")
	if err != nil {
		t.Fatalf("Type: %v", err)
	}

	values := []Value{
		Long(0),
		Long(-1),
		Long(1 << 30),
		Shor(12),
		Shor(40000 - 65536), // negative after wrap, still 32-bit carried
		Bool(true),
		Bool(false),
		Blob([]byte{0xDE, 0xAD, 0xBE, 0xEF}),
		Blob(nil),
		typeVal,
		UString("Hello, Wörld"),
		UString(""),
		Comp(1 << 40),
		DUTCTicks(136530720000000),
	}

	for _, v := range values {
		encoded := v.AppendTo(nil)
		if len(encoded) != v.EncodedLen() {
			t.Errorf("%s: EncodedLen()=%d but encoded %d bytes", v.TypeTag(), v.EncodedLen(), len(encoded))
		}

		decoded, n, err := DecodeValue(v.TypeTag(), encoded)
		if err != nil {
			t.Fatalf("%s: decode failed: %v", v.TypeTag(), err)
		}
		if n != len(encoded) {
			t.Errorf("%s: consumed %d of %d bytes", v.TypeTag(), n, len(encoded))
		}
		if !decoded.Equal(v) {
			t.Errorf("%s: round trip mismatch: %#v != %#v", v.TypeTag(), decoded, v)
		}
	}
}

func TestShorPreservesPrecision(t *testing.T) {
	// A shor carrying a 32-bit-range payload must not be truncated.
	v := Shor(1 << 20)
	encoded := v.AppendTo(nil)
	if len(encoded) != 4 {
		t.Fatalf("shor encoded to %d bytes, want 4", len(encoded))
	}
	decoded, _, err := DecodeValue(TagShor, encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	n, ok := decoded.Int32()
	if !ok || n != 1<<20 {
		t.Errorf("shor value = %d, want %d", n, 1<<20)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		tag  string
		buf  []byte
	}{
		{"bool empty", TagBool, nil},
		{"bool bad byte", TagBool, []byte{0x02}},
		{"bool 0xff", TagBool, []byte{0xff}},
		{"long short", TagLong, []byte{1, 2, 3}},
		{"shor short", TagShor, []byte{1}},
		{"type short", TagType, []byte{'i', 'c'}},
		{"comp short", TagComp, []byte{1, 2, 3, 4, 5, 6, 7}},
		{"dutc empty", TagDUTC, nil},
		{"blob no length", TagBlob, []byte{0, 0}},
		{"blob truncated", TagBlob, []byte{0, 0, 0, 9, 1, 2}},
		{"blob huge length", TagBlob, []byte{0xff, 0xff, 0xff, 0xff, 1}},
		{"ustr no length", TagUString, []byte{0}},
		{"ustr truncated", TagUString, []byte{0, 0, 0, 4, 0, 'a'}},
		{"ustr lone high surrogate", TagUString, []byte{0, 0, 0, 1, 0xD8, 0x00}},
		{"ustr lone low surrogate", TagUString, []byte{0, 0, 0, 1, 0xDC, 0x00}},
		{"ustr high then non-low", TagUString, []byte{0, 0, 0, 2, 0xD8, 0x00, 0x00, 0x41}},
		{"unknown tag", "wxyz", []byte{0, 0, 0, 0}},
	}

	for _, tt := range tests {
		_, _, err := DecodeValue(tt.tag, tt.buf)
		if err == nil {
			t.Errorf("%s: expected error, got none", tt.name)
			continue
		}
		if !errs.IsFormat(err) {
			t.Errorf("%s: error is not a format error: %v", tt.name, err)
		}
	}
}

func TestSurrogatePairAccepted(t *testing.T) {
	// U+1F600 as a proper surrogate pair.
	buf := []byte{0, 0, 0, 2, 0xD8, 0x3D, 0xDE, 0x00}
	v, n, err := DecodeValue(TagUString, buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != len(buf) {
		t.Errorf("consumed %d of %d bytes", n, len(buf))
	}
	s, _ := v.String()
	if s != "\U0001F600" {
		t.Errorf("decoded %q, want %q", s, "\U0001F600")
	}
}

func TestTypeTagVerbatim(t *testing.T) {
	// Tags are copied as raw bytes, printable or not.
	raw := []byte{0x00, 0xfe, 'a', 'b'}
	v, _, err := DecodeValue(TagType, raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	encoded := v.AppendTo(nil)
	if !bytes.Equal(encoded, raw) {
		t.Errorf("type payload not verbatim: %x != %x", encoded, raw)
	}
}

func TestTypeConstructorRejectsBadLength(t *testing.T) {
	if _, err := Type("abc"); !errs.IsLogic(err) {
		t.Errorf("expected logic error for 3-byte tag, got %v", err)
	}
	if _, err := Type("abcde"); !errs.IsLogic(err) {
		t.Errorf("expected logic error for 5-byte tag, got %v", err)
	}
}

func TestTimestampConversion(t *testing.T) {
	// The Mac epoch itself is tick zero.
	if got := TicksToTime(0); !got.Equal(time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("tick zero = %v, want 1904-01-01", got)
	}

	// Unix epoch.
	unixEpoch := time.Unix(0, 0).UTC()
	if got := TimeToTicks(unixEpoch); got != 2082844800*65536 {
		t.Errorf("unix epoch ticks = %d, want %d", got, int64(2082844800)*65536)
	}

	// Round trip at tick resolution.
	when := time.Date(2024, 6, 15, 12, 30, 45, 0, time.UTC)
	back := TicksToTime(TimeToTicks(when))
	if !back.Equal(when) {
		t.Errorf("round trip: %v != %v", back, when)
	}

	// Sub-second fractions survive to within one tick.
	frac := time.Date(2024, 6, 15, 12, 30, 45, 500000000, time.UTC)
	back = TicksToTime(TimeToTicks(frac))
	if d := back.Sub(frac); d < -time.Second/65536 || d > time.Second/65536 {
		t.Errorf("fractional round trip off by %v", d)
	}
}
