package codec

import (
	"encoding/binary"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/DSStoreKit/dsstore/pkg/common/errs"
)

var (
	utf16beEncoder = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewEncoder()
	utf16beDecoder = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
)

// encodeUTF16BE converts a Go string to UTF-16BE bytes. The result
// always has even length.
func encodeUTF16BE(s string) []byte {
	out, _, err := transform.Bytes(utf16beEncoder, []byte(s))
	if err != nil {
		// The UTF-16 encoder replaces invalid UTF-8 rather than failing.
		panic("codec: utf16 encode: " + err.Error())
	}
	return out
}

// decodeUTF16BE converts UTF-16BE bytes to a Go string. Odd lengths
// and unpaired surrogates are format errors; the transformer would
// substitute U+FFFD silently, so pairing is checked up front.
func decodeUTF16BE(b []byte) (string, error) {
	if len(b)%2 != 0 {
		return "", errs.Formatf("utf16 data has odd byte count %d", len(b))
	}
	for i := 0; i < len(b); i += 2 {
		u := binary.BigEndian.Uint16(b[i:])
		switch {
		case u >= 0xD800 && u <= 0xDBFF:
			if i+2 >= len(b) {
				return "", errs.Formatf("utf16 data ends with unpaired high surrogate %#04x", u)
			}
			lo := binary.BigEndian.Uint16(b[i+2:])
			if lo < 0xDC00 || lo > 0xDFFF {
				return "", errs.Formatf("utf16 high surrogate %#04x followed by %#04x", u, lo)
			}
			i += 2
		case u >= 0xDC00 && u <= 0xDFFF:
			return "", errs.Formatf("utf16 data has unpaired low surrogate %#04x", u)
		}
	}
	out, _, err := transform.Bytes(utf16beDecoder, b)
	if err != nil {
		return "", errs.Formatf("utf16 decode: %v", err)
	}
	return string(out), nil
}

// utf16Units returns the UTF-16 code units of s.
func utf16Units(s string) []uint16 {
	b := encodeUTF16BE(s)
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = binary.BigEndian.Uint16(b[i*2:])
	}
	return units
}
