package codec

import (
	"bytes"
	"encoding/binary"
	"sort"
	"unicode"

	"github.com/DSStoreKit/dsstore/pkg/common/errs"
)

// Entry is one record of the container: a typed value keyed by
// (filename, field code). Identity is the pair; filename comparison is
// case-insensitive.
type Entry struct {
	Filename string
	Code     string // exactly 4 ASCII bytes, e.g. "Iloc"
	Value    Value
}

// NewEntry builds an entry, validating the field code.
func NewEntry(filename, code string, value Value) (Entry, error) {
	if err := CheckCode(code); err != nil {
		return Entry{}, err
	}
	return Entry{Filename: filename, Code: code, Value: value}, nil
}

// CheckCode validates that code is exactly four ASCII bytes.
func CheckCode(code string) error {
	if len(code) != 4 {
		return errs.Logicf("field code %q is not 4 bytes", code)
	}
	for i := 0; i < 4; i++ {
		if code[i] > 0x7f {
			return errs.Logicf("field code %q is not ASCII", code)
		}
	}
	return nil
}

// EncodedLen returns the full wire length of the entry.
func (e Entry) EncodedLen() int {
	return 4 + len(encodeUTF16BE(e.Filename)) + 4 + 4 + e.Value.EncodedLen()
}

// AppendTo appends the entry's wire form to dst.
func (e Entry) AppendTo(dst []byte) []byte {
	name := encodeUTF16BE(e.Filename)
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(name)/2))
	dst = append(dst, name...)
	dst = append(dst, e.Code...)
	dst = append(dst, e.Value.TypeTag()...)
	return e.Value.AppendTo(dst)
}

// DecodeEntry decodes one entry from the front of buf, returning the
// entry and the number of bytes consumed.
func DecodeEntry(buf []byte) (Entry, int, error) {
	if len(buf) < 4 {
		return Entry{}, 0, errs.Formatf("record filename length truncated")
	}
	units := int(binary.BigEndian.Uint32(buf))
	pos := 4
	if len(buf)-pos < units*2 {
		return Entry{}, 0, errs.Formatf("record filename truncated: want %d code units, have %d bytes", units, len(buf)-pos)
	}
	name, err := decodeUTF16BE(buf[pos : pos+units*2])
	if err != nil {
		return Entry{}, 0, err
	}
	pos += units * 2

	if len(buf)-pos < 8 {
		return Entry{}, 0, errs.Formatf("record tags truncated")
	}
	code := string(buf[pos : pos+4])
	tag := string(buf[pos+4 : pos+8])
	pos += 8

	value, n, err := DecodeValue(tag, buf[pos:])
	if err != nil {
		return Entry{}, 0, err
	}
	return Entry{Filename: name, Code: code, Value: value}, pos + n, nil
}

// FoldFilename returns the case-folded UTF-16 code units of name used
// for ordering and identity. Folding is per code unit with no
// normalization; surrogate halves pass through unchanged.
func FoldFilename(name string) []uint16 {
	units := utf16Units(name)
	for i, u := range units {
		if u >= 0xD800 && u <= 0xDFFF {
			continue
		}
		r := unicode.ToLower(rune(u))
		if r <= 0xFFFF {
			units[i] = uint16(r)
		}
	}
	return units
}

// FoldKey returns the folded filename as a comparable string, used as
// the name half of a record's identity key.
func FoldKey(name string) string {
	units := FoldFilename(name)
	out := make([]byte, len(units)*2)
	for i, u := range units {
		binary.BigEndian.PutUint16(out[i*2:], u)
	}
	return string(out)
}

// Compare orders two entries: case-insensitive ordinal comparison of
// the filenames' UTF-16 code units, then bytewise comparison of the
// field codes. A zero result means the entries share an identity.
func Compare(a, b Entry) int {
	fa, fb := FoldFilename(a.Filename), FoldFilename(b.Filename)
	n := len(fa)
	if len(fb) < n {
		n = len(fb)
	}
	for i := 0; i < n; i++ {
		if fa[i] != fb[i] {
			if fa[i] < fb[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(fa) < len(fb):
		return -1
	case len(fa) > len(fb):
		return 1
	}
	return bytes.Compare([]byte(a.Code), []byte(b.Code))
}

// SortEntries sorts entries in place into the canonical tree order.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return Compare(entries[i], entries[j]) < 0
	})
}
