// Package codec implements the typed value and record wire format of
// the .DS_Store container: big-endian payloads tagged with 4-byte
// ASCII type codes, UTF-16BE strings, and Mac-epoch timestamps.
package codec

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/DSStoreKit/dsstore/pkg/common/errs"
)

// Kind enumerates the closed set of value variants the format defines.
type Kind int

const (
	// KindLong is a 4-byte big-endian signed integer ("long").
	KindLong Kind = iota
	// KindShor is encoded like a long but semantically 16-bit ("shor").
	// The full 32-bit payload is preserved on round trip.
	KindShor
	// KindBool is a single byte, 0x00 or 0x01 ("bool").
	KindBool
	// KindBlob is a uint32-length-prefixed byte sequence ("blob").
	KindBlob
	// KindType is a verbatim 4-byte tag ("type").
	KindType
	// KindUString is a uint32 code-unit count plus UTF-16BE data ("ustr").
	KindUString
	// KindComp is an 8-byte big-endian signed integer ("comp").
	KindComp
	// KindDUTC is an 8-byte timestamp in 1/65536 s ticks since the Mac
	// epoch ("dutc").
	KindDUTC
)

// Wire type tags. Exactly four ASCII bytes each.
const (
	TagLong    = "long"
	TagShor    = "shor"
	TagBool    = "bool"
	TagBlob    = "blob"
	TagType    = "type"
	TagUString = "ustr"
	TagComp    = "comp"
	TagDUTC    = "dutc"
)

// Value is a tagged union over the format's payload variants. The zero
// Value is a long with value 0.
type Value struct {
	kind Kind
	num  int64
	str  string
	data []byte
}

// Long returns a 4-byte integer value.
func Long(v int32) Value { return Value{kind: KindLong, num: int64(v)} }

// Shor returns a short value. The wire encoding is 4 bytes; the full
// precision of v is carried.
func Shor(v int32) Value { return Value{kind: KindShor, num: int64(v)} }

// Bool returns a boolean value.
func Bool(v bool) Value {
	n := int64(0)
	if v {
		n = 1
	}
	return Value{kind: KindBool, num: n}
}

// Blob returns a blob value holding a copy of data.
func Blob(data []byte) Value {
	return Value{kind: KindBlob, data: append([]byte(nil), data...)}
}

// Type returns a 4-byte tag value. The tag must be exactly four bytes.
func Type(tag string) (Value, error) {
	if len(tag) != 4 {
		return Value{}, errs.Logicf("type tag %q is not 4 bytes", tag)
	}
	return Value{kind: KindType, str: tag}, nil
}

// UString returns a UTF-16 string value.
func UString(s string) Value { return Value{kind: KindUString, str: s} }

// Comp returns an 8-byte integer value.
func Comp(v int64) Value { return Value{kind: KindComp, num: v} }

// DUTCTicks returns a timestamp value from raw Mac-epoch ticks.
func DUTCTicks(ticks int64) Value { return Value{kind: KindDUTC, num: ticks} }

// DUTCTime returns a timestamp value for the given time.
func DUTCTime(t time.Time) Value { return DUTCTicks(TimeToTicks(t)) }

// Kind returns the variant of the value.
func (v Value) Kind() Kind { return v.kind }

// TypeTag returns the wire type tag for the value's variant.
func (v Value) TypeTag() string {
	switch v.kind {
	case KindLong:
		return TagLong
	case KindShor:
		return TagShor
	case KindBool:
		return TagBool
	case KindBlob:
		return TagBlob
	case KindType:
		return TagType
	case KindUString:
		return TagUString
	case KindComp:
		return TagComp
	case KindDUTC:
		return TagDUTC
	}
	return "????"
}

// Int32 returns the integer payload of a long or shor value.
func (v Value) Int32() (int32, bool) {
	if v.kind == KindLong || v.kind == KindShor {
		return int32(v.num), true
	}
	return 0, false
}

// Int64 returns the integer payload of a comp or dutc value.
func (v Value) Int64() (int64, bool) {
	if v.kind == KindComp || v.kind == KindDUTC {
		return v.num, true
	}
	return 0, false
}

// Bool returns the payload of a boolean value.
func (v Value) Bool() (bool, bool) {
	if v.kind == KindBool {
		return v.num != 0, true
	}
	return false, false
}

// Blob returns the payload of a blob value. The returned slice must
// not be modified.
func (v Value) Blob() ([]byte, bool) {
	if v.kind == KindBlob {
		return v.data, true
	}
	return nil, false
}

// String returns the payload of a ustr or type value.
func (v Value) String() (string, bool) {
	if v.kind == KindUString || v.kind == KindType {
		return v.str, true
	}
	return "", false
}

// Time returns the wall-clock time of a dutc value.
func (v Value) Time() (time.Time, bool) {
	if v.kind == KindDUTC {
		return TicksToTime(v.num), true
	}
	return time.Time{}, false
}

// Equal reports whether two values have the same variant and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBlob:
		return bytes.Equal(v.data, o.data)
	case KindType, KindUString:
		return v.str == o.str
	default:
		return v.num == o.num
	}
}

// EncodedLen returns the number of bytes the payload occupies on the
// wire, excluding the 4-byte type tag.
func (v Value) EncodedLen() int {
	switch v.kind {
	case KindBool:
		return 1
	case KindLong, KindShor, KindType:
		return 4
	case KindComp, KindDUTC:
		return 8
	case KindBlob:
		return 4 + len(v.data)
	case KindUString:
		return 4 + len(encodeUTF16BE(v.str))
	}
	return 0
}

// AppendTo appends the wire payload (without the type tag) to dst.
func (v Value) AppendTo(dst []byte) []byte {
	switch v.kind {
	case KindBool:
		return append(dst, byte(v.num&1))
	case KindLong, KindShor:
		return binary.BigEndian.AppendUint32(dst, uint32(int32(v.num)))
	case KindType:
		return append(dst, v.str...)
	case KindComp, KindDUTC:
		return binary.BigEndian.AppendUint64(dst, uint64(v.num))
	case KindBlob:
		dst = binary.BigEndian.AppendUint32(dst, uint32(len(v.data)))
		return append(dst, v.data...)
	case KindUString:
		u := encodeUTF16BE(v.str)
		dst = binary.BigEndian.AppendUint32(dst, uint32(len(u)/2))
		return append(dst, u...)
	}
	return dst
}

// DecodeValue decodes one payload of the variant named by tag from the
// front of buf. It returns the value and the number of bytes consumed.
// Any read past len(buf) fails with a format error.
func DecodeValue(tag string, buf []byte) (Value, int, error) {
	switch tag {
	case TagBool:
		if len(buf) < 1 {
			return Value{}, 0, errs.Formatf("bool payload truncated")
		}
		switch buf[0] {
		case 0x00:
			return Bool(false), 1, nil
		case 0x01:
			return Bool(true), 1, nil
		}
		return Value{}, 0, errs.Formatf("bool payload has byte 0x%02x", buf[0])

	case TagLong, TagShor:
		if len(buf) < 4 {
			return Value{}, 0, errs.Formatf("%s payload truncated", tag)
		}
		n := int32(binary.BigEndian.Uint32(buf))
		if tag == TagShor {
			return Shor(n), 4, nil
		}
		return Long(n), 4, nil

	case TagType:
		if len(buf) < 4 {
			return Value{}, 0, errs.Formatf("type payload truncated")
		}
		return Value{kind: KindType, str: string(buf[:4])}, 4, nil

	case TagComp, TagDUTC:
		if len(buf) < 8 {
			return Value{}, 0, errs.Formatf("%s payload truncated", tag)
		}
		n := int64(binary.BigEndian.Uint64(buf))
		if tag == TagDUTC {
			return DUTCTicks(n), 8, nil
		}
		return Comp(n), 8, nil

	case TagBlob:
		if len(buf) < 4 {
			return Value{}, 0, errs.Formatf("blob length truncated")
		}
		n := int(binary.BigEndian.Uint32(buf))
		if len(buf)-4 < n {
			return Value{}, 0, errs.Formatf("blob payload truncated: want %d bytes, have %d", n, len(buf)-4)
		}
		return Blob(buf[4 : 4+n]), 4 + n, nil

	case TagUString:
		if len(buf) < 4 {
			return Value{}, 0, errs.Formatf("ustr length truncated")
		}
		units := int(binary.BigEndian.Uint32(buf))
		if len(buf)-4 < units*2 {
			return Value{}, 0, errs.Formatf("ustr payload truncated: want %d code units, have %d bytes", units, len(buf)-4)
		}
		s, err := decodeUTF16BE(buf[4 : 4+units*2])
		if err != nil {
			return Value{}, 0, err
		}
		return UString(s), 4 + units*2, nil
	}

	return Value{}, 0, errs.Formatf("unknown value type tag %q", tag)
}
