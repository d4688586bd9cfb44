package store

import (
	"encoding/binary"
	"os"
	"testing"
	"unicode/utf16"

	"github.com/DSStoreKit/dsstore/pkg/codec"
)

// minimalReader re-parses a container image with its own independent
// walk of the published layout, so a regression in the writer cannot
// hide behind a matching regression in the reader.
type minimalReader struct {
	t     *testing.T
	data  []byte
	table []uint32
}

func (r *minimalReader) be32(off int) uint32 {
	r.t.Helper()
	if off+4 > len(r.data) {
		r.t.Fatalf("read of uint32 at %d past image end %d", off, len(r.data))
	}
	return binary.BigEndian.Uint32(r.data[off : off+4])
}

func (r *minimalReader) block(num uint32) []byte {
	r.t.Helper()
	if int(num) >= len(r.table) {
		r.t.Fatalf("block %d outside table of %d", num, len(r.table))
	}
	addr := r.table[num]
	off := int(addr &^ 0x1f)
	size := 1 << (addr & 0x1f)
	if 4+off+size > len(r.data) {
		r.t.Fatalf("block %d spans [%d,%d) past image end %d", num, off, off+size, len(r.data))
	}
	return r.data[4+off : 4+off+size]
}

// record decodes one record starting at off inside node, returning
// "filename/code" and the offset past the record.
func (r *minimalReader) record(node []byte, off int) (string, int) {
	r.t.Helper()
	nameUnits := int(binary.BigEndian.Uint32(node[off : off+4]))
	off += 4
	units := make([]uint16, nameUnits)
	for i := range units {
		units[i] = binary.BigEndian.Uint16(node[off : off+2])
		off += 2
	}
	name := string(utf16.Decode(units))
	code := string(node[off : off+4])
	tag := string(node[off+4 : off+8])
	off += 8
	switch tag {
	case "bool":
		off++
	case "long", "shor", "type":
		off += 4
	case "comp", "dutc":
		off += 8
	case "blob":
		off += 4 + int(binary.BigEndian.Uint32(node[off:off+4]))
	case "ustr":
		off += 4 + 2*int(binary.BigEndian.Uint32(node[off:off+4]))
	default:
		r.t.Fatalf("unknown type tag %q", tag)
	}
	return name + "/" + code, off
}

func (r *minimalReader) walk(blockNum uint32, out *[]string) {
	node := r.block(blockNum)
	p := binary.BigEndian.Uint32(node[0:4])
	count := int(binary.BigEndian.Uint32(node[4:8]))
	off := 8
	if p == 0 {
		for i := 0; i < count; i++ {
			var rec string
			rec, off = r.record(node, off)
			*out = append(*out, rec)
		}
		return
	}
	for i := 0; i < count; i++ {
		child := binary.BigEndian.Uint32(node[off : off+4])
		off += 4
		r.walk(child, out)
		var rec string
		rec, off = r.record(node, off)
		*out = append(*out, rec)
	}
	r.walk(p, out)
}

func TestWrittenImageReadableByMinimalReader(t *testing.T) {
	path := tempStorePath(t)
	s := Create(path, WithPageSize(256))

	want := []string{}
	names := []string{"Résumé.txt", "aardvark", "zebra.png", ".", "Ünïcødé"}
	for _, name := range names {
		if err := s.Set(name, "cmmt", codec.UString("about "+name)); err != nil {
			t.Fatalf("set: %v", err)
		}
		if err := s.Set(name, "lclr", codec.Long(3)); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	if err := s.Set(".", "BKGD", codec.Blob([]byte("DefB\x00\x00\x00\x00\x00\x00\x00\x00"))); err != nil {
		t.Fatalf("set: %v", err)
	}
	for _, e := range s.sorted() {
		want = append(want, e.Filename+"/"+e.Code)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	r := &minimalReader{t: t, data: data}

	if r.be32(0) != 1 {
		t.Fatalf("bad file prefix %#x", r.be32(0))
	}
	if string(data[4:8]) != "Bud1" {
		t.Fatalf("bad magic %q", data[4:8])
	}
	bkOff, bkLen := r.be32(8), r.be32(12)
	if r.be32(16) != bkOff {
		t.Fatalf("bookkeeping offset fields disagree: %d vs %d", bkOff, r.be32(16))
	}
	book := data[4+bkOff : 4+bkOff+bkLen]

	blockCount := int(binary.BigEndian.Uint32(book[0:4]))
	padded := (blockCount + 255) / 256 * 256
	r.table = make([]uint32, blockCount)
	for i := 0; i < blockCount; i++ {
		r.table[i] = binary.BigEndian.Uint32(book[8+4*i : 12+4*i])
	}
	pos := 8 + 4*padded

	tocCount := int(binary.BigEndian.Uint32(book[pos : pos+4]))
	pos += 4
	superBlock := uint32(0)
	found := false
	for i := 0; i < tocCount; i++ {
		n := int(book[pos])
		name := string(book[pos+1 : pos+1+n])
		num := binary.BigEndian.Uint32(book[pos+1+n : pos+5+n])
		pos += 5 + n
		if name == "DSDB" {
			superBlock, found = num, true
		}
	}
	if !found {
		t.Fatal("TOC has no DSDB entry")
	}

	sb := r.block(superBlock)
	root := binary.BigEndian.Uint32(sb[0:4])
	recordCount := binary.BigEndian.Uint32(sb[8:12])
	pageSize := binary.BigEndian.Uint32(sb[16:20])
	if pageSize != 256 {
		t.Errorf("superblock page size %d, want 256", pageSize)
	}
	if int(recordCount) != len(want) {
		t.Errorf("superblock record count %d, want %d", recordCount, len(want))
	}

	var got []string
	r.walk(root, &got)
	if len(got) != len(want) {
		t.Fatalf("minimal reader found %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d: got %s, want %s", i, got[i], want[i])
		}
	}
}
