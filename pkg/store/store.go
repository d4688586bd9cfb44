// Package store is the facade over the .DS_Store container engine. A
// Store materializes a file's full record set in memory, serves typed
// accessors keyed by (filename, field code), and rewrites the whole
// container on save via a fresh bulk-built tree.
package store

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/DSStoreKit/dsstore/pkg/btree"
	"github.com/DSStoreKit/dsstore/pkg/buddy"
	"github.com/DSStoreKit/dsstore/pkg/codec"
	"github.com/DSStoreKit/dsstore/pkg/common/errs"
	"github.com/DSStoreKit/dsstore/pkg/common/log"
)

const (
	// DefaultPageSize is the vendor's node page size.
	DefaultPageSize = 0x1000

	// tocName is the table-of-contents key of the tree superblock.
	tocName = "DSDB"

	// superblockLen covers the five uint32 fields of the superblock.
	superblockLen = 20
)

// entryKey is the identity of a record: case-folded filename plus
// field code.
type entryKey struct {
	folded string
	code   string
}

func keyOf(filename, code string) entryKey {
	return entryKey{folded: codec.FoldKey(filename), code: code}
}

// Store holds one container's entry set. A Store is owned by a single
// caller; concurrent use requires external serialization.
type Store struct {
	path        string
	entries     map[entryKey]codec.Entry
	dirty       bool
	fingerprint uint64
	pageSize    uint32
	reserved    [16]byte
	logger      log.Logger
}

// Option configures a Store at open/create time.
type Option func(*Store)

// WithPageSize overrides the tree page size used on save.
func WithPageSize(pageSize uint32) Option {
	return func(s *Store) { s.pageSize = pageSize }
}

// WithLogger routes the store's diagnostics to the given logger.
func WithLogger(logger log.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

func newStore(path string, opts []Option) *Store {
	s := &Store{
		path:     path,
		entries:  make(map[entryKey]codec.Entry),
		pageSize: DefaultPageSize,
		logger:   log.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithField("path", path)
	return s
}

// Create returns an empty store bound to path. Nothing is written
// until Save.
func Create(path string, opts ...Option) *Store {
	s := newStore(path, opts)
	s.dirty = true
	return s
}

// Open reads and fully materializes the container at path. Malformed
// input fails with a format error and no Store is returned.
func Open(path string, opts ...Option) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	s := newStore(path, opts)
	if err := s.load(data); err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	s.logger.Debug("opened store with %d records", len(s.entries))
	return s, nil
}

// load parses a container image into the entry set.
func (s *Store) load(data []byte) error {
	alloc, err := buddy.OpenAllocator(data)
	if err != nil {
		return err
	}
	s.reserved = alloc.Reserved()

	superBlock, ok := alloc.TOC(tocName)
	if !ok {
		return errs.Formatf("container has no %s entry", tocName)
	}
	raw, err := alloc.ReadBlock(superBlock)
	if err != nil {
		return err
	}
	if len(raw) < superblockLen {
		return errs.Formatf("superblock of %d bytes truncated", len(raw))
	}
	rootBlock := binary.BigEndian.Uint32(raw[0:4])
	height := binary.BigEndian.Uint32(raw[4:8])
	recordCount := binary.BigEndian.Uint32(raw[8:12])
	nodeCount := binary.BigEndian.Uint32(raw[12:16])
	pageSize := binary.BigEndian.Uint32(raw[16:20])
	if pageSize == 0 {
		return errs.Formatf("superblock page size is zero")
	}
	if nodeCount == 0 {
		return errs.Formatf("superblock node count is zero")
	}
	s.pageSize = pageSize

	entries, err := btree.ReadAll(btree.NewWalker(alloc, rootBlock, height))
	if err != nil {
		return err
	}
	if uint32(len(entries)) != recordCount {
		return errs.Formatf("tree yields %d records, superblock declares %d", len(entries), recordCount)
	}

	for _, e := range entries {
		k := keyOf(e.Filename, e.Code)
		if _, dup := s.entries[k]; dup {
			return errs.Formatf("duplicate record %s/%s", e.Filename, e.Code)
		}
		s.entries[k] = e
	}
	s.fingerprint = fingerprint(s.sorted())
	s.dirty = false
	return nil
}

// Path returns the file path the store is bound to.
func (s *Store) Path() string { return s.path }

// Len returns the number of records.
func (s *Store) Len() int { return len(s.entries) }

// Dirty reports whether the entry set has been mutated since the last
// load or save.
func (s *Store) Dirty() bool { return s.dirty }

// PageSize returns the tree page size used on save.
func (s *Store) PageSize() uint32 { return s.pageSize }

// Get returns the value stored for (filename, code).
func (s *Store) Get(filename, code string) (codec.Value, bool) {
	e, ok := s.entries[keyOf(filename, code)]
	if !ok {
		return codec.Value{}, false
	}
	return e.Value, true
}

// Set stores a value for (filename, code), replacing any prior value
// under the same identity.
func (s *Store) Set(filename, code string, value codec.Value) error {
	e, err := codec.NewEntry(filename, code, value)
	if err != nil {
		return err
	}
	s.entries[keyOf(filename, code)] = e
	s.dirty = true
	return nil
}

// Remove deletes the record for (filename, code), reporting whether it
// existed.
func (s *Store) Remove(filename, code string) bool {
	k := keyOf(filename, code)
	if _, ok := s.entries[k]; !ok {
		return false
	}
	delete(s.entries, k)
	s.dirty = true
	return true
}

// RemoveAll deletes every record for filename and returns the count.
func (s *Store) RemoveAll(filename string) int {
	folded := codec.FoldKey(filename)
	n := 0
	for k := range s.entries {
		if k.folded == folded {
			delete(s.entries, k)
			n++
		}
	}
	if n > 0 {
		s.dirty = true
	}
	return n
}

// Filenames returns the distinct filenames with records, sorted.
func (s *Store) Filenames() []string {
	seen := make(map[string]string)
	for _, e := range s.entries {
		if _, ok := seen[codec.FoldKey(e.Filename)]; !ok {
			seen[codec.FoldKey(e.Filename)] = e.Filename
		}
	}
	names := make([]string, 0, len(seen))
	for _, name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Codes returns the field codes present for filename, sorted.
func (s *Store) Codes(filename string) []string {
	folded := codec.FoldKey(filename)
	var codes []string
	for k := range s.entries {
		if k.folded == folded {
			codes = append(codes, k.code)
		}
	}
	sort.Strings(codes)
	return codes
}

// sorted returns the entry set in canonical tree order.
func (s *Store) sorted() []codec.Entry {
	entries := make([]codec.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	codec.SortEntries(entries)
	return entries
}

// fingerprint hashes the canonical encoding of a sorted entry set.
func fingerprint(entries []codec.Entry) uint64 {
	h := xxhash.New()
	var scratch []byte
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(entries)))
	h.Write(n[:])
	for _, e := range entries {
		scratch = e.AppendTo(scratch[:0])
		h.Write(scratch)
	}
	return h.Sum64()
}

// Save rewrites the container at the store's path. It is a no-op when
// the entry set content is unchanged since load and the file exists.
func (s *Store) Save() error {
	sorted := s.sorted()
	fp := fingerprint(sorted)
	if !s.dirty || fp == s.fingerprint {
		if _, err := os.Stat(s.path); err == nil {
			s.dirty = false
			s.fingerprint = fp
			s.logger.Debug("save skipped, content unchanged")
			return nil
		}
	}
	if err := s.writeImage(sorted, s.path); err != nil {
		return err
	}
	s.fingerprint = fp
	s.dirty = false
	return nil
}

// SaveTo writes the container to a different path, leaving the store's
// own binding and dirty state untouched.
func (s *Store) SaveTo(path string) error {
	return s.writeImage(s.sorted(), path)
}

// writeImage builds the complete new container in memory and commits
// it with a write-to-temp-then-rename, so the on-disk file is always
// either the old or the new valid image.
func (s *Store) writeImage(sorted []codec.Entry, path string) error {
	alloc := buddy.NewAllocator()
	alloc.SetReserved(s.reserved)

	superBlock, err := alloc.Allocate(superblockLen)
	if err != nil {
		return err
	}
	res, err := btree.Build(alloc, sorted, s.pageSize)
	if err != nil {
		return err
	}

	var sb [superblockLen]byte
	binary.BigEndian.PutUint32(sb[0:4], res.RootBlock)
	binary.BigEndian.PutUint32(sb[4:8], res.Height)
	binary.BigEndian.PutUint32(sb[8:12], uint32(len(sorted)))
	binary.BigEndian.PutUint32(sb[12:16], res.NodeCount)
	binary.BigEndian.PutUint32(sb[16:20], s.pageSize)
	if err := alloc.WriteBlock(superBlock, sb[:]); err != nil {
		return err
	}
	if err := alloc.SetTOC(tocName, superBlock); err != nil {
		return err
	}

	image, err := alloc.Flush()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.tmp", filepath.Base(path)))
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmpPath, err)
	}
	if _, err := f.Write(image); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync %s: %w", tmpPath, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	s.logger.Debug("saved %d records in %d nodes, height %d", len(sorted), res.NodeCount, res.Height)
	return nil
}
