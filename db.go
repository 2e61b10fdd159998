// Package btreedb is an embedded key-value store made of two files: a
// B-tree index of fixed-size node blocks (name.idx) and an append-only log
// of value records (name.db).
package btreedb

import (
	"io/fs"
	"os"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/weixu8/btree-db/internal/base"
	"github.com/weixu8/btree-db/internal/cache"
	"github.com/weixu8/btree-db/internal/pager"
	"github.com/weixu8/btree-db/internal/storage"
	"github.com/weixu8/btree-db/internal/valuelog"
)

const (
	// IndexExt is appended to the store name to form the index file path.
	IndexExt = ".idx"

	// DataExt is appended to the store name to form the data file path.
	DataExt = ".db"

	// MaxKeySize is the maximum length of a key, in bytes.
	MaxKeySize = base.KeyMaxLength

	// MaxValueSize is the maximum length of a value, in bytes.
	MaxValueSize = valuelog.MaxValueSize
)

// Store is an open index/data file pair. All methods are serialized by an
// internal mutex; a store is meant to have a single owner.
type Store struct {
	mu     sync.Mutex
	name   string
	opts   Options
	logger Logger
	closed bool

	index  *storage.File
	data   *storage.File
	pager  *pager.Pager
	cache  *cache.Cache
	values *valuelog.Log

	root  uint32 // 0 = empty tree
	depth int

	// Stats
	puts       atomic.Uint64
	duplicates atomic.Uint64
	gets       atomic.Uint64
	deletes    atomic.Uint64
	splits     atomic.Uint64
	merges     atomic.Uint64
	rotations  atomic.Uint64
}

// Open opens the store called name, creating name.idx and name.db when the
// index file does not exist yet. An existing store is validated before use.
func Open(name string, options ...Option) (*Store, error) {
	opts := DefaultOptions()
	for _, opt := range options {
		opt(&opts)
	}

	s := &Store{
		name:   name,
		opts:   opts,
		logger: opts.logger,
	}

	index, err := storage.Open(name+IndexExt, os.O_RDWR|os.O_CREATE|os.O_EXCL)
	switch {
	case err == nil:
		s.index = index
		if err := s.create(); err != nil {
			_ = s.closeFiles()
			_ = os.Remove(name + IndexExt)
			_ = os.Remove(name + DataExt)
			return nil, err
		}
	case errors.Is(err, fs.ErrExist):
		if err := s.load(); err != nil {
			_ = s.closeFiles()
			return nil, err
		}
	default:
		return nil, err
	}

	s.logger.Info("store opened",
		"name", name,
		"root", s.root,
		"depth", s.depth,
		"index_end", s.pager.Stats().IndexCursor,
		"data_end", s.pager.Stats().DataCursor,
	)
	return s, nil
}

// create initializes a fresh store: an empty superblock and the data magic.
func (s *Store) create() error {
	if err := s.index.Lock(); err != nil {
		return err
	}

	data, err := storage.Open(s.name+DataExt, os.O_RDWR|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return err
	}
	s.data = data

	var header [base.DataHeaderSize]byte
	base.EncodeDataHeader(header[:])
	if err := s.data.WriteAt(header[:], 0); err != nil {
		return errors.Wrap(err, "write data header")
	}

	if err := s.setup(0, base.SuperblockSize, base.DataHeaderSize); err != nil {
		return err
	}
	if err := s.writeSuperblock(); err != nil {
		return err
	}
	if s.opts.syncEveryPut {
		if err := s.sync(); err != nil {
			return err
		}
	}

	s.logger.Info("store created", "index", s.index.Path(), "data", s.data.Path())
	return nil
}

// load opens and validates an existing store.
func (s *Store) load() error {
	index, err := storage.Open(s.name+IndexExt, os.O_RDWR)
	if err != nil {
		return err
	}
	s.index = index
	if err := s.index.Lock(); err != nil {
		return err
	}

	data, err := storage.Open(s.name+DataExt, os.O_RDWR)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errors.Wrapf(ErrCorruption, "data file %s missing", s.name+DataExt)
		}
		return err
	}
	s.data = data

	var sbuf [base.SuperblockSize]byte
	if err := s.index.ReadAt(sbuf[:], 0); err != nil {
		return errors.Wrap(err, "read superblock")
	}
	var sb base.Superblock
	if err := sb.Decode(sbuf[:]); err != nil {
		s.logger.Error("superblock rejected", "index", s.index.Path(), "error", err)
		return errors.Wrapf(err, "superblock of %s", s.index.Path())
	}

	var header [base.DataHeaderSize]byte
	if err := s.data.ReadAt(header[:], 0); err != nil {
		return errors.Wrap(err, "read data header")
	}
	if err := base.ValidateDataHeader(header[:]); err != nil {
		s.logger.Error("data file rejected", "data", s.data.Path(), "error", err)
		return errors.Wrapf(err, "data header of %s", s.data.Path())
	}

	indexEnd, err := s.index.Size()
	if err != nil {
		return err
	}
	dataEnd, err := s.data.Size()
	if err != nil {
		return err
	}

	if !validNodeOffset(sb.Root, indexEnd, true) {
		s.logger.Error("root rejected", "root", sb.Root, "index_end", indexEnd)
		return errors.Wrapf(ErrInvalidRoot, "root %d, index length %d", sb.Root, indexEnd)
	}
	if sb.FreeTop != 0 && !validNodeOffset(sb.FreeTop, indexEnd, false) {
		return errors.Wrapf(ErrFreeListCorrupt, "free list head %d, index length %d", sb.FreeTop, indexEnd)
	}

	if err := s.setup(sb.FreeTop, indexEnd, dataEnd); err != nil {
		return err
	}
	if err := s.pager.LoadFreeList(indexEnd); err != nil {
		return err
	}

	s.root = sb.Root
	if err := s.measureDepth(); err != nil {
		s.logger.Error("root rejected", "root", sb.Root, "error", err)
		return errors.Wrapf(err, "root %d", sb.Root)
	}

	if s.opts.verifyOnOpen {
		if err := s.check(); err != nil {
			s.logger.Error("structural check failed", "index", s.index.Path(), "error", err)
			return err
		}
	}
	return nil
}

// setup builds the pager, cache and value log once both files are open.
func (s *Store) setup(freeTop uint32, indexEnd, dataEnd int64) error {
	s.pager = pager.New(s.index, freeTop, indexEnd, dataEnd, s.opts.nodeReuse)
	c, err := cache.New(s.index, s.opts.cacheSlots, s.opts.victimPool)
	if err != nil {
		return err
	}
	s.cache = c
	s.values = valuelog.New(s.data, s.pager)
	return nil
}

// validNodeOffset reports whether offset can address a whole node chunk in an
// index of indexEnd bytes. Zero is accepted only when allowZero is set.
func validNodeOffset(offset uint32, indexEnd int64, allowZero bool) bool {
	if offset == 0 {
		return allowZero
	}
	return offset%pager.NodeChunkSize == 0 &&
		int64(offset)+base.NodeSize <= indexEnd
}

// measureDepth walks the left spine from the root. Decoding each node on
// the way also proves the root is readable.
func (s *Store) measureDepth() error {
	depth := 0
	offset := s.root
	for offset != 0 {
		node, err := s.cache.Acquire(offset)
		if err != nil {
			s.cache.Abort()
			return err
		}
		depth++
		next := node.Child(0)
		s.cache.Release(node, offset)
		if depth > maxDepth {
			return errors.Wrap(ErrCorruption, "left spine does not end")
		}
		offset = next
	}
	s.depth = depth
	return nil
}

// maxDepth bounds tree walks on a damaged index. A tree of this depth would
// hold more keys than 32-bit node offsets can address.
const maxDepth = 32

func (s *Store) writeSuperblock() error {
	var buf [base.SuperblockSize]byte
	sb := base.Superblock{Root: s.root, FreeTop: s.pager.FreeTop()}
	if err := sb.Encode(buf[:]); err != nil {
		return err
	}
	if err := s.index.WriteAt(buf[:], 0); err != nil {
		return errors.Wrap(err, "write superblock")
	}
	return nil
}

func (s *Store) sync() error {
	if err := s.data.Sync(); err != nil {
		return errors.Wrap(err, "sync data file")
	}
	if err := s.index.Sync(); err != nil {
		return errors.Wrap(err, "sync index file")
	}
	return nil
}

// commit persists the root after a mutation. With WithSyncEveryPut the
// nodes and values reach disk before the superblock that points at them.
func (s *Store) commit() error {
	if s.opts.syncEveryPut {
		if err := s.sync(); err != nil {
			return err
		}
	}
	if err := s.writeSuperblock(); err != nil {
		return err
	}
	if s.opts.syncEveryPut {
		if err := s.index.Sync(); err != nil {
			return errors.Wrap(err, "sync superblock")
		}
	}
	return nil
}

// Put stores value under key. If key is already present the stored value is
// kept, nothing is written and Put returns nil.
func (s *Store) Put(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	k, err := base.MakeKey(key)
	if err != nil {
		return err
	}
	if uint64(len(value)) > MaxValueSize {
		return ErrValueTooLarge
	}

	ins := insertion{key: k, value: value}
	if err := s.insertTopLevel(&ins); err != nil {
		s.cache.Abort()
		return err
	}
	if !ins.created {
		s.duplicates.Add(1)
		return nil
	}
	s.puts.Add(1)
	return s.commit()
}

// Get returns the value stored under key. A missing key is reported with
// found == false and a nil error.
func (s *Store) Get(key []byte) (value []byte, found bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, false, ErrStoreClosed
	}
	k, err := base.MakeKey(key)
	if err != nil {
		return nil, false, err
	}
	s.gets.Add(1)

	offset, found, err := s.lookup(&k)
	if err != nil {
		s.cache.Abort()
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}

	value, err = s.values.Read(offset)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Delete removes key and reports whether it was present. The value record
// stays in the data file.
func (s *Store) Delete(key []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrStoreClosed
	}
	k, err := base.MakeKey(key)
	if err != nil {
		return false, err
	}
	if s.root == 0 {
		return false, nil
	}

	found, err := s.deleteTopLevel(&k)
	if err != nil {
		s.cache.Abort()
		return false, err
	}
	if !found {
		return false, nil
	}
	s.deletes.Add(1)
	return true, s.commit()
}

// ForEach calls fn for every key in ascending order with its value. Iteration
// stops at the first error returned by fn, which ForEach returns. fn must not
// call back into the store.
func (s *Store) ForEach(fn func(key, value []byte) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if err := s.walk(s.root, fn); err != nil {
		s.cache.Abort()
		return err
	}
	return nil
}

// Depth returns the number of node levels, 0 for an empty store.
func (s *Store) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.depth
}

// Check verifies the whole tree: key order within and across nodes, node
// occupancy, uniform leaf depth and readable value records.
func (s *Store) Check() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	return s.check()
}

func (s *Store) check() error {
	if err := s.checkTree(); err != nil {
		s.cache.Abort()
		return err
	}
	return nil
}

// Close releases the lock and closes both files. Nothing is flushed: every
// completed Put or Delete has already been written.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	err := s.closeFiles()
	s.logger.Info("store closed",
		"name", s.name,
		"puts", s.puts.Load(),
		"deletes", s.deletes.Load(),
		"splits", s.splits.Load(),
	)
	return err
}

func (s *Store) closeFiles() error {
	if s.cache != nil {
		s.cache.Close()
	}

	var firstErr error
	if s.data != nil {
		if err := s.data.Close(); err != nil {
			firstErr = err
		}
	}
	if s.index != nil {
		if err := s.index.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Stats holds store statistics
type Stats struct {
	Puts       uint64 // values written
	Duplicates uint64 // Puts ignored because the key existed
	Gets       uint64
	Deletes    uint64
	Splits     uint64
	Merges     uint64
	Rotations  uint64
	Depth      int

	CacheHits       uint64
	CacheVictimHits uint64
	CacheMisses     uint64
	CacheEvictions  uint64
	CacheResident   int
	CacheCheckedOut int // nonzero only inside an operation

	IndexReads   uint64
	IndexWrites  uint64
	DataReads    uint64
	DataWrites   uint64
	IndexEnd     uint64 // next fresh node chunk
	DataEnd      uint64 // next value record
	FreeChunks   int
	ReusedChunks uint64
}

// Stats returns store statistics
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Puts:       s.puts.Load(),
		Duplicates: s.duplicates.Load(),
		Gets:       s.gets.Load(),
		Deletes:    s.deletes.Load(),
		Splits:     s.splits.Load(),
		Merges:     s.merges.Load(),
		Rotations:  s.rotations.Load(),
		Depth:      s.depth,
	}

	cs := s.cache.Stats()
	st.CacheHits = cs.Hits
	st.CacheVictimHits = cs.VictimHits
	st.CacheMisses = cs.Misses
	st.CacheEvictions = cs.Evictions
	st.CacheResident = cs.Resident
	st.CacheCheckedOut = cs.CheckedOut

	is, ds := s.index.Stats(), s.data.Stats()
	st.IndexReads = is.Reads
	st.IndexWrites = is.Writes
	st.DataReads = ds.Reads
	st.DataWrites = ds.Writes

	ps := s.pager.Stats()
	st.IndexEnd = ps.IndexCursor
	st.DataEnd = ps.DataCursor
	st.FreeChunks = ps.FreeChunks
	st.ReusedChunks = ps.Reused
	return st
}
