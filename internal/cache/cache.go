// Package cache holds decoded node blocks between uses. A node is owned by
// exactly one party at a time: either the cache or the caller that acquired
// it. Acquire hands the node out and forgets it; Release and Flush hand it
// back.
package cache

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/elastic/go-freelru"
	"github.com/pkg/errors"

	"github.com/weixu8/btree-db/internal/base"
	"github.com/weixu8/btree-db/internal/storage"
)

const (
	// DefaultSlots is the number of direct-mapped slots.
	DefaultSlots = 23

	// DefaultVictims is the size of the LRU pool behind the slots.
	DefaultVictims = 64
)

var (
	ErrInvalidOffset = errors.New("invalid node offset")
	ErrCheckedOut    = errors.New("node is already checked out")
)

// Cache is a direct-mapped node cache keyed by file offset, with an optional
// LRU pool that catches nodes pushed out of their slot by a collision.
type Cache struct {
	file    *storage.File
	slots   []slot
	victims *freelru.LRU[uint32, *base.Node] // nil when disabled
	out     map[uint32]struct{}              // offsets held by callers

	// Stats
	hits       atomic.Uint64
	victimHits atomic.Uint64
	misses     atomic.Uint64
	evictions  atomic.Uint64
}

type slot struct {
	offset uint32 // 0 = empty
	node   *base.Node
}

// New creates a cache over file with the given number of slots and victim
// pool entries. A victim pool of 0 disables it.
func New(file *storage.File, slots, victims int) (*Cache, error) {
	if slots < 1 {
		return nil, errors.Errorf("cache needs at least one slot, got %d", slots)
	}

	c := &Cache{
		file:  file,
		slots: make([]slot, slots),
		out:   make(map[uint32]struct{}),
	}

	if victims > 0 {
		lru, err := freelru.New[uint32, *base.Node](uint32(victims), hashOffset)
		if err != nil {
			return nil, errors.Wrap(err, "create victim pool")
		}
		c.victims = lru
	}

	return c, nil
}

func hashOffset(offset uint32) uint32 {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], offset)
	return uint32(xxhash.Sum64(b[:]))
}

func (c *Cache) slotFor(offset uint32) *slot {
	return &c.slots[offset%uint32(len(c.slots))]
}

// Acquire takes exclusive possession of the node at offset. A cached copy is
// removed from the cache and returned; otherwise the node is read from disk.
// The caller must hand the node back with Release, Flush or Discard.
func (c *Cache) Acquire(offset uint32) (*base.Node, error) {
	if offset == 0 {
		return nil, ErrInvalidOffset
	}
	if _, held := c.out[offset]; held {
		return nil, errors.Wrapf(ErrCheckedOut, "offset %d", offset)
	}

	s := c.slotFor(offset)
	if s.offset == offset {
		node := s.node
		s.offset, s.node = 0, nil
		c.hits.Add(1)
		c.out[offset] = struct{}{}
		return node, nil
	}

	if c.victims != nil {
		if node, ok := c.victims.Peek(offset); ok {
			c.victims.Remove(offset)
			c.victimHits.Add(1)
			c.out[offset] = struct{}{}
			return node, nil
		}
	}

	c.misses.Add(1)
	node, err := c.read(offset)
	if err != nil {
		return nil, err
	}
	c.out[offset] = struct{}{}
	return node, nil
}

func (c *Cache) read(offset uint32) (*base.Node, error) {
	buf := c.file.GetBuffer()
	defer c.file.PutBuffer(buf)

	if err := c.file.ReadAt(buf[:base.NodeSize], int64(offset)); err != nil {
		return nil, errors.Wrapf(err, "read node at %d", offset)
	}

	node := base.NewNode()
	if err := node.Decode(buf); err != nil {
		node.Release()
		return nil, errors.Wrapf(err, "decode node at %d", offset)
	}
	return node, nil
}

// Release hands node back as the cached copy of offset. The node must match
// what is on disk. A different occupant of the slot is moved to the victim
// pool, or dropped when there is none.
func (c *Cache) Release(node *base.Node, offset uint32) {
	delete(c.out, offset)

	s := c.slotFor(offset)
	if s.offset != 0 && s.node != node {
		c.evictions.Add(1)
		if c.victims != nil && s.offset != offset {
			c.victims.Add(s.offset, s.node)
		} else {
			s.node.Release()
		}
	}

	if c.victims != nil {
		c.victims.Remove(offset)
	}
	s.offset = offset
	s.node = node
}

// Flush writes node to disk at offset and then releases it.
func (c *Cache) Flush(node *base.Node, offset uint32) error {
	if offset == 0 {
		return ErrInvalidOffset
	}

	buf := c.file.GetBuffer()
	defer c.file.PutBuffer(buf)

	if err := node.Encode(buf); err != nil {
		return errors.Wrapf(err, "encode node at %d", offset)
	}
	if err := c.file.WriteAt(buf[:base.NodeSize], int64(offset)); err != nil {
		return errors.Wrapf(err, "write node at %d", offset)
	}

	c.Release(node, offset)
	return nil
}

// Discard gives up a checked-out node whose block is no longer part of the
// tree. Nothing is cached for offset afterwards.
func (c *Cache) Discard(node *base.Node, offset uint32) {
	delete(c.out, offset)

	s := c.slotFor(offset)
	if s.offset == offset {
		if s.node != node {
			s.node.Release()
		}
		s.offset, s.node = 0, nil
	}
	if c.victims != nil {
		c.victims.Remove(offset)
	}
	node.Release()
}

// Abort forgets every checked-out offset. Used after a failed operation,
// whose frames drop their nodes without handing them back.
func (c *Cache) Abort() {
	clear(c.out)
}

// resident returns the number of cached nodes.
func (c *Cache) resident() int {
	n := 0
	for i := range c.slots {
		if c.slots[i].offset != 0 {
			n++
		}
	}
	if c.victims != nil {
		n += c.victims.Len()
	}
	return n
}

// Close drops every cached node.
func (c *Cache) Close() {
	for i := range c.slots {
		if c.slots[i].offset != 0 {
			c.slots[i].node.Release()
		}
		c.slots[i] = slot{}
	}
	if c.victims != nil {
		c.victims.Purge()
	}
	clear(c.out)
}

// Stats holds cache statistics
type Stats struct {
	Hits       uint64
	VictimHits uint64
	Misses     uint64
	Evictions  uint64
	Resident   int // nodes held in slots and the victim pool
	CheckedOut int // nodes held by callers
}

// Stats returns cache statistics
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:       c.hits.Load(),
		VictimHits: c.victimHits.Load(),
		Misses:     c.misses.Load(),
		Evictions:  c.evictions.Load(),
		Resident:   c.resident(),
		CheckedOut: len(c.out),
	}
}
