// Package pager owns index and data file space: the chunk cursors and the
// chain of freed node chunks.
package pager

import (
	"github.com/weixu8/btree-db/internal/base"
	"github.com/weixu8/btree-db/internal/storage"
)

// NodeChunkSize is the index space reserved for one node block: NodeSize
// rounded up to a power of two.
const NodeChunkSize = 4096

// Pager allocates node chunks and value records.
type Pager struct {
	alloc  *Allocator
	free   *FreeList
	reuse  bool
	reused uint64
}

// New returns a pager resuming at the given file lengths. Freed node chunks
// are taken from the chain only when reuse is set.
func New(index *storage.File, freeTop uint32, indexEnd, dataEnd int64, reuse bool) *Pager {
	return &Pager{
		alloc: NewAllocator(indexEnd, dataEnd),
		free:  NewFreeList(index, freeTop),
		reuse: reuse,
	}
}

// LoadFreeList validates the freed chunk chain against the index length.
func (p *Pager) LoadFreeList(indexEnd int64) error {
	return p.free.Load(int(indexEnd/NodeChunkSize) + 1)
}

// AllocateNode returns the offset of a node chunk and whether it was taken
// from the free chain.
func (p *Pager) AllocateNode() (uint32, bool, error) {
	if p.reuse && p.free.Size() > 0 {
		offset, err := p.free.Pop()
		if err != nil {
			return 0, false, err
		}
		if offset != 0 {
			p.reused++
			return offset, true, nil
		}
	}

	offset, err := p.alloc.AllocateIndex(base.NodeSize)
	return offset, false, err
}

// FreeNode puts a node chunk on the free chain.
func (p *Pager) FreeNode(offset uint32) error {
	return p.free.Push(offset)
}

// AllocateData reserves n bytes in the data file.
func (p *Pager) AllocateData(n uint64) uint64 {
	return p.alloc.AllocateData(n)
}

// DataCursor returns the end of the allocated data file.
func (p *Pager) DataCursor() uint64 {
	return p.alloc.DataCursor()
}

// FreeTop returns the head of the free chain for the superblock.
func (p *Pager) FreeTop() uint32 {
	return p.free.Head()
}

// Stats holds allocation statistics
type Stats struct {
	IndexCursor uint64
	DataCursor  uint64
	FreeChunks  int
	Reused      uint64
}

// Stats returns allocation statistics
func (p *Pager) Stats() Stats {
	return Stats{
		IndexCursor: p.alloc.IndexCursor(),
		DataCursor:  p.alloc.DataCursor(),
		FreeChunks:  p.free.Size(),
		Reused:      p.reused,
	}
}
