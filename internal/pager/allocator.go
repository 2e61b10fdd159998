package pager

import (
	"math"

	"github.com/pkg/errors"
)

var ErrIndexFull = errors.New("index file exceeds 32-bit offsets")

// Allocator hands out chunks from two monotonically increasing cursors:
// size-aligned chunks in the index file and unaligned ones in the data file.
// Nothing is ever returned to a cursor.
type Allocator struct {
	index uint64
	data  uint64
}

// NewAllocator resumes allocation at the given file lengths.
func NewAllocator(indexEnd, dataEnd int64) *Allocator {
	return &Allocator{
		index: uint64(indexEnd),
		data:  uint64(dataEnd),
	}
}

// RoundPow2 returns the smallest power of two >= n.
func RoundPow2(n int) int {
	i := 1
	for i < n {
		i <<= 1
	}
	return i
}

// AllocateIndex reserves n bytes rounded up to a power of two, aligned to
// that power of two, and returns the chunk offset.
func (a *Allocator) AllocateIndex(n int) (uint32, error) {
	if n <= 0 {
		return 0, errors.Errorf("invalid chunk length %d", n)
	}

	size := uint64(RoundPow2(n))
	offset := a.index
	if rem := offset & (size - 1); rem != 0 {
		offset += size - rem
	}
	if offset+size > math.MaxUint32 {
		return 0, ErrIndexFull
	}

	a.index = offset + size
	return uint32(offset), nil
}

// AllocateData reserves n bytes at the end of the data file and returns the
// previous cursor.
func (a *Allocator) AllocateData(n uint64) uint64 {
	offset := a.data
	a.data += n
	return offset
}

// IndexCursor returns the next unallocated index file offset.
func (a *Allocator) IndexCursor() uint64 {
	return a.index
}

// DataCursor returns the next unallocated data file offset.
func (a *Allocator) DataCursor() uint64 {
	return a.data
}
