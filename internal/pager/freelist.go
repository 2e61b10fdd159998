package pager

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/weixu8/btree-db/internal/storage"
)

const (
	// freeMarker tags a freed node chunk ("FREE").
	freeMarker uint32 = 0x45455246

	freeHeaderSize = 8 // Next(4) + Marker(4)
)

var ErrFreeListCorrupt = errors.New("free list corrupt")

// FreeList is the chain of freed node chunks. Every freed chunk starts with
// the offset of the next freed chunk and a marker; the head is persisted in
// the superblock as FreeTop.
type FreeList struct {
	file *storage.File
	head uint32
	size int
}

// NewFreeList returns a free list headed at head. Call Load to validate the
// chain and count its chunks.
func NewFreeList(file *storage.File, head uint32) *FreeList {
	return &FreeList{
		file: file,
		head: head,
	}
}

// Load walks the chain. A chain longer than limit chunks must contain a
// cycle and is reported as corrupt.
func (f *FreeList) Load(limit int) error {
	size := 0
	for off := f.head; off != 0; size++ {
		if size >= limit {
			return errors.Wrapf(ErrFreeListCorrupt, "chain longer than %d chunks", limit)
		}
		next, err := f.readLink(off)
		if err != nil {
			return err
		}
		off = next
	}
	f.size = size
	return nil
}

// Push links a freed chunk at the head of the chain.
func (f *FreeList) Push(offset uint32) error {
	var buf [freeHeaderSize]byte
	binary.LittleEndian.PutUint32(buf[0:], f.head)
	binary.LittleEndian.PutUint32(buf[4:], freeMarker)
	if err := f.file.WriteAt(buf[:], int64(offset)); err != nil {
		return errors.Wrapf(err, "free chunk %d", offset)
	}

	f.head = offset
	f.size++
	return nil
}

// Pop unlinks the head of the chain, or returns 0 if the chain is empty.
func (f *FreeList) Pop() (uint32, error) {
	if f.head == 0 {
		return 0, nil
	}

	offset := f.head
	next, err := f.readLink(offset)
	if err != nil {
		return 0, err
	}

	f.head = next
	f.size--
	return offset, nil
}

// Head returns the first chunk of the chain, 0 if empty.
func (f *FreeList) Head() uint32 {
	return f.head
}

// Size returns the number of chunks on the chain.
func (f *FreeList) Size() int {
	return f.size
}

func (f *FreeList) readLink(offset uint32) (uint32, error) {
	if offset%NodeChunkSize != 0 {
		return 0, errors.Wrapf(ErrFreeListCorrupt, "misaligned chunk %d", offset)
	}

	var buf [freeHeaderSize]byte
	if err := f.file.ReadAt(buf[:], int64(offset)); err != nil {
		return 0, errors.Wrapf(err, "read free chunk %d", offset)
	}
	if binary.LittleEndian.Uint32(buf[4:]) != freeMarker {
		return 0, errors.Wrapf(ErrFreeListCorrupt, "chunk %d is not free", offset)
	}
	return binary.LittleEndian.Uint32(buf[0:]), nil
}
