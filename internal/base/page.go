package base

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// All persisted integers are little-endian.
const (
	// PageBudget is the byte budget a node block must fit in.
	PageBudget = 4096

	// KeyMaxLength is the fixed width of a stored key.
	KeyMaxLength = 20

	// ItemSize is Key(20) + Offset(8) + Child(4).
	ItemSize = KeyMaxLength + 8 + 4

	// TableSize is the number of item slots in a node: the largest count whose
	// array plus the one byte item count fits PageBudget.
	TableSize = (PageBudget - 1) / ItemSize

	// MaxItems is the number of items a node can hold. The slot after the
	// last item carries the right-most child offset.
	MaxItems = TableSize - 1

	// SplitIndex is the median slot promoted when a full node splits.
	SplitIndex = TableSize / 2

	// MinItems is the occupancy every non-root node keeps. A split leaves
	// SplitIndex-1 items in the right sibling, so inserts never violate it.
	MinItems = SplitIndex - 1

	// NodeSize is the serialized size of a node block.
	NodeSize = TableSize*ItemSize + 1

	// SuperblockSize is Root(4) + FreeTop(4) + Magic(4) + Checksum(4).
	SuperblockSize = 16

	// IndexMagic identifies an index file ("BTIX").
	IndexMagic uint32 = 0x58495442

	// DataMagic is the header of every data file.
	DataMagic uint32 = 2012

	// DataHeaderSize is the size of the data file header.
	DataHeaderSize = 4

	// RecordHeaderSize is the length prefix of a value record.
	RecordHeaderSize = 4
)

// Superblock is the fixed header at offset 0 of the index file.
//
// LAYOUT (16 bytes):
// ┌──────────────┬──────────────┬──────────────┬──────────────┐
// │ Root (4)     │ FreeTop (4)  │ Magic (4)    │ Checksum (4) │
// └──────────────┴──────────────┴──────────────┴──────────────┘
//
// Root is 0 for an empty tree. FreeTop is the head of the freed node chain,
// 0 when the chain is empty. Checksum is the low 32 bits of the xxhash of
// the first 12 bytes.
type Superblock struct {
	Root    uint32
	FreeTop uint32
}

// Encode writes the superblock, magic and checksum into buf.
func (s *Superblock) Encode(buf []byte) error {
	if len(buf) < SuperblockSize {
		return ErrShortBuffer
	}
	binary.LittleEndian.PutUint32(buf[0:], s.Root)
	binary.LittleEndian.PutUint32(buf[4:], s.FreeTop)
	binary.LittleEndian.PutUint32(buf[8:], IndexMagic)
	binary.LittleEndian.PutUint32(buf[12:], checksum(buf[:12]))
	return nil
}

// Decode reads and validates a superblock from buf.
func (s *Superblock) Decode(buf []byte) error {
	if len(buf) < SuperblockSize {
		return ErrShortBuffer
	}
	if binary.LittleEndian.Uint32(buf[8:]) != IndexMagic {
		return ErrInvalidMagic
	}
	if binary.LittleEndian.Uint32(buf[12:]) != checksum(buf[:12]) {
		return ErrInvalidChecksum
	}
	s.Root = binary.LittleEndian.Uint32(buf[0:])
	s.FreeTop = binary.LittleEndian.Uint32(buf[4:])
	return nil
}

func checksum(b []byte) uint32 {
	return uint32(xxhash.Sum64(b))
}

// EncodeDataHeader writes the data file magic into buf.
func EncodeDataHeader(buf []byte) {
	binary.LittleEndian.PutUint32(buf, DataMagic)
}

// ValidateDataHeader checks the data file magic.
func ValidateDataHeader(buf []byte) error {
	if len(buf) < DataHeaderSize {
		return ErrShortBuffer
	}
	if binary.LittleEndian.Uint32(buf) != DataMagic {
		return ErrInvalidMagic
	}
	return nil
}
