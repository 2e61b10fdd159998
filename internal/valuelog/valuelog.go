// Package valuelog appends length-prefixed value records to the data file.
// Records are immutable; nothing is ever rewritten or reclaimed.
package valuelog

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/weixu8/btree-db/internal/base"
	"github.com/weixu8/btree-db/internal/storage"
)

// MaxValueSize is the largest value a record can hold.
const MaxValueSize = math.MaxUint32

var ErrValueTooLarge = errors.New("value too large")

// Allocator reserves space at the end of the data file.
type Allocator interface {
	AllocateData(n uint64) uint64
	DataCursor() uint64
}

// Log is the value log of one store.
type Log struct {
	file  *storage.File
	alloc Allocator
}

// New returns a log writing into file at offsets handed out by alloc.
func New(file *storage.File, alloc Allocator) *Log {
	return &Log{
		file:  file,
		alloc: alloc,
	}
}

// Append writes value as {length u32, bytes} and returns the record offset.
func (l *Log) Append(value []byte) (uint64, error) {
	if uint64(len(value)) > MaxValueSize {
		return 0, ErrValueTooLarge
	}

	record := make([]byte, base.RecordHeaderSize+len(value))
	binary.LittleEndian.PutUint32(record, uint32(len(value)))
	copy(record[base.RecordHeaderSize:], value)

	offset := l.alloc.AllocateData(uint64(len(record)))
	if err := l.file.WriteAt(record, int64(offset)); err != nil {
		return 0, errors.Wrapf(err, "append value at %d", offset)
	}
	return offset, nil
}

// Read returns the value of the record at offset.
func (l *Log) Read(offset uint64) ([]byte, error) {
	var header [base.RecordHeaderSize]byte
	if err := l.file.ReadAt(header[:], int64(offset)); err != nil {
		return nil, errors.Wrapf(err, "read value length at %d", offset)
	}

	length := uint64(binary.LittleEndian.Uint32(header[:]))
	if end := l.alloc.DataCursor(); offset+base.RecordHeaderSize+length > end {
		return nil, errors.Wrapf(storage.ErrShortRead, "value at %d claims %d bytes past data end %d", offset, length, end)
	}

	value := make([]byte, length)
	if err := l.file.ReadAt(value, int64(offset)+base.RecordHeaderSize); err != nil {
		return nil, errors.Wrapf(err, "read value at %d", offset)
	}
	return value, nil
}
