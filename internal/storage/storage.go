// Package storage wraps the index and data files with positioned reads and
// writes that either transfer the whole buffer or fail.
package storage

import (
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/weixu8/btree-db/internal/base"
)

var (
	ErrShortRead  = errors.New("short read")
	ErrShortWrite = errors.New("short write")
	ErrLocked     = errors.New("file is locked by another owner")
	ErrClosed     = errors.New("file is closed")
)

// File is a single store file. It is not safe for concurrent use; the store
// serializes all access.
type File struct {
	file    *os.File
	path    string
	bufPool sync.Pool

	// Stats counters
	reads   atomic.Uint64
	writes  atomic.Uint64
	read    atomic.Uint64
	written atomic.Uint64
}

// Open opens path with the given os.OpenFile flags.
func Open(path string, flag int) (*File, error) {
	file, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}

	return &File{
		file: file,
		path: path,
		bufPool: sync.Pool{
			New: func() any {
				return make([]byte, base.NodeSize)
			},
		},
	}, nil
}

// Path returns the file path.
func (f *File) Path() string {
	return f.path
}

// ReadAt fills buf from offset. Anything less than len(buf) bytes is an
// error wrapping ErrShortRead.
func (f *File) ReadAt(buf []byte, offset int64) error {
	if f.file == nil {
		return ErrClosed
	}

	f.reads.Add(1)
	n, err := f.file.ReadAt(buf, offset)
	f.read.Add(uint64(n))
	if n == len(buf) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return errors.Wrapf(ErrShortRead, "%s: got %d bytes at offset %d, expected %d",
			f.path, n, offset, len(buf))
	}
	return errors.Wrapf(err, "%s: read at offset %d", f.path, offset)
}

// WriteAt writes all of buf at offset.
func (f *File) WriteAt(buf []byte, offset int64) error {
	if f.file == nil {
		return ErrClosed
	}

	f.writes.Add(1)
	n, err := f.file.WriteAt(buf, offset)
	f.written.Add(uint64(n))
	if err != nil {
		return errors.Wrapf(err, "%s: write at offset %d", f.path, offset)
	}
	if n != len(buf) {
		return errors.Wrapf(ErrShortWrite, "%s: wrote %d bytes at offset %d, expected %d",
			f.path, n, offset, len(buf))
	}
	return nil
}

// Size returns the current file length.
func (f *File) Size() (int64, error) {
	if f.file == nil {
		return 0, ErrClosed
	}
	info, err := f.file.Stat()
	if err != nil {
		return 0, errors.Wrapf(err, "stat %s", f.path)
	}
	return info.Size(), nil
}

// Close releases the lock, if held, and closes the file.
func (f *File) Close() error {
	if f.file == nil {
		return nil
	}
	_ = f.Unlock()
	err := f.file.Close()
	f.file = nil
	if err != nil {
		return errors.Wrapf(err, "close %s", f.path)
	}
	return nil
}

// GetBuffer gets a NodeSize buffer from the pool
func (f *File) GetBuffer() []byte {
	return f.bufPool.Get().([]byte)
}

// PutBuffer returns a buffer to the pool
func (f *File) PutBuffer(buf []byte) {
	f.bufPool.Put(buf)
}

// Stats holds I/O statistics
type Stats struct {
	Reads   uint64
	Writes  uint64
	Read    uint64
	Written uint64
}

// Stats returns I/O statistics
func (f *File) Stats() Stats {
	return Stats{
		Reads:   f.reads.Load(),
		Writes:  f.writes.Load(),
		Read:    f.read.Load(),
		Written: f.written.Load(),
	}
}
