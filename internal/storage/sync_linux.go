//go:build linux

package storage

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Sync flushes file data to stable storage. Metadata is skipped unless
// needed to read the data back.
func (f *File) Sync() error {
	if f.file == nil {
		return ErrClosed
	}
	if err := unix.Fdatasync(int(f.file.Fd())); err != nil {
		return errors.Wrapf(err, "fdatasync %s", f.path)
	}
	return nil
}
