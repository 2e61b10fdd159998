//go:build !linux

package storage

import "github.com/pkg/errors"

// Sync flushes the file to stable storage.
func (f *File) Sync() error {
	if f.file == nil {
		return ErrClosed
	}
	if err := f.file.Sync(); err != nil {
		return errors.Wrapf(err, "fsync %s", f.path)
	}
	return nil
}
