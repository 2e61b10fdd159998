//go:build linux || darwin

package storage

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Lock takes an exclusive advisory lock on the file without blocking.
func (f *File) Lock() error {
	if f.file == nil {
		return ErrClosed
	}
	if err := unix.Flock(int(f.file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return errors.Wrap(ErrLocked, f.path)
		}
		return errors.Wrapf(err, "lock %s", f.path)
	}
	return nil
}

// Unlock drops the advisory lock.
func (f *File) Unlock() error {
	if f.file == nil {
		return ErrClosed
	}
	return unix.Flock(int(f.file.Fd()), unix.LOCK_UN)
}
