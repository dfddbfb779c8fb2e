package fs

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrLocked is returned by [Real.Lock] when the lock file already exists,
// meaning another process (or another open call in this process) currently
// holds it.
var ErrLocked = errors.New("locked")

// Locker represents a held interprocess lock. Close releases it.
type Locker interface {
	io.Closer
}

// fileLock is a held lock backed by the existence of a file on disk.
//
// The lock is held for as long as the file exists, not for as long as any
// file descriptor referencing it stays open; the descriptor used to create
// it is closed immediately after creation, mirroring exclusive-create lock
// files used by single-writer embedded stores.
type fileLock struct {
	path string
	fs   FS
}

func (l *fileLock) Close() error {
	err := l.fs.Remove(l.path)
	if err != nil {
		return fmt.Errorf("release lock %q: %w", l.path, err)
	}

	return nil
}

// Lock acquires an exclusive lock at path by creating it with O_CREAT|O_EXCL.
//
// Unlike advisory locks (flock), this scheme only protects cooperating
// callers that agree to call Lock/Close around the same path; it does not
// prevent a process from reading or writing the underlying data files
// directly. The lock is released by deleting the file, so a process that
// dies without calling Close leaves a stale lock file behind that must be
// removed manually before the path can be locked again.
func (r *Real) Lock(path string) (Locker, error) {
	file, err := r.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o000)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrLocked
		}

		return nil, fmt.Errorf("create lock file %q: %w", path, err)
	}

	closeErr := file.Close()
	if closeErr != nil {
		_ = r.Remove(path)

		return nil, fmt.Errorf("close lock file %q: %w", path, closeErr)
	}

	return &fileLock{path: path, fs: r}, nil
}
