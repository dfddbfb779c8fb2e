package fs_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/holovault/rangestore/pkg/fs"
)

func TestRealLock_SecondAcquireFailsWithErrLocked(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "dataset.lck")
	real := fs.NewReal()

	lock, err := real.Lock(path)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	_, err = real.Lock(path)
	if !errors.Is(err, fs.ErrLocked) {
		t.Fatalf("second Lock err=%v, want ErrLocked", err)
	}

	if err := lock.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestRealLock_CanReacquireAfterClose(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "dataset.lck")
	real := fs.NewReal()

	lock, err := real.Lock(path)
	if err != nil {
		t.Fatalf("first Lock: %v", err)
	}

	if err := lock.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	lock2, err := real.Lock(path)
	if err != nil {
		t.Fatalf("second Lock: %v", err)
	}

	if err := lock2.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	exists, err := real.Exists(path)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}

	if exists {
		t.Fatalf("lock file still exists after Close")
	}
}
