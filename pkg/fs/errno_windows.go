//go:build windows

package fs

import (
	"errors"
	"syscall"
)

// PlatformErrno extracts the platform-specific error code from err, if any.
func PlatformErrno(err error) (int, bool) {
	var errno syscall.Errno

	if errors.As(err, &errno) {
		return int(errno), true
	}

	return 0, false
}
