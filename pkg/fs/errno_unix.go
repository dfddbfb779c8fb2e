//go:build !windows

package fs

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

// PlatformErrno extracts the platform-specific error code from err, if any.
// On Unix-likes this resolves through golang.org/x/sys/unix.Errno so the
// returned integer is a portable errno value rather than the GOOS-specific
// syscall.Errno underlying type.
func PlatformErrno(err error) (int, bool) {
	var errno syscall.Errno

	if errors.As(err, &errno) {
		return int(unix.Errno(errno)), true
	}

	return 0, false
}
