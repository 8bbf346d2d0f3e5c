//go:build !windows

package catalog

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// tryFlock attempts a non-blocking exclusive advisory lock on f's
// descriptor, per RootLock's doc comment.
func tryFlock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
}

// isLockContention reports whether err means "another holder has it right
// now", as opposed to a genuine I/O failure worth surfacing.
func isLockContention(err error) bool {
	return errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN)
}

func unflock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
