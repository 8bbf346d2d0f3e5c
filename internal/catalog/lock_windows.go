//go:build windows

package catalog

import (
	"os"

	"golang.org/x/sys/windows"
)

// tryFlock attempts a non-blocking exclusive byte-range lock on the first
// byte of f, Windows' equivalent of a unix flock for RootLock's purpose.
func tryFlock(f *os.File) error {
	ol := new(windows.Overlapped)

	return windows.LockFileEx(
		windows.Handle(f.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0, 1, 0, ol,
	)
}

// isLockContention reports whether err means "another holder has it right
// now", as opposed to a genuine I/O failure worth surfacing.
func isLockContention(err error) bool {
	return err == windows.ERROR_LOCK_VIOLATION || err == windows.ERROR_IO_PENDING
}

func unflock(f *os.File) error {
	ol := new(windows.Overlapped)

	return windows.UnlockFileEx(windows.Handle(f.Fd()), 0, 1, 0, ol)
}
