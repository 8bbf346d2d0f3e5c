package catalog

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const lockFileName = ".orbit-lock"

// RootLock guards a catalog root (one of the channel/archive/cache trees)
// against concurrent writers across processes, mirroring the advisory
// file-descriptor lock pattern used by the pack's vendored
// go.podman.io/storage/pkg/lockfile (flock-style OS lock held open for the
// lifetime of a write). Unlike a plain O_EXCL-create lock, an OS-level
// flock is released by the kernel the moment its holder's process exits,
// crash or not, so a holder that dies mid-write never leaves the root
// wedged for the next one.
type RootLock struct {
	path string
	f    *os.File
}

// Acquire blocks (subject to ctx) until it holds an exclusive OS-level lock
// on root's lock file, creating root and the lock file if needed. Waiting
// uses fsnotify to wake as soon as the current holder releases and rewrites
// the lock file, falling back to a bounded poll interval in case the
// fsnotify event is missed.
func Acquire(ctx context.Context, root string) (*RootLock, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}

	path := filepath.Join(root, lockFileName)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		f.Close()
		return nil, err
	}
	defer watcher.Close()

	if err := watcher.Add(root); err != nil {
		f.Close()
		return nil, err
	}

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		err := tryFlock(f)
		if err == nil {
			return &RootLock{path: path, f: f}, nil
		}

		if !isLockContention(err) {
			f.Close()
			return nil, err
		}

		select {
		case <-ctx.Done():
			f.Close()
			return nil, ctx.Err()
		case <-watcher.Events:
		case <-watcher.Errors:
		case <-ticker.C:
		}
	}
}

// Release drops the OS-level flock and closes the lock file, signalling
// waiters via the fsnotify Write event they are watching for.
func (l *RootLock) Release() error {
	if err := unflock(l.f); err != nil {
		l.f.Close()
		return err
	}

	// rewrite (not remove) so a waiter's fsnotify.Write fires without
	// racing a concurrent Acquire's own os.OpenFile(O_CREATE).
	_, _ = l.f.WriteAt([]byte{0}, 0)

	return l.f.Close()
}
