//go:build unix

package lockfile

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// LockShared acquires a shared (read) lock, blocking until available.
func (l *FileLock) LockShared() error {
	return l.lock(unix.LOCK_SH)
}

// LockExclusive acquires an exclusive (write) lock, blocking until available.
func (l *FileLock) LockExclusive() error {
	return l.lock(unix.LOCK_EX)
}

func (l *FileLock) lock(how int) error {
	if l.file == nil {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
		if err != nil {
			return fmt.Errorf("lockfile: open %s: %w", l.path, err)
		}
		l.file = f
	}

	if err := unix.Flock(int(l.file.Fd()), how); err != nil {
		return fmt.Errorf("lockfile: flock %s: %w", l.path, err)
	}
	l.held = true
	return nil
}

// Unlock releases the lock and closes the underlying file descriptor.
func (l *FileLock) Unlock() error {
	if l.file == nil {
		return nil
	}
	unlockErr := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	l.held = false
	if unlockErr != nil {
		return fmt.Errorf("lockfile: unlock %s: %w", l.path, unlockErr)
	}
	return closeErr
}
