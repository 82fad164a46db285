//go:build windows

package lockfile

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

// LockShared acquires a shared (read) lock, blocking until available.
func (l *FileLock) LockShared() error {
	return l.lock(0)
}

// LockExclusive acquires an exclusive (write) lock, blocking until available.
func (l *FileLock) LockExclusive() error {
	return l.lock(windows.LOCKFILE_EXCLUSIVE_LOCK)
}

func (l *FileLock) lock(flags uint32) error {
	if l.file == nil {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
		if err != nil {
			return fmt.Errorf("lockfile: open %s: %w", l.path, err)
		}
		l.file = f
	}

	ol := new(windows.Overlapped)
	err := windows.LockFileEx(windows.Handle(l.file.Fd()), flags, 0, 1, 0, ol)
	if err != nil {
		return fmt.Errorf("lockfile: lock %s: %w", l.path, err)
	}
	l.held = true
	return nil
}

// Unlock releases the lock and closes the underlying file handle.
func (l *FileLock) Unlock() error {
	if l.file == nil {
		return nil
	}
	ol := new(windows.Overlapped)
	unlockErr := windows.UnlockFileEx(windows.Handle(l.file.Fd()), 0, 1, 0, ol)
	closeErr := l.file.Close()
	l.file = nil
	l.held = false
	if unlockErr != nil {
		return fmt.Errorf("lockfile: unlock %s: %w", l.path, unlockErr)
	}
	return closeErr
}
