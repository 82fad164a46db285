// Package lockfile provides advisory file locking for the cold-tier state
// files written by internal/envcache and internal/service.
//
// The teacher's internal/install/state.go calls a NewFileLock(path) that
// returns a type exposing LockShared/LockExclusive/Unlock, but the file
// defining it was not present in the retrieval pack. This package
// recreates that interface shape from its call sites and implements it
// with golang.org/x/sys/unix.Flock on Unix platforms (see lockfile_unix.go
// and lockfile_windows.go).
package lockfile

import "os"

// FileLock guards a single path with advisory OS-level locking. Shared
// locks allow concurrent readers; an exclusive lock excludes all others.
// A FileLock is not safe for concurrent use by multiple goroutines without
// external synchronization — callers typically hold one per operation.
type FileLock struct {
	path string
	file *os.File
	held bool
}

// NewFileLock returns a FileLock for path. The lock file is created
// (if absent) lazily on the first Lock call, not here.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// Path returns the path the lock guards.
func (l *FileLock) Path() string {
	return l.path
}
