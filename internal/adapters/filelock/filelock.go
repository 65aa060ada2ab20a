// Package filelock provides blocking advisory locks on sidecar lock files.
//
// State files are replaced atomically on write, so the lock cannot live on
// the data file itself; it is taken on a sibling file that is never removed.
// The presence of a lock file therefore says nothing about whether the lock
// is held.
package filelock

import (
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/zerr"
	"golang.org/x/sys/unix"
)

// SidecarPath returns the lock file path for a data file, replacing its
// extension with ".lock".
func SidecarPath(dataPath string) string {
	return strings.TrimSuffix(dataPath, filepath.Ext(dataPath)) + ".lock"
}

// Lock is a held exclusive flock. The kernel releases it when the holding
// process exits, so a crashed holder cannot wedge other processes.
type Lock struct {
	file *os.File
}

// Acquire opens the lock file, creating it and its parent directories if
// needed, and blocks until the exclusive lock is held.
func Acquire(lockPath string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, zerr.Wrap(err, "failed to create lock directory")
	}
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to open lock file")
	}
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX); err != nil {
		file.Close()
		return nil, zerr.With(zerr.Wrap(err, "failed to lock file"), "path", lockPath)
	}
	return &Lock{file: file}, nil
}

// Unlock releases the lock and closes the underlying file.
func (l *Lock) Unlock() error {
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		l.file.Close()
		return zerr.Wrap(err, "failed to unlock file")
	}
	if err := l.file.Close(); err != nil {
		return zerr.Wrap(err, "failed to close lock file")
	}
	return nil
}
