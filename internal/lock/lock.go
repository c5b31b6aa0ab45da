// Package lock provides the cross-process run lock. Exactly one sync run
// may operate on a database directory at a time.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"
)

// FileName is the lock file kept in the database directory.
const FileName = ".elogfetch.lock"

// ErrAlreadyRunning means another process holds the run lock.
var ErrAlreadyRunning = errors.New("another sync is already running")

// Guard holds the acquired lock until Release.
type Guard struct {
	file *os.File
	path string
}

// Acquire takes an exclusive, non-blocking flock on the lock file inside
// dir. A held lock in another process returns ErrAlreadyRunning
// immediately; the caller never waits.
func Acquire(dir string) (*Guard, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	// The pid is informational; the flock is what holds the lock.
	_ = f.Truncate(0)
	_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)

	return &Guard{file: f, path: path}, nil
}

// Path returns the lock file path.
func (g *Guard) Path() string {
	return g.path
}

// Release drops the lock. Safe to call twice.
//
// The lock file is left in place on purpose. Unlinking it would let a
// waiter that already opened the old inode and a newcomer that creates a
// fresh file both flock "the" lock at once. Every process must contend on
// the same inode, so only the flock is released.
func (g *Guard) Release() error {
	if g.file == nil {
		return nil
	}
	// Closing the descriptor releases the flock.
	err := g.file.Close()
	g.file = nil
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}
