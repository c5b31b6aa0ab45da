package lock

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"
)

// TestAcquire_Release tests the basic acquire/release cycle
func TestAcquire_Release(t *testing.T) {
	dir := t.TempDir()

	guard, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, FileName)); err != nil {
		t.Errorf("lock file missing: %v", err)
	}

	if err := guard.Release(); err != nil {
		t.Fatalf("Release() failed: %v", err)
	}
}

// TestAcquire_Reacquire tests that a released lock can be taken again
func TestAcquire_Reacquire(t *testing.T) {
	dir := t.TempDir()

	guard, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}
	if err := guard.Release(); err != nil {
		t.Fatalf("Release() failed: %v", err)
	}

	guard2, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire() after release failed: %v", err)
	}
	defer guard2.Release()
}

// TestAcquire_Contention tests that a held lock fails fast. flock locks
// attach to the open file description, so a second descriptor conflicts
// even within one process.
func TestAcquire_Contention(t *testing.T) {
	dir := t.TempDir()

	guard, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}
	defer guard.Release()

	if _, err := Acquire(dir); err != ErrAlreadyRunning {
		t.Errorf("second Acquire() = %v, want ErrAlreadyRunning", err)
	}
}

// TestRelease_Twice tests that a double release is a no-op
func TestRelease_Twice(t *testing.T) {
	guard, err := Acquire(t.TempDir())
	if err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}
	if err := guard.Release(); err != nil {
		t.Fatalf("Release() failed: %v", err)
	}
	if err := guard.Release(); err != nil {
		t.Fatalf("second Release() failed: %v", err)
	}
}

// TestRelease_KeepsLockFile tests that Release never unlinks the lock
// file. Removing it would split contenders across two inodes: a process
// that opened the file before the removal and one that creates it afresh
// could each flock their own inode and both believe they hold the lock.
func TestRelease_KeepsLockFile(t *testing.T) {
	dir := t.TempDir()

	guard, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}

	// A second contender opens the lock file while the lock is held, as a
	// blocked process would, and only flocks after the release.
	waiter, err := os.OpenFile(guard.Path(), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		t.Fatalf("open lock file failed: %v", err)
	}
	defer waiter.Close()

	if err := guard.Release(); err != nil {
		t.Fatalf("Release() failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, FileName)); err != nil {
		t.Fatalf("lock file removed by Release: %v", err)
	}

	if err := unix.Flock(int(waiter.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		t.Fatalf("waiter flock failed: %v", err)
	}

	// The waiter's lock and any new Acquire contend on the same inode.
	if _, err := Acquire(dir); err != ErrAlreadyRunning {
		t.Errorf("Acquire() = %v, want ErrAlreadyRunning", err)
	}
}

// TestAcquire_CreatesDir tests that the lock directory is created
func TestAcquire_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dbs")

	guard, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}
	defer guard.Release()
}
