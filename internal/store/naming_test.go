package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestGenerateName_Format tests the timestamped file name layout
func TestGenerateName_Format(t *testing.T) {
	name := GenerateName(time.Date(2026, 8, 23, 14, 30, 0, 0, time.UTC))
	if name != "elog_2026_0823_1430.db" {
		t.Errorf("GenerateName() = %q, want elog_2026_0823_1430.db", name)
	}
	if !IsStoreName(name) {
		t.Errorf("IsStoreName(%q) = false, want true", name)
	}
}

// TestIsStoreName_Rejects tests that foreign files are not matched
func TestIsStoreName_Rejects(t *testing.T) {
	for _, name := range []string{
		"elog.db",
		"elog_2026_0823.db",
		"elog_2026_0823_1430.db.bak",
		"other_2026_0823_1430.db",
		"elog_26_0823_1430.db",
	} {
		if IsStoreName(name) {
			t.Errorf("IsStoreName(%q) = true, want false", name)
		}
	}
}

// TestLatestPath_PicksNewest tests lexicographic newest selection
func TestLatestPath_PicksNewest(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		"elog_2025_1231_2359.db",
		"elog_2026_0101_0000.db",
		"elog_2026_0823_1430.db",
		"notes.txt",
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}

	latest, err := LatestPath(dir)
	if err != nil {
		t.Fatalf("LatestPath() failed: %v", err)
	}
	if filepath.Base(latest) != "elog_2026_0823_1430.db" {
		t.Errorf("LatestPath() = %q", latest)
	}
}

// TestLatestPath_Empty tests the no-databases case
func TestLatestPath_Empty(t *testing.T) {
	latest, err := LatestPath(t.TempDir())
	if err != nil {
		t.Fatalf("LatestPath() failed: %v", err)
	}
	if latest != "" {
		t.Errorf("LatestPath() = %q, want empty", latest)
	}
}

// TestLatestPath_MissingDir tests that a missing directory is not an error
func TestLatestPath_MissingDir(t *testing.T) {
	latest, err := LatestPath(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("LatestPath() failed: %v", err)
	}
	if latest != "" {
		t.Errorf("LatestPath() = %q, want empty", latest)
	}
}

// TestCopyFile_RoundTrip tests seeding one database file from another
func TestCopyFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "elog_2026_0101_0000.db")
	dst := filepath.Join(dir, "elog_2026_0823_1430.db")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile() failed: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("copied contents = %q", data)
	}
}

// TestCopyFile_TruncatesExisting tests that a longer pre-existing target is
// fully replaced
func TestCopyFile_TruncatesExisting(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "elog_2026_0101_0000.db")
	dst := filepath.Join(dir, "elog_2026_0823_1430.db")
	if err := os.WriteFile(src, []byte("new"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := os.WriteFile(dst, []byte("much longer stale contents"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile() failed: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "new" {
		t.Errorf("copied contents = %q, want new", data)
	}
}
