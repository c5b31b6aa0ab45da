package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"
)

// namePattern matches database files produced by this tool. The timestamp
// layout sorts lexicographically, so the newest file is the largest name.
var namePattern = regexp.MustCompile(`^elog_(\d{4})_(\d{4})_(\d{4})\.db$`)

// GenerateName returns a database file name stamped with the given time,
// e.g. elog_2026_0823_1430.db.
func GenerateName(t time.Time) string {
	return "elog_" + t.Format("2006_0102_1504") + ".db"
}

// IsStoreName reports whether name looks like a database produced by this
// tool.
func IsStoreName(name string) bool {
	return namePattern.MatchString(name)
}

// ListPaths returns all database files in dir, oldest first.
func ListPaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list database directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if IsStoreName(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
	}
	return paths, nil
}

// LatestPath returns the newest database file in dir, or "" when dir holds
// none.
func LatestPath(dir string) (string, error) {
	paths, err := ListPaths(dir)
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", nil
	}
	return paths[len(paths)-1], nil
}

// CopyFile copies src to dst, streaming so multi-gigabyte databases never
// sit in memory. Incremental runs seed the new database from the newest
// existing one this way, so a failed run never damages history.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy to %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return nil
}
