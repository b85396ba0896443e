package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// ResolvePath turns a configured database path into an absolute one.
//
// An explicit path is used as given. The default relative path is looked up
// in the current directory and then in each parent, so commands run from a
// subdirectory find the project's database. When none exists the database
// is created under the current directory.
func ResolvePath(path string) (string, error) {
	if path == "" {
		path = DefaultPath
	}
	if path != DefaultPath {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		return abs, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	return resolveFromDir(dir), nil
}

// resolveFromDir walks up from startDir looking for an existing default
// database, falling back to startDir
func resolveFromDir(startDir string) string {
	dir := filepath.Clean(startDir)
	for {
		candidate := filepath.Join(dir, DefaultPath)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root without finding a database
			break
		}
		dir = parent
	}
	return filepath.Join(filepath.Clean(startDir), DefaultPath)
}
