package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const appDirPerm os.FileMode = 0o750

// Entry is a regular file found in a directory listing.
type Entry struct {
	Name    string
	Path    string
	ModTime time.Time
}

// EnsureDir creates the directory if it does not exist.
func EnsureDir(dirPath string) error {
	if dirPath == "" {
		return errors.New("empty dir path")
	}
	if err := os.MkdirAll(dirPath, appDirPerm); err != nil { //nolint:gosec // app-owned data dir
		return fmt.Errorf("ensure dir: %w", err)
	}
	return nil
}

// IsRegular reports whether path names an existing regular file.
func IsRegular(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat: %w", err)
	}
	return info.Mode().IsRegular(), nil
}

// ListFiles returns the regular files directly under dirPath. A missing
// directory yields an empty listing. Entries that vanish between the listing
// and the stat are skipped.
func ListFiles(dirPath string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(dirPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir: %w", err)
	}
	files := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if !de.Type().IsRegular() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		files = append(files, Entry{
			Name:    de.Name(),
			Path:    filepath.Join(dirPath, de.Name()),
			ModTime: info.ModTime(),
		})
	}
	return files, nil
}

// Remove deletes the file at path. It reports whether a file was removed;
// a file that is already gone is not an error.
func Remove(path string) (bool, error) {
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("remove: %w", err)
	}
	return true, nil
}
