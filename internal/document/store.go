package document

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when a stored file does not exist.
var ErrNotFound = errors.New("file not found")

// ErrInvalidName is returned for names that would escape the upload directory.
var ErrInvalidName = errors.New("invalid filename")

// DirStats summarizes the upload directory.
type DirStats struct {
	UploadDirectory string `json:"uploadDirectory"`
	DirectoryExists bool   `json:"directoryExists"`
	FileCount       int    `json:"fileCount"`
	TotalSize       int64  `json:"totalSize"`
}

// Store keeps uploaded files in a flat directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory is created lazily.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the upload directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes data under name.
func (s *Store) Save(name string, data []byte) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.Wrap(err, "creating upload directory")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "writing %s", name)
}

// Remove deletes the named file.
func (s *Store) Remove(name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return errors.Wrapf(err, "removing %s", name)
	}
	return nil
}

// Stats reports the file count and total size of the upload directory.
// The bool result is false when the directory does not exist.
func (s *Store) Stats() (*DirStats, bool, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "reading upload directory")
	}

	stats := &DirStats{UploadDirectory: s.dir, DirectoryExists: true}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		stats.FileCount++
		if info, err := entry.Info(); err == nil {
			stats.TotalSize += info.Size()
		}
	}
	return stats, true, nil
}

func (s *Store) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", ErrInvalidName
	}
	return filepath.Join(s.dir, name), nil
}
