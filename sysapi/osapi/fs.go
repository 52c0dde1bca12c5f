//go:build !appcore_embedded

package osapi

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultMaxReadBytes bounds ReadFile when no limit is configured.
const DefaultMaxReadBytes int64 = 64 << 20

// FS is filesystem access confined to one directory tree. Paths are relative
// to the root; attempts to escape it through ".." or symlinks fail.
type FS struct {
	root    *os.Root
	dir     string
	maxRead int64
}

func openFS(dir string, maxRead int64) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %q: %w", dir, err)
	}
	root, err := os.OpenRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open root %q: %w", abs, err)
	}
	return &FS{root: root, dir: abs, maxRead: maxRead}, nil
}

// Dir returns the absolute root directory.
func (f *FS) Dir() string { return f.dir }

// Open opens a file for reading.
func (f *FS) Open(name string) (*os.File, error) {
	return f.root.Open(name)
}

// ReadFile reads a whole file, failing with *SizeLimitError when it is larger
// than the configured limit.
func (f *FS) ReadFile(name string) ([]byte, error) {
	file, err := f.root.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(newLimitedReader(file, f.maxRead))
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", name, err)
	}
	return data, nil
}

// WriteFile creates or truncates name and writes data to it.
func (f *FS) WriteFile(name string, data []byte, perm fs.FileMode) error {
	file, err := f.root.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write %q: %w", name, err)
	}
	return file.Close()
}

// MkdirAll creates a directory and any missing parents.
func (f *FS) MkdirAll(name string, perm fs.FileMode) error {
	return f.root.MkdirAll(name, perm)
}

// Remove removes a file or empty directory.
func (f *FS) Remove(name string) error {
	return f.root.Remove(name)
}

// Stat describes a file.
func (f *FS) Stat(name string) (fs.FileInfo, error) {
	return f.root.Stat(name)
}

// Glob returns the paths under the root matching pattern. Patterns support
// "**" for recursive matching.
func (f *FS) Glob(pattern string) ([]string, error) {
	matches, err := doublestar.Glob(f.root.FS(), pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return matches, nil
}

func (f *FS) close() error {
	return f.root.Close()
}
