// Package local implements the download root on the local filesystem.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/kb-newspaper-scraper/internal/archive"
)

// Config captures the parameters for the local filesystem store.
type Config struct {
	// BaseDir is the download root; every stored path is relative to it.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// Store writes page images below a base directory. Existing files are never
// replaced; a file's presence is the only signal that it is complete.
type Store struct {
	baseDir string
}

// New creates the base directory when missing and checks it is writable.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat base directory: %w", err)
		}
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &Store{baseDir: cfg.BaseDir}, nil
}

// BaseDir returns the download root.
func (s *Store) BaseDir() string { return s.baseDir }

// Resolve joins path onto the base directory and rejects traversal outside it.
func (s *Store) Resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	cleanBase := filepath.Clean(s.baseDir)
	full := filepath.Clean(filepath.Join(cleanBase, path))
	if !strings.HasPrefix(full, cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	return full, nil
}

// Exists reports whether a regular file is already present at path.
func (s *Store) Exists(path string) (bool, error) {
	full, err := s.Resolve(path)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(full)
	switch {
	case err == nil:
		return !info.IsDir(), nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat %s: %w", full, err)
	}
}

// Put streams data into a temporary file next to path and links it into
// place, so a partially written file is never visible under the final name.
// If path already exists it is left untouched and archive.ErrFileExists is
// returned.
func (s *Store) Put(ctx context.Context, path string, data io.Reader) (int64, error) {
	full, err := s.Resolve(path)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context canceled: %w", err)
	}

	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("failed to create parent directories: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(full)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	written, err := io.Copy(tmp, data)
	if err != nil {
		_ = tmp.Close()
		return written, fmt.Errorf("write %s: %w", full, err)
	}
	if err := tmp.Close(); err != nil {
		return written, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Link(tmpName, full); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return 0, fmt.Errorf("%s: %w", full, archive.ErrFileExists)
		}
		return written, fmt.Errorf("link into %s: %w", full, err)
	}
	return written, nil
}
