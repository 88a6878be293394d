package objectstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore stores blobs as files under a root directory. Keys map to
// relative paths; path traversal outside the root is rejected.
type FileStore struct {
	root string
}

// NewFileStore creates a file-backed store rooted at the given directory.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: strings.TrimSuffix(root, "/")}
}

func (s *FileStore) path(key string) (string, error) {
	clean := filepath.Clean(key)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("objectstore: invalid key %q", key)
	}

	return filepath.Join(s.root, clean), nil
}

// Put writes a blob under the given key.
func (s *FileStore) Put(_ context.Context, key string, data []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("objectstore: mkdir for %s: %w", key, err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("objectstore: write %s: %w", key, err)
	}

	return nil
}

// Get reads the blob stored under the given key.
func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}

		return nil, fmt.Errorf("objectstore: read %s: %w", key, err)
	}

	return data, nil
}
