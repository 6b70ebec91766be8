package store

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// FileStore keeps one file per key under BasePath.
type FileStore struct {
	BasePath string
}

// NewFileStore creates the scope directory under dir.
func NewFileStore(dir, scope string) (*FileStore, error) {
	basePath := filepath.Join(dir, scope)
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{BasePath: basePath}, nil
}

func (s *FileStore) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

// Set writes to a temp file and renames it so readers never see a torn value.
func (s *FileStore) Set(key string, value []byte) error {
	tmp, err := os.CreateTemp(s.BasePath, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path(key))
}

func (s *FileStore) Delete(key string) error {
	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// path escapes the key so it cannot leave BasePath.
func (s *FileStore) path(key string) string {
	return filepath.Join(s.BasePath, url.PathEscape(key)+".json")
}
