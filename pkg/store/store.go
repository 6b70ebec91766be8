// Package store provides the small key-value blobs that back usage metering
// and saved settings.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by Get when a key has never been set or was deleted.
var ErrNotFound = errors.New("store: key not found")

// Store is a best-effort key-value blob store.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// Kind selects a Store implementation.
type Kind string

const (
	KindFile   Kind = "file"
	KindSQLite Kind = "sqlite"
	KindMemory Kind = "memory"
)

// DefaultDir returns ~/.pulseboard/data.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".pulseboard", "data"), nil
}

// Open builds a store of the given kind rooted at dir. scope namespaces keys
// so several profiles can share one directory or database.
func Open(kind Kind, dir, scope string) (Store, error) {
	if scope == "" {
		scope = "default"
	}
	if kind != KindMemory && dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	switch Kind(strings.ToLower(string(kind))) {
	case KindFile, "":
		return NewFileStore(dir, scope)
	case KindSQLite:
		return NewSQLiteStore(filepath.Join(dir, "pulseboard.db"), scope)
	case KindMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store kind %q", kind)
	}
}
