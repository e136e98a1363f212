package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"boardsnap/internal/logging"
)

// FileStore keeps snapshots in a local directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at dir. Relative keys resolve
// against dir; an empty dir means the working directory.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(key string) string {
	if filepath.IsAbs(key) || s.dir == "" {
		return key
	}
	return filepath.Join(s.dir, key)
}

// Save implements Store.
func (s *FileStore) Save(_ context.Context, name string, data []byte) (string, error) {
	path := s.path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	logging.Store("saved %s (%d bytes)", path, len(data))
	return path, nil
}

// Load implements Store.
func (s *FileStore) Load(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

// List implements Store. Only .json files directly in the directory count.
func (s *FileStore) List(_ context.Context) ([]Object, error) {
	dir := s.dir
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var out []Object
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Object{Key: e.Name(), Size: info.Size(), Modified: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Modified.Equal(out[j].Modified) {
			return out[i].Key < out[j].Key
		}
		return out[i].Modified.Before(out[j].Modified)
	})
	return out, nil
}
