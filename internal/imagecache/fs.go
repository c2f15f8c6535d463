package imagecache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// FileStore keeps one {key}.svg file per entry in a flat directory.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if it does not exist yet.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("imagecache: storage directory not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) pathFor(key string) string {
	return filepath.Join(s.dir, FileName(key))
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.pathFor(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", FileName(key), err)
	}
	return data, nil
}

func (s *FileStore) Has(_ context.Context, key string) (bool, error) {
	info, err := os.Stat(s.pathFor(key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", FileName(key), err)
	}
	return info.Mode().IsRegular(), nil
}

// Put writes body to a temporary file in the same directory and renames it
// into place.
func (s *FileStore) Put(_ context.Context, key string, body []byte) error {
	tmp, err := os.CreateTemp(s.dir, FileName(key)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", FileName(key), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", FileName(key), err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		slog.Debug("imagecache: chmod temp file failed", "file", tmpName, "error", err)
	}
	if err := os.Rename(tmpName, s.pathFor(key)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", FileName(key), err)
	}
	return nil
}
