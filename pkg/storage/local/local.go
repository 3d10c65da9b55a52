package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/feichai0017/docflow/pkg/logger"
)

// Storage keeps uploads in a flat directory. Keys are sanitized to their
// base name so a crafted filename cannot escape the directory.
type Storage struct {
	dir string
	log logger.Logger
}

func New(dir string, log logger.Logger) (*Storage, error) {
	if dir == "" {
		dir = "uploads"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", dir, err)
	}
	return &Storage{dir: dir, log: log}, nil
}

func (s *Storage) path(key string) string {
	return filepath.Join(s.dir, filepath.Base(key))
}

func (s *Storage) Put(ctx context.Context, reader io.Reader, key string) (string, error) {
	path := s.path(key)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, reader); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	s.log.Info("Stored file",
		logger.String("path", path),
	)
	return filepath.Base(key), nil
}

func (s *Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(key))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", key, err)
	}
	return f, nil
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *Storage) PurgeOlderThan(ctx context.Context, threshold time.Time) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read upload directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(threshold) {
			if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
				s.log.Error("Failed to purge expired file",
					logger.String("name", entry.Name()),
					logger.Error(err),
				)
				continue
			}
			s.log.Info("Purged expired file",
				logger.String("name", entry.Name()),
				logger.Time("modTime", info.ModTime()),
			)
		}
	}
	return nil
}
