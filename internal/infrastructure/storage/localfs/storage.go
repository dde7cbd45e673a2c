package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kirillkom/resume-review/internal/core/domain"
	"github.com/kirillkom/resume-review/internal/core/ports"
	"github.com/kirillkom/resume-review/internal/infrastructure/storage/artifactpath"
)

// Storage keeps artifacts as files under a base directory. Paths handed out
// are relative to that directory.
type Storage struct {
	basePath string
	newPath  func(suggestedName string) string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/storage"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{basePath: basePath, newPath: artifactpath.New}, nil
}

func (s *Storage) Upload(_ context.Context, data []byte, suggestedName string) (string, error) {
	key := s.newPath(suggestedName)
	path, err := s.resolve(key)
	if err != nil {
		return "", err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close file: %w", err)
	}
	return key, nil
}

func (s *Storage) Read(_ context.Context, key string) ([]byte, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrArtifactNotFound, "read artifact", fmt.Errorf("path=%s", key))
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

func (s *Storage) Delete(_ context.Context, key string) (bool, error) {
	path, err := s.resolve(key)
	if err != nil {
		return false, err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("remove file: %w", err)
	}
	return true, nil
}

func (s *Storage) resolve(key string) (string, error) {
	if !filepath.IsLocal(key) {
		return "", domain.WrapError(domain.ErrInvalidInput, "resolve artifact path", fmt.Errorf("path=%q", key))
	}
	return filepath.Join(s.basePath, key), nil
}

var _ ports.ArtifactStore = (*Storage)(nil)
