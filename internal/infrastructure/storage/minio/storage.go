package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kirillkom/resume-review/internal/core/domain"
	"github.com/kirillkom/resume-review/internal/core/ports"
	"github.com/kirillkom/resume-review/internal/infrastructure/storage/artifactpath"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	// MaxRetries bounds the client's own retry loop; zero keeps its default.
	MaxRetries int
}

// Storage keeps artifacts as objects in one bucket. Artifact paths are
// object names.
type Storage struct {
	client  *minio.Client
	bucket  string
	newPath func(suggestedName string) string
}

func New(cfg Config) (*Storage, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:      credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:     cfg.UseSSL,
		Region:     cfg.Region,
		MaxRetries: cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Storage{client: client, bucket: cfg.Bucket, newPath: artifactpath.New}, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return wrapTemporaryIfNeeded("check bucket", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return wrapTemporaryIfNeeded("create bucket", err)
	}
	return nil
}

func (s *Storage) Upload(ctx context.Context, data []byte, suggestedName string) (string, error) {
	objectName := s.newPath(suggestedName)
	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: artifactpath.ContentType(objectName),
	})
	if err != nil {
		return "", wrapTemporaryIfNeeded("upload artifact", err)
	}
	return objectName, nil
}

func (s *Storage) Read(ctx context.Context, objectName string) ([]byte, error) {
	object, err := s.client.GetObject(ctx, s.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.mapObjectError("read artifact", objectName, err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, s.mapObjectError("read artifact", objectName, err)
	}
	return data, nil
}

func (s *Storage) Delete(ctx context.Context, objectName string) (bool, error) {
	// RemoveObject succeeds for absent keys, so existence is checked first.
	if _, err := s.client.StatObject(ctx, s.bucket, objectName, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, wrapTemporaryIfNeeded("stat artifact", err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return false, wrapTemporaryIfNeeded("delete artifact", err)
	}
	return true, nil
}

func (s *Storage) mapObjectError(operation, objectName string, err error) error {
	if isNoSuchKey(err) {
		return domain.WrapError(domain.ErrArtifactNotFound, operation, fmt.Errorf("path=%s", objectName))
	}
	return wrapTemporaryIfNeeded(operation, err)
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

func wrapTemporaryIfNeeded(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("minio %s: %w", operation, err)
	}
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == 0 || resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return domain.WrapError(domain.ErrTemporary, "minio "+operation, err)
	}
	return fmt.Errorf("minio %s: %w", operation, err)
}

var _ ports.ArtifactStore = (*Storage)(nil)
