package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kirillkom/resume-review/internal/core/domain"
	"github.com/kirillkom/resume-review/internal/core/ports"
)

type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	// Prefix namespaces every key; the record key already carries "resume:".
	Prefix string
}

// Store keeps resume records as plain string values without expiry.
type Store struct {
	client redis.Cmdable
	prefix string
	close  func() error
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	store := NewWithClient(client, cfg.Prefix)
	store.close = client.Close
	return store, nil
}

func NewWithClient(client redis.Cmdable, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.WrapError(domain.ErrRecordNotFound, "redis get", fmt.Errorf("key=%s", key))
	}
	if err != nil {
		return nil, wrapTemporaryIfNeeded("redis get", err)
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return wrapTemporaryIfNeeded("redis set", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

func wrapTemporaryIfNeeded(operation string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, redis.ErrClosed) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return fmt.Errorf("%s: %w", operation, err)
}

var _ ports.RecordStore = (*Store)(nil)
