package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/posreports/backend/internal/domain/report"
	"github.com/posreports/backend/internal/infrastructure/config"
)

// DefaultIndexKey is the Redis key of the report index document
const DefaultIndexKey = "pos-reports:index"

// RedisIndexStore keeps the report index document in a single Redis key.
// It lets several hosts share one index.
type RedisIndexStore struct {
	client *redis.Client
	key    string
}

var _ report.IndexStore = (*RedisIndexStore)(nil)

// NewRedisIndexStore connects to Redis and verifies the connection
func NewRedisIndexStore(ctx context.Context, cfg config.RedisConfig, key string) (*RedisIndexStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisIndexStoreWithClient(client, key), nil
}

// NewRedisIndexStoreWithClient creates a store with an existing Redis client
func NewRedisIndexStoreWithClient(client *redis.Client, key string) *RedisIndexStore {
	if key == "" {
		key = DefaultIndexKey
	}
	return &RedisIndexStore{client: client, key: key}
}

// Load returns the stored index; an absent key or corrupt value is an empty index
func (s *RedisIndexStore) Load(ctx context.Context) (*report.Index, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return report.NewIndex(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index %s: %w", s.key, err)
	}
	return report.DecodeIndex(data), nil
}

// Save replaces the stored index document. The key never expires.
func (s *RedisIndexStore) Save(ctx context.Context, doc report.IndexDocument) error {
	data, err := report.EncodeIndexDocument(doc)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write index %s: %w", s.key, err)
	}
	return nil
}

// Ping checks the Redis connection
func (s *RedisIndexStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (s *RedisIndexStore) Close() error {
	return s.client.Close()
}
